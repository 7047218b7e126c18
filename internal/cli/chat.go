package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/analyst-go/internal/client"
	"github.com/raphaelgruber/analyst-go/internal/conversation"
	"github.com/raphaelgruber/analyst-go/internal/router"
	"github.com/spf13/cobra"
)

// maxInputHeight caps how far the prompt box grows with its content.
const maxInputHeight = 6

const chatHelp = `Commands:
  /attach <path>                      stage a data file for the next message
  /detach                             drop the staged file
  /agent [kind]                       show or set the agent (auto, data_analysis, pdf, ppt, dashboard)
  /download <pdf|ppt|dashboard> [dir] save the latest artifact of that kind
  /save <file>                        write the conversation transcript
  /clear                              clear the conversation
  /quit                               leave`

// artifactDownloader saves a backend artifact into a directory.
type artifactDownloader interface {
	DownloadArtifact(ctx context.Context, location, dir string) (string, error)
}

// analysisDoneMsg carries the outcome of the in-flight analyze request.
type analysisDoneMsg struct {
	res *client.AnalysisResult
	err error
}

// downloadDoneMsg carries the outcome of a /download command.
type downloadDoneMsg struct {
	path string
	err  error
}

// chatModel is the bubbletea model for the chat screen. Finished messages
// are printed above the program with tea.Println; the view only holds the
// status line and the prompt box.
type chatModel struct {
	ctx        context.Context
	ctrl       *conversation.Controller
	backend    conversation.Backend
	downloader artifactDownloader
	user       string

	agent        client.AgentKind
	input        textarea.Model
	spinner      spinner.Model
	theme        Theme
	printed      int
	confirmClear bool
	notice       string
	noticeErr    bool
	quitting     bool
}

func newChatModel(ctx context.Context, ctrl *conversation.Controller, backend conversation.Backend, dl artifactDownloader, user string, agent client.AgentKind) chatModel {
	ta := textarea.New()
	ta.Placeholder = "Ask about your data... (enter to send, ctrl+j for newline, /help)"
	ta.ShowLineNumbers = false
	ta.Prompt = "┃ "
	ta.CharLimit = 0
	ta.KeyMap.InsertNewline.SetKeys("ctrl+j", "shift+enter")
	ta.SetWidth(80)
	ta.SetHeight(1)
	ta.Focus()

	return chatModel{
		ctx:        ctx,
		ctrl:       ctrl,
		backend:    backend,
		downloader: dl,
		user:       user,
		agent:      agent,
		input:      ta,
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
		theme:      defaultTheme,
	}
}

// Init returns the initial command (cursor blink).
func (m chatModel) Init() tea.Cmd {
	return textarea.Blink
}

// Update handles messages and returns the updated model.
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.input.SetWidth(max(20, msg.Width-2))
		return m, nil

	case tea.KeyPressMsg:
		if m.confirmClear {
			return m.answerClear(msg.String())
		}

		switch msg.String() {
		case "ctrl+c", "ctrl+d":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			return m.submit()
		}

	case analysisDoneMsg:
		m.ctrl.Complete(msg.res, msg.err)
		var cmd tea.Cmd
		m, cmd = m.flush()
		return m, cmd

	case downloadDoneMsg:
		if msg.err != nil {
			m.setNotice(fmt.Sprintf("Download failed: %v", msg.err), true)
		} else {
			m.setNotice("Saved "+msg.path, false)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.ctrl.Snapshot().Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.resizeInput()
	return m, cmd
}

// submit handles the enter key: a slash command or a prompt.
func (m chatModel) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	if strings.HasPrefix(text, "/") {
		m.input.Reset()
		m.resizeInput()
		return m.command(text)
	}

	req, err := m.ctrl.Begin(text, m.agent)
	if err != nil {
		// Busy: the prompt box keeps its text until the answer arrives.
		return m, nil
	}
	m.input.Reset()
	m.resizeInput()
	m.notice = ""

	m, printCmd := m.flush()
	return m, tea.Batch(printCmd, m.spinner.Tick, m.analyze(req))
}

// command runs a slash command.
func (m chatModel) command(line string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]

	switch name {
	case "/help":
		return m, tea.Println(chatHelp)

	case "/quit", "/exit":
		m.quitting = true
		return m, tea.Quit

	case "/attach":
		if len(args) == 0 {
			m.setNotice("Usage: /attach <path>", true)
			return m, nil
		}
		upload, err := client.NewUpload(strings.Join(args, " "))
		if err != nil {
			m.setNotice(err.Error(), true)
			return m, nil
		}
		m.ctrl.Stage(upload)
		m.setNotice(fmt.Sprintf("Attached %s (%s)", upload.Name, humanSize(upload.Size)), false)

	case "/detach":
		m.ctrl.Unstage()
		m.setNotice("Attachment removed", false)

	case "/agent":
		if len(args) == 0 {
			m.setNotice("Agent: "+string(m.agent)+" ("+m.agent.Label()+")", false)
			return m, nil
		}
		kind, err := client.ParseAgentKind(args[0])
		if err != nil {
			m.setNotice(err.Error(), true)
			return m, nil
		}
		m.agent = kind
		m.setNotice("Agent set to "+kind.Label(), false)

	case "/clear":
		m.confirmClear = true
		m.setNotice("Clear the conversation and all artifact links? (y/n)", false)

	case "/save":
		if len(args) == 0 {
			m.setNotice("Usage: /save <file>", true)
			return m, nil
		}
		if err := m.saveTranscript(args[0]); err != nil {
			m.setNotice(err.Error(), true)
			return m, nil
		}
		m.setNotice("Transcript written to "+args[0], false)

	case "/download":
		return m.download(args)

	default:
		m.setNotice("Unknown command "+name+" (try /help)", true)
	}
	return m, nil
}

func (m chatModel) answerClear(key string) (tea.Model, tea.Cmd) {
	m.confirmClear = false
	switch strings.ToLower(key) {
	case "y", "yes":
		m.ctrl.Reset()
		m.printed = 0
		m.setNotice("Conversation cleared", false)
		return m, tea.Println(m.theme.hintStyle().Render("── conversation cleared ──"))
	default:
		m.setNotice("Clear cancelled", false)
		return m, nil
	}
}

func (m chatModel) download(args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		m.setNotice("Usage: /download <pdf|ppt|dashboard> [dir]", true)
		return m, nil
	}

	arts := m.ctrl.Snapshot().Artifacts
	var loc string
	switch strings.ToLower(args[0]) {
	case "pdf", "report":
		loc = arts.PDF
	case "ppt", "deck", "slides":
		loc = arts.Deck
	case "dashboard":
		loc = arts.Dashboard
	default:
		m.setNotice("Unknown artifact "+args[0]+" (pdf, ppt, dashboard)", true)
		return m, nil
	}
	if loc == "" {
		m.setNotice("No "+args[0]+" generated yet", true)
		return m, nil
	}

	dir := "."
	if len(args) > 1 {
		dir = args[1]
	}
	m.setNotice("Downloading "+client.ArtifactFilename(loc)+"...", false)

	ctx, dl := m.ctx, m.downloader
	return m, func() tea.Msg {
		path, err := dl.DownloadArtifact(ctx, loc, dir)
		return downloadDoneMsg{path: path, err: err}
	}
}

func (m chatModel) saveTranscript(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create transcript: %w", err)
	}
	if err := m.ctrl.WriteTranscript(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// analyze dispatches req to the backend.
// Runs in a separate goroutine (command) to avoid blocking Update().
func (m chatModel) analyze(req conversation.Request) tea.Cmd {
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		res, err := backend.Analyze(ctx, req.Upload, req.Prompt, req.Agent)
		return analysisDoneMsg{res: res, err: err}
	}
}

// flush prints history entries that have not been printed yet.
func (m chatModel) flush() (chatModel, tea.Cmd) {
	msgs := m.ctrl.Snapshot().Messages
	if m.printed >= len(msgs) {
		return m, nil
	}

	var parts []string
	for _, msg := range msgs[m.printed:] {
		parts = append(parts, m.theme.renderMessage(msg))
	}
	m.printed = len(msgs)
	return m, tea.Println(strings.Join(parts, "\n"))
}

func (m *chatModel) resizeInput() {
	m.input.SetHeight(min(max(1, m.input.LineCount()), maxInputHeight))
}

func (m *chatModel) setNotice(text string, isErr bool) {
	m.notice, m.noticeErr = text, isErr
}

// View renders the status line and prompt box.
func (m chatModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m chatModel) renderContent() string {
	if m.quitting {
		return m.theme.hintStyle().Render("Bye.") + "\n"
	}

	snap := m.ctrl.Snapshot()
	var b strings.Builder

	b.WriteString(m.statusLine(snap))
	b.WriteString("\n")

	if snap.Busy() {
		b.WriteString(m.spinner.View() + " " + m.theme.accentStyle().Render("Analyzing..."))
		b.WriteString("\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n")

	switch {
	case m.notice != "" && m.noticeErr:
		b.WriteString(m.theme.errorStyle().Render(m.notice))
	case m.notice != "":
		b.WriteString(m.theme.hintStyle().Render(m.notice))
	default:
		b.WriteString(m.theme.hintStyle().Render("Signed in as " + m.user + " · /help for commands · ctrl+c to quit"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m chatModel) statusLine(snap conversation.Snapshot) string {
	agent := m.agent.Label()
	if m.agent == client.AgentAuto {
		if text := strings.TrimSpace(m.input.Value()); text != "" && !strings.HasPrefix(text, "/") {
			predicted, _ := router.Detect(text)
			agent += " → " + predicted.Label()
		}
	}
	parts := []string{"Agent: " + agent}

	if snap.Pending != nil {
		parts = append(parts, "File: "+snap.Pending.Name)
	}

	var arts []string
	if snap.Artifacts.PDF != "" {
		arts = append(arts, "pdf")
	}
	if snap.Artifacts.Deck != "" {
		arts = append(arts, "ppt")
	}
	if snap.Artifacts.Dashboard != "" {
		arts = append(arts, "dashboard")
	}
	if len(arts) > 0 {
		parts = append(parts, "Ready: "+strings.Join(arts, ", "))
	}

	return m.theme.accentStyle().Render(strings.Join(parts, " │ "))
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func newChatCmd(a *app) *cobra.Command {
	var (
		file  string
		agent string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat screen",
		Long: `Open an interactive conversation with the analysis backend.

Type a prompt and press enter to send it. While an answer is pending the
prompt box stays editable but sending is disabled. Generated charts and
document links are shown under each answer; use /download to save them.

Examples:
  analyst chat
  analyst chat --file sales.csv --agent dashboard`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{accessAnnotation: accessProtected},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := client.ParseAgentKind(agent)
			if err != nil {
				return err
			}

			ctrl := conversation.New(a.logger)
			if file != "" {
				upload, err := client.NewUpload(file)
				if err != nil {
					return err
				}
				ctrl.Stage(upload)
			}

			user := a.auth.Current()
			model := newChatModel(cmd.Context(), ctrl, a.client, a.client, user.Name, kind)
			p := tea.NewProgram(model,
				tea.WithContext(cmd.Context()),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			)

			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrInterrupted) && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("chat UI error: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "data file to stage for the first message")
	cmd.Flags().StringVarP(&agent, "agent", "a", "auto", "agent: auto, data_analysis, pdf, ppt, dashboard")
	return cmd
}
