// Package conversation holds the state of one chat with the analysis
// backend: message history, the staged upload, the latest artifact links and
// whether a request is in flight.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/analyst-go/internal/client"
)

// Sentinel errors returned by Begin and Send.
var (
	// ErrEmptyPrompt indicates a prompt with no non-space characters.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrBusy indicates a request is already in flight.
	ErrBusy = errors.New("a request is already in flight")
)

// State is the controller's request state.
type State int

const (
	// StateIdle accepts input.
	StateIdle State = iota
	// StateSending has exactly one request in flight.
	StateSending
	// StateFailed accepts input; the last request failed.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSending:
		return "sending"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Role identifies who wrote a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the history.
type Message struct {
	ID            string
	Role          Role
	Content       string
	CreatedAt     time.Time
	Agent         client.AgentKind
	Attachment    string // upload name sent with a user message
	Images        []client.Image
	ImagePaths    []string
	PDFPath       string
	PPTPath       string
	DashboardPath string
	IsError       bool
}

// Artifacts are the most recent artifact locations seen in the conversation.
// Each is overwritten independently when a newer response carries one.
type Artifacts struct {
	PDF       string
	Deck      string
	Dashboard string
}

// Request is what Begin hands to the caller for dispatch.
type Request struct {
	Prompt string
	Agent  client.AgentKind
	Upload *client.Upload // nil selects the no-file variant
}

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	State     State
	Messages  []Message
	Pending   *client.Upload
	Artifacts Artifacts
}

// Busy reports whether a request is in flight.
func (s Snapshot) Busy() bool { return s.State == StateSending }

// Backend performs analyze requests. *client.Client satisfies it.
type Backend interface {
	Analyze(ctx context.Context, upload *client.Upload, prompt string, agent client.AgentKind) (*client.AnalysisResult, error)
}

// Controller is the conversation state machine. All methods are safe for
// concurrent use; each transition happens under one lock so no caller can
// observe a half-applied change.
type Controller struct {
	mu        sync.Mutex
	state     State
	messages  []Message
	pending   *client.Upload
	artifacts Artifacts
	inflight  Request
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an idle controller with an empty history.
func New(logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{logger: logger, now: time.Now}
}

// Stage sets the upload for the next send, replacing any staged one.
// Staging is allowed in every state.
func (c *Controller) Stage(u *client.Upload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil && u != nil {
		c.logger.Debug("replacing staged upload", "old", c.pending.Name, "new", u.Name)
	}
	c.pending = u
}

// Unstage drops the staged upload, if any.
func (c *Controller) Unstage() {
	c.Stage(nil)
}

// Begin starts a send. It appends the user message, consumes the staged
// upload and enters StateSending. The returned Request must be dispatched
// and its outcome passed to Complete.
func (c *Controller) Begin(prompt string, agent client.AgentKind) (Request, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Request{}, ErrEmptyPrompt
	}
	if agent == "" {
		agent = client.AgentAuto
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateSending {
		return Request{}, ErrBusy
	}

	req := Request{Prompt: prompt, Agent: agent, Upload: c.pending}
	msg := c.newMessage(RoleUser, prompt, agent)
	if req.Upload != nil {
		msg.Attachment = req.Upload.Name
	}
	c.messages = append(c.messages, msg)

	c.pending = nil
	c.inflight = req
	c.state = StateSending
	return req, nil
}

// Complete finishes the in-flight request with its result or error and
// returns the appended assistant message. It reports false, changing
// nothing, when no request is in flight.
func (c *Controller) Complete(res *client.AnalysisResult, err error) (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateSending {
		return Message{}, false
	}
	agent := c.inflight.Agent
	c.inflight = Request{}

	if err == nil && res == nil {
		err = errors.New("empty response")
	}
	if err != nil {
		msg := c.newMessage(RoleAssistant, "Error: "+err.Error(), agent)
		msg.IsError = true
		c.messages = append(c.messages, msg)
		c.state = StateFailed
		c.logger.Warn("analysis failed", "error", err)
		return msg, true
	}

	msg := c.newMessage(RoleAssistant, res.Response, agent)
	msg.Images = slices.Clone(res.Images)
	msg.ImagePaths = slices.Clone(res.ImagePaths)
	if p, ok := res.PDF(); ok {
		msg.PDFPath = p
		c.artifacts.PDF = p
	}
	if p, ok := res.PPT(); ok {
		msg.PPTPath = p
		c.artifacts.Deck = p
	}
	if p, ok := res.Dashboard(); ok {
		msg.DashboardPath = p
		c.artifacts.Dashboard = p
	}
	c.messages = append(c.messages, msg)
	c.state = StateIdle
	return msg, true
}

// Send runs Begin, dispatches to b and Completes. The backend error, if
// any, is returned after the error message has been appended.
func (c *Controller) Send(ctx context.Context, b Backend, prompt string, agent client.AgentKind) (Message, error) {
	req, err := c.Begin(prompt, agent)
	if err != nil {
		return Message{}, err
	}

	res, err := b.Analyze(ctx, req.Upload, req.Prompt, req.Agent)
	msg, _ := c.Complete(res, err)
	return msg, err
}

// Reset clears messages, the staged upload and all artifact links at once.
// An in-flight request stays in flight; its answer is appended to the
// cleared history.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = nil
	c.pending = nil
	c.artifacts = Artifacts{}
	if c.state == StateFailed {
		c.state = StateIdle
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		State:     c.state,
		Messages:  slices.Clone(c.messages),
		Pending:   c.pending,
		Artifacts: c.artifacts,
	}
}

// WriteTranscript writes the history as plain "User:" / "Agent:" blocks.
func (c *Controller) WriteTranscript(w io.Writer) error {
	snap := c.Snapshot()

	for _, m := range snap.Messages {
		speaker := "User"
		if m.Role == RoleAssistant {
			speaker = "Agent"
		}
		if _, err := fmt.Fprintf(w, "%s: %s\n", speaker, m.Content); err != nil {
			return fmt.Errorf("write transcript: %w", err)
		}

		var extra []string
		if m.Attachment != "" {
			extra = append(extra, "  Attachment: "+m.Attachment)
		}
		for _, img := range m.Images {
			extra = append(extra, "  Image: "+img.URL)
		}
		if m.PDFPath != "" {
			extra = append(extra, "  PDF: "+m.PDFPath)
		}
		if m.PPTPath != "" {
			extra = append(extra, "  Slides: "+m.PPTPath)
		}
		if m.DashboardPath != "" {
			extra = append(extra, "  Dashboard: "+m.DashboardPath)
		}
		extra = append(extra, "")

		if _, err := io.WriteString(w, strings.Join(extra, "\n")+"\n"); err != nil {
			return fmt.Errorf("write transcript: %w", err)
		}
	}
	return nil
}

// newMessage builds a message stamped now. Caller must hold c.mu.
func (c *Controller) newMessage(role Role, content string, agent client.AgentKind) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: c.now(),
		Agent:     agent,
	}
}
