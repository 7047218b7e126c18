package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/analyst-go/internal/conversation"
)

// Theme holds the color scheme for terminal output.
type Theme struct {
	User      lipgloss.Color
	Assistant lipgloss.Color
	Success   lipgloss.Color
	Error     lipgloss.Color
	Hint      lipgloss.Color
	Accent    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	User:      lipgloss.Color("#5FAFD7"), // light blue
	Assistant: lipgloss.Color("#AF87FF"), // violet
	Success:   lipgloss.Color("#00D787"), // green
	Error:     lipgloss.Color("#FF005F"), // red
	Hint:      lipgloss.Color("#6C6C6C"), // dim gray
	Accent:    lipgloss.Color("#FFAF00"), // amber
}

func (t Theme) userStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.User).Bold(true)
}

func (t Theme) assistantStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Assistant).Bold(true)
}

func (t Theme) successStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) accentStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Accent)
}

// renderMessage formats one history entry for the terminal.
func (t Theme) renderMessage(m conversation.Message) string {
	var b strings.Builder

	switch {
	case m.Role == conversation.RoleUser:
		b.WriteString(t.userStyle().Render("You"))
	case m.IsError:
		b.WriteString(t.errorStyle().Render("✗ Analyst"))
	default:
		b.WriteString(t.assistantStyle().Render("Analyst"))
	}
	b.WriteString(t.hintStyle().Render(" · " + m.CreatedAt.Format("15:04")))
	b.WriteString("\n")
	b.WriteString(m.Content)
	b.WriteString("\n")

	if m.Attachment != "" {
		b.WriteString(t.hintStyle().Render("  📎 "+m.Attachment) + "\n")
	}

	for _, img := range m.Images {
		title := img.Title
		if title == "" {
			title = "Chart"
		}
		fmt.Fprintf(&b, "  • %s: %s\n", title, img.URL)
		if img.Description != "" {
			b.WriteString(t.hintStyle().Render("    "+img.Description) + "\n")
		}
	}
	// Legacy responses only carry bare paths.
	if len(m.Images) == 0 {
		for _, p := range m.ImagePaths {
			fmt.Fprintf(&b, "  • Chart: %s\n", p)
		}
	}

	for _, a := range []struct{ label, loc string }{
		{"PDF report", m.PDFPath},
		{"Slide deck", m.PPTPath},
		{"Dashboard", m.DashboardPath},
	} {
		if a.loc != "" {
			fmt.Fprintf(&b, "  %s %s: %s\n", t.successStyle().Render("✓"), a.label, a.loc)
		}
	}

	return b.String()
}
