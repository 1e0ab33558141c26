package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/thereceipt/certificate-engine/internal/batch"
)

// Colors
var (
	Primary   = lipgloss.Color("#7C3AED") // Purple
	Secondary = lipgloss.Color("#06B6D4") // Cyan
	Success   = lipgloss.Color("#10B981") // Green
	Warning   = lipgloss.Color("#F59E0B") // Amber
	Error     = lipgloss.Color("#EF4444") // Red
	Muted     = lipgloss.Color("#6B7280") // Gray

	colorTextBright = lipgloss.Color("#F8FAFC")
	colorTextNormal = lipgloss.Color("#CBD5E1")
	colorTextMuted  = lipgloss.Color("#64748B")
)

// Text styles
var (
	TextBright = lipgloss.NewStyle().Foreground(colorTextBright)
	TextNormal = lipgloss.NewStyle().Foreground(colorTextNormal)
	TextMuted  = lipgloss.NewStyle().Foreground(colorTextMuted)
)

// Styles
var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorTextBright).
			Background(Primary).
			Padding(0, 2).
			MarginBottom(1)

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Muted).
			Padding(1, 2)

	CardTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Secondary).
			MarginBottom(1)

	StatusOnline = lipgloss.NewStyle().
			Foreground(Success).
			SetString("●")

	StatusOffline = lipgloss.NewStyle().
			Foreground(Error).
			SetString("●")

	StatusPending = lipgloss.NewStyle().
			Foreground(Warning).
			SetString("●")

	StatusMuted = lipgloss.NewStyle().
			Foreground(Muted).
			SetString("●")

	HelpStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	HelpKeyStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(Primary)
)

// RenderHelp formats a key binding hint
func RenderHelp(key, desc string) string {
	return HelpKeyStyle.Render(key) + HelpStyle.Render(" "+desc)
}

// StatusIcon returns a coloured dot for a run status
func StatusIcon(status batch.Status) string {
	switch status {
	case batch.StatusCompleted:
		return StatusOnline.String()
	case batch.StatusFailed:
		return StatusOffline.String()
	case batch.StatusCancelled:
		return StatusMuted.String()
	default:
		return StatusPending.String()
	}
}

// StatusStyle picks the message style for a finished run
func StatusStyle(status batch.Status) lipgloss.Style {
	switch status {
	case batch.StatusCompleted:
		return SuccessStyle
	case batch.StatusFailed:
		return ErrorStyle
	case batch.StatusPartiallyFailed, batch.StatusCancelled:
		return WarningStyle
	default:
		return TextNormal
	}
}

// Truncate shortens s to max runes, marking the cut with an ellipsis
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
