// Package tui provides the Bubble Tea chat view for the teller CLI.
//
// The view is a thin consumer: it renders conversation state snapshots and
// poller record snapshots pushed in as messages, and issues send intents
// back to the session. It holds no sync logic of its own.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/teller/types"
)

// Color palette.
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	successColor   = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#EF4444") // Red
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	highlightColor = lipgloss.Color("#3B82F6") // Blue
)

// Styles for TUI components.
var (
	// TitleStyle for the header bar.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	// UserLabelStyle for the user's speaker label.
	UserLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(highlightColor)

	// AssistantLabelStyle for the advisor's speaker label.
	AssistantLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(primaryColor)

	// BodyStyle for message bodies.
	BodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	// SuccessStyle for settled job status.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	// WarningStyle for in-flight job status.
	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	// ErrorStyle for errors and failed status.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	// HelpStyle for the key hint line.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	// StatusBarStyle for the status line above the input.
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

// StatusStyle returns the style for a chat job status.
func StatusStyle(status types.Status) lipgloss.Style {
	switch status {
	case types.StatusCompleted:
		return SuccessStyle
	case types.StatusQueued, types.StatusProcessing:
		return WarningStyle
	case types.StatusFailed, types.StatusTimeout:
		return ErrorStyle
	default:
		return BodyStyle
	}
}
