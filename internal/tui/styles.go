// Package tui provides the session dashboard behind colab monitor.
package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/jayteealao/colab/internal/state"
)

var (
	ColorPrimary   = lipgloss.Color("39")  // Blue
	ColorSecondary = lipgloss.Color("245") // Gray
	ColorSuccess   = lipgloss.Color("42")  // Green
	ColorWarning   = lipgloss.Color("214") // Orange
	ColorDanger    = lipgloss.Color("196") // Red
	ColorMuted     = lipgloss.Color("240") // Dark gray
	ColorText      = lipgloss.Color("15")
)

var (
	TitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).Padding(0, 1)
	NormalStyle = lipgloss.NewStyle().Foreground(ColorText).Padding(0, 1)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	HelpStyle   = lipgloss.NewStyle().Foreground(ColorSecondary).Padding(1, 0)
	LabelStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorSecondary).Width(14)
	ValueStyle  = lipgloss.NewStyle().Foreground(ColorText)
	ErrorStyle  = lipgloss.NewStyle().Foreground(ColorDanger).Bold(true)
)

// Session status styles. A stopped session still holds the working tree, so
// it is highlighted until someone finishes it.
var (
	StatusRunning  = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	StatusStarting = lipgloss.NewStyle().Foreground(ColorWarning)
	StatusStopped  = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	StatusFinished = MutedStyle
	StatusFailed   = ErrorStyle
)

// GetStatusStyle returns the style for a session status or sync outcome.
func GetStatusStyle(status string) lipgloss.Style {
	switch status {
	case state.SessionRunning, state.OutcomeOK:
		return StatusRunning
	case state.SessionStarting:
		return StatusStarting
	case state.SessionStopped:
		return StatusStopped
	case state.SessionFinished:
		return StatusFinished
	case state.SessionFailed:
		return StatusFailed
	default:
		return NormalStyle
	}
}

// GetStatusIcon returns an icon for a session status or sync outcome.
func GetStatusIcon(status string) string {
	switch status {
	case state.SessionRunning:
		return "●"
	case state.OutcomeOK:
		return "✓"
	case state.SessionFailed:
		return "✗"
	case state.SessionStarting:
		return "◐"
	case state.SessionStopped:
		return "◌"
	case state.SessionFinished:
		return "○"
	default:
		return "?"
	}
}
