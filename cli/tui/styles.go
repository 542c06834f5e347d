// Package tui provides Bubble Tea TUI components for the sluice CLI.
//
// TUI rules:
//   - TUI is opt-in only (--tui flag)
//   - TUI is read-only (inspect, query, stats commands)
//   - TUI renders the same payloads as the json/table/yaml output
package tui

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

// staleAfter is the checkpoint age past which the age is highlighted.
const staleAfter = time.Hour

var (
	accentColor = lipgloss.Color("#0EA5E9") // sky
	okColor     = lipgloss.Color("#22C55E")
	staleColor  = lipgloss.Color("#EAB308")
	failColor   = lipgloss.Color("#DC2626")
	dimColor    = lipgloss.Color("#64748B")
	textColor   = lipgloss.Color("#F8FAFC")
)

var (
	// TitleStyle renders panel titles.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor).MarginBottom(1)

	// LabelStyle renders field labels in a fixed-width column.
	LabelStyle = lipgloss.NewStyle().Foreground(dimColor).Width(14)

	ValueStyle = lipgloss.NewStyle().Foreground(textColor)

	// CursorStyle renders sequence markers.
	CursorStyle = lipgloss.NewStyle().Foreground(accentColor)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dimColor).
			Padding(1, 2)

	HelpStyle = lipgloss.NewStyle().Foreground(dimColor).MarginTop(1)

	// SectionStyle renders the heading above a row of stat boxes.
	SectionStyle = lipgloss.NewStyle().Bold(true).Foreground(dimColor).MarginTop(1)

	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1).
			Width(18).
			Align(lipgloss.Center)

	StatLabelStyle = lipgloss.NewStyle().Foreground(dimColor).Align(lipgloss.Center)

	StatValueStyle = lipgloss.NewStyle().Bold(true).Foreground(textColor).Align(lipgloss.Center)

	okStyle    = lipgloss.NewStyle().Foreground(okColor)
	staleStyle = lipgloss.NewStyle().Foreground(staleColor)
	failStyle  = lipgloss.NewStyle().Foreground(failColor)
)

// CountStyle returns the style for a counter. Failure counters render
// in the failure color once they are non-zero.
func CountStyle(n int64, failure bool) lipgloss.Style {
	switch {
	case failure && n > 0:
		return failStyle
	case n > 0:
		return okStyle
	default:
		return ValueStyle
	}
}

// AgeStyle highlights a checkpoint age (as produced by time.Duration.String)
// older than an hour. Unparseable ages render plain.
func AgeStyle(age string) lipgloss.Style {
	d, err := time.ParseDuration(age)
	if err != nil || d < staleAfter {
		return ValueStyle
	}
	return staleStyle
}
