package tui

import (
	"fmt"
	"slices"

	tea "github.com/charmbracelet/bubbletea"
)

// modelFunc builds the interactive model for one read-only view.
type modelFunc func(viewType string, data any) tea.Model

var views = map[string]modelFunc{
	"inspect_checkpoint": func(vt string, data any) tea.Model { return NewInspectModel(vt, data) },
	"inspect_query":      func(vt string, data any) tea.Model { return NewInspectModel(vt, data) },
	"stats_metrics":      func(vt string, data any) tea.Model { return NewStatsModel(vt, data) },
}

// Run shows data full-screen until the user quits.
func Run(viewType string, data any) error {
	newModel, ok := views[viewType]
	if !ok {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
	_, err := tea.NewProgram(newModel(viewType, data), tea.WithAltScreen()).Run()
	return err
}

// IsTUISupported reports whether viewType has an interactive model.
func IsTUISupported(viewType string) bool {
	_, ok := views[viewType]
	return ok
}

// SupportedTUIViews lists the view types with an interactive model, sorted.
func SupportedTUIViews() []string {
	out := make([]string, 0, len(views))
	for vt := range views {
		out = append(out, vt)
	}
	slices.Sort(out)
	return out
}
