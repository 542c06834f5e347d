package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/sluice/cli/reader"
)

// InspectModel renders one inspect view full-screen.
type InspectModel struct {
	screen
	viewType string
	data     any
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	return InspectModel{screen: newScreen(), viewType: viewType, data: data}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd := m.handle(msg)
	return m, cmd
}

// View implements tea.Model.
func (m InspectModel) View() string {
	var content string
	switch m.viewType {
	case "inspect_checkpoint":
		content = m.renderInspectCheckpoint()
	case "inspect_query":
		content = m.renderInspectQuery()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	return m.frame(content)
}

func (m InspectModel) renderInspectCheckpoint() string {
	data, ok := m.data.(*reader.CheckpointInfo)
	if !ok {
		return "Invalid data type for inspect_checkpoint"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Checkpoint"))
	b.WriteString("\n\n")

	rows := []struct {
		label string
		value string
	}{
		{"Path", ValueStyle.Render(data.Path)},
		{"Feed", ValueStyle.Render(data.Feed)},
		{"Database", ValueStyle.Render(data.Database)},
		{"Cursor", CursorStyle.Render(data.Cursor)},
		{"Records", ValueStyle.Render(fmt.Sprintf("%d", data.Records))},
		{"Updated At", ValueStyle.Render(data.UpdatedAt.UTC().Format("2006-01-02 15:04:05"))},
		{"Age", AgeStyle(data.Age).Render(data.Age)},
	}
	for _, row := range rows {
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render(row.label+":"), row.value))
	}

	return BoxStyle.Render(b.String())
}

func (m InspectModel) renderInspectQuery() string {
	data, ok := m.data.(*reader.QueryResult)
	if !ok {
		return "Invalid data type for inspect_query"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Pre-fetch: %s", data.Database)))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Cursor:"), CursorStyle.Render(data.Cursor)))
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Views:"), ValueStyle.Render(fmt.Sprintf("%d", len(data.Views)))))

	if len(data.Views) > 0 {
		b.WriteString("\n")
		for _, v := range data.Views {
			b.WriteString(fmt.Sprintf("  • %s %s %s\n",
				ValueStyle.Render(v.Name),
				CountStyle(int64(v.Rows), false).Render(fmt.Sprintf("%d rows", v.Rows)),
				CursorStyle.Render("@ "+v.UpdateSeq)))
		}
	}

	return BoxStyle.Render(b.String())
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
