package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/sluice/cli/reader"
)

// StatsModel renders one stats view full-screen.
type StatsModel struct {
	screen
	viewType string
	data     any
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{screen: newScreen(), viewType: viewType, data: data}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd := m.handle(msg)
	return m, cmd
}

// View implements tea.Model.
func (m StatsModel) View() string {
	var content string
	switch m.viewType {
	case "stats_metrics":
		content = m.renderStatsMetrics()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	return m.frame(content)
}

func (m StatsModel) renderStatsMetrics() string {
	data, ok := m.data.(*reader.MetricsSnapshot)
	if !ok {
		return "Invalid data type for stats_metrics"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Feed Metrics: %s/%s", data.Database, data.Feed)))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Snapshot:"), ValueStyle.Render(data.Ts)))
	if data.Policy != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Policy:"), ValueStyle.Render(data.Policy)))
	}
	if data.StorageBackend != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Storage:"), ValueStyle.Render(data.StorageBackend)))
	}

	sections := []struct {
		title string
		boxes []string
	}{
		{"Sessions", []string{
			statBox("Started", data.SessionsStarted, false),
			statBox("Connect Fail", data.ConnectFailures, true),
			statBox("Stream Err", data.StreamErrors, true),
			statBox("Reconnects", data.ReconnectsPlanned, false),
		}},
		{"Records", []string{
			statBox("Emitted", data.RecordsEmitted, false),
			statBox("Persisted", data.RecordsPersisted, false),
			statBox("Heartbeats", data.LinesSkipped, false),
			statBox("Decode Err", data.DecodeErrors, true),
		}},
		{"Pre-fetch", []string{
			statBox("Views", data.ViewsQueried, false),
			statBox("Rows", data.ViewRows, false),
			statBox("Failures", data.ViewFailures, true),
		}},
		{"Archive", []string{
			statBox("Writes", data.ArchiveWriteSuccess, false),
			statBox("Failures", data.ArchiveWriteFailure, true),
		}},
	}

	for _, s := range sections {
		b.WriteString("\n")
		b.WriteString(SectionStyle.Render(s.title))
		b.WriteString("\n")
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, s.boxes...))
		b.WriteString("\n")
	}

	return b.String()
}

// statBox renders one counter; failure counters turn red once non-zero.
func statBox(label string, value int64, failure bool) string {
	valueStr := StatValueStyle.Inherit(CountStyle(value, failure)).Render(fmt.Sprintf("%d", value))
	return StatBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Center, valueStr, StatLabelStyle.Render(label)))
}

// RenderStatsStatic renders stats data without full TUI (for fallback).
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
