package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

func (k keyMap) ShortHelp() []key.Binding  { return []key.Binding{k.Quit} }
func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// screen holds the state every read-only view shares: the window size and
// whether the user asked to leave.
type screen struct {
	width    int
	height   int
	quitting bool
	help     help.Model
}

func newScreen() screen {
	return screen{help: help.New()}
}

// handle applies window and key messages.
func (s *screen) handle(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width, s.height = msg.Width, msg.Height
		s.help.Width = msg.Width
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			s.quitting = true
			return tea.Quit
		}
	}
	return nil
}

// frame appends the key help below content. A quitting screen renders
// nothing so the terminal is left clean.
func (s screen) frame(content string) string {
	if s.quitting {
		return ""
	}
	return content + "\n" + HelpStyle.Render(s.help.View(keys))
}
