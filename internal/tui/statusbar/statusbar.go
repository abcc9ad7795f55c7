// Package statusbar renders the bottom line of the practice console.
package statusbar

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/ciphersql/internal/tui/theme"
)

const defaultHints = "Ctrl+E: Run │ Ctrl+G: Hint │ Tab: Switch pane │ ?: Help │ q: Quit"

// Model is the status bar component.
type Model struct {
	width      int
	connected  bool
	dbName     string
	assignment string
	activePane string
	message    string
}

// New creates a new status bar model.
func New() Model {
	return Model{activePane: "assignments"}
}

// SetWidth updates the component width.
func (m *Model) SetWidth(w int) {
	m.width = w
}

// SetConnected updates the connection indicator.
func (m *Model) SetConnected(connected bool, dbName string) {
	m.connected = connected
	m.dbName = dbName
}

// SetAssignment shows the title of the assignment being worked on.
func (m *Model) SetAssignment(title string) {
	m.assignment = title
}

// SetActivePane updates the displayed active pane name.
func (m *Model) SetActivePane(pane string) {
	m.activePane = pane
}

// SetMessage sets a temporary status message. An empty message restores
// the key hints.
func (m *Model) SetMessage(msg string) {
	m.message = msg
}

// Message returns the current status message.
func (m Model) Message() string {
	return m.message
}

// View renders the status bar.
func (m Model) View() string {
	style := theme.StyleStatusBar.Width(m.width)

	var left string
	if m.connected {
		left = lipgloss.NewStyle().Foreground(theme.ColorSuccess).Render("●") + " " + m.dbName
	} else {
		left = lipgloss.NewStyle().Foreground(theme.ColorError).Render("●") + " disconnected"
	}
	if m.assignment != "" {
		left += " │ " + m.assignment
	}
	left += " │ " + m.activePane

	right := defaultHints
	if m.message != "" {
		right = m.message
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 4
	if padding < 1 {
		padding = 1
	}

	return style.Render(left + strings.Repeat(" ", padding) + right)
}
