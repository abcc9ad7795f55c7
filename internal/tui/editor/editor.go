// Package editor is the SQL input pane of the practice console.
package editor

import (
	"slices"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/ciphersql/internal/tui/theme"
)

// RunMsg is sent when the student submits the query.
type RunMsg struct {
	Query string
}

// HintMsg is sent when the student asks for a hint on the current query.
type HintMsg struct {
	Query string
}

// keywords are uppercased by FormatKeywords.
var keywords = map[string]bool{}

func init() {
	for _, k := range strings.Fields(`
		select from where and or not in is null like ilike between exists
		join inner outer left right full cross natural on using
		order by group having limit offset fetch first rows only
		as distinct all any some union intersect except with recursive
		count sum avg min max coalesce nullif cast extract round
		case when then else end asc desc nulls true false over partition
		filter lateral values interval date time timestamp`) {
		keywords[k] = true
	}
}

// tableContext lists the keywords after which a table name is expected.
var tableContext = []string{"FROM", "JOIN"}

// Model is the SQL editor component.
type Model struct {
	textarea textarea.Model
	width    int
	height   int
	focused  bool
	title    string

	// Completion state
	tables      []string
	columns     []string
	completing  bool
	completions []string
	compIndex   int
}

// New creates a new editor model.
func New() Model {
	ta := textarea.New()
	ta.Placeholder = "SELECT ... FROM ..."
	ta.ShowLineNumbers = true
	ta.CharLimit = 0
	ta.Prompt = "┃ "
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle()
	ta.BlurredStyle.Base = lipgloss.NewStyle()
	ta.FocusedStyle.Placeholder = theme.StyleMuted
	ta.BlurredStyle.Placeholder = theme.StyleMuted
	ta.FocusedStyle.Prompt = lipgloss.NewStyle().Foreground(theme.ColorPrimary)
	ta.BlurredStyle.Prompt = lipgloss.NewStyle().Foreground(theme.ColorBorder)

	return Model{textarea: ta, title: "Query"}
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.textarea.SetWidth(w - 2)
	m.textarea.SetHeight(h - 2)
}

// SetFocused sets the focus state.
func (m *Model) SetFocused(f bool) {
	m.focused = f
	if f {
		m.textarea.Focus()
	} else {
		m.textarea.Blur()
	}
}

// Focused returns whether the editor has focus.
func (m Model) Focused() bool {
	return m.focused
}

// Value returns the current editor content.
func (m Model) Value() string {
	return m.textarea.Value()
}

// SetQuery replaces the editor content.
func (m *Model) SetQuery(query string) {
	m.textarea.SetValue(query)
}

// SetTitle labels the pane, usually with the current assignment.
func (m *Model) SetTitle(title string) {
	m.title = title
}

// SetCompletions sets the table and column names offered on Tab.
func (m *Model) SetCompletions(tables, columns []string) {
	m.tables = tables
	m.columns = columns
}

// CompletionActive reports whether Tab is cycling candidates.
func (m Model) CompletionActive() bool {
	return m.completing
}

// CanComplete reports whether Tab would complete the word at the cursor.
func (m Model) CanComplete() bool {
	return len(Candidates(m.textarea.Value(), m.tables, m.columns)) > 0
}

// Clear empties the editor.
func (m *Model) Clear() {
	m.textarea.Reset()
	m.cancelCompletion()
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update handles messages for the editor.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		key := msg.String()

		switch key {
		case "ctrl+e", "f5":
			query := strings.TrimSpace(m.textarea.Value())
			if query == "" {
				return m, nil
			}
			m.cancelCompletion()
			return m, func() tea.Msg { return RunMsg{Query: query} }

		case "ctrl+g":
			query := strings.TrimSpace(m.textarea.Value())
			return m, func() tea.Msg { return HintMsg{Query: query} }

		case "ctrl+k":
			m.Clear()
			return m, nil

		case "ctrl+l":
			m.textarea.SetValue(FormatKeywords(m.textarea.Value()))
			return m, nil

		case "tab":
			if m.complete() {
				return m, nil
			}

		case "esc":
			if m.completing {
				m.cancelCompletion()
				return m, nil
			}
		}

		if m.completing && key != "tab" {
			m.cancelCompletion()
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// FormatKeywords uppercases SQL keywords outside quotes and line comments.
func FormatKeywords(sql string) string {
	var out, word strings.Builder
	flush := func() {
		if word.Len() == 0 {
			return
		}
		w := word.String()
		if keywords[strings.ToLower(w)] {
			w = strings.ToUpper(w)
		}
		out.WriteString(w)
		word.Reset()
	}

	runes := []rune(sql)
	var quote rune
	comment := false
	for i, ch := range runes {
		switch {
		case comment:
			out.WriteRune(ch)
			if ch == '\n' {
				comment = false
			}
		case quote != 0:
			out.WriteRune(ch)
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			flush()
			quote = ch
			out.WriteRune(ch)
		case ch == '-' && i+1 < len(runes) && runes[i+1] == '-':
			flush()
			comment = true
			out.WriteRune(ch)
		case unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_':
			word.WriteRune(ch)
		default:
			flush()
			out.WriteRune(ch)
		}
	}
	flush()
	return out.String()
}

// Candidates returns the completions for the word ending text: table names
// right after FROM or JOIN, column names elsewhere.
func Candidates(text string, tables, columns []string) []string {
	partial := lastWord(text)
	if partial == "" {
		return nil
	}

	pool := columns
	before := strings.Fields(strings.ToUpper(strings.TrimSuffix(strings.TrimRight(text, " \t\r\n"), partial)))
	if len(before) > 0 && slices.Contains(tableContext, before[len(before)-1]) {
		pool = tables
	}

	lower := strings.ToLower(partial)
	var out []string
	for _, name := range pool {
		if strings.HasPrefix(strings.ToLower(name), lower) && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

// complete starts or advances completion. It returns false when there is
// nothing to complete so Tab reaches the textarea.
func (m *Model) complete() bool {
	if m.completing && len(m.completions) > 0 {
		m.compIndex = (m.compIndex + 1) % len(m.completions)
		m.applyCompletion()
		return true
	}

	matches := Candidates(m.textarea.Value(), m.tables, m.columns)
	if len(matches) == 0 {
		return false
	}

	m.completing = true
	m.completions = matches
	m.compIndex = 0
	m.applyCompletion()
	return true
}

// applyCompletion replaces the word at the end with the active candidate.
func (m *Model) applyCompletion() {
	val := strings.TrimRight(m.textarea.Value(), " \t\r\n")
	base := strings.TrimSuffix(val, lastWord(val))
	m.textarea.SetValue(base + m.completions[m.compIndex])
}

func (m *Model) cancelCompletion() {
	m.completing = false
	m.completions = nil
	m.compIndex = 0
}

// lastWord returns the identifier-like token at the end of s.
func lastWord(s string) string {
	s = strings.TrimRight(s, " \t\r\n")
	i := len(s)
	for i > 0 && isIdentByte(s[i-1]) {
		i--
	}
	return s[i:]
}

func isIdentByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') || c == '_' || c == '.'
}

// View renders the editor.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Foreground(theme.ColorPrimary).
		Bold(true).
		Padding(0, 1).
		Render(m.title)

	var completionLine string
	if m.completing && len(m.completions) > 1 {
		parts := make([]string, 0, len(m.completions))
		for i, c := range m.completions {
			if i == m.compIndex {
				parts = append(parts, lipgloss.NewStyle().Foreground(theme.ColorHighlight).Bold(true).Render(c))
			} else {
				parts = append(parts, theme.StyleMuted.Render(c))
			}
		}
		completionLine = "\n " + theme.StyleMuted.Render("Tab: ") + strings.Join(parts, " │ ")
	}

	return title + "\n" + m.textarea.View() + completionLine
}
