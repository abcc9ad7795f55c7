// Package results shows the outcome of a submitted query: the result grid,
// its grading badge, or the reason the gateway refused or failed it.
package results

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/joacominatel/ciphersql/internal/gateway"
	"github.com/joacominatel/ciphersql/internal/tui/theme"
)

const maxColWidth = 40

// Model is the query results component.
type Model struct {
	columns   []string
	types     []string   // server type names, nil when unknown
	cells     [][]string // display text, row-major in column order
	resp      *gateway.Response
	graded    bool
	err       error
	lastQuery string
	width     int
	height    int
	focused   bool
	loading   bool
	cursorX   int
	cursorY   int
	scrollY   int
	colStart  int

	colWidths     []int
	statusMessage string
}

// New creates a new results model.
func New() Model {
	return Model{}
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused sets the focus state.
func (m *Model) SetFocused(f bool) {
	m.focused = f
}

// Focused returns whether the results pane has focus.
func (m Model) Focused() bool {
	return m.focused
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(l bool) {
	m.loading = l
}

// SetResult shows resp. graded tells whether an expected column set was
// supplied, so the badge is only drawn for graded runs.
func (m *Model) SetResult(query string, resp *gateway.Response, graded bool) {
	m.resp = resp
	m.graded = graded
	m.err = nil
	m.lastQuery = query
	m.loading = false
	m.cursorX, m.cursorY, m.scrollY, m.colStart = 0, 0, 0, 0

	m.columns = resp.Columns
	m.types = nil
	for _, t := range resp.ColumnTypes {
		if t != "" {
			m.types = resp.ColumnTypes
			break
		}
	}
	m.cells = make([][]string, len(resp.Rows))
	for i, row := range resp.Rows {
		line := make([]string, len(resp.Columns))
		for j, col := range resp.Columns {
			line[j] = CellText(row[col])
		}
		m.cells[i] = line
	}
	m.calculateColumnWidths()
}

// SetError shows a failed run.
func (m *Model) SetError(query string, err error) {
	m.err = err
	m.resp = nil
	m.columns = nil
	m.types = nil
	m.cells = nil
	m.lastQuery = query
	m.loading = false
}

// Response returns the last successful result, if any.
func (m Model) Response() *gateway.Response {
	return m.resp
}

// TakeStatus returns and clears the pending status message.
func (m *Model) TakeStatus() string {
	s := m.statusMessage
	m.statusMessage = ""
	return s
}

// CellText renders a shaped value for the grid.
func CellText(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}

func (m *Model) calculateColumnWidths() {
	m.colWidths = make([]int, len(m.columns))
	for i, col := range m.columns {
		m.colWidths[i] = lipgloss.Width(col)
		if i < len(m.types) {
			m.colWidths[i] = max(m.colWidths[i], lipgloss.Width(m.types[i]))
		}
	}
	for _, row := range m.cells {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > m.colWidths[i] {
				m.colWidths[i] = w
			}
		}
	}
	for i := range m.colWidths {
		m.colWidths[i] = min(max(m.colWidths[i], 1), maxColWidth)
	}
}

// Init returns the initial command (none).
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the results pane.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "up", "k":
		m.moveRow(-1)
	case "down", "j":
		m.moveRow(1)
	case "pgup":
		m.moveRow(-m.pageRows())
	case "pgdown":
		m.moveRow(m.pageRows())
	case "left", "h":
		if m.cursorX > 0 {
			m.cursorX--
		}
		if m.cursorX < m.colStart {
			m.colStart = m.cursorX
		}
	case "right", "l":
		if m.cursorX < len(m.columns)-1 {
			m.cursorX++
		}
		m.keepColumnVisible()
	case "c", "y":
		m.doCopyCell()
	case "r":
		m.doCopyRowJSON()
	case "R":
		m.doCopyRowCSV()
	case "t":
		m.doCopyRowText()
	case "f":
		return m, m.doFilterByValue()
	case "e":
		return m, m.exportCSVCmd()
	case "E":
		return m, m.exportJSONCmd()
	}

	return m, nil
}

func (m *Model) moveRow(delta int) {
	if len(m.cells) == 0 {
		return
	}
	m.cursorY = min(max(m.cursorY+delta, 0), len(m.cells)-1)
	page := m.pageRows()
	if m.cursorY < m.scrollY {
		m.scrollY = m.cursorY
	}
	if m.cursorY >= m.scrollY+page {
		m.scrollY = m.cursorY - page + 1
	}
}

func (m Model) pageRows() int {
	chrome := 5
	if m.types != nil {
		chrome++
	}
	return max(m.height-chrome, 1)
}

// keepColumnVisible moves colStart right until cursorX fits in the width.
func (m *Model) keepColumnVisible() {
	for m.colStart < m.cursorX && m.visibleWidth(m.colStart, m.cursorX) > m.width-4 {
		m.colStart++
	}
}

func (m Model) visibleWidth(from, to int) int {
	w := 2
	for i := from; i <= to && i < len(m.colWidths); i++ {
		w += m.colWidths[i] + 3
	}
	return w
}

// View renders the results pane.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Foreground(theme.ColorPrimary).
		Bold(true).
		Padding(0, 1)
	title := titleStyle.Render("Results")

	switch {
	case m.loading:
		return title + "\n" + theme.StyleMuted.Render("  Running query...")
	case m.err != nil:
		return title + "\n" + renderError(m.err)
	case m.resp == nil:
		return title + "\n" + theme.StyleMuted.Render("  Run a query with Ctrl+E to see results")
	}

	stats := fmt.Sprintf("%d row(s) │ %s", m.resp.RowCount, m.resp.Duration.Round(time.Millisecond))
	header := title + "  " + theme.StyleMuted.Render(stats)
	if m.graded {
		if m.resp.IsCorrect {
			header += "  " + theme.StyleCorrect.Render("✓ correct")
		} else {
			header += "  " + theme.StyleIncorrect.Render("✗ columns do not match")
		}
	}

	if len(m.columns) == 0 {
		return header + "\n" + theme.StyleSuccess.Render("  Query returned no columns")
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(m.renderRow(headerRow, m.columns))
	b.WriteString("\n")
	if m.types != nil {
		b.WriteString(m.renderRow(typeRow, m.types))
		b.WriteString("\n")
	}
	b.WriteString(m.renderSeparator())

	page := m.pageRows()
	for i := m.scrollY; i < len(m.cells) && i < m.scrollY+page; i++ {
		b.WriteString("\n")
		b.WriteString(m.renderRow(i, m.cells[i]))
	}

	return b.String()
}

func renderError(err error) string {
	var policy *gateway.ErrPolicy
	switch gateway.Classify(err) {
	case gateway.ClassPolicy:
		errors.As(err, &policy)
		return theme.StyleWarning.Render("  "+gateway.PolicyMessage) + "\n" +
			theme.StyleMuted.Render("  reason: "+policy.Reason)
	case gateway.ClassTimedOut, gateway.ClassPoolExhausted:
		return theme.StyleWarning.Render("  " + err.Error())
	default:
		return theme.StyleError.Render("  Error: " + err.Error())
	}
}

const (
	headerRow = -1
	typeRow   = -2
)

// renderRow draws row i of the grid, or the header and type rows.
func (m Model) renderRow(i int, cells []string) string {
	var parts []string
	used := 2
	for j := m.colStart; j < len(cells); j++ {
		width := m.colWidths[j]
		if used+width > m.width && j > m.colStart {
			break
		}
		used += width + 3

		display := fit(cells[j], width)
		style := lipgloss.NewStyle()
		switch {
		case i == headerRow:
			style = style.Bold(true).Foreground(theme.ColorPrimary)
		case i == typeRow:
			style = theme.StyleMuted
		case i == m.cursorY && j == m.cursorX && m.focused:
			style = style.Reverse(true)
		case i == m.cursorY:
			style = style.Foreground(theme.ColorHighlight)
		case cells[j] == "NULL":
			style = theme.StyleMuted
		}
		parts = append(parts, style.Render(display))
	}
	return "  " + strings.Join(parts, " │ ")
}

func (m Model) renderSeparator() string {
	var parts []string
	for j := m.colStart; j < len(m.colWidths); j++ {
		parts = append(parts, strings.Repeat("─", m.colWidths[j]))
	}
	return "  " + lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(strings.Join(parts, "─┼─"))
}

// fit truncates or pads s to exactly width display cells.
func fit(s string, width int) string {
	s = ansi.Truncate(strings.ReplaceAll(s, "\n", " "), width, "…")
	if pad := width - ansi.StringWidth(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}
