// Package assignments renders the assignment list pane: each assignment
// expands into its question, its table and the table's columns.
package assignments

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/joacominatel/ciphersql/internal/assignment"
	"github.com/joacominatel/ciphersql/internal/database"
	"github.com/joacominatel/ciphersql/internal/tui/theme"
)

// NodeKind identifies the type of a tree node.
type NodeKind int

const (
	NodeAssignment NodeKind = iota
	NodeQuestion
	NodeTable
	NodeColumn
)

// TreeNode represents a single node in the assignment tree.
type TreeNode struct {
	Kind     NodeKind
	Name     string
	Children []*TreeNode
	Expanded bool
	Loaded   bool // whether children have been fetched

	Assignment *assignment.Assignment // owning assignment
	Table      string                 // table name (for tables/columns)
	DataType   string                 // column data type
	Primary    bool
}

// flatItem is a visible item in the flattened tree view.
type flatItem struct {
	node  *TreeNode
	depth int
}

// Model is the assignment list component.
type Model struct {
	roots   []*TreeNode
	items   []flatItem
	cursor  int
	active  string // ID of the selected assignment
	width   int
	height  int
	focused bool
	loading bool
	err     error
}

// New creates a new assignment list model.
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

// Focused returns whether the pane has focus.
func (m Model) Focused() bool {
	return m.focused
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(l bool) {
	m.loading = l
}

// SetError shows err in place of the list.
func (m *Model) SetError(err error) {
	m.err = err
	m.loading = false
}

// SetAssignments populates the tree.
func (m *Model) SetAssignments(list []assignment.Assignment) {
	m.roots = nil
	for i := range list {
		a := &list[i]
		node := &TreeNode{
			Kind:       NodeAssignment,
			Name:       a.Title,
			Assignment: a,
			Loaded:     true,
			Children: []*TreeNode{
				{Kind: NodeQuestion, Name: a.Question, Assignment: a},
				{Kind: NodeTable, Name: a.TableName, Table: a.TableName, Assignment: a},
			},
		}
		m.roots = append(m.roots, node)
	}
	m.err = nil
	m.loading = false
	m.flatten()
}

// SetColumns adds column nodes under every node for table.
func (m *Model) SetColumns(table string, columns []database.Column) {
	for _, root := range m.roots {
		for _, child := range root.Children {
			if child.Kind != NodeTable || child.Table != table {
				continue
			}
			child.Children = nil
			for _, col := range columns {
				child.Children = append(child.Children, &TreeNode{
					Kind:       NodeColumn,
					Name:       col.Name,
					Table:      table,
					DataType:   col.DataType,
					Primary:    col.IsPrimary,
					Assignment: child.Assignment,
				})
			}
			child.Loaded = true
		}
	}
	m.flatten()
}

// Selected returns the assignment under the cursor, if any.
func (m Model) Selected() (*assignment.Assignment, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return nil, false
	}
	a := m.items[m.cursor].node.Assignment
	return a, a != nil
}

// Count returns the number of assignments loaded.
func (m Model) Count() int {
	return len(m.roots)
}

// flatten rebuilds the flat item list from the tree.
func (m *Model) flatten() {
	m.items = nil
	for _, root := range m.roots {
		m.flattenNode(root, 0)
	}
	if m.cursor >= len(m.items) {
		m.cursor = max(0, len(m.items)-1)
	}
}

func (m *Model) flattenNode(node *TreeNode, depth int) {
	m.items = append(m.items, flatItem{node: node, depth: depth})
	if node.Expanded {
		for _, child := range node.Children {
			m.flattenNode(child, depth+1)
		}
	}
}

// Init returns the initial command (none).
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the pane.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case "right", "l":
			return m, m.expand()
		case "left", "h":
			m.collapse()
		case "enter":
			return m, m.activate()
		case "s":
			return m, m.quickQuery()
		}
	}

	return m, nil
}

// activate toggles the node and, on an assignment, makes it current.
func (m *Model) activate() tea.Cmd {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return nil
	}
	node := m.items[m.cursor].node
	if node.Kind != NodeAssignment {
		return m.expand()
	}

	node.Expanded = !node.Expanded
	m.flatten()
	m.active = node.Assignment.ID
	a := *node.Assignment
	return func() tea.Msg { return SelectedMsg{Assignment: a} }
}

func (m *Model) expand() tea.Cmd {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return nil
	}
	node := m.items[m.cursor].node

	switch node.Kind {
	case NodeQuestion, NodeColumn:
		return nil
	}

	if node.Expanded {
		node.Expanded = false
		m.flatten()
		return nil
	}

	node.Expanded = true
	m.flatten()

	if node.Kind == NodeTable && !node.Loaded {
		table := node.Table
		return func() tea.Msg { return RequestColumnsMsg{Table: table} }
	}
	return nil
}

func (m *Model) collapse() {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return
	}
	if node := m.items[m.cursor].node; node.Expanded {
		node.Expanded = false
		m.flatten()
	}
}

func (m *Model) quickQuery() tea.Cmd {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return nil
	}
	node := m.items[m.cursor].node
	table := node.Table
	if table == "" && node.Assignment != nil {
		table = node.Assignment.TableName
	}
	if table == "" {
		return nil
	}
	query := fmt.Sprintf("SELECT * FROM %s LIMIT 100", table)
	return func() tea.Msg { return QuickQueryMsg{Query: query} }
}

// SelectedMsg is sent when the student picks an assignment to work on.
type SelectedMsg struct {
	Assignment assignment.Assignment
}

// RequestColumnsMsg is sent when a table is expanded and needs column data.
type RequestColumnsMsg struct {
	Table string
}

// QuickQueryMsg asks the app to run a preview query.
type QuickQueryMsg struct {
	Query string
}

// View renders the pane.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Foreground(theme.ColorPrimary).
		Bold(true).
		Padding(0, 1)

	title := titleStyle.Render("Assignments")

	switch {
	case m.loading:
		return title + "\n" + theme.StyleMuted.Render("  Loading...")
	case m.err != nil:
		return title + "\n" + theme.StyleError.Render("  "+m.err.Error())
	case len(m.roots) == 0:
		return title + "\n" + theme.StyleMuted.Render("  No assignments. Run ciphersql seed")
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")

	visibleHeight := m.height - 2
	if visibleHeight < 1 {
		visibleHeight = 1
	}

	scrollOffset := 0
	if m.cursor >= visibleHeight {
		scrollOffset = m.cursor - visibleHeight + 1
	}

	for i := scrollOffset; i < len(m.items) && i < scrollOffset+visibleHeight; i++ {
		b.WriteString(m.renderNode(m.items[i], i == m.cursor))
		if i < scrollOffset+visibleHeight-1 {
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (m Model) renderNode(item flatItem, selected bool) string {
	node := item.node
	indent := strings.Repeat("  ", item.depth)

	var icon, name string
	switch node.Kind {
	case NodeAssignment:
		icon = "▶ "
		if node.Expanded {
			icon = "▼ "
		}
		name = node.Name + " " + difficultyStyle(node.Assignment.Difficulty).Render(string(node.Assignment.Difficulty))
		if node.Assignment.ID == m.active {
			name = "● " + name
		}
	case NodeQuestion:
		icon = "? "
		name = theme.StyleMuted.Render(node.Name)
	case NodeTable:
		icon = "▶ "
		if node.Expanded {
			icon = "▼ "
		}
		name = "table " + node.Name
	case NodeColumn:
		icon = "  "
		if node.Primary {
			icon = "⚷ "
		}
		name = node.Name
		if node.DataType != "" {
			name = fmt.Sprintf("%s %s", node.Name, theme.StyleMuted.Render(node.DataType))
		}
	}

	line := indent + icon + name
	if m.width > 4 {
		line = ansi.Truncate(line, m.width-2, "..")
	}

	if selected {
		return lipgloss.NewStyle().
			Foreground(theme.ColorHighlight).
			Bold(true).
			Render(line)
	}
	return line
}

func difficultyStyle(d assignment.Difficulty) lipgloss.Style {
	switch d {
	case assignment.Easy:
		return lipgloss.NewStyle().Foreground(theme.ColorSuccess)
	case assignment.Medium:
		return lipgloss.NewStyle().Foreground(theme.ColorWarning)
	default:
		return lipgloss.NewStyle().Foreground(theme.ColorError)
	}
}
