package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

// exportPrefix names files written by the export actions.
const exportPrefix = "ciphersql_export_"

func (m Model) cellValue() (string, bool) {
	if m.cursorY < 0 || m.cursorY >= len(m.cells) {
		return "", false
	}
	row := m.cells[m.cursorY]
	if m.cursorX < 0 || m.cursorX >= len(row) {
		return "", false
	}
	return row[m.cursorX], true
}

func (m Model) columnName() string {
	if m.cursorX < 0 || m.cursorX >= len(m.columns) {
		return ""
	}
	return m.columns[m.cursorX]
}

func (m Model) hasRow() bool {
	return m.resp != nil && m.cursorY >= 0 && m.cursorY < len(m.resp.Rows)
}

func (m *Model) copyText(text, done string) {
	if err := clipboard.WriteAll(text); err != nil {
		m.statusMessage = "Copy failed: " + err.Error()
		return
	}
	m.statusMessage = done
}

func (m *Model) doCopyCell() {
	val, ok := m.cellValue()
	if !ok {
		m.statusMessage = "Nothing to copy"
		return
	}
	m.copyText(val, "Copied: "+truncateStatus(val, 40))
}

func (m *Model) doCopyRowJSON() {
	if !m.hasRow() {
		m.statusMessage = "No row to copy"
		return
	}
	m.copyText(rowToJSON(m.columns, m.resp.Rows[m.cursorY]), "Copied row as JSON")
}

func (m *Model) doCopyRowCSV() {
	if !m.hasRow() {
		m.statusMessage = "No row to copy"
		return
	}
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write(m.columns)
	_ = w.Write(m.cells[m.cursorY])
	w.Flush()
	m.copyText(b.String(), "Copied row as CSV")
}

func (m *Model) doCopyRowText() {
	if !m.hasRow() {
		m.statusMessage = "No row to copy"
		return
	}
	m.copyText(strings.Join(m.cells[m.cursorY], "\t"), "Copied row as text")
}

// doFilterByValue drafts a SELECT narrowed to the value under the cursor
// and hands it to the editor. It is never run automatically.
func (m *Model) doFilterByValue() tea.Cmd {
	col := m.columnName()
	val, ok := m.cellValue()
	table := extractTableName(m.lastQuery)
	if col == "" || !ok || table == "" {
		m.statusMessage = "Cannot filter: no cell selected"
		return nil
	}

	var condition string
	if m.resp.Rows[m.cursorY][col] == nil {
		condition = col + " IS NULL"
	} else {
		condition = fmt.Sprintf("%s = '%s'", col, strings.ReplaceAll(val, "'", "''"))
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s", table, condition)

	return func() tea.Msg {
		return SetEditorQueryMsg{Query: query}
	}
}

func (m Model) exportJSONCmd() tea.Cmd {
	if m.resp == nil {
		return nil
	}
	columns, rows := m.columns, m.resp.Rows
	return func() tea.Msg {
		filename := exportName("json")

		var b strings.Builder
		b.WriteString("[\n")
		for i, row := range rows {
			if i > 0 {
				b.WriteString(",\n")
			}
			b.WriteString("  ")
			b.WriteString(rowToJSON(columns, row))
		}
		b.WriteString("\n]\n")

		if err := os.WriteFile(filename, []byte(b.String()), 0o644); err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		return StatusNotifyMsg{Message: fmt.Sprintf("Exported %d rows to %s", len(rows), filename)}
	}
}

func (m Model) exportCSVCmd() tea.Cmd {
	if m.resp == nil {
		return nil
	}
	columns, cells := m.columns, m.cells
	return func() tea.Msg {
		filename := exportName("csv")

		f, err := os.Create(filename)
		if err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		defer f.Close()

		if err := WriteCSV(f, columns, cells); err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		return StatusNotifyMsg{Message: fmt.Sprintf("Exported %d rows to %s", len(cells), filename)}
	}
}

func exportName(ext string) string {
	return exportPrefix + time.Now().Format("20060102_150405") + "." + ext
}

// WriteCSV writes a header line and one record per row.
func WriteCSV(w io.Writer, columns []string, cells [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	for _, row := range cells {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func extractTableName(query string) string {
	tokens := strings.Fields(query)
	for i, tok := range tokens {
		if strings.EqualFold(tok, "FROM") && i+1 < len(tokens) {
			if name := strings.TrimRight(tokens[i+1], ";,()"); name != "" {
				return name
			}
		}
	}
	return ""
}

// rowToJSON keeps column order, which map marshaling would not.
func rowToJSON(columns []string, row map[string]any) string {
	var b strings.Builder
	b.WriteString("{")
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		key, _ := json.Marshal(col)
		b.Write(key)
		b.WriteString(": ")
		val, err := json.Marshal(row[col])
		if err != nil {
			val = []byte("null")
		}
		b.Write(val)
	}
	b.WriteString("}")
	return b.String()
}

func truncateStatus(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
