package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joacominatel/ciphersql/internal/assignment"
	"github.com/joacominatel/ciphersql/internal/gateway"
)

func render(w io.Writer, resp *gateway.Response, format string, graded bool) error {
	switch format {
	case "json":
		return renderJSON(w, resp)
	case "csv":
		return renderCSV(w, resp)
	case "table", "":
		return renderTable(w, resp, graded)
	default:
		return fmt.Errorf("unknown format %q (want table, json or csv)", format)
	}
}

func renderTable(w io.Writer, resp *gateway.Response, graded bool) error {
	if len(resp.Columns) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)

		header := make(table.Row, len(resp.Columns))
		for i, col := range resp.Columns {
			header[i] = col
		}
		t.AppendHeader(header)

		for _, r := range resp.Rows {
			row := make(table.Row, len(resp.Columns))
			for i, col := range resp.Columns {
				row[i] = formatValue(r[col])
			}
			t.AppendRow(row)
		}
		t.Render()
	}

	summary := fmt.Sprintf("(%d rows, %s)", resp.RowCount, resp.Duration.Round(time.Millisecond))
	if graded {
		if resp.IsCorrect {
			summary += " correct"
		} else {
			summary += " incorrect: columns do not match"
		}
	}
	_, err := fmt.Fprintln(w, summary)
	return err
}

// renderJSON writes the same body POST /api/execute returns.
func renderJSON(w io.Writer, resp *gateway.Response) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func renderCSV(w io.Writer, resp *gateway.Response) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(resp.Columns); err != nil {
		return err
	}
	record := make([]string, len(resp.Columns))
	for _, r := range resp.Rows {
		for i, col := range resp.Columns {
			record[i] = formatValue(r[col])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func renderAssignments(w io.Writer, list []assignment.Assignment) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Title", "Difficulty", "Table", "Expected columns"})
	for _, a := range list {
		t.AppendRow(table.Row{a.ID, a.Title, a.Difficulty, a.TableName, fmt.Sprint(a.ExpectedColumns)})
	}
	t.Render()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
