package database

import "time"

// Column describes one column of a sandbox table.
type Column struct {
	Name       string
	DataType   string
	IsNullable bool
	IsPrimary  bool
}

// Field describes one column of a result set as reported by the driver.
type Field struct {
	Name     string
	TypeName string
}

// RawResult is a result set exactly as the driver produced it.
// Values keep their driver-native Go types.
type RawResult struct {
	Fields []Field
	Rows   [][]any
}

// QueryResult holds the display-safe form of a query result.
type QueryResult struct {
	Columns     []string         `json:"columns"`
	ColumnTypes []string         `json:"-"`
	Rows        []map[string]any `json:"rows"`
	RowCount    int              `json:"rowCount"`
	Duration    time.Duration    `json:"-"`
}
