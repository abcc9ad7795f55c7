package gateway

import (
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/joacominatel/ciphersql/internal/database"
)

// Shape turns a driver result into ordered column names and display-safe
// row objects. Row order is kept as returned. When two columns share a name
// the later value wins in the row object.
func Shape(raw *database.RawResult) *database.QueryResult {
	if raw == nil {
		raw = &database.RawResult{}
	}

	columns := make([]string, len(raw.Fields))
	types := make([]string, len(raw.Fields))
	for i, f := range raw.Fields {
		columns[i] = f.Name
		types[i] = f.TypeName
	}

	rows := make([]map[string]any, 0, len(raw.Rows))
	for _, values := range raw.Rows {
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			var v any
			if i < len(values) {
				v = displayValue(values[i])
			}
			row[col] = v
		}
		rows = append(rows, row)
	}

	return &database.QueryResult{
		Columns:     columns,
		ColumnTypes: types,
		Rows:        rows,
		RowCount:    len(rows),
	}
}

// displayValue keeps JSON primitives and renders everything else as text.
// nil stays nil and is encoded as null.
func displayValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return x
	case float32:
		return finiteFloat(float64(x), 32)
	case float64:
		return finiteFloat(x, 64)
	case []byte:
		if utf8.Valid(x) {
			return string(x)
		}
		return `\x` + hex.EncodeToString(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case [16]byte:
		return uuid.UUID(x).String()
	case driver.Valuer:
		val, err := x.Value()
		if err != nil {
			return fmt.Sprint(x)
		}
		return displayValue(val)
	case fmt.Stringer:
		return x.String()
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}

// finiteFloat returns f, or its text form when JSON cannot encode it.
func finiteFloat(f float64, bits int) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, bits)
	}
	if bits == 32 {
		return float32(f)
	}
	return f
}
