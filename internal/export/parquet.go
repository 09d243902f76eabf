package export

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/insightdeck/insightdeck/internal/warehouse"
)

type EncodeResult struct {
	Data        []byte
	RecordCount int64
	// Columns are the parquet column names in result order.
	Columns []string
}

// EncodeParquet writes result as a single parquet file. Numeric columns become
// optional DOUBLE and every other column optional STRING.
func EncodeParquet(result warehouse.TableResult) (EncodeResult, error) {
	if len(result.Columns) == 0 {
		return EncodeResult{}, fmt.Errorf("result has no columns")
	}

	names := columnNames(result.Columns)
	group := parquet.Group{}
	for i, column := range result.Columns {
		if column.Kind == warehouse.KindNumeric {
			group[names[i]] = parquet.Optional(parquet.Leaf(parquet.DoubleType))
		} else {
			group[names[i]] = parquet.Optional(parquet.String())
		}
	}
	schema := parquet.NewSchema("result", group)

	// Group fields are ordered by name, so leaf indexes follow sorted order.
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	leaf := make(map[string]int, len(sorted))
	for i, name := range sorted {
		leaf[name] = i
	}

	rows := make([]parquet.Row, 0, len(result.Rows))
	for r, values := range result.Rows {
		if len(values) != len(result.Columns) {
			return EncodeResult{}, fmt.Errorf("row %d has %d values, want %d", r, len(values), len(result.Columns))
		}
		row := make(parquet.Row, len(values))
		for i, value := range values {
			index := leaf[names[i]]
			cell, err := encodeValue(value, result.Columns[i].Kind)
			if err != nil {
				return EncodeResult{}, fmt.Errorf("row %d column %q: %w", r, result.Columns[i].Name, err)
			}
			if cell.IsNull() {
				row[index] = cell.Level(0, 0, index)
			} else {
				row[index] = cell.Level(0, 1, index)
			}
		}
		rows = append(rows, row)
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewWriter(buf, schema)
	if _, err := writer.WriteRows(rows); err != nil {
		return EncodeResult{}, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return EncodeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}
	return EncodeResult{Data: buf.Bytes(), RecordCount: int64(len(rows)), Columns: names}, nil
}

func encodeValue(value any, kind warehouse.ColumnKind) (parquet.Value, error) {
	if value == nil {
		return parquet.NullValue(), nil
	}
	if kind == warehouse.KindNumeric {
		number, ok := warehouse.ToFloat(value)
		if !ok {
			return parquet.Value{}, fmt.Errorf("value %v (%T) is not numeric", value, value)
		}
		return parquet.DoubleValue(number), nil
	}
	return parquet.ByteArrayValue([]byte(formatString(value))), nil
}

func formatString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// columnNames returns unique non-empty names; repeats get a numeric suffix.
func columnNames(columns []warehouse.ResultColumn) []string {
	names := make([]string, len(columns))
	seen := make(map[string]bool, len(columns))
	for i, column := range columns {
		base := strings.TrimSpace(column.Name)
		if base == "" {
			base = "column_" + strconv.Itoa(i+1)
		}
		name := base
		for n := 2; seen[name]; n++ {
			name = base + "_" + strconv.Itoa(n)
		}
		seen[name] = true
		names[i] = name
	}
	return names
}
