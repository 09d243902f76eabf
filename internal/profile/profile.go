// Package profile computes per-column summaries of a sample.
package profile

import (
	"fmt"
	"math"

	"github.com/insightdeck/insightdeck/internal/warehouse"
)

const maxSampleValues = 5

type ColumnSummary struct {
	Name         string               `json:"name"`
	Kind         warehouse.ColumnKind `json:"kind"`
	DatabaseType string               `json:"database_type,omitempty"`
	NullCount    int                  `json:"null_count"`
	Min          *float64             `json:"min,omitempty"`
	Max          *float64             `json:"max,omitempty"`
	// Mean is only reported for columns holding fractional values.
	Mean         *float64 `json:"mean,omitempty"`
	UniqueValues *int     `json:"unique_values,omitempty"`
	SampleValues []any    `json:"sample_values,omitempty"`
}

func Summarize(result warehouse.TableResult) []ColumnSummary {
	summaries := make([]ColumnSummary, len(result.Columns))
	for i, column := range result.Columns {
		summary := ColumnSummary{Name: column.Name, Kind: column.Kind, DatabaseType: column.DatabaseType}
		if column.Kind == warehouse.KindNumeric {
			summarizeNumeric(&summary, result.Rows, i)
		} else {
			summarizeOther(&summary, result.Rows, i)
		}
		summaries[i] = summary
	}
	return summaries
}

func summarizeNumeric(summary *ColumnSummary, rows [][]any, index int) {
	var (
		count      int
		sum        float64
		lo, hi     = math.Inf(1), math.Inf(-1)
		fractional bool
	)
	for _, row := range rows {
		if index >= len(row) || row[index] == nil {
			summary.NullCount++
			continue
		}
		value, ok := warehouse.ToFloat(row[index])
		if !ok {
			continue
		}
		switch row[index].(type) {
		case float32, float64:
			fractional = true
		default:
			if value != math.Trunc(value) {
				fractional = true
			}
		}
		count++
		sum += value
		lo = math.Min(lo, value)
		hi = math.Max(hi, value)
	}
	if count == 0 {
		return
	}
	summary.Min, summary.Max = &lo, &hi
	if fractional {
		mean := sum / float64(count)
		summary.Mean = &mean
	}
}

func summarizeOther(summary *ColumnSummary, rows [][]any, index int) {
	seen := map[string]bool{}
	for _, row := range rows {
		if index >= len(row) || row[index] == nil {
			summary.NullCount++
			continue
		}
		key := fmt.Sprint(row[index])
		if seen[key] {
			continue
		}
		seen[key] = true
		if len(summary.SampleValues) < maxSampleValues {
			summary.SampleValues = append(summary.SampleValues, row[index])
		}
	}
	unique := len(seen)
	summary.UniqueValues = &unique
}
