package chart

import (
	"strings"
	"testing"
	"time"

	"github.com/insightdeck/insightdeck/internal/warehouse"
)

func result(columns []warehouse.ResultColumn, rows ...[]any) warehouse.TableResult {
	return warehouse.TableResult{Columns: columns, Rows: rows}
}

var (
	regionCol  = warehouse.ResultColumn{Name: "region", Kind: warehouse.KindCategorical}
	revenueCol = warehouse.ResultColumn{Name: "revenue", Kind: warehouse.KindNumeric}
	unitsCol   = warehouse.ResultColumn{Name: "units", Kind: warehouse.KindNumeric}
	dayCol     = warehouse.ResultColumn{Name: "day", Kind: warehouse.KindTemporal}
	flagCol    = warehouse.ResultColumn{Name: "flag", Kind: warehouse.KindBoolean}
)

func TestRenderPieUsesCategoricalNamesAndNumericValues(t *testing.T) {
	artifact := Render(result([]warehouse.ResultColumn{regionCol, revenueCol},
		[]any{"east", int64(10)}, []any{"west", 2.5}), "pie", "Revenue by region")
	if artifact.Kind != KindPie || artifact.Chart == nil {
		t.Fatalf("artifact = %#v", artifact)
	}
	if artifact.Chart.Names != "region" || artifact.Chart.Values != "revenue" {
		t.Fatalf("names/values = %q/%q", artifact.Chart.Names, artifact.Chart.Values)
	}
	trace := artifact.Chart.Data[0]
	if trace.Labels[1] != "west" || trace.Values[0] != 10.0 {
		t.Fatalf("trace = %#v", trace)
	}
}

func TestRenderBarPicksFirstOfEachClassInOrder(t *testing.T) {
	columns := []warehouse.ResultColumn{revenueCol, regionCol, unitsCol, {Name: "segment", Kind: warehouse.KindCategorical}}
	artifact := Render(result(columns, []any{1.0, "east", int64(3), "smb"}), "BAR", "q")
	if artifact.Kind != KindBar {
		t.Fatalf("Kind = %q", artifact.Kind)
	}
	if artifact.Chart.X != "region" || artifact.Chart.Y != "revenue" {
		t.Fatalf("x/y = %q/%q", artifact.Chart.X, artifact.Chart.Y)
	}
}

func TestRenderBarUsesTemporalColumnAsCategory(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tsCol := warehouse.ResultColumn{Name: "ts", DatabaseType: "TIMESTAMP_NTZ", Kind: warehouse.KindTemporal}
	countCol := warehouse.ResultColumn{Name: "n", DatabaseType: "NUMBER", Kind: warehouse.KindNumeric}

	artifact := Render(result([]warehouse.ResultColumn{tsCol, countCol}, []any{ts, int64(4)}), "bar", "q")
	if artifact.Kind != KindBar || artifact.Warning != "" {
		t.Fatalf("artifact = %#v", artifact)
	}
	if artifact.Chart.X != "ts" || artifact.Chart.Y != "n" {
		t.Fatalf("x/y = %q/%q", artifact.Chart.X, artifact.Chart.Y)
	}
	if got, ok := artifact.Chart.Data[0].X[0].(time.Time); !ok || !got.Equal(ts) {
		t.Fatalf("x values = %#v", artifact.Chart.Data[0].X)
	}

	// A temporal column ahead of a categorical one wins by position.
	artifact = Render(result([]warehouse.ResultColumn{tsCol, regionCol, countCol}, []any{ts, "east", int64(4)}), "bar", "q")
	if artifact.Kind != KindBar || artifact.Chart.X != "ts" {
		t.Fatalf("artifact = %#v", artifact)
	}
}

func TestRenderBarWithoutCategoricalFallsBackWithWarning(t *testing.T) {
	artifact := Render(result([]warehouse.ResultColumn{revenueCol, unitsCol}, []any{1.0, 2.0}), "bar", "q")
	if !artifact.IsTable() || artifact.Warning != warnBar {
		t.Fatalf("artifact = %#v", artifact)
	}
	if artifact.Error != "" {
		t.Fatalf("Error = %q", artifact.Error)
	}
}

func TestRenderLinePrefersTwoNumericColumns(t *testing.T) {
	columns := []warehouse.ResultColumn{regionCol, revenueCol, unitsCol}
	artifact := Render(result(columns, []any{"east", 1.0, 2.0}), "line", "q")
	if artifact.Chart.X != "revenue" || artifact.Chart.Y != "units" {
		t.Fatalf("x/y = %q/%q", artifact.Chart.X, artifact.Chart.Y)
	}
	if artifact.Chart.Data[0].Mode != "lines" {
		t.Fatalf("mode = %q", artifact.Chart.Data[0].Mode)
	}
}

func TestRenderLineFallsBackToCategoricalAxis(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	artifact := Render(result([]warehouse.ResultColumn{dayCol, revenueCol}, []any{day, "12.5"}), "line", "q")
	if artifact.Kind != KindLine {
		t.Fatalf("artifact = %#v", artifact)
	}
	if artifact.Chart.X != "day" || artifact.Chart.Y != "revenue" {
		t.Fatalf("x/y = %q/%q", artifact.Chart.X, artifact.Chart.Y)
	}
	if artifact.Chart.Data[0].X[0] != day || artifact.Chart.Data[0].Y[0] != 12.5 {
		t.Fatalf("trace = %#v", artifact.Chart.Data[0])
	}
}

func TestRenderLineWithoutUsableColumns(t *testing.T) {
	artifact := Render(result([]warehouse.ResultColumn{revenueCol, flagCol}, []any{1.0, true}), "line", "q")
	if !artifact.IsTable() || artifact.Warning != warnLine {
		t.Fatalf("artifact = %#v", artifact)
	}
}

func TestRenderScatterNeedsTwoNumericColumns(t *testing.T) {
	artifact := Render(result([]warehouse.ResultColumn{regionCol, revenueCol}, []any{"east", 1.0}), "scatter", "q")
	if !artifact.IsTable() || artifact.Warning != warnScatter {
		t.Fatalf("artifact = %#v", artifact)
	}

	artifact = Render(result([]warehouse.ResultColumn{revenueCol, unitsCol}, []any{1.0, int64(2)}), "Scatter", "q")
	if artifact.Kind != KindScatter || artifact.Chart.Data[0].Mode != "markers" {
		t.Fatalf("artifact = %#v", artifact)
	}
}

func TestRenderPieWithoutNumericColumn(t *testing.T) {
	artifact := Render(result([]warehouse.ResultColumn{regionCol}, []any{"east"}), "pie", "q")
	if !artifact.IsTable() || artifact.Warning != warnPie {
		t.Fatalf("artifact = %#v", artifact)
	}
}

func TestRenderTableAndUnknownKinds(t *testing.T) {
	columns := []warehouse.ResultColumn{regionCol, revenueCol}
	artifact := Render(result(columns, []any{"east", 1.0}), "table", "q")
	if !artifact.IsTable() || artifact.Warning != "" || artifact.Error != "" {
		t.Fatalf("table artifact = %#v", artifact)
	}
	artifact = Render(result(columns, []any{"east", 1.0}), "heatmap", "q")
	if !artifact.IsTable() || artifact.Warning == "" {
		t.Fatalf("unknown artifact = %#v", artifact)
	}
}

func TestRenderDegradesOnNonNumericValue(t *testing.T) {
	artifact := Render(result([]warehouse.ResultColumn{regionCol, revenueCol}, []any{"east", "n/a"}), "bar", "q")
	if !artifact.IsTable() {
		t.Fatalf("Kind = %q", artifact.Kind)
	}
	if !strings.HasPrefix(artifact.Error, "Failed to create visualization: ") || artifact.Warning != fallbackNotice {
		t.Fatalf("artifact = %#v", artifact)
	}
}

func TestRenderDegradesOnRaggedRows(t *testing.T) {
	artifact := Render(result([]warehouse.ResultColumn{regionCol, revenueCol}, []any{"east"}), "bar", "q")
	if !artifact.IsTable() || artifact.Error == "" {
		t.Fatalf("artifact = %#v", artifact)
	}
}

func TestRenderKeepsNullsAndLayout(t *testing.T) {
	artifact := Render(result([]warehouse.ResultColumn{regionCol, revenueCol}, []any{nil, nil}), "bar", "Title")
	if artifact.Kind != KindBar {
		t.Fatalf("artifact = %#v", artifact)
	}
	if artifact.Chart.Data[0].Y[0] != nil {
		t.Fatalf("y = %#v", artifact.Chart.Data[0].Y)
	}
	layout := artifact.Chart.Layout
	if layout.Title.Text != "Title" || layout.Title.X != 0.5 {
		t.Fatalf("title = %#v", layout.Title)
	}
	if layout.Margin != (Margin{T: 50, L: 50, R: 50, B: 50}) {
		t.Fatalf("margin = %#v", layout.Margin)
	}
}

func TestRenderEmptyResult(t *testing.T) {
	artifact := Render(warehouse.TableResult{}, "bar", "q")
	if !artifact.IsTable() || artifact.Warning != warnBar {
		t.Fatalf("artifact = %#v", artifact)
	}
}
