// Package chart picks a chart for a query result from the model's suggested
// visualization and the result's column kinds. Render never fails: anything
// it cannot draw becomes a table artifact with a notice.
package chart

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/insightdeck/insightdeck/internal/observability"
	"github.com/insightdeck/insightdeck/internal/warehouse"
)

var ErrVisualization = errors.New("visualization failed")

const (
	KindBar     = "bar"
	KindLine    = "line"
	KindPie     = "pie"
	KindScatter = "scatter"
	KindTable   = "table"
)

const (
	warnBar     = "Bar chart requires at least one categorical and one numeric column"
	warnLine    = "Line chart requires at least two numeric columns or one categorical and one numeric column"
	warnPie     = "Pie chart requires at least one categorical and one numeric column"
	warnScatter = "Scatter plot requires at least two numeric columns"

	fallbackNotice = "Falling back to table view"
	layoutMargin   = 50
)

// Artifact is either a chart or an instruction to show the result as a table.
type Artifact struct {
	Kind      string `json:"kind"`
	Requested string `json:"requested"`
	Chart     *Chart `json:"chart,omitempty"`
	Warning   string `json:"warning,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (a Artifact) IsTable() bool {
	return a.Kind == KindTable
}

// Chart is a Plotly-compatible figure plus the column bindings it was built from.
type Chart struct {
	Type   string  `json:"type"`
	Title  string  `json:"title"`
	X      string  `json:"x,omitempty"`
	Y      string  `json:"y,omitempty"`
	Names  string  `json:"names,omitempty"`
	Values string  `json:"values,omitempty"`
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

type Trace struct {
	Type   string `json:"type"`
	Mode   string `json:"mode,omitempty"`
	X      []any  `json:"x,omitempty"`
	Y      []any  `json:"y,omitempty"`
	Labels []any  `json:"labels,omitempty"`
	Values []any  `json:"values,omitempty"`
}

type Layout struct {
	Title  Title  `json:"title"`
	Margin Margin `json:"margin"`
	XAxis  *Axis  `json:"xaxis,omitempty"`
	YAxis  *Axis  `json:"yaxis,omitempty"`
}

type Title struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
}

type Margin struct {
	T int `json:"t"`
	L int `json:"l"`
	R int `json:"r"`
	B int `json:"b"`
}

type Axis struct {
	Title Title `json:"title"`
}

// classification holds column indexes in source order. Temporal columns are
// grouped with the categorical ones.
type classification struct {
	numeric     []int
	categorical []int
}

func classify(columns []warehouse.ResultColumn) classification {
	var c classification
	for i, column := range columns {
		switch column.Kind {
		case warehouse.KindNumeric:
			c.numeric = append(c.numeric, i)
		case warehouse.KindCategorical, warehouse.KindTemporal:
			c.categorical = append(c.categorical, i)
		}
	}
	return c
}

// Render chooses and builds the artifact for result. kind is matched
// case-insensitively; unknown kinds render as a table. Axes are the first
// qualifying columns in result order. Temporal columns qualify as
// categorical, so a date or timestamp can be the x axis of a bar, line or
// pie chart.
func Render(result warehouse.TableResult, kind, title string) (artifact Artifact) {
	requested := strings.ToLower(strings.TrimSpace(kind))
	defer func() {
		if recovered := recover(); recovered != nil {
			artifact = failed(requested, fmt.Errorf("%w: %v", ErrVisualization, recovered))
		}
		observability.ObserveChartRender(requested, renderedLabel(artifact))
	}()

	c := classify(result.Columns)
	plan, warning := choose(requested, c)
	if plan == nil {
		return Artifact{Kind: KindTable, Requested: requested, Warning: warning}
	}

	chart, err := plan.build(result, title)
	if err != nil {
		return failed(requested, err)
	}
	return Artifact{Kind: chart.Type, Requested: requested, Chart: chart}
}

func failed(requested string, err error) Artifact {
	return Artifact{
		Kind:      KindTable,
		Requested: requested,
		Error:     "Failed to create visualization: " + err.Error(),
		Warning:   fallbackNotice,
	}
}

func renderedLabel(a Artifact) string {
	switch {
	case a.Error != "":
		return "error"
	case a.Kind == KindTable && a.Warning != "":
		return "fallback"
	default:
		return a.Kind
	}
}

type plan struct {
	chartType string
	first     int
	second    int
}

func choose(kind string, c classification) (*plan, string) {
	switch kind {
	case KindBar:
		if len(c.categorical) > 0 && len(c.numeric) > 0 {
			return &plan{KindBar, c.categorical[0], c.numeric[0]}, ""
		}
		return nil, warnBar
	case KindLine:
		if len(c.numeric) >= 2 {
			return &plan{KindLine, c.numeric[0], c.numeric[1]}, ""
		}
		if len(c.categorical) > 0 && len(c.numeric) > 0 {
			return &plan{KindLine, c.categorical[0], c.numeric[0]}, ""
		}
		return nil, warnLine
	case KindPie:
		if len(c.categorical) > 0 && len(c.numeric) > 0 {
			return &plan{KindPie, c.categorical[0], c.numeric[0]}, ""
		}
		return nil, warnPie
	case KindScatter:
		if len(c.numeric) >= 2 {
			return &plan{KindScatter, c.numeric[0], c.numeric[1]}, ""
		}
		return nil, warnScatter
	case KindTable:
		return nil, ""
	default:
		return nil, fmt.Sprintf("Unsupported visualization type %q, showing table", kind)
	}
}

func (p *plan) build(result warehouse.TableResult, title string) (*Chart, error) {
	columns := result.Columns
	first := make([]any, len(result.Rows))
	second := make([]any, len(result.Rows))
	firstNumeric := columns[p.first].Kind == warehouse.KindNumeric
	for r, row := range result.Rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d values for %d columns", ErrVisualization, r, len(row), len(columns))
		}
		if firstNumeric {
			value, err := numericCell(row[p.first], columns[p.first].Name, r)
			if err != nil {
				return nil, err
			}
			first[r] = value
		} else {
			first[r] = categoryCell(row[p.first])
		}
		value, err := numericCell(row[p.second], columns[p.second].Name, r)
		if err != nil {
			return nil, err
		}
		second[r] = value
	}

	chart := &Chart{
		Type:  p.chartType,
		Title: title,
		Layout: Layout{
			Title:  Title{Text: title, X: 0.5},
			Margin: Margin{T: layoutMargin, L: layoutMargin, R: layoutMargin, B: layoutMargin},
		},
	}
	xName, yName := columns[p.first].Name, columns[p.second].Name
	switch p.chartType {
	case KindPie:
		chart.Names, chart.Values = xName, yName
		chart.Data = []Trace{{Type: "pie", Labels: first, Values: second}}
	default:
		chart.X, chart.Y = xName, yName
		chart.Layout.XAxis = &Axis{Title: Title{Text: xName}}
		chart.Layout.YAxis = &Axis{Title: Title{Text: yName}}
		trace := Trace{Type: "bar", X: first, Y: second}
		switch p.chartType {
		case KindLine:
			trace.Type, trace.Mode = "scatter", "lines"
		case KindScatter:
			trace.Type, trace.Mode = "scatter", "markers"
		}
		chart.Data = []Trace{trace}
	}
	return chart, nil
}

func numericCell(value any, column string, row int) (any, error) {
	if value == nil {
		return nil, nil
	}
	f, ok := warehouse.ToFloat(value)
	if !ok {
		return nil, fmt.Errorf("%w: column %q row %d: %v is not numeric", ErrVisualization, column, row, value)
	}
	return f, nil
}

func categoryCell(value any) any {
	switch value.(type) {
	case nil, string, time.Time:
		return value
	default:
		return fmt.Sprint(value)
	}
}
