package insightdeckctl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const (
	maxCellWidth   = 60
	maxResultRows  = 50
	maxSampleRows  = 10
	maxSQLColWidth = 80
)

type notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

type column struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Nullable  bool   `json:"nullable"`
	MaxLength *int64 `json:"max_length"`
}

type resultColumn struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type tableResult struct {
	Columns []resultColumn `json:"columns"`
	Rows    [][]any        `json:"rows"`
}

type question struct {
	QuestionText      string `json:"question_text"`
	SQLQuery          string `json:"sql_query"`
	VisualizationType string `json:"visualization_type"`
}

type artifact struct {
	Kind      string `json:"kind"`
	Requested string `json:"requested"`
	Warning   string `json:"warning"`
	Error     string `json:"error"`
}

type sessionView struct {
	Phase     string       `json:"phase"`
	Dialect   string       `json:"dialect"`
	Schemas   []string     `json:"schemas"`
	Schema    string       `json:"schema"`
	Tables    []string     `json:"tables"`
	Table     string       `json:"table"`
	Columns   []column     `json:"columns"`
	Sample    *tableResult `json:"sample"`
	Questions []question   `json:"questions"`
	Selected  int          `json:"selected"`
	Result    *tableResult `json:"result"`
	Artifact  *artifact    `json:"artifact"`
	Notices   []notice     `json:"notices"`
	Logs      []string     `json:"logs"`
}

type sessionEnvelope struct {
	SessionID string      `json:"session_id"`
	Session   sessionView `json:"session"`
}

type exportEnvelope struct {
	SessionID string `json:"session_id"`
	Question  int    `json:"question"`
	Export    struct {
		Key         string   `json:"key"`
		Size        int64    `json:"size"`
		RecordCount int64    `json:"record_count"`
		Columns     []string `json:"columns"`
		URL         string   `json:"url"`
	} `json:"export"`
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func writeJSON(w io.Writer, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(raw), "", "  "); err != nil {
		_, err = fmt.Fprintln(w, strings.TrimSpace(string(raw)))
		return err
	}
	_, err := fmt.Fprintln(w, buf.String())
	return err
}

func renderStatus(w io.Writer, raw []byte) error {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return writeJSON(w, raw)
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"Field", "Value"})
	for _, key := range []string{"status", "service"} {
		if v, ok := payload[key]; ok {
			t.AppendRow(table.Row{key, formatValue(v)})
		}
	}
	t.Render()
	return nil
}

// renderSession prints the parts of the session that are populated for its
// current phase.
func renderSession(w io.Writer, raw []byte) error {
	var env sessionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode session: %w", err)
	}
	st := env.Session

	summary := newTable(w)
	summary.AppendRow(table.Row{"Session", env.SessionID})
	summary.AppendRow(table.Row{"Phase", st.Phase})
	if st.Dialect != "" {
		summary.AppendRow(table.Row{"Dialect", st.Dialect})
	}
	if len(st.Schemas) > 0 {
		summary.AppendRow(table.Row{"Schemas", strings.Join(st.Schemas, ", ")})
	}
	if st.Schema != "" {
		summary.AppendRow(table.Row{"Schema", st.Schema})
	}
	if len(st.Tables) > 0 {
		summary.AppendRow(table.Row{"Tables", strings.Join(st.Tables, ", ")})
	}
	if st.Table != "" {
		summary.AppendRow(table.Row{"Table", st.Table})
	}
	summary.SetColumnConfigs([]table.ColumnConfig{{Number: 2, WidthMax: maxSQLColWidth}})
	summary.Render()

	renderNotices(w, st.Notices)

	if len(st.Columns) > 0 {
		_, _ = fmt.Fprintf(w, "\nColumns of %s.%s\n", st.Schema, st.Table)
		t := newTable(w)
		t.AppendHeader(table.Row{"Column", "Type", "Nullable", "Max Length"})
		for _, c := range st.Columns {
			nullable := "NO"
			if c.Nullable {
				nullable = "YES"
			}
			maxLength := ""
			if c.MaxLength != nil {
				maxLength = fmt.Sprint(*c.MaxLength)
			}
			t.AppendRow(table.Row{c.Name, c.Type, nullable, maxLength})
		}
		t.Render()
	}
	if st.Sample != nil && len(st.Questions) == 0 {
		_, _ = fmt.Fprintln(w, "\nSample")
		renderResult(w, *st.Sample, maxSampleRows)
	}

	if len(st.Questions) > 0 {
		_, _ = fmt.Fprintln(w, "\nQuestions")
		t := newTable(w)
		t.AppendHeader(table.Row{"#", "Question", "Chart", "SQL"})
		for i, q := range st.Questions {
			marker := fmt.Sprint(i + 1)
			if i == st.Selected {
				marker += "*"
			}
			t.AppendRow(table.Row{marker, q.QuestionText, q.VisualizationType, q.SQLQuery})
		}
		t.SetColumnConfigs([]table.ColumnConfig{
			{Number: 2, WidthMax: maxCellWidth},
			{Number: 4, WidthMax: maxSQLColWidth},
		})
		t.Render()
	}

	if st.Result != nil {
		title := "Result"
		if st.Artifact != nil {
			title = fmt.Sprintf("Result (%s)", st.Artifact.Kind)
		}
		_, _ = fmt.Fprintf(w, "\n%s\n", title)
		renderResult(w, *st.Result, maxResultRows)
	}
	return nil
}

func renderNotices(w io.Writer, notices []notice) {
	for _, n := range notices {
		label := strings.ToUpper(n.Level)
		switch n.Level {
		case "error":
			label = text.FgRed.Sprint(label)
		case "warning":
			label = text.FgYellow.Sprint(label)
		}
		_, _ = fmt.Fprintf(w, "%s: %s\n", label, n.Message)
	}
}

func renderResult(w io.Writer, result tableResult, limit int) {
	if len(result.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}
	t := newTable(w)
	header := make(table.Row, len(result.Columns))
	configs := make([]table.ColumnConfig, len(result.Columns))
	for i, c := range result.Columns {
		header[i] = c.Name
		configs[i] = table.ColumnConfig{Number: i + 1, WidthMax: maxCellWidth}
		if c.Kind == "numeric" {
			configs[i].Align = text.AlignRight
		}
	}
	t.AppendHeader(header)
	t.SetColumnConfigs(configs)
	shown := result.Rows
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for _, r := range shown {
		row := make(table.Row, len(r))
		for i, v := range r {
			row[i] = formatValue(v)
		}
		t.AppendRow(row)
	}
	t.Render()
	if len(shown) < len(result.Rows) {
		_, _ = fmt.Fprintf(w, "(%d of %d rows)\n", len(shown), len(result.Rows))
		return
	}
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(result.Rows))
}

func renderLogs(w io.Writer, raw []byte) error {
	var env sessionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode session: %w", err)
	}
	if len(env.Session.Logs) == 0 {
		_, _ = fmt.Fprintln(w, "(no logs)")
		return nil
	}
	for _, line := range env.Session.Logs {
		_, _ = fmt.Fprintln(w, line)
	}
	return nil
}

func renderExport(w io.Writer, raw []byte) error {
	var env exportEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode export: %w", err)
	}
	t := newTable(w)
	t.AppendRow(table.Row{"Question", env.Question + 1})
	t.AppendRow(table.Row{"Key", env.Export.Key})
	t.AppendRow(table.Row{"Size", env.Export.Size})
	t.AppendRow(table.Row{"Records", env.Export.RecordCount})
	t.AppendRow(table.Row{"Columns", strings.Join(env.Export.Columns, ", ")})
	if env.Export.URL != "" {
		t.AppendRow(table.Row{"URL", env.Export.URL})
	}
	t.Render()
	return nil
}

func formatValue(v any) string {
	switch value := v.(type) {
	case nil:
		return "NULL"
	case string:
		return value
	case float64:
		if value == float64(int64(value)) {
			return fmt.Sprintf("%d", int64(value))
		}
		return fmt.Sprintf("%g", value)
	case time.Time:
		return value.Format(time.RFC3339)
	case map[string]any, []any:
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value)
		}
		return string(encoded)
	default:
		return fmt.Sprint(value)
	}
}

func decodeSession(raw []byte, env *sessionEnvelope) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return err
	}
	body, ok := probe["session"]
	if !ok {
		return fmt.Errorf("response carries no session")
	}
	return json.Unmarshal(body, &env.Session)
}
