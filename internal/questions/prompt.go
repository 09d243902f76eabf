package questions

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/insightdeck/insightdeck/internal/warehouse"
)

type Prompt struct {
	Text       string
	SchemaText string
	SampleText string
}

const promptTemplate = `Given a database table '%[1]s' with the following schema:
%[2]s

And sample data:
%[3]s

Generate %[4]d relevant business questions that could be answered using this data.
Respond with a JSON array of exactly %[4]d objects and nothing else. Each object has:
1. question_text: the business question
2. sql_query: the SQL query that answers it (always use the fully qualified table name '%[1]s')
3. visualization_type: one of bar, line, pie, scatter, table

Focus on questions that provide meaningful business insights.
Use the exact column names from the schema and make sure every query is valid.
Always prefix the table name with the schema name like this: %[1]s`

func BuildPrompt(ref warehouse.TableRef, columns []warehouse.ColumnMeta, sample warehouse.TableResult) Prompt {
	schemaText := RenderColumns(columns)
	sampleText := RenderResult(sample)
	return Prompt{
		Text:       fmt.Sprintf(promptTemplate, ref.Qualified(), schemaText, sampleText, Count),
		SchemaText: schemaText,
		SampleText: sampleText,
	}
}

func RenderColumns(columns []warehouse.ColumnMeta) string {
	t := newTable()
	t.AppendHeader(table.Row{"Column", "Type", "Nullable", "Max Length"})
	for _, column := range columns {
		nullable := "NO"
		if column.Nullable {
			nullable = "YES"
		}
		maxLength := ""
		if column.MaxLength != nil {
			maxLength = fmt.Sprintf("%d", *column.MaxLength)
		}
		t.AppendRow(table.Row{column.Name, column.Type, nullable, maxLength})
	}
	return t.Render()
}

func RenderResult(result warehouse.TableResult) string {
	if len(result.Columns) == 0 {
		return "(no columns)"
	}
	t := newTable()
	header := make(table.Row, len(result.Columns))
	for i, column := range result.Columns {
		header[i] = column.Name
	}
	t.AppendHeader(header)
	for _, row := range result.Rows {
		cells := make(table.Row, len(row))
		for i, value := range row {
			cells[i] = FormatCell(value)
		}
		t.AppendRow(cells)
	}
	if len(result.Rows) == 0 {
		return t.Render() + "\n(0 rows)"
	}
	return t.Render()
}

func FormatCell(value any) string {
	switch typed := value.(type) {
	case nil:
		return "NULL"
	case string:
		return strings.ReplaceAll(typed, "\n", " ")
	case []byte:
		return string(typed)
	case time.Time:
		if typed.Hour() == 0 && typed.Minute() == 0 && typed.Second() == 0 && typed.Nanosecond() == 0 {
			return typed.Format(time.DateOnly)
		}
		return typed.Format(time.RFC3339)
	default:
		return fmt.Sprint(typed)
	}
}

// newTable renders headers verbatim so column names keep their case.
func newTable() table.Writer {
	style := table.StyleDefault
	style.Format.Header = text.FormatDefault
	t := table.NewWriter()
	t.SetStyle(style)
	return t
}
