package questions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/insightdeck/insightdeck/internal/warehouse"
)

var visualizationTypes = map[string]bool{
	"bar":     true,
	"line":    true,
	"pie":     true,
	"scatter": true,
	"table":   true,
}

func IsVisualizationType(value string) bool {
	return visualizationTypes[strings.ToLower(strings.TrimSpace(value))]
}

// ParseQuestions decodes a model response. The response must be exactly one
// JSON array of objects carrying question_text, sql_query and a known
// visualization_type. Markdown fences or surrounding prose are rejected.
func ParseQuestions(content string) ([]BusinessQuestion, error) {
	decoder := json.NewDecoder(strings.NewReader(content))
	decoder.UseNumber()

	var raw []json.RawMessage
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: response is not a JSON array: %w", ErrGeneration, err)
	}
	if decoder.More() {
		return nil, fmt.Errorf("%w: unexpected content after JSON array", ErrGeneration)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: response contained no questions", ErrGeneration)
	}

	parsed := make([]BusinessQuestion, 0, len(raw))
	for i, element := range raw {
		trimmed := bytes.TrimSpace(element)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrGeneration, i)
		}
		var fields map[string]any
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return nil, fmt.Errorf("%w: element %d: %w", ErrGeneration, i, err)
		}
		question := BusinessQuestion{}
		for key, dst := range map[string]*string{
			"question_text":      &question.QuestionText,
			"sql_query":          &question.SQLQuery,
			"visualization_type": &question.VisualizationType,
		} {
			value, ok := fields[key].(string)
			if !ok || strings.TrimSpace(value) == "" {
				return nil, fmt.Errorf("%w: element %d: missing or empty %s", ErrGeneration, i, key)
			}
			*dst = strings.TrimSpace(value)
		}
		if !IsVisualizationType(question.VisualizationType) {
			return nil, fmt.Errorf("%w: element %d: unknown visualization_type %q", ErrGeneration, i, question.VisualizationType)
		}
		question.VisualizationType = strings.ToLower(question.VisualizationType)
		parsed = append(parsed, question)
	}
	return parsed, nil
}

// ReferencesTable reports whether sqlText names ref in schema.table form,
// bare or double-quoted, ignoring case.
func ReferencesTable(sqlText string, ref warehouse.TableRef) bool {
	pattern := `(?i)(^|[^\w"])` + identPattern(ref.Schema) + `\s*\.\s*` + identPattern(ref.Table) + `($|[^\w"])`
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(sqlText)
}

func identPattern(name string) string {
	quoted := regexp.QuoteMeta(`"` + strings.ReplaceAll(name, `"`, `""`) + `"`)
	return `(?:` + regexp.QuoteMeta(name) + `|` + quoted + `)`
}
