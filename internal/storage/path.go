package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

const maxComponentLength = 128

// BuildExportPath lays out an exported result as
// <session>/<schema>/<table>/question-<n>-<unix_ms>.parquet. n is 1-based.
func BuildExportPath(sessionID, schema, table string, question int, at time.Time) (string, error) {
	if question < 1 {
		return "", fmt.Errorf("question number must be >= 1")
	}
	parts := []struct{ value, field string }{
		{sessionID, "session id"},
		{schema, "schema"},
		{table, "table"},
	}
	components := make([]string, 0, len(parts)+1)
	for _, part := range parts {
		component, err := keyComponent(part.value, part.field)
		if err != nil {
			return "", err
		}
		components = append(components, component)
	}
	components = append(components, fmt.Sprintf("question-%d-%d.parquet", question, at.UnixMilli()))
	return path.Join(components...), nil
}

// keyComponent maps a warehouse identifier onto characters that are safe in
// any object store key. Leading dots are dropped so no component can be "..".
func keyComponent(value, field string) (string, error) {
	cleaned := unsafeKeyChars.ReplaceAllString(strings.TrimSpace(value), "_")
	cleaned = strings.TrimLeft(cleaned, ".")
	if cleaned == "" || strings.Trim(cleaned, "_") == "" {
		return "", fmt.Errorf("invalid %s: %q", field, value)
	}
	if len(cleaned) > maxComponentLength {
		cleaned = cleaned[:maxComponentLength]
	}
	return cleaned, nil
}
