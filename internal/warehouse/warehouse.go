package warehouse

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrConnection = errors.New("warehouse connection failed")
	ErrMetadata   = errors.New("warehouse metadata query failed")
	ErrQuery      = errors.New("warehouse query failed")
)

const DefaultSampleRows = 100

// Client is the read-only surface the explorer needs from a warehouse. A
// Client wraps exactly one connection and is not safe for concurrent
// requests from different sessions.
type Client interface {
	ListSchemas(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context, schema string) ([]string, error)
	GetColumns(ctx context.Context, schema, table string) ([]ColumnMeta, error)
	GetSample(ctx context.Context, schema, table string, limit int) (TableResult, error)
	Execute(ctx context.Context, sqlText string) (TableResult, error)
	Dialect() string
	Close() error
}

type TableRef struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

// Qualified returns the schema.table form used in prompts and generated SQL.
func (r TableRef) Qualified() string {
	return r.Schema + "." + r.Table
}

func (r TableRef) IsZero() bool {
	return r.Schema == "" && r.Table == ""
}

type ColumnMeta struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Nullable  bool   `json:"nullable"`
	MaxLength *int64 `json:"max_length,omitempty"`
	Position  int    `json:"position"`
}

type ColumnKind string

const (
	KindNumeric     ColumnKind = "numeric"
	KindCategorical ColumnKind = "categorical"
	KindTemporal    ColumnKind = "temporal"
	KindBoolean     ColumnKind = "boolean"
	KindOther       ColumnKind = "other"
)

type ResultColumn struct {
	Name         string     `json:"name"`
	DatabaseType string     `json:"database_type,omitempty"`
	Kind         ColumnKind `json:"kind"`
}

// TableResult holds rows positionally aligned with Columns.
type TableResult struct {
	Columns []ResultColumn `json:"columns"`
	Rows    [][]any        `json:"rows"`
}

func (r TableResult) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, column := range r.Columns {
		names[i] = column.Name
	}
	return names
}

// Head returns a copy limited to the first n rows.
func (r TableResult) Head(n int) TableResult {
	if n < 0 || n >= len(r.Rows) {
		n = len(r.Rows)
	}
	return TableResult{Columns: r.Columns, Rows: r.Rows[:n:n]}
}

// Config is the dialect-independent connection input. Dialect packages pick
// the fields they understand.
type Config struct {
	Dialect   string
	Account   string
	User      string
	Password  string
	Warehouse string
	Database  string
	Role      string
	DSN       string
}

func (c Config) normalizedDialect() string {
	return strings.ToLower(strings.TrimSpace(c.Dialect))
}
