package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/insightdeck/insightdeck/internal/observability"
)

// Dialect captures the differences between information_schema flavours.
type Dialect struct {
	Name string
	// ExcludedSchemas are compared against UPPER(schema_name).
	ExcludedSchemas []string
	// NumberedParams selects $1-style placeholders instead of ?.
	NumberedParams bool
	// CurrentCatalogOnly restricts metadata queries to current_database() for
	// engines whose information_schema spans attached catalogs.
	CurrentCatalogOnly bool
}

func (d Dialect) placeholder(n int) string {
	if d.NumberedParams {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// SQLClient implements Client over a single database/sql connection.
type SQLClient struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

func NewSQLClient(db *sql.DB, dialect Dialect, logger *slog.Logger) *SQLClient {
	return &SQLClient{db: db, dialect: dialect, logger: logger}
}

func (c *SQLClient) Dialect() string {
	return c.dialect.Name
}

func (c *SQLClient) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *SQLClient) ListSchemas(ctx context.Context) ([]string, error) {
	args := make([]any, 0, len(c.dialect.ExcludedSchemas))
	marks := make([]string, 0, len(c.dialect.ExcludedSchemas))
	for i, schema := range c.dialect.ExcludedSchemas {
		args = append(args, strings.ToUpper(schema))
		marks = append(marks, c.dialect.placeholder(i+1))
	}
	query := "SELECT schema_name FROM information_schema.schemata"
	var where []string
	if len(marks) > 0 {
		where = append(where, "UPPER(schema_name) NOT IN ("+strings.Join(marks, ", ")+")")
	}
	if c.dialect.CurrentCatalogOnly {
		where = append(where, "catalog_name = current_database()")
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY schema_name"

	schemas, err := c.queryStrings(ctx, "list_schemas", query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list schemas: %w", ErrMetadata, err)
	}
	return schemas, nil
}

func (c *SQLClient) ListTables(ctx context.Context, schema string) ([]string, error) {
	query := "SELECT table_name FROM information_schema.tables WHERE table_schema = " +
		c.dialect.placeholder(1) + " AND table_type = 'BASE TABLE'"
	if c.dialect.CurrentCatalogOnly {
		query += " AND table_catalog = current_database()"
	}
	query += " ORDER BY table_name"

	tables, err := c.queryStrings(ctx, "list_tables", query, schema)
	if err != nil {
		return nil, fmt.Errorf("%w: list tables in %q: %w", ErrMetadata, schema, err)
	}
	return tables, nil
}

func (c *SQLClient) GetColumns(ctx context.Context, schema, table string) ([]ColumnMeta, error) {
	query := "SELECT column_name, data_type, is_nullable, character_maximum_length, ordinal_position " +
		"FROM information_schema.columns WHERE table_schema = " + c.dialect.placeholder(1) +
		" AND table_name = " + c.dialect.placeholder(2)
	if c.dialect.CurrentCatalogOnly {
		query += " AND table_catalog = current_database()"
	}
	query += " ORDER BY ordinal_position"

	start := time.Now()
	columns, err := c.scanColumns(ctx, query, schema, table)
	c.observe(ctx, "get_columns", start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: describe %s.%s: %w", ErrMetadata, schema, table, err)
	}
	return columns, nil
}

func (c *SQLClient) scanColumns(ctx context.Context, query string, args ...any) ([]ColumnMeta, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns := make([]ColumnMeta, 0)
	for rows.Next() {
		var (
			column    ColumnMeta
			nullable  string
			maxLength sql.NullInt64
			position  sql.NullInt64
		)
		if err := rows.Scan(&column.Name, &column.Type, &nullable, &maxLength, &position); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		column.Nullable = strings.EqualFold(strings.TrimSpace(nullable), "YES")
		if maxLength.Valid {
			length := maxLength.Int64
			column.MaxLength = &length
		}
		column.Position = int(position.Int64)
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

func (c *SQLClient) GetSample(ctx context.Context, schema, table string, limit int) (TableResult, error) {
	if limit <= 0 {
		limit = DefaultSampleRows
	}
	query := fmt.Sprintf("SELECT * FROM %s.%s LIMIT %d", QuoteIdent(schema), QuoteIdent(table), limit)

	start := time.Now()
	result, err := c.queryTable(ctx, query)
	c.observe(ctx, "sample", start, err)
	if err != nil {
		return TableResult{}, fmt.Errorf("%w: sample %s.%s: %w", ErrMetadata, schema, table, err)
	}
	return result, nil
}

// Execute runs sqlText verbatim. It is not sanitized, limited, or rewritten.
func (c *SQLClient) Execute(ctx context.Context, sqlText string) (TableResult, error) {
	if strings.TrimSpace(sqlText) == "" {
		return TableResult{}, fmt.Errorf("%w: sql is required", ErrQuery)
	}
	start := time.Now()
	result, err := c.queryTable(ctx, sqlText)
	c.observe(ctx, "execute", start, err)
	if err != nil {
		return TableResult{}, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	return result, nil
}

func (c *SQLClient) queryStrings(ctx context.Context, operation, query string, args ...any) ([]string, error) {
	start := time.Now()
	values, err := func() ([]string, error) {
		rows, err := c.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer func() { _ = rows.Close() }()

		values := make([]string, 0)
		for rows.Next() {
			var value string
			if err := rows.Scan(&value); err != nil {
				return nil, fmt.Errorf("scan row: %w", err)
			}
			values = append(values, value)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate rows: %w", err)
		}
		return values, nil
	}()
	c.observe(ctx, operation, start, err)
	return values, err
}

func (c *SQLClient) queryTable(ctx context.Context, query string) (TableResult, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return TableResult{}, err
	}
	defer func() { _ = rows.Close() }()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return TableResult{}, fmt.Errorf("query columns: %w", err)
	}

	columns := make([]ResultColumn, len(columnTypes))
	declared := make([]bool, len(columnTypes))
	for i, columnType := range columnTypes {
		dbType := columnType.DatabaseTypeName()
		kind, ok := ClassifyType(dbType)
		columns[i] = ResultColumn{Name: columnType.Name(), DatabaseType: dbType, Kind: kind}
		declared[i] = ok
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return TableResult{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, values)
	}
	if err := rows.Err(); err != nil {
		return TableResult{}, fmt.Errorf("iterate rows: %w", err)
	}

	for i := range columns {
		if declared[i] {
			continue
		}
		cells := make([]any, len(resultRows))
		for r, row := range resultRows {
			cells[r] = normalizeValue(row[i], KindOther)
		}
		columns[i].Kind = InferKind(cells)
	}
	for _, row := range resultRows {
		for i := range row {
			row[i] = normalizeValue(row[i], columns[i].Kind)
		}
	}

	return TableResult{Columns: columns, Rows: resultRows}, nil
}

func (c *SQLClient) observe(ctx context.Context, operation string, start time.Time, err error) {
	elapsed := time.Since(start)
	observability.ObserveWarehouseQuery(c.dialect.Name, operation, elapsed, err)
	logger := observability.LoggerFromContext(ctx, c.logger)
	if err != nil {
		logger.WarnContext(ctx, "warehouse query failed",
			slog.String("dialect", c.dialect.Name),
			slog.String("operation", operation),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.DebugContext(ctx, "warehouse query",
		slog.String("dialect", c.dialect.Name),
		slog.String("operation", operation),
		slog.Duration("elapsed", elapsed),
	)
}

func QuoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
