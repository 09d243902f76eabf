package warehouse

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var testSnowflake = Dialect{Name: "snowflake", ExcludedSchemas: []string{"INFORMATION_SCHEMA", "PUBLIC"}}

func TestListSchemasExcludesSystemSchemasWithBoundParams(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT schema_name FROM information_schema.schemata WHERE UPPER(schema_name) NOT IN (?, ?) ORDER BY schema_name",
	)).WithArgs("INFORMATION_SCHEMA", "PUBLIC").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}).AddRow("FINANCE").AddRow("SALES"))

	client := NewSQLClient(db, testSnowflake, nil)
	schemas, err := client.ListSchemas(context.Background())
	if err != nil {
		t.Fatalf("ListSchemas() error = %v", err)
	}
	if len(schemas) != 2 || schemas[0] != "FINANCE" || schemas[1] != "SALES" {
		t.Fatalf("schemas = %#v", schemas)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListTablesUsesNumberedPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT table_name FROM information_schema.tables WHERE table_schema = $1 AND table_type = 'BASE TABLE' ORDER BY table_name",
	)).WithArgs("sales'; DROP TABLE x; --").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}))

	client := NewSQLClient(db, Dialect{Name: "postgres", NumberedParams: true}, nil)
	tables, err := client.ListTables(context.Background(), "sales'; DROP TABLE x; --")
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	if len(tables) != 0 {
		t.Fatalf("tables = %#v", tables)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListTablesWrapsMetadataError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("information_schema.tables").WillReturnError(errors.New("permission denied"))

	_, err = NewSQLClient(db, testSnowflake, nil).ListTables(context.Background(), "SALES")
	if !errors.Is(err, ErrMetadata) {
		t.Fatalf("ListTables() error = %v, want ErrMetadata", err)
	}
}

func TestGetColumnsPreservesOrdinalOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT column_name, data_type, is_nullable, character_maximum_length, ordinal_position FROM information_schema.columns WHERE table_schema = ? AND table_name = ? ORDER BY ordinal_position",
	)).WithArgs("SALES", "ORDERS").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "character_maximum_length", "ordinal_position"}).
			AddRow("ORDER_ID", "NUMBER", "NO", nil, int64(1)).
			AddRow("REGION", "TEXT", "YES", int64(16777216), int64(2)))

	columns, err := NewSQLClient(db, testSnowflake, nil).GetColumns(context.Background(), "SALES", "ORDERS")
	if err != nil {
		t.Fatalf("GetColumns() error = %v", err)
	}
	if len(columns) != 2 {
		t.Fatalf("columns = %#v", columns)
	}
	if columns[0].Name != "ORDER_ID" || columns[0].Nullable || columns[0].MaxLength != nil {
		t.Fatalf("columns[0] = %#v", columns[0])
	}
	if columns[1].Name != "REGION" || !columns[1].Nullable || columns[1].MaxLength == nil || *columns[1].MaxLength != 16777216 {
		t.Fatalf("columns[1] = %#v", columns[1])
	}
	if columns[1].Position != 2 {
		t.Fatalf("columns[1].Position = %d", columns[1].Position)
	}
}

func TestGetSampleQuotesIdentifiersAndLimits(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "SALES"."Order""Lines" LIMIT 100`)).
		WillReturnRows(sqlmock.NewRows([]string{"ID"}).AddRow(int64(1)))

	result, err := NewSQLClient(db, testSnowflake, nil).GetSample(context.Background(), "SALES", `Order"Lines`, 0)
	if err != nil {
		t.Fatalf("GetSample() error = %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("rows = %#v", result.Rows)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestExecuteClassifiesDeclaredTypesAndNormalizesValues(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("REGION").OfType("TEXT", ""),
		sqlmock.NewColumn("REVENUE").OfType("FIXED", ""),
		sqlmock.NewColumn("AVG_PRICE").OfType("NUMBER(10,2)", ""),
		sqlmock.NewColumn("DAY").OfType("DATE", day),
	).AddRow([]byte("east"), "1200", "12.50", day)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT REGION, REVENUE, AVG_PRICE, DAY FROM SALES.ORDERS")).WillReturnRows(rows)

	result, err := NewSQLClient(db, testSnowflake, nil).Execute(context.Background(), "SELECT REGION, REVENUE, AVG_PRICE, DAY FROM SALES.ORDERS")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	kinds := []ColumnKind{KindCategorical, KindNumeric, KindNumeric, KindTemporal}
	for i, want := range kinds {
		if result.Columns[i].Kind != want {
			t.Fatalf("Columns[%d].Kind = %q, want %q", i, result.Columns[i].Kind, want)
		}
	}
	row := result.Rows[0]
	if row[0] != "east" {
		t.Fatalf("row[0] = %#v", row[0])
	}
	if row[1] != int64(1200) {
		t.Fatalf("row[1] = %#v", row[1])
	}
	if row[2] != 12.5 {
		t.Fatalf("row[2] = %#v", row[2])
	}
}

func TestExecuteInfersKindsWithoutTypeNames(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"region", "revenue", "flag"}).
		AddRow(nil, nil, nil).
		AddRow("west", 3.5, true))

	result, err := NewSQLClient(db, testSnowflake, nil).Execute(context.Background(), "SELECT region, revenue, flag FROM t")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Columns[0].Kind != KindCategorical || result.Columns[1].Kind != KindNumeric || result.Columns[2].Kind != KindBoolean {
		t.Fatalf("columns = %#v", result.Columns)
	}
}

func TestExecuteWrapsQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("SQL compilation error"))

	_, err = NewSQLClient(db, testSnowflake, nil).Execute(context.Background(), "SELECT nope")
	if !errors.Is(err, ErrQuery) {
		t.Fatalf("Execute() error = %v, want ErrQuery", err)
	}
	if _, err := NewSQLClient(db, testSnowflake, nil).Execute(context.Background(), "  "); !errors.Is(err, ErrQuery) {
		t.Fatalf("Execute(empty) error = %v", err)
	}
}

func TestAttachRunsSetupStatements(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}

	mock.ExpectPing()
	mock.ExpectExec(regexp.QuoteMeta(`USE DATABASE "SALES"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`USE WAREHOUSE "WH"`)).WillReturnResult(sqlmock.NewResult(0, 0))

	driver := Driver{
		Dialect: testSnowflake,
		Setup: func(cfg Config) []string {
			return []string{"USE DATABASE " + QuoteIdent(cfg.Database), "USE WAREHOUSE " + QuoteIdent(cfg.Warehouse)}
		},
	}
	client, err := Attach(context.Background(), db, driver, Config{Database: "SALES", Warehouse: "WH"}, nil)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if client.Dialect() != "snowflake" {
		t.Fatalf("Dialect() = %q", client.Dialect())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
	_ = client.Close()
}

func TestAttachFailsOnSetupError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}

	mock.ExpectPing()
	mock.ExpectExec("USE DATABASE").WillReturnError(errors.New("database does not exist"))
	mock.ExpectClose()

	driver := Driver{
		Dialect: testSnowflake,
		Setup:   func(Config) []string { return []string{`USE DATABASE "NOPE"`} },
	}
	_, err = Attach(context.Background(), db, driver, Config{}, nil)
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("Attach() error = %v, want ErrConnection", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestConnectRejectsUnknownDialect(t *testing.T) {
	_, err := Connect(context.Background(), Config{Dialect: "oracle"}, nil)
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("Connect() error = %v", err)
	}
}
