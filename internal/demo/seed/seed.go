// Package seed fills a DuckDB database with a small, deterministic sales and
// web analytics data set for local exploration.
package seed

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/insightdeck/insightdeck/internal/warehouse"
)

type Summary struct {
	Customers int
	Orders    int
	Events    int
	Elapsed   time.Duration
}

type Service struct {
	cfg Config
	log *slog.Logger
}

type tableDef struct {
	schema  string
	table   string
	columns string
	insert  string
}

var (
	customersTable = tableDef{
		schema:  "SALES",
		table:   "CUSTOMERS",
		columns: `CUSTOMER_ID BIGINT PRIMARY KEY, NAME VARCHAR NOT NULL, SEGMENT VARCHAR, COUNTRY VARCHAR, SIGNUP_DATE DATE`,
		insert:  `(CUSTOMER_ID, NAME, SEGMENT, COUNTRY, SIGNUP_DATE) VALUES (?, ?, ?, ?, CAST(? AS DATE))`,
	}
	ordersTable = tableDef{
		schema: "SALES",
		table:  "ORDERS",
		columns: `ORDER_ID BIGINT PRIMARY KEY, CUSTOMER_ID BIGINT NOT NULL, ORDER_DATE DATE NOT NULL, REGION VARCHAR, ` +
			`PRODUCT_CATEGORY VARCHAR, UNITS INTEGER, UNIT_PRICE DECIMAL(10,2), AMOUNT DECIMAL(12,2), STATUS VARCHAR`,
		insert: `(ORDER_ID, CUSTOMER_ID, ORDER_DATE, REGION, PRODUCT_CATEGORY, UNITS, UNIT_PRICE, AMOUNT, STATUS) ` +
			`VALUES (?, ?, CAST(? AS DATE), ?, ?, ?, CAST(? AS DECIMAL(10,2)), CAST(? AS DECIMAL(12,2)), ?)`,
	}
	eventsTable = tableDef{
		schema:  "WEB",
		table:   "EVENTS",
		columns: `EVENT_ID BIGINT PRIMARY KEY, OCCURRED_AT TIMESTAMP NOT NULL, USER_ID VARCHAR, EVENT_TYPE VARCHAR, DEVICE VARCHAR, COUNTRY VARCHAR, AMOUNT DOUBLE`,
		insert:  `(EVENT_ID, OCCURRED_AT, USER_ID, EVENT_TYPE, DEVICE, COUNTRY, AMOUNT) VALUES (?, CAST(? AS TIMESTAMP), ?, ?, ?, ?, ?)`,
	}
)

func (d tableDef) qualified() string {
	return warehouse.QuoteIdent(d.schema) + "." + warehouse.QuoteIdent(d.table)
}

func NewService(cfg Config, logger *slog.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{cfg: cfg, log: logger}, nil
}

// Run creates the demo schemas and tables on db and loads them in a single
// transaction. With Reset set, existing demo tables are dropped first;
// otherwise a table that already exists is an error.
func (s *Service) Run(ctx context.Context, db *sql.DB) (Summary, error) {
	start := time.Now()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Summary{}, fmt.Errorf("begin seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	tables := []tableDef{customersTable, ordersTable, eventsTable}
	if s.cfg.Reset {
		for i := len(tables) - 1; i >= 0; i-- {
			if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+tables[i].qualified()); err != nil {
				return Summary{}, fmt.Errorf("drop %s.%s: %w", tables[i].schema, tables[i].table, err)
			}
		}
	}
	for _, schema := range []string{"SALES", "WEB"} {
		if _, err := tx.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+warehouse.QuoteIdent(schema)); err != nil {
			return Summary{}, fmt.Errorf("create schema %s: %w", schema, err)
		}
	}
	for _, t := range tables {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", t.qualified(), t.columns)); err != nil {
			return Summary{}, fmt.Errorf("create table %s.%s: %w", t.schema, t.table, err)
		}
	}

	gen := NewGenerator(s.cfg.Seed, s.cfg.StartDate, s.cfg.Days, s.cfg.Customers)

	if err := insertRows(ctx, tx, customersTable, s.cfg.Customers, func(i int) []any {
		c := gen.Customer(int64(i + 1))
		return []any{c.ID, c.Name, c.Segment, c.Country, c.SignupDate.Format(time.DateOnly)}
	}); err != nil {
		return Summary{}, err
	}
	if err := insertRows(ctx, tx, ordersTable, s.cfg.Orders, func(int) []any {
		o := gen.NextOrder()
		return []any{o.ID, o.CustomerID, o.OrderDate.Format(time.DateOnly), o.Region, o.Category, o.Units, o.UnitPrice, o.Amount, o.Status}
	}); err != nil {
		return Summary{}, err
	}
	if err := insertRows(ctx, tx, eventsTable, s.cfg.Events, func(int) []any {
		e := gen.NextEvent()
		var amount any
		if e.Amount != nil {
			amount = *e.Amount
		}
		return []any{e.ID, e.OccurredAt.Format(time.DateTime), e.UserID, e.EventType, e.Device, e.Country, amount}
	}); err != nil {
		return Summary{}, err
	}

	if err := tx.Commit(); err != nil {
		return Summary{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	summary := Summary{
		Customers: s.cfg.Customers,
		Orders:    s.cfg.Orders,
		Events:    s.cfg.Events,
		Elapsed:   time.Since(start),
	}
	s.log.InfoContext(ctx, "demo warehouse seeded",
		slog.Int("customers", summary.Customers),
		slog.Int("orders", summary.Orders),
		slog.Int("events", summary.Events),
		slog.Int64("seed", s.cfg.Seed),
		slog.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

func insertRows(ctx context.Context, tx *sql.Tx, def tableDef, n int, row func(i int) []any) error {
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+def.qualified()+" "+def.insert)
	if err != nil {
		return fmt.Errorf("prepare insert into %s.%s: %w", def.schema, def.table, err)
	}
	defer func() { _ = stmt.Close() }()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, row(i)...); err != nil {
			return fmt.Errorf("insert into %s.%s row %d: %w", def.schema, def.table, i+1, err)
		}
	}
	return nil
}
