package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

const pingTimeout = 15 * time.Second

// Driver describes how to reach one kind of warehouse through database/sql.
type Driver struct {
	DriverName string
	Dialect    Dialect
	DSN        func(cfg Config) (string, error)
	// Setup returns statements pinning session context after the ping.
	Setup func(cfg Config) []string
}

var (
	driversMu sync.RWMutex
	drivers   = map[string]Driver{}
)

// Register makes a driver available to Connect under name. Dialect packages
// call it from init.
func Register(name string, driver Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[strings.ToLower(name)] = driver
}

func Dialects() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Connect opens a single-connection client for cfg.Dialect.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*SQLClient, error) {
	name := cfg.normalizedDialect()
	driversMu.RLock()
	driver, ok := drivers[name]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown dialect %q (available: %s)", ErrConnection, cfg.Dialect, strings.Join(Dialects(), ", "))
	}

	dsn, err := driver.DSN(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	db, err := sql.Open(driver.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrConnection, name, err)
	}
	return Attach(ctx, db, driver, cfg, logger)
}

// Attach prepares an already opened handle: it pins the pool to one
// connection, pings, and runs the driver's setup statements. The handle is
// closed on failure.
func Attach(ctx context.Context, db *sql.DB, driver Driver, cfg Config, logger *slog.Logger) (*SQLClient, error) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", ErrConnection, driver.Dialect.Name, err)
	}

	if driver.Setup != nil {
		for _, statement := range driver.Setup(cfg) {
			if _, err := db.ExecContext(ctx, statement); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("%w: %s: %w", ErrConnection, statement, err)
			}
		}
	}

	if logger != nil {
		logger.InfoContext(ctx, "warehouse connected",
			slog.String("dialect", driver.Dialect.Name),
			slog.String("database", cfg.Database),
			slog.String("warehouse", cfg.Warehouse),
		)
	}
	return NewSQLClient(db, driver.Dialect, logger), nil
}
