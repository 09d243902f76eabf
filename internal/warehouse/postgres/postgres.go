// Package postgres registers a PostgreSQL dialect backed by pgx.
package postgres

import (
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/insightdeck/insightdeck/internal/warehouse"
)

const Name = "postgres"

var Dialect = warehouse.Dialect{
	Name:            Name,
	ExcludedSchemas: []string{"INFORMATION_SCHEMA", "PUBLIC", "PG_CATALOG", "PG_TOAST"},
	NumberedParams:  true,
}

func init() {
	warehouse.Register(Name, Driver())
}

func Driver() warehouse.Driver {
	return warehouse.Driver{
		DriverName: "pgx",
		Dialect:    Dialect,
		DSN: func(cfg warehouse.Config) (string, error) {
			if cfg.DSN == "" {
				return "", fmt.Errorf("postgres dsn is required")
			}
			return cfg.DSN, nil
		},
	}
}
