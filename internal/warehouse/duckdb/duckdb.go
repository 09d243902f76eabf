// Package duckdb registers an embedded DuckDB dialect, used for local demo
// warehouses and tests. An empty DSN opens an in-memory database.
package duckdb

import (
	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/insightdeck/insightdeck/internal/warehouse"
)

const Name = "duckdb"

var Dialect = warehouse.Dialect{
	Name:               Name,
	ExcludedSchemas:    []string{"INFORMATION_SCHEMA", "MAIN", "PG_CATALOG"},
	CurrentCatalogOnly: true,
}

func init() {
	warehouse.Register(Name, Driver())
}

func Driver() warehouse.Driver {
	return warehouse.Driver{
		DriverName: "duckdb",
		Dialect:    Dialect,
		DSN: func(cfg warehouse.Config) (string, error) {
			return cfg.DSN, nil
		},
	}
}
