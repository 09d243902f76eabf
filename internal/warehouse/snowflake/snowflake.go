// Package snowflake registers the Snowflake dialect with the warehouse package.
package snowflake

import (
	"fmt"

	"github.com/snowflakedb/gosnowflake"

	"github.com/insightdeck/insightdeck/internal/warehouse"
)

const Name = "snowflake"

var Dialect = warehouse.Dialect{
	Name:            Name,
	ExcludedSchemas: []string{"INFORMATION_SCHEMA", "PUBLIC"},
}

func init() {
	warehouse.Register(Name, Driver())
}

func Driver() warehouse.Driver {
	return warehouse.Driver{
		DriverName: "snowflake",
		Dialect:    Dialect,
		DSN:        DSN,
		Setup:      Setup,
	}
}

func DSN(cfg warehouse.Config) (string, error) {
	if cfg.Account == "" {
		return "", fmt.Errorf("snowflake account is required")
	}
	if cfg.User == "" {
		return "", fmt.Errorf("snowflake user is required")
	}
	dsn, err := gosnowflake.DSN(&gosnowflake.Config{
		Account:   cfg.Account,
		User:      cfg.User,
		Password:  cfg.Password,
		Database:  cfg.Database,
		Warehouse: cfg.Warehouse,
		Role:      cfg.Role,
	})
	if err != nil {
		return "", fmt.Errorf("build snowflake dsn: %w", err)
	}
	return dsn, nil
}

// Setup pins database and warehouse for the session so unqualified
// information_schema queries resolve against the configured database.
func Setup(cfg warehouse.Config) []string {
	var statements []string
	if cfg.Database != "" {
		statements = append(statements, "USE DATABASE "+warehouse.QuoteIdent(cfg.Database))
	}
	if cfg.Warehouse != "" {
		statements = append(statements, "USE WAREHOUSE "+warehouse.QuoteIdent(cfg.Warehouse))
	}
	return statements
}
