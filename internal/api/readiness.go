package api

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/insightdeck/insightdeck/internal/config"
	"github.com/insightdeck/insightdeck/internal/warehouse"
)

// CheckWarehouseConfig verifies that the configured dialect is compiled in and
// has the credentials it needs. It does not open a connection; sessions do.
func CheckWarehouseConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		dialect := cfg.Warehouse.Dialect
		if !slices.Contains(warehouse.Dialects(), dialect) {
			return fmt.Errorf("warehouse dialect %q is not available", dialect)
		}
		switch dialect {
		case "snowflake":
			if cfg.Warehouse.Account == "" || cfg.Warehouse.User == "" {
				return errors.New("snowflake account and user are not configured")
			}
		case "postgres":
			if cfg.Warehouse.DSN == "" {
				return errors.New("warehouse dsn is not configured")
			}
		}
		return nil
	}
}

func CheckLanguageModelConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.AI.APIKey == "" {
			return fmt.Errorf("%s api key is not configured", cfg.AI.Provider)
		}
		return nil
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

// CheckObjectStore pings the export bucket when exports are enabled.
func CheckObjectStore(store pinger) ReadinessCheck {
	if store == nil {
		return nil
	}
	return func(ctx context.Context) error {
		if err := store.Ping(ctx); err != nil {
			return fmt.Errorf("object store: %w", err)
		}
		return nil
	}
}
