package seed

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Config struct {
	DSN       string
	Customers int
	Orders    int
	Events    int
	Seed      int64
	StartDate time.Time
	Days      int
	Reset     bool
}

func DefaultConfig() Config {
	return Config{
		DSN:       "insightdeck-demo.duckdb",
		Customers: 200,
		Orders:    2000,
		Events:    5000,
		Seed:      42,
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Days:      180,
		Reset:     true,
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if err := applyString(lookup, "INSIGHTDECK_DEMO_DSN", &cfg.DSN); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "INSIGHTDECK_DEMO_CUSTOMERS", &cfg.Customers); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "INSIGHTDECK_DEMO_ORDERS", &cfg.Orders); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "INSIGHTDECK_DEMO_EVENTS", &cfg.Events); err != nil {
		return Config{}, err
	}
	if err := applyInt64(lookup, "INSIGHTDECK_DEMO_SEED", &cfg.Seed); err != nil {
		return Config{}, err
	}
	if err := applyDate(lookup, "INSIGHTDECK_DEMO_START_DATE", &cfg.StartDate); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "INSIGHTDECK_DEMO_DAYS", &cfg.Days); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "INSIGHTDECK_DEMO_RESET", &cfg.Reset); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DSN) == "" {
		return fmt.Errorf("INSIGHTDECK_DEMO_DSN is required")
	}
	if c.Customers <= 0 {
		return fmt.Errorf("INSIGHTDECK_DEMO_CUSTOMERS must be > 0")
	}
	if c.Orders < 0 {
		return fmt.Errorf("INSIGHTDECK_DEMO_ORDERS must be >= 0")
	}
	if c.Events < 0 {
		return fmt.Errorf("INSIGHTDECK_DEMO_EVENTS must be >= 0")
	}
	if c.Days <= 0 {
		return fmt.Errorf("INSIGHTDECK_DEMO_DAYS must be > 0")
	}
	return nil
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyDate(lookup LookupFunc, key string, dst *time.Time) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
