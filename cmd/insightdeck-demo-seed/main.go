package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/insightdeck/insightdeck/internal/demo/seed"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := seed.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		logger.Error("failed to load demo seed config", slog.Any("error", err))
		os.Exit(1)
	}
	service, err := seed.NewService(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize demo seeder", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("duckdb", cfg.DSN)
	if err != nil {
		logger.Error("failed to open demo database", slog.String("dsn", cfg.DSN), slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	logger.Info("seeding demo warehouse",
		slog.String("dsn", cfg.DSN),
		slog.Int64("seed", cfg.Seed),
		slog.Bool("reset", cfg.Reset),
	)
	if _, err := service.Run(ctx, db); err != nil {
		logger.Error("demo seed failed", slog.Any("error", err))
		_ = db.Close()
		os.Exit(1)
	}
	logger.Info("demo warehouse ready; set INSIGHTDECK_WAREHOUSE_DIALECT=duckdb and INSIGHTDECK_WAREHOUSE_DSN to this path")
}
