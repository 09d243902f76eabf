package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/insightdeck/insightdeck/internal/api"
	"github.com/insightdeck/insightdeck/internal/api/uistatic"
	"github.com/insightdeck/insightdeck/internal/auth"
	"github.com/insightdeck/insightdeck/internal/config"
	"github.com/insightdeck/insightdeck/internal/export"
	"github.com/insightdeck/insightdeck/internal/observability"
	"github.com/insightdeck/insightdeck/internal/questions"
	"github.com/insightdeck/insightdeck/internal/session"
	s3store "github.com/insightdeck/insightdeck/internal/storage/s3"
	"github.com/insightdeck/insightdeck/internal/warehouse"
	_ "github.com/insightdeck/insightdeck/internal/warehouse/duckdb"
	_ "github.com/insightdeck/insightdeck/internal/warehouse/postgres"
	_ "github.com/insightdeck/insightdeck/internal/warehouse/snowflake"
)

func main() {
	cfg, err := config.LoadFromEnv("insightdeck-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	completer, err := newCompleter(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize language model client", slog.Any("error", err))
		os.Exit(1)
	}
	if completer == nil {
		logger.Warn("no language model api key configured, question generation is disabled", slog.String("ai_provider", cfg.AI.Provider))
	}
	generator := questions.NewGenerator(completer, questions.Options{
		Temperature:      cfg.AI.Temperature,
		PromptSampleRows: cfg.AI.PromptSampleRows,
		Logger:           logger,
	})

	warehouseCfg := warehouse.Config{
		Dialect:   cfg.Warehouse.Dialect,
		Account:   cfg.Warehouse.Account,
		User:      cfg.Warehouse.User,
		Password:  cfg.Warehouse.Password,
		Warehouse: cfg.Warehouse.Name,
		Database:  cfg.Warehouse.Database,
		Role:      cfg.Warehouse.Role,
		DSN:       cfg.Warehouse.DSN,
	}
	connect := func(ctx context.Context) (warehouse.Client, error) {
		return warehouse.Connect(ctx, warehouseCfg, observability.LoggerFromContext(ctx, logger))
	}
	orchestrator := session.NewOrchestrator(connect, generator, session.Options{
		SampleRows:   cfg.Warehouse.SampleRows,
		QueryTimeout: cfg.Warehouse.QueryTimeout,
		LogLevel:     cfg.Observability.LogLevel,
		Logger:       logger,
	})
	sessions := session.NewStore(logger)
	defer sessions.Close()

	readiness := []api.ReadinessCheck{
		api.CheckWarehouseConfig(cfg),
		api.CheckLanguageModelConfig(cfg),
	}
	exporter := export.New(nil, export.Options{Logger: logger})
	if cfg.ObjectStore.Enabled {
		objectStore, err := s3store.New(ctx, s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		exporter = export.New(objectStore, export.Options{PresignExpiry: cfg.ObjectStore.PresignExpiry, Logger: logger})
		readiness = append(readiness, api.CheckObjectStore(objectStore))
	}

	deps := api.Dependencies{
		Logger:            logger,
		Sessions:          sessions,
		Orchestrator:      orchestrator,
		Exporter:          exporter,
		UI:                uistatic.Handler(),
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.NewHandler(cfg, deps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("dialect", cfg.Warehouse.Dialect),
			slog.String("ai_provider", cfg.AI.Provider),
			slog.String("ai_model", cfg.AI.Model),
			slog.Bool("export_enabled", exporter.Enabled()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

// newCompleter returns nil when no api key is configured; the service still
// starts so schemas can be browsed, and readiness reports the missing key.
func newCompleter(ctx context.Context, cfg config.Config) (questions.Completer, error) {
	if cfg.AI.APIKey == "" {
		return nil, nil
	}
	switch cfg.AI.Provider {
	case "openai":
		completer, err := questions.NewOpenAICompleter(questions.OpenAIConfig{
			BaseURL: cfg.AI.BaseURL,
			APIKey:  cfg.AI.APIKey,
			Model:   cfg.AI.Model,
			Timeout: cfg.AI.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return completer, nil
	case "gemini":
		completer, err := questions.NewGeminiCompleter(ctx, questions.GeminiConfig{
			BaseURL: cfg.AI.BaseURL,
			APIKey:  cfg.AI.APIKey,
			Model:   cfg.AI.Model,
			Timeout: cfg.AI.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return completer, nil
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.AI.Provider)
	}
}
