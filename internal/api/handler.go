package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/insightdeck/insightdeck/internal/config"
	"github.com/insightdeck/insightdeck/internal/export"
	"github.com/insightdeck/insightdeck/internal/observability"
	"github.com/insightdeck/insightdeck/internal/session"
)

type ReadinessCheck func(ctx context.Context) error

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Sessions          *session.Store
	Orchestrator      *session.Orchestrator
	Exporter          *export.Exporter
	UI                http.Handler
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	routes := sessionRoutes(deps)

	protected := http.NewServeMux()
	for pattern, handler := range routes {
		protected.HandleFunc(pattern, handler)
	}

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	for pattern := range routes {
		mux.Handle(pattern, protectedHandler)
	}
	if deps.UI != nil {
		mux.Handle("GET /{path...}", deps.UI)
	}

	// Logging wraps the request in a new context, so it sits outside the
	// metrics middleware, which reads the route pattern the mux sets.
	middlewares := []func(http.Handler) http.Handler{observability.TraceMiddleware}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	middlewares = append(middlewares, observability.MetricsMiddleware)
	return chain(mux, middlewares...)
}

// sessionRoutes are the endpoints that act on a caller's session and sit
// behind authentication.
func sessionRoutes(deps Dependencies) map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"GET /v1/session":                           func(w http.ResponseWriter, r *http.Request) { handleGetSession(deps, w, r) },
		"POST /v1/session/connect":                  func(w http.ResponseWriter, r *http.Request) { handleConnect(deps, w, r) },
		"DELETE /v1/session":                        func(w http.ResponseWriter, r *http.Request) { handleDisconnect(deps, w, r) },
		"PUT /v1/session/schema":                    func(w http.ResponseWriter, r *http.Request) { handleSelectSchema(deps, w, r) },
		"PUT /v1/session/table":                     func(w http.ResponseWriter, r *http.Request) { handleSelectTable(deps, w, r) },
		"POST /v1/session/questions":                func(w http.ResponseWriter, r *http.Request) { handleGenerate(deps, w, r) },
		"POST /v1/session/questions/{index}/run":    func(w http.ResponseWriter, r *http.Request) { handleRunQuestion(deps, w, r) },
		"POST /v1/session/questions/{index}/export": func(w http.ResponseWriter, r *http.Request) { handleExportQuestion(deps, w, r) },
		"DELETE /v1/session/logs":                   func(w http.ResponseWriter, r *http.Request) { handleClearLogs(deps, w, r) },
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func errorBody(ctx context.Context, code, message string, retryable bool, extra map[string]any) map[string]any {
	return map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, errorBody(ctx, code, message, retryable, extra))
}
