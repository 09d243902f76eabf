package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/insightdeck/insightdeck/internal/observability"
)

var ErrForbidden = errors.New("forbidden")

type identityKey struct{}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}

// Authorize checks role against the identity on ctx. Requests that carry no
// identity were not authenticated because auth is disabled, and pass.
func Authorize(ctx context.Context, role string) error {
	identity, ok := IdentityFromContext(ctx)
	if !ok || identity.HasRole(role) {
		return nil
	}
	return fmt.Errorf("%w: session %q lacks role %q", ErrForbidden, identity.SessionID, role)
}

// Middleware resolves the caller's key to an Identity. The identity is put on
// the request context, and the request logger is tagged with its session so
// the lines captured into that session's log panel are attributable.
func Middleware(logger *slog.Logger, validator APIKeyValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			reqLogger := observability.LoggerFromContext(ctx, logger)

			key, source := credential(r)
			if key == "" {
				writeUnauthorized(w, r, "missing API key")
				return
			}
			identity, ok := validator.Validate(ctx, key)
			if !ok {
				reqLogger.WarnContext(ctx, "authentication failed",
					slog.String("credential_source", source),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				writeUnauthorized(w, r, "invalid API key")
				return
			}

			ctx = WithIdentity(ctx, identity)
			ctx = observability.ContextWithLogger(ctx, reqLogger.With(slog.String("session_id", identity.SessionID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// credential returns the presented key and the header it came from.
func credential(r *http.Request) (string, string) {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key, "x-api-key"
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ""
	}
	return strings.TrimSpace(token), "bearer"
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="insightdeck"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error_code": "UNAUTHORIZED",
		"message":    message,
		"retryable":  false,
		"trace_id":   observability.TraceIDFromContext(r.Context()),
	})
}
