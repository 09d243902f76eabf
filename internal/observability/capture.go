package observability

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
)

const defaultCaptureLimit = 500

// LogBuffer collects formatted log lines for display in the session log panel.
// It keeps at most limit lines and drops the oldest first.
type LogBuffer struct {
	mu    sync.Mutex
	lines []string
	limit int
}

func NewLogBuffer(limit int) *LogBuffer {
	if limit <= 0 {
		limit = defaultCaptureLimit
	}
	return &LogBuffer{limit: limit}
}

// Write receives exactly one serialized record per call from slog's text handler.
func (b *LogBuffer) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	if over := len(b.lines) - b.limit; over > 0 {
		b.lines = append([]string(nil), b.lines[over:]...)
	}
	return len(p), nil
}

func (b *LogBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...)
}

func (b *LogBuffer) Handler(level slog.Leveler) slog.Handler {
	return slog.NewTextHandler(b, &slog.HandlerOptions{Level: level})
}

// CaptureLogger returns a logger that writes to base and to a fresh buffer.
func CaptureLogger(base *slog.Logger, level slog.Leveler) (*slog.Logger, *LogBuffer) {
	buf := NewLogBuffer(0)
	handlers := []slog.Handler{buf.Handler(level)}
	if base != nil {
		handlers = append(handlers, base.Handler())
	}
	return slog.New(teeHandler(handlers)), buf
}

type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range t {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(teeHandler, len(t))
	for i, h := range t {
		next[i] = h.WithAttrs(attrs)
	}
	return next
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	next := make(teeHandler, len(t))
	for i, h := range t {
		next[i] = h.WithGroup(name)
	}
	return next
}
