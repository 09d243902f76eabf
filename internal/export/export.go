// Package export writes query results to the object store as parquet files.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/insightdeck/insightdeck/internal/observability"
	"github.com/insightdeck/insightdeck/internal/storage"
	"github.com/insightdeck/insightdeck/internal/warehouse"
)

var (
	ErrDisabled = errors.New("export is not configured")
	ErrExport   = errors.New("export failed")
)

const (
	contentType          = "application/vnd.apache.parquet"
	defaultPresignExpiry = 15 * time.Minute
)

type Options struct {
	PresignExpiry time.Duration
	Logger        *slog.Logger
	Now           func() time.Time
}

type Exporter struct {
	store         storage.ObjectStore
	presignExpiry time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// New returns an exporter writing to store. A nil store yields an exporter
// that always reports ErrDisabled.
func New(store storage.ObjectStore, opts Options) *Exporter {
	expiry := opts.PresignExpiry
	if expiry <= 0 {
		expiry = defaultPresignExpiry
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Exporter{store: store, presignExpiry: expiry, logger: opts.Logger, now: now}
}

func (e *Exporter) Enabled() bool {
	return e != nil && e.store != nil
}

type ExportRequest struct {
	SessionID string
	Table     warehouse.TableRef
	// Question is 1-based.
	Question int
	Result   warehouse.TableResult
}

type Export struct {
	Key         string   `json:"key"`
	Size        int64    `json:"size"`
	ETag        string   `json:"etag,omitempty"`
	RecordCount int64    `json:"record_count"`
	Columns     []string `json:"columns"`
	URL         string   `json:"url,omitempty"`
}

func (e *Exporter) Export(ctx context.Context, req ExportRequest) (out Export, err error) {
	if !e.Enabled() {
		return Export{}, ErrDisabled
	}
	defer func() { observability.ObserveExport(err) }()
	logger := observability.LoggerFromContext(ctx, e.logger)

	key, err := storage.BuildExportPath(req.SessionID, req.Table.Schema, req.Table.Table, req.Question, e.now())
	if err != nil {
		return Export{}, fmt.Errorf("%w: %w", ErrExport, err)
	}
	encoded, err := EncodeParquet(req.Result)
	if err != nil {
		return Export{}, fmt.Errorf("%w: encode: %w", ErrExport, err)
	}
	info, err := e.store.Put(ctx, key, bytes.NewReader(encoded.Data), int64(len(encoded.Data)), storage.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"session":  req.SessionID,
			"table":    req.Table.Qualified(),
			"question": strconv.Itoa(req.Question),
			"records":  strconv.FormatInt(encoded.RecordCount, 10),
		},
	})
	if err != nil {
		return Export{}, fmt.Errorf("%w: %w", ErrExport, err)
	}

	out = Export{
		Key:         info.Key,
		Size:        int64(len(encoded.Data)),
		ETag:        info.ETag,
		RecordCount: encoded.RecordCount,
		Columns:     encoded.Columns,
	}
	if link, presignErr := e.store.PresignGet(ctx, key, e.presignExpiry); presignErr != nil {
		logger.WarnContext(ctx, "presigning export failed", slog.String("key", key), slog.String("error", presignErr.Error()))
	} else {
		out.URL = link
	}

	logger.InfoContext(ctx, "result exported",
		slog.String("key", out.Key),
		slog.Int64("records", out.RecordCount),
		slog.Int64("bytes", out.Size),
	)
	return out, nil
}
