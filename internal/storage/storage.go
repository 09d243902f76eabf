package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key  string
	Size int64
	ETag string
}

type PutOptions struct {
	ContentType string
	// Metadata is stored alongside the object as user metadata.
	Metadata map[string]string
}

// ObjectStore is where exported results are written.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	// PresignGet returns a time-limited download URL for key. Browsers that
	// follow the link save the object under its base name.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	Ping(ctx context.Context) error
}
