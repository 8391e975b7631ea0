package objstore

import (
	"context"
	"io"
)

// ObjectStore holds raw document payloads keyed by storage key. The database
// keeps only the key; binaries never enter Postgres.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	// Get returns a reader over the object. The caller must close it.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
