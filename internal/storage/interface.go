package storage

import (
	"context"
	"io"
)

// ObjectStorage is the bucket surface the snapshot archive writes through.
// Download wraps ErrObjectNotFound for a missing key.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
}
