// Package storage defines the object-store abstraction for PackVault.
// The store is a flat key/value namespace of opaque byte blobs; callers
// supply hierarchical keys built by the keys helpers in this package.
// Because blob keys embed content digests, writing the same bytes to the
// same key twice is an effective no-op, so backends need no locking.
package storage

import (
	"context"
	"io"
)

// ObjectStore is the interface for blob storage backends.
// Implementations include the local filesystem and S3-compatible stores.
// All methods honor context cancellation; callers wrap round trips in
// bounded timeouts and treat deadline errors as retryable I/O failures.
type ObjectStore interface {
	// Put stores the bytes readable from r at key, overwriting any
	// existing blob. size is the exact byte count to expect.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Get retrieves the blob at key. The returned ReadCloser must be
	// closed by the caller. Returns domain.ErrBlobNotFound if no blob
	// exists at the key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether a blob exists at key.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the blob at key. Returns domain.ErrBlobNotFound if
	// no blob exists at the key.
	Delete(ctx context.Context, key string) error
}

// GetBytes is a convenience wrapper that reads a whole blob into memory.
func GetBytes(ctx context.Context, store ObjectStore, key string) ([]byte, error) {
	rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
