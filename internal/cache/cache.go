// Package cache defines a small byte-value cache used to avoid repeated
// object-store round trips for hot manifests. In-memory for single-node
// deployments, Redis for distributed ones.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss indicates the key was not found in cache.
var ErrCacheMiss = errors.New("cache miss")

// Cache is the caching abstraction. Values are opaque byte slices.
type Cache interface {
	// Get retrieves a value by key. Returns ErrCacheMiss if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with a TTL. A zero TTL means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value by key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
