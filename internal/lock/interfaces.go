// Package lock provides local and distributed locking for PackVault.
// Its single serious customer is the manifest tracker, which must
// serialize read-modify-write cycles against a version's manifest object.
// Single-node deployments use the in-memory locker; multi-node
// deployments use the Redis locker.
package lock

import (
	"context"
	"time"
)

// Locker is the locking abstraction. Locks are advisory, keyed by string,
// and expire after their TTL so a crashed holder cannot wedge writers.
type Locker interface {
	// Acquire attempts to acquire the lock once. Returns true if the
	// lock was acquired, false if another holder has it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// AcquireWithRetry attempts to acquire the lock, retrying up to
	// maxRetries times with retryDelay between attempts.
	AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error)

	// Release releases the lock. Returns true if it was held.
	Release(ctx context.Context, key string) (bool, error)

	// IsHeld reports whether the lock is currently held.
	IsHeld(ctx context.Context, key string) (bool, error)
}

// ManifestKey returns the lock key serializing manifest writes for one
// package version.
func ManifestKey(packageID, versionID string) string {
	return "lock:manifest:" + packageID + ":" + versionID
}
