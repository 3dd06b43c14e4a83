package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerAcquireRelease(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()
	key := ManifestKey("skyfactory", "v1")

	acquired, err := locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	// Second acquisition fails while held.
	acquired, err = locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)

	held, err := locker.IsHeld(ctx, key)
	require.NoError(t, err)
	assert.True(t, held)

	released, err := locker.Release(ctx, key)
	require.NoError(t, err)
	assert.True(t, released)

	acquired, err = locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestMemoryLockerTTLExpiry(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	acquired, err := locker.Acquire(ctx, "key", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, acquired)

	time.Sleep(20 * time.Millisecond)

	// An expired lock can be taken over.
	acquired, err = locker.Acquire(ctx, "key", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestMemoryLockerAcquireWithRetry(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	acquired, err := locker.Acquire(ctx, "key", 30*time.Millisecond)
	require.NoError(t, err)
	require.True(t, acquired)

	// Retrying outlives the holder's TTL.
	acquired, err = locker.AcquireWithRetry(ctx, "key", time.Minute, 10, 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestMemoryLockerReleaseUnheld(t *testing.T) {
	locker := NewMemoryLocker()

	released, err := locker.Release(context.Background(), "never-held")
	require.NoError(t, err)
	assert.False(t, released)
}

func TestMemoryLockerContextCancelled(t *testing.T) {
	locker := NewMemoryLocker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := locker.Acquire(ctx, "key", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestManifestKey(t *testing.T) {
	assert.Equal(t, "lock:manifest:skyfactory:v1", ManifestKey("skyfactory", "v1"))
}
