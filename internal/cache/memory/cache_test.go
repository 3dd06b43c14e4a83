package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pvcache "github.com/prn-tf/packvault/internal/cache"
)

func TestSetGetDelete(t *testing.T) {
	c := NewCache()
	defer c.Close()
	ctx := context.Background()

	_, err := c.Get(ctx, "manifest:pkg:v1")
	assert.ErrorIs(t, err, pvcache.ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "manifest:pkg:v1", []byte(`{"name":"pack"}`), time.Minute))
	got, err := c.Get(ctx, "manifest:pkg:v1")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"pack"}`, string(got))

	require.NoError(t, c.Delete(ctx, "manifest:pkg:v1"))
	_, err = c.Get(ctx, "manifest:pkg:v1")
	assert.ErrorIs(t, err, pvcache.ErrCacheMiss)
}

func TestGetReturnsCopy(t *testing.T) {
	c := NewCache()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", []byte("abc"), 0))
	got, err := c.Get(ctx, "key")
	require.NoError(t, err)
	got[0] = 'x'

	again, err := c.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestTTLExpiry(t *testing.T) {
	c := NewCache()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("v"), 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, pvcache.ErrCacheMiss)

	// Zero TTL means no expiry.
	require.NoError(t, c.Set(ctx, "forever", []byte("v"), 0))
	time.Sleep(20 * time.Millisecond)
	_, err = c.Get(ctx, "forever")
	assert.NoError(t, err)
}
