package fs

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/packvault/internal/domain"
	"github.com/prn-tf/packvault/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := New(dir+"/blobs", dir+"/temp", zerolog.Nop())
	require.NoError(t, err)
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := "skyfactory/v1/mods/abc123.zip"

	err := store.Put(ctx, key, strings.NewReader("archive bytes"), int64(len("archive bytes")))
	require.NoError(t, err)

	rc, err := store.Get(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "archive bytes", string(data))
}

func TestPutOverwritesSameKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := "pkg/v1/configs/digest.zip"

	require.NoError(t, store.Put(ctx, key, strings.NewReader("first"), 5))
	require.NoError(t, store.Put(ctx, key, strings.NewReader("again"), 5))

	data, err := storage.GetBytes(ctx, store, key)
	require.NoError(t, err)
	assert.Equal(t, "again", string(data))
}

func TestPutSizeMismatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := "pkg/v1/mods/short.zip"

	err := store.Put(ctx, key, strings.NewReader("abc"), 10)
	require.Error(t, err)

	// A failed write must not leave a partial blob behind.
	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGetMissingBlob(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "pkg/v1/mods/missing")
	assert.ErrorIs(t, err, domain.ErrBlobNotFound)
}

func TestExistsAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := "pkg/v1/manifest.json"

	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Put(ctx, key, strings.NewReader("{}"), 2))
	exists, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Delete(ctx, key))
	err = store.Delete(ctx, key)
	assert.ErrorIs(t, err, domain.ErrBlobNotFound)
}

func TestRejectsEscapingKeys(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"", "../outside", "pkg/../../outside", "/absolute/path"} {
		err := store.Put(ctx, key, strings.NewReader("x"), 1)
		assert.ErrorIs(t, err, domain.ErrInvalidIdentifier, "key %q", key)
	}
}
