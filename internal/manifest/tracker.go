// Package manifest maintains the per-version JSON descriptor in the
// object store. The descriptor is read-modify-written, so the tracker
// serializes writers per version with a lock; without it, two concurrent
// category uploads for the same version can silently drop each other's
// entry.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/packvault/internal/cache"
	"github.com/prn-tf/packvault/internal/domain"
	"github.com/prn-tf/packvault/internal/lock"
	"github.com/prn-tf/packvault/internal/storage"
)

// ErrLockNotAcquired indicates the per-version manifest lock could not be
// acquired within the retry budget.
var ErrLockNotAcquired = errors.New("manifest lock not acquired")

// Options tune the tracker's locking and caching behavior.
type Options struct {
	// LockTTL bounds how long a crashed writer can block others.
	LockTTL time.Duration

	// LockRetries and LockRetryDelay shape the acquisition loop.
	LockRetries    int
	LockRetryDelay time.Duration

	// CacheTTL bounds staleness of cached manifest reads.
	CacheTTL time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		LockTTL:        10 * time.Second,
		LockRetries:    50,
		LockRetryDelay: 100 * time.Millisecond,
		CacheTTL:       time.Minute,
	}
}

// Tracker loads and mutates version manifests.
type Tracker struct {
	store  storage.ObjectStore
	locker lock.Locker
	cache  cache.Cache // optional
	opts   Options
	logger zerolog.Logger
}

// NewTracker creates a manifest tracker. cache may be nil.
func NewTracker(store storage.ObjectStore, locker lock.Locker, c cache.Cache, opts Options, logger zerolog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		locker: locker,
		cache:  c,
		opts:   opts,
		logger: logger.With().Str("component", "manifest").Logger(),
	}
}

func cacheKey(packageID, versionID string) string {
	return "manifest:" + packageID + ":" + versionID
}

// Load reads the manifest for a version. Returns domain.ErrManifestNotFound
// if no manifest has been written yet.
func (t *Tracker) Load(ctx context.Context, packageID, versionID string) (*domain.Manifest, error) {
	if t.cache != nil {
		if data, err := t.cache.Get(ctx, cacheKey(packageID, versionID)); err == nil {
			m := &domain.Manifest{}
			if err := json.Unmarshal(data, m); err == nil {
				return m, nil
			}
			// Corrupt cache entry: fall through to the store.
		}
	}

	data, err := storage.GetBytes(ctx, t.store, storage.ManifestKey(packageID, versionID))
	if err != nil {
		if errors.Is(err, domain.ErrBlobNotFound) {
			return nil, domain.ErrManifestNotFound
		}
		return nil, fmt.Errorf("load manifest: %w", err)
	}

	m := &domain.Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	if t.cache != nil {
		_ = t.cache.Set(ctx, cacheKey(packageID, versionID), data, t.opts.CacheTTL)
	}
	return m, nil
}

// UpsertCategory records a category's stored digest in the version's
// manifest, creating the manifest from version metadata if it does not
// exist yet. A non-empty reusedFrom marks the category as referencing
// blobs stored under that version. The whole read-modify-write cycle runs
// under the per-version lock.
func (t *Tracker) UpsertCategory(
	ctx context.Context,
	pkg *domain.Package,
	version *domain.PackageVersion,
	category domain.Category,
	digest, reusedFrom string,
) (*domain.Manifest, error) {
	lockKey := lock.ManifestKey(pkg.ID, version.ID)
	acquired, err := t.locker.AcquireWithRetry(ctx, lockKey, t.opts.LockTTL, t.opts.LockRetries, t.opts.LockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire manifest lock: %w", err)
	}
	if !acquired {
		return nil, ErrLockNotAcquired
	}
	defer func() {
		if _, err := t.locker.Release(ctx, lockKey); err != nil {
			t.logger.Warn().Err(err).Str("key", lockKey).Msg("failed to release manifest lock")
		}
	}()

	m, err := t.Load(ctx, pkg.ID, version.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrManifestNotFound) {
			return nil, err
		}
		m = domain.NewManifest(pkg, version)
	}

	m.SetCategory(category, digest, reusedFrom)

	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	key := storage.ManifestKey(pkg.ID, version.ID)
	if err := t.store.Put(ctx, key, strings.NewReader(string(data)), int64(len(data))); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	if t.cache != nil {
		_ = t.cache.Set(ctx, cacheKey(pkg.ID, version.ID), data, t.opts.CacheTTL)
	}

	t.logger.Info().
		Str("package", pkg.ID).
		Str("version", version.ID).
		Str("category", category.String()).
		Str("digest", digest).
		Str("reused_from", reusedFrom).
		Msg("manifest updated")

	return m, nil
}
