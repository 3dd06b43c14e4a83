// Package fs implements the PackVault object store on the local filesystem.
// Suitable for single-node deployments; keys map directly to paths under a
// base directory. Writes go to a temp file first and are renamed into place
// so readers never observe a partially written blob.
package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/packvault/internal/domain"
	"github.com/prn-tf/packvault/internal/storage"
)

// Store implements storage.ObjectStore using a local directory tree.
type Store struct {
	baseDir string
	tempDir string
	logger  zerolog.Logger
}

// New creates a filesystem object store rooted at baseDir. Temp files are
// written under tempDir, which should be on the same filesystem so that
// rename stays atomic.
func New(baseDir, tempDir string, logger zerolog.Logger) (*Store, error) {
	for _, dir := range []string{baseDir, tempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
		}
	}
	return &Store{
		baseDir: baseDir,
		tempDir: tempDir,
		logger:  logger.With().Str("storage", "fs").Logger(),
	}, nil
}

// resolve maps an object key to a filesystem path, rejecting keys that
// would escape the base directory.
func (s *Store) resolve(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidIdentifier, key)
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(key)), nil
}

// Put stores the bytes readable from r at key.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create blob dir: %w", err)
	}

	tmp := filepath.Join(s.tempDir, uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write blob %s: %w", key, err)
	}
	if size >= 0 && n != size {
		os.Remove(tmp)
		return fmt.Errorf("write blob %s: size mismatch: wrote %d, expected %d", key, n, size)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit blob %s: %w", key, err)
	}

	s.logger.Debug().Str("key", key).Int64("size", n).Msg("blob stored")
	return nil
}

// Get retrieves the blob at key.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrBlobNotFound, key)
		}
		return nil, fmt.Errorf("open blob %s: %w", key, err)
	}
	return f, nil
}

// Exists reports whether a blob exists at key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat blob %s: %w", key, err)
	}
	return true, nil
}

// Delete removes the blob at key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", domain.ErrBlobNotFound, key)
		}
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return nil
}

// Ensure Store implements ObjectStore.
var _ storage.ObjectStore = (*Store)(nil)
