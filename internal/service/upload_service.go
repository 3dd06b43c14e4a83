package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/packvault/internal/archive"
	"github.com/prn-tf/packvault/internal/domain"
	"github.com/prn-tf/packvault/internal/manifest"
	"github.com/prn-tf/packvault/internal/metrics"
	"github.com/prn-tf/packvault/internal/repository"
	"github.com/prn-tf/packvault/internal/storage"
)

// PermissionFunc decides whether an actor may publish into a package.
// Its implementation (roles, scopes) lives outside the core.
type PermissionFunc func(ctx context.Context, actorID, packageID string) (bool, error)

// UploadService stores category archives: it decomposes the upload,
// diffs it against the previous version of the same category, persists
// blobs and records, and merges the result into the version manifest.
type UploadService struct {
	packages        repository.PackageRepository
	versions        repository.VersionRepository
	versionFiles    repository.VersionFileRepository
	individualFiles repository.IndividualFileRepository
	store           storage.ObjectStore
	manifests       *manifest.Tracker
	canUpload       PermissionFunc
	metrics         *metrics.Metrics
	logger          zerolog.Logger
	blobTimeout     time.Duration
}

// NewUploadService creates a new UploadService.
func NewUploadService(
	repos *repository.Repositories,
	store storage.ObjectStore,
	manifests *manifest.Tracker,
	canUpload PermissionFunc,
	m *metrics.Metrics,
	logger zerolog.Logger,
	blobTimeout time.Duration,
) *UploadService {
	return &UploadService{
		packages:        repos.Packages,
		versions:        repos.Versions,
		versionFiles:    repos.VersionFiles,
		individualFiles: repos.IndividualFiles,
		store:           store,
		manifests:       manifests,
		canUpload:       canUpload,
		metrics:         m,
		logger:          logger.With().Str("service", "upload").Logger(),
		blobTimeout:     blobTimeout,
	}
}

// UploadInput contains the data needed to store a category archive.
type UploadInput struct {
	ActorID   string
	PackageID string
	VersionID string
	Category  domain.Category

	// Data is the compressed archive. Ignored when ReuseFromVersionID
	// is set.
	Data []byte

	// ReuseFromVersionID, when set, makes the upload a reuse event: the
	// bytes already stored for the category at that version are
	// referenced instead of re-uploaded.
	ReuseFromVersionID string
}

// UploadOutput contains the result of storing a category archive.
type UploadOutput struct {
	VersionFileID uuid.UUID
	IsDelta       bool
	FileCount     int
	TotalSize     int64
	AddedFiles    int
	RemovedFiles  int
	ModifiedFiles int
}

// Upload stores a category archive for a package version.
// Validation and the permission check run before any persistence; a
// failure there leaves no partial state.
func (s *UploadService) Upload(ctx context.Context, input UploadInput) (*UploadOutput, error) {
	if !input.Category.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCategory, input.Category)
	}

	allowed, err := s.canUpload(ctx, input.ActorID, input.PackageID)
	if err != nil {
		return nil, fmt.Errorf("%w: permission check: %v", ErrInternalError, err)
	}
	if !allowed {
		return nil, domain.ErrPermissionDenied
	}

	pkg, err := s.packages.GetByID(ctx, input.PackageID)
	if err != nil {
		return nil, err
	}
	version, err := s.versions.GetByID(ctx, input.VersionID)
	if err != nil {
		return nil, err
	}
	if version.PackageID != pkg.ID {
		return nil, domain.ErrVersionNotFound
	}

	if input.ReuseFromVersionID != "" {
		return s.reuseFromVersion(ctx, pkg, version, input.Category, input.ReuseFromVersionID)
	}

	output, err := s.storeUpload(ctx, pkg, version, input.Category, input.Data)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.UploadsTotal.WithLabelValues(input.Category.String(), outcome).Inc()
	return output, err
}

// storeUpload runs the fresh-upload path: decompose, diff, persist, merge.
func (s *UploadService) storeUpload(
	ctx context.Context,
	pkg *domain.Package,
	version *domain.PackageVersion,
	category domain.Category,
	data []byte,
) (*UploadOutput, error) {
	// Decompose first: a malformed archive aborts before anything is
	// persisted.
	entries, err := archive.Decompose(data)
	if err != nil {
		return nil, err
	}
	digest := archive.Digest(data)

	// Diff against the category's record from the nearest older release.
	var diff DiffResult
	isDelta := false
	previous, err := s.versionFiles.PrecedingByCategory(ctx, pkg.ID, category, version.Ordinal)
	switch {
	case err == nil:
		isDelta = true
		prevEntries, err := s.individualFiles.ListByVersionFile(ctx, previous.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: load previous entries: %v", ErrInternalError, err)
		}
		diff, err = Diff(recordRefs(prevEntries), entryRefs(entries))
		if err != nil {
			return nil, err
		}
	case errors.Is(err, domain.ErrVersionFileNotFound):
		// First upload of this category: recorded as non-delta with
		// zero counters, not as "all added".
	default:
		return nil, fmt.Errorf("%w: find previous version: %v", ErrInternalError, err)
	}

	var totalSize int64
	for _, e := range entries {
		totalSize += e.Size
	}

	// Blobs go first: content-addressed keys make these writes
	// idempotent, and no record ever points at a missing blob.
	archiveKey := storage.ArchiveKey(pkg.ID, version.ID, category, digest)
	if err := s.putBlob(ctx, archiveKey, data); err != nil {
		return nil, fmt.Errorf("%w: store archive: %v", ErrInternalError, err)
	}

	contents, err := archive.Contents(data)
	if err != nil {
		return nil, err
	}
	written := make(map[string]bool, len(contents))
	for _, f := range contents {
		entryDigest := archive.Digest(f.Data)
		if written[entryDigest] {
			continue
		}
		key := storage.EntryKey(pkg.ID, version.ID, category, entryDigest)
		if err := s.putBlob(ctx, key, f.Data); err != nil {
			return nil, fmt.Errorf("%w: store entry %s: %v", ErrInternalError, f.Path, err)
		}
		written[entryDigest] = true
	}

	vf := domain.NewVersionFile(pkg.ID, version.ID, category, digest, isDelta, len(entries), totalSize)
	if err := s.versionFiles.Create(ctx, vf); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: category %s already stored for version %s", err, category, version.ID)
		}
		return nil, fmt.Errorf("%w: create version file: %v", ErrInternalError, err)
	}

	records := make([]*domain.IndividualFile, 0, len(entries))
	for _, e := range entries {
		records = append(records, domain.NewIndividualFile(vf.ID, e.Path, e.Digest, e.Size))
	}
	if err := s.individualFiles.CreateBatch(ctx, records); err != nil {
		return nil, fmt.Errorf("%w: create individual files: %v", ErrInternalError, err)
	}

	if _, err := s.manifests.UpsertCategory(ctx, pkg, version, category, digest, ""); err != nil {
		return nil, fmt.Errorf("%w: update manifest: %v", ErrInternalError, err)
	}

	s.metrics.UploadBytes.Add(float64(len(data)))
	s.metrics.DiffFiles.WithLabelValues("added").Add(float64(diff.Added))
	s.metrics.DiffFiles.WithLabelValues("removed").Add(float64(diff.Removed))
	s.metrics.DiffFiles.WithLabelValues("modified").Add(float64(diff.Modified))

	s.logger.Info().
		Str("package", pkg.ID).
		Str("version", version.ID).
		Str("category", category.String()).
		Str("digest", digest).
		Bool("is_delta", isDelta).
		Int("file_count", len(entries)).
		Int("added", diff.Added).
		Int("removed", diff.Removed).
		Int("modified", diff.Modified).
		Msg("archive stored")

	return &UploadOutput{
		VersionFileID: vf.ID,
		IsDelta:       isDelta,
		FileCount:     len(entries),
		TotalSize:     totalSize,
		AddedFiles:    diff.Added,
		RemovedFiles:  diff.Removed,
		ModifiedFiles: diff.Modified,
	}, nil
}

// reuseFromVersion runs the reuse shortcut: new records referencing the
// source version's blobs, no bytes re-uploaded, no decomposition re-run.
func (s *UploadService) reuseFromVersion(
	ctx context.Context,
	pkg *domain.Package,
	version *domain.PackageVersion,
	category domain.Category,
	sourceVersionID string,
) (*UploadOutput, error) {
	// The allow-list guardrail runs before any writes.
	if !category.ReuseAllowed() {
		s.metrics.ReusesTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: %s", domain.ErrReuseNotAllowed, category)
	}

	sourceVersion, err := s.versions.GetByID(ctx, sourceVersionID)
	if err != nil {
		return nil, err
	}
	if sourceVersion.PackageID != pkg.ID {
		return nil, domain.ErrVersionNotFound
	}

	source, err := s.versionFiles.GetByVersionAndCategory(ctx, sourceVersionID, category)
	if err != nil {
		if errors.Is(err, domain.ErrVersionFileNotFound) {
			return nil, fmt.Errorf("%w: version %s category %s", domain.ErrReuseSourceMissing, sourceVersionID, category)
		}
		return nil, fmt.Errorf("%w: load reuse source: %v", ErrInternalError, err)
	}

	// If the source itself reused another version's bytes, point the
	// new manifest entry at the original storing version so blob keys
	// always resolve in one hop.
	origin := sourceVersion.ID
	if m, err := s.manifests.Load(ctx, pkg.ID, sourceVersion.ID); err == nil {
		origin = m.StorageVersion(category, sourceVersion.ID)
	} else if !errors.Is(err, domain.ErrManifestNotFound) {
		return nil, fmt.Errorf("%w: load source manifest: %v", ErrInternalError, err)
	}

	sourceEntries, err := s.individualFiles.ListByVersionFile(ctx, source.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: load source entries: %v", ErrInternalError, err)
	}

	vf := domain.NewReusedVersionFile(version.ID, source)
	if err := s.versionFiles.Create(ctx, vf); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: category %s already stored for version %s", err, category, version.ID)
		}
		return nil, fmt.Errorf("%w: create version file: %v", ErrInternalError, err)
	}
	if err := s.individualFiles.CreateBatch(ctx, domain.CopyIndividualFiles(vf.ID, sourceEntries)); err != nil {
		return nil, fmt.Errorf("%w: copy individual files: %v", ErrInternalError, err)
	}

	if _, err := s.manifests.UpsertCategory(ctx, pkg, version, category, source.Digest, origin); err != nil {
		return nil, fmt.Errorf("%w: update manifest: %v", ErrInternalError, err)
	}

	s.metrics.ReusesTotal.WithLabelValues("ok").Inc()
	s.logger.Info().
		Str("package", pkg.ID).
		Str("version", version.ID).
		Str("category", category.String()).
		Str("source_version", sourceVersion.ID).
		Str("origin_version", origin).
		Str("digest", source.Digest).
		Msg("category reused")

	// No diff runs for a reuse event; the counters stay zero.
	return &UploadOutput{
		VersionFileID: vf.ID,
		IsDelta:       vf.IsDelta,
		FileCount:     vf.FileCount,
		TotalSize:     vf.TotalSize,
	}, nil
}

// putBlob writes one blob with a bounded timeout around the round trip.
func (s *UploadService) putBlob(ctx context.Context, key string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.blobTimeout)
	defer cancel()

	start := time.Now()
	err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)))
	s.metrics.BlobOpDuration.WithLabelValues("put").Observe(time.Since(start).Seconds())
	return err
}
