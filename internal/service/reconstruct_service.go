package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
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

// ReconstructService rebuilds a complete archive for a stored version
// file from its per-entry blobs, extracting from whole-archive blobs
// when an individual blob is missing and drawing carried-over entries
// from the nearest preceding version if the target's own blobs are gone.
type ReconstructService struct {
	versions        repository.VersionRepository
	versionFiles    repository.VersionFileRepository
	individualFiles repository.IndividualFileRepository
	store           storage.ObjectStore
	manifests       *manifest.Tracker
	metrics         *metrics.Metrics
	logger          zerolog.Logger
	blobTimeout     time.Duration
}

// NewReconstructService creates a new ReconstructService.
func NewReconstructService(
	repos *repository.Repositories,
	store storage.ObjectStore,
	manifests *manifest.Tracker,
	m *metrics.Metrics,
	logger zerolog.Logger,
	blobTimeout time.Duration,
) *ReconstructService {
	return &ReconstructService{
		versions:        repos.Versions,
		versionFiles:    repos.VersionFiles,
		individualFiles: repos.IndividualFiles,
		store:           store,
		manifests:       manifests,
		metrics:         m,
		logger:          logger.With().Str("service", "reconstruct").Logger(),
		blobTimeout:     blobTimeout,
	}
}

// blobSource locates one version file's blobs: the storage version is the
// version under whose key prefix they live, which differs from the owning
// version when the category was reused. The whole archive is fetched at
// most once and kept for further extractions.
type blobSource struct {
	packageID      string
	storageVersion string
	category       domain.Category
	digest         string

	wholeArchive []byte
	wholeTried   bool
}

// Reconstruct rebuilds the full archive for a version file. The output is
// byte-deterministic for a given entry set. Paths whose content cannot be
// recovered from any source make the whole call fail with a
// *domain.ReconstructError; a partial archive is never returned.
func (s *ReconstructService) Reconstruct(ctx context.Context, packageID string, versionFileID uuid.UUID) ([]byte, error) {
	start := time.Now()
	data, err := s.reconstruct(ctx, packageID, versionFileID)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ReconstructsTotal.WithLabelValues(outcome).Inc()
	s.metrics.ReconstructDuration.Observe(time.Since(start).Seconds())
	return data, err
}

func (s *ReconstructService) reconstruct(ctx context.Context, packageID string, versionFileID uuid.UUID) ([]byte, error) {
	vf, err := s.versionFiles.GetByID(ctx, versionFileID)
	if err != nil {
		return nil, err
	}
	if vf.PackageID != packageID {
		return nil, domain.ErrVersionFileNotFound
	}

	version, err := s.versions.GetByID(ctx, vf.VersionID)
	if err != nil {
		return nil, err
	}

	targetEntries, err := s.individualFiles.ListByVersionFile(ctx, vf.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: load target entries: %v", ErrInternalError, err)
	}

	target, err := s.newBlobSource(ctx, vf)
	if err != nil {
		return nil, err
	}

	// The preceding version file for the same category. Its entries never
	// contribute paths (a path absent from the target set was removed at
	// the target version) but they do serve as a fallback content source
	// for carried-over entries whose target-side blobs are unrecoverable.
	var previous *blobSource
	var prevByDigest map[string][]string
	prev, err := s.versionFiles.PrecedingByCategory(ctx, vf.PackageID, vf.Category, version.Ordinal)
	switch {
	case err == nil:
		previous, err = s.newBlobSource(ctx, prev)
		if err != nil {
			return nil, err
		}
		prevEntries, err := s.individualFiles.ListByVersionFile(ctx, prev.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: load preceding entries: %v", ErrInternalError, err)
		}
		prevByDigest = make(map[string][]string, len(prevEntries))
		for _, e := range prevEntries {
			prevByDigest[e.Digest] = append(prevByDigest[e.Digest], e.Path)
		}
	case errors.Is(err, domain.ErrVersionFileNotFound):
		if vf.IsDelta {
			// A delta record with no predecessor means the record set is
			// inconsistent; failing is better than guessing.
			return nil, fmt.Errorf("%w: version file %s", domain.ErrNoPriorVersion, vf.ID)
		}
	default:
		return nil, fmt.Errorf("%w: find preceding version: %v", ErrInternalError, err)
	}

	files := make([]archive.File, 0, len(targetEntries))
	var missing []string
	for _, entry := range targetEntries {
		data, err := s.fetchEntry(ctx, target, entry.Path, entry.Digest)
		if err != nil {
			if previous != nil {
				data, err = s.fetchCarriedOver(ctx, previous, prevByDigest, entry.Digest)
			}
			if err != nil {
				s.logger.Warn().
					Str("version_file", vf.ID.String()).
					Str("path", entry.Path).
					Str("digest", entry.Digest).
					Err(err).
					Msg("entry unrecoverable")
				missing = append(missing, entry.Path)
				continue
			}
		}
		files = append(files, archive.File{Path: entry.Path, Data: data})
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &domain.ReconstructError{VersionFileID: vf.ID.String(), MissingPaths: missing}
	}

	out, err := archive.Build(files)
	if err != nil {
		return nil, fmt.Errorf("%w: assemble archive: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("package", vf.PackageID).
		Str("version", vf.VersionID).
		Str("category", vf.Category.String()).
		Str("version_file", vf.ID.String()).
		Int("file_count", len(files)).
		Int("size", len(out)).
		Msg("archive reconstructed")
	return out, nil
}

// newBlobSource resolves where a version file's blobs live, following the
// manifest's reuse marker to the storing version when present.
func (s *ReconstructService) newBlobSource(ctx context.Context, vf *domain.VersionFile) (*blobSource, error) {
	storageVersion := vf.VersionID
	m, err := s.manifests.Load(ctx, vf.PackageID, vf.VersionID)
	switch {
	case err == nil:
		storageVersion = m.StorageVersion(vf.Category, vf.VersionID)
	case errors.Is(err, domain.ErrManifestNotFound):
		// Pre-manifest data: blobs can only live under the owning version.
	default:
		return nil, fmt.Errorf("%w: load manifest: %v", ErrInternalError, err)
	}
	return &blobSource{
		packageID:      vf.PackageID,
		storageVersion: storageVersion,
		category:       vf.Category,
		digest:         vf.Digest,
	}, nil
}

// fetchEntry retrieves one entry's content from a source: per-entry blob
// first, then extraction from the whole-archive blob. Fetched bytes are
// verified against the recorded digest before use.
func (s *ReconstructService) fetchEntry(ctx context.Context, src *blobSource, path, digest string) ([]byte, error) {
	data, err := s.getBlob(ctx, storage.EntryKey(src.packageID, src.storageVersion, src.category, digest))
	if err == nil {
		if archive.Digest(data) == digest {
			return data, nil
		}
		err = fmt.Errorf("entry blob %s: content does not match digest", digest)
	}

	whole, wErr := s.wholeArchive(ctx, src)
	if wErr != nil {
		return nil, errors.Join(err, wErr)
	}
	s.metrics.ReconstructFallbacks.Inc()
	data, xErr := archive.Extract(whole, path)
	if xErr != nil {
		return nil, errors.Join(err, xErr)
	}
	if archive.Digest(data) != digest {
		return nil, fmt.Errorf("extracted %s: content does not match digest %s", path, digest)
	}
	return data, nil
}

// fetchCarriedOver retrieves content for a digest out of the preceding
// version's storage. The path lookup goes through the predecessor's own
// record set because the same bytes may have lived under a different path
// there.
func (s *ReconstructService) fetchCarriedOver(ctx context.Context, prev *blobSource, prevByDigest map[string][]string, digest string) ([]byte, error) {
	paths, ok := prevByDigest[digest]
	if !ok {
		return nil, fmt.Errorf("digest %s not present in preceding version", digest)
	}
	var err error
	for _, path := range paths {
		var data []byte
		data, err = s.fetchEntry(ctx, prev, path, digest)
		if err == nil {
			return data, nil
		}
	}
	return nil, err
}

// wholeArchive fetches and caches the source's whole-archive blob.
func (s *ReconstructService) wholeArchive(ctx context.Context, src *blobSource) ([]byte, error) {
	if src.wholeTried {
		if src.wholeArchive == nil {
			return nil, fmt.Errorf("%w: whole archive %s", domain.ErrBlobNotFound, src.digest)
		}
		return src.wholeArchive, nil
	}
	src.wholeTried = true

	data, err := s.getBlob(ctx, storage.ArchiveKey(src.packageID, src.storageVersion, src.category, src.digest))
	if err != nil {
		return nil, fmt.Errorf("fetch whole archive: %w", err)
	}
	src.wholeArchive = data
	return data, nil
}

// getBlob reads one blob with a bounded timeout around the round trip.
func (s *ReconstructService) getBlob(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.blobTimeout)
	defer cancel()

	start := time.Now()
	data, err := storage.GetBytes(ctx, s.store, key)
	s.metrics.BlobOpDuration.WithLabelValues("get").Observe(time.Since(start).Seconds())
	return data, err
}
