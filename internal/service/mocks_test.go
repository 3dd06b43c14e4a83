package service

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/packvault/internal/archive"
	"github.com/prn-tf/packvault/internal/domain"
	"github.com/prn-tf/packvault/internal/lock"
	"github.com/prn-tf/packvault/internal/manifest"
	"github.com/prn-tf/packvault/internal/metrics"
	"github.com/prn-tf/packvault/internal/repository"
	"github.com/prn-tf/packvault/internal/storage"
)

// fakeState is shared in-memory backing for the repository fakes.
type fakeState struct {
	mu              sync.Mutex
	packages        map[string]*domain.Package
	versions        map[string]*domain.PackageVersion
	versionFiles    map[uuid.UUID]*domain.VersionFile
	individualFiles map[uuid.UUID][]*domain.IndividualFile
	nextOrdinal     map[string]int64
}

func newFakeState() *fakeState {
	return &fakeState{
		packages:        make(map[string]*domain.Package),
		versions:        make(map[string]*domain.PackageVersion),
		versionFiles:    make(map[uuid.UUID]*domain.VersionFile),
		individualFiles: make(map[uuid.UUID][]*domain.IndividualFile),
		nextOrdinal:     make(map[string]int64),
	}
}

func (s *fakeState) repositories() *repository.Repositories {
	return &repository.Repositories{
		Packages:        &fakePackageRepo{s: s},
		Versions:        &fakeVersionRepo{s: s},
		VersionFiles:    &fakeVersionFileRepo{s: s},
		IndividualFiles: &fakeIndividualFileRepo{s: s},
	}
}

type fakePackageRepo struct{ s *fakeState }

func (r *fakePackageRepo) Create(ctx context.Context, pkg *domain.Package) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.packages[pkg.ID]; ok {
		return repository.ErrDuplicate
	}
	r.s.packages[pkg.ID] = pkg
	return nil
}

func (r *fakePackageRepo) GetByID(ctx context.Context, id string) (*domain.Package, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	pkg, ok := r.s.packages[id]
	if !ok {
		return nil, domain.ErrPackageNotFound
	}
	return pkg, nil
}

func (r *fakePackageRepo) List(ctx context.Context) ([]*domain.Package, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*domain.Package, 0, len(r.s.packages))
	for _, p := range r.s.packages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeVersionRepo struct{ s *fakeState }

func (r *fakeVersionRepo) Create(ctx context.Context, version *domain.PackageVersion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.versions[version.ID]; ok {
		return repository.ErrDuplicate
	}
	r.s.nextOrdinal[version.PackageID]++
	version.Ordinal = r.s.nextOrdinal[version.PackageID]
	r.s.versions[version.ID] = version
	return nil
}

func (r *fakeVersionRepo) GetByID(ctx context.Context, id string) (*domain.PackageVersion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.versions[id]
	if !ok {
		return nil, domain.ErrVersionNotFound
	}
	return v, nil
}

func (r *fakeVersionRepo) ListByPackage(ctx context.Context, packageID string) ([]*domain.PackageVersion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.PackageVersion
	for _, v := range r.s.versions {
		if v.PackageID == packageID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out, nil
}

type fakeVersionFileRepo struct{ s *fakeState }

func (r *fakeVersionFileRepo) Create(ctx context.Context, vf *domain.VersionFile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.versionFiles {
		if existing.VersionID == vf.VersionID && existing.Category == vf.Category {
			return repository.ErrDuplicate
		}
	}
	r.s.versionFiles[vf.ID] = vf
	return nil
}

func (r *fakeVersionFileRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.VersionFile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	vf, ok := r.s.versionFiles[id]
	if !ok {
		return nil, domain.ErrVersionFileNotFound
	}
	return vf, nil
}

func (r *fakeVersionFileRepo) GetByVersionAndCategory(ctx context.Context, versionID string, category domain.Category) (*domain.VersionFile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, vf := range r.s.versionFiles {
		if vf.VersionID == versionID && vf.Category == category {
			return vf, nil
		}
	}
	return nil, domain.ErrVersionFileNotFound
}

func (r *fakeVersionFileRepo) PrecedingByCategory(ctx context.Context, packageID string, category domain.Category, beforeOrdinal int64) (*domain.VersionFile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var (
		best        *domain.VersionFile
		bestOrdinal int64
	)
	for _, vf := range r.s.versionFiles {
		if vf.PackageID != packageID || vf.Category != category {
			continue
		}
		v, ok := r.s.versions[vf.VersionID]
		if !ok || v.Ordinal >= beforeOrdinal {
			continue
		}
		if best == nil || v.Ordinal > bestOrdinal {
			best, bestOrdinal = vf, v.Ordinal
		}
	}
	if best == nil {
		return nil, domain.ErrVersionFileNotFound
	}
	return best, nil
}

type fakeIndividualFileRepo struct{ s *fakeState }

func (r *fakeIndividualFileRepo) CreateBatch(ctx context.Context, files []*domain.IndividualFile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, f := range files {
		r.s.individualFiles[f.VersionFileID] = append(r.s.individualFiles[f.VersionFileID], f)
	}
	return nil
}

func (r *fakeIndividualFileRepo) ListByVersionFile(ctx context.Context, versionFileID uuid.UUID) ([]*domain.IndividualFile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	files := append([]*domain.IndividualFile(nil), r.s.individualFiles[versionFileID]...)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// memStore is an in-memory storage.ObjectStore.
type memStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{blobs: make(map[string][]byte)}
}

func (m *memStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = data
	return nil
}

func (m *memStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, domain.ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[key]
	return ok, nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[key]; !ok {
		return domain.ErrBlobNotFound
	}
	delete(m.blobs, key)
	return nil
}

// drop removes every stored blob whose key matches pred.
func (m *memStore) drop(pred func(key string) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.blobs {
		if pred(key) {
			delete(m.blobs, key)
		}
	}
}

var _ storage.ObjectStore = (*memStore)(nil)

// testEnv wires the services against in-memory fakes.
type testEnv struct {
	state        *fakeState
	repos        *repository.Repositories
	store        *memStore
	tracker      *manifest.Tracker
	uploads      *UploadService
	reconstructs *ReconstructService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	state := newFakeState()
	repos := state.repositories()
	store := newMemStore()
	logger := zerolog.Nop()
	tracker := manifest.NewTracker(store, lock.NewMemoryLocker(), nil, manifest.DefaultOptions(), logger)
	m := metrics.NewNop()

	return &testEnv{
		state:        state,
		repos:        repos,
		store:        store,
		tracker:      tracker,
		uploads:      NewUploadService(repos, store, tracker, AllowAll(), m, logger, time.Second),
		reconstructs: NewReconstructService(repos, store, tracker, m, logger, time.Second),
	}
}

// seedPackage registers a package and the given versions in release order.
func (e *testEnv) seedPackage(t *testing.T, packageID string, versionIDs ...string) {
	t.Helper()
	ctx := context.Background()

	err := e.repos.Packages.Create(ctx, &domain.Package{
		ID:        packageID,
		Name:      packageID,
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	for _, id := range versionIDs {
		err := e.repos.Versions.Create(ctx, &domain.PackageVersion{
			ID:        id,
			PackageID: packageID,
			Label:     id,
			Minecraft: "1.20.1",
			Loader:    "fabric",
			CreatedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
	}
}

// buildZip assembles a zip archive from path -> content pairs.
func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	list := make([]archive.File, 0, len(files))
	for path, content := range files {
		list = append(list, archive.File{Path: path, Data: []byte(content)})
	}
	data, err := archive.Build(list)
	require.NoError(t, err)
	return data
}
