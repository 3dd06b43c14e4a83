package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/packvault/internal/domain"
	"github.com/prn-tf/packvault/internal/repository"
)

func newTestRepos(t *testing.T) *repository.Repositories {
	t.Helper()
	ctx := context.Background()

	db, err := NewDB(ctx, DefaultConfig(":memory:"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate(ctx))
	return NewRepositories(db)
}

func seedVersions(t *testing.T, repos *repository.Repositories, packageID string, versionIDs ...string) []*domain.PackageVersion {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, repos.Packages.Create(ctx, &domain.Package{
		ID:        packageID,
		Name:      packageID,
		OwnerID:   "alice",
		CreatedAt: time.Now().UTC(),
	}))

	versions := make([]*domain.PackageVersion, 0, len(versionIDs))
	for _, id := range versionIDs {
		v := &domain.PackageVersion{
			ID:        id,
			PackageID: packageID,
			Label:     id,
			Minecraft: "1.20.1",
			Loader:    "fabric",
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, repos.Versions.Create(ctx, v))
		versions = append(versions, v)
	}
	return versions
}

func TestPackageRepository(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	pkg := &domain.Package{ID: "skyfactory", Name: "SkyFactory", OwnerID: "alice", CreatedAt: time.Now().UTC()}
	require.NoError(t, repos.Packages.Create(ctx, pkg))

	err := repos.Packages.Create(ctx, pkg)
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	got, err := repos.Packages.GetByID(ctx, "skyfactory")
	require.NoError(t, err)
	assert.Equal(t, pkg.Name, got.Name)
	assert.Equal(t, pkg.OwnerID, got.OwnerID)

	_, err = repos.Packages.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrPackageNotFound)

	list, err := repos.Packages.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestVersionRepositoryAssignsOrdinals(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	versions := seedVersions(t, repos, "skyfactory", "v1", "v2", "v3")
	for i, v := range versions {
		assert.Equal(t, int64(i+1), v.Ordinal)
	}

	// Ordinals are per package.
	other := seedVersions(t, repos, "other", "o1")
	assert.Equal(t, int64(1), other[0].Ordinal)

	list, err := repos.Versions.ListByPackage(ctx, "skyfactory")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "v1", list[0].ID)
	assert.Equal(t, "v3", list[2].ID)

	_, err = repos.Versions.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrVersionNotFound)
}

func TestVersionFileRepository(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	seedVersions(t, repos, "skyfactory", "v1", "v2", "v3")

	v1Mods := domain.NewVersionFile("skyfactory", "v1", domain.CategoryMods, "digest-1", false, 2, 20)
	require.NoError(t, repos.VersionFiles.Create(ctx, v1Mods))
	v3Mods := domain.NewVersionFile("skyfactory", "v3", domain.CategoryMods, "digest-3", true, 2, 22)
	require.NoError(t, repos.VersionFiles.Create(ctx, v3Mods))

	// One record per (version, category).
	dup := domain.NewVersionFile("skyfactory", "v1", domain.CategoryMods, "digest-x", false, 1, 1)
	assert.ErrorIs(t, repos.VersionFiles.Create(ctx, dup), repository.ErrDuplicate)

	got, err := repos.VersionFiles.GetByID(ctx, v1Mods.ID)
	require.NoError(t, err)
	assert.Equal(t, v1Mods.Digest, got.Digest)
	assert.Equal(t, v1Mods.Category, got.Category)
	assert.False(t, got.IsDelta)

	got, err = repos.VersionFiles.GetByVersionAndCategory(ctx, "v3", domain.CategoryMods)
	require.NoError(t, err)
	assert.Equal(t, v3Mods.ID, got.ID)

	_, err = repos.VersionFiles.GetByVersionAndCategory(ctx, "v2", domain.CategoryMods)
	assert.ErrorIs(t, err, domain.ErrVersionFileNotFound)
}

func TestPrecedingByCategorySkipsGaps(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	seedVersions(t, repos, "skyfactory", "v1", "v2", "v3")

	// mods stored at v1 and v3 only; v2 never uploaded the category.
	v1Mods := domain.NewVersionFile("skyfactory", "v1", domain.CategoryMods, "digest-1", false, 1, 10)
	require.NoError(t, repos.VersionFiles.Create(ctx, v1Mods))
	v3Mods := domain.NewVersionFile("skyfactory", "v3", domain.CategoryMods, "digest-3", true, 1, 11)
	require.NoError(t, repos.VersionFiles.Create(ctx, v3Mods))

	// The nearest older release with the category is v1, skipping v2.
	got, err := repos.VersionFiles.PrecedingByCategory(ctx, "skyfactory", domain.CategoryMods, 3)
	require.NoError(t, err)
	assert.Equal(t, v1Mods.ID, got.ID)

	// Nothing precedes the first release.
	_, err = repos.VersionFiles.PrecedingByCategory(ctx, "skyfactory", domain.CategoryMods, 1)
	assert.ErrorIs(t, err, domain.ErrVersionFileNotFound)
}

func TestIndividualFileRepository(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	seedVersions(t, repos, "skyfactory", "v1")

	vf := domain.NewVersionFile("skyfactory", "v1", domain.CategoryMods, "digest-1", false, 2, 20)
	require.NoError(t, repos.VersionFiles.Create(ctx, vf))

	files := []*domain.IndividualFile{
		domain.NewIndividualFile(vf.ID, "mods/b.jar", "h2", 12),
		domain.NewIndividualFile(vf.ID, "mods/a.jar", "h1", 8),
	}
	require.NoError(t, repos.IndividualFiles.CreateBatch(ctx, files))

	got, err := repos.IndividualFiles.ListByVersionFile(ctx, vf.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "mods/a.jar", got[0].Path)
	assert.Equal(t, "h1", got[0].Digest)
	assert.Equal(t, int64(8), got[0].Size)
	assert.Equal(t, "mods/b.jar", got[1].Path)

	empty, err := repos.IndividualFiles.ListByVersionFile(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, empty)
}
