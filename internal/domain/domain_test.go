package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryIsValid(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, c.IsValid(), "category %s", c)
	}
	assert.False(t, Category("shaders").IsValid())
	assert.False(t, Category("").IsValid())
}

func TestCategoryReuseAllowed(t *testing.T) {
	assert.False(t, CategoryMods.ReuseAllowed())
	assert.True(t, CategoryConfigs.ReuseAllowed())
	assert.True(t, CategoryResourcePacks.ReuseAllowed())
}

func TestValidateIdentifier(t *testing.T) {
	for _, id := range []string{"skyfactory", "v1.0.2", "pack_2024", "A-b.c"} {
		assert.NoError(t, ValidateIdentifier(id), "id %q", id)
	}
	for _, id := range []string{"", ".hidden", "-dash", "has/slash", "has space", "a..b/../c"} {
		assert.ErrorIs(t, ValidateIdentifier(id), ErrInvalidIdentifier, "id %q", id)
	}
}

func TestNewReusedVersionFileCopiesSource(t *testing.T) {
	source := NewVersionFile("pkg", "v1", CategoryConfigs, "digest-1", true, 3, 42)

	reused := NewReusedVersionFile("v2", source)
	assert.NotEqual(t, source.ID, reused.ID)
	assert.Equal(t, "v2", reused.VersionID)
	assert.Equal(t, source.PackageID, reused.PackageID)
	assert.Equal(t, source.Digest, reused.Digest)
	assert.Equal(t, source.IsDelta, reused.IsDelta)
	assert.Equal(t, source.FileCount, reused.FileCount)
	assert.Equal(t, source.TotalSize, reused.TotalSize)
}

func TestCopyIndividualFiles(t *testing.T) {
	vf := NewVersionFile("pkg", "v1", CategoryConfigs, "digest-1", false, 2, 10)
	sources := []*IndividualFile{
		NewIndividualFile(vf.ID, "configs/a.toml", "h1", 4),
		NewIndividualFile(vf.ID, "configs/b.toml", "h2", 6),
	}

	target := NewVersionFile("pkg", "v2", CategoryConfigs, "digest-1", false, 2, 10)
	copies := CopyIndividualFiles(target.ID, sources)
	require.Len(t, copies, 2)
	for i, c := range copies {
		assert.NotEqual(t, sources[i].ID, c.ID)
		assert.Equal(t, target.ID, c.VersionFileID)
		assert.Equal(t, sources[i].Path, c.Path)
		assert.Equal(t, sources[i].Digest, c.Digest)
		assert.Equal(t, sources[i].Size, c.Size)
	}
}

func TestManifestSetCategory(t *testing.T) {
	pkg := &Package{ID: "pkg", Name: "Pack"}
	version := &PackageVersion{ID: "v2", Label: "2.0", Minecraft: "1.20.1", Loader: "forge"}
	m := NewManifest(pkg, version)

	m.SetCategory(CategoryMods, "digest-mods", "")
	m.SetCategory(CategoryConfigs, "digest-configs", "v1")

	assert.Equal(t, "digest-mods", m.Files["mods"])
	assert.Equal(t, "digest-configs", m.Files["configs"])
	assert.Equal(t, "v1", m.ReusedFrom["configs"])

	// Re-uploading the category directly clears the reuse marker.
	m.SetCategory(CategoryConfigs, "digest-new", "")
	assert.Equal(t, "digest-new", m.Files["configs"])
	assert.Nil(t, m.ReusedFrom)
}

func TestManifestStorageVersion(t *testing.T) {
	m := &Manifest{
		Files:      map[string]string{"configs": "d1", "mods": "d2"},
		ReusedFrom: map[string]string{"configs": "v1"},
	}

	assert.Equal(t, "v1", m.StorageVersion(CategoryConfigs, "v3"))
	assert.Equal(t, "v3", m.StorageVersion(CategoryMods, "v3"))
}
