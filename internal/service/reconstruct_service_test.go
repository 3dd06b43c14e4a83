package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/packvault/internal/archive"
	"github.com/prn-tf/packvault/internal/domain"
)

// seedTwoModVersions uploads the scenario used across the reconstruction
// tests: v1 holds {a, b, c}, v2 holds {a unchanged, b modified, d new}.
func seedTwoModVersions(t *testing.T, env *testEnv) (v1, v2 *UploadOutput) {
	t.Helper()
	ctx := context.Background()
	env.seedPackage(t, "skyfactory", "v1", "v2")

	v1, err := env.uploads.Upload(ctx, UploadInput{
		ActorID: "alice", PackageID: "skyfactory", VersionID: "v1",
		Category: domain.CategoryMods,
		Data: buildZip(t, map[string]string{
			"mods/a.jar": "content-a",
			"mods/b.jar": "content-b",
			"mods/c.jar": "content-c",
		}),
	})
	require.NoError(t, err)

	v2, err = env.uploads.Upload(ctx, UploadInput{
		ActorID: "alice", PackageID: "skyfactory", VersionID: "v2",
		Category: domain.CategoryMods,
		Data: buildZip(t, map[string]string{
			"mods/a.jar": "content-a",
			"mods/b.jar": "content-b2",
			"mods/d.jar": "content-d",
		}),
	})
	require.NoError(t, err)
	return v1, v2
}

// unpack reads a reconstructed archive back into a path -> content map.
func unpack(t *testing.T, data []byte) map[string]string {
	t.Helper()
	files, err := archive.Contents(data)
	require.NoError(t, err)
	out := make(map[string]string, len(files))
	for _, f := range files {
		out[f.Path] = string(f.Data)
	}
	return out
}

func TestReconstructYieldsExactlyTargetSet(t *testing.T) {
	env := newTestEnv(t)
	_, v2 := seedTwoModVersions(t, env)

	data, err := env.reconstructs.Reconstruct(context.Background(), "skyfactory", v2.VersionFileID)
	require.NoError(t, err)

	// Current wins on conflict, removed paths stay out.
	assert.Equal(t, map[string]string{
		"mods/a.jar": "content-a",
		"mods/b.jar": "content-b2",
		"mods/d.jar": "content-d",
	}, unpack(t, data))
}

func TestReconstructFallsBackToWholeArchive(t *testing.T) {
	env := newTestEnv(t)
	_, v2 := seedTwoModVersions(t, env)

	// Lose every per-entry blob of the target version; the whole-archive
	// blob still has everything.
	env.store.drop(func(key string) bool {
		return strings.HasPrefix(key, "skyfactory/v2/mods/individual/")
	})

	data, err := env.reconstructs.Reconstruct(context.Background(), "skyfactory", v2.VersionFileID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"mods/a.jar": "content-a",
		"mods/b.jar": "content-b2",
		"mods/d.jar": "content-d",
	}, unpack(t, data))
}

func TestReconstructDrawsCarriedOverEntryFromPredecessor(t *testing.T) {
	env := newTestEnv(t)
	_, v2 := seedTwoModVersions(t, env)

	// The unchanged entry's blob and the whole archive are both gone on
	// the target side; the bytes survive under the preceding version.
	digestA := archive.Digest([]byte("content-a"))
	env.store.drop(func(key string) bool {
		return key == "skyfactory/v2/mods/individual/"+digestA ||
			(strings.HasPrefix(key, "skyfactory/v2/mods/") && strings.HasSuffix(key, ".zip"))
	})

	data, err := env.reconstructs.Reconstruct(context.Background(), "skyfactory", v2.VersionFileID)
	require.NoError(t, err)
	assert.Equal(t, "content-a", unpack(t, data)["mods/a.jar"])
}

func TestReconstructFailsLoudlyOnUnrecoverablePaths(t *testing.T) {
	env := newTestEnv(t)
	_, v2 := seedTwoModVersions(t, env)

	// The new entry exists only at the target version; losing its blob and
	// the target's whole archive makes it unrecoverable.
	digestD := archive.Digest([]byte("content-d"))
	env.store.drop(func(key string) bool {
		return key == "skyfactory/v2/mods/individual/"+digestD ||
			(strings.HasPrefix(key, "skyfactory/v2/mods/") && strings.HasSuffix(key, ".zip"))
	})

	_, err := env.reconstructs.Reconstruct(context.Background(), "skyfactory", v2.VersionFileID)
	var reconstructErr *domain.ReconstructError
	require.ErrorAs(t, err, &reconstructErr)
	assert.Equal(t, []string{"mods/d.jar"}, reconstructErr.MissingPaths)
}

func TestReconstructDeltaWithoutPredecessorFails(t *testing.T) {
	env := newTestEnv(t)
	v1, v2 := seedTwoModVersions(t, env)

	// Simulate an inconsistent record set: the delta's predecessor row is
	// gone.
	env.state.mu.Lock()
	delete(env.state.versionFiles, v1.VersionFileID)
	env.state.mu.Unlock()

	_, err := env.reconstructs.Reconstruct(context.Background(), "skyfactory", v2.VersionFileID)
	assert.ErrorIs(t, err, domain.ErrNoPriorVersion)
}

func TestReconstructNonDeltaNeedsNoPredecessor(t *testing.T) {
	env := newTestEnv(t)
	env.seedPackage(t, "skyfactory", "v1")
	ctx := context.Background()

	out, err := env.uploads.Upload(ctx, UploadInput{
		ActorID: "alice", PackageID: "skyfactory", VersionID: "v1",
		Category: domain.CategoryMods,
		Data:     buildZip(t, map[string]string{"mods/a.jar": "content-a"}),
	})
	require.NoError(t, err)

	data, err := env.reconstructs.Reconstruct(ctx, "skyfactory", out.VersionFileID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"mods/a.jar": "content-a"}, unpack(t, data))
}

func TestReconstructReusedCategoryReadsOriginBlobs(t *testing.T) {
	env := newTestEnv(t)
	env.seedPackage(t, "skyfactory", "v1", "v2")
	ctx := context.Background()

	_, err := env.uploads.Upload(ctx, UploadInput{
		ActorID: "alice", PackageID: "skyfactory", VersionID: "v1",
		Category: domain.CategoryConfigs,
		Data:     buildZip(t, map[string]string{"configs/common.toml": "x=1"}),
	})
	require.NoError(t, err)

	reused, err := env.uploads.Upload(ctx, UploadInput{
		ActorID:            "alice",
		PackageID:          "skyfactory",
		VersionID:          "v2",
		Category:           domain.CategoryConfigs,
		ReuseFromVersionID: "v1",
	})
	require.NoError(t, err)

	// All blobs live under v1; reconstruction of the reused record must
	// resolve them through the manifest.
	data, err := env.reconstructs.Reconstruct(ctx, "skyfactory", reused.VersionFileID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"configs/common.toml": "x=1"}, unpack(t, data))
}

func TestReconstructWrongPackage(t *testing.T) {
	env := newTestEnv(t)
	_, v2 := seedTwoModVersions(t, env)
	env.seedPackage(t, "other")

	_, err := env.reconstructs.Reconstruct(context.Background(), "other", v2.VersionFileID)
	assert.ErrorIs(t, err, domain.ErrVersionFileNotFound)
}
