// Package domain contains the core business entities for PackVault.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// VersionFile records one stored category archive for one package version.
// A row is created per upload or reuse event and is immutable afterwards:
// the store is append-only, there is no update or deletion path.
type VersionFile struct {
	// ID is the unique identifier for this record.
	ID uuid.UUID `json:"id"`

	// PackageID and VersionID locate the record within the package tree.
	PackageID string `json:"package_id"`
	VersionID string `json:"version_id"`

	// Category is the partition this archive belongs to.
	Category Category `json:"category"`

	// Digest is the SHA-256 hash of the whole archive, hex encoded.
	// It is also the final segment of the archive's object-store key, so
	// byte-identical uploads land on the same key.
	Digest string `json:"digest"`

	// IsDelta records whether a prior version of the same category existed
	// at upload time and was diffed against. It says nothing about the
	// storage format: stored archives are always complete.
	IsDelta bool `json:"is_delta"`

	// FileCount and TotalSize summarize the decomposed archive.
	FileCount int   `json:"file_count"`
	TotalSize int64 `json:"total_size"`

	// CreatedAt is the timestamp when the record was created.
	CreatedAt time.Time `json:"created_at"`
}

// NewVersionFile creates a VersionFile for a fresh upload.
func NewVersionFile(packageID, versionID string, category Category, digest string, isDelta bool, fileCount int, totalSize int64) *VersionFile {
	return &VersionFile{
		ID:        uuid.New(),
		PackageID: packageID,
		VersionID: versionID,
		Category:  category,
		Digest:    digest,
		IsDelta:   isDelta,
		FileCount: fileCount,
		TotalSize: totalSize,
		CreatedAt: time.Now().UTC(),
	}
}

// NewReusedVersionFile creates a VersionFile that references the bytes of an
// already-stored source record. The digest and summary fields are copied from
// the source; IsDelta is copied as well, so the reused record reports the
// same delta standing its source had.
func NewReusedVersionFile(versionID string, source *VersionFile) *VersionFile {
	return &VersionFile{
		ID:        uuid.New(),
		PackageID: source.PackageID,
		VersionID: versionID,
		Category:  source.Category,
		Digest:    source.Digest,
		IsDelta:   source.IsDelta,
		FileCount: source.FileCount,
		TotalSize: source.TotalSize,
		CreatedAt: time.Now().UTC(),
	}
}

// IndividualFile records one file contained in an uploaded archive.
// Rows are created in bulk at upload time and are immutable; their multiset
// under a VersionFile reproduces the archive's contents path-for-path.
type IndividualFile struct {
	// ID is the unique identifier for this record.
	ID uuid.UUID `json:"id"`

	// VersionFileID is the owning VersionFile.
	VersionFileID uuid.UUID `json:"version_file_id"`

	// Path is the file's relative path exactly as stored in the archive.
	// It is the join key against the previous version's entries.
	Path string `json:"path"`

	// Digest is the SHA-256 hash of the file's bytes, hex encoded.
	Digest string `json:"digest"`

	// Size is the uncompressed size in bytes.
	Size int64 `json:"size"`
}

// NewIndividualFile creates an IndividualFile under the given VersionFile.
func NewIndividualFile(versionFileID uuid.UUID, path, digest string, size int64) *IndividualFile {
	return &IndividualFile{
		ID:            uuid.New(),
		VersionFileID: versionFileID,
		Path:          path,
		Digest:        digest,
		Size:          size,
	}
}

// CopyIndividualFiles clones every source row under a new VersionFile.
// Used by the reuse shortcut: rows are copied, not referenced.
func CopyIndividualFiles(versionFileID uuid.UUID, sources []*IndividualFile) []*IndividualFile {
	out := make([]*IndividualFile, 0, len(sources))
	for _, src := range sources {
		out = append(out, NewIndividualFile(versionFileID, src.Path, src.Digest, src.Size))
	}
	return out
}
