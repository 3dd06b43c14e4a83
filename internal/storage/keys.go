package storage

import (
	"fmt"

	"github.com/prn-tf/packvault/internal/domain"
)

// Object-store key layout. Keys are hierarchical strings; the digest
// segments make archive and entry writes content-addressed.
//
//	{packageID}/{versionID}/{category}/{digest}.zip
//	{packageID}/{versionID}/{category}/individual/{entryDigest}
//	{packageID}/{versionID}/manifest.json

// ArchiveKey returns the key for a whole-category archive blob.
func ArchiveKey(packageID, versionID string, category domain.Category, digest string) string {
	return fmt.Sprintf("%s/%s/%s/%s.zip", packageID, versionID, category, digest)
}

// EntryKey returns the key for a single decomposed file blob.
func EntryKey(packageID, versionID string, category domain.Category, entryDigest string) string {
	return fmt.Sprintf("%s/%s/%s/individual/%s", packageID, versionID, category, entryDigest)
}

// ManifestKey returns the key for a version's manifest document.
func ManifestKey(packageID, versionID string) string {
	return fmt.Sprintf("%s/%s/manifest.json", packageID, versionID)
}
