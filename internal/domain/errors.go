// Package domain contains the core business entities for PackVault.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, object store).

var (
	// ===========================================
	// Validation Errors
	// ===========================================

	// ErrInvalidIdentifier indicates a package/version id is not usable
	// as an object-store key segment.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrInvalidCategory indicates the category is not one of the known set.
	ErrInvalidCategory = errors.New("invalid category")

	// ErrMalformedArchive indicates the uploaded buffer failed to decode
	// as a zip archive. Nothing is persisted when this is returned.
	ErrMalformedArchive = errors.New("malformed archive")

	// ===========================================
	// Not-Found Errors
	// ===========================================

	// ErrPackageNotFound indicates the referenced package does not exist.
	ErrPackageNotFound = errors.New("package not found")

	// ErrVersionNotFound indicates the referenced version does not exist.
	ErrVersionNotFound = errors.New("version not found")

	// ErrVersionFileNotFound indicates no stored archive record matches.
	ErrVersionFileNotFound = errors.New("version file not found")

	// ErrManifestNotFound indicates no manifest exists for the version.
	ErrManifestNotFound = errors.New("manifest not found")

	// ===========================================
	// Upload / Reuse Errors
	// ===========================================

	// ErrPermissionDenied indicates the permission predicate rejected the actor.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrReuseNotAllowed indicates the category is outside the reuse
	// allow-list. Rejected before any writes occur.
	ErrReuseNotAllowed = errors.New("category cannot be reused across versions")

	// ErrReuseSourceMissing indicates the reuse source version has no
	// stored archive for the requested category.
	ErrReuseSourceMissing = errors.New("reuse source has no archive for category")

	// ErrDigestCollision indicates two entries carry the same digest but
	// different sizes. Should never occur with an intact hasher.
	ErrDigestCollision = errors.New("digest collision: same digest, different size")

	// ===========================================
	// Reconstruction Errors
	// ===========================================

	// ErrNoPriorVersion indicates reconstruction was asked to merge with a
	// predecessor that does not exist.
	ErrNoPriorVersion = errors.New("no prior version to reconstruct against")

	// ErrBlobNotFound indicates the object store has no blob at the key.
	ErrBlobNotFound = errors.New("blob not found")
)

// ReconstructError reports paths whose content could not be recovered from
// either the per-entry blob or the whole-archive fallback. Reconstruction
// never returns a silently-incomplete archive; it fails with this instead.
type ReconstructError struct {
	VersionFileID string
	MissingPaths  []string
}

// Error implements the error interface.
func (e *ReconstructError) Error() string {
	return fmt.Sprintf("reconstruct %s: unrecoverable paths: %s",
		e.VersionFileID, strings.Join(e.MissingPaths, ", "))
}
