// Package domain contains the core business entities for PackVault.
package domain

import (
	"regexp"
	"time"
)

// Package represents a composite bundle whose contents are split into
// independently-versioned categories.
type Package struct {
	// ID is the unique identifier, used as the first segment of every
	// object-store key belonging to this package.
	ID string `json:"id"`

	// Name is the human-readable package name, carried into manifests.
	Name string `json:"name"`

	// OwnerID identifies the publishing actor. Permission decisions are
	// made by an externally supplied predicate, not by this package.
	OwnerID string `json:"owner_id"`

	// CreatedAt is the timestamp when the package was registered.
	CreatedAt time.Time `json:"created_at"`
}

// PackageVersion represents one release of a package. Versions are
// release-ordered per package by Ordinal; the ordering drives "previous
// version" lookups for diffing and reconstruction.
type PackageVersion struct {
	// ID is the unique identifier, used as the second segment of the
	// object-store keys belonging to this version.
	ID string `json:"id"`

	// PackageID is the owning package.
	PackageID string `json:"package_id"`

	// Label is the display version string (e.g. "1.4.2").
	Label string `json:"label"`

	// Minecraft and Loader are pass-through compatibility metadata
	// carried into the version manifest.
	Minecraft string `json:"minecraft"`
	Loader    string `json:"loader"`

	// Ordinal is the release position within the package, starting at 1.
	// Assigned once at creation and never changed.
	Ordinal int64 `json:"ordinal"`

	// CreatedAt is the timestamp when the version was registered.
	CreatedAt time.Time `json:"created_at"`
}

// identifierPattern matches identifiers safe to embed in object-store keys.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// ValidateIdentifier checks that an id is usable as an object-store key
// segment. Rejects empty strings, path separators and traversal sequences.
func ValidateIdentifier(id string) error {
	if !identifierPattern.MatchString(id) {
		return ErrInvalidIdentifier
	}
	return nil
}
