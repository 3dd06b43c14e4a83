// Package repository defines data access interfaces for PackVault.
// These interfaces abstract database operations, allowing different
// implementations (SQLite for embedded deployments, PostgreSQL for
// multi-node) while keeping the service layer clean.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/prn-tf/packvault/internal/domain"
)

// =============================================================================
// Package Repository
// =============================================================================

// PackageRepository defines the interface for package registry access.
type PackageRepository interface {
	// Create registers a new package.
	Create(ctx context.Context, pkg *domain.Package) error

	// GetByID retrieves a package by id.
	GetByID(ctx context.Context, id string) (*domain.Package, error)

	// List returns all registered packages.
	List(ctx context.Context) ([]*domain.Package, error)
}

// =============================================================================
// Version Repository
// =============================================================================

// VersionRepository defines the interface for package version access.
// Versions are release-ordered per package by their ordinal.
type VersionRepository interface {
	// Create registers a new version, assigning it the next ordinal
	// within its package.
	Create(ctx context.Context, version *domain.PackageVersion) error

	// GetByID retrieves a version by id.
	GetByID(ctx context.Context, id string) (*domain.PackageVersion, error)

	// ListByPackage returns a package's versions in release order.
	ListByPackage(ctx context.Context, packageID string) ([]*domain.PackageVersion, error)
}

// =============================================================================
// Version File Repository
// =============================================================================

// VersionFileRepository defines the interface for stored-archive records.
// Records are append-only: there is no update or delete method.
type VersionFileRepository interface {
	// Create inserts a new record.
	Create(ctx context.Context, vf *domain.VersionFile) error

	// GetByID retrieves a record by id.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.VersionFile, error)

	// GetByVersionAndCategory retrieves the record stored for a category
	// at a specific version.
	GetByVersionAndCategory(ctx context.Context, versionID string, category domain.Category) (*domain.VersionFile, error)

	// PrecedingByCategory returns the category's record from the nearest
	// release strictly older than the given ordinal.
	PrecedingByCategory(ctx context.Context, packageID string, category domain.Category, beforeOrdinal int64) (*domain.VersionFile, error)
}

// =============================================================================
// Individual File Repository
// =============================================================================

// IndividualFileRepository defines the interface for per-entry records.
type IndividualFileRepository interface {
	// CreateBatch inserts all rows in one transaction. Either every row
	// is persisted or none are.
	CreateBatch(ctx context.Context, files []*domain.IndividualFile) error

	// ListByVersionFile returns every row under a VersionFile, ordered
	// by path.
	ListByVersionFile(ctx context.Context, versionFileID uuid.UUID) ([]*domain.IndividualFile, error)
}

// Repositories bundles all repository instances for wiring.
type Repositories struct {
	Packages        PackageRepository
	Versions        VersionRepository
	VersionFiles    VersionFileRepository
	IndividualFiles IndividualFileRepository
}

// DatabaseHealth is implemented by database handles for health endpoints.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Close() error
}
