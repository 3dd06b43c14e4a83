package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/prn-tf/packvault/internal/domain"
	"github.com/prn-tf/packvault/internal/repository"
)

// versionRepository implements repository.VersionRepository for PostgreSQL.
type versionRepository struct {
	db *DB
}

// NewVersionRepository creates a new PostgreSQL version repository.
func NewVersionRepository(db *DB) repository.VersionRepository {
	return &versionRepository{db: db}
}

// Create registers a new version, assigning the next ordinal within its
// package. The subquery and insert run in one statement so concurrent
// creates serialize on the unique (package_id, ordinal) constraint.
func (r *versionRepository) Create(ctx context.Context, version *domain.PackageVersion) error {
	query := `
		INSERT INTO package_versions (id, package_id, label, minecraft, loader, ordinal, created_at)
		VALUES ($1, $2, $3, $4, $5,
			(SELECT COALESCE(MAX(ordinal), 0) + 1 FROM package_versions WHERE package_id = $2),
			$6)
		RETURNING ordinal
	`
	err := r.db.Pool.QueryRow(ctx, query,
		version.ID, version.PackageID, version.Label,
		version.Minecraft, version.Loader, version.CreatedAt.UTC(),
	).Scan(&version.Ordinal)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to insert version: %w", err)
	}
	return nil
}

// GetByID retrieves a version by id.
func (r *versionRepository) GetByID(ctx context.Context, id string) (*domain.PackageVersion, error) {
	query := `
		SELECT id, package_id, label, minecraft, loader, ordinal, created_at
		FROM package_versions
		WHERE id = $1
	`
	v := &domain.PackageVersion{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&v.ID, &v.PackageID, &v.Label, &v.Minecraft, &v.Loader, &v.Ordinal, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrVersionNotFound
		}
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	return v, nil
}

// ListByPackage returns a package's versions in release order.
func (r *versionRepository) ListByPackage(ctx context.Context, packageID string) ([]*domain.PackageVersion, error) {
	query := `
		SELECT id, package_id, label, minecraft, loader, ordinal, created_at
		FROM package_versions
		WHERE package_id = $1
		ORDER BY ordinal
	`
	rows, err := r.db.Pool.Query(ctx, query, packageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []*domain.PackageVersion
	for rows.Next() {
		v := &domain.PackageVersion{}
		if err := rows.Scan(&v.ID, &v.PackageID, &v.Label, &v.Minecraft, &v.Loader, &v.Ordinal, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}
