package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prn-tf/packvault/internal/domain"
	"github.com/prn-tf/packvault/internal/repository"
)

// versionRepository implements repository.VersionRepository for SQLite.
type versionRepository struct {
	db *DB
}

// NewVersionRepository creates a new SQLite version repository.
func NewVersionRepository(db *DB) repository.VersionRepository {
	return &versionRepository{db: db}
}

// Create registers a new version, assigning the next ordinal within its
// package. The ordinal assignment and insert run in one transaction so
// concurrent creates cannot collide.
func (r *versionRepository) Create(ctx context.Context, version *domain.PackageVersion) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var next int64
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(ordinal), 0) + 1 FROM package_versions WHERE package_id = ?`,
			version.PackageID,
		).Scan(&next)
		if err != nil {
			return fmt.Errorf("failed to compute next ordinal: %w", err)
		}

		query := `
			INSERT INTO package_versions (id, package_id, label, minecraft, loader, ordinal, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`
		_, err = tx.ExecContext(ctx, query,
			version.ID, version.PackageID, version.Label,
			version.Minecraft, version.Loader, next,
			version.CreatedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			if isUniqueViolation(err) {
				return repository.ErrDuplicate
			}
			return fmt.Errorf("failed to insert version: %w", err)
		}
		version.Ordinal = next
		return nil
	})
}

// GetByID retrieves a version by id.
func (r *versionRepository) GetByID(ctx context.Context, id string) (*domain.PackageVersion, error) {
	query := `
		SELECT id, package_id, label, minecraft, loader, ordinal, created_at
		FROM package_versions
		WHERE id = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// ListByPackage returns a package's versions in release order.
func (r *versionRepository) ListByPackage(ctx context.Context, packageID string) ([]*domain.PackageVersion, error) {
	query := `
		SELECT id, package_id, label, minecraft, loader, ordinal, created_at
		FROM package_versions
		WHERE package_id = ?
		ORDER BY ordinal
	`
	rows, err := r.db.QueryContext(ctx, query, packageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []*domain.PackageVersion
	for rows.Next() {
		v := &domain.PackageVersion{}
		var createdAt string
		if err := rows.Scan(&v.ID, &v.PackageID, &v.Label, &v.Minecraft, &v.Loader, &v.Ordinal, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		v.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (r *versionRepository) scanOne(row *sql.Row) (*domain.PackageVersion, error) {
	v := &domain.PackageVersion{}
	var createdAt string
	err := row.Scan(&v.ID, &v.PackageID, &v.Label, &v.Minecraft, &v.Loader, &v.Ordinal, &createdAt)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrVersionNotFound
		}
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	v.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return v, nil
}
