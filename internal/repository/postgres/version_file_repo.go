package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/prn-tf/packvault/internal/domain"
	"github.com/prn-tf/packvault/internal/repository"
)

// versionFileRepository implements repository.VersionFileRepository for
// PostgreSQL.
type versionFileRepository struct {
	db *DB
}

// NewVersionFileRepository creates a new PostgreSQL version file repository.
func NewVersionFileRepository(db *DB) repository.VersionFileRepository {
	return &versionFileRepository{db: db}
}

// Create inserts a new record.
func (r *versionFileRepository) Create(ctx context.Context, vf *domain.VersionFile) error {
	query := `
		INSERT INTO version_files
			(id, package_id, version_id, category, digest, is_delta, file_count, total_size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		vf.ID, vf.PackageID, vf.VersionID, string(vf.Category),
		vf.Digest, vf.IsDelta, vf.FileCount, vf.TotalSize, vf.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to insert version file: %w", err)
	}
	return nil
}

// GetByID retrieves a record by id.
func (r *versionFileRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.VersionFile, error) {
	query := `
		SELECT id, package_id, version_id, category, digest, is_delta, file_count, total_size, created_at
		FROM version_files WHERE id = $1
	`
	return r.scanOne(r.db.Pool.QueryRow(ctx, query, id))
}

// GetByVersionAndCategory retrieves the record stored for a category at a
// specific version.
func (r *versionFileRepository) GetByVersionAndCategory(ctx context.Context, versionID string, category domain.Category) (*domain.VersionFile, error) {
	query := `
		SELECT id, package_id, version_id, category, digest, is_delta, file_count, total_size, created_at
		FROM version_files WHERE version_id = $1 AND category = $2
	`
	return r.scanOne(r.db.Pool.QueryRow(ctx, query, versionID, string(category)))
}

// PrecedingByCategory returns the category's record from the nearest
// release strictly older than the given ordinal.
func (r *versionFileRepository) PrecedingByCategory(ctx context.Context, packageID string, category domain.Category, beforeOrdinal int64) (*domain.VersionFile, error) {
	query := `
		SELECT vf.id, vf.package_id, vf.version_id, vf.category, vf.digest,
		       vf.is_delta, vf.file_count, vf.total_size, vf.created_at
		FROM version_files vf
		JOIN package_versions pv ON pv.id = vf.version_id
		WHERE vf.package_id = $1 AND vf.category = $2 AND pv.ordinal < $3
		ORDER BY pv.ordinal DESC
		LIMIT 1
	`
	return r.scanOne(r.db.Pool.QueryRow(ctx, query, packageID, string(category), beforeOrdinal))
}

func (r *versionFileRepository) scanOne(row pgx.Row) (*domain.VersionFile, error) {
	vf := &domain.VersionFile{}
	var category string
	err := row.Scan(&vf.ID, &vf.PackageID, &vf.VersionID, &category,
		&vf.Digest, &vf.IsDelta, &vf.FileCount, &vf.TotalSize, &vf.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrVersionFileNotFound
		}
		return nil, fmt.Errorf("failed to get version file: %w", err)
	}
	vf.Category = domain.Category(category)
	return vf, nil
}
