package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prn-tf/packvault/internal/domain"
	"github.com/prn-tf/packvault/internal/repository"
)

// versionFileRepository implements repository.VersionFileRepository for SQLite.
type versionFileRepository struct {
	db *DB
}

// NewVersionFileRepository creates a new SQLite version file repository.
func NewVersionFileRepository(db *DB) repository.VersionFileRepository {
	return &versionFileRepository{db: db}
}

const versionFileColumns = `id, package_id, version_id, category, digest, is_delta, file_count, total_size, created_at`

// Create inserts a new record.
func (r *versionFileRepository) Create(ctx context.Context, vf *domain.VersionFile) error {
	query := `
		INSERT INTO version_files (` + versionFileColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		vf.ID.String(), vf.PackageID, vf.VersionID, string(vf.Category),
		vf.Digest, vf.IsDelta, vf.FileCount, vf.TotalSize,
		vf.CreatedAt.UTC().Format(time.RFC3339Nano))
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
	query := `SELECT ` + versionFileColumns + ` FROM version_files WHERE id = ?`
	return scanVersionFile(r.db.QueryRowContext(ctx, query, id.String()))
}

// GetByVersionAndCategory retrieves the record stored for a category at a
// specific version.
func (r *versionFileRepository) GetByVersionAndCategory(ctx context.Context, versionID string, category domain.Category) (*domain.VersionFile, error) {
	query := `SELECT ` + versionFileColumns + ` FROM version_files WHERE version_id = ? AND category = ?`
	return scanVersionFile(r.db.QueryRowContext(ctx, query, versionID, string(category)))
}

// PrecedingByCategory returns the category's record from the nearest
// release strictly older than the given ordinal.
func (r *versionFileRepository) PrecedingByCategory(ctx context.Context, packageID string, category domain.Category, beforeOrdinal int64) (*domain.VersionFile, error) {
	query := `
		SELECT vf.id, vf.package_id, vf.version_id, vf.category, vf.digest,
		       vf.is_delta, vf.file_count, vf.total_size, vf.created_at
		FROM version_files vf
		JOIN package_versions pv ON pv.id = vf.version_id
		WHERE vf.package_id = ? AND vf.category = ? AND pv.ordinal < ?
		ORDER BY pv.ordinal DESC
		LIMIT 1
	`
	return scanVersionFile(r.db.QueryRowContext(ctx, query, packageID, string(category), beforeOrdinal))
}

// scanVersionFile scans a single version_files row.
func scanVersionFile(row *sql.Row) (*domain.VersionFile, error) {
	vf := &domain.VersionFile{}
	var id, category, createdAt string
	err := row.Scan(&id, &vf.PackageID, &vf.VersionID, &category,
		&vf.Digest, &vf.IsDelta, &vf.FileCount, &vf.TotalSize, &createdAt)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrVersionFileNotFound
		}
		return nil, fmt.Errorf("failed to get version file: %w", err)
	}
	vf.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid version file id %q: %w", id, err)
	}
	vf.Category = domain.Category(category)
	vf.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return vf, nil
}
