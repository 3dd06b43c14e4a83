package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/prn-tf/packvault/internal/domain"
	"github.com/prn-tf/packvault/internal/repository"
)

// individualFileRepository implements repository.IndividualFileRepository
// for SQLite.
type individualFileRepository struct {
	db *DB
}

// NewIndividualFileRepository creates a new SQLite individual file repository.
func NewIndividualFileRepository(db *DB) repository.IndividualFileRepository {
	return &individualFileRepository{db: db}
}

// CreateBatch inserts all rows in one transaction.
func (r *individualFileRepository) CreateBatch(ctx context.Context, files []*domain.IndividualFile) error {
	if len(files) == 0 {
		return nil
	}
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO individual_files (id, version_file_id, path, digest, size)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, f := range files {
			if _, err := stmt.ExecContext(ctx,
				f.ID.String(), f.VersionFileID.String(), f.Path, f.Digest, f.Size); err != nil {
				return fmt.Errorf("failed to insert individual file %s: %w", f.Path, err)
			}
		}
		return nil
	})
}

// ListByVersionFile returns every row under a VersionFile, ordered by path.
func (r *individualFileRepository) ListByVersionFile(ctx context.Context, versionFileID uuid.UUID) ([]*domain.IndividualFile, error) {
	query := `
		SELECT id, version_file_id, path, digest, size
		FROM individual_files
		WHERE version_file_id = ?
		ORDER BY path
	`
	rows, err := r.db.QueryContext(ctx, query, versionFileID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list individual files: %w", err)
	}
	defer rows.Close()

	var files []*domain.IndividualFile
	for rows.Next() {
		f := &domain.IndividualFile{}
		var id, vfID string
		if err := rows.Scan(&id, &vfID, &f.Path, &f.Digest, &f.Size); err != nil {
			return nil, fmt.Errorf("failed to scan individual file: %w", err)
		}
		if f.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid individual file id %q: %w", id, err)
		}
		if f.VersionFileID, err = uuid.Parse(vfID); err != nil {
			return nil, fmt.Errorf("invalid version file id %q: %w", vfID, err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// NewRepositories bundles all SQLite repositories over one connection.
func NewRepositories(db *DB) *repository.Repositories {
	return &repository.Repositories{
		Packages:        NewPackageRepository(db),
		Versions:        NewVersionRepository(db),
		VersionFiles:    NewVersionFileRepository(db),
		IndividualFiles: NewIndividualFileRepository(db),
	}
}
