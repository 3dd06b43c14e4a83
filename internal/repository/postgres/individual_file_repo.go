package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/prn-tf/packvault/internal/domain"
	"github.com/prn-tf/packvault/internal/repository"
)

// individualFileRepository implements repository.IndividualFileRepository
// for PostgreSQL.
type individualFileRepository struct {
	db *DB
}

// NewIndividualFileRepository creates a new PostgreSQL individual file
// repository.
func NewIndividualFileRepository(db *DB) repository.IndividualFileRepository {
	return &individualFileRepository{db: db}
}

// CreateBatch inserts all rows in one transaction using pgx batching.
func (r *individualFileRepository) CreateBatch(ctx context.Context, files []*domain.IndividualFile) error {
	if len(files) == 0 {
		return nil
	}
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, f := range files {
			batch.Queue(`
				INSERT INTO individual_files (id, version_file_id, path, digest, size)
				VALUES ($1, $2, $3, $4, $5)
			`, f.ID, f.VersionFileID, f.Path, f.Digest, f.Size)
		}
		results := tx.SendBatch(ctx, batch)
		defer results.Close()
		for range files {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("failed to insert individual file: %w", err)
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
		WHERE version_file_id = $1
		ORDER BY path
	`
	rows, err := r.db.Pool.Query(ctx, query, versionFileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list individual files: %w", err)
	}
	defer rows.Close()

	var files []*domain.IndividualFile
	for rows.Next() {
		f := &domain.IndividualFile{}
		if err := rows.Scan(&f.ID, &f.VersionFileID, &f.Path, &f.Digest, &f.Size); err != nil {
			return nil, fmt.Errorf("failed to scan individual file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// NewRepositories bundles all PostgreSQL repositories over one pool.
func NewRepositories(db *DB) *repository.Repositories {
	return &repository.Repositories{
		Packages:        NewPackageRepository(db),
		Versions:        NewVersionRepository(db),
		VersionFiles:    NewVersionFileRepository(db),
		IndividualFiles: NewIndividualFileRepository(db),
	}
}
