package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/prn-tf/packvault/internal/domain"
	"github.com/prn-tf/packvault/internal/repository"
)

// packageRepository implements repository.PackageRepository for SQLite.
type packageRepository struct {
	db *DB
}

// NewPackageRepository creates a new SQLite package repository.
func NewPackageRepository(db *DB) repository.PackageRepository {
	return &packageRepository{db: db}
}

// Create registers a new package.
func (r *packageRepository) Create(ctx context.Context, pkg *domain.Package) error {
	query := `
		INSERT INTO packages (id, name, owner_id, created_at)
		VALUES (?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		pkg.ID, pkg.Name, pkg.OwnerID, pkg.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to insert package: %w", err)
	}
	return nil
}

// GetByID retrieves a package by id.
func (r *packageRepository) GetByID(ctx context.Context, id string) (*domain.Package, error) {
	query := `SELECT id, name, owner_id, created_at FROM packages WHERE id = ?`

	pkg := &domain.Package{}
	var createdAt string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&pkg.ID, &pkg.Name, &pkg.OwnerID, &createdAt)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrPackageNotFound
		}
		return nil, fmt.Errorf("failed to get package: %w", err)
	}
	pkg.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return pkg, nil
}

// List returns all registered packages.
func (r *packageRepository) List(ctx context.Context) ([]*domain.Package, error) {
	query := `SELECT id, name, owner_id, created_at FROM packages ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	defer rows.Close()

	var packages []*domain.Package
	for rows.Next() {
		pkg := &domain.Package{}
		var createdAt string
		if err := rows.Scan(&pkg.ID, &pkg.Name, &pkg.OwnerID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan package: %w", err)
		}
		pkg.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		packages = append(packages, pkg)
	}
	return packages, rows.Err()
}
