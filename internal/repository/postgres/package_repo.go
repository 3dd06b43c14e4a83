package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/prn-tf/packvault/internal/domain"
	"github.com/prn-tf/packvault/internal/repository"
)

// isUniqueViolation reports whether err is a PostgreSQL unique violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// packageRepository implements repository.PackageRepository for PostgreSQL.
type packageRepository struct {
	db *DB
}

// NewPackageRepository creates a new PostgreSQL package repository.
func NewPackageRepository(db *DB) repository.PackageRepository {
	return &packageRepository{db: db}
}

// Create registers a new package.
func (r *packageRepository) Create(ctx context.Context, pkg *domain.Package) error {
	query := `
		INSERT INTO packages (id, name, owner_id, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.Pool.Exec(ctx, query, pkg.ID, pkg.Name, pkg.OwnerID, pkg.CreatedAt.UTC())
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
	query := `SELECT id, name, owner_id, created_at FROM packages WHERE id = $1`

	pkg := &domain.Package{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(&pkg.ID, &pkg.Name, &pkg.OwnerID, &pkg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPackageNotFound
		}
		return nil, fmt.Errorf("failed to get package: %w", err)
	}
	return pkg, nil
}

// List returns all registered packages.
func (r *packageRepository) List(ctx context.Context) ([]*domain.Package, error) {
	query := `SELECT id, name, owner_id, created_at FROM packages ORDER BY created_at`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	defer rows.Close()

	var packages []*domain.Package
	for rows.Next() {
		pkg := &domain.Package{}
		if err := rows.Scan(&pkg.ID, &pkg.Name, &pkg.OwnerID, &pkg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan package: %w", err)
		}
		packages = append(packages, pkg)
	}
	return packages, rows.Err()
}
