package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/packvault/internal/domain"
	"github.com/prn-tf/packvault/internal/repository"
)

// RegistryService manages the package and version registry that uploads
// attach to.
type RegistryService struct {
	packages repository.PackageRepository
	versions repository.VersionRepository
	logger   zerolog.Logger
}

// NewRegistryService creates a new RegistryService.
func NewRegistryService(repos *repository.Repositories, logger zerolog.Logger) *RegistryService {
	return &RegistryService{
		packages: repos.Packages,
		versions: repos.Versions,
		logger:   logger.With().Str("service", "registry").Logger(),
	}
}

// CreatePackageInput contains the data needed to register a package.
type CreatePackageInput struct {
	ID      string
	Name    string
	OwnerID string
}

// CreatePackage registers a new package. The id must be usable as an
// object-store key segment.
func (s *RegistryService) CreatePackage(ctx context.Context, input CreatePackageInput) (*domain.Package, error) {
	if err := domain.ValidateIdentifier(input.ID); err != nil {
		return nil, fmt.Errorf("%w: package id %q", err, input.ID)
	}
	if input.Name == "" {
		input.Name = input.ID
	}

	pkg := &domain.Package{
		ID:        input.ID,
		Name:      input.Name,
		OwnerID:   input.OwnerID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.packages.Create(ctx, pkg); err != nil {
		return nil, err
	}

	s.logger.Info().Str("package", pkg.ID).Str("owner", pkg.OwnerID).Msg("package registered")
	return pkg, nil
}

// CreateVersionInput contains the data needed to register a version.
type CreateVersionInput struct {
	ID        string
	PackageID string
	Label     string
	Minecraft string
	Loader    string
}

// CreateVersion registers a new release of a package. The repository
// assigns the next ordinal, fixing the version's place in release order.
func (s *RegistryService) CreateVersion(ctx context.Context, input CreateVersionInput) (*domain.PackageVersion, error) {
	if err := domain.ValidateIdentifier(input.ID); err != nil {
		return nil, fmt.Errorf("%w: version id %q", err, input.ID)
	}
	if _, err := s.packages.GetByID(ctx, input.PackageID); err != nil {
		return nil, err
	}

	version := &domain.PackageVersion{
		ID:        input.ID,
		PackageID: input.PackageID,
		Label:     input.Label,
		Minecraft: input.Minecraft,
		Loader:    input.Loader,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.versions.Create(ctx, version); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("package", version.PackageID).
		Str("version", version.ID).
		Int64("ordinal", version.Ordinal).
		Msg("version registered")
	return version, nil
}

// GetPackage retrieves a package by id.
func (s *RegistryService) GetPackage(ctx context.Context, id string) (*domain.Package, error) {
	return s.packages.GetByID(ctx, id)
}

// ListPackages returns all registered packages.
func (s *RegistryService) ListPackages(ctx context.Context) ([]*domain.Package, error) {
	return s.packages.List(ctx)
}

// ListVersions returns a package's versions in release order.
func (s *RegistryService) ListVersions(ctx context.Context, packageID string) ([]*domain.PackageVersion, error) {
	if _, err := s.packages.GetByID(ctx, packageID); err != nil {
		return nil, err
	}
	return s.versions.ListByPackage(ctx, packageID)
}
