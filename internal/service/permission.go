package service

import (
	"context"

	"github.com/prn-tf/packvault/internal/repository"
)

// AllowAll permits every actor. Meant for single-tenant deployments and
// tests.
func AllowAll() PermissionFunc {
	return func(ctx context.Context, actorID, packageID string) (bool, error) {
		return true, nil
	}
}

// OwnerOnly permits the package owner. Packages registered without an
// owner accept any actor.
func OwnerOnly(packages repository.PackageRepository) PermissionFunc {
	return func(ctx context.Context, actorID, packageID string) (bool, error) {
		pkg, err := packages.GetByID(ctx, packageID)
		if err != nil {
			return false, err
		}
		return pkg.OwnerID == "" || pkg.OwnerID == actorID, nil
	}
}
