// Package users declares the credential store: persistent user accounts
// addressed by email or id.
package users

import (
	"context"

	"github.com/dmitrijs2005/wbcms/internal/server/models"
)

// Repository defines account storage operations.
type Repository interface {
	// Create inserts user and fills in the generated ID and CreatedAt.
	// A duplicate email returns common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByEmail looks the account up by its (normalized) email.
	// Returns common.ErrorNotFound when absent.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByID returns common.ErrorNotFound when absent.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// GetByIDForUpdate is GetByID that also row-locks the account until the
	// enclosing transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*models.User, error)

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
}
