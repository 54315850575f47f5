// Package resettokens declares the token ledger for password-reset tokens.
package resettokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/wbcms/internal/server/models"
)

// Repository stores single-use password-reset tokens.
type Repository interface {
	// Create persists a fresh unused token for userID.
	Create(ctx context.Context, userID string, token string, expiresAt time.Time) (*models.PasswordResetToken, error)

	// OwnerOf returns the user id a token was issued to, whatever its
	// state. Returns common.ErrorNotFound for an unknown token.
	OwnerOf(ctx context.Context, token string) (string, error)

	// FindValid returns the token only if it exists, is unused and expires
	// after now, all decided by a single query. The row is locked for the
	// remainder of the enclosing transaction. Otherwise common.ErrorNotFound.
	FindValid(ctx context.Context, token string, now time.Time) (*models.PasswordResetToken, error)

	// MarkUsed flips the used flag on an unused token.
	// Returns common.ErrorNotFound if the token was already consumed.
	MarkUsed(ctx context.Context, id int64) error

	// DeleteUnusedForOwner removes the owner's other outstanding tokens.
	DeleteUnusedForOwner(ctx context.Context, userID string, exceptID int64) (int64, error)

	// DeleteExpired purges tokens whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
