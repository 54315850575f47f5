// Package refreshtokens declares the server-side repository contract for
// the refresh-token ledger. A refresh JWT is honoured only while its jti is
// present here.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/wbcms/internal/server/models"
)

// Repository defines operations for recording, retrieving, and revoking refresh tokens.
type Repository interface {
	// Create records the refresh token id (jti) issued to userID.
	Create(ctx context.Context, id string, userID string, expires time.Time) error

	// Find returns the ledger entry for id.
	// Implementations should return common.ErrorNotFound when the token is absent.
	Find(ctx context.Context, id string) (*models.RefreshToken, error)

	// Delete removes a single entry. Deleting a non-existent token is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteByUser revokes every refresh token of userID and reports how many were removed.
	DeleteByUser(ctx context.Context, userID string) (int64, error)

	// DeleteExpired removes entries whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
