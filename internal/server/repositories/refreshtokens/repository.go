// Package refreshtokens provides the persistence layer for refresh-token
// records used for server-side revocation of otherwise stateless tokens.
package refreshtokens

import (
	"context"
	"time"

	"github.com/webstack/webstack/internal/server/models"
)

// Repository is the persistence contract for refresh-token records.
// Records are keyed by the token's jti claim; revocation deactivates a row
// but never deletes it, preserving an audit trail.
type Repository interface {
	Create(ctx context.Context, userID int64, jti string, expiresAt time.Time) error
	GetByJTI(ctx context.Context, jti string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, jti string) error
}
