// Package users provides the persistence layer for user identity records.
package users

import (
	"context"
	"time"

	"github.com/webstack/webstack/internal/server/models"
)

// Repository is the persistence contract for users.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmailOrUsername(ctx context.Context, identifier string) (*models.User, error)
	List(ctx context.Context, offset, limit int) ([]*models.User, error)

	UpdateProfile(ctx context.Context, id int64, fullName string) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	SetActive(ctx context.Context, id int64, active bool) error

	// RecordLogin resets the failure counter and clears any lockout after a
	// successful login.
	RecordLogin(ctx context.Context, id int64) error
	// RecordFailedLogin increments the failure counter and, when the counter
	// reaches maxAttempts, locks the account until now+lockout. The update is
	// a single atomic statement so concurrent failed attempts never lose
	// increments. Returns the post-increment attempt count.
	RecordFailedLogin(ctx context.Context, id int64, maxAttempts int, lockout time.Duration) (int, error)

	// Delete removes the user; api keys and refresh tokens cascade at the
	// schema level.
	Delete(ctx context.Context, id int64) error
}
