package httpapi

import (
	"context"

	"github.com/webstack/webstack/internal/server/models"
)

type contextKey int

const userContextKey contextKey = iota

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFrom extracts the authenticated user from the context, nil when the
// request did not pass authentication middleware.
func UserFrom(ctx context.Context) *models.User {
	user, ok := ctx.Value(userContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
