// Package apikeys provides the persistence layer for API key records.
// Only the SHA-256 hash of a key is ever stored.
package apikeys

import (
	"context"

	"github.com/webstack/webstack/internal/server/models"
)

// Repository is the persistence contract for API keys.
type Repository interface {
	Create(ctx context.Context, key *models.APIKey) (*models.APIKey, error)
	GetByID(ctx context.Context, id int64) (*models.APIKey, error)
	GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.APIKey, error)
	TouchLastUsed(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}
