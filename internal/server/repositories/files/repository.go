// Package files provides the persistence layer for upload metadata.
// Object content lives in object storage; these records track ownership
// and upload state.
package files

import (
	"context"

	"github.com/webstack/webstack/internal/server/models"
)

// Repository is the persistence contract for file records.
type Repository interface {
	Create(ctx context.Context, file *models.File) (*models.File, error)
	GetByID(ctx context.Context, id int64) (*models.File, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.File, error)
	MarkUploaded(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}
