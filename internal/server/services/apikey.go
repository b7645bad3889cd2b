package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/webstack/webstack/internal/common"
	"github.com/webstack/webstack/internal/server/auth"
	"github.com/webstack/webstack/internal/server/models"
	"github.com/webstack/webstack/internal/server/repositories/repomanager"
)

// APIKeyService manages API keys for programmatic access. Keys are shown in
// plaintext exactly once, at creation; only their hash is stored.
type APIKeyService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewAPIKeyService constructs an APIKeyService.
func NewAPIKeyService(db *sql.DB, m repomanager.RepositoryManager) *APIKeyService {
	return &APIKeyService{db: db, repomanager: m}
}

// CreateForUser mints a new API key owned by userID and returns the stored
// record together with the plaintext key. The plaintext is not recoverable
// afterwards.
func (s *APIKeyService) CreateForUser(ctx context.Context, userID int64, name string, expiresAt *time.Time, scopes []string) (*models.APIKey, string, error) {
	if name == "" {
		return nil, "", fmt.Errorf("key name is required: %w", common.ErrValidation)
	}

	plaintext, err := auth.GenerateAPIKey()
	if err != nil {
		return nil, "", common.ErrorInternal
	}

	key := &models.APIKey{
		UserID:    userID,
		Name:      name,
		KeyHash:   auth.HashAPIKey(plaintext),
		IsActive:  true,
		ExpiresAt: expiresAt,
		Scopes:    scopes,
	}

	created, err := s.repomanager.APIKeys(s.db).Create(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("error creating api key: %v", err)
	}
	return created, plaintext, nil
}

// ListForUser returns all API keys owned by userID. Hashes are included in
// the records but plaintext keys are never available here.
func (s *APIKeyService) ListForUser(ctx context.Context, userID int64) ([]*models.APIKey, error) {
	return s.repomanager.APIKeys(s.db).ListByUser(ctx, userID)
}

// Delete removes the key with the given id if it belongs to userID. A key
// owned by someone else is indistinguishable from a missing one.
func (s *APIKeyService) Delete(ctx context.Context, userID, keyID int64) error {
	repo := s.repomanager.APIKeys(s.db)

	key, err := repo.GetByID(ctx, keyID)
	if err != nil {
		return err
	}
	if key.UserID != userID {
		return common.ErrorNotFound
	}

	if err := repo.Delete(ctx, keyID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return common.ErrorInternal
	}
	return nil
}
