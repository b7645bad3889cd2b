package auth

import (
	"context"
	"time"

	"github.com/webstack/webstack/internal/common"
	"github.com/webstack/webstack/internal/logging"
	"github.com/webstack/webstack/internal/server/models"
)

// UserGetter is the slice of the users repository the authenticator needs.
type UserGetter interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// APIKeyLookup is the slice of the api-keys repository the authenticator needs.
type APIKeyLookup interface {
	GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error)
	TouchLastUsed(ctx context.Context, id int64) error
}

// Strategy attempts to resolve a bearer credential to a user. A strategy
// that cannot handle the credential returns an error; the authenticator
// then moves on to the next one.
type Strategy interface {
	Attempt(ctx context.Context, credential string) (*models.User, error)
}

// Authenticator resolves an inbound bearer credential by trying an ordered
// list of strategies until one succeeds. All failures collapse into
// common.ErrorUnauthorized so callers cannot tell which mechanism almost
// succeeded.
type Authenticator struct {
	strategies []Strategy
}

// NewAuthenticator builds an authenticator over the given strategies,
// tried in order.
func NewAuthenticator(strategies ...Strategy) *Authenticator {
	return &Authenticator{strategies: strategies}
}

// Authenticate resolves credential to an active user or fails with
// common.ErrorUnauthorized.
func (a *Authenticator) Authenticate(ctx context.Context, credential string) (*models.User, error) {
	if credential == "" {
		return nil, common.ErrorUnauthorized
	}
	for _, s := range a.strategies {
		user, err := s.Attempt(ctx, credential)
		if err == nil {
			return user, nil
		}
	}
	return nil, common.ErrorUnauthorized
}

// TokenStrategy authenticates short-lived access tokens. Verification is
// stateless except for the user load.
type TokenStrategy struct {
	codec *TokenCodec
	users UserGetter
}

// NewTokenStrategy builds a TokenStrategy.
func NewTokenStrategy(codec *TokenCodec, users UserGetter) *TokenStrategy {
	return &TokenStrategy{codec: codec, users: users}
}

// Attempt verifies credential as an access token, requires the numeric
// user id claim, and loads an active user. Persistence errors propagate as
// authentication failure; failing open here would be a security regression.
func (s *TokenStrategy) Attempt(ctx context.Context, credential string) (*models.User, error) {
	claims, err := s.codec.Verify(credential, TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	if claims.UserID == 0 {
		return nil, common.ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, common.ErrorUnauthorized
	}
	if !user.IsActive {
		return nil, common.ErrAccountDisabled
	}
	return user, nil
}

// APIKeyStrategy authenticates opaque API keys by their stored hash.
type APIKeyStrategy struct {
	users  UserGetter
	keys   APIKeyLookup
	logger logging.Logger
}

// NewAPIKeyStrategy builds an APIKeyStrategy.
func NewAPIKeyStrategy(users UserGetter, keys APIKeyLookup, logger logging.Logger) *APIKeyStrategy {
	return &APIKeyStrategy{users: users, keys: keys, logger: logger}
}

// Attempt screens the credential format, looks the key up by hash, and
// requires the key active and unexpired and its owner active. On success
// the key's last-used timestamp is updated asynchronously; that write is
// best-effort and never affects the authentication outcome.
func (s *APIKeyStrategy) Attempt(ctx context.Context, credential string) (*models.User, error) {
	if !ValidAPIKeyFormat(credential) {
		return nil, common.ErrInvalidToken
	}

	key, err := s.keys.GetByHash(ctx, HashAPIKey(credential))
	if err != nil {
		return nil, common.ErrorUnauthorized
	}
	if !key.IsActive || key.IsExpired() {
		return nil, common.ErrorUnauthorized
	}

	user, err := s.users.GetByID(ctx, key.UserID)
	if err != nil {
		return nil, common.ErrorUnauthorized
	}
	if !user.IsActive {
		return nil, common.ErrAccountDisabled
	}

	go s.touchLastUsed(key.ID)

	return user, nil
}

func (s *APIKeyStrategy) touchLastUsed(keyID int64) {
	// Detached from the request context: the request may already be done.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.keys.TouchLastUsed(ctx, keyID); err != nil {
		s.logger.Warn(ctx, "failed to update api key last_used_at", "key_id", keyID, "error", err.Error())
	}
}
