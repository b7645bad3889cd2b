// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login with lockout and rate
// limiting, issuing/refreshing JWTs, and server-side refresh-token
// revocation.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode"

	"github.com/webstack/webstack/internal/common"
	"github.com/webstack/webstack/internal/dbx"
	"github.com/webstack/webstack/internal/logging"
	"github.com/webstack/webstack/internal/server/auth"
	"github.com/webstack/webstack/internal/server/config"
	"github.com/webstack/webstack/internal/server/models"
	"github.com/webstack/webstack/internal/server/ratelimit"
	"github.com/webstack/webstack/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh
// token. ExpiresIn is the access token lifetime in seconds.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// UserService provides authentication-related operations:
// - Register: create users subject to the password policy
// - Login: verify credentials (with lockout and per-IP rate limiting) and mint tokens
// - Refresh: mint a new access token from a live refresh token
// - Logout: revoke a refresh token server-side
// plus the account management operations used by profile and admin endpoints.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	codec       *auth.TokenCodec
	limiter     *ratelimit.Limiter
	logger      logging.Logger
	cfg         *config.Config
}

// NewUserService constructs a UserService using repositories, the token
// codec, the login rate limiter, and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, codec *auth.TokenCodec,
	limiter *ratelimit.Limiter, logger logging.Logger, cfg *config.Config) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		codec:       codec,
		limiter:     limiter,
		logger:      logger,
		cfg:         cfg,
	}
}

// Register creates a new user with the given email, username, and password.
// The password is checked against the configured policy and stored as a
// bcrypt hash. Duplicate email or username yields ErrAlreadyExists; when
// registration is disabled, ErrPermissionDenied.
func (s *UserService) Register(ctx context.Context, email, username, password, fullName string) (*models.User, error) {
	if !s.cfg.EnableRegistration {
		return nil, fmt.Errorf("registration is disabled: %w", common.ErrPermissionDenied)
	}

	if err := s.validatePassword(password); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)

	for _, identifier := range []string{email, username} {
		if _, err := repo.GetByEmailOrUsername(ctx, identifier); err == nil {
			return nil, common.ErrAlreadyExists
		} else if !errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("error checking existing user: %v", err)
		}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, common.ErrorInternal
	}

	user := &models.User{
		Email:        email,
		Username:     username,
		FullName:     fullName,
		PasswordHash: hash,
		Role:         models.RoleUser,
		IsActive:     true,
	}

	u, err := repo.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %v", err)
	}
	return u, nil
}

// Login verifies credentials for the user identified by email or username
// and, on success, returns a new TokenPair.
//
// Failure modes, checked in order:
//   - per-IP login rate limit exceeded: ErrRateLimited
//   - unknown identifier or wrong password: ErrorUnauthorized
//   - account locked out after repeated failures: ErrAccountLocked
//   - account deactivated: ErrAccountDisabled
//
// A wrong password increments the failure counter and may trigger a lockout;
// a successful login resets the counter and records the login time.
func (s *UserService) Login(ctx context.Context, identifier, password, clientIP string) (*TokenPair, error) {
	if !s.limiter.Allow(ctx, clientIP, "login", s.cfg.LoginRateLimitMax, s.cfg.LoginRateLimitWindow) {
		return nil, common.ErrRateLimited
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmailOrUsername(ctx, identifier)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	if user.IsLocked() {
		return nil, common.ErrAccountLocked
	}

	if !auth.CheckPassword(password, user.PasswordHash) {
		attempts, recErr := repo.RecordFailedLogin(ctx, user.ID, s.cfg.MaxLoginAttempts, s.cfg.LockoutDuration)
		if recErr != nil {
			s.logger.Error(ctx, "recording failed login attempt", "user_id", user.ID, "error", recErr.Error())
		} else if attempts >= s.cfg.MaxLoginAttempts {
			s.logger.Warn(ctx, "account locked after repeated failures", "user_id", user.ID, "attempts", attempts)
		}
		return nil, common.ErrorUnauthorized
	}

	if !user.IsActive {
		return nil, common.ErrAccountDisabled
	}

	var pair *TokenPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, user, tx)
		if genErr != nil {
			return genErr
		}
		return s.repomanager.Users(tx).RecordLogin(ctx, user.ID)
	}); err != nil {
		return nil, common.ErrorInternal
	}
	return pair, nil
}

// Refresh validates a refresh token against both its signature and the
// server-side revocation record, then mints a fresh access token. The
// refresh token itself is returned unchanged; it stays valid until logout
// or expiry.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.codec.Verify(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" || claims.UserID == 0 {
		return nil, common.ErrInvalidToken
	}

	repo := s.repomanager.RefreshTokens(s.db)
	record, err := repo.GetByJTI(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, common.ErrorInternal
	}
	if !record.IsActive || record.UserID != claims.UserID {
		return nil, common.ErrInvalidToken
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, common.ErrorInternal
	}
	if !user.IsActive {
		return nil, common.ErrAccountDisabled
	}

	access, err := s.codec.Issue(user.Email, auth.TokenTypeAccess, s.cfg.AccessTokenValidity,
		auth.IssueOptions{UserID: user.ID, Role: string(user.Role)})
	if err != nil {
		return nil, common.ErrorInternal
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.cfg.AccessTokenValidity.Seconds()),
	}, nil
}

// Logout revokes the refresh token server-side. The token must verify and
// belong to userID. Revoking an already-revoked token is not an error.
func (s *UserService) Logout(ctx context.Context, userID int64, refreshToken string) error {
	claims, err := s.codec.Verify(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return err
	}
	if claims.ID == "" || claims.UserID != userID {
		return common.ErrInvalidToken
	}

	if err := s.repomanager.RefreshTokens(s.db).Revoke(ctx, claims.ID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return common.ErrorInternal
	}
	return nil
}

// ChangePassword verifies the current password and replaces it with a new
// one that satisfies the policy. A wrong current password yields
// ErrorUnauthorized.
func (s *UserService) ChangePassword(ctx context.Context, userID int64, current, newPassword string) error {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(current, user.PasswordHash) {
		return common.ErrorUnauthorized
	}
	if err := s.validatePassword(newPassword); err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return common.ErrorInternal
	}
	return repo.UpdatePassword(ctx, userID, hash)
}

// GetByID returns the user with the given id.
func (s *UserService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, id)
}

// List returns a page of users ordered by id.
func (s *UserService) List(ctx context.Context, offset, limit int) ([]*models.User, error) {
	return s.repomanager.Users(s.db).List(ctx, offset, limit)
}

// UpdateProfile updates the user's display name.
func (s *UserService) UpdateProfile(ctx context.Context, id int64, fullName string) error {
	return s.repomanager.Users(s.db).UpdateProfile(ctx, id, fullName)
}

// SetActive activates or deactivates a user account.
func (s *UserService) SetActive(ctx context.Context, id int64, active bool) error {
	return s.repomanager.Users(s.db).SetActive(ctx, id, active)
}

// Delete removes a user account. API keys, refresh tokens, and file records
// cascade at the schema level.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	return s.repomanager.Users(s.db).Delete(ctx, id)
}

// --- helpers below ---

func (s *UserService) validatePassword(password string) error {
	if len(password) < s.cfg.PasswordMinLength {
		return fmt.Errorf("password must be at least %d characters: %w", s.cfg.PasswordMinLength, common.ErrValidation)
	}

	var hasUpper, hasLower, hasNumber, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsNumber(r):
			hasNumber = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}

	if s.cfg.PasswordRequireUpper && !hasUpper {
		return fmt.Errorf("password must contain an uppercase letter: %w", common.ErrValidation)
	}
	if s.cfg.PasswordRequireLower && !hasLower {
		return fmt.Errorf("password must contain a lowercase letter: %w", common.ErrValidation)
	}
	if s.cfg.PasswordRequireNumbers && !hasNumber {
		return fmt.Errorf("password must contain a number: %w", common.ErrValidation)
	}
	if s.cfg.PasswordRequireSymbols && !hasSymbol {
		return fmt.Errorf("password must contain a symbol: %w", common.ErrValidation)
	}
	return nil
}

func (s *UserService) generateTokenPair(ctx context.Context, user *models.User, tx dbx.DBTX) (*TokenPair, error) {
	access, err := s.codec.Issue(user.Email, auth.TokenTypeAccess, s.cfg.AccessTokenValidity,
		auth.IssueOptions{UserID: user.ID, Role: string(user.Role)})
	if err != nil {
		return nil, err
	}

	jti := auth.NewJTI()
	expiresAt := time.Now().Add(s.cfg.RefreshTokenValidity)

	refresh, err := s.codec.Issue(user.Email, auth.TokenTypeRefresh, s.cfg.RefreshTokenValidity,
		auth.IssueOptions{UserID: user.ID, JTI: jti})
	if err != nil {
		return nil, err
	}

	if err := s.repomanager.RefreshTokens(tx).Create(ctx, user.ID, jti, expiresAt); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.cfg.AccessTokenValidity.Seconds()),
	}, nil
}
