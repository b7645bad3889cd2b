package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/webstack/webstack/internal/common"
	"github.com/webstack/webstack/internal/dbx"
	"github.com/webstack/webstack/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts an active refresh-token record for userID.
func (r *PostgresRepository) Create(ctx context.Context, userID int64, jti string, expiresAt time.Time) error {
	query := `
		INSERT INTO refresh_tokens (user_id, jti, is_active, expires_at)
		VALUES ($1, $2, TRUE, $3)
	`
	if _, err := r.db.ExecContext(ctx, query, userID, jti, expiresAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByJTI returns the record for the given jti or common.ErrorNotFound.
func (r *PostgresRepository) GetByJTI(ctx context.Context, jti string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, jti, is_active, expires_at, created_at
		FROM refresh_tokens
		WHERE jti = $1
	`
	token := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, jti).
		Scan(&token.ID, &token.UserID, &token.JTI, &token.IsActive, &token.ExpiresAt, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

// Revoke marks the record inactive. The row stays behind as an audit trail.
func (r *PostgresRepository) Revoke(ctx context.Context, jti string) error {
	query := `UPDATE refresh_tokens SET is_active = FALSE WHERE jti = $1`

	res, err := r.db.ExecContext(ctx, query, jti)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
