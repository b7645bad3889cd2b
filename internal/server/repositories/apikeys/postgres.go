package apikeys

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

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

// Scopes are stored as a JSON array in a text column.
func marshalScopes(scopes []string) (sql.NullString, error) {
	if len(scopes) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(scopes)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal scopes: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalScopes(raw sql.NullString) []string {
	if !raw.Valid {
		return nil
	}
	var scopes []string
	if err := json.Unmarshal([]byte(raw.String), &scopes); err != nil {
		return nil
	}
	return scopes
}

func scanKey(row interface{ Scan(dest ...any) error }) (*models.APIKey, error) {
	key := &models.APIKey{}
	var scopes sql.NullString
	err := row.Scan(&key.ID, &key.UserID, &key.Name, &key.KeyHash, &key.IsActive,
		&key.ExpiresAt, &scopes, &key.LastUsedAt, &key.CreatedAt)
	if err != nil {
		return nil, err
	}
	key.Scopes = unmarshalScopes(scopes)
	return key, nil
}

const keyColumns = `id, user_id, name, key_hash, is_active, expires_at, scopes, last_used_at, created_at`

// Create inserts a new key record and returns it with its assigned id.
func (r *PostgresRepository) Create(ctx context.Context, key *models.APIKey) (*models.APIKey, error) {
	scopes, err := marshalScopes(key.Scopes)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO api_keys (user_id, name, key_hash, is_active, expires_at, scopes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err = r.db.QueryRowContext(ctx, query,
		key.UserID, key.Name, key.KeyHash, key.IsActive, key.ExpiresAt, scopes).
		Scan(&key.ID, &key.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return key, nil
}

// GetByID returns the key with the given id or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.APIKey, error) {
	query := `SELECT ` + keyColumns + ` FROM api_keys WHERE id = $1`

	key, err := scanKey(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return key, nil
}

// GetByHash returns the key with the given digest or common.ErrorNotFound.
func (r *PostgresRepository) GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	query := `SELECT ` + keyColumns + ` FROM api_keys WHERE key_hash = $1`

	key, err := scanKey(r.db.QueryRowContext(ctx, query, keyHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return key, nil
}

// ListByUser returns the user's keys, oldest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]*models.APIKey, error) {
	query := `SELECT ` + keyColumns + ` FROM api_keys WHERE user_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.APIKey
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// TouchLastUsed stamps the key's last_used_at.
func (r *PostgresRepository) TouchLastUsed(ctx context.Context, id int64) error {
	query := `UPDATE api_keys SET last_used_at = now() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Delete removes the key record.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM api_keys WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
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
