package users

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

const userColumns = `id, email, username, full_name, password_hash, role, is_active, is_verified,
	failed_login_attempts, locked_until, last_login_at, password_changed_at, created_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*models.User, error) {
	user := &models.User{}
	var fullName sql.NullString
	err := row.Scan(&user.ID, &user.Email, &user.Username, &fullName, &user.PasswordHash,
		&user.Role, &user.IsActive, &user.IsVerified,
		&user.FailedLoginAttempts, &user.LockedUntil, &user.LastLoginAt, &user.PasswordChangedAt,
		&user.CreatedAt)
	if err != nil {
		return nil, err
	}
	user.FullName = fullName.String
	return user, nil
}

// Create inserts a new user and returns it with its assigned id.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (email, username, full_name, password_hash, role, is_active, is_verified, password_changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.Username, nullString(user.FullName), user.PasswordHash,
		user.Role, user.IsActive, user.IsVerified, user.PasswordChangedAt).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// GetByID returns the user with the given id or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// GetByEmailOrUsername returns the user whose email or username equals
// identifier, or common.ErrorNotFound.
func (r *PostgresRepository) GetByEmailOrUsername(ctx context.Context, identifier string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 OR username = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, identifier))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// List returns users ordered by id, paginated by offset/limit.
func (r *PostgresRepository) List(ctx context.Context, offset, limit int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id OFFSET $1 LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateProfile updates the user's mutable profile fields.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, id int64, fullName string) error {
	query := `UPDATE users SET full_name = $2 WHERE id = $1`
	return r.exec(ctx, query, id, nullString(fullName))
}

// UpdatePassword replaces the password hash and stamps password_changed_at.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, password_changed_at = now() WHERE id = $1`
	return r.exec(ctx, query, id, passwordHash)
}

// SetActive enables or disables the account.
func (r *PostgresRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE users SET is_active = $2 WHERE id = $1`
	return r.exec(ctx, query, id, active)
}

// RecordLogin clears failure tracking after a successful login.
func (r *PostgresRepository) RecordLogin(ctx context.Context, id int64) error {
	query := `
		UPDATE users
		SET last_login_at = now(), failed_login_attempts = 0, locked_until = NULL
		WHERE id = $1
	`
	return r.exec(ctx, query, id)
}

// RecordFailedLogin increments the failure counter in one statement and
// locks the account once the counter reaches maxAttempts.
func (r *PostgresRepository) RecordFailedLogin(ctx context.Context, id int64, maxAttempts int, lockout time.Duration) (int, error) {
	query := `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = CASE WHEN failed_login_attempts + 1 >= $2 THEN $3 ELSE locked_until END
		WHERE id = $1
		RETURNING failed_login_attempts
	`
	var attempts int
	err := r.db.QueryRowContext(ctx, query, id, maxAttempts, time.Now().Add(lockout)).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return attempts, nil
}

// Delete removes the user. Dependent api_keys and refresh_tokens rows are
// removed by ON DELETE CASCADE.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM users WHERE id = $1`
	return r.exec(ctx, query, id)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
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

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
