package files

import (
	"context"
	"database/sql"
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

const fileColumns = `id, user_id, storage_key, file_name, content_type, size, upload_status, created_at`

func scanFile(row interface{ Scan(dest ...any) error }) (*models.File, error) {
	file := &models.File{}
	err := row.Scan(&file.ID, &file.UserID, &file.StorageKey, &file.FileName,
		&file.ContentType, &file.Size, &file.UploadStatus, &file.CreatedAt)
	if err != nil {
		return nil, err
	}
	return file, nil
}

// Create inserts a new file record and returns it with its assigned id.
func (r *PostgresRepository) Create(ctx context.Context, file *models.File) (*models.File, error) {
	query := `
		INSERT INTO files (user_id, storage_key, file_name, content_type, size, upload_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		file.UserID, file.StorageKey, file.FileName, file.ContentType, file.Size, file.UploadStatus).
		Scan(&file.ID, &file.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

// GetByID returns the file record with the given id or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`

	file, err := scanFile(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

// ListByUser returns the user's file records, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, file)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkUploaded flips the record's upload status to completed.
func (r *PostgresRepository) MarkUploaded(ctx context.Context, id int64) error {
	query := `UPDATE files SET upload_status = $2 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, models.UploadStatusCompleted)
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

// Delete removes the file record.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM files WHERE id = $1`

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
