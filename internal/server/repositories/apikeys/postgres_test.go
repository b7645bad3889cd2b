package apikeys

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/webstack/webstack/internal/common"
	"github.com/webstack/webstack/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func keyRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "name", "key_hash", "is_active", "expires_at", "scopes", "last_used_at", "created_at",
	})
}

func TestCreate_WithScopes(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(5), now)
	mock.ExpectQuery(`INSERT\s+INTO\s+api_keys\s*\(user_id,\s*name,\s*key_hash,\s*is_active,\s*expires_at,\s*scopes\)`).
		WithArgs(int64(1), "ci", "hash", true, nil, sql.NullString{String: `["read","write"]`, Valid: true}).
		WillReturnRows(rows)

	key := &models.APIKey{UserID: 1, Name: "ci", KeyHash: "hash", IsActive: true, Scopes: []string{"read", "write"}}
	got, err := repo.Create(context.Background(), key)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != 5 {
		t.Fatalf("unexpected key: %+v", got)
	}
}

func TestCreate_NoScopes(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(6), time.Now())
	mock.ExpectQuery(`INSERT\s+INTO\s+api_keys`).
		WithArgs(int64(1), "ci", "hash", true, nil, sql.NullString{}).
		WillReturnRows(rows)

	if _, err := repo.Create(context.Background(), &models.APIKey{UserID: 1, Name: "ci", KeyHash: "hash", IsActive: true}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
}

func TestGetByHash_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := keyRows().AddRow(int64(5), int64(1), "ci", "hash", true, nil, `["read"]`, nil, time.Now())
	mock.ExpectQuery(`SELECT\s+.*\s+FROM\s+api_keys\s+WHERE\s+key_hash\s*=\s*\$1`).
		WithArgs("hash").
		WillReturnRows(rows)

	got, err := repo.GetByHash(context.Background(), "hash")
	if err != nil {
		t.Fatalf("GetByHash error: %v", err)
	}
	if got.ID != 5 || len(got.Scopes) != 1 || got.Scopes[0] != "read" {
		t.Fatalf("unexpected key: %+v", got)
	}
}

func TestGetByHash_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+.*\s+FROM\s+api_keys\s+WHERE\s+key_hash`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByHash(context.Background(), "ghost")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestListByUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := keyRows().
		AddRow(int64(1), int64(7), "a", "h1", true, nil, nil, nil, time.Now()).
		AddRow(int64(2), int64(7), "b", "h2", false, nil, nil, nil, time.Now())
	mock.ExpectQuery(`SELECT\s+.*\s+FROM\s+api_keys\s+WHERE\s+user_id\s*=\s*\$1\s+ORDER\s+BY\s+created_at`).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	got, err := repo.ListByUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("ListByUser error: %v", err)
	}
	if len(got) != 2 || got[0].Name != "a" || got[1].Scopes != nil {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestTouchLastUsed(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+api_keys\s+SET\s+last_used_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.TouchLastUsed(context.Background(), 5); err != nil {
		t.Fatalf("TouchLastUsed error: %v", err)
	}
}

func TestDelete_Unknown(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE\s+FROM\s+api_keys\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), 99)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}
