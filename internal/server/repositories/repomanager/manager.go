package repomanager

import (
	"context"
	"database/sql"

	"github.com/webstack/webstack/internal/dbx"
	"github.com/webstack/webstack/internal/server/repositories/apikeys"
	"github.com/webstack/webstack/internal/server/repositories/files"
	"github.com/webstack/webstack/internal/server/repositories/refreshtokens"
	"github.com/webstack/webstack/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to a DBTX and
// exposes a schema migration hook.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	APIKeys(db dbx.DBTX) apikeys.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Files(db dbx.DBTX) files.Repository
}
