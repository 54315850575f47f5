package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/wbcms/internal/dbx"
	"github.com/dmitrijs2005/wbcms/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/wbcms/internal/server/repositories/resettokens"
	"github.com/dmitrijs2005/wbcms/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to either the pool or a
// transaction, so services can compose them inside dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	ResetTokens(db dbx.DBTX) resettokens.Repository
}
