package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/seqsubmit/internal/dbx"
	"github.com/dmitrijs2005/seqsubmit/internal/server/repositories/samples"
	"github.com/dmitrijs2005/seqsubmit/internal/server/repositories/settings"
	"github.com/dmitrijs2005/seqsubmit/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code
// runs against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Samples(db dbx.DBTX) samples.Repository
	Settings(db dbx.DBTX) settings.Repository
}
