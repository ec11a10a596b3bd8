package repomanager

import (
	"context"
	"database/sql"

	"github.com/keyhaven/keyhaven/internal/dbx"
	"github.com/keyhaven/keyhaven/internal/server/repositories/biometrics"
	"github.com/keyhaven/keyhaven/internal/server/repositories/settings"
	"github.com/keyhaven/keyhaven/internal/server/repositories/users"
	"github.com/keyhaven/keyhaven/internal/server/repositories/vaults"
)

// RepositoryManager vends repositories bound to a DBTX, so a service can run
// several of them inside one transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Vaults(db dbx.DBTX) vaults.Repository
	Biometrics(db dbx.DBTX) biometrics.Repository
	Settings(db dbx.DBTX) settings.Repository
}
