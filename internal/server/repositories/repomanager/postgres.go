// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/keyhaven/keyhaven/internal/dbx"
	"github.com/keyhaven/keyhaven/internal/server/migrations"
	"github.com/keyhaven/keyhaven/internal/server/repositories/biometrics"
	"github.com/keyhaven/keyhaven/internal/server/repositories/settings"
	"github.com/keyhaven/keyhaven/internal/server/repositories/users"
	"github.com/keyhaven/keyhaven/internal/server/repositories/vaults"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// Vaults returns a vaults.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Vaults(db dbx.DBTX) vaults.Repository {
	return vaults.NewPostgresRepository(db)
}

// Biometrics returns a biometrics.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Biometrics(db dbx.DBTX) biometrics.Repository {
	return biometrics.NewPostgresRepository(db)
}

// Settings returns a settings.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Settings(db dbx.DBTX) settings.Repository {
	return settings.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}
