package ledger

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

// runMigrations applies all pending migrations for dialect and returns version info
func runMigrations(db *sql.DB, dialect string) (uint, bool, error) {
	var (
		driver database.Driver
		err    error
	)
	switch dialect {
	case BackendSQLite:
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
	case BackendPostgres:
		driver, err = migratepgx.WithInstance(db, &migratepgx.Config{})
	default:
		return 0, false, fmt.Errorf("no migrations for dialect %s", dialect)
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to create %s driver: %w", dialect, err)
	}

	source, err := iofs.New(migrationFS, "migrations/"+dialect)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, dialect, driver)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, false, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}

	return version, dirty, nil
}
