package postgres

import (
	"embed"
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // Registers the postgres migrate driver.
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrations embed.FS

// RunMigrations creates or updates the database schema used
// by the Checkpointer.
func RunMigrations(dsn string) error {
	u, err := url.Parse(dsn)
	if err != nil {
		return fmt.Errorf("postgres.RunMigrations: invalid dsn format: %w", err)
	}

	// Use a dedicated migrations table to avoid clashing with other
	// instances of the tool running on the same database.
	q := u.Query()
	q.Add("x-migrations-table", "consumer_schema_migrations")
	u.RawQuery = q.Encode()

	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("postgres.RunMigrations: failed to access migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, u.String())
	if err != nil {
		return fmt.Errorf("postgres.RunMigrations: failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("postgres.RunMigrations: failed to migrate database: %w", err)
	}

	return nil
}
