// Package migrations embeds the schema for every supported SQL backend and
// applies it with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	// Registers the postgres:// and postgresql:// database URLs.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/kshg9/FSO-part11-ci-phonebook/internal/store"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Result reports the schema state after a run.
type Result struct {
	Version uint
	Dirty   bool
}

// Up applies every pending migration for dialect.
//
// PostgreSQL migrations open their own connection from uri so closing the
// migrator does not close db. SQLite migrations reuse db because the file
// (or in-memory database) is only reachable through that handle.
func Up(db *sql.DB, dialect store.Dialect, uri string) (Result, error) {
	m, closeFn, err := newMigrator(db, dialect, uri)
	if err != nil {
		return Result{}, err
	}
	defer closeFn()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return Result{}, fmt.Errorf("applying %s migrations: %w", dialect, err)
	}
	return version(m)
}

// Down rolls back every applied migration for dialect.
func Down(db *sql.DB, dialect store.Dialect, uri string) (Result, error) {
	m, closeFn, err := newMigrator(db, dialect, uri)
	if err != nil {
		return Result{}, err
	}
	defer closeFn()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return Result{}, fmt.Errorf("reverting %s migrations: %w", dialect, err)
	}
	return version(m)
}

func newMigrator(db *sql.DB, dialect store.Dialect, uri string) (*migrate.Migrate, func(), error) {
	src, err := iofs.New(files, string(dialect))
	if err != nil {
		return nil, nil, fmt.Errorf("loading %s migrations: %w", dialect, err)
	}

	switch dialect {
	case store.DialectPostgres:
		m, err := migrate.NewWithSourceInstance("iofs", src, uri)
		if err != nil {
			return nil, nil, fmt.Errorf("creating postgres migrator: %w", err)
		}
		return m, func() { _, _ = m.Close() }, nil

	case store.DialectSQLite:
		driver, err := sqlite.WithInstance(db, &sqlite.Config{})
		if err != nil {
			return nil, nil, fmt.Errorf("creating sqlite migration driver: %w", err)
		}
		m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
		if err != nil {
			return nil, nil, fmt.Errorf("creating sqlite migrator: %w", err)
		}
		// Closing the driver would close db, which the store still owns.
		return m, func() { _ = src.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("no migrations for dialect %q", dialect)
	}
}

func version(m *migrate.Migrate) (Result, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("reading migration version: %w", err)
	}
	return Result{Version: v, Dirty: dirty}, nil
}
