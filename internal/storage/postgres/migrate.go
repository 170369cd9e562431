package postgres

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Direction selects which way Migrate moves the schema.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// MigrationStatus is the schema version after a migration run.
type MigrationStatus struct {
	Version uint
	Dirty   bool
	// Changed is false when the schema was already at the requested version.
	Changed bool
}

// Migrate applies the embedded migrations to the database at dsn. steps == 0
// migrates all the way in dir.
//
// Precondition: dsn must be a postgres:// URL; steps >= 0.
// Postcondition: Returns the resulting schema version or a non-nil error.
func Migrate(dsn string, dir Direction, steps int) (MigrationStatus, error) {
	if dir != Up && dir != Down {
		return MigrationStatus{}, fmt.Errorf("invalid direction %q: must be 'up' or 'down'", dir)
	}
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("opening embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	switch dir {
	case Up:
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	default:
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	}

	changed := true
	if errors.Is(err, migrate.ErrNoChange) {
		changed = false
	} else if err != nil {
		return MigrationStatus{}, fmt.Errorf("migrating %s: %w", dir, err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, fmt.Errorf("reading schema version: %w", err)
	}
	return MigrationStatus{Version: version, Dirty: dirty, Changed: changed}, nil
}
