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
var migrationsFS embed.FS

// ErrNoChange is returned when there is no migration to apply or roll back.
var ErrNoChange = errors.New("no change")

// Migrator applies the embedded schema migrations with golang-migrate.
type Migrator struct {
	dsn string
}

func NewMigrator(dsn string) (*Migrator, error) {
	if dsn == "" {
		return nil, fmt.Errorf("missing DSN")
	}
	return &Migrator{dsn: dsn}, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up() error {
	return m.run(func(mig *migrate.Migrate) error { return mig.Up() })
}

// Down rolls back the most recent migration.
func (m *Migrator) Down() error {
	return m.run(func(mig *migrate.Migrate) error { return mig.Steps(-1) })
}

// Version reports the current schema version and whether it is dirty.
func (m *Migrator) Version() (uint, bool, error) {
	mig, closer, err := m.instance()
	if err != nil {
		return 0, false, err
	}
	defer closer()
	v, dirty, err := mig.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

func (m *Migrator) run(step func(*migrate.Migrate) error) error {
	mig, closer, err := m.instance()
	if err != nil {
		return err
	}
	defer closer()
	if err := step(mig); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return ErrNoChange
		}
		return err
	}
	return nil
}

func (m *Migrator) instance() (*migrate.Migrate, func(), error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, func() {}, fmt.Errorf("loading migrations: %w", err)
	}
	mig, err := migrate.NewWithSourceInstance("iofs", src, m.dsn)
	if err != nil {
		return nil, func() {}, fmt.Errorf("connecting migrator: %w", err)
	}
	return mig, func() { mig.Close() }, nil
}
