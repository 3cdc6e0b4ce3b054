package store

import (
	"embed"
	stderrors "errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/scrapetoapi/scrapetoapi/pkg/domain/errors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator applies the embedded SQL migrations to a PostgreSQL database.
type Migrator struct {
	dsn string
}

func NewMigrator(dsn string) (*Migrator, error) {
	if dsn == "" {
		return nil, errors.Newf(errors.CodeConfigurationInvalid, "store", "missing database URL")
	}
	return &Migrator{dsn: dsn}, nil
}

// Up applies every pending migration. It is a no-op when the schema is
// current.
func (m *Migrator) Up() error {
	return m.run(func(mig *migrate.Migrate) error { return mig.Up() })
}

// Down rolls back the most recent migration.
func (m *Migrator) Down() error {
	return m.run(func(mig *migrate.Migrate) error { return mig.Steps(-1) })
}

// Version reports the applied schema version.
func (m *Migrator) Version() (uint, bool, error) {
	mig, closer, err := m.instance()
	if err != nil {
		return 0, false, err
	}
	defer closer()

	v, dirty, err := mig.Version()
	if stderrors.Is(err, migrate.ErrNilVersion) {
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

	if err := step(mig); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		return errors.New(errors.CodeIoError, "store", "migration failed", err)
	}
	return nil
}

func (m *Migrator) instance() (*migrate.Migrate, func(), error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, func() {}, errors.New(errors.CodeInternalError, "store", "failed to read embedded migrations", err)
	}
	mig, err := migrate.NewWithSourceInstance("iofs", src, m.dsn)
	if err != nil {
		return nil, func() {}, errors.New(errors.CodeIoError, "store", "failed to initialise migrations", err)
	}
	return mig, func() { _, _ = mig.Close() }, nil
}
