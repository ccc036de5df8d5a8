package postgres

import (
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/harborintel/portcost/internal/infrastructure/monitoring/logging"
	"github.com/harborintel/portcost/pkg/errors"
)

// Migrator applies schema migrations from a file source.
type Migrator struct {
	sourceURL   string
	databaseURL string
	logger      logging.Logger
}

// NewMigrator builds a Migrator.  sourcePath is a directory of
// golang-migrate SQL files, e.g.
// "internal/infrastructure/database/postgres/migrations".
func NewMigrator(sourcePath string, cfg Config, logger logging.Logger) *Migrator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Migrator{
		sourceURL:   "file://" + sourcePath,
		databaseURL: cfg.DSN(),
		logger:      logger.Named("migrator"),
	}
}

// Up applies all pending migrations.  A database already at the latest
// version is not an error.
func (m *Migrator) Up() error {
	mg, err := migrate.New(m.sourceURL, m.databaseURL)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreUnavailable, "migrator initialization failed")
	}
	defer mg.Close()

	if err := mg.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, errors.ErrCodeStoreUnavailable, "migration failed")
	}

	version, dirty, err := mg.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return errors.Wrap(err, errors.ErrCodeStoreUnavailable, "migration version check failed")
	}
	if dirty {
		return errors.New(errors.ErrCodeStoreUnavailable, "database schema is dirty; manual intervention required")
	}

	m.logger.Info("schema up to date", logging.Any("version", version))
	return nil
}

// Down rolls back a single migration step.
func (m *Migrator) Down() error {
	mg, err := migrate.New(m.sourceURL, m.databaseURL)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreUnavailable, "migrator initialization failed")
	}
	defer mg.Close()

	if err := mg.Steps(-1); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, errors.ErrCodeStoreUnavailable, "rollback failed")
	}
	return nil
}
