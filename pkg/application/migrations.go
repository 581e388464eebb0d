package application

import (
	"context"
	"database/sql"
	"io/fs"
	"time"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

type MigrationState struct {
	Version   int64
	Path      string
	Applied   bool
	AppliedAt time.Time
}

type gooseMigrations struct {
	db     *sql.DB
	fsys   fs.FS
	logger logrus.FieldLogger
}

// NewMigrationManager runs the goose migrations found at the root of fsys
// against db.
func NewMigrationManager(db *sql.DB, fsys fs.FS, logger logrus.FieldLogger) MigrationManager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &gooseMigrations{db: db, fsys: fsys, logger: logger.WithField("component", "migrations")}
}

func (m *gooseMigrations) provider() (*goose.Provider, error) {
	p, err := goose.NewProvider(goose.DialectPostgres, m.db, m.fsys)
	if err != nil {
		return nil, errors.Wrap(err, "create goose provider")
	}
	return p, nil
}

func (m *gooseMigrations) Run(ctx context.Context) error {
	p, err := m.provider()
	if err != nil {
		return err
	}
	results, err := p.Up(ctx)
	if err != nil {
		return errors.Wrap(err, "apply migrations")
	}
	for _, res := range results {
		m.logger.WithFields(logrus.Fields{
			"version":  res.Source.Version,
			"path":     res.Source.Path,
			"duration": res.Duration,
		}).Info("migration applied")
	}
	if len(results) == 0 {
		m.logger.Debug("schema up to date")
	}
	return nil
}

func (m *gooseMigrations) Status(ctx context.Context) ([]MigrationState, error) {
	p, err := m.provider()
	if err != nil {
		return nil, err
	}
	statuses, err := p.Status(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "migration status")
	}
	out := make([]MigrationState, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, MigrationState{
			Version:   s.Source.Version,
			Path:      s.Source.Path,
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return out, nil
}
