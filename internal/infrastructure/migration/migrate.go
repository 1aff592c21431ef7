// Package migration applies the evidence schema and mart views with
// golang-migrate. Production data is loaded by the upstream transform job;
// these migrations bootstrap local and test databases.
package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// Migrator moves the evidence store schema between versions.
type Migrator struct {
	mig *migrate.Migrate
	log *zap.Logger
}

// New wraps an open connection. Migrations are read from dir.
func New(db *sql.DB, dir string, log *zap.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres migration driver: %w", err)
	}
	mig, err := migrate.NewWithDatabaseInstance("file://"+filepath.ToSlash(dir), "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("load migrations from %s: %w", dir, err)
	}
	mig.Log = migrateLog{log.Named("migrate")}
	return &Migrator{mig: mig, log: log}, nil
}

// Up applies every pending migration.
func (m *Migrator) Up() error { return m.apply("up", m.mig.Up) }

// Down rolls every migration back.
func (m *Migrator) Down() error { return m.apply("down", m.mig.Down) }

// Steps applies n migrations, or rolls back -n when n is negative.
func (m *Migrator) Steps(n int) error {
	return m.apply(fmt.Sprintf("step %+d", n), func() error { return m.mig.Steps(n) })
}

// apply runs one migrate operation. Having nothing to do is not an error.
func (m *Migrator) apply(op string, run func() error) error {
	err := run()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		m.log.Info("Evidence schema unchanged", zap.String("op", op))
		return nil
	case err != nil:
		return fmt.Errorf("migrate %s: %w", op, err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	m.log.Info("Evidence schema migrated",
		zap.String("op", op),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

// Version reports the applied version and dirty flag. A database that was
// never migrated is version 0.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.mig.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, dirty, nil
}

// Force records version as applied and clean without running anything.
// It is the way out of a dirty state after a failed migration.
func (m *Migrator) Force(version int) error {
	m.log.Warn("Forcing schema version", zap.Int("version", version))
	if err := m.mig.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

// Close releases the migration source and database handles.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.mig.Close()
	return errors.Join(srcErr, dbErr)
}

// Available returns the migration names in dir ("<version>_<title>"),
// sorted by version. A missing dir has no migrations.
func Available(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".up.sql"); ok && !e.IsDir() {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// migrateLog routes golang-migrate's own output to zap at debug level.
type migrateLog struct{ l *zap.Logger }

func (ml migrateLog) Printf(format string, v ...any) {
	ml.l.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (ml migrateLog) Verbose() bool {
	return ml.l.Core().Enabled(zap.DebugLevel)
}
