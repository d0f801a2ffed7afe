package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// Migrator applies the ledger schema to PostgreSQL with golang-migrate
type Migrator struct {
	m      *migrate.Migrate
	source fs.FS
	log    *zap.Logger
}

// MigrationStatus is one migration file and whether the database has it
type MigrationStatus struct {
	Version uint
	Name    string
	Applied bool
}

// New creates a Migrator over the *.sql files at the root of source, either
// the embedded set or a directory opened with os.DirFS
func New(db *sql.DB, source fs.FS, log *zap.Logger) (*Migrator, error) {
	src, err := iofs.New(source, ".")
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	return &Migrator{m: m, source: source, log: log.Named("migrate")}, nil
}

// Up applies every pending migration. An up-to-date schema is not an error.
func (m *Migrator) Up() error {
	return m.run("up", m.m.Up)
}

// Down reverts every applied migration
func (m *Migrator) Down() error {
	return m.run("down", m.m.Down)
}

// Steps applies n migrations forward, or -n back when n is negative
func (m *Migrator) Steps(n int) error {
	return m.run("step "+strconv.Itoa(n), func() error { return m.m.Steps(n) })
}

func (m *Migrator) run(op string, apply func() error) error {
	before, _, err := m.Version()
	if err != nil {
		return err
	}
	if err := apply(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.log.Info("Schema unchanged", zap.String("op", op), zap.Uint("version", before))
			return nil
		}
		return fmt.Errorf("migrate %s: %w", op, err)
	}
	after, dirty, err := m.Version()
	if err != nil {
		return err
	}
	m.log.Info("Schema migrated",
		zap.String("op", op),
		zap.Uint("from", before),
		zap.Uint("to", after),
		zap.Bool("dirty", dirty),
	)
	return nil
}

// Version reports the applied version; zero when the schema is empty
func (m *Migrator) Version() (uint, bool, error) {
	v, dirty, err := m.m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return v, dirty, nil
}

// Force records version as applied and clean without running anything.
// It is the repair path after a migration failed half way.
func (m *Migrator) Force(version int) error {
	m.log.Warn("Forcing schema version", zap.Int("version", version))
	if err := m.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

// Status lists every migration in the source with its applied state
func (m *Migrator) Status() ([]MigrationStatus, error) {
	current, _, err := m.Version()
	if err != nil {
		return nil, err
	}
	names, err := ListMigrations(m.source)
	if err != nil {
		return nil, err
	}
	out := make([]MigrationStatus, 0, len(names))
	for _, name := range names {
		v, err := ParseVersion(name)
		if err != nil {
			return nil, err
		}
		out = append(out, MigrationStatus{Version: v, Name: name, Applied: v <= current})
	}
	return out, nil
}

// ParseVersion extracts the leading version number of a migration base name
func ParseVersion(name string) (uint, error) {
	prefix, _, _ := strings.Cut(name, "_")
	v, err := strconv.ParseUint(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("migration %q has no numeric version", name)
	}
	return uint(v), nil
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	return errors.Join(srcErr, dbErr)
}
