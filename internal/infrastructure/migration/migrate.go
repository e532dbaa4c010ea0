package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CurrentVersion is the newest schema version shipped with the binary
const CurrentVersion uint = 3

//go:embed sql/*.up.sql
var embedded embed.FS

const (
	embeddedDir = "sql"

	createVersionTable = `CREATE TABLE IF NOT EXISTS schema_version (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    version INTEGER NOT NULL,
    applied_at TEXT NOT NULL
)`
	selectVersion = `SELECT version FROM schema_version WHERE id = 1`
	upsertVersion = `INSERT INTO schema_version (id, version, applied_at) VALUES (1, ?, ?)
ON CONFLICT(id) DO UPDATE SET version = excluded.version, applied_at = excluded.applied_at`
)

// Migrator applies the embedded schema deltas to the local store. Each
// delta runs statement by statement; a statement failing because its table,
// index or column already exists counts as applied.
type Migrator struct {
	db     *gorm.DB
	source source.Driver
	logger *zap.Logger
}

// Option configures a Migrator
type Option func(*options)

type options struct {
	fsys fs.FS
	dir  string
}

// WithSource reads deltas from fsys/dir instead of the embedded set
func WithSource(fsys fs.FS, dir string) Option {
	return func(o *options) {
		o.fsys = fsys
		o.dir = dir
	}
}

// New creates a Migrator over the given connection
func New(db *gorm.DB, logger *zap.Logger, opts ...Option) (*Migrator, error) {
	o := options{fsys: embedded, dir: embeddedDir}
	for _, opt := range opts {
		opt(&o)
	}

	src, err := iofs.New(o.fsys, o.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open migration source: %w", err)
	}

	return &Migrator{
		db:     db,
		source: src,
		logger: logger,
	}, nil
}

// Up applies every delta newer than the stored version and returns the
// versions it applied.
func (m *Migrator) Up(ctx context.Context) ([]uint, error) {
	current, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}

	pending, err := m.pendingAfter(current)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		m.logger.Debug("Schema up to date", zap.Uint("version", current))
		return nil, nil
	}

	m.logger.Info("Running migrations up",
		zap.Uint("from_version", current),
		zap.Int("pending", len(pending)),
	)

	applied := make([]uint, 0, len(pending))
	for _, version := range pending {
		if err := m.apply(ctx, version); err != nil {
			return applied, err
		}
		if err := m.setVersion(ctx, version); err != nil {
			return applied, err
		}
		applied = append(applied, version)
	}

	m.logger.Info("Migrations completed", zap.Uint("version", applied[len(applied)-1]))
	return applied, nil
}

// Version returns the stored schema version, zero for a fresh store
func (m *Migrator) Version(ctx context.Context) (uint, error) {
	db := m.db.WithContext(ctx)
	if err := db.Exec(createVersionTable).Error; err != nil {
		return 0, fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var version int64
	err := db.Raw(selectVersion).Row().Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return uint(version), nil
}

// Pending lists the versions Up would apply
func (m *Migrator) Pending(ctx context.Context) ([]uint, error) {
	current, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}
	return m.pendingAfter(current)
}

// Close releases the migration source
func (m *Migrator) Close() error {
	if err := m.source.Close(); err != nil {
		return fmt.Errorf("failed to close source: %w", err)
	}
	return nil
}

func (m *Migrator) pendingAfter(current uint) ([]uint, error) {
	var versions []uint

	next, err := m.source.First()
	for err == nil {
		if next > current {
			versions = append(versions, next)
		}
		next, err = m.source.Next(next)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	return versions, nil
}

func (m *Migrator) apply(ctx context.Context, version uint) error {
	r, identifier, err := m.source.ReadUp(version)
	if err != nil {
		return fmt.Errorf("failed to read migration %d: %w", version, err)
	}
	body, err := io.ReadAll(r)
	_ = r.Close()
	if err != nil {
		return fmt.Errorf("failed to read migration %d: %w", version, err)
	}

	log := m.logger.With(zap.Uint("version", version), zap.String("name", identifier))
	db := m.db.WithContext(ctx)

	for _, stmt := range splitStatements(string(body)) {
		if err := db.Exec(stmt).Error; err != nil {
			if isAlreadyApplied(err) {
				log.Warn("Statement already applied", zap.Error(err))
				continue
			}
			return fmt.Errorf("migration %d (%s) failed: %w", version, identifier, err)
		}
	}

	log.Info("Applied migration")
	return nil
}

func (m *Migrator) setVersion(ctx context.Context, version uint) error {
	appliedAt := time.Now().UTC().Format(time.RFC3339)
	if err := m.db.WithContext(ctx).Exec(upsertVersion, version, appliedAt).Error; err != nil {
		return fmt.Errorf("failed to record schema version %d: %w", version, err)
	}
	return nil
}

// isAlreadyApplied recognizes the SQLite errors an additive statement
// raises when its effect is already present.
func isAlreadyApplied(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate column")
}

// splitStatements splits a delta on semicolons, dropping comment lines.
// Deltas contain no triggers or string literals with semicolons.
func splitStatements(body string) []string {
	var b strings.Builder
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	var stmts []string
	for _, part := range strings.Split(b.String(), ";") {
		if s := strings.TrimSpace(part); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
