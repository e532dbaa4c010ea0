package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fieldsales/vendorsync/internal/infrastructure/config"
	"github.com/fieldsales/vendorsync/internal/infrastructure/logger"
	"github.com/fieldsales/vendorsync/internal/infrastructure/migration"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// driverName is the sqlite3 driver registered with the fold() SQL function
const driverName = "sqlite3_vendorsync"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", Fold, true)
		},
	})
}

// Database holds the local store connection. It is opened once at start
// and closed at teardown; every repository shares its single connection.
type Database struct {
	DB     *gorm.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the SQLite file described by cfg. The
// pool is limited to one connection so writes never interleave.
func Open(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (*Database, error) {
	if log == nil {
		log = zap.NewNop()
	}

	gormLogger := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.LogLevel),
		logger.WithSlowThreshold(cfg.SlowThreshold))

	db, err := gorm.Open(sqlite.New(sqlite.Config{
		DriverName: driverName,
		DSN:        buildDSN(cfg),
	}), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping local store: %w", err)
	}

	log.Debug("Local store opened", zap.String("path", cfg.Path))
	return &Database{DB: db, logger: log}, nil
}

// NewDatabase wraps an existing connection, e.g. one backed by sqlmock
func NewDatabase(db *gorm.DB, log *zap.Logger) *Database {
	if log == nil {
		log = zap.NewNop()
	}
	return &Database{DB: db, logger: log}
}

func buildDSN(cfg config.StoreConfig) string {
	params := url.Values{}
	params.Set("_foreign_keys", "on")
	params.Set("_busy_timeout", fmt.Sprintf("%d", cfg.BusyTimeoutMS))
	if cfg.Path == ":memory:" {
		return "file::memory:?" + params.Encode()
	}
	params.Set("_journal_mode", "WAL")
	return "file:" + cfg.Path + "?" + params.Encode()
}

// EnsureSchema brings the schema to the newest version. It is safe to call
// on every start.
func (d *Database) EnsureSchema(ctx context.Context) error {
	m, err := migration.New(d.DB, d.logger)
	if err != nil {
		return err
	}
	defer m.Close()

	if _, err := m.Up(ctx); err != nil {
		return fmt.Errorf("failed to migrate local store: %w", err)
	}
	return nil
}

// SchemaVersion returns the stored schema version
func (d *Database) SchemaVersion(ctx context.Context) (uint, error) {
	m, err := migration.New(d.DB, d.logger)
	if err != nil {
		return 0, err
	}
	defer m.Close()
	return m.Version(ctx)
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// ConnectionStats holds database connection pool statistics
type ConnectionStats struct {
	OpenConnections int
	InUse           int
	Idle            int
	WaitCount       int64
	WaitDuration    time.Duration
}

// Stats returns connection pool statistics
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return ConnectionStats{
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		WaitCount:       stats.WaitCount,
		WaitDuration:    stats.WaitDuration,
	}, nil
}

// Transaction executes fn within a database transaction
func (d *Database) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return d.DB.WithContext(ctx).Transaction(fn)
}

// resetOrder lists tables children first so foreign keys never block
var resetOrder = []string{
	"pending_order_items",
	"pending_orders",
	"order_history_items",
	"order_history",
	"pricing_by_type",
	"products",
	"clients",
	"config",
}

// Reset deletes every row of every table, keeping the schema
func (d *Database) Reset(ctx context.Context) error {
	err := d.Transaction(ctx, func(tx *gorm.DB) error {
		for _, table := range resetOrder {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	d.logger.Info("Local store cleared", zap.String("tables", strings.Join(resetOrder, ",")))
	return nil
}
