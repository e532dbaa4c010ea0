package migration

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on"), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func columnNames(t *testing.T, db *gorm.DB, table string) []string {
	t.Helper()
	var cols []struct {
		Name string
	}
	require.NoError(t, db.Raw("SELECT name FROM pragma_table_info(?)", table).Scan(&cols).Error)
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, c.Name)
	}
	return names
}

func TestMigrator_Up_FreshStore(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	m, err := New(db, zap.NewNop())
	require.NoError(t, err)
	defer m.Close()

	pending, err := m.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2, 3}, pending)

	applied, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2, 3}, applied)

	version, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, version)

	for _, table := range []string{"products", "clients", "pending_orders", "pending_order_items", "config", "pricing_by_type", "order_history", "order_history_items"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.Contains(t, columnNames(t, db, "clients"), "price_type")
	assert.Contains(t, columnNames(t, db, "products"), "custom_fields")

	t.Run("second run is a no-op", func(t *testing.T) {
		applied, err := m.Up(ctx)
		require.NoError(t, err)
		assert.Empty(t, applied)
	})
}

func TestMigrator_Up_LegacyStoreWithoutMarker(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	// a device that added the columns by hand before versioning existed
	require.NoError(t, db.Exec(`CREATE TABLE clients (
		id TEXT PRIMARY KEY, name TEXT, company_name TEXT, email TEXT, phone TEXT,
		address TEXT, city TEXT, state TEXT, client_number TEXT, is_active INTEGER DEFAULT 1,
		synced_at TEXT, price_type TEXT, assigned_vendor_id TEXT)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO clients (id, name, price_type) VALUES ('c-1', 'Ana', 'interior')`).Error)

	m, err := New(db, zap.NewNop())
	require.NoError(t, err)

	applied, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2, 3}, applied)

	var priceType string
	require.NoError(t, db.Raw(`SELECT price_type FROM clients WHERE id = 'c-1'`).Row().Scan(&priceType))
	assert.Equal(t, "interior", priceType)
	assert.Contains(t, columnNames(t, db, "clients"), "zip_code")
}

func TestMigrator_Up_StopsOnRealFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectQuery(`select sqlite_version\(\)`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("3.45.1"))

	db, err := gorm.Open(sqlite.New(sqlite.Config{Conn: sqlDB}), &gorm.Config{
		Logger:               gormlogger.Discard,
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	src := fstest.MapFS{
		"deltas/0001_a.up.sql": {Data: []byte("CREATE TABLE a (id TEXT);")},
		"deltas/0002_b.up.sql": {Data: []byte("-- two columns\nALTER TABLE a ADD COLUMN x TEXT;\nALTER TABLE a ADD COLUMN y TEXT;\n")},
		"deltas/0003_c.up.sql": {Data: []byte("CREATE TABLE c (id TEXT);")},
	}
	m, err := New(db, zap.NewNop(), WithSource(src, "deltas"))
	require.NoError(t, err)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_version`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM schema_version`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))
	mock.ExpectExec(`ALTER TABLE a ADD COLUMN x TEXT`).
		WillReturnError(errors.New("duplicate column name: x"))
	mock.ExpectExec(`ALTER TABLE a ADD COLUMN y TEXT`).
		WillReturnError(errors.New("disk I/O error"))

	applied, err := m.Up(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration 2")
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.Empty(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrator_Up_SkipsAppliedVersions(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectQuery(`select sqlite_version\(\)`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("3.45.1"))
	db, err := gorm.Open(sqlite.New(sqlite.Config{Conn: sqlDB}), &gorm.Config{
		Logger:               gormlogger.Discard,
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	src := fstest.MapFS{
		"deltas/0001_a.up.sql": {Data: []byte("CREATE TABLE a (id TEXT);")},
		"deltas/0002_b.up.sql": {Data: []byte("CREATE TABLE b (id TEXT);")},
	}
	m, err := New(db, zap.NewNop(), WithSource(src, "deltas"))
	require.NoError(t, err)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_version`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM schema_version`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))
	mock.ExpectExec(`CREATE TABLE b`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO schema_version`).
		WithArgs(2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := m.Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint{2}, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("-- header\nCREATE TABLE a (id TEXT);\n\n  -- note\nCREATE INDEX i ON a(id);\n")
	assert.Equal(t, []string{"CREATE TABLE a (id TEXT)", "CREATE INDEX i ON a(id)"}, stmts)
	assert.Empty(t, splitStatements("-- only comments\n"))
}

func TestIsAlreadyApplied(t *testing.T) {
	assert.True(t, isAlreadyApplied(errors.New("duplicate column name: price_type")))
	assert.True(t, isAlreadyApplied(errors.New("table products already exists")))
	assert.True(t, isAlreadyApplied(errors.New("index idx_x already exists")))
	assert.False(t, isAlreadyApplied(errors.New("no such table: products")))
}
