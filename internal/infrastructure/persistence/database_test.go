package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/domain/shared/valueobject"
	"github.com/fieldsales/vendorsync/internal/domain/trade"
	"github.com/fieldsales/vendorsync/internal/infrastructure/config"
	"github.com/fieldsales/vendorsync/internal/infrastructure/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpen_EnsureSchemaIsRepeatable(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{Path: filepath.Join(t.TempDir(), "a.db"), BusyTimeoutMS: 500}

	db, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.EnsureSchema(ctx))
	require.NoError(t, db.EnsureSchema(ctx))

	version, err := db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, migration.CurrentVersion, version)

	require.NoError(t, db.Ping(ctx))
	stats, err := db.Stats()
	require.NoError(t, err)
	assert.LessOrEqual(t, stats.OpenConnections, 1)
}

func TestOpen_InMemory(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, config.StoreConfig{Path: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.EnsureSchema(ctx))
}

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(config.StoreConfig{Path: "/data/v.db", BusyTimeoutMS: 5000})
	assert.Equal(t, "file:/data/v.db?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL", dsn)
}

func TestDatabase_Reset(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Products.Upsert(ctx, sampleProduct("p-1", "SKU-1", "Taza")))
	order, err := trade.NewPendingOrder("", "", []trade.LineDraft{
		{ProductID: "p-1", ProductName: "Taza", Quantity: 1, PricePerUnit: valueobject.MustMoney("1")},
	}, valueobject.Zero(), syncTime)
	require.NoError(t, err)
	require.NoError(t, store.PendingOrders.Create(ctx, order))
	require.NoError(t, store.KV.Set(ctx, shared.KeyVendorToken, "tok"))

	require.NoError(t, store.Reset(ctx))

	n, err := store.Products.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = store.PendingOrders.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, ok, err := store.KV.Get(ctx, shared.KeyVendorToken)
	require.NoError(t, err)
	assert.False(t, ok)

	// the schema survives
	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, migration.CurrentVersion, version)
}
