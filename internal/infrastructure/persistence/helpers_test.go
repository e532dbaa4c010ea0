package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fieldsales/vendorsync/internal/domain/catalog"
	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/domain/shared/valueobject"
	"github.com/fieldsales/vendorsync/internal/infrastructure/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.StoreConfig{
		Path:          filepath.Join(t.TempDir(), "vendedor_offline.db"),
		BusyTimeoutMS: 1000,
		LogLevel:      "silent",
	}
	db, err := Open(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.EnsureSchema(context.Background()))
	return NewStore(db, zap.NewNop())
}

var syncTime = time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)

func sampleProduct(id, sku, name string) *catalog.Product {
	return &catalog.Product{
		BaseEntity:      shared.BaseEntity{ID: id},
		SyncStamp:       shared.SyncStamp{SyncedAt: syncTime},
		SKU:             sku,
		Name:            name,
		Description:     "Descripción de " + name,
		Category:        "Hogar",
		Image:           "https://cdn.example.com/" + sku + ".jpg",
		BasePrice:       valueobject.MustMoney("10.50"),
		Price:           valueobject.MustMoney("12.00"),
		Stock:           7,
		MinimumQuantity: 1,
		IsActive:        true,
		UpdatedAt:       syncTime.Add(-time.Hour),
	}
}
