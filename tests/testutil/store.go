package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fieldsales/vendorsync/internal/infrastructure/config"
	"github.com/fieldsales/vendorsync/internal/infrastructure/persistence"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// NewStore opens a migrated SQLite store in a temporary directory
func NewStore(t *testing.T) *persistence.Store {
	t.Helper()
	cfg := config.StoreConfig{
		Path:          filepath.Join(t.TempDir(), "vendedor_offline.db"),
		BusyTimeoutMS: 1000,
		LogLevel:      "silent",
	}
	db, err := persistence.Open(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.EnsureSchema(context.Background()))
	return persistence.NewStore(db, zap.NewNop())
}
