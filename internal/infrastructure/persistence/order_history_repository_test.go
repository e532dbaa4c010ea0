package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/domain/shared/valueobject"
	"github.com/fieldsales/vendorsync/internal/domain/trade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func historyOrder(id string, created time.Time, qty int) *trade.OrderHistory {
	o := &trade.OrderHistory{
		BaseEntity:      shared.BaseEntity{ID: id},
		AuditTimestamps: shared.AuditTimestamps{CreatedAt: created, UpdatedAt: created},
		OrderNumber:     "PED-" + id,
		Status:          "pending",
		Subtotal:        valueobject.MustMoney("20"),
		Tax:             valueobject.Zero(),
		Total:           valueobject.MustMoney("20"),
		Items: []trade.OrderHistoryItem{{
			BaseEntity:   shared.BaseEntity{ID: id + "-1"},
			ProductID:    "p-1",
			ProductName:  "Taza",
			Quantity:     qty,
			PricePerUnit: valueobject.MustMoney("10"),
			Subtotal:     valueobject.MustMoney("20"),
		}},
	}
	o.Stamp(syncTime)
	return o
}

func TestGormOrderHistoryRepository(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := store.OrderHistory

	require.NoError(t, repo.Upsert(ctx, historyOrder("h-1", syncTime.Add(-48*time.Hour), 2)))
	require.NoError(t, repo.Upsert(ctx, historyOrder("h-2", syncTime.Add(-24*time.Hour), 2)))

	t.Run("upserting again replaces rows without duplicates", func(t *testing.T) {
		updated := historyOrder("h-1", syncTime.Add(-48*time.Hour), 5)
		updated.Status = "delivered"
		require.NoError(t, repo.Upsert(ctx, updated))

		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		got, err := repo.FindByID(ctx, "h-1")
		require.NoError(t, err)
		assert.Equal(t, "delivered", got.Status)
		require.Len(t, got.Items, 1)
		assert.Equal(t, 5, got.Items[0].Quantity)
		assert.Equal(t, "h-1", got.Items[0].OrderID)
	})

	list, err := repo.FindAll(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "h-2", list[0].ID)

	limited, err := repo.FindAll(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
