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

func newOrder(t *testing.T, at time.Time, lines ...trade.LineDraft) *trade.PendingOrder {
	t.Helper()
	if len(lines) == 0 {
		lines = []trade.LineDraft{
			{ProductID: "p-1", ProductName: "Taza", Quantity: 2, PricePerUnit: valueobject.MustMoney("3.33")},
			{ProductID: "p-2", ProductName: "Plato", Quantity: 1, PricePerUnit: valueobject.MustMoney("3.34")},
		}
	}
	o, err := trade.NewPendingOrder("c-1", "nota", lines, valueobject.Zero(), at)
	require.NoError(t, err)
	return o
}

func TestGormPendingOrderRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := store.PendingOrders

	first := newOrder(t, syncTime)
	second := newOrder(t, syncTime.Add(time.Minute))
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, first))

	unsynced, err := repo.FindUnsynced(ctx)
	require.NoError(t, err)
	require.Len(t, unsynced, 2)
	assert.Equal(t, first.ID, unsynced[0].ID, "oldest first")
	require.Len(t, unsynced[0].Items, 2)
	assert.Equal(t, "Taza", unsynced[0].Items[0].ProductName)
	assert.Equal(t, "3.33", unsynced[0].Items[0].PricePerUnit.String())
	assert.Equal(t, "10.00", unsynced[0].Total.String())

	flipped, err := repo.MarkSyncedByCreatedAt(ctx, first.CreatedAt)
	require.NoError(t, err)
	assert.True(t, flipped)

	t.Run("already synced rows are not flipped again", func(t *testing.T) {
		flipped, err := repo.MarkSyncedByCreatedAt(ctx, first.CreatedAt)
		require.NoError(t, err)
		assert.False(t, flipped)
	})

	t.Run("unknown key changes nothing", func(t *testing.T) {
		flipped, err := repo.MarkSyncedByCreatedAt(ctx, "2000-01-01T00:00:00.000Z")
		require.NoError(t, err)
		assert.False(t, flipped)
	})

	n, err := repo.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")
	assert.True(t, all[1].Synced)

	got, err := repo.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, got.Synced)
	assert.Len(t, got.Items, 2)
}

func TestGormPendingOrderRepository_CreatedAtIsUnique(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.PendingOrders.Create(ctx, newOrder(t, syncTime)))
	assert.Error(t, store.PendingOrders.Create(ctx, newOrder(t, syncTime)))

	n, err := store.PendingOrders.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "failed insert leaves no partial order")
}

func TestGormPendingOrderRepository_LatestCreatedAt(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := store.PendingOrders

	latest, err := repo.LatestCreatedAt(ctx)
	require.NoError(t, err)
	assert.Empty(t, latest)

	newest := newOrder(t, syncTime.Add(time.Hour))
	require.NoError(t, repo.Create(ctx, newest))
	require.NoError(t, repo.Create(ctx, newOrder(t, syncTime)))
	_, err = repo.MarkSyncedByCreatedAt(ctx, newest.CreatedAt)
	require.NoError(t, err)

	latest, err = repo.LatestCreatedAt(ctx)
	require.NoError(t, err)
	assert.Equal(t, newest.CreatedAt, latest, "synced orders still count")
}

func TestGormPendingOrderRepository_Delete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := store.PendingOrders

	o := newOrder(t, syncTime)
	require.NoError(t, repo.Create(ctx, o))
	require.NoError(t, repo.Delete(ctx, o.ID))

	var items int64
	require.NoError(t, store.DB.Table("pending_order_items").Where("order_id = ?", o.ID).Count(&items).Error)
	assert.Zero(t, items)

	assert.ErrorIs(t, repo.Delete(ctx, o.ID), shared.ErrNotFound)
}

func TestGormPendingOrderRepository_ForeignKeyCascade(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	o := newOrder(t, syncTime)
	require.NoError(t, store.PendingOrders.Create(ctx, o))
	require.NoError(t, store.DB.Exec("DELETE FROM pending_orders WHERE id = ?", o.ID).Error)

	var items int64
	require.NoError(t, store.DB.Table("pending_order_items").Count(&items).Error)
	assert.Zero(t, items)
}

func TestGormPendingOrderRepository_RejectsEmptyOrder(t *testing.T) {
	store := newTestStore(t)
	err := store.PendingOrders.Create(context.Background(), &trade.PendingOrder{BaseEntity: shared.BaseEntity{ID: "order_x"}})
	assert.ErrorIs(t, err, shared.ErrEmptyCart)
}
