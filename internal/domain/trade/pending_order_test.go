package trade

import (
	"strings"
	"testing"
	"time"

	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPendingOrder(t *testing.T) {
	createdAt := time.Date(2024, 3, 1, 10, 15, 30, 123_000_000, time.UTC)

	t.Run("computes totals and snapshots lines", func(t *testing.T) {
		order, err := NewPendingOrder("c-1", " entregar temprano ", []LineDraft{
			{ProductID: "p-1", ProductName: "Taza", Quantity: 2, PricePerUnit: valueobject.MustMoney("3.33")},
			{ProductID: "p-2", ProductName: "Plato", Quantity: 1, PricePerUnit: valueobject.MustMoney("3.34")},
		}, valueobject.Zero(), createdAt)
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(order.ID, "order_"))
		assert.Equal(t, "entregar temprano", order.CustomerNote)
		assert.Equal(t, "2024-03-01T10:15:30.123Z", order.CreatedAt)
		assert.Equal(t, "10.00", order.Subtotal.String())
		assert.Equal(t, "0.00", order.Tax.String())
		assert.Equal(t, "10.00", order.Total.String())
		assert.False(t, order.Synced)
		require.Len(t, order.Items, 2)
		for _, item := range order.Items {
			assert.Equal(t, order.ID, item.OrderID)
			assert.NotEmpty(t, item.ID)
		}
		assert.Equal(t, 3, order.ItemCount())
	})

	t.Run("tax is added on top of subtotal", func(t *testing.T) {
		order, err := NewPendingOrder("", "", []LineDraft{
			{ProductID: "p-1", Quantity: 1, PricePerUnit: valueobject.MustMoney("100")},
		}, valueobject.MustMoney("16"), createdAt)
		require.NoError(t, err)
		assert.Equal(t, "116.00", order.Total.String())
	})

	t.Run("rejects empty order", func(t *testing.T) {
		_, err := NewPendingOrder("c-1", "", nil, valueobject.Zero(), createdAt)
		assert.ErrorIs(t, err, shared.ErrEmptyCart)
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		_, err := NewPendingOrder("c-1", "", []LineDraft{
			{ProductID: "p-1", Quantity: 0, PricePerUnit: valueobject.MustMoney("1")},
		}, valueobject.Zero(), createdAt)
		assert.ErrorIs(t, err, shared.ErrInvalidQuantity)
	})

	t.Run("ids are unique", func(t *testing.T) {
		seen := map[string]bool{}
		for range 50 {
			id := NewPendingOrderID()
			assert.False(t, seen[id])
			seen[id] = true
		}
	})
}

func TestPendingOrder_MarkSynced(t *testing.T) {
	o := &PendingOrder{}
	o.MarkSynced()
	o.MarkSynced()
	assert.True(t, o.Synced)
}
