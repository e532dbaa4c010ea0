package cart

import (
	"fmt"
	"testing"

	"github.com/fieldsales/vendorsync/internal/domain/catalog"
	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func snapshot(id, price string) ProductSnapshot {
	return ProductSnapshot{ID: id, SKU: "SKU-" + id, Name: "Producto " + id, Price: valueobject.MustMoney(price), MinimumQuantity: 1}
}

func TestCart_Add(t *testing.T) {
	t.Run("appends new products in order", func(t *testing.T) {
		var c Cart
		require.NoError(t, c.Add(snapshot("a", "1.00"), 1))
		require.NoError(t, c.Add(snapshot("b", "2.00"), 3))
		require.Len(t, c.Items, 2)
		assert.Equal(t, "a", c.Items[0].Product.ID)
		assert.Equal(t, 4, c.ItemCount())
	})

	t.Run("merges existing product", func(t *testing.T) {
		var c Cart
		require.NoError(t, c.Add(snapshot("a", "1.00"), 2))
		require.NoError(t, c.Add(snapshot("a", "9.99"), 5))
		require.Len(t, c.Items, 1)
		assert.Equal(t, 7, c.Items[0].Quantity)
		assert.Equal(t, "1.00", c.Items[0].Product.Price.String(), "first snapshot wins")
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		var c Cart
		assert.ErrorIs(t, c.Add(snapshot("a", "1.00"), 0), shared.ErrInvalidQuantity)
		assert.True(t, c.IsEmpty())
	})
}

func TestCart_SetQuantityAndRemove(t *testing.T) {
	var c Cart
	require.NoError(t, c.Add(snapshot("a", "1.00"), 2))
	require.NoError(t, c.Add(snapshot("b", "1.00"), 2))

	c.SetQuantity("a", 10)
	item, ok := c.Find("a")
	require.True(t, ok)
	assert.Equal(t, 10, item.Quantity)

	c.SetQuantity("missing", 4)
	assert.Len(t, c.Items, 2)

	c.SetQuantity("a", 0)
	_, ok = c.Find("a")
	assert.False(t, ok)

	c.SetQuantity("b", -3)
	assert.True(t, c.IsEmpty())

	require.NoError(t, c.Add(snapshot("c", "1.00"), 1))
	c.Remove("c")
	c.Remove("c")
	assert.True(t, c.IsEmpty())
}

func TestCart_Totals(t *testing.T) {
	t.Run("fractional prices sum exactly", func(t *testing.T) {
		var c Cart
		require.NoError(t, c.Add(snapshot("a", "3.33"), 1))
		require.NoError(t, c.Add(snapshot("b", "3.33"), 1))
		require.NoError(t, c.Add(snapshot("c", "3.34"), 1))

		totals := c.Totals(NoTax{})
		assert.Equal(t, "10.00", totals.Subtotal.String())
		assert.Equal(t, "0.00", totals.Tax.String())
		assert.Equal(t, "10.00", totals.Total.String())
	})

	t.Run("nil policy means no tax", func(t *testing.T) {
		var c Cart
		require.NoError(t, c.Add(snapshot("a", "0.10"), 3))
		assert.Equal(t, "0.30", c.Totals(nil).Total.String())
	})

	t.Run("tax stays separate from subtotal", func(t *testing.T) {
		var c Cart
		require.NoError(t, c.Add(snapshot("a", "50.00"), 2))
		totals := c.Totals(flatTax("7.50"))
		assert.Equal(t, "100.00", totals.Subtotal.String())
		assert.Equal(t, "7.50", totals.Tax.String())
		assert.Equal(t, "107.50", totals.Total.String())
	})
}

type flatTax string

func (f flatTax) Tax(valueobject.Money) valueobject.Money { return valueobject.MustMoney(string(f)) }

func TestSnapshotOf(t *testing.T) {
	p := &catalog.Product{
		SKU:             "S",
		Name:            "Taza",
		Price:           valueobject.MustMoney("10"),
		MinimumQuantity: 3,
		Pricing: []catalog.PricingByType{
			{PriceType: catalog.PriceTypeInterior, Price: valueobject.MustMoney("12"), MinimumQuantity: 6},
		},
	}
	p.ID = "p-1"

	s := SnapshotOf(p, catalog.PriceTypeInterior)
	assert.Equal(t, "12.00", s.Price.String())
	assert.Equal(t, 6, s.MinimumQuantity)

	s = SnapshotOf(p, catalog.PriceTypeCiudad)
	assert.Equal(t, "10.00", s.Price.String())
	assert.Equal(t, 3, s.MinimumQuantity)
}

func TestCart_MergeLaw(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		q1 := rapid.IntRange(1, 500).Draw(t, "q1")
		q2 := rapid.IntRange(1, 500).Draw(t, "q2")
		others := rapid.IntRange(0, 5).Draw(t, "others")
		p := snapshot("target", "1.99")

		var split, single Cart
		for i := range others {
			other := snapshot(fmt.Sprintf("o%d", i), "0.50")
			_ = split.Add(other, i+1)
			_ = single.Add(other, i+1)
		}
		if err := split.Add(p, q1); err != nil {
			t.Fatal(err)
		}
		if err := split.Add(p, q2); err != nil {
			t.Fatal(err)
		}
		if err := single.Add(p, q1+q2); err != nil {
			t.Fatal(err)
		}

		if len(split.Items) != len(single.Items) {
			t.Fatalf("line count %d != %d", len(split.Items), len(single.Items))
		}
		for i := range split.Items {
			if split.Items[i] != single.Items[i] {
				t.Fatalf("line %d differs: %+v vs %+v", i, split.Items[i], single.Items[i])
			}
		}
	})
}

func TestCart_TotalsEqualSumOfLines(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(3, 20).Draw(t, "lines")
		var c Cart
		var expectedCents int64
		for i := range n {
			cents := rapid.Int64Range(1, 99_999).Draw(t, fmt.Sprintf("price%d", i))
			qty := rapid.IntRange(1, 50).Draw(t, fmt.Sprintf("qty%d", i))
			expectedCents += cents * int64(qty)
			p := ProductSnapshot{ID: fmt.Sprintf("p%d", i), Price: valueobject.NewMoney(decimal.New(cents, -2))}
			if err := c.Add(p, qty); err != nil {
				t.Fatal(err)
			}
		}
		got := c.Totals(NoTax{}).Subtotal.Amount()
		if !got.Equal(decimal.New(expectedCents, -2)) {
			t.Fatalf("subtotal %s != %d cents", got, expectedCents)
		}
	})
}
