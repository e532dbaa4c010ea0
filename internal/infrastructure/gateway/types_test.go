package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/fieldsales/vendorsync/internal/domain/catalog"
	"github.com/fieldsales/vendorsync/internal/domain/shared/valueobject"
	"github.com/fieldsales/vendorsync/internal/domain/trade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexibleID(t *testing.T) {
	tests := []struct {
		raw  string
		want FlexibleID
	}{
		{`"p-1"`, "p-1"},
		{`42`, "42"},
		{`42.0e0`, "42.0e0"},
		{`null`, ""},
	}
	for _, tt := range tests {
		var id FlexibleID
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &id), tt.raw)
		assert.Equal(t, tt.want, id, tt.raw)
	}

	var id FlexibleID
	assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &id))
}

func TestCatalogResponse_Decode(t *testing.T) {
	payload := `{
		"success": true,
		"timestamp": "2024-03-01T10:00:00.000Z",
		"totalProducts": 2,
		"products": [
			{"id": 17, "sku": "JAB-1", "name": "Jabón", "price": "12.5", "basePrice": 10,
			 "stock": 3, "minimumQuantity": 6, "image": "https://img/j.png",
			 "customFields": {"color": "azul"},
			 "pricingByType": [
				{"priceType": "Interior", "price": 11, "minimumQuantity": 12},
				{"priceType": "mayoreo", "price": 9}
			 ]},
			{"id": "p-2", "name": "Cloro", "price": null, "isActive": false}
		]
	}`
	var resp CatalogResponse
	require.NoError(t, json.Unmarshal([]byte(payload), &resp))
	require.Len(t, resp.Products, 2)

	syncedAt := time.Date(2024, 3, 1, 10, 0, 1, 0, time.UTC)
	p := resp.Products[0].ToDomain(syncedAt)
	assert.Equal(t, "17", p.ID)
	assert.Equal(t, "12.50", p.Price.StringFixed(2))
	assert.Equal(t, "10.00", p.BasePrice.StringFixed(2))
	assert.True(t, p.IsActive)
	assert.Equal(t, syncedAt, p.SyncedAt)
	assert.Equal(t, "azul", p.CustomFields["color"])
	require.Len(t, p.Pricing, 1)
	assert.Equal(t, catalog.PriceTypeInterior, p.Pricing[0].PriceType)
	assert.Equal(t, "17", p.Pricing[0].ProductID)
	assert.Equal(t, 12, p.Pricing[0].MinimumQuantity)

	p2 := resp.Products[1].ToDomain(syncedAt)
	assert.False(t, p2.IsActive)
	assert.True(t, p2.Price.IsZero())
}

func TestWireClient_ToDomain(t *testing.T) {
	var c WireClient
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": 5, "name": "Ana", "companyName": "Zapatería Ana",
		"priceType": "ESPECIAL", "assignedVendorId": 9,
		"createdAt": "2024-01-02T03:04:05.000Z"
	}`), &c))

	client := c.ToDomain(time.Unix(0, 0).UTC())
	assert.Equal(t, "5", client.ID)
	assert.Equal(t, "9", client.AssignedVendorID)
	assert.Equal(t, catalog.PriceTypeEspecial, client.PriceType)
	assert.True(t, client.IsActive)
	assert.Equal(t, 2024, client.CreatedAt.Year())
	assert.True(t, client.UpdatedAt.IsZero())

	c.PriceType = "desconocido"
	assert.Equal(t, catalog.DefaultPriceType, c.ToDomain(time.Now()).PriceType)
}

func TestWireHistoryOrder_ToDomain(t *testing.T) {
	var o WireHistoryOrder
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": 100, "orderNumber": "PED-100", "status": "confirmado",
		"subtotal": "30.00", "tax": 0, "total": 30,
		"items": [
			{"id": 1, "productId": 17, "quantity": 2, "pricePerUnit": "10", "subtotal": "20"},
			{"productId": "p-2", "quantity": 1, "pricePerUnit": 10, "subtotal": 10}
		]
	}`), &o))

	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	h := o.ToDomain(at)
	assert.Equal(t, "100", h.ID)
	assert.Equal(t, at, h.SyncedAt)
	require.Len(t, h.Items, 2)
	assert.Equal(t, "1", h.Items[0].ID)
	assert.Equal(t, "100-2", h.Items[1].ID)
	for _, item := range h.Items {
		assert.Equal(t, "100", item.OrderID)
	}
}

func TestOrderHistoryResponse_OK(t *testing.T) {
	var resp OrderHistoryResponse
	require.NoError(t, json.Unmarshal([]byte(`{"orders":[]}`), &resp))
	assert.True(t, resp.OK())

	require.NoError(t, json.Unmarshal([]byte(`{"success":false}`), &resp))
	assert.False(t, resp.OK())
}

func TestUploadOrderFrom(t *testing.T) {
	order, err := trade.NewPendingOrder("c-1", "entregar temprano", []trade.LineDraft{
		{ProductID: "p-1", ProductName: "Jabón", Quantity: 2, PricePerUnit: valueobject.MustMoney("3.50")},
	}, valueobject.Zero(), time.Date(2024, 3, 1, 10, 0, 0, 123e6, time.UTC))
	require.NoError(t, err)

	u := UploadOrderFrom(*order)
	assert.Equal(t, "c-1", u.ClientID)
	assert.Equal(t, "entregar temprano", u.CustomerNote)
	assert.Equal(t, order.CreatedAt, u.CreatedAtOffline)
	require.Len(t, u.Items, 1)
	assert.Equal(t, 2, u.Items[0].Quantity)

	b, err := json.Marshal(u)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"createdAtOffline":"2024-03-01T10:00:00.123Z"`)
	assert.Contains(t, string(b), `"pricePerUnit":"3.50"`)
}

func TestUploadOrdersResponse_Acknowledged(t *testing.T) {
	var resp UploadOrdersResponse
	require.NoError(t, json.Unmarshal([]byte(`{
		"success": true, "uploaded": 2, "failed": 1,
		"results": [
			{"success": true, "orderId": 501, "createdAtOffline": "a"},
			{"success": false, "createdAtOffline": "b"},
			{"success": true, "createdAtOffline": ""},
			{"success": true, "orderId": "502", "createdAtOffline": "c"}
		],
		"errors": [{"success": false, "error": "cliente inválido", "createdAtOffline": "b"}]
	}`), &resp))

	assert.Equal(t, []string{"a", "c"}, resp.Acknowledged())
	assert.Equal(t, FlexibleID("501"), resp.Results[0].OrderID)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "cliente inválido", resp.Errors[0].Error)
}
