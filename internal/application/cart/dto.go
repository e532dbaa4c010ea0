package cart

import (
	"github.com/fieldsales/vendorsync/internal/domain/cart"
	"github.com/fieldsales/vendorsync/internal/domain/shared/valueobject"
)

// AddItemInput contains the input for adding a product to the cart
type AddItemInput struct {
	ProductID string
	Quantity  int
	// ClientID selects the price tier; empty uses the default tier
	ClientID string
}

// ItemResponse is one cart line as shown to the vendor
type ItemResponse struct {
	ProductID string            `json:"productId"`
	SKU       string            `json:"sku"`
	Name      string            `json:"name"`
	Image     string            `json:"image,omitempty"`
	UnitPrice valueobject.Money `json:"unitPrice"`
	Quantity  int               `json:"quantity"`
	LineTotal valueobject.Money `json:"lineTotal"`
}

// CartResponse is the cart with its computed totals
type CartResponse struct {
	Items     []ItemResponse    `json:"items"`
	ItemCount int               `json:"itemCount"`
	Subtotal  valueobject.Money `json:"subtotal"`
	Tax       valueobject.Money `json:"tax"`
	Total     valueobject.Money `json:"total"`
}

// ToCartResponse converts a domain cart
func ToCartResponse(c *cart.Cart, policy cart.TaxPolicy) CartResponse {
	totals := c.Totals(policy)
	items := make([]ItemResponse, len(c.Items))
	for i, item := range c.Items {
		items[i] = ItemResponse{
			ProductID: item.Product.ID,
			SKU:       item.Product.SKU,
			Name:      item.Product.Name,
			Image:     item.Product.Image,
			UnitPrice: item.Product.Price,
			Quantity:  item.Quantity,
			LineTotal: item.LineTotal(),
		}
	}
	return CartResponse{
		Items:     items,
		ItemCount: c.ItemCount(),
		Subtotal:  totals.Subtotal,
		Tax:       totals.Tax,
		Total:     totals.Total,
	}
}
