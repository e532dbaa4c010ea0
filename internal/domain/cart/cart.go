package cart

import (
	"github.com/fieldsales/vendorsync/internal/domain/catalog"
	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/domain/shared/valueobject"
)

// ProductSnapshot is the product data a cart line carries. It is captured
// when the line is added and serialized with the cart.
type ProductSnapshot struct {
	ID              string            `json:"id"`
	SKU             string            `json:"sku"`
	Name            string            `json:"name"`
	Image           string            `json:"image,omitempty"`
	Price           valueobject.Money `json:"price"`
	MinimumQuantity int               `json:"minimumQuantity"`
}

// SnapshotOf captures a product at the price of the given client tier
func SnapshotOf(p *catalog.Product, priceType catalog.PriceType) ProductSnapshot {
	price, minimum := p.PriceFor(priceType)
	return ProductSnapshot{
		ID:              p.ID,
		SKU:             p.SKU,
		Name:            p.Name,
		Image:           p.Image,
		Price:           price,
		MinimumQuantity: minimum,
	}
}

// Item is one cart line
type Item struct {
	Product  ProductSnapshot `json:"product"`
	Quantity int             `json:"quantity"`
}

// LineTotal returns unit price times quantity
func (i Item) LineTotal() valueobject.Money {
	return i.Product.Price.MultiplyByInt(int64(i.Quantity))
}

// Totals is the computed cart summary
type Totals struct {
	Subtotal valueobject.Money `json:"subtotal"`
	Tax      valueobject.Money `json:"tax"`
	Total    valueobject.Money `json:"total"`
}

// TaxPolicy computes tax for a subtotal
type TaxPolicy interface {
	Tax(subtotal valueobject.Money) valueobject.Money
}

// NoTax is the current policy: prices already include everything
type NoTax struct{}

// Tax always returns zero
func (NoTax) Tax(valueobject.Money) valueobject.Money {
	return valueobject.Zero()
}

// Cart is an ordered list of lines keyed by product ID. The zero value is
// an empty cart ready to use.
type Cart struct {
	Items []Item `json:"items"`
}

// Add merges qty into the existing line for the product, or appends a new
// line. The snapshot of an existing line is kept.
func (c *Cart) Add(product ProductSnapshot, qty int) error {
	if qty <= 0 {
		return shared.ErrInvalidQuantity
	}
	if product.ID == "" {
		return shared.NewDomainError("INVALID_PRODUCT_ID", "Product ID cannot be empty")
	}
	if i := c.indexOf(product.ID); i >= 0 {
		c.Items[i].Quantity += qty
		return nil
	}
	c.Items = append(c.Items, Item{Product: product, Quantity: qty})
	return nil
}

// SetQuantity overwrites a line's quantity; qty <= 0 removes the line.
// Unknown products are ignored.
func (c *Cart) SetQuantity(productID string, qty int) {
	i := c.indexOf(productID)
	if i < 0 {
		return
	}
	if qty <= 0 {
		c.removeAt(i)
		return
	}
	c.Items[i].Quantity = qty
}

// Remove drops the line for the product if present
func (c *Cart) Remove(productID string) {
	if i := c.indexOf(productID); i >= 0 {
		c.removeAt(i)
	}
}

// Clear empties the cart
func (c *Cart) Clear() {
	c.Items = nil
}

// Find returns the line for a product
func (c *Cart) Find(productID string) (Item, bool) {
	if i := c.indexOf(productID); i >= 0 {
		return c.Items[i], true
	}
	return Item{}, false
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ItemCount returns the number of units across all lines
func (c *Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// Totals computes subtotal, tax and total in decimal arithmetic
func (c *Cart) Totals(policy TaxPolicy) Totals {
	if policy == nil {
		policy = NoTax{}
	}
	lines := make([]valueobject.Money, len(c.Items))
	for i, item := range c.Items {
		lines[i] = item.LineTotal()
	}
	subtotal := valueobject.Sum(lines...)
	tax := policy.Tax(subtotal)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

func (c *Cart) indexOf(productID string) int {
	for i, item := range c.Items {
		if item.Product.ID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(i int) {
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	if len(c.Items) == 0 {
		c.Items = nil
	}
}
