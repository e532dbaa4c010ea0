package catalog

import (
	"strings"
	"time"

	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/domain/shared/valueobject"
)

// PriceType is the client pricing tier a product price applies to
type PriceType string

const (
	PriceTypeCiudad   PriceType = "ciudad"
	PriceTypeInterior PriceType = "interior"
	PriceTypeEspecial PriceType = "especial"
)

// DefaultPriceType is assumed for clients without an explicit tier
const DefaultPriceType = PriceTypeCiudad

// ParsePriceType normalizes a tier name; unknown or empty values fall back
// to DefaultPriceType.
func ParsePriceType(s string) PriceType {
	switch PriceType(strings.ToLower(strings.TrimSpace(s))) {
	case PriceTypeInterior:
		return PriceTypeInterior
	case PriceTypeEspecial:
		return PriceTypeEspecial
	default:
		return DefaultPriceType
	}
}

// IsValid reports whether the tier is one of the known values
func (p PriceType) IsValid() bool {
	switch p {
	case PriceTypeCiudad, PriceTypeInterior, PriceTypeEspecial:
		return true
	}
	return false
}

// Product is the local mirror of a catalog entry. Price and stock are
// snapshots taken at sync time and go stale between syncs.
type Product struct {
	shared.BaseEntity
	shared.SyncStamp
	SKU             string
	Name            string
	Description     string
	Category        string
	Subcategory     string
	Image           string
	BasePrice       valueobject.Money
	Price           valueobject.Money
	Stock           int
	MinimumQuantity int
	IsActive        bool
	CustomFields    map[string]any
	UpdatedAt       time.Time
	Pricing         []PricingByType
}

// PricingByType is a per-tier price override for a product
type PricingByType struct {
	ProductID       string
	PriceType       PriceType
	Price           valueobject.Money
	MinimumQuantity int
}

// Validate checks the fields a stored product cannot do without. Empty
// names and SKUs are stored as sent; a repeated tier keeps its last entry.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return shared.NewDomainError("INVALID_PRODUCT_ID", "Product ID cannot be empty")
	}
	if p.Price.IsNegative() || p.BasePrice.IsNegative() {
		return shared.NewDomainError("INVALID_PRICE", "Product price cannot be negative")
	}
	for _, tier := range p.Pricing {
		if !tier.PriceType.IsValid() {
			return shared.NewDomainError("INVALID_PRICE_TYPE", "Unknown price type: "+string(tier.PriceType))
		}
	}
	return nil
}

// EffectiveMinimum returns the minimum order quantity, never less than one
func (p *Product) EffectiveMinimum() int {
	if p.MinimumQuantity < 1 {
		return 1
	}
	return p.MinimumQuantity
}

// PriceFor resolves the unit price and minimum quantity for a client tier.
// Products without a tier override use the list price.
func (p *Product) PriceFor(priceType PriceType) (valueobject.Money, int) {
	for _, tier := range p.Pricing {
		if tier.PriceType == priceType {
			minimum := tier.MinimumQuantity
			if minimum < 1 {
				minimum = p.EffectiveMinimum()
			}
			return tier.Price, minimum
		}
	}
	return p.Price, p.EffectiveMinimum()
}

// HasImage reports whether the product references a remote image
func (p *Product) HasImage() bool {
	return strings.TrimSpace(p.Image) != ""
}
