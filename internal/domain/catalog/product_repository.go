package catalog

import (
	"context"

	"github.com/fieldsales/vendorsync/internal/domain/shared"
)

// ProductFilter narrows catalog listings
type ProductFilter struct {
	shared.Filter
	Category   string
	ActiveOnly bool
}

// ProductRepository defines the interface for local product persistence
type ProductRepository interface {
	// Upsert writes the full product row and replaces its tier prices
	Upsert(ctx context.Context, product *Product) error

	// FindByID finds a product by its ID, including tier prices
	FindByID(ctx context.Context, id string) (*Product, error)

	// FindAll lists products matching the filter
	FindAll(ctx context.Context, filter ProductFilter) ([]Product, error)

	// Categories returns the distinct non-empty categories
	Categories(ctx context.Context) ([]string, error)

	// ImageURLs returns every non-empty image reference
	ImageURLs(ctx context.Context) ([]string, error)

	// Count returns the number of stored products
	Count(ctx context.Context) (int64, error)
}
