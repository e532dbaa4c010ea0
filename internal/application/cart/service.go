package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fieldsales/vendorsync/internal/domain/cart"
	"github.com/fieldsales/vendorsync/internal/domain/catalog"
	"github.com/fieldsales/vendorsync/internal/domain/partner"
	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"go.uber.org/zap"
)

// ErrProductUnavailable is returned when adding an inactive product
var ErrProductUnavailable = shared.NewDomainError("PRODUCT_UNAVAILABLE", "El producto no está disponible")

// Service keeps the shopping cart as one JSON snapshot in the key-value
// store. Every mutation loads the snapshot, applies the change and writes
// the whole cart back in a single Set.
type Service struct {
	kv       shared.KeyValueStore
	products catalog.ProductRepository
	clients  partner.ClientRepository
	tax      cart.TaxPolicy
	logger   *zap.Logger
}

// NewService creates a new cart service
func NewService(
	kv shared.KeyValueStore,
	products catalog.ProductRepository,
	clients partner.ClientRepository,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		kv:       kv,
		products: products,
		clients:  clients,
		tax:      cart.NoTax{},
		logger:   logger,
	}
}

// TaxPolicy returns the policy used for totals
func (s *Service) TaxPolicy() cart.TaxPolicy {
	return s.tax
}

// Get loads the current cart. A snapshot that no longer decodes is
// discarded and an empty cart returned.
func (s *Service) Get(ctx context.Context) (*cart.Cart, error) {
	var c cart.Cart
	found, err := s.kv.GetJSON(ctx, shared.KeyShoppingCart, &c)
	if err != nil {
		if found {
			s.logger.Warn("Discarding unreadable cart snapshot", zap.Error(err))
			return &cart.Cart{}, nil
		}
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return &c, nil
}

// View returns the cart with totals
func (s *Service) View(ctx context.Context) (*CartResponse, error) {
	c, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	resp := ToCartResponse(c, s.tax)
	return &resp, nil
}

// AddToCart adds a product at the price of the client's tier. The quantity
// must be positive and reach the product's minimum for that tier. Adding a
// product already in the cart increases its quantity.
func (s *Service) AddToCart(ctx context.Context, input AddItemInput) (*CartResponse, error) {
	productID := strings.TrimSpace(input.ProductID)
	if productID == "" {
		return nil, shared.NewDomainError("INVALID_PRODUCT_ID", "Product ID cannot be empty")
	}
	if input.Quantity <= 0 {
		return nil, shared.ErrInvalidQuantity
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, ErrProductUnavailable
	}

	priceType, err := s.priceTypeFor(ctx, input.ClientID)
	if err != nil {
		return nil, err
	}

	snapshot := cart.SnapshotOf(product, priceType)
	if input.Quantity < snapshot.MinimumQuantity {
		return nil, shared.NewDomainError(shared.ErrBelowMinimumQuantity.Code,
			fmt.Sprintf("La cantidad mínima es %d", snapshot.MinimumQuantity))
	}

	return s.mutate(ctx, func(c *cart.Cart) error {
		return c.Add(snapshot, input.Quantity)
	})
}

// SetQuantity overwrites a line's quantity; zero or less removes the line
func (s *Service) SetQuantity(ctx context.Context, productID string, qty int) (*CartResponse, error) {
	return s.mutate(ctx, func(c *cart.Cart) error {
		c.SetQuantity(productID, qty)
		return nil
	})
}

// Remove drops a product from the cart
func (s *Service) Remove(ctx context.Context, productID string) (*CartResponse, error) {
	return s.mutate(ctx, func(c *cart.Cart) error {
		c.Remove(productID)
		return nil
	})
}

// Clear empties the cart
func (s *Service) Clear(ctx context.Context) error {
	if err := s.kv.SetJSON(ctx, shared.KeyShoppingCart, cart.Cart{}); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// Totals computes the totals of the current cart
func (s *Service) Totals(ctx context.Context) (cart.Totals, error) {
	c, err := s.Get(ctx)
	if err != nil {
		return cart.Totals{}, err
	}
	return c.Totals(s.tax), nil
}

func (s *Service) mutate(ctx context.Context, apply func(*cart.Cart) error) (*CartResponse, error) {
	c, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	if err := apply(c); err != nil {
		return nil, err
	}
	if err := s.kv.SetJSON(ctx, shared.KeyShoppingCart, c); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}
	resp := ToCartResponse(c, s.tax)
	return &resp, nil
}

func (s *Service) priceTypeFor(ctx context.Context, clientID string) (catalog.PriceType, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" || s.clients == nil {
		return catalog.DefaultPriceType, nil
	}
	client, err := s.clients.FindByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return "", shared.NewDomainError("INVALID_CLIENT", "Cliente no encontrado")
		}
		return "", err
	}
	return client.EffectivePriceType(), nil
}
