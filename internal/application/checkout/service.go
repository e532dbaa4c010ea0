package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fieldsales/vendorsync/internal/domain/cart"
	"github.com/fieldsales/vendorsync/internal/domain/partner"
	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/domain/shared/valueobject"
	"github.com/fieldsales/vendorsync/internal/domain/trade"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ErrCartNotCleared is returned together with a result when the order was
// stored but the cart snapshot could not be emptied
var ErrCartNotCleared = errors.New("checkout: order saved but cart not cleared")

// CartStore is the cart collaborator
type CartStore interface {
	Get(ctx context.Context) (*cart.Cart, error)
	Clear(ctx context.Context) error
	TaxPolicy() cart.TaxPolicy
}

// CheckoutRequest contains the input for turning the cart into an order
type CheckoutRequest struct {
	ClientID     string `validate:"omitempty,max=64"`
	CustomerNote string `validate:"max=500"`
}

// CheckoutResult describes the stored pending order
type CheckoutResult struct {
	OrderID   string            `json:"orderId"`
	CreatedAt string            `json:"createdAt"`
	ItemCount int               `json:"itemCount"`
	Subtotal  valueobject.Money `json:"subtotal"`
	Tax       valueobject.Money `json:"tax"`
	Total     valueobject.Money `json:"total"`
}

// Service converts the cart into a pending order
type Service struct {
	carts    CartStore
	orders   trade.PendingOrderRepository
	clients  partner.ClientRepository
	validate *validator.Validate
	now      func() time.Time
	logger   *zap.Logger

	mu     sync.Mutex
	last   time.Time
	seeded bool
}

// NewService creates a new checkout service. clients may be nil, in which
// case the client id is stored without a local lookup.
func NewService(
	carts CartStore,
	orders trade.PendingOrderRepository,
	clients partner.ClientRepository,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		carts:    carts,
		orders:   orders,
		clients:  clients,
		validate: validator.New(),
		now:      time.Now,
		logger:   logger,
	}
}

// Checkout stores the cart as one unsynced pending order and empties the
// cart. The order row and its items are written in a single transaction.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	c, err := s.carts.Get(ctx)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, shared.ErrEmptyCart
	}

	req.ClientID = strings.TrimSpace(req.ClientID)
	req.CustomerNote = strings.TrimSpace(req.CustomerNote)
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}
	if err := s.checkClient(ctx, req.ClientID); err != nil {
		return nil, err
	}

	lines := make([]trade.LineDraft, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, trade.LineDraft{
			ProductID:    item.Product.ID,
			ProductName:  item.Product.Name,
			Quantity:     item.Quantity,
			PricePerUnit: item.Product.Price,
		})
	}
	totals := c.Totals(s.carts.TaxPolicy())

	createdAt, err := s.nextCreatedAt(ctx)
	if err != nil {
		return nil, err
	}
	order, err := trade.NewPendingOrder(req.ClientID, req.CustomerNote, lines, totals.Tax, createdAt)
	if err != nil {
		return nil, err
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to store order: %w", err)
	}

	result := &CheckoutResult{
		OrderID:   order.ID,
		CreatedAt: order.CreatedAt,
		ItemCount: order.ItemCount(),
		Subtotal:  order.Subtotal,
		Tax:       order.Tax,
		Total:     order.Total,
	}
	s.logger.Info("Pending order created",
		zap.String("order_id", order.ID),
		zap.String("created_at", order.CreatedAt),
		zap.Int("lines", len(order.Items)),
		zap.String("total", order.Total.String()),
	)

	if err := s.carts.Clear(ctx); err != nil {
		s.logger.Error("Failed to clear cart after checkout", zap.String("order_id", order.ID), zap.Error(err))
		return result, fmt.Errorf("%w: %w", ErrCartNotCleared, err)
	}
	return result, nil
}

func (s *Service) checkClient(ctx context.Context, clientID string) error {
	if clientID == "" || s.clients == nil {
		return nil
	}
	if _, err := s.clients.FindByID(ctx, clientID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewDomainError("INVALID_CLIENT", "Cliente no encontrado")
		}
		return err
	}
	return nil
}

// nextCreatedAt returns a creation time at millisecond precision that is
// strictly later than every order already stored, including those written
// by earlier processes
func (s *Service) nextCreatedAt(ctx context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.seeded {
		latest, err := s.orders.LatestCreatedAt(ctx)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to read latest order time: %w", err)
		}
		if latest != "" {
			ts, err := shared.ParseTimestamp(latest)
			if err != nil {
				return time.Time{}, fmt.Errorf("invalid stored order time %q: %w", latest, err)
			}
			s.last = ts.UTC()
		}
		s.seeded = true
	}
	t := s.now().UTC().Truncate(time.Millisecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Millisecond)
	}
	s.last = t
	return t, nil
}
