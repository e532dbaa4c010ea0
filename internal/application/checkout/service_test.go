package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	cartapp "github.com/fieldsales/vendorsync/internal/application/cart"
	"github.com/fieldsales/vendorsync/internal/domain/cart"
	"github.com/fieldsales/vendorsync/internal/domain/catalog"
	"github.com/fieldsales/vendorsync/internal/domain/partner"
	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/domain/shared/valueobject"
	"github.com/fieldsales/vendorsync/internal/domain/trade"
	"github.com/fieldsales/vendorsync/internal/infrastructure/persistence"
	"github.com/fieldsales/vendorsync/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var checkoutTime = time.Date(2024, 6, 10, 15, 4, 5, 123456789, time.UTC)

type checkoutFixture struct {
	store *persistence.Store
	carts *cartapp.Service
	svc   *Service
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	ctx := context.Background()
	store := testutil.NewStore(t)

	for _, p := range []struct {
		id, price string
	}{{"p1", "10.50"}, {"p2", "3.25"}} {
		require.NoError(t, store.Products.Upsert(ctx, &catalog.Product{
			BaseEntity: shared.BaseEntity{ID: p.id},
			SKU:        "SKU-" + p.id,
			Name:       "Producto " + p.id,
			Price:      valueobject.MustMoney(p.price),
			BasePrice:  valueobject.MustMoney(p.price),
			IsActive:   true,
		}))
	}
	require.NoError(t, store.Clients.Upsert(ctx, &partner.Client{
		BaseEntity: shared.BaseEntity{ID: "c1"},
		Name:       "Ana",
		IsActive:   true,
	}))

	carts := cartapp.NewService(store.KV, store.Products, store.Clients, zap.NewNop())
	svc := NewService(carts, store.PendingOrders, store.Clients, zap.NewNop())
	clock := checkoutTime
	svc.now = func() time.Time { return clock }
	return &checkoutFixture{store: store, carts: carts, svc: svc}
}

func (f *checkoutFixture) fillCart(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := f.carts.AddToCart(ctx, cartapp.AddItemInput{ProductID: "p1", Quantity: 2})
	require.NoError(t, err)
	_, err = f.carts.AddToCart(ctx, cartapp.AddItemInput{ProductID: "p2", Quantity: 4})
	require.NoError(t, err)
}

func TestService_Checkout(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t)

	result, err := f.svc.Checkout(ctx, CheckoutRequest{ClientID: "c1", CustomerNote: "  entregar lunes "})
	require.NoError(t, err)
	assert.Regexp(t, `^order_[0-9a-f-]{36}$`, result.OrderID)
	assert.Equal(t, "2024-06-10T15:04:05.123Z", result.CreatedAt)
	assert.Equal(t, 6, result.ItemCount)
	assert.Equal(t, "34.00", result.Subtotal.String())
	assert.Equal(t, "0.00", result.Tax.String())
	assert.Equal(t, "34.00", result.Total.String())

	order, err := f.store.PendingOrders.FindByID(ctx, result.OrderID)
	require.NoError(t, err)
	assert.False(t, order.Synced)
	assert.Equal(t, "c1", order.ClientID)
	assert.Equal(t, "entregar lunes", order.CustomerNote)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "Producto p1", order.Items[0].ProductName)
	assert.Equal(t, "10.50", order.Items[0].PricePerUnit.String())

	c, err := f.carts.Get(ctx)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	n, err := f.store.PendingOrders.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestService_Checkout_SnapshotsIgnoreLaterCatalogChanges(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t)

	// price change after the product went into the cart
	p, err := f.store.Products.FindByID(ctx, "p1")
	require.NoError(t, err)
	p.Price = valueobject.MustMoney("99.00")
	p.Name = "Renombrado"
	require.NoError(t, f.store.Products.Upsert(ctx, p))

	result, err := f.svc.Checkout(ctx, CheckoutRequest{})
	require.NoError(t, err)

	order, err := f.store.PendingOrders.FindByID(ctx, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "Producto p1", order.Items[0].ProductName)
	assert.Equal(t, "10.50", order.Items[0].PricePerUnit.String())
	assert.Empty(t, order.ClientID)
}

func TestService_Checkout_EmptyCartWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)

	_, err := f.svc.Checkout(ctx, CheckoutRequest{ClientID: "c1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrEmptyCart)
	assert.Equal(t, "El carrito está vacío", err.Error())

	n, err := f.store.PendingOrders.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestService_Checkout_InvalidInput(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t)

	_, err := f.svc.Checkout(ctx, CheckoutRequest{ClientID: "missing"})
	require.Error(t, err)
	assert.Equal(t, "Cliente no encontrado", err.Error())

	long := make([]byte, 501)
	for i := range long {
		long[i] = 'x'
	}
	_, err = f.svc.Checkout(ctx, CheckoutRequest{CustomerNote: string(long)})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	// cart is untouched by rejected checkouts
	c, err := f.carts.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, c.ItemCount())
}

func TestService_Checkout_CreatedAtIsUnique(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		f.fillCart(t)
		result, err := f.svc.Checkout(ctx, CheckoutRequest{})
		require.NoError(t, err)
		assert.False(t, seen[result.CreatedAt], result.CreatedAt)
		seen[result.CreatedAt] = true
	}
	assert.True(t, seen["2024-06-10T15:04:05.125Z"])
}

func TestService_Checkout_CreatedAtFollowsStoredOrders(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)

	// an earlier run stored an order an hour ahead of the current clock
	earlier := NewService(f.carts, f.store.PendingOrders, f.store.Clients, zap.NewNop())
	earlier.now = func() time.Time { return checkoutTime.Add(time.Hour) }
	f.fillCart(t)
	first, err := earlier.Checkout(ctx, CheckoutRequest{})
	require.NoError(t, err)

	f.fillCart(t)
	second, err := f.svc.Checkout(ctx, CheckoutRequest{})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-10T16:04:05.124Z", second.CreatedAt)
	assert.Greater(t, second.CreatedAt, first.CreatedAt)

	n, err := f.store.PendingOrders.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestService_Checkout_LatestOrderReadFailure(t *testing.T) {
	carts := &stubCarts{cart: oneLineCart()}
	orders := new(MockOrderRepository)
	orders.On("LatestCreatedAt", mock.Anything).Return("", errors.New("database is locked")).Once()

	svc := NewService(carts, orders, nil, zap.NewNop())
	_, err := svc.Checkout(context.Background(), CheckoutRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.False(t, carts.cleared)
	orders.AssertExpectations(t)
}

// MockOrderRepository is a mock implementation of trade.PendingOrderRepository
type MockOrderRepository struct {
	mock.Mock
	trade.PendingOrderRepository
}

func (m *MockOrderRepository) Create(ctx context.Context, order *trade.PendingOrder) error {
	return m.Called(ctx, order).Error(0)
}

func (m *MockOrderRepository) LatestCreatedAt(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// stubCarts is a CartStore over a fixed cart
type stubCarts struct {
	cart     cart.Cart
	clearErr error
	cleared  bool
}

func (s *stubCarts) Get(context.Context) (*cart.Cart, error) {
	c := s.cart
	return &c, nil
}

func (s *stubCarts) Clear(context.Context) error {
	if s.clearErr != nil {
		return s.clearErr
	}
	s.cleared = true
	return nil
}

func (s *stubCarts) TaxPolicy() cart.TaxPolicy { return cart.NoTax{} }

func oneLineCart() cart.Cart {
	var c cart.Cart
	_ = c.Add(cart.ProductSnapshot{ID: "p1", Name: "Uno", Price: valueobject.MustMoney("1.00")}, 1)
	return c
}

func TestService_Checkout_StoreFailureKeepsCart(t *testing.T) {
	carts := &stubCarts{cart: oneLineCart()}
	orders := new(MockOrderRepository)
	orders.On("LatestCreatedAt", mock.Anything).Return("", nil).Once()
	orders.On("Create", mock.Anything, mock.AnythingOfType("*trade.PendingOrder")).
		Return(errors.New("database is locked")).Once()

	svc := NewService(carts, orders, nil, zap.NewNop())
	_, err := svc.Checkout(context.Background(), CheckoutRequest{ClientID: "anything"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.False(t, carts.cleared)
	orders.AssertExpectations(t)
}

func TestService_Checkout_ClearFailureReturnsResult(t *testing.T) {
	carts := &stubCarts{cart: oneLineCart(), clearErr: errors.New("disk full")}
	orders := new(MockOrderRepository)
	orders.On("LatestCreatedAt", mock.Anything).Return("", nil).Once()
	orders.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	svc := NewService(carts, orders, nil, zap.NewNop())
	result, err := svc.Checkout(context.Background(), CheckoutRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCartNotCleared)
	require.NotNil(t, result)
	assert.Equal(t, "1.00", result.Total.String())
	orders.AssertExpectations(t)
}
