package devserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/domain/shared/valueobject"
	"github.com/fieldsales/vendorsync/internal/infrastructure/auth"
	"github.com/fieldsales/vendorsync/internal/infrastructure/cache"
	"github.com/fieldsales/vendorsync/internal/infrastructure/config"
	"github.com/fieldsales/vendorsync/internal/infrastructure/gateway"
	"github.com/fieldsales/vendorsync/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var serverStart = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

type serverFixture struct {
	clock  *testutil.Clock
	data   *Dataset
	server *Server
	http   *httptest.Server
	tokens *auth.TokenStore
	client *gateway.Client
}

func testConfig() config.DevServerConfig {
	return config.DevServerConfig{
		TokenSecret:    "test-secret-test-secret-test-secret",
		TokenTTL:       time.Hour,
		IdempotencyTTL: time.Hour,
	}
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	f := &serverFixture{clock: testutil.NewClock(serverStart)}
	f.data = NewDataset(f.clock.Now)
	_, err := f.data.AddVendor("ana", "secreto", "Ana Pérez")
	require.NoError(t, err)

	store := cache.NewInMemoryIdempotencyStore()
	f.server, err = New(testConfig(), zap.NewNop(),
		WithClock(f.clock.Now),
		WithDataset(f.data),
		WithIdempotencyStore(store),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.server.Close() })

	f.http = httptest.NewServer(f.server.Handler())
	t.Cleanup(f.http.Close)

	f.tokens = auth.NewTokenStore(testutil.NewMemoryKV())
	f.client = gateway.NewClient(gateway.Config{
		BaseURL: f.http.URL,
		RPCPath: RPCPath,
		Timeout: 5 * time.Second,
	}, f.tokens, zap.NewNop(), gateway.WithClock(f.clock.Now))
	return f
}

func (f *serverFixture) login(t *testing.T) {
	t.Helper()
	_, err := f.client.Login(context.Background(), "ana", "secreto")
	require.NoError(t, err)
}

func (f *serverFixture) product(id, price string, tiers ...gateway.WirePricing) {
	active := true
	f.data.PutProduct(gateway.WireProduct{
		ID:              gateway.FlexibleID(id),
		SKU:             "SKU-" + id,
		Name:            "Producto " + id,
		Image:           "https://cdn.example.com/" + id + ".jpg",
		BasePrice:       valueobject.MustMoney(price),
		Price:           valueobject.MustMoney(price),
		Stock:           5,
		MinimumQuantity: 1,
		IsActive:        &active,
		PricingByType:   tiers,
	})
}

func TestLogin(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()

	user, err := f.client.Login(ctx, "ana", "secreto")
	require.NoError(t, err)
	assert.Equal(t, "ana", user.Username)
	assert.Equal(t, "Ana Pérez", user.Name)

	token, ok, err := f.tokens.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	info, err := auth.InspectToken(token)
	require.NoError(t, err)
	assert.Equal(t, serverStart.Add(time.Hour).Unix(), info.ExpiresAt.Unix())
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newServerFixture(t)

	_, err := f.client.Login(context.Background(), "ana", "otra")
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrLoginRejected)
	assert.Contains(t, err.Error(), shared.ErrInvalidCredentials.Message)

	_, ok, _ := f.tokens.Get(context.Background())
	assert.False(t, ok)
}

func TestProcedures_RequireToken(t *testing.T) {
	f := newServerFixture(t)
	require.NoError(t, f.tokens.Set(context.Background(), "not-a-token"))

	_, err := f.client.GetClients(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)

	var remote *gateway.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "UNAUTHORIZED", remote.Code)
	assert.Equal(t, http.StatusUnauthorized, remote.HTTPStatus)
}

func TestProcedures_ExpiredToken(t *testing.T) {
	f := newServerFixture(t)
	vendor, ok := f.data.Authenticate("ana", "secreto")
	require.True(t, ok)
	token, err := f.server.IssueToken(vendor)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	resp, err := http.Get(f.http.URL + RPCPath + "/" + gateway.ProcGetStatus + "?batch=1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, f.http.URL+RPCPath+"/"+gateway.ProcGetStatus+"?batch=1", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body), "Token expirado")
}

func TestCatalogAndChanges(t *testing.T) {
	f := newServerFixture(t)
	f.login(t)
	ctx := context.Background()

	f.product("1", "10.00")
	f.product("2", "20.00", gateway.WirePricing{PriceType: "interior", Price: valueobject.MustMoney("22.00"), MinimumQuantity: 6})
	f.clock.Advance(time.Minute)

	full, err := f.client.GetCatalog(ctx)
	require.NoError(t, err)
	assert.True(t, full.Success)
	assert.Equal(t, 2, full.TotalProducts)
	assert.Equal(t, "2024-06-01T08:01:00.000Z", full.Timestamp)
	require.Len(t, full.Products, 2)
	assert.Equal(t, "1", full.Products[0].ID.String())
	require.Len(t, full.Products[1].PricingByType, 1)
	assert.Equal(t, 6, full.Products[1].PricingByType[0].MinimumQuantity)

	noChanges, err := f.client.GetChanges(ctx, full.Timestamp)
	require.NoError(t, err)
	assert.Empty(t, noChanges.Products)

	f.clock.Advance(time.Minute)
	f.product("2", "25.00")
	require.True(t, f.data.DeactivateProduct("1"))
	f.clock.Advance(time.Minute)

	changes, err := f.client.GetChanges(ctx, full.Timestamp)
	require.NoError(t, err)
	require.Len(t, changes.Products, 2)
	require.NotNil(t, changes.Products[0].IsActive)
	assert.False(t, *changes.Products[0].IsActive)
	assert.Equal(t, "25.00", changes.Products[1].Price.String())

	after, err := f.client.GetCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, after.Products, 1, "inactive products leave the full catalog")
}

func TestGetChanges_InvalidTimestamp(t *testing.T) {
	f := newServerFixture(t)
	f.login(t)

	_, err := f.client.GetChanges(context.Background(), "yesterday")
	require.Error(t, err)
	var httpErr *gateway.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
}

func TestUploadOrders_Deduplicates(t *testing.T) {
	f := newServerFixture(t)
	f.login(t)
	ctx := context.Background()
	f.product("1", "10.00")
	f.data.PutClient(gateway.WireClient{ID: "c1", Name: "Cliente Uno", Phone: "555-0101"})

	order := gateway.UploadOrder{
		ClientID:         "c1",
		CustomerNote:     "Entregar temprano",
		CreatedAtOffline: "2024-06-01T07:55:00.000Z",
		Items:            []gateway.UploadItem{{ProductID: "1", Quantity: 3, PricePerUnit: valueobject.MustMoney("10.00")}},
	}

	first, err := f.client.UploadOrders(ctx, []gateway.UploadOrder{order})
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Equal(t, []string{order.CreatedAtOffline}, first.Acknowledged())

	second, err := f.client.UploadOrders(ctx, []gateway.UploadOrder{order})
	require.NoError(t, err)
	assert.Equal(t, []string{order.CreatedAtOffline}, second.Acknowledged())
	assert.Equal(t, first.Results[0].OrderID, second.Results[0].OrderID)

	_, _, orders := f.data.Counts()
	assert.Equal(t, 1, orders, "a re-sent order is stored once")

	history, err := f.client.GetOrderHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history.Orders, 1)
	got := history.Orders[0]
	assert.Equal(t, "30.00", got.Total.String())
	assert.Equal(t, "Cliente Uno", got.CustomerName)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Producto 1", got.Items[0].ProductName)
}

func TestUploadOrders_PartialFailure(t *testing.T) {
	f := newServerFixture(t)
	f.login(t)
	f.product("1", "10.00")

	resp, err := f.client.UploadOrders(context.Background(), []gateway.UploadOrder{
		{
			CreatedAtOffline: "2024-06-01T07:00:00.000Z",
			Items:            []gateway.UploadItem{{ProductID: "1", Quantity: 1, PricePerUnit: valueobject.MustMoney("10.00")}},
		},
		{
			CreatedAtOffline: "2024-06-01T07:00:00.001Z",
			Items:            []gateway.UploadItem{{ProductID: "missing", Quantity: 1, PricePerUnit: valueobject.MustMoney("1.00")}},
		},
	})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, 1, resp.Uploaded)
	assert.Equal(t, 1, resp.Failed)
	assert.Equal(t, []string{"2024-06-01T07:00:00.000Z"}, resp.Acknowledged())
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "Producto no encontrado: missing", resp.Errors[0].Error)
}

func TestGetStatus(t *testing.T) {
	f := newServerFixture(t)
	f.login(t)
	f.product("1", "10.00")
	f.product("2", "12.50")

	status, err := f.client.GetStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Success)
	assert.Equal(t, "ana", status.User.Username)
	assert.Equal(t, 2, status.Catalog.TotalProducts)
	assert.Equal(t, "2024-06-01T08:00:00.000Z", status.Catalog.LastUpdate)
	assert.Zero(t, status.PendingOrders)
}

func TestDispatch_MethodAndProcedure(t *testing.T) {
	f := newServerFixture(t)

	tests := []struct {
		name   string
		method string
		proc   string
		status int
		code   string
	}{
		{name: "unknown procedure", method: http.MethodGet, proc: "sync.nothing", status: http.StatusNotFound, code: "NOT_FOUND"},
		{name: "query over POST", method: http.MethodPost, proc: gateway.ProcGetCatalog, status: http.StatusMethodNotAllowed, code: "METHOD_NOT_SUPPORTED"},
		{name: "mutation over GET", method: http.MethodGet, proc: gateway.ProcLogin, status: http.StatusMethodNotAllowed, code: "METHOD_NOT_SUPPORTED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, f.http.URL+RPCPath+"/"+tt.proc+"?batch=1", strings.NewReader(`{"0":{"json":null}}`))
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			_, derr := gateway.DecodeEnvelope(body)
			var remote *gateway.RemoteError
			require.True(t, errors.As(derr, &remote))
			assert.Equal(t, tt.code, remote.Code)
		})
	}
}

func TestDispatch_SingleCallEnvelope(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Post(f.http.URL+RPCPath+"/"+gateway.ProcLogin, "application/json",
		strings.NewReader(`{"json":{"username":"ana","password":"secreto"}}`))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	env, err := gateway.DecodeEnvelope(body)
	require.NoError(t, err)
	assert.Equal(t, gateway.ShapeBareJSON, env.Shape)
	assert.Contains(t, string(env.Payload), `"success":true`)
}

func TestInjectFailure(t *testing.T) {
	f := newServerFixture(t)
	f.login(t)
	ctx := context.Background()
	f.server.InjectFailure(gateway.ProcGetClients, http.StatusServiceUnavailable, 1)

	_, err := f.client.GetClients(ctx)
	require.Error(t, err)
	var httpErr *gateway.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)

	resp, err := f.client.GetClients(ctx)
	require.NoError(t, err, "the injected failure is consumed")
	assert.True(t, resp.Success)
}

func TestHealth(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Head(f.http.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNew_SeedsDataset(t *testing.T) {
	cfg := testConfig()
	cfg.VendorUsername = "vendedor"
	cfg.VendorPassword = "vendedor123"
	cfg.Seed = 42
	cfg.SeedProducts = 12
	cfg.SeedClients = 4

	s, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	products, clients, orders := s.Dataset().Counts()
	assert.Equal(t, 12, products)
	assert.Equal(t, 4, clients)
	assert.Zero(t, orders)

	_, ok := s.Dataset().Authenticate("vendedor", "vendedor123")
	assert.True(t, ok)

	for _, p := range s.Dataset().Products(time.Time{}) {
		require.Len(t, p.PricingByType, 3)
		for _, tier := range p.PricingByType {
			assert.True(t, tier.Price.Amount().IsPositive(), "tier %s of %s", tier.PriceType, p.ID)
		}
	}
}
