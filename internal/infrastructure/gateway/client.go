package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fieldsales/vendorsync/internal/infrastructure/auth"
	"github.com/fieldsales/vendorsync/internal/infrastructure/config"
	"github.com/fieldsales/vendorsync/internal/infrastructure/telemetry"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// TokenSource reads the stored bearer token
type TokenSource interface {
	Get(ctx context.Context) (string, bool, error)
}

// TokenSink persists a bearer token returned by login
type TokenSink interface {
	Set(ctx context.Context, token string) error
}

// Tokens is the token store collaborator
type Tokens interface {
	TokenSource
	TokenSink
}

// Config holds the remote endpoint settings
type Config struct {
	BaseURL          string
	RPCPath          string
	Timeout          time.Duration
	MaxResponseBytes int64
}

// ConfigFrom builds a gateway Config from the application config
func ConfigFrom(rc config.RemoteConfig) Config {
	return Config{
		BaseURL:          rc.BaseURL,
		RPCPath:          rc.RPCPath,
		Timeout:          rc.Timeout,
		MaxResponseBytes: rc.MaxResponseBytes,
	}
}

// Client calls the sync server's procedures over the batched RPC convention
type Client struct {
	cfg        Config
	tokens     Tokens
	httpClient *http.Client
	now        func() time.Time
	logger     *zap.Logger
	validate   *validator.Validate
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithClock replaces the clock used for token expiry checks
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new Client
func NewClient(cfg Config, tokens Tokens, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RPCPath == "" {
		cfg.RPCPath = "/api/trpc"
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = 32 << 20
	}
	c := &Client{
		cfg:        cfg,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
		logger:     logger.Named("gateway"),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetCatalog downloads the full catalog
func (c *Client) GetCatalog(ctx context.Context) (*CatalogResponse, error) {
	var out CatalogResponse
	if err := c.query(ctx, ProcGetCatalog, CatalogInput{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetChanges downloads products changed since the given checkpoint
func (c *Client) GetChanges(ctx context.Context, since string) (*CatalogResponse, error) {
	var out CatalogResponse
	if err := c.query(ctx, ProcGetChanges, CatalogInput{LastSyncTimestamp: since}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetClients downloads the clients assigned to the signed-in vendor
func (c *Client) GetClients(ctx context.Context) (*ClientsResponse, error) {
	var out ClientsResponse
	if err := c.query(ctx, ProcGetClients, struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetOrderHistory downloads up to limit confirmed orders with their items
func (c *Client) GetOrderHistory(ctx context.Context, limit int) (*OrderHistoryResponse, error) {
	var out OrderHistoryResponse
	if err := c.query(ctx, ProcGetOrderHistory, HistoryInput{Limit: limit}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStatus fetches the server's view of the vendor's sync state
func (c *Client) GetStatus(ctx context.Context) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.query(ctx, ProcGetStatus, struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadOrders sends pending orders in one mutation. The server
// deduplicates by CreatedAtOffline, so a re-send after a lost response
// does not create duplicates.
func (c *Client) UploadOrders(ctx context.Context, orders []UploadOrder) (*UploadOrdersResponse, error) {
	req := UploadOrdersRequest{Orders: orders}
	if err := c.validate.StructCtx(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	var out UploadOrdersResponse
	if err := c.mutate(ctx, ProcUploadOrders, req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login authenticates the vendor. On success the token is persisted before
// the user is returned.
func (c *Client) Login(ctx context.Context, username, password string) (*User, error) {
	req := LoginRequest{Username: strings.TrimSpace(username), Password: password}
	if err := c.validate.StructCtx(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	var out LoginResponse
	if err := c.mutate(ctx, ProcLogin, req, &out, false); err != nil {
		return nil, err
	}
	if !out.Success {
		msg := out.Message
		if msg == "" {
			msg = "Error al iniciar sesión"
		}
		return nil, fmt.Errorf("%w: %s", ErrLoginRejected, msg)
	}
	if out.Token == "" {
		return nil, fmt.Errorf("%w: response carried no token", ErrLoginRejected)
	}
	if err := c.tokens.Set(ctx, out.Token); err != nil {
		return nil, fmt.Errorf("gateway: persist token: %w", err)
	}
	if out.User.Username == "" {
		out.User.Username = req.Username
	}
	return &out.User, nil
}

func (c *Client) query(ctx context.Context, proc string, input, out any) error {
	in, err := batchInput(input)
	if err != nil {
		return err
	}
	target := c.endpoint(proc) + "?batch=1&input=" + url.QueryEscape(string(in))
	return c.call(ctx, http.MethodGet, proc, target, nil, out, true)
}

func (c *Client) mutate(ctx context.Context, proc string, input, out any, authenticated bool) error {
	in, err := batchInput(input)
	if err != nil {
		return err
	}
	return c.call(ctx, http.MethodPost, proc, c.endpoint(proc)+"?batch=1", in, out, authenticated)
}

func (c *Client) endpoint(proc string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + c.cfg.RPCPath + "/" + proc
}

// batchInput wraps input as {"0":{"json":input}}
func batchInput(input any) ([]byte, error) {
	b, err := json.Marshal(map[string]any{"0": map[string]any{"json": input}})
	if err != nil {
		return nil, fmt.Errorf("gateway: encode input: %w", err)
	}
	return b, nil
}

// bearer returns the stored token or the session precondition error
func (c *Client) bearer(ctx context.Context) (string, error) {
	token, ok, err := c.tokens.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("gateway: read token: %w", err)
	}
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return "", ErrNoSession
	}
	if claims, err := auth.InspectToken(token); err == nil && claims.Expired(c.now()) {
		return "", ErrSessionExpired
	}
	return token, nil
}

func (c *Client) call(ctx context.Context, method, proc, target string, body []byte, out any, authenticated bool) (err error) {
	ctx, span := telemetry.StartRPCSpan(ctx, proc)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	var token string
	if authenticated {
		if token, err = c.bearer(ctx); err != nil {
			return err
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("gateway: %s: build request: %w", proc, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransport, proc, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes+1))
	if err != nil {
		return fmt.Errorf("%w: %s: read body: %w", ErrTransport, proc, err)
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrHTTPStatus, resp.StatusCode)
	c.logger.Debug("RPC call",
		zap.String("procedure", proc),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(raw)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if int64(len(raw)) > c.cfg.MaxResponseBytes {
		return &EnvelopeError{Procedure: proc, Reason: fmt.Sprintf("response exceeds %d bytes", c.cfg.MaxResponseBytes)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{Procedure: proc, StatusCode: resp.StatusCode, Body: string(raw)}
		var remote *RemoteError
		if _, derr := DecodeEnvelope(raw); errors.As(derr, &remote) {
			httpErr.Remote = remote
		}
		return httpErr
	}

	env, err := DecodeEnvelope(raw)
	if err != nil {
		var envErr *EnvelopeError
		if errors.As(err, &envErr) {
			envErr.Procedure = proc
		}
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return &EnvelopeError{Procedure: proc, Reason: "payload does not decode: " + err.Error(), Snippet: snippet(env.Payload)}
	}
	return nil
}
