// Package devserver is a local implementation of the sync server protocol.
// It serves the seven procedures the client uses over the batched RPC
// envelope from an in-memory dataset, for development and end-to-end tests.
package devserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/infrastructure/auth"
	"github.com/fieldsales/vendorsync/internal/infrastructure/cache"
	"github.com/fieldsales/vendorsync/internal/infrastructure/config"
	"github.com/fieldsales/vendorsync/internal/infrastructure/gateway"
	"github.com/fieldsales/vendorsync/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const (
	// RPCPath is where procedures are mounted
	RPCPath = "/api/trpc"

	maxBodyBytes = 4 << 20
	vendorKey    = "devserver_vendor"
)

type procKind int

const (
	query procKind = iota
	mutation
)

type procedure struct {
	kind   procKind
	public bool
	handle func(c *gin.Context, in call) (any, error)
}

// failure is an injected outage for one procedure
type failure struct {
	status    int
	remaining int
}

// Server serves the sync protocol
type Server struct {
	cfg         config.DevServerConfig
	data        *Dataset
	tokens      *auth.TokenIssuer
	idempotency cache.IdempotencyStore
	validate    *validator.Validate
	logger      *zap.Logger
	now         func() time.Time

	procedures map[string]procedure
	engine     *gin.Engine

	mu       sync.Mutex
	failures map[string]*failure

	// serializes lookup-then-record of uploads
	uploadMu sync.Mutex
}

// Option configures a Server
type Option func(*Server)

// WithClock sets the clock used for timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithDataset replaces the seeded dataset
func WithDataset(d *Dataset) Option {
	return func(s *Server) {
		s.data = d
	}
}

// WithIdempotencyStore sets the upload idempotency store
func WithIdempotencyStore(store cache.IdempotencyStore) Option {
	return func(s *Server) {
		s.idempotency = store
	}
}

// New creates a Server. Without WithDataset the dataset is seeded from
// cfg with one vendor account and generated products and clients.
func New(cfg config.DevServerConfig, log *zap.Logger, opts ...Option) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   log.Named("devserver"),
		now:      time.Now,
		failures: make(map[string]*failure),
	}
	for _, opt := range opts {
		opt(s)
	}

	secret := cfg.TokenSecret
	if secret == "" {
		secret = uuid.NewString() + uuid.NewString()
		s.logger.Warn("No token secret configured, tokens will not survive a restart")
	}
	s.tokens = auth.NewTokenIssuer(secret, cfg.TokenTTL, "vendorsync-devserver").WithClock(s.now)

	if s.idempotency == nil {
		store, err := cache.OpenIdempotencyStore(context.Background(), cfg.Redis, cfg.UseRedis, cache.WithLogger(s.logger))
		if err != nil {
			return nil, err
		}
		s.idempotency = store
	}

	if s.data == nil {
		s.data = NewDataset(s.now)
		if _, err := s.data.AddVendor(cfg.VendorUsername, cfg.VendorPassword, "Vendedor Demo"); err != nil {
			return nil, err
		}
		s.data.Seed(gofakeit.New(cfg.Seed), cfg.SeedProducts, cfg.SeedClients)
	}

	s.procedures = map[string]procedure{
		gateway.ProcLogin:           {kind: mutation, public: true, handle: s.login},
		gateway.ProcGetCatalog:      {kind: query, handle: s.getCatalog},
		gateway.ProcGetChanges:      {kind: query, handle: s.getChanges},
		gateway.ProcGetClients:      {kind: query, handle: s.getClients},
		gateway.ProcGetOrderHistory: {kind: query, handle: s.getOrderHistory},
		gateway.ProcUploadOrders:    {kind: mutation, handle: s.uploadOrders},
		gateway.ProcGetStatus:       {kind: query, handle: s.getStatus},
	}
	s.engine = s.buildEngine()

	products, clients, _ := s.data.Counts()
	s.logger.Info("Contract server ready",
		zap.Int("products", products),
		zap.Int("clients", clients),
		zap.Bool("redis", cfg.UseRedis),
	)
	return s, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Dataset returns the served dataset
func (s *Server) Dataset() *Dataset {
	return s.data
}

// IssueToken signs a token for vendor
func (s *Server) IssueToken(v *Vendor) (string, error) {
	token, _, err := s.tokens.Issue(auth.IssueInput{
		UserID:   v.ID,
		Username: v.Username,
		Name:     v.Name,
		Role:     v.Role,
	})
	return token, err
}

// InjectFailure makes the next times calls of proc answer status with an
// error member. times <= 0 keeps failing until cleared with status 0.
func (s *Server) InjectFailure(proc string, status, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, proc)
		return
	}
	s.failures[proc] = &failure{status: status, remaining: times}
}

func (s *Server) takeFailure(proc string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.failures[proc]
	if !ok {
		return 0, false
	}
	if f.remaining > 0 {
		f.remaining--
		if f.remaining == 0 {
			delete(s.failures, proc)
		}
	}
	return f.status, true
}

// Run serves on cfg.Port until ctx is cancelled, then shuts down gracefully.
// The idempotency store stays open; release it with Close.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Contract server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("Shutting down contract server")
	return srv.Shutdown(shutdownCtx)
}

// Close releases the idempotency store
func (s *Server) Close() error {
	return s.idempotency.Close()
}

func (s *Server) buildEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(otelgin.Middleware("vendorsync-devserver"))
	engine.Use(logger.GinMiddleware(s.logger))
	engine.Use(logger.Recovery(s.logger))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": s.timestamp()})
	})
	engine.HEAD("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rpc := engine.Group(RPCPath, bodyLimit(maxBodyBytes))
	rpc.Any("/:procedure", s.dispatch)
	return engine
}

func (s *Server) dispatch(c *gin.Context) {
	name := c.Param("procedure")
	in := call{batch: c.Query("batch") == "1"}

	proc, ok := s.procedures[name]
	if !ok {
		writeError(c, in, name, &rpcError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "No procedure found on path \"" + name + "\""})
		return
	}
	want := http.MethodGet
	if proc.kind == mutation {
		want = http.MethodPost
	}
	if c.Request.Method != want {
		writeError(c, in, name, &rpcError{Status: http.StatusMethodNotAllowed, Code: "METHOD_NOT_SUPPORTED", Message: "Unsupported " + c.Request.Method + " request to " + name})
		return
	}

	if status, failing := s.takeFailure(name); failing {
		writeError(c, in, name, &rpcError{Status: status, Code: codeForStatus(status), Message: "Falla simulada"})
		return
	}

	if !proc.public {
		vendor, err := s.authenticate(c)
		if err != nil {
			writeError(c, in, name, err)
			return
		}
		c.Set(vendorKey, vendor)
		logger.TagVendor(c, vendor.ID)
	}

	in, err := decodeInput(c)
	if err != nil {
		writeError(c, in, name, asRPCError(err))
		return
	}

	payload, err := proc.handle(c, in)
	if err != nil {
		rpcErr := asRPCError(err)
		if rpcErr.Status >= http.StatusInternalServerError {
			logger.GetGinLogger(c).Error("Procedure failed", zap.String("procedure", name), zap.Error(err))
		}
		writeError(c, in, name, rpcErr)
		return
	}
	writeResult(c, in, payload)
}

func (s *Server) authenticate(c *gin.Context) (*Vendor, *rpcError) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return nil, unauthorized("Token no proporcionado")
	}
	claims, err := s.tokens.Validate(strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, unauthorized("Token expirado")
		}
		return nil, unauthorized("Token inválido")
	}
	vendor, ok := s.data.VendorByID(claims.Subject)
	if !ok {
		return nil, unauthorized("Usuario no encontrado")
	}
	return vendor, nil
}

func (s *Server) timestamp() string {
	return shared.FormatTimestamp(s.now())
}

func currentVendor(c *gin.Context) *Vendor {
	v, _ := c.Get(vendorKey)
	vendor, _ := v.(*Vendor)
	return vendor
}

func asRPCError(err error) *rpcError {
	var rpcErr *rpcError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return &rpcError{Status: http.StatusInternalServerError, Code: "INTERNAL_SERVER_ERROR", Message: err.Error()}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}

func bodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
