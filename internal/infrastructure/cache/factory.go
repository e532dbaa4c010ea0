package cache

import (
	"context"
	"fmt"

	"github.com/fieldsales/vendorsync/internal/infrastructure/config"
	"go.uber.org/zap"
)

// OpenOption configures OpenIdempotencyStore
type OpenOption func(*openOptions)

type openOptions struct {
	logger       *zap.Logger
	requireRedis bool
}

// WithLogger sets the logger used to report which store was chosen
func WithLogger(logger *zap.Logger) OpenOption {
	return func(o *openOptions) {
		o.logger = logger
	}
}

// RequireRedis makes an unreachable Redis an error instead of falling back
// to the in-memory store
func RequireRedis() OpenOption {
	return func(o *openOptions) {
		o.requireRedis = true
	}
}

// OpenIdempotencyStore returns the upload store for the contract server:
// Redis when useRedis is set and the server answers a ping, otherwise an
// in-memory store that forgets uploads on restart.
func OpenIdempotencyStore(ctx context.Context, redisCfg config.RedisConfig, useRedis bool, opts ...OpenOption) (IdempotencyStore, error) {
	o := openOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	if !useRedis {
		o.logger.Info("Using in-memory upload store")
		return NewInMemoryIdempotencyStore(), nil
	}

	store, err := NewRedisIdempotencyStore(ctx, redisCfg)
	if err == nil {
		o.logger.Info("Using Redis upload store", zap.String("addr", redisCfg.Addr()))
		return store, nil
	}
	if o.requireRedis {
		return nil, fmt.Errorf("redis upload store unavailable: %w", err)
	}

	o.logger.Warn("Redis unavailable, uploads are deduplicated in memory only",
		zap.String("addr", redisCfg.Addr()),
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore(), nil
}
