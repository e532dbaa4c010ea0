package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fieldsales/vendorsync/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "vendorsync:upload:"

// RedisIdempotencyStore keeps upload keys in Redis so several contract
// server instances agree on which orders they have seen
type RedisIdempotencyStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisIdempotencyStore connects to cfg and pings it. ctx bounds the
// ping; without a deadline it is capped at five seconds.
func NewRedisIdempotencyStore(ctx context.Context, cfg config.RedisConfig) (*RedisIdempotencyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		MaxRetries:  1,
		DialTimeout: 2 * time.Second,
	})

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}

	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: defaultKeyPrefix,
	}, nil
}

// NewRedisIdempotencyStoreWithClient creates a store with an existing Redis client
func NewRedisIdempotencyStoreWithClient(client *redis.Client, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Claim uses SETNX so concurrent claims of the same key agree on one value
func (s *RedisIdempotencyStore) Claim(ctx context.Context, key, value string, ttl time.Duration) (string, bool, error) {
	k := s.keyPrefix + key

	ok, err := s.client.SetNX(ctx, k, value, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to claim key: %w", err)
	}
	if ok {
		return value, true, nil
	}

	held, err := s.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; try once more
		ok, err = s.client.SetNX(ctx, k, value, ttl).Result()
		if err != nil {
			return "", false, fmt.Errorf("failed to claim key: %w", err)
		}
		return value, ok, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read claimed key: %w", err)
	}
	return held, false, nil
}

// Lookup returns the value held under key
func (s *RedisIdempotencyStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up key: %w", err)
	}
	return v, true, nil
}

// Close closes the Redis client
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}

var _ IdempotencyStore = (*RedisIdempotencyStore)(nil)
