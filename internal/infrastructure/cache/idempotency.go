// Package cache holds the upload idempotency stores of the development
// server. A re-sent order carries the same creation key as the first
// attempt; the store remembers which server order that key produced.
package cache

import (
	"context"
	"time"
)

// IdempotencyStore maps an idempotency key to the result it produced
type IdempotencyStore interface {
	// Claim records value under key unless the key is already held. It
	// returns the value now held and whether this call stored it.
	Claim(ctx context.Context, key, value string, ttl time.Duration) (string, bool, error)

	// Lookup returns the value held under key
	Lookup(ctx context.Context, key string) (string, bool, error)

	// Close releases resources
	Close() error
}
