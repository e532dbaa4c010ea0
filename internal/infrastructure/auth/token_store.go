package auth

import (
	"context"
	"fmt"

	"github.com/fieldsales/vendorsync/internal/domain/shared"
)

// TokenStore keeps the vendor bearer token in the local key-value store
type TokenStore struct {
	kv shared.KeyValueStore
}

// NewTokenStore creates a new TokenStore
func NewTokenStore(kv shared.KeyValueStore) *TokenStore {
	return &TokenStore{kv: kv}
}

// Get returns the stored token and whether one exists
func (s *TokenStore) Get(ctx context.Context) (string, bool, error) {
	token, ok, err := s.kv.Get(ctx, shared.KeyVendorToken)
	if err != nil {
		return "", false, fmt.Errorf("failed to read token: %w", err)
	}
	if !ok || token == "" {
		return "", false, nil
	}
	return token, true, nil
}

// Set stores the token, replacing any previous one
func (s *TokenStore) Set(ctx context.Context, token string) error {
	if token == "" {
		return shared.NewDomainError("INVALID_INPUT", "token cannot be empty")
	}
	if err := s.kv.Set(ctx, shared.KeyVendorToken, token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// Clear removes the stored token
func (s *TokenStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, shared.KeyVendorToken); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}
