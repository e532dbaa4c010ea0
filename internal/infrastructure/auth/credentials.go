package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"golang.org/x/crypto/bcrypt"
)

// ErrNoCredentials means no credentials were remembered on this device
var ErrNoCredentials = errors.New("no remembered credentials")

// RememberedCredentials is the stored form of the last successful login
type RememberedCredentials struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	RememberedAt time.Time `json:"rememberedAt"`
}

// CredentialStore remembers the last online login so the vendor can sign
// in again without network. Only a bcrypt hash of the password is kept.
type CredentialStore struct {
	kv   shared.KeyValueStore
	cost int
	now  func() time.Time
}

// NewCredentialStore creates a new CredentialStore. A cost outside the
// bcrypt range uses bcrypt.DefaultCost.
func NewCredentialStore(kv shared.KeyValueStore, cost int) *CredentialStore {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &CredentialStore{kv: kv, cost: cost, now: time.Now}
}

// Remember hashes and stores the credentials, replacing previous ones
func (s *CredentialStore) Remember(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return shared.ErrInvalidInput
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	creds := RememberedCredentials{
		Username:     username,
		PasswordHash: string(hash),
		RememberedAt: s.now().UTC(),
	}
	if err := s.kv.SetJSON(ctx, shared.KeyVendorCredentials, creds); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}
	return nil
}

// Verify checks username and password against the remembered credentials.
// It returns ErrNoCredentials when nothing is remembered and
// shared.ErrInvalidCredentials on a mismatch.
func (s *CredentialStore) Verify(ctx context.Context, username, password string) error {
	var creds RememberedCredentials
	ok, err := s.kv.GetJSON(ctx, shared.KeyVendorCredentials, &creds)
	if err != nil {
		return fmt.Errorf("failed to read credentials: %w", err)
	}
	if !ok || creds.PasswordHash == "" {
		return ErrNoCredentials
	}
	if !strings.EqualFold(strings.TrimSpace(username), creds.Username) {
		return shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)); err != nil {
		return shared.ErrInvalidCredentials
	}
	return nil
}

// Forget removes the remembered credentials
func (s *CredentialStore) Forget(ctx context.Context) error {
	if err := s.kv.Delete(ctx, shared.KeyVendorCredentials); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}
