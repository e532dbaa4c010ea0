package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCredentialStore(t *testing.T) {
	ctx := context.Background()
	kv := testutil.NewMemoryKV()
	store := NewCredentialStore(kv, bcrypt.MinCost)

	assert.ErrorIs(t, store.Verify(ctx, "ana", "secreto"), ErrNoCredentials)

	require.NoError(t, store.Remember(ctx, " ana ", "secreto"))

	raw, ok, err := kv.Get(ctx, shared.KeyVendorCredentials)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, strings.Contains(raw, "secreto"))

	assert.NoError(t, store.Verify(ctx, "ana", "secreto"))
	assert.NoError(t, store.Verify(ctx, "ANA", "secreto"))
	assert.ErrorIs(t, store.Verify(ctx, "ana", "otro"), shared.ErrInvalidCredentials)
	assert.ErrorIs(t, store.Verify(ctx, "beto", "secreto"), shared.ErrInvalidCredentials)

	require.NoError(t, store.Forget(ctx))
	assert.ErrorIs(t, store.Verify(ctx, "ana", "secreto"), ErrNoCredentials)
}

func TestCredentialStore_RejectsEmptyInput(t *testing.T) {
	store := NewCredentialStore(testutil.NewMemoryKV(), 0)
	assert.Equal(t, bcrypt.DefaultCost, store.cost)
	assert.ErrorIs(t, store.Remember(context.Background(), "", "x"), shared.ErrInvalidInput)
	assert.ErrorIs(t, store.Remember(context.Background(), "ana", ""), shared.ErrInvalidInput)
}
