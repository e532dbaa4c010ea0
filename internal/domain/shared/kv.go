package shared

import (
	"context"
)

// Keys of the persisted key-value pairs kept next to the relational tables
const (
	KeyVendorToken       = "vendor_token"
	KeyVendorUser        = "vendor_user"
	KeyVendorCredentials = "vendor_credentials"
	KeyLastSyncTimestamp = "last_sync_timestamp"
	KeyShoppingCart      = "shopping_cart"
	KeyImageCacheIndex   = "image_cache_index"
)

// KeyValueStore persists small string values by key. Set overwrites the
// whole value in a single write.
type KeyValueStore interface {
	// Get returns the value and whether the key exists
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores the value, replacing any previous one
	Set(ctx context.Context, key, value string) error

	// Delete removes the key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// GetJSON decodes the stored value into dst and reports whether the key existed
	GetJSON(ctx context.Context, key string, dst any) (bool, error)

	// SetJSON encodes v and stores it
	SetJSON(ctx context.Context, key string, v any) error
}
