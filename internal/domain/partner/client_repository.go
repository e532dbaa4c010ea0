package partner

import (
	"context"
)

// ClientRepository defines the interface for local client persistence
type ClientRepository interface {
	// Upsert writes the full client row, replacing any previous version
	Upsert(ctx context.Context, client *Client) error

	// FindByID finds a client by its ID
	FindByID(ctx context.Context, id string) (*Client, error)

	// FindActive lists active clients, optionally restricted to one vendor
	FindActive(ctx context.Context, vendorID string) ([]Client, error)

	// Count returns the number of stored clients
	Count(ctx context.Context) (int64, error)
}
