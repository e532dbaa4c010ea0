package trade

import (
	"context"
)

// PendingOrderRepository defines persistence for locally created orders
type PendingOrderRepository interface {
	// Create stores the order and its items in one transaction
	Create(ctx context.Context, order *PendingOrder) error

	// FindByID loads an order with its items
	FindByID(ctx context.Context, id string) (*PendingOrder, error)

	// FindUnsynced returns every order with synced=0, items included,
	// oldest first
	FindUnsynced(ctx context.Context) ([]PendingOrder, error)

	// FindAll returns every order, newest first, without items
	FindAll(ctx context.Context) ([]PendingOrder, error)

	// MarkSyncedByCreatedAt flips synced 0->1 for the order with the given
	// creation key. It reports whether a row changed.
	MarkSyncedByCreatedAt(ctx context.Context, createdAt string) (bool, error)

	// LatestCreatedAt returns the greatest creation key stored, synced or
	// not, or "" when there are no orders
	LatestCreatedAt(ctx context.Context) (string, error)

	// CountUnsynced returns the number of orders awaiting upload
	CountUnsynced(ctx context.Context) (int64, error)

	// Delete removes an order and its items
	Delete(ctx context.Context, id string) error
}

// OrderHistoryRepository defines persistence for the confirmed-order mirror
type OrderHistoryRepository interface {
	// Upsert overwrites the order row and replaces its items
	Upsert(ctx context.Context, order *OrderHistory) error

	// FindAll returns confirmed orders, newest first, without items
	FindAll(ctx context.Context, limit int) ([]OrderHistory, error)

	// FindByID loads a confirmed order with its items
	FindByID(ctx context.Context, id string) (*OrderHistory, error)

	// Count returns the number of mirrored orders
	Count(ctx context.Context) (int64, error)
}
