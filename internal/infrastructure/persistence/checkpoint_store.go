package persistence

import (
	"context"
	"fmt"

	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"go.uber.org/zap"
)

// CheckpointStore keeps the last-sync timestamp used for incremental
// catalog pulls. The stored value never moves backwards.
type CheckpointStore struct {
	kv     shared.KeyValueStore
	logger *zap.Logger
}

// NewCheckpointStore creates a new CheckpointStore
func NewCheckpointStore(kv shared.KeyValueStore, logger *zap.Logger) *CheckpointStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckpointStore{kv: kv, logger: logger}
}

// Get returns the stored checkpoint and whether one exists
func (c *CheckpointStore) Get(ctx context.Context) (string, bool, error) {
	value, ok, err := c.kv.Get(ctx, shared.KeyLastSyncTimestamp)
	if err != nil || !ok || value == "" {
		return "", false, err
	}
	return value, true, nil
}

// Advance stores ts if it is not older than the current checkpoint and
// reports whether it was stored. An older timestamp is ignored.
func (c *CheckpointStore) Advance(ctx context.Context, ts string) (bool, error) {
	next, err := shared.ParseTimestamp(ts)
	if err != nil {
		return false, fmt.Errorf("invalid checkpoint %q: %w", ts, shared.ErrInvalidInput)
	}

	current, ok, err := c.Get(ctx)
	if err != nil {
		return false, err
	}
	if ok {
		prev, perr := shared.ParseTimestamp(current)
		if perr == nil && next.Before(prev) {
			c.logger.Warn("Ignoring checkpoint older than the stored one",
				zap.String("stored", current),
				zap.String("received", ts),
			)
			return false, nil
		}
	}

	if err := c.kv.Set(ctx, shared.KeyLastSyncTimestamp, ts); err != nil {
		return false, err
	}
	return true, nil
}

// Clear forgets the checkpoint so the next catalog sync is a full one
func (c *CheckpointStore) Clear(ctx context.Context) error {
	return c.kv.Delete(ctx, shared.KeyLastSyncTimestamp)
}
