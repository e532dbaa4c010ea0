package persistence

import (
	"go.uber.org/zap"
)

// Store bundles the repositories over one Database
type Store struct {
	*Database
	Products      *GormProductRepository
	Clients       *GormClientRepository
	PendingOrders *GormPendingOrderRepository
	OrderHistory  *GormOrderHistoryRepository
	KV            *KVStore
	Checkpoints   *CheckpointStore
}

// NewStore wires every repository to db
func NewStore(db *Database, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	kv := NewKVStore(db.DB)
	return &Store{
		Database:      db,
		Products:      NewGormProductRepository(db.DB),
		Clients:       NewGormClientRepository(db.DB),
		PendingOrders: NewGormPendingOrderRepository(db.DB),
		OrderHistory:  NewGormOrderHistoryRepository(db.DB),
		KV:            kv,
		Checkpoints:   NewCheckpointStore(kv, logger.Named("checkpoint")),
	}
}
