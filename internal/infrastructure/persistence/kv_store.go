package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KVStore keeps small values in the config table. Each Set is a single
// row write, so a reader sees either the old or the new value.
type KVStore struct {
	db *gorm.DB
}

// NewKVStore creates a new KVStore
func NewKVStore(db *gorm.DB) *KVStore {
	return &KVStore{db: db}
}

// Get returns the value and whether the key exists
func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	var model models.ConfigModel
	if err := s.db.WithContext(ctx).First(&model, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return model.Value, true, nil
}

// Set stores the value, replacing any previous one
func (s *KVStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return shared.ErrInvalidInput
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&models.ConfigModel{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Delete removes the key; deleting a missing key is not an error
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("key = ?", key).Delete(&models.ConfigModel{}).Error; err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// GetJSON decodes the stored value into dst and reports whether the key existed
func (s *KVStore) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it
func (s *KVStore) SetJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(raw))
}

var _ shared.KeyValueStore = (*KVStore)(nil)
