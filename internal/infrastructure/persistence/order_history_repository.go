package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/domain/trade"
	"github.com/fieldsales/vendorsync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderHistoryRepository implements trade.OrderHistoryRepository using GORM
type GormOrderHistoryRepository struct {
	db *gorm.DB
}

// NewGormOrderHistoryRepository creates a new GormOrderHistoryRepository
func NewGormOrderHistoryRepository(db *gorm.DB) *GormOrderHistoryRepository {
	return &GormOrderHistoryRepository{db: db}
}

// Upsert overwrites the order row and each of its item rows
func (r *GormOrderHistoryRepository) Upsert(ctx context.Context, order *trade.OrderHistory) error {
	if order.ID == "" {
		return shared.NewDomainError("INVALID_ORDER_ID", "Order ID cannot be empty")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(models.OrderHistoryModelFromDomain(order)).Error; err != nil {
			return fmt.Errorf("upsert order history %s: %w", order.ID, err)
		}

		items := models.OrderHistoryItemModelsFromDomain(order)
		if len(items) == 0 {
			return nil
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&items).Error; err != nil {
			return fmt.Errorf("upsert items of %s: %w", order.ID, err)
		}
		return nil
	})
}

// FindAll returns confirmed orders, newest first, without items. A
// non-positive limit returns every order.
func (r *GormOrderHistoryRepository) FindAll(ctx context.Context, limit int) ([]trade.OrderHistory, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC").Order("id")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.OrderHistoryModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	orders := make([]trade.OrderHistory, len(rows))
	for i := range rows {
		orders[i] = *rows[i].ToDomain()
	}
	return orders, nil
}

// FindByID loads a confirmed order with its items
func (r *GormOrderHistoryRepository) FindByID(ctx context.Context, id string) (*trade.OrderHistory, error) {
	var model models.OrderHistoryModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	var items []models.OrderHistoryItemModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", id).Order("rowid").Find(&items).Error; err != nil {
		return nil, err
	}

	order := model.ToDomain()
	order.Items = make([]trade.OrderHistoryItem, len(items))
	for i := range items {
		order.Items[i] = items[i].ToDomain()
	}
	return order, nil
}

// Count returns the number of mirrored orders
func (r *GormOrderHistoryRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OrderHistoryModel{}).Count(&count).Error
	return count, err
}

var _ trade.OrderHistoryRepository = (*GormOrderHistoryRepository)(nil)
