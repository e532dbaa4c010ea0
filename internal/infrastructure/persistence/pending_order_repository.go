package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/domain/trade"
	"github.com/fieldsales/vendorsync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPendingOrderRepository implements trade.PendingOrderRepository using GORM
type GormPendingOrderRepository struct {
	db *gorm.DB
}

// NewGormPendingOrderRepository creates a new GormPendingOrderRepository
func NewGormPendingOrderRepository(db *gorm.DB) *GormPendingOrderRepository {
	return &GormPendingOrderRepository{db: db}
}

// Create stores the order and its items in one transaction
func (r *GormPendingOrderRepository) Create(ctx context.Context, order *trade.PendingOrder) error {
	if len(order.Items) == 0 {
		return shared.ErrEmptyCart
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(models.PendingOrderModelFromDomain(order)).Error; err != nil {
			return fmt.Errorf("insert pending order %s: %w", order.ID, err)
		}
		items := models.PendingOrderItemModelsFromDomain(order)
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("insert items of %s: %w", order.ID, err)
		}
		return nil
	})
}

// FindByID loads an order with its items
func (r *GormPendingOrderRepository) FindByID(ctx context.Context, id string) (*trade.PendingOrder, error) {
	var model models.PendingOrderModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	orders, err := r.withItems(ctx, []models.PendingOrderModel{model})
	if err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// FindUnsynced returns every order with synced=0, items included, oldest first
func (r *GormPendingOrderRepository) FindUnsynced(ctx context.Context) ([]trade.PendingOrder, error) {
	var rows []models.PendingOrderModel
	if err := r.db.WithContext(ctx).
		Where("COALESCE(synced, 0) = 0").
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.withItems(ctx, rows)
}

// FindAll returns every order, newest first, without items
func (r *GormPendingOrderRepository) FindAll(ctx context.Context) ([]trade.PendingOrder, error) {
	var rows []models.PendingOrderModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	orders := make([]trade.PendingOrder, len(rows))
	for i := range rows {
		orders[i] = *rows[i].ToDomain()
	}
	return orders, nil
}

// MarkSyncedByCreatedAt flips synced 0->1 for the order created at the
// given key. A row already at 1 is left alone and reported as unchanged.
func (r *GormPendingOrderRepository) MarkSyncedByCreatedAt(ctx context.Context, createdAt string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.PendingOrderModel{}).
		Where("created_at = ? AND COALESCE(synced, 0) = 0", createdAt).
		Update("synced", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// LatestCreatedAt returns MAX(created_at). Keys share one fixed-width UTC
// layout, so the text maximum is the latest time.
func (r *GormPendingOrderRepository) LatestCreatedAt(ctx context.Context) (string, error) {
	var latest sql.NullString
	err := r.db.WithContext(ctx).Model(&models.PendingOrderModel{}).
		Select("MAX(created_at)").
		Scan(&latest).Error
	if err != nil {
		return "", err
	}
	return latest.String, nil
}

// CountUnsynced returns the number of orders awaiting upload
func (r *GormPendingOrderRepository) CountUnsynced(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PendingOrderModel{}).
		Where("COALESCE(synced, 0) = 0").
		Count(&count).Error
	return count, err
}

// Delete removes an order and its items. Items are deleted explicitly as
// well, for stores opened without foreign key enforcement.
func (r *GormPendingOrderRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.PendingOrderItemModel{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.PendingOrderModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func (r *GormPendingOrderRepository) withItems(ctx context.Context, rows []models.PendingOrderModel) ([]trade.PendingOrder, error) {
	orders := make([]trade.PendingOrder, len(rows))
	if len(rows) == 0 {
		return orders, nil
	}

	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	var items []models.PendingOrderItemModel
	if err := r.db.WithContext(ctx).Where("order_id IN ?", ids).Order("rowid").Find(&items).Error; err != nil {
		return nil, err
	}
	byOrder := make(map[string][]trade.PendingOrderItem, len(rows))
	for i := range items {
		byOrder[items[i].OrderID] = append(byOrder[items[i].OrderID], items[i].ToDomain())
	}

	for i := range rows {
		orders[i] = *rows[i].ToDomain()
		orders[i].Items = byOrder[rows[i].ID]
	}
	return orders, nil
}

var _ trade.PendingOrderRepository = (*GormPendingOrderRepository)(nil)
