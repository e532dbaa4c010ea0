package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/fieldsales/vendorsync/internal/domain/partner"
	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormClientRepository implements partner.ClientRepository using GORM
type GormClientRepository struct {
	db *gorm.DB
}

// NewGormClientRepository creates a new GormClientRepository
func NewGormClientRepository(db *gorm.DB) *GormClientRepository {
	return &GormClientRepository{db: db}
}

// Upsert writes the full client row, replacing any previous version
func (r *GormClientRepository) Upsert(ctx context.Context, client *partner.Client) error {
	if client.ID == "" {
		return shared.NewDomainError("INVALID_CLIENT_ID", "Client ID cannot be empty")
	}
	model := models.ClientModelFromDomain(client)
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(model).Error; err != nil {
		return fmt.Errorf("upsert client %s: %w", client.ID, err)
	}
	return nil
}

// CreateLocal stores a client captured on the device. It fails with
// ErrAlreadyExists rather than overwriting.
func (r *GormClientRepository) CreateLocal(ctx context.Context, client *partner.Client) error {
	if !client.IsLocal() {
		return shared.NewDomainError("INVALID_CLIENT_ID", "Local clients must use the local_ prefix")
	}
	model := models.ClientModelFromDomain(client)
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrAlreadyExists
	}
	return nil
}

// FindByID finds a client by its ID
func (r *GormClientRepository) FindByID(ctx context.Context, id string) (*partner.Client, error) {
	var model models.ClientModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActive lists active clients ordered by company name. An empty
// vendorID lists every vendor's clients.
func (r *GormClientRepository) FindActive(ctx context.Context, vendorID string) ([]partner.Client, error) {
	query := r.db.WithContext(ctx).Model(&models.ClientModel{}).
		Where("COALESCE(is_active, 1) = 1")
	if vendorID != "" {
		query = query.Where("assigned_vendor_id = ? OR assigned_vendor_id IS NULL OR assigned_vendor_id = ''", vendorID)
	}

	var rows []models.ClientModel
	if err := query.Order("COALESCE(NULLIF(company_name, ''), name)").Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}

	clients := make([]partner.Client, len(rows))
	for i := range rows {
		clients[i] = *rows[i].ToDomain()
	}
	return clients, nil
}

// Count returns the number of stored clients
func (r *GormClientRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ClientModel{}).Count(&count).Error
	return count, err
}

var _ partner.ClientRepository = (*GormClientRepository)(nil)
