package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/fieldsales/vendorsync/internal/domain/catalog"
	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProductRepository implements catalog.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// Upsert overwrites every column of the product row and replaces its tier
// prices. The row is updated in place, so nothing referencing it cascades.
func (r *GormProductRepository) Upsert(ctx context.Context, product *catalog.Product) error {
	if err := product.Validate(); err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := models.ProductModelFromDomain(product)
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(model).Error; err != nil {
			return fmt.Errorf("upsert product %s: %w", product.ID, err)
		}

		if err := tx.Where("product_id = ?", product.ID).Delete(&models.PricingModel{}).Error; err != nil {
			return fmt.Errorf("clear pricing for %s: %w", product.ID, err)
		}
		if tiers := models.PricingModelsFromDomain(product); len(tiers) > 0 {
			if err := tx.Create(&tiers).Error; err != nil {
				return fmt.Errorf("insert pricing for %s: %w", product.ID, err)
			}
		}
		return nil
	})
}

// FindByID finds a product by its ID, including tier prices
func (r *GormProductRepository) FindByID(ctx context.Context, id string) (*catalog.Product, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	product := model.ToDomain()
	pricing, err := r.pricingFor(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	product.Pricing = pricing[id]
	return product, nil
}

// FindAll lists products matching the filter, tier prices included
func (r *GormProductRepository) FindAll(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, error) {
	query := r.db.WithContext(ctx).Model(&models.ProductModel{})

	if filter.ActiveOnly {
		query = query.Where("COALESCE(is_active, 1) = 1")
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		query = query.Where(
			`(fold(COALESCE(name, '')) LIKE ? ESCAPE '\' OR fold(COALESCE(sku, '')) LIKE ? ESCAPE '\' OR fold(COALESCE(description, '')) LIKE ? ESCAPE '\')`,
			pattern, pattern, pattern,
		)
	}

	query = query.Order(productOrder(filter.OrderBy, filter.OrderDir)).Order("id")

	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.ProductModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	pricing, err := r.pricingFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	products := make([]catalog.Product, len(rows))
	for i := range rows {
		products[i] = *rows[i].ToDomain()
		products[i].Pricing = pricing[rows[i].ID]
	}
	return products, nil
}

// Categories returns the distinct non-empty categories in name order
func (r *GormProductRepository) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	err := r.db.WithContext(ctx).Model(&models.ProductModel{}).
		Where("category IS NOT NULL AND category <> ''").
		Distinct().Order("category").
		Pluck("category", &categories).Error
	return categories, err
}

// ImageURLs returns every distinct non-empty image reference
func (r *GormProductRepository) ImageURLs(ctx context.Context) ([]string, error) {
	var urls []string
	err := r.db.WithContext(ctx).Model(&models.ProductModel{}).
		Where("image IS NOT NULL AND image <> ''").
		Distinct().Order("image").
		Pluck("image", &urls).Error
	return urls, err
}

// Count returns the number of stored products
func (r *GormProductRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProductModel{}).Count(&count).Error
	return count, err
}

func (r *GormProductRepository) pricingFor(ctx context.Context, ids []string) (map[string][]catalog.PricingByType, error) {
	result := make(map[string][]catalog.PricingByType, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var rows []models.PricingModel
	if err := r.db.WithContext(ctx).
		Where("product_id IN ?", ids).
		Order("product_id, price_type").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		result[rows[i].ProductID] = append(result[rows[i].ProductID], rows[i].ToDomain())
	}
	return result, nil
}

var _ catalog.ProductRepository = (*GormProductRepository)(nil)
