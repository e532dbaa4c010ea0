package models

import (
	"github.com/fieldsales/vendorsync/internal/domain/catalog"
	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/domain/shared/valueobject"
	"gorm.io/datatypes"
)

// ProductModel is the persistence model for the Product domain entity
type ProductModel struct {
	ID              string            `gorm:"column:id;primaryKey"`
	SKU             string            `gorm:"column:sku;not null"`
	Name            string            `gorm:"column:name;not null"`
	Description     string            `gorm:"column:description"`
	Category        string            `gorm:"column:category"`
	Subcategory     string            `gorm:"column:subcategory"`
	Image           string            `gorm:"column:image"`
	BasePrice       valueobject.Money `gorm:"column:base_price;type:text;not null"`
	Price           valueobject.Money `gorm:"column:price;type:text;not null"`
	Stock           int               `gorm:"column:stock"`
	MinimumQuantity int               `gorm:"column:minimum_quantity"`
	IsActive        bool              `gorm:"column:is_active"`
	CustomFields    datatypes.JSONMap `gorm:"column:custom_fields;type:text"`
	UpdatedAt       string            `gorm:"column:updated_at;not null"`
	SyncedAt        string            `gorm:"column:synced_at;not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product. Tier
// prices are loaded separately.
func (m *ProductModel) ToDomain() *catalog.Product {
	p := &catalog.Product{
		BaseEntity:      shared.BaseEntity{ID: m.ID},
		SyncStamp:       shared.SyncStamp{SyncedAt: parseTime(m.SyncedAt)},
		SKU:             m.SKU,
		Name:            m.Name,
		Description:     m.Description,
		Category:        m.Category,
		Subcategory:     m.Subcategory,
		Image:           m.Image,
		BasePrice:       m.BasePrice,
		Price:           m.Price,
		Stock:           m.Stock,
		MinimumQuantity: m.MinimumQuantity,
		IsActive:        m.IsActive,
		UpdatedAt:       parseTime(m.UpdatedAt),
	}
	if len(m.CustomFields) > 0 {
		p.CustomFields = map[string]any(m.CustomFields)
	}
	return p
}

// FromDomain populates the persistence model from a domain Product
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.ID = p.ID
	m.SKU = p.SKU
	m.Name = p.Name
	m.Description = p.Description
	m.Category = p.Category
	m.Subcategory = p.Subcategory
	m.Image = p.Image
	m.BasePrice = p.BasePrice
	m.Price = p.Price
	m.Stock = p.Stock
	m.MinimumQuantity = p.MinimumQuantity
	m.IsActive = p.IsActive
	m.CustomFields = nil
	if len(p.CustomFields) > 0 {
		m.CustomFields = datatypes.JSONMap(p.CustomFields)
	}
	m.UpdatedAt = formatTime(p.UpdatedAt)
	m.SyncedAt = formatTime(p.SyncedAt)
}

// ProductModelFromDomain creates a new ProductModel from a domain Product
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}

// PricingModel is a per-tier price row keyed by (product_id, price_type)
type PricingModel struct {
	ProductID       string            `gorm:"column:product_id;primaryKey"`
	PriceType       string            `gorm:"column:price_type;primaryKey"`
	Price           valueobject.Money `gorm:"column:price;type:text;not null"`
	MinimumQuantity int               `gorm:"column:minimum_quantity"`
}

// TableName returns the table name for GORM
func (PricingModel) TableName() string {
	return "pricing_by_type"
}

// ToDomain converts the row to a domain tier price
func (m *PricingModel) ToDomain() catalog.PricingByType {
	return catalog.PricingByType{
		ProductID:       m.ProductID,
		PriceType:       catalog.PriceType(m.PriceType),
		Price:           m.Price,
		MinimumQuantity: m.MinimumQuantity,
	}
}

// PricingModelsFromDomain maps a product's tiers to rows. When a tier
// repeats, the last entry wins and keeps the position of the first.
func PricingModelsFromDomain(p *catalog.Product) []PricingModel {
	rows := make([]PricingModel, 0, len(p.Pricing))
	index := make(map[catalog.PriceType]int, len(p.Pricing))
	for _, tier := range p.Pricing {
		row := PricingModel{
			ProductID:       p.ID,
			PriceType:       string(tier.PriceType),
			Price:           tier.Price,
			MinimumQuantity: tier.MinimumQuantity,
		}
		if i, seen := index[tier.PriceType]; seen {
			rows[i] = row
			continue
		}
		index[tier.PriceType] = len(rows)
		rows = append(rows, row)
	}
	return rows
}
