package models

import (
	"github.com/fieldsales/vendorsync/internal/domain/catalog"
	"github.com/fieldsales/vendorsync/internal/domain/partner"
	"github.com/fieldsales/vendorsync/internal/domain/shared"
)

// ClientModel is the persistence model for the Client domain entity
type ClientModel struct {
	ID               string `gorm:"column:id;primaryKey"`
	Name             string `gorm:"column:name"`
	CompanyName      string `gorm:"column:company_name"`
	Email            string `gorm:"column:email"`
	Phone            string `gorm:"column:phone"`
	Address          string `gorm:"column:address"`
	City             string `gorm:"column:city"`
	State            string `gorm:"column:state"`
	ZipCode          string `gorm:"column:zip_code"`
	ClientNumber     string `gorm:"column:client_number"`
	PriceType        string `gorm:"column:price_type"`
	AssignedVendorID string `gorm:"column:assigned_vendor_id"`
	IsActive         bool   `gorm:"column:is_active"`
	CreatedAt        string `gorm:"column:created_at"`
	UpdatedAt        string `gorm:"column:updated_at"`
	SyncedAt         string `gorm:"column:synced_at"`
}

// TableName returns the table name for GORM
func (ClientModel) TableName() string {
	return "clients"
}

// ToDomain converts the persistence model to a domain Client
func (m *ClientModel) ToDomain() *partner.Client {
	return &partner.Client{
		BaseEntity: shared.BaseEntity{ID: m.ID},
		AuditTimestamps: shared.AuditTimestamps{
			CreatedAt: parseTime(m.CreatedAt),
			UpdatedAt: parseTime(m.UpdatedAt),
		},
		SyncStamp:        shared.SyncStamp{SyncedAt: parseTime(m.SyncedAt)},
		Name:             m.Name,
		CompanyName:      m.CompanyName,
		Email:            m.Email,
		Phone:            m.Phone,
		Address:          m.Address,
		City:             m.City,
		State:            m.State,
		ZipCode:          m.ZipCode,
		ClientNumber:     m.ClientNumber,
		PriceType:        catalog.ParsePriceType(m.PriceType),
		AssignedVendorID: m.AssignedVendorID,
		IsActive:         m.IsActive,
	}
}

// FromDomain populates the persistence model from a domain Client
func (m *ClientModel) FromDomain(c *partner.Client) {
	m.ID = c.ID
	m.Name = c.Name
	m.CompanyName = c.CompanyName
	m.Email = c.Email
	m.Phone = c.Phone
	m.Address = c.Address
	m.City = c.City
	m.State = c.State
	m.ZipCode = c.ZipCode
	m.ClientNumber = c.ClientNumber
	m.PriceType = string(c.EffectivePriceType())
	m.AssignedVendorID = c.AssignedVendorID
	m.IsActive = c.IsActive
	m.CreatedAt = formatTime(c.CreatedAt)
	m.UpdatedAt = formatTime(c.UpdatedAt)
	m.SyncedAt = formatTime(c.SyncedAt)
}

// ClientModelFromDomain creates a new ClientModel from a domain Client
func ClientModelFromDomain(c *partner.Client) *ClientModel {
	m := &ClientModel{}
	m.FromDomain(c)
	return m
}
