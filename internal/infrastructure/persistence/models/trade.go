package models

import (
	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/domain/shared/valueobject"
	"github.com/fieldsales/vendorsync/internal/domain/trade"
)

// PendingOrderModel is the persistence model for a locally created order
type PendingOrderModel struct {
	ID           string            `gorm:"column:id;primaryKey"`
	ClientID     string            `gorm:"column:client_id"`
	CustomerNote string            `gorm:"column:customer_note"`
	Subtotal     valueobject.Money `gorm:"column:subtotal;type:text;not null"`
	Tax          valueobject.Money `gorm:"column:tax;type:text;not null"`
	Total        valueobject.Money `gorm:"column:total;type:text;not null"`
	CreatedAt    string            `gorm:"column:created_at;not null"`
	Synced       bool              `gorm:"column:synced"`
}

// TableName returns the table name for GORM
func (PendingOrderModel) TableName() string {
	return "pending_orders"
}

// ToDomain converts the persistence model to a domain PendingOrder
func (m *PendingOrderModel) ToDomain() *trade.PendingOrder {
	return &trade.PendingOrder{
		BaseEntity:   shared.BaseEntity{ID: m.ID},
		ClientID:     m.ClientID,
		CustomerNote: m.CustomerNote,
		Subtotal:     m.Subtotal,
		Tax:          m.Tax,
		Total:        m.Total,
		CreatedAt:    m.CreatedAt,
		Synced:       m.Synced,
	}
}

// PendingOrderModelFromDomain creates a new PendingOrderModel from a domain order
func PendingOrderModelFromDomain(o *trade.PendingOrder) *PendingOrderModel {
	return &PendingOrderModel{
		ID:           o.ID,
		ClientID:     o.ClientID,
		CustomerNote: o.CustomerNote,
		Subtotal:     o.Subtotal,
		Tax:          o.Tax,
		Total:        o.Total,
		CreatedAt:    o.CreatedAt,
		Synced:       o.Synced,
	}
}

// PendingOrderItemModel is a line of a pending order
type PendingOrderItemModel struct {
	ID           string            `gorm:"column:id;primaryKey"`
	OrderID      string            `gorm:"column:order_id;not null"`
	ProductID    string            `gorm:"column:product_id;not null"`
	ProductName  string            `gorm:"column:product_name;not null"`
	Quantity     int               `gorm:"column:quantity;not null"`
	PricePerUnit valueobject.Money `gorm:"column:price_per_unit;type:text;not null"`
}

// TableName returns the table name for GORM
func (PendingOrderItemModel) TableName() string {
	return "pending_order_items"
}

// ToDomain converts the row to a domain line item
func (m *PendingOrderItemModel) ToDomain() trade.PendingOrderItem {
	return trade.PendingOrderItem{
		BaseEntity:   shared.BaseEntity{ID: m.ID},
		OrderID:      m.OrderID,
		ProductID:    m.ProductID,
		ProductName:  m.ProductName,
		Quantity:     m.Quantity,
		PricePerUnit: m.PricePerUnit,
	}
}

// PendingOrderItemModelsFromDomain maps an order's lines to rows
func PendingOrderItemModelsFromDomain(o *trade.PendingOrder) []PendingOrderItemModel {
	rows := make([]PendingOrderItemModel, 0, len(o.Items))
	for _, item := range o.Items {
		rows = append(rows, PendingOrderItemModel{
			ID:           item.ID,
			OrderID:      o.ID,
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			Quantity:     item.Quantity,
			PricePerUnit: item.PricePerUnit,
		})
	}
	return rows
}

// OrderHistoryModel is the persistence model for a server-confirmed order
type OrderHistoryModel struct {
	ID              string            `gorm:"column:id;primaryKey"`
	UserID          string            `gorm:"column:user_id"`
	ClientID        string            `gorm:"column:client_id"`
	OrderNumber     string            `gorm:"column:order_number"`
	Status          string            `gorm:"column:status"`
	Subtotal        valueobject.Money `gorm:"column:subtotal;type:text;not null"`
	Tax             valueobject.Money `gorm:"column:tax;type:text;not null"`
	Total           valueobject.Money `gorm:"column:total;type:text;not null"`
	Notes           string            `gorm:"column:notes"`
	CustomerName    string            `gorm:"column:customer_name"`
	CustomerContact string            `gorm:"column:customer_contact"`
	CustomerNote    string            `gorm:"column:customer_note"`
	CreatedAt       string            `gorm:"column:created_at"`
	UpdatedAt       string            `gorm:"column:updated_at"`
	SyncedAt        string            `gorm:"column:synced_at"`
}

// TableName returns the table name for GORM
func (OrderHistoryModel) TableName() string {
	return "order_history"
}

// ToDomain converts the persistence model to a domain OrderHistory
func (m *OrderHistoryModel) ToDomain() *trade.OrderHistory {
	return &trade.OrderHistory{
		BaseEntity: shared.BaseEntity{ID: m.ID},
		AuditTimestamps: shared.AuditTimestamps{
			CreatedAt: parseTime(m.CreatedAt),
			UpdatedAt: parseTime(m.UpdatedAt),
		},
		SyncStamp:       shared.SyncStamp{SyncedAt: parseTime(m.SyncedAt)},
		UserID:          m.UserID,
		ClientID:        m.ClientID,
		OrderNumber:     m.OrderNumber,
		Status:          m.Status,
		Subtotal:        m.Subtotal,
		Tax:             m.Tax,
		Total:           m.Total,
		Notes:           m.Notes,
		CustomerName:    m.CustomerName,
		CustomerContact: m.CustomerContact,
		CustomerNote:    m.CustomerNote,
	}
}

// OrderHistoryModelFromDomain creates a new OrderHistoryModel from a domain order
func OrderHistoryModelFromDomain(o *trade.OrderHistory) *OrderHistoryModel {
	return &OrderHistoryModel{
		ID:              o.ID,
		UserID:          o.UserID,
		ClientID:        o.ClientID,
		OrderNumber:     o.OrderNumber,
		Status:          o.Status,
		Subtotal:        o.Subtotal,
		Tax:             o.Tax,
		Total:           o.Total,
		Notes:           o.Notes,
		CustomerName:    o.CustomerName,
		CustomerContact: o.CustomerContact,
		CustomerNote:    o.CustomerNote,
		CreatedAt:       formatTime(o.CreatedAt),
		UpdatedAt:       formatTime(o.UpdatedAt),
		SyncedAt:        formatTime(o.SyncedAt),
	}
}

// OrderHistoryItemModel is a line of a confirmed order
type OrderHistoryItemModel struct {
	ID           string            `gorm:"column:id;primaryKey"`
	OrderID      string            `gorm:"column:order_id;not null"`
	ProductID    string            `gorm:"column:product_id;not null"`
	ProductName  string            `gorm:"column:product_name"`
	Quantity     int               `gorm:"column:quantity;not null"`
	PricePerUnit valueobject.Money `gorm:"column:price_per_unit;type:text;not null"`
	Subtotal     valueobject.Money `gorm:"column:subtotal;type:text;not null"`
	CustomText   string            `gorm:"column:custom_text"`
	CustomSelect string            `gorm:"column:custom_select"`
}

// TableName returns the table name for GORM
func (OrderHistoryItemModel) TableName() string {
	return "order_history_items"
}

// ToDomain converts the row to a domain line item
func (m *OrderHistoryItemModel) ToDomain() trade.OrderHistoryItem {
	return trade.OrderHistoryItem{
		BaseEntity:   shared.BaseEntity{ID: m.ID},
		OrderID:      m.OrderID,
		ProductID:    m.ProductID,
		ProductName:  m.ProductName,
		Quantity:     m.Quantity,
		PricePerUnit: m.PricePerUnit,
		Subtotal:     m.Subtotal,
		CustomText:   m.CustomText,
		CustomSelect: m.CustomSelect,
	}
}

// OrderHistoryItemModelsFromDomain maps a confirmed order's lines to rows
func OrderHistoryItemModelsFromDomain(o *trade.OrderHistory) []OrderHistoryItemModel {
	rows := make([]OrderHistoryItemModel, 0, len(o.Items))
	for _, item := range o.Items {
		rows = append(rows, OrderHistoryItemModel{
			ID:           item.ID,
			OrderID:      o.ID,
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			Quantity:     item.Quantity,
			PricePerUnit: item.PricePerUnit,
			Subtotal:     item.Subtotal,
			CustomText:   item.CustomText,
			CustomSelect: item.CustomSelect,
		})
	}
	return rows
}
