package trade

import (
	"time"

	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/domain/shared/valueobject"
)

// OrderHistory is a read-only mirror of a server-confirmed order
type OrderHistory struct {
	shared.BaseEntity
	shared.AuditTimestamps
	shared.SyncStamp
	UserID          string
	ClientID        string
	OrderNumber     string
	Status          string
	Subtotal        valueobject.Money
	Tax             valueobject.Money
	Total           valueobject.Money
	Notes           string
	CustomerName    string
	CustomerContact string
	CustomerNote    string
	Items           []OrderHistoryItem
}

// OrderHistoryItem is a line of a confirmed order
type OrderHistoryItem struct {
	shared.BaseEntity
	OrderID      string
	ProductID    string
	ProductName  string
	Quantity     int
	PricePerUnit valueobject.Money
	Subtotal     valueobject.Money
	CustomText   string
	CustomSelect string
}

// Stamp sets the local sync time on the order
func (o *OrderHistory) Stamp(at time.Time) {
	o.Touch(at)
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}
}
