package trade

import (
	"strings"
	"time"

	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// PendingOrder is an order created on the device that the server has not
// acknowledged yet. CreatedAt doubles as the idempotency key the server
// uses to recognize re-sent uploads, so it must be unique per order.
type PendingOrder struct {
	shared.BaseEntity
	ClientID     string
	CustomerNote string
	Subtotal     valueobject.Money
	Tax          valueobject.Money
	Total        valueobject.Money
	CreatedAt    string
	Synced       bool
	Items        []PendingOrderItem
}

// PendingOrderItem is a line snapshot. ProductName and PricePerUnit are
// copied at checkout and never follow later catalog changes.
type PendingOrderItem struct {
	shared.BaseEntity
	OrderID      string
	ProductID    string
	ProductName  string
	Quantity     int
	PricePerUnit valueobject.Money
}

// LineDraft is the input for one line of a new pending order
type LineDraft struct {
	ProductID    string
	ProductName  string
	Quantity     int
	PricePerUnit valueobject.Money
}

// NewPendingOrderID returns an identifier for a locally created order
func NewPendingOrderID() string {
	return "order_" + uuid.NewString()
}

// NewPendingOrder builds an unsynced order from line drafts. Totals are
// computed here so the stored row and its items always agree.
func NewPendingOrder(clientID, note string, lines []LineDraft, tax valueobject.Money, createdAt time.Time) (*PendingOrder, error) {
	if len(lines) == 0 {
		return nil, shared.ErrEmptyCart
	}

	order := &PendingOrder{
		BaseEntity:   shared.BaseEntity{ID: NewPendingOrderID()},
		ClientID:     strings.TrimSpace(clientID),
		CustomerNote: strings.TrimSpace(note),
		Tax:          tax,
		CreatedAt:    shared.FormatTimestamp(createdAt),
	}

	subtotal := valueobject.Zero()
	order.Items = make([]PendingOrderItem, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, shared.ErrInvalidQuantity
		}
		if strings.TrimSpace(line.ProductID) == "" {
			return nil, shared.NewDomainError("INVALID_PRODUCT_ID", "Product ID cannot be empty")
		}
		item := PendingOrderItem{
			BaseEntity:   shared.BaseEntity{ID: uuid.NewString()},
			OrderID:      order.ID,
			ProductID:    line.ProductID,
			ProductName:  line.ProductName,
			Quantity:     line.Quantity,
			PricePerUnit: line.PricePerUnit,
		}
		subtotal = subtotal.Add(item.LineTotal())
		order.Items = append(order.Items, item)
	}

	order.Subtotal = subtotal
	order.Total = subtotal.Add(tax)
	return order, nil
}

// LineTotal returns price times quantity for the line
func (i PendingOrderItem) LineTotal() valueobject.Money {
	return i.PricePerUnit.MultiplyByInt(int64(i.Quantity))
}

// MarkSynced records server acknowledgment. The flag only moves forward.
func (o *PendingOrder) MarkSynced() {
	o.Synced = true
}

// ItemCount returns the total units across all lines
func (o *PendingOrder) ItemCount() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}
