package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fieldsales/vendorsync/internal/domain/catalog"
	"github.com/fieldsales/vendorsync/internal/domain/partner"
	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/domain/shared/valueobject"
	"github.com/fieldsales/vendorsync/internal/domain/trade"
)

// Procedure names exposed by the sync server
const (
	ProcLogin           = "vendorAuth.login"
	ProcGetCatalog      = "sync.getCatalog"
	ProcGetChanges      = "sync.getChanges"
	ProcGetClients      = "sync.getClients"
	ProcGetOrderHistory = "sync.getOrderHistory"
	ProcUploadOrders    = "sync.uploadOrders"
	ProcGetStatus       = "sync.getStatus"
)

// FlexibleID decodes an identifier sent either as a JSON string or number
type FlexibleID string

// UnmarshalJSON implements json.Unmarshaler
func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*id = FlexibleID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = FlexibleID(n.String())
	return nil
}

func (id FlexibleID) String() string {
	return string(id)
}

// CatalogInput is the input of getCatalog and getChanges
type CatalogInput struct {
	LastSyncTimestamp string `json:"lastSyncTimestamp,omitempty"`
}

// WirePricing is a per-tier price as sent by the server
type WirePricing struct {
	PriceType       string            `json:"priceType"`
	Price           valueobject.Money `json:"price"`
	MinimumQuantity int               `json:"minimumQuantity"`
}

// WireProduct is a catalog entry as sent by the server
type WireProduct struct {
	ID              FlexibleID        `json:"id"`
	SKU             string            `json:"sku"`
	Name            string            `json:"name"`
	Description     string            `json:"description"`
	Category        string            `json:"category"`
	Subcategory     string            `json:"subcategory"`
	Image           string            `json:"image"`
	BasePrice       valueobject.Money `json:"basePrice"`
	Price           valueobject.Money `json:"price"`
	Stock           int               `json:"stock"`
	MinimumQuantity int               `json:"minimumQuantity"`
	IsActive        *bool             `json:"isActive,omitempty"`
	CustomFields    map[string]any    `json:"customFields,omitempty"`
	PricingByType   []WirePricing     `json:"pricingByType,omitempty"`
	UpdatedAt       string            `json:"updatedAt"`
}

// ToDomain converts the wire product, stamping syncedAt. Tiers with an
// unknown price type are dropped.
func (w WireProduct) ToDomain(syncedAt time.Time) *catalog.Product {
	p := &catalog.Product{
		BaseEntity:      shared.BaseEntity{ID: w.ID.String()},
		SyncStamp:       shared.SyncStamp{SyncedAt: syncedAt},
		SKU:             w.SKU,
		Name:            w.Name,
		Description:     w.Description,
		Category:        w.Category,
		Subcategory:     w.Subcategory,
		Image:           w.Image,
		BasePrice:       w.BasePrice,
		Price:           w.Price,
		Stock:           w.Stock,
		MinimumQuantity: w.MinimumQuantity,
		IsActive:        w.IsActive == nil || *w.IsActive,
		CustomFields:    w.CustomFields,
		UpdatedAt:       parseWireTime(w.UpdatedAt),
	}
	for _, tier := range w.PricingByType {
		priceType := catalog.PriceType(strings.ToLower(strings.TrimSpace(tier.PriceType)))
		if !priceType.IsValid() {
			continue
		}
		p.Pricing = append(p.Pricing, catalog.PricingByType{
			ProductID:       p.ID,
			PriceType:       priceType,
			Price:           tier.Price,
			MinimumQuantity: tier.MinimumQuantity,
		})
	}
	return p
}

// CatalogResponse is the payload of getCatalog and getChanges
type CatalogResponse struct {
	Success       bool          `json:"success"`
	Timestamp     string        `json:"timestamp"`
	Products      []WireProduct `json:"products"`
	TotalProducts int           `json:"totalProducts"`
}

// WireClient is a client as sent by the server
type WireClient struct {
	ID               FlexibleID `json:"id"`
	Name             string     `json:"name"`
	CompanyName      string     `json:"companyName"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone"`
	Address          string     `json:"address"`
	City             string     `json:"city"`
	State            string     `json:"state"`
	ZipCode          string     `json:"zipCode"`
	ClientNumber     string     `json:"clientNumber"`
	PriceType        string     `json:"priceType"`
	AssignedVendorID FlexibleID `json:"assignedVendorId"`
	IsActive         *bool      `json:"isActive,omitempty"`
	CreatedAt        string     `json:"createdAt"`
	UpdatedAt        string     `json:"updatedAt"`
}

// ToDomain converts the wire client, stamping syncedAt
func (w WireClient) ToDomain(syncedAt time.Time) *partner.Client {
	return &partner.Client{
		BaseEntity: shared.BaseEntity{ID: w.ID.String()},
		AuditTimestamps: shared.AuditTimestamps{
			CreatedAt: parseWireTime(w.CreatedAt),
			UpdatedAt: parseWireTime(w.UpdatedAt),
		},
		SyncStamp:        shared.SyncStamp{SyncedAt: syncedAt},
		Name:             w.Name,
		CompanyName:      w.CompanyName,
		Email:            w.Email,
		Phone:            w.Phone,
		Address:          w.Address,
		City:             w.City,
		State:            w.State,
		ZipCode:          w.ZipCode,
		ClientNumber:     w.ClientNumber,
		PriceType:        catalog.ParsePriceType(w.PriceType),
		AssignedVendorID: w.AssignedVendorID.String(),
		IsActive:         w.IsActive == nil || *w.IsActive,
	}
}

// ClientsResponse is the payload of getClients
type ClientsResponse struct {
	Success bool         `json:"success"`
	Clients []WireClient `json:"clients"`
}

// HistoryInput is the input of getOrderHistory
type HistoryInput struct {
	Limit int `json:"limit,omitempty"`
}

// WireHistoryItem is a line of a confirmed order
type WireHistoryItem struct {
	ID           FlexibleID        `json:"id"`
	ProductID    FlexibleID        `json:"productId"`
	ProductName  string            `json:"productName"`
	Quantity     int               `json:"quantity"`
	PricePerUnit valueobject.Money `json:"pricePerUnit"`
	Subtotal     valueobject.Money `json:"subtotal"`
	CustomText   string            `json:"customText"`
	CustomSelect string            `json:"customSelect"`
}

// WireHistoryOrder is a confirmed order as sent by the server
type WireHistoryOrder struct {
	ID              FlexibleID        `json:"id"`
	UserID          FlexibleID        `json:"userId"`
	ClientID        FlexibleID        `json:"clientId"`
	OrderNumber     string            `json:"orderNumber"`
	Status          string            `json:"status"`
	Subtotal        valueobject.Money `json:"subtotal"`
	Tax             valueobject.Money `json:"tax"`
	Total           valueobject.Money `json:"total"`
	Notes           string            `json:"notes"`
	CustomerName    string            `json:"customerName"`
	CustomerContact string            `json:"customerContact"`
	CustomerNote    string            `json:"customerNote"`
	CreatedAt       string            `json:"createdAt"`
	UpdatedAt       string            `json:"updatedAt"`
	Items           []WireHistoryItem `json:"items"`
}

// ToDomain converts the wire order and its items, stamping syncedAt.
// Items without an id get one derived from the order id and position.
func (w WireHistoryOrder) ToDomain(syncedAt time.Time) *trade.OrderHistory {
	o := &trade.OrderHistory{
		BaseEntity: shared.BaseEntity{ID: w.ID.String()},
		AuditTimestamps: shared.AuditTimestamps{
			CreatedAt: parseWireTime(w.CreatedAt),
			UpdatedAt: parseWireTime(w.UpdatedAt),
		},
		UserID:          w.UserID.String(),
		ClientID:        w.ClientID.String(),
		OrderNumber:     w.OrderNumber,
		Status:          w.Status,
		Subtotal:        w.Subtotal,
		Tax:             w.Tax,
		Total:           w.Total,
		Notes:           w.Notes,
		CustomerName:    w.CustomerName,
		CustomerContact: w.CustomerContact,
		CustomerNote:    w.CustomerNote,
		Items:           make([]trade.OrderHistoryItem, 0, len(w.Items)),
	}
	for i, item := range w.Items {
		id := item.ID.String()
		if id == "" {
			id = fmt.Sprintf("%s-%d", o.ID, i+1)
		}
		o.Items = append(o.Items, trade.OrderHistoryItem{
			BaseEntity:   shared.BaseEntity{ID: id},
			ProductID:    item.ProductID.String(),
			ProductName:  item.ProductName,
			Quantity:     item.Quantity,
			PricePerUnit: item.PricePerUnit,
			Subtotal:     item.Subtotal,
			CustomText:   item.CustomText,
			CustomSelect: item.CustomSelect,
		})
	}
	o.Stamp(syncedAt)
	return o
}

// OrderHistoryResponse is the payload of getOrderHistory. A missing success
// flag counts as success.
type OrderHistoryResponse struct {
	Success *bool              `json:"success"`
	Orders  []WireHistoryOrder `json:"orders"`
}

// OK reports whether the server signalled success
func (r OrderHistoryResponse) OK() bool {
	return r.Success == nil || *r.Success
}

// UploadItem is one line of an uploaded order
type UploadItem struct {
	ProductID    string            `json:"productId" validate:"required"`
	Quantity     int               `json:"quantity" validate:"gt=0"`
	PricePerUnit valueobject.Money `json:"pricePerUnit"`
}

// UploadOrder is a pending order in upload form. CreatedAtOffline is the
// key the server deduplicates re-sent orders by.
type UploadOrder struct {
	ClientID         string       `json:"clientId,omitempty"`
	CustomerNote     string       `json:"customerNote,omitempty"`
	Items            []UploadItem `json:"items" validate:"required,min=1,dive"`
	CreatedAtOffline string       `json:"createdAtOffline" validate:"required"`
}

// UploadOrderFrom converts a pending order with its items
func UploadOrderFrom(o trade.PendingOrder) UploadOrder {
	u := UploadOrder{
		ClientID:         o.ClientID,
		CustomerNote:     o.CustomerNote,
		CreatedAtOffline: o.CreatedAt,
		Items:            make([]UploadItem, 0, len(o.Items)),
	}
	for _, item := range o.Items {
		u.Items = append(u.Items, UploadItem{
			ProductID:    item.ProductID,
			Quantity:     item.Quantity,
			PricePerUnit: item.PricePerUnit,
		})
	}
	return u
}

// UploadOrdersRequest is the input of uploadOrders
type UploadOrdersRequest struct {
	Orders []UploadOrder `json:"orders" validate:"required,min=1,dive"`
}

// UploadResult acknowledges one order
type UploadResult struct {
	Success          bool       `json:"success"`
	OrderID          FlexibleID `json:"orderId,omitempty"`
	CreatedAtOffline string     `json:"createdAtOffline"`
}

// UploadFailure reports one order the server did not accept
type UploadFailure struct {
	Success          bool   `json:"success"`
	Error            string `json:"error"`
	CreatedAtOffline string `json:"createdAtOffline"`
}

// UploadOrdersResponse is the payload of uploadOrders
type UploadOrdersResponse struct {
	Success  bool            `json:"success"`
	Uploaded int             `json:"uploaded"`
	Failed   int             `json:"failed"`
	Results  []UploadResult  `json:"results"`
	Errors   []UploadFailure `json:"errors"`
}

// Acknowledged returns the creation keys of the orders the server accepted
func (r UploadOrdersResponse) Acknowledged() []string {
	keys := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		if res.Success && res.CreatedAtOffline != "" {
			keys = append(keys, res.CreatedAtOffline)
		}
	}
	return keys
}

// User is the vendor identity returned by login and getStatus
type User struct {
	ID       FlexibleID `json:"id"`
	Username string     `json:"username,omitempty"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Role     string     `json:"role"`
}

// StatusResponse is the payload of getStatus
type StatusResponse struct {
	Success bool   `json:"success"`
	Time    string `json:"timestamp"`
	User    User   `json:"user"`
	Catalog struct {
		TotalProducts int    `json:"totalProducts"`
		LastUpdate    string `json:"lastUpdate"`
	} `json:"catalog"`
	PendingOrders int `json:"pendingOrders"`
}

// LoginRequest is the input of vendorAuth.login
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the payload of vendorAuth.login
type LoginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Token   string `json:"token,omitempty"`
	User    User   `json:"user"`
}

func parseWireTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := shared.ParseTimestamp(s)
	if err != nil {
		return time.Time{}
	}
	return t
}
