package devserver

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/fieldsales/vendorsync/internal/domain/catalog"
	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/domain/shared/valueobject"
	"github.com/fieldsales/vendorsync/internal/infrastructure/gateway"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Vendor is a sales account known to the server
type Vendor struct {
	ID       string
	Username string
	Name     string
	Email    string
	Role     string

	passwordHash []byte
}

func (v *Vendor) wire() gateway.User {
	return gateway.User{
		ID:       gateway.FlexibleID(v.ID),
		Username: v.Username,
		Name:     v.Name,
		Email:    v.Email,
		Role:     v.Role,
	}
}

// Dataset is the in-memory state served by the contract server
type Dataset struct {
	mu sync.RWMutex

	vendors  map[string]*Vendor
	products map[string]gateway.WireProduct
	clients  map[string]gateway.WireClient
	orders   []gateway.WireHistoryOrder
	seq      int
	now      func() time.Time
}

// NewDataset creates an empty dataset
func NewDataset(now func() time.Time) *Dataset {
	if now == nil {
		now = time.Now
	}
	return &Dataset{
		vendors:  make(map[string]*Vendor),
		products: make(map[string]gateway.WireProduct),
		clients:  make(map[string]gateway.WireClient),
		now:      now,
	}
}

// AddVendor registers a vendor account with a bcrypt-hashed password
func (d *Dataset) AddVendor(username, password, name string) (*Vendor, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	v := &Vendor{
		ID:           strconv.Itoa(d.seq),
		Username:     username,
		Name:         name,
		Email:        username + "@example.com",
		Role:         "vendor",
		passwordHash: hash,
	}
	d.vendors[username] = v
	return v, nil
}

// Authenticate returns the vendor whose credentials match
func (d *Dataset) Authenticate(username, password string) (*Vendor, bool) {
	d.mu.RLock()
	v, ok := d.vendors[strings.TrimSpace(username)]
	d.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if bcrypt.CompareHashAndPassword(v.passwordHash, []byte(password)) != nil {
		return nil, false
	}
	return v, true
}

// VendorByID looks a vendor up by id
func (d *Dataset) VendorByID(id string) (*Vendor, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, v := range d.vendors {
		if v.ID == id {
			return v, true
		}
	}
	return nil, false
}

// PutProduct inserts or replaces a product and stamps its updatedAt with
// the current server time
func (d *Dataset) PutProduct(p gateway.WireProduct) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p.ID == "" {
		d.seq++
		p.ID = gateway.FlexibleID(strconv.Itoa(d.seq))
	}
	p.UpdatedAt = shared.FormatTimestamp(d.now())
	d.products[p.ID.String()] = p
}

// DeactivateProduct marks a product inactive so the next change feed carries it
func (d *Dataset) DeactivateProduct(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.products[id]
	if !ok {
		return false
	}
	inactive := false
	p.IsActive = &inactive
	p.UpdatedAt = shared.FormatTimestamp(d.now())
	d.products[id] = p
	return true
}

// Product returns one product
func (d *Dataset) Product(id string) (gateway.WireProduct, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.products[id]
	return p, ok
}

// Products returns the products updated strictly after since, ordered by
// id. A zero since returns every active product.
func (d *Dataset) Products(since time.Time) []gateway.WireProduct {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]gateway.WireProduct, 0, len(d.products))
	for _, p := range d.products {
		if since.IsZero() {
			if p.IsActive != nil && !*p.IsActive {
				continue
			}
		} else {
			updated, err := shared.ParseTimestamp(p.UpdatedAt)
			if err != nil || !updated.After(since) {
				continue
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return idLess(out[i].ID.String(), out[j].ID.String()) })
	return out
}

// LastCatalogUpdate returns the newest product updatedAt
func (d *Dataset) LastCatalogUpdate() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var last time.Time
	for _, p := range d.products {
		if t, err := shared.ParseTimestamp(p.UpdatedAt); err == nil && t.After(last) {
			last = t
		}
	}
	if last.IsZero() {
		return ""
	}
	return shared.FormatTimestamp(last)
}

// PutClient inserts or replaces a client
func (d *Dataset) PutClient(c gateway.WireClient) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c.ID == "" {
		d.seq++
		c.ID = gateway.FlexibleID(strconv.Itoa(d.seq))
	}
	stamp := shared.FormatTimestamp(d.now())
	if c.CreatedAt == "" {
		c.CreatedAt = stamp
	}
	c.UpdatedAt = stamp
	d.clients[c.ID.String()] = c
}

// Clients returns the clients assigned to vendorID. Clients with no
// assigned vendor are visible to everyone.
func (d *Dataset) Clients(vendorID string) []gateway.WireClient {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]gateway.WireClient, 0, len(d.clients))
	for _, c := range d.clients {
		if c.AssignedVendorID != "" && c.AssignedVendorID.String() != vendorID {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return idLess(out[i].ID.String(), out[j].ID.String()) })
	return out
}

// RecordOrder converts an uploaded order into a confirmed order owned by
// vendor and returns its id. Unknown products are rejected.
func (d *Dataset) RecordOrder(vendor *Vendor, in gateway.UploadOrder) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if in.ClientID != "" {
		if _, ok := d.clients[in.ClientID]; !ok {
			return "", fmt.Errorf("Cliente no encontrado: %s", in.ClientID)
		}
	}

	items := make([]gateway.WireHistoryItem, 0, len(in.Items))
	subtotal := valueobject.Zero()
	for _, line := range in.Items {
		p, ok := d.products[line.ProductID]
		if !ok {
			return "", fmt.Errorf("Producto no encontrado: %s", line.ProductID)
		}
		lineTotal := line.PricePerUnit.MultiplyByInt(int64(line.Quantity))
		subtotal = subtotal.Add(lineTotal)
		items = append(items, gateway.WireHistoryItem{
			ProductID:    p.ID,
			ProductName:  p.Name,
			Quantity:     line.Quantity,
			PricePerUnit: line.PricePerUnit,
			Subtotal:     lineTotal,
		})
	}

	d.seq++
	id := strconv.Itoa(d.seq)
	for i := range items {
		items[i].ID = gateway.FlexibleID(fmt.Sprintf("%s%02d", id, i+1))
	}
	stamp := shared.FormatTimestamp(d.now())
	order := gateway.WireHistoryOrder{
		ID:           gateway.FlexibleID(id),
		UserID:       gateway.FlexibleID(vendor.ID),
		ClientID:     gateway.FlexibleID(in.ClientID),
		OrderNumber:  fmt.Sprintf("PED-%06d", d.seq),
		Status:       "pending",
		Subtotal:     subtotal,
		Tax:          valueobject.Zero(),
		Total:        subtotal,
		CustomerNote: in.CustomerNote,
		Notes:        "Creado sin conexión: " + in.CreatedAtOffline,
		CreatedAt:    stamp,
		UpdatedAt:    stamp,
		Items:        items,
	}
	if c, ok := d.clients[in.ClientID]; ok {
		order.CustomerName = c.Name
		order.CustomerContact = c.Phone
	}
	d.orders = append(d.orders, order)
	return id, nil
}

// History returns the newest confirmed orders of vendorID, newest first
func (d *Dataset) History(vendorID string, limit int) []gateway.WireHistoryOrder {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]gateway.WireHistoryOrder, 0)
	for i := len(d.orders) - 1; i >= 0; i-- {
		if d.orders[i].UserID.String() != vendorID {
			continue
		}
		out = append(out, d.orders[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// PendingOrders counts the vendor's orders not yet processed by the back office
func (d *Dataset) PendingOrders(vendorID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, o := range d.orders {
		if o.UserID.String() == vendorID && o.Status == "pending" {
			n++
		}
	}
	return n
}

// Counts returns the number of products, clients and orders held
func (d *Dataset) Counts() (products, clients, orders int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.products), len(d.clients), len(d.orders)
}

var seedCategories = []string{"Bebidas", "Snacks", "Limpieza", "Lácteos", "Panadería", "Conservas"}

// Seed fills the dataset with generated products and clients. Every
// product carries the three price tiers; the interior tier requires
// larger quantities.
func (d *Dataset) Seed(faker *gofakeit.Faker, products, clients int) {
	tiers := []catalog.PriceType{catalog.PriceTypeCiudad, catalog.PriceTypeInterior, catalog.PriceTypeEspecial}

	for i := 0; i < products; i++ {
		base := decimal.NewFromFloat(faker.Price(1, 250)).Round(2)
		p := gateway.WireProduct{
			SKU:             strings.ToUpper(faker.LetterN(3)) + "-" + faker.DigitN(5),
			Name:            faker.ProductName(),
			Description:     faker.ProductDescription(),
			Category:        seedCategories[faker.IntN(len(seedCategories))],
			Subcategory:     faker.ProductMaterial(),
			Image:           fmt.Sprintf("https://picsum.photos/seed/%s/400/400", faker.LetterN(8)),
			BasePrice:       valueobject.NewMoney(base),
			Price:           valueobject.NewMoney(base),
			Stock:           faker.IntRange(0, 500),
			MinimumQuantity: 1,
		}
		for _, tier := range tiers {
			pricing := gateway.WirePricing{PriceType: string(tier), Price: valueobject.NewMoney(base), MinimumQuantity: 1}
			switch tier {
			case catalog.PriceTypeInterior:
				pricing.Price = valueobject.NewMoney(base.Mul(decimal.RequireFromString("1.10")).Round(2))
				pricing.MinimumQuantity = faker.IntRange(2, 12)
			case catalog.PriceTypeEspecial:
				pricing.Price = valueobject.NewMoney(base.Mul(decimal.RequireFromString("0.90")).Round(2))
			}
			p.PricingByType = append(p.PricingByType, pricing)
		}
		d.PutProduct(p)
	}

	for i := 0; i < clients; i++ {
		addr := faker.Address()
		d.PutClient(gateway.WireClient{
			Name:         faker.Name(),
			CompanyName:  faker.Company(),
			Email:        faker.Email(),
			Phone:        faker.Phone(),
			Address:      addr.Street,
			City:         addr.City,
			State:        addr.State,
			ZipCode:      addr.Zip,
			ClientNumber: fmt.Sprintf("CLI-%04d", i+1),
			PriceType:    string(tiers[faker.IntN(len(tiers))]),
		})
	}
}

// idLess orders numeric ids numerically and everything else lexically
func idLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}
