package partner

import (
	"net/mail"
	"strings"
	"time"

	"github.com/fieldsales/vendorsync/internal/domain/catalog"
	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/google/uuid"
)

// LocalClientPrefix marks clients captured on the device that the server
// has not assigned an identifier to yet.
const LocalClientPrefix = "local_"

// Client is a vendor's customer, scoped by AssignedVendorID
type Client struct {
	shared.BaseEntity
	shared.AuditTimestamps
	shared.SyncStamp
	Name             string
	CompanyName      string
	Email            string
	Phone            string
	Address          string
	City             string
	State            string
	ZipCode          string
	ClientNumber     string
	PriceType        catalog.PriceType
	AssignedVendorID string
	IsActive         bool
}

// NewLocalClient creates a client captured offline by the vendor
func NewLocalClient(vendorID, name, companyName string, now time.Time) (*Client, error) {
	name = strings.TrimSpace(name)
	companyName = strings.TrimSpace(companyName)
	if name == "" && companyName == "" {
		return nil, shared.NewDomainError("INVALID_CLIENT_NAME", "El cliente necesita nombre o razón social")
	}
	return &Client{
		BaseEntity:       shared.BaseEntity{ID: LocalClientPrefix + uuid.NewString()},
		AuditTimestamps:  shared.AuditTimestamps{CreatedAt: now, UpdatedAt: now},
		Name:             name,
		CompanyName:      companyName,
		PriceType:        catalog.DefaultPriceType,
		AssignedVendorID: vendorID,
		IsActive:         true,
	}, nil
}

// SetContact updates email and phone
func (c *Client) SetContact(email, phone string) error {
	email = strings.TrimSpace(email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return shared.NewDomainError("INVALID_EMAIL", "Correo electrónico inválido")
		}
	}
	c.Email = email
	c.Phone = strings.TrimSpace(phone)
	return nil
}

// SetAddress updates the postal address
func (c *Client) SetAddress(address, city, state, zipCode string) {
	c.Address = strings.TrimSpace(address)
	c.City = strings.TrimSpace(city)
	c.State = strings.TrimSpace(state)
	c.ZipCode = strings.TrimSpace(zipCode)
}

// IsLocal reports whether the client was created on this device
func (c *Client) IsLocal() bool {
	return strings.HasPrefix(c.ID, LocalClientPrefix)
}

// DisplayName prefers the company name over the contact name
func (c *Client) DisplayName() string {
	if c.CompanyName != "" {
		return c.CompanyName
	}
	return c.Name
}

// EffectivePriceType returns the client's tier, defaulting when unset
func (c *Client) EffectivePriceType() catalog.PriceType {
	return catalog.ParsePriceType(string(c.PriceType))
}

// GetFullAddress joins the non-empty address parts
func (c *Client) GetFullAddress() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{c.Address, c.City, c.State, c.ZipCode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
