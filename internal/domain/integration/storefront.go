package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Storefront value objects
// ---------------------------------------------------------------------------

// ImageRef points to a storefront image. A media library id is preferred over
// the source URL so the storefront does not download the file again.
type ImageRef struct {
	ID  int64
	Src string
}

// CategoryRef is a storefront category
type CategoryRef struct {
	ID   int64
	Name string
}

// ExternalProduct is a product as read from the storefront
type ExternalProduct struct {
	ID            int64
	SKU           string
	Name          string
	Description   string
	Status        string
	Price         *decimal.Decimal
	RegularPrice  *decimal.Decimal
	ManageStock   bool
	StockQuantity *int
	Categories    []CategoryRef
	Images        []ImageRef
	Raw           json.RawMessage
}

// EffectivePrice returns the regular price, else the current price
func (p *ExternalProduct) EffectivePrice() *decimal.Decimal {
	if p.RegularPrice != nil {
		return p.RegularPrice
	}
	return p.Price
}

// ProductInput is the body of a product create or update. Categories is
// always sent, an empty list clears the association.
type ProductInput struct {
	SKU           string
	Name          string
	Description   string
	RegularPrice  decimal.Decimal
	ManageStock   bool
	StockQuantity int
	Status        string
	CategoryIDs   []int64
	Images        []ImageRef
}

// Address is a billing or shipping address
type Address struct {
	FirstName string
	LastName  string
	Company   string
	Address1  string
	Address2  string
	City      string
	State     string
	Postcode  string
	Country   string
	Email     string
	Phone     string
}

// FullName joins first and last name
func (a Address) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Street joins both address lines
func (a Address) Street() string {
	return strings.TrimSpace(strings.Join([]string{a.Address1, a.Address2}, " "))
}

// ExternalCustomer is a storefront customer
type ExternalCustomer struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
}

// CustomerInput is the body of a customer create
type CustomerInput struct {
	Email     string
	FirstName string
	LastName  string
	Billing   Address
}

// OrderLineInput is one line of an outbound order
type OrderLineInput struct {
	ProductID int64
	Quantity  int
	Subtotal  decimal.Decimal
	Total     decimal.Decimal
}

// MetaEntry is a storefront meta_data key/value pair
type MetaEntry struct {
	Key   string
	Value string
}

// OrderInput is the body of an outbound order create or update
type OrderInput struct {
	Status             string
	CustomerID         int64
	PaymentMethod      string
	PaymentMethodTitle string
	SetPaid            bool
	Billing            Address
	Shipping           Address
	LineItems          []OrderLineInput
	ShippingTotal      decimal.Decimal
	CustomerNote       string
	MetaData           []MetaEntry
}

// ExternalOrder is the storefront answer to an order write
type ExternalOrder struct {
	ID     int64
	Number string
	Status string
}

// ---------------------------------------------------------------------------
// Storefront Port Interface
// ---------------------------------------------------------------------------

// Storefront defines the port interface for the external e-commerce REST API.
// Lookups return (nil, nil) when nothing matches.
type Storefront interface {
	// IsConfigured returns false when credentials are absent. Every other
	// method then fails with ErrPlatformNotConfigured.
	IsConfigured() bool

	// ---------------------------------------------------------------------------
	// Product Operations
	// ---------------------------------------------------------------------------

	GetProduct(ctx context.Context, id int64) (*ExternalProduct, error)
	FindProductBySKU(ctx context.Context, sku string) (*ExternalProduct, error)
	// ListProducts returns one page, 1-indexed
	ListProducts(ctx context.Context, page, perPage int) ([]ExternalProduct, error)
	CreateProduct(ctx context.Context, in ProductInput) (*ExternalProduct, error)
	UpdateProduct(ctx context.Context, id int64, in ProductInput) (*ExternalProduct, error)
	TrashProduct(ctx context.Context, id int64) error
	SetProductStock(ctx context.Context, id int64, quantity int) error

	// ---------------------------------------------------------------------------
	// Customer Operations
	// ---------------------------------------------------------------------------

	FindCustomerByEmail(ctx context.Context, email string) (*ExternalCustomer, error)
	CreateCustomer(ctx context.Context, in CustomerInput) (*ExternalCustomer, error)

	// ---------------------------------------------------------------------------
	// Order Operations
	// ---------------------------------------------------------------------------

	CreateOrder(ctx context.Context, in OrderInput) (*ExternalOrder, error)
	UpdateOrder(ctx context.Context, id int64, in OrderInput) (*ExternalOrder, error)
}

// PayloadArchive keeps raw inbound payloads for audit
type PayloadArchive interface {
	Store(ctx context.Context, kind, key string, body []byte) error
}

// ---------------------------------------------------------------------------
// Wire decoding
// ---------------------------------------------------------------------------

type wireProduct struct {
	ID            FlexInt     `json:"id"`
	SKU           FlexString  `json:"sku"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	Status        string      `json:"status"`
	Price         FlexDecimal `json:"price"`
	RegularPrice  FlexDecimal `json:"regular_price"`
	ManageStock   bool        `json:"manage_stock"`
	StockQuantity FlexInt     `json:"stock_quantity"`
	Categories    []struct {
		ID   FlexInt `json:"id"`
		Name string  `json:"name"`
	} `json:"categories"`
	Images []struct {
		ID  FlexInt `json:"id"`
		Src string  `json:"src"`
	} `json:"images"`
}

func (w *wireProduct) toExternal(raw json.RawMessage) ExternalProduct {
	p := ExternalProduct{
		ID:           w.ID.Value,
		SKU:          strings.TrimSpace(string(w.SKU)),
		Name:         w.Name,
		Description:  w.Description,
		Status:       w.Status,
		Price:        w.Price.Ptr(),
		RegularPrice: w.RegularPrice.Ptr(),
		ManageStock:  w.ManageStock,
		Raw:          raw,
	}
	if w.StockQuantity.Valid {
		q := w.StockQuantity.Int()
		p.StockQuantity = &q
	}
	for _, c := range w.Categories {
		p.Categories = append(p.Categories, CategoryRef{ID: c.ID.Value, Name: c.Name})
	}
	for _, img := range w.Images {
		if img.ID.Value == 0 && img.Src == "" {
			continue
		}
		p.Images = append(p.Images, ImageRef{ID: img.ID.Value, Src: img.Src})
	}
	return p
}

// DecodeProduct reads one storefront product, tolerating string-typed numbers
func DecodeProduct(data []byte) (*ExternalProduct, error) {
	body, err := unwrapPayload(data)
	if err != nil {
		return nil, err
	}
	var w wireProduct
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlatformInvalidResponse, err)
	}
	p := w.toExternal(append(json.RawMessage(nil), body...))
	return &p, nil
}

// DecodeProducts reads a storefront product list
func DecodeProducts(data []byte) ([]ExternalProduct, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlatformInvalidResponse, err)
	}
	out := make([]ExternalProduct, 0, len(raws))
	for _, raw := range raws {
		var w wireProduct
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPlatformInvalidResponse, err)
		}
		out = append(out, w.toExternal(raw))
	}
	return out, nil
}
