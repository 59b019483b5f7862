package catalog

import (
	"encoding/json"
	"strings"

	"github.com/erp/wooerp/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockOperation is the kind of manual stock adjustment
type StockOperation string

const (
	StockOperationSet      StockOperation = "set"
	StockOperationAdd      StockOperation = "add"
	StockOperationSubtract StockOperation = "subtract"
)

// IsValid returns true if the operation is known
func (o StockOperation) IsValid() bool {
	switch o {
	case StockOperationSet, StockOperationAdd, StockOperationSubtract:
		return true
	default:
		return false
	}
}

// Stock holds the stock counters of a product
type Stock struct {
	Current int
	Min     int
	Max     int
}

// ProductImage is an image reference. When the storefront media library
// already holds the image, ExternalMediaID is set and preferred over URL.
type ProductImage struct {
	URL             string `json:"url,omitempty"`
	ExternalMediaID *int64 `json:"external_media_id,omitempty"`
}

// IsEmpty reports whether the image carries neither a URL nor a media id
func (i ProductImage) IsEmpty() bool {
	return strings.TrimSpace(i.URL) == "" && (i.ExternalMediaID == nil || *i.ExternalMediaID <= 0)
}

// Product represents a product/SKU in the catalog.
// Code is the SKU and the join key with the storefront catalog.
type Product struct {
	shared.BaseEntity
	Code        string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       Stock
	Active      bool
	CategoryID  *uuid.UUID
	Barcode     *string
	Images      []ProductImage
	ExternalID  *int64
	// ExternalPayload is the last storefront representation, kept for audit only
	ExternalPayload json.RawMessage
}

// NewProduct creates a new active product
func NewProduct(code, name string, price decimal.Decimal) (*Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, shared.NewValidationError("code", "product code cannot be empty")
	}
	if len(code) > 64 {
		return nil, shared.NewValidationError("code", "product code cannot exceed 64 characters")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("name", "product name cannot be empty")
	}
	if price.IsNegative() {
		return nil, shared.NewValidationError("price", "product price cannot be negative")
	}

	return &Product{
		BaseEntity: shared.NewBaseEntity(),
		Code:       code,
		Name:       name,
		Price:      price,
		Active:     true,
	}, nil
}

// Update changes the descriptive fields of the product
func (p *Product) Update(name, description string, price decimal.Decimal) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewValidationError("name", "product name cannot be empty")
	}
	if price.IsNegative() {
		return shared.NewValidationError("price", "product price cannot be negative")
	}
	p.Name = name
	p.Description = description
	p.Price = price
	p.Touch()
	return nil
}

// SetBarcode sets or clears the barcode
func (p *Product) SetBarcode(barcode string) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		p.Barcode = nil
	} else {
		p.Barcode = &barcode
	}
	p.Touch()
}

// SetStockLimits sets the min/max alert levels
func (p *Product) SetStockLimits(minStock, maxStock int) error {
	if minStock < 0 || maxStock < 0 {
		return shared.NewValidationError("stock", "stock limits cannot be negative")
	}
	if maxStock > 0 && minStock > maxStock {
		return shared.NewValidationError("stock", "minimum stock cannot exceed maximum stock")
	}
	p.Stock.Min = minStock
	p.Stock.Max = maxStock
	p.Touch()
	return nil
}

// ApplyStockOperation adjusts the current stock. A subtraction larger than the
// available stock leaves zero and reports clamped=true.
func (p *Product) ApplyStockOperation(op StockOperation, quantity int) (clamped bool, err error) {
	if !op.IsValid() {
		return false, shared.NewValidationError("operation", "stock operation must be set, add or subtract")
	}
	if quantity < 0 {
		return false, shared.NewValidationError("quantity", "quantity cannot be negative")
	}

	switch op {
	case StockOperationSet:
		p.Stock.Current = quantity
	case StockOperationAdd:
		p.Stock.Current += quantity
	case StockOperationSubtract:
		if quantity > p.Stock.Current {
			p.Stock.Current = 0
			clamped = true
		} else {
			p.Stock.Current -= quantity
		}
	}
	p.Touch()
	return clamped, nil
}

// IsBelowMinimum reports whether the product needs replenishment
func (p *Product) IsBelowMinimum() bool {
	return p.Stock.Min > 0 && p.Stock.Current < p.Stock.Min
}

// LinkExternal records the storefront product id
func (p *Product) LinkExternal(externalID int64) {
	p.ExternalID = &externalID
	p.Touch()
}

// IsLinked reports whether the product has a storefront counterpart
func (p *Product) IsLinked() bool {
	return p.ExternalID != nil && *p.ExternalID > 0
}

// Deactivate soft-deletes the product
func (p *Product) Deactivate() {
	p.Active = false
	p.Touch()
}

// ValidImages returns the images that carry a URL or media id
func (p *Product) ValidImages() []ProductImage {
	images := make([]ProductImage, 0, len(p.Images))
	for _, img := range p.Images {
		if !img.IsEmpty() {
			images = append(images, img)
		}
	}
	return images
}

// StockChange describes the result of a guarded stock decrement
type StockChange struct {
	ProductID uuid.UUID
	Requested int
	Before    int
	After     int
}

// Clamped reports whether the decrement hit zero before covering the request
func (c StockChange) Clamped() bool {
	return c.Before-c.Requested < 0
}

// Shortfall returns the part of the request that could not be covered
func (c StockChange) Shortfall() int {
	if !c.Clamped() {
		return 0
	}
	return c.Requested - c.Before
}

// Taken returns the quantity actually removed from stock
func (c StockChange) Taken() int {
	return c.Before - c.After
}

// Category groups products and mirrors a storefront category
type Category struct {
	shared.BaseEntity
	Name       string
	ExternalID *int64
}

// NewCategory creates a category
func NewCategory(name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("name", "category name cannot be empty")
	}
	return &Category{BaseEntity: shared.NewBaseEntity(), Name: name}, nil
}
