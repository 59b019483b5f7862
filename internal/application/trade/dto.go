package trade

import (
	"time"

	"github.com/erp/wooerp/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Requests
// ---------------------------------------------------------------------------

// LineItemRequest is one requested line. UnitPrice defaults to the product price.
type LineItemRequest struct {
	ProductID uuid.UUID        `json:"product_id" binding:"required"`
	Quantity  int              `json:"quantity" binding:"required,min=1"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

// PaymentDetailRequest is one leg of a mixed payment
type PaymentDetailRequest struct {
	Method    string          `json:"method" binding:"required,payment_method"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference" binding:"max=100"`
}

// CreateSaleRequest represents a request to register a sale
type CreateSaleRequest struct {
	ClientID       *uuid.UUID             `json:"client_id"`
	PaymentMethod  string                 `json:"payment_method" binding:"required,payment_method"`
	PaymentDetails []PaymentDetailRequest `json:"payment_details" binding:"omitempty,dive"`
	Items          []LineItemRequest      `json:"items" binding:"required,min=1,dive"`
	Notes          string                 `json:"notes" binding:"max=1000"`
}

// DeliveryInfo holds the shipping details of an order
type DeliveryInfo struct {
	Name     string `json:"name" binding:"max=200"`
	Address  string `json:"address" binding:"max=500"`
	City     string `json:"city" binding:"max=100"`
	State    string `json:"state" binding:"max=100"`
	Postcode string `json:"postcode" binding:"max=20"`
	Country  string `json:"country" binding:"max=2"`
	Phone    string `json:"phone" binding:"max=50"`
	Method   string `json:"method" binding:"max=100"`
	Notes    string `json:"notes" binding:"max=1000"`
}

// CreateOrderRequest represents a request to create a local order
type CreateOrderRequest struct {
	ClientID      uuid.UUID         `json:"client_id" binding:"required"`
	Items         []LineItemRequest `json:"items" binding:"required,min=1,dive"`
	Delivery      DeliveryInfo      `json:"delivery"`
	ShippingTotal *decimal.Decimal  `json:"shipping_total"`
}

// UpdateOrderStatusRequest represents a status change
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ---------------------------------------------------------------------------
// Responses
// ---------------------------------------------------------------------------

// LineItemResponse is a stored line item
type LineItemResponse struct {
	ProductID uuid.UUID       `json:"product_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

// SyncResponse is the outbound sync bookkeeping of an order or sale
type SyncResponse struct {
	Status          string     `json:"status"`
	Error           string     `json:"error,omitempty"`
	Attempts        int        `json:"attempts"`
	LastAttemptAt   *time.Time `json:"last_attempt_at,omitempty"`
	ExternalOrderID *int64     `json:"external_order_id,omitempty"`
	ExternalNumber  string     `json:"external_number,omitempty"`
}

// SaleResponse represents a sale in API responses
type SaleResponse struct {
	ID            uuid.UUID          `json:"id"`
	SaleNumber    string             `json:"sale_number"`
	ClientID      *uuid.UUID         `json:"client_id"`
	PaymentMethod string             `json:"payment_method"`
	Total         decimal.Decimal    `json:"total"`
	Notes         string             `json:"notes,omitempty"`
	Items         []LineItemResponse `json:"items"`
	Sync          SyncResponse       `json:"sync"`
	CreatedAt     time.Time          `json:"created_at"`
}

// OrderResponse represents an order in API responses
type OrderResponse struct {
	ID              uuid.UUID          `json:"id"`
	OrderNumber     string             `json:"order_number"`
	ExternalOrderID *int64             `json:"external_order_id"`
	ClientID        uuid.UUID          `json:"client_id"`
	Status          string             `json:"status"`
	Origin          string             `json:"origin"`
	Delivery        DeliveryInfo       `json:"delivery"`
	Subtotal        decimal.Decimal    `json:"subtotal"`
	ShippingTotal   decimal.Decimal    `json:"shipping_total"`
	Total           decimal.Decimal    `json:"total"`
	Items           []LineItemResponse `json:"items"`
	Sync            SyncResponse       `json:"sync"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// SaleResult is a sale write outcome with non-fatal warnings
type SaleResult struct {
	Sale     SaleResponse `json:"sale"`
	Warnings []string     `json:"warnings,omitempty"`
}

// OrderResult is an order write outcome with non-fatal warnings
type OrderResult struct {
	Order    OrderResponse `json:"order"`
	Warnings []string      `json:"warnings,omitempty"`
}

// ToSyncResponse converts the sync state
func ToSyncResponse(s trade.SyncState) SyncResponse {
	return SyncResponse{
		Status:          string(s.Status),
		Error:           s.Error,
		Attempts:        s.Attempts,
		LastAttemptAt:   s.LastAttemptAt,
		ExternalOrderID: s.ExternalOrderID,
		ExternalNumber:  s.ExternalNumber,
	}
}

// ToSaleResponse converts a domain Sale to SaleResponse
func ToSaleResponse(s *trade.Sale) SaleResponse {
	items := make([]LineItemResponse, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, LineItemResponse{
			ProductID: it.ProductID,
			SKU:       it.SKU,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Total:     it.Total,
		})
	}
	return SaleResponse{
		ID:            s.ID,
		SaleNumber:    s.SaleNumber,
		ClientID:      s.ClientID,
		PaymentMethod: string(s.PaymentMethod),
		Total:         s.Total,
		Notes:         s.Notes,
		Items:         items,
		Sync:          ToSyncResponse(s.Sync),
		CreatedAt:     s.CreatedAt,
	}
}

// ToOrderResponse converts a domain Order to OrderResponse
func ToOrderResponse(o *trade.Order) OrderResponse {
	items := make([]LineItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, LineItemResponse{
			ProductID: it.ProductID,
			SKU:       it.SKU,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Total:     it.Total,
		})
	}
	return OrderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		ExternalOrderID: o.ExternalOrderID,
		ClientID:        o.ClientID,
		Status:          string(o.Status),
		Origin:          string(o.Origin),
		Delivery:        DeliveryInfo(o.Delivery),
		Subtotal:        o.Subtotal,
		ShippingTotal:   o.ShippingTotal,
		Total:           o.Total,
		Items:           items,
		Sync:            ToSyncResponse(o.Sync),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}
