package trade

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/erp/wooerp/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the fulfilment status of an order
type OrderStatus string

const (
	OrderStatusPendingPreparation OrderStatus = "pending_preparation"
	OrderStatusApproved           OrderStatus = "approved"
	OrderStatusInProcess          OrderStatus = "in_process"
	OrderStatusReadyForDispatch   OrderStatus = "ready_for_dispatch"
	OrderStatusCompleted          OrderStatus = "completed"
	OrderStatusCancelled          OrderStatus = "cancelled"
)

// AllOrderStatuses lists every status, initial first
var AllOrderStatuses = []OrderStatus{
	OrderStatusPendingPreparation,
	OrderStatusApproved,
	OrderStatusInProcess,
	OrderStatusReadyForDispatch,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// IsValid checks if the status is a valid OrderStatus
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPendingPreparation, OrderStatusApproved, OrderStatusInProcess,
		OrderStatusReadyForDispatch, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// IsTerminal returns true for completed and cancelled
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// HoldsStock reports whether an order in this status keeps its stock reserved
func (s OrderStatus) HoldsStock() bool {
	return s.IsValid() && s != OrderStatusCancelled
}

// CanTransitionTo checks if the status can transition to the target status
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	switch s {
	case OrderStatusPendingPreparation:
		return target == OrderStatusApproved || target == OrderStatusReadyForDispatch ||
			target == OrderStatusInProcess || target == OrderStatusCancelled
	case OrderStatusApproved:
		return target == OrderStatusReadyForDispatch || target == OrderStatusInProcess ||
			target == OrderStatusCancelled
	case OrderStatusInProcess:
		return target == OrderStatusReadyForDispatch || target == OrderStatusCompleted ||
			target == OrderStatusCancelled
	case OrderStatusReadyForDispatch:
		return target == OrderStatusCompleted || target == OrderStatusCancelled
	case OrderStatusCompleted, OrderStatusCancelled:
		return false // Terminal states
	}
	return false
}

// Origin tells where a record was created. Records that came from the
// storefront are never pushed back to it.
type Origin string

const (
	OriginLocal    Origin = "local"
	OriginExternal Origin = "external"
)

// SyncStatus tracks outbound propagation, independent of the business status
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusError   SyncStatus = "error"
)

// IsValid checks if the sync status is known
func (s SyncStatus) IsValid() bool {
	return s == SyncStatusPending || s == SyncStatusSynced || s == SyncStatusError
}

// SyncState is the outbound bookkeeping shared by orders and sales
type SyncState struct {
	Status          SyncStatus
	Error           string
	Attempts        int
	LastAttemptAt   *time.Time
	ExternalOrderID *int64
	ExternalNumber  string
}

// MarkSynced records a successful push
func (s *SyncState) MarkSynced(externalID int64, externalNumber string) {
	now := time.Now()
	s.Status = SyncStatusSynced
	s.Error = ""
	s.Attempts++
	s.LastAttemptAt = &now
	s.ExternalOrderID = &externalID
	s.ExternalNumber = externalNumber
}

// MarkFailed records a failed push for later retry
func (s *SyncState) MarkFailed(msg string) {
	now := time.Now()
	s.Status = SyncStatusError
	s.Error = msg
	s.Attempts++
	s.LastAttemptAt = &now
}

// DeliveryInfo holds shipping details of an order
type DeliveryInfo struct {
	Name     string
	Address  string
	City     string
	State    string
	Postcode string
	Country  string
	Phone    string
	Method   string
	Notes    string
}

// OrderItem represents a line item in an order
type OrderItem struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	SKU       string
	Name      string
	Quantity  int
	// Reserved is the quantity taken from stock for this line. It is below
	// Quantity when the reservation was clamped at zero.
	Reserved  int
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
}

// Order is a customer order, created locally or ingested from the storefront
type Order struct {
	shared.BaseEntity
	OrderNumber     string
	ExternalOrderID *int64
	ClientID        uuid.UUID
	Status          OrderStatus
	Origin          Origin
	Delivery        DeliveryInfo
	Subtotal        decimal.Decimal
	ShippingTotal   decimal.Decimal
	Total           decimal.Decimal
	Items           []OrderItem
	Sync            SyncState
	// ExternalPayload is the raw storefront order, kept for audit only
	ExternalPayload json.RawMessage
}

// NewOrder creates an order in the initial status
func NewOrder(orderNumber string, clientID uuid.UUID, origin Origin) (*Order, error) {
	if strings.TrimSpace(orderNumber) == "" {
		return nil, shared.NewValidationError("order_number", "order number cannot be empty")
	}
	if clientID == uuid.Nil {
		return nil, shared.NewValidationError("client_id", "order requires a client")
	}
	if origin != OriginLocal && origin != OriginExternal {
		return nil, shared.NewValidationError("origin", "origin must be local or external")
	}

	return &Order{
		BaseEntity:    shared.NewBaseEntity(),
		OrderNumber:   orderNumber,
		ClientID:      clientID,
		Status:        OrderStatusPendingPreparation,
		Origin:        origin,
		Subtotal:      decimal.Zero,
		ShippingTotal: decimal.Zero,
		Total:         decimal.Zero,
		Sync:          SyncState{Status: SyncStatusPending},
	}, nil
}

// AddItem appends a line item and recalculates totals
func (o *Order) AddItem(productID uuid.UUID, sku, name string, quantity int, unitPrice decimal.Decimal) error {
	if quantity <= 0 {
		return shared.NewValidationError("quantity", fmt.Sprintf("quantity for %s must be positive", sku))
	}
	if unitPrice.IsNegative() {
		return shared.NewValidationError("unit_price", fmt.Sprintf("unit price for %s cannot be negative", sku))
	}
	o.Items = append(o.Items, OrderItem{
		ID:        uuid.New(),
		ProductID: productID,
		SKU:       sku,
		Name:      name,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Total:     unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	})
	o.recalculateTotals()
	return nil
}

// SetShippingTotal sets the shipping charge and recalculates totals
func (o *Order) SetShippingTotal(amount decimal.Decimal) {
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	o.ShippingTotal = amount
	o.recalculateTotals()
}

// TransitionTo moves the order to next, rejecting moves outside the status graph
func (o *Order) TransitionTo(next OrderStatus) error {
	if !next.IsValid() {
		return shared.NewValidationError("status", fmt.Sprintf("unknown order status %q", next))
	}
	if !o.Status.CanTransitionTo(next) {
		return shared.NewInvalidTransitionError(o.Status.String(), next.String())
	}
	o.Status = next
	o.Touch()
	return nil
}

// CanDelete returns true only in the initial status
func (o *Order) CanDelete() bool {
	return o.Status == OrderStatusPendingPreparation
}

// ShouldSyncOutbound reports whether the order may be pushed to the storefront
func (o *Order) ShouldSyncOutbound() bool {
	return o.Origin != OriginExternal
}

// IsExternal reports whether the order came from the storefront
func (o *Order) IsExternal() bool {
	return o.Origin == OriginExternal
}

// ItemCount returns the number of line items
func (o *Order) ItemCount() int {
	return len(o.Items)
}

func (o *Order) recalculateTotals() {
	subtotal := decimal.Zero
	for _, item := range o.Items {
		subtotal = subtotal.Add(item.Total)
	}
	o.Subtotal = subtotal
	o.Total = subtotal.Add(o.ShippingTotal)
	o.Touch()
}

// GenerateOrderNumber builds a local order number such as ORD-20250114-3F2A9C1B
func GenerateOrderNumber(now time.Time) string {
	return generateNumber("ORD", now)
}

func generateNumber(prefix string, now time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), id[:8])
}
