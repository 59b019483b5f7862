package trade

import (
	"fmt"
	"time"

	"github.com/erp/wooerp/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod represents how a sale was paid
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodMixed    PaymentMethod = "mixed"
)

// IsValid checks if the payment method is known
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer, PaymentMethodMixed:
		return true
	}
	return false
}

// DefaultMixedPaymentTolerance is the absolute difference accepted between
// the sum of mixed payment details and the sale total
var DefaultMixedPaymentTolerance = decimal.NewFromFloat(0.01)

// PaymentDetail is one leg of a mixed payment
type PaymentDetail struct {
	Method    PaymentMethod
	Amount    decimal.Decimal
	Reference string
}

// ValidatePayment checks the payment breakdown against the total.
// For mixed payments the detail amounts must sum to total within tolerance.
func ValidatePayment(method PaymentMethod, details []PaymentDetail, total, tolerance decimal.Decimal) error {
	if !method.IsValid() {
		return shared.NewValidationError("payment_method", fmt.Sprintf("unknown payment method %q", method))
	}
	if method != PaymentMethodMixed {
		return nil
	}
	if len(details) == 0 {
		return shared.NewValidationError("payment_details", "mixed payment requires a payment breakdown")
	}

	sum := decimal.Zero
	for i, d := range details {
		if !d.Method.IsValid() || d.Method == PaymentMethodMixed {
			return shared.NewValidationError("payment_details",
				fmt.Sprintf("payment detail %d has invalid method %q", i, d.Method))
		}
		if !d.Amount.IsPositive() {
			return shared.NewValidationError("payment_details",
				fmt.Sprintf("payment detail %d must have a positive amount", i))
		}
		sum = sum.Add(d.Amount)
	}

	if sum.Sub(total).Abs().GreaterThan(tolerance) {
		return shared.NewValidationError("payment_details",
			fmt.Sprintf("payment details sum to %s but sale total is %s", sum.StringFixed(2), total.StringFixed(2)))
	}
	return nil
}

// SaleItem represents a line item in a sale
type SaleItem struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	SKU       string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
}

// Sale is a consummated point-of-sale transaction
type Sale struct {
	shared.BaseEntity
	SaleNumber     string
	ClientID       *uuid.UUID
	Items          []SaleItem
	PaymentMethod  PaymentMethod
	PaymentDetails []PaymentDetail
	Total          decimal.Decimal
	Notes          string
	Sync           SyncState
}

// NewSale creates an empty sale pending outbound sync
func NewSale(saleNumber string, clientID *uuid.UUID, method PaymentMethod) (*Sale, error) {
	if saleNumber == "" {
		return nil, shared.NewValidationError("sale_number", "sale number cannot be empty")
	}
	if !method.IsValid() {
		return nil, shared.NewValidationError("payment_method", fmt.Sprintf("unknown payment method %q", method))
	}
	return &Sale{
		BaseEntity:    shared.NewBaseEntity(),
		SaleNumber:    saleNumber,
		ClientID:      clientID,
		PaymentMethod: method,
		Total:         decimal.Zero,
		Sync:          SyncState{Status: SyncStatusPending},
	}, nil
}

// AddItem appends a line item and recalculates the total
func (s *Sale) AddItem(productID uuid.UUID, sku, name string, quantity int, unitPrice decimal.Decimal) error {
	if quantity <= 0 {
		return shared.NewValidationError("quantity", fmt.Sprintf("quantity for %s must be positive", sku))
	}
	if unitPrice.IsNegative() {
		return shared.NewValidationError("unit_price", fmt.Sprintf("unit price for %s cannot be negative", sku))
	}
	lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	s.Items = append(s.Items, SaleItem{
		ID:        uuid.New(),
		ProductID: productID,
		SKU:       sku,
		Name:      name,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Total:     lineTotal,
	})
	s.Total = s.Total.Add(lineTotal)
	return nil
}

// GenerateSaleNumber builds a sale number such as SALE-20250114-3F2A9C1B
func GenerateSaleNumber(now time.Time) string {
	return generateNumber("SALE", now)
}
