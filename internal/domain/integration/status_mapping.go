package integration

import (
	"strings"

	"github.com/erp/wooerp/internal/domain/trade"
)

// ---------------------------------------------------------------------------
// Storefront order status vocabulary
// ---------------------------------------------------------------------------

const (
	ExternalStatusPending    = "pending"
	ExternalStatusProcessing = "processing"
	ExternalStatusOnHold     = "on-hold"
	ExternalStatusCompleted  = "completed"
	ExternalStatusCancelled  = "cancelled"
	ExternalStatusRefunded   = "refunded"
	ExternalStatusFailed     = "failed"
)

var inboundStatusMap = map[string]trade.OrderStatus{
	ExternalStatusPending:    trade.OrderStatusPendingPreparation,
	ExternalStatusProcessing: trade.OrderStatusInProcess,
	ExternalStatusOnHold:     trade.OrderStatusPendingPreparation,
	ExternalStatusCompleted:  trade.OrderStatusCompleted,
	ExternalStatusCancelled:  trade.OrderStatusCancelled,
	ExternalStatusRefunded:   trade.OrderStatusCancelled,
	ExternalStatusFailed:     trade.OrderStatusCancelled,
}

// MapInboundStatus maps a storefront status to the local one.
// Unknown values map to pending_preparation.
func MapInboundStatus(external string) trade.OrderStatus {
	if s, ok := inboundStatusMap[strings.ToLower(strings.TrimSpace(external))]; ok {
		return s
	}
	return trade.OrderStatusPendingPreparation
}

// MapOutboundStatus maps a local status to the storefront vocabulary
func MapOutboundStatus(status trade.OrderStatus) string {
	switch status {
	case trade.OrderStatusApproved, trade.OrderStatusInProcess, trade.OrderStatusReadyForDispatch:
		return ExternalStatusProcessing
	case trade.OrderStatusCompleted:
		return ExternalStatusCompleted
	case trade.OrderStatusCancelled:
		return ExternalStatusCancelled
	default:
		return ExternalStatusPending
	}
}

// MapPaymentMethod returns the storefront payment_method and its title
func MapPaymentMethod(method trade.PaymentMethod) (id, title string) {
	switch method {
	case trade.PaymentMethodCash:
		return "cod", "Cash"
	case trade.PaymentMethodCard:
		return "card", "Card"
	case trade.PaymentMethodTransfer:
		return "bacs", "Bank transfer"
	default:
		return "other", "Mixed payment"
	}
}
