package models

import (
	"encoding/json"
	"time"

	"github.com/erp/wooerp/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SyncColumns are the outbound bookkeeping columns shared by orders and sales
type SyncColumns struct {
	SyncStatus        trade.SyncStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	SyncError         string           `gorm:"type:text"`
	SyncAttempts      int              `gorm:"not null;default:0"`
	LastSyncAttemptAt *time.Time
	ExternalNumber    string `gorm:"type:varchar(50)"`
}

// ToDomain converts the columns to a domain SyncState. The external order
// id lives on the owning row.
func (c SyncColumns) ToDomain(externalOrderID *int64) trade.SyncState {
	return trade.SyncState{
		Status:          c.SyncStatus,
		Error:           c.SyncError,
		Attempts:        c.SyncAttempts,
		LastAttemptAt:   c.LastSyncAttemptAt,
		ExternalOrderID: externalOrderID,
		ExternalNumber:  c.ExternalNumber,
	}
}

// SyncColumnsFromDomain maps a domain SyncState to columns
func SyncColumnsFromDomain(s trade.SyncState) SyncColumns {
	status := s.Status
	if !status.IsValid() {
		status = trade.SyncStatusPending
	}
	return SyncColumns{
		SyncStatus:        status,
		SyncError:         s.Error,
		SyncAttempts:      s.Attempts,
		LastSyncAttemptAt: s.LastAttemptAt,
		ExternalNumber:    s.ExternalNumber,
	}
}

// SyncStateUpdates returns the column map written by SaveSyncState
func SyncStateUpdates(s trade.SyncState) map[string]any {
	c := SyncColumnsFromDomain(s)
	return map[string]any{
		"sync_status":          c.SyncStatus,
		"sync_error":           c.SyncError,
		"sync_attempts":        c.SyncAttempts,
		"last_sync_attempt_at": c.LastSyncAttemptAt,
		"external_number":      c.ExternalNumber,
		"external_order_id":    s.ExternalOrderID,
	}
}

// OrderModel is the persistence model for the Order aggregate root.
// external_order_id is nullable-unique so concurrent ingestion of the same
// storefront order cannot insert twice.
type OrderModel struct {
	BaseModel
	OrderNumber      string            `gorm:"type:varchar(50);not null;uniqueIndex:idx_orders_number"`
	ExternalOrderID  *int64            `gorm:"uniqueIndex:idx_orders_external_order_id"`
	ClientID         uuid.UUID         `gorm:"type:uuid;not null;index"`
	Status           trade.OrderStatus `gorm:"type:varchar(30);not null;default:'pending_preparation';index"`
	Origin           trade.Origin      `gorm:"type:varchar(20);not null;default:'local'"`
	DeliveryName     string            `gorm:"type:varchar(200)"`
	DeliveryAddress  string            `gorm:"type:text"`
	DeliveryCity     string            `gorm:"type:varchar(100)"`
	DeliveryState    string            `gorm:"type:varchar(100)"`
	DeliveryPostcode string            `gorm:"type:varchar(20)"`
	DeliveryCountry  string            `gorm:"type:varchar(60)"`
	DeliveryPhone    string            `gorm:"type:varchar(50)"`
	DeliveryMethod   string            `gorm:"type:varchar(100)"`
	DeliveryNotes    string            `gorm:"type:text"`
	Subtotal         decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	ShippingTotal    decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	Total            decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	ExternalPayload  []byte            `gorm:"type:jsonb"`
	SyncColumns
	Items []OrderItemModel `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order entity.
func (m *OrderModel) ToDomain() *trade.Order {
	order := &trade.Order{
		BaseEntity:      m.BaseModel.ToDomain(),
		OrderNumber:     m.OrderNumber,
		ExternalOrderID: m.ExternalOrderID,
		ClientID:        m.ClientID,
		Status:          m.Status,
		Origin:          m.Origin,
		Delivery: trade.DeliveryInfo{
			Name:     m.DeliveryName,
			Address:  m.DeliveryAddress,
			City:     m.DeliveryCity,
			State:    m.DeliveryState,
			Postcode: m.DeliveryPostcode,
			Country:  m.DeliveryCountry,
			Phone:    m.DeliveryPhone,
			Method:   m.DeliveryMethod,
			Notes:    m.DeliveryNotes,
		},
		Subtotal:        m.Subtotal,
		ShippingTotal:   m.ShippingTotal,
		Total:           m.Total,
		Items:           make([]trade.OrderItem, len(m.Items)),
		Sync:            m.SyncColumns.ToDomain(m.ExternalOrderID),
		ExternalPayload: json.RawMessage(m.ExternalPayload),
	}
	for i, item := range m.Items {
		order.Items[i] = item.ToDomain()
	}
	return order
}

// FromDomain populates the persistence model from a domain Order entity.
func (m *OrderModel) FromDomain(o *trade.Order) {
	m.FromDomainBaseEntity(o.BaseEntity)
	m.OrderNumber = o.OrderNumber
	m.ExternalOrderID = o.ExternalOrderID
	m.ClientID = o.ClientID
	m.Status = o.Status
	m.Origin = o.Origin
	m.DeliveryName = o.Delivery.Name
	m.DeliveryAddress = o.Delivery.Address
	m.DeliveryCity = o.Delivery.City
	m.DeliveryState = o.Delivery.State
	m.DeliveryPostcode = o.Delivery.Postcode
	m.DeliveryCountry = o.Delivery.Country
	m.DeliveryPhone = o.Delivery.Phone
	m.DeliveryMethod = o.Delivery.Method
	m.DeliveryNotes = o.Delivery.Notes
	m.Subtotal = o.Subtotal
	m.ShippingTotal = o.ShippingTotal
	m.Total = o.Total
	m.ExternalPayload = nullableJSON(o.ExternalPayload)
	m.SyncColumns = SyncColumnsFromDomain(o.Sync)
	// An inbound order carries its storefront id on the row itself
	if m.ExternalOrderID == nil {
		m.ExternalOrderID = o.Sync.ExternalOrderID
	}
	m.Items = make([]OrderItemModel, len(o.Items))
	for i, item := range o.Items {
		m.Items[i] = OrderItemModelFromDomain(o.ID, item)
	}
}

// OrderModelFromDomain creates a new persistence model from a domain Order entity.
func OrderModelFromDomain(o *trade.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

// OrderItemModel is the persistence model for an order line
type OrderItemModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index"`
	SKU       string          `gorm:"column:sku;type:varchar(64);not null"`
	Name      string          `gorm:"type:varchar(200);not null"`
	Quantity  int             `gorm:"not null"`
	Reserved  int             `gorm:"column:reserved_quantity;not null;default:0"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Total     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// ToDomain converts the persistence model to a domain OrderItem.
func (m *OrderItemModel) ToDomain() trade.OrderItem {
	return trade.OrderItem{
		ID:        m.ID,
		ProductID: m.ProductID,
		SKU:       m.SKU,
		Name:      m.Name,
		Quantity:  m.Quantity,
		Reserved:  m.Reserved,
		UnitPrice: m.UnitPrice,
		Total:     m.Total,
	}
}

// OrderItemModelFromDomain creates a persistence model for one order line
func OrderItemModelFromDomain(orderID uuid.UUID, it trade.OrderItem) OrderItemModel {
	return OrderItemModel{
		ID:        it.ID,
		OrderID:   orderID,
		ProductID: it.ProductID,
		SKU:       it.SKU,
		Name:      it.Name,
		Quantity:  it.Quantity,
		Reserved:  it.Reserved,
		UnitPrice: it.UnitPrice,
		Total:     it.Total,
	}
}

// SaleModel is the persistence model for the Sale aggregate root.
type SaleModel struct {
	BaseModel
	SaleNumber      string                `gorm:"type:varchar(50);not null;uniqueIndex:idx_sales_number"`
	ClientID        *uuid.UUID            `gorm:"type:uuid;index"`
	PaymentMethod   trade.PaymentMethod   `gorm:"type:varchar(20);not null"`
	PaymentDetails  []PaymentDetailColumn `gorm:"type:jsonb;serializer:json"`
	Total           decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	Notes           string                `gorm:"type:text"`
	ExternalOrderID *int64                `gorm:"index"`
	SyncColumns
	Items []SaleItemModel `gorm:"foreignKey:SaleID;references:ID"`
}

// PaymentDetailColumn is one mixed payment leg as stored in the JSON column
type PaymentDetailColumn struct {
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
}

// TableName returns the table name for GORM
func (SaleModel) TableName() string {
	return "sales"
}

// ToDomain converts the persistence model to a domain Sale entity.
func (m *SaleModel) ToDomain() *trade.Sale {
	sale := &trade.Sale{
		BaseEntity:    m.BaseModel.ToDomain(),
		SaleNumber:    m.SaleNumber,
		ClientID:      m.ClientID,
		PaymentMethod: m.PaymentMethod,
		Total:         m.Total,
		Notes:         m.Notes,
		Items:         make([]trade.SaleItem, len(m.Items)),
		Sync:          m.SyncColumns.ToDomain(m.ExternalOrderID),
	}
	for _, d := range m.PaymentDetails {
		sale.PaymentDetails = append(sale.PaymentDetails, trade.PaymentDetail{
			Method:    trade.PaymentMethod(d.Method),
			Amount:    d.Amount,
			Reference: d.Reference,
		})
	}
	for i, item := range m.Items {
		sale.Items[i] = item.ToDomain()
	}
	return sale
}

// FromDomain populates the persistence model from a domain Sale entity.
func (m *SaleModel) FromDomain(s *trade.Sale) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.SaleNumber = s.SaleNumber
	m.ClientID = s.ClientID
	m.PaymentMethod = s.PaymentMethod
	m.Total = s.Total
	m.Notes = s.Notes
	m.ExternalOrderID = s.Sync.ExternalOrderID
	m.SyncColumns = SyncColumnsFromDomain(s.Sync)
	m.PaymentDetails = nil
	for _, d := range s.PaymentDetails {
		m.PaymentDetails = append(m.PaymentDetails, PaymentDetailColumn{
			Method:    string(d.Method),
			Amount:    d.Amount,
			Reference: d.Reference,
		})
	}
	m.Items = make([]SaleItemModel, len(s.Items))
	for i, item := range s.Items {
		m.Items[i] = SaleItemModelFromDomain(s.ID, item)
	}
}

// SaleModelFromDomain creates a new persistence model from a domain Sale entity.
func SaleModelFromDomain(s *trade.Sale) *SaleModel {
	m := &SaleModel{}
	m.FromDomain(s)
	return m
}

// SaleItemModel is the persistence model for a sale line
type SaleItemModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	SaleID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index"`
	SKU       string          `gorm:"column:sku;type:varchar(64);not null"`
	Name      string          `gorm:"type:varchar(200);not null"`
	Quantity  int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Total     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (SaleItemModel) TableName() string {
	return "sale_items"
}

// ToDomain converts the persistence model to a domain SaleItem.
func (m *SaleItemModel) ToDomain() trade.SaleItem {
	return trade.SaleItem{
		ID:        m.ID,
		ProductID: m.ProductID,
		SKU:       m.SKU,
		Name:      m.Name,
		Quantity:  m.Quantity,
		UnitPrice: m.UnitPrice,
		Total:     m.Total,
	}
}

// SaleItemModelFromDomain creates a persistence model for one sale line
func SaleItemModelFromDomain(saleID uuid.UUID, it trade.SaleItem) SaleItemModel {
	return SaleItemModel{
		ID:        it.ID,
		SaleID:    saleID,
		ProductID: it.ProductID,
		SKU:       it.SKU,
		Name:      it.Name,
		Quantity:  it.Quantity,
		UnitPrice: it.UnitPrice,
		Total:     it.Total,
	}
}
