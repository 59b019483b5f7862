package integration

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/erp/wooerp/internal/domain/catalog"
	"github.com/erp/wooerp/internal/domain/integration"
	"github.com/erp/wooerp/internal/domain/partner"
	"github.com/erp/wooerp/internal/domain/shared"
	"github.com/erp/wooerp/internal/domain/trade"
	zaplog "github.com/erp/wooerp/internal/infrastructure/logger"
	"github.com/erp/wooerp/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// stockPushConcurrency bounds parallel storefront stock updates per sync
const stockPushConcurrency = 4

// Meta keys written on outbound storefront orders
const (
	MetaLocalNumber = "_erp_number"
	MetaLocalKind   = "_erp_kind"
)

// OrderSyncService pushes local orders and sales to the storefront and
// records the outcome on the record's sync state.
type OrderSyncService struct {
	orders     trade.OrderRepository
	sales      trade.SaleRepository
	products   catalog.ProductRepository
	clients    partner.ClientRepository
	storefront integration.Storefront
	logger     *zap.Logger
	metrics    *telemetry.SyncMetrics
}

// NewOrderSyncService creates a new OrderSyncService
func NewOrderSyncService(
	orders trade.OrderRepository,
	sales trade.SaleRepository,
	products catalog.ProductRepository,
	clients partner.ClientRepository,
	storefront integration.Storefront,
	logger *zap.Logger,
) *OrderSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderSyncService{
		orders:     orders,
		sales:      sales,
		products:   products,
		clients:    clients,
		storefront: storefront,
		logger:     logger,
	}
}

// SetSyncMetrics sets the metrics recorder
func (s *OrderSyncService) SetSyncMetrics(m *telemetry.SyncMetrics) {
	s.metrics = m
}

// outboundLine is a local line item waiting for its storefront product id
type outboundLine struct {
	ProductID uuid.UUID
	SKU       string
	Quantity  int
	Total     decimal.Decimal
}

// mappedLine is a line resolved to a storefront product
type mappedLine struct {
	input   integration.OrderLineInput
	product *catalog.Product
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// SyncOrder creates or updates the storefront counterpart of a local order.
// Orders that came from the storefront are never pushed back.
func (s *OrderSyncService) SyncOrder(ctx context.Context, orderID uuid.UUID) (*integration.OrderSyncResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order_sync", "sync_order",
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, orderID.String()))
	defer span.End()

	result, err := s.syncOrder(ctx, orderID)
	s.metrics.RecordSync(ctx, "order", outcomeOf(err))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return result, nil
}

func (s *OrderSyncService) syncOrder(ctx context.Context, orderID uuid.UUID) (*integration.OrderSyncResult, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.ShouldSyncOutbound() {
		s.log(ctx).Debug("Order originated on the storefront, not pushing back",
			zap.String("order_id", order.ID.String()))
		return nil, integration.ErrOrderSyncSkipped
	}
	if !s.storefront.IsConfigured() {
		return nil, integration.ErrPlatformNotConfigured
	}

	result, err := s.pushOrder(ctx, order)
	if err != nil {
		order.Sync.MarkFailed(err.Error())
		s.saveOrderState(ctx, order)
		s.log(ctx).Warn("Order sync failed",
			zap.String("order_id", order.ID.String()),
			zap.String("order_number", order.OrderNumber),
			zap.Error(err),
		)
		return nil, err
	}

	order.Sync.MarkSynced(result.ExternalID, result.ExternalNumber)
	if err := s.orders.SaveSyncState(ctx, order.ID, order.Sync); err != nil {
		return nil, err
	}
	s.log(ctx).Info("Order synced to storefront",
		zap.String("order_id", order.ID.String()),
		zap.Int64("external_order_id", result.ExternalID),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

func (s *OrderSyncService) pushOrder(ctx context.Context, order *trade.Order) (*integration.OrderSyncResult, error) {
	client, err := s.clients.FindByID(ctx, order.ClientID)
	if err != nil {
		return nil, err
	}
	customerID, err := s.ensureCustomer(ctx, client)
	if err != nil {
		return nil, err
	}

	lines := make([]outboundLine, 0, len(order.Items))
	for _, it := range order.Items {
		lines = append(lines, outboundLine{ProductID: it.ProductID, SKU: it.SKU, Quantity: it.Quantity, Total: it.Total})
	}
	mapped, warnings := s.mapLines(ctx, lines)
	if len(mapped) == 0 {
		return nil, integration.ErrOrderSyncNoLineItems
	}

	billing := billingFor(client)
	shipping := shippingFor(order.Delivery, billing)
	input := integration.OrderInput{
		Status:        integration.MapOutboundStatus(order.Status),
		CustomerID:    customerID,
		Billing:       billing,
		Shipping:      shipping,
		LineItems:     lineInputs(mapped),
		ShippingTotal: order.ShippingTotal,
		CustomerNote:  order.Delivery.Notes,
		MetaData: []integration.MetaEntry{
			{Key: MetaLocalNumber, Value: order.OrderNumber},
			{Key: MetaLocalKind, Value: "order"},
		},
	}

	ext, created, err := s.upsertExternal(ctx, order.Sync.ExternalOrderID, input)
	if err != nil {
		return nil, err
	}
	if created {
		warnings = append(warnings, s.pushStock(ctx, mapped)...)
	}
	return &integration.OrderSyncResult{ExternalID: ext.ID, ExternalNumber: ext.Number, Warnings: warnings}, nil
}

func (s *OrderSyncService) saveOrderState(ctx context.Context, order *trade.Order) {
	if err := s.orders.SaveSyncState(ctx, order.ID, order.Sync); err != nil {
		s.log(ctx).Error("Failed to record order sync state",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
}

// ---------------------------------------------------------------------------
// Sales
// ---------------------------------------------------------------------------

// SyncSale pushes a sale as a completed, paid storefront order
func (s *OrderSyncService) SyncSale(ctx context.Context, saleID uuid.UUID) (*integration.OrderSyncResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order_sync", "sync_sale",
		telemetry.WithAttribute(telemetry.SpanAttrSaleID, saleID.String()))
	defer span.End()

	result, err := s.syncSale(ctx, saleID)
	s.metrics.RecordSync(ctx, "sale", outcomeOf(err))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return result, nil
}

func (s *OrderSyncService) syncSale(ctx context.Context, saleID uuid.UUID) (*integration.OrderSyncResult, error) {
	sale, err := s.sales.FindByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if !s.storefront.IsConfigured() {
		return nil, integration.ErrPlatformNotConfigured
	}

	result, err := s.pushSale(ctx, sale)
	if err != nil {
		sale.Sync.MarkFailed(err.Error())
		if saveErr := s.sales.SaveSyncState(ctx, sale.ID, sale.Sync); saveErr != nil {
			s.log(ctx).Error("Failed to record sale sync state",
				zap.String("sale_id", sale.ID.String()),
				zap.Error(saveErr),
			)
		}
		s.log(ctx).Warn("Sale sync failed",
			zap.String("sale_id", sale.ID.String()),
			zap.String("sale_number", sale.SaleNumber),
			zap.Error(err),
		)
		return nil, err
	}

	sale.Sync.MarkSynced(result.ExternalID, result.ExternalNumber)
	if err := s.sales.SaveSyncState(ctx, sale.ID, sale.Sync); err != nil {
		return nil, err
	}
	s.log(ctx).Info("Sale synced to storefront",
		zap.String("sale_id", sale.ID.String()),
		zap.Int64("external_order_id", result.ExternalID),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

func (s *OrderSyncService) pushSale(ctx context.Context, sale *trade.Sale) (*integration.OrderSyncResult, error) {
	var (
		customerID int64
		billing    integration.Address
	)
	if sale.ClientID != nil {
		client, err := s.clients.FindByID(ctx, *sale.ClientID)
		if err != nil {
			return nil, err
		}
		if customerID, err = s.ensureCustomer(ctx, client); err != nil {
			return nil, err
		}
		billing = billingFor(client)
	}

	lines := make([]outboundLine, 0, len(sale.Items))
	for _, it := range sale.Items {
		lines = append(lines, outboundLine{ProductID: it.ProductID, SKU: it.SKU, Quantity: it.Quantity, Total: it.Total})
	}
	mapped, warnings := s.mapLines(ctx, lines)
	if len(mapped) == 0 {
		return nil, integration.ErrOrderSyncNoLineItems
	}

	methodID, methodTitle := integration.MapPaymentMethod(sale.PaymentMethod)
	input := integration.OrderInput{
		Status:             integration.ExternalStatusCompleted,
		CustomerID:         customerID,
		PaymentMethod:      methodID,
		PaymentMethodTitle: methodTitle,
		SetPaid:            true,
		Billing:            billing,
		Shipping:           billing,
		LineItems:          lineInputs(mapped),
		CustomerNote:       sale.Notes,
		MetaData: []integration.MetaEntry{
			{Key: MetaLocalNumber, Value: sale.SaleNumber},
			{Key: MetaLocalKind, Value: "sale"},
		},
	}

	ext, created, err := s.upsertExternal(ctx, sale.Sync.ExternalOrderID, input)
	if err != nil {
		return nil, err
	}
	if created {
		warnings = append(warnings, s.pushStock(ctx, mapped)...)
	}
	return &integration.OrderSyncResult{ExternalID: ext.ID, ExternalNumber: ext.Number, Warnings: warnings}, nil
}

// ---------------------------------------------------------------------------
// Shared steps
// ---------------------------------------------------------------------------

// upsertExternal updates the linked storefront order, or creates one when
// there is no link or the linked order is gone.
func (s *OrderSyncService) upsertExternal(ctx context.Context, externalID *int64, in integration.OrderInput) (*integration.ExternalOrder, bool, error) {
	if externalID != nil {
		ext, err := s.storefront.UpdateOrder(ctx, *externalID, in)
		if err == nil {
			return ext, false, nil
		}
		if !integration.IsRemoteNotFound(err) {
			return nil, false, err
		}
		s.log(ctx).Warn("Linked storefront order is gone, creating it again", zap.Int64("external_order_id", *externalID))
	}
	ext, err := s.storefront.CreateOrder(ctx, in)
	if err != nil {
		return nil, false, err
	}
	return ext, true, nil
}

// ensureCustomer returns the storefront customer id of the client, finding
// it by email or creating it. Clients without email order as guests.
func (s *OrderSyncService) ensureCustomer(ctx context.Context, client *partner.Client) (int64, error) {
	if client.ExternalCustomerID != nil {
		return *client.ExternalCustomerID, nil
	}
	email := strings.TrimSpace(client.Email)
	if email == "" || !strings.Contains(email, "@") {
		return 0, nil
	}

	customer, err := s.storefront.FindCustomerByEmail(ctx, email)
	if err != nil {
		return 0, err
	}
	if customer == nil {
		first, last := splitName(client.Name, email)
		customer, err = s.storefront.CreateCustomer(ctx, integration.CustomerInput{
			Email:     email,
			FirstName: first,
			LastName:  last,
			Billing:   billingFor(client),
		})
		if err != nil {
			return 0, err
		}
		s.log(ctx).Info("Storefront customer created",
			zap.String("client_code", client.Code),
			zap.Int64("customer_id", customer.ID),
		)
	}

	if err := s.clients.SetExternalCustomerID(ctx, client.ID, customer.ID); err != nil {
		s.log(ctx).Warn("Failed to store storefront customer id",
			zap.String("client_code", client.Code),
			zap.Error(err),
		)
	}
	return customer.ID, nil
}

// mapLines resolves each line to a storefront product id: the stored id,
// else a SKU search whose result is stored back. Unresolved lines are
// dropped with a warning.
func (s *OrderSyncService) mapLines(ctx context.Context, lines []outboundLine) ([]mappedLine, []string) {
	var (
		mapped   []mappedLine
		warnings []string
	)
	for _, line := range lines {
		product, err := s.products.FindByID(ctx, line.ProductID)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("product %s dropped: %v", line.SKU, err))
			continue
		}
		externalID, err := s.externalProductID(ctx, product)
		if err != nil {
			s.log(ctx).Warn("Line item dropped from outbound order",
				zap.String("sku", product.Code),
				zap.Error(err),
			)
			warnings = append(warnings, fmt.Sprintf("product %s dropped: %v", product.Code, err))
			continue
		}
		mapped = append(mapped, mappedLine{
			input: integration.OrderLineInput{
				ProductID: externalID,
				Quantity:  line.Quantity,
				Subtotal:  line.Total,
				Total:     line.Total,
			},
			product: product,
		})
	}
	return mapped, warnings
}

func (s *OrderSyncService) externalProductID(ctx context.Context, product *catalog.Product) (int64, error) {
	if product.ExternalID != nil {
		return *product.ExternalID, nil
	}
	ext, err := s.storefront.FindProductBySKU(ctx, product.Code)
	if err != nil {
		return 0, err
	}
	if ext == nil {
		return 0, shared.NewNotFoundError("storefront product with sku", product.Code)
	}
	if err := s.products.SetExternalID(ctx, product.ID, ext.ID); err != nil {
		s.log(ctx).Warn("Failed to store storefront product id",
			zap.String("sku", product.Code),
			zap.Error(err),
		)
	}
	product.LinkExternal(ext.ID)
	return ext.ID, nil
}

// pushStock sends the local stock level of every pushed product. Failures
// are collected as warnings and never fail the sync.
func (s *OrderSyncService) pushStock(ctx context.Context, lines []mappedLine) []string {
	var (
		mu       sync.Mutex
		warnings []string
		g        errgroup.Group
	)
	g.SetLimit(stockPushConcurrency)

	seen := make(map[int64]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.input.ProductID]; ok {
			continue
		}
		seen[line.input.ProductID] = struct{}{}

		g.Go(func() error {
			current, err := s.products.FindByID(ctx, line.product.ID)
			if err == nil {
				err = s.storefront.SetProductStock(ctx, line.input.ProductID, current.Stock.Current)
			}
			if err != nil {
				s.log(ctx).Warn("Storefront stock update failed",
					zap.String("sku", line.product.Code),
					zap.Int64("external_id", line.input.ProductID),
					zap.Error(err),
				)
				mu.Lock()
				warnings = append(warnings, fmt.Sprintf("stock update for %s failed: %v", line.product.Code, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return warnings
}

func lineInputs(lines []mappedLine) []integration.OrderLineInput {
	out := make([]integration.OrderLineInput, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.input)
	}
	return out
}

func billingFor(client *partner.Client) integration.Address {
	first, last := splitName(client.Name, client.Email)
	return integration.Address{
		FirstName: first,
		LastName:  last,
		Address1:  client.Address,
		City:      client.City,
		Email:     client.Email,
		Phone:     client.Phone,
	}
}

func shippingFor(d trade.DeliveryInfo, billing integration.Address) integration.Address {
	if d.Address == "" && d.City == "" {
		return billing
	}
	first, last := splitName(d.Name, billing.Email)
	return integration.Address{
		FirstName: first,
		LastName:  last,
		Address1:  d.Address,
		City:      d.City,
		State:     d.State,
		Postcode:  d.Postcode,
		Country:   d.Country,
		Phone:     d.Phone,
	}
}

// splitName splits a display name into first and last name. An empty name
// falls back to the local part of the email.
func splitName(name, email string) (first, last string) {
	name = strings.TrimSpace(name)
	if name == "" {
		local, _, _ := strings.Cut(email, "@")
		return local, ""
	}
	first, last, _ = strings.Cut(name, " ")
	return first, strings.TrimSpace(last)
}

func (s *OrderSyncService) log(ctx context.Context) *zap.Logger {
	return zaplog.Enrich(ctx, s.logger)
}
