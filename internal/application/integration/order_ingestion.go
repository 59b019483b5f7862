package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erp/wooerp/internal/domain/catalog"
	"github.com/erp/wooerp/internal/domain/integration"
	"github.com/erp/wooerp/internal/domain/shared"
	"github.com/erp/wooerp/internal/domain/trade"
	zaplog "github.com/erp/wooerp/internal/infrastructure/logger"
	"github.com/erp/wooerp/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultOrderNumberPrefix prefixes the storefront number in local order numbers
const DefaultOrderNumberPrefix = "WC-"

// OrderIngestionService turns storefront order events into local orders.
// Redelivered events are answered with the stored order; the unique index on
// the external order id is the backstop for concurrent deliveries.
type OrderIngestionService struct {
	orders       trade.OrderRepository
	products     catalog.ProductRepository
	clients      *ClientResolver
	uow          trade.UnitOfWork
	numberPrefix string
	logger       *zap.Logger
	metrics      *telemetry.SyncMetrics
}

// NewOrderIngestionService creates a new OrderIngestionService
func NewOrderIngestionService(
	orders trade.OrderRepository,
	products catalog.ProductRepository,
	clients *ClientResolver,
	uow trade.UnitOfWork,
	numberPrefix string,
	logger *zap.Logger,
) *OrderIngestionService {
	if numberPrefix == "" {
		numberPrefix = DefaultOrderNumberPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderIngestionService{
		orders:       orders,
		products:     products,
		clients:      clients,
		uow:          uow,
		numberPrefix: numberPrefix,
		logger:       logger,
	}
}

// SetSyncMetrics sets the metrics recorder
func (s *OrderIngestionService) SetSyncMetrics(m *telemetry.SyncMetrics) {
	s.metrics = m
}

// Ingest applies one inbound order event. Steps run strictly in order:
// decode, validate, dedup, client, line items, persist.
func (s *OrderIngestionService) Ingest(ctx context.Context, raw []byte, action integration.Action) (*integration.IngestResult, error) {
	if !action.IsValid() {
		action = integration.ActionCreate
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "order_ingestion", "ingest",
		telemetry.WithAttribute("action", string(action)))
	defer span.End()

	result, err := s.ingest(ctx, raw, action)
	switch {
	case err != nil:
		s.metrics.RecordSync(ctx, "order_inbound", telemetry.SyncOutcomeFailed)
		telemetry.RecordError(span, err)
		return nil, err
	case result.Test:
		s.metrics.RecordSync(ctx, "order_inbound", telemetry.SyncOutcomeTest)
	case result.AlreadyExisted:
		s.metrics.RecordSync(ctx, "order_inbound", telemetry.SyncOutcomeDuplicate)
	default:
		s.metrics.RecordSync(ctx, "order_inbound", telemetry.SyncOutcomeSuccess)
	}
	return result, nil
}

func (s *OrderIngestionService) ingest(ctx context.Context, raw []byte, action integration.Action) (*integration.IngestResult, error) {
	in, err := integration.DecodeOrderPayload(raw)
	if err != nil {
		return nil, err
	}
	if in.Test {
		s.log(ctx).Info("Storefront webhook ping acknowledged", zap.String("webhook_id", in.WebhookID))
		return &integration.IngestResult{Action: action, Test: true}, nil
	}
	if err := in.Validate(action); err != nil {
		return nil, err
	}

	existing, err := s.findExisting(ctx, in)
	if err != nil {
		return nil, err
	}

	switch action {
	case integration.ActionDelete:
		if existing == nil {
			return nil, shared.NewNotFoundError("order with external id", fmt.Sprint(in.ExternalID))
		}
		return s.delete(ctx, existing)

	case integration.ActionUpdate:
		if existing != nil {
			return s.merge(ctx, existing, in)
		}
		s.log(ctx).Info("Update for unknown storefront order, creating it",
			zap.Int64("external_order_id", in.ExternalID))
		return s.create(ctx, in, action)

	default:
		if existing != nil {
			s.log(ctx).Warn("Duplicate storefront order ignored",
				zap.Int64("external_order_id", in.ExternalID),
				zap.String("order_id", existing.ID.String()),
			)
			return &integration.IngestResult{Action: action, Order: existing, AlreadyExisted: true}, nil
		}
		return s.create(ctx, in, action)
	}
}

// findExisting looks the order up by external id, then by prefixed number
func (s *OrderIngestionService) findExisting(ctx context.Context, in *integration.InboundOrder) (*trade.Order, error) {
	order, err := s.orders.FindByExternalID(ctx, in.ExternalID)
	if err == nil {
		return order, nil
	}
	if !shared.IsNotFound(err) {
		return nil, err
	}
	if in.Number == "" {
		return nil, nil
	}
	order, err = s.orders.FindByOrderNumber(ctx, s.orderNumber(in))
	if err == nil {
		return order, nil
	}
	if shared.IsNotFound(err) {
		return nil, nil
	}
	return nil, err
}

func (s *OrderIngestionService) orderNumber(in *integration.InboundOrder) string {
	return s.numberPrefix + in.Number
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func (s *OrderIngestionService) create(ctx context.Context, in *integration.InboundOrder, action integration.Action) (*integration.IngestResult, error) {
	client, err := s.clients.Resolve(ctx, in.Email, in.Billing)
	if err != nil {
		return nil, err
	}

	order, err := trade.NewOrder(s.orderNumber(in), client.ID, trade.OriginExternal)
	if err != nil {
		return nil, err
	}
	externalID := in.ExternalID
	order.ExternalOrderID = &externalID
	order.Status = integration.MapInboundStatus(in.Status)
	order.Delivery = deliveryFrom(in)
	order.ExternalPayload = in.Raw
	order.Sync = trade.SyncState{
		Status:          trade.SyncStatusSynced,
		ExternalOrderID: &externalID,
		ExternalNumber:  in.Number,
	}

	warnings, err := s.mapLineItems(ctx, in, order)
	if err != nil {
		return nil, err
	}
	order.SetShippingTotal(in.ShippingTotal)

	var shortfalls []trade.Shortfall
	err = s.uow.Execute(ctx, func(repos trade.TxRepositories) error {
		shortfalls = nil
		if order.Status.HoldsStock() {
			reservation, err := trade.ReserveStock(ctx, repos.Products, order.StockLines())
			if err != nil {
				return err
			}
			order.RecordReservation(reservation)
			shortfalls = reservation.Shortfalls
		}
		return repos.Orders.Create(ctx, order)
	})
	if errors.Is(err, shared.ErrAlreadyExists) {
		// A concurrent delivery won the insert
		winner, findErr := s.orders.FindByExternalID(ctx, in.ExternalID)
		if findErr != nil {
			return nil, err
		}
		s.log(ctx).Warn("Concurrent duplicate storefront order resolved by unique index",
			zap.Int64("external_order_id", in.ExternalID),
			zap.String("order_id", winner.ID.String()),
		)
		return &integration.IngestResult{Action: action, Order: winner, AlreadyExisted: true}, nil
	}
	if err != nil {
		s.log(ctx).Error("Failed to store storefront order",
			zap.Int64("external_order_id", in.ExternalID),
			zap.Error(err),
		)
		return nil, err
	}

	for _, sf := range shortfalls {
		s.metrics.RecordStockClamp(ctx, "order")
		s.log(ctx).Warn("Stock reservation clamped", zap.String("sku", sf.SKU), zap.Int("missing", sf.Missing))
		warnings = append(warnings, sf.Warning())
	}

	s.log(ctx).Info("Storefront order ingested",
		zap.Int64("external_order_id", in.ExternalID),
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.Int("items", order.ItemCount()),
		zap.Int("warnings", len(warnings)),
	)
	return &integration.IngestResult{Action: action, Order: order, Warnings: warnings}, nil
}

// mapLineItems resolves every inbound line by SKU. Unknown SKUs become
// warnings; an order with no resolvable line fails.
func (s *OrderIngestionService) mapLineItems(ctx context.Context, in *integration.InboundOrder, order *trade.Order) ([]string, error) {
	products := map[string]*catalog.Product{}
	if skus := in.SKUs(); len(skus) > 0 {
		found, err := s.products.FindByCodes(ctx, skus)
		if err != nil {
			return nil, err
		}
		products = found
	}

	var warnings, missing []string
	for _, item := range in.Items {
		if item.SKU == "" {
			warnings = append(warnings, fmt.Sprintf("line item %q has no sku", item.Name))
			missing = append(missing, item.Name)
			continue
		}
		product, ok := products[item.SKU]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("product with sku %s not found", item.SKU))
			missing = append(missing, item.SKU)
			continue
		}
		name := item.Name
		if name == "" {
			name = product.Name
		}
		if err := order.AddItem(product.ID, product.Code, name, item.Quantity, item.UnitPrice()); err != nil {
			warnings = append(warnings, fmt.Sprintf("line item %s skipped: %v", item.SKU, err))
			continue
		}
	}

	if order.ItemCount() == 0 {
		return nil, shared.NewValidationError("line_items",
			fmt.Sprintf("no valid products in inbound order (unresolved: %s)", strings.Join(missing, ", ")))
	}
	if len(missing) > 0 {
		s.log(ctx).Warn("Inbound order has unknown products",
			zap.Int64("external_order_id", in.ExternalID),
			zap.Strings("missing", missing),
		)
	}
	return warnings, nil
}

// ---------------------------------------------------------------------------
// Update / Delete
// ---------------------------------------------------------------------------

// merge copies header fields of an update event into the stored order. Line
// items are kept as ingested; a status the graph does not allow is reported
// as a warning and ignored.
func (s *OrderIngestionService) merge(ctx context.Context, order *trade.Order, in *integration.InboundOrder) (*integration.IngestResult, error) {
	var warnings []string
	heldStock := order.Status.HoldsStock()

	next := integration.MapInboundStatus(in.Status)
	if next != order.Status {
		if err := order.TransitionTo(next); err != nil {
			warnings = append(warnings, fmt.Sprintf("status change ignored: %v", err))
			s.log(ctx).Warn("Storefront status change rejected by status graph",
				zap.Int64("external_order_id", in.ExternalID),
				zap.String("from", order.Status.String()),
				zap.String("to", next.String()),
			)
		}
	}

	order.Delivery = deliveryFrom(in)
	order.SetShippingTotal(in.ShippingTotal)
	order.ExternalPayload = in.Raw
	if order.ExternalOrderID == nil {
		externalID := in.ExternalID
		order.ExternalOrderID = &externalID
	}
	order.Sync.ExternalOrderID = order.ExternalOrderID
	order.Sync.ExternalNumber = in.Number
	order.Touch()

	release := heldStock && !order.Status.HoldsStock()
	err := s.uow.Execute(ctx, func(repos trade.TxRepositories) error {
		if err := repos.Orders.Update(ctx, order); err != nil {
			return err
		}
		if release {
			return trade.ReleaseStock(ctx, repos.Products, order.ReservedStockLines())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log(ctx).Info("Storefront order updated",
		zap.Int64("external_order_id", in.ExternalID),
		zap.String("order_id", order.ID.String()),
		zap.String("status", order.Status.String()),
		zap.Bool("stock_released", release),
	)
	return &integration.IngestResult{Action: integration.ActionUpdate, Order: order, Warnings: warnings}, nil
}

// delete removes the order and returns held stock. Outbound cascades are the
// caller's concern.
func (s *OrderIngestionService) delete(ctx context.Context, order *trade.Order) (*integration.IngestResult, error) {
	err := s.uow.Execute(ctx, func(repos trade.TxRepositories) error {
		if order.Status.HoldsStock() && order.Status != trade.OrderStatusCompleted {
			if err := trade.ReleaseStock(ctx, repos.Products, order.ReservedStockLines()); err != nil {
				return err
			}
		}
		return repos.Orders.Delete(ctx, order.ID)
	})
	if err != nil {
		return nil, err
	}

	id := order.ID
	s.log(ctx).Info("Storefront order deleted",
		zap.String("order_id", id.String()),
		zap.String("order_number", order.OrderNumber),
	)
	return &integration.IngestResult{Action: integration.ActionDelete, DeletedID: &id}, nil
}

// deliveryFrom takes the shipping address, falling back to billing
func deliveryFrom(in *integration.InboundOrder) trade.DeliveryInfo {
	addr := in.Shipping
	if addr.Address1 == "" && addr.City == "" {
		addr = in.Billing
	}
	phone := addr.Phone
	if phone == "" {
		phone = in.Billing.Phone
	}
	return trade.DeliveryInfo{
		Name:     addr.FullName(),
		Address:  addr.Street(),
		City:     addr.City,
		State:    addr.State,
		Postcode: addr.Postcode,
		Country:  addr.Country,
		Phone:    phone,
		Method:   in.ShippingLine,
		Notes:    in.CustomerNote,
	}
}

func (s *OrderIngestionService) log(ctx context.Context) *zap.Logger {
	return zaplog.Enrich(ctx, s.logger)
}
