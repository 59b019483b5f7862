package trade

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/wooerp/internal/domain/catalog"
	"github.com/erp/wooerp/internal/domain/integration"
	"github.com/erp/wooerp/internal/domain/partner"
	"github.com/erp/wooerp/internal/domain/shared"
	"github.com/erp/wooerp/internal/domain/trade"
	"github.com/erp/wooerp/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderSyncer pushes a local order to the storefront
type OrderSyncer interface {
	SyncOrder(ctx context.Context, orderID uuid.UUID) (*integration.OrderSyncResult, error)
}

// OrderService handles local order operations
type OrderService struct {
	orderRepo   trade.OrderRepository
	productRepo catalog.ProductRepository
	clientRepo  partner.ClientRepository
	uow         trade.UnitOfWork
	syncer      OrderSyncer
	logger      *zap.Logger
	metrics     *telemetry.SyncMetrics
	now         func() time.Time
}

// NewOrderService creates a new OrderService
func NewOrderService(
	orderRepo trade.OrderRepository,
	productRepo catalog.ProductRepository,
	clientRepo partner.ClientRepository,
	uow trade.UnitOfWork,
	logger *zap.Logger,
) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		clientRepo:  clientRepo,
		uow:         uow,
		logger:      logger,
		now:         time.Now,
	}
}

// SetOrderSyncer sets the outbound sync run after each order change
func (s *OrderService) SetOrderSyncer(syncer OrderSyncer) {
	s.syncer = syncer
}

// SetSyncMetrics sets the metrics recorder
func (s *OrderService) SetSyncMetrics(m *telemetry.SyncMetrics) {
	s.metrics = m
}

// GetOrder returns an order by ID
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*OrderResponse, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToOrderResponse(order)
	return &resp, nil
}

// CreateOrder creates a local order and reserves its stock in the same
// transaction, then pushes it to the storefront.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	if _, err := s.clientRepo.FindByID(ctx, req.ClientID); err != nil {
		return nil, err
	}

	order, err := trade.NewOrder(trade.GenerateOrderNumber(s.now()), req.ClientID, trade.OriginLocal)
	if err != nil {
		return nil, err
	}
	order.Delivery = trade.DeliveryInfo(req.Delivery)

	for _, item := range req.Items {
		product, err := s.productRepo.FindByID(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		price := product.Price
		if item.UnitPrice != nil {
			price = *item.UnitPrice
		}
		if err := order.AddItem(product.ID, product.Code, product.Name, item.Quantity, price); err != nil {
			return nil, err
		}
	}
	if req.ShippingTotal != nil {
		order.SetShippingTotal(*req.ShippingTotal)
	}

	var shortfalls []trade.Shortfall
	err = s.uow.Execute(ctx, func(repos trade.TxRepositories) error {
		reservation, err := trade.ReserveStock(ctx, repos.Products, order.StockLines())
		if err != nil {
			return err
		}
		order.RecordReservation(reservation)
		shortfalls = reservation.Shortfalls
		return repos.Orders.Create(ctx, order)
	})
	if err != nil {
		s.logger.Error("Failed to create order",
			zap.String("order_number", order.OrderNumber),
			zap.Error(err),
		)
		return nil, err
	}
	s.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
	)

	var warnings []string
	for _, sf := range shortfalls {
		s.metrics.RecordStockClamp(ctx, "order")
		warnings = append(warnings, sf.Warning())
	}
	warnings = append(warnings, s.syncAfterCommit(ctx, order)...)
	return &OrderResult{Order: ToOrderResponse(order), Warnings: warnings}, nil
}

// UpdateStatus moves the order along the status graph. Leaving the stock
// holding statuses (cancellation) returns the reserved stock.
func (s *OrderService) UpdateStatus(ctx context.Context, id uuid.UUID, req UpdateOrderStatusRequest) (*OrderResult, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := order.Status
	if err := order.TransitionTo(trade.OrderStatus(req.Status)); err != nil {
		return nil, err
	}
	to := order.Status

	err = s.uow.Execute(ctx, func(repos trade.TxRepositories) error {
		if err := repos.Orders.UpdateStatus(ctx, order.ID, from, to); err != nil {
			return err
		}
		if from.HoldsStock() && !to.HoldsStock() {
			return trade.ReleaseStock(ctx, repos.Products, order.ReservedStockLines())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Order status changed",
		zap.String("order_number", order.OrderNumber),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)

	var warnings []string
	if order.ShouldSyncOutbound() {
		warnings = s.syncAfterCommit(ctx, order)
	}
	return &OrderResult{Order: ToOrderResponse(order), Warnings: warnings}, nil
}

// DeleteOrder removes an order still in the initial status and returns its stock
func (s *OrderService) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !order.CanDelete() {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("order %s cannot be deleted in status %s", order.OrderNumber, order.Status))
	}

	err = s.uow.Execute(ctx, func(repos trade.TxRepositories) error {
		if err := trade.ReleaseStock(ctx, repos.Products, order.ReservedStockLines()); err != nil {
			return err
		}
		return repos.Orders.Delete(ctx, order.ID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("Order deleted", zap.String("order_number", order.OrderNumber))
	return nil
}

func (s *OrderService) syncAfterCommit(ctx context.Context, order *trade.Order) []string {
	if s.syncer == nil {
		return nil
	}
	result, err := s.syncer.SyncOrder(ctx, order.ID)
	if err != nil {
		if integration.IsNotConfigured(err) {
			return []string{"storefront not configured; order was not synced"}
		}
		order.Sync.MarkFailed(err.Error())
		s.logger.Warn("Order saved but storefront sync failed",
			zap.String("order_number", order.OrderNumber),
			zap.Error(err),
		)
		return []string{fmt.Sprintf("order saved but storefront sync failed: %v", err)}
	}
	order.Sync.MarkSynced(result.ExternalID, result.ExternalNumber)
	return result.Warnings
}
