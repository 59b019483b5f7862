package trade

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/wooerp/internal/domain/catalog"
	"github.com/erp/wooerp/internal/domain/integration"
	"github.com/erp/wooerp/internal/domain/trade"
	"github.com/erp/wooerp/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SaleSyncer pushes a sale to the storefront
type SaleSyncer interface {
	SyncSale(ctx context.Context, saleID uuid.UUID) (*integration.OrderSyncResult, error)
}

// SaleService handles point-of-sale operations
type SaleService struct {
	saleRepo    trade.SaleRepository
	productRepo catalog.ProductRepository
	uow         trade.UnitOfWork
	tolerance   decimal.Decimal
	syncer      SaleSyncer
	logger      *zap.Logger
	metrics     *telemetry.SyncMetrics
	now         func() time.Time
}

// NewSaleService creates a new SaleService. tolerance is the accepted
// absolute difference between mixed payment details and the sale total.
func NewSaleService(
	saleRepo trade.SaleRepository,
	productRepo catalog.ProductRepository,
	uow trade.UnitOfWork,
	tolerance decimal.Decimal,
	logger *zap.Logger,
) *SaleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tolerance.IsNegative() {
		tolerance = trade.DefaultMixedPaymentTolerance
	}
	return &SaleService{
		saleRepo:    saleRepo,
		productRepo: productRepo,
		uow:         uow,
		tolerance:   tolerance,
		logger:      logger,
		now:         time.Now,
	}
}

// SetSaleSyncer sets the outbound sync run after each sale
func (s *SaleService) SetSaleSyncer(syncer SaleSyncer) {
	s.syncer = syncer
}

// SetSyncMetrics sets the metrics recorder
func (s *SaleService) SetSyncMetrics(m *telemetry.SyncMetrics) {
	s.metrics = m
}

// GetByID returns a sale by ID
func (s *SaleService) GetByID(ctx context.Context, id uuid.UUID) (*SaleResponse, error) {
	sale, err := s.saleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToSaleResponse(sale)
	return &resp, nil
}

// CreateSale registers a sale. The sale row, its items and the stock
// decrement of every item commit together. The payment breakdown is checked
// before anything is written. Storefront sync runs after commit and its
// failure only shows up in the sync state and the warnings.
func (s *SaleService) CreateSale(ctx context.Context, req CreateSaleRequest) (*SaleResult, error) {
	sale, err := trade.NewSale(trade.GenerateSaleNumber(s.now()), req.ClientID, trade.PaymentMethod(req.PaymentMethod))
	if err != nil {
		return nil, err
	}
	sale.Notes = req.Notes

	for _, item := range req.Items {
		product, err := s.productRepo.FindByID(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		price := product.Price
		if item.UnitPrice != nil {
			price = *item.UnitPrice
		}
		if err := sale.AddItem(product.ID, product.Code, product.Name, item.Quantity, price); err != nil {
			return nil, err
		}
	}

	for _, d := range req.PaymentDetails {
		sale.PaymentDetails = append(sale.PaymentDetails, trade.PaymentDetail{
			Method:    trade.PaymentMethod(d.Method),
			Amount:    d.Amount,
			Reference: d.Reference,
		})
	}
	if err := trade.ValidatePayment(sale.PaymentMethod, sale.PaymentDetails, sale.Total, s.tolerance); err != nil {
		return nil, err
	}

	var shortfalls []trade.Shortfall
	err = s.uow.Execute(ctx, func(repos trade.TxRepositories) error {
		if err := repos.Sales.Create(ctx, sale); err != nil {
			return err
		}
		reservation, err := trade.ReserveStock(ctx, repos.Products, sale.StockLines())
		if err != nil {
			return err
		}
		shortfalls = reservation.Shortfalls
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create sale",
			zap.String("sale_number", sale.SaleNumber),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.RecordSale(ctx, string(sale.PaymentMethod), sale.Total)
	s.logger.Info("Sale created",
		zap.String("sale_id", sale.ID.String()),
		zap.String("sale_number", sale.SaleNumber),
		zap.String("total", sale.Total.StringFixed(2)),
	)

	var warnings []string
	for _, sf := range shortfalls {
		s.metrics.RecordStockClamp(ctx, "sale")
		s.logger.Warn("Sale stock clamped to zero",
			zap.String("sale_number", sale.SaleNumber),
			zap.String("sku", sf.SKU),
			zap.Int("missing", sf.Missing),
		)
		warnings = append(warnings, sf.Warning())
	}

	warnings = append(warnings, s.syncAfterCommit(ctx, sale)...)
	return &SaleResult{Sale: ToSaleResponse(sale), Warnings: warnings}, nil
}

// RetrySaleSync pushes a sale again. Unlike the sync after creation, a
// failure here is the result of the call.
func (s *SaleService) RetrySaleSync(ctx context.Context, id uuid.UUID) (*integration.OrderSyncResult, error) {
	if s.syncer == nil {
		return nil, integration.ErrPlatformNotConfigured
	}
	return s.syncer.SyncSale(ctx, id)
}

// syncAfterCommit runs the outbound sync and mirrors its outcome on the
// in-memory sale, which the syncer persisted separately.
func (s *SaleService) syncAfterCommit(ctx context.Context, sale *trade.Sale) []string {
	if s.syncer == nil {
		return nil
	}
	result, err := s.syncer.SyncSale(ctx, sale.ID)
	if err != nil {
		if integration.IsNotConfigured(err) {
			return []string{"storefront not configured; sale was not synced"}
		}
		sale.Sync.MarkFailed(err.Error())
		s.logger.Warn("Sale saved but storefront sync failed",
			zap.String("sale_number", sale.SaleNumber),
			zap.Error(err),
		)
		return []string{fmt.Sprintf("sale saved but storefront sync failed: %v", err)}
	}
	sale.Sync.MarkSynced(result.ExternalID, result.ExternalNumber)
	return result.Warnings
}
