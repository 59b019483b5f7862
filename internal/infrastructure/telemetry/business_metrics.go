package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// SyncMetrics tracks storefront synchronization and barcode lookups.
// Every Record method is safe on a nil receiver so services can run
// without metrics wired.
type SyncMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	webhookTotal       *Counter
	syncTotal          *Counter
	stockClampTotal    *Counter
	saleCreatedTotal   *Counter
	saleAmountTotal    *Counter
	barcodeLookupTotal *Counter

	// Histogram metrics
	providerLatency *Histogram

	// Gauge metrics (point-in-time values)
	lowStockCount   *Gauge
	syncBacklogSize *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	stockProvider StockMetricsProvider
}

// StockMetricsProvider provides catalog and backlog data for periodic collection.
// This interface allows the telemetry layer to query state without
// depending on the persistence layer directly.
type StockMetricsProvider interface {
	// GetLowStockCount returns the number of active products below their minimum
	GetLowStockCount(ctx context.Context) (int64, error)

	// GetSyncBacklog returns records per entity whose sync status is not synced
	GetSyncBacklog(ctx context.Context) (map[string]int64, error)
}

// SyncMetricsConfig holds configuration for sync metrics.
type SyncMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	StockProvider   StockMetricsProvider
}

// NewSyncMetrics creates a new SyncMetrics instance.
func NewSyncMetrics(cfg SyncMetricsConfig) (*SyncMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &SyncMetrics{
		meter:         cfg.Meter,
		logger:        logger,
		stopChan:      make(chan struct{}),
		stockProvider: cfg.StockProvider,
	}

	var err error

	// Storefront metrics
	if sm.webhookTotal, err = NewCounter(cfg.Meter,
		"erp_webhook_received_total", "Inbound storefront order events by action and outcome", "{events}"); err != nil {
		return nil, err
	}
	if sm.syncTotal, err = NewCounter(cfg.Meter,
		"erp_sync_total", "Outbound sync attempts by entity and outcome", "{attempts}"); err != nil {
		return nil, err
	}
	if sm.stockClampTotal, err = NewCounter(cfg.Meter,
		"erp_stock_clamped_total", "Stock decrements clamped at zero", "{decrements}"); err != nil {
		return nil, err
	}

	// Sale metrics
	if sm.saleCreatedTotal, err = NewCounter(cfg.Meter,
		"erp_sale_created_total", "Total number of sales created", "{sales}"); err != nil {
		return nil, err
	}
	if sm.saleAmountTotal, err = NewCounter(cfg.Meter,
		"erp_sale_amount_total", "Total sale amount in cents", "{cents}"); err != nil {
		return nil, err
	}

	// Barcode metrics
	if sm.barcodeLookupTotal, err = NewCounter(cfg.Meter,
		"erp_barcode_lookup_total", "Barcode resolutions by answering source", "{lookups}"); err != nil {
		return nil, err
	}
	if sm.providerLatency, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "erp_barcode_provider_duration_seconds",
		Description: "Barcode provider search latency",
		Unit:        "s",
		Boundaries:  HTTPDurationBuckets,
	}); err != nil {
		return nil, err
	}

	// Gauges
	if sm.lowStockCount, err = NewGauge(cfg.Meter,
		"erp_products_low_stock_count", "Number of products below minimum stock threshold", "{products}"); err != nil {
		return nil, err
	}
	if sm.syncBacklogSize, err = NewGauge(cfg.Meter,
		"erp_sync_backlog_size", "Records waiting for outbound sync", "{records}"); err != nil {
		return nil, err
	}

	return sm, nil
}

// =============================================================================
// Storefront Metrics
// =============================================================================

// SyncOutcome labels the result of a sync or webhook for metrics.
type SyncOutcome string

const (
	SyncOutcomeSuccess       SyncOutcome = "success"
	SyncOutcomeDuplicate     SyncOutcome = "duplicate"
	SyncOutcomeTest          SyncOutcome = "test"
	SyncOutcomeFailed        SyncOutcome = "failed"
	SyncOutcomeSkipped       SyncOutcome = "skipped"
	SyncOutcomeNotConfigured SyncOutcome = "not_configured"
)

// RecordWebhook records an inbound order event.
func (sm *SyncMetrics) RecordWebhook(ctx context.Context, action string, outcome SyncOutcome) {
	if sm == nil {
		return
	}
	sm.webhookTotal.Inc(ctx,
		AttrSyncAction.String(action),
		AttrSyncOutcome.String(string(outcome)),
	)
}

// RecordSync records an outbound sync attempt for product, order or sale.
func (sm *SyncMetrics) RecordSync(ctx context.Context, entity string, outcome SyncOutcome) {
	if sm == nil {
		return
	}
	sm.syncTotal.Inc(ctx,
		AttrSyncEntity.String(entity),
		AttrSyncOutcome.String(string(outcome)),
	)
}

// RecordStockClamp records a decrement that hit zero before the requested quantity.
func (sm *SyncMetrics) RecordStockClamp(ctx context.Context, entity string) {
	if sm == nil {
		return
	}
	sm.stockClampTotal.Inc(ctx, AttrSyncEntity.String(entity))
}

// RecordSale records a sale creation with its amount.
func (sm *SyncMetrics) RecordSale(ctx context.Context, paymentMethod string, amount decimal.Decimal) {
	if sm == nil {
		return
	}
	sm.saleCreatedTotal.Inc(ctx, AttrPaymentMethod.String(paymentMethod))
	sm.saleAmountTotal.Add(ctx, amount.Mul(decimal.NewFromInt(100)).IntPart(),
		AttrPaymentMethod.String(paymentMethod))
}

// =============================================================================
// Barcode Metrics
// =============================================================================

// RecordBarcodeLookup records which source answered a resolution:
// product, cache, provider name, or not_found.
func (sm *SyncMetrics) RecordBarcodeLookup(ctx context.Context, source string) {
	if sm == nil {
		return
	}
	sm.barcodeLookupTotal.Inc(ctx, AttrLookupSource.String(source))
}

// RecordProviderSearch records one provider search latency and result kind.
func (sm *SyncMetrics) RecordProviderSearch(ctx context.Context, provider, kind string, d time.Duration) {
	if sm == nil {
		return
	}
	sm.providerLatency.RecordDuration(ctx, d,
		AttrProvider.String(provider),
		AttrProviderKind.String(kind),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of gauge metrics.
// This is non-blocking - use Stop() to stop collection.
func (sm *SyncMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	sm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go sm.runPeriodicCollection(ctx, interval)
	})
}

func (sm *SyncMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sm.collect(ctx)

	for {
		select {
		case <-sm.stopChan:
			sm.logger.Info("Stopping periodic sync metrics collection")
			return
		case <-ctx.Done():
			sm.logger.Info("Context cancelled, stopping periodic sync metrics collection")
			return
		case <-ticker.C:
			sm.collect(ctx)
		}
	}
}

func (sm *SyncMetrics) collect(ctx context.Context) {
	if sm.stockProvider == nil {
		sm.logger.Debug("No stock provider configured, skipping gauge collection")
		return
	}

	lowStock, err := sm.stockProvider.GetLowStockCount(ctx)
	if err != nil {
		sm.logger.Warn("Failed to get low stock count", zap.Error(err))
	} else {
		sm.lowStockCount.Record(ctx, lowStock)
	}

	backlog, err := sm.stockProvider.GetSyncBacklog(ctx)
	if err != nil {
		sm.logger.Warn("Failed to get sync backlog", zap.Error(err))
		return
	}
	for entity, n := range backlog {
		sm.syncBacklogSize.Record(ctx, n, AttrSyncEntity.String(entity))
	}
}

// Stop stops the periodic collection.
func (sm *SyncMetrics) Stop() {
	sm.stopOnce.Do(func() {
		close(sm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewSyncMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
