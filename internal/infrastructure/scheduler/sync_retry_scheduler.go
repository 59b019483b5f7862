// Package scheduler runs background jobs. The only job today retries the
// outbound storefront sync of sales and orders.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/wooerp/internal/domain/integration"
	"github.com/erp/wooerp/internal/domain/trade"
	"github.com/erp/wooerp/internal/infrastructure/config"
	"github.com/erp/wooerp/internal/infrastructure/telemetry"
)

// maxBackoffShift caps the backoff at interval * 2^6
const maxBackoffShift = 6

// Syncer pushes one record to the storefront
type Syncer interface {
	SyncOrder(ctx context.Context, orderID uuid.UUID) (*integration.OrderSyncResult, error)
	SyncSale(ctx context.Context, saleID uuid.UUID) (*integration.OrderSyncResult, error)
}

// RetryStats summarizes one retry pass
type RetryStats struct {
	Candidates int
	Synced     int
	Failed     int
	Deferred   int
	// Aborted is set when the storefront is not configured
	Aborted bool
}

// SyncRetryScheduler periodically retries sales and orders whose sync
// status is error, or pending for longer than the stale threshold
type SyncRetryScheduler struct {
	config config.SyncConfig
	orders trade.OrderRepository
	sales  trade.SaleRepository
	syncer Syncer
	logger *zap.Logger
	now    func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	runMu     sync.Mutex
}

// NewSyncRetryScheduler creates a new scheduler
func NewSyncRetryScheduler(
	cfg config.SyncConfig,
	orders trade.OrderRepository,
	sales trade.SaleRepository,
	syncer Syncer,
	logger *zap.Logger,
) (*SyncRetryScheduler, error) {
	if cfg.RetryInterval <= 0 || cfg.RetryBatchSize <= 0 || cfg.RetryMaxAttempts < 0 {
		return nil, ErrInvalidConfig
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncRetryScheduler{
		config: cfg,
		orders: orders,
		sales:  sales,
		syncer: syncer,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Start starts the retry loop
func (s *SyncRetryScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Sync retry scheduler started",
		zap.Duration("interval", s.config.RetryInterval),
		zap.Int("batch_size", s.config.RetryBatchSize),
		zap.Int("max_attempts", s.config.RetryMaxAttempts),
	)
	return nil
}

// Stop stops the retry loop, waiting for the current pass to finish
func (s *SyncRetryScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync retry scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync retry scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *SyncRetryScheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("Sync retry pass failed", zap.Error(err))
			}
		}
	}
}

// RunOnce performs one retry pass over sales then orders. Passes never
// overlap.
func (s *SyncRetryScheduler) RunOnce(ctx context.Context) (RetryStats, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	ctx, span := telemetry.StartSpan(ctx, "sync_retry.run")
	defer span.End()

	now := s.now()
	filter := trade.SyncCandidateFilter{
		PendingBefore: now.Add(-s.config.StalePendingAfter),
		RetryBefore:   now.Add(-s.config.RetryInterval),
		MaxAttempts:   s.config.RetryMaxAttempts,
		Limit:         s.config.RetryBatchSize,
	}

	var stats RetryStats

	sales, err := s.sales.FindSyncCandidates(ctx, filter)
	if err != nil {
		telemetry.RecordError(span, err)
		return stats, err
	}
	for _, sale := range sales {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		stats.Candidates++
		if !s.due(sale.Sync, now) {
			stats.Deferred++
			continue
		}
		_, err := s.syncer.SyncSale(ctx, sale.ID)
		if s.record(&stats, "sale", sale.ID, err) {
			s.logPass(stats)
			return stats, nil
		}
	}

	orders, err := s.orders.FindSyncCandidates(ctx, filter)
	if err != nil {
		telemetry.RecordError(span, err)
		return stats, err
	}
	for _, order := range orders {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		stats.Candidates++
		if !s.due(order.Sync, now) {
			stats.Deferred++
			continue
		}
		_, err := s.syncer.SyncOrder(ctx, order.ID)
		if s.record(&stats, "order", order.ID, err) {
			s.logPass(stats)
			return stats, nil
		}
	}

	telemetry.SetAttribute(span, "sync_retry.candidates", stats.Candidates)
	telemetry.SetOK(span)
	s.logPass(stats)
	return stats, nil
}

// due applies exponential backoff on the last attempt of an error record
func (s *SyncRetryScheduler) due(state trade.SyncState, now time.Time) bool {
	if state.Status != trade.SyncStatusError || state.LastAttemptAt == nil {
		return true
	}
	return !now.Before(state.LastAttemptAt.Add(Backoff(s.config.RetryInterval, state.Attempts)))
}

// record counts the outcome and reports whether the pass must stop
func (s *SyncRetryScheduler) record(stats *RetryStats, kind string, id uuid.UUID, err error) bool {
	switch {
	case err == nil:
		stats.Synced++
	case integration.IsNotConfigured(err):
		s.logger.Info("Storefront not configured, skipping sync retry pass")
		stats.Aborted = true
		return true
	case errors.Is(err, integration.ErrOrderSyncSkipped):
	default:
		stats.Failed++
		s.logger.Warn("Sync retry failed",
			zap.String("kind", kind),
			zap.String("id", id.String()),
			zap.Error(err),
		)
	}
	return false
}

func (s *SyncRetryScheduler) logPass(stats RetryStats) {
	if stats.Candidates == 0 {
		return
	}
	s.logger.Info("Sync retry pass finished",
		zap.Int("candidates", stats.Candidates),
		zap.Int("synced", stats.Synced),
		zap.Int("failed", stats.Failed),
		zap.Int("deferred", stats.Deferred),
		zap.Bool("aborted", stats.Aborted),
	)
}

// Backoff returns interval * 2^(attempts-1), capped
func Backoff(interval time.Duration, attempts int) time.Duration {
	if attempts <= 1 {
		return interval
	}
	return interval << min(attempts-1, maxBackoffShift)
}
