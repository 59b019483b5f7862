package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/erp/wooerp/internal/infrastructure/config"
)

const (
	defaultSlowQueryThreshold = 200 * time.Millisecond
	queryStartKey             = "telemetry:query_start"
)

// DBInstrumentation adds tracing and query metrics to a GORM connection
type DBInstrumentation struct {
	cfg    config.TelemetryConfig
	meter  metric.Meter
	logger *zap.Logger

	queryDuration *Histogram
	queryErrors   *Counter
	slowQueries   *Counter
}

// NewDBInstrumentation prepares the instruments. A nil meter disables metrics.
func NewDBInstrumentation(cfg config.TelemetryConfig, meter metric.Meter, logger *zap.Logger) (*DBInstrumentation, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DBSlowQueryThresh <= 0 {
		cfg.DBSlowQueryThresh = defaultSlowQueryThreshold
	}
	d := &DBInstrumentation{cfg: cfg, meter: meter, logger: logger}
	if meter == nil {
		return d, nil
	}

	var err error
	if d.queryDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "erp_db_query_duration_seconds",
		Description: "Database statement latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if d.queryErrors, err = NewCounter(meter,
		"erp_db_query_errors_total", "Database statements that returned an error", "{statements}"); err != nil {
		return nil, err
	}
	if d.slowQueries, err = NewCounter(meter,
		"erp_db_slow_queries_total", "Database statements slower than the threshold", "{statements}"); err != nil {
		return nil, err
	}
	return d, nil
}

// Register installs otelgorm when DB tracing is on, then the timing
// callbacks and pool gauges
func (d *DBInstrumentation) Register(db *gorm.DB) error {
	if d.cfg.Enabled && d.cfg.DBTraceEnabled {
		opts := []otelgorm.Option{otelgorm.WithDBName(db.Dialector.Name())}
		if !d.cfg.DBLogFullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return fmt.Errorf("failed to register otelgorm: %w", err)
		}
	}

	cb := db.Callback()
	hooks := []struct {
		op     string
		before func(string, func(*gorm.DB)) error
		after  func(string, func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, h := range hooks {
		if err := h.before("telemetry:before_"+h.op, startTimer); err != nil {
			return err
		}
		if err := h.after("telemetry:after_"+h.op, d.observe(h.op)); err != nil {
			return err
		}
	}

	return d.registerPoolGauges(db)
}

func startTimer(db *gorm.DB) {
	db.InstanceSet(queryStartKey, time.Now())
}

func (d *DBInstrumentation) observe(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		v, ok := db.InstanceGet(queryStartKey)
		if !ok {
			return
		}
		start, ok := v.(time.Time)
		if !ok {
			return
		}
		elapsed := time.Since(start)
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		attrs := []attribute.KeyValue{AttrDBOperation.String(op), AttrDBTable.String(db.Statement.Table)}

		if d.queryDuration != nil {
			d.queryDuration.RecordDuration(ctx, elapsed, attrs...)
		}
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) && d.queryErrors != nil {
			d.queryErrors.Inc(ctx, attrs...)
		}
		if elapsed < d.cfg.DBSlowQueryThresh {
			return
		}
		if d.slowQueries != nil {
			d.slowQueries.Inc(ctx, attrs...)
		}
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(attribute.Bool("db.slow_query", true))
		span.AddEvent("slow_query", trace.WithAttributes(
			attribute.Int64("db.duration_ms", elapsed.Milliseconds()),
		))
		d.logger.Warn("Slow database query",
			zap.String("operation", op),
			zap.String("table", db.Statement.Table),
			zap.Duration("duration", elapsed),
		)
	}
}

// registerPoolGauges reports sql.DB pool stats on every collection
func (d *DBInstrumentation) registerPoolGauges(db *gorm.DB) error {
	if d.meter == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	conns, err := d.meter.Int64ObservableGauge("erp_db_pool_connections",
		metric.WithDescription("Connections in the pool by state"),
		metric.WithUnit("{connections}"))
	if err != nil {
		return err
	}
	waits, err := d.meter.Int64ObservableCounter("erp_db_pool_wait_total",
		metric.WithDescription("Connections waited for"),
		metric.WithUnit("{waits}"))
	if err != nil {
		return err
	}

	_, err = d.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := sqlDB.Stats()
		o.ObserveInt64(conns, int64(stats.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
		o.ObserveInt64(conns, int64(stats.Idle), metric.WithAttributes(AttrDBState.String("idle")))
		o.ObserveInt64(conns, int64(stats.MaxOpenConnections), metric.WithAttributes(AttrDBState.String("max_open")))
		o.ObserveInt64(waits, stats.WaitCount)
		return nil
	}, conns, waits)
	return err
}
