package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	barcodeapp "github.com/erp/wooerp/internal/application/barcode"
	catalogapp "github.com/erp/wooerp/internal/application/catalog"
	integrationapp "github.com/erp/wooerp/internal/application/integration"
	tradeapp "github.com/erp/wooerp/internal/application/trade"
	"github.com/erp/wooerp/internal/infrastructure/archive"
	"github.com/erp/wooerp/internal/infrastructure/barcodeprovider"
	"github.com/erp/wooerp/internal/infrastructure/cache"
	"github.com/erp/wooerp/internal/infrastructure/config"
	"github.com/erp/wooerp/internal/infrastructure/logger"
	"github.com/erp/wooerp/internal/infrastructure/persistence"
	"github.com/erp/wooerp/internal/infrastructure/persistence/models"
	"github.com/erp/wooerp/internal/infrastructure/scheduler"
	"github.com/erp/wooerp/internal/infrastructure/telemetry"
	"github.com/erp/wooerp/internal/infrastructure/woocommerce"
	"github.com/erp/wooerp/internal/interfaces/http/handler"
	"github.com/erp/wooerp/internal/interfaces/http/middleware"
	"github.com/erp/wooerp/internal/interfaces/http/router"
)

const serviceVersion = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		TimeFormat:  logger.DefaultTimeFormat,
		Service:     cfg.App.Name,
		Environment: cfg.App.Env,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting WooCommerce ERP",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry: traces, metrics, logs, then profiling linked to spans
	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	log = loggerProvider.Bridge(log, zapcore.InfoLevel)

	profiler, err := telemetry.NewProfiler(cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	var meter metric.Meter
	if meterProvider.IsEnabled() {
		meter = meterProvider.Meter(telemetry.TracerName)
	}

	// Database
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, log,
		logger.MapGormLogLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if db.Driver == "sqlite" {
		if err := db.DB.AutoMigrate(models.All()...); err != nil {
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
	}
	dbInstrumentation, err := telemetry.NewDBInstrumentation(cfg.Telemetry, meter, log)
	if err != nil {
		log.Fatal("Failed to create database instrumentation", zap.Error(err))
	}
	if err := dbInstrumentation.Register(db.DB); err != nil {
		log.Fatal("Failed to instrument database", zap.Error(err))
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to get sql.DB", zap.Error(err))
	}
	log.Info("Database connected successfully", zap.String("driver", db.Driver))

	// Repositories
	productRepo := persistence.NewGormProductRepository(db.DB)
	categoryRepo := persistence.NewGormCategoryRepository(db.DB)
	clientRepo := persistence.NewGormClientRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	saleRepo := persistence.NewGormSaleRepository(db.DB)
	barcodeCacheRepo := persistence.NewGormBarcodeCacheRepository(db.DB, log)
	uow := persistence.NewGormUnitOfWork(db.DB)

	// Storefront
	storefront := woocommerce.NewClient(woocommerce.ConfigFromSettings(cfg.WooCommerce),
		woocommerce.WithLogger(log.Named("woocommerce")))
	if !storefront.IsConfigured() {
		log.Warn("WooCommerce credentials missing; storefront sync is disabled")
	}

	// Metrics
	syncMetrics, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter:         meter,
		Logger:        log,
		StockProvider: telemetry.NewGormStockMetricsProvider(db.DB),
	})
	if err != nil && !errors.Is(err, telemetry.ErrMeterNil) {
		log.Warn("Sync metrics disabled", zap.Error(err))
	}
	if syncMetrics != nil {
		syncMetrics.StartPeriodicCollection(ctx, cfg.Telemetry.MetricsInterval)
		defer syncMetrics.Stop()
	}

	// Application services
	productSync := integrationapp.NewProductSyncService(productRepo, categoryRepo, storefront,
		cfg.WooCommerce.PageSize, log.Named("product_sync"))
	productSync.SetSyncMetrics(syncMetrics)
	orderSync := integrationapp.NewOrderSyncService(orderRepo, saleRepo, productRepo, clientRepo,
		storefront, log.Named("order_sync"))
	orderSync.SetSyncMetrics(syncMetrics)
	ingestion := integrationapp.NewOrderIngestionService(orderRepo, productRepo,
		integrationapp.NewClientResolver(clientRepo, cfg.WooCommerce.ClientType, log),
		uow, cfg.WooCommerce.OrderNumberPrefix, log.Named("order_ingestion"))
	ingestion.SetSyncMetrics(syncMetrics)

	productService := catalogapp.NewProductService(productRepo, categoryRepo, log)
	productService.SetProductSyncer(productSync)
	orderService := tradeapp.NewOrderService(orderRepo, productRepo, clientRepo, uow, log)
	orderService.SetOrderSyncer(orderSync)
	orderService.SetSyncMetrics(syncMetrics)
	saleService := tradeapp.NewSaleService(saleRepo, productRepo, uow, cfg.Sales.MixedPaymentTolerance, log)
	saleService.SetSaleSyncer(orderSync)
	saleService.SetSyncMetrics(syncMetrics)

	providers, err := barcodeprovider.FromConfig(cfg.Barcode, &http.Client{Timeout: cfg.Barcode.ProviderTimeout})
	if err != nil {
		log.Fatal("Invalid barcode provider configuration", zap.Error(err))
	}
	resolver := barcodeapp.NewResolver(productRepo, barcodeCacheRepo, providers, barcodeapp.Config{
		ProviderTimeout:    cfg.Barcode.ProviderTimeout,
		ResolveTimeout:     cfg.Barcode.ResolveTimeout,
		MaxRawPayloadBytes: cfg.Barcode.MaxRawPayloadBytes,
	}, log.Named("barcode"))
	resolver.SetProductSyncer(productSync)
	resolver.SetSyncMetrics(syncMetrics)

	// Webhook delivery dedup and payload archive
	deliveries, err := cache.NewIdempotencyStoreFactory(cfg.Idempotency, cfg.Redis,
		cache.WithLogger(log), cache.WithInMemoryFallback(true)).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := deliveries.Close(); err != nil {
			log.Warn("Error closing idempotency store", zap.Error(err))
		}
	}()
	payloadArchive, err := archive.New(ctx, cfg.Archive, log)
	if err != nil {
		log.Fatal("Failed to create payload archive", zap.Error(err))
	}

	// Sync retry scheduler
	retryScheduler, err := scheduler.NewSyncRetryScheduler(cfg.Sync, orderRepo, saleRepo, orderSync, log.Named("sync_retry"))
	if err != nil {
		log.Fatal("Failed to create sync retry scheduler", zap.Error(err))
	}
	if cfg.Sync.RetryEnabled {
		if err := retryScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start sync retry scheduler", zap.Error(err))
		}
	}

	// HTTP handlers
	webhookHandler := handler.NewWebhookHandler(handler.WebhookConfig{
		Secret:        cfg.WooCommerce.WebhookSecret,
		MaxPayload:    cfg.HTTP.WebhookMaxPayload,
		IngestTimeout: cfg.HTTP.IngestTimeout,
		DeliveryTTL:   cfg.Idempotency.TTL,
	}, ingestion, productSync, deliveries, payloadArchive, log.Named("webhook"))
	webhookHandler.SetSyncMetrics(syncMetrics)

	var barcodeLimiter *middleware.RateLimiter
	if cfg.Barcode.LookupRateLimit > 0 {
		barcodeLimiter = middleware.NewRateLimiter(cfg.Barcode.LookupRateLimit, cfg.Barcode.LookupRateWindow)
		defer barcodeLimiter.Stop()
	}

	profilingCfg := middleware.DefaultProfilingConfig()
	profilingCfg.Enabled = profiler.IsEnabled()

	engine := router.New(router.Options{
		ServiceName:       cfg.Telemetry.ServiceName,
		Production:        cfg.App.Env == "production",
		TrustedProxies:    cfg.HTTP.TrustedProxies,
		MaxBodySize:       cfg.HTTP.MaxBodySize,
		WebhookMaxPayload: cfg.HTTP.WebhookMaxPayload,
		TracingEnabled:    tracerProvider.IsEnabled(),
		Meter:             meter,
		Profiling:         profilingCfg,
		BarcodeLimiter:    barcodeLimiter,
	}, router.Handlers{
		System:      handler.NewSystemHandler(cfg.App.Name, serviceVersion, sqlDB),
		Webhook:     webhookHandler,
		Integration: handler.NewIntegrationHandler(ingestion, cfg.HTTP.IngestTimeout),
		Product:     handler.NewProductHandler(productService),
		Order:       handler.NewOrderHandler(orderService),
		Sale:        handler.NewSaleHandler(saleService),
		Barcode:     handler.NewBarcodeHandler(resolver),
		Sync:        handler.NewSyncHandler(productSync, orderSync),
	}, log)

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", zap.Error(err))
			stop()
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := retryScheduler.Stop(shutdownCtx); err != nil {
		log.Warn("Error stopping sync retry scheduler", zap.Error(err))
	}
	shutdownTelemetry(shutdownCtx, log, profiler, tracerProvider, meterProvider, loggerProvider)

	log.Info("Server exited gracefully")
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdownTelemetry flushes exporters after the server has drained
func shutdownTelemetry(ctx context.Context, log *zap.Logger, profiler *telemetry.Profiler, providers ...shutdowner) {
	if err := profiler.Stop(); err != nil {
		log.Warn("Error stopping profiler", zap.Error(err))
	}
	for _, p := range providers {
		if err := p.Shutdown(ctx); err != nil {
			log.Warn("Error shutting down telemetry provider", zap.Error(err))
		}
	}
}
