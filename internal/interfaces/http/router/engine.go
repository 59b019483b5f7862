package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/erp/wooerp/internal/infrastructure/logger"
	"github.com/erp/wooerp/internal/interfaces/http/dto"
	"github.com/erp/wooerp/internal/interfaces/http/handler"
	"github.com/erp/wooerp/internal/interfaces/http/middleware"
)

// Options configures the engine and its middleware chain
type Options struct {
	ServiceName    string
	Production     bool
	TrustedProxies []string
	// MaxBodySize caps regular API bodies
	MaxBodySize int64
	// WebhookMaxPayload caps webhook and integration bodies
	WebhookMaxPayload int64
	TracingEnabled    bool
	// Meter records HTTP metrics. Nil disables them.
	Meter     metric.Meter
	Profiling middleware.ProfilingConfig
	// BarcodeLimiter throttles barcode lookups per client. Nil disables it.
	BarcodeLimiter *middleware.RateLimiter
}

// Handlers are the route targets. A nil handler leaves its routes out.
type Handlers struct {
	System      *handler.SystemHandler
	Webhook     *handler.WebhookHandler
	Integration *handler.IntegrationHandler
	Product     *handler.ProductHandler
	Order       *handler.OrderHandler
	Sale        *handler.SaleHandler
	Barcode     *handler.BarcodeHandler
	Sync        *handler.SyncHandler
}

// New builds the gin engine with the middleware chain and all routes.
//
// Middleware order: request ID, recovery, access log, security headers,
// tracing (span, attributes, status), HTTP metrics, profiling labels.
// Body limits are per group.
func New(opts Options, h Handlers, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = 10 << 20
	}
	if opts.WebhookMaxPayload <= 0 {
		opts.WebhookMaxPayload = 1 << 20
	}
	if opts.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(opts.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(opts.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log, func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeInternal, "internal server error", middleware.GetRequestID(c)))
	}))
	engine.Use(logger.GinMiddleware(log, logger.WithQuietPaths("/health", "/ready")))
	engine.Use(middleware.Secure())
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: opts.ServiceName,
		Enabled:     opts.TracingEnabled,
	}))
	engine.Use(middleware.SpanAttributes())
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(opts.Meter, log))
	engine.Use(middleware.Profiling(opts.Profiling))

	if h.System != nil {
		engine.GET("/health", h.System.Health)
		engine.GET("/ready", h.System.Ready)
	}

	r := NewRouter(engine, WithAPIVersion("v1"))
	for _, g := range domainGroups(opts, h) {
		r.Register(g)
	}
	r.Setup()
	return engine
}

func domainGroups(opts Options, h Handlers) []*DomainGroup {
	apiLimit := middleware.BodyLimit(opts.MaxBodySize)
	webhookLimit := middleware.BodyLimit(opts.WebhookMaxPayload)
	var groups []*DomainGroup

	// Webhooks authenticate by signature; the handler enforces its own cap too
	if h.Webhook != nil {
		webhooks := NewDomainGroup("webhooks", "/webhooks/woocommerce").Use(webhookLimit)
		webhooks.POST("/orders", h.Webhook.HandleOrderWebhook)
		webhooks.POST("/products", h.Webhook.HandleProductWebhook)
		groups = append(groups, webhooks)
	}
	if h.Integration != nil {
		integrations := NewDomainGroup("integrations", "/integrations/woocommerce").Use(webhookLimit)
		integrations.POST("/orders", h.Integration.IngestOrder)
		groups = append(groups, integrations)
	}

	if h.Product != nil {
		products := NewDomainGroup("products", "/products").Use(apiLimit)
		products.POST("", h.Product.Create).
			GET("/:id", h.Product.GetByID).
			PUT("/:id", h.Product.Update).
			POST("/:id/stock", h.Product.AdjustStock).
			DELETE("/:id", h.Product.Deactivate)
		groups = append(groups, products)
	}
	if h.Order != nil {
		orders := NewDomainGroup("orders", "/orders").Use(apiLimit)
		orders.POST("", h.Order.Create).
			GET("/:id", h.Order.GetByID).
			PATCH("/:id/status", h.Order.UpdateStatus).
			DELETE("/:id", h.Order.Delete)
		groups = append(groups, orders)
	}
	if h.Sale != nil {
		sales := NewDomainGroup("sales", "/sales").Use(apiLimit)
		sales.POST("", h.Sale.Create).
			GET("/:id", h.Sale.GetByID).
			POST("/:id/sync", h.Sale.RetrySync)
		groups = append(groups, sales)
	}
	if h.Barcode != nil {
		barcodes := NewDomainGroup("barcodes", "/barcodes").Use(apiLimit)
		if opts.BarcodeLimiter != nil {
			barcodes.Use(middleware.RateLimit(opts.BarcodeLimiter))
		}
		barcodes.GET("/:code", h.Barcode.Lookup).
			POST("/:code/accept", h.Barcode.Accept).
			POST("/:code/ignore", h.Barcode.Ignore)
		groups = append(groups, barcodes)
	}
	if h.Sync != nil {
		sync := NewDomainGroup("sync", "/sync").Use(apiLimit)
		sync.Group("products", "/products").
			POST("/link-by-sku", h.Sync.LinkBySKU).
			POST("/:id", h.Sync.SyncProduct)
		sync.POST("/orders/:id", h.Sync.SyncOrder).
			POST("/sales/:id", h.Sync.SyncSale)
		groups = append(groups, sync)
	}
	if h.System != nil {
		system := NewDomainGroup("system", "/system")
		system.GET("/info", h.System.GetSystemInfo)
		groups = append(groups, system)
	}
	return groups
}
