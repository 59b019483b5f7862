package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/wooerp/internal/domain/integration"
	"github.com/erp/wooerp/internal/domain/shared"
	"github.com/erp/wooerp/internal/infrastructure/logger"
	"github.com/erp/wooerp/internal/infrastructure/telemetry"
	"github.com/erp/wooerp/internal/infrastructure/woocommerce"
	"github.com/erp/wooerp/internal/interfaces/http/dto"
)

// OrderIngester applies inbound order events
type OrderIngester interface {
	Ingest(ctx context.Context, raw []byte, action integration.Action) (*integration.IngestResult, error)
}

// ProductEventApplier applies inbound product events
type ProductEventApplier interface {
	ApplyExternalProduct(ctx context.Context, raw []byte, action integration.Action) (*integration.ProductEventResult, error)
}

// WebhookConfig holds the webhook receiving limits
type WebhookConfig struct {
	// Secret verifies X-WC-Webhook-Signature. Empty disables verification.
	Secret        string
	MaxPayload    int64
	IngestTimeout time.Duration
	// DeliveryTTL is how long a delivery ID is remembered
	DeliveryTTL time.Duration
}

// WebhookHandler receives WooCommerce order and product webhooks. These
// endpoints are authenticated by signature, not by session.
type WebhookHandler struct {
	BaseHandler
	cfg        WebhookConfig
	orders     OrderIngester
	products   ProductEventApplier
	deliveries shared.IdempotencyStore
	archive    integration.PayloadArchive
	metrics    *telemetry.SyncMetrics
	logger     *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler. deliveries and archive may be nil.
func NewWebhookHandler(
	cfg WebhookConfig,
	orders OrderIngester,
	products ProductEventApplier,
	deliveries shared.IdempotencyStore,
	archive integration.PayloadArchive,
	logger *zap.Logger,
) *WebhookHandler {
	if cfg.MaxPayload <= 0 {
		cfg.MaxPayload = 1 << 20
	}
	if cfg.IngestTimeout <= 0 {
		cfg.IngestTimeout = 30 * time.Second
	}
	if cfg.DeliveryTTL <= 0 {
		cfg.DeliveryTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{
		cfg:        cfg,
		orders:     orders,
		products:   products,
		deliveries: deliveries,
		archive:    archive,
		logger:     logger,
	}
}

// SetSyncMetrics sets the metrics recorder
func (h *WebhookHandler) SetSyncMetrics(m *telemetry.SyncMetrics) {
	h.metrics = m
}

// WebhookResponse is the acknowledgement sent back to the storefront
type WebhookResponse struct {
	Received      bool       `json:"received"`
	Action        string     `json:"action,omitempty"`
	OrderID       *uuid.UUID `json:"order_id,omitempty"`
	ProductID     *uuid.UUID `json:"product_id,omitempty"`
	AlreadyExists bool       `json:"already_exists,omitempty"`
	Duplicate     bool       `json:"duplicate,omitempty"`
	Test          bool       `json:"test,omitempty"`
	Skipped       bool       `json:"skipped,omitempty"`
	Message       string     `json:"message,omitempty"`
	Warnings      []string   `json:"warnings,omitempty"`
}

// delivery is a received and verified webhook
type delivery struct {
	body   []byte
	action integration.Action
	id     string
	topic  string
	marked bool
	log    *zap.Logger
}

// HandleOrderWebhook handles POST /webhooks/woocommerce/orders
func (h *WebhookHandler) HandleOrderWebhook(c *gin.Context) {
	d, ok := h.receive(c, "orders")
	if !ok {
		return
	}

	ctx, cancel := h.ingestContext(c)
	defer cancel()
	result, err := h.orders.Ingest(ctx, d.body, d.action)
	if err != nil {
		h.fail(c, d, err)
		return
	}

	resp := WebhookResponse{
		Received:      true,
		Action:        string(result.Action),
		AlreadyExists: result.AlreadyExisted,
		Test:          result.Test,
		Warnings:      result.Warnings,
	}
	switch {
	case result.Test:
		resp.Message = "Ping acknowledged"
		h.metrics.RecordWebhook(ctx, string(d.action), telemetry.SyncOutcomeTest)
	case result.Order != nil:
		id := result.Order.ID
		resp.OrderID = &id
		h.metrics.RecordWebhook(ctx, string(d.action), telemetry.SyncOutcomeSuccess)
	case result.DeletedID != nil:
		resp.OrderID = result.DeletedID
		resp.Message = "Order deleted"
		h.metrics.RecordWebhook(ctx, string(d.action), telemetry.SyncOutcomeSuccess)
	}
	c.JSON(http.StatusOK, resp)
}

// HandleProductWebhook handles POST /webhooks/woocommerce/products
func (h *WebhookHandler) HandleProductWebhook(c *gin.Context) {
	d, ok := h.receive(c, "products")
	if !ok {
		return
	}

	ctx, cancel := h.ingestContext(c)
	defer cancel()
	result, err := h.products.ApplyExternalProduct(ctx, d.body, d.action)
	if err != nil {
		h.fail(c, d, err)
		return
	}

	resp := WebhookResponse{
		Received: true,
		Action:   string(d.action),
		Skipped:  result.Skipped,
		Warnings: result.Warnings,
	}
	if result.Product != nil {
		id := result.Product.ID
		resp.ProductID = &id
	}
	outcome := telemetry.SyncOutcomeSuccess
	if result.Skipped {
		outcome = telemetry.SyncOutcomeSkipped
	}
	h.metrics.RecordWebhook(ctx, string(d.action), outcome)
	c.JSON(http.StatusOK, resp)
}

// receive reads, verifies, dedups and archives a webhook. When it returns
// false the response has been written.
func (h *WebhookHandler) receive(c *gin.Context, kind string) (*delivery, bool) {
	d := &delivery{
		id:    c.GetHeader(woocommerce.HeaderDeliveryID),
		topic: c.GetHeader(woocommerce.HeaderTopic),
	}
	d.action = integration.ActionFromTopic(d.topic)
	ctx, log := logger.WithDeliveryID(c.Request.Context(), h.logger, d.id)
	ctx, log = logger.WithWebhookTopic(ctx, log, d.topic)
	c.Request = c.Request.WithContext(ctx)
	d.log = log

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, h.cfg.MaxPayload+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.reject(c, d, http.StatusRequestEntityTooLarge, dto.ErrCodePayloadTooLarge, "Payload too large")
			return nil, false
		}
		h.reject(c, d, http.StatusBadRequest, dto.ErrCodeBadRequest, "Failed to read request body")
		return nil, false
	}
	if int64(len(body)) > h.cfg.MaxPayload {
		h.reject(c, d, http.StatusRequestEntityTooLarge, dto.ErrCodePayloadTooLarge, "Payload too large")
		return nil, false
	}
	d.body = body

	// the storefront pings a new webhook before it has a secret to sign with
	if integration.IsPing(body) {
		log.Info("Webhook ping received")
		h.metrics.RecordWebhook(ctx, string(d.action), telemetry.SyncOutcomeTest)
		c.JSON(http.StatusOK, WebhookResponse{Received: true, Test: true, Message: "Ping acknowledged"})
		return nil, false
	}

	if err := woocommerce.VerifySignature(h.cfg.Secret, body, c.GetHeader(woocommerce.HeaderSignature)); err != nil {
		log.Warn("Webhook signature rejected", zap.Error(err))
		h.reject(c, d, http.StatusUnauthorized, dto.ErrCodeInvalidSignature, "Webhook signature verification failed")
		return nil, false
	}

	if d.id != "" && h.deliveries != nil {
		fresh, err := h.deliveries.MarkProcessed(ctx, d.id, h.cfg.DeliveryTTL)
		switch {
		case err != nil:
			// fall through to ingestion, which is idempotent on its own
			log.Warn("Delivery dedup unavailable", zap.Error(err))
		case !fresh:
			log.Info("Duplicate webhook delivery ignored")
			h.metrics.RecordWebhook(ctx, string(d.action), telemetry.SyncOutcomeDuplicate)
			c.JSON(http.StatusOK, WebhookResponse{
				Received:  true,
				Action:    string(d.action),
				Duplicate: true,
				Message:   "Delivery already processed",
			})
			return nil, false
		default:
			d.marked = true
		}
	}

	if h.archive != nil {
		key := d.id
		if key == "" {
			key = fmt.Sprintf("%s-%d", d.action, time.Now().UnixNano())
		}
		if err := h.archive.Store(ctx, kind, key, body); err != nil {
			log.Warn("Failed to archive webhook payload", zap.Error(err))
		}
	}
	return d, true
}

// ingestContext detaches processing from the caller so a disconnect cannot
// leave a half-written order
func (h *WebhookHandler) ingestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.cfg.IngestTimeout)
}

// fail releases the delivery so a redelivery is processed, then answers
// 400 for bad payloads and 500 for everything the storefront should retry
func (h *WebhookHandler) fail(c *gin.Context, d *delivery, err error) {
	ctx := context.WithoutCancel(c.Request.Context())
	log := d.log

	// deleting an order the ERP never had leaves nothing to retry
	if d.action == integration.ActionDelete && shared.IsNotFound(err) {
		log.Info("Delete for unknown storefront resource ignored", zap.Error(err))
		h.metrics.RecordWebhook(ctx, string(d.action), telemetry.SyncOutcomeSkipped)
		c.JSON(http.StatusOK, WebhookResponse{Received: true, Action: string(d.action), Skipped: true, Message: err.Error()})
		return
	}

	if d.marked {
		if rerr := h.deliveries.Release(ctx, d.id); rerr != nil {
			log.Warn("Failed to release webhook delivery", zap.Error(rerr))
		}
	}
	h.metrics.RecordWebhook(ctx, string(d.action), telemetry.SyncOutcomeFailed)

	if shared.IsValidation(err) {
		log.Warn("Webhook payload rejected", zap.Error(err))
		h.reject(c, d, http.StatusBadRequest, dto.ErrCodeValidation, err.Error())
		return
	}
	log.Error("Webhook processing failed", zap.Error(err))
	h.reject(c, d, http.StatusInternalServerError, dto.ErrCodeInternal, "Webhook processing failed")
}

func (h *WebhookHandler) reject(c *gin.Context, d *delivery, status int, code, message string) {
	if status == http.StatusUnauthorized || status == http.StatusRequestEntityTooLarge {
		h.metrics.RecordWebhook(c.Request.Context(), string(d.action), telemetry.SyncOutcomeFailed)
	}
	h.Error(c, status, code, message)
}
