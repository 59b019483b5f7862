package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/erp/wooerp/internal/infrastructure/telemetry"
)

// Webhook headers copied onto the server span
const (
	webhookDeliveryHeader = "X-WC-Webhook-Delivery-ID"
	webhookTopicHeader    = "X-WC-Webhook-Topic"
	maxHeaderAttrLength   = 128
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// Tracing returns the otelgin middleware, or a pass-through when tracing is
// off. Span names follow "METHOD /route".
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// SpanAttributes adds request_id and the webhook delivery and topic headers
// to the server span. Place it after Tracing and RequestID.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			enrichSpan(c, span)
		}
		c.Next()
	}
}

func enrichSpan(c *gin.Context, span trace.Span) {
	if id := GetRequestID(c); id != "" {
		span.SetAttributes(attribute.String("request_id", id))
	}
	if id := truncate(c.GetHeader(webhookDeliveryHeader)); id != "" {
		span.SetAttributes(attribute.String(telemetry.SpanAttrDeliveryID, id))
	}
	if topic := truncate(c.GetHeader(webhookTopicHeader)); topic != "" {
		span.SetAttributes(attribute.String(telemetry.SpanAttrTopic, topic))
	}
}

func truncate(s string) string {
	if len(s) > maxHeaderAttrLength {
		return s[:maxHeaderAttrLength]
	}
	return s
}

// SpanErrorMarker marks the server span as failed for 5xx responses and
// records the status for 4xx. Place it after Tracing.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}
		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
