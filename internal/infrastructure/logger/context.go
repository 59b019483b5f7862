package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	// LoggerKey holds the request-scoped logger
	LoggerKey contextKey = "logger"
	// RequestIDKey holds the HTTP request ID
	RequestIDKey contextKey = "request_id"
	// DeliveryIDKey holds the storefront webhook delivery ID
	DeliveryIDKey contextKey = "delivery_id"
	// TopicKey holds the storefront webhook topic
	TopicKey contextKey = "webhook_topic"
)

// WithContext attaches logger to ctx
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext returns the logger attached to ctx, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID stores the request ID and returns the logger tagged with it
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	return withValue(ctx, logger, RequestIDKey, requestID)
}

// WithDeliveryID stores the webhook delivery ID and returns the logger tagged with it
func WithDeliveryID(ctx context.Context, logger *zap.Logger, deliveryID string) (context.Context, *zap.Logger) {
	return withValue(ctx, logger, DeliveryIDKey, deliveryID)
}

// WithWebhookTopic stores the webhook topic and returns the logger tagged with it
func WithWebhookTopic(ctx context.Context, logger *zap.Logger, topic string) (context.Context, *zap.Logger) {
	return withValue(ctx, logger, TopicKey, topic)
}

func withValue(ctx context.Context, logger *zap.Logger, key contextKey, value string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, key, value)
	enriched := logger.With(zap.String(string(key), value))
	return WithContext(ctx, enriched), enriched
}

// GetRequestID returns the request ID in ctx, or ""
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

// GetDeliveryID returns the webhook delivery ID in ctx, or ""
func GetDeliveryID(ctx context.Context) string {
	return stringValue(ctx, DeliveryIDKey)
}

// GetWebhookTopic returns the webhook topic in ctx, or ""
func GetWebhookTopic(ctx context.Context) string {
	return stringValue(ctx, TopicKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// GetTraceID returns the trace ID of the active span, or ""
func GetTraceID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}

// GetSpanID returns the span ID of the active span, or ""
func GetSpanID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.SpanID().String()
}

// Enrich returns base tagged with the correlation IDs found in ctx
// (trace and span, request, webhook delivery and topic)
func Enrich(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	if ctx == nil {
		return base
	}

	fields := make([]zap.Field, 0, 5)
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		fields = append(fields,
			zap.String("trace_id", spanCtx.TraceID().String()),
			zap.String("span_id", spanCtx.SpanID().String()),
		)
	}
	for _, key := range []contextKey{RequestIDKey, DeliveryIDKey, TopicKey} {
		if v := stringValue(ctx, key); v != "" {
			fields = append(fields, zap.String(string(key), v))
		}
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
