package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Storefront webhook headers
const (
	DeliveryIDHeader = "X-WC-Webhook-Delivery-ID"
	TopicHeader      = "X-WC-Webhook-Topic"
)

// requestIDKey is the gin context key the RequestID middleware writes
const requestIDKey = "request_id"

// GinOption configures the access log
type GinOption func(*ginConfig)

type ginConfig struct {
	quietPaths map[string]bool
}

// WithQuietPaths logs successful requests to these paths at debug, for
// probes that would otherwise flood the log
func WithQuietPaths(paths ...string) GinOption {
	return func(c *ginConfig) {
		for _, p := range paths {
			c.quietPaths[p] = true
		}
	}
}

// GinMiddleware writes one access log entry per request and puts a
// request-scoped logger, tagged with the request ID and any webhook
// delivery ID and topic, into the request context.
func GinMiddleware(logger *zap.Logger, opts ...GinOption) gin.HandlerFunc {
	cfg := &ginConfig{quietPaths: map[string]bool{}}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		ctx, reqLogger := WithRequestID(c.Request.Context(),
			logger.With(zap.String("method", c.Request.Method), zap.String("path", path)),
			c.GetString(requestIDKey))
		if deliveryID := c.GetHeader(DeliveryIDHeader); deliveryID != "" {
			ctx, reqLogger = WithDeliveryID(ctx, reqLogger, deliveryID)
		}
		if topic := c.GetHeader(TopicHeader); topic != "" {
			ctx, reqLogger = WithWebhookTopic(ctx, reqLogger, topic)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if route := c.FullPath(); route != "" && route != path {
			fields = append(fields, zap.String("route", route))
		}
		if query != "" {
			fields = append(fields, zap.String("query", query))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		const msg = "HTTP request"
		switch {
		case status >= http.StatusInternalServerError:
			reqLogger.Error(msg, fields...)
		case status >= http.StatusBadRequest:
			reqLogger.Warn(msg, fields...)
		case cfg.quietPaths[path]:
			reqLogger.Debug(msg, fields...)
		default:
			reqLogger.Info(msg, fields...)
		}
	}
}

// Recovery logs panics with their stack and lets respond write the 500.
// A nil respond aborts with an empty 500.
func Recovery(logger *zap.Logger, respond func(c *gin.Context)) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}

			logger.Error("Panic recovered",
				zap.String("request_id", c.GetString(requestIDKey)),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", recovered),
				zap.Stack("stacktrace"),
			)
			if respond == nil || c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			respond(c)
			c.Abort()
		}()
		c.Next()
	}
}
