package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	barcodeapp "github.com/erp/wooerp/internal/application/barcode"
	"github.com/erp/wooerp/internal/interfaces/http/handler"
	"github.com/erp/wooerp/internal/interfaces/http/middleware"
)

type emptyResolver struct{}

func (emptyResolver) Resolve(context.Context, string) (*barcodeapp.Resolution, error) {
	return nil, nil
}

func (emptyResolver) Accept(context.Context, string, barcodeapp.AcceptOverrides) (*barcodeapp.AcceptResult, error) {
	return nil, nil
}

func (emptyResolver) Ignore(context.Context, string, string) error { return nil }

func newTestEngine(t *testing.T, opts Options) http.Handler {
	t.Helper()
	return New(opts, Handlers{
		System:  handler.NewSystemHandler("wooerp", "test", nil),
		Webhook: handler.NewWebhookHandler(handler.WebhookConfig{Secret: "s"}, nil, nil, nil, nil, nil),
		Product: handler.NewProductHandler(nil),
		Barcode: handler.NewBarcodeHandler(emptyResolver{}),
	}, nil)
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNew_SystemRoutes(t *testing.T) {
	engine := newTestEngine(t, Options{})

	w := do(engine, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDKey))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/ready", "").Code)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/api/v1/system/info", "").Code)
	assert.Equal(t, http.StatusNotFound, do(engine, http.MethodGet, "/api/v1/clients", "").Code)
}

func TestNew_WebhookPingReachesHandler(t *testing.T) {
	engine := newTestEngine(t, Options{})

	w := do(engine, http.MethodPost, "/api/v1/webhooks/woocommerce/orders", `{"webhook_id":3}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"test":true`)
}

func TestNew_BodyLimitsArePerGroup(t *testing.T) {
	engine := newTestEngine(t, Options{MaxBodySize: 32, WebhookMaxPayload: 1024})
	large := `{"webhook_id":3,"pad":"` + strings.Repeat("x", 100) + `"}`

	w := do(engine, http.MethodPost, "/api/v1/products", large)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = do(engine, http.MethodPost, "/api/v1/webhooks/woocommerce/orders", large)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNew_BarcodeRateLimit(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, time.Minute)
	t.Cleanup(limiter.Stop)
	engine := newTestEngine(t, Options{BarcodeLimiter: limiter})

	first := do(engine, http.MethodGet, "/api/v1/barcodes/5449000000996", "")
	require.Equal(t, http.StatusNotFound, first.Code)

	second := do(engine, http.MethodGet, "/api/v1/barcodes/5449000000996", "")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))

	// other groups are not throttled
	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/health", "").Code)
}

func TestNew_OmitsMissingHandlers(t *testing.T) {
	engine := New(Options{}, Handlers{}, nil)

	assert.Equal(t, http.StatusNotFound, do(engine, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusNotFound, do(engine, http.MethodPost, "/api/v1/sales", "{}").Code)
}
