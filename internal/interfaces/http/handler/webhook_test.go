package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erp/wooerp/internal/domain/catalog"
	"github.com/erp/wooerp/internal/domain/integration"
	"github.com/erp/wooerp/internal/domain/shared"
	"github.com/erp/wooerp/internal/domain/trade"
	"github.com/erp/wooerp/internal/infrastructure/cache"
	"github.com/erp/wooerp/internal/infrastructure/woocommerce"
	"github.com/erp/wooerp/internal/interfaces/http/dto"
)

const testWebhookSecret = "whsec-test"

type recordingArchive struct {
	mu    sync.Mutex
	keys  []string
	kinds []string
	err   error
}

func (a *recordingArchive) Store(_ context.Context, kind, key string, _ []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.kinds = append(a.kinds, kind)
	a.keys = append(a.keys, key)
	return a.err
}

type webhookFixture struct {
	handler    *WebhookHandler
	orders     *MockOrderIngester
	products   *MockProductEventApplier
	deliveries *cache.InMemoryIdempotencyStore
	archive    *recordingArchive
}

func newWebhookFixture(t *testing.T, cfg WebhookConfig) *webhookFixture {
	t.Helper()
	f := &webhookFixture{
		orders:     new(MockOrderIngester),
		products:   new(MockProductEventApplier),
		deliveries: cache.NewInMemoryIdempotencyStore(),
		archive:    &recordingArchive{},
	}
	t.Cleanup(func() { _ = f.deliveries.Close() })
	f.handler = NewWebhookHandler(cfg, f.orders, f.products, f.deliveries, f.archive, nil)
	return f
}

func (f *webhookFixture) post(path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	return performRequest(func(r *gin.Engine) {
		r.POST("/webhooks/woocommerce/orders", f.handler.HandleOrderWebhook)
		r.POST("/webhooks/woocommerce/products", f.handler.HandleProductWebhook)
	}, http.MethodPost, path, bytes.NewReader(body), headers)
}

func signedHeaders(body []byte, topic, deliveryID string) map[string]string {
	h := map[string]string{
		woocommerce.HeaderSignature: woocommerce.Sign(testWebhookSecret, body),
		woocommerce.HeaderTopic:     topic,
	}
	if deliveryID != "" {
		h[woocommerce.HeaderDeliveryID] = deliveryID
	}
	return h
}

func decodeWebhook(t *testing.T, w *httptest.ResponseRecorder) WebhookResponse {
	t.Helper()
	var resp WebhookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func newTestOrder() *trade.Order {
	ext := int64(555)
	o := &trade.Order{OrderNumber: "WC-555", ExternalOrderID: &ext}
	o.ID = uuid.New()
	return o
}

func TestWebhookHandler_OrderCreated(t *testing.T) {
	f := newWebhookFixture(t, WebhookConfig{Secret: testWebhookSecret})
	body := []byte(`{"id":555,"status":"processing","line_items":[]}`)
	order := newTestOrder()

	f.orders.On("Ingest", mock.Anything, body, integration.ActionCreate).
		Return(&integration.IngestResult{Action: integration.ActionCreate, Order: order}, nil).Once()

	w := f.post("/webhooks/woocommerce/orders", body, signedHeaders(body, "order.created", "d-1"))

	assertStatus(t, w, http.StatusOK)
	resp := decodeWebhook(t, w)
	assert.True(t, resp.Received)
	assert.Equal(t, "create", resp.Action)
	require.NotNil(t, resp.OrderID)
	assert.Equal(t, order.ID, *resp.OrderID)
	assert.False(t, resp.AlreadyExists)
	assert.Equal(t, []string{"orders"}, f.archive.kinds)
	assert.Equal(t, []string{"d-1"}, f.archive.keys)
	f.orders.AssertExpectations(t)
}

func TestWebhookHandler_TopicSelectsAction(t *testing.T) {
	tests := []struct {
		topic  string
		action integration.Action
	}{
		{"order.created", integration.ActionCreate},
		{"order.updated", integration.ActionUpdate},
		{"order.deleted", integration.ActionDelete},
		{"", integration.ActionCreate},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			f := newWebhookFixture(t, WebhookConfig{Secret: testWebhookSecret})
			body := []byte(`{"id":9}`)
			f.orders.On("Ingest", mock.Anything, body, tt.action).
				Return(&integration.IngestResult{Action: tt.action, Order: newTestOrder()}, nil).Once()

			w := f.post("/webhooks/woocommerce/orders", body, signedHeaders(body, tt.topic, ""))

			assertStatus(t, w, http.StatusOK)
			f.orders.AssertExpectations(t)
		})
	}
}

func TestWebhookHandler_AlreadyExists(t *testing.T) {
	f := newWebhookFixture(t, WebhookConfig{Secret: testWebhookSecret})
	body := []byte(`{"id":555}`)
	f.orders.On("Ingest", mock.Anything, body, integration.ActionCreate).
		Return(&integration.IngestResult{Action: integration.ActionCreate, Order: newTestOrder(), AlreadyExisted: true}, nil)

	w := f.post("/webhooks/woocommerce/orders", body, signedHeaders(body, "order.created", "d-2"))

	assertStatus(t, w, http.StatusOK)
	assert.True(t, decodeWebhook(t, w).AlreadyExists)
}

func TestWebhookHandler_RejectsBadSignature(t *testing.T) {
	f := newWebhookFixture(t, WebhookConfig{Secret: testWebhookSecret})
	body := []byte(`{"id":555}`)

	t.Run("wrong signature", func(t *testing.T) {
		headers := signedHeaders([]byte(`{"id":1}`), "order.created", "d-3")
		w := f.post("/webhooks/woocommerce/orders", body, headers)

		assertStatus(t, w, http.StatusUnauthorized)
		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeInvalidSignature, resp.Error.Code)
	})

	t.Run("missing signature", func(t *testing.T) {
		w := f.post("/webhooks/woocommerce/orders", body, map[string]string{woocommerce.HeaderTopic: "order.created"})
		assertStatus(t, w, http.StatusUnauthorized)
	})

	f.orders.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.archive.keys)
	assert.Equal(t, 0, f.deliveries.Size())
}

func TestWebhookHandler_UnsignedAcceptedWithoutSecret(t *testing.T) {
	f := newWebhookFixture(t, WebhookConfig{})
	body := []byte(`{"id":555}`)
	f.orders.On("Ingest", mock.Anything, body, integration.ActionCreate).
		Return(&integration.IngestResult{Action: integration.ActionCreate, Order: newTestOrder()}, nil)

	w := f.post("/webhooks/woocommerce/orders", body, nil)

	assertStatus(t, w, http.StatusOK)
}

func TestWebhookHandler_PayloadTooLarge(t *testing.T) {
	f := newWebhookFixture(t, WebhookConfig{Secret: testWebhookSecret, MaxPayload: 16})
	body := []byte(`{"id":555,"note":"` + strings.Repeat("x", 64) + `"}`)

	w := f.post("/webhooks/woocommerce/orders", body, signedHeaders(body, "order.created", "d-4"))

	assertStatus(t, w, http.StatusRequestEntityTooLarge)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodePayloadTooLarge, resp.Error.Code)
	f.orders.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookHandler_PingIsAcknowledgedUnsigned(t *testing.T) {
	f := newWebhookFixture(t, WebhookConfig{Secret: testWebhookSecret})

	for _, body := range [][]byte{[]byte(`{"webhook_id":12}`), []byte("webhook_id=12")} {
		w := f.post("/webhooks/woocommerce/orders", body, nil)

		assertStatus(t, w, http.StatusOK)
		resp := decodeWebhook(t, w)
		assert.True(t, resp.Test)
		assert.True(t, resp.Received)
	}
	f.orders.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookHandler_DuplicateDelivery(t *testing.T) {
	f := newWebhookFixture(t, WebhookConfig{Secret: testWebhookSecret})
	body := []byte(`{"id":555}`)
	f.orders.On("Ingest", mock.Anything, body, integration.ActionCreate).
		Return(&integration.IngestResult{Action: integration.ActionCreate, Order: newTestOrder()}, nil).Once()

	first := f.post("/webhooks/woocommerce/orders", body, signedHeaders(body, "order.created", "dup-1"))
	second := f.post("/webhooks/woocommerce/orders", body, signedHeaders(body, "order.created", "dup-1"))

	assertStatus(t, first, http.StatusOK)
	assertStatus(t, second, http.StatusOK)
	assert.True(t, decodeWebhook(t, second).Duplicate)
	f.orders.AssertNumberOfCalls(t, "Ingest", 1)
}

func TestWebhookHandler_FailureReleasesDelivery(t *testing.T) {
	f := newWebhookFixture(t, WebhookConfig{Secret: testWebhookSecret})
	body := []byte(`{"id":555}`)
	f.orders.On("Ingest", mock.Anything, body, integration.ActionCreate).
		Return(nil, errors.New("database is down")).Once()
	f.orders.On("Ingest", mock.Anything, body, integration.ActionCreate).
		Return(&integration.IngestResult{Action: integration.ActionCreate, Order: newTestOrder()}, nil).Once()

	first := f.post("/webhooks/woocommerce/orders", body, signedHeaders(body, "order.created", "retry-1"))
	assertStatus(t, first, http.StatusInternalServerError)
	resp := decodeResponse(t, first)
	require.NotNil(t, resp.Error)
	assert.NotContains(t, resp.Error.Message, "database is down")

	processed, err := f.deliveries.IsProcessed(context.Background(), "retry-1")
	require.NoError(t, err)
	assert.False(t, processed)

	second := f.post("/webhooks/woocommerce/orders", body, signedHeaders(body, "order.created", "retry-1"))
	assertStatus(t, second, http.StatusOK)
	assert.False(t, decodeWebhook(t, second).Duplicate)
	f.orders.AssertNumberOfCalls(t, "Ingest", 2)
}

func TestWebhookHandler_ValidationErrorIsBadRequest(t *testing.T) {
	f := newWebhookFixture(t, WebhookConfig{Secret: testWebhookSecret})
	body := []byte(`{"id":0}`)
	f.orders.On("Ingest", mock.Anything, body, integration.ActionCreate).
		Return(nil, shared.NewValidationError("id", "order id is required"))

	w := f.post("/webhooks/woocommerce/orders", body, signedHeaders(body, "order.created", "bad-1"))

	assertStatus(t, w, http.StatusBadRequest)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
}

func TestWebhookHandler_DeleteUnknownOrderIsSkipped(t *testing.T) {
	f := newWebhookFixture(t, WebhookConfig{Secret: testWebhookSecret})
	body := []byte(`{"id":777}`)
	f.orders.On("Ingest", mock.Anything, body, integration.ActionDelete).
		Return(nil, shared.NewNotFoundError("order", "777"))

	w := f.post("/webhooks/woocommerce/orders", body, signedHeaders(body, "order.deleted", "del-1"))

	assertStatus(t, w, http.StatusOK)
	resp := decodeWebhook(t, w)
	assert.True(t, resp.Skipped)
	assert.Equal(t, "delete", resp.Action)
}

func TestWebhookHandler_DeleteKnownOrder(t *testing.T) {
	f := newWebhookFixture(t, WebhookConfig{Secret: testWebhookSecret})
	body := []byte(`{"id":555}`)
	deleted := uuid.New()
	f.orders.On("Ingest", mock.Anything, body, integration.ActionDelete).
		Return(&integration.IngestResult{Action: integration.ActionDelete, DeletedID: &deleted}, nil)

	w := f.post("/webhooks/woocommerce/orders", body, signedHeaders(body, "order.deleted", "del-2"))

	assertStatus(t, w, http.StatusOK)
	resp := decodeWebhook(t, w)
	require.NotNil(t, resp.OrderID)
	assert.Equal(t, deleted, *resp.OrderID)
}

func TestWebhookHandler_ArchiveFailureDoesNotBlockIngestion(t *testing.T) {
	f := newWebhookFixture(t, WebhookConfig{Secret: testWebhookSecret})
	f.archive.err = errors.New("bucket unavailable")
	body := []byte(`{"id":555}`)
	f.orders.On("Ingest", mock.Anything, body, integration.ActionCreate).
		Return(&integration.IngestResult{Action: integration.ActionCreate, Order: newTestOrder()}, nil)

	w := f.post("/webhooks/woocommerce/orders", body, signedHeaders(body, "order.created", ""))

	assertStatus(t, w, http.StatusOK)
	require.Len(t, f.archive.keys, 1)
	assert.True(t, strings.HasPrefix(f.archive.keys[0], "create-"))
}

func TestWebhookHandler_ProductEvent(t *testing.T) {
	t.Run("applied", func(t *testing.T) {
		f := newWebhookFixture(t, WebhookConfig{Secret: testWebhookSecret})
		body := []byte(`{"id":42,"sku":"SKU-1"}`)
		product := &catalog.Product{Code: "SKU-1"}
		product.ID = uuid.New()
		f.products.On("ApplyExternalProduct", mock.Anything, body, integration.ActionUpdate).
			Return(&integration.ProductEventResult{Product: product}, nil)

		w := f.post("/webhooks/woocommerce/products", body, signedHeaders(body, "product.updated", "p-1"))

		assertStatus(t, w, http.StatusOK)
		resp := decodeWebhook(t, w)
		require.NotNil(t, resp.ProductID)
		assert.Equal(t, product.ID, *resp.ProductID)
		assert.Equal(t, []string{"products"}, f.archive.kinds)
	})

	t.Run("skipped", func(t *testing.T) {
		f := newWebhookFixture(t, WebhookConfig{Secret: testWebhookSecret})
		body := []byte(`{"id":43}`)
		f.products.On("ApplyExternalProduct", mock.Anything, body, integration.ActionCreate).
			Return(&integration.ProductEventResult{Skipped: true, Warnings: []string{"product has no SKU"}}, nil)

		w := f.post("/webhooks/woocommerce/products", body, signedHeaders(body, "product.created", "p-2"))

		assertStatus(t, w, http.StatusOK)
		resp := decodeWebhook(t, w)
		assert.True(t, resp.Skipped)
		assert.Equal(t, []string{"product has no SKU"}, resp.Warnings)
	})
}

func TestNewWebhookHandler_Defaults(t *testing.T) {
	h := NewWebhookHandler(WebhookConfig{}, nil, nil, nil, nil, nil)
	assert.Equal(t, int64(1<<20), h.cfg.MaxPayload)
	assert.NotZero(t, h.cfg.IngestTimeout)
	assert.NotZero(t, h.cfg.DeliveryTTL)
	assert.NotNil(t, h.logger)
}
