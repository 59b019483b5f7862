package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	barcodeapp "github.com/erp/wooerp/internal/application/barcode"
	catalogapp "github.com/erp/wooerp/internal/application/catalog"
	tradeapp "github.com/erp/wooerp/internal/application/trade"
	"github.com/erp/wooerp/internal/domain/integration"
	"github.com/erp/wooerp/internal/interfaces/http/dto"
	"github.com/erp/wooerp/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// performRequest runs one request through a router with the given routes
func performRequest(register func(r *gin.Engine), method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	r := gin.New()
	r.Use(middleware.RequestID())
	register(r)

	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func dataMap(t *testing.T, resp dto.Response) map[string]any {
	t.Helper()
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok, "response data is not an object: %#v", resp.Data)
	return data
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, w.Code, "body: %s", w.Body.String())
}


// MockOrderIngester is a mock implementation of OrderIngester
type MockOrderIngester struct {
	mock.Mock
}

func (m *MockOrderIngester) Ingest(ctx context.Context, raw []byte, action integration.Action) (*integration.IngestResult, error) {
	args := m.Called(ctx, raw, action)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.IngestResult), args.Error(1)
}

// MockProductEventApplier is a mock implementation of ProductEventApplier
type MockProductEventApplier struct {
	mock.Mock
}

func (m *MockProductEventApplier) ApplyExternalProduct(ctx context.Context, raw []byte, action integration.Action) (*integration.ProductEventResult, error) {
	args := m.Called(ctx, raw, action)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ProductEventResult), args.Error(1)
}

// MockBarcodeResolver is a mock implementation of BarcodeResolver
type MockBarcodeResolver struct {
	mock.Mock
}

func (m *MockBarcodeResolver) Resolve(ctx context.Context, raw string) (*barcodeapp.Resolution, error) {
	args := m.Called(ctx, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*barcodeapp.Resolution), args.Error(1)
}

func (m *MockBarcodeResolver) Accept(ctx context.Context, raw string, overrides barcodeapp.AcceptOverrides) (*barcodeapp.AcceptResult, error) {
	args := m.Called(ctx, raw, overrides)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*barcodeapp.AcceptResult), args.Error(1)
}

func (m *MockBarcodeResolver) Ignore(ctx context.Context, raw, actor string) error {
	args := m.Called(ctx, raw, actor)
	return args.Error(0)
}

// MockProductPusher is a mock implementation of ProductPusher
type MockProductPusher struct {
	mock.Mock
}

func (m *MockProductPusher) SyncProduct(ctx context.Context, productID uuid.UUID) (*integration.ProductSyncResult, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ProductSyncResult), args.Error(1)
}

func (m *MockProductPusher) BulkLinkBySKU(ctx context.Context) (*integration.BulkLinkSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.BulkLinkSummary), args.Error(1)
}

// MockOrderPusher is a mock implementation of OrderPusher
type MockOrderPusher struct {
	mock.Mock
}

func (m *MockOrderPusher) SyncOrder(ctx context.Context, orderID uuid.UUID) (*integration.OrderSyncResult, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.OrderSyncResult), args.Error(1)
}

func (m *MockOrderPusher) SyncSale(ctx context.Context, saleID uuid.UUID) (*integration.OrderSyncResult, error) {
	args := m.Called(ctx, saleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.OrderSyncResult), args.Error(1)
}

// MockOrderManager is a mock implementation of OrderManager
type MockOrderManager struct {
	mock.Mock
}

func (m *MockOrderManager) GetOrder(ctx context.Context, id uuid.UUID) (*tradeapp.OrderResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tradeapp.OrderResponse), args.Error(1)
}

func (m *MockOrderManager) CreateOrder(ctx context.Context, req tradeapp.CreateOrderRequest) (*tradeapp.OrderResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tradeapp.OrderResult), args.Error(1)
}

func (m *MockOrderManager) UpdateStatus(ctx context.Context, id uuid.UUID, req tradeapp.UpdateOrderStatusRequest) (*tradeapp.OrderResult, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tradeapp.OrderResult), args.Error(1)
}

func (m *MockOrderManager) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockSaleRecorder is a mock implementation of SaleRecorder
type MockSaleRecorder struct {
	mock.Mock
}

func (m *MockSaleRecorder) GetByID(ctx context.Context, id uuid.UUID) (*tradeapp.SaleResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tradeapp.SaleResponse), args.Error(1)
}

func (m *MockSaleRecorder) CreateSale(ctx context.Context, req tradeapp.CreateSaleRequest) (*tradeapp.SaleResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tradeapp.SaleResult), args.Error(1)
}

func (m *MockSaleRecorder) RetrySaleSync(ctx context.Context, id uuid.UUID) (*integration.OrderSyncResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.OrderSyncResult), args.Error(1)
}

// MockProductManager is a mock implementation of ProductManager
type MockProductManager struct {
	mock.Mock
}

func (m *MockProductManager) GetByID(ctx context.Context, id uuid.UUID) (*catalogapp.ProductResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogapp.ProductResponse), args.Error(1)
}

func (m *MockProductManager) Create(ctx context.Context, req catalogapp.CreateProductRequest) (*catalogapp.ProductResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogapp.ProductResult), args.Error(1)
}

func (m *MockProductManager) Update(ctx context.Context, id uuid.UUID, req catalogapp.UpdateProductRequest) (*catalogapp.ProductResult, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogapp.ProductResult), args.Error(1)
}

func (m *MockProductManager) AdjustStock(ctx context.Context, id uuid.UUID, req catalogapp.StockAdjustmentRequest) (*catalogapp.ProductResult, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogapp.ProductResult), args.Error(1)
}

func (m *MockProductManager) Deactivate(ctx context.Context, id uuid.UUID) (*catalogapp.ProductResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogapp.ProductResult), args.Error(1)
}

func jsonBodyRaw(s string) io.Reader {
	return strings.NewReader(s)
}
