package woocommerce

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/wooerp/internal/domain/integration"
)

func createMockWooServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(Config{
		BaseURL:        server.URL + "/",
		ConsumerKey:    "ck_test",
		ConsumerSecret: "cs_test",
		Timeout:        2 * time.Second,
	})
	return server, client
}

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{name: "valid config", config: Config{BaseURL: "https://shop.example.com/", ConsumerKey: "ck", ConsumerSecret: "cs"}},
		{name: "missing base url", config: Config{ConsumerKey: "ck", ConsumerSecret: "cs"}, wantErr: ErrConfigMissingBaseURL},
		{name: "missing consumer key", config: Config{BaseURL: "https://shop.example.com", ConsumerSecret: "cs"}, wantErr: ErrConfigMissingConsumerKey},
		{name: "missing consumer secret", config: Config{BaseURL: "https://shop.example.com", ConsumerKey: "ck"}, wantErr: ErrConfigMissingConsumerSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "https://shop.example.com", tt.config.BaseURL)
			assert.Equal(t, DefaultAPIPath, tt.config.APIPath)
			assert.Equal(t, 10*time.Second, tt.config.Timeout)
		})
	}
}

func TestClient_NotConfigured(t *testing.T) {
	client := NewClient(Config{})
	assert.False(t, client.IsConfigured())

	_, err := client.GetProduct(context.Background(), 1)
	assert.ErrorIs(t, err, integration.ErrPlatformNotConfigured)

	_, err = client.CreateOrder(context.Background(), integration.OrderInput{})
	assert.True(t, integration.IsNotConfigured(err))
}

// ---------------------------------------------------------------------------
// Product Tests
// ---------------------------------------------------------------------------

func TestClient_GetProduct(t *testing.T) {
	_, client := createMockWooServer(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "ck_test", user)
		assert.Equal(t, "cs_test", pass)

		switch r.URL.Path {
		case "/wp-json/wc/v3/products/10":
			_, _ = w.Write([]byte(`{"id":10,"sku":"SKU-10","name":"Mug","price":"","regular_price":"7.50","stock_quantity":"3","manage_stock":true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":"woocommerce_rest_product_invalid_id","message":"Invalid ID.","data":{"status":404}}`))
		}
	})

	product, err := client.GetProduct(context.Background(), 10)
	require.NoError(t, err)
	require.NotNil(t, product)
	assert.Equal(t, "SKU-10", product.SKU)
	require.NotNil(t, product.EffectivePrice())
	assert.True(t, product.EffectivePrice().Equal(decimal.NewFromFloat(7.5)))
	require.NotNil(t, product.StockQuantity)
	assert.Equal(t, 3, *product.StockQuantity)

	missing, err := client.GetProduct(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestClient_FindProductBySKU(t *testing.T) {
	_, client := createMockWooServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wc/v3/products", r.URL.Path)
		switch r.URL.Query().Get("sku") {
		case "ABC":
			_, _ = w.Write([]byte(`[{"id":"5","sku":"ABC-LONG","name":"Other"},{"id":"6","sku":"ABC","name":"Match"}]`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	})

	product, err := client.FindProductBySKU(context.Background(), "ABC")
	require.NoError(t, err)
	require.NotNil(t, product)
	assert.Equal(t, int64(6), product.ID)

	none, err := client.FindProductBySKU(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestClient_ListProducts(t *testing.T) {
	_, client := createMockWooServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "50", r.URL.Query().Get("per_page"))
		_, _ = w.Write([]byte(`[{"id":1,"sku":"A"},{"id":2,"sku":"B"}]`))
	})

	products, err := client.ListProducts(context.Background(), 2, 50)
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestClient_CreateProduct(t *testing.T) {
	var received map[string]any
	_, client := createMockWooServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":77,"sku":"NEW-1","name":"New"}`))
	})

	product, err := client.CreateProduct(context.Background(), integration.ProductInput{
		SKU:           "NEW-1",
		Name:          "New",
		RegularPrice:  decimal.NewFromFloat(3.5),
		ManageStock:   true,
		StockQuantity: 4,
		Images:        []integration.ImageRef{{ID: 12, Src: "https://img/1.jpg"}, {Src: "https://img/2.jpg"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(77), product.ID)

	assert.Equal(t, "3.50", received["regular_price"])
	assert.Equal(t, []any{}, received["categories"], "categories must always be sent")
	images := received["images"].([]any)
	require.Len(t, images, 2)
	assert.Equal(t, float64(12), images[0].(map[string]any)["id"])
	assert.Nil(t, images[0].(map[string]any)["src"])
	assert.Equal(t, "https://img/2.jpg", images[1].(map[string]any)["src"])
}

func TestClient_UpdateProduct_RemoteNotFound(t *testing.T) {
	_, client := createMockWooServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"woocommerce_rest_product_invalid_id","message":"Invalid ID."}`))
	})

	_, err := client.UpdateProduct(context.Background(), 5, integration.ProductInput{SKU: "X"})
	require.Error(t, err)
	assert.True(t, integration.IsRemoteNotFound(err))

	var reqErr *integration.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, "woocommerce_rest_product_invalid_id", reqErr.Code)
	assert.Equal(t, http.MethodPut, reqErr.Method)
}

func TestClient_SetProductStock(t *testing.T) {
	_, client := createMockWooServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/wp-json/wc/v3/products/8", r.URL.Path)
		var body stockBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.ManageStock)
		assert.Equal(t, 0, body.StockQuantity)
		_, _ = w.Write([]byte(`{"id":8}`))
	})

	require.NoError(t, client.SetProductStock(context.Background(), 8, 0))
}

func TestClient_TrashProduct(t *testing.T) {
	_, client := createMockWooServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Empty(t, r.URL.Query().Get("force"))
		_, _ = w.Write([]byte(`{"id":8,"status":"trash"}`))
	})

	require.NoError(t, client.TrashProduct(context.Background(), 8))
}

// ---------------------------------------------------------------------------
// Customer and Order Tests
// ---------------------------------------------------------------------------

func TestClient_FindCustomerByEmail(t *testing.T) {
	_, client := createMockWooServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "all", r.URL.Query().Get("role"))
		if r.URL.Query().Get("email") == "ana@example.com" {
			_, _ = w.Write([]byte(`[{"id":31,"email":"ana@example.com","first_name":"Ana","last_name":"Diaz"}]`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})

	customer, err := client.FindCustomerByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	require.NotNil(t, customer)
	assert.Equal(t, int64(31), customer.ID)

	none, err := client.FindCustomerByEmail(context.Background(), "x@example.com")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestClient_CreateOrder(t *testing.T) {
	var received orderBody
	_, client := createMockWooServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wc/v3/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":900,"number":"900","status":"processing"}`))
	})

	order, err := client.CreateOrder(context.Background(), integration.OrderInput{
		Status:        "processing",
		CustomerID:    31,
		PaymentMethod: "cod",
		SetPaid:       true,
		LineItems: []integration.OrderLineInput{
			{ProductID: 6, Quantity: 2, Subtotal: decimal.NewFromInt(20), Total: decimal.NewFromInt(20)},
		},
		ShippingTotal: decimal.NewFromInt(5),
		MetaData:      []integration.MetaEntry{{Key: "_erp_sale_number", Value: "S-1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(900), order.ID)
	assert.Equal(t, "900", order.Number)

	require.Len(t, received.LineItems, 1)
	assert.Equal(t, "20.00", received.LineItems[0].Total)
	require.Len(t, received.ShippingLines, 1)
	assert.Equal(t, "5.00", received.ShippingLines[0].Total)
	assert.True(t, received.SetPaid)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		sentinel  error
		retryable bool
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, sentinel: integration.ErrPlatformAuthFailed},
		{name: "rate limited", status: http.StatusTooManyRequests, sentinel: integration.ErrPlatformRateLimited, retryable: true},
		{name: "server error", status: http.StatusBadGateway, sentinel: integration.ErrPlatformUnavailable, retryable: true},
		{name: "bad request", status: http.StatusBadRequest, sentinel: integration.ErrPlatformRequestFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client := createMockWooServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := client.CreateOrder(context.Background(), integration.OrderInput{})
			assert.ErrorIs(t, err, tt.sentinel)
			assert.True(t, integration.IsExternalServiceError(err))
			assert.Equal(t, tt.retryable, integration.IsRetryable(err))
		})
	}
}

func TestClient_InvalidResponse(t *testing.T) {
	_, client := createMockWooServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected":true}`))
	})

	_, err := client.CreateOrder(context.Background(), integration.OrderInput{})
	assert.ErrorIs(t, err, integration.ErrPlatformInvalidResponse)
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(Config{BaseURL: server.URL, ConsumerKey: "ck", ConsumerSecret: "cs"})
	_, err := client.ListProducts(context.Background(), 1, 10)
	assert.ErrorIs(t, err, integration.ErrPlatformUnavailable)
}
