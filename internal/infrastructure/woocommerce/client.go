package woocommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/erp/wooerp/internal/domain/integration"
	"github.com/erp/wooerp/internal/infrastructure/telemetry"
)

// maxResponseSize is the maximum allowed response size from the store (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Client implements the integration.Storefront port over the WooCommerce
// REST API. A client built from incomplete credentials stays usable but
// answers every call with integration.ErrPlatformNotConfigured.
type Client struct {
	config     Config
	configured bool
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a new WooCommerce client
func NewClient(cfg Config, opts ...Option) *Client {
	configured := cfg.Validate() == nil
	c := &Client{
		config:     cfg,
		configured: configured,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return c
}

// IsConfigured returns false when credentials are absent
func (c *Client) IsConfigured() bool {
	return c.configured
}

// ---------------------------------------------------------------------------
// Product Operations
// ---------------------------------------------------------------------------

// GetProduct reads one product. A missing product yields (nil, nil).
func (c *Client) GetProduct(ctx context.Context, id int64) (*integration.ExternalProduct, error) {
	body, err := c.doRequest(ctx, http.MethodGet, productPath(id), nil, nil)
	if err != nil {
		if integration.IsRemoteNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return integration.DecodeProduct(body)
}

// FindProductBySKU returns the product carrying sku, or nil
func (c *Client) FindProductBySKU(ctx context.Context, sku string) (*integration.ExternalProduct, error) {
	query := url.Values{}
	query.Set("sku", sku)
	body, err := c.doRequest(ctx, http.MethodGet, "/products", query, nil)
	if err != nil {
		return nil, err
	}
	products, err := integration.DecodeProducts(body)
	if err != nil {
		return nil, err
	}
	for i := range products {
		// The sku filter is a prefix match on some store versions
		if products[i].SKU == sku {
			return &products[i], nil
		}
	}
	return nil, nil
}

// ListProducts returns one page of products, 1-indexed
func (c *Client) ListProducts(ctx context.Context, page, perPage int) ([]integration.ExternalProduct, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(perPage))
	query.Set("orderby", "id")
	query.Set("order", "asc")
	body, err := c.doRequest(ctx, http.MethodGet, "/products", query, nil)
	if err != nil {
		return nil, err
	}
	return integration.DecodeProducts(body)
}

// CreateProduct creates a product
func (c *Client) CreateProduct(ctx context.Context, in integration.ProductInput) (*integration.ExternalProduct, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/products", nil, newProductBody(in))
	if err != nil {
		return nil, err
	}
	return integration.DecodeProduct(body)
}

// UpdateProduct overwrites a product
func (c *Client) UpdateProduct(ctx context.Context, id int64, in integration.ProductInput) (*integration.ExternalProduct, error) {
	body, err := c.doRequest(ctx, http.MethodPut, productPath(id), nil, newProductBody(in))
	if err != nil {
		return nil, err
	}
	return integration.DecodeProduct(body)
}

// TrashProduct moves a product to the trash. Without force=true the store
// keeps it recoverable.
func (c *Client) TrashProduct(ctx context.Context, id int64) error {
	_, err := c.doRequest(ctx, http.MethodDelete, productPath(id), nil, nil)
	return err
}

// SetProductStock sets the managed stock quantity of a product
func (c *Client) SetProductStock(ctx context.Context, id int64, quantity int) error {
	_, err := c.doRequest(ctx, http.MethodPut, productPath(id), nil, stockBody{ManageStock: true, StockQuantity: quantity})
	return err
}

// ---------------------------------------------------------------------------
// Customer Operations
// ---------------------------------------------------------------------------

// FindCustomerByEmail returns the customer registered with email, or nil
func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*integration.ExternalCustomer, error) {
	query := url.Values{}
	query.Set("email", email)
	query.Set("role", "all")
	body, err := c.doRequest(ctx, http.MethodGet, "/customers", query, nil)
	if err != nil {
		return nil, err
	}

	var customers []customerResponse
	if err := json.Unmarshal(body, &customers); err != nil {
		return nil, fmt.Errorf("%w: failed to parse customers: %v", integration.ErrPlatformInvalidResponse, err)
	}
	if len(customers) == 0 {
		return nil, nil
	}
	return customers[0].toExternal(), nil
}

// CreateCustomer registers a customer
func (c *Client) CreateCustomer(ctx context.Context, in integration.CustomerInput) (*integration.ExternalCustomer, error) {
	payload := customerBody{
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Billing:   newAddressBody(in.Billing),
	}
	body, err := c.doRequest(ctx, http.MethodPost, "/customers", nil, payload)
	if err != nil {
		return nil, err
	}

	var customer customerResponse
	if err := json.Unmarshal(body, &customer); err != nil {
		return nil, fmt.Errorf("%w: failed to parse customer: %v", integration.ErrPlatformInvalidResponse, err)
	}
	return customer.toExternal(), nil
}

// ---------------------------------------------------------------------------
// Order Operations
// ---------------------------------------------------------------------------

// CreateOrder creates an order
func (c *Client) CreateOrder(ctx context.Context, in integration.OrderInput) (*integration.ExternalOrder, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/orders", nil, newOrderBody(in))
	if err != nil {
		return nil, err
	}
	return decodeOrder(body)
}

// UpdateOrder overwrites an order
func (c *Client) UpdateOrder(ctx context.Context, id int64, in integration.OrderInput) (*integration.ExternalOrder, error) {
	body, err := c.doRequest(ctx, http.MethodPut, "/orders/"+strconv.FormatInt(id, 10), nil, newOrderBody(in))
	if err != nil {
		return nil, err
	}
	return decodeOrder(body)
}

func decodeOrder(body []byte) (*integration.ExternalOrder, error) {
	var order orderResponse
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("%w: failed to parse order: %v", integration.ErrPlatformInvalidResponse, err)
	}
	if !order.ID.Valid || order.ID.Value <= 0 {
		return nil, fmt.Errorf("%w: order response without id", integration.ErrPlatformInvalidResponse)
	}
	return order.toExternal(), nil
}

func productPath(id int64) string {
	return "/products/" + strconv.FormatInt(id, 10)
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// doRequest sends one authenticated call and returns the raw 2xx body.
// Non-2xx answers become *integration.RequestError.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	if !c.configured {
		return nil, integration.ErrPlatformNotConfigured
	}

	ctx, span := telemetry.StartSpan(ctx, "woocommerce "+method+" "+path,
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute("http.method", method),
		telemetry.WithAttribute("woocommerce.path", path),
	)
	defer span.End()

	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("woocommerce: failed to encode request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	fullURL := c.config.endpoint(path)
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("woocommerce: failed to create request: %w", err)
	}
	req.SetBasicAuth(c.config.ConsumerKey, c.config.ConsumerSecret)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.RecordError(span, err)
		c.logger.Warn("WooCommerce request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%w: failed to read response: %v", integration.ErrPlatformUnavailable, err)
	}

	telemetry.SetAttribute(span, "http.status_code", resp.StatusCode)
	c.logger.Debug("WooCommerce request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode >= 300 {
		reqErr := &integration.RequestError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
		}
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			reqErr.Code = apiErr.Code
			reqErr.Message = apiErr.Message
		}
		telemetry.RecordError(span, reqErr)
		return nil, reqErr
	}

	telemetry.SetOK(span)
	return body, nil
}

var _ integration.Storefront = (*Client)(nil)
