package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/erp/wooerp/internal/domain/integration"
)

// ProductPusher pushes local products to the storefront
type ProductPusher interface {
	SyncProduct(ctx context.Context, productID uuid.UUID) (*integration.ProductSyncResult, error)
	BulkLinkBySKU(ctx context.Context) (*integration.BulkLinkSummary, error)
}

// OrderPusher pushes local orders and sales to the storefront
type OrderPusher interface {
	SyncOrder(ctx context.Context, orderID uuid.UUID) (*integration.OrderSyncResult, error)
	SyncSale(ctx context.Context, saleID uuid.UUID) (*integration.OrderSyncResult, error)
}

// SyncHandler triggers outbound storefront syncs by hand
type SyncHandler struct {
	BaseHandler
	products ProductPusher
	orders   OrderPusher
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(products ProductPusher, orders OrderPusher) *SyncHandler {
	return &SyncHandler{products: products, orders: orders}
}

// ProductSyncResponse is the outcome of a product push
type ProductSyncResponse struct {
	ProductID  uuid.UUID `json:"product_id"`
	ExternalID int64     `json:"external_id"`
	Created    bool      `json:"created"`
	Linked     bool      `json:"linked"`
}

// BulkLinkResponse is the outcome of linking the storefront catalog by SKU
type BulkLinkResponse struct {
	Linked        int      `json:"linked"`
	AlreadyLinked int      `json:"already_linked"`
	NotFoundInERP int      `json:"not_found_in_erp"`
	SkippedNoSKU  int      `json:"skipped_no_sku"`
	Pages         int      `json:"pages"`
	Errors        []string `json:"errors,omitempty"`
}

// OrderSyncResponse is the outcome of an order or sale push
type OrderSyncResponse struct {
	ExternalID     int64  `json:"external_id"`
	ExternalNumber string `json:"external_number,omitempty"`
}

// SyncProduct handles POST /sync/products/:id
func (h *SyncHandler) SyncProduct(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	res, err := h.products.SyncProduct(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ProductSyncResponse{
		ProductID:  res.ProductID,
		ExternalID: res.ExternalID,
		Created:    res.Created,
		Linked:     res.Linked,
	})
}

// LinkBySKU handles POST /sync/products/link-by-sku
func (h *SyncHandler) LinkBySKU(c *gin.Context) {
	summary, err := h.products.BulkLinkBySKU(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, BulkLinkResponse(*summary))
}

// SyncOrder handles POST /sync/orders/:id
func (h *SyncHandler) SyncOrder(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	h.respondOrderSync(c, func(ctx context.Context) (*integration.OrderSyncResult, error) {
		return h.orders.SyncOrder(ctx, id)
	})
}

// SyncSale handles POST /sync/sales/:id
func (h *SyncHandler) SyncSale(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	h.respondOrderSync(c, func(ctx context.Context) (*integration.OrderSyncResult, error) {
		return h.orders.SyncSale(ctx, id)
	})
}

func (h *SyncHandler) respondOrderSync(c *gin.Context, push func(context.Context) (*integration.OrderSyncResult, error)) {
	res, err := push(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithWarnings(c, OrderSyncResponse{
		ExternalID:     res.ExternalID,
		ExternalNumber: res.ExternalNumber,
	}, res.Warnings)
}
