package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	tradeapp "github.com/erp/wooerp/internal/application/trade"
	"github.com/erp/wooerp/internal/domain/integration"
)

// SaleRecorder is the point-of-sale service
type SaleRecorder interface {
	GetByID(ctx context.Context, id uuid.UUID) (*tradeapp.SaleResponse, error)
	CreateSale(ctx context.Context, req tradeapp.CreateSaleRequest) (*tradeapp.SaleResult, error)
	RetrySaleSync(ctx context.Context, id uuid.UUID) (*integration.OrderSyncResult, error)
}

// SaleHandler handles point-of-sale endpoints
type SaleHandler struct {
	BaseHandler
	sales SaleRecorder
}

// NewSaleHandler creates a new SaleHandler
func NewSaleHandler(sales SaleRecorder) *SaleHandler {
	return &SaleHandler{sales: sales}
}

// Create handles POST /sales. A failed storefront push is reported as a
// warning; the sale itself is committed.
func (h *SaleHandler) Create(c *gin.Context) {
	var req tradeapp.CreateSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.sales.CreateSale(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result.Sale, result.Warnings)
}

// GetByID handles GET /sales/:id
func (h *SaleHandler) GetByID(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	sale, err := h.sales.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sale)
}

// RetrySync handles POST /sales/:id/sync
func (h *SaleHandler) RetrySync(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	res, err := h.sales.RetrySaleSync(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithWarnings(c, OrderSyncResponse{
		ExternalID:     res.ExternalID,
		ExternalNumber: res.ExternalNumber,
	}, res.Warnings)
}
