package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	catalogapp "github.com/erp/wooerp/internal/application/catalog"
)

// ProductManager is the local catalog service
type ProductManager interface {
	GetByID(ctx context.Context, id uuid.UUID) (*catalogapp.ProductResponse, error)
	Create(ctx context.Context, req catalogapp.CreateProductRequest) (*catalogapp.ProductResult, error)
	Update(ctx context.Context, id uuid.UUID, req catalogapp.UpdateProductRequest) (*catalogapp.ProductResult, error)
	AdjustStock(ctx context.Context, id uuid.UUID, req catalogapp.StockAdjustmentRequest) (*catalogapp.ProductResult, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*catalogapp.ProductResult, error)
}

// ProductHandler handles product endpoints
type ProductHandler struct {
	BaseHandler
	products ProductManager
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(products ProductManager) *ProductHandler {
	return &ProductHandler{products: products}
}

// Create handles POST /products
func (h *ProductHandler) Create(c *gin.Context) {
	var req catalogapp.CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.products.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result.Product, result.Warnings)
}

// GetByID handles GET /products/:id
func (h *ProductHandler) GetByID(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	product, err := h.products.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// Update handles PUT /products/:id
func (h *ProductHandler) Update(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req catalogapp.UpdateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.respond(c, func(ctx context.Context) (*catalogapp.ProductResult, error) {
		return h.products.Update(ctx, id, req)
	})
}

// AdjustStock handles POST /products/:id/stock
func (h *ProductHandler) AdjustStock(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req catalogapp.StockAdjustmentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.respond(c, func(ctx context.Context) (*catalogapp.ProductResult, error) {
		return h.products.AdjustStock(ctx, id, req)
	})
}

// Deactivate handles DELETE /products/:id
func (h *ProductHandler) Deactivate(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	h.respond(c, func(ctx context.Context) (*catalogapp.ProductResult, error) {
		return h.products.Deactivate(ctx, id)
	})
}

func (h *ProductHandler) respond(c *gin.Context, write func(context.Context) (*catalogapp.ProductResult, error)) {
	result, err := write(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithWarnings(c, result.Product, result.Warnings)
}
