package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	tradeapp "github.com/erp/wooerp/internal/application/trade"
)

// OrderManager is the local order service
type OrderManager interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*tradeapp.OrderResponse, error)
	CreateOrder(ctx context.Context, req tradeapp.CreateOrderRequest) (*tradeapp.OrderResult, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, req tradeapp.UpdateOrderStatusRequest) (*tradeapp.OrderResult, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
}

// OrderHandler handles order endpoints
type OrderHandler struct {
	BaseHandler
	orders OrderManager
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders OrderManager) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// Create handles POST /orders
func (h *OrderHandler) Create(c *gin.Context) {
	var req tradeapp.CreateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.orders.CreateOrder(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result.Order, result.Warnings)
}

// GetByID handles GET /orders/:id
func (h *OrderHandler) GetByID(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// UpdateStatus handles PATCH /orders/:id/status
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req tradeapp.UpdateOrderStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.orders.UpdateStatus(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithWarnings(c, result.Order, result.Warnings)
}

// Delete handles DELETE /orders/:id
func (h *OrderHandler) Delete(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.orders.DeleteOrder(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
