package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	tradeapp "github.com/erp/wooerp/internal/application/trade"
	"github.com/erp/wooerp/internal/domain/integration"
	"github.com/erp/wooerp/internal/interfaces/http/dto"
)

// IntegrationHandler accepts order events pushed directly by an integration
// instead of a signed webhook
type IntegrationHandler struct {
	BaseHandler
	orders        OrderIngester
	ingestTimeout time.Duration
}

// NewIntegrationHandler creates a new IntegrationHandler
func NewIntegrationHandler(orders OrderIngester, ingestTimeout time.Duration) *IntegrationHandler {
	if ingestTimeout <= 0 {
		ingestTimeout = 30 * time.Second
	}
	return &IntegrationHandler{orders: orders, ingestTimeout: ingestTimeout}
}

// IngestResponse is the outcome of a direct order event
type IngestResponse struct {
	Action        string                  `json:"action"`
	Order         *tradeapp.OrderResponse `json:"order,omitempty"`
	AlreadyExists bool                    `json:"already_exists"`
	Test          bool                    `json:"test,omitempty"`
	DeletedID     *uuid.UUID              `json:"deleted_id,omitempty"`
}

// IngestOrder handles POST /integrations/woocommerce/orders?action=create|update|delete
func (h *IntegrationHandler) IngestOrder(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.ErrorWithCode(c, dto.ErrCodePayloadTooLarge, "Request body too large")
			return
		}
		h.BadRequest(c, "Request body could not be read")
		return
	}
	action := integration.ParseAction(c.Query("action"))

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.ingestTimeout)
	defer cancel()
	result, err := h.orders.Ingest(ctx, body, action)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := IngestResponse{
		Action:        string(result.Action),
		AlreadyExists: result.AlreadyExisted,
		Test:          result.Test,
		DeletedID:     result.DeletedID,
	}
	if result.Order != nil {
		order := tradeapp.ToOrderResponse(result.Order)
		resp.Order = &order
	}
	if result.Order != nil && !result.AlreadyExisted && result.Action == integration.ActionCreate {
		h.Created(c, resp, result.Warnings)
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithWarnings(resp, result.Warnings))
}
