// Package handler holds the gin handlers of the ERP API.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/erp/wooerp/internal/domain/integration"
	"github.com/erp/wooerp/internal/domain/shared"
	"github.com/erp/wooerp/internal/interfaces/http/dto"
	"github.com/erp/wooerp/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithWarnings sends a success response listing non-fatal warnings
func (h *BaseHandler) SuccessWithWarnings(c *gin.Context, data any, warnings []string) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithWarnings(data, warnings))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any, warnings []string) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponseWithWarnings(data, warnings))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the given status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// ErrorWithCode sends an error response, deriving the status from the code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	code = dto.NormalizeErrorCode(code)
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// BindJSON binds the body and writes a 400 when it is invalid. It reports
// whether the handler may continue.
func (h *BaseHandler) BindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// ParseID reads a UUID path parameter and writes a 400 when it is malformed
func (h *BaseHandler) ParseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidationFormat, "Invalid "+param+": must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// HandleError maps domain and storefront errors to responses. Anything
// unrecognized becomes a 500 without leaking the message.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.ErrorWithCode(c, domainErr.Code, domainErr.Message)
		return
	}

	switch {
	case integration.IsNotConfigured(err):
		h.ErrorWithCode(c, dto.ErrCodeNotConfigured, "WooCommerce integration is not configured")
	case errors.Is(err, integration.ErrOrderSyncSkipped):
		h.ErrorWithCode(c, dto.ErrCodeInvalidState, err.Error())
	case errors.Is(err, integration.ErrOrderSyncNoLineItems):
		h.ErrorWithCode(c, dto.ErrCodeInvalidState, err.Error())
	case integration.IsExternalServiceError(err):
		h.ErrorWithCode(c, dto.ErrCodeExternalService, err.Error())
	default:
		h.InternalError(c, "An unexpected error occurred")
	}
}
