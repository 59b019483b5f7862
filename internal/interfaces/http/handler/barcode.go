package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	barcodeapp "github.com/erp/wooerp/internal/application/barcode"
	catalogapp "github.com/erp/wooerp/internal/application/catalog"
)

// BarcodeResolver is the barcode lookup service
type BarcodeResolver interface {
	Resolve(ctx context.Context, raw string) (*barcodeapp.Resolution, error)
	Accept(ctx context.Context, raw string, overrides barcodeapp.AcceptOverrides) (*barcodeapp.AcceptResult, error)
	Ignore(ctx context.Context, raw, actor string) error
}

// BarcodeHandler serves barcode lookups and turns candidates into products
type BarcodeHandler struct {
	BaseHandler
	resolver BarcodeResolver
}

// NewBarcodeHandler creates a new BarcodeHandler
func NewBarcodeHandler(resolver BarcodeResolver) *BarcodeHandler {
	return &BarcodeHandler{resolver: resolver}
}

// BarcodeCandidateResponse is product data suggested for a barcode
type BarcodeCandidateResponse struct {
	Title             string           `json:"title"`
	Description       string           `json:"description,omitempty"`
	Brand             string           `json:"brand,omitempty"`
	Images            []string         `json:"images"`
	Source            string           `json:"source"`
	SuggestedPrice    *decimal.Decimal `json:"suggested_price,omitempty"`
	SuggestedCategory string           `json:"suggested_category,omitempty"`
}

// BarcodeLookupResponse is a positive lookup answer
type BarcodeLookupResponse struct {
	Barcode         string                   `json:"barcode"`
	ExistsAsProduct bool                     `json:"exists_as_product"`
	ProductID       *uuid.UUID               `json:"product_id,omitempty"`
	FromCache       bool                     `json:"from_cache"`
	Candidate       BarcodeCandidateResponse `json:"candidate"`
}

// AcceptBarcodeRequest overrides candidate fields when creating the product
type AcceptBarcodeRequest struct {
	Code        string           `json:"code" binding:"max=64"`
	Name        string           `json:"name" binding:"max=200"`
	Description *string          `json:"description" binding:"omitempty,max=5000"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock" binding:"omitempty,min=0"`
	CategoryID  *uuid.UUID       `json:"category_id"`
}

// IgnoreBarcodeRequest records who dismissed a barcode
type IgnoreBarcodeRequest struct {
	Actor string `json:"actor" binding:"max=100"`
}

// Lookup handles GET /barcodes/:code
func (h *BarcodeHandler) Lookup(c *gin.Context) {
	res, err := h.resolver.Resolve(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if res == nil || res.Candidate == nil {
		h.NotFound(c, "No product data found for barcode")
		return
	}

	cand := res.Candidate
	images := cand.Images
	if images == nil {
		images = []string{}
	}
	h.Success(c, BarcodeLookupResponse{
		Barcode:         res.Barcode,
		ExistsAsProduct: res.ExistsAsProduct,
		ProductID:       res.ProductID,
		FromCache:       res.FromCache,
		Candidate: BarcodeCandidateResponse{
			Title:             cand.Title,
			Description:       cand.Description,
			Brand:             cand.Brand,
			Images:            images,
			Source:            cand.Source,
			SuggestedPrice:    cand.SuggestedPrice,
			SuggestedCategory: cand.SuggestedCategory,
		},
	})
}

// Accept handles POST /barcodes/:code/accept
func (h *BarcodeHandler) Accept(c *gin.Context) {
	var req AcceptBarcodeRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}

	result, err := h.resolver.Accept(c.Request.Context(), c.Param("code"), barcodeapp.AcceptOverrides{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, catalogapp.ToProductResponse(result.Product), result.Warnings)
}

// Ignore handles POST /barcodes/:code/ignore
func (h *BarcodeHandler) Ignore(c *gin.Context) {
	var req IgnoreBarcodeRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}
	if err := h.resolver.Ignore(c.Request.Context(), c.Param("code"), req.Actor); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
