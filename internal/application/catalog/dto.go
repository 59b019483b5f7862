package catalog

import (
	"time"

	"github.com/erp/wooerp/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductImageRequest references an image by URL or storefront media id
type ProductImageRequest struct {
	URL             string `json:"url" binding:"omitempty,max=2048"`
	ExternalMediaID *int64 `json:"external_media_id"`
}

// CreateProductRequest represents a request to create a new product
type CreateProductRequest struct {
	Code        string                `json:"code" binding:"required,min=1,max=64"`
	Name        string                `json:"name" binding:"required,min=1,max=200"`
	Description string                `json:"description" binding:"max=5000"`
	Price       decimal.Decimal       `json:"price"`
	Stock       int                   `json:"stock" binding:"min=0"`
	MinStock    int                   `json:"min_stock" binding:"min=0"`
	MaxStock    int                   `json:"max_stock" binding:"min=0"`
	CategoryID  *uuid.UUID            `json:"category_id"`
	Barcode     string                `json:"barcode" binding:"omitempty,barcode"`
	Images      []ProductImageRequest `json:"images" binding:"omitempty,dive"`
}

// UpdateProductRequest represents a request to update a product.
// Nil fields are left unchanged.
type UpdateProductRequest struct {
	Name        *string                `json:"name" binding:"omitempty,min=1,max=200"`
	Description *string                `json:"description" binding:"omitempty,max=5000"`
	Price       *decimal.Decimal       `json:"price"`
	MinStock    *int                   `json:"min_stock" binding:"omitempty,min=0"`
	MaxStock    *int                   `json:"max_stock" binding:"omitempty,min=0"`
	CategoryID  *uuid.UUID             `json:"category_id"`
	Barcode     *string                `json:"barcode"`
	Images      *[]ProductImageRequest `json:"images"`
}

// StockAdjustmentRequest represents a manual stock adjustment
type StockAdjustmentRequest struct {
	Operation string `json:"operation" binding:"required,oneof=set add subtract"`
	Quantity  int    `json:"quantity" binding:"min=0"`
}

// ProductResponse represents a product in API responses
type ProductResponse struct {
	ID          uuid.UUID              `json:"id"`
	Code        string                 `json:"code"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Price       decimal.Decimal        `json:"price"`
	Stock       int                    `json:"stock"`
	MinStock    int                    `json:"min_stock"`
	MaxStock    int                    `json:"max_stock"`
	Active      bool                   `json:"active"`
	CategoryID  *uuid.UUID             `json:"category_id"`
	Barcode     string                 `json:"barcode"`
	Images      []catalog.ProductImage `json:"images"`
	ExternalID  *int64                 `json:"external_id"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// ProductResult is a product write outcome. Warnings report storefront
// sync problems that did not undo the local write.
type ProductResult struct {
	Product  ProductResponse `json:"product"`
	Warnings []string        `json:"warnings,omitempty"`
}

// ToProductResponse converts a domain Product to ProductResponse
func ToProductResponse(p *catalog.Product) ProductResponse {
	resp := ProductResponse{
		ID:          p.ID,
		Code:        p.Code,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock.Current,
		MinStock:    p.Stock.Min,
		MaxStock:    p.Stock.Max,
		Active:      p.Active,
		CategoryID:  p.CategoryID,
		Images:      p.Images,
		ExternalID:  p.ExternalID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Barcode != nil {
		resp.Barcode = *p.Barcode
	}
	if resp.Images == nil {
		resp.Images = []catalog.ProductImage{}
	}
	return resp
}

func toImages(reqs []ProductImageRequest) []catalog.ProductImage {
	images := make([]catalog.ProductImage, 0, len(reqs))
	for _, r := range reqs {
		images = append(images, catalog.ProductImage{URL: r.URL, ExternalMediaID: r.ExternalMediaID})
	}
	return images
}
