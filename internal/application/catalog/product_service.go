package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/wooerp/internal/domain/barcode"
	"github.com/erp/wooerp/internal/domain/catalog"
	"github.com/erp/wooerp/internal/domain/integration"
	"github.com/erp/wooerp/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductSyncer propagates local product changes to the storefront
type ProductSyncer interface {
	SyncProduct(ctx context.Context, productID uuid.UUID) (*integration.ProductSyncResult, error)
	TrashProduct(ctx context.Context, product *catalog.Product) error
}

// ProductService handles product-related business operations.
// Every write is committed locally first; storefront sync problems come
// back as warnings on the result.
type ProductService struct {
	productRepo  catalog.ProductRepository
	categoryRepo catalog.CategoryRepository
	syncer       ProductSyncer
	logger       *zap.Logger
}

// NewProductService creates a new ProductService
func NewProductService(
	productRepo catalog.ProductRepository,
	categoryRepo catalog.CategoryRepository,
	logger *zap.Logger,
) *ProductService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		logger:       logger,
	}
}

// SetProductSyncer sets the outbound product sync run after each write
func (s *ProductService) SetProductSyncer(syncer ProductSyncer) {
	s.syncer = syncer
}

// GetByID returns a product by ID
func (s *ProductService) GetByID(ctx context.Context, id uuid.UUID) (*ProductResponse, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToProductResponse(product)
	return &resp, nil
}

// Create creates a new product
func (s *ProductService) Create(ctx context.Context, req CreateProductRequest) (*ProductResult, error) {
	exists, err := s.productRepo.ExistsByCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewConflictError("product with code", req.Code)
	}

	product, err := catalog.NewProduct(req.Code, req.Name, req.Price)
	if err != nil {
		return nil, err
	}
	product.Description = req.Description

	if req.Barcode != "" {
		if err := s.assignBarcode(ctx, product, req.Barcode); err != nil {
			return nil, err
		}
	}
	if req.CategoryID != nil {
		if err := s.checkCategory(ctx, *req.CategoryID); err != nil {
			return nil, err
		}
		product.CategoryID = req.CategoryID
	}
	if err := product.SetStockLimits(req.MinStock, req.MaxStock); err != nil {
		return nil, err
	}
	if _, err := product.ApplyStockOperation(catalog.StockOperationSet, req.Stock); err != nil {
		return nil, err
	}
	product.Images = toImages(req.Images)

	if err := s.productRepo.Save(ctx, product); err != nil {
		return nil, err
	}
	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("code", product.Code),
	)

	return s.syncAfterWrite(ctx, product, nil), nil
}

// Update updates an existing product
func (s *ProductService) Update(ctx context.Context, id uuid.UUID, req UpdateProductRequest) (*ProductResult, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	name := product.Name
	if req.Name != nil {
		name = *req.Name
	}
	description := product.Description
	if req.Description != nil {
		description = *req.Description
	}
	price := product.Price
	if req.Price != nil {
		price = *req.Price
	}
	if err := product.Update(name, description, price); err != nil {
		return nil, err
	}

	if req.MinStock != nil || req.MaxStock != nil {
		minStock, maxStock := product.Stock.Min, product.Stock.Max
		if req.MinStock != nil {
			minStock = *req.MinStock
		}
		if req.MaxStock != nil {
			maxStock = *req.MaxStock
		}
		if err := product.SetStockLimits(minStock, maxStock); err != nil {
			return nil, err
		}
	}
	if req.CategoryID != nil {
		if err := s.checkCategory(ctx, *req.CategoryID); err != nil {
			return nil, err
		}
		product.CategoryID = req.CategoryID
	}
	if req.Barcode != nil {
		if *req.Barcode == "" {
			product.SetBarcode("")
		} else if err := s.assignBarcode(ctx, product, *req.Barcode); err != nil {
			return nil, err
		}
	}
	if req.Images != nil {
		product.Images = toImages(*req.Images)
	}

	if err := s.productRepo.Save(ctx, product); err != nil {
		return nil, err
	}
	return s.syncAfterWrite(ctx, product, nil), nil
}

// AdjustStock applies a manual stock operation. Subtractions never go
// below zero; a clamped subtraction is reported as a warning.
func (s *ProductService) AdjustStock(ctx context.Context, id uuid.UUID, req StockAdjustmentRequest) (*ProductResult, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	before := product.Stock.Current
	clamped, err := product.ApplyStockOperation(catalog.StockOperation(req.Operation), req.Quantity)
	if err != nil {
		return nil, err
	}
	if err := s.productRepo.Save(ctx, product); err != nil {
		return nil, err
	}

	var warnings []string
	if clamped {
		s.logger.Warn("Stock subtraction clamped to zero",
			zap.String("code", product.Code),
			zap.Int("requested", req.Quantity),
			zap.Int("available", before),
		)
		warnings = append(warnings, fmt.Sprintf("stock for %s clamped to 0 (requested %d, short by %d)",
			product.Code, req.Quantity, req.Quantity-before))
	}
	return s.syncAfterWrite(ctx, product, warnings), nil
}

// Deactivate soft-deletes a product and moves its storefront counterpart
// to the trash on a best-effort basis.
func (s *ProductService) Deactivate(ctx context.Context, id uuid.UUID) (*ProductResult, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	product.Deactivate()
	if err := s.productRepo.Save(ctx, product); err != nil {
		return nil, err
	}

	result := &ProductResult{Product: ToProductResponse(product)}
	if s.syncer == nil || !product.IsLinked() {
		return result, nil
	}
	if err := s.syncer.TrashProduct(ctx, product); err != nil {
		s.logger.Warn("Failed to trash storefront product",
			zap.String("code", product.Code),
			zap.Error(err),
		)
		result.Warnings = append(result.Warnings, syncWarning(err))
	}
	return result, nil
}

func (s *ProductService) assignBarcode(ctx context.Context, product *catalog.Product, raw string) error {
	code, err := barcode.Normalize(raw)
	if err != nil {
		return err
	}
	existing, err := s.productRepo.FindByBarcode(ctx, code)
	switch {
	case err == nil && existing.ID != product.ID:
		return shared.NewConflictError("product with barcode", code)
	case err != nil && !errors.Is(err, shared.ErrNotFound):
		return err
	}
	product.SetBarcode(code)
	return nil
}

func (s *ProductService) checkCategory(ctx context.Context, id uuid.UUID) error {
	if _, err := s.categoryRepo.FindByID(ctx, id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewValidationError("category_id", "category not found")
		}
		return err
	}
	return nil
}

// syncAfterWrite pushes the product and folds any failure into warnings
func (s *ProductService) syncAfterWrite(ctx context.Context, product *catalog.Product, warnings []string) *ProductResult {
	result := &ProductResult{Product: ToProductResponse(product), Warnings: warnings}
	if s.syncer == nil {
		return result
	}

	synced, err := s.syncer.SyncProduct(ctx, product.ID)
	if err != nil {
		if !integration.IsNotConfigured(err) {
			s.logger.Warn("Product saved but storefront sync failed",
				zap.String("code", product.Code),
				zap.Error(err),
			)
		}
		result.Warnings = append(result.Warnings, syncWarning(err))
		return result
	}
	if synced.ExternalID > 0 {
		result.Product.ExternalID = &synced.ExternalID
	}
	return result
}

func syncWarning(err error) string {
	if integration.IsNotConfigured(err) {
		return "storefront not configured; product was not synced"
	}
	return fmt.Sprintf("product saved but storefront sync failed: %v", err)
}
