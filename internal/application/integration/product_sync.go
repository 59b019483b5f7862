package integration

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/wooerp/internal/domain/catalog"
	"github.com/erp/wooerp/internal/domain/integration"
	"github.com/erp/wooerp/internal/domain/shared"
	zaplog "github.com/erp/wooerp/internal/infrastructure/logger"
	"github.com/erp/wooerp/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultPageSize is the storefront page size used by bulk operations
const DefaultPageSize = 100

const (
	productStatusPublish = "publish"
	productStatusDraft   = "draft"
)

// ProductSyncService maps local products to and from the storefront catalog
type ProductSyncService struct {
	products   catalog.ProductRepository
	categories catalog.CategoryRepository
	storefront integration.Storefront
	pageSize   int
	logger     *zap.Logger
	metrics    *telemetry.SyncMetrics
}

// NewProductSyncService creates a new ProductSyncService
func NewProductSyncService(
	products catalog.ProductRepository,
	categories catalog.CategoryRepository,
	storefront integration.Storefront,
	pageSize int,
	logger *zap.Logger,
) *ProductSyncService {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductSyncService{
		products:   products,
		categories: categories,
		storefront: storefront,
		pageSize:   pageSize,
		logger:     logger,
	}
}

// SetSyncMetrics sets the metrics recorder
func (s *ProductSyncService) SetSyncMetrics(m *telemetry.SyncMetrics) {
	s.metrics = m
}

// ---------------------------------------------------------------------------
// Outbound
// ---------------------------------------------------------------------------

// SyncProduct pushes one product to the storefront. The counterpart is the
// stored external id, else the storefront product with the same SKU, else a
// new storefront product.
func (s *ProductSyncService) SyncProduct(ctx context.Context, productID uuid.UUID) (*integration.ProductSyncResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "product_sync", "sync_product",
		telemetry.WithAttribute(telemetry.SpanAttrProductID, productID.String()))
	defer span.End()

	result, err := s.syncProduct(ctx, productID)
	s.metrics.RecordSync(ctx, "product", outcomeOf(err))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return result, nil
}

func (s *ProductSyncService) syncProduct(ctx context.Context, productID uuid.UUID) (*integration.ProductSyncResult, error) {
	if !s.storefront.IsConfigured() {
		return nil, integration.ErrPlatformNotConfigured
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	input, err := s.buildInput(ctx, product)
	if err != nil {
		return nil, err
	}

	result := &integration.ProductSyncResult{ProductID: product.ID}

	// (a) already linked
	if product.ExternalID != nil {
		_, err := s.storefront.UpdateProduct(ctx, *product.ExternalID, input)
		if err == nil {
			result.ExternalID = *product.ExternalID
			return result, nil
		}
		if !integration.IsRemoteNotFound(err) {
			return nil, err
		}
		s.log(ctx).Warn("Linked storefront product is gone, relinking by SKU",
			zap.String("sku", product.Code),
			zap.Int64("external_id", *product.ExternalID),
		)
	}

	// (b) adopt by SKU
	existing, err := s.storefront.FindProductBySKU(ctx, product.Code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := s.products.SetExternalID(ctx, product.ID, existing.ID); err != nil {
			return nil, err
		}
		if _, err := s.storefront.UpdateProduct(ctx, existing.ID, input); err != nil {
			return nil, err
		}
		result.ExternalID = existing.ID
		result.Linked = true
		s.log(ctx).Info("Product linked to storefront by SKU",
			zap.String("sku", product.Code),
			zap.Int64("external_id", existing.ID),
		)
		return result, nil
	}

	// (c) create
	created, err := s.storefront.CreateProduct(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := s.products.SetExternalID(ctx, product.ID, created.ID); err != nil {
		return nil, err
	}
	result.ExternalID = created.ID
	result.Created = true
	s.log(ctx).Info("Product created on storefront",
		zap.String("sku", product.Code),
		zap.Int64("external_id", created.ID),
	)
	return result, nil
}

// buildInput maps a product to the storefront body. Categories is never nil
// so the storefront drops a stale association.
func (s *ProductSyncService) buildInput(ctx context.Context, p *catalog.Product) (integration.ProductInput, error) {
	in := integration.ProductInput{
		SKU:           p.Code,
		Name:          p.Name,
		Description:   p.Description,
		RegularPrice:  p.Price,
		ManageStock:   true,
		StockQuantity: p.Stock.Current,
		Status:        productStatusPublish,
		CategoryIDs:   []int64{},
		Images:        []integration.ImageRef{},
	}
	if !p.Active {
		in.Status = productStatusDraft
	}

	if p.CategoryID != nil && s.categories != nil {
		category, err := s.categories.FindByID(ctx, *p.CategoryID)
		switch {
		case err == nil && category.ExternalID != nil:
			in.CategoryIDs = append(in.CategoryIDs, *category.ExternalID)
		case err != nil && !shared.IsNotFound(err):
			return in, err
		}
	}

	for _, img := range p.ValidImages() {
		if img.ExternalMediaID != nil && *img.ExternalMediaID > 0 {
			in.Images = append(in.Images, integration.ImageRef{ID: *img.ExternalMediaID})
			continue
		}
		in.Images = append(in.Images, integration.ImageRef{Src: img.URL})
	}
	return in, nil
}

// TrashProduct moves the linked storefront product to the trash. Unlinked
// products are a no-op.
func (s *ProductSyncService) TrashProduct(ctx context.Context, product *catalog.Product) error {
	if product.ExternalID == nil {
		return nil
	}
	if !s.storefront.IsConfigured() {
		return integration.ErrPlatformNotConfigured
	}
	err := s.storefront.TrashProduct(ctx, *product.ExternalID)
	if integration.IsRemoteNotFound(err) {
		return nil
	}
	return err
}

// ---------------------------------------------------------------------------
// Bulk link
// ---------------------------------------------------------------------------

// BulkLinkBySKU walks the storefront catalog page by page and stores the
// external id on every local product sharing a SKU. The walk ends at the
// first page shorter than the page size. Per-item failures are collected.
func (s *ProductSyncService) BulkLinkBySKU(ctx context.Context) (*integration.BulkLinkSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "product_sync", "bulk_link_by_sku")
	defer span.End()

	if !s.storefront.IsConfigured() {
		return nil, integration.ErrPlatformNotConfigured
	}

	summary := &integration.BulkLinkSummary{Errors: []string{}}
	for page := 1; ; page++ {
		items, err := s.storefront.ListProducts(ctx, page, s.pageSize)
		if err != nil {
			if page == 1 {
				telemetry.RecordError(span, err)
				return nil, err
			}
			summary.Errors = append(summary.Errors, fmt.Sprintf("page %d: %v", page, err))
			break
		}
		summary.Pages++
		s.linkPage(ctx, items, summary)

		if len(items) < s.pageSize {
			break
		}
	}

	s.log(ctx).Info("Storefront catalog linked by SKU",
		zap.Int("linked", summary.Linked),
		zap.Int("already_linked", summary.AlreadyLinked),
		zap.Int("not_found_in_erp", summary.NotFoundInERP),
		zap.Int("pages", summary.Pages),
		zap.Int("errors", len(summary.Errors)),
	)
	return summary, nil
}

func (s *ProductSyncService) linkPage(ctx context.Context, items []integration.ExternalProduct, summary *integration.BulkLinkSummary) {
	skus := make([]string, 0, len(items))
	for _, item := range items {
		if item.SKU != "" {
			skus = append(skus, item.SKU)
		}
	}
	if len(skus) == 0 {
		summary.SkippedNoSKU += len(items)
		return
	}

	locals, err := s.products.FindByCodes(ctx, skus)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("page lookup: %v", err))
		return
	}

	for _, item := range items {
		if item.SKU == "" {
			summary.SkippedNoSKU++
			continue
		}
		local, ok := locals[item.SKU]
		switch {
		case !ok:
			summary.NotFoundInERP++
		case local.ExternalID != nil:
			summary.AlreadyLinked++
		default:
			if err := s.products.SetExternalID(ctx, local.ID, item.ID); err != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("sku %s: %v", item.SKU, err))
				continue
			}
			ext := item.ID
			local.ExternalID = &ext
			summary.Linked++
		}
	}
}

// ---------------------------------------------------------------------------
// Inbound
// ---------------------------------------------------------------------------

// ApplyExternalProduct applies a storefront product event to the local
// catalog. The local match is the external id, else the SKU. Unknown SKUs
// become inactive products; events without a SKU are skipped.
func (s *ProductSyncService) ApplyExternalProduct(ctx context.Context, raw []byte, action integration.Action) (*integration.ProductEventResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "product_sync", "apply_external_product",
		telemetry.WithAttribute("action", string(action)))
	defer span.End()

	ext, err := integration.DecodeProduct(raw)
	if err != nil {
		if shared.IsValidation(err) {
			return nil, err
		}
		return nil, shared.NewValidationError("payload", err.Error())
	}
	if ext.ID <= 0 {
		return nil, shared.NewValidationError("id", "product event is missing id")
	}

	local, err := s.matchLocal(ctx, ext)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &integration.ProductEventResult{}

	if action == integration.ActionDelete {
		if local == nil {
			result.Skipped = true
			result.Warnings = append(result.Warnings, fmt.Sprintf("storefront product %d is not known locally", ext.ID))
			return result, nil
		}
		local.Deactivate()
		if err := s.products.Save(ctx, local); err != nil {
			return nil, err
		}
		result.Product = local
		return result, nil
	}

	if local == nil {
		if ext.SKU == "" {
			s.log(ctx).Warn("Storefront product event without SKU skipped", zap.Int64("external_id", ext.ID))
			result.Skipped = true
			result.Warnings = append(result.Warnings, fmt.Sprintf("storefront product %d has no sku", ext.ID))
			return result, nil
		}
		local, err = newInactiveProduct(ext)
		if err != nil {
			return nil, err
		}
		result.Created = true
	} else {
		result.Warnings = applyExternalFields(local, ext)
	}

	if local.ExternalID == nil {
		local.LinkExternal(ext.ID)
	}
	local.ExternalPayload = ext.Raw

	if err := s.products.Save(ctx, local); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.log(ctx).Info("Storefront product event applied",
		zap.Int64("external_id", ext.ID),
		zap.String("sku", local.Code),
		zap.Bool("created", result.Created),
	)
	result.Product = local
	return result, nil
}

func (s *ProductSyncService) matchLocal(ctx context.Context, ext *integration.ExternalProduct) (*catalog.Product, error) {
	local, err := s.products.FindByExternalID(ctx, ext.ID)
	if err == nil {
		return local, nil
	}
	if !shared.IsNotFound(err) {
		return nil, err
	}
	if ext.SKU == "" {
		return nil, nil
	}
	local, err = s.products.FindByCode(ctx, ext.SKU)
	if err == nil {
		return local, nil
	}
	if shared.IsNotFound(err) {
		return nil, nil
	}
	return nil, err
}

func newInactiveProduct(ext *integration.ExternalProduct) (*catalog.Product, error) {
	name := ext.Name
	if name == "" {
		name = ext.SKU
	}
	price := decimal.Zero
	if ep := ext.EffectivePrice(); ep != nil && !ep.IsNegative() {
		price = *ep
	}
	product, err := catalog.NewProduct(ext.SKU, name, price)
	if err != nil {
		return nil, err
	}
	product.Description = ext.Description
	if ext.StockQuantity != nil && *ext.StockQuantity > 0 {
		product.Stock.Current = *ext.StockQuantity
	}
	product.Deactivate()
	return product, nil
}

// applyExternalFields copies the storefront fields that are present. Empty
// strings and missing numbers leave the local value alone.
func applyExternalFields(p *catalog.Product, ext *integration.ExternalProduct) []string {
	var warnings []string
	name := p.Name
	if ext.Name != "" {
		name = ext.Name
	}
	price := p.Price
	if ep := ext.EffectivePrice(); ep != nil {
		price = *ep
	}
	if err := p.Update(name, p.Description, price); err != nil {
		warnings = append(warnings, fmt.Sprintf("ignored storefront fields: %v", err))
	}
	if ext.Description != "" {
		p.Description = ext.Description
	}
	if ext.ManageStock && ext.StockQuantity != nil {
		qty := *ext.StockQuantity
		if qty < 0 {
			warnings = append(warnings, fmt.Sprintf("storefront stock %d for %s clamped to 0", qty, p.Code))
			qty = 0
		}
		if _, err := p.ApplyStockOperation(catalog.StockOperationSet, qty); err != nil {
			warnings = append(warnings, err.Error())
		}
	}
	return warnings
}

func outcomeOf(err error) telemetry.SyncOutcome {
	switch {
	case err == nil:
		return telemetry.SyncOutcomeSuccess
	case integration.IsNotConfigured(err):
		return telemetry.SyncOutcomeNotConfigured
	case errors.Is(err, integration.ErrOrderSyncSkipped):
		return telemetry.SyncOutcomeSkipped
	default:
		return telemetry.SyncOutcomeFailed
	}
}

func (s *ProductSyncService) log(ctx context.Context) *zap.Logger {
	return zaplog.Enrich(ctx, s.logger)
}
