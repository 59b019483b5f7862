package barcode

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/wooerp/internal/domain/barcode"
	"github.com/erp/wooerp/internal/domain/catalog"
	"github.com/erp/wooerp/internal/domain/integration"
	"github.com/erp/wooerp/internal/domain/shared"
	"github.com/erp/wooerp/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Config bounds the provider fan-out
type Config struct {
	ProviderTimeout    time.Duration
	ResolveTimeout     time.Duration
	MaxRawPayloadBytes int
}

// DefaultConfig returns the default resolver configuration
func DefaultConfig() Config {
	return Config{
		ProviderTimeout:    3 * time.Second,
		ResolveTimeout:     5 * time.Second,
		MaxRawPayloadBytes: barcode.DefaultMaxRawPayloadBytes,
	}
}

// ProductSyncer pushes a product to the storefront
type ProductSyncer interface {
	SyncProduct(ctx context.Context, productID uuid.UUID) (*integration.ProductSyncResult, error)
}

// Resolution is a positive lookup answer
type Resolution struct {
	Barcode   string
	Candidate *barcode.Candidate
	// ExistsAsProduct is set when a local product already carries the barcode
	ExistsAsProduct bool
	ProductID       *uuid.UUID
	FromCache       bool
}

// Resolver answers barcode lookups from local products, the lookup cache,
// and a race between external providers, in that order.
type Resolver struct {
	products  catalog.ProductRepository
	cache     barcode.CacheRepository
	providers []barcode.Provider
	syncer    ProductSyncer
	cfg       Config
	logger    *zap.Logger
	metrics   *telemetry.SyncMetrics
	group     singleflight.Group
}

// NewResolver creates a new Resolver
func NewResolver(
	products catalog.ProductRepository,
	cache barcode.CacheRepository,
	providers []barcode.Provider,
	cfg Config,
	logger *zap.Logger,
) *Resolver {
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = DefaultConfig().ProviderTimeout
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = DefaultConfig().ResolveTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		products:  products,
		cache:     cache,
		providers: providers,
		cfg:       cfg,
		logger:    logger,
	}
}

// SetProductSyncer sets the outbound product sync run after Accept
func (r *Resolver) SetProductSyncer(syncer ProductSyncer) {
	r.syncer = syncer
}

// SetSyncMetrics sets the metrics recorder
func (r *Resolver) SetSyncMetrics(m *telemetry.SyncMetrics) {
	r.metrics = m
}

// Resolve looks up a barcode. It returns (nil, nil) when nobody knows it and
// a validation error when the code is malformed.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*Resolution, error) {
	code, err := barcode.Normalize(raw)
	if err != nil {
		return nil, err
	}

	// The shared lookup must outlive any one caller; the provider race is
	// bounded by ResolveTimeout
	ch := r.group.DoChan(code, func() (interface{}, error) {
		return r.resolve(context.WithoutCancel(ctx), code)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-ch:
		if out.Err != nil {
			return nil, out.Err
		}
		if out.Shared {
			r.logger.Debug("Barcode resolution shared with concurrent caller", zap.String("barcode", code))
		}
		res, _ := out.Val.(*Resolution)
		return res, nil
	}
}

func (r *Resolver) resolve(ctx context.Context, code string) (*Resolution, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "barcode", "resolve",
		telemetry.WithAttribute(telemetry.SpanAttrBarcode, code))
	defer span.End()

	// 1. Local product
	product, err := r.products.FindByBarcode(ctx, code)
	if err != nil && !shared.IsNotFound(err) {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if product != nil {
		r.metrics.RecordBarcodeLookup(ctx, "product")
		id := product.ID
		return &Resolution{
			Barcode:         code,
			ExistsAsProduct: true,
			ProductID:       &id,
			Candidate: &barcode.Candidate{
				Barcode:     code,
				Title:       product.Name,
				Description: product.Description,
				Source:      "local",
			},
		}, nil
	}

	// 2. Lookup cache
	entry, err := r.cache.Find(ctx, code)
	if err != nil && !shared.IsNotFound(err) {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if entry != nil {
		if entry.Ignored {
			r.logger.Debug("Barcode was ignored, skipping providers", zap.String("barcode", code))
			r.metrics.RecordBarcodeLookup(ctx, "ignored")
			return nil, nil
		}
		if err := r.cache.TouchUsage(ctx, code); err != nil {
			r.logger.Warn("Failed to bump barcode cache usage", zap.String("barcode", code), zap.Error(err))
		}
		r.metrics.RecordBarcodeLookup(ctx, "cache")
		return &Resolution{Barcode: code, Candidate: entry.Candidate(), FromCache: true}, nil
	}

	// 3. Provider race
	candidate := r.race(ctx, code)
	if candidate == nil {
		r.metrics.RecordBarcodeLookup(ctx, "not_found")
		return nil, nil
	}
	r.metrics.RecordBarcodeLookup(ctx, candidate.Source)

	fresh := barcode.NewCacheEntry(candidate)
	fresh.RawPayload = barcode.BoundPayload(candidate.Raw, r.cfg.MaxRawPayloadBytes, fresh)
	if err := r.cache.Upsert(ctx, fresh); err != nil {
		r.logger.Warn("Failed to cache barcode candidate",
			zap.String("barcode", code),
			zap.String("source", candidate.Source),
			zap.Error(err),
		)
	}

	candidate.Raw = nil
	return &Resolution{Barcode: code, Candidate: candidate}, nil
}

// race queries every provider concurrently and returns the first Ok
// candidate. Errors and empty answers are logged and ignored.
func (r *Resolver) race(ctx context.Context, code string) *barcode.Candidate {
	if len(r.providers) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.ResolveTimeout)
	defer cancel()

	// Buffered so late providers never block after a winner returns
	results := make(chan barcode.ProviderResult, len(r.providers))
	for _, p := range r.providers {
		go func(p barcode.Provider) {
			results <- r.search(ctx, p, code)
		}(p)
	}

	for pending := len(r.providers); pending > 0; pending-- {
		select {
		case res := <-results:
			switch res.Kind {
			case barcode.ResultOk:
				if res.Candidate.IsEmpty() {
					continue
				}
				c := res.Candidate
				c.Barcode = code
				if c.Source == "" {
					c.Source = res.Provider
				}
				return c
			case barcode.ResultErr:
				r.logger.Warn("Barcode provider failed",
					zap.String("provider", res.Provider),
					zap.String("barcode", code),
					zap.Error(res.Err),
				)
			default:
				r.logger.Debug("Barcode provider has no match",
					zap.String("provider", res.Provider),
					zap.String("barcode", code),
				)
			}
		case <-ctx.Done():
			r.logger.Warn("Barcode resolution timed out",
				zap.String("barcode", code),
				zap.Duration("timeout", r.cfg.ResolveTimeout),
			)
			return nil
		}
	}
	return nil
}

func (r *Resolver) search(ctx context.Context, p barcode.Provider, code string) (res barcode.ProviderResult) {
	name := p.Name()
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ProviderTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			res = barcode.Err(name, fmt.Errorf("provider panicked: %v", rec))
		}
		if res.Provider == "" {
			res.Provider = name
		}
		r.metrics.RecordProviderSearch(ctx, name, res.Kind.String(), time.Since(start))
	}()

	return p.Search(ctx, code)
}

// ---------------------------------------------------------------------------
// Accept / Ignore
// ---------------------------------------------------------------------------

// AcceptOverrides replaces candidate fields when creating the product
type AcceptOverrides struct {
	Code        string
	Name        string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	CategoryID  *uuid.UUID
}

// AcceptResult is the product created from a candidate
type AcceptResult struct {
	Product  *catalog.Product
	Warnings []string
}

// Accept turns the candidate for a barcode into a product. It fails when a
// product already carries the barcode or the chosen code is taken.
func (r *Resolver) Accept(ctx context.Context, raw string, overrides AcceptOverrides) (*AcceptResult, error) {
	code, err := barcode.Normalize(raw)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "barcode", "accept",
		telemetry.WithAttribute(telemetry.SpanAttrBarcode, code))
	defer span.End()

	existing, err := r.products.FindByBarcode(ctx, code)
	if err != nil && !shared.IsNotFound(err) {
		return nil, err
	}
	if existing != nil {
		return nil, shared.NewConflictError("product with barcode", code)
	}

	candidate, err := r.candidateFor(ctx, code)
	if err != nil {
		return nil, err
	}
	if candidate == nil && overrides.Name == "" {
		return nil, shared.NewNotFoundError("barcode candidate", code)
	}
	if candidate == nil {
		candidate = &barcode.Candidate{Barcode: code}
	}

	productCode := overrides.Code
	if productCode == "" {
		productCode = code
	}
	exists, err := r.products.ExistsByCode(ctx, productCode)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewConflictError("product code", productCode)
	}

	name := overrides.Name
	if name == "" {
		name = candidate.Title
		if candidate.Brand != "" && name != "" {
			name = fmt.Sprintf("%s %s", candidate.Brand, name)
		}
	}
	price := decimal.Zero
	if overrides.Price != nil {
		price = *overrides.Price
	} else if candidate.SuggestedPrice != nil {
		price = *candidate.SuggestedPrice
	}

	product, err := catalog.NewProduct(productCode, name, price)
	if err != nil {
		return nil, err
	}
	product.SetBarcode(code)
	product.Description = candidate.Description
	if overrides.Description != nil {
		product.Description = *overrides.Description
	}
	for _, url := range candidate.Images {
		product.Images = append(product.Images, catalog.ProductImage{URL: url})
	}
	if overrides.Stock != nil {
		if _, err := product.ApplyStockOperation(catalog.StockOperationSet, *overrides.Stock); err != nil {
			return nil, err
		}
	}
	product.CategoryID = overrides.CategoryID

	if err := r.products.Save(ctx, product); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	r.logger.Info("Product created from barcode candidate",
		zap.String("barcode", code),
		zap.String("product_id", product.ID.String()),
		zap.String("source", candidate.Source),
	)

	result := &AcceptResult{Product: product}
	if r.syncer != nil {
		if _, err := r.syncer.SyncProduct(ctx, product.ID); err != nil {
			result.Warnings = append(result.Warnings, syncWarning(err))
		}
	}
	return result, nil
}

// candidateFor returns the cached candidate, resolving it when absent
func (r *Resolver) candidateFor(ctx context.Context, code string) (*barcode.Candidate, error) {
	entry, err := r.cache.Find(ctx, code)
	if err != nil && !shared.IsNotFound(err) {
		return nil, err
	}
	if entry != nil {
		if !entry.HasCandidate() {
			return nil, nil
		}
		return entry.Candidate(), nil
	}
	res, err := r.Resolve(ctx, code)
	if err != nil || res == nil {
		return nil, err
	}
	return res.Candidate, nil
}

// Ignore dismisses the candidate for a barcode. Later resolutions answer
// not found without querying providers.
func (r *Resolver) Ignore(ctx context.Context, raw, actor string) error {
	code, err := barcode.Normalize(raw)
	if err != nil {
		return err
	}
	if actor == "" {
		actor = "anonymous"
	}
	if err := r.cache.MarkIgnored(ctx, code, actor); err != nil {
		return err
	}
	r.logger.Info("Barcode candidate ignored", zap.String("barcode", code), zap.String("actor", actor))
	return nil
}

func syncWarning(err error) string {
	if integration.IsNotConfigured(err) {
		return "storefront not configured; product was not synced"
	}
	return fmt.Sprintf("product saved but storefront sync failed: %v", err)
}
