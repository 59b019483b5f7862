package persistence

import (
	"context"
	"time"

	"github.com/erp/wooerp/internal/domain/catalog"
	"github.com/erp/wooerp/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProductRepository implements ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByID finds a product by its ID
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	return r.findOne(ctx, id.String(), "id = ?", id)
}

// FindByCode finds a product by its code (SKU)
func (r *GormProductRepository) FindByCode(ctx context.Context, code string) (*catalog.Product, error) {
	return r.findOne(ctx, code, "code = ?", code)
}

// FindByCodes finds products by code, keyed by code
func (r *GormProductRepository) FindByCodes(ctx context.Context, codes []string) (map[string]*catalog.Product, error) {
	result := make(map[string]*catalog.Product, len(codes))
	if len(codes) == 0 {
		return result, nil
	}

	var rows []models.ProductModel
	if err := r.db.WithContext(ctx).Where("code IN ?", codes).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		p := rows[i].ToDomain()
		result[p.Code] = p
	}
	return result, nil
}

// FindByBarcode finds a product by its normalized barcode
func (r *GormProductRepository) FindByBarcode(ctx context.Context, barcode string) (*catalog.Product, error) {
	return r.findOne(ctx, barcode, "barcode = ?", barcode)
}

// FindByExternalID finds a product by its storefront id
func (r *GormProductRepository) FindByExternalID(ctx context.Context, externalID int64) (*catalog.Product, error) {
	return r.findOne(ctx, formatInt(externalID), "external_id = ?", externalID)
}

// ExistsByCode checks whether a product with the code exists
func (r *GormProductRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ProductModel{}).
		Where("code = ?", code).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a product
func (r *GormProductRepository) Save(ctx context.Context, product *catalog.Product) error {
	model := models.ProductModelFromDomain(product)
	return translateError(r.db.WithContext(ctx).Save(model).Error, "product", product.Code)
}

// SetExternalID links a product to its storefront counterpart
func (r *GormProductRepository) SetExternalID(ctx context.Context, id uuid.UUID, externalID int64) error {
	result := r.db.WithContext(ctx).Model(&models.ProductModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"external_id": externalID, "updated_at": time.Now()})
	return requireAffected(result, "product", id.String())
}

// DecrementStock subtracts quantity from the current stock, clamping at zero.
// The row is locked for the read so concurrent decrements serialize.
func (r *GormProductRepository) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (catalog.StockChange, error) {
	change := catalog.StockChange{ProductID: id, Requested: quantity}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.ProductModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "stock_current").
			Where("id = ?", id).
			First(&row).Error; err != nil {
			return translateError(err, "product", id.String())
		}
		change.Before = row.StockCurrent
		change.After = max(row.StockCurrent-quantity, 0)

		return tx.Model(&models.ProductModel{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"stock_current": gorm.Expr("CASE WHEN stock_current >= ? THEN stock_current - ? ELSE 0 END", quantity, quantity),
				"updated_at":    time.Now(),
			}).Error
	})
	if err != nil {
		return catalog.StockChange{}, err
	}
	return change, nil
}

// IncrementStock adds quantity back to the current stock
func (r *GormProductRepository) IncrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	result := r.db.WithContext(ctx).Model(&models.ProductModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"stock_current": gorm.Expr("stock_current + ?", quantity),
			"updated_at":    time.Now(),
		})
	return requireAffected(result, "product", id.String())
}

func (r *GormProductRepository) findOne(ctx context.Context, key string, query string, args ...any) (*catalog.Product, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).Where(query, args...).First(&model).Error; err != nil {
		return nil, translateError(err, "product", key)
	}
	return model.ToDomain(), nil
}

// Ensure GormProductRepository implements ProductRepository
var _ catalog.ProductRepository = (*GormProductRepository)(nil)

// GormCategoryRepository implements CategoryRepository using GORM
type GormCategoryRepository struct {
	db *gorm.DB
}

// NewGormCategoryRepository creates a new GormCategoryRepository
func NewGormCategoryRepository(db *gorm.DB) *GormCategoryRepository {
	return &GormCategoryRepository{db: db}
}

// FindByID finds a category by its ID
func (r *GormCategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Category, error) {
	var model models.CategoryModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "category", id.String())
	}
	return model.ToDomain(), nil
}

// FindByName finds a category by its exact name
func (r *GormCategoryRepository) FindByName(ctx context.Context, name string) (*catalog.Category, error) {
	var model models.CategoryModel
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&model).Error; err != nil {
		return nil, translateError(err, "category", name)
	}
	return model.ToDomain(), nil
}

// Save creates or updates a category
func (r *GormCategoryRepository) Save(ctx context.Context, category *catalog.Category) error {
	model := models.CategoryModelFromDomain(category)
	return translateError(r.db.WithContext(ctx).Save(model).Error, "category", category.Name)
}

var _ catalog.CategoryRepository = (*GormCategoryRepository)(nil)
