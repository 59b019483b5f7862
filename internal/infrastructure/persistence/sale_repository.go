package persistence

import (
	"context"
	"time"

	"github.com/erp/wooerp/internal/domain/trade"
	"github.com/erp/wooerp/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSaleRepository implements SaleRepository using GORM
type GormSaleRepository struct {
	db *gorm.DB
}

// NewGormSaleRepository creates a new GormSaleRepository
func NewGormSaleRepository(db *gorm.DB) *GormSaleRepository {
	return &GormSaleRepository{db: db}
}

// FindByID loads a sale with its items
func (r *GormSaleRepository) FindByID(ctx context.Context, id uuid.UUID) (*trade.Sale, error) {
	var model models.SaleModel
	if err := r.db.WithContext(ctx).Preload("Items").First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "sale", id.String())
	}
	return model.ToDomain(), nil
}

// Create inserts header and items
func (r *GormSaleRepository) Create(ctx context.Context, sale *trade.Sale) error {
	model := models.SaleModelFromDomain(sale)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := model.Items
		if err := tx.Omit("Items").Create(model).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		return tx.Create(&items).Error
	})
	return translateError(err, "sale", sale.SaleNumber)
}

// SaveSyncState writes the outbound bookkeeping columns only
func (r *GormSaleRepository) SaveSyncState(ctx context.Context, id uuid.UUID, state trade.SyncState) error {
	updates := models.SyncStateUpdates(state)
	updates["updated_at"] = time.Now()
	result := r.db.WithContext(ctx).Model(&models.SaleModel{}).Where("id = ?", id).Updates(updates)
	return requireAffected(result, "sale", id.String())
}

// FindSyncCandidates lists sales whose outbound sync should be retried
func (r *GormSaleRepository) FindSyncCandidates(ctx context.Context, filter trade.SyncCandidateFilter) ([]*trade.Sale, error) {
	var rows []models.SaleModel
	query := syncCandidateQuery(r.db.WithContext(ctx).Model(&models.SaleModel{}), filter).Preload("Items")
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	sales := make([]*trade.Sale, len(rows))
	for i := range rows {
		sales[i] = rows[i].ToDomain()
	}
	return sales, nil
}

var _ trade.SaleRepository = (*GormSaleRepository)(nil)
