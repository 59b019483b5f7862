package persistence

import (
	"context"
	"time"

	"github.com/erp/wooerp/internal/domain/shared"
	"github.com/erp/wooerp/internal/domain/trade"
	"github.com/erp/wooerp/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// orderHeaderColumns are written by Update; items and outbound sync
// bookkeeping have their own write paths
var orderHeaderColumns = []string{
	"status",
	"delivery_name",
	"delivery_address",
	"delivery_city",
	"delivery_state",
	"delivery_postcode",
	"delivery_country",
	"delivery_phone",
	"delivery_method",
	"delivery_notes",
	"subtotal",
	"shipping_total",
	"total",
	"external_payload",
	"external_order_id",
	"external_number",
	"updated_at",
}

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID loads an order with its items
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*trade.Order, error) {
	return r.findOne(ctx, id.String(), "id = ?", id)
}

// FindByExternalID loads the order mirroring a storefront order id
func (r *GormOrderRepository) FindByExternalID(ctx context.Context, externalOrderID int64) (*trade.Order, error) {
	return r.findOne(ctx, formatInt(externalOrderID), "external_order_id = ?", externalOrderID)
}

// FindByOrderNumber loads an order by its number
func (r *GormOrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*trade.Order, error) {
	return r.findOne(ctx, orderNumber, "order_number = ?", orderNumber)
}

// Create inserts header and items
func (r *GormOrderRepository) Create(ctx context.Context, order *trade.Order) error {
	model := models.OrderModelFromDomain(order)
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
	return translateError(err, "order", order.OrderNumber)
}

// Update writes header fields
func (r *GormOrderRepository) Update(ctx context.Context, order *trade.Order) error {
	model := models.OrderModelFromDomain(order)
	result := r.db.WithContext(ctx).Model(&models.OrderModel{}).
		Where("id = ?", order.ID).
		Select(orderHeaderColumns).
		Omit(clause.Associations).
		Updates(model)
	return requireAffected(result, "order", order.ID.String())
}

// UpdateStatus changes the status only if the stored status still equals
// from. A lost race yields an invalid transition error naming the status
// actually stored.
func (r *GormOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to trade.OrderStatus) error {
	result := r.db.WithContext(ctx).Model(&models.OrderModel{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var current models.OrderModel
	if err := r.db.WithContext(ctx).Select("id", "status").First(&current, "id = ?", id).Error; err != nil {
		return translateError(err, "order", id.String())
	}
	return shared.NewInvalidTransitionError(current.Status.String(), to.String())
}

// Delete removes the order and its items
func (r *GormOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItemModel{}).Error; err != nil {
			return err
		}
		return requireAffected(tx.Where("id = ?", id).Delete(&models.OrderModel{}), "order", id.String())
	})
}

// SaveSyncState writes the outbound bookkeeping columns only
func (r *GormOrderRepository) SaveSyncState(ctx context.Context, id uuid.UUID, state trade.SyncState) error {
	updates := models.SyncStateUpdates(state)
	updates["updated_at"] = time.Now()
	result := r.db.WithContext(ctx).Model(&models.OrderModel{}).Where("id = ?", id).Updates(updates)
	return requireAffected(result, "order", id.String())
}

// FindSyncCandidates lists local orders whose outbound sync should be retried
func (r *GormOrderRepository) FindSyncCandidates(ctx context.Context, filter trade.SyncCandidateFilter) ([]*trade.Order, error) {
	var rows []models.OrderModel
	query := syncCandidateQuery(r.db.WithContext(ctx).Model(&models.OrderModel{}), filter).
		Where("origin = ?", trade.OriginLocal).
		Preload("Items")
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	orders := make([]*trade.Order, len(rows))
	for i := range rows {
		orders[i] = rows[i].ToDomain()
	}
	return orders, nil
}

// Count returns the number of stored orders
func (r *GormOrderRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.OrderModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GormOrderRepository) findOne(ctx context.Context, key string, query string, args ...any) (*trade.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).Preload("Items").Where(query, args...).First(&model).Error; err != nil {
		return nil, translateError(err, "order", key)
	}
	return model.ToDomain(), nil
}

// syncCandidateQuery selects stale pending rows and error rows due for a
// retry, oldest first
func syncCandidateQuery(query *gorm.DB, filter trade.SyncCandidateFilter) *gorm.DB {
	retry := query.Session(&gorm.Session{NewDB: true}).
		Where("sync_status = ?", trade.SyncStatusError).
		Where("last_sync_attempt_at IS NULL OR last_sync_attempt_at < ?", filter.RetryBefore)
	if filter.MaxAttempts > 0 {
		retry = retry.Where("sync_attempts < ?", filter.MaxAttempts)
	}
	pending := query.Session(&gorm.Session{NewDB: true}).
		Where("sync_status = ? AND created_at < ?", trade.SyncStatusPending, filter.PendingBefore)

	query = query.Where(pending.Or(retry)).Order("created_at ASC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	return query
}

var _ trade.OrderRepository = (*GormOrderRepository)(nil)
