package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormStockMetricsProvider implements StockMetricsProvider using GORM.
// It queries the products, orders and sales tables directly.
type GormStockMetricsProvider struct {
	db *gorm.DB
}

// NewGormStockMetricsProvider creates a new GormStockMetricsProvider.
func NewGormStockMetricsProvider(db *gorm.DB) *GormStockMetricsProvider {
	return &GormStockMetricsProvider{db: db}
}

// GetLowStockCount returns the number of active products below their minimum.
func (p *GormStockMetricsProvider) GetLowStockCount(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("products").
		Where("active = ? AND stock_min > 0 AND stock_current < stock_min", true).
		Count(&count).Error
	return count, err
}

// GetSyncBacklog returns local orders and sales not yet synced.
func (p *GormStockMetricsProvider) GetSyncBacklog(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, 2)

	var orders int64
	if err := p.db.WithContext(ctx).
		Table("orders").
		Where("origin = ? AND sync_status <> ?", "local", "synced").
		Count(&orders).Error; err != nil {
		return nil, err
	}
	out["order"] = orders

	var sales int64
	if err := p.db.WithContext(ctx).
		Table("sales").
		Where("sync_status <> ?", "synced").
		Count(&sales).Error; err != nil {
		return nil, err
	}
	out["sale"] = sales

	return out, nil
}
