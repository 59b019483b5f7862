package persistence

import (
	"context"
	"time"

	"github.com/erp/wooerp/internal/domain/barcode"
	"github.com/erp/wooerp/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ignoredStubSource marks a cache row created only to remember a dismissal
const ignoredStubSource = "manual"

// barcodeCacheUpsertColumns are refreshed when a provider answers again.
// The ignored flag and usage counters are left alone.
var barcodeCacheUpsertColumns = []string{
	"title",
	"description",
	"brand",
	"images",
	"source",
	"suggested_price",
	"suggested_category",
	"raw_payload",
	"updated_at",
}

// GormBarcodeCacheRepository implements barcode.CacheRepository using GORM
type GormBarcodeCacheRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormBarcodeCacheRepository creates a new GormBarcodeCacheRepository
func NewGormBarcodeCacheRepository(db *gorm.DB, logger *zap.Logger) *GormBarcodeCacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormBarcodeCacheRepository{db: db, logger: logger}
}

// Find returns the entry regardless of its ignored flag
func (r *GormBarcodeCacheRepository) Find(ctx context.Context, code string) (*barcode.CacheEntry, error) {
	var model models.BarcodeCacheModel
	if err := r.db.WithContext(ctx).Where("barcode = ?", code).First(&model).Error; err != nil {
		return nil, translateError(err, "barcode cache entry", code)
	}
	return model.ToDomain(), nil
}

// Upsert inserts or refreshes the entry keyed by barcode. When the write
// fails it is retried once without the raw payload.
func (r *GormBarcodeCacheRepository) Upsert(ctx context.Context, entry *barcode.CacheEntry) error {
	model := models.BarcodeCacheModelFromDomain(entry)
	if model.ID == uuid.Nil {
		model.ID = uuid.New()
	}
	now := time.Now()
	if model.CreatedAt.IsZero() {
		model.CreatedAt = now
	}
	model.UpdatedAt = now

	err := r.upsert(ctx, model)
	if err == nil || model.RawPayload == nil {
		return err
	}

	r.logger.Warn("Barcode cache write failed, retrying without raw payload",
		zap.String("barcode", entry.Barcode),
		zap.Int("payload_bytes", len(model.RawPayload)),
		zap.Error(err),
	)
	model.RawPayload = nil
	return r.upsert(ctx, model)
}

func (r *GormBarcodeCacheRepository) upsert(ctx context.Context, model *models.BarcodeCacheModel) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "barcode"}},
		DoUpdates: clause.AssignmentColumns(barcodeCacheUpsertColumns),
	}).Create(model).Error
}

// MarkIgnored flags the barcode as dismissed. The first actor and timestamp
// are kept; an unknown barcode gets a stub row so the dismissal survives.
func (r *GormBarcodeCacheRepository) MarkIgnored(ctx context.Context, code, actor string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.BarcodeCacheModel{}).
		Where("barcode = ? AND ignored = ?", code, false).
		Updates(map[string]any{
			"ignored":    true,
			"ignored_by": actor,
			"ignored_at": now,
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	stub := &models.BarcodeCacheModel{
		ID:        uuid.New(),
		Barcode:   code,
		Source:    ignoredStubSource,
		Ignored:   true,
		IgnoredBy: actor,
		IgnoredAt: &now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "barcode"}},
		DoNothing: true,
	}).Create(stub).Error
}

// IsIgnored reports whether the barcode was dismissed
func (r *GormBarcodeCacheRepository) IsIgnored(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BarcodeCacheModel{}).
		Where("barcode = ? AND ignored = ?", code, true).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// TouchUsage increments the hit counter and sets the last-used time.
// Touching an unknown barcode is a no-op.
func (r *GormBarcodeCacheRepository) TouchUsage(ctx context.Context, code string) error {
	return r.db.WithContext(ctx).Model(&models.BarcodeCacheModel{}).
		Where("barcode = ?", code).
		Updates(map[string]any{
			"usage_count":  gorm.Expr("usage_count + 1"),
			"last_used_at": time.Now(),
		}).Error
}

var _ barcode.CacheRepository = (*GormBarcodeCacheRepository)(nil)
