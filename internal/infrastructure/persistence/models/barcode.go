package models

import (
	"time"

	"github.com/erp/wooerp/internal/domain/barcode"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BarcodeCacheModel is the persistence model for a remembered provider answer
type BarcodeCacheModel struct {
	ID                uuid.UUID        `gorm:"type:uuid;primary_key"`
	Barcode           string           `gorm:"type:varchar(14);not null;uniqueIndex:idx_barcode_cache_barcode"`
	Title             string           `gorm:"type:varchar(300)"`
	Description       string           `gorm:"type:text"`
	Brand             string           `gorm:"type:varchar(200)"`
	Images            []string         `gorm:"type:jsonb;serializer:json"`
	Source            string           `gorm:"type:varchar(40);not null"`
	SuggestedPrice    *decimal.Decimal `gorm:"type:decimal(18,4)"`
	SuggestedCategory string           `gorm:"type:varchar(200)"`
	RawPayload        []byte           `gorm:"type:jsonb"`
	Ignored           bool             `gorm:"not null;default:false"`
	IgnoredBy         string           `gorm:"type:varchar(100)"`
	IgnoredAt         *time.Time
	UsageCount        int `gorm:"not null;default:0"`
	LastUsedAt        *time.Time
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BarcodeCacheModel) TableName() string {
	return "barcode_cache"
}

// ToDomain converts the persistence model to a domain cache entry.
func (m *BarcodeCacheModel) ToDomain() *barcode.CacheEntry {
	return &barcode.CacheEntry{
		ID:                m.ID,
		Barcode:           m.Barcode,
		Title:             m.Title,
		Description:       m.Description,
		Brand:             m.Brand,
		Images:            m.Images,
		Source:            m.Source,
		SuggestedPrice:    m.SuggestedPrice,
		SuggestedCategory: m.SuggestedCategory,
		RawPayload:        m.RawPayload,
		Ignored:           m.Ignored,
		IgnoredBy:         m.IgnoredBy,
		IgnoredAt:         m.IgnoredAt,
		UsageCount:        m.UsageCount,
		LastUsedAt:        m.LastUsedAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// BarcodeCacheModelFromDomain creates a persistence model from a cache entry.
// The ignored flag and usage counter are owned by the repository and are
// not copied.
func BarcodeCacheModelFromDomain(e *barcode.CacheEntry) *BarcodeCacheModel {
	return &BarcodeCacheModel{
		ID:                e.ID,
		Barcode:           e.Barcode,
		Title:             e.Title,
		Description:       e.Description,
		Brand:             e.Brand,
		Images:            e.Images,
		Source:            e.Source,
		SuggestedPrice:    e.SuggestedPrice,
		SuggestedCategory: e.SuggestedCategory,
		RawPayload:        nullableJSON(e.RawPayload),
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}
