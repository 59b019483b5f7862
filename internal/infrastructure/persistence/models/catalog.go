package models

import (
	"github.com/erp/wooerp/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductModel is the persistence model for the Product domain entity.
// external_id is nullable-unique: NULLs never collide.
type ProductModel struct {
	BaseModel
	Code            string                 `gorm:"type:varchar(64);not null;uniqueIndex:idx_products_code"`
	Name            string                 `gorm:"type:varchar(200);not null"`
	Description     string                 `gorm:"type:text"`
	Price           decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	StockCurrent    int                    `gorm:"not null;default:0"`
	StockMin        int                    `gorm:"not null;default:0"`
	StockMax        int                    `gorm:"not null;default:0"`
	Active          bool                   `gorm:"not null;default:true"`
	CategoryID      *uuid.UUID             `gorm:"type:uuid;index"`
	Barcode         *string                `gorm:"type:varchar(14);index:idx_products_barcode"`
	Images          []catalog.ProductImage `gorm:"type:jsonb;serializer:json"`
	ExternalID      *int64                 `gorm:"uniqueIndex:idx_products_external_id"`
	ExternalPayload []byte                 `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product entity.
func (m *ProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{
		BaseEntity:  m.BaseModel.ToDomain(),
		Code:        m.Code,
		Name:        m.Name,
		Description: m.Description,
		Price:       m.Price,
		Stock: catalog.Stock{
			Current: m.StockCurrent,
			Min:     m.StockMin,
			Max:     m.StockMax,
		},
		Active:          m.Active,
		CategoryID:      m.CategoryID,
		Barcode:         m.Barcode,
		Images:          m.Images,
		ExternalID:      m.ExternalID,
		ExternalPayload: m.ExternalPayload,
	}
}

// FromDomain populates the persistence model from a domain Product entity.
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.Code = p.Code
	m.Name = p.Name
	m.Description = p.Description
	m.Price = p.Price
	m.StockCurrent = p.Stock.Current
	m.StockMin = p.Stock.Min
	m.StockMax = p.Stock.Max
	m.Active = p.Active
	m.CategoryID = p.CategoryID
	m.Barcode = p.Barcode
	m.Images = p.Images
	m.ExternalID = p.ExternalID
	m.ExternalPayload = nullableJSON(p.ExternalPayload)
}

// ProductModelFromDomain creates a new persistence model from a domain Product entity.
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}

// CategoryModel is the persistence model for the Category domain entity.
type CategoryModel struct {
	BaseModel
	Name       string `gorm:"type:varchar(100);not null;uniqueIndex:idx_categories_name"`
	ExternalID *int64 `gorm:"uniqueIndex:idx_categories_external_id"`
}

// TableName returns the table name for GORM
func (CategoryModel) TableName() string {
	return "categories"
}

// ToDomain converts the persistence model to a domain Category entity.
func (m *CategoryModel) ToDomain() *catalog.Category {
	return &catalog.Category{
		BaseEntity: m.BaseModel.ToDomain(),
		Name:       m.Name,
		ExternalID: m.ExternalID,
	}
}

// FromDomain populates the persistence model from a domain Category entity.
func (m *CategoryModel) FromDomain(c *catalog.Category) {
	m.FromDomainBaseEntity(c.BaseEntity)
	m.Name = c.Name
	m.ExternalID = c.ExternalID
}

// CategoryModelFromDomain creates a new persistence model from a domain Category entity.
func CategoryModelFromDomain(c *catalog.Category) *CategoryModel {
	m := &CategoryModel{}
	m.FromDomain(c)
	return m
}

// nullableJSON stores an empty payload as NULL; jsonb rejects ""
func nullableJSON(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
