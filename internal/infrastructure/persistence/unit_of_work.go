package persistence

import (
	"context"

	"github.com/erp/wooerp/internal/domain/trade"
	"gorm.io/gorm"
)

// GormUnitOfWork runs trade writes in one database transaction
type GormUnitOfWork struct {
	db *gorm.DB
}

// NewGormUnitOfWork creates a new GormUnitOfWork
func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

// Execute runs fn with repositories bound to a transaction. Any error
// returned by fn rolls the transaction back.
func (u *GormUnitOfWork) Execute(ctx context.Context, fn func(repos trade.TxRepositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(trade.TxRepositories{
			Orders:   NewGormOrderRepository(tx),
			Sales:    NewGormSaleRepository(tx),
			Products: NewGormProductRepository(tx),
		})
	})
}

var _ trade.UnitOfWork = (*GormUnitOfWork)(nil)
