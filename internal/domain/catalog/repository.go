package catalog

import (
	"context"

	"github.com/google/uuid"
)

// ProductRepository defines the interface for product persistence
type ProductRepository interface {
	// FindByID finds a product by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindByCode finds a product by its code (SKU)
	FindByCode(ctx context.Context, code string) (*Product, error)

	// FindByCodes finds products by code, keyed by code. Missing codes are absent from the map.
	FindByCodes(ctx context.Context, codes []string) (map[string]*Product, error)

	// FindByBarcode finds a product by its normalized barcode
	FindByBarcode(ctx context.Context, barcode string) (*Product, error)

	// FindByExternalID finds a product by its storefront id
	FindByExternalID(ctx context.Context, externalID int64) (*Product, error)

	// ExistsByCode checks whether a product with the code exists
	ExistsByCode(ctx context.Context, code string) (bool, error)

	// Save creates or updates a product
	Save(ctx context.Context, product *Product) error

	// SetExternalID links a product to its storefront counterpart.
	// It writes the column directly and never triggers outbound sync.
	SetExternalID(ctx context.Context, id uuid.UUID, externalID int64) error

	// DecrementStock subtracts quantity from the current stock, never below zero
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (StockChange, error)

	// IncrementStock adds quantity back to the current stock
	IncrementStock(ctx context.Context, id uuid.UUID, quantity int) error
}

// CategoryRepository defines the interface for category persistence
type CategoryRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Category, error)
	FindByName(ctx context.Context, name string) (*Category, error)
	Save(ctx context.Context, category *Category) error
}
