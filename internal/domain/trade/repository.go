package trade

import (
	"context"
	"time"

	"github.com/erp/wooerp/internal/domain/catalog"
	"github.com/google/uuid"
)

// SyncCandidateFilter selects records whose outbound sync should be retried
type SyncCandidateFilter struct {
	// PendingBefore selects pending records created before this instant
	PendingBefore time.Time
	// RetryBefore selects error records whose last attempt is before this instant
	RetryBefore time.Time
	MaxAttempts int
	Limit       int
}

// OrderRepository defines the interface for order persistence
type OrderRepository interface {
	// FindByID loads an order with its items
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByExternalID loads the order mirroring a storefront order id
	FindByExternalID(ctx context.Context, externalOrderID int64) (*Order, error)

	// FindByOrderNumber loads an order by its number
	FindByOrderNumber(ctx context.Context, orderNumber string) (*Order, error)

	// Create inserts header and items. A duplicate external order id yields shared.ErrAlreadyExists.
	Create(ctx context.Context, order *Order) error

	// Update writes header fields (status, delivery, totals, payload)
	Update(ctx context.Context, order *Order) error

	// UpdateStatus changes the status only if the stored status still equals from
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to OrderStatus) error

	// Delete removes the order and its items
	Delete(ctx context.Context, id uuid.UUID) error

	// SaveSyncState writes the outbound bookkeeping columns only
	SaveSyncState(ctx context.Context, id uuid.UUID, state SyncState) error

	// FindSyncCandidates lists local orders whose outbound sync should be retried
	FindSyncCandidates(ctx context.Context, filter SyncCandidateFilter) ([]*Order, error)

	// Count returns the number of stored orders
	Count(ctx context.Context) (int64, error)
}

// SaleRepository defines the interface for sale persistence
type SaleRepository interface {
	// FindByID loads a sale with its items
	FindByID(ctx context.Context, id uuid.UUID) (*Sale, error)

	// Create inserts header and items
	Create(ctx context.Context, sale *Sale) error

	// SaveSyncState writes the outbound bookkeeping columns only
	SaveSyncState(ctx context.Context, id uuid.UUID, state SyncState) error

	// FindSyncCandidates lists sales whose outbound sync should be retried
	FindSyncCandidates(ctx context.Context, filter SyncCandidateFilter) ([]*Sale, error)
}

// TxRepositories are repositories bound to one database transaction
type TxRepositories struct {
	Orders   OrderRepository
	Sales    SaleRepository
	Products catalog.ProductRepository
}

// UnitOfWork runs fn atomically. Returning an error from fn rolls back every
// write made through the provided repositories.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(repos TxRepositories) error) error
}
