package trade

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/wooerp/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stockRepo keeps stock in a map. Only the stock methods are implemented.
type stockRepo struct {
	catalog.ProductRepository
	stock   map[uuid.UUID]int
	failOn  uuid.UUID
	touched []uuid.UUID
}

func (r *stockRepo) DecrementStock(_ context.Context, id uuid.UUID, quantity int) (catalog.StockChange, error) {
	if id == r.failOn {
		return catalog.StockChange{}, errors.New("connection lost")
	}
	r.touched = append(r.touched, id)
	before := r.stock[id]
	after := max(before-quantity, 0)
	r.stock[id] = after
	return catalog.StockChange{ProductID: id, Requested: quantity, Before: before, After: after}, nil
}

func (r *stockRepo) IncrementStock(_ context.Context, id uuid.UUID, quantity int) error {
	if id == r.failOn {
		return errors.New("connection lost")
	}
	r.stock[id] += quantity
	return nil
}

func TestReserveStock(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	repo := &stockRepo{stock: map[uuid.UUID]int{a: 5, b: 1}}
	lines := []StockLine{{ProductID: a, SKU: "A", Quantity: 2}, {ProductID: b, SKU: "B", Quantity: 4}}

	res, err := ReserveStock(context.Background(), repo, lines)
	require.NoError(t, err)
	assert.Equal(t, 3, repo.stock[a])
	assert.Equal(t, 0, repo.stock[b])
	assert.Equal(t, []int{2, 1}, res.Taken)
	require.Len(t, res.Shortfalls, 1)
	assert.Equal(t, Shortfall{SKU: "B", Requested: 4, Missing: 3}, res.Shortfalls[0])
	assert.Equal(t, "stock for B clamped to 0 (requested 4, short by 3)", res.Shortfalls[0].Warning())
}

func TestReserveStock_StopsOnError(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	repo := &stockRepo{stock: map[uuid.UUID]int{a: 5, b: 5, c: 5}, failOn: b}
	lines := []StockLine{{ProductID: a, SKU: "A", Quantity: 1}, {ProductID: b, SKU: "B", Quantity: 1}, {ProductID: c, SKU: "C", Quantity: 1}}

	_, err := ReserveStock(context.Background(), repo, lines)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserve stock for B")
	assert.Equal(t, []uuid.UUID{a}, repo.touched)
}

func TestReleaseStock(t *testing.T) {
	a := uuid.New()
	repo := &stockRepo{stock: map[uuid.UUID]int{a: 0}}

	order := newTestOrder(t)
	order.Items = []OrderItem{{ProductID: a, SKU: "A", Quantity: 3, Reserved: 3}}

	require.NoError(t, ReleaseStock(context.Background(), repo, order.ReservedStockLines()))
	assert.Equal(t, 3, repo.stock[a])
}

func TestOrder_ClampedReservationReleasesOnlyWhatWasTaken(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	repo := &stockRepo{stock: map[uuid.UUID]int{a: 1, b: 0}}

	order := newTestOrder(t)
	order.Items = []OrderItem{
		{ProductID: a, SKU: "A", Quantity: 5},
		{ProductID: b, SKU: "B", Quantity: 2},
	}

	res, err := ReserveStock(context.Background(), repo, order.StockLines())
	require.NoError(t, err)
	order.RecordReservation(res)
	assert.Equal(t, 1, order.Items[0].Reserved)
	assert.Zero(t, order.Items[1].Reserved)

	lines := order.ReservedStockLines()
	assert.Equal(t, []StockLine{{ProductID: a, SKU: "A", Quantity: 1}}, lines)

	require.NoError(t, ReleaseStock(context.Background(), repo, lines))
	assert.Equal(t, 1, repo.stock[a])
	assert.Equal(t, 0, repo.stock[b])
}
