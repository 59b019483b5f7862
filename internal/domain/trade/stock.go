package trade

import (
	"context"
	"fmt"

	"github.com/erp/wooerp/internal/domain/catalog"
	"github.com/google/uuid"
)

// StockLine is a quantity of one product taken from or returned to stock
type StockLine struct {
	ProductID uuid.UUID
	SKU       string
	Quantity  int
}

// Shortfall is a line whose decrement was clamped at zero
type Shortfall struct {
	SKU       string
	Requested int
	Missing   int
}

// Warning describes the shortfall for the caller
func (s Shortfall) Warning() string {
	return fmt.Sprintf("stock for %s clamped to 0 (requested %d, short by %d)", s.SKU, s.Requested, s.Missing)
}

// StockLines returns the stock movement of the order items
func (o *Order) StockLines() []StockLine {
	lines := make([]StockLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, StockLine{ProductID: it.ProductID, SKU: it.SKU, Quantity: it.Quantity})
	}
	return lines
}

// StockLines returns the stock movement of the sale items
func (s *Sale) StockLines() []StockLine {
	lines := make([]StockLine, 0, len(s.Items))
	for _, it := range s.Items {
		lines = append(lines, StockLine{ProductID: it.ProductID, SKU: it.SKU, Quantity: it.Quantity})
	}
	return lines
}

// Reservation is what ReserveStock took from stock. Taken is aligned with
// the lines passed in and is below the requested quantity for clamped lines.
type Reservation struct {
	Taken      []int
	Shortfalls []Shortfall
}

// ReserveStock decrements stock for every line with the guarded update, so
// stock never goes below zero. Clamped lines are reported, not rejected. Run
// it inside the unit of work that writes the owning order or sale.
func ReserveStock(ctx context.Context, products catalog.ProductRepository, lines []StockLine) (Reservation, error) {
	res := Reservation{Taken: make([]int, len(lines))}
	for i, line := range lines {
		change, err := products.DecrementStock(ctx, line.ProductID, line.Quantity)
		if err != nil {
			return Reservation{}, fmt.Errorf("reserve stock for %s: %w", line.SKU, err)
		}
		res.Taken[i] = change.Taken()
		if change.Clamped() {
			res.Shortfalls = append(res.Shortfalls, Shortfall{
				SKU:       line.SKU,
				Requested: line.Quantity,
				Missing:   change.Shortfall(),
			})
		}
	}
	return res, nil
}

// RecordReservation stores on each item the quantity taken for it. The
// reservation must come from ReserveStock over o.StockLines().
func (o *Order) RecordReservation(res Reservation) {
	for i := range o.Items {
		if i < len(res.Taken) {
			o.Items[i].Reserved = res.Taken[i]
		}
	}
}

// ReservedStockLines returns the stock the order holds, which is what
// cancelling or deleting it gives back
func (o *Order) ReservedStockLines() []StockLine {
	var lines []StockLine
	for _, it := range o.Items {
		if it.Reserved > 0 {
			lines = append(lines, StockLine{ProductID: it.ProductID, SKU: it.SKU, Quantity: it.Reserved})
		}
	}
	return lines
}

// ReleaseStock returns the quantity of every line to stock
func ReleaseStock(ctx context.Context, products catalog.ProductRepository, lines []StockLine) error {
	for _, line := range lines {
		if err := products.IncrementStock(ctx, line.ProductID, line.Quantity); err != nil {
			return fmt.Errorf("release stock for %s: %w", line.SKU, err)
		}
	}
	return nil
}
