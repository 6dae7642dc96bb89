// Package stock is the authoritative ledger of per-ingredient available
// quantity. All mutation goes through ReserveAll/RestoreAll; pipeline
// callers never read-modify-write ingredient rows directly.
package stock

import (
	"context"

	"github.com/shopspring/decimal"
)

// Requirements is the order-wide accumulator mapping ingredient id to the
// total quantity the whole order needs. Checks and deductions always run
// against this aggregate, never line by line.
type Requirements map[int64]decimal.Decimal

// Add accumulates a quantity for an ingredient
func (r Requirements) Add(ingredientID int64, qty decimal.Decimal) {
	r[ingredientID] = r[ingredientID].Add(qty)
}

// Merge folds another accumulator into this one
func (r Requirements) Merge(other Requirements) {
	for id, qty := range other {
		r.Add(id, qty)
	}
}

// Ledger exposes the stock operations of the fulfillment pipeline.
//
// CheckAll compares the requirements against a single consistent snapshot
// and returns an InsufficientStockError naming the first shortage.
// ReserveAll decrements every ingredient or none; RestoreAll is its
// compensating increment. Both are all-or-nothing across the whole order.
type Ledger interface {
	CheckAll(ctx context.Context, reqs Requirements) error
	ReserveAll(ctx context.Context, reqs Requirements) error
	RestoreAll(ctx context.Context, reqs Requirements) error
}
