package stock

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"pos-system/internal/models"
)

// Memory is an in-memory ledger guarded by a single mutex, so check and
// decrement are one critical section. Used by tests and local runs.
type Memory struct {
	mu          sync.Mutex
	ingredients map[int64]*models.Ingredient
}

// NewMemory creates an empty in-memory ledger
func NewMemory() *Memory {
	return &Memory{
		ingredients: make(map[int64]*models.Ingredient),
	}
}

// Put stores or replaces an ingredient
func (m *Memory) Put(ing models.Ingredient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ing.Status = ing.DeriveStatus(time.Now().UTC())
	m.ingredients[ing.ID] = &ing
}

// Quantity returns the current quantity of an ingredient
func (m *Memory) Quantity(id int64) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ing, ok := m.ingredients[id]; ok {
		return ing.Quantity
	}
	return decimal.Zero
}

// CheckAll compares the requirements against the current quantities
func (m *Memory) CheckAll(ctx context.Context, reqs Requirements) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkLocked(reqs)
}

// ReserveAll decrements every ingredient or none
func (m *Memory) ReserveAll(ctx context.Context, reqs Requirements) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Re-check under the same lock so the decrement below cannot fail
	// halfway through.
	if err := m.checkLocked(reqs); err != nil {
		return err
	}

	now := time.Now().UTC()
	for id, qty := range reqs {
		ing := m.ingredients[id]
		ing.Quantity = ing.Quantity.Sub(qty)
		ing.Status = ing.DeriveStatus(now)
	}
	return nil
}

// RestoreAll is the compensating increment for ReserveAll
func (m *Memory) RestoreAll(ctx context.Context, reqs Requirements) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id := range reqs {
		if _, ok := m.ingredients[id]; !ok {
			return &models.ReferenceNotFoundError{Entity: "ingredient", ID: id}
		}
	}

	now := time.Now().UTC()
	for id, qty := range reqs {
		ing := m.ingredients[id]
		ing.Quantity = ing.Quantity.Add(qty)
		ing.Status = ing.DeriveStatus(now)
	}
	return nil
}

func (m *Memory) checkLocked(reqs Requirements) error {
	for _, id := range sortedIDs(reqs) {
		ing, ok := m.ingredients[id]
		if !ok {
			return &models.ReferenceNotFoundError{Entity: "ingredient", ID: id}
		}
		if ing.Quantity.LessThan(reqs[id]) {
			return &models.InsufficientStockError{
				IngredientID: id,
				Needed:       reqs[id],
				Available:    ing.Quantity,
			}
		}
	}
	return nil
}
