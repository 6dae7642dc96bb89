package stock

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"pos-system/internal/database"
	"pos-system/internal/models"
)

// Postgres is the database-backed ledger. Reservations run inside a
// single transaction with a guarded decrement per ingredient, so two
// concurrent orders competing for the same stock serialize on the row
// and the loser fails cleanly.
type Postgres struct {
	db *database.DB
}

// NewPostgres creates a ledger on top of the shared pool
func NewPostgres(db *database.DB) *Postgres {
	return &Postgres{db: db}
}

// CheckAll reads current quantities in one statement and compares them
// against the requirements. A single SELECT gives a consistent snapshot.
func (p *Postgres) CheckAll(ctx context.Context, reqs Requirements) error {
	if len(reqs) == 0 {
		return nil
	}

	ids := sortedIDs(reqs)
	rows, err := p.db.Query(ctx, database.GetIngredientsByIDsSQL, ids)
	if err != nil {
		return fmt.Errorf("failed to query ingredients: %w", err)
	}
	defer rows.Close()

	available := make(map[int64]decimal.Decimal, len(reqs))
	for rows.Next() {
		var ing models.Ingredient
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.Unit, &ing.Quantity,
			&ing.MinStock, &ing.MaxStock, &ing.ExpiredAt, &ing.Status); err != nil {
			return fmt.Errorf("failed to scan ingredient: %w", err)
		}
		available[ing.ID] = ing.Quantity
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read ingredients: %w", err)
	}

	for _, id := range ids {
		have, ok := available[id]
		if !ok {
			return &models.ReferenceNotFoundError{Entity: "ingredient", ID: id}
		}
		if have.LessThan(reqs[id]) {
			return &models.InsufficientStockError{
				IngredientID: id,
				Needed:       reqs[id],
				Available:    have,
			}
		}
	}
	return nil
}

// ReserveAll decrements every ingredient in the requirements or none.
// Each decrement is guarded by quantity >= needed; a miss rolls back the
// whole transaction and reports the shortage.
func (p *Postgres) ReserveAll(ctx context.Context, reqs Requirements) error {
	return p.applyAll(ctx, reqs, true)
}

// RestoreAll is the compensating increment used on cancellation of a
// settled order. Same all-or-nothing contract as ReserveAll.
func (p *Postgres) RestoreAll(ctx context.Context, reqs Requirements) error {
	return p.applyAll(ctx, reqs, false)
}

func (p *Postgres) applyAll(ctx context.Context, reqs Requirements, reserve bool) error {
	if len(reqs) == 0 {
		return nil
	}

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Stable id order keeps concurrent reservations from deadlocking.
	ids := sortedIDs(reqs)
	for _, id := range ids {
		qty := reqs[id]

		var remaining decimal.Decimal
		if reserve {
			err = tx.QueryRow(ctx, database.ReserveIngredientSQL, qty, id).Scan(&remaining)
		} else {
			err = tx.QueryRow(ctx, database.RestoreIngredientSQL, qty, id).Scan(&remaining)
		}

		if err == nil {
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to update ingredient %d: %w", id, err)
		}

		// The guard rejected the decrement: either the row is missing or
		// the quantity cannot cover the requirement.
		var have decimal.Decimal
		checkErr := tx.QueryRow(ctx, database.GetIngredientQuantitySQL, id).Scan(&have)
		if errors.Is(checkErr, pgx.ErrNoRows) {
			return &models.ReferenceNotFoundError{Entity: "ingredient", ID: id}
		}
		if checkErr != nil {
			return fmt.Errorf("failed to read ingredient %d: %w", id, checkErr)
		}
		return &models.InsufficientStockError{
			IngredientID: id,
			Needed:       qty,
			Available:    have,
		}
	}

	if _, err := tx.Exec(ctx, database.RefreshIngredientStatusSQL, ids); err != nil {
		return fmt.Errorf("failed to refresh ingredient status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit stock update: %w", err)
	}
	return nil
}

func sortedIDs(reqs Requirements) []int64 {
	ids := make([]int64, 0, len(reqs))
	for id := range reqs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
