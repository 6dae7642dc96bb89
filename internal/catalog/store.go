// Package catalog provides read-only lookups of sellable items and their
// recipe edges. The catalog itself is administered elsewhere; the pipeline
// only reads prices and ingredient requirements from it.
package catalog

import (
	"context"

	"pos-system/internal/models"
)

// Store looks up menu items, toppings and add-on options by id
type Store interface {
	MenuItem(ctx context.Context, id int64) (*models.MenuItem, error)
	Topping(ctx context.Context, id int64) (*models.Topping, error)
	AddonOption(ctx context.Context, id int64) (*models.AddonOption, error)
}
