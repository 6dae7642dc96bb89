package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecipeEdge links a sellable item to one raw ingredient it consumes.
// Quantity is the amount required per single unit sold.
type RecipeEdge struct {
	IngredientID int64           `json:"ingredient_id" db:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity" db:"quantity"`
}

// MenuItem is a sellable catalog entry with its base price and recipe
type MenuItem struct {
	ID     int64           `json:"id" db:"id"`
	Name   string          `json:"name" db:"name"`
	Price  decimal.Decimal `json:"price" db:"price"`
	Recipe []RecipeEdge    `json:"recipe,omitempty"`
}

// Topping is an optional extra attached to a menu item
type Topping struct {
	ID     int64           `json:"id" db:"id"`
	Name   string          `json:"name" db:"name"`
	Price  decimal.Decimal `json:"price" db:"price"`
	Recipe []RecipeEdge    `json:"recipe,omitempty"`
}

// AddonOption is one selectable option inside an add-on group
type AddonOption struct {
	ID      int64           `json:"id" db:"id"`
	AddonID int64           `json:"addon_id" db:"addon_id"`
	Name    string          `json:"name" db:"name"`
	Price   decimal.Decimal `json:"price" db:"price"`
	Recipe  []RecipeEdge    `json:"recipe,omitempty"`
}

// IngredientStatus is derived from the current quantity and thresholds
type IngredientStatus string

const (
	IngredientAvailable   IngredientStatus = "available"
	IngredientLow         IngredientStatus = "low"
	IngredientOut         IngredientStatus = "out_of_stock"
	IngredientOverstocked IngredientStatus = "overstocked"
	IngredientExpired     IngredientStatus = "expired"
)

// Ingredient is a raw material tracked by the stock ledger.
// Quantity never goes negative; all mutation goes through the ledger.
type Ingredient struct {
	ID        int64            `json:"id" db:"id"`
	Name      string           `json:"name" db:"name"`
	Unit      string           `json:"unit" db:"unit"`
	Quantity  decimal.Decimal  `json:"quantity" db:"quantity"`
	MinStock  decimal.Decimal  `json:"min_stock" db:"min_stock"`
	MaxStock  decimal.Decimal  `json:"max_stock" db:"max_stock"`
	ExpiredAt *time.Time       `json:"expired_at,omitempty" db:"expired_at"`
	Status    IngredientStatus `json:"status" db:"status"`
}

// DeriveStatus recomputes the ingredient status from quantity, thresholds
// and expiry. Expiry wins over every quantity-based status.
func (i *Ingredient) DeriveStatus(now time.Time) IngredientStatus {
	if i.ExpiredAt != nil && !i.ExpiredAt.After(now) {
		return IngredientExpired
	}
	if i.Quantity.IsZero() {
		return IngredientOut
	}
	if i.Quantity.LessThanOrEqual(i.MinStock) {
		return IngredientLow
	}
	if i.MaxStock.IsPositive() && i.Quantity.GreaterThan(i.MaxStock) {
		return IngredientOverstocked
	}
	return IngredientAvailable
}
