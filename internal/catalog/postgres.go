package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pos-system/internal/database"
	"pos-system/internal/models"
)

// Postgres is the database-backed catalog store
type Postgres struct {
	db *database.DB
}

// NewPostgres creates a catalog store on top of the shared pool
func NewPostgres(db *database.DB) *Postgres {
	return &Postgres{db: db}
}

// MenuItem looks up a menu item and its recipe edges
func (p *Postgres) MenuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	var item models.MenuItem
	err := p.db.QueryRow(ctx, database.GetMenuItemSQL, id).Scan(&item.ID, &item.Name, &item.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &models.ReferenceNotFoundError{Entity: "menu item", ID: id}
		}
		return nil, fmt.Errorf("failed to query menu item %d: %w", id, err)
	}

	item.Recipe, err = p.recipeEdges(ctx, database.GetMenuItemRecipeSQL, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipe for menu item %d: %w", id, err)
	}
	return &item, nil
}

// Topping looks up a topping and its recipe edges
func (p *Postgres) Topping(ctx context.Context, id int64) (*models.Topping, error) {
	var topping models.Topping
	err := p.db.QueryRow(ctx, database.GetToppingSQL, id).Scan(&topping.ID, &topping.Name, &topping.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &models.ReferenceNotFoundError{Entity: "topping", ID: id}
		}
		return nil, fmt.Errorf("failed to query topping %d: %w", id, err)
	}

	topping.Recipe, err = p.recipeEdges(ctx, database.GetToppingRecipeSQL, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipe for topping %d: %w", id, err)
	}
	return &topping, nil
}

// AddonOption looks up an add-on option and its recipe edges
func (p *Postgres) AddonOption(ctx context.Context, id int64) (*models.AddonOption, error) {
	var option models.AddonOption
	err := p.db.QueryRow(ctx, database.GetAddonOptionSQL, id).Scan(&option.ID, &option.AddonID, &option.Name, &option.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &models.ReferenceNotFoundError{Entity: "addon option", ID: id}
		}
		return nil, fmt.Errorf("failed to query addon option %d: %w", id, err)
	}

	option.Recipe, err = p.recipeEdges(ctx, database.GetAddonOptionRecipeSQL, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipe for addon option %d: %w", id, err)
	}
	return &option, nil
}

func (p *Postgres) recipeEdges(ctx context.Context, sql string, id int64) ([]models.RecipeEdge, error) {
	rows, err := p.db.Query(ctx, sql, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []models.RecipeEdge
	for rows.Next() {
		var edge models.RecipeEdge
		if err := rows.Scan(&edge.IngredientID, &edge.Quantity); err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}
