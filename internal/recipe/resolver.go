// Package recipe expands cart lines into priced order lines and the
// order-wide ingredient requirement accumulator.
package recipe

import (
	"context"

	"github.com/shopspring/decimal"

	"pos-system/internal/catalog"
	"pos-system/internal/models"
	"pos-system/internal/stock"
)

// Resolver prices cart lines against the catalog and accumulates their
// ingredient requirements.
type Resolver struct {
	catalog catalog.Store
}

// NewResolver creates a resolver over the given catalog store
func NewResolver(store catalog.Store) *Resolver {
	return &Resolver{catalog: store}
}

// Resolve expands every cart line into a priced OrderLine and sums the
// ingredient needs of the whole order into one accumulator. Any unknown
// reference fails the whole order; nothing partial is returned.
func (r *Resolver) Resolve(ctx context.Context, items []models.CartLine) ([]models.OrderLine, stock.Requirements, error) {
	lines := make([]models.OrderLine, 0, len(items))
	reqs := make(stock.Requirements)

	for _, item := range items {
		line, err := r.resolveLine(ctx, item, reqs)
		if err != nil {
			return nil, nil, err
		}
		lines = append(lines, *line)
	}

	return lines, reqs, nil
}

// resolveLine prices a single cart line. Unit price starts at the menu
// item's base price; each selected topping and add-on option adds its
// snapshot price. Recipe edges of the item and every extra are scaled by
// the line quantity and folded into the accumulator.
func (r *Resolver) resolveLine(ctx context.Context, item models.CartLine, reqs stock.Requirements) (*models.OrderLine, error) {
	menuItem, err := r.catalog.MenuItem(ctx, item.MenuItemID)
	if err != nil {
		return nil, err
	}

	qty := decimal.NewFromInt(int64(item.Quantity))
	unitPrice := menuItem.Price
	accumulateEdges(reqs, menuItem.Recipe, qty)

	line := &models.OrderLine{
		MenuItemID: menuItem.ID,
		Name:       menuItem.Name,
		Quantity:   item.Quantity,
		BasePrice:  menuItem.Price,
	}

	for _, toppingID := range item.ToppingIDs {
		topping, err := r.catalog.Topping(ctx, toppingID)
		if err != nil {
			return nil, err
		}
		unitPrice = unitPrice.Add(topping.Price)
		accumulateEdges(reqs, topping.Recipe, qty)
		line.Toppings = append(line.Toppings, models.LineExtra{
			ID:    topping.ID,
			Name:  topping.Name,
			Price: topping.Price,
		})
	}

	for _, optionID := range item.AddonOptionIDs {
		option, err := r.catalog.AddonOption(ctx, optionID)
		if err != nil {
			return nil, err
		}
		unitPrice = unitPrice.Add(option.Price)
		accumulateEdges(reqs, option.Recipe, qty)
		line.Addons = append(line.Addons, models.LineExtra{
			ID:    option.ID,
			Name:  option.Name,
			Price: option.Price,
		})
	}

	line.Subtotal = unitPrice.Mul(qty)
	return line, nil
}

// Subtotal sums the resolved line subtotals
func Subtotal(lines []models.OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal)
	}
	return total
}

func accumulateEdges(reqs stock.Requirements, edges []models.RecipeEdge, lineQty decimal.Decimal) {
	for _, edge := range edges {
		reqs.Add(edge.IngredientID, edge.Quantity.Mul(lineQty))
	}
}
