package pricing

import (
	"github.com/shopspring/decimal"

	"pos-system/internal/models"
)

// TaxResult is the accumulated tax and service outcome plus the per-charge
// breakdown for the receipt.
type TaxResult struct {
	TotalTax     decimal.Decimal
	TotalService decimal.Decimal
	Breakdown    []models.ChargeLine
}

// ApplyCharges evaluates every charge against its applicable base. A
// charge scoped to specific menu items uses the sum of those lines'
// subtotals as its base; otherwise the full post-discount subtotal.
// Taxes always apply their percentage; service charges use the fixed fee
// when one is set, falling back to the percentage.
func ApplyCharges(charges []models.TaxOrServiceCharge, lines []models.OrderLine, afterDiscount decimal.Decimal, customerType string) TaxResult {
	result := TaxResult{
		TotalTax:     decimal.Zero,
		TotalService: decimal.Zero,
	}

	for _, charge := range charges {
		if !charge.AppliesTo(customerType) {
			continue
		}

		base := afterDiscount
		if len(charge.MenuItemIDs) > 0 {
			base = scopedBase(charge.MenuItemIDs, lines)
			if base.IsZero() {
				continue
			}
		}

		var amount decimal.Decimal
		switch charge.Kind {
		case models.ChargeTax:
			amount = base.Mul(charge.Percentage).Div(decimal.NewFromInt(100))
			result.TotalTax = result.TotalTax.Add(amount)
		case models.ChargeService:
			if charge.FixedFee.IsPositive() {
				amount = charge.FixedFee
			} else {
				amount = base.Mul(charge.Percentage).Div(decimal.NewFromInt(100))
			}
			result.TotalService = result.TotalService.Add(amount)
		default:
			continue
		}

		result.Breakdown = append(result.Breakdown, models.ChargeLine{
			Name:   charge.Name,
			Kind:   string(charge.Kind),
			Amount: amount,
		})
	}

	return result
}

// scopedBase sums the subtotals of only the lines whose menu item the
// charge lists.
func scopedBase(menuItemIDs []int64, lines []models.OrderLine) decimal.Decimal {
	scoped := make(map[int64]bool, len(menuItemIDs))
	for _, id := range menuItemIDs {
		scoped[id] = true
	}

	base := decimal.Zero
	for _, line := range lines {
		if scoped[line.MenuItemID] {
			base = base.Add(line.Subtotal)
		}
	}
	return base
}
