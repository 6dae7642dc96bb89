// Package pricing evaluates the discount stack and the tax/service
// charges of an order.
package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"pos-system/internal/logger"
	"pos-system/internal/models"
)

// PromotionStore reads active promotions and redeems voucher quota
type PromotionStore interface {
	ActiveAutomaticPromotions(ctx context.Context, outletID int64, at time.Time) ([]models.AutomaticPromotion, error)
	// ActiveManualPromotion returns nil when no promotion matches.
	ActiveManualPromotion(ctx context.Context, outletID int64, customerType string) (*models.ManualPromotion, error)
	VoucherByCode(ctx context.Context, code string) (*models.Voucher, error)
	// RedeemVoucher atomically decrements the quota and deactivates the
	// voucher when the quota reaches zero.
	RedeemVoucher(ctx context.Context, voucherID int64) error
	// RestoreVoucher gives one quota unit back, reactivating the
	// voucher. Compensates a redemption whose checkout never completed.
	RestoreVoucher(ctx context.Context, voucherID int64) error
	ActiveCharges(ctx context.Context, outletID int64, customerType string) ([]models.TaxOrServiceCharge, error)
}

// AutoEvaluator turns active automatic promotions into a discount amount.
// Concrete condition types (buy-X-get-Y, bundles) plug in here without
// touching the pipeline.
type AutoEvaluator interface {
	Evaluate(promos []models.AutomaticPromotion, lines []models.OrderLine, subtotal decimal.Decimal) (decimal.Decimal, []int64)
}

// SubtotalEvaluator is the default evaluator: every promotion applies its
// percentage or fixed value against the order subtotal.
type SubtotalEvaluator struct{}

func (SubtotalEvaluator) Evaluate(promos []models.AutomaticPromotion, lines []models.OrderLine, subtotal decimal.Decimal) (decimal.Decimal, []int64) {
	total := decimal.Zero
	var applied []int64
	for _, promo := range promos {
		amount := discountAmount(promo.Type, promo.Value, subtotal)
		if amount.IsPositive() {
			total = total.Add(amount)
			applied = append(applied, promo.ID)
		}
	}
	return total, applied
}

// DiscountInput carries the order context the stack evaluates against
type DiscountInput struct {
	OutletID     int64
	CustomerType string
	VoucherCode  string
	Lines        []models.OrderLine
	Subtotal     decimal.Decimal
	At           time.Time
}

// DiscountResult is the combined outcome of the three discount sources.
// The components are computed independently against the same pre-discount
// subtotal; Total is their sum clamped to the subtotal.
type DiscountResult struct {
	Auto         decimal.Decimal
	Manual       decimal.Decimal
	Voucher      decimal.Decimal
	Total        decimal.Decimal
	PromotionIDs []int64
	VoucherID    int64
}

// DiscountEngine applies automatic promotions, at most one manual
// promotion and at most one voucher, in that fixed precedence.
type DiscountEngine struct {
	store  PromotionStore
	auto   AutoEvaluator
	logger *logger.Logger
}

// NewDiscountEngine creates a discount engine with the given evaluator
func NewDiscountEngine(store PromotionStore, auto AutoEvaluator, log *logger.Logger) *DiscountEngine {
	return &DiscountEngine{
		store:  store,
		auto:   auto,
		logger: log,
	}
}

// Apply evaluates the full discount stack. A successful voucher match
// consumes one unit of quota; a caller that abandons the checkout
// afterwards returns the unit through RestoreVoucher.
func (e *DiscountEngine) Apply(ctx context.Context, in DiscountInput) (*DiscountResult, error) {
	result := &DiscountResult{
		Auto:    decimal.Zero,
		Manual:  decimal.Zero,
		Voucher: decimal.Zero,
	}

	promos, err := e.store.ActiveAutomaticPromotions(ctx, in.OutletID, in.At)
	if err != nil {
		return nil, fmt.Errorf("failed to load automatic promotions: %w", err)
	}
	result.Auto, result.PromotionIDs = e.auto.Evaluate(promos, in.Lines, in.Subtotal)

	manual, err := e.store.ActiveManualPromotion(ctx, in.OutletID, in.CustomerType)
	if err != nil {
		return nil, fmt.Errorf("failed to load manual promotion: %w", err)
	}
	if manual != nil && manual.AppliesTo(in.CustomerType) {
		result.Manual = discountAmount(manual.Type, manual.Value, in.Subtotal)
	}

	if in.VoucherCode != "" {
		voucherDiscount, voucherID, err := e.applyVoucher(ctx, in)
		if err != nil {
			return nil, err
		}
		result.Voucher = voucherDiscount
		result.VoucherID = voucherID
	}

	result.Total = result.Auto.Add(result.Manual).Add(result.Voucher)
	if result.Total.GreaterThan(in.Subtotal) {
		// The three sources are independent and can overshoot the
		// subtotal; clamp so the grand total never goes negative.
		e.logger.Debug("discount_clamped",
			"Discount stack exceeded subtotal, clamping",
			"", map[string]interface{}{
				"subtotal":       in.Subtotal.String(),
				"total_discount": result.Total.String(),
			})
		result.Total = in.Subtotal
	}

	return result, nil
}

func (e *DiscountEngine) applyVoucher(ctx context.Context, in DiscountInput) (decimal.Decimal, int64, error) {
	voucher, err := e.store.VoucherByCode(ctx, in.VoucherCode)
	if err != nil {
		return decimal.Zero, 0, err
	}

	if !voucher.AppliesTo(in.OutletID, in.At) {
		return decimal.Zero, 0, &models.ValidationError{
			Field:   "voucher_code",
			Message: fmt.Sprintf("voucher %q is not redeemable for this order", in.VoucherCode),
		}
	}

	if err := e.store.RedeemVoucher(ctx, voucher.ID); err != nil {
		return decimal.Zero, 0, fmt.Errorf("failed to redeem voucher %q: %w", in.VoucherCode, err)
	}

	return discountAmount(voucher.Type, voucher.Value, in.Subtotal), voucher.ID, nil
}

// discountAmount computes a percentage-of-subtotal or fixed discount.
// Fixed discounts are capped at the subtotal.
func discountAmount(kind models.DiscountType, value, subtotal decimal.Decimal) decimal.Decimal {
	switch kind {
	case models.DiscountPercentage:
		return subtotal.Mul(value).Div(decimal.NewFromInt(100))
	case models.DiscountFixed:
		if value.GreaterThan(subtotal) {
			return subtotal
		}
		return value
	default:
		return decimal.Zero
	}
}
