package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType selects how a promotion discounts the subtotal
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// CustomerTypeAll matches every customer type in a scope check
const CustomerTypeAll = "all"

// AutomaticPromotion is evaluated by the system against resolved order
// lines. Its condition payload is interpreted by a pluggable evaluator.
type AutomaticPromotion struct {
	ID        int64           `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	OutletID  int64           `json:"outlet_id" db:"outlet_id"`
	Condition string          `json:"condition" db:"condition"`
	Type      DiscountType    `json:"discount_type" db:"discount_type"`
	Value     decimal.Decimal `json:"value" db:"value"`
	StartsAt  time.Time       `json:"starts_at" db:"starts_at"`
	EndsAt    time.Time       `json:"ends_at" db:"ends_at"`
	Active    bool            `json:"active" db:"active"`
}

// InWindow reports whether the promotion is inside its active window
func (p *AutomaticPromotion) InWindow(at time.Time) bool {
	return !at.Before(p.StartsAt) && !at.After(p.EndsAt)
}

// ManualPromotion is a single staff-applied discount scoped by outlet and
// customer type.
type ManualPromotion struct {
	ID           int64           `json:"id" db:"id"`
	Name         string          `json:"name" db:"name"`
	OutletID     int64           `json:"outlet_id" db:"outlet_id"`
	CustomerType string          `json:"customer_type" db:"customer_type"`
	Type         DiscountType    `json:"discount_type" db:"discount_type"`
	Value        decimal.Decimal `json:"value" db:"value"`
	Active       bool            `json:"active" db:"active"`
}

// AppliesTo reports whether the promotion matches an order's customer type
func (p *ManualPromotion) AppliesTo(customerType string) bool {
	return p.Active && (p.CustomerType == CustomerTypeAll || p.CustomerType == customerType)
}

// Voucher is a code-redeemable, quota-limited discount. Quota never goes
// below zero and the voucher deactivates at exactly zero.
type Voucher struct {
	ID        int64           `json:"id" db:"id"`
	Code      string          `json:"code" db:"code"`
	Type      DiscountType    `json:"discount_type" db:"discount_type"`
	Value     decimal.Decimal `json:"value" db:"value"`
	Quota     int             `json:"quota" db:"quota"`
	StartsAt  time.Time       `json:"starts_at" db:"starts_at"`
	EndsAt    time.Time       `json:"ends_at" db:"ends_at"`
	OutletIDs []int64         `json:"outlet_ids,omitempty"`
	Active    bool            `json:"active" db:"active"`
}

// AppliesTo reports whether the voucher may be redeemed for the given
// outlet at the given time. An empty outlet scope matches any outlet.
func (v *Voucher) AppliesTo(outletID int64, at time.Time) bool {
	if !v.Active || v.Quota <= 0 {
		return false
	}
	if at.Before(v.StartsAt) || at.After(v.EndsAt) {
		return false
	}
	if len(v.OutletIDs) == 0 {
		return true
	}
	for _, id := range v.OutletIDs {
		if id == outletID {
			return true
		}
	}
	return false
}

// ChargeKind distinguishes taxes from service charges
type ChargeKind string

const (
	ChargeTax     ChargeKind = "tax"
	ChargeService ChargeKind = "service"
)

// TaxOrServiceCharge is a configured percentage or fixed charge, optionally
// scoped to a subset of menu items.
type TaxOrServiceCharge struct {
	ID           int64           `json:"id" db:"id"`
	Name         string          `json:"name" db:"name"`
	Kind         ChargeKind      `json:"kind" db:"kind"`
	Percentage   decimal.Decimal `json:"percentage" db:"percentage"`
	FixedFee     decimal.Decimal `json:"fixed_fee" db:"fixed_fee"`
	OutletID     int64           `json:"outlet_id" db:"outlet_id"`
	CustomerType string          `json:"customer_type" db:"customer_type"`
	MenuItemIDs  []int64         `json:"menu_item_ids,omitempty"`
	Active       bool            `json:"active" db:"active"`
}

// AppliesTo reports whether the charge matches an order's customer type
func (c *TaxOrServiceCharge) AppliesTo(customerType string) bool {
	return c.Active && (c.CustomerType == CustomerTypeAll || c.CustomerType == customerType)
}
