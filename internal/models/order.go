package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderType represents the type of an order
type OrderType string

const (
	DineIn   OrderType = "dine_in"
	Takeaway OrderType = "takeaway"
	Delivery OrderType = "delivery"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusOnProcess OrderStatus = "on_process"
	StatusCompleted OrderStatus = "completed"
	StatusCanceled  OrderStatus = "canceled"
	StatusFailed    OrderStatus = "failed"
)

// PaymentMethod identifies how a customer pays
type PaymentMethod string

const (
	MethodCash    PaymentMethod = "cash"
	MethodEWallet PaymentMethod = "ewallet"
	MethodQRIS    PaymentMethod = "qris"
)

// LineExtra is a priced snapshot of a selected topping or add-on option.
// Snapshots are taken at resolution time so later catalog edits do not
// change a persisted order.
type LineExtra struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// OrderLine is one resolved, priced cart line. Immutable once the order
// is created, except the Printed flag used by kitchen-ticket consumers.
type OrderLine struct {
	ID         int64           `json:"id,omitempty" db:"id"`
	OrderID    int64           `json:"order_id,omitempty" db:"order_id"`
	MenuItemID int64           `json:"menu_item_id" db:"menu_item_id"`
	Name       string          `json:"name" db:"name"`
	Quantity   int             `json:"quantity" db:"quantity"`
	BasePrice  decimal.Decimal `json:"base_price" db:"base_price"`
	Toppings   []LineExtra     `json:"toppings,omitempty"`
	Addons     []LineExtra     `json:"addons,omitempty"`
	Subtotal   decimal.Decimal `json:"subtotal" db:"subtotal"`
	Printed    bool            `json:"printed" db:"printed"`
}

// ChargeLine is one tax or service entry on the order breakdown
type ChargeLine struct {
	Name   string          `json:"name"`
	Kind   string          `json:"kind"`
	Amount decimal.Decimal `json:"amount"`
}

// Order is a priced, inventory-consistent customer order. Never deleted,
// only status-transitioned.
type Order struct {
	ID              int64           `json:"id,omitempty" db:"id"`
	Number          string          `json:"order_number" db:"number"`
	UserID          int64           `json:"user_id" db:"user_id"`
	OutletID        int64           `json:"outlet_id" db:"outlet_id"`
	CustomerType    string          `json:"customer_type" db:"customer_type"`
	Type            OrderType       `json:"order_type" db:"type"`
	Status          OrderStatus     `json:"status" db:"status"`
	Lines           []OrderLine     `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal" db:"subtotal"`
	AutoDiscount    decimal.Decimal `json:"auto_discount" db:"auto_discount"`
	ManualDiscount  decimal.Decimal `json:"manual_discount" db:"manual_discount"`
	VoucherDiscount decimal.Decimal `json:"voucher_discount" db:"voucher_discount"`
	TotalDiscount   decimal.Decimal `json:"total_discount" db:"total_discount"`
	VoucherCode     string          `json:"voucher_code,omitempty" db:"voucher_code"`
	PromotionIDs    []int64         `json:"applied_promotion_ids,omitempty"`
	TotalTax        decimal.Decimal `json:"total_tax" db:"total_tax"`
	TotalService    decimal.Decimal `json:"total_service" db:"total_service"`
	Charges         []ChargeLine    `json:"charges,omitempty"`
	GrandTotal      decimal.Decimal `json:"grand_total" db:"grand_total"`
	CreatedAt       time.Time       `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at,omitempty" db:"updated_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
}

// StatusHistory is an entry in the order status log
type StatusHistory struct {
	Status    OrderStatus `json:"status" db:"status"`
	ChangedBy string      `json:"changed_by" db:"changed_by"`
	ChangedAt time.Time   `json:"timestamp" db:"changed_at"`
	Notes     *string     `json:"notes,omitempty" db:"notes"`
}

// CartLine is one raw cart entry before resolution
type CartLine struct {
	MenuItemID     int64   `json:"menu_item_id"`
	Quantity       int     `json:"quantity"`
	ToppingIDs     []int64 `json:"topping_ids,omitempty"`
	AddonOptionIDs []int64 `json:"addon_option_ids,omitempty"`
}

// CheckoutRequest is the cart submitted for checkout, either over HTTP or
// through the async job queue. Both paths share the same contract.
type CheckoutRequest struct {
	UserID        int64      `json:"user_id"`
	OutletID      int64      `json:"outlet_id"`
	CustomerType  string     `json:"customer_type,omitempty"`
	OrderType     string     `json:"order_type"`
	PaymentMethod string     `json:"payment_method"`
	PhoneNumber   string     `json:"phone_number,omitempty"`
	Acquirer      string     `json:"acquirer,omitempty"`
	VoucherCode   string     `json:"voucher_code,omitempty"`
	Items         []CartLine `json:"items"`
}

// CheckoutResponse is the computed breakdown returned to the caller
type CheckoutResponse struct {
	OrderNumber     string            `json:"order_number"`
	Status          OrderStatus       `json:"status"`
	Subtotal        decimal.Decimal   `json:"subtotal"`
	TotalDiscount   decimal.Decimal   `json:"total_discount"`
	TotalTax        decimal.Decimal   `json:"total_tax"`
	TotalService    decimal.Decimal   `json:"total_service"`
	GrandTotal      decimal.Decimal   `json:"grand_total"`
	Charges         []ChargeLine      `json:"charges,omitempty"`
	PaymentStatus   PaymentStatus     `json:"payment_status"`
	PaymentActions  map[string]string `json:"payment_actions,omitempty"`
	TransactionRef  string            `json:"transaction_ref,omitempty"`
}

// Validate checks the checkout request against the cart rules
func (r *CheckoutRequest) Validate() error {
	if r.UserID <= 0 {
		return &ValidationError{Field: "user_id", Message: "user id is required"}
	}
	if r.OutletID <= 0 {
		return &ValidationError{Field: "outlet_id", Message: "outlet id is required"}
	}

	switch OrderType(r.OrderType) {
	case DineIn, Takeaway, Delivery:
	default:
		return &ValidationError{Field: "order_type", Message: "order type must be one of: dine_in, takeaway, delivery"}
	}

	if err := r.validatePaymentMethod(); err != nil {
		return err
	}

	return validateItems(r.Items)
}

// validatePaymentMethod enforces method-specific required fields before
// any gateway call is attempted.
func (r *CheckoutRequest) validatePaymentMethod() error {
	switch PaymentMethod(r.PaymentMethod) {
	case MethodCash:
		return nil
	case MethodEWallet:
		if r.PhoneNumber == "" {
			return fmt.Errorf("%w: phone_number is required for ewallet payments", ErrInvalidPaymentMethod)
		}
		return nil
	case MethodQRIS:
		if r.Acquirer == "" {
			return fmt.Errorf("%w: acquirer is required for qris payments", ErrInvalidPaymentMethod)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, r.PaymentMethod)
	}
}

func validateItems(items []CartLine) error {
	if len(items) == 0 {
		return &ValidationError{Field: "items", Message: "items cannot be empty"}
	}
	if len(items) > 50 {
		return &ValidationError{Field: "items", Message: "a maximum of 50 items is allowed"}
	}

	for i, item := range items {
		if item.MenuItemID <= 0 {
			return &ValidationError{
				Field:   fmt.Sprintf("items[%d].menu_item_id", i),
				Message: "menu item id is required",
			}
		}
		if item.Quantity <= 0 {
			return &ValidationError{
				Field:   fmt.Sprintf("items[%d].quantity", i),
				Message: "item quantity must be greater than 0",
			}
		}
	}
	return nil
}

// GenerateOrderNumber formats an order number as ORD_YYYYMMDD_NNN
func GenerateOrderNumber(date time.Time, sequence int) string {
	return fmt.Sprintf("ORD_%s_%03d", date.Format("20060102"), sequence)
}
