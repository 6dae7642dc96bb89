package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors for the checkout taxonomy
var (
	ErrReferenceNotFound    = errors.New("reference not found")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrStaleNotification    = errors.New("stale payment notification")
	ErrOrderNotCancelable   = errors.New("order cannot be canceled")
)

// ReferenceNotFoundError reports an unknown catalog or promotion reference.
// The whole order fails together, nothing is persisted.
type ReferenceNotFoundError struct {
	Entity string
	ID     int64
	Code   string
}

func (e *ReferenceNotFoundError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %q not found", e.Entity, e.Code)
	}
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *ReferenceNotFoundError) Unwrap() error {
	return ErrReferenceNotFound
}

// InsufficientStockError identifies the first ingredient that cannot cover
// the aggregated requirement of an order.
type InsufficientStockError struct {
	IngredientID int64
	Needed       decimal.Decimal
	Available    decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for ingredient %d: needed %s, available %s",
		e.IngredientID, e.Needed.String(), e.Available.String())
}

// ValidationError reports a malformed checkout request field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsCheckoutFailure reports whether an error belongs to the checkout
// taxonomy, i.e. it is a business outcome rather than an infrastructure
// fault. Queue consumers ack taxonomy failures instead of requeueing them.
func IsCheckoutFailure(err error) bool {
	var (
		refErr   *ReferenceNotFoundError
		stockErr *InsufficientStockError
		valErr   *ValidationError
	)
	return errors.As(err, &refErr) ||
		errors.As(err, &stockErr) ||
		errors.As(err, &valErr) ||
		errors.Is(err, ErrInvalidPaymentMethod)
}
