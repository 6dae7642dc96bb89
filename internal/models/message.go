package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutJob is a checkout payload submitted through the job queue. The
// async worker runs it through the identical pipeline contract as the
// HTTP path.
type CheckoutJob struct {
	JobID   string          `json:"job_id"`
	Request CheckoutRequest `json:"request"`
}

// OrderEvent is published to the order events fanout exchange on
// creation, settlement and cancellation.
type OrderEvent struct {
	OrderNumber string          `json:"order_number"`
	OldStatus   string          `json:"old_status,omitempty"`
	NewStatus   string          `json:"new_status"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
	ChangedBy   string          `json:"changed_by"`
	Timestamp   time.Time       `json:"timestamp"`
}

// CheckoutResult reports an async checkout outcome, success or failure,
// with the computed breakdown when available.
type CheckoutResult struct {
	JobID     string            `json:"job_id"`
	Succeeded bool              `json:"succeeded"`
	Error     string            `json:"error,omitempty"`
	Response  *CheckoutResponse `json:"response,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewOrderEvent builds an order status event stamped with the current time
func NewOrderEvent(orderNumber, oldStatus, newStatus, changedBy string, grandTotal decimal.Decimal) *OrderEvent {
	return &OrderEvent{
		OrderNumber: orderNumber,
		OldStatus:   oldStatus,
		NewStatus:   newStatus,
		GrandTotal:  grandTotal,
		ChangedBy:   changedBy,
		Timestamp:   time.Now().UTC(),
	}
}
