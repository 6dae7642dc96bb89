package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the internal payment state
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSuccess   PaymentStatus = "success"
	PaymentChallenge PaymentStatus = "challenge"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment records the settlement side of an order. Created alongside the
// order; mutated only by the settlement reconciler.
type Payment struct {
	ID             int64           `json:"id,omitempty" db:"id"`
	OrderID        int64           `json:"order_id" db:"order_id"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	Method         PaymentMethod   `json:"method" db:"method"`
	Status         PaymentStatus   `json:"status" db:"status"`
	TransactionRef string          `json:"transaction_ref,omitempty" db:"transaction_ref"`
	GatewayPayload json.RawMessage `json:"gateway_payload,omitempty" db:"gateway_payload"`
	CreatedAt      time.Time       `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at,omitempty" db:"updated_at"`
}
