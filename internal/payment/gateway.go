// Package payment holds the gateway contract and the settlement
// reconciler that finalizes payment outcomes.
package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"pos-system/internal/models"
)

// ChargeRequest asks the gateway to create an external transaction
type ChargeRequest struct {
	OrderRef    string
	Amount      decimal.Decimal
	Method      models.PaymentMethod
	PhoneNumber string
	Acquirer    string
	UserID      int64
}

// ChargeResponse carries the gateway's transaction reference, any
// method-specific action URLs and the opaque raw payload persisted on
// the payment record.
type ChargeResponse struct {
	TransactionRef string
	Actions        map[string]string
	Raw            json.RawMessage
}

// Notification is a parsed payment-gateway callback
type Notification struct {
	OrderRef          string
	TransactionStatus string
	FraudStatus       string
}

// Gateway is the external payment collaborator contract
type Gateway interface {
	CreateTransaction(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error)
	ParseNotification(payload []byte) (*Notification, error)
}

// gatewayNotification is the wire shape of a notification callback
type gatewayNotification struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
}

// ParseNotification decodes a notification payload into the internal shape
func ParseNotification(payload []byte) (*Notification, error) {
	var n gatewayNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("failed to parse notification payload: %w", err)
	}
	if n.OrderID == "" || n.TransactionStatus == "" {
		return nil, fmt.Errorf("notification payload missing order_id or transaction_status")
	}
	return &Notification{
		OrderRef:          n.OrderID,
		TransactionStatus: n.TransactionStatus,
		FraudStatus:       n.FraudStatus,
	}, nil
}

// MapStatus translates the gateway transaction status to the internal
// payment status. Capture is a success unless fraud screening flags a
// challenge.
func MapStatus(transactionStatus, fraudStatus string) models.PaymentStatus {
	switch transactionStatus {
	case "settlement":
		return models.PaymentSuccess
	case "capture":
		if fraudStatus == "challenge" {
			return models.PaymentChallenge
		}
		return models.PaymentSuccess
	case "deny", "cancel", "expire":
		return models.PaymentFailed
	default:
		return models.PaymentPending
	}
}
