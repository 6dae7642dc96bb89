package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pos-system/internal/config"
	"pos-system/internal/logger"
	"pos-system/internal/models"
)

// Client is the HTTP payment gateway client. It speaks a midtrans-style
// charge API authenticated with a server key.
type Client struct {
	baseURL   string
	serverKey string
	http      *http.Client
	logger    *logger.Logger
}

// NewClient creates a gateway client from configuration
func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	timeout := time.Duration(cfg.Gateway.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:   cfg.Gateway.BaseURL,
		serverKey: cfg.Gateway.ServerKey,
		http:      &http.Client{Timeout: timeout},
		logger:    log,
	}
}

type chargeBody struct {
	PaymentType        string             `json:"payment_type"`
	TransactionDetails transactionDetails `json:"transaction_details"`
	CustomerDetails    customerDetails    `json:"customer_details"`
	Gopay              *gopayParams       `json:"gopay,omitempty"`
	QRIS               *qrisParams        `json:"qris,omitempty"`
}

type transactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount string `json:"gross_amount"`
}

type customerDetails struct {
	UserID int64 `json:"user_id"`
}

type gopayParams struct {
	EnableCallback bool   `json:"enable_callback"`
	PhoneNumber    string `json:"phone_number"`
}

type qrisParams struct {
	Acquirer string `json:"acquirer"`
}

type chargeResult struct {
	TransactionID string `json:"transaction_id"`
	OrderID       string `json:"order_id"`
	StatusCode    string `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Actions       []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"actions"`
}

// CreateTransaction creates an external transaction for a non-cash order
func (c *Client) CreateTransaction(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error) {
	body := chargeBody{
		TransactionDetails: transactionDetails{
			OrderID:     req.OrderRef,
			GrossAmount: req.Amount.StringFixed(2),
		},
		CustomerDetails: customerDetails{UserID: req.UserID},
	}

	switch req.Method {
	case models.MethodEWallet:
		body.PaymentType = "gopay"
		body.Gopay = &gopayParams{EnableCallback: true, PhoneNumber: req.PhoneNumber}
	case models.MethodQRIS:
		body.PaymentType = "qris"
		body.QRIS = &qrisParams{Acquirer: req.Acquirer}
	default:
		return nil, fmt.Errorf("%w: %q has no gateway mapping", models.ErrInvalidPaymentMethod, req.Method)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal charge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/charge", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build charge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(c.serverKey, "")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway charge request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("gateway_charge_failed",
			fmt.Sprintf("Gateway returned HTTP %d", resp.StatusCode),
			"", nil, map[string]interface{}{
				"order_ref":   req.OrderRef,
				"status_code": resp.StatusCode,
			})
		return nil, fmt.Errorf("gateway charge rejected with HTTP %d", resp.StatusCode)
	}

	var result chargeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to parse gateway response: %w", err)
	}

	actions := make(map[string]string, len(result.Actions))
	for _, action := range result.Actions {
		actions[action.Name] = action.URL
	}

	// Notifications are keyed by the order_id the gateway echoes back,
	// so that is what the payment record stores as its reference.
	ref := result.OrderID
	if ref == "" {
		ref = req.OrderRef
	}

	return &ChargeResponse{
		TransactionRef: ref,
		Actions:        actions,
		Raw:            raw,
	}, nil
}

// ParseNotification decodes a notification callback payload
func (c *Client) ParseNotification(payload []byte) (*Notification, error) {
	return ParseNotification(payload)
}
