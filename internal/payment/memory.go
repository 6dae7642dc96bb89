package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"pos-system/internal/models"
)

// MockGateway simulates the external payment gateway for tests and local
// runs. Charges succeed unless the method is flagged to decline.
type MockGateway struct {
	mu       sync.Mutex
	declines map[models.PaymentMethod]bool
	charges  []ChargeRequest
}

// NewMockGateway creates a gateway that accepts every charge
func NewMockGateway() *MockGateway {
	return &MockGateway{
		declines: make(map[models.PaymentMethod]bool),
	}
}

// Decline makes future charges with the given method fail
func (g *MockGateway) Decline(method models.PaymentMethod) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.declines[method] = true
}

// Charges returns a copy of every charge request seen so far
func (g *MockGateway) Charges() []ChargeRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]ChargeRequest, len(g.charges))
	copy(out, g.charges)
	return out
}

func (g *MockGateway) CreateTransaction(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.charges = append(g.charges, *req)

	if g.declines[req.Method] {
		return nil, fmt.Errorf("gateway declined %s charge for %s", req.Method, req.OrderRef)
	}

	raw, _ := json.Marshal(map[string]string{
		"transaction_id":     "TXN-" + uuid.NewString(),
		"order_id":           req.OrderRef,
		"transaction_status": "pending",
	})

	// Mirror the real gateway: notifications come keyed by order_id.
	ref := req.OrderRef

	return &ChargeResponse{
		TransactionRef: ref,
		Actions:        map[string]string{"deeplink": "https://gateway.test/pay/" + ref},
		Raw:            raw,
	}, nil
}

func (g *MockGateway) ParseNotification(payload []byte) (*Notification, error) {
	return ParseNotification(payload)
}
