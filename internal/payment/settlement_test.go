package payment

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"pos-system/internal/logger"
	"pos-system/internal/models"
	"pos-system/internal/stock"
)

// fakeOrderStore keeps orders and payments in maps under one mutex
type fakeOrderStore struct {
	mu       sync.Mutex
	orders   map[int64]*models.Order
	payments map[string]*models.Payment
	reqs     map[int64]stock.Requirements
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		orders:   make(map[int64]*models.Order),
		payments: make(map[string]*models.Payment),
		reqs:     make(map[int64]stock.Requirements),
	}
}

func (f *fakeOrderStore) PaymentByRef(ctx context.Context, ref string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pay, ok := f.payments[ref]
	if !ok {
		return nil, &models.ReferenceNotFoundError{Entity: "payment", Code: ref}
	}
	p := *pay
	return &p, nil
}

func (f *fakeOrderStore) OrderByID(ctx context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	if !ok {
		return nil, &models.ReferenceNotFoundError{Entity: "order", ID: id}
	}
	o := *order
	return &o, nil
}

func (f *fakeOrderStore) UpdatePaymentStatus(ctx context.Context, paymentID int64, status models.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, pay := range f.payments {
		if pay.ID == paymentID {
			pay.Status = status
			return nil
		}
	}
	return fmt.Errorf("payment %d not found", paymentID)
}

func (f *fakeOrderStore) TransitionOrder(ctx context.Context, orderID int64, from, to models.OrderStatus, changedBy string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = to
	return true, nil
}

func (f *fakeOrderStore) CompleteOrder(ctx context.Context, orderID int64, changedBy string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok || (order.Status != models.StatusPending && order.Status != models.StatusOnProcess) {
		return false, nil
	}
	order.Status = models.StatusCompleted
	return true, nil
}

func (f *fakeOrderStore) Requirements(ctx context.Context, orderID int64) (stock.Requirements, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reqs, ok := f.reqs[orderID]
	if !ok {
		return nil, fmt.Errorf("requirements for order %d not found", orderID)
	}
	out := make(stock.Requirements, len(reqs))
	out.Merge(reqs)
	return out, nil
}

func (f *fakeOrderStore) orderStatus(id int64) models.OrderStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[id].Status
}

func (f *fakeOrderStore) paymentStatus(ref string) models.PaymentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payments[ref].Status
}

func seedSettlement(store *fakeOrderStore, ledger *stock.Memory) {
	ledger.Put(models.Ingredient{ID: 1, Quantity: decimal.NewFromInt(100)})
	store.orders[1] = &models.Order{ID: 1, Number: "ORD_20260315_001", Status: models.StatusPending}
	store.payments["TXN-1"] = &models.Payment{ID: 10, OrderID: 1, Status: models.PaymentPending, TransactionRef: "TXN-1"}
	reqs := make(stock.Requirements)
	reqs.Add(1, decimal.NewFromInt(5))
	store.reqs[1] = reqs
}

func notification(status, fraud string) []byte {
	return []byte(fmt.Sprintf(`{"order_id":"TXN-1","transaction_status":"%s","fraud_status":"%s"}`, status, fraud))
}

func TestMapStatus(t *testing.T) {
	tests := []struct {
		txStatus string
		fraud    string
		want     models.PaymentStatus
	}{
		{"settlement", "", models.PaymentSuccess},
		{"capture", "accept", models.PaymentSuccess},
		{"capture", "challenge", models.PaymentChallenge},
		{"pending", "", models.PaymentPending},
		{"deny", "", models.PaymentFailed},
		{"cancel", "", models.PaymentFailed},
		{"expire", "", models.PaymentFailed},
	}

	for _, tt := range tests {
		if got := MapStatus(tt.txStatus, tt.fraud); got != tt.want {
			t.Errorf("MapStatus(%q, %q) = %s, want %s", tt.txStatus, tt.fraud, got, tt.want)
		}
	}
}

func TestHandleNotification_SuccessSettlesOnce(t *testing.T) {
	store := newFakeOrderStore()
	ledger := stock.NewMemory()
	seedSettlement(store, ledger)
	reconciler := NewReconciler(NewMockGateway(), store, ledger, logger.New("test"))

	if err := reconciler.HandleNotification(context.Background(), notification("settlement", "accept"), "req-1"); err != nil {
		t.Fatalf("HandleNotification returned error: %v", err)
	}

	if got := store.orderStatus(1); got != models.StatusCompleted {
		t.Errorf("order status = %s, want completed", got)
	}
	if got := store.paymentStatus("TXN-1"); got != models.PaymentSuccess {
		t.Errorf("payment status = %s, want success", got)
	}
	if !ledger.Quantity(1).Equal(decimal.NewFromInt(95)) {
		t.Errorf("ingredient quantity = %s, want 95", ledger.Quantity(1))
	}
}

func TestHandleNotification_RedeliveryDeductsOnce(t *testing.T) {
	store := newFakeOrderStore()
	ledger := stock.NewMemory()
	seedSettlement(store, ledger)
	reconciler := NewReconciler(NewMockGateway(), store, ledger, logger.New("test"))

	payload := notification("settlement", "accept")
	for i := 0; i < 5; i++ {
		if err := reconciler.HandleNotification(context.Background(), payload, "req-1"); err != nil {
			t.Fatalf("delivery %d returned error: %v", i+1, err)
		}
	}

	if !ledger.Quantity(1).Equal(decimal.NewFromInt(95)) {
		t.Errorf("ingredient quantity = %s, want exactly one deduction to 95", ledger.Quantity(1))
	}
}

func TestHandleNotification_ConcurrentRedelivery(t *testing.T) {
	store := newFakeOrderStore()
	ledger := stock.NewMemory()
	seedSettlement(store, ledger)
	reconciler := NewReconciler(NewMockGateway(), store, ledger, logger.New("test"))

	payload := notification("settlement", "accept")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = reconciler.HandleNotification(context.Background(), payload, "req-c")
		}()
	}
	wg.Wait()

	if !ledger.Quantity(1).Equal(decimal.NewFromInt(95)) {
		t.Errorf("ingredient quantity = %s, want 95 after concurrent redelivery", ledger.Quantity(1))
	}
	if got := store.orderStatus(1); got != models.StatusCompleted {
		t.Errorf("order status = %s, want completed", got)
	}
}

func TestHandleNotification_PendingKeepsOrderPending(t *testing.T) {
	store := newFakeOrderStore()
	ledger := stock.NewMemory()
	seedSettlement(store, ledger)
	reconciler := NewReconciler(NewMockGateway(), store, ledger, logger.New("test"))

	if err := reconciler.HandleNotification(context.Background(), notification("pending", ""), "req-1"); err != nil {
		t.Fatalf("HandleNotification returned error: %v", err)
	}

	if got := store.orderStatus(1); got != models.StatusPending {
		t.Errorf("order status = %s, want pending", got)
	}
	if !ledger.Quantity(1).Equal(decimal.NewFromInt(100)) {
		t.Errorf("stock deducted for a pending payment")
	}
}

func TestHandleNotification_ChallengeRecordsWithoutDeduction(t *testing.T) {
	store := newFakeOrderStore()
	ledger := stock.NewMemory()
	seedSettlement(store, ledger)
	reconciler := NewReconciler(NewMockGateway(), store, ledger, logger.New("test"))

	if err := reconciler.HandleNotification(context.Background(), notification("capture", "challenge"), "req-1"); err != nil {
		t.Fatalf("HandleNotification returned error: %v", err)
	}

	if got := store.paymentStatus("TXN-1"); got != models.PaymentChallenge {
		t.Errorf("payment status = %s, want challenge", got)
	}
	if !ledger.Quantity(1).Equal(decimal.NewFromInt(100)) {
		t.Errorf("stock deducted for a challenged payment")
	}
}

func TestHandleNotification_DenyFailsOrder(t *testing.T) {
	store := newFakeOrderStore()
	ledger := stock.NewMemory()
	seedSettlement(store, ledger)
	reconciler := NewReconciler(NewMockGateway(), store, ledger, logger.New("test"))

	if err := reconciler.HandleNotification(context.Background(), notification("deny", ""), "req-1"); err != nil {
		t.Fatalf("HandleNotification returned error: %v", err)
	}

	if got := store.orderStatus(1); got != models.StatusFailed {
		t.Errorf("order status = %s, want failed", got)
	}
	if !ledger.Quantity(1).Equal(decimal.NewFromInt(100)) {
		t.Errorf("stock deducted for a denied payment")
	}
}

func TestHandleNotification_StaleIsNoOp(t *testing.T) {
	store := newFakeOrderStore()
	ledger := stock.NewMemory()
	seedSettlement(store, ledger)
	store.orders[1].Status = models.StatusFailed
	reconciler := NewReconciler(NewMockGateway(), store, ledger, logger.New("test"))

	if err := reconciler.HandleNotification(context.Background(), notification("settlement", "accept"), "req-1"); err != nil {
		t.Fatalf("stale notification should be acknowledged, got error: %v", err)
	}

	if got := store.orderStatus(1); got != models.StatusFailed {
		t.Errorf("order status = %s, want failed untouched", got)
	}
	if got := store.paymentStatus("TXN-1"); got != models.PaymentPending {
		t.Errorf("payment status = %s, want pending untouched", got)
	}
}

// staleReadStore reports a stale Pending status on reads, as if a
// cancellation landed between the status read and the completion claim.
type staleReadStore struct {
	*fakeOrderStore
}

func (s *staleReadStore) OrderByID(ctx context.Context, id int64) (*models.Order, error) {
	order, err := s.fakeOrderStore.OrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Status = models.StatusPending
	return order, nil
}

func TestHandleNotification_CancelRacingSettlementStaysCanceled(t *testing.T) {
	store := newFakeOrderStore()
	ledger := stock.NewMemory()
	seedSettlement(store, ledger)
	store.orders[1].Status = models.StatusCanceled
	reconciler := NewReconciler(NewMockGateway(), &staleReadStore{store}, ledger, logger.New("test"))

	if err := reconciler.HandleNotification(context.Background(), notification("settlement", "accept"), "req-1"); err != nil {
		t.Fatalf("HandleNotification returned error: %v", err)
	}

	if got := store.orderStatus(1); got != models.StatusCanceled {
		t.Errorf("order status = %s, want canceled untouched", got)
	}
	if !ledger.Quantity(1).Equal(decimal.NewFromInt(100)) {
		t.Errorf("stock deducted for a canceled order")
	}
}

func TestHandleNotification_DeductionFailureKeepsPriorStatus(t *testing.T) {
	store := newFakeOrderStore()
	ledger := stock.NewMemory()
	seedSettlement(store, ledger)
	// Drain the ledger below the requirement so the deduction fails.
	drain := make(stock.Requirements)
	drain.Add(1, decimal.NewFromInt(98))
	if err := ledger.ReserveAll(context.Background(), drain); err != nil {
		t.Fatal(err)
	}
	reconciler := NewReconciler(NewMockGateway(), store, ledger, logger.New("test"))

	err := reconciler.HandleNotification(context.Background(), notification("settlement", "accept"), "req-1")
	if err == nil {
		t.Fatalf("expected deduction failure to surface")
	}

	// Payment stays Success for auditability; the order is not Completed.
	if got := store.orderStatus(1); got != models.StatusPending {
		t.Errorf("order status = %s, want pending for operator retry", got)
	}
	if got := store.paymentStatus("TXN-1"); got != models.PaymentSuccess {
		t.Errorf("payment status = %s, want success recorded", got)
	}
}

func TestParseNotification_Malformed(t *testing.T) {
	if _, err := ParseNotification([]byte("{")); err == nil {
		t.Errorf("expected error for malformed payload")
	}
	if _, err := ParseNotification([]byte(`{"transaction_status":"settlement"}`)); err == nil {
		t.Errorf("expected error for payload without order_id")
	}
}
