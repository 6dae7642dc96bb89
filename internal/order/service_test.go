package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pos-system/internal/catalog"
	"pos-system/internal/logger"
	"pos-system/internal/models"
	"pos-system/internal/payment"
	"pos-system/internal/pricing"
	"pos-system/internal/stock"
)

// memoryRepository is an in-memory Repository for pipeline tests
type memoryRepository struct {
	mu       sync.Mutex
	nextID   int64
	orders   map[int64]*models.Order
	byNumber map[string]int64
	payments map[string]*models.Payment
	reqs     map[int64]stock.Requirements
	seq      int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		orders:   make(map[int64]*models.Order),
		byNumber: make(map[string]int64),
		payments: make(map[string]*models.Payment),
		reqs:     make(map[int64]stock.Requirements),
	}
}

func (m *memoryRepository) CreateOrder(ctx context.Context, order *models.Order, pay *models.Payment, reqs stock.Requirements) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	order.ID = m.nextID
	order.CreatedAt = time.Now()
	pay.ID = m.nextID
	pay.OrderID = order.ID

	stored := *order
	m.orders[order.ID] = &stored
	m.byNumber[order.Number] = order.ID
	m.payments[pay.TransactionRef] = pay
	snapshot := stock.Requirements{}
	snapshot.Merge(reqs)
	m.reqs[order.ID] = snapshot
	return nil
}

func (m *memoryRepository) OrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byNumber[number]
	if !ok {
		return nil, &models.ReferenceNotFoundError{Entity: "order", Code: number}
	}
	copied := *m.orders[id]
	return &copied, nil
}

func (m *memoryRepository) OrderByID(ctx context.Context, id int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, &models.ReferenceNotFoundError{Entity: "order", ID: id}
	}
	copied := *order
	return &copied, nil
}

func (m *memoryRepository) OrdersByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, order := range m.orders {
		if order.UserID == userID {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (m *memoryRepository) NextOrderSequence(ctx context.Context, date time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq, nil
}

func (m *memoryRepository) TransitionOrder(ctx context.Context, orderID int64, from, to models.OrderStatus, changedBy string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = to
	return true, nil
}

func (m *memoryRepository) CompleteOrder(ctx context.Context, orderID int64, changedBy string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok || (order.Status != models.StatusPending && order.Status != models.StatusOnProcess) {
		return false, nil
	}
	order.Status = models.StatusCompleted
	return true, nil
}

func (m *memoryRepository) PaymentByRef(ctx context.Context, ref string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pay, ok := m.payments[ref]
	if !ok {
		return nil, &models.ReferenceNotFoundError{Entity: "payment", Code: ref}
	}
	copied := *pay
	return &copied, nil
}

func (m *memoryRepository) UpdatePaymentStatus(ctx context.Context, paymentID int64, status models.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pay := range m.payments {
		if pay.ID == paymentID {
			pay.Status = status
			return nil
		}
	}
	return fmt.Errorf("payment %d not found", paymentID)
}

func (m *memoryRepository) Requirements(ctx context.Context, orderID int64) (stock.Requirements, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reqs, ok := m.reqs[orderID]
	if !ok {
		return nil, fmt.Errorf("no requirements for order %d", orderID)
	}
	return reqs, nil
}

func (m *memoryRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memoryRepository) status(number string) models.OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[m.byNumber[number]].Status
}

// flakyLedger delegates to a real ledger but fails restores on demand
type flakyLedger struct {
	stock.Ledger
	failRestore bool
}

func (f *flakyLedger) RestoreAll(ctx context.Context, reqs stock.Requirements) error {
	if f.failRestore {
		return errors.New("ledger unavailable")
	}
	return f.Ledger.RestoreAll(ctx, reqs)
}

// pipeline bundles the wired service with its fakes for assertions
type pipeline struct {
	service *Service
	repo    *memoryRepository
	items   *catalog.Memory
	ledger  *stock.Memory
	promos  *pricing.MemoryPromotions
	gateway *payment.MockGateway
}

func newPipeline() *pipeline {
	items := catalog.NewMemory()
	items.PutMenuItem(models.MenuItem{
		ID:    1,
		Name:  "Iced Coffee",
		Price: decimal.NewFromInt(30000),
		Recipe: []models.RecipeEdge{
			{IngredientID: 10, Quantity: decimal.NewFromInt(18)},
			{IngredientID: 11, Quantity: decimal.NewFromInt(150)},
		},
	})
	items.PutMenuItem(models.MenuItem{
		ID:    2,
		Name:  "Matcha Latte",
		Price: decimal.NewFromInt(35000),
		Recipe: []models.RecipeEdge{
			{IngredientID: 12, Quantity: decimal.NewFromInt(5)},
		},
	})

	ledger := stock.NewMemory()
	ledger.Put(models.Ingredient{ID: 10, Name: "Coffee Beans", Unit: "g", Quantity: decimal.NewFromInt(1000)})
	ledger.Put(models.Ingredient{ID: 11, Name: "Milk", Unit: "ml", Quantity: decimal.NewFromInt(5000)})
	ledger.Put(models.Ingredient{ID: 12, Name: "Matcha Powder", Unit: "g", Quantity: decimal.NewFromInt(3)})

	repo := newMemoryRepository()
	promos := pricing.NewMemoryPromotions()
	gateway := payment.NewMockGateway()
	log := logger.New("order-service-test")

	return &pipeline{
		service: NewService(repo, items, ledger, promos, gateway, nil, log),
		repo:    repo,
		items:   items,
		ledger:  ledger,
		promos:  promos,
		gateway: gateway,
	}
}

func cashCheckout(items ...models.CartLine) *models.CheckoutRequest {
	return &models.CheckoutRequest{
		UserID:        7,
		OutletID:      1,
		OrderType:     "takeaway",
		PaymentMethod: "cash",
		Items:         items,
	}
}

func TestCreateOrder_PlainCheckout(t *testing.T) {
	p := newPipeline()

	resp, err := p.service.CreateOrder(context.Background(), cashCheckout(
		models.CartLine{MenuItemID: 1, Quantity: 2},
	), "req-1")
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	if !resp.Subtotal.Equal(decimal.NewFromInt(60000)) {
		t.Errorf("Subtotal = %s, want 60000", resp.Subtotal)
	}
	if !resp.GrandTotal.Equal(decimal.NewFromInt(60000)) {
		t.Errorf("GrandTotal = %s, want 60000", resp.GrandTotal)
	}
	if resp.Status != models.StatusPending {
		t.Errorf("Status = %s, want pending", resp.Status)
	}
	if resp.PaymentStatus != models.PaymentPending {
		t.Errorf("PaymentStatus = %s, want pending", resp.PaymentStatus)
	}

	// Creation only reserves logically; nothing is deducted yet.
	if got := p.ledger.Quantity(10); !got.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("coffee beans = %s, want 1000 before settlement", got)
	}
}

func TestCreateOrder_VoucherDiscount(t *testing.T) {
	p := newPipeline()
	p.promos.AddVoucher(models.Voucher{
		ID:       1,
		Code:     "WELCOME10",
		Type:     models.DiscountPercentage,
		Value:    decimal.NewFromInt(10),
		Quota:    5,
		StartsAt: time.Now().Add(-time.Hour),
		EndsAt:   time.Now().Add(time.Hour),
		Active:   true,
	})

	req := cashCheckout(models.CartLine{MenuItemID: 1, Quantity: 2})
	req.VoucherCode = "WELCOME10"

	resp, err := p.service.CreateOrder(context.Background(), req, "req-1")
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	if !resp.TotalDiscount.Equal(decimal.NewFromInt(6000)) {
		t.Errorf("TotalDiscount = %s, want 6000", resp.TotalDiscount)
	}
	if !resp.GrandTotal.Equal(decimal.NewFromInt(54000)) {
		t.Errorf("GrandTotal = %s, want 54000", resp.GrandTotal)
	}

	voucher, ok := p.promos.Voucher(1)
	if !ok {
		t.Fatal("voucher disappeared")
	}
	if voucher.Quota != 4 {
		t.Errorf("voucher quota = %d, want 4", voucher.Quota)
	}
}

func TestCreateOrder_TaxAndServiceCharges(t *testing.T) {
	p := newPipeline()
	p.promos.AddCharge(models.TaxOrServiceCharge{
		ID:           1,
		Name:         "PB1",
		Kind:         models.ChargeTax,
		Percentage:   decimal.NewFromInt(10),
		OutletID:     1,
		CustomerType: models.CustomerTypeAll,
		Active:       true,
	})
	p.promos.AddCharge(models.TaxOrServiceCharge{
		ID:           2,
		Name:         "Service",
		Kind:         models.ChargeService,
		FixedFee:     decimal.NewFromInt(2000),
		OutletID:     1,
		CustomerType: models.CustomerTypeAll,
		Active:       true,
	})

	resp, err := p.service.CreateOrder(context.Background(), cashCheckout(
		models.CartLine{MenuItemID: 1, Quantity: 2},
	), "req-1")
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	if !resp.TotalTax.Equal(decimal.NewFromInt(6000)) {
		t.Errorf("TotalTax = %s, want 6000", resp.TotalTax)
	}
	if !resp.TotalService.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("TotalService = %s, want 2000", resp.TotalService)
	}
	if !resp.GrandTotal.Equal(decimal.NewFromInt(68000)) {
		t.Errorf("GrandTotal = %s, want 68000", resp.GrandTotal)
	}
	if len(resp.Charges) != 2 {
		t.Errorf("Charges breakdown has %d entries, want 2", len(resp.Charges))
	}
}

func TestCreateOrder_InsufficientStockPersistsNothing(t *testing.T) {
	p := newPipeline()

	// One latte needs 5g of matcha; only 3g on hand.
	_, err := p.service.CreateOrder(context.Background(), cashCheckout(
		models.CartLine{MenuItemID: 2, Quantity: 1},
	), "req-1")

	var stockErr *models.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("CreateOrder() error = %v, want InsufficientStockError", err)
	}
	if stockErr.IngredientID != 12 {
		t.Errorf("IngredientID = %d, want 12", stockErr.IngredientID)
	}
	if !stockErr.Needed.Equal(decimal.NewFromInt(5)) || !stockErr.Available.Equal(decimal.NewFromInt(3)) {
		t.Errorf("needed/available = %s/%s, want 5/3", stockErr.Needed, stockErr.Available)
	}

	if p.repo.count() != 0 {
		t.Errorf("repository has %d orders, want 0", p.repo.count())
	}
	if got := p.ledger.Quantity(12); !got.Equal(decimal.NewFromInt(3)) {
		t.Errorf("matcha = %s, want untouched 3", got)
	}
}

func TestCreateOrder_UnknownMenuItemPersistsNothing(t *testing.T) {
	p := newPipeline()

	_, err := p.service.CreateOrder(context.Background(), cashCheckout(
		models.CartLine{MenuItemID: 1, Quantity: 1},
		models.CartLine{MenuItemID: 99, Quantity: 1},
	), "req-1")

	if !errors.Is(err, models.ErrReferenceNotFound) {
		t.Fatalf("CreateOrder() error = %v, want reference not found", err)
	}
	if p.repo.count() != 0 {
		t.Errorf("repository has %d orders, want 0", p.repo.count())
	}
}

func TestCreateOrder_InvalidPaymentMethod(t *testing.T) {
	p := newPipeline()

	req := cashCheckout(models.CartLine{MenuItemID: 1, Quantity: 1})
	req.PaymentMethod = "ewallet" // no phone number

	_, err := p.service.CreateOrder(context.Background(), req, "req-1")
	if !errors.Is(err, models.ErrInvalidPaymentMethod) {
		t.Fatalf("CreateOrder() error = %v, want invalid payment method", err)
	}
	if len(p.gateway.Charges()) != 0 {
		t.Error("gateway was charged for an invalid request")
	}
}

func TestCreateOrder_EWalletChargesGateway(t *testing.T) {
	p := newPipeline()

	req := cashCheckout(models.CartLine{MenuItemID: 1, Quantity: 1})
	req.PaymentMethod = "ewallet"
	req.PhoneNumber = "+6281234567890"

	resp, err := p.service.CreateOrder(context.Background(), req, "req-1")
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	charges := p.gateway.Charges()
	if len(charges) != 1 {
		t.Fatalf("gateway saw %d charges, want 1", len(charges))
	}
	if !charges[0].Amount.Equal(resp.GrandTotal) {
		t.Errorf("charged %s, want grand total %s", charges[0].Amount, resp.GrandTotal)
	}
	if resp.TransactionRef != resp.OrderNumber {
		t.Errorf("TransactionRef = %s, want order number %s", resp.TransactionRef, resp.OrderNumber)
	}
	if len(resp.PaymentActions) == 0 {
		t.Error("expected payment actions for ewallet checkout")
	}
}

func TestCreateOrder_GatewayDeclinePersistsNothing(t *testing.T) {
	p := newPipeline()
	p.gateway.Decline(models.MethodEWallet)

	req := cashCheckout(models.CartLine{MenuItemID: 1, Quantity: 1})
	req.PaymentMethod = "ewallet"
	req.PhoneNumber = "+6281234567890"

	if _, err := p.service.CreateOrder(context.Background(), req, "req-1"); err == nil {
		t.Fatal("CreateOrder() succeeded despite gateway decline")
	}
	if p.repo.count() != 0 {
		t.Errorf("repository has %d orders, want 0", p.repo.count())
	}
}

func TestCreateOrder_GatewayDeclineReturnsVoucherQuota(t *testing.T) {
	p := newPipeline()
	p.gateway.Decline(models.MethodEWallet)
	p.promos.AddVoucher(models.Voucher{
		ID:       1,
		Code:     "WELCOME10",
		Type:     models.DiscountPercentage,
		Value:    decimal.NewFromInt(10),
		Quota:    5,
		StartsAt: time.Now().Add(-time.Hour),
		EndsAt:   time.Now().Add(time.Hour),
		Active:   true,
	})

	req := cashCheckout(models.CartLine{MenuItemID: 1, Quantity: 1})
	req.PaymentMethod = "ewallet"
	req.PhoneNumber = "+6281234567890"
	req.VoucherCode = "WELCOME10"

	if _, err := p.service.CreateOrder(context.Background(), req, "req-1"); err == nil {
		t.Fatal("CreateOrder() succeeded despite gateway decline")
	}

	if p.repo.count() != 0 {
		t.Errorf("repository has %d orders, want 0", p.repo.count())
	}
	voucher, ok := p.promos.Voucher(1)
	if !ok {
		t.Fatal("voucher disappeared")
	}
	if voucher.Quota != 5 {
		t.Errorf("voucher quota = %d, want 5 returned after failed checkout", voucher.Quota)
	}
	if !voucher.Active {
		t.Error("voucher deactivated by a checkout that persisted nothing")
	}
}

func TestCreateOrder_LastQuotaUnitComesBackActive(t *testing.T) {
	p := newPipeline()
	p.gateway.Decline(models.MethodEWallet)
	p.promos.AddVoucher(models.Voucher{
		ID:       1,
		Code:     "LASTCALL",
		Type:     models.DiscountFixed,
		Value:    decimal.NewFromInt(5000),
		Quota:    1,
		StartsAt: time.Now().Add(-time.Hour),
		EndsAt:   time.Now().Add(time.Hour),
		Active:   true,
	})

	req := cashCheckout(models.CartLine{MenuItemID: 1, Quantity: 1})
	req.PaymentMethod = "ewallet"
	req.PhoneNumber = "+6281234567890"
	req.VoucherCode = "LASTCALL"

	if _, err := p.service.CreateOrder(context.Background(), req, "req-1"); err == nil {
		t.Fatal("CreateOrder() succeeded despite gateway decline")
	}

	// Redeeming the last unit deactivates the voucher; the compensation
	// has to bring it back for the next customer.
	voucher, _ := p.promos.Voucher(1)
	if voucher.Quota != 1 || !voucher.Active {
		t.Errorf("voucher quota/active = %d/%v, want 1/true", voucher.Quota, voucher.Active)
	}

	// A clean retry can now redeem it.
	req.PaymentMethod = "cash"
	req.PhoneNumber = ""
	if _, err := p.service.CreateOrder(context.Background(), req, "req-2"); err != nil {
		t.Fatalf("retry CreateOrder() error = %v", err)
	}
	voucher, _ = p.promos.Voucher(1)
	if voucher.Quota != 0 || voucher.Active {
		t.Errorf("voucher quota/active = %d/%v after redemption, want 0/false", voucher.Quota, voucher.Active)
	}
}

func TestCreateOrder_SequentialNumbers(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()

	first, err := p.service.CreateOrder(ctx, cashCheckout(models.CartLine{MenuItemID: 1, Quantity: 1}), "req-1")
	if err != nil {
		t.Fatalf("first CreateOrder() error = %v", err)
	}
	second, err := p.service.CreateOrder(ctx, cashCheckout(models.CartLine{MenuItemID: 1, Quantity: 1}), "req-2")
	if err != nil {
		t.Fatalf("second CreateOrder() error = %v", err)
	}

	date := time.Now().Format("20060102")
	if want := fmt.Sprintf("ORD_%s_001", date); first.OrderNumber != want {
		t.Errorf("first number = %s, want %s", first.OrderNumber, want)
	}
	if want := fmt.Sprintf("ORD_%s_002", date); second.OrderNumber != want {
		t.Errorf("second number = %s, want %s", second.OrderNumber, want)
	}
}

func TestSettlementFlow_DeductsStock(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()

	req := cashCheckout(models.CartLine{MenuItemID: 1, Quantity: 2})
	req.PaymentMethod = "qris"
	req.Acquirer = "gopay"

	resp, err := p.service.CreateOrder(ctx, req, "req-1")
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	payload, _ := json.Marshal(map[string]string{
		"order_id":           resp.TransactionRef,
		"transaction_status": "settlement",
	})
	if err := p.service.HandlePaymentNotification(ctx, payload, "req-2"); err != nil {
		t.Fatalf("HandlePaymentNotification() error = %v", err)
	}

	if got := p.repo.status(resp.OrderNumber); got != models.StatusCompleted {
		t.Errorf("order status = %s, want completed", got)
	}
	if got := p.ledger.Quantity(10); !got.Equal(decimal.NewFromInt(964)) {
		t.Errorf("coffee beans = %s, want 964 after settlement", got)
	}
	if got := p.ledger.Quantity(11); !got.Equal(decimal.NewFromInt(4700)) {
		t.Errorf("milk = %s, want 4700 after settlement", got)
	}
}

func TestCancelOrder_PendingLeavesStockAlone(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()

	resp, err := p.service.CreateOrder(ctx, cashCheckout(models.CartLine{MenuItemID: 1, Quantity: 2}), "req-1")
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	order, err := p.service.CancelOrder(ctx, resp.OrderNumber, "api", "req-2")
	if err != nil {
		t.Fatalf("CancelOrder() error = %v", err)
	}
	if order.Status != models.StatusCanceled {
		t.Errorf("status = %s, want canceled", order.Status)
	}
	if got := p.ledger.Quantity(10); !got.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("coffee beans = %s, want untouched 1000", got)
	}
}

func TestCancelOrder_CompletedRestoresStock(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()

	req := cashCheckout(models.CartLine{MenuItemID: 1, Quantity: 2})
	req.PaymentMethod = "qris"
	req.Acquirer = "gopay"

	resp, err := p.service.CreateOrder(ctx, req, "req-1")
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	payload, _ := json.Marshal(map[string]string{
		"order_id":           resp.TransactionRef,
		"transaction_status": "settlement",
	})
	if err := p.service.HandlePaymentNotification(ctx, payload, "req-2"); err != nil {
		t.Fatalf("HandlePaymentNotification() error = %v", err)
	}
	if got := p.ledger.Quantity(10); !got.Equal(decimal.NewFromInt(964)) {
		t.Fatalf("coffee beans = %s after settlement, want 964", got)
	}

	order, err := p.service.CancelOrder(ctx, resp.OrderNumber, "api", "req-3")
	if err != nil {
		t.Fatalf("CancelOrder() error = %v", err)
	}
	if order.Status != models.StatusCanceled {
		t.Errorf("status = %s, want canceled", order.Status)
	}
	if got := p.ledger.Quantity(10); !got.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("coffee beans = %s, want restored 1000", got)
	}
	if got := p.ledger.Quantity(11); !got.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("milk = %s, want restored 5000", got)
	}
}

func TestCancelOrder_RestoreFailureKeepsOrderCompleted(t *testing.T) {
	p := newPipeline()
	flaky := &flakyLedger{Ledger: p.ledger}
	p.service = NewService(p.repo, p.items, flaky, p.promos, p.gateway, nil, logger.New("order-service-test"))
	ctx := context.Background()

	req := cashCheckout(models.CartLine{MenuItemID: 1, Quantity: 2})
	req.PaymentMethod = "qris"
	req.Acquirer = "gopay"

	resp, err := p.service.CreateOrder(ctx, req, "req-1")
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	payload, _ := json.Marshal(map[string]string{
		"order_id":           resp.TransactionRef,
		"transaction_status": "settlement",
	})
	if err := p.service.HandlePaymentNotification(ctx, payload, "req-2"); err != nil {
		t.Fatalf("HandlePaymentNotification() error = %v", err)
	}

	flaky.failRestore = true
	if _, err := p.service.CancelOrder(ctx, resp.OrderNumber, "api", "req-3"); err == nil {
		t.Fatal("CancelOrder() succeeded despite restore failure")
	}

	// The order must not end up Canceled with the stock still deducted.
	if got := p.repo.status(resp.OrderNumber); got != models.StatusCompleted {
		t.Errorf("status = %s, want completed after failed restore", got)
	}
	if got := p.ledger.Quantity(10); !got.Equal(decimal.NewFromInt(964)) {
		t.Errorf("coffee beans = %s, want 964 still deducted", got)
	}

	// Once the ledger recovers, cancellation goes through and restocks.
	flaky.failRestore = false
	order, err := p.service.CancelOrder(ctx, resp.OrderNumber, "api", "req-4")
	if err != nil {
		t.Fatalf("retry CancelOrder() error = %v", err)
	}
	if order.Status != models.StatusCanceled {
		t.Errorf("status = %s, want canceled", order.Status)
	}
	if got := p.ledger.Quantity(10); !got.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("coffee beans = %s, want restored 1000", got)
	}
}

func TestCancelOrder_TerminalStatesRejected(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()

	resp, err := p.service.CreateOrder(ctx, cashCheckout(models.CartLine{MenuItemID: 1, Quantity: 1}), "req-1")
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if _, err := p.service.CancelOrder(ctx, resp.OrderNumber, "api", "req-2"); err != nil {
		t.Fatalf("first CancelOrder() error = %v", err)
	}

	_, err = p.service.CancelOrder(ctx, resp.OrderNumber, "api", "req-3")
	if !errors.Is(err, models.ErrOrderNotCancelable) {
		t.Errorf("second CancelOrder() error = %v, want not cancelable", err)
	}
}

func TestOrdersByUser(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()

	if _, err := p.service.CreateOrder(ctx, cashCheckout(models.CartLine{MenuItemID: 1, Quantity: 1}), "req-1"); err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	orders, err := p.service.OrdersByUser(ctx, 7)
	if err != nil {
		t.Fatalf("OrdersByUser() error = %v", err)
	}
	if len(orders) != 1 {
		t.Errorf("got %d orders, want 1", len(orders))
	}

	if _, err := p.service.OrdersByUser(ctx, 0); err == nil {
		t.Error("OrdersByUser(0) succeeded, want validation error")
	}
}
