// Package order runs the checkout pipeline: resolve, check stock, price,
// charge, persist. Stock is only deducted later, at settlement.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pos-system/internal/catalog"
	"pos-system/internal/logger"
	"pos-system/internal/models"
	"pos-system/internal/payment"
	"pos-system/internal/pricing"
	"pos-system/internal/recipe"
	"pos-system/internal/stock"
)

// EventPublisher pushes order status events to interested consumers.
// May be nil when the service runs without a broker.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event interface{}) error
}

// Service is the order pipeline. The same instance serves the HTTP
// handler and the async checkout worker.
type Service struct {
	repo       Repository
	resolver   *recipe.Resolver
	ledger     stock.Ledger
	discounts  *pricing.DiscountEngine
	promotions pricing.PromotionStore
	gateway    payment.Gateway
	reconciler *payment.Reconciler
	events     EventPublisher
	logger     *logger.Logger

	defaultOutletID     int64
	defaultCustomerType string
}

// NewService wires the pipeline stages together
func NewService(repo Repository, store catalog.Store, ledger stock.Ledger, promotions pricing.PromotionStore, gateway payment.Gateway, events EventPublisher, log *logger.Logger) *Service {
	return &Service{
		repo:       repo,
		resolver:   recipe.NewResolver(store),
		ledger:     ledger,
		discounts:  pricing.NewDiscountEngine(promotions, pricing.SubtotalEvaluator{}, log),
		promotions: promotions,
		gateway:    gateway,
		reconciler: payment.NewReconciler(gateway, repo, ledger, log),
		events:     events,
		logger:     log,
	}
}

// SetDefaults configures outlet fallbacks applied to requests that omit
// outlet context.
func (s *Service) SetDefaults(outletID int64, customerType string) {
	s.defaultOutletID = outletID
	s.defaultCustomerType = customerType
}

// CreateOrder runs a checkout request through the full pipeline and
// persists the resulting order in Pending status. Nothing is written if
// any stage fails, so a rejected checkout leaves no partial record.
func (s *Service) CreateOrder(ctx context.Context, req *models.CheckoutRequest, requestID string) (*models.CheckoutResponse, error) {
	if req.OutletID == 0 && s.defaultOutletID > 0 {
		req.OutletID = s.defaultOutletID
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	customerType := req.CustomerType
	if customerType == "" {
		customerType = s.defaultCustomerType
	}
	if customerType == "" {
		customerType = models.CustomerTypeAll
	}

	lines, reqs, err := s.resolver.Resolve(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	// Availability gate only; the actual deduction waits for settlement.
	if err := s.ledger.CheckAll(ctx, reqs); err != nil {
		return nil, err
	}

	subtotal := recipe.Subtotal(lines)
	now := time.Now()

	discount, err := s.discounts.Apply(ctx, pricing.DiscountInput{
		OutletID:     req.OutletID,
		CustomerType: customerType,
		VoucherCode:  req.VoucherCode,
		Lines:        lines,
		Subtotal:     subtotal,
		At:           now,
	})
	if err != nil {
		return nil, err
	}

	// The voucher quota was consumed during discount evaluation; the
	// order insert is the commit point, so anything that fails between
	// here and there gives the unit back.
	persisted := false
	if discount.VoucherID != 0 {
		defer func() {
			if !persisted {
				s.releaseVoucher(ctx, discount.VoucherID, req.VoucherCode, requestID)
			}
		}()
	}

	afterDiscount := subtotal.Sub(discount.Total)

	charges, err := s.promotions.ActiveCharges(ctx, req.OutletID, customerType)
	if err != nil {
		return nil, fmt.Errorf("failed to load charges: %w", err)
	}
	taxes := pricing.ApplyCharges(charges, lines, afterDiscount, customerType)

	grandTotal := afterDiscount.Add(taxes.TotalTax).Add(taxes.TotalService)

	seq, err := s.repo.NextOrderSequence(ctx, now)
	if err != nil {
		return nil, err
	}
	number := models.GenerateOrderNumber(now, seq)

	order := &models.Order{
		Number:          number,
		UserID:          req.UserID,
		OutletID:        req.OutletID,
		CustomerType:    customerType,
		Type:            models.OrderType(req.OrderType),
		Status:          models.StatusPending,
		Lines:           lines,
		Subtotal:        subtotal,
		AutoDiscount:    discount.Auto,
		ManualDiscount:  discount.Manual,
		VoucherDiscount: discount.Voucher,
		TotalDiscount:   discount.Total,
		VoucherCode:     req.VoucherCode,
		PromotionIDs:    discount.PromotionIDs,
		TotalTax:        taxes.TotalTax,
		TotalService:    taxes.TotalService,
		Charges:         taxes.Breakdown,
		GrandTotal:      grandTotal,
	}

	pay, actions, err := s.collectPayment(ctx, req, order)
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateOrder(ctx, order, pay, reqs); err != nil {
		return nil, err
	}
	persisted = true

	s.publishEvent(ctx, models.NewOrderEvent(number, "", string(models.StatusPending), "order-service", grandTotal), requestID)

	s.logger.Info("order_created",
		fmt.Sprintf("Order %s created for user %d", number, req.UserID),
		requestID, map[string]interface{}{
			"order_number":   number,
			"user_id":        req.UserID,
			"outlet_id":      req.OutletID,
			"payment_method": req.PaymentMethod,
			"subtotal":       subtotal.String(),
			"total_discount": discount.Total.String(),
			"grand_total":    grandTotal.String(),
		})

	return &models.CheckoutResponse{
		OrderNumber:    number,
		Status:         order.Status,
		Subtotal:       subtotal,
		TotalDiscount:  discount.Total,
		TotalTax:       taxes.TotalTax,
		TotalService:   taxes.TotalService,
		GrandTotal:     grandTotal,
		Charges:        taxes.Breakdown,
		PaymentStatus:  pay.Status,
		PaymentActions: actions,
		TransactionRef: pay.TransactionRef,
	}, nil
}

// collectPayment builds the payment record, charging the gateway for
// non-cash methods. The gateway is called before anything is persisted
// so a gateway failure leaves no record behind.
func (s *Service) collectPayment(ctx context.Context, req *models.CheckoutRequest, order *models.Order) (*models.Payment, map[string]string, error) {
	method := models.PaymentMethod(req.PaymentMethod)

	pay := &models.Payment{
		Amount: order.GrandTotal,
		Method: method,
		Status: models.PaymentPending,
	}

	if method == models.MethodCash {
		pay.TransactionRef = "CASH-" + uuid.NewString()
		return pay, nil, nil
	}

	charge, err := s.gateway.CreateTransaction(ctx, &payment.ChargeRequest{
		OrderRef:    order.Number,
		Amount:      order.GrandTotal,
		Method:      method,
		PhoneNumber: req.PhoneNumber,
		Acquirer:    req.Acquirer,
		UserID:      req.UserID,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create gateway transaction: %w", err)
	}

	pay.TransactionRef = charge.TransactionRef
	pay.GatewayPayload = charge.Raw
	return pay, charge.Actions, nil
}

// CancelOrder cancels an order by number. Stock is restored only when
// the order had already settled; Pending and OnProcess orders never
// deducted anything, so there is nothing to restore.
func (s *Service) CancelOrder(ctx context.Context, number, canceledBy, requestID string) (*models.Order, error) {
	order, err := s.repo.OrderByNumber(ctx, number)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case models.StatusPending, models.StatusOnProcess:
		transitioned, err := s.repo.TransitionOrder(ctx, order.ID, order.Status, models.StatusCanceled, canceledBy)
		if err != nil {
			return nil, err
		}
		if !transitioned {
			return nil, fmt.Errorf("%w: order %s changed status concurrently", models.ErrOrderNotCancelable, number)
		}

	case models.StatusCompleted:
		transitioned, err := s.repo.TransitionOrder(ctx, order.ID, models.StatusCompleted, models.StatusCanceled, canceledBy)
		if err != nil {
			return nil, err
		}
		if !transitioned {
			return nil, fmt.Errorf("%w: order %s changed status concurrently", models.ErrOrderNotCancelable, number)
		}

		// The cancellation only holds if the deducted stock actually goes
		// back; on failure the order returns to Completed so a later
		// cancel can retry the restore.
		reqs, err := s.repo.Requirements(ctx, order.ID)
		if err != nil {
			s.revertCancellation(ctx, order.ID, number, requestID)
			return nil, fmt.Errorf("failed to load requirements for restore: %w", err)
		}
		if err := s.ledger.RestoreAll(ctx, reqs); err != nil {
			s.revertCancellation(ctx, order.ID, number, requestID)
			return nil, fmt.Errorf("failed to restore stock for order %s: %w", number, err)
		}

	default:
		return nil, fmt.Errorf("%w: order %s is %s", models.ErrOrderNotCancelable, number, order.Status)
	}

	s.publishEvent(ctx, models.NewOrderEvent(number, string(order.Status), string(models.StatusCanceled), canceledBy, order.GrandTotal), requestID)

	s.logger.Info("order_canceled",
		fmt.Sprintf("Order %s canceled from %s", number, order.Status),
		requestID, map[string]interface{}{
			"order_number": number,
			"old_status":   string(order.Status),
			"canceled_by":  canceledBy,
		})

	order.Status = models.StatusCanceled
	return order, nil
}

// releaseVoucher returns a redeemed quota unit after a checkout that
// never produced an order. Best effort; a failed restore is logged.
func (s *Service) releaseVoucher(ctx context.Context, voucherID int64, code, requestID string) {
	if err := s.promotions.RestoreVoucher(ctx, voucherID); err != nil {
		s.logger.Error("voucher_restore_failed",
			fmt.Sprintf("Failed to return quota for voucher %q", code),
			requestID, err, map[string]interface{}{"voucher_id": voucherID})
	}
}

func (s *Service) revertCancellation(ctx context.Context, orderID int64, number, requestID string) {
	if _, err := s.repo.TransitionOrder(ctx, orderID, models.StatusCanceled, models.StatusCompleted, "order-service"); err != nil {
		s.logger.Error("cancel_revert_failed",
			fmt.Sprintf("Failed to revert order %s after restore failure", number),
			requestID, err, map[string]interface{}{"order_number": number})
	}
}

// OrdersByUser returns a user's order history, newest first
func (s *Service) OrdersByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	if userID <= 0 {
		return nil, &models.ValidationError{Field: "user_id", Message: "user id is required"}
	}
	return s.repo.OrdersByUser(ctx, userID)
}

// OrderByNumber returns one order with its lines
func (s *Service) OrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	return s.repo.OrderByNumber(ctx, number)
}

// HandlePaymentNotification forwards a gateway callback to the
// settlement reconciler.
func (s *Service) HandlePaymentNotification(ctx context.Context, payload []byte, requestID string) error {
	return s.reconciler.HandleNotification(ctx, payload, requestID)
}

func (s *Service) publishEvent(ctx context.Context, event *models.OrderEvent, requestID string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		// Event delivery is best effort; the order itself is already
		// persisted.
		s.logger.Error("event_publish_failed",
			fmt.Sprintf("Failed to publish event for order %s", event.OrderNumber),
			requestID, err, map[string]interface{}{"order_number": event.OrderNumber})
	}
}
