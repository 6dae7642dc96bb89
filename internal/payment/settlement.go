package payment

import (
	"context"
	"fmt"

	"pos-system/internal/logger"
	"pos-system/internal/models"
	"pos-system/internal/stock"
)

// OrderStore is the slice of order persistence the reconciler needs
type OrderStore interface {
	PaymentByRef(ctx context.Context, ref string) (*models.Payment, error)
	OrderByID(ctx context.Context, id int64) (*models.Order, error)
	UpdatePaymentStatus(ctx context.Context, paymentID int64, status models.PaymentStatus) error
	// TransitionOrder moves an order between statuses only when the
	// current status matches from; reports whether it transitioned.
	TransitionOrder(ctx context.Context, orderID int64, from, to models.OrderStatus, changedBy string) (bool, error)
	// CompleteOrder transitions a Pending or OnProcess order to
	// Completed; reports whether this call made the transition.
	CompleteOrder(ctx context.Context, orderID int64, changedBy string) (bool, error)
	Requirements(ctx context.Context, orderID int64) (stock.Requirements, error)
}

// Reconciler consumes gateway notifications and settles orders. Ledger
// deduction happens at most once per order regardless of how many
// notifications arrive; the order's own status is the source of truth
// for whether deduction already happened.
type Reconciler struct {
	gateway Gateway
	orders  OrderStore
	ledger  stock.Ledger
	logger  *logger.Logger
}

// NewReconciler creates a settlement reconciler
func NewReconciler(gateway Gateway, orders OrderStore, ledger stock.Ledger, log *logger.Logger) *Reconciler {
	return &Reconciler{
		gateway: gateway,
		orders:  orders,
		ledger:  ledger,
		logger:  log,
	}
}

// HandleNotification processes one gateway callback. Re-delivery of the
// same notification, or a notification for an already settled order, is
// acknowledged as a no-op.
func (r *Reconciler) HandleNotification(ctx context.Context, payload []byte, requestID string) error {
	notification, err := r.gateway.ParseNotification(payload)
	if err != nil {
		return err
	}

	pay, err := r.orders.PaymentByRef(ctx, notification.OrderRef)
	if err != nil {
		return err
	}

	order, err := r.orders.OrderByID(ctx, pay.OrderID)
	if err != nil {
		return err
	}

	newStatus := MapStatus(notification.TransactionStatus, notification.FraudStatus)

	r.logger.Debug("notification_received",
		fmt.Sprintf("Notification for order %s: %s", order.Number, notification.TransactionStatus),
		requestID, map[string]interface{}{
			"order_number":       order.Number,
			"transaction_ref":    notification.OrderRef,
			"transaction_status": notification.TransactionStatus,
			"fraud_status":       notification.FraudStatus,
			"mapped_status":      string(newStatus),
		})

	// An order that already reached a terminal state ignores further
	// notifications; re-delivery is expected under at-least-once.
	if order.Status == models.StatusCompleted || order.Status == models.StatusFailed || order.Status == models.StatusCanceled {
		r.logger.Info("stale_notification",
			fmt.Sprintf("Order %s already %s, ignoring notification", order.Number, order.Status),
			requestID, map[string]interface{}{
				"order_number": order.Number,
				"order_status": string(order.Status),
			})
		return nil
	}

	if err := r.orders.UpdatePaymentStatus(ctx, pay.ID, newStatus); err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	switch newStatus {
	case models.PaymentSuccess:
		return r.settle(ctx, order, requestID)
	case models.PaymentFailed:
		transitioned, err := r.orders.TransitionOrder(ctx, order.ID, order.Status, models.StatusFailed, "settlement")
		if err != nil {
			return fmt.Errorf("failed to mark order failed: %w", err)
		}
		if transitioned {
			r.logger.Info("order_failed",
				fmt.Sprintf("Order %s failed at the gateway", order.Number),
				requestID, map[string]interface{}{"order_number": order.Number})
		}
		return nil
	default:
		return nil
	}
}

// settle claims the Completed transition and then deducts stock. Claiming
// first makes concurrent duplicate deliveries race on the status update
// instead of on the ledger, so deduction runs at most once.
func (r *Reconciler) settle(ctx context.Context, order *models.Order, requestID string) error {
	claimed, err := r.orders.CompleteOrder(ctx, order.ID, "settlement")
	if err != nil {
		return fmt.Errorf("failed to complete order: %w", err)
	}
	if !claimed {
		r.logger.Info("settlement_duplicate",
			fmt.Sprintf("Order %s already settled, skipping deduction", order.Number),
			requestID, map[string]interface{}{"order_number": order.Number})
		return nil
	}

	reqs, err := r.orders.Requirements(ctx, order.ID)
	if err != nil {
		r.revertSettlement(ctx, order, requestID)
		return fmt.Errorf("failed to load order requirements: %w", err)
	}

	if err := r.ledger.ReserveAll(ctx, reqs); err != nil {
		// The payment is recorded Success but the order stays in its
		// prior status so the discrepancy is auditable and retryable.
		r.revertSettlement(ctx, order, requestID)
		return fmt.Errorf("ledger deduction failed for order %s: %w", order.Number, err)
	}

	r.logger.Info("order_settled",
		fmt.Sprintf("Order %s settled, stock deducted", order.Number),
		requestID, map[string]interface{}{
			"order_number": order.Number,
			"ingredients":  len(reqs),
		})
	return nil
}

func (r *Reconciler) revertSettlement(ctx context.Context, order *models.Order, requestID string) {
	if _, err := r.orders.TransitionOrder(ctx, order.ID, models.StatusCompleted, order.Status, "settlement"); err != nil {
		r.logger.Error("settlement_revert_failed",
			fmt.Sprintf("Failed to revert order %s after deduction failure", order.Number),
			requestID, err, map[string]interface{}{"order_number": order.Number})
	}
}
