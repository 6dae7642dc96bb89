package order

import (
	"context"
	"time"

	"pos-system/internal/models"
	"pos-system/internal/stock"
)

// Repository is the persistence surface of the order pipeline. The
// settlement reconciler consumes a subset of it through its own
// interface.
type Repository interface {
	// CreateOrder persists the order, its lines, the requirement
	// snapshot and the payment record in one transaction. Nothing is
	// left behind if any part fails.
	CreateOrder(ctx context.Context, order *models.Order, pay *models.Payment, reqs stock.Requirements) error
	OrderByNumber(ctx context.Context, number string) (*models.Order, error)
	OrderByID(ctx context.Context, id int64) (*models.Order, error)
	OrdersByUser(ctx context.Context, userID int64) ([]models.Order, error)
	NextOrderSequence(ctx context.Context, date time.Time) (int, error)
	TransitionOrder(ctx context.Context, orderID int64, from, to models.OrderStatus, changedBy string) (bool, error)
	CompleteOrder(ctx context.Context, orderID int64, changedBy string) (bool, error)
	PaymentByRef(ctx context.Context, ref string) (*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, paymentID int64, status models.PaymentStatus) error
	Requirements(ctx context.Context, orderID int64) (stock.Requirements, error)
}
