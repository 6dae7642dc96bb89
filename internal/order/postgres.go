package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"pos-system/internal/database"
	"pos-system/internal/models"
	"pos-system/internal/stock"
)

// PostgresRepository persists orders, payments and the status log
type PostgresRepository struct {
	db *database.DB
}

// NewPostgresRepository creates a repository backed by the shared pool
func NewPostgresRepository(db *database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateOrder writes the order, its lines, the ingredient requirement
// snapshot, the payment record and the initial status log entry in a
// single transaction.
func (r *PostgresRepository) CreateOrder(ctx context.Context, order *models.Order, pay *models.Payment, reqs stock.Requirements) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	chargesJSON, err := json.Marshal(order.Charges)
	if err != nil {
		return fmt.Errorf("failed to marshal charges: %w", err)
	}

	err = tx.QueryRow(ctx, database.InsertOrderSQL,
		order.Number, order.UserID, order.OutletID, order.CustomerType,
		order.Type, order.Status,
		order.Subtotal, order.AutoDiscount, order.ManualDiscount,
		order.VoucherDiscount, order.TotalDiscount, order.VoucherCode,
		order.TotalTax, order.TotalService, chargesJSON, order.GrandTotal,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Lines {
		line := &order.Lines[i]
		line.OrderID = order.ID

		toppingsJSON, err := json.Marshal(line.Toppings)
		if err != nil {
			return fmt.Errorf("failed to marshal toppings: %w", err)
		}
		addonsJSON, err := json.Marshal(line.Addons)
		if err != nil {
			return fmt.Errorf("failed to marshal addons: %w", err)
		}

		_, err = tx.Exec(ctx, database.InsertOrderLineSQL,
			order.ID, line.MenuItemID, line.Name, line.Quantity,
			line.BasePrice, toppingsJSON, addonsJSON, line.Subtotal)
		if err != nil {
			return fmt.Errorf("failed to insert order line: %w", err)
		}
	}

	for ingredientID, quantity := range reqs {
		_, err = tx.Exec(ctx, database.InsertOrderIngredientSQL, order.ID, ingredientID, quantity)
		if err != nil {
			return fmt.Errorf("failed to insert order ingredient: %w", err)
		}
	}

	pay.OrderID = order.ID
	err = tx.QueryRow(ctx, database.InsertPaymentSQL,
		pay.OrderID, pay.Amount, pay.Method, pay.Status,
		pay.TransactionRef, pay.GatewayPayload,
	).Scan(&pay.ID, &pay.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	_, err = tx.Exec(ctx, database.InsertOrderStatusLogSQL,
		order.ID, order.Status, "order-service", nil)
	if err != nil {
		return fmt.Errorf("failed to insert status log: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}
	return nil
}

// OrderByNumber loads an order and its lines by order number
func (r *PostgresRepository) OrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	order, err := r.scanOrder(r.db.QueryRow(ctx, database.GetOrderByNumberSQL, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &models.ReferenceNotFoundError{Entity: "order", Code: number}
		}
		return nil, fmt.Errorf("failed to get order %s: %w", number, err)
	}

	if err := r.loadLines(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// OrderByID loads an order and its lines by primary key
func (r *PostgresRepository) OrderByID(ctx context.Context, id int64) (*models.Order, error) {
	order, err := r.scanOrder(r.db.QueryRow(ctx, database.GetOrderByIDSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &models.ReferenceNotFoundError{Entity: "order", ID: id}
		}
		return nil, fmt.Errorf("failed to get order %d: %w", id, err)
	}

	if err := r.loadLines(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// OrdersByUser returns a user's orders, newest first
func (r *PostgresRepository) OrdersByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	rows, err := r.db.Query(ctx, database.GetOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get orders for user %d: %w", userID, err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := r.scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		if err := r.loadLines(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// NextOrderSequence returns the next daily sequence for order numbers
func (r *PostgresRepository) NextOrderSequence(ctx context.Context, date time.Time) (int, error) {
	prefix := fmt.Sprintf("ORD_%s_%%", date.Format("20060102"))

	var seq int
	if err := r.db.QueryRow(ctx, database.GetNextOrderNumberSQL, prefix).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to get next order sequence: %w", err)
	}
	return seq, nil
}

// TransitionOrder moves an order from one status to another, returning
// false without error if the order is no longer in the expected status.
func (r *PostgresRepository) TransitionOrder(ctx context.Context, orderID int64, from, to models.OrderStatus, changedBy string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, database.UpdateOrderStatusSQL, to, orderID, from)
	if err != nil {
		return false, fmt.Errorf("failed to transition order %d: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if err := r.logStatus(ctx, orderID, to, changedBy); err != nil {
		return true, err
	}
	return true, nil
}

// CompleteOrder marks a live order completed. Terminal orders, including
// ones canceled since the caller last read the status, are left alone.
// The returned bool reports whether this call claimed the completion.
func (r *PostgresRepository) CompleteOrder(ctx context.Context, orderID int64, changedBy string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, database.UpdateOrderCompletedSQL, models.StatusCompleted, orderID)
	if err != nil {
		return false, fmt.Errorf("failed to complete order %d: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if err := r.logStatus(ctx, orderID, models.StatusCompleted, changedBy); err != nil {
		return true, err
	}
	return true, nil
}

// PaymentByRef loads a payment record by its gateway transaction reference
func (r *PostgresRepository) PaymentByRef(ctx context.Context, ref string) (*models.Payment, error) {
	var pay models.Payment
	err := r.db.QueryRow(ctx, database.GetPaymentByRefSQL, ref).Scan(
		&pay.ID, &pay.OrderID, &pay.Amount, &pay.Method, &pay.Status,
		&pay.TransactionRef, &pay.GatewayPayload, &pay.CreatedAt, &pay.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &models.ReferenceNotFoundError{Entity: "payment", Code: ref}
		}
		return nil, fmt.Errorf("failed to get payment %s: %w", ref, err)
	}
	return &pay, nil
}

// UpdatePaymentStatus records the latest gateway outcome on the payment
func (r *PostgresRepository) UpdatePaymentStatus(ctx context.Context, paymentID int64, status models.PaymentStatus) error {
	if err := r.db.Exec(ctx, database.UpdatePaymentStatusSQL, status, paymentID); err != nil {
		return fmt.Errorf("failed to update payment %d: %w", paymentID, err)
	}
	return nil
}

// Requirements reads back the ingredient snapshot taken at order creation
func (r *PostgresRepository) Requirements(ctx context.Context, orderID int64) (stock.Requirements, error) {
	rows, err := r.db.Query(ctx, database.GetOrderIngredientsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order ingredients: %w", err)
	}
	defer rows.Close()

	reqs := stock.Requirements{}
	for rows.Next() {
		var ingredientID int64
		var quantity decimal.Decimal
		if err := rows.Scan(&ingredientID, &quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order ingredient: %w", err)
		}
		reqs[ingredientID] = quantity
	}
	return reqs, rows.Err()
}

func (r *PostgresRepository) logStatus(ctx context.Context, orderID int64, status models.OrderStatus, changedBy string) error {
	if err := r.db.Exec(ctx, database.InsertOrderStatusLogSQL, orderID, status, changedBy, nil); err != nil {
		return fmt.Errorf("failed to log status change: %w", err)
	}
	return nil
}

func (r *PostgresRepository) scanOrder(row pgx.Row) (*models.Order, error) {
	var order models.Order
	var chargesJSON []byte

	err := row.Scan(
		&order.ID, &order.Number, &order.UserID, &order.OutletID,
		&order.CustomerType, &order.Type, &order.Status,
		&order.Subtotal, &order.AutoDiscount, &order.ManualDiscount,
		&order.VoucherDiscount, &order.TotalDiscount, &order.VoucherCode,
		&order.TotalTax, &order.TotalService, &chargesJSON, &order.GrandTotal,
		&order.CreatedAt, &order.UpdatedAt, &order.CompletedAt)
	if err != nil {
		return nil, err
	}

	if len(chargesJSON) > 0 {
		if err := json.Unmarshal(chargesJSON, &order.Charges); err != nil {
			return nil, fmt.Errorf("failed to unmarshal charges: %w", err)
		}
	}
	return &order, nil
}

func (r *PostgresRepository) loadLines(ctx context.Context, order *models.Order) error {
	rows, err := r.db.Query(ctx, database.GetOrderLinesSQL, order.ID)
	if err != nil {
		return fmt.Errorf("failed to get order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line models.OrderLine
		var toppingsJSON, addonsJSON []byte

		err := rows.Scan(
			&line.ID, &line.OrderID, &line.MenuItemID, &line.Name,
			&line.Quantity, &line.BasePrice, &toppingsJSON, &addonsJSON,
			&line.Subtotal, &line.Printed)
		if err != nil {
			return fmt.Errorf("failed to scan order line: %w", err)
		}

		if err := json.Unmarshal(toppingsJSON, &line.Toppings); err != nil {
			return fmt.Errorf("failed to unmarshal toppings: %w", err)
		}
		if err := json.Unmarshal(addonsJSON, &line.Addons); err != nil {
			return fmt.Errorf("failed to unmarshal addons: %w", err)
		}
		order.Lines = append(order.Lines, line)
	}
	return rows.Err()
}
