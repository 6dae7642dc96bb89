package database

// Order queries
const (
	InsertOrderSQL = `
		INSERT INTO orders (number, user_id, outlet_id, customer_type, type, status,
			subtotal, auto_discount, manual_discount, voucher_discount, total_discount,
			voucher_code, total_tax, total_service, charges, grand_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at`

	InsertOrderLineSQL = `
		INSERT INTO order_lines (order_id, menu_item_id, name, quantity, base_price, toppings, addons, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	InsertOrderIngredientSQL = `
		INSERT INTO order_ingredients (order_id, ingredient_id, quantity)
		VALUES ($1, $2, $3)`

	InsertOrderStatusLogSQL = `
		INSERT INTO order_status_log (order_id, status, changed_by, notes)
		VALUES ($1, $2, $3, $4)`

	UpdateOrderStatusSQL = `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`

	UpdateOrderCompletedSQL = `
		UPDATE orders SET status = $1, completed_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status IN ('pending', 'on_process')`

	GetOrderByNumberSQL = `
		SELECT id, number, user_id, outlet_id, customer_type, type, status,
			subtotal, auto_discount, manual_discount, voucher_discount, total_discount,
			voucher_code, total_tax, total_service, charges, grand_total,
			created_at, updated_at, completed_at
		FROM orders WHERE number = $1`

	GetOrderByIDSQL = `
		SELECT id, number, user_id, outlet_id, customer_type, type, status,
			subtotal, auto_discount, manual_discount, voucher_discount, total_discount,
			voucher_code, total_tax, total_service, charges, grand_total,
			created_at, updated_at, completed_at
		FROM orders WHERE id = $1`

	GetOrdersByUserSQL = `
		SELECT id, number, user_id, outlet_id, customer_type, type, status,
			subtotal, auto_discount, manual_discount, voucher_discount, total_discount,
			voucher_code, total_tax, total_service, charges, grand_total,
			created_at, updated_at, completed_at
		FROM orders WHERE user_id = $1
		ORDER BY created_at DESC`

	GetOrderLinesSQL = `
		SELECT id, order_id, menu_item_id, name, quantity, base_price, toppings, addons, subtotal, printed
		FROM order_lines WHERE order_id = $1
		ORDER BY id ASC`

	GetOrderIngredientsSQL = `
		SELECT ingredient_id, quantity
		FROM order_ingredients WHERE order_id = $1`

	GetNextOrderNumberSQL = `
		SELECT COALESCE(MAX(CAST(SUBSTRING(number FROM 'ORD_[0-9]{8}_([0-9]{3})') AS INTEGER)), 0) + 1
		FROM orders
		WHERE number LIKE $1`
)

// Payment queries
const (
	InsertPaymentSQL = `
		INSERT INTO payments (order_id, amount, method, status, transaction_ref, gateway_payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	UpdatePaymentStatusSQL = `
		UPDATE payments SET status = $1, updated_at = NOW()
		WHERE id = $2`

	GetPaymentByRefSQL = `
		SELECT id, order_id, amount, method, status, transaction_ref, gateway_payload, created_at, updated_at
		FROM payments WHERE transaction_ref = $1`
)

// Ingredient queries used by the stock ledger
const (
	GetIngredientsByIDsSQL = `
		SELECT id, name, unit, quantity, min_stock, max_stock, expired_at, status
		FROM ingredients WHERE id = ANY($1)
		ORDER BY id ASC`

	ReserveIngredientSQL = `
		UPDATE ingredients SET quantity = quantity - $1, updated_at = NOW()
		WHERE id = $2 AND quantity >= $1
		RETURNING quantity`

	RestoreIngredientSQL = `
		UPDATE ingredients SET quantity = quantity + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING quantity`

	GetIngredientQuantitySQL = `
		SELECT quantity FROM ingredients WHERE id = $1`

	RefreshIngredientStatusSQL = `
		UPDATE ingredients SET status = CASE
			WHEN expired_at IS NOT NULL AND expired_at <= NOW() THEN 'expired'
			WHEN quantity = 0 THEN 'out_of_stock'
			WHEN quantity <= min_stock THEN 'low'
			WHEN max_stock > 0 AND quantity > max_stock THEN 'overstocked'
			ELSE 'available'
		END
		WHERE id = ANY($1)`
)

// Promotion, voucher and charge queries
const (
	GetActiveAutoPromotionsSQL = `
		SELECT id, name, outlet_id, condition, discount_type, value, starts_at, ends_at, active
		FROM automatic_promotions
		WHERE active = TRUE AND outlet_id = $1 AND starts_at <= $2 AND ends_at >= $2`

	GetActiveManualPromotionSQL = `
		SELECT id, name, outlet_id, customer_type, discount_type, value, active
		FROM manual_promotions
		WHERE active = TRUE AND outlet_id = $1 AND (customer_type = 'all' OR customer_type = $2)
		LIMIT 1`

	GetVoucherByCodeSQL = `
		SELECT id, code, discount_type, value, quota, starts_at, ends_at, outlet_ids, active
		FROM vouchers WHERE code = $1`

	RedeemVoucherSQL = `
		UPDATE vouchers
		SET quota = quota - 1, active = (quota - 1 > 0), updated_at = NOW()
		WHERE id = $1 AND active = TRUE AND quota > 0
		RETURNING quota`

	RestoreVoucherSQL = `
		UPDATE vouchers
		SET quota = quota + 1, active = TRUE, updated_at = NOW()
		WHERE id = $1
		RETURNING quota`

	GetActiveChargesSQL = `
		SELECT id, name, kind, percentage, fixed_fee, outlet_id, customer_type, menu_item_ids, active
		FROM tax_service_charges
		WHERE active = TRUE AND outlet_id = $1 AND (customer_type = 'all' OR customer_type = $2)`
)

// Catalog queries
const (
	GetMenuItemSQL = `
		SELECT id, name, price FROM menu_items WHERE id = $1`

	GetMenuItemRecipeSQL = `
		SELECT ingredient_id, quantity FROM menu_item_recipes WHERE menu_item_id = $1`

	GetToppingSQL = `
		SELECT id, name, price FROM toppings WHERE id = $1`

	GetToppingRecipeSQL = `
		SELECT ingredient_id, quantity FROM topping_recipes WHERE topping_id = $1`

	GetAddonOptionSQL = `
		SELECT id, addon_id, name, price FROM addon_options WHERE id = $1`

	GetAddonOptionRecipeSQL = `
		SELECT ingredient_id, quantity FROM addon_option_recipes WHERE addon_option_id = $1`
)

// Worker queries
const (
	InsertWorkerSQL = `
		INSERT INTO workers (name, type, status)
		VALUES ($1, $2, 'online')
		ON CONFLICT (name) DO UPDATE SET
			status = 'online',
			last_seen = NOW()
		RETURNING id`

	UpdateWorkerStatusSQL = `
		UPDATE workers SET status = $1, last_seen = NOW()
		WHERE name = $2`

	UpdateWorkerProcessedSQL = `
		UPDATE workers SET last_seen = NOW(), orders_processed = orders_processed + $1
		WHERE name = $2`

	CheckWorkerOnlineSQL = `
		SELECT COUNT(*) FROM workers WHERE name = $1 AND status = 'online'`
)
