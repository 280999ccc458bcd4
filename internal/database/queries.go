package database

// Table queries
const (
	tableColumns = `id, status, active, created_at`

	GetTableByIDSQL = `SELECT ` + tableColumns + ` FROM tables WHERE id = $1 AND active`

	GetAllTablesSQL = `SELECT ` + tableColumns + ` FROM tables WHERE active ORDER BY id`

	GetTablesByStatusSQL = `SELECT ` + tableColumns + ` FROM tables WHERE active AND status = $1 ORDER BY id`

	InsertTableSQL = `
		INSERT INTO tables (status) VALUES ($1)
		RETURNING ` + tableColumns

	CompareAndSetTableStatusSQL = `
		UPDATE tables SET status = $3
		WHERE id = $1 AND status = $2 AND active`

	DeactivateTableSQL = `UPDATE tables SET active = FALSE WHERE id = $1 AND active`

	GetMostPopularTableSQL = `
		SELECT t.id, t.status, t.active, t.created_at, COUNT(o.id) AS order_count
		FROM tables t
		JOIN orders o ON o.table_id = t.id
		WHERE t.active
		GROUP BY t.id
		ORDER BY order_count DESC, t.id ASC
		LIMIT 1`
)

// Order queries
const (
	orderColumns = `id, table_id, client_name, status, created_at, updated_at`

	GetOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	GetAllOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at, id`

	GetOrdersByStatusSQL = `SELECT ` + orderColumns + ` FROM orders WHERE status = ANY($1) ORDER BY created_at, id`

	GetActiveOrderForTableSQL = `SELECT ` + orderColumns + ` FROM orders WHERE table_id = $1 AND status <> 'PAID'`

	OrderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`

	InsertOrderSQL = `
		INSERT INTO orders (id, table_id, client_name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`

	CompareAndSetOrderStatusSQL = `
		UPDATE orders SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`

	InsertOrderStatusLogSQL = `
		INSERT INTO order_status_log (order_id, status, changed_by, notes)
		VALUES ($1, $2, $3, $4)`

	GetOrderStatusHistorySQL = `
		SELECT status, changed_by, changed_at, notes
		FROM order_status_log
		WHERE order_id = $1
		ORDER BY changed_at ASC, id ASC`

	DeleteOrderSQL = `DELETE FROM orders WHERE id = $1`
)

// Order item queries
const (
	itemColumns = `id, order_id, product_id, start_time, end_time`

	GetOrderItemByIDSQL = `SELECT ` + itemColumns + ` FROM order_items WHERE id = $1`

	GetAllOrderItemsSQL = `SELECT ` + itemColumns + ` FROM order_items ORDER BY id`

	GetOrderItemsByOrderSQL = `SELECT ` + itemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY id`

	GetPendingOrderItemsSQL = `
		SELECT i.id, i.order_id, i.product_id, i.start_time, i.end_time
		FROM order_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.end_time IS NULL AND ($1::text IS NULL OR p.type = $1)
		ORDER BY i.id`

	InsertOrderItemSQL = `
		INSERT INTO order_items (order_id, product_id, start_time, end_time)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	MarkOrderItemStartedSQL = `
		UPDATE order_items SET start_time = $2
		WHERE id = $1 AND start_time IS NULL`

	MarkOrderItemFinishedSQL = `
		UPDATE order_items SET end_time = GREATEST($2, start_time)
		WHERE id = $1 AND start_time IS NOT NULL AND end_time IS NULL`

	OrderItemExistsSQL = `SELECT EXISTS (SELECT 1 FROM order_items WHERE id = $1)`

	DeleteOrderItemSQL = `DELETE FROM order_items WHERE id = $1`

	DeleteOrderItemsByOrderSQL = `DELETE FROM order_items WHERE order_id = $1`
)

// Product queries
const (
	productColumns = `id, name, price, estimated_time, type, active, created_at`

	GetProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	GetProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	GetAllProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY id`

	InsertProductSQL = `
		INSERT INTO products (name, price, estimated_time, type, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	UpdateProductSQL = `
		UPDATE products SET name = $2, price = $3, estimated_time = $4, type = $5, active = $6
		WHERE id = $1
		RETURNING created_at`

	DeactivateProductSQL = `UPDATE products SET active = FALSE WHERE id = $1`
)

// User queries
const (
	userColumns = `id, first_name, last_name, email, password_hash, role, active, created_at`

	GetUserByIDSQL = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	GetUserByEmailSQL = `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	GetAllUsersSQL = `SELECT ` + userColumns + ` FROM users ORDER BY id`

	InsertUserSQL = `
		INSERT INTO users (first_name, last_name, email, password_hash, role, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	UpdateUserSQL = `
		UPDATE users SET first_name = $2, last_name = $3, email = $4, password_hash = $5, role = $6, active = $7
		WHERE id = $1
		RETURNING created_at`

	DeactivateUserSQL = `UPDATE users SET active = FALSE WHERE id = $1`
)

// Survey queries
const (
	surveyColumns = `id, order_id, table_rating, restaurant_rating, waiter_rating, chef_rating, comment, created_at`

	GetSurveyByIDSQL = `SELECT ` + surveyColumns + ` FROM surveys WHERE id = $1`

	GetSurveyByOrderSQL = `SELECT ` + surveyColumns + ` FROM surveys WHERE order_id = $1`

	GetAllSurveysSQL = `SELECT ` + surveyColumns + ` FROM surveys ORDER BY id`

	GetBestSurveysSQL = `
		SELECT ` + surveyColumns + `
		FROM surveys
		ORDER BY (table_rating + restaurant_rating + waiter_rating + chef_rating) DESC, id ASC
		LIMIT $1`

	InsertSurveySQL = `
		INSERT INTO surveys (order_id, table_rating, restaurant_rating, waiter_rating, chef_rating, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	UpdateSurveySQL = `
		UPDATE surveys SET table_rating = $2, restaurant_rating = $3, waiter_rating = $4, chef_rating = $5, comment = $6
		WHERE id = $1
		RETURNING order_id, created_at`

	DeleteSurveySQL = `DELETE FROM surveys WHERE id = $1`
)
