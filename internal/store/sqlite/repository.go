// Package sqlite is an embedded implementation of orders.Repository and
// orders.Routines used for local development and tests.
//
// The database runs with a single connection, so every transaction is
// serialized by the pool; that single writer is the per-order row lock the
// Postgres store gets from SELECT ... FOR UPDATE.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/matheusmosca/scm-orders/internal/orders"
	"github.com/shopspring/decimal"
)

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository is the SQLite implementation of orders.Repository and orders.Routines.
type Repository struct {
	db       *sql.DB
	routines bool
}

// Option configures a Repository.
type Option func(*Repository)

// WithoutRoutines makes PlaceOrder and AddOrderItem report
// orders.ErrRoutineUnavailable, forcing callers onto the manual path.
func WithoutRoutines() Option {
	return func(r *Repository) { r.routines = false }
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(path string, opts ...Option) (*Repository, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// One connection: a single writer, and ":memory:" stays one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	r := &Repository{db: db, routines: true}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Ping checks the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close releases the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Tx wraps a SQL transaction
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Commit() error {
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// BeginTx starts a new transaction
func (r *Repository) BeginTx(ctx context.Context) (orders.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

func sqlTx(tx orders.Tx) *sql.Tx {
	return tx.(*Tx).tx
}

// Write path

func (r *Repository) CustomerExists(ctx context.Context, tx orders.Tx, customerID int64) (bool, error) {
	return customerExists(ctx, sqlTx(tx), customerID)
}

func (r *Repository) InsertOrder(ctx context.Context, tx orders.Tx, order *orders.Order) error {
	return insertOrder(ctx, sqlTx(tx), order)
}

// GetOrderForUpdate reads the header inside tx. The single connection already
// excludes every other writer until tx ends.
func (r *Repository) GetOrderForUpdate(ctx context.Context, tx orders.Tx, orderID int64) (*orders.Order, error) {
	return getOrder(ctx, sqlTx(tx), orderID)
}

func (r *Repository) GetProductSnapshot(ctx context.Context, tx orders.Tx, productID int64) (*orders.ProductSnapshot, error) {
	return productSnapshot(ctx, sqlTx(tx), productID)
}

func (r *Repository) InsertOrderLine(ctx context.Context, tx orders.Tx, line *orders.OrderLine) error {
	res, err := sqlTx(tx).ExecContext(ctx, `
		INSERT INTO order_lines (order_id, product_id, quantity, price)
		VALUES (?, ?, ?, ?)
	`, line.OrderID, line.ProductID, line.Quantity, line.UnitPrice.String())
	if err != nil {
		return fmt.Errorf("sqlite: insert order line: %w", err)
	}
	line.ID, err = res.LastInsertId()
	return err
}

func (r *Repository) RecomputeOrderTotal(ctx context.Context, tx orders.Tx, orderID int64) (decimal.Decimal, error) {
	return recomputeTotal(ctx, sqlTx(tx), orderID)
}

func (r *Repository) UpdateOrderStatus(ctx context.Context, tx orders.Tx, orderID int64, status orders.Status) error {
	res, err := sqlTx(tx).ExecContext(ctx, `UPDATE orders SET status = ? WHERE order_id = ?`, string(status), orderID)
	if err != nil {
		return fmt.Errorf("sqlite: update status: %w", err)
	}
	return requireRow(res, orders.ErrOrderNotFound)
}

func (r *Repository) MarkOrderPaid(ctx context.Context, tx orders.Tx, orderID int64) (bool, error) {
	res, err := sqlTx(tx).ExecContext(ctx, `
		UPDATE orders SET payment_status = ?
		WHERE order_id = ? AND payment_status != ?
	`, string(orders.PaymentStatusPaid), orderID, string(orders.PaymentStatusPaid))
	if err != nil {
		return false, fmt.Errorf("sqlite: mark paid: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *Repository) HasSuccessfulPayment(ctx context.Context, tx orders.Tx, orderID int64) (bool, error) {
	var exists bool
	err := sqlTx(tx).QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM payments WHERE order_id = ? AND status = ? AND flagged = 0)
	`, orderID, string(orders.PaymentStateSuccess)).Scan(&exists)
	return exists, err
}

func (r *Repository) InsertPayment(ctx context.Context, tx orders.Tx, p *orders.Payment) error {
	res, err := sqlTx(tx).ExecContext(ctx, `
		INSERT INTO payments (order_id, amount, method, status, flagged, payment_date)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.OrderID, p.Amount.String(), p.Method, string(p.Status), p.Flagged, formatTime(p.PaidAt))
	if err != nil {
		return fmt.Errorf("sqlite: insert payment: %w", err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

// Routines

// PlaceOrder creates the order header in one store-side transaction.
func (r *Repository) PlaceOrder(ctx context.Context, customerID int64, priority orders.Priority) (int64, error) {
	if !r.routines {
		return 0, orders.ErrRoutineUnavailable
	}

	var orderID int64
	err := r.atomically(ctx, "place_order", 0, func(q querier) error {
		ok, err := customerExists(ctx, q, customerID)
		if err != nil {
			return err
		}
		if !ok {
			return orders.ErrInvalidCustomer
		}
		order := orders.NewOrder(customerID, priority)
		if err := insertOrder(ctx, q, order); err != nil {
			return err
		}
		orderID = order.ID
		return nil
	})
	return orderID, err
}

// AddOrderItem locks the order, copies the catalog price into a new line and
// rewrites the total in one store-side transaction. It returns the aggregate
// stock it read.
func (r *Repository) AddOrderItem(ctx context.Context, orderID, productID int64, quantity int, policy orders.StockPolicy) (int64, error) {
	if !r.routines {
		return 0, orders.ErrRoutineUnavailable
	}
	if quantity <= 0 {
		return 0, orders.ErrInvalidQuantity
	}

	var stock int64
	err := r.atomically(ctx, "add_order_item", orderID, func(q querier) error {
		if _, err := getOrder(ctx, q, orderID); err != nil {
			return err
		}
		product, err := productSnapshot(ctx, q, productID)
		if err != nil {
			return err
		}
		if err := policy.Check(product, quantity); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO order_lines (order_id, product_id, quantity, price)
			SELECT ?, product_id, ?, price FROM products WHERE product_id = ?
		`, orderID, quantity, productID); err != nil {
			return fmt.Errorf("sqlite: insert order line: %w", err)
		}
		if _, err := recomputeTotal(ctx, q, orderID); err != nil {
			return err
		}
		stock = product.Stock
		return nil
	})
	return stock, err
}

func (r *Repository) atomically(ctx context.Context, op string, orderID int64, fn func(q querier) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return orders.NewStoreError(op, orderID, false, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return orders.NewStoreError(op, orderID, false, err)
	}
	if err := tx.Commit(); err != nil {
		return orders.NewStoreError(op, orderID, true, err)
	}
	return nil
}

// Read path

func (r *Repository) GetOrderHeader(ctx context.Context, orderID int64) (*orders.OrderView, error) {
	var (
		view      orders.OrderView
		orderDate string
		total     string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT o.order_id, o.customer_id, o.order_date, o.priority, o.status, o.payment_status,
		       o.total_amount, c.name, c.email
		FROM orders o
		JOIN customers c ON c.customer_id = o.customer_id
		WHERE o.order_id = ?
	`, orderID).Scan(&view.ID, &view.CustomerID, &orderDate, &view.Priority, &view.Status,
		&view.PaymentStatus, &total, &view.CustomerName, &view.CustomerEmail)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orders.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get order %d: %w", orderID, err)
	}
	if view.OrderDate, err = parseTime(orderDate); err != nil {
		return nil, err
	}
	if view.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("sqlite: order %d total: %w", orderID, err)
	}
	return &view, nil
}

func (r *Repository) ListOrderLines(ctx context.Context, orderID int64) ([]orders.OrderLine, error) {
	return listLines(ctx, r.db, orderID)
}

// GetShipment returns nil when the order has not shipped.
func (r *Repository) GetShipment(ctx context.Context, orderID int64) (*orders.Shipment, error) {
	var (
		s         orders.Shipment
		shippedAt sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT shipment_id, order_id, carrier, tracking_number, status, shipped_date
		FROM shipments WHERE order_id = ? LIMIT 1
	`, orderID).Scan(&s.ID, &s.OrderID, &s.Carrier, &s.TrackingNumber, &s.Status, &shippedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get shipment: %w", err)
	}
	if shippedAt.Valid {
		t, err := parseTime(shippedAt.String)
		if err != nil {
			return nil, err
		}
		s.ShippedAt = &t
	}
	return &s, nil
}

// GetLatestPayment returns nil when no payment was recorded.
func (r *Repository) GetLatestPayment(ctx context.Context, orderID int64) (*orders.Payment, error) {
	rows, err := r.db.QueryContext(ctx, paymentColumns+`
		WHERE order_id = ?
		ORDER BY payment_date DESC, payment_id DESC
		LIMIT 1
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get payment: %w", err)
	}
	payments, err := scanPayments(rows)
	if err != nil || len(payments) == 0 {
		return nil, err
	}
	return &payments[0], nil
}

func (r *Repository) ListPayments(ctx context.Context) ([]orders.Payment, error) {
	rows, err := r.db.QueryContext(ctx, paymentColumns+`
		ORDER BY payment_date DESC, payment_id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list payments: %w", err)
	}
	return scanPayments(rows)
}

func (r *Repository) ListOrders(ctx context.Context, customerID *int64) ([]orders.OrderSummary, error) {
	query := `
		SELECT o.order_id, o.customer_id, o.order_date, o.priority, o.status, o.payment_status,
		       o.total_amount, c.name, c.email, COALESCE(s.tracking_number, '')
		FROM orders o
		LEFT JOIN customers c ON c.customer_id = o.customer_id
		LEFT JOIN shipments s ON s.order_id = o.order_id`
	var args []any
	if customerID != nil {
		query += ` WHERE o.customer_id = ?`
		args = append(args, *customerID)
	}
	query += ` ORDER BY o.order_date DESC, o.order_id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list orders: %w", err)
	}
	defer rows.Close()

	list := []orders.OrderSummary{}
	for rows.Next() {
		var (
			o         orders.OrderSummary
			orderDate string
			total     string
			name      sql.NullString
			email     sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.CustomerID, &orderDate, &o.Priority, &o.Status, &o.PaymentStatus,
			&total, &name, &email, &o.TrackingNumber); err != nil {
			return nil, fmt.Errorf("sqlite: scan order: %w", err)
		}
		if o.OrderDate, err = parseTime(orderDate); err != nil {
			return nil, err
		}
		if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("sqlite: order %d total: %w", o.ID, err)
		}
		o.CustomerName, o.CustomerEmail = name.String, email.String
		list = append(list, o)
	}
	return list, rows.Err()
}

// GetStatistics counts orders per status. Revenue is summed in Go to stay exact.
func (r *Repository) GetStatistics(ctx context.Context) (*orders.Statistics, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, total_amount FROM orders`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: statistics: %w", err)
	}
	defer rows.Close()

	stats := &orders.Statistics{TotalRevenue: decimal.Zero}
	for rows.Next() {
		var status, total string
		if err := rows.Scan(&status, &total); err != nil {
			return nil, fmt.Errorf("sqlite: scan statistics: %w", err)
		}
		amount, err := decimal.NewFromString(total)
		if err != nil {
			return nil, fmt.Errorf("sqlite: statistics total: %w", err)
		}
		stats.TotalOrders++
		switch orders.Status(status) {
		case orders.StatusPending:
			stats.PendingOrders++
		case orders.StatusProcessing:
			stats.ProcessingOrders++
		case orders.StatusShipped:
			stats.ShippedOrders++
		case orders.StatusDelivered:
			stats.DeliveredOrders++
		case orders.StatusCancelled:
			stats.CancelledOrders++
		}
		if orders.Status(status) != orders.StatusCancelled {
			stats.TotalRevenue = stats.TotalRevenue.Add(amount)
		}
	}
	return stats, rows.Err()
}

// Shared helpers, used by both the routines and the manual path.

func customerExists(ctx context.Context, q querier, customerID int64) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM customers WHERE customer_id = ?)`, customerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: check customer: %w", err)
	}
	return exists, nil
}

func insertOrder(ctx context.Context, q querier, order *orders.Order) error {
	res, err := q.ExecContext(ctx, `
		INSERT INTO orders (customer_id, order_date, priority, status, payment_status, total_amount)
		VALUES (?, ?, ?, ?, ?, ?)
	`, order.CustomerID, formatTime(order.OrderDate), string(order.Priority), string(order.Status),
		string(order.PaymentStatus), order.TotalAmount.String())
	if err != nil {
		return fmt.Errorf("sqlite: insert order: %w", err)
	}
	order.ID, err = res.LastInsertId()
	return err
}

func getOrder(ctx context.Context, q querier, orderID int64) (*orders.Order, error) {
	var (
		o         orders.Order
		orderDate string
		total     string
	)
	err := q.QueryRowContext(ctx, `
		SELECT order_id, customer_id, order_date, priority, status, payment_status, total_amount
		FROM orders WHERE order_id = ?
	`, orderID).Scan(&o.ID, &o.CustomerID, &orderDate, &o.Priority, &o.Status, &o.PaymentStatus, &total)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orders.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get order %d: %w", orderID, err)
	}
	if o.OrderDate, err = parseTime(orderDate); err != nil {
		return nil, err
	}
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("sqlite: order %d total: %w", orderID, err)
	}
	return &o, nil
}

func productSnapshot(ctx context.Context, q querier, productID int64) (*orders.ProductSnapshot, error) {
	var (
		p     orders.ProductSnapshot
		price string
	)
	err := q.QueryRowContext(ctx, `
		SELECT p.product_id, p.name, p.price, COALESCE(SUM(i.quantity), 0)
		FROM products p
		LEFT JOIN inventory i ON i.product_id = p.product_id
		WHERE p.product_id = ?
		GROUP BY p.product_id, p.name, p.price
	`, productID).Scan(&p.ID, &p.Name, &price, &p.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orders.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: read product %d: %w", productID, err)
	}
	if p.UnitPrice, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("sqlite: product %d price: %w", productID, err)
	}
	return &p, nil
}

func listLines(ctx context.Context, q querier, orderID int64) ([]orders.OrderLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT ol.orderline_id, ol.order_id, ol.product_id, COALESCE(p.name, ''), ol.quantity, ol.price
		FROM order_lines ol
		LEFT JOIN products p ON p.product_id = ol.product_id
		WHERE ol.order_id = ?
		ORDER BY ol.orderline_id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list order lines: %w", err)
	}
	defer rows.Close()

	lines := []orders.OrderLine{}
	for rows.Next() {
		var (
			l     orders.OrderLine
			price string
		)
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.Quantity, &price); err != nil {
			return nil, fmt.Errorf("sqlite: scan order line: %w", err)
		}
		if l.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("sqlite: order line %d price: %w", l.ID, err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// recomputeTotal rewrites total_amount from the full line set.
func recomputeTotal(ctx context.Context, q querier, orderID int64) (decimal.Decimal, error) {
	lines, err := listLines(ctx, q, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	total := orders.SumLines(lines)
	res, err := q.ExecContext(ctx, `UPDATE orders SET total_amount = ? WHERE order_id = ?`, total.String(), orderID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sqlite: update total: %w", err)
	}
	if err := requireRow(res, orders.ErrOrderNotFound); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

const paymentColumns = `
	SELECT payment_id, order_id, amount, method, status, flagged, payment_date
	FROM payments`

func scanPayments(rows *sql.Rows) ([]orders.Payment, error) {
	defer rows.Close()

	payments := []orders.Payment{}
	for rows.Next() {
		var (
			p      orders.Payment
			amount string
			paidAt string
		)
		if err := rows.Scan(&p.ID, &p.OrderID, &amount, &p.Method, &p.Status, &p.Flagged, &paidAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan payment: %w", err)
		}
		var err error
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("sqlite: payment %d amount: %w", p.ID, err)
		}
		if p.PaidAt, err = parseTime(paidAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

var (
	_ orders.Repository = (*Repository)(nil)
	_ orders.Routines   = (*Repository)(nil)
)
