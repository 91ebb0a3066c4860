package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/matheusmosca/scm-orders/internal/orders"
)

// OrderRepository implementa orders.Repository usando PostgreSQL
type OrderRepository struct {
	db *pgxpool.Pool
}

// NewOrderRepository cria uma nova instância de OrderRepository
func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{
		db: db,
	}
}

// BeginTx inicia uma nova transação
func (r *OrderRepository) BeginTx(ctx context.Context) (orders.Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &PostgresTx{tx: tx}, nil
}

// CustomerExists verifica se o cliente existe
func (r *OrderRepository) CustomerExists(ctx context.Context, tx orders.Tx, customerID int64) (bool, error) {
	pgTx := tx.(*PostgresTx).tx

	var exists bool
	err := pgTx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM customers WHERE customer_id = $1)`, customerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check customer: %w", err)
	}
	return exists, nil
}

// InsertOrder grava o cabeçalho do pedido
func (r *OrderRepository) InsertOrder(ctx context.Context, tx orders.Tx, order *orders.Order) error {
	pgTx := tx.(*PostgresTx).tx

	query := `
		INSERT INTO orders (customer_id, order_date, priority, status, payment_status, total_amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING order_id
	`

	err := pgTx.QueryRow(ctx, query,
		order.CustomerID,
		order.OrderDate,
		string(order.Priority),
		string(order.Status),
		string(order.PaymentStatus),
		order.TotalAmount,
	).Scan(&order.ID)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// GetOrderForUpdate obtém o pedido com lock pessimista (FOR UPDATE)
func (r *OrderRepository) GetOrderForUpdate(ctx context.Context, tx orders.Tx, orderID int64) (*orders.Order, error) {
	pgTx := tx.(*PostgresTx).tx

	query := `
		SELECT order_id, customer_id, order_date, priority, status, payment_status, total_amount
		FROM orders
		WHERE order_id = $1
		FOR UPDATE
	`

	var order orders.Order
	err := pgTx.QueryRow(ctx, query, orderID).Scan(
		&order.ID,
		&order.CustomerID,
		&order.OrderDate,
		&order.Priority,
		&order.Status,
		&order.PaymentStatus,
		&order.TotalAmount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order with lock: %w", err)
	}
	return &order, nil
}

// GetProductSnapshot lê o preço atual e o estoque somado de todos os armazéns
func (r *OrderRepository) GetProductSnapshot(ctx context.Context, tx orders.Tx, productID int64) (*orders.ProductSnapshot, error) {
	pgTx := tx.(*PostgresTx).tx

	query := `
		SELECT p.product_id, p.name, p.price, COALESCE(SUM(i.quantity), 0)::BIGINT
		FROM products p
		LEFT JOIN inventory i ON i.product_id = p.product_id
		WHERE p.product_id = $1
		GROUP BY p.product_id, p.name, p.price
	`

	var p orders.ProductSnapshot
	err := pgTx.QueryRow(ctx, query, productID).Scan(&p.ID, &p.Name, &p.UnitPrice, &p.Stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read product: %w", err)
	}
	return &p, nil
}

// InsertOrderLine grava a linha com o preço congelado
func (r *OrderRepository) InsertOrderLine(ctx context.Context, tx orders.Tx, line *orders.OrderLine) error {
	pgTx := tx.(*PostgresTx).tx

	query := `
		INSERT INTO order_lines (order_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4)
		RETURNING orderline_id
	`

	err := pgTx.QueryRow(ctx, query, line.OrderID, line.ProductID, line.Quantity, line.UnitPrice).Scan(&line.ID)
	if err != nil {
		return fmt.Errorf("failed to insert order line: %w", err)
	}
	return nil
}

// RecomputeOrderTotal recalcula o total a partir de todas as linhas
func (r *OrderRepository) RecomputeOrderTotal(ctx context.Context, tx orders.Tx, orderID int64) (decimal.Decimal, error) {
	pgTx := tx.(*PostgresTx).tx

	query := `
		UPDATE orders
		SET total_amount = (
			SELECT COALESCE(SUM(quantity * price), 0) FROM order_lines WHERE order_id = $1
		)
		WHERE order_id = $1
		RETURNING total_amount
	`

	var total decimal.Decimal
	err := pgTx.QueryRow(ctx, query, orderID).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, orders.ErrOrderNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to recompute total: %w", err)
	}
	return total, nil
}

// UpdateOrderStatus atualiza o status do pedido
func (r *OrderRepository) UpdateOrderStatus(ctx context.Context, tx orders.Tx, orderID int64, status orders.Status) error {
	pgTx := tx.(*PostgresTx).tx

	tag, err := pgTx.Exec(ctx, `UPDATE orders SET status = $1 WHERE order_id = $2`, string(status), orderID)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return orders.ErrOrderNotFound
	}
	return nil
}

// MarkOrderPaid muda payment_status para Paid
func (r *OrderRepository) MarkOrderPaid(ctx context.Context, tx orders.Tx, orderID int64) (bool, error) {
	pgTx := tx.(*PostgresTx).tx

	tag, err := pgTx.Exec(ctx, `
		UPDATE orders SET payment_status = 'Paid'
		WHERE order_id = $1 AND payment_status <> 'Paid'
	`, orderID)
	if err != nil {
		return false, fmt.Errorf("failed to mark order paid: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// HasSuccessfulPayment verifica se há pagamento Success não sinalizado
func (r *OrderRepository) HasSuccessfulPayment(ctx context.Context, tx orders.Tx, orderID int64) (bool, error) {
	pgTx := tx.(*PostgresTx).tx

	var exists bool
	err := pgTx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM payments
			WHERE order_id = $1 AND status = 'Success' AND NOT flagged
		)
	`, orderID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check payments: %w", err)
	}
	return exists, nil
}

// InsertPayment grava o pagamento
func (r *OrderRepository) InsertPayment(ctx context.Context, tx orders.Tx, p *orders.Payment) error {
	pgTx := tx.(*PostgresTx).tx

	query := `
		INSERT INTO payments (order_id, amount, method, status, flagged, payment_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING payment_id
	`

	err := pgTx.QueryRow(ctx, query, p.OrderID, p.Amount, p.Method, string(p.Status), p.Flagged, p.PaidAt).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// GetOrderHeader lê o cabeçalho e os dados do cliente
func (r *OrderRepository) GetOrderHeader(ctx context.Context, orderID int64) (*orders.OrderView, error) {
	query := `
		SELECT o.order_id, o.customer_id, o.order_date, o.priority, o.status, o.payment_status,
		       o.total_amount, c.name, c.email
		FROM orders o
		JOIN customers c ON c.customer_id = o.customer_id
		WHERE o.order_id = $1
	`

	var view orders.OrderView
	err := r.db.QueryRow(ctx, query, orderID).Scan(
		&view.ID,
		&view.CustomerID,
		&view.OrderDate,
		&view.Priority,
		&view.Status,
		&view.PaymentStatus,
		&view.TotalAmount,
		&view.CustomerName,
		&view.CustomerEmail,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &view, nil
}

// ListOrderLines lista as linhas do pedido na ordem de inclusão
func (r *OrderRepository) ListOrderLines(ctx context.Context, orderID int64) ([]orders.OrderLine, error) {
	rows, err := r.db.Query(ctx, `
		SELECT ol.orderline_id, ol.order_id, ol.product_id, COALESCE(p.name, ''), ol.quantity, ol.price
		FROM order_lines ol
		LEFT JOIN products p ON p.product_id = ol.product_id
		WHERE ol.order_id = $1
		ORDER BY ol.orderline_id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order lines: %w", err)
	}
	defer rows.Close()

	lines := []orders.OrderLine{}
	for rows.Next() {
		var l orders.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// GetShipment retorna nil quando o pedido ainda não foi enviado
func (r *OrderRepository) GetShipment(ctx context.Context, orderID int64) (*orders.Shipment, error) {
	var s orders.Shipment
	err := r.db.QueryRow(ctx, `
		SELECT shipment_id, order_id, carrier, tracking_number, status, shipped_date
		FROM shipments WHERE order_id = $1
	`, orderID).Scan(&s.ID, &s.OrderID, &s.Carrier, &s.TrackingNumber, &s.Status, &s.ShippedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shipment: %w", err)
	}
	return &s, nil
}

const paymentColumns = `
	SELECT payment_id, order_id, amount, method, status, flagged, payment_date
	FROM payments`

// GetLatestPayment retorna nil quando não há pagamento
func (r *OrderRepository) GetLatestPayment(ctx context.Context, orderID int64) (*orders.Payment, error) {
	var p orders.Payment
	err := r.db.QueryRow(ctx, paymentColumns+`
		WHERE order_id = $1
		ORDER BY payment_date DESC, payment_id DESC
		LIMIT 1
	`, orderID).Scan(&p.ID, &p.OrderID, &p.Amount, &p.Method, &p.Status, &p.Flagged, &p.PaidAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &p, nil
}

// ListPayments lista os pagamentos, mais recentes primeiro
func (r *OrderRepository) ListPayments(ctx context.Context) ([]orders.Payment, error) {
	rows, err := r.db.Query(ctx, paymentColumns+` ORDER BY payment_date DESC, payment_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	payments := []orders.Payment{}
	for rows.Next() {
		var p orders.Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Method, &p.Status, &p.Flagged, &p.PaidAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// ListOrders lista os pedidos com cliente e rastreio
func (r *OrderRepository) ListOrders(ctx context.Context, customerID *int64) ([]orders.OrderSummary, error) {
	query := `
		SELECT o.order_id, o.customer_id, o.order_date, o.priority, o.status, o.payment_status,
		       o.total_amount, COALESCE(c.name, ''), COALESCE(c.email, ''), COALESCE(s.tracking_number, '')
		FROM orders o
		LEFT JOIN customers c ON c.customer_id = o.customer_id
		LEFT JOIN shipments s ON s.order_id = o.order_id
	`
	args := []any{}
	if customerID != nil {
		query += ` WHERE o.customer_id = $1`
		args = append(args, *customerID)
	}
	query += ` ORDER BY o.order_date DESC, o.order_id DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	list := []orders.OrderSummary{}
	for rows.Next() {
		var o orders.OrderSummary
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.OrderDate, &o.Priority, &o.Status, &o.PaymentStatus,
			&o.TotalAmount, &o.CustomerName, &o.CustomerEmail, &o.TrackingNumber); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// GetStatistics agrega os pedidos por status; pedidos cancelados não contam na receita
func (r *OrderRepository) GetStatistics(ctx context.Context) (*orders.Statistics, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'Pending'),
			COUNT(*) FILTER (WHERE status = 'Processing'),
			COUNT(*) FILTER (WHERE status = 'Shipped'),
			COUNT(*) FILTER (WHERE status = 'Delivered'),
			COUNT(*) FILTER (WHERE status = 'Cancelled'),
			COALESCE(SUM(total_amount) FILTER (WHERE status <> 'Cancelled'), 0)
		FROM orders
	`

	var s orders.Statistics
	err := r.db.QueryRow(ctx, query).Scan(
		&s.TotalOrders,
		&s.PendingOrders,
		&s.ProcessingOrders,
		&s.ShippedOrders,
		&s.DeliveredOrders,
		&s.CancelledOrders,
		&s.TotalRevenue,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get statistics: %w", err)
	}
	return &s, nil
}

var _ orders.Repository = (*OrderRepository)(nil)
