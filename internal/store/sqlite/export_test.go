package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// The catalog, customers and shipments are owned by other services. These
// helpers let the tests populate them. Prices are stored with two decimal
// places, as the NUMERIC(12,2) column does on Postgres.

// SeedCustomer inserts a customer and returns its id.
func (r *Repository) SeedCustomer(ctx context.Context, name, email string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO customers (name, email) VALUES (?, ?)`, name, email)
	if err != nil {
		return 0, fmt.Errorf("sqlite: seed customer: %w", err)
	}
	return res.LastInsertId()
}

// SeedProduct inserts a product with no stock and returns its id.
func (r *Repository) SeedProduct(ctx context.Context, name string, price decimal.Decimal) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO products (name, price) VALUES (?, ?)`, name, price.StringFixed(2))
	if err != nil {
		return 0, fmt.Errorf("sqlite: seed product: %w", err)
	}
	return res.LastInsertId()
}

// SetStock puts quantity units of the product in the named warehouse,
// creating the warehouse on first use.
func (r *Repository) SetStock(ctx context.Context, warehouse string, productID int64, quantity int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var warehouseID int64
	err = tx.QueryRowContext(ctx, `SELECT warehouse_id FROM warehouses WHERE name = ?`, warehouse).Scan(&warehouseID)
	if err != nil {
		res, err := tx.ExecContext(ctx, `INSERT INTO warehouses (name) VALUES (?)`, warehouse)
		if err != nil {
			return fmt.Errorf("sqlite: seed warehouse: %w", err)
		}
		if warehouseID, err = res.LastInsertId(); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO inventory (warehouse_id, product_id, quantity) VALUES (?, ?, ?)
		ON CONFLICT (warehouse_id, product_id) DO UPDATE SET quantity = excluded.quantity
	`, warehouseID, productID, quantity); err != nil {
		return fmt.Errorf("sqlite: set stock: %w", err)
	}
	return tx.Commit()
}

// SetProductPrice changes the catalog price. Existing order lines keep theirs.
func (r *Repository) SetProductPrice(ctx context.Context, productID int64, price decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx, `UPDATE products SET price = ? WHERE product_id = ?`, price.StringFixed(2), productID)
	if err != nil {
		return fmt.Errorf("sqlite: set price: %w", err)
	}
	return nil
}

// SeedShipment attaches a shipment record to an order.
func (r *Repository) SeedShipment(ctx context.Context, orderID int64, carrier, tracking string, shippedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO shipments (order_id, carrier, tracking_number, status, shipped_date)
		VALUES (?, ?, ?, 'Shipped', ?)
	`, orderID, carrier, tracking, formatTime(shippedAt))
	if err != nil {
		return fmt.Errorf("sqlite: seed shipment: %w", err)
	}
	return nil
}

// SetLinePrice tries to rewrite a line's price. The schema rejects it; the
// method exists to prove that.
func (r *Repository) SetLinePrice(ctx context.Context, lineID int64, price decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx, `UPDATE order_lines SET price = ? WHERE orderline_id = ?`, price.String(), lineID)
	return err
}
