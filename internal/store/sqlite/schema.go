package sqlite

// schema is applied on Open. Money columns are TEXT so decimal values keep
// their exact representation (NUMERIC affinity would coerce them to REAL).
const schema = `
CREATE TABLE IF NOT EXISTS customers (
    customer_id   INTEGER PRIMARY KEY AUTOINCREMENT,
    name          TEXT NOT NULL,
    email         TEXT NOT NULL DEFAULT '',
    phone_number  TEXT NOT NULL DEFAULT '',
    address       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS products (
    product_id  INTEGER PRIMARY KEY AUTOINCREMENT,
    name        TEXT NOT NULL,
    category    TEXT NOT NULL DEFAULT '',
    price       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS warehouses (
    warehouse_id  INTEGER PRIMARY KEY AUTOINCREMENT,
    name          TEXT NOT NULL,
    location      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS inventory (
    warehouse_id  INTEGER NOT NULL REFERENCES warehouses(warehouse_id),
    product_id    INTEGER NOT NULL REFERENCES products(product_id),
    quantity      INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (warehouse_id, product_id)
);

CREATE TABLE IF NOT EXISTS orders (
    order_id        INTEGER PRIMARY KEY AUTOINCREMENT,
    customer_id     INTEGER NOT NULL REFERENCES customers(customer_id),
    order_date      TEXT NOT NULL,
    priority        TEXT NOT NULL,
    status          TEXT NOT NULL,
    payment_status  TEXT NOT NULL,
    total_amount    TEXT NOT NULL DEFAULT '0'
);

CREATE INDEX IF NOT EXISTS idx_orders_customer_id ON orders(customer_id);

CREATE TABLE IF NOT EXISTS order_lines (
    orderline_id  INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id      INTEGER NOT NULL REFERENCES orders(order_id) ON DELETE CASCADE,
    product_id    INTEGER NOT NULL REFERENCES products(product_id),
    quantity      INTEGER NOT NULL CHECK (quantity > 0),
    price         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_order_lines_order_id ON order_lines(order_id);

-- The unit price is a snapshot taken when the line is attached.
CREATE TRIGGER IF NOT EXISTS trg_order_lines_price_frozen
BEFORE UPDATE OF price ON order_lines
BEGIN
    SELECT RAISE(ABORT, 'order line price snapshot is immutable');
END;

CREATE TABLE IF NOT EXISTS shipments (
    shipment_id      INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id         INTEGER NOT NULL UNIQUE REFERENCES orders(order_id),
    carrier          TEXT NOT NULL DEFAULT '',
    tracking_number  TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT '',
    shipped_date     TEXT
);

CREATE TABLE IF NOT EXISTS payments (
    payment_id    INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id      INTEGER NOT NULL REFERENCES orders(order_id),
    amount        TEXT NOT NULL,
    method        TEXT NOT NULL,
    status        TEXT NOT NULL,
    flagged       INTEGER NOT NULL DEFAULT 0,
    payment_date  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payments_order_id ON payments(order_id);
`
