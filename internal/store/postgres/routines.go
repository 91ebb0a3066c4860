package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matheusmosca/scm-orders/internal/orders"
)

// Routines chama as funções place_order e add_order_item instaladas pela migração.
// Cada chamada é uma única instrução, atômica no servidor.
type Routines struct {
	db *pgxpool.Pool
}

// NewRoutines cria o cliente das rotinas do banco
func NewRoutines(db *pgxpool.Pool) *Routines {
	return &Routines{db: db}
}

// PlaceOrder cria o cabeçalho do pedido e retorna o id gerado
func (r *Routines) PlaceOrder(ctx context.Context, customerID int64, priority orders.Priority) (int64, error) {
	var orderID *int64
	err := r.db.QueryRow(ctx, `SELECT place_order($1, $2)`, customerID, string(priority)).Scan(&orderID)
	if err != nil {
		return 0, mapError("place_order", 0, err)
	}
	if orderID == nil {
		return 0, fmt.Errorf("%w: place_order returned no id", orders.ErrRoutineUnavailable)
	}
	return *orderID, nil
}

// AddOrderItem inclui a linha com o preço do catálogo, recalcula o total e
// retorna o estoque agregado lido pela rotina (-1 quando a rotina não informa)
func (r *Routines) AddOrderItem(ctx context.Context, orderID, productID int64, quantity int, policy orders.StockPolicy) (int64, error) {
	var stock *int64
	err := r.db.QueryRow(ctx, `SELECT add_order_item($1, $2, $3, $4)`,
		orderID, productID, quantity, policy == orders.StockPolicyEnforce).Scan(&stock)
	if err != nil {
		return 0, mapError("add_order_item", orderID, err)
	}
	// The line is already committed here; a missing value must not send the
	// caller down the fallback path.
	if stock == nil {
		return -1, nil
	}
	return *stock, nil
}

var _ orders.Routines = (*Routines)(nil)
