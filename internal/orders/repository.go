package orders

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"
)

// Tx interface para transações
type Tx interface {
	Commit() error
	Rollback() error
}

// Repository define as operações de persistência usadas pelo núcleo de pedidos.
// Métodos que recebem Tx participam da transação do chamador.
type Repository interface {
	BeginTx(ctx context.Context) (Tx, error)

	// CustomerExists verifica a referência do cliente
	CustomerExists(ctx context.Context, tx Tx, customerID int64) (bool, error)

	// InsertOrder grava o cabeçalho e preenche order.ID
	InsertOrder(ctx context.Context, tx Tx, order *Order) error

	// GetOrderForUpdate lê o cabeçalho com lock pessimista (FOR UPDATE)
	GetOrderForUpdate(ctx context.Context, tx Tx, orderID int64) (*Order, error)

	// GetProductSnapshot lê preço atual e estoque agregado do produto
	GetProductSnapshot(ctx context.Context, tx Tx, productID int64) (*ProductSnapshot, error)

	// InsertOrderLine grava a linha com o preço já congelado e preenche line.ID
	InsertOrderLine(ctx context.Context, tx Tx, line *OrderLine) error

	// RecomputeOrderTotal grava total = SUM(quantity * price) de todas as linhas e o retorna
	RecomputeOrderTotal(ctx context.Context, tx Tx, orderID int64) (decimal.Decimal, error)

	UpdateOrderStatus(ctx context.Context, tx Tx, orderID int64, status Status) error

	// MarkOrderPaid muda payment_status para Paid; retorna false se já estava Paid
	MarkOrderPaid(ctx context.Context, tx Tx, orderID int64) (bool, error)

	// HasSuccessfulPayment verifica se existe pagamento Success não sinalizado
	HasSuccessfulPayment(ctx context.Context, tx Tx, orderID int64) (bool, error)

	// InsertPayment grava o pagamento e preenche payment.ID
	InsertPayment(ctx context.Context, tx Tx, payment *Payment) error

	// GetOrderHeader lê o cabeçalho com os dados do cliente, sem linhas
	GetOrderHeader(ctx context.Context, orderID int64) (*OrderView, error)
	ListOrderLines(ctx context.Context, orderID int64) ([]OrderLine, error)
	GetShipment(ctx context.Context, orderID int64) (*Shipment, error)
	GetLatestPayment(ctx context.Context, orderID int64) (*Payment, error)
	ListOrders(ctx context.Context, customerID *int64) ([]OrderSummary, error)
	ListPayments(ctx context.Context) ([]Payment, error)
	GetStatistics(ctx context.Context) (*Statistics, error)
}

// Routines são as rotinas atômicas executadas pelo próprio banco (uma ida e volta).
// Implementações retornam ErrRoutineUnavailable quando a rotina não está instalada.
type Routines interface {
	PlaceOrder(ctx context.Context, customerID int64, priority Priority) (int64, error)

	// AddOrderItem retorna o estoque agregado lido pela rotina
	AddOrderItem(ctx context.Context, orderID, productID int64, quantity int, policy StockPolicy) (int64, error)
}

// Locker fornece exclusão mútua por chave (uma chave por pedido)
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// OrderLockKey é a chave de lock usada para serializar mutações de um pedido
func OrderLockKey(orderID int64) string {
	return "order:" + strconv.FormatInt(orderID, 10)
}
