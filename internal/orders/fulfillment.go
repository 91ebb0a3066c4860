package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Fulfillment abstrai as duas formas de executar criação de pedido e inclusão de item.
// As implementações precisam produzir exatamente o mesmo estado no banco.
type Fulfillment interface {
	CreateOrder(ctx context.Context, customerID int64, priority Priority) (int64, error)
	AddItem(ctx context.Context, orderID, productID int64, quantity int) error
}

// RoutineFulfillment delega para as rotinas atômicas do banco
type RoutineFulfillment struct {
	routines Routines
	policy   StockPolicy
	logger   *slog.Logger
}

// NewRoutineFulfillment cria o caminho primário
func NewRoutineFulfillment(routines Routines, policy StockPolicy, logger *slog.Logger) *RoutineFulfillment {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoutineFulfillment{routines: routines, policy: policy, logger: logger}
}

func (f *RoutineFulfillment) CreateOrder(ctx context.Context, customerID int64, priority Priority) (int64, error) {
	orderID, err := f.routines.PlaceOrder(ctx, customerID, priority)
	if err != nil {
		return 0, err
	}
	if orderID <= 0 {
		return 0, fmt.Errorf("%w: place_order returned id %d", ErrRoutineUnavailable, orderID)
	}
	return orderID, nil
}

func (f *RoutineFulfillment) AddItem(ctx context.Context, orderID, productID int64, quantity int) error {
	stock, err := f.routines.AddOrderItem(ctx, orderID, productID, quantity, f.policy)
	if err != nil {
		return err
	}
	warnShortStock(ctx, f.logger, orderID, productID, quantity, stock)
	return nil
}

// ManualFulfillment executa os passos no processo, dentro de uma única transação
type ManualFulfillment struct {
	repository Repository
	policy     StockPolicy
	logger     *slog.Logger
}

// NewManualFulfillment cria o caminho de fallback
func NewManualFulfillment(repository Repository, policy StockPolicy, logger *slog.Logger) *ManualFulfillment {
	if logger == nil {
		logger = slog.Default()
	}
	return &ManualFulfillment{repository: repository, policy: policy, logger: logger}
}

// CreateOrder insere o cabeçalho em Pending com total zero
func (f *ManualFulfillment) CreateOrder(ctx context.Context, customerID int64, priority Priority) (int64, error) {
	tx, err := f.repository.BeginTx(ctx)
	if err != nil {
		return 0, NewStoreError("begin create order", 0, false, err)
	}
	defer tx.Rollback()

	exists, err := f.repository.CustomerExists(ctx, tx, customerID)
	if err != nil {
		return 0, NewStoreError("check customer", 0, false, err)
	}
	if !exists {
		return 0, ErrInvalidCustomer
	}

	order := NewOrder(customerID, priority)
	if err := f.repository.InsertOrder(ctx, tx, order); err != nil {
		return 0, NewStoreError("insert order", 0, false, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, NewStoreError("commit create order", 0, true, err)
	}
	return order.ID, nil
}

// AddItem trava o cabeçalho, congela o preço, grava a linha e recalcula o total
func (f *ManualFulfillment) AddItem(ctx context.Context, orderID, productID int64, quantity int) error {
	tx, err := f.repository.BeginTx(ctx)
	if err != nil {
		return NewStoreError("begin add item", orderID, false, err)
	}
	defer tx.Rollback()

	// 1. Lock pessimista no cabeçalho: serializa inclusões concorrentes no mesmo pedido
	if _, err := f.repository.GetOrderForUpdate(ctx, tx, orderID); err != nil {
		return NewStoreError("lock order", orderID, false, err)
	}

	// 2. Snapshot do catálogo
	product, err := f.repository.GetProductSnapshot(ctx, tx, productID)
	if err != nil {
		return NewStoreError("read product", orderID, false, err)
	}

	if err := f.policy.Check(product, quantity); err != nil {
		return err
	}
	warnShortStock(ctx, f.logger, orderID, productID, quantity, product.Stock)

	// 3. Linha com o preço congelado
	line := NewOrderLine(orderID, product, quantity)
	if err := f.repository.InsertOrderLine(ctx, tx, line); err != nil {
		return NewStoreError("insert order line", orderID, false, err)
	}

	// 4. Total recalculado sobre todas as linhas, nunca incrementado
	if _, err := f.repository.RecomputeOrderTotal(ctx, tx, orderID); err != nil {
		return NewStoreError("recompute total", orderID, false, err)
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("commit add item", orderID, true, err)
	}
	return nil
}

// warnShortStock registra inclusões acima do estoque aceitas pela política advisory.
// Estoque negativo significa desconhecido.
func warnShortStock(ctx context.Context, logger *slog.Logger, orderID, productID int64, quantity int, stock int64) {
	if stock >= 0 && stock < int64(quantity) {
		logger.WarnContext(ctx, "⚠️ attaching beyond available stock",
			"order_id", orderID, "product_id", productID, "quantity", quantity, "stock", stock)
	}
}

// FallbackFulfillment tenta o caminho primário e recorre ao secundário
// quando a rotina não está disponível ou falhou sem ter sido aplicada
type FallbackFulfillment struct {
	primary   Fulfillment
	fallback  Fulfillment
	logger    *slog.Logger
	fallbacks metric.Int64Counter
}

// NewFallbackFulfillment compõe os dois caminhos
func NewFallbackFulfillment(primary, fallback Fulfillment, logger *slog.Logger, fallbacks metric.Int64Counter) *FallbackFulfillment {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackFulfillment{primary: primary, fallback: fallback, logger: logger, fallbacks: fallbacks}
}

func (f *FallbackFulfillment) CreateOrder(ctx context.Context, customerID int64, priority Priority) (int64, error) {
	orderID, err := f.primary.CreateOrder(ctx, customerID, priority)
	if !shouldFallback(ctx, err) {
		return orderID, err
	}
	f.record(ctx, "create_order", 0, err)
	return f.fallback.CreateOrder(ctx, customerID, priority)
}

func (f *FallbackFulfillment) AddItem(ctx context.Context, orderID, productID int64, quantity int) error {
	err := f.primary.AddItem(ctx, orderID, productID, quantity)
	if !shouldFallback(ctx, err) {
		return err
	}
	f.record(ctx, "add_item", orderID, err)
	return f.fallback.AddItem(ctx, orderID, productID, quantity)
}

func (f *FallbackFulfillment) record(ctx context.Context, op string, orderID int64, cause error) {
	f.logger.WarnContext(ctx, "↪️ store routine failed, using manual path",
		"operation", op, "order_id", orderID, "error", cause)
	if f.fallbacks != nil {
		f.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
	}
}

// shouldFallback: rotina ausente/ilegível, ou falha de banco que certamente não foi aplicada.
// Com o contexto encerrado, só a rotina ausente cai no fallback.
func shouldFallback(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRoutineUnavailable) {
		return true
	}
	if ctx.Err() != nil {
		return false
	}
	var se *StoreError
	return errors.As(err, &se) && !se.Ambiguous
}
