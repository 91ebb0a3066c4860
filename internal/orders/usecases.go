package orders

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ItemRequest representa um item na criação de pedido
type ItemRequest struct {
	ProductID int64
	Quantity  int
}

// PlaceOrderRequest representa a requisição para criar um pedido já com itens
type PlaceOrderRequest struct {
	CustomerID int64
	Priority   string
	Items      []ItemRequest
}

// OrderUseCase contém a lógica de negócio dos pedidos
type OrderUseCase struct {
	repository  Repository
	fulfillment Fulfillment
	status      *StatusService
	locker      Locker
	metrics     *Metrics
	opts        options
}

// NewOrderUseCase cria uma nova instância de OrderUseCase
func NewOrderUseCase(
	repository Repository,
	fulfillment Fulfillment,
	status *StatusService,
	locker Locker,
	metrics *Metrics,
	opts ...Option,
) *OrderUseCase {
	o := buildOptions(opts)
	if metrics == nil {
		metrics = NewMetrics(o.meter)
	}
	return &OrderUseCase{
		repository:  repository,
		fulfillment: fulfillment,
		status:      status,
		locker:      locker,
		metrics:     metrics,
		opts:        o,
	}
}

// CreateOrder aloca um novo pedido Pending para o cliente
func (uc *OrderUseCase) CreateOrder(ctx context.Context, customerID int64, priority string) (int64, error) {
	ctx, span := uc.opts.tracer.Start(ctx, "orders.CreateOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("customer_id", customerID), attribute.String("priority", priority))

	if customerID <= 0 {
		return 0, ErrMissingCustomer
	}
	p, err := ParsePriority(priority)
	if err != nil {
		return 0, err
	}

	ctx, cancel := uc.opts.withTimeout(ctx)
	defer cancel()

	orderID, err := uc.fulfillment.CreateOrder(ctx, customerID, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create order failed")
		uc.logFailure(ctx, "create order", 0, err)
		return 0, err
	}

	span.SetAttributes(attribute.Int64("order_id", orderID))
	uc.metrics.OrdersCreated.Add(ctx, 1)
	uc.opts.logger.InfoContext(ctx, "✅ order created", "order_id", orderID, "customer_id", customerID, "priority", p)
	return orderID, nil
}

// AddOrderItem inclui uma linha no pedido e recalcula o total.
// A unidade inteira roda sob o lock do pedido.
func (uc *OrderUseCase) AddOrderItem(ctx context.Context, orderID, productID int64, quantity int) error {
	ctx, span := uc.opts.tracer.Start(ctx, "orders.AddOrderItem")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("order_id", orderID),
		attribute.Int64("product_id", productID),
		attribute.Int("quantity", quantity),
	)

	if err := validateItem(ItemRequest{ProductID: productID, Quantity: quantity}); err != nil {
		return err
	}
	if orderID <= 0 {
		return ErrOrderNotFound
	}

	ctx, cancel := uc.opts.withTimeout(ctx)
	defer cancel()

	unlock, err := uc.locker.Lock(ctx, OrderLockKey(orderID))
	if err != nil {
		err = NewStoreError("lock order", orderID, false, err)
		uc.logFailure(ctx, "add item", orderID, err)
		return err
	}
	defer unlock()

	if err := uc.fulfillment.AddItem(ctx, orderID, productID, quantity); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "add item failed")
		uc.logFailure(ctx, "add item", orderID, err)
		return err
	}

	uc.metrics.ItemsAdded.Add(ctx, 1)
	uc.opts.logger.InfoContext(ctx, "✅ item added",
		"order_id", orderID, "product_id", productID, "quantity", quantity)
	return nil
}

// PlaceOrder valida os itens e confere o catálogo antes de gravar qualquer coisa,
// cria o pedido e inclui os itens um a um. Cada inclusão é atômica; o conjunto não é.
// Se um item falhar depois da criação, o pedido gravado volta junto com um
// PartialOrderError.
func (uc *OrderUseCase) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*OrderView, error) {
	if req.CustomerID <= 0 || len(req.Items) == 0 {
		return nil, ErrMissingItems
	}
	for _, item := range req.Items {
		if err := validateItem(item); err != nil {
			return nil, err
		}
	}
	if _, err := ParsePriority(req.Priority); err != nil {
		return nil, err
	}
	if err := uc.checkItems(ctx, req.Items); err != nil {
		uc.logFailure(ctx, "check items", 0, err)
		return nil, err
	}

	orderID, err := uc.CreateOrder(ctx, req.CustomerID, req.Priority)
	if err != nil {
		return nil, err
	}
	for _, item := range req.Items {
		if err := uc.AddOrderItem(ctx, orderID, item.ProductID, item.Quantity); err != nil {
			partial := &PartialOrderError{OrderID: orderID, Err: err}
			uc.opts.logger.WarnContext(ctx, "⚠️ order left with missing items",
				"order_id", orderID, "product_id", item.ProductID, "error", err)
			view, viewErr := uc.GetOrder(ctx, orderID)
			if viewErr != nil {
				return nil, partial
			}
			return view, partial
		}
	}
	return uc.readBack(ctx, "place order", orderID)
}

// checkItems lê o catálogo de uma vez: produto inexistente ou estoque
// insuficiente (somando itens repetidos) rejeitam o pedido antes da criação.
func (uc *OrderUseCase) checkItems(ctx context.Context, items []ItemRequest) error {
	ctx, cancel := uc.opts.withTimeout(ctx)
	defer cancel()

	wanted := make(map[int64]int, len(items))
	products := make([]int64, 0, len(items))
	for _, item := range items {
		if _, seen := wanted[item.ProductID]; !seen {
			products = append(products, item.ProductID)
		}
		wanted[item.ProductID] += item.Quantity
	}

	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return NewStoreError("begin check items", 0, false, err)
	}
	defer tx.Rollback()

	for _, productID := range products {
		product, err := uc.repository.GetProductSnapshot(ctx, tx, productID)
		if err != nil {
			return NewStoreError("read product", 0, false, err)
		}
		if err := uc.opts.policy.Check(product, wanted[productID]); err != nil {
			return err
		}
	}
	return nil
}

// UpdateOrderStatus aplica a transição e devolve a visão atualizada do pedido
func (uc *OrderUseCase) UpdateOrderStatus(ctx context.Context, orderID int64, status string) (*OrderView, error) {
	to, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	if _, err := uc.status.UpdateStatus(ctx, orderID, to); err != nil {
		return nil, err
	}
	return uc.readBack(ctx, "update status", orderID)
}

// readBack lê o pedido depois de uma mutação já confirmada. A falha da leitura
// não pode parecer "nada aconteceu", então sai como ambígua.
func (uc *OrderUseCase) readBack(ctx context.Context, op string, orderID int64) (*OrderView, error) {
	view, err := uc.GetOrder(ctx, orderID)
	if err != nil {
		return nil, &StoreError{Op: op + ": read back", OrderID: orderID, Ambiguous: true, Err: err}
	}
	return view, nil
}

// ListOrders lista os pedidos, opcionalmente filtrando por cliente
func (uc *OrderUseCase) ListOrders(ctx context.Context, customerID *int64) ([]OrderSummary, error) {
	ctx, cancel := uc.opts.withTimeout(ctx)
	defer cancel()

	list, err := uc.repository.ListOrders(ctx, customerID)
	if err != nil {
		err = NewStoreError("list orders", 0, false, err)
		uc.logFailure(ctx, "list orders", 0, err)
		return nil, err
	}
	return list, nil
}

// GetStatistics agrega os pedidos por status; somente leitura
func (uc *OrderUseCase) GetStatistics(ctx context.Context) (*Statistics, error) {
	ctx, cancel := uc.opts.withTimeout(ctx)
	defer cancel()

	stats, err := uc.repository.GetStatistics(ctx)
	if err != nil {
		err = NewStoreError("order statistics", 0, false, err)
		uc.logFailure(ctx, "order statistics", 0, err)
		return nil, err
	}
	return stats, nil
}

func validateItem(item ItemRequest) error {
	if item.Quantity <= 0 || item.Quantity > MaxItemQuantity {
		return ErrInvalidQuantity
	}
	if item.ProductID <= 0 {
		return ErrProductNotFound
	}
	return nil
}

func (uc *OrderUseCase) logFailure(ctx context.Context, op string, orderID int64, err error) {
	if IsDomainError(err) {
		uc.opts.logger.InfoContext(ctx, "ℹ️ request rejected", "operation", op, "order_id", orderID, "error", err)
		return
	}
	uc.opts.logger.ErrorContext(ctx, "❌ store operation failed",
		"operation", op, "order_id", orderID, "ambiguous", IsAmbiguous(err), "error", err)
}
