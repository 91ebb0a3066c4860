package orders

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// transitions lista as arestas legais da máquina de estados
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
}

// CanTransitionTo reporta se a mudança de status é permitida
func (s Status) CanTransitionTo(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// StatusService aplica mudanças de status controladas, incluindo Unpaid -> Paid
type StatusService struct {
	repository Repository
	locker     Locker
	metrics    *Metrics
	opts       options
}

// NewStatusService cria uma nova instância de StatusService
func NewStatusService(repository Repository, locker Locker, metrics *Metrics, opts ...Option) *StatusService {
	o := buildOptions(opts)
	if metrics == nil {
		metrics = NewMetrics(o.meter)
	}
	return &StatusService{repository: repository, locker: locker, metrics: metrics, opts: o}
}

// UpdateStatus move o pedido para o novo status; repetir o status atual é um no-op
func (s *StatusService) UpdateStatus(ctx context.Context, orderID int64, to Status) (bool, error) {
	ctx, span := s.opts.tracer.Start(ctx, "orders.UpdateStatus")
	defer span.End()
	span.SetAttributes(attribute.Int64("order_id", orderID), attribute.String("status", string(to)))

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	unlock, err := s.locker.Lock(ctx, OrderLockKey(orderID))
	if err != nil {
		return false, NewStoreError("lock order", orderID, false, err)
	}
	defer unlock()

	tx, err := s.repository.BeginTx(ctx)
	if err != nil {
		return false, s.fail(ctx, NewStoreError("begin update status", orderID, false, err))
	}
	defer tx.Rollback()

	order, err := s.repository.GetOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return false, s.fail(ctx, NewStoreError("lock order", orderID, false, err))
	}

	if order.Status == to {
		return false, nil
	}
	if !order.Status.CanTransitionTo(to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, to)
	}

	if err := s.repository.UpdateOrderStatus(ctx, tx, orderID, to); err != nil {
		return false, s.fail(ctx, NewStoreError("update status", orderID, false, err))
	}
	if err := tx.Commit(); err != nil {
		return false, s.fail(ctx, NewStoreError("commit update status", orderID, true, err))
	}

	s.metrics.StatusTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(order.Status)),
		attribute.String("to", string(to)),
	))
	s.opts.logger.InfoContext(ctx, "✅ order status updated",
		"order_id", orderID, "from", order.Status, "to", to)
	return true, nil
}

// OnPaymentSuccess marca o pedido como Paid. Idempotente: se já estiver Paid não faz nada.
// Só é aceito quando existe um pagamento Success registrado para o pedido.
func (s *StatusService) OnPaymentSuccess(ctx context.Context, orderID int64) (bool, error) {
	ctx, span := s.opts.tracer.Start(ctx, "orders.OnPaymentSuccess")
	defer span.End()
	span.SetAttributes(attribute.Int64("order_id", orderID))

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	unlock, err := s.locker.Lock(ctx, OrderLockKey(orderID))
	if err != nil {
		return false, NewStoreError("lock order", orderID, false, err)
	}
	defer unlock()

	tx, err := s.repository.BeginTx(ctx)
	if err != nil {
		return false, s.fail(ctx, NewStoreError("begin mark paid", orderID, false, err))
	}
	defer tx.Rollback()

	order, err := s.repository.GetOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return false, s.fail(ctx, NewStoreError("lock order", orderID, false, err))
	}
	if order.PaymentStatus == PaymentStatusPaid {
		s.opts.logger.InfoContext(ctx, "ℹ️ [IDEMPOTENCY] order already paid", "order_id", orderID)
		return false, nil
	}

	ok, err := s.repository.HasSuccessfulPayment(ctx, tx, orderID)
	if err != nil {
		return false, s.fail(ctx, NewStoreError("check payments", orderID, false, err))
	}
	if !ok {
		return false, ErrNoSuccessfulPayment
	}

	changed, err := s.repository.MarkOrderPaid(ctx, tx, orderID)
	if err != nil {
		return false, s.fail(ctx, NewStoreError("mark paid", orderID, false, err))
	}
	if err := tx.Commit(); err != nil {
		return false, s.fail(ctx, NewStoreError("commit mark paid", orderID, true, err))
	}

	s.opts.logger.InfoContext(ctx, "💰 order marked as paid", "order_id", orderID)
	return changed, nil
}

func (s *StatusService) fail(ctx context.Context, err error) error {
	if !IsDomainError(err) {
		s.opts.logger.ErrorContext(ctx, "❌ status transition failed", "error", err)
	}
	return err
}
