package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	defaultPaymentMethod   = "UNKNOWN"
	simulatedPaymentMethod = "SIMULATED"
)

// RecordPaymentRequest representa a requisição para registrar um pagamento
type RecordPaymentRequest struct {
	OrderID int64
	Amount  decimal.Decimal
	Method  string
	Status  string
}

// PaymentUseCase contém a lógica de negócio de pagamentos
type PaymentUseCase struct {
	repository Repository
	status     *StatusService
	locker     Locker
	metrics    *Metrics
	opts       options
}

// NewPaymentUseCase cria uma nova instância de PaymentUseCase
func NewPaymentUseCase(repository Repository, status *StatusService, locker Locker, metrics *Metrics, opts ...Option) *PaymentUseCase {
	o := buildOptions(opts)
	if metrics == nil {
		metrics = NewMetrics(o.meter)
	}
	return &PaymentUseCase{repository: repository, status: status, locker: locker, metrics: metrics, opts: o}
}

// RecordPayment grava o pagamento sempre; se for Success e o valor bater com o total,
// dispara OnPaymentSuccess. Valor divergente fica gravado como flagged e retorna ErrAmountMismatch.
func (uc *PaymentUseCase) RecordPayment(ctx context.Context, req RecordPaymentRequest) (*Payment, error) {
	ctx, span := uc.opts.tracer.Start(ctx, "payments.RecordPayment")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("order_id", req.OrderID),
		attribute.String("amount", req.Amount.String()),
		attribute.String("status", req.Status),
	)

	state, err := ParsePaymentState(req.Status)
	if err != nil {
		return nil, err
	}
	if !ValidAmount(req.Amount) {
		return nil, ErrInvalidAmount
	}
	if req.OrderID <= 0 {
		return nil, ErrOrderNotFound
	}
	method := strings.TrimSpace(req.Method)
	if method == "" {
		method = defaultPaymentMethod
	}

	uc.opts.logger.InfoContext(ctx, "➡️ [RECORD PAYMENT]",
		"order_id", req.OrderID, "amount", req.Amount.String(), "method", method, "status", state)

	payment, total, err := uc.persist(ctx, req.OrderID, req.Amount, method, state)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	uc.metrics.PaymentsRecorded.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(state))))

	if payment.Flagged {
		uc.metrics.AmountMismatches.Add(ctx, 1)
		uc.opts.logger.WarnContext(ctx, "⚠️ payment amount does not match order total",
			"order_id", req.OrderID, "payment_id", payment.ID, "amount", payment.Amount.String(), "total", total.String())
		return payment, fmt.Errorf("%w: paid %s, order total %s", ErrAmountMismatch, payment.Amount, total)
	}

	if state == PaymentStateSuccess {
		if _, err := uc.status.OnPaymentSuccess(ctx, req.OrderID); err != nil {
			span.RecordError(err)
			return payment, err
		}
	}

	uc.opts.logger.InfoContext(ctx, "✅ payment recorded", "order_id", req.OrderID, "payment_id", payment.ID)
	return payment, nil
}

// ProcessPayment é o checkout simulado: pagamento Success com método SIMULATED por padrão
func (uc *PaymentUseCase) ProcessPayment(ctx context.Context, orderID int64, amount decimal.Decimal, method string) (*Payment, error) {
	if strings.TrimSpace(method) == "" {
		method = simulatedPaymentMethod
	}
	return uc.RecordPayment(ctx, RecordPaymentRequest{
		OrderID: orderID,
		Amount:  amount,
		Method:  method,
		Status:  string(PaymentStateSuccess),
	})
}

// ListPayments lista os pagamentos, mais recentes primeiro
func (uc *PaymentUseCase) ListPayments(ctx context.Context) ([]Payment, error) {
	ctx, cancel := uc.opts.withTimeout(ctx)
	defer cancel()

	payments, err := uc.repository.ListPayments(ctx)
	if err != nil {
		err = NewStoreError("list payments", 0, false, err)
		uc.opts.logger.ErrorContext(ctx, "❌ failed to list payments", "error", err)
		return nil, err
	}
	return payments, nil
}

// persist grava o pagamento numa transação própria, com o cabeçalho travado
// para comparar o valor com um total estável
func (uc *PaymentUseCase) persist(ctx context.Context, orderID int64, amount decimal.Decimal, method string, state PaymentState) (*Payment, decimal.Decimal, error) {
	ctx, cancel := uc.opts.withTimeout(ctx)
	defer cancel()

	unlock, err := uc.locker.Lock(ctx, OrderLockKey(orderID))
	if err != nil {
		return nil, decimal.Zero, NewStoreError("lock order", orderID, false, err)
	}
	defer unlock()

	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, decimal.Zero, uc.fail(ctx, NewStoreError("begin record payment", orderID, false, err))
	}
	defer tx.Rollback()

	order, err := uc.repository.GetOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, decimal.Zero, uc.fail(ctx, NewStoreError("lock order", orderID, false, err))
	}

	payment := &Payment{
		OrderID: orderID,
		Amount:  amount,
		Method:  method,
		Status:  state,
		Flagged: state == PaymentStateSuccess && !amount.Equal(order.TotalAmount),
		PaidAt:  time.Now().UTC(),
	}
	if err := uc.repository.InsertPayment(ctx, tx, payment); err != nil {
		return nil, decimal.Zero, uc.fail(ctx, NewStoreError("insert payment", orderID, false, err))
	}
	if err := tx.Commit(); err != nil {
		return nil, decimal.Zero, uc.fail(ctx, NewStoreError("commit record payment", orderID, true, err))
	}
	return payment, order.TotalAmount, nil
}

func (uc *PaymentUseCase) fail(ctx context.Context, err error) error {
	if !IsDomainError(err) {
		uc.opts.logger.ErrorContext(ctx, "❌ payment persistence failed", "error", err)
	}
	return err
}
