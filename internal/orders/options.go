package orders

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/matheusmosca/scm-orders/internal/orders"

// Option configura os casos de uso
type Option func(*options)

type options struct {
	logger  *slog.Logger
	tracer  trace.Tracer
	meter   metric.Meter
	timeout time.Duration
	policy  StockPolicy
}

// WithLogger define o logger estruturado
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTracer define o tracer usado nos spans dos casos de uso
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) { o.tracer = tracer }
}

// WithMeter define o meter dos contadores
func WithMeter(meter metric.Meter) Option {
	return func(o *options) { o.meter = meter }
}

// WithStoreTimeout limita cada unidade de trabalho no banco
func WithStoreTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithStockPolicy define a política de estoque usada na checagem prévia dos itens
func WithStockPolicy(policy StockPolicy) Option {
	return func(o *options) { o.policy = policy }
}

func buildOptions(opts []Option) options {
	o := options{
		logger: slog.Default(),
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
		policy: StockPolicyEnforce,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, o.timeout)
}

// Metrics agrupa os contadores do núcleo de pedidos
type Metrics struct {
	OrdersCreated     metric.Int64Counter
	ItemsAdded        metric.Int64Counter
	Fallbacks         metric.Int64Counter
	StatusTransitions metric.Int64Counter
	PaymentsRecorded  metric.Int64Counter
	AmountMismatches  metric.Int64Counter
}

// NewMetrics registra os contadores; falhas de registro viram contadores no-op
func NewMetrics(meter metric.Meter) *Metrics {
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			return noop.Int64Counter{}
		}
		return c
	}
	return &Metrics{
		OrdersCreated:     counter("orders.created", "Orders created"),
		ItemsAdded:        counter("orders.items_added", "Order lines attached"),
		Fallbacks:         counter("orders.fulfillment_fallbacks", "Store routine failures served by the manual path"),
		StatusTransitions: counter("orders.status_transitions", "Applied order status transitions"),
		PaymentsRecorded:  counter("payments.recorded", "Payment rows persisted"),
		AmountMismatches:  counter("payments.amount_mismatches", "Success payments whose amount did not match the order total"),
	}
}
