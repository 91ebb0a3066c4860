package orders

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"go.opentelemetry.io/otel/metric/noop"
)

// MockRepository para testes que não precisam de banco real
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) BeginTx(ctx context.Context) (Tx, error) {
	args := m.Called(ctx)
	tx, _ := args.Get(0).(Tx)
	return tx, args.Error(1)
}

func (m *MockRepository) CustomerExists(ctx context.Context, tx Tx, customerID int64) (bool, error) {
	args := m.Called(ctx, tx, customerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) InsertOrder(ctx context.Context, tx Tx, order *Order) error {
	args := m.Called(ctx, tx, order)
	return args.Error(0)
}

func (m *MockRepository) GetOrderForUpdate(ctx context.Context, tx Tx, orderID int64) (*Order, error) {
	args := m.Called(ctx, tx, orderID)
	order, _ := args.Get(0).(*Order)
	return order, args.Error(1)
}

func (m *MockRepository) GetProductSnapshot(ctx context.Context, tx Tx, productID int64) (*ProductSnapshot, error) {
	args := m.Called(ctx, tx, productID)
	product, _ := args.Get(0).(*ProductSnapshot)
	return product, args.Error(1)
}

func (m *MockRepository) InsertOrderLine(ctx context.Context, tx Tx, line *OrderLine) error {
	args := m.Called(ctx, tx, line)
	return args.Error(0)
}

func (m *MockRepository) RecomputeOrderTotal(ctx context.Context, tx Tx, orderID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, tx, orderID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockRepository) UpdateOrderStatus(ctx context.Context, tx Tx, orderID int64, status Status) error {
	args := m.Called(ctx, tx, orderID, status)
	return args.Error(0)
}

func (m *MockRepository) MarkOrderPaid(ctx context.Context, tx Tx, orderID int64) (bool, error) {
	args := m.Called(ctx, tx, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) HasSuccessfulPayment(ctx context.Context, tx Tx, orderID int64) (bool, error) {
	args := m.Called(ctx, tx, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) InsertPayment(ctx context.Context, tx Tx, payment *Payment) error {
	args := m.Called(ctx, tx, payment)
	return args.Error(0)
}

func (m *MockRepository) GetOrderHeader(ctx context.Context, orderID int64) (*OrderView, error) {
	args := m.Called(ctx, orderID)
	view, _ := args.Get(0).(*OrderView)
	return view, args.Error(1)
}

func (m *MockRepository) ListOrderLines(ctx context.Context, orderID int64) ([]OrderLine, error) {
	args := m.Called(ctx, orderID)
	lines, _ := args.Get(0).([]OrderLine)
	return lines, args.Error(1)
}

func (m *MockRepository) GetShipment(ctx context.Context, orderID int64) (*Shipment, error) {
	args := m.Called(ctx, orderID)
	shipment, _ := args.Get(0).(*Shipment)
	return shipment, args.Error(1)
}

func (m *MockRepository) GetLatestPayment(ctx context.Context, orderID int64) (*Payment, error) {
	args := m.Called(ctx, orderID)
	payment, _ := args.Get(0).(*Payment)
	return payment, args.Error(1)
}

func (m *MockRepository) ListOrders(ctx context.Context, customerID *int64) ([]OrderSummary, error) {
	args := m.Called(ctx, customerID)
	list, _ := args.Get(0).([]OrderSummary)
	return list, args.Error(1)
}

func (m *MockRepository) ListPayments(ctx context.Context) ([]Payment, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]Payment)
	return list, args.Error(1)
}

func (m *MockRepository) GetStatistics(ctx context.Context) (*Statistics, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(*Statistics)
	return stats, args.Error(1)
}

// MockTx registra commit e rollback
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Commit() error {
	return m.Called().Error(0)
}

func (m *MockTx) Rollback() error {
	return m.Called().Error(0)
}

// MockRoutines simula as rotinas do banco
type MockRoutines struct {
	mock.Mock
}

func (m *MockRoutines) PlaceOrder(ctx context.Context, customerID int64, priority Priority) (int64, error) {
	args := m.Called(ctx, customerID, priority)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRoutines) AddOrderItem(ctx context.Context, orderID, productID int64, quantity int, policy StockPolicy) (int64, error) {
	args := m.Called(ctx, orderID, productID, quantity, policy)
	return args.Get(0).(int64), args.Error(1)
}

// MockFulfillment simula uma estratégia de fulfillment
type MockFulfillment struct {
	mock.Mock
}

func (m *MockFulfillment) CreateOrder(ctx context.Context, customerID int64, priority Priority) (int64, error) {
	args := m.Called(ctx, customerID, priority)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFulfillment) AddItem(ctx context.Context, orderID, productID int64, quantity int) error {
	args := m.Called(ctx, orderID, productID, quantity)
	return args.Error(0)
}

// recordingLocker guarda as chaves travadas
type recordingLocker struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (l *recordingLocker) Lock(_ context.Context, key string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	return func() {}, nil
}

func newTx() *MockTx {
	tx := new(MockTx)
	tx.On("Rollback").Return(nil).Maybe()
	return tx
}

// bufferLogger captura a saída para conferir avisos
func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMetrics() *Metrics {
	return NewMetrics(noop.NewMeterProvider().Meter("test"))
}
