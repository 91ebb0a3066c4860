package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/matheusmosca/scm-orders/internal/orders"
)

// MockOrderUseCase simula o use case de pedidos
type MockOrderUseCase struct {
	mock.Mock
}

func (m *MockOrderUseCase) CreateOrder(ctx context.Context, customerID int64, priority string) (int64, error) {
	args := m.Called(ctx, customerID, priority)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderUseCase) AddOrderItem(ctx context.Context, orderID, productID int64, quantity int) error {
	args := m.Called(ctx, orderID, productID, quantity)
	return args.Error(0)
}

func (m *MockOrderUseCase) PlaceOrder(ctx context.Context, req orders.PlaceOrderRequest) (*orders.OrderView, error) {
	args := m.Called(ctx, req)
	view, _ := args.Get(0).(*orders.OrderView)
	return view, args.Error(1)
}

func (m *MockOrderUseCase) GetOrder(ctx context.Context, orderID int64) (*orders.OrderView, error) {
	args := m.Called(ctx, orderID)
	view, _ := args.Get(0).(*orders.OrderView)
	return view, args.Error(1)
}

func (m *MockOrderUseCase) UpdateOrderStatus(ctx context.Context, orderID int64, status string) (*orders.OrderView, error) {
	args := m.Called(ctx, orderID, status)
	view, _ := args.Get(0).(*orders.OrderView)
	return view, args.Error(1)
}

func (m *MockOrderUseCase) ListOrders(ctx context.Context, customerID *int64) ([]orders.OrderSummary, error) {
	args := m.Called(ctx, customerID)
	list, _ := args.Get(0).([]orders.OrderSummary)
	return list, args.Error(1)
}

func (m *MockOrderUseCase) GetStatistics(ctx context.Context) (*orders.Statistics, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(*orders.Statistics)
	return stats, args.Error(1)
}

// MockPaymentUseCase simula o use case de pagamentos
type MockPaymentUseCase struct {
	mock.Mock
}

func (m *MockPaymentUseCase) RecordPayment(ctx context.Context, req orders.RecordPaymentRequest) (*orders.Payment, error) {
	args := m.Called(ctx, req)
	payment, _ := args.Get(0).(*orders.Payment)
	return payment, args.Error(1)
}

func (m *MockPaymentUseCase) ProcessPayment(ctx context.Context, orderID int64, amount decimal.Decimal, method string) (*orders.Payment, error) {
	args := m.Called(ctx, orderID, amount, method)
	payment, _ := args.Get(0).(*orders.Payment)
	return payment, args.Error(1)
}

func (m *MockPaymentUseCase) ListPayments(ctx context.Context) ([]orders.Payment, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]orders.Payment)
	return list, args.Error(1)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func setup(t *testing.T) (*gin.Engine, *MockOrderUseCase, *MockPaymentUseCase) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	orderUC := new(MockOrderUseCase)
	paymentUC := new(MockPaymentUseCase)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler("orders-test", orderUC, paymentUC, stubPinger{})
	return NewRouter("orders-test", handler, logger), orderUC, paymentUC
}

func do(r http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var decoded map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	return w, decoded
}

func sampleView(id int64) *orders.OrderView {
	return &orders.OrderView{
		Order: orders.Order{
			ID:            id,
			CustomerID:    1,
			Priority:      orders.PriorityMedium,
			Status:        orders.StatusPending,
			PaymentStatus: orders.PaymentStatusUnpaid,
			TotalAmount:   decimal.RequireFromString("99.95"),
		},
		Lines: []orders.OrderLine{},
	}
}

func TestHealthCheck(t *testing.T) {
	r, _, _ := setup(t)

	w, body := do(r, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestHealthCheck_DatabaseDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewHandler("orders-test", new(MockOrderUseCase), new(MockPaymentUseCase), stubPinger{err: errors.New("down")})
	r := NewRouter("orders-test", handler, slog.New(slog.NewTextHandler(io.Discard, nil)))

	w, body := do(r, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestCreateOrder_WithoutItems(t *testing.T) {
	r, orderUC, _ := setup(t)
	orderUC.On("CreateOrder", mock.Anything, int64(1), "High").Return(int64(10), nil)
	orderUC.On("GetOrder", mock.Anything, int64(10)).Return(sampleView(10), nil)

	w, body := do(r, http.MethodPost, "/api/orders", `{"customer_id":1,"priority":"High"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.EqualValues(t, 10, data["order_id"])
	assert.Equal(t, "99.95", data["total_amount"])
	orderUC.AssertExpectations(t)
}

func TestCreateOrder_WithItems(t *testing.T) {
	r, orderUC, _ := setup(t)
	want := orders.PlaceOrderRequest{
		CustomerID: 1,
		Items:      []orders.ItemRequest{{ProductID: 5, Quantity: 2}},
	}
	orderUC.On("PlaceOrder", mock.Anything, want).Return(sampleView(11), nil)

	w, _ := do(r, http.MethodPost, "/api/orders", `{"customer_id":1,"items":[{"product_id":5,"quantity":2}]}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	orderUC.AssertExpectations(t)
}

func TestCreateOrder_ReadBackFailureKeepsCreatedOrder(t *testing.T) {
	r, orderUC, _ := setup(t)
	orderUC.On("CreateOrder", mock.Anything, int64(1), "").Return(int64(10), nil)
	orderUC.On("GetOrder", mock.Anything, int64(10)).
		Return(nil, &orders.StoreError{Op: "get order", OrderID: 10, Err: errors.New("conn reset")})

	w, body := do(r, http.MethodPost, "/api/orders", `{"customer_id":1}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.EqualValues(t, 10, data["order_id"])
}

func TestCreateOrder_PartialItems(t *testing.T) {
	partial := &orders.PartialOrderError{OrderID: 12, Err: orders.ErrInsufficientStock}

	t.Run("with order view", func(t *testing.T) {
		r, orderUC, _ := setup(t)
		orderUC.On("PlaceOrder", mock.Anything, mock.Anything).Return(sampleView(12), partial)

		w, body := do(r, http.MethodPost, "/api/orders", `{"customer_id":1,"items":[{"product_id":5,"quantity":2},{"product_id":6,"quantity":1}]}`)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "partial", body["outcome"])
		data := body["data"].(map[string]any)
		assert.EqualValues(t, 12, data["order_id"])
		assert.Equal(t, "99.95", data["total_amount"])
	})

	t.Run("without order view", func(t *testing.T) {
		r, orderUC, _ := setup(t)
		orderUC.On("PlaceOrder", mock.Anything, mock.Anything).Return(nil, partial)

		w, body := do(r, http.MethodPost, "/api/orders", `{"customer_id":1,"items":[{"product_id":5,"quantity":2}]}`)

		assert.Equal(t, http.StatusConflict, w.Code)
		data := body["data"].(map[string]any)
		assert.EqualValues(t, 12, data["order_id"])
	})
}

func TestCreateOrder_BadBody(t *testing.T) {
	r, orderUC, _ := setup(t)

	w, body := do(r, http.MethodPost, "/api/orders", `{"items":[{"product_id":5,"quantity":0}]}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body["success"])
	orderUC.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
}

func TestAddOrderItem_ErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantOutcome any
	}{
		{name: "validation", err: orders.ErrInsufficientStock, wantStatus: http.StatusBadRequest},
		{name: "not found", err: orders.ErrProductNotFound, wantStatus: http.StatusNotFound},
		{
			name:       "store failure",
			err:        &orders.StoreError{Op: "add_order_item", OrderID: 3, Err: errors.New("reset")},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:        "ambiguous store failure",
			err:         &orders.StoreError{Op: "commit add item", OrderID: 3, Ambiguous: true, Err: context.DeadlineExceeded},
			wantStatus:  http.StatusServiceUnavailable,
			wantOutcome: "unknown",
		},
		{name: "unexpected", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, orderUC, _ := setup(t)
			orderUC.On("AddOrderItem", mock.Anything, int64(3), int64(5), 2).Return(tt.err)

			w, body := do(r, http.MethodPost, "/api/orders/3/items", `{"product_id":5,"quantity":2}`)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOutcome, body["outcome"])
			orderUC.AssertNotCalled(t, "GetOrder", mock.Anything, mock.Anything)
		})
	}
}

func TestAddOrderItem_ReadBackFailureKeepsLine(t *testing.T) {
	r, orderUC, _ := setup(t)
	orderUC.On("AddOrderItem", mock.Anything, int64(3), int64(5), 2).Return(nil)
	orderUC.On("GetOrder", mock.Anything, int64(3)).
		Return(nil, &orders.StoreError{Op: "get order", OrderID: 3, Err: errors.New("conn reset")})

	w, body := do(r, http.MethodPost, "/api/orders/3/items", `{"product_id":5,"quantity":2}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Nil(t, body["outcome"])
	orderUC.AssertNumberOfCalls(t, "AddOrderItem", 1)
}

func TestAddOrderItem_QuantityOutOfRange(t *testing.T) {
	r, orderUC, _ := setup(t)

	w, _ := do(r, http.MethodPost, "/api/orders/3/items", `{"product_id":5,"quantity":3000000000}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	orderUC.AssertNotCalled(t, "AddOrderItem", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAddOrderItem_InvalidID(t *testing.T) {
	r, _, _ := setup(t)

	w, _ := do(r, http.MethodPost, "/api/orders/abc/items", `{"product_id":5,"quantity":2}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateOrderStatus_InvalidTransition(t *testing.T) {
	r, orderUC, _ := setup(t)
	err := errors.Join(orders.ErrInvalidTransition, errors.New("Delivered -> Pending"))
	orderUC.On("UpdateOrderStatus", mock.Anything, int64(4), "Pending").Return(nil, err)

	w, _ := do(r, http.MethodPut, "/api/orders/4/status", `{"status":"Pending"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdateOrderStatus_ReadBackFailureIsUnknown(t *testing.T) {
	r, orderUC, _ := setup(t)
	err := &orders.StoreError{Op: "update status: read back", OrderID: 4, Ambiguous: true, Err: orders.ErrOrderNotFound}
	orderUC.On("UpdateOrderStatus", mock.Anything, int64(4), "Processing").Return(nil, err)

	w, body := do(r, http.MethodPut, "/api/orders/4/status", `{"status":"Processing"}`)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unknown", body["outcome"])
}

func TestListOrders_CustomerFilter(t *testing.T) {
	r, orderUC, _ := setup(t)
	orderUC.On("ListOrders", mock.Anything, mock.MatchedBy(func(id *int64) bool {
		return id != nil && *id == 9
	})).Return([]orders.OrderSummary{}, nil)

	w, body := do(r, http.MethodGet, "/api/orders?customer_id=9", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	orderUC.AssertExpectations(t)

	w, _ = do(r, http.MethodGet, "/api/orders?customer_id=x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStatistics_RouteNotShadowedByID(t *testing.T) {
	r, orderUC, _ := setup(t)
	orderUC.On("GetStatistics", mock.Anything).Return(&orders.Statistics{TotalOrders: 2, TotalRevenue: decimal.NewFromInt(8)}, nil)

	w, body := do(r, http.MethodGet, "/api/orders/stats", "")

	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.EqualValues(t, 2, data["total_orders"])
}

func TestProcessPayment_AmountMismatch(t *testing.T) {
	r, _, paymentUC := setup(t)
	payment := &orders.Payment{ID: 1, OrderID: 4, Amount: decimal.RequireFromString("1.00"), Status: orders.PaymentStateSuccess, Flagged: true}
	paymentUC.On("ProcessPayment", mock.Anything, int64(4), mock.AnythingOfType("decimal.Decimal"), "card").
		Return(payment, orders.ErrAmountMismatch)

	w, body := do(r, http.MethodPost, "/api/payments/process", `{"order_id":4,"amount":"1.00","method":"card"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["flagged"])
}

func TestRecordPayment(t *testing.T) {
	r, _, paymentUC := setup(t)
	paymentUC.On("RecordPayment", mock.Anything, mock.MatchedBy(func(req orders.RecordPaymentRequest) bool {
		return req.OrderID == 4 && req.Amount.Equal(decimal.RequireFromString("99.95")) && req.Status == "Success"
	})).Return(&orders.Payment{ID: 2, OrderID: 4, Status: orders.PaymentStateSuccess}, nil)

	w, body := do(r, http.MethodPost, "/api/payments", `{"order_id":4,"amount":99.95,"status":"Success"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, body["success"])
	paymentUC.AssertExpectations(t)
}
