package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/matheusmosca/scm-orders/internal/orders"
)

// OrderUseCaseInterface define a interface para o use case de pedidos
type OrderUseCaseInterface interface {
	CreateOrder(ctx context.Context, customerID int64, priority string) (int64, error)
	AddOrderItem(ctx context.Context, orderID, productID int64, quantity int) error
	PlaceOrder(ctx context.Context, req orders.PlaceOrderRequest) (*orders.OrderView, error)
	GetOrder(ctx context.Context, orderID int64) (*orders.OrderView, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) (*orders.OrderView, error)
	ListOrders(ctx context.Context, customerID *int64) ([]orders.OrderSummary, error)
	GetStatistics(ctx context.Context) (*orders.Statistics, error)
}

// PaymentUseCaseInterface define a interface para o use case de pagamentos
type PaymentUseCaseInterface interface {
	RecordPayment(ctx context.Context, req orders.RecordPaymentRequest) (*orders.Payment, error)
	ProcessPayment(ctx context.Context, orderID int64, amount decimal.Decimal, method string) (*orders.Payment, error)
	ListPayments(ctx context.Context) ([]orders.Payment, error)
}

// CreateOrderRequest representa a requisição para criar um pedido
type CreateOrderRequest struct {
	CustomerID int64            `json:"customer_id" binding:"required,gt=0"`
	Priority   string           `json:"priority"`
	Items      []AddItemRequest `json:"items" binding:"dive"`
}

// AddItemRequest representa a inclusão de um item
type AddItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
	Quantity  int   `json:"quantity" binding:"required,gt=0,lte=2147483647"`
}

// UpdateStatusRequest representa a mudança de status
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// PaymentRequest representa o registro de um pagamento
type PaymentRequest struct {
	OrderID int64           `json:"order_id" binding:"required,gt=0"`
	Amount  decimal.Decimal `json:"amount"`
	Method  string          `json:"method"`
	Status  string          `json:"status"`
}

// Handler contém os handlers HTTP
type Handler struct {
	serviceName string
	orders      OrderUseCaseInterface
	payments    PaymentUseCaseInterface
	db          Pinger
}

// NewHandler cria uma nova instância de Handler
func NewHandler(serviceName string, orderUseCase OrderUseCaseInterface, paymentUseCase PaymentUseCaseInterface, db Pinger) *Handler {
	return &Handler{
		serviceName: serviceName,
		orders:      orderUseCase,
		payments:    paymentUseCase,
		db:          db,
	}
}

// HealthCheck verifica a saúde do serviço
func (h *Handler) HealthCheck(c *gin.Context) {
	if h.db != nil {
		if err := h.db.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"service": h.serviceName,
				"error":   err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.serviceName,
	})
}

// ListOrders lista os pedidos; aceita ?customer_id=
func (h *Handler) ListOrders(c *gin.Context) {
	var customerID *int64
	if raw := c.Query("customer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			badRequest(c, errors.New("customer_id must be a positive integer"))
			return
		}
		customerID = &id
	}

	list, err := h.orders.ListOrders(c.Request.Context(), customerID)
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, http.StatusOK, list, "")
}

// GetStatistics retorna os contadores por status
func (h *Handler) GetStatistics(c *gin.Context) {
	stats, err := h.orders.GetStatistics(c.Request.Context())
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, http.StatusOK, stats, "")
}

// GetOrder retorna a visão completa do pedido
func (h *Handler) GetOrder(c *gin.Context) {
	orderID, valid := pathID(c)
	if !valid {
		return
	}

	view, err := h.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, http.StatusOK, view, "")
}

// CreateOrder cria o pedido; com itens, inclui cada um na sequência
func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()

	if len(req.Items) == 0 {
		orderID, err := h.orders.CreateOrder(ctx, req.CustomerID, req.Priority)
		if err != nil {
			fail(c, err, nil)
			return
		}
		h.respondCommitted(c, orderID, http.StatusCreated, "Order created successfully")
		return
	}

	items := make([]orders.ItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, orders.ItemRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	view, err := h.orders.PlaceOrder(ctx, orders.PlaceOrderRequest{
		CustomerID: req.CustomerID,
		Priority:   req.Priority,
		Items:      items,
	})
	if err != nil {
		var data any
		var partial *orders.PartialOrderError
		switch {
		case view != nil:
			data = view
		case errors.As(err, &partial):
			data = gin.H{"order_id": partial.OrderID}
		}
		fail(c, err, data)
		return
	}
	ok(c, http.StatusCreated, view, "Order created successfully")
}

// AddOrderItem inclui um item no pedido e devolve o pedido atualizado
func (h *Handler) AddOrderItem(c *gin.Context) {
	orderID, valid := pathID(c)
	if !valid {
		return
	}
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.orders.AddOrderItem(c.Request.Context(), orderID, req.ProductID, req.Quantity); err != nil {
		fail(c, err, nil)
		return
	}
	h.respondCommitted(c, orderID, http.StatusCreated, "Item added successfully")
}

// respondCommitted devolve o pedido depois de uma mutação confirmada. Se a
// leitura falhar, a mutação continua valendo e a resposta leva só o id.
func (h *Handler) respondCommitted(c *gin.Context, orderID int64, status int, message string) {
	view, err := h.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		ok(c, status, gin.H{"order_id": orderID}, message+"; order details unavailable")
		return
	}
	ok(c, status, view, message)
}

// UpdateOrderStatus aplica a transição de status
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	orderID, valid := pathID(c)
	if !valid {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	view, err := h.orders.UpdateOrderStatus(c.Request.Context(), orderID, req.Status)
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, http.StatusOK, view, "Order status updated successfully")
}

// ListPayments lista os pagamentos
func (h *Handler) ListPayments(c *gin.Context) {
	payments, err := h.payments.ListPayments(c.Request.Context())
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, http.StatusOK, payments, "")
}

// RecordPayment grava um pagamento informado pelo cliente
func (h *Handler) RecordPayment(c *gin.Context) {
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	payment, err := h.payments.RecordPayment(c.Request.Context(), orders.RecordPaymentRequest{
		OrderID: req.OrderID,
		Amount:  req.Amount,
		Method:  req.Method,
		Status:  req.Status,
	})
	h.respondPayment(c, payment, err)
}

// ProcessPayment executa o checkout simulado
func (h *Handler) ProcessPayment(c *gin.Context) {
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	payment, err := h.payments.ProcessPayment(c.Request.Context(), req.OrderID, req.Amount, req.Method)
	h.respondPayment(c, payment, err)
}

func (h *Handler) respondPayment(c *gin.Context, payment *orders.Payment, err error) {
	if err != nil {
		// A stored payment is reported even when the request failed.
		var data any
		if payment != nil {
			data = payment
		}
		fail(c, err, data)
		return
	}
	ok(c, http.StatusCreated, payment, "Payment recorded successfully")
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, errors.New("id must be a positive integer"))
		return 0, false
	}
	return id, true
}
