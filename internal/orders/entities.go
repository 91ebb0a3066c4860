package orders

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Priority representa a prioridade de atendimento de um pedido
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// ParsePriority converte a entrada do cliente; vazio vira Medium
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return PriorityMedium, nil
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	}
	return "", ErrInvalidPriority
}

// Status representa os possíveis status de um pedido
type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusShipped    Status = "Shipped"
	StatusDelivered  Status = "Delivered"
	StatusCancelled  Status = "Cancelled"
)

// ParseStatus aceita o nome do status sem diferenciar maiúsculas
func ParseStatus(s string) (Status, error) {
	for _, st := range []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled} {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, nil
		}
	}
	return "", ErrInvalidStatus
}

// PaymentStatus é a flag de pagamento do cabeçalho do pedido (Unpaid -> Paid)
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "Unpaid"
	PaymentStatusPaid   PaymentStatus = "Paid"
)

// PaymentState representa o status de um registro de pagamento
type PaymentState string

const (
	PaymentStatePending PaymentState = "Pending"
	PaymentStateSuccess PaymentState = "Success"
	PaymentStateFailed  PaymentState = "Failed"
)

// ParsePaymentState converte a entrada do cliente; vazio vira Pending
func ParsePaymentState(s string) (PaymentState, error) {
	if strings.TrimSpace(s) == "" {
		return PaymentStatePending, nil
	}
	for _, st := range []PaymentState{PaymentStatePending, PaymentStateSuccess, PaymentStateFailed} {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, nil
		}
	}
	return "", ErrInvalidPaymentState
}

// Order representa o cabeçalho de um pedido
type Order struct {
	ID            int64           `json:"order_id"`
	CustomerID    int64           `json:"customer_id"`
	OrderDate     time.Time       `json:"order_date"`
	Priority      Priority        `json:"priority"`
	Status        Status          `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// NewOrder cria um pedido novo em Pending, Unpaid e total zero
func NewOrder(customerID int64, priority Priority) *Order {
	return &Order{
		CustomerID:    customerID,
		OrderDate:     time.Now().UTC(),
		Priority:      priority,
		Status:        StatusPending,
		PaymentStatus: PaymentStatusUnpaid,
		TotalAmount:   decimal.Zero,
	}
}

// MaxItemQuantity é o maior valor que cabe na coluna quantity (INTEGER)
const MaxItemQuantity = math.MaxInt32

// moneyPlaces é a escala das colunas monetárias (NUMERIC(_, 2))
const moneyPlaces = 2

// ValidAmount reporta valores positivos que o banco grava sem arredondar
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(moneyPlaces))
}

// OrderLine representa um item do pedido com o preço congelado no momento da inclusão
type OrderLine struct {
	ID          int64           `json:"orderline_id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"price"`
}

// NewOrderLine cria uma linha usando o preço atual do catálogo como snapshot
func NewOrderLine(orderID int64, product *ProductSnapshot, quantity int) *OrderLine {
	return &OrderLine{
		OrderID:     orderID,
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    quantity,
		UnitPrice:   product.UnitPrice,
	}
}

// LineTotal retorna quantity × unit price
func (l OrderLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// SumLines calcula o total de um conjunto de linhas
func SumLines(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal())
	}
	return total
}

// ProductSnapshot é a leitura do catálogo: preço atual e estoque agregado de todos os armazéns
type ProductSnapshot struct {
	ID        int64           `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Stock     int64           `json:"stock"`
}

// Payment representa uma tentativa de pagamento de um pedido
type Payment struct {
	ID      int64           `json:"payment_id"`
	OrderID int64           `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
	Method  string          `json:"method"`
	Status  PaymentState    `json:"status"`
	// Flagged marca pagamentos Success cujo valor não bate com o total do pedido
	Flagged bool      `json:"flagged"`
	PaidAt  time.Time `json:"payment_date"`
}

// Shipment representa a remessa de um pedido (somente leitura neste serviço)
type Shipment struct {
	ID             int64      `json:"shipment_id"`
	OrderID        int64      `json:"order_id"`
	Carrier        string     `json:"carrier"`
	TrackingNumber string     `json:"tracking_number"`
	Status         string     `json:"status"`
	ShippedAt      *time.Time `json:"shipped_date,omitempty"`
}

// OrderView é a visão completa do pedido: cabeçalho, linhas, remessa e pagamento
type OrderView struct {
	Order
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email"`
	Lines         []OrderLine `json:"order_lines"`
	Shipment      *Shipment   `json:"shipment"`
	Payment       *Payment    `json:"payment"`
}

// OrderSummary é a linha da listagem de pedidos
type OrderSummary struct {
	Order
	CustomerName   string `json:"customer_name"`
	CustomerEmail  string `json:"customer_email"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

// Statistics agrega os pedidos por status
type Statistics struct {
	TotalOrders      int64           `json:"total_orders"`
	PendingOrders    int64           `json:"pending_orders"`
	ProcessingOrders int64           `json:"processing_orders"`
	ShippedOrders    int64           `json:"shipped_orders"`
	DeliveredOrders  int64           `json:"delivered_orders"`
	CancelledOrders  int64           `json:"cancelled_orders"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
}

// StockPolicy decide o que fazer quando a quantidade pedida excede o estoque agregado
type StockPolicy string

const (
	// StockPolicyEnforce rejeita a inclusão com ErrInsufficientStock
	StockPolicyEnforce StockPolicy = "enforce"
	// StockPolicyAdvisory apenas registra um aviso e inclui a linha
	StockPolicyAdvisory StockPolicy = "advisory"
)

// ParseStockPolicy converte o valor de configuração
func ParseStockPolicy(s string) (StockPolicy, error) {
	switch StockPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StockPolicyEnforce:
		return StockPolicyEnforce, nil
	case StockPolicyAdvisory:
		return StockPolicyAdvisory, nil
	}
	return "", ErrInvalidStockPolicy
}

// Check aplica a política a um snapshot do catálogo
func (p StockPolicy) Check(product *ProductSnapshot, quantity int) error {
	if p == StockPolicyEnforce && product.Stock < int64(quantity) {
		return ErrInsufficientStock
	}
	return nil
}
