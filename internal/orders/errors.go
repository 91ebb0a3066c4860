package orders

import (
	"errors"
	"fmt"
)

// Categorias de erro expostas aos chamadores
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAmountMismatch    = errors.New("payment amount does not match order total")
)

var (
	ErrInvalidQuantity     = fmt.Errorf("%w: quantity must be a positive integer up to %d", ErrValidation, MaxItemQuantity)
	ErrInvalidPriority     = fmt.Errorf("%w: priority must be Low, Medium or High", ErrValidation)
	ErrInvalidStatus       = fmt.Errorf("%w: unknown order status", ErrValidation)
	ErrInvalidPaymentState = fmt.Errorf("%w: payment status must be Pending, Success or Failed", ErrValidation)
	ErrInvalidAmount       = fmt.Errorf("%w: amount must be greater than zero with at most two decimal places", ErrValidation)
	ErrInvalidStockPolicy  = fmt.Errorf("%w: stock policy must be enforce or advisory", ErrValidation)
	ErrMissingCustomer     = fmt.Errorf("%w: customer_id is required", ErrValidation)
	ErrMissingItems        = fmt.Errorf("%w: customer_id and items are required", ErrValidation)
	ErrInsufficientStock   = fmt.Errorf("%w: insufficient stock", ErrValidation)
	ErrNoSuccessfulPayment = fmt.Errorf("%w: order has no successful payment", ErrValidation)

	ErrOrderNotFound   = fmt.Errorf("order %w", ErrNotFound)
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
	ErrInvalidCustomer = fmt.Errorf("customer %w", ErrNotFound)
)

// ErrRoutineUnavailable indica que a rotina atômica do banco não existe ou
// devolveu um formato que não conseguimos ler. Dispara o caminho manual.
var ErrRoutineUnavailable = errors.New("store routine unavailable")

// ErrPartiallyApplied indica que o pedido foi criado mas nem todos os itens entraram
var ErrPartiallyApplied = errors.New("order created with missing items")

// PartialOrderError acompanha um pedido que ficou gravado pela metade.
// Err é a falha do item que interrompeu a sequência.
type PartialOrderError struct {
	OrderID int64
	Err     error
}

func (e *PartialOrderError) Error() string {
	return fmt.Sprintf("order %d: %s: %v", e.OrderID, ErrPartiallyApplied, e.Err)
}

func (e *PartialOrderError) Unwrap() []error {
	return []error{ErrPartiallyApplied, e.Err}
}

// StoreError descreve uma falha de transporte ou transação no banco.
// Ambiguous indica que não sabemos se a operação foi aplicada (ex.: falha no commit).
type StoreError struct {
	Op        string
	OrderID   int64
	Ambiguous bool
	Err       error
}

func (e *StoreError) Error() string {
	if e.OrderID != 0 {
		return fmt.Sprintf("%s (order %d): %s: %v", e.Op, e.OrderID, ErrStoreUnavailable, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrStoreUnavailable, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

// NewStoreError embrulha uma falha de banco; erros de domínio passam direto
func NewStoreError(op string, orderID int64, ambiguous bool, err error) error {
	if err == nil || IsDomainError(err) || errors.Is(err, ErrRoutineUnavailable) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, OrderID: orderID, Ambiguous: ambiguous, Err: err}
}

// IsDomainError reporta erros que significam "nada aconteceu" por regra de negócio
func IsDomainError(err error) bool {
	if errors.Is(err, ErrPartiallyApplied) {
		return false
	}
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrAmountMismatch)
}

// IsAmbiguous reporta falhas de banco cujo resultado final é desconhecido
func IsAmbiguous(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Ambiguous
}
