package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/matheusmosca/scm-orders/internal/orders"
)

// response é o envelope de todas as respostas da API
type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Outcome string `json:"outcome,omitempty"`
}

func ok(c *gin.Context, status int, data any, message string) {
	c.JSON(status, response{Success: true, Data: data, Message: message})
}

// statusFor traduz os erros do domínio para códigos HTTP
func statusFor(err error) int {
	switch {
	case orders.IsAmbiguous(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, orders.ErrPartiallyApplied):
		return http.StatusConflict
	case errors.Is(err, orders.ErrAmountMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, orders.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, orders.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail escreve o erro; data acompanha a resposta quando existe algo gravado
// (ex.: pagamento sinalizado, pedido criado pela metade)
func fail(c *gin.Context, err error, data any) {
	status := statusFor(err)
	body := response{Success: false, Error: err.Error(), Data: data}
	switch {
	case orders.IsAmbiguous(err):
		body.Outcome = "unknown"
	case errors.Is(err, orders.ErrPartiallyApplied):
		body.Outcome = "partial"
	}
	if status == http.StatusInternalServerError {
		body.Error = "internal error"
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response{Success: false, Error: err.Error()})
}
