// Package httpapi exposes the orders core over HTTP with gin.
package httpapi

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
)

// Pinger verifica se o banco está acessível
type Pinger interface {
	Ping(ctx context.Context) error
}

const requestIDHeader = "X-Request-ID"

// NewRouter monta o router com middlewares e rotas
func NewRouter(serviceName string, handler *Handler, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(requestID())
	r.Use(accessLog(logger))

	r.GET("/health", handler.HealthCheck)

	api := r.Group("/api")
	{
		api.GET("/orders", handler.ListOrders)
		api.GET("/orders/stats", handler.GetStatistics)
		api.GET("/orders/:id", handler.GetOrder)
		api.POST("/orders", handler.CreateOrder)
		api.POST("/orders/:id/items", handler.AddOrderItem)
		api.PUT("/orders/:id/status", handler.UpdateOrderStatus)

		api.GET("/payments", handler.ListPayments)
		api.POST("/payments", handler.RecordPayment)
		api.POST("/payments/process", handler.ProcessPayment)
	}

	return r
}

// requestID reaproveita o X-Request-ID recebido ou gera um novo
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"request_id", c.GetString("request_id"),
		}
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			attrs = append(attrs, "otel_trace", sc.TraceID().String())
		}
		if c.Writer.Status() >= 500 {
			logger.ErrorContext(c.Request.Context(), "❌ request failed", attrs...)
			return
		}
		logger.DebugContext(c.Request.Context(), "request served", attrs...)
	}
}
