package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/matheusmosca/scm-orders/internal/orders"
)

// SQLSTATEs raised by the routines in migrations/002_routines.sql
const (
	codeProductNotFound   = "SC001"
	codeInsufficientStock = "SC002"
	codeOrderNotFound     = "SC003"
	codeCustomerNotFound  = "SC004"
	codeInvalidQuantity   = "SC005"

	codeForeignKeyViolation = "23503"
	codeUndefinedFunction   = "42883"
)

// mapError traduz falhas do Postgres para os erros do domínio.
// O servidor ter respondido com um erro significa que nada foi aplicado; só
// falhas de transporte depois do envio são ambíguas.
func mapError(op string, orderID int64, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeProductNotFound:
			return orders.ErrProductNotFound
		case codeInsufficientStock:
			return orders.ErrInsufficientStock
		case codeOrderNotFound:
			return orders.ErrOrderNotFound
		case codeCustomerNotFound:
			return orders.ErrInvalidCustomer
		case codeInvalidQuantity:
			return orders.ErrInvalidQuantity
		case codeForeignKeyViolation:
			if pgErr.ConstraintName == "order_lines_product_id_fkey" {
				return orders.ErrProductNotFound
			}
			if pgErr.TableName == "orders" {
				return orders.ErrInvalidCustomer
			}
			return orders.ErrOrderNotFound
		case codeUndefinedFunction:
			return orders.ErrRoutineUnavailable
		}
		return orders.NewStoreError(op, orderID, false, err)
	}

	ambiguous := !pgconn.SafeToRetry(err)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		ambiguous = true
	}
	return orders.NewStoreError(op, orderID, ambiguous, err)
}
