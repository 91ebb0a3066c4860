package orders

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// GetOrder monta a visão completa: cabeçalho, linhas, remessa e último pagamento.
// Depois do cabeçalho, as três leituras restantes rodam em paralelo.
func (uc *OrderUseCase) GetOrder(ctx context.Context, orderID int64) (*OrderView, error) {
	ctx, span := uc.opts.tracer.Start(ctx, "orders.GetOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("order_id", orderID))

	if orderID <= 0 {
		return nil, ErrOrderNotFound
	}

	ctx, cancel := uc.opts.withTimeout(ctx)
	defer cancel()

	view, err := uc.repository.GetOrderHeader(ctx, orderID)
	if err != nil {
		err = NewStoreError("get order", orderID, false, err)
		uc.logFailure(ctx, "get order", orderID, err)
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lines, err := uc.repository.ListOrderLines(gctx, orderID)
		if err != nil {
			return NewStoreError("list order lines", orderID, false, err)
		}
		view.Lines = lines
		return nil
	})
	g.Go(func() error {
		shipment, err := uc.repository.GetShipment(gctx, orderID)
		if err != nil {
			return NewStoreError("get shipment", orderID, false, err)
		}
		view.Shipment = shipment
		return nil
	})
	g.Go(func() error {
		payment, err := uc.repository.GetLatestPayment(gctx, orderID)
		if err != nil {
			return NewStoreError("get payment", orderID, false, err)
		}
		view.Payment = payment
		return nil
	})
	if err := g.Wait(); err != nil {
		uc.logFailure(ctx, "get order", orderID, err)
		return nil, err
	}

	if view.Lines == nil {
		view.Lines = []OrderLine{}
	}
	return view, nil
}
