package service

import (
	"context"
	"time"

	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Coordinator runs a placement as one unit of work: every reservation and
// every order row commits together or not at all
type Coordinator struct {
	store   *store.Store
	builder *OrderBuilder
	logger  *zap.Logger
}

// NewCoordinator creates a new transaction coordinator
func NewCoordinator(store *store.Store, builder *OrderBuilder) *Coordinator {
	return &Coordinator{
		store:   store,
		builder: builder,
		logger:  util.GetLogger(),
	}
}

// PlaceOrder validates in, then prices, reserves and persists it for clientID.
// Failures are never retried; the caller decides what to do with them.
func (c *Coordinator) PlaceOrder(ctx context.Context, clientID int64, in PlaceOrderInput) (placed *PlacedOrder, err error) {
	ctx, span := util.StartSpan(ctx, "Coordinator.PlaceOrder")
	span.SetAttributes(
		attribute.Int64("client.id", clientID),
		attribute.Int("order.lines", len(in.Items)),
	)
	defer func() { util.EndSpan(span, err) }()

	if clientID <= 0 {
		err = validationError("caller identity is required")
		c.recordFailure(clientID, err)
		return nil, err
	}

	in, err = normalizePlacement(in)
	if err != nil {
		c.recordFailure(clientID, err)
		return nil, err
	}

	start := time.Now()
	err = c.store.RunInTx(ctx, func(tx *store.Tx) error {
		var buildErr error
		placed, buildErr = c.builder.Build(ctx, tx, clientID, in)
		return buildErr
	})
	util.OrderPlacementLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		err = asServiceError("failed to place order", err)
		c.recordFailure(clientID, err)
		return nil, err
	}

	util.OrdersPlacedTotal.Inc()
	util.OrderLinesPerOrder.Observe(float64(len(placed.Items)))
	span.SetAttributes(attribute.Int64("order.id", placed.Order.ID))

	c.logger.Info("Order placed",
		zap.Int64("order_id", placed.Order.ID),
		zap.Int64("client_id", clientID),
		zap.String("total_price", placed.Order.TotalPrice.StringFixed(2)),
		zap.Int("lines", len(placed.Items)))

	return placed, nil
}

func (c *Coordinator) recordFailure(clientID int64, err error) {
	kind := KindOf(err)
	util.OrdersFailedTotal.WithLabelValues(kind.String()).Inc()

	fields := []zap.Field{zap.Int64("client_id", clientID), zap.Error(err)}
	if kind == KindStorage {
		c.logger.Error("Order placement rolled back", fields...)
		return
	}
	c.logger.Info("Order placement rejected", fields...)
}
