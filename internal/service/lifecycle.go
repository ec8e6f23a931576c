package service

import (
	"context"
	"errors"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Transition is a committed status change
type Transition struct {
	OrderID     int64
	ClientID    int64
	From        models.OrderStatus
	To          models.OrderStatus
	PaymentDate *time.Time
}

// Lifecycle applies status transitions to existing orders. Every status write
// goes through models.OrderStatus.CanTransitionTo.
type Lifecycle struct {
	store  *store.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewLifecycle creates a new order lifecycle state machine
func NewLifecycle(store *store.Store) *Lifecycle {
	return &Lifecycle{
		store:  store,
		logger: util.GetLogger(),
		now:    time.Now,
	}
}

// ConfirmPayment moves the caller's order to paid and stamps the payment date.
// A paid or completed order is AlreadyProcessed.
func (l *Lifecycle) ConfirmPayment(ctx context.Context, orderID, callerID int64) (*Transition, error) {
	return l.transition(ctx, "Lifecycle.ConfirmPayment", orderID, callerID, models.OrderStatusPaid)
}

// Complete moves a paid order to completed
func (l *Lifecycle) Complete(ctx context.Context, orderID, callerID int64) (*Transition, error) {
	return l.transition(ctx, "Lifecycle.Complete", orderID, callerID, models.OrderStatusCompleted)
}

// Cancel moves an unpaid order to cancelled. Reserved stock is not returned.
func (l *Lifecycle) Cancel(ctx context.Context, orderID, callerID int64) (*Transition, error) {
	return l.transition(ctx, "Lifecycle.Cancel", orderID, callerID, models.OrderStatusCancelled)
}

func (l *Lifecycle) transition(ctx context.Context, name string, orderID, callerID int64, to models.OrderStatus) (result *Transition, err error) {
	ctx, span := util.StartSpan(ctx, name)
	span.SetAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int64("client.id", callerID),
		attribute.String("order.status.to", string(to)),
	)
	defer func() { util.EndSpan(span, err) }()

	if orderID <= 0 {
		return nil, validationError("order_id is required")
	}

	err = l.store.RunInTx(ctx, func(tx *store.Tx) error {
		order, err := tx.LockOrder(ctx, orderID, callerID)
		if errors.Is(err, store.ErrNotFound) {
			return orderNotFound(orderID)
		}
		if err != nil {
			return storageFailure("failed to read order", err)
		}

		if err := checkTransition(order, to); err != nil {
			return err
		}

		var paymentDate *time.Time
		if to == models.OrderStatusPaid {
			stamped := l.now().UTC().Truncate(time.Microsecond)
			paymentDate = &stamped
		}

		applied, err := tx.UpdateOrderStatus(ctx, orderID, order.Status, to, paymentDate)
		if err != nil {
			return storageFailure("failed to update order status", err)
		}
		if !applied {
			// another unit of work moved the order after we read it
			return alreadyProcessed(orderID, to)
		}

		result = &Transition{
			OrderID:     orderID,
			ClientID:    order.ClientID,
			From:        order.Status,
			To:          to,
			PaymentDate: paymentDate,
		}
		if paymentDate == nil {
			result.PaymentDate = order.PaymentDate
		}
		return nil
	})
	if err != nil {
		err = asServiceError("failed to update order status", err)
		l.logger.Info("Order transition rejected",
			zap.Int64("order_id", orderID),
			zap.Int64("client_id", callerID),
			zap.String("to", string(to)),
			zap.Error(err))
		return nil, err
	}

	util.OrderTransitionsTotal.WithLabelValues(string(result.From), string(result.To)).Inc()
	l.logger.Info("Order status changed",
		zap.Int64("order_id", orderID),
		zap.String("from", string(result.From)),
		zap.String("to", string(result.To)))

	return result, nil
}

// checkTransition rejects repeats as AlreadyProcessed and every other illegal
// move as InvalidTransition
func checkTransition(order *models.Order, to models.OrderStatus) error {
	if order.Status == to || (to == models.OrderStatusPaid && order.Status.Settled()) {
		return alreadyProcessed(order.ID, order.Status)
	}
	if !order.Status.CanTransitionTo(to) {
		return invalidTransition(order.ID, order.Status, to)
	}
	return nil
}
