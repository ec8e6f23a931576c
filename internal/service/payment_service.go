package service

import (
	"context"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentService applies payment outcomes and fulfillment to placed orders.
// Callers are trusted to have verified the payment itself.
type PaymentService struct {
	lifecycle *Lifecycle
	publisher EventPublisher
	logger    *zap.Logger
}

// NewPaymentService creates a new payment service. publisher may be nil.
func NewPaymentService(lifecycle *Lifecycle, publisher EventPublisher) *PaymentService {
	return &PaymentService{
		lifecycle: lifecycle,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// ConfirmPayment marks the caller's order paid
func (ps *PaymentService) ConfirmPayment(ctx context.Context, orderID, callerID int64) (*Transition, error) {
	transition, err := ps.lifecycle.ConfirmPayment(ctx, orderID, callerID)
	if err != nil {
		util.PaymentConfirmationsTotal.WithLabelValues(KindOf(err).String()).Inc()
		return nil, err
	}

	util.PaymentConfirmationsTotal.WithLabelValues("success").Inc()
	ps.publishTransition(ctx, transition)
	return transition, nil
}

// HandlePaymentConfirmed applies a confirmation received from the payment topic
func (ps *PaymentService) HandlePaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error {
	ps.logger.Info("Handling payment confirmation",
		zap.Int64("order_id", event.OrderID),
		zap.String("transaction_ref", event.TransactionRef))

	_, err := ps.ConfirmPayment(ctx, event.OrderID, event.ClientID)
	return ps.settle(event.EventType, event.OrderID, err)
}

// HandleFulfillmentCompleted completes a paid order
func (ps *PaymentService) HandleFulfillmentCompleted(ctx context.Context, event *models.FulfillmentCompletedEvent) error {
	transition, err := ps.lifecycle.Complete(ctx, event.OrderID, event.ClientID)
	if err == nil {
		ps.publishTransition(ctx, transition)
	}
	return ps.settle(event.EventType, event.OrderID, err)
}

// HandlePaymentFailed cancels an order whose payment will not arrive
func (ps *PaymentService) HandlePaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	ps.logger.Warn("Payment failed, cancelling order",
		zap.Int64("order_id", event.OrderID),
		zap.String("reason", event.Reason))

	transition, err := ps.lifecycle.Cancel(ctx, event.OrderID, event.ClientID)
	if err == nil {
		ps.publishTransition(ctx, transition)
	}
	return ps.settle(event.EventType, event.OrderID, err)
}

// settle drops domain rejections so the message is acknowledged; only storage
// failures are returned for redelivery
func (ps *PaymentService) settle(eventType string, orderID int64, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) == KindStorage {
		return err
	}

	ps.logger.Info("Event rejected by order lifecycle, acknowledging",
		zap.String("event_type", eventType),
		zap.Int64("order_id", orderID),
		zap.Error(err))
	return nil
}

func (ps *PaymentService) publishTransition(ctx context.Context, t *Transition) {
	if ps.publisher == nil {
		return
	}

	event := &models.OrderStatusChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderStatusChanged,
			Timestamp: time.Now().UTC(),
		},
		OrderID:  t.OrderID,
		ClientID: t.ClientID,
		From:     t.From,
		To:       t.To,
	}

	if err := ps.publisher.PublishOrderStatusChanged(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(event.EventType).Inc()
		ps.logger.Error("Failed to publish OrderStatusChanged event",
			zap.Int64("order_id", t.OrderID), zap.Error(err))
	}
}
