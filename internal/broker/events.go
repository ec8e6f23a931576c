package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher publishes order events keyed by order ID
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderPlaced publishes OrderPlaced event
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderStatusChanged publishes OrderStatusChanged event
func (ep *EventPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

func orderKey(orderID int64) string {
	return fmt.Sprintf("order-%d", orderID)
}

// EventHandler routes payment topic messages to registered handlers
type EventHandler struct {
	onPaymentConfirmed     func(context.Context, *models.PaymentConfirmedEvent) error
	onPaymentFailed        func(context.Context, *models.PaymentFailedEvent) error
	onFulfillmentCompleted func(context.Context, *models.FulfillmentCompletedEvent) error
	logger                 *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnPaymentConfirmed registers a handler for PaymentConfirmed events
func (eh *EventHandler) OnPaymentConfirmed(handler func(context.Context, *models.PaymentConfirmedEvent) error) {
	eh.onPaymentConfirmed = handler
}

// OnPaymentFailed registers a handler for PaymentFailed events
func (eh *EventHandler) OnPaymentFailed(handler func(context.Context, *models.PaymentFailedEvent) error) {
	eh.onPaymentFailed = handler
}

// OnFulfillmentCompleted registers a handler for FulfillmentCompleted events
func (eh *EventHandler) OnFulfillmentCompleted(handler func(context.Context, *models.FulfillmentCompletedEvent) error) {
	eh.onFulfillmentCompleted = handler
}

// HandleMessage routes messages to appropriate handlers. Undecodable
// messages are reported as ErrMalformedEvent.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypePaymentConfirmed:
		if eh.onPaymentConfirmed != nil {
			var event models.PaymentConfirmedEvent
			if err := decode(msg.Value, &event); err != nil {
				return err
			}
			return eh.onPaymentConfirmed(ctx, &event)
		}

	case models.EventTypePaymentFailed:
		if eh.onPaymentFailed != nil {
			var event models.PaymentFailedEvent
			if err := decode(msg.Value, &event); err != nil {
				return err
			}
			return eh.onPaymentFailed(ctx, &event)
		}

	case models.EventTypeFulfillmentCompleted:
		if eh.onFulfillmentCompleted != nil {
			var event models.FulfillmentCompletedEvent
			if err := decode(msg.Value, &event); err != nil {
				return err
			}
			return eh.onFulfillmentCompleted(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}

func decode(value []byte, event interface{}) error {
	if err := json.Unmarshal(value, event); err != nil {
		return fmt.Errorf("%w: %T: %v", ErrMalformedEvent, event, err)
	}
	return nil
}
