package worker

import (
	"context"
	"errors"

	"checkout-service/internal/broker"
	"checkout-service/internal/service"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// MessageConsumer delivers messages to a handler until its context ends
type MessageConsumer interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// PaymentWorker applies payment and fulfillment events to orders
type PaymentWorker struct {
	consumer     MessageConsumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewPaymentWorker creates a new payment worker
func NewPaymentWorker(consumer MessageConsumer, paymentService *service.PaymentService) *PaymentWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnPaymentConfirmed(paymentService.HandlePaymentConfirmed)
	eventHandler.OnPaymentFailed(paymentService.HandlePaymentFailed)
	eventHandler.OnFulfillmentCompleted(paymentService.HandleFulfillmentCompleted)

	return &PaymentWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start consumes until ctx is cancelled. Cancellation is a clean stop.
func (pw *PaymentWorker) Start(ctx context.Context) error {
	pw.logger.Info("Starting payment worker")

	err := pw.consumer.StartConsuming(ctx, pw.eventHandler.HandleMessage)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop stops the payment worker
func (pw *PaymentWorker) Stop() error {
	pw.logger.Info("Stopping payment worker")
	return pw.consumer.Close()
}
