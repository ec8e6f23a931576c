package service

import (
	"context"
	"errors"
	"time"

	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// InventoryLedger owns stock counters. Stock only ever changes through
// Reserve's conditional decrement.
type InventoryLedger struct {
	logger *zap.Logger
}

// NewInventoryLedger creates a new inventory ledger
func NewInventoryLedger() *InventoryLedger {
	return &InventoryLedger{logger: util.GetLogger()}
}

// Reserve decrements the product's stock by quantity inside tx if at least
// quantity remains, and returns the product's owning store. The decrement is
// undone with the rest of tx on rollback.
func (l *InventoryLedger) Reserve(ctx context.Context, tx *store.Tx, productID int64, quantity int) (int64, error) {
	ctx, span := util.StartSpan(ctx, "InventoryLedger.Reserve")
	span.SetAttributes(
		attribute.Int64("product.id", productID),
		attribute.Int("inventory.quantity", quantity),
	)

	start := time.Now()
	storeID, err := l.reserve(ctx, tx, productID, quantity)
	util.EndSpan(span, err)

	if err != nil {
		util.InventoryReservationsFailed.WithLabelValues(KindOf(err).String()).Inc()
		l.logger.Debug("Reservation rejected",
			zap.Int64("product_id", productID),
			zap.Int("quantity", quantity),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return 0, err
	}
	return storeID, nil
}

func (l *InventoryLedger) reserve(ctx context.Context, tx *store.Tx, productID int64, quantity int) (int64, error) {
	if quantity <= 0 {
		return 0, validationError("quantity for product %d must be positive", productID)
	}

	storeID, ok, err := tx.DecrementStock(ctx, productID, quantity)
	if err != nil {
		return 0, storageFailure("failed to reserve stock", err)
	}
	if ok {
		return storeID, nil
	}

	available, err := tx.ProductStock(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, productNotFound(productID)
	}
	if err != nil {
		return 0, storageFailure("failed to read stock", err)
	}
	return 0, insufficientStock(productID, available)
}
