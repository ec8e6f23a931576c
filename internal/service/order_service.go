package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EventPublisher publishes domain events after their unit of work commits
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
}

// IdempotencyStore caches placement responses per idempotency key
type IdempotencyStore interface {
	GetResponse(ctx context.Context, key string) ([]byte, bool, error)
	SaveResponse(ctx context.Context, key string, response []byte, ttl time.Duration) error
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

const placementLockTTL = 30 * time.Second

// cachedResponse is what the idempotency store holds per key. Fingerprint
// identifies the request that produced Placement.
type cachedResponse struct {
	Fingerprint string       `json:"fingerprint"`
	Placement   *PlacedOrder `json:"placement"`
}

// placementFingerprint hashes the request as the builder will see it, so
// whitespace-only differences still match
func placementFingerprint(in PlaceOrderInput) string {
	in.PaymentMethod = strings.TrimSpace(in.PaymentMethod)
	in.ShippingAddress = strings.TrimSpace(in.ShippingAddress)

	// strings and ints only; Marshal cannot fail
	body, _ := json.Marshal(in)
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// OrderService places and reads orders
type OrderService struct {
	store          *store.Store
	coordinator    *Coordinator
	idempotency    IdempotencyStore
	publisher      EventPublisher
	idempotencyTTL time.Duration
	logger         *zap.Logger
}

// NewOrderService creates a new order service. idempotency and publisher may be nil.
func NewOrderService(
	store *store.Store,
	coordinator *Coordinator,
	idempotency IdempotencyStore,
	publisher EventPublisher,
	idempotencyTTL time.Duration,
) *OrderService {
	return &OrderService{
		store:          store,
		coordinator:    coordinator,
		idempotency:    idempotency,
		publisher:      publisher,
		idempotencyTTL: idempotencyTTL,
		logger:         util.GetLogger(),
	}
}

// PlaceOrder places an order for clientID. With a non-empty idempotencyKey a
// repeated request returns the first committed result and replayed is true.
// Reusing a key for a different request is a Conflict.
func (s *OrderService) PlaceOrder(ctx context.Context, clientID int64, idempotencyKey string, in PlaceOrderInput) (placed *PlacedOrder, replayed bool, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	defer func() { util.EndSpan(span, err) }()

	if idempotencyKey == "" || s.idempotency == nil {
		placed, err = s.coordinator.PlaceOrder(ctx, clientID, in)
		if err != nil {
			return nil, false, err
		}
		s.publishPlaced(ctx, placed)
		return placed, false, nil
	}

	key := fmt.Sprintf("order:%d:%s", clientID, idempotencyKey)
	fingerprint := placementFingerprint(in)

	if cached, ok, err := s.cachedPlacement(ctx, key, fingerprint); err != nil || ok {
		return cached, ok, err
	}

	acquired, err := s.idempotency.AcquireLock(ctx, key, placementLockTTL)
	if err != nil {
		// the cache is an optimisation; placement stays correct without it
		s.logger.Warn("Idempotency lock unavailable, placing without it",
			zap.String("idempotency_key", idempotencyKey), zap.Error(err))
	} else {
		if !acquired {
			return nil, false, requestInProgress()
		}
		defer func() {
			if err := s.idempotency.ReleaseLock(context.Background(), key); err != nil {
				s.logger.Warn("Failed to release idempotency lock", zap.String("key", key), zap.Error(err))
			}
		}()

		// the holder before us may have finished between the lookup and the lock
		if cached, ok, err := s.cachedPlacement(ctx, key, fingerprint); err != nil || ok {
			return cached, ok, err
		}
	}

	placed, err = s.coordinator.PlaceOrder(ctx, clientID, in)
	if err != nil {
		return nil, false, err
	}

	if body, err := json.Marshal(cachedResponse{Fingerprint: fingerprint, Placement: placed}); err != nil {
		s.logger.Error("Failed to encode placement for idempotency cache", zap.Error(err))
	} else if err := s.idempotency.SaveResponse(ctx, key, body, s.idempotencyTTL); err != nil {
		s.logger.Warn("Failed to cache placement", zap.String("key", key), zap.Error(err))
	}

	s.publishPlaced(ctx, placed)
	return placed, false, nil
}

// cachedPlacement returns the stored result for key if it was produced by the
// request with this fingerprint
func (s *OrderService) cachedPlacement(ctx context.Context, key, fingerprint string) (*PlacedOrder, bool, error) {
	body, ok, err := s.idempotency.GetResponse(ctx, key)
	if err != nil {
		s.logger.Warn("Idempotency lookup failed", zap.String("key", key), zap.Error(err))
		return nil, false, nil
	}
	if !ok {
		return nil, false, nil
	}

	var cached cachedResponse
	if err := json.Unmarshal(body, &cached); err != nil || cached.Placement == nil {
		s.logger.Error("Discarding unreadable idempotency entry", zap.String("key", key), zap.Error(err))
		return nil, false, nil
	}

	if cached.Fingerprint != fingerprint {
		s.logger.Info("Idempotency key reused for a different request",
			zap.String("key", key),
			zap.Int64("order_id", cached.Placement.Order.ID))
		return nil, false, idempotencyKeyReused()
	}

	util.IdempotentReplaysTotal.Inc()
	s.logger.Info("Replaying placement from idempotency cache",
		zap.String("key", key),
		zap.Int64("order_id", cached.Placement.Order.ID))
	return cached.Placement, true, nil
}

func (s *OrderService) publishPlaced(ctx context.Context, placed *PlacedOrder) {
	if s.publisher == nil {
		return
	}

	items := make([]models.OrderItemData, 0, len(placed.Items))
	for _, item := range placed.Items {
		items = append(items, models.OrderItemData{
			ProductID: item.ProductID,
			StoreID:   item.StoreID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now().UTC(),
		},
		OrderID:         placed.Order.ID,
		ClientID:        placed.Order.ClientID,
		TotalPrice:      placed.Order.TotalPrice,
		PaymentMethod:   placed.Order.PaymentMethod,
		ShippingAddress: placed.Order.ShippingAddress,
		Items:           items,
	}

	if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(event.EventType).Inc()
		s.logger.Error("Failed to publish OrderPlaced event",
			zap.Int64("order_id", placed.Order.ID), zap.Error(err))
	}
}

// GetOrder returns the caller's order with its lines
func (s *OrderService) GetOrder(ctx context.Context, orderID, clientID int64) (*PlacedOrder, error) {
	order, err := s.store.GetOrderByID(ctx, orderID, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, orderNotFound(orderID)
	}
	if err != nil {
		return nil, storageFailure("failed to read order", err)
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, storageFailure("failed to read order items", err)
	}
	return &PlacedOrder{Order: *order, Items: items}, nil
}

// QuoteLine is one priced line of a quote
type QuoteLine struct {
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
	InStock     bool
}

// Quote is a priced line set that reserves nothing
type Quote struct {
	Lines []QuoteLine
	Total decimal.Decimal
}

// Quote prices items at current catalog prices without reserving stock. The
// result is advisory; a later placement may still fail.
func (s *OrderService) Quote(ctx context.Context, items []LineItem) (*Quote, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, storageFailure("failed to read products", err)
	}

	quote := &Quote{Lines: make([]QuoteLine, 0, len(items)), Total: decimal.Zero}
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, productNotFound(item.ProductID)
		}

		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		quote.Lines = append(quote.Lines, QuoteLine{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   product.Price,
			LineTotal:   lineTotal,
			InStock:     product.Stock >= item.Quantity,
		})
		quote.Total = quote.Total.Add(lineTotal)
	}
	return quote, nil
}
