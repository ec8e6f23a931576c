package service

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/store"

	"github.com/shopspring/decimal"
)

// LineItem is one requested (product, quantity) pair
type LineItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// PlaceOrderInput is a placement request after identity has been resolved
type PlaceOrderInput struct {
	Items           []LineItem
	PaymentMethod   string
	ShippingAddress string
}

// PlacedOrder is a committed order header with its lines
type PlacedOrder struct {
	Order models.Order       `json:"order"`
	Items []models.OrderItem `json:"items"`
}

// validateItems rejects line sets no storage round trip could make valid
func validateItems(items []LineItem) error {
	if len(items) == 0 {
		return validationError("orderItems must contain at least one item")
	}
	for i, item := range items {
		if item.ProductID <= 0 {
			return validationError("orderItems[%d]: product_id is required", i)
		}
		if item.Quantity <= 0 {
			return validationError("orderItems[%d]: quantity must be greater than 0", i)
		}
		if item.Quantity > math.MaxInt32 {
			return validationError("orderItems[%d]: quantity must not exceed %d", i, math.MaxInt32)
		}
	}
	return nil
}

// normalizePlacement validates in and returns it with trimmed text fields
func normalizePlacement(in PlaceOrderInput) (PlaceOrderInput, error) {
	if err := validateItems(in.Items); err != nil {
		return in, err
	}

	in.PaymentMethod = strings.TrimSpace(in.PaymentMethod)
	if in.PaymentMethod == "" {
		return in, validationError("payment_method is required")
	}
	in.ShippingAddress = strings.TrimSpace(in.ShippingAddress)
	return in, nil
}

// OrderBuilder prices, reserves and persists an order inside a caller-owned
// unit of work
type OrderBuilder struct {
	pricing *PricingResolver
	ledger  *InventoryLedger
	now     func() time.Time
}

// NewOrderBuilder creates a new order builder
func NewOrderBuilder(pricing *PricingResolver, ledger *InventoryLedger) *OrderBuilder {
	return &OrderBuilder{
		pricing: pricing,
		ledger:  ledger,
		now:     time.Now,
	}
}

// Build writes the order for clientID through tx. Any error leaves tx with
// partial writes, so the caller must roll it back.
func (b *OrderBuilder) Build(ctx context.Context, tx *store.Tx, clientID int64, in PlaceOrderInput) (*PlacedOrder, error) {
	address, err := b.resolveAddress(ctx, tx, clientID, in.ShippingAddress)
	if err != nil {
		return nil, err
	}

	// rows are locked in ascending id order so overlapping placements queue
	// instead of deadlocking; lines are still priced in request order
	if _, err := tx.LockProducts(ctx, distinctProductIDs(in.Items)); err != nil {
		return nil, storageFailure("failed to lock products", err)
	}

	items := make([]models.OrderItem, 0, len(in.Items))
	total := decimal.Zero

	for _, line := range in.Items {
		quote, err := b.pricing.Resolve(ctx, tx, line.ProductID)
		if err != nil {
			return nil, err
		}

		storeID, err := b.ledger.Reserve(ctx, tx, line.ProductID, line.Quantity)
		if err != nil {
			return nil, err
		}

		item := models.OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: quote.UnitPrice,
			StoreID:   storeID,
		}
		total = total.Add(item.LineTotal())
		items = append(items, item)
	}

	// postgres keeps microseconds; truncate so the returned order matches the stored one
	order := models.Order{
		ClientID:        clientID,
		OrderDate:       b.now().UTC().Truncate(time.Microsecond),
		ShippingAddress: address,
		PaymentMethod:   in.PaymentMethod,
		TotalPrice:      total,
		Status:          models.OrderStatusWaitingForPayment,
	}

	if err := tx.InsertOrder(ctx, &order); err != nil {
		return nil, storageFailure("failed to create order", err)
	}

	for i := range items {
		items[i].OrderID = order.ID
		if err := tx.InsertOrderItem(ctx, &items[i]); err != nil {
			return nil, storageFailure("failed to create order item", err)
		}
	}

	return &PlacedOrder{Order: order, Items: items}, nil
}

// distinctProductIDs returns each product referenced by items once, ascending
func distinctProductIDs(items []LineItem) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// resolveAddress prefers the requested address and falls back to the
// client's stored default
func (b *OrderBuilder) resolveAddress(ctx context.Context, tx *store.Tx, clientID int64, requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}

	stored, err := tx.ClientAddress(ctx, clientID)
	if err != nil {
		return "", storageFailure("failed to read client address", err)
	}
	stored = strings.TrimSpace(stored)
	if stored == "" {
		return "", missingAddressError()
	}
	return stored, nil
}
