package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"checkout-service/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryIdempotency struct {
	mu        sync.Mutex
	responses map[string][]byte
	locks     map[string]bool
	failing   bool
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{responses: map[string][]byte{}, locks: map[string]bool{}}
}

var errCacheDown = errors.New("cache down")

func (m *memoryIdempotency) GetResponse(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return nil, false, errCacheDown
	}
	body, ok := m.responses[key]
	return body, ok, nil
}

func (m *memoryIdempotency) SaveResponse(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errCacheDown
	}
	m.responses[key] = response
	return nil
}

func (m *memoryIdempotency) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return false, errCacheDown
	}
	if m.locks[key] {
		return false, nil
	}
	m.locks[key] = true
	return true, nil
}

func (m *memoryIdempotency) ReleaseLock(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, key)
	return nil
}

func TestPlaceOrderIdempotentReplay(t *testing.T) {
	cache := newMemoryIdempotency()
	h := newHarness(t, cache)
	product := storetest.InsertProduct(t, h.store, 1, "100.00", 10)
	ctx := context.Background()
	in := PlaceOrderInput{
		PaymentMethod:   "cash",
		ShippingAddress: "Jl. Mawar 1",
		Items:           []LineItem{{ProductID: product, Quantity: 2}},
	}

	first, replayed, err := h.orders.PlaceOrder(ctx, 5, "key-1", in)
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed, err := h.orders.PlaceOrder(ctx, 5, "key-1", in)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.True(t, first.Order.TotalPrice.Equal(second.Order.TotalPrice))
	assert.True(t, first.Order.OrderDate.Equal(second.Order.OrderDate))

	assert.Equal(t, 8, storetest.Stock(t, h.store, product))
	orders, _ := storetest.CountOrders(t, h.store)
	assert.Equal(t, 1, orders)

	// keys are scoped per client
	_, replayed, err = h.orders.PlaceOrder(ctx, 6, "key-1", in)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, 6, storetest.Stock(t, h.store, product))

	placedEvents, _ := h.publisher.counts()
	assert.Equal(t, 2, placedEvents)
	assert.Empty(t, cache.locks)
}

func TestPlaceOrderKeyReusedForDifferentRequest(t *testing.T) {
	cache := newMemoryIdempotency()
	h := newHarness(t, cache)
	a := storetest.InsertProduct(t, h.store, 1, "10.00", 10)
	b := storetest.InsertProduct(t, h.store, 2, "99.00", 10)
	ctx := context.Background()

	first, _, err := h.orders.PlaceOrder(ctx, 1, "k1", PlaceOrderInput{
		PaymentMethod:   "cash",
		ShippingAddress: "Jl. Mawar 1",
		Items:           []LineItem{{ProductID: a, Quantity: 1}},
	})
	require.NoError(t, err)

	_, replayed, err := h.orders.PlaceOrder(ctx, 1, "k1", PlaceOrderInput{
		PaymentMethod:   "credit_card",
		ShippingAddress: "Jl. Anggrek 9",
		Items:           []LineItem{{ProductID: b, Quantity: 5}},
	})
	e := requireKind(t, err, KindConflict)
	assert.Equal(t, CodeKeyReused, e.Code)
	assert.False(t, replayed)

	assert.Equal(t, 10, storetest.Stock(t, h.store, b))
	orders, _ := storetest.CountOrders(t, h.store)
	assert.Equal(t, 1, orders)

	// surrounding whitespace is not a different request
	again, replayed, err := h.orders.PlaceOrder(ctx, 1, "k1", PlaceOrderInput{
		PaymentMethod:   " cash ",
		ShippingAddress: "Jl. Mawar 1\n",
		Items:           []LineItem{{ProductID: a, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.Order.ID, again.Order.ID)
}

func TestPlaceOrderIgnoresUnreadableCacheEntry(t *testing.T) {
	cache := newMemoryIdempotency()
	h := newHarness(t, cache)
	product := storetest.InsertProduct(t, h.store, 1, "1.00", 3)
	cache.responses["order:5:key-1"] = []byte(`{"order":{"id":1}}`)

	placed, replayed, err := h.orders.PlaceOrder(context.Background(), 5, "key-1", PlaceOrderInput{
		PaymentMethod:   "cash",
		ShippingAddress: "a",
		Items:           []LineItem{{ProductID: product, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, 2, storetest.Stock(t, h.store, product))
	assert.NotZero(t, placed.Order.ID)
}

func TestPlaceOrderInFlightDuplicate(t *testing.T) {
	cache := newMemoryIdempotency()
	h := newHarness(t, cache)
	product := storetest.InsertProduct(t, h.store, 1, "1.00", 10)
	cache.locks["order:5:key-1"] = true

	_, _, err := h.orders.PlaceOrder(context.Background(), 5, "key-1", PlaceOrderInput{
		PaymentMethod:   "cash",
		ShippingAddress: "a",
		Items:           []LineItem{{ProductID: product, Quantity: 1}},
	})

	e := requireKind(t, err, KindConflict)
	assert.Equal(t, CodeInProgress, e.Code)
	assert.Equal(t, 10, storetest.Stock(t, h.store, product))
}

func TestPlaceOrderFailuresAreNotCached(t *testing.T) {
	cache := newMemoryIdempotency()
	h := newHarness(t, cache)
	product := storetest.InsertProduct(t, h.store, 1, "1.00", 1)
	ctx := context.Background()
	in := PlaceOrderInput{
		PaymentMethod:   "cash",
		ShippingAddress: "a",
		Items:           []LineItem{{ProductID: product, Quantity: 2}},
	}

	_, _, err := h.orders.PlaceOrder(ctx, 5, "key-1", in)
	requireKind(t, err, KindInsufficientStock)
	assert.Empty(t, cache.responses)

	in.Items[0].Quantity = 1
	_, replayed, err := h.orders.PlaceOrder(ctx, 5, "key-1", in)
	require.NoError(t, err)
	assert.False(t, replayed)
}

func TestPlaceOrderWithoutReachableCache(t *testing.T) {
	cache := newMemoryIdempotency()
	cache.failing = true
	h := newHarness(t, cache)
	product := storetest.InsertProduct(t, h.store, 1, "1.00", 3)

	placed, replayed, err := h.orders.PlaceOrder(context.Background(), 5, "key-1", PlaceOrderInput{
		PaymentMethod:   "cash",
		ShippingAddress: "a",
		Items:           []LineItem{{ProductID: product, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.NotZero(t, placed.Order.ID)
}

func TestGetOrder(t *testing.T) {
	h := newHarness(t, nil)
	placed := placeOne(t, h, 11)
	ctx := context.Background()

	got, err := h.orders.GetOrder(ctx, placed.Order.ID, 11)
	require.NoError(t, err)
	assert.Equal(t, placed.Order.ID, got.Order.ID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "42.00", got.Items[0].UnitPrice.StringFixed(2))

	_, err = h.orders.GetOrder(ctx, placed.Order.ID, 12)
	requireKind(t, err, KindNotFound)
}

func TestQuote(t *testing.T) {
	h := newHarness(t, nil)
	a := storetest.InsertProduct(t, h.store, 1, "100.00", 10)
	b := storetest.InsertProduct(t, h.store, 2, "0.10", 1)
	ctx := context.Background()

	quote, err := h.orders.Quote(ctx, []LineItem{{ProductID: a, Quantity: 2}, {ProductID: b, Quantity: 3}})
	require.NoError(t, err)
	require.Len(t, quote.Lines, 2)
	assert.Equal(t, "200.30", quote.Total.StringFixed(2))
	assert.True(t, quote.Lines[0].InStock)
	assert.False(t, quote.Lines[1].InStock)
	assert.Equal(t, "0.30", quote.Lines[1].LineTotal.StringFixed(2))

	assert.Equal(t, 10, storetest.Stock(t, h.store, a), "quotes reserve nothing")

	_, err = h.orders.Quote(ctx, []LineItem{{ProductID: 999, Quantity: 1}})
	requireKind(t, err, KindNotFound)

	_, err = h.orders.Quote(ctx, nil)
	requireKind(t, err, KindValidation)
}
