package service

import (
	"context"
	"math"
	"testing"

	"checkout-service/internal/models"
	"checkout-service/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestPlaceOrderUsesDefaultAddress(t *testing.T) {
	h := newHarness(t, nil)
	clientID := storetest.InsertClient(t, h.store, "Jl. Mawar 1")
	productA := storetest.InsertProduct(t, h.store, 1, "100.00", 10)
	productB := storetest.InsertProduct(t, h.store, 2, "50.00", 1)

	placed, err := h.place(t, clientID, PlaceOrderInput{
		PaymentMethod: "bank_transfer",
		Items: []LineItem{
			{ProductID: productA, Quantity: 2},
			{ProductID: productB, Quantity: 1},
		},
	})
	require.NoError(t, err)

	assert.NotZero(t, placed.Order.ID)
	assert.Equal(t, "250.00", placed.Order.TotalPrice.StringFixed(2))
	assert.Equal(t, models.OrderStatusWaitingForPayment, placed.Order.Status)
	assert.Equal(t, "Jl. Mawar 1", placed.Order.ShippingAddress)
	assert.True(t, placed.Order.OrderDate.Equal(fixedNow))
	assert.Nil(t, placed.Order.PaymentDate)

	require.Len(t, placed.Items, 2)
	assert.Equal(t, productA, placed.Items[0].ProductID)
	assert.Equal(t, int64(1), placed.Items[0].StoreID)
	assert.Equal(t, int64(2), placed.Items[1].StoreID)

	assert.Equal(t, 8, storetest.Stock(t, h.store, productA))
	assert.Equal(t, 0, storetest.Stock(t, h.store, productB))

	stored, items := storetest.Order(t, h.store, placed.Order.ID)
	assert.True(t, stored.TotalPrice.Equal(models.SumItems(items)))
	assert.Equal(t, "Jl. Mawar 1", stored.ShippingAddress)

	placedEvents, _ := h.publisher.counts()
	assert.Equal(t, 1, placedEvents)
}

func TestPlaceOrderRollsBackOnInsufficientStock(t *testing.T) {
	h := newHarness(t, nil)
	clientID := storetest.InsertClient(t, h.store, "Jl. Mawar 1")
	productA := storetest.InsertProduct(t, h.store, 1, "100.00", 10)
	productB := storetest.InsertProduct(t, h.store, 2, "50.00", 0)

	_, err := h.place(t, clientID, PlaceOrderInput{
		PaymentMethod: "bank_transfer",
		Items: []LineItem{
			{ProductID: productA, Quantity: 2},
			{ProductID: productB, Quantity: 1},
		},
	})

	e := requireKind(t, err, KindInsufficientStock)
	assert.Equal(t, productB, e.ProductID)
	assert.Equal(t, 0, e.Available)

	assert.Equal(t, 10, storetest.Stock(t, h.store, productA))
	assert.Equal(t, 0, storetest.Stock(t, h.store, productB))
	orders, items := storetest.CountOrders(t, h.store)
	assert.Zero(t, orders)
	assert.Zero(t, items)

	placedEvents, _ := h.publisher.counts()
	assert.Zero(t, placedEvents)
}

func TestPlaceOrderUnknownProductRollsBack(t *testing.T) {
	h := newHarness(t, nil)
	productA := storetest.InsertProduct(t, h.store, 1, "10.00", 4)

	_, err := h.place(t, 7, PlaceOrderInput{
		PaymentMethod:   "cash",
		ShippingAddress: "Jl. Kenanga 3",
		Items: []LineItem{
			{ProductID: productA, Quantity: 4},
			{ProductID: 9999, Quantity: 1},
		},
	})

	requireKind(t, err, KindNotFound)
	assert.Equal(t, 4, storetest.Stock(t, h.store, productA))
	orders, _ := storetest.CountOrders(t, h.store)
	assert.Zero(t, orders)
}

func TestPlaceOrderExplicitAddressWins(t *testing.T) {
	h := newHarness(t, nil)
	clientID := storetest.InsertClient(t, h.store, "Jl. Mawar 1")
	product := storetest.InsertProduct(t, h.store, 1, "19.99", 5)

	placed, err := h.place(t, clientID, PlaceOrderInput{
		PaymentMethod:   "cash",
		ShippingAddress: "  Jl. Anggrek 9 ",
		Items:           []LineItem{{ProductID: product, Quantity: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Jl. Anggrek 9", placed.Order.ShippingAddress)
	assert.Equal(t, "59.97", placed.Order.TotalPrice.StringFixed(2))
}

func TestPlaceOrderMissingAddress(t *testing.T) {
	h := newHarness(t, nil)
	clientID := storetest.InsertClient(t, h.store, "")
	product := storetest.InsertProduct(t, h.store, 1, "1.00", 5)

	_, err := h.place(t, clientID, PlaceOrderInput{
		PaymentMethod: "cash",
		Items:         []LineItem{{ProductID: product, Quantity: 1}},
	})

	e := requireKind(t, err, KindValidation)
	assert.Equal(t, CodeMissingAddress, e.Code)
	assert.Equal(t, 5, storetest.Stock(t, h.store, product))
}

func TestPlaceOrderValidation(t *testing.T) {
	h := newHarness(t, nil)
	product := storetest.InsertProduct(t, h.store, 1, "1.00", 5)

	tests := []struct {
		name     string
		clientID int64
		in       PlaceOrderInput
	}{
		{
			name:     "no items",
			clientID: 1,
			in:       PlaceOrderInput{PaymentMethod: "cash", ShippingAddress: "a"},
		},
		{
			name:     "zero quantity",
			clientID: 1,
			in: PlaceOrderInput{PaymentMethod: "cash", ShippingAddress: "a",
				Items: []LineItem{{ProductID: product, Quantity: 0}}},
		},
		{
			name:     "negative quantity",
			clientID: 1,
			in: PlaceOrderInput{PaymentMethod: "cash", ShippingAddress: "a",
				Items: []LineItem{{ProductID: product, Quantity: -2}}},
		},
		{
			name:     "quantity beyond storable range",
			clientID: 1,
			in: PlaceOrderInput{PaymentMethod: "cash", ShippingAddress: "a",
				Items: []LineItem{{ProductID: product, Quantity: math.MaxInt32 + 1}}},
		},
		{
			name:     "missing product id",
			clientID: 1,
			in: PlaceOrderInput{PaymentMethod: "cash", ShippingAddress: "a",
				Items: []LineItem{{Quantity: 1}}},
		},
		{
			name:     "blank payment method",
			clientID: 1,
			in: PlaceOrderInput{PaymentMethod: "  ", ShippingAddress: "a",
				Items: []LineItem{{ProductID: product, Quantity: 1}}},
		},
		{
			name:     "no caller",
			clientID: 0,
			in: PlaceOrderInput{PaymentMethod: "cash", ShippingAddress: "a",
				Items: []LineItem{{ProductID: product, Quantity: 1}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.place(t, tt.clientID, tt.in)
			e := requireKind(t, err, KindValidation)
			assert.Equal(t, CodeValidation, e.Code)
		})
	}

	assert.Equal(t, 5, storetest.Stock(t, h.store, product))
	orders, _ := storetest.CountOrders(t, h.store)
	assert.Zero(t, orders)
}

func TestPlaceOrderRepeatedProductLines(t *testing.T) {
	h := newHarness(t, nil)
	product := storetest.InsertProduct(t, h.store, 1, "2.50", 5)

	placed, err := h.place(t, 3, PlaceOrderInput{
		PaymentMethod:   "cash",
		ShippingAddress: "a",
		Items:           []LineItem{{ProductID: product, Quantity: 2}, {ProductID: product, Quantity: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, "12.50", placed.Order.TotalPrice.StringFixed(2))
	assert.Equal(t, 0, storetest.Stock(t, h.store, product))

	_, err = h.place(t, 3, PlaceOrderInput{
		PaymentMethod:   "cash",
		ShippingAddress: "a",
		Items:           []LineItem{{ProductID: product, Quantity: 1}},
	})
	requireKind(t, err, KindInsufficientStock)
}

func TestConcurrentPlacementsNeverOversell(t *testing.T) {
	h := newHarness(t, nil)
	product := storetest.InsertProduct(t, h.store, 1, "10.00", 5)

	const attempts = 2
	errs := make([]error, attempts)

	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		i := i
		g.Go(func() error {
			_, errs[i] = h.place(t, int64(i+1), PlaceOrderInput{
				PaymentMethod:   "cash",
				ShippingAddress: "a",
				Items:           []LineItem{{ProductID: product, Quantity: 3}},
			})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		requireKind(t, err, KindInsufficientStock)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 2, storetest.Stock(t, h.store, product))
}

func TestStockIsConserved(t *testing.T) {
	h := newHarness(t, nil)
	product := storetest.InsertProduct(t, h.store, 1, "1.00", 20)
	ctx := context.Background()

	var g errgroup.Group
	for i := 0; i < 10; i++ {
		qty := i%4 + 1
		g.Go(func() error {
			_, _, _ = h.orders.PlaceOrder(ctx, 1, "", PlaceOrderInput{
				PaymentMethod:   "cash",
				ShippingAddress: "a",
				Items:           []LineItem{{ProductID: product, Quantity: qty}},
			})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ordered int
	require.NoError(t, h.store.GetDB().Get(&ordered,
		"SELECT COALESCE(SUM(quantity), 0) FROM order_items WHERE product_id = ?", product))

	remaining := storetest.Stock(t, h.store, product)
	assert.GreaterOrEqual(t, remaining, 0)
	assert.Equal(t, 20, remaining+ordered)
}
