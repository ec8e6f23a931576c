package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		allowed  bool
	}{
		{OrderStatusWaitingForPayment, OrderStatusPaid, true},
		{OrderStatusWaitingForPayment, OrderStatusCancelled, true},
		{OrderStatusWaitingForPayment, OrderStatusCompleted, false},
		{OrderStatusPaid, OrderStatusCompleted, true},
		{OrderStatusPaid, OrderStatusPaid, false},
		{OrderStatusPaid, OrderStatusCancelled, false},
		{OrderStatusCompleted, OrderStatusPaid, false},
		{OrderStatusCancelled, OrderStatusPaid, false},
		{OrderStatus("unknown"), OrderStatusPaid, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.False(t, OrderStatusWaitingForPayment.Terminal())
	assert.False(t, OrderStatusPaid.Terminal())
	assert.True(t, OrderStatusCompleted.Terminal())
	assert.True(t, OrderStatusCancelled.Terminal())
	assert.False(t, OrderStatus("bogus").Terminal())
}

func TestSumItems(t *testing.T) {
	items := []OrderItem{
		{ProductID: 1, Quantity: 2, UnitPrice: decimal.RequireFromString("100.00")},
		{ProductID: 2, Quantity: 1, UnitPrice: decimal.RequireFromString("50.00")},
		{ProductID: 3, Quantity: 3, UnitPrice: decimal.RequireFromString("0.10")},
	}

	total := SumItems(items)

	assert.True(t, decimal.RequireFromString("250.30").Equal(total), "got %s", total)
	assert.Equal(t, "0.30", items[2].LineTotal().StringFixed(2))
}
