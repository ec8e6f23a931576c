package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced          = "ORDER_PLACED"
	EventTypeOrderStatusChanged   = "ORDER_STATUS_CHANGED"
	EventTypePaymentConfirmed     = "PAYMENT_CONFIRMED"
	EventTypeFulfillmentCompleted = "FULFILLMENT_COMPLETED"
	EventTypePaymentFailed        = "PAYMENT_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published after a placement commits
type OrderPlacedEvent struct {
	BaseEvent
	OrderID         int64           `json:"order_id"`
	ClientID        int64           `json:"client_id"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	PaymentMethod   string          `json:"payment_method"`
	ShippingAddress string          `json:"shipping_address"`
	Items           []OrderItemData `json:"items"`
}

// OrderStatusChangedEvent published after a lifecycle transition commits
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID  int64       `json:"order_id"`
	ClientID int64       `json:"client_id"`
	From     OrderStatus `json:"from"`
	To       OrderStatus `json:"to"`
}

// PaymentConfirmedEvent is consumed from the payment topic. The producer is
// trusted to have verified the payment.
type PaymentConfirmedEvent struct {
	BaseEvent
	OrderID        int64  `json:"order_id"`
	ClientID       int64  `json:"client_id"`
	TransactionRef string `json:"transaction_ref,omitempty"`
}

// FulfillmentCompletedEvent is consumed from the payment topic once goods are delivered
type FulfillmentCompletedEvent struct {
	BaseEvent
	OrderID  int64 `json:"order_id"`
	ClientID int64 `json:"client_id"`
}

// PaymentFailedEvent is consumed from the payment topic when the provider
// gives up on an order; the order is cancelled
type PaymentFailedEvent struct {
	BaseEvent
	OrderID  int64  `json:"order_id"`
	ClientID int64  `json:"client_id"`
	Reason   string `json:"reason,omitempty"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64           `json:"product_id"`
	StoreID   int64           `json:"store_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
