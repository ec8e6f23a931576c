package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog row the order core reads prices from and reserves stock against
type Product struct {
	ID      int64           `db:"id" json:"id"`
	Name    string          `db:"name" json:"name"`
	Price   decimal.Decimal `db:"price" json:"price"`
	Stock   int             `db:"stock" json:"stock"`
	StoreID int64           `db:"store_id" json:"store_id"`
}

// Client is the profile row; the order core only reads the default address
type Client struct {
	ID      int64   `db:"id" json:"id"`
	Name    string  `db:"name" json:"name"`
	Address *string `db:"address" json:"address,omitempty"`
}

// Order represents a customer order header
type Order struct {
	ID              int64           `db:"id" json:"order_id"`
	ClientID        int64           `db:"client_id" json:"client_id"`
	OrderDate       time.Time       `db:"order_date" json:"order_date"`
	ShippingAddress string          `db:"shipping_address" json:"shipping_address"`
	PaymentMethod   string          `db:"payment_method" json:"payment_method"`
	TotalPrice      decimal.Decimal `db:"total_price" json:"total_price"`
	Status          OrderStatus     `db:"status" json:"status"`
	PaymentDate     *time.Time      `db:"payment_date" json:"payment_date,omitempty"`
}

// OrderItem is one immutable order line. UnitPrice is the price captured at
// placement time and is never re-read from the catalog.
type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"order_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	StoreID   int64           `db:"store_id" json:"store_id"`
}

// LineTotal returns unit price times quantity without rounding
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// SumItems returns the exact sum of all line extensions
func SumItems(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}
