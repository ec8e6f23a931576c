package store

import (
	"context"
	"time"

	"checkout-service/internal/models"
)

const orderColumns = "id, client_id, order_date, shipping_address, payment_method, total_price, status, payment_date"

// InsertOrder creates a new order header and fills in its ID
func (t *Tx) InsertOrder(ctx context.Context, order *models.Order) error {
	query := t.rebind(`
		INSERT INTO orders (client_id, order_date, shipping_address, payment_method, total_price, status)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)

	return t.tx.GetContext(ctx, &order.ID, query,
		order.ClientID, order.OrderDate, order.ShippingAddress, order.PaymentMethod, order.TotalPrice, string(order.Status))
}

// InsertOrderItem creates a new order line and fills in its ID
func (t *Tx) InsertOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := t.rebind(`
		INSERT INTO order_items (order_id, product_id, quantity, unit_price, store_id)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`)

	return t.tx.GetContext(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.Quantity, item.UnitPrice, item.StoreID)
}

// LockOrder reads the order owned by clientID and locks it for the rest of
// the unit of work. An order owned by someone else is ErrNotFound.
func (t *Tx) LockOrder(ctx context.Context, orderID, clientID int64) (*models.Order, error) {
	var order models.Order
	query := t.rebind("SELECT " + orderColumns + " FROM orders WHERE id = ? AND client_id = ?" + t.forUpdate())
	if err := t.tx.GetContext(ctx, &order, query, orderID, clientID); err != nil {
		return nil, notFoundOr(err)
	}
	return &order, nil
}

// UpdateOrderStatus moves an order from one status to another. The write only
// applies while the order is still in from; it reports false otherwise.
// paymentDate is left untouched when nil.
func (t *Tx) UpdateOrderStatus(ctx context.Context, orderID int64, from, to models.OrderStatus, paymentDate *time.Time) (bool, error) {
	query := t.rebind("UPDATE orders SET status = ?, payment_date = COALESCE(?, payment_date) WHERE id = ? AND status = ?")

	result, err := t.tx.ExecContext(ctx, query, string(to), paymentDate, orderID, string(from))
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// GetOrderByID retrieves an order owned by clientID
func (s *Store) GetOrderByID(ctx context.Context, orderID, clientID int64) (*models.Order, error) {
	var order models.Order
	query := s.db.Rebind("SELECT " + orderColumns + " FROM orders WHERE id = ? AND client_id = ?")
	if err := s.db.GetContext(ctx, &order, query, orderID, clientID); err != nil {
		return nil, notFoundOr(err)
	}
	return &order, nil
}

// GetOrderItemsByOrderID retrieves all items for an order in insertion order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		s.db.Rebind("SELECT id, order_id, product_id, quantity, unit_price, store_id FROM order_items WHERE order_id = ? ORDER BY id"),
		orderID)
	return items, err
}
