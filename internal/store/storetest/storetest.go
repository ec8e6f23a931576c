// Package storetest opens throwaway SQLite stores for tests and seeds the
// catalog and profile rows the order core only reads. NewPostgres opens the
// database named by TEST_DATABASE_URL for dialect-specific tests.
package storetest

import (
	"context"
	"os"
	"testing"

	"checkout-service/internal/models"
	"checkout-service/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// New returns a migrated in-memory store closed at test cleanup
func New(t testing.TB) *store.Store {
	t.Helper()

	s, err := store.NewStore(store.DriverSQLite, ":memory:", store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(context.Background()))
	return s
}

// NewPostgres returns a migrated store on TEST_DATABASE_URL, skipping the test
// when it is unset. Tables are shared between runs, so tests must only assert
// on rows they seeded themselves.
func NewPostgres(t testing.TB) *store.Store {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - requires database (set TEST_DATABASE_URL)")
	}

	s, err := store.NewStore(store.DriverPostgres, url, store.Options{MaxOpenConns: 10})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(context.Background()))
	return s
}

// InsertProduct seeds a product and returns its ID
func InsertProduct(t testing.TB, s *store.Store, storeID int64, price string, stock int) int64 {
	t.Helper()

	var id int64
	err := s.GetDB().Get(&id, s.GetDB().Rebind(
		"INSERT INTO products (store_id, name, price, stock) VALUES (?, ?, ?, ?) RETURNING id"),
		storeID, "product", decimal.RequireFromString(price), stock)
	require.NoError(t, err)
	return id
}

// InsertClient seeds a client profile. An empty address is stored as NULL.
func InsertClient(t testing.TB, s *store.Store, address string) int64 {
	t.Helper()

	var addr *string
	if address != "" {
		addr = &address
	}

	var id int64
	err := s.GetDB().Get(&id, s.GetDB().Rebind(
		"INSERT INTO clients (name, address) VALUES (?, ?) RETURNING id"), "client", addr)
	require.NoError(t, err)
	return id
}

// Stock reads a product's current stock
func Stock(t testing.TB, s *store.Store, productID int64) int {
	t.Helper()

	p, err := s.GetProductByID(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

// CountOrders returns the number of persisted order headers and lines
func CountOrders(t testing.TB, s *store.Store) (orders, items int) {
	t.Helper()

	require.NoError(t, s.GetDB().Get(&orders, "SELECT COUNT(*) FROM orders"))
	require.NoError(t, s.GetDB().Get(&items, "SELECT COUNT(*) FROM order_items"))
	return orders, items
}

// Order reads an order back with its lines, bypassing ownership
func Order(t testing.TB, s *store.Store, orderID int64) (*models.Order, []models.OrderItem) {
	t.Helper()

	var clientID int64
	require.NoError(t, s.GetDB().Get(&clientID, s.GetDB().Rebind("SELECT client_id FROM orders WHERE id = ?"), orderID))

	order, err := s.GetOrderByID(context.Background(), orderID, clientID)
	require.NoError(t, err)
	items, err := s.GetOrderItemsByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	return order, items
}
