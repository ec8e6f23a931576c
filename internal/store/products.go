package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"checkout-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const productColumns = "id, store_id, name, price, stock"

// LockProduct reads a product row and locks it for the rest of the unit of work
func (t *Tx) LockProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	query := t.rebind("SELECT " + productColumns + " FROM products WHERE id = ?" + t.forUpdate())
	if err := t.tx.GetContext(ctx, &product, query, id); err != nil {
		return nil, notFoundOr(err)
	}
	return &product, nil
}

// LockProducts locks the given product rows in ascending id order and returns
// the ids that exist. Taking every lock up front in a fixed order keeps two
// units of work over overlapping products from deadlocking on postgres.
func (t *Tx) LockProducts(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In("SELECT id FROM products WHERE id IN (?) ORDER BY id"+t.forUpdate(), ids)
	if err != nil {
		return nil, err
	}

	var locked []int64
	if err := t.tx.SelectContext(ctx, &locked, t.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}
	return locked, nil
}

// DecrementStock subtracts quantity from the product's stock only if enough
// remains, in one conditional statement, and returns the product's store.
// It reports false, without writing, when stock is insufficient or the
// product does not exist.
func (t *Tx) DecrementStock(ctx context.Context, id int64, quantity int) (int64, bool, error) {
	var storeID int64
	err := t.tx.GetContext(ctx, &storeID,
		t.rebind("UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ? RETURNING store_id"),
		quantity, id, quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to decrement stock: %w", err)
	}
	return storeID, true, nil
}

// ProductStock returns the stock visible to this unit of work
func (t *Tx) ProductStock(ctx context.Context, id int64) (int, error) {
	var stock int
	if err := t.tx.GetContext(ctx, &stock, t.rebind("SELECT stock FROM products WHERE id = ?"), id); err != nil {
		return 0, notFoundOr(err)
	}
	return stock, nil
}

// GetProductByID retrieves a product by ID without locking
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, s.db.Rebind("SELECT "+productColumns+" FROM products WHERE id = ?"), id)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs, keyed by ID
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]*models.Product, error) {
	if len(ids) == 0 {
		return map[int64]*models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT "+productColumns+" FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	if err := s.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return byID, nil
}

// ClientAddress returns the client's stored default shipping address, or ""
// when the client has none or does not exist.
func (t *Tx) ClientAddress(ctx context.Context, clientID int64) (string, error) {
	var address *string
	err := t.tx.GetContext(ctx, &address, t.rebind("SELECT address FROM clients WHERE id = ?"), clientID)
	if err != nil {
		if notFoundOr(err) == ErrNotFound {
			return "", nil
		}
		return "", err
	}
	if address == nil {
		return "", nil
	}
	return *address, nil
}
