package service

import (
	"context"
	"errors"

	"checkout-service/internal/store"

	"github.com/shopspring/decimal"
)

// PriceQuote is the authoritative price and stock for a product as seen by
// the current unit of work
type PriceQuote struct {
	ProductID int64
	UnitPrice decimal.Decimal
	Stock     int
	StoreID   int64
}

// PricingResolver looks up unit prices. Client-supplied prices are never used.
type PricingResolver struct{}

// NewPricingResolver creates a new pricing resolver
func NewPricingResolver() *PricingResolver {
	return &PricingResolver{}
}

// Resolve reads the product inside tx so the line is priced against the same
// row the ledger is about to reserve
func (r *PricingResolver) Resolve(ctx context.Context, tx *store.Tx, productID int64) (PriceQuote, error) {
	product, err := tx.LockProduct(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return PriceQuote{}, productNotFound(productID)
	}
	if err != nil {
		return PriceQuote{}, storageFailure("failed to read product", err)
	}

	return PriceQuote{
		ProductID: product.ID,
		UnitPrice: product.Price,
		Stock:     product.Stock,
		StoreID:   product.StoreID,
	}, nil
}
