package catalog

import (
	"context"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/id"
)

// Provider is the read surface consumed by the ledger, the batch allocator
// and the period aggregator.
type Provider interface {
	// Get retrieves a product by ID. Returns apperror.CodeNotFound when the
	// product does not exist.
	Get(ctx context.Context, productID id.ID) (*Product, error)
}

// Repository defines product persistence.
type Repository interface {
	Provider

	// Create persists a new product. Returns apperror.CodeConflict when the
	// code is already taken.
	Create(ctx context.Context, product *Product) error

	// GetByCode retrieves a product by its unique code.
	GetByCode(ctx context.Context, code string) (*Product, error)

	// List returns all products ordered by code.
	List(ctx context.Context) ([]*Product, error)
}
