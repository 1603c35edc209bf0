package ledger

import (
	"context"
	"time"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/id"
)

// Repository defines ledger persistence. Implementations must make Insert
// plus ApplyStockDelta atomic within the surrounding transaction.
type Repository interface {
	// Insert appends a movement event.
	Insert(ctx context.Context, event *MovementEvent) error

	// Get retrieves one movement event.
	Get(ctx context.Context, eventID id.ID) (*MovementEvent, error)

	// ListByProduct returns all events for a product in append order.
	ListByProduct(ctx context.Context, productID id.ID) ([]*MovementEvent, error)

	// Stock returns the cached stock for a product.
	// Returns apperror.CodeNotFound when the product does not exist.
	Stock(ctx context.Context, productID id.ID) (int64, error)

	// StockForUpdate returns the cached stock holding the product's row lock
	// for the rest of the transaction.
	StockForUpdate(ctx context.Context, productID id.ID) (int64, error)

	// ApplyStockDelta adds delta to the product's cached stock.
	ApplyStockDelta(ctx context.Context, productID id.ID, delta int64) error

	// Summary aggregates movements within [from, to].
	Summary(ctx context.Context, productID id.ID, from, to time.Time) (MovementSummary, error)
}

// AuditLog records correction trails for compensating events.
// Implementations live in the storage layer; a nil AuditLog disables auditing.
type AuditLog interface {
	RecordCorrection(ctx context.Context, original, compensating *MovementEvent, note string) error
}
