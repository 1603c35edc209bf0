package consignment

import (
	"context"
	"time"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/id"
)

// Repository defines consignment persistence. OpenBatchesForUpdate must hold
// the returned rows exclusively for the rest of the transaction so two
// allocations cannot consume the same batch.
type Repository interface {
	// InsertBatch persists a new batch and assigns its creation sequence.
	InsertBatch(ctx context.Context, batch *ConsignmentBatch) error

	// GetBatch retrieves one batch.
	GetBatch(ctx context.Context, batchID id.ID) (*ConsignmentBatch, error)

	// OpenBatches returns a product's OPEN batches in FIFO order
	// (ReceivedAt ascending, creation sequence breaking ties).
	OpenBatches(ctx context.Context, productID id.ID) ([]*ConsignmentBatch, error)

	// OpenBatchesForUpdate is OpenBatches with pessimistic row locks.
	OpenBatchesForUpdate(ctx context.Context, productID id.ID) ([]*ConsignmentBatch, error)

	// UpdateBatchQuantities persists sold/remaining/status for a batch the
	// allocator mutated.
	UpdateBatchQuantities(ctx context.Context, batch *ConsignmentBatch) error

	// InsertAllocations persists the allocation steps of one sale line.
	InsertAllocations(ctx context.Context, allocations []*SaleAllocation) error

	// AllocationsByLine returns the allocations recorded for a sale line.
	AllocationsByLine(ctx context.Context, lineID id.ID) ([]*SaleAllocation, error)

	// PayoutForConsignor aggregates a consignor's allocations whose batches
	// belong to it, within [from, to] by allocation time.
	PayoutForConsignor(ctx context.Context, consignorID id.ID, from, to time.Time) (Payout, error)
}
