// Package consignment provides consignment batches and the FIFO allocation
// engine that prices consigned sales.
package consignment

import (
	"context"
	"time"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/apperror"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/id"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/types"
)

// FeeType defines how a consignor's fee is computed.
type FeeType string

const (
	// FeePercentage takes FeeRate as a fraction of sale revenue.
	FeePercentage FeeType = "PERCENTAGE"
	// FeeFixed takes FeeRate as a fixed amount per batch, charged pro-rata
	// as units sell.
	FeeFixed FeeType = "FIXED"
)

// Valid reports whether t is a known fee type.
func (t FeeType) Valid() bool {
	switch t {
	case FeePercentage, FeeFixed:
		return true
	}
	return false
}

// BatchStatus is the lifecycle state of a consignment batch.
type BatchStatus string

const (
	BatchOpen     BatchStatus = "OPEN"
	BatchDepleted BatchStatus = "DEPLETED"
)

// ConsignmentBatch is one receipt of consigned stock. Batches for a product
// are totally ordered by (ReceivedAt, Seq) and depleted in that order.
type ConsignmentBatch struct {
	ID id.ID `db:"id" json:"id"`

	// Seq is the storage-assigned creation sequence; it breaks ReceivedAt
	// ties so the FIFO order is total.
	Seq int64 `db:"seq" json:"seq"`

	ProductID   id.ID     `db:"product_id" json:"productId"`
	ConsignorID id.ID     `db:"consignor_id" json:"consignorId"`
	ReceivedAt  time.Time `db:"received_at" json:"receivedAt"`

	QuantityReceived  int64 `db:"quantity_received" json:"quantityReceived"`
	QuantitySold      int64 `db:"quantity_sold" json:"quantitySold"`
	QuantityRemaining int64 `db:"quantity_remaining" json:"quantityRemaining"`

	UnitCost types.Money `db:"unit_cost" json:"unitCost"`

	FeeType FeeType     `db:"fee_type" json:"feeType"`
	FeeRate types.Money `db:"fee_rate" json:"feeRate"`

	Status BatchStatus `db:"status" json:"status"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Validate checks batch invariants.
func (b *ConsignmentBatch) Validate(ctx context.Context) error {
	if id.IsNil(b.ProductID) {
		return apperror.NewValidation("product id is required").
			WithDetail("field", "productId")
	}
	if id.IsNil(b.ConsignorID) {
		return apperror.NewValidation("consignor id is required").
			WithDetail("field", "consignorId")
	}
	if b.QuantityReceived <= 0 {
		return apperror.NewValidation("received quantity must be positive").
			WithDetail("field", "quantityReceived")
	}
	if b.UnitCost.IsNegative() {
		return apperror.NewValidation("unit cost must not be negative").
			WithDetail("field", "unitCost")
	}
	if !b.FeeType.Valid() {
		return apperror.NewValidation("unknown fee type").
			WithDetail("field", "feeType").
			WithDetail("value", string(b.FeeType))
	}
	if b.FeeRate.IsNegative() {
		return apperror.NewValidation("fee rate must not be negative").
			WithDetail("field", "feeRate")
	}
	if b.FeeType == FeePercentage && b.FeeRate.GreaterThan(types.MoneyFromInt(1)) {
		return apperror.NewValidation("percentage fee rate must be a fraction in [0, 1]").
			WithDetail("field", "feeRate").
			WithDetail("value", b.FeeRate)
	}
	return nil
}

// take consumes up to want units from the batch and returns the consumed
// quantity. Transitions to DEPLETED when remaining hits zero.
func (b *ConsignmentBatch) take(want int64) int64 {
	got := want
	if b.QuantityRemaining < got {
		got = b.QuantityRemaining
	}
	b.QuantityRemaining -= got
	b.QuantitySold += got
	if b.QuantityRemaining == 0 {
		b.Status = BatchDepleted
	}
	b.UpdatedAt = time.Now().UTC()
	return got
}

// SaleAllocation records the consumption of one batch by one sale line.
// Append-only: created once per allocation step, never mutated.
type SaleAllocation struct {
	ID                id.ID       `db:"id" json:"id"`
	TransactionLineID id.ID       `db:"transaction_line_id" json:"transactionLineId"`
	BatchID           id.ID       `db:"batch_id" json:"batchId"`
	QuantityAllocated int64       `db:"quantity_allocated" json:"quantityAllocated"`
	UnitCostAtAllocation types.Money `db:"unit_cost_at_allocation" json:"unitCostAtAllocation"`
	FeeAmount         types.Money `db:"fee_amount" json:"feeAmount"`
	CreatedAt         time.Time   `db:"created_at" json:"createdAt"`
}

// AllocationResult is the outcome of one FIFO allocation.
type AllocationResult struct {
	Allocations []*SaleAllocation `json:"allocations"`
	TotalCOGS   types.Money       `json:"totalCogs"`
	TotalFee    types.Money       `json:"totalFee"`

	// MovementID is the single ledger OUT event emitted for the line.
	MovementID id.ID `json:"movementId"`
}

// Payout summarizes what a consignor is owed for a period.
type Payout struct {
	ConsignorID  id.ID       `json:"consignorId"`
	QuantitySold int64       `json:"quantitySold"`
	CostOwed     types.Money `json:"costOwed"`
	FeeRetained  types.Money `json:"feeRetained"`
}
