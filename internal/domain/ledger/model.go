// Package ledger provides the movement ledger: the append-only record of
// stock changes and the authoritative stock quantity per product.
package ledger

import (
	"time"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/id"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/types"
)

// Kind defines the movement direction.
type Kind string

const (
	// KindIn increases stock; quantity is a positive magnitude.
	KindIn Kind = "IN"
	// KindOut decreases stock; quantity is a positive magnitude.
	KindOut Kind = "OUT"
	// KindAdjustment carries a signed, non-zero quantity.
	KindAdjustment Kind = "ADJUSTMENT"
)

// Valid reports whether k is a known movement kind.
func (k Kind) Valid() bool {
	switch k {
	case KindIn, KindOut, KindAdjustment:
		return true
	}
	return false
}

// MovementEvent is one append-only ledger entry. Events are never mutated or
// deleted; corrections append a compensating event.
type MovementEvent struct {
	ID        id.ID `db:"id" json:"id"`
	ProductID id.ID `db:"product_id" json:"productId"`

	Kind Kind `db:"kind" json:"kind"`

	// Quantity is a positive magnitude for IN/OUT and a signed non-zero
	// value for ADJUSTMENT. Zero-quantity movements are never persisted.
	Quantity int64 `db:"quantity" json:"quantity"`

	// UnitCost is the received unit cost for IN movements when known.
	UnitCost *types.Money `db:"unit_cost" json:"unitCost,omitempty"`

	// RecorderID/RecorderType link the event to the record that caused it
	// (a sale line, a consignment batch, a reversed movement). The period
	// aggregator uses the link to detect orphaned sale lines.
	RecorderID   *id.ID `db:"recorder_id" json:"recorderId,omitempty"`
	RecorderType string `db:"recorder_type" json:"recorderType,omitempty"`

	OccurredAt time.Time `db:"occurred_at" json:"occurredAt"`
	Note       string    `db:"note" json:"note,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// Recorder types written by this module.
const (
	RecorderTypeSaleLine         = "SaleLine"
	RecorderTypeConsignmentBatch = "ConsignmentBatch"
	RecorderTypeReversal         = "MovementReversal"
)

// SignedQuantity returns the stock delta this event applies:
// IN is positive, OUT negative, ADJUSTMENT as recorded.
func (e *MovementEvent) SignedQuantity() int64 {
	switch e.Kind {
	case KindOut:
		return -e.Quantity
	default:
		return e.Quantity
	}
}

// MovementSummary aggregates a product's movements over a date range.
// IN and positive ADJUSTMENT quantities accumulate into TotalIn;
// OUT and negative ADJUSTMENT magnitudes into TotalOut.
type MovementSummary struct {
	TotalIn       int64 `json:"totalIn"`
	TotalOut      int64 `json:"totalOut"`
	MovementCount int   `json:"movementCount"`
}
