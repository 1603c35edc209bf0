// Package finance derives reconciled revenue/COGS/profit summaries, split by
// ownership, from the ledger, allocations and completed transactions.
package finance

import (
	"context"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/id"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/types"
)

// OwnershipSplit is one side of the store-owned/consigned breakdown.
type OwnershipSplit struct {
	Revenue types.Money `json:"revenue"`
	COGS    types.Money `json:"cogs"`
	Profit  types.Money `json:"profit"`
}

// Inconsistency annotates a summary with a reconciliation problem found
// while aggregating. It never fails the query.
type Inconsistency struct {
	Code              string `json:"code"`
	TransactionLineID id.ID  `json:"transactionLineId"`
	ProductID         id.ID  `json:"productId"`
	Reason            string `json:"reason"`
}

// PeriodSummary is the reconciled financial summary for a date window.
type PeriodSummary struct {
	TotalRevenue types.Money `json:"totalRevenue"`
	TotalCOGS    types.Money `json:"totalCogs"`
	TotalExpense types.Money `json:"totalExpense"`
	TotalProfit  types.Money `json:"totalProfit"`

	// ProfitMargin is TotalProfit / TotalRevenue, zero when revenue is zero.
	ProfitMargin types.Money `json:"profitMargin"`

	// Toko covers store-owned inventory; Consignment covers consigned goods,
	// whose revenue is gross because the COGS is owed to consignors.
	Toko        OwnershipSplit `json:"toko"`
	Consignment OwnershipSplit `json:"consignment"`

	UniqueProductsSold int `json:"uniqueProductsSold"`

	Inconsistencies []Inconsistency `json:"inconsistencies,omitempty"`
}

// AllocationTotal aggregates the allocations of one sale line.
type AllocationTotal struct {
	Quantity int64
	COGS     types.Money
	Fee      types.Money
}

// Repository defines the aggregation reads the summarizer needs beyond the
// transaction list.
type Repository interface {
	// AllocationTotals aggregates sale allocations per transaction line.
	// Lines with no allocations are absent from the result.
	AllocationTotals(ctx context.Context, lineIDs []id.ID) (map[id.ID]AllocationTotal, error)

	// OutRecorded reports which of the given sale lines have a matching
	// ledger OUT movement.
	OutRecorded(ctx context.Context, lineIDs []id.ID) (map[id.ID]bool, error)
}
