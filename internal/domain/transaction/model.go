// Package transaction holds the read-only view of the records produced by
// the external transaction recorder. This core never creates or mutates
// them; the period aggregator consumes completed ones.
package transaction

import (
	"context"
	"time"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/id"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/types"
)

// Type classifies a transaction.
type Type string

const (
	TypeSale     Type = "SALE"
	TypePurchase Type = "PURCHASE"
	TypeReturn   Type = "RETURN"
	TypeIncome   Type = "INCOME"
	TypeExpense  Type = "EXPENSE"
)

// Status is the recorder-owned lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Transaction is one completed or pending business record.
type Transaction struct {
	ID     id.ID  `db:"id" json:"id"`
	Type   Type   `db:"type" json:"type"`
	Status Status `db:"status" json:"status"`

	Date time.Time `db:"date" json:"date"`

	// Amount carries the value of INCOME/EXPENSE records, which have no lines.
	Amount types.Money `db:"amount" json:"amount"`

	Lines []TransactionLine `db:"-" json:"lines,omitempty"`
}

// TransactionLine is one product line of a SALE/PURCHASE/RETURN transaction.
type TransactionLine struct {
	ID            id.ID `db:"id" json:"id"`
	TransactionID id.ID `db:"transaction_id" json:"transactionId"`
	ProductID     id.ID `db:"product_id" json:"productId"`

	Quantity   int64       `db:"quantity" json:"quantity"`
	UnitPrice  types.Money `db:"unit_price" json:"unitPrice"`
	TotalPrice types.Money `db:"total_price" json:"totalPrice"`

	// TotalCOGS and GrossProfit are filled in by the recorder from the batch
	// allocator's result for consigned SALE lines.
	TotalCOGS   types.Money `db:"total_cogs" json:"totalCogs"`
	GrossProfit types.Money `db:"gross_profit" json:"grossProfit"`
}

// Repository is the read-only surface this core consumes.
type Repository interface {
	// ListCompleted returns COMPLETED transactions with Date in [from, to],
	// lines included, ordered by date.
	ListCompleted(ctx context.Context, from, to time.Time) ([]*Transaction, error)
}
