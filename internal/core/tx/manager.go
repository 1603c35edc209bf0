// Package tx provides transaction management abstractions.
// Domain services depend on these interfaces rather than a concrete storage
// client, so the allocation and ledger invariants hold against any backend.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
// Implementations handle BEGIN, COMMIT, ROLLBACK, and nested calls.
type Manager interface {
	// RunInTransaction executes fn within a storage transaction.
	// If fn returns an error, the transaction is rolled back and no partial
	// state remains visible. Nested calls reuse the transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with snapshot-consistent read support.
// The period aggregator uses this so it never observes half of an allocation.
type ReadOnlyManager interface {
	Manager

	// ReadOnly executes fn in a read-only transaction with a consistent
	// point-in-time snapshot. Attempts to modify data fail.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
