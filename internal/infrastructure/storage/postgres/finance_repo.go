package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/apperror"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/id"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/types"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/finance"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/ledger"
)

// FinanceRepo implements finance.Repository, the aggregation reads behind
// the period summarizer.
type FinanceRepo struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
}

// NewFinanceRepo creates a new finance aggregation repository.
func NewFinanceRepo(txm *TxManager) *FinanceRepo {
	return &FinanceRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// AllocationTotals aggregates sale allocations per transaction line.
func (r *FinanceRepo) AllocationTotals(ctx context.Context, lineIDs []id.ID) (map[id.ID]finance.AllocationTotal, error) {
	totals := make(map[id.ID]finance.AllocationTotal, len(lineIDs))
	if len(lineIDs) == 0 {
		return totals, nil
	}

	q := r.builder.Select(
		"transaction_line_id",
		"COALESCE(SUM(quantity_allocated), 0)",
		"COALESCE(SUM(quantity_allocated * unit_cost_at_allocation), 0)",
		"COALESCE(SUM(fee_amount), 0)",
	).From(saleAllocationsTable).
		Where(squirrel.Eq{"transaction_line_id": lineIDs}).
		GroupBy("transaction_line_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, apperror.NewStorage(fmt.Errorf("build query: %w", err))
	}

	querier := r.txm.GetQuerier(ctx)
	rows, err := querier.Query(ctx, sql, args...)
	if err != nil {
		return nil, apperror.NewStorage(fmt.Errorf("aggregate allocations: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var lineID id.ID
		var quantity int64
		var cogs, fee types.Money
		if err := rows.Scan(&lineID, &quantity, &cogs, &fee); err != nil {
			return nil, apperror.NewStorage(fmt.Errorf("scan allocation total: %w", err))
		}
		totals[lineID] = finance.AllocationTotal{
			Quantity: quantity,
			COGS:     cogs,
			Fee:      fee,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewStorage(fmt.Errorf("iterate allocation totals: %w", err))
	}

	return totals, nil
}

// OutRecorded reports which of the given sale lines have a matching ledger
// OUT movement.
func (r *FinanceRepo) OutRecorded(ctx context.Context, lineIDs []id.ID) (map[id.ID]bool, error) {
	recorded := make(map[id.ID]bool, len(lineIDs))
	if len(lineIDs) == 0 {
		return recorded, nil
	}

	q := r.builder.Select("DISTINCT recorder_id").
		From(movementEventsTable).
		Where(squirrel.Eq{
			"kind":          ledger.KindOut,
			"recorder_type": ledger.RecorderTypeSaleLine,
			"recorder_id":   lineIDs,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, apperror.NewStorage(fmt.Errorf("build query: %w", err))
	}

	querier := r.txm.GetQuerier(ctx)
	rows, err := querier.Query(ctx, sql, args...)
	if err != nil {
		return nil, apperror.NewStorage(fmt.Errorf("query recorded movements: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var lineID id.ID
		if err := rows.Scan(&lineID); err != nil {
			return nil, apperror.NewStorage(fmt.Errorf("scan recorder id: %w", err))
		}
		recorded[lineID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewStorage(fmt.Errorf("iterate recorded movements: %w", err))
	}

	return recorded, nil
}

// Ensure interface compliance.
var _ finance.Repository = (*FinanceRepo)(nil)
