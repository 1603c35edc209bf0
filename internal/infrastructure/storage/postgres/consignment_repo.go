package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/apperror"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/id"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/types"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/consignment"
)

const (
	consignmentBatchesTable = "consignment_batches"
	saleAllocationsTable    = "sale_allocations"
)

// ConsignmentRepo implements consignment.Repository.
type ConsignmentRepo struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
}

// NewConsignmentRepo creates a new consignment repository.
func NewConsignmentRepo(txm *TxManager) *ConsignmentRepo {
	return &ConsignmentRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var batchColumns = []string{
	"id", "seq", "product_id", "consignor_id", "received_at",
	"quantity_received", "quantity_sold", "quantity_remaining",
	"unit_cost", "fee_type", "fee_rate", "status",
	"created_at", "updated_at",
}

// InsertBatch persists a new batch. The creation sequence is assigned by the
// database and written back into batch.Seq.
func (r *ConsignmentRepo) InsertBatch(ctx context.Context, batch *consignment.ConsignmentBatch) error {
	sql := `
		INSERT INTO consignment_batches (
			id, product_id, consignor_id, received_at,
			quantity_received, quantity_sold, quantity_remaining,
			unit_cost, fee_type, fee_rate, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING seq
	`

	querier := r.txm.GetQuerier(ctx)
	err := querier.QueryRow(ctx, sql,
		batch.ID, batch.ProductID, batch.ConsignorID, batch.ReceivedAt,
		batch.QuantityReceived, batch.QuantitySold, batch.QuantityRemaining,
		batch.UnitCost, batch.FeeType, batch.FeeRate, batch.Status,
		batch.CreatedAt, batch.UpdatedAt,
	).Scan(&batch.Seq)
	if err != nil {
		return apperror.NewStorage(fmt.Errorf("insert batch: %w", err))
	}

	return nil
}

// GetBatch retrieves one batch.
func (r *ConsignmentRepo) GetBatch(ctx context.Context, batchID id.ID) (*consignment.ConsignmentBatch, error) {
	q := r.builder.Select(batchColumns...).
		From(consignmentBatchesTable).
		Where(squirrel.Eq{"id": batchID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, apperror.NewStorage(fmt.Errorf("build query: %w", err))
	}

	var batch consignment.ConsignmentBatch
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &batch, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("consignment batch", batchID)
		}
		return nil, apperror.NewStorage(fmt.Errorf("get batch: %w", err))
	}

	return &batch, nil
}

// OpenBatches returns a product's OPEN batches in FIFO order.
func (r *ConsignmentRepo) OpenBatches(ctx context.Context, productID id.ID) ([]*consignment.ConsignmentBatch, error) {
	return r.openBatches(ctx, productID, false)
}

// OpenBatchesForUpdate is OpenBatches with pessimistic row locks, so two
// allocations for the same product cannot consume the same batch.
func (r *ConsignmentRepo) OpenBatchesForUpdate(ctx context.Context, productID id.ID) ([]*consignment.ConsignmentBatch, error) {
	return r.openBatches(ctx, productID, true)
}

func (r *ConsignmentRepo) openBatches(ctx context.Context, productID id.ID, forUpdate bool) ([]*consignment.ConsignmentBatch, error) {
	q := r.builder.Select(batchColumns...).
		From(consignmentBatchesTable).
		Where(squirrel.Eq{
			"product_id": productID,
			"status":     consignment.BatchOpen,
		}).
		OrderBy("received_at", "seq")

	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, apperror.NewStorage(fmt.Errorf("build query: %w", err))
	}

	var batches []*consignment.ConsignmentBatch
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &batches, sql, args...); err != nil {
		return nil, apperror.NewStorage(fmt.Errorf("select open batches: %w", err))
	}

	return batches, nil
}

// UpdateBatchQuantities persists sold/remaining/status for a batch the
// allocator mutated.
func (r *ConsignmentRepo) UpdateBatchQuantities(ctx context.Context, batch *consignment.ConsignmentBatch) error {
	q := r.builder.Update(consignmentBatchesTable).
		Set("quantity_sold", batch.QuantitySold).
		Set("quantity_remaining", batch.QuantityRemaining).
		Set("status", batch.Status).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": batch.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return apperror.NewStorage(fmt.Errorf("build update: %w", err))
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return apperror.NewStorage(fmt.Errorf("update batch: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("consignment batch", batch.ID)
	}

	return nil
}

// InsertAllocations persists the allocation steps of one sale line.
// Uses COPY when inside a transaction, which the allocator always is.
func (r *ConsignmentRepo) InsertAllocations(ctx context.Context, allocations []*consignment.SaleAllocation) error {
	if len(allocations) == 0 {
		return nil
	}

	columns := []string{
		"id", "transaction_line_id", "batch_id",
		"quantity_allocated", "unit_cost_at_allocation", "fee_amount",
		"created_at",
	}

	if tx := r.txm.GetTx(ctx); tx != nil {
		inserter := NewBatchInserter(r.txm)
		rows := make([][]any, 0, len(allocations))
		for _, a := range allocations {
			rows = append(rows, []any{
				a.ID, a.TransactionLineID, a.BatchID,
				a.QuantityAllocated, a.UnitCostAtAllocation, a.FeeAmount,
				a.CreatedAt,
			})
		}
		if _, err := inserter.CopyFromSlice(ctx, saleAllocationsTable, columns, rows); err != nil {
			return apperror.NewStorage(fmt.Errorf("copy allocations: %w", err))
		}
		return nil
	}

	q := r.builder.Insert(saleAllocationsTable).Columns(columns...)
	for _, a := range allocations {
		q = q.Values(
			a.ID, a.TransactionLineID, a.BatchID,
			a.QuantityAllocated, a.UnitCostAtAllocation, a.FeeAmount,
			a.CreatedAt,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return apperror.NewStorage(fmt.Errorf("build insert: %w", err))
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return apperror.NewStorage(fmt.Errorf("insert allocations: %w", err))
	}

	return nil
}

// AllocationsByLine returns the allocations recorded for a sale line.
func (r *ConsignmentRepo) AllocationsByLine(ctx context.Context, lineID id.ID) ([]*consignment.SaleAllocation, error) {
	q := r.builder.Select(
		"id", "transaction_line_id", "batch_id",
		"quantity_allocated", "unit_cost_at_allocation", "fee_amount",
		"created_at",
	).From(saleAllocationsTable).
		Where(squirrel.Eq{"transaction_line_id": lineID}).
		OrderBy("created_at", "id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, apperror.NewStorage(fmt.Errorf("build query: %w", err))
	}

	var allocations []*consignment.SaleAllocation
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &allocations, sql, args...); err != nil {
		return nil, apperror.NewStorage(fmt.Errorf("select allocations: %w", err))
	}

	return allocations, nil
}

// PayoutForConsignor aggregates a consignor's allocations within [from, to]
// by allocation time.
func (r *ConsignmentRepo) PayoutForConsignor(ctx context.Context, consignorID id.ID, from, to time.Time) (consignment.Payout, error) {
	sql := `
		SELECT
			COALESCE(SUM(a.quantity_allocated), 0) AS quantity_sold,
			COALESCE(SUM(a.quantity_allocated * a.unit_cost_at_allocation), 0) AS cost_owed,
			COALESCE(SUM(a.fee_amount), 0) AS fee_retained
		FROM sale_allocations a
		JOIN consignment_batches b ON b.id = a.batch_id
		WHERE b.consignor_id = $1
		  AND a.created_at >= $2 AND a.created_at <= $3
	`

	payout := consignment.Payout{ConsignorID: consignorID}
	var costOwed, feeRetained types.Money
	querier := r.txm.GetQuerier(ctx)
	err := querier.QueryRow(ctx, sql, consignorID, from, to).
		Scan(&payout.QuantitySold, &costOwed, &feeRetained)
	if err != nil && err != pgx.ErrNoRows {
		return payout, apperror.NewStorage(fmt.Errorf("aggregate payout: %w", err))
	}
	payout.CostOwed = costOwed
	payout.FeeRetained = feeRetained

	return payout, nil
}

// Ensure interface compliance.
var _ consignment.Repository = (*ConsignmentRepo)(nil)
