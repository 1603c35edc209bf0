package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/apperror"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/id"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/ledger"
)

const movementEventsTable = "movement_events"

// LedgerRepo implements ledger.Repository. The movement table is append-only;
// the cached stock lives on the products row and is mutated through
// ApplyStockDelta under the row lock taken by StockForUpdate.
type LedgerRepo struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
}

// NewLedgerRepo creates a new movement ledger repository.
func NewLedgerRepo(txm *TxManager) *LedgerRepo {
	return &LedgerRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var movementColumns = []string{
	"id", "product_id", "kind", "quantity", "unit_cost",
	"recorder_id", "recorder_type", "occurred_at", "note", "created_at",
}

// Insert appends a movement event.
func (r *LedgerRepo) Insert(ctx context.Context, event *ledger.MovementEvent) error {
	q := r.builder.Insert(movementEventsTable).
		Columns(movementColumns...).
		Values(
			event.ID, event.ProductID, event.Kind, event.Quantity, event.UnitCost,
			event.RecorderID, event.RecorderType, event.OccurredAt, event.Note, event.CreatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return apperror.NewStorage(fmt.Errorf("build insert: %w", err))
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return apperror.NewStorage(fmt.Errorf("insert movement: %w", err))
	}

	return nil
}

// Get retrieves one movement event.
func (r *LedgerRepo) Get(ctx context.Context, eventID id.ID) (*ledger.MovementEvent, error) {
	q := r.builder.Select(movementColumns...).
		From(movementEventsTable).
		Where(squirrel.Eq{"id": eventID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, apperror.NewStorage(fmt.Errorf("build query: %w", err))
	}

	var event ledger.MovementEvent
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &event, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("movement event", eventID)
		}
		return nil, apperror.NewStorage(fmt.Errorf("get movement: %w", err))
	}

	return &event, nil
}

// ListByProduct returns all events for a product in append order.
func (r *LedgerRepo) ListByProduct(ctx context.Context, productID id.ID) ([]*ledger.MovementEvent, error) {
	q := r.builder.Select(movementColumns...).
		From(movementEventsTable).
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("created_at", "id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, apperror.NewStorage(fmt.Errorf("build query: %w", err))
	}

	var events []*ledger.MovementEvent
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &events, sql, args...); err != nil {
		return nil, apperror.NewStorage(fmt.Errorf("select movements: %w", err))
	}

	return events, nil
}

// Stock returns the cached stock for a product.
func (r *LedgerRepo) Stock(ctx context.Context, productID id.ID) (int64, error) {
	return r.stock(ctx, productID, false)
}

// StockForUpdate returns the cached stock holding the product's row lock
// for the rest of the transaction.
func (r *LedgerRepo) StockForUpdate(ctx context.Context, productID id.ID) (int64, error) {
	return r.stock(ctx, productID, true)
}

func (r *LedgerRepo) stock(ctx context.Context, productID id.ID, forUpdate bool) (int64, error) {
	sql := `SELECT current_stock FROM products WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}

	var stock int64
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &stock, sql, productID); err != nil {
		if pgxscan.NotFound(err) {
			return 0, apperror.NewNotFound("product", productID)
		}
		return 0, apperror.NewStorage(fmt.Errorf("get stock: %w", err))
	}

	return stock, nil
}

// ApplyStockDelta adds delta to the product's cached stock. The products row
// must already be locked by StockForUpdate in the same transaction.
func (r *LedgerRepo) ApplyStockDelta(ctx context.Context, productID id.ID, delta int64) error {
	sql := `
		UPDATE products
		SET current_stock = current_stock + $2, updated_at = now()
		WHERE id = $1
	`

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, productID, delta)
	if err != nil {
		return apperror.NewStorage(fmt.Errorf("apply stock delta: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("product", productID)
	}

	return nil
}

// Summary aggregates movements within [from, to].
func (r *LedgerRepo) Summary(ctx context.Context, productID id.ID, from, to time.Time) (ledger.MovementSummary, error) {
	sql := `
		SELECT
			COALESCE(SUM(CASE WHEN kind = 'IN' THEN quantity
			                  WHEN kind = 'ADJUSTMENT' AND quantity > 0 THEN quantity
			                  ELSE 0 END), 0) AS total_in,
			COALESCE(SUM(CASE WHEN kind = 'OUT' THEN quantity
			                  WHEN kind = 'ADJUSTMENT' AND quantity < 0 THEN -quantity
			                  ELSE 0 END), 0) AS total_out,
			COUNT(*) AS movement_count
		FROM movement_events
		WHERE product_id = $1 AND occurred_at >= $2 AND occurred_at <= $3
	`

	var summary ledger.MovementSummary
	querier := r.txm.GetQuerier(ctx)
	err := querier.QueryRow(ctx, sql, productID, from, to).
		Scan(&summary.TotalIn, &summary.TotalOut, &summary.MovementCount)
	if err != nil {
		return summary, apperror.NewStorage(fmt.Errorf("summarize movements: %w", err))
	}

	return summary, nil
}

// Ensure interface compliance.
var _ ledger.Repository = (*LedgerRepo)(nil)
