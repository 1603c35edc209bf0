package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/apperror"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/id"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/transaction"
)

const (
	transactionsTable     = "transactions"
	transactionLinesTable = "transaction_lines"
)

// TransactionRepo implements transaction.Repository. Read-only: the rows are
// owned by the external transaction recorder.
type TransactionRepo struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
}

// NewTransactionRepo creates a new transaction read repository.
func NewTransactionRepo(txm *TxManager) *TransactionRepo {
	return &TransactionRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// ListCompleted returns COMPLETED transactions with Date in [from, to],
// lines included, ordered by date.
func (r *TransactionRepo) ListCompleted(ctx context.Context, from, to time.Time) ([]*transaction.Transaction, error) {
	q := r.builder.Select("id", "type", "status", "date", "amount").
		From(transactionsTable).
		Where(squirrel.Eq{"status": transaction.StatusCompleted}).
		Where(squirrel.GtOrEq{"date": from}).
		Where(squirrel.LtOrEq{"date": to}).
		OrderBy("date", "id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, apperror.NewStorage(fmt.Errorf("build query: %w", err))
	}

	var txns []*transaction.Transaction
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &txns, sql, args...); err != nil {
		return nil, apperror.NewStorage(fmt.Errorf("select transactions: %w", err))
	}
	if len(txns) == 0 {
		return txns, nil
	}

	byID := make(map[id.ID]*transaction.Transaction, len(txns))
	ids := make([]id.ID, 0, len(txns))
	for _, t := range txns {
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}

	lq := r.builder.Select(
		"id", "transaction_id", "product_id",
		"quantity", "unit_price", "total_price",
		"total_cogs", "gross_profit",
	).From(transactionLinesTable).
		Where(squirrel.Eq{"transaction_id": ids}).
		OrderBy("transaction_id", "id")

	sql, args, err = lq.ToSql()
	if err != nil {
		return nil, apperror.NewStorage(fmt.Errorf("build lines query: %w", err))
	}

	var lines []transaction.TransactionLine
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, apperror.NewStorage(fmt.Errorf("select lines: %w", err))
	}

	for _, line := range lines {
		t := byID[line.TransactionID]
		if t == nil {
			continue
		}
		t.Lines = append(t.Lines, line)
	}

	return txns, nil
}

// Ensure interface compliance.
var _ transaction.Repository = (*TransactionRepo)(nil)
