package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/apperror"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/id"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/lock"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/tx"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/types"
	"github.com/BroAegg/web-koperasi-umb-sub001/pkg/logger"
)

// AppendInput describes one stock-affecting event.
type AppendInput struct {
	ProductID id.ID
	Kind      Kind

	// Quantity is a positive magnitude for IN/OUT, signed for ADJUSTMENT.
	Quantity int64

	UnitCost     *types.Money
	RecorderID   *id.ID
	RecorderType string
	OccurredAt   time.Time
	Note         string
}

// Service provides the movement ledger operations.
type Service struct {
	repo      Repository
	txManager tx.Manager
	locks     lock.Locker
	audit     AuditLog // optional
}

// NewService creates a ledger service. audit may be nil.
func NewService(repo Repository, txManager tx.Manager, locks lock.Locker, audit AuditLog) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
		locks:     locks,
		audit:     audit,
	}
}

// Append validates and persists one movement event. The stock check, the
// append and the cached-stock update happen under the product's exclusive
// scope and commit as one unit.
func (s *Service) Append(ctx context.Context, in AppendInput) (*MovementEvent, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, in.ProductID)
	if err != nil {
		return nil, fmt.Errorf("acquire product scope: %w", err)
	}
	defer release()

	var event *MovementEvent
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		event, err = s.Record(ctx, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "movement appended",
		"movement_id", event.ID,
		"product_id", event.ProductID,
		"kind", event.Kind,
		"quantity", event.Quantity,
	)
	return event, nil
}

// Record appends a movement inside the caller's transaction and product
// scope. The batch allocator calls this so its multi-batch allocation and the
// resulting OUT movement commit together. Callers must hold the product's
// exclusive scope and an open transaction.
func (s *Service) Record(ctx context.Context, in AppendInput) (*MovementEvent, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	stock, err := s.repo.StockForUpdate(ctx, in.ProductID)
	if err != nil {
		return nil, fmt.Errorf("read stock: %w", err)
	}

	event := &MovementEvent{
		ID:           id.New(),
		ProductID:    in.ProductID,
		Kind:         in.Kind,
		Quantity:     in.Quantity,
		UnitCost:     in.UnitCost,
		RecorderID:   in.RecorderID,
		RecorderType: in.RecorderType,
		OccurredAt:   in.OccurredAt,
		Note:         in.Note,
		CreatedAt:    time.Now().UTC(),
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = event.CreatedAt
	}

	// Stock must never go negative, for OUT and for negative adjustments.
	delta := event.SignedQuantity()
	if delta < 0 && stock+delta < 0 {
		return nil, apperror.NewInsufficientStock(in.ProductID.String(), -delta, stock)
	}

	if err := s.repo.Insert(ctx, event); err != nil {
		return nil, fmt.Errorf("insert movement: %w", err)
	}
	if err := s.repo.ApplyStockDelta(ctx, in.ProductID, delta); err != nil {
		return nil, fmt.Errorf("apply stock delta: %w", err)
	}

	return event, nil
}

// CurrentStock returns the cached stock for a product. The cache equals a
// full replay of the product's events at all times.
func (s *Service) CurrentStock(ctx context.Context, productID id.ID) (int64, error) {
	return s.repo.Stock(ctx, productID)
}

// Replay recomputes stock from every recorded event. Used by tests and
// consistency verification; must always match CurrentStock.
func (s *Service) Replay(ctx context.Context, productID id.ID) (int64, error) {
	events, err := s.repo.ListByProduct(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("list movements: %w", err)
	}

	var total int64
	for _, e := range events {
		total += e.SignedQuantity()
	}
	return total, nil
}

// Summary aggregates a product's movements within [from, to].
func (s *Service) Summary(ctx context.Context, productID id.ID, from, to time.Time) (MovementSummary, error) {
	if to.Before(from) {
		return MovementSummary{}, apperror.NewValidation("range end precedes start").
			WithDetail("from", from).
			WithDetail("to", to)
	}
	return s.repo.Summary(ctx, productID, from, to)
}

// Reverse appends a compensating event that undoes one earlier movement.
// The original event is never touched; reversing an IN emits an OUT (subject
// to the usual stock check) and vice versa. A correction trail is written to
// the audit log when one is configured.
func (s *Service) Reverse(ctx context.Context, movementID id.ID, note string) (*MovementEvent, error) {
	original, err := s.repo.Get(ctx, movementID)
	if err != nil {
		return nil, fmt.Errorf("load movement: %w", err)
	}

	release, err := s.locks.Acquire(ctx, original.ProductID)
	if err != nil {
		return nil, fmt.Errorf("acquire product scope: %w", err)
	}
	defer release()

	in := AppendInput{
		ProductID:    original.ProductID,
		UnitCost:     original.UnitCost,
		RecorderID:   &original.ID,
		RecorderType: RecorderTypeReversal,
		Note:         note,
	}
	switch original.Kind {
	case KindIn:
		in.Kind = KindOut
		in.Quantity = original.Quantity
	case KindOut:
		in.Kind = KindIn
		in.Quantity = original.Quantity
	case KindAdjustment:
		in.Kind = KindAdjustment
		in.Quantity = -original.Quantity
	}

	var compensating *MovementEvent
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		compensating, err = s.Record(ctx, in)
		if err != nil {
			return err
		}
		if s.audit != nil {
			if err := s.audit.RecordCorrection(ctx, original, compensating, note); err != nil {
				return fmt.Errorf("record correction audit: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "movement reversed",
		"original_id", original.ID,
		"compensating_id", compensating.ID,
		"product_id", original.ProductID,
	)
	return compensating, nil
}

func validateInput(in AppendInput) error {
	if id.IsNil(in.ProductID) {
		return apperror.NewValidation("product id is required").
			WithDetail("field", "productId")
	}
	if !in.Kind.Valid() {
		return apperror.NewValidation("unknown movement kind").
			WithDetail("field", "kind").
			WithDetail("value", string(in.Kind))
	}
	switch in.Kind {
	case KindIn, KindOut:
		if in.Quantity <= 0 {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "quantity").
				WithDetail("value", in.Quantity)
		}
	case KindAdjustment:
		if in.Quantity == 0 {
			return apperror.NewValidation("adjustment quantity must be non-zero").
				WithDetail("field", "quantity")
		}
	}
	if in.UnitCost != nil && in.UnitCost.IsNegative() {
		return apperror.NewValidation("unit cost must not be negative").
			WithDetail("field", "unitCost")
	}
	return nil
}
