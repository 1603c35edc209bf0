package consignment

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/apperror"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/id"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/lock"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/tx"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/types"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/catalog"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/ledger"
	"github.com/BroAegg/web-koperasi-umb-sub001/pkg/logger"
)

// ReceiveInput describes one consignment receipt.
type ReceiveInput struct {
	ProductID   id.ID
	ConsignorID id.ID
	Quantity    int64
	UnitCost    types.Money
	FeeType     FeeType
	FeeRate     types.Money
	ReceivedAt  time.Time
	Note        string
}

// AllocateInput describes one consigned sale line to price.
type AllocateInput struct {
	ProductID         id.ID
	TransactionLineID id.ID
	Quantity          int64
	UnitPrice         types.Money
}

// Service is the FIFO consignment engine.
type Service struct {
	repo      Repository
	ledger    *ledger.Service
	catalog   catalog.Provider
	txManager tx.Manager
	locks     lock.Locker
}

// NewService creates a consignment service.
func NewService(
	repo Repository,
	ledgerSvc *ledger.Service,
	catalogProvider catalog.Provider,
	txManager tx.Manager,
	locks lock.Locker,
) *Service {
	return &Service{
		repo:      repo,
		ledger:    ledgerSvc,
		catalog:   catalogProvider,
		txManager: txManager,
		locks:     locks,
	}
}

// ReceiveBatch records a consignment receipt: the batch and its paired
// ledger IN movement commit as one unit.
func (s *Service) ReceiveBatch(ctx context.Context, in ReceiveInput) (*ConsignmentBatch, error) {
	now := time.Now().UTC()
	batch := &ConsignmentBatch{
		ID:                id.New(),
		ProductID:         in.ProductID,
		ConsignorID:       in.ConsignorID,
		ReceivedAt:        in.ReceivedAt,
		QuantityReceived:  in.Quantity,
		QuantityRemaining: in.Quantity,
		UnitCost:          in.UnitCost,
		FeeType:           in.FeeType,
		FeeRate:           in.FeeRate,
		Status:            BatchOpen,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if batch.ReceivedAt.IsZero() {
		batch.ReceivedAt = now
	}
	if err := batch.Validate(ctx); err != nil {
		return nil, err
	}

	if err := s.requireConsigned(ctx, in.ProductID); err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, in.ProductID)
	if err != nil {
		return nil, fmt.Errorf("acquire product scope: %w", err)
	}
	defer release()

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.InsertBatch(ctx, batch); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}

		unitCost := batch.UnitCost
		_, err := s.ledger.Record(ctx, ledger.AppendInput{
			ProductID:    batch.ProductID,
			Kind:         ledger.KindIn,
			Quantity:     batch.QuantityReceived,
			UnitCost:     &unitCost,
			RecorderID:   &batch.ID,
			RecorderType: ledger.RecorderTypeConsignmentBatch,
			OccurredAt:   batch.ReceivedAt,
			Note:         in.Note,
		})
		if err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "consignment batch received",
		"batch_id", batch.ID,
		"product_id", batch.ProductID,
		"consignor_id", batch.ConsignorID,
		"quantity", batch.QuantityReceived,
	)
	return batch, nil
}

// AllocateSale consumes the product's OPEN batches oldest-first to satisfy a
// sale line. All-or-nothing: when open batches cannot cover the quantity the
// call fails with InsufficientConsignmentStock and nothing is persisted.
// On success the allocations, the batch decrements and exactly one ledger OUT
// movement commit together.
func (s *Service) AllocateSale(ctx context.Context, in AllocateInput) (*AllocationResult, error) {
	if in.Quantity <= 0 {
		return nil, apperror.NewValidation("quantity must be positive").
			WithDetail("field", "quantity").
			WithDetail("value", in.Quantity)
	}
	if in.UnitPrice.IsNegative() {
		return nil, apperror.NewValidation("unit price must not be negative").
			WithDetail("field", "unitPrice")
	}
	if id.IsNil(in.TransactionLineID) {
		return nil, apperror.NewValidation("transaction line id is required").
			WithDetail("field", "transactionLineId")
	}

	if err := s.requireConsigned(ctx, in.ProductID); err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, in.ProductID)
	if err != nil {
		return nil, fmt.Errorf("acquire product scope: %w", err)
	}
	defer release()

	var result *AllocationResult
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		batches, err := s.repo.OpenBatchesForUpdate(ctx, in.ProductID)
		if err != nil {
			return fmt.Errorf("load open batches: %w", err)
		}

		var available int64
		for _, b := range batches {
			available += b.QuantityRemaining
		}
		if available < in.Quantity {
			return apperror.NewInsufficientConsignmentStock(in.ProductID.String(), in.Quantity, available)
		}

		result = &AllocationResult{
			TotalCOGS: decimal.Zero,
			TotalFee:  decimal.Zero,
		}
		now := time.Now().UTC()
		remaining := in.Quantity
		for _, batch := range batches {
			if remaining == 0 {
				break
			}
			taken := batch.take(remaining)
			if taken == 0 {
				continue
			}
			remaining -= taken

			alloc := &SaleAllocation{
				ID:                   id.New(),
				TransactionLineID:    in.TransactionLineID,
				BatchID:              batch.ID,
				QuantityAllocated:    taken,
				UnitCostAtAllocation: batch.UnitCost,
				FeeAmount:            feeFor(batch, taken, in.UnitPrice),
				CreatedAt:            now,
			}
			result.Allocations = append(result.Allocations, alloc)
			result.TotalCOGS = result.TotalCOGS.Add(batch.UnitCost.Mul(decimal.NewFromInt(taken)))
			result.TotalFee = result.TotalFee.Add(alloc.FeeAmount)

			if err := s.repo.UpdateBatchQuantities(ctx, batch); err != nil {
				return fmt.Errorf("update batch %s: %w", batch.ID, err)
			}
		}

		if err := s.repo.InsertAllocations(ctx, result.Allocations); err != nil {
			return fmt.Errorf("insert allocations: %w", err)
		}

		// One OUT movement for the whole line; the ledger stays batch-agnostic.
		lineID := in.TransactionLineID
		movement, err := s.ledger.Record(ctx, ledger.AppendInput{
			ProductID:    in.ProductID,
			Kind:         ledger.KindOut,
			Quantity:     in.Quantity,
			RecorderID:   &lineID,
			RecorderType: ledger.RecorderTypeSaleLine,
		})
		if err != nil {
			return err
		}
		result.MovementID = movement.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "consigned sale allocated",
		"product_id", in.ProductID,
		"line_id", in.TransactionLineID,
		"quantity", in.Quantity,
		"batches", len(result.Allocations),
		"total_cogs", result.TotalCOGS,
		"total_fee", result.TotalFee,
	)
	return result, nil
}

// OpenBatches returns a product's OPEN batches in FIFO order.
func (s *Service) OpenBatches(ctx context.Context, productID id.ID) ([]*ConsignmentBatch, error) {
	return s.repo.OpenBatches(ctx, productID)
}

// AllocationsByLine returns the allocation steps recorded for a sale line.
func (s *Service) AllocationsByLine(ctx context.Context, lineID id.ID) ([]*SaleAllocation, error) {
	return s.repo.AllocationsByLine(ctx, lineID)
}

// ConsignorPayout reports what a consignor is owed for allocations within
// [from, to]: the cost of units sold plus the fees retained by the store.
func (s *Service) ConsignorPayout(ctx context.Context, consignorID id.ID, from, to time.Time) (Payout, error) {
	if to.Before(from) {
		return Payout{}, apperror.NewValidation("range end precedes start").
			WithDetail("from", from).
			WithDetail("to", to)
	}
	return s.repo.PayoutForConsignor(ctx, consignorID, from, to)
}

// requireConsigned rejects operations on products that are not consigned.
func (s *Service) requireConsigned(ctx context.Context, productID id.ID) error {
	product, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return fmt.Errorf("load product: %w", err)
	}
	switch product.OwnershipType {
	case catalog.OwnershipConsigned:
		return nil
	case catalog.OwnershipStoreOwned:
		return apperror.NewValidation("product is store-owned, not consigned").
			WithDetail("product_id", productID.String())
	default:
		return apperror.NewValidation("unknown ownership type").
			WithDetail("product_id", productID.String()).
			WithDetail("value", string(product.OwnershipType))
	}
}

// feeFor computes the consignor fee for taken units of a batch.
// PERCENTAGE: quantity x unit price x rate. FIXED: the batch fee pro-rated by
// the share of received units consumed.
func feeFor(batch *ConsignmentBatch, taken int64, unitPrice types.Money) types.Money {
	switch batch.FeeType {
	case FeePercentage:
		return unitPrice.Mul(decimal.NewFromInt(taken)).Mul(batch.FeeRate)
	case FeeFixed:
		return batch.FeeRate.
			Mul(decimal.NewFromInt(taken)).
			Div(decimal.NewFromInt(batch.QuantityReceived))
	default:
		return decimal.Zero
	}
}
