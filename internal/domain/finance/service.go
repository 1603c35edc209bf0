package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/apperror"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/id"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/tx"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/catalog"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/transaction"
	"github.com/BroAegg/web-koperasi-umb-sub001/pkg/logger"
)

// CostPolicy controls COGS estimation for consigned sale lines that have no
// recorded allocations. EstimateRatio is a fraction of the product's sell
// price. A nil ratio disables estimation: such lines contribute zero COGS and
// are flagged for reconciliation. There is intentionally no default ratio.
type CostPolicy struct {
	EstimateRatio *decimal.Decimal
}

// Service is the period aggregator.
type Service struct {
	txns      transaction.Repository
	repo      Repository
	catalog   catalog.Provider
	txManager tx.ReadOnlyManager
	policy    CostPolicy
}

// NewService creates a period aggregator.
func NewService(
	txns transaction.Repository,
	repo Repository,
	catalogProvider catalog.Provider,
	txManager tx.ReadOnlyManager,
	policy CostPolicy,
) *Service {
	return &Service{
		txns:      txns,
		repo:      repo,
		catalog:   catalogProvider,
		txManager: txManager,
		policy:    policy,
	}
}

// Summarize produces the reconciled financial summary for [from, to] from
// all COMPLETED transactions in the window. The whole read runs on one
// consistent snapshot so a partially committed allocation is never observed.
// Reconciliation problems annotate the summary instead of failing it.
func (s *Service) Summarize(ctx context.Context, from, to time.Time) (*PeriodSummary, error) {
	if from.IsZero() || to.IsZero() {
		return nil, apperror.NewValidation("period bounds are required").
			WithDetail("from", from).
			WithDetail("to", to)
	}
	if to.Before(from) {
		return nil, apperror.NewValidation("period end precedes start").
			WithDetail("from", from).
			WithDetail("to", to)
	}

	var summary *PeriodSummary
	err := s.txManager.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		summary, err = s.summarize(ctx, from, to)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "period summarized",
		"from", from,
		"to", to,
		"total_revenue", summary.TotalRevenue,
		"total_profit", summary.TotalProfit,
		"inconsistencies", len(summary.Inconsistencies),
	)
	return summary, nil
}

func (s *Service) summarize(ctx context.Context, from, to time.Time) (*PeriodSummary, error) {
	txns, err := s.txns.ListCompleted(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list completed transactions: %w", err)
	}

	summary := &PeriodSummary{
		TotalRevenue: decimal.Zero,
		TotalCOGS:    decimal.Zero,
		TotalExpense: decimal.Zero,
		TotalProfit:  decimal.Zero,
		ProfitMargin: decimal.Zero,
		Toko:         zeroSplit(),
		Consignment:  zeroSplit(),
	}

	saleLineIDs := collectSaleLineIDs(txns)
	allocTotals, err := s.repo.AllocationTotals(ctx, saleLineIDs)
	if err != nil {
		return nil, fmt.Errorf("load allocation totals: %w", err)
	}
	outRecorded, err := s.repo.OutRecorded(ctx, saleLineIDs)
	if err != nil {
		return nil, fmt.Errorf("check ledger coverage: %w", err)
	}

	products := make(map[id.ID]*catalog.Product)
	soldProducts := make(map[id.ID]struct{})

	for _, txn := range txns {
		switch txn.Type {
		case transaction.TypeSale:
			for i := range txn.Lines {
				line := &txn.Lines[i]
				if err := s.applySaleLine(ctx, summary, line, products, allocTotals, outRecorded); err != nil {
					return nil, err
				}
				soldProducts[line.ProductID] = struct{}{}
			}

		case transaction.TypePurchase:
			for i := range txn.Lines {
				line := &txn.Lines[i]
				product, err := s.product(ctx, products, line.ProductID)
				if err != nil {
					return nil, err
				}
				// Consigned receipts carry no purchase cost to the store.
				if product.OwnershipType == catalog.OwnershipStoreOwned {
					summary.TotalExpense = summary.TotalExpense.Add(line.TotalPrice)
				}
			}

		case transaction.TypeExpense:
			summary.TotalExpense = summary.TotalExpense.Add(txn.Amount)

		case transaction.TypeIncome:
			summary.TotalRevenue = summary.TotalRevenue.Add(txn.Amount)

		case transaction.TypeReturn:
			// Returns arrive as compensating SALE records from the recorder;
			// the RETURN envelope itself does not aggregate.
		}
	}

	summary.Toko.Profit = summary.Toko.Revenue.Sub(summary.Toko.COGS)
	summary.Consignment.Profit = summary.Consignment.Revenue.Sub(summary.Consignment.COGS)
	summary.TotalCOGS = summary.Toko.COGS.Add(summary.Consignment.COGS)
	summary.TotalProfit = summary.Toko.Profit.Add(summary.Consignment.Profit)
	if summary.TotalRevenue.IsPositive() {
		summary.ProfitMargin = summary.TotalProfit.Div(summary.TotalRevenue)
	}
	summary.UniqueProductsSold = len(soldProducts)

	return summary, nil
}

func (s *Service) applySaleLine(
	ctx context.Context,
	summary *PeriodSummary,
	line *transaction.TransactionLine,
	products map[id.ID]*catalog.Product,
	allocTotals map[id.ID]AllocationTotal,
	outRecorded map[id.ID]bool,
) error {
	product, err := s.product(ctx, products, line.ProductID)
	if err != nil {
		return err
	}

	summary.TotalRevenue = summary.TotalRevenue.Add(line.TotalPrice)

	if !outRecorded[line.ID] {
		summary.Inconsistencies = append(summary.Inconsistencies, Inconsistency{
			Code:              apperror.CodeReconciliationInconsistency,
			TransactionLineID: line.ID,
			ProductID:         line.ProductID,
			Reason:            "sale line has no matching ledger OUT movement",
		})
	}

	switch product.OwnershipType {
	case catalog.OwnershipStoreOwned:
		cogs := product.UnitCostBasis.Mul(decimal.NewFromInt(line.Quantity))
		summary.Toko.Revenue = summary.Toko.Revenue.Add(line.TotalPrice)
		summary.Toko.COGS = summary.Toko.COGS.Add(cogs)

	case catalog.OwnershipConsigned:
		var cogs decimal.Decimal
		if total, ok := allocTotals[line.ID]; ok {
			cogs = total.COGS
		} else {
			cogs = s.estimateConsignedCOGS(product, line.Quantity)
			summary.Inconsistencies = append(summary.Inconsistencies, Inconsistency{
				Code:              apperror.CodeReconciliationInconsistency,
				TransactionLineID: line.ID,
				ProductID:         line.ProductID,
				Reason:            "consigned sale line has no recorded batch allocations",
			})
		}
		summary.Consignment.Revenue = summary.Consignment.Revenue.Add(line.TotalPrice)
		summary.Consignment.COGS = summary.Consignment.COGS.Add(cogs)
		// Consigned COGS is a payout obligation to the consignor, so it is
		// also a realized cash expense; store-owned COGS is not, since those
		// goods were paid for at purchase time.
		summary.TotalExpense = summary.TotalExpense.Add(cogs)

	default:
		return apperror.NewValidation("unknown ownership type").
			WithDetail("product_id", line.ProductID.String()).
			WithDetail("value", string(product.OwnershipType))
	}
	return nil
}

// estimateConsignedCOGS applies the configured cost policy when a consigned
// line has no batch data. Without a configured ratio the estimate is zero.
func (s *Service) estimateConsignedCOGS(product *catalog.Product, quantity int64) decimal.Decimal {
	if s.policy.EstimateRatio == nil {
		return decimal.Zero
	}
	return product.SellPrice.
		Mul(*s.policy.EstimateRatio).
		Mul(decimal.NewFromInt(quantity))
}

func (s *Service) product(ctx context.Context, cache map[id.ID]*catalog.Product, productID id.ID) (*catalog.Product, error) {
	if p, ok := cache[productID]; ok {
		return p, nil
	}
	p, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load product %s: %w", productID, err)
	}
	cache[productID] = p
	return p, nil
}

func collectSaleLineIDs(txns []*transaction.Transaction) []id.ID {
	var ids []id.ID
	for _, txn := range txns {
		if txn.Type != transaction.TypeSale {
			continue
		}
		for _, line := range txn.Lines {
			ids = append(ids, line.ID)
		}
	}
	return ids
}

func zeroSplit() OwnershipSplit {
	return OwnershipSplit{
		Revenue: decimal.Zero,
		COGS:    decimal.Zero,
		Profit:  decimal.Zero,
	}
}
