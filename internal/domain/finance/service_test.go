package finance_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/apperror"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/id"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/lock"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/types"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/catalog"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/consignment"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/finance"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/ledger"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/transaction"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/infrastructure/storage/memory"
)

var (
	periodFrom = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	periodTo   = time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC)
	saleDate   = time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
)

type testEnv struct {
	store      *memory.Store
	ledgerSvc  *ledger.Service
	consignSvc *consignment.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New()
	locks := lock.NewKeyed()
	ledgerSvc := ledger.NewService(store.Ledger(), memory.TxRunner{}, locks, store)
	consignSvc := consignment.NewService(store, ledgerSvc, store, memory.TxRunner{}, locks)
	return &testEnv{store: store, ledgerSvc: ledgerSvc, consignSvc: consignSvc}
}

func (e *testEnv) financeSvc(policy finance.CostPolicy) *finance.Service {
	return finance.NewService(e.store, e.store, e.store, memory.TxRunner{}, policy)
}

func (e *testEnv) tokoProduct(t *testing.T, code, cost, price string) *catalog.Product {
	t.Helper()
	product := catalog.NewProduct(code, "Beras Premium 1kg", catalog.OwnershipStoreOwned, types.MustMoney(price))
	basis := types.MustMoney(cost)
	product.UnitCostBasis = &basis
	require.NoError(t, e.store.Create(context.Background(), product))
	return product
}

func (e *testEnv) consignedProduct(t *testing.T, code, price string) *catalog.Product {
	t.Helper()
	product := catalog.NewProduct(code, "Keripik Pisang 200g", catalog.OwnershipConsigned, types.MustMoney(price))
	require.NoError(t, e.store.Create(context.Background(), product))
	return product
}

// tokoSale records a COMPLETED store-owned sale with its ledger OUT, the way
// the recorder does: opening stock IN, then the OUT keyed by the line id.
func (e *testEnv) tokoSale(t *testing.T, product *catalog.Product, qty int64, unitPrice string) transaction.TransactionLine {
	t.Helper()
	ctx := context.Background()

	_, err := e.ledgerSvc.Append(ctx, ledger.AppendInput{
		ProductID: product.ID, Kind: ledger.KindIn, Quantity: qty * 2,
	})
	require.NoError(t, err)

	line := transaction.TransactionLine{
		ID:         id.New(),
		ProductID:  product.ID,
		Quantity:   qty,
		UnitPrice:  types.MustMoney(unitPrice),
		TotalPrice: types.MustMoney(unitPrice).Mul(decimal.NewFromInt(qty)),
	}
	lineID := line.ID
	_, err = e.ledgerSvc.Append(ctx, ledger.AppendInput{
		ProductID:    product.ID,
		Kind:         ledger.KindOut,
		Quantity:     qty,
		RecorderID:   &lineID,
		RecorderType: ledger.RecorderTypeSaleLine,
	})
	require.NoError(t, err)

	e.addSale(line)
	return line
}

func (e *testEnv) addSale(lines ...transaction.TransactionLine) {
	txn := &transaction.Transaction{
		ID:     id.New(),
		Type:   transaction.TypeSale,
		Status: transaction.StatusCompleted,
		Date:   saleDate,
	}
	for i := range lines {
		lines[i].TransactionID = txn.ID
	}
	txn.Lines = lines
	e.store.AddTransaction(txn)
}

func (e *testEnv) addRecord(txType transaction.Type, amount string) {
	e.store.AddTransaction(&transaction.Transaction{
		ID:     id.New(),
		Type:   txType,
		Status: transaction.StatusCompleted,
		Date:   saleDate,
		Amount: types.MustMoney(amount),
	})
}

func assertMoney(t *testing.T, want string, got types.Money, label string) {
	t.Helper()
	assert.True(t, got.Equal(types.MustMoney(want)), "%s: want %s, got %s", label, want, got)
}

func TestSummarize_MixedPeriod(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	beras := env.tokoProduct(t, "BRS-001", "12000", "14500")
	env.tokoSale(t, beras, 5, "14500")

	kripik := env.consignedProduct(t, "KRP-001", "10000")
	consignor := id.New()
	for _, b := range []struct {
		qty  int64
		cost string
		at   time.Time
	}{
		{40, "7000", saleDate.AddDate(0, 0, -14)},
		{60, "7500", saleDate.AddDate(0, 0, -7)},
	} {
		_, err := env.consignSvc.ReceiveBatch(ctx, consignment.ReceiveInput{
			ProductID:   kripik.ID,
			ConsignorID: consignor,
			Quantity:    b.qty,
			UnitCost:    types.MustMoney(b.cost),
			FeeType:     consignment.FeePercentage,
			FeeRate:     types.MustMoney("0.10"),
			ReceivedAt:  b.at,
		})
		require.NoError(t, err)
	}

	consignedLine := transaction.TransactionLine{
		ID:         id.New(),
		ProductID:  kripik.ID,
		Quantity:   50,
		UnitPrice:  types.MustMoney("10000"),
		TotalPrice: types.MustMoney("500000"),
	}
	_, err := env.consignSvc.AllocateSale(ctx, consignment.AllocateInput{
		ProductID:         kripik.ID,
		TransactionLineID: consignedLine.ID,
		Quantity:          50,
		UnitPrice:         consignedLine.UnitPrice,
	})
	require.NoError(t, err)
	env.addSale(consignedLine)

	env.addRecord(transaction.TypeExpense, "250000")

	summary, err := env.financeSvc(finance.CostPolicy{}).Summarize(ctx, periodFrom, periodTo)
	require.NoError(t, err)

	assertMoney(t, "572500", summary.TotalRevenue, "total revenue")
	assertMoney(t, "72500", summary.Toko.Revenue, "toko revenue")
	assertMoney(t, "60000", summary.Toko.COGS, "toko cogs")
	assertMoney(t, "12500", summary.Toko.Profit, "toko profit")
	assertMoney(t, "500000", summary.Consignment.Revenue, "consignment revenue")
	// FIFO: 40 x 7000 from the older batch, 10 x 7500 from the newer.
	assertMoney(t, "355000", summary.Consignment.COGS, "consignment cogs")
	assertMoney(t, "145000", summary.Consignment.Profit, "consignment profit")
	assertMoney(t, "415000", summary.TotalCOGS, "total cogs")
	assertMoney(t, "157500", summary.TotalProfit, "total profit")

	// Consigned COGS is owed to the consignor, so it lands in expense too.
	assertMoney(t, "605000", summary.TotalExpense, "total expense")

	wantMargin := types.MustMoney("157500").Div(types.MustMoney("572500"))
	assert.True(t, summary.ProfitMargin.Equal(wantMargin), "margin: got %s", summary.ProfitMargin)

	assert.Equal(t, 2, summary.UniqueProductsSold)
	assert.Empty(t, summary.Inconsistencies)

	// Profit identity holds.
	assert.True(t, summary.TotalProfit.Equal(summary.Toko.Profit.Add(summary.Consignment.Profit)))
}

func TestSummarize_OrphanSaleLine(t *testing.T) {
	env := newTestEnv(t)
	beras := env.tokoProduct(t, "BRS-001", "12000", "14500")

	// A sale recorded with no matching ledger OUT.
	line := transaction.TransactionLine{
		ID:         id.New(),
		ProductID:  beras.ID,
		Quantity:   2,
		UnitPrice:  types.MustMoney("14500"),
		TotalPrice: types.MustMoney("29000"),
	}
	env.addSale(line)

	summary, err := env.financeSvc(finance.CostPolicy{}).Summarize(context.Background(), periodFrom, periodTo)
	require.NoError(t, err)

	// The summary still aggregates; the gap is annotated, not fatal.
	assertMoney(t, "29000", summary.TotalRevenue, "total revenue")
	require.Len(t, summary.Inconsistencies, 1)
	assert.Equal(t, apperror.CodeReconciliationInconsistency, summary.Inconsistencies[0].Code)
	assert.Equal(t, line.ID, summary.Inconsistencies[0].TransactionLineID)
	assert.Contains(t, summary.Inconsistencies[0].Reason, "no matching ledger OUT")
}

func TestSummarize_MissingAllocations(t *testing.T) {
	env := newTestEnv(t)
	kripik := env.consignedProduct(t, "KRP-001", "10000")

	line := transaction.TransactionLine{
		ID:         id.New(),
		ProductID:  kripik.ID,
		Quantity:   10,
		UnitPrice:  types.MustMoney("10000"),
		TotalPrice: types.MustMoney("100000"),
	}
	env.addSale(line)

	t.Run("no estimate ratio", func(t *testing.T) {
		summary, err := env.financeSvc(finance.CostPolicy{}).Summarize(context.Background(), periodFrom, periodTo)
		require.NoError(t, err)

		assertMoney(t, "0", summary.Consignment.COGS, "consignment cogs")
		assertMoney(t, "100000", summary.Consignment.Profit, "consignment profit")
		// One note for the missing allocations, one for the missing OUT.
		assert.Len(t, summary.Inconsistencies, 2)
	})

	t.Run("estimate ratio configured", func(t *testing.T) {
		ratio := decimal.RequireFromString("0.6")
		summary, err := env.financeSvc(finance.CostPolicy{EstimateRatio: &ratio}).
			Summarize(context.Background(), periodFrom, periodTo)
		require.NoError(t, err)

		// 10 x 10000 x 0.6, still flagged as estimated.
		assertMoney(t, "60000", summary.Consignment.COGS, "consignment cogs")
		assertMoney(t, "60000", summary.TotalExpense, "total expense")
		assert.Len(t, summary.Inconsistencies, 2)
	})
}

func TestSummarize_PurchasesAndRecords(t *testing.T) {
	env := newTestEnv(t)
	beras := env.tokoProduct(t, "BRS-001", "12000", "14500")
	kripik := env.consignedProduct(t, "KRP-001", "10000")

	purchase := &transaction.Transaction{
		ID:     id.New(),
		Type:   transaction.TypePurchase,
		Status: transaction.StatusCompleted,
		Date:   saleDate,
	}
	purchase.Lines = []transaction.TransactionLine{
		{
			ID:         id.New(),
			ProductID:  beras.ID,
			Quantity:   100,
			UnitPrice:  types.MustMoney("12000"),
			TotalPrice: types.MustMoney("1200000"),
		},
		// Consigned receipt: no cash out for the store.
		{
			ID:         id.New(),
			ProductID:  kripik.ID,
			Quantity:   40,
			UnitPrice:  types.MustMoney("7000"),
			TotalPrice: types.MustMoney("280000"),
		},
	}
	env.store.AddTransaction(purchase)

	env.addRecord(transaction.TypeIncome, "50000")
	env.addRecord(transaction.TypeReturn, "29000")

	summary, err := env.financeSvc(finance.CostPolicy{}).Summarize(context.Background(), periodFrom, periodTo)
	require.NoError(t, err)

	// Only the store-owned purchase line is an expense; the RETURN envelope
	// does not aggregate.
	assertMoney(t, "1200000", summary.TotalExpense, "total expense")
	assertMoney(t, "50000", summary.TotalRevenue, "total revenue")
	assert.Empty(t, summary.Inconsistencies)
}

func TestSummarize_ZeroRevenueMargin(t *testing.T) {
	env := newTestEnv(t)
	env.addRecord(transaction.TypeExpense, "75000")

	summary, err := env.financeSvc(finance.CostPolicy{}).Summarize(context.Background(), periodFrom, periodTo)
	require.NoError(t, err)

	assertMoney(t, "0", summary.TotalRevenue, "total revenue")
	assertMoney(t, "0", summary.ProfitMargin, "profit margin")
	assertMoney(t, "75000", summary.TotalExpense, "total expense")
}

func TestSummarize_Validation(t *testing.T) {
	env := newTestEnv(t)
	svc := env.financeSvc(finance.CostPolicy{})

	_, err := svc.Summarize(context.Background(), time.Time{}, periodTo)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = svc.Summarize(context.Background(), periodTo, periodFrom)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}
