package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/apperror"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/id"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/lock"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/types"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/catalog"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/ledger"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/infrastructure/storage/memory"
)

func newTestService(t *testing.T) (*ledger.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := ledger.NewService(store.Ledger(), memory.TxRunner{}, lock.NewKeyed(), store)
	return svc, store
}

func seedProduct(t *testing.T, store *memory.Store) *catalog.Product {
	t.Helper()
	product := catalog.NewProduct("BRS-001", "Beras Premium 1kg", catalog.OwnershipStoreOwned, types.MustMoney("14500"))
	cost := types.MustMoney("12000")
	product.UnitCostBasis = &cost
	require.NoError(t, store.Create(context.Background(), product))
	return product
}

func TestAppend_InIncreasesStock(t *testing.T) {
	svc, store := newTestService(t)
	product := seedProduct(t, store)
	ctx := context.Background()

	cost := types.MustMoney("12000")
	event, err := svc.Append(ctx, ledger.AppendInput{
		ProductID: product.ID,
		Kind:      ledger.KindIn,
		Quantity:  10,
		UnitCost:  &cost,
		Note:      "restock",
	})
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, ledger.KindIn, event.Kind)
	assert.False(t, event.OccurredAt.IsZero())

	stock, err := svc.CurrentStock(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stock)
}

func TestAppend_OutRejectedWhenInsufficient(t *testing.T) {
	svc, store := newTestService(t)
	product := seedProduct(t, store)
	ctx := context.Background()

	_, err := svc.Append(ctx, ledger.AppendInput{ProductID: product.ID, Kind: ledger.KindIn, Quantity: 5})
	require.NoError(t, err)

	_, err = svc.Append(ctx, ledger.AppendInput{ProductID: product.ID, Kind: ledger.KindOut, Quantity: 8})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, int64(8), appErr.Details["requested"])
	assert.Equal(t, int64(5), appErr.Details["available"])

	// The failed append leaves no trace.
	stock, err := svc.CurrentStock(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stock)

	events, err := store.ListByProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestAppend_NegativeAdjustmentIsStockChecked(t *testing.T) {
	svc, store := newTestService(t)
	product := seedProduct(t, store)
	ctx := context.Background()

	_, err := svc.Append(ctx, ledger.AppendInput{ProductID: product.ID, Kind: ledger.KindIn, Quantity: 5})
	require.NoError(t, err)

	_, err = svc.Append(ctx, ledger.AppendInput{ProductID: product.ID, Kind: ledger.KindAdjustment, Quantity: -6})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	_, err = svc.Append(ctx, ledger.AppendInput{ProductID: product.ID, Kind: ledger.KindAdjustment, Quantity: -3})
	require.NoError(t, err)

	stock, err := svc.CurrentStock(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stock)
}

func TestAppend_Validation(t *testing.T) {
	svc, store := newTestService(t)
	product := seedProduct(t, store)
	negative := types.MustMoney("-1")

	tests := []struct {
		name string
		in   ledger.AppendInput
	}{
		{
			name: "missing product id",
			in:   ledger.AppendInput{Kind: ledger.KindIn, Quantity: 1},
		},
		{
			name: "unknown kind",
			in:   ledger.AppendInput{ProductID: product.ID, Kind: "TRANSFER", Quantity: 1},
		},
		{
			name: "zero quantity in",
			in:   ledger.AppendInput{ProductID: product.ID, Kind: ledger.KindIn, Quantity: 0},
		},
		{
			name: "negative quantity out",
			in:   ledger.AppendInput{ProductID: product.ID, Kind: ledger.KindOut, Quantity: -2},
		},
		{
			name: "zero adjustment",
			in:   ledger.AppendInput{ProductID: product.ID, Kind: ledger.KindAdjustment, Quantity: 0},
		},
		{
			name: "negative unit cost",
			in:   ledger.AppendInput{ProductID: product.ID, Kind: ledger.KindIn, Quantity: 1, UnitCost: &negative},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Append(context.Background(), tt.in)
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
		})
	}
}

func TestReplayMatchesCurrentStock(t *testing.T) {
	svc, store := newTestService(t)
	product := seedProduct(t, store)
	ctx := context.Background()

	steps := []ledger.AppendInput{
		{ProductID: product.ID, Kind: ledger.KindIn, Quantity: 20},
		{ProductID: product.ID, Kind: ledger.KindOut, Quantity: 7},
		{ProductID: product.ID, Kind: ledger.KindAdjustment, Quantity: -2},
		{ProductID: product.ID, Kind: ledger.KindIn, Quantity: 4},
		{ProductID: product.ID, Kind: ledger.KindAdjustment, Quantity: 1},
	}
	for _, in := range steps {
		_, err := svc.Append(ctx, in)
		require.NoError(t, err)
	}

	stock, err := svc.CurrentStock(ctx, product.ID)
	require.NoError(t, err)
	replayed, err := svc.Replay(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(16), stock)
	assert.Equal(t, stock, replayed)
}

func TestSummary(t *testing.T) {
	svc, store := newTestService(t)
	product := seedProduct(t, store)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	steps := []ledger.AppendInput{
		{ProductID: product.ID, Kind: ledger.KindIn, Quantity: 10, OccurredAt: base},
		{ProductID: product.ID, Kind: ledger.KindOut, Quantity: 3, OccurredAt: base.AddDate(0, 0, 2)},
		{ProductID: product.ID, Kind: ledger.KindAdjustment, Quantity: -1, OccurredAt: base.AddDate(0, 0, 3)},
		// Outside the window.
		{ProductID: product.ID, Kind: ledger.KindIn, Quantity: 50, OccurredAt: base.AddDate(0, 1, 0)},
	}
	for _, in := range steps {
		_, err := svc.Append(ctx, in)
		require.NoError(t, err)
	}

	summary, err := svc.Summary(ctx, product.ID, base, base.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Equal(t, int64(10), summary.TotalIn)
	assert.Equal(t, int64(4), summary.TotalOut)
	assert.Equal(t, 3, summary.MovementCount)

	_, err = svc.Summary(ctx, product.ID, base, base.AddDate(0, 0, -1))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestReverse(t *testing.T) {
	svc, store := newTestService(t)
	product := seedProduct(t, store)
	ctx := context.Background()

	_, err := svc.Append(ctx, ledger.AppendInput{ProductID: product.ID, Kind: ledger.KindIn, Quantity: 10})
	require.NoError(t, err)
	out, err := svc.Append(ctx, ledger.AppendInput{ProductID: product.ID, Kind: ledger.KindOut, Quantity: 4})
	require.NoError(t, err)

	compensating, err := svc.Reverse(ctx, out.ID, "cashier keyed wrong quantity")
	require.NoError(t, err)
	assert.Equal(t, ledger.KindIn, compensating.Kind)
	assert.Equal(t, int64(4), compensating.Quantity)
	require.NotNil(t, compensating.RecorderID)
	assert.Equal(t, out.ID, *compensating.RecorderID)
	assert.Equal(t, ledger.RecorderTypeReversal, compensating.RecorderType)

	stock, err := svc.CurrentStock(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stock)

	corrections := store.Corrections()
	require.Len(t, corrections, 1)
	assert.Equal(t, out.ID, corrections[0].Original.ID)
	assert.Equal(t, compensating.ID, corrections[0].Compensating.ID)
	assert.Equal(t, "cashier keyed wrong quantity", corrections[0].Note)
}

func TestReverse_InSubjectToStockCheck(t *testing.T) {
	svc, store := newTestService(t)
	product := seedProduct(t, store)
	ctx := context.Background()

	in, err := svc.Append(ctx, ledger.AppendInput{ProductID: product.ID, Kind: ledger.KindIn, Quantity: 10})
	require.NoError(t, err)
	_, err = svc.Append(ctx, ledger.AppendInput{ProductID: product.ID, Kind: ledger.KindOut, Quantity: 8})
	require.NoError(t, err)

	// Undoing the receipt would drive stock to -8.
	_, err = svc.Reverse(ctx, in.ID, "wrong product received")
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))
	assert.Empty(t, store.Corrections())
}

func TestConcurrentAppends(t *testing.T) {
	svc, store := newTestService(t)
	product := seedProduct(t, store)
	ctx := context.Background()

	const workers = 30
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.Append(ctx, ledger.AppendInput{
				ProductID: product.ID,
				Kind:      ledger.KindIn,
				Quantity:  1,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stock, err := svc.CurrentStock(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(workers), stock)

	replayed, err := svc.Replay(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, stock, replayed)
}

func TestAppend_UnknownProduct(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Append(context.Background(), ledger.AppendInput{
		ProductID: id.New(),
		Kind:      ledger.KindIn,
		Quantity:  1,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}
