package consignment_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/apperror"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/id"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/lock"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/types"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/catalog"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/consignment"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/ledger"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/infrastructure/storage/memory"
)

type testEnv struct {
	store     *memory.Store
	ledgerSvc *ledger.Service
	svc       *consignment.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New()
	locks := lock.NewKeyed()
	ledgerSvc := ledger.NewService(store.Ledger(), memory.TxRunner{}, locks, store)
	svc := consignment.NewService(store, ledgerSvc, store, memory.TxRunner{}, locks)
	return &testEnv{store: store, ledgerSvc: ledgerSvc, svc: svc}
}

func (e *testEnv) consignedProduct(t *testing.T, code string) *catalog.Product {
	t.Helper()
	product := catalog.NewProduct(code, "Keripik Pisang 200g", catalog.OwnershipConsigned, types.MustMoney("10000"))
	require.NoError(t, e.store.Create(context.Background(), product))
	return product
}

func (e *testEnv) receive(t *testing.T, in consignment.ReceiveInput) *consignment.ConsignmentBatch {
	t.Helper()
	batch, err := e.svc.ReceiveBatch(context.Background(), in)
	require.NoError(t, err)
	return batch
}

func TestReceiveBatch(t *testing.T) {
	env := newTestEnv(t)
	product := env.consignedProduct(t, "KRP-001")
	ctx := context.Background()

	batch := env.receive(t, consignment.ReceiveInput{
		ProductID:   product.ID,
		ConsignorID: id.New(),
		Quantity:    40,
		UnitCost:    types.MustMoney("7000"),
		FeeType:     consignment.FeePercentage,
		FeeRate:     types.MustMoney("0.10"),
	})
	assert.Equal(t, consignment.BatchOpen, batch.Status)
	assert.Equal(t, int64(40), batch.QuantityRemaining)

	// Receipt and its IN movement are one unit.
	stock, err := env.ledgerSvc.CurrentStock(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), stock)

	events, err := env.store.ListByProduct(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ledger.KindIn, events[0].Kind)
	assert.Equal(t, ledger.RecorderTypeConsignmentBatch, events[0].RecorderType)
	require.NotNil(t, events[0].RecorderID)
	assert.Equal(t, batch.ID, *events[0].RecorderID)
}

func TestReceiveBatch_RejectsStoreOwned(t *testing.T) {
	env := newTestEnv(t)
	product := catalog.NewProduct("BRS-001", "Beras Premium 1kg", catalog.OwnershipStoreOwned, types.MustMoney("14500"))
	cost := types.MustMoney("12000")
	product.UnitCostBasis = &cost
	require.NoError(t, env.store.Create(context.Background(), product))

	_, err := env.svc.ReceiveBatch(context.Background(), consignment.ReceiveInput{
		ProductID:   product.ID,
		ConsignorID: id.New(),
		Quantity:    10,
		UnitCost:    types.MustMoney("7000"),
		FeeType:     consignment.FeePercentage,
		FeeRate:     types.MustMoney("0.10"),
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestAllocateSale_FIFOAcrossBatches(t *testing.T) {
	env := newTestEnv(t)
	product := env.consignedProduct(t, "KRP-001")
	consignor := id.New()
	ctx := context.Background()

	older := env.receive(t, consignment.ReceiveInput{
		ProductID:   product.ID,
		ConsignorID: consignor,
		Quantity:    40,
		UnitCost:    types.MustMoney("7000"),
		FeeType:     consignment.FeePercentage,
		FeeRate:     types.MustMoney("0.10"),
		ReceivedAt:  time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC),
	})
	newer := env.receive(t, consignment.ReceiveInput{
		ProductID:   product.ID,
		ConsignorID: consignor,
		Quantity:    60,
		UnitCost:    types.MustMoney("7500"),
		FeeType:     consignment.FeePercentage,
		FeeRate:     types.MustMoney("0.10"),
		ReceivedAt:  time.Date(2026, 8, 10, 8, 0, 0, 0, time.UTC),
	})

	lineID := id.New()
	result, err := env.svc.AllocateSale(ctx, consignment.AllocateInput{
		ProductID:         product.ID,
		TransactionLineID: lineID,
		Quantity:          50,
		UnitPrice:         types.MustMoney("10000"),
	})
	require.NoError(t, err)

	// 50 units spans both batches: 40 drain the older, 10 come from the newer.
	require.Len(t, result.Allocations, 2)
	assert.Equal(t, older.ID, result.Allocations[0].BatchID)
	assert.Equal(t, int64(40), result.Allocations[0].QuantityAllocated)
	assert.Equal(t, newer.ID, result.Allocations[1].BatchID)
	assert.Equal(t, int64(10), result.Allocations[1].QuantityAllocated)

	// 40*7000 + 10*7500
	assert.True(t, result.TotalCOGS.Equal(types.MustMoney("355000")), "got %s", result.TotalCOGS)

	got, err := env.store.GetBatch(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, consignment.BatchDepleted, got.Status)
	assert.Equal(t, int64(0), got.QuantityRemaining)

	got, err = env.store.GetBatch(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, consignment.BatchOpen, got.Status)
	assert.Equal(t, int64(50), got.QuantityRemaining)

	// Exactly one OUT movement for the whole line.
	events, err := env.store.ListByProduct(ctx, product.ID)
	require.NoError(t, err)
	var outs []*ledger.MovementEvent
	for _, e := range events {
		if e.Kind == ledger.KindOut {
			outs = append(outs, e)
		}
	}
	require.Len(t, outs, 1)
	assert.Equal(t, int64(50), outs[0].Quantity)
	assert.Equal(t, ledger.RecorderTypeSaleLine, outs[0].RecorderType)
	require.NotNil(t, outs[0].RecorderID)
	assert.Equal(t, lineID, *outs[0].RecorderID)
	assert.Equal(t, result.MovementID, outs[0].ID)

	stock, err := env.ledgerSvc.CurrentStock(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), stock)
}

func TestAllocateSale_AllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	product := env.consignedProduct(t, "KRP-001")
	ctx := context.Background()

	batch := env.receive(t, consignment.ReceiveInput{
		ProductID:   product.ID,
		ConsignorID: id.New(),
		Quantity:    30,
		UnitCost:    types.MustMoney("7000"),
		FeeType:     consignment.FeePercentage,
		FeeRate:     types.MustMoney("0.10"),
	})

	lineID := id.New()
	_, err := env.svc.AllocateSale(ctx, consignment.AllocateInput{
		ProductID:         product.ID,
		TransactionLineID: lineID,
		Quantity:          40,
		UnitPrice:         types.MustMoney("10000"),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientConsignmentStock(err))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, int64(40), appErr.Details["requested"])
	assert.Equal(t, int64(30), appErr.Details["available"])

	// Nothing moved: no partial decrement, no allocations, no OUT.
	got, err := env.store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), got.QuantityRemaining)
	assert.Equal(t, consignment.BatchOpen, got.Status)

	allocs, err := env.svc.AllocationsByLine(ctx, lineID)
	require.NoError(t, err)
	assert.Empty(t, allocs)

	stock, err := env.ledgerSvc.CurrentStock(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), stock)
}

func TestAllocateSale_PercentageFee(t *testing.T) {
	env := newTestEnv(t)
	product := env.consignedProduct(t, "KRP-001")

	env.receive(t, consignment.ReceiveInput{
		ProductID:   product.ID,
		ConsignorID: id.New(),
		Quantity:    20,
		UnitCost:    types.MustMoney("7000"),
		FeeType:     consignment.FeePercentage,
		FeeRate:     types.MustMoney("0.10"),
	})

	result, err := env.svc.AllocateSale(context.Background(), consignment.AllocateInput{
		ProductID:         product.ID,
		TransactionLineID: id.New(),
		Quantity:          10,
		UnitPrice:         types.MustMoney("10000"),
	})
	require.NoError(t, err)

	// 10 x 10000 x 0.10
	assert.True(t, result.TotalFee.Equal(types.MustMoney("10000")), "got %s", result.TotalFee)
}

func TestAllocateSale_FixedFeeProRata(t *testing.T) {
	env := newTestEnv(t)
	product := env.consignedProduct(t, "JMU-001")

	env.receive(t, consignment.ReceiveInput{
		ProductID:   product.ID,
		ConsignorID: id.New(),
		Quantity:    30,
		UnitCost:    types.MustMoney("5500"),
		FeeType:     consignment.FeeFixed,
		FeeRate:     types.MustMoney("45000"),
	})

	result, err := env.svc.AllocateSale(context.Background(), consignment.AllocateInput{
		ProductID:         product.ID,
		TransactionLineID: id.New(),
		Quantity:          10,
		UnitPrice:         types.MustMoney("8000"),
	})
	require.NoError(t, err)

	// 45000 x 10/30
	assert.True(t, result.TotalFee.Equal(types.MustMoney("15000")), "got %s", result.TotalFee)
}

func TestAllocateSale_Validation(t *testing.T) {
	env := newTestEnv(t)
	product := env.consignedProduct(t, "KRP-001")

	tests := []struct {
		name string
		in   consignment.AllocateInput
	}{
		{
			name: "zero quantity",
			in: consignment.AllocateInput{
				ProductID:         product.ID,
				TransactionLineID: id.New(),
				UnitPrice:         types.MustMoney("10000"),
			},
		},
		{
			name: "negative unit price",
			in: consignment.AllocateInput{
				ProductID:         product.ID,
				TransactionLineID: id.New(),
				Quantity:          1,
				UnitPrice:         types.MustMoney("-1"),
			},
		},
		{
			name: "missing line id",
			in: consignment.AllocateInput{
				ProductID: product.ID,
				Quantity:  1,
				UnitPrice: types.MustMoney("10000"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.AllocateSale(context.Background(), tt.in)
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
		})
	}
}

func TestConsignorPayout(t *testing.T) {
	env := newTestEnv(t)
	product := env.consignedProduct(t, "KRP-001")
	consignor := id.New()
	ctx := context.Background()

	env.receive(t, consignment.ReceiveInput{
		ProductID:   product.ID,
		ConsignorID: consignor,
		Quantity:    40,
		UnitCost:    types.MustMoney("7000"),
		FeeType:     consignment.FeePercentage,
		FeeRate:     types.MustMoney("0.10"),
	})

	_, err := env.svc.AllocateSale(ctx, consignment.AllocateInput{
		ProductID:         product.ID,
		TransactionLineID: id.New(),
		Quantity:          15,
		UnitPrice:         types.MustMoney("10000"),
	})
	require.NoError(t, err)

	from := time.Now().UTC().Add(-time.Hour)
	to := time.Now().UTC().Add(time.Hour)
	payout, err := env.svc.ConsignorPayout(ctx, consignor, from, to)
	require.NoError(t, err)
	assert.Equal(t, int64(15), payout.QuantitySold)
	// 15 x 7000 owed to the consignor, 15 x 10000 x 0.10 kept by the store.
	assert.True(t, payout.CostOwed.Equal(types.MustMoney("105000")), "got %s", payout.CostOwed)
	assert.True(t, payout.FeeRetained.Equal(types.MustMoney("15000")), "got %s", payout.FeeRetained)

	_, err = env.svc.ConsignorPayout(ctx, consignor, to, from)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}
