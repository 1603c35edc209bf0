// Package main seeds the database with demo data for a small koperasi store:
// products, opening stock, consignment batches and a handful of recorder
// transactions to report on.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/id"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/lock"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/types"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/catalog"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/consignment"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/ledger"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/transaction"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/infrastructure/storage/postgres"
	"github.com/BroAegg/web-koperasi-umb-sub001/pkg/config"
	"github.com/BroAegg/web-koperasi-umb-sub001/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.App.Env == "development",
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)

	connString := cfg.DB.ConnectionString()
	if err := postgres.Migrate(ctx, connString); err != nil {
		log.Fatalw("failed to run migrations", "error", err)
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(connString))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	txManager := postgres.NewTxManager(pool)

	var locks lock.Locker = lock.NewKeyed()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		locks = lock.NewRedisLocker(rdb, lock.DefaultRedisLockerConfig())
	}

	audit, err := postgres.NewCorrectionAudit(txManager)
	if err != nil {
		log.Fatalw("failed to create correction audit", "error", err)
	}

	productRepo := postgres.NewProductRepo(txManager)
	ledgerRepo := postgres.NewLedgerRepo(txManager)
	consignmentRepo := postgres.NewConsignmentRepo(txManager)

	catalogSvc := catalog.NewService(productRepo)
	ledgerSvc := ledger.NewService(ledgerRepo, txManager, locks, audit)
	consignmentSvc := consignment.NewService(consignmentRepo, ledgerSvc, productRepo, txManager, locks)

	if err := seed(ctx, pool, catalogSvc, ledgerSvc, consignmentSvc); err != nil {
		log.Fatalw("seeding failed", "error", err)
	}

	log.Info("seeding completed successfully")
}

func seed(
	ctx context.Context,
	pool *postgres.Pool,
	catalogSvc *catalog.Service,
	ledgerSvc *ledger.Service,
	consignmentSvc *consignment.Service,
) error {
	now := time.Now().UTC()
	consignorKripik := id.New()
	consignorJamu := id.New()

	tokoSeeds := []struct {
		code, name, cost, price string
	}{
		{"BRS-001", "Beras Premium 1kg", "12000", "14500"},
		{"MNY-001", "Minyak Goreng 1L", "16500", "18900"},
		{"GLA-001", "Gula Pasir 1kg", "13800", "15500"},
	}
	tokoProducts := make([]*catalog.Product, 0, len(tokoSeeds))
	for _, s := range tokoSeeds {
		p := catalog.NewProduct(s.code, s.name, catalog.OwnershipStoreOwned, types.MustMoney(s.price))
		cost := types.MustMoney(s.cost)
		p.UnitCostBasis = &cost
		tokoProducts = append(tokoProducts, p)
	}

	consignedProducts := []*catalog.Product{
		catalog.NewProduct("KRP-001", "Keripik Pisang Bu Sari", catalog.OwnershipConsigned, types.MustMoney("10000")),
		catalog.NewProduct("JMU-001", "Jamu Kunyit Asam Botol", catalog.OwnershipConsigned, types.MustMoney("8000")),
	}

	for _, p := range append(append([]*catalog.Product{}, tokoProducts...), consignedProducts...) {
		if err := catalogSvc.Create(ctx, p); err != nil {
			return fmt.Errorf("create product %s: %w", p.Code, err)
		}
		logger.Info(ctx, "product created", "code", p.Code, "product_id", p.ID)
	}

	// Opening stock for store-owned products.
	for _, p := range tokoProducts {
		unitCost := *p.UnitCostBasis
		_, err := ledgerSvc.Append(ctx, ledger.AppendInput{
			ProductID:  p.ID,
			Kind:       ledger.KindIn,
			Quantity:   100,
			UnitCost:   &unitCost,
			OccurredAt: now.AddDate(0, 0, -14),
			Note:       "opening stock",
		})
		if err != nil {
			return fmt.Errorf("opening stock for %s: %w", p.Code, err)
		}
	}

	// Consignment batches, two per product so FIFO is visible in reports.
	batches := []consignment.ReceiveInput{
		{
			ProductID:   consignedProducts[0].ID,
			ConsignorID: consignorKripik,
			Quantity:    40,
			UnitCost:    types.MustMoney("7000"),
			FeeType:     consignment.FeePercentage,
			FeeRate:     types.MustMoney("0.10"),
			ReceivedAt:  now.AddDate(0, 0, -10),
			Note:        "titipan minggu lalu",
		},
		{
			ProductID:   consignedProducts[0].ID,
			ConsignorID: consignorKripik,
			Quantity:    60,
			UnitCost:    types.MustMoney("7500"),
			FeeType:     consignment.FeePercentage,
			FeeRate:     types.MustMoney("0.10"),
			ReceivedAt:  now.AddDate(0, 0, -3),
		},
		{
			ProductID:   consignedProducts[1].ID,
			ConsignorID: consignorJamu,
			Quantity:    30,
			UnitCost:    types.MustMoney("5500"),
			FeeType:     consignment.FeeFixed,
			FeeRate:     types.MustMoney("45000"),
			ReceivedAt:  now.AddDate(0, 0, -7),
		},
	}
	for _, in := range batches {
		batch, err := consignmentSvc.ReceiveBatch(ctx, in)
		if err != nil {
			return fmt.Errorf("receive batch: %w", err)
		}
		logger.Info(ctx, "batch received", "batch_id", batch.ID, "seq", batch.Seq)
	}

	// Recorder-owned transactions: a toko sale, a consigned sale priced
	// through the allocator, and an operating expense.
	saleToko := &transaction.Transaction{
		ID:     id.New(),
		Type:   transaction.TypeSale,
		Status: transaction.StatusCompleted,
		Date:   now.AddDate(0, 0, -2),
	}
	saleTokoLine := transaction.TransactionLine{
		ID:            id.New(),
		TransactionID: saleToko.ID,
		ProductID:     tokoProducts[0].ID,
		Quantity:      5,
		UnitPrice:     tokoProducts[0].SellPrice,
		TotalPrice:    tokoProducts[0].SellPrice.Mul(types.MoneyFromInt(5)),
	}
	saleToko.Amount = saleTokoLine.TotalPrice
	saleToko.Lines = []transaction.TransactionLine{saleTokoLine}

	if _, err := ledgerSvc.Append(ctx, ledger.AppendInput{
		ProductID:    tokoProducts[0].ID,
		Kind:         ledger.KindOut,
		Quantity:     5,
		RecorderID:   &saleTokoLine.ID,
		RecorderType: ledger.RecorderTypeSaleLine,
		OccurredAt:   saleToko.Date,
	}); err != nil {
		return fmt.Errorf("toko sale movement: %w", err)
	}

	saleConsigned := &transaction.Transaction{
		ID:     id.New(),
		Type:   transaction.TypeSale,
		Status: transaction.StatusCompleted,
		Date:   now.AddDate(0, 0, -1),
	}
	saleConsignedLine := transaction.TransactionLine{
		ID:            id.New(),
		TransactionID: saleConsigned.ID,
		ProductID:     consignedProducts[0].ID,
		Quantity:      50,
		UnitPrice:     consignedProducts[0].SellPrice,
		TotalPrice:    consignedProducts[0].SellPrice.Mul(types.MoneyFromInt(50)),
	}

	// 50 units spans both kripik batches: 40 from the older, 10 from the newer.
	result, err := consignmentSvc.AllocateSale(ctx, consignment.AllocateInput{
		ProductID:         consignedProducts[0].ID,
		TransactionLineID: saleConsignedLine.ID,
		Quantity:          50,
		UnitPrice:         saleConsignedLine.UnitPrice,
	})
	if err != nil {
		return fmt.Errorf("allocate consigned sale: %w", err)
	}
	saleConsignedLine.TotalCOGS = result.TotalCOGS
	saleConsignedLine.GrossProfit = saleConsignedLine.TotalPrice.Sub(result.TotalCOGS)
	saleConsigned.Amount = saleConsignedLine.TotalPrice
	saleConsigned.Lines = []transaction.TransactionLine{saleConsignedLine}

	expense := &transaction.Transaction{
		ID:     id.New(),
		Type:   transaction.TypeExpense,
		Status: transaction.StatusCompleted,
		Date:   now.AddDate(0, 0, -1),
		Amount: types.MustMoney("250000"),
	}

	for _, txn := range []*transaction.Transaction{saleToko, saleConsigned, expense} {
		if err := insertTransaction(ctx, pool, txn); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
	}

	return nil
}

// insertTransaction writes recorder-owned rows directly. The core only ever
// reads these tables; the demo seed stands in for the recorder.
func insertTransaction(ctx context.Context, pool *postgres.Pool, txn *transaction.Transaction) error {
	_, err := pool.Pool.Exec(ctx, `
		INSERT INTO transactions (id, type, status, date, amount)
		VALUES ($1, $2, $3, $4, $5)
	`, txn.ID, txn.Type, txn.Status, txn.Date, txn.Amount)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", txn.ID, err)
	}

	for _, line := range txn.Lines {
		_, err := pool.Pool.Exec(ctx, `
			INSERT INTO transaction_lines (
				id, transaction_id, product_id,
				quantity, unit_price, total_price, total_cogs, gross_profit
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, line.ID, line.TransactionID, line.ProductID,
			line.Quantity, line.UnitPrice, line.TotalPrice, line.TotalCOGS, line.GrossProfit)
		if err != nil {
			return fmt.Errorf("insert line %s: %w", line.ID, err)
		}
	}

	return nil
}
