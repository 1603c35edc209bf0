// Package main renders the financial summary for a reporting period and
// optionally exports it as an Excel workbook.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/catalog"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/finance"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/infrastructure/storage/postgres"
	"github.com/BroAegg/web-koperasi-umb-sub001/pkg/config"
	"github.com/BroAegg/web-koperasi-umb-sub001/pkg/logger"
)

const dateLayout = "2006-01-02"

func main() {
	var (
		fromFlag = flag.String("from", "", "period start (YYYY-MM-DD), inclusive")
		toFlag   = flag.String("to", "", "period end (YYYY-MM-DD), inclusive")
		xlsxFlag = flag.String("xlsx", "", "optional path to write an .xlsx export")
	)
	flag.Parse()

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

	from, to, err := parsePeriod(*fromFlag, *toFlag)
	if err != nil {
		log.Fatalw("invalid period", "error", err)
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DB.ConnectionString()))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)
	financeSvc := finance.NewService(
		postgres.NewTransactionRepo(txManager),
		postgres.NewFinanceRepo(txManager),
		postgres.NewProductRepo(txManager),
		txManager,
		finance.CostPolicy{EstimateRatio: cfg.CostPolicy.EstimateRatio},
	)
	catalogSvc := catalog.NewService(postgres.NewProductRepo(txManager))

	summary, err := financeSvc.Summarize(ctx, from, to)
	if err != nil {
		log.Fatalw("failed to summarize period", "error", err)
	}

	printSummary(from, to, summary)

	if *xlsxFlag != "" {
		products, err := catalogSvc.List(ctx)
		if err != nil {
			log.Fatalw("failed to list products", "error", err)
		}
		if err := exportExcel(*xlsxFlag, from, to, summary, products); err != nil {
			log.Fatalw("failed to write xlsx", "error", err)
		}
		log.Infow("report exported", "path", *xlsxFlag)
	}
}

func parsePeriod(fromStr, toStr string) (time.Time, time.Time, error) {
	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("-from and -to are required")
	}
	from, err := time.Parse(dateLayout, fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse -from: %w", err)
	}
	to, err := time.Parse(dateLayout, toStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse -to: %w", err)
	}
	// Inclusive end of day.
	to = to.Add(24*time.Hour - time.Nanosecond)
	return from.UTC(), to.UTC(), nil
}

func printSummary(from, to time.Time, s *finance.PeriodSummary) {
	fmt.Printf("Laporan Keuangan %s s/d %s\n", from.Format(dateLayout), to.Format(dateLayout))
	fmt.Println("----------------------------------------")
	fmt.Printf("Total Revenue      %14s\n", s.TotalRevenue.StringFixed(2))
	fmt.Printf("Total COGS         %14s\n", s.TotalCOGS.StringFixed(2))
	fmt.Printf("Total Expense      %14s\n", s.TotalExpense.StringFixed(2))
	fmt.Printf("Total Profit       %14s\n", s.TotalProfit.StringFixed(2))
	fmt.Printf("Profit Margin      %14s\n", s.ProfitMargin.StringFixed(4))
	fmt.Printf("Products Sold      %14d\n", s.UniqueProductsSold)
	fmt.Println()
	fmt.Printf("%-12s %14s %14s %14s\n", "", "Revenue", "COGS", "Profit")
	fmt.Printf("%-12s %14s %14s %14s\n", "Toko",
		s.Toko.Revenue.StringFixed(2), s.Toko.COGS.StringFixed(2), s.Toko.Profit.StringFixed(2))
	fmt.Printf("%-12s %14s %14s %14s\n", "Konsinyasi",
		s.Consignment.Revenue.StringFixed(2), s.Consignment.COGS.StringFixed(2), s.Consignment.Profit.StringFixed(2))

	if len(s.Inconsistencies) > 0 {
		fmt.Println()
		fmt.Printf("Reconciliation notes (%d):\n", len(s.Inconsistencies))
		for _, inc := range s.Inconsistencies {
			fmt.Printf("  - line %s product %s: %s\n", inc.TransactionLineID, inc.ProductID, inc.Reason)
		}
	}
}

func exportExcel(path string, from, to time.Time, s *finance.PeriodSummary, products []*catalog.Product) error {
	f := excelize.NewFile()
	sheet := "Summary"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	rows := [][]any{
		{"Period Start", from.Format(dateLayout)},
		{"Period End", to.Format(dateLayout)},
		{},
		{"", "Revenue", "COGS", "Profit"},
		{"Toko", s.Toko.Revenue.StringFixed(2), s.Toko.COGS.StringFixed(2), s.Toko.Profit.StringFixed(2)},
		{"Konsinyasi", s.Consignment.Revenue.StringFixed(2), s.Consignment.COGS.StringFixed(2), s.Consignment.Profit.StringFixed(2)},
		{},
		{"Total Revenue", s.TotalRevenue.StringFixed(2)},
		{"Total COGS", s.TotalCOGS.StringFixed(2)},
		{"Total Expense", s.TotalExpense.StringFixed(2)},
		{"Total Profit", s.TotalProfit.StringFixed(2)},
		{"Profit Margin", s.ProfitMargin.StringFixed(4)},
		{"Unique Products Sold", s.UniqueProductsSold},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	stockSheet := "Stock"
	if _, err := f.NewSheet(stockSheet); err != nil {
		return err
	}
	header := []any{"Code", "Name", "Ownership", "Current Stock", "Sell Price"}
	if err := f.SetSheetRow(stockSheet, "A1", &header); err != nil {
		return err
	}
	for i, p := range products {
		row := []any{p.Code, p.Name, string(p.OwnershipType), p.CurrentStock, p.SellPrice.StringFixed(2)}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(stockSheet, cell, &row); err != nil {
			return err
		}
	}

	if len(s.Inconsistencies) > 0 {
		incSheet := "Reconciliation"
		if _, err := f.NewSheet(incSheet); err != nil {
			return err
		}
		header := []any{"Transaction Line", "Product", "Reason"}
		if err := f.SetSheetRow(incSheet, "A1", &header); err != nil {
			return err
		}
		for i, inc := range s.Inconsistencies {
			row := []any{inc.TransactionLineID.String(), inc.ProductID.String(), inc.Reason}
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(incSheet, cell, &row); err != nil {
				return err
			}
		}
	}

	return f.SaveAs(path)
}
