// Package memory provides an in-memory implementation of every repository
// interface. It backs the test suites and the demo seed path; the production
// wiring uses the postgres package.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/apperror"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/id"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/tx"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/types"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/catalog"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/consignment"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/finance"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/ledger"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/transaction"
)

// TxRunner satisfies tx.ReadOnlyManager without real transactions. The memory
// store serializes access with its own mutex.
type TxRunner struct{}

func (TxRunner) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (TxRunner) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var _ tx.ReadOnlyManager = TxRunner{}

// CorrectionRecord is one audit trail entry kept by RecordCorrection.
type CorrectionRecord struct {
	Original     *ledger.MovementEvent
	Compensating *ledger.MovementEvent
	Note         string
	RecordedAt   time.Time
}

// Store holds all state behind one mutex.
type Store struct {
	mu sync.RWMutex

	productsByID   map[id.ID]*catalog.Product
	productsByCode map[string]id.ID

	events     []*ledger.MovementEvent
	eventsByID map[id.ID]*ledger.MovementEvent

	batchesByID map[id.ID]*consignment.ConsignmentBatch
	batchSeq    int64

	allocations []*consignment.SaleAllocation

	transactions []*transaction.Transaction

	corrections []CorrectionRecord
}

// New creates an empty store.
func New() *Store {
	return &Store{
		productsByID:   make(map[id.ID]*catalog.Product),
		productsByCode: make(map[string]id.ID),
		eventsByID:     make(map[id.ID]*ledger.MovementEvent),
		batchesByID:    make(map[id.ID]*consignment.ConsignmentBatch),
	}
}

// --- catalog.Repository ---

func (s *Store) Create(_ context.Context, product *catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.productsByCode[product.Code]; exists {
		return apperror.NewConflict("product code already exists")
	}

	p := *product
	s.productsByID[p.ID] = &p
	s.productsByCode[p.Code] = p.ID
	return nil
}

func (s *Store) Get(_ context.Context, productID id.ID) (*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.productsByID[productID]
	if !exists {
		return nil, apperror.NewNotFound("product", productID)
	}
	p := *product
	return &p, nil
}

func (s *Store) GetByCode(_ context.Context, code string) (*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	productID, exists := s.productsByCode[code]
	if !exists {
		return nil, apperror.NewNotFound("product", code)
	}
	p := *s.productsByID[productID]
	return &p, nil
}

func (s *Store) List(_ context.Context) ([]*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]*catalog.Product, 0, len(s.productsByID))
	for _, product := range s.productsByID {
		p := *product
		products = append(products, &p)
	}
	slices.SortFunc(products, func(a, b *catalog.Product) int {
		return cmpString(a.Code, b.Code)
	})
	return products, nil
}

// --- ledger.Repository ---

func (s *Store) Insert(_ context.Context, event *ledger.MovementEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := *event
	s.events = append(s.events, &e)
	s.eventsByID[e.ID] = &e
	return nil
}

func (s *Store) GetEvent(ctx context.Context, eventID id.ID) (*ledger.MovementEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, exists := s.eventsByID[eventID]
	if !exists {
		return nil, apperror.NewNotFound("movement event", eventID)
	}
	e := *event
	return &e, nil
}

func (s *Store) ListByProduct(_ context.Context, productID id.ID) ([]*ledger.MovementEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]*ledger.MovementEvent, 0, 16)
	for _, event := range s.events {
		if event.ProductID != productID {
			continue
		}
		e := *event
		events = append(events, &e)
	}
	return events, nil
}

func (s *Store) Stock(_ context.Context, productID id.ID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stockLocked(productID)
}

func (s *Store) StockForUpdate(_ context.Context, productID id.ID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stockLocked(productID)
}

func (s *Store) stockLocked(productID id.ID) (int64, error) {
	product, exists := s.productsByID[productID]
	if !exists {
		return 0, apperror.NewNotFound("product", productID)
	}
	return product.CurrentStock, nil
}

func (s *Store) ApplyStockDelta(_ context.Context, productID id.ID, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.productsByID[productID]
	if !exists {
		return apperror.NewNotFound("product", productID)
	}
	product.CurrentStock += delta
	product.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) Summary(_ context.Context, productID id.ID, from, to time.Time) (ledger.MovementSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var summary ledger.MovementSummary
	for _, event := range s.events {
		if event.ProductID != productID {
			continue
		}
		if event.OccurredAt.Before(from) || event.OccurredAt.After(to) {
			continue
		}
		summary.MovementCount++
		signed := event.SignedQuantity()
		if signed > 0 {
			summary.TotalIn += signed
		} else {
			summary.TotalOut += -signed
		}
	}
	return summary, nil
}

// --- ledger.AuditLog ---

func (s *Store) RecordCorrection(_ context.Context, original, compensating *ledger.MovementEvent, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o := *original
	c := *compensating
	s.corrections = append(s.corrections, CorrectionRecord{
		Original:     &o,
		Compensating: &c,
		Note:         note,
		RecordedAt:   time.Now().UTC(),
	})
	return nil
}

// Corrections returns the recorded audit trail.
func (s *Store) Corrections() []CorrectionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]CorrectionRecord, len(s.corrections))
	copy(result, s.corrections)
	return result
}

// --- consignment.Repository ---

func (s *Store) InsertBatch(_ context.Context, batch *consignment.ConsignmentBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batchSeq++
	batch.Seq = s.batchSeq
	b := *batch
	s.batchesByID[b.ID] = &b
	return nil
}

func (s *Store) GetBatch(_ context.Context, batchID id.ID) (*consignment.ConsignmentBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch, exists := s.batchesByID[batchID]
	if !exists {
		return nil, apperror.NewNotFound("consignment batch", batchID)
	}
	b := *batch
	return &b, nil
}

func (s *Store) OpenBatches(ctx context.Context, productID id.ID) ([]*consignment.ConsignmentBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.openBatchesLocked(productID), nil
}

func (s *Store) OpenBatchesForUpdate(ctx context.Context, productID id.ID) ([]*consignment.ConsignmentBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.openBatchesLocked(productID), nil
}

func (s *Store) openBatchesLocked(productID id.ID) []*consignment.ConsignmentBatch {
	batches := make([]*consignment.ConsignmentBatch, 0, 8)
	for _, batch := range s.batchesByID {
		if batch.ProductID != productID || batch.Status != consignment.BatchOpen {
			continue
		}
		b := *batch
		batches = append(batches, &b)
	}
	slices.SortFunc(batches, func(a, b *consignment.ConsignmentBatch) int {
		if a.ReceivedAt.Equal(b.ReceivedAt) {
			return int(a.Seq - b.Seq)
		}
		if a.ReceivedAt.Before(b.ReceivedAt) {
			return -1
		}
		return 1
	})
	return batches
}

func (s *Store) UpdateBatchQuantities(_ context.Context, batch *consignment.ConsignmentBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.batchesByID[batch.ID]
	if !exists {
		return apperror.NewNotFound("consignment batch", batch.ID)
	}
	stored.QuantitySold = batch.QuantitySold
	stored.QuantityRemaining = batch.QuantityRemaining
	stored.Status = batch.Status
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) InsertAllocations(_ context.Context, allocations []*consignment.SaleAllocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, allocation := range allocations {
		a := *allocation
		s.allocations = append(s.allocations, &a)
	}
	return nil
}

func (s *Store) AllocationsByLine(_ context.Context, lineID id.ID) ([]*consignment.SaleAllocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*consignment.SaleAllocation, 0, 4)
	for _, allocation := range s.allocations {
		if allocation.TransactionLineID != lineID {
			continue
		}
		a := *allocation
		result = append(result, &a)
	}
	return result, nil
}

func (s *Store) PayoutForConsignor(_ context.Context, consignorID id.ID, from, to time.Time) (consignment.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payout := consignment.Payout{
		ConsignorID: consignorID,
		CostOwed:    types.ZeroMoney(),
		FeeRetained: types.ZeroMoney(),
	}
	for _, allocation := range s.allocations {
		batch, exists := s.batchesByID[allocation.BatchID]
		if !exists || batch.ConsignorID != consignorID {
			continue
		}
		if allocation.CreatedAt.Before(from) || allocation.CreatedAt.After(to) {
			continue
		}
		payout.QuantitySold += allocation.QuantityAllocated
		payout.CostOwed = payout.CostOwed.Add(
			allocation.UnitCostAtAllocation.Mul(types.MoneyFromInt(allocation.QuantityAllocated)))
		payout.FeeRetained = payout.FeeRetained.Add(allocation.FeeAmount)
	}
	return payout, nil
}

// --- transaction.Repository ---

func (s *Store) ListCompleted(_ context.Context, from, to time.Time) ([]*transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*transaction.Transaction, 0, len(s.transactions))
	for _, txn := range s.transactions {
		if txn.Status != transaction.StatusCompleted {
			continue
		}
		if txn.Date.Before(from) || txn.Date.After(to) {
			continue
		}
		result = append(result, cloneTransaction(txn))
	}
	slices.SortFunc(result, func(a, b *transaction.Transaction) int {
		if a.Date.Equal(b.Date) {
			return cmpString(a.ID.String(), b.ID.String())
		}
		if a.Date.Before(b.Date) {
			return -1
		}
		return 1
	})
	return result, nil
}

// AddTransaction seeds a recorder-owned transaction.
func (s *Store) AddTransaction(txn *transaction.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, cloneTransaction(txn))
}

// --- finance.Repository ---

func (s *Store) AllocationTotals(_ context.Context, lineIDs []id.ID) (map[id.ID]finance.AllocationTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[id.ID]struct{}, len(lineIDs))
	for _, lineID := range lineIDs {
		wanted[lineID] = struct{}{}
	}

	totals := make(map[id.ID]finance.AllocationTotal, len(lineIDs))
	for _, allocation := range s.allocations {
		if _, ok := wanted[allocation.TransactionLineID]; !ok {
			continue
		}
		total, ok := totals[allocation.TransactionLineID]
		if !ok {
			total = finance.AllocationTotal{COGS: types.ZeroMoney(), Fee: types.ZeroMoney()}
		}
		total.Quantity += allocation.QuantityAllocated
		total.COGS = total.COGS.Add(
			allocation.UnitCostAtAllocation.Mul(types.MoneyFromInt(allocation.QuantityAllocated)))
		total.Fee = total.Fee.Add(allocation.FeeAmount)
		totals[allocation.TransactionLineID] = total
	}
	return totals, nil
}

func (s *Store) OutRecorded(_ context.Context, lineIDs []id.ID) (map[id.ID]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[id.ID]struct{}, len(lineIDs))
	for _, lineID := range lineIDs {
		wanted[lineID] = struct{}{}
	}

	recorded := make(map[id.ID]bool, len(lineIDs))
	for _, event := range s.events {
		if event.Kind != ledger.KindOut || event.RecorderID == nil {
			continue
		}
		if event.RecorderType != ledger.RecorderTypeSaleLine {
			continue
		}
		if _, ok := wanted[*event.RecorderID]; ok {
			recorded[*event.RecorderID] = true
		}
	}
	return recorded, nil
}

// LedgerStore adapts Store to ledger.Repository. Needed because the catalog
// and ledger interfaces both declare Get with different result types.
type LedgerStore struct {
	*Store
}

// Ledger returns the movement ledger view of the store.
func (s *Store) Ledger() LedgerStore {
	return LedgerStore{s}
}

func (s LedgerStore) Get(ctx context.Context, eventID id.ID) (*ledger.MovementEvent, error) {
	return s.GetEvent(ctx, eventID)
}

// --- helpers ---

func cloneTransaction(src *transaction.Transaction) *transaction.Transaction {
	dup := *src
	lines := make([]transaction.TransactionLine, len(src.Lines))
	copy(lines, src.Lines)
	dup.Lines = lines
	return &dup
}

func cmpString(a, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

// Interface compliance.
var (
	_ catalog.Repository     = (*Store)(nil)
	_ consignment.Repository = (*Store)(nil)
	_ transaction.Repository = (*Store)(nil)
	_ finance.Repository     = (*Store)(nil)
	_ ledger.AuditLog        = (*Store)(nil)
	_ ledger.Repository      = LedgerStore{}
)
