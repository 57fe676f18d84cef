package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-wms/meridian-wms/internal/audit"
	"github.com/meridian-wms/meridian-wms/internal/directory"
	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// memoryRepo mimics the Postgres repository. Each tuple gets its own
// mutex held for the duration of the transaction, which reproduces the
// per-row lock semantics the service relies on.
type memoryRepo struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]StockRecord
	byKey   map[TupleKey]int64
	locks   map[TupleKey]*sync.Mutex
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		records: make(map[int64]StockRecord),
		byKey:   make(map[TupleKey]int64),
		locks:   make(map[TupleKey]*sync.Mutex),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{repo: r, held: make(map[TupleKey]*sync.Mutex)}
	defer tx.release()
	return fn(ctx, tx)
}

func (r *memoryRepo) ListByWarehouse(_ context.Context, orgID, warehouseID int64) ([]StockRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []StockRecord
	for _, record := range r.records {
		if record.OrgID == orgID && record.WarehouseID == warehouseID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListLowStock(_ context.Context, orgID, warehouseID int64) ([]StockRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []StockRecord
	for _, record := range r.records {
		if record.OrgID != orgID || !record.IsLowStock() {
			continue
		}
		if warehouseID != 0 && record.WarehouseID != warehouseID {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

func (r *memoryRepo) ListExpiring(_ context.Context, orgID int64, cutoff time.Time) ([]StockRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []StockRecord
	for _, record := range r.records {
		if record.OrgID != orgID || record.ExpiryDate.IsZero() {
			continue
		}
		if !record.ExpiryDate.After(cutoff) {
			out = append(out, record)
		}
	}
	return out, nil
}

type memoryTx struct {
	repo *memoryRepo
	held map[TupleKey]*sync.Mutex
}

func (tx *memoryTx) lockTuple(key TupleKey) {
	if _, ok := tx.held[key]; ok {
		return
	}
	tx.repo.mu.Lock()
	lock, ok := tx.repo.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		tx.repo.locks[key] = lock
	}
	tx.repo.mu.Unlock()
	lock.Lock()
	tx.held[key] = lock
}

func (tx *memoryTx) release() {
	for _, lock := range tx.held {
		lock.Unlock()
	}
}

func (tx *memoryTx) GetForUpdate(_ context.Context, key TupleKey) (StockRecord, error) {
	tx.lockTuple(key)
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	id, ok := tx.repo.byKey[key]
	if !ok {
		return StockRecord{}, ErrRecordNotFound
	}
	return tx.repo.records[id], nil
}

func (tx *memoryTx) GetByIDForUpdate(_ context.Context, id int64) (StockRecord, error) {
	tx.repo.mu.Lock()
	record, ok := tx.repo.records[id]
	tx.repo.mu.Unlock()
	if !ok {
		return StockRecord{}, ErrRecordNotFound
	}
	tx.lockTuple(record.Tuple())
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	record, ok = tx.repo.records[id]
	if !ok {
		return StockRecord{}, ErrRecordNotFound
	}
	return record, nil
}

func (tx *memoryTx) InsertOrAdd(_ context.Context, record StockRecord) (StockRecord, error) {
	tx.lockTuple(record.Tuple())
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	if id, ok := tx.repo.byKey[record.Tuple()]; ok {
		existing := tx.repo.records[id]
		existing.Quantity += record.Quantity
		existing.LastUpdated = record.LastUpdated
		tx.repo.records[id] = existing
		return existing, nil
	}
	tx.repo.nextID++
	record.ID = tx.repo.nextID
	tx.repo.records[record.ID] = record
	tx.repo.byKey[record.Tuple()] = record.ID
	return record, nil
}

func (tx *memoryTx) SetQuantity(_ context.Context, id int64, quantity int64, at time.Time) error {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	record, ok := tx.repo.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	record.Quantity = quantity
	record.LastUpdated = at
	tx.repo.records[id] = record
	return nil
}

func (tx *memoryTx) SetLevels(_ context.Context, id int64, min, max int64, at time.Time) error {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	record, ok := tx.repo.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	record.MinStockLevel = min
	record.MaxStockLevel = max
	record.LastUpdated = at
	tx.repo.records[id] = record
	return nil
}

type memoryDirectory struct {
	products   map[int64]directory.Product
	warehouses map[int64]directory.Warehouse
}

func (d *memoryDirectory) GetProduct(_ context.Context, id int64) (directory.Product, error) {
	product, ok := d.products[id]
	if !ok {
		return directory.Product{}, fmt.Errorf("directory: product %d: %w", id, shared.ErrNotFound)
	}
	return product, nil
}

func (d *memoryDirectory) GetWarehouse(_ context.Context, id int64) (directory.Warehouse, error) {
	warehouse, ok := d.warehouses[id]
	if !ok {
		return directory.Warehouse{}, fmt.Errorf("directory: warehouse %d: %w", id, shared.ErrNotFound)
	}
	return warehouse, nil
}

type memoryAuditor struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *memoryAuditor) Record(_ context.Context, entry audit.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

func (a *memoryAuditor) byAction(action string) []audit.Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []audit.Entry
	for _, entry := range a.entries {
		if entry.Action == action {
			out = append(out, entry)
		}
	}
	return out
}

func testDirectory() *memoryDirectory {
	return &memoryDirectory{
		products: map[int64]directory.Product{
			10: {ID: 10, OrgID: 1, SKU: "SKU-10", Name: "Widget", UnitPrice: decimal.RequireFromString("2.50"), IsActive: true},
			77: {ID: 77, OrgID: 2, SKU: "SKU-77", Name: "Other org widget", IsActive: true},
		},
		warehouses: map[int64]directory.Warehouse{
			5: {ID: 5, OrgID: 1, Code: "MAIN", Name: "Main", Zones: []directory.Zone{{ID: 3, WarehouseID: 5, Name: "A1", Kind: "ambient"}}},
		},
	}
}

func newTestService(repo *memoryRepo, auditor *memoryAuditor) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := shared.FixedClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewService(repo, testDirectory(), auditor, nil, logger, clock)
}

func TestStockInCreatesWithDefaultLevels(t *testing.T) {
	repo := newMemoryRepo()
	auditor := &memoryAuditor{}
	svc := newTestService(repo, auditor)
	ctx := context.Background()

	record, err := svc.StockIn(ctx, StockInInput{OrgID: 1, ActorID: 9, ProductID: 10, WarehouseID: 5, Quantity: 40})
	require.NoError(t, err)
	require.Equal(t, int64(40), record.Quantity)
	require.Equal(t, int64(DefaultMinStockLevel), record.MinStockLevel)
	require.Equal(t, int64(DefaultMaxStockLevel), record.MaxStockLevel)
	require.NotZero(t, record.ID)

	record, err = svc.StockIn(ctx, StockInInput{OrgID: 1, ActorID: 9, ProductID: 10, WarehouseID: 5, Quantity: 5})
	require.NoError(t, err)
	require.Equal(t, int64(45), record.Quantity)

	entries := auditor.byAction("STOCK_IN")
	require.Len(t, entries, 2)
	require.Equal(t, "StockRecord", entries[0].Entity)
	require.Equal(t, int64(40), entries[1].Changes["quantity_before"])
	require.Equal(t, int64(45), entries[1].Changes["quantity_after"])
}

func TestStockInSeparateTuples(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &memoryAuditor{})
	ctx := context.Background()

	plain, err := svc.StockIn(ctx, StockInInput{OrgID: 1, ActorID: 9, ProductID: 10, WarehouseID: 5, Quantity: 10})
	require.NoError(t, err)
	zoned, err := svc.StockIn(ctx, StockInInput{OrgID: 1, ActorID: 9, ProductID: 10, WarehouseID: 5, ZoneID: 3, Quantity: 7})
	require.NoError(t, err)
	batched, err := svc.StockIn(ctx, StockInInput{OrgID: 1, ActorID: 9, ProductID: 10, WarehouseID: 5, Batch: "LOT-1", Quantity: 3})
	require.NoError(t, err)

	require.NotEqual(t, plain.ID, zoned.ID)
	require.NotEqual(t, plain.ID, batched.ID)
	require.Equal(t, int64(10), plain.Quantity)
	require.Equal(t, int64(7), zoned.Quantity)
	require.Equal(t, int64(3), batched.Quantity)
}

func TestStockInValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &memoryAuditor{})
	ctx := context.Background()

	_, err := svc.StockIn(ctx, StockInInput{OrgID: 1, ProductID: 10, WarehouseID: 5, Quantity: 0})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.StockIn(ctx, StockInInput{OrgID: 1, ProductID: 999, WarehouseID: 5, Quantity: 1})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.StockIn(ctx, StockInInput{OrgID: 1, ProductID: 77, WarehouseID: 5, Quantity: 1})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.StockIn(ctx, StockInInput{OrgID: 1, ProductID: 10, WarehouseID: 5, ZoneID: 42, Quantity: 1})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestStockOutInsufficientLeavesRecordUnchanged(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &memoryAuditor{})
	ctx := context.Background()

	_, err := svc.StockIn(ctx, StockInInput{OrgID: 1, ActorID: 9, ProductID: 10, WarehouseID: 5, Quantity: 10})
	require.NoError(t, err)

	_, err = svc.StockOut(ctx, StockOutInput{OrgID: 1, ActorID: 9, ProductID: 10, WarehouseID: 5, Quantity: 11})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	records, err := svc.ListByWarehouse(ctx, 1, 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, int64(10), records[0].Quantity)

	record, err := svc.StockOut(ctx, StockOutInput{OrgID: 1, ActorID: 9, ProductID: 10, WarehouseID: 5, Quantity: 10})
	require.NoError(t, err)
	require.Equal(t, int64(0), record.Quantity)
}

func TestStockOutUnknownTuple(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &memoryAuditor{})
	_, err := svc.StockOut(context.Background(), StockOutInput{OrgID: 1, ProductID: 10, WarehouseID: 5, Quantity: 1})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestStockOutOtherOrg(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &memoryAuditor{})
	ctx := context.Background()

	_, err := svc.StockIn(ctx, StockInInput{OrgID: 1, ActorID: 9, ProductID: 10, WarehouseID: 5, Quantity: 10})
	require.NoError(t, err)

	_, err = svc.StockOut(ctx, StockOutInput{OrgID: 2, ActorID: 9, ProductID: 10, WarehouseID: 5, Quantity: 1})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestConcurrentMovementsNoLostUpdates(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &memoryAuditor{})
	ctx := context.Background()

	_, err := svc.StockIn(ctx, StockInInput{OrgID: 1, ActorID: 9, ProductID: 10, WarehouseID: 5, Quantity: 1000})
	require.NoError(t, err)

	var eg errgroup.Group
	for i := 0; i < 50; i++ {
		eg.Go(func() error {
			_, err := svc.StockIn(ctx, StockInInput{OrgID: 1, ActorID: 9, ProductID: 10, WarehouseID: 5, Quantity: 3})
			return err
		})
		eg.Go(func() error {
			_, err := svc.StockOut(ctx, StockOutInput{OrgID: 1, ActorID: 9, ProductID: 10, WarehouseID: 5, Quantity: 2})
			return err
		})
	}
	require.NoError(t, eg.Wait())

	records, err := svc.ListByWarehouse(ctx, 1, 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, int64(1000+50*3-50*2), records[0].Quantity)
}

func TestConcurrentFirstStockIn(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &memoryAuditor{})
	ctx := context.Background()

	var eg errgroup.Group
	for i := 0; i < 20; i++ {
		eg.Go(func() error {
			_, err := svc.StockIn(ctx, StockInInput{OrgID: 1, ActorID: 9, ProductID: 10, WarehouseID: 5, Quantity: 5})
			return err
		})
	}
	require.NoError(t, eg.Wait())

	records, err := svc.ListByWarehouse(ctx, 1, 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, int64(100), records[0].Quantity)
}

func TestSetStockLevels(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &memoryAuditor{})
	ctx := context.Background()

	created, err := svc.StockIn(ctx, StockInInput{OrgID: 1, ActorID: 9, ProductID: 10, WarehouseID: 5, Quantity: 8})
	require.NoError(t, err)

	_, err = svc.SetStockLevels(ctx, LevelsInput{OrgID: 1, ActorID: 9, RecordID: created.ID, Min: 10, Max: 5})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.SetStockLevels(ctx, LevelsInput{OrgID: 1, ActorID: 9, RecordID: 404, Min: 1, Max: 2})
	require.ErrorIs(t, err, shared.ErrNotFound)

	updated, err := svc.SetStockLevels(ctx, LevelsInput{OrgID: 1, ActorID: 9, RecordID: created.ID, Min: 10, Max: 500})
	require.NoError(t, err)
	require.Equal(t, int64(10), updated.MinStockLevel)
	require.Equal(t, int64(500), updated.MaxStockLevel)

	low, err := svc.LowStockAlerts(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, low, 1)
	require.Equal(t, created.ID, low[0].ID)
}

func TestLowStockBoundary(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &memoryAuditor{})
	ctx := context.Background()

	created, err := svc.StockIn(ctx, StockInInput{OrgID: 1, ActorID: 9, ProductID: 10, WarehouseID: 5, Quantity: 10})
	require.NoError(t, err)
	_, err = svc.SetStockLevels(ctx, LevelsInput{OrgID: 1, ActorID: 9, RecordID: created.ID, Min: 10, Max: 100})
	require.NoError(t, err)

	// quantity == min counts as low stock
	low, err := svc.LowStockAlerts(ctx, 1, 5)
	require.NoError(t, err)
	require.Len(t, low, 1)

	_, err = svc.StockIn(ctx, StockInInput{OrgID: 1, ActorID: 9, ProductID: 10, WarehouseID: 5, Quantity: 1})
	require.NoError(t, err)
	low, err = svc.LowStockAlerts(ctx, 1, 5)
	require.NoError(t, err)
	require.Empty(t, low)
}

func TestExpiringWithin(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &memoryAuditor{})
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := svc.StockIn(ctx, StockInInput{
		OrgID: 1, ActorID: 9, ProductID: 10, WarehouseID: 5, Batch: "LOT-A",
		Quantity: 5, ExpiryDate: now.AddDate(0, 0, 10),
	})
	require.NoError(t, err)
	_, err = svc.StockIn(ctx, StockInInput{
		OrgID: 1, ActorID: 9, ProductID: 10, WarehouseID: 5, Batch: "LOT-B",
		Quantity: 5, ExpiryDate: now.AddDate(0, 0, 90),
	})
	require.NoError(t, err)

	soon, err := svc.ExpiringWithin(ctx, 1, 30)
	require.NoError(t, err)
	require.Len(t, soon, 1)
	require.Equal(t, "LOT-A", soon[0].Batch)

	none, err := svc.ExpiringWithin(ctx, 1, 5)
	require.NoError(t, err)
	require.Empty(t, none)

	_, err = svc.ExpiringWithin(ctx, 1, -1)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestStockOutAuditCapturesDelta(t *testing.T) {
	repo := newMemoryRepo()
	auditor := &memoryAuditor{}
	svc := newTestService(repo, auditor)
	ctx := context.Background()

	_, err := svc.StockIn(ctx, StockInInput{OrgID: 1, ActorID: 9, ProductID: 10, WarehouseID: 5, Quantity: 20})
	require.NoError(t, err)
	_, err = svc.StockOut(ctx, StockOutInput{OrgID: 1, ActorID: 9, ProductID: 10, WarehouseID: 5, Quantity: 6})
	require.NoError(t, err)

	entries := auditor.byAction("STOCK_OUT")
	require.Len(t, entries, 1)
	require.Equal(t, int64(20), entries[0].Changes["quantity_before"])
	require.Equal(t, int64(14), entries[0].Changes["quantity_after"])
	require.Equal(t, int64(-6), entries[0].Changes["delta"])
}

func TestWithTxReleasesLockOnError(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &memoryAuditor{})
	ctx := context.Background()

	_, err := svc.StockOut(ctx, StockOutInput{OrgID: 1, ProductID: 10, WarehouseID: 5, Quantity: 1})
	require.True(t, errors.Is(err, shared.ErrNotFound))

	// the failed movement must not leave the tuple locked
	_, err = svc.StockIn(ctx, StockInInput{OrgID: 1, ActorID: 9, ProductID: 10, WarehouseID: 5, Quantity: 1})
	require.NoError(t, err)
}

type brokenAuditor struct{}

func (brokenAuditor) Record(context.Context, audit.Entry) error {
	return errors.New("audit store unavailable")
}

func TestMovementsSucceedWhenAuditStoreFails(t *testing.T) {
	repo := newMemoryRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := shared.FixedClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(repo, testDirectory(), brokenAuditor{}, nil, logger, clock)
	ctx := context.Background()

	record, err := svc.StockIn(ctx, StockInInput{OrgID: 1, ActorID: 9, ProductID: 10, WarehouseID: 5, Quantity: 7})
	require.NoError(t, err)
	require.Equal(t, int64(7), record.Quantity)

	record, err = svc.StockOut(ctx, StockOutInput{OrgID: 1, ActorID: 9, ProductID: 10, WarehouseID: 5, Quantity: 3})
	require.NoError(t, err)
	require.Equal(t, int64(4), record.Quantity)
}
