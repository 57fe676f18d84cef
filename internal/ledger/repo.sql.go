package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists stock records in PostgreSQL. The stock_records table
// carries a unique index on (product_id, warehouse_id, zone_id,
// batch_number); absent zone/batch are stored as 0 / '' so the index sees
// them as equal, which NULLs would not be.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction. Row locks
// taken by GetForUpdate live until commit or rollback.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepo{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const stockRecordColumns = `id, org_id, product_id, warehouse_id, zone_id, batch_number, quantity, min_stock_level, max_stock_level, expiry_date, last_updated`

// ListByWarehouse returns the org's records in one warehouse.
func (r *Repository) ListByWarehouse(ctx context.Context, orgID, warehouseID int64) ([]StockRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+stockRecordColumns+`
FROM stock_records WHERE org_id=$1 AND warehouse_id=$2 ORDER BY product_id, zone_id, batch_number`, orgID, warehouseID)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

// ListLowStock returns records where quantity <= min_stock_level.
// warehouseID 0 spans all warehouses of the org.
func (r *Repository) ListLowStock(ctx context.Context, orgID, warehouseID int64) ([]StockRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+stockRecordColumns+`
FROM stock_records
WHERE org_id=$1 AND quantity <= min_stock_level AND ($2::bigint = 0 OR warehouse_id = $2)
ORDER BY warehouse_id, product_id`, orgID, warehouseID)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

// ListExpiring returns records with an expiry date on or before the cutoff.
func (r *Repository) ListExpiring(ctx context.Context, orgID int64, cutoff time.Time) ([]StockRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+stockRecordColumns+`
FROM stock_records
WHERE org_id=$1 AND expiry_date IS NOT NULL AND expiry_date <= $2
ORDER BY expiry_date`, orgID, cutoff)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (t *txRepo) GetForUpdate(ctx context.Context, key TupleKey) (StockRecord, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+stockRecordColumns+`
FROM stock_records
WHERE product_id=$1 AND warehouse_id=$2 AND zone_id=$3 AND batch_number=$4
FOR UPDATE`, key.ProductID, key.WarehouseID, key.ZoneID, key.Batch)
	record, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockRecord{}, ErrRecordNotFound
	}
	return record, err
}

func (t *txRepo) GetByIDForUpdate(ctx context.Context, id int64) (StockRecord, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+stockRecordColumns+`
FROM stock_records WHERE id=$1 FOR UPDATE`, id)
	record, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockRecord{}, ErrRecordNotFound
	}
	return record, err
}

func (t *txRepo) InsertOrAdd(ctx context.Context, record StockRecord) (StockRecord, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO stock_records
(org_id, product_id, warehouse_id, zone_id, batch_number, quantity, min_stock_level, max_stock_level, expiry_date, last_updated)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (product_id, warehouse_id, zone_id, batch_number)
DO UPDATE SET quantity = stock_records.quantity + EXCLUDED.quantity, last_updated = EXCLUDED.last_updated
RETURNING `+stockRecordColumns,
		record.OrgID, record.ProductID, record.WarehouseID, record.ZoneID, record.Batch,
		record.Quantity, record.MinStockLevel, record.MaxStockLevel, nullDate(record.ExpiryDate), record.LastUpdated)
	return scanRecord(row)
}

func (t *txRepo) SetQuantity(ctx context.Context, id int64, quantity int64, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE stock_records SET quantity=$1, last_updated=$2 WHERE id=$3`, quantity, at, id)
	return err
}

func (t *txRepo) SetLevels(ctx context.Context, id int64, min, max int64, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE stock_records SET min_stock_level=$1, max_stock_level=$2, last_updated=$3 WHERE id=$4`, min, max, at, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (StockRecord, error) {
	var record StockRecord
	var expiry *time.Time
	err := row.Scan(&record.ID, &record.OrgID, &record.ProductID, &record.WarehouseID, &record.ZoneID,
		&record.Batch, &record.Quantity, &record.MinStockLevel, &record.MaxStockLevel, &expiry, &record.LastUpdated)
	if err != nil {
		return StockRecord{}, err
	}
	if expiry != nil {
		record.ExpiryDate = *expiry
	}
	return record, nil
}

func scanRecords(rows pgx.Rows) ([]StockRecord, error) {
	defer rows.Close()
	var records []StockRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
