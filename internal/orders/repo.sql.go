package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists purchase orders in PostgreSQL. Order numbers come
// from po_counters, one row per org, incremented inside the creating
// transaction so two concurrent creates never draw the same sequence.
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

// WithTx wraps the callback in a repeatable-read transaction.
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

const orderColumns = `id, org_id, order_number, vendor_id, created_by, COALESCE(approved_by, 0), status, total_amount, expected_delivery, created_at, approved_at`

// GetOrder returns one order with its lines.
func (r *Repository) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1`, id)
	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrOrderNotFound
	}
	if err != nil {
		return PurchaseOrder{}, err
	}
	lines, err := r.loadLines(ctx, order.ID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	order.Lines = lines
	return order, nil
}

// ListByOrg returns the org's orders, newest first, without lines.
func (r *Repository) ListByOrg(ctx context.Context, orgID int64) ([]PurchaseOrder, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+`
FROM purchase_orders WHERE org_id=$1 ORDER BY created_at DESC, id DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []PurchaseOrder
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (r *Repository) loadLines(ctx context.Context, orderID int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, product_id, quantity, unit_price, line_total
FROM purchase_order_lines WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.Quantity, &line.UnitPrice, &line.LineTotal); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (t *txRepo) NextOrderNumber(ctx context.Context, orgID int64) (int64, error) {
	var seq int64
	err := t.tx.QueryRow(ctx, `INSERT INTO po_counters (org_id, last_seq) VALUES ($1, 1)
ON CONFLICT (org_id) DO UPDATE SET last_seq = po_counters.last_seq + 1
RETURNING last_seq`, orgID).Scan(&seq)
	return seq, err
}

func (t *txRepo) CreateOrder(ctx context.Context, order PurchaseOrder) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_orders
(org_id, order_number, vendor_id, created_by, status, total_amount, expected_delivery, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id`,
		order.OrgID, order.OrderNumber, order.VendorID, order.CreatedBy, order.Status,
		order.TotalAmount, order.ExpectedDelivery, order.CreatedAt).Scan(&id)
	return id, err
}

func (t *txRepo) InsertLine(ctx context.Context, line Line) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO purchase_order_lines
(order_id, product_id, quantity, unit_price, line_total)
VALUES ($1,$2,$3,$4,$5)`,
		line.OrderID, line.ProductID, line.Quantity, line.UnitPrice, line.LineTotal)
	return err
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+orderColumns+`
FROM purchase_orders WHERE id=$1 FOR UPDATE`, id)
	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrOrderNotFound
	}
	return order, err
}

func (t *txRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET status=$1 WHERE id=$2`, status, id)
	return err
}

func (t *txRepo) SetApproval(ctx context.Context, id int64, approverID int64, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET approved_by=$1, approved_at=$2 WHERE id=$3`, approverID, at, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (PurchaseOrder, error) {
	var order PurchaseOrder
	err := row.Scan(&order.ID, &order.OrgID, &order.OrderNumber, &order.VendorID, &order.CreatedBy,
		&order.ApprovedBy, &order.Status, &order.TotalAmount, &order.ExpectedDelivery, &order.CreatedAt, &order.ApprovedAt)
	return order, err
}
