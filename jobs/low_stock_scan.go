package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-wms/meridian-wms/internal/ledger"
)

// LedgerPort is the slice of the ledger service the scan jobs need.
type LedgerPort interface {
	LowStockAlerts(ctx context.Context, orgID, warehouseID int64) ([]ledger.StockRecord, error)
	ExpiringWithin(ctx context.Context, orgID int64, days int) ([]ledger.StockRecord, error)
}

// LowStockScanJob sweeps every org's stock records and logs the ones at or
// below their minimum level so operators can replenish.
type LowStockScanJob struct {
	Ledger LedgerPort
	Pool   *pgxpool.Pool
	Logger *slog.Logger
	clock  func() time.Time
}

// NewLowStockScanJob initialises the low stock scan handler.
func NewLowStockScanJob(ledgerSvc LedgerPort, pool *pgxpool.Pool, logger *slog.Logger) *LowStockScanJob {
	return &LowStockScanJob{
		Ledger: ledgerSvc,
		Pool:   pool,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the low stock sweep.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := j.clock()
	orgs, err := activeOrgs(ctx, j.Pool)
	if err != nil {
		j.Logger.Error("list orgs", slog.Any("error", err))
		return err
	}

	total := 0
	for _, orgID := range orgs {
		records, err := j.Ledger.LowStockAlerts(ctx, orgID, payload.WarehouseID)
		if err != nil {
			j.Logger.Error("low stock sweep", slog.Int64("org_id", orgID), slog.Any("error", err))
			return err
		}
		for _, record := range records {
			j.Logger.Warn("low stock",
				slog.Int64("org_id", record.OrgID),
				slog.Int64("product_id", record.ProductID),
				slog.Int64("warehouse_id", record.WarehouseID),
				slog.Int64("quantity", record.Quantity),
				slog.Int64("min_stock_level", record.MinStockLevel),
			)
		}
		total += len(records)
	}

	j.Logger.Info("low stock scan done",
		slog.Int("orgs", len(orgs)),
		slog.Int("alerts", total),
		slog.Duration("took", j.clock().Sub(start)),
	)
	return nil
}

// activeOrgs lists org ids that own at least one stock record.
func activeOrgs(ctx context.Context, pool *pgxpool.Pool) ([]int64, error) {
	if pool == nil {
		return nil, nil
	}
	rows, err := pool.Query(ctx, `SELECT DISTINCT org_id FROM stock_records ORDER BY org_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orgs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		orgs = append(orgs, id)
	}
	return orgs, rows.Err()
}
