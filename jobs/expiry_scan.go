package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExpiryScanJob sweeps stock whose expiry date falls inside the configured
// window and logs each batch so it can be pulled or discounted in time.
type ExpiryScanJob struct {
	Ledger LedgerPort
	Pool   *pgxpool.Pool
	Logger *slog.Logger
	clock  func() time.Time
}

// NewExpiryScanJob initialises the expiry scan handler.
func NewExpiryScanJob(ledgerSvc LedgerPort, pool *pgxpool.Pool, logger *slog.Logger) *ExpiryScanJob {
	return &ExpiryScanJob{
		Ledger: ledgerSvc,
		Pool:   pool,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the expiry sweep.
func (j *ExpiryScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("expiry scan: handler not configured")
	}
	var payload ExpiryScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Days <= 0 {
		payload.Days = DefaultExpiryDays
	}

	start := j.clock()
	orgs, err := activeOrgs(ctx, j.Pool)
	if err != nil {
		j.Logger.Error("list orgs", slog.Any("error", err))
		return err
	}

	total := 0
	for _, orgID := range orgs {
		records, err := j.Ledger.ExpiringWithin(ctx, orgID, payload.Days)
		if err != nil {
			j.Logger.Error("expiry sweep", slog.Int64("org_id", orgID), slog.Any("error", err))
			return err
		}
		for _, record := range records {
			j.Logger.Warn("stock expiring",
				slog.Int64("org_id", record.OrgID),
				slog.Int64("product_id", record.ProductID),
				slog.Int64("warehouse_id", record.WarehouseID),
				slog.String("batch_number", record.Batch),
				slog.Time("expiry_date", record.ExpiryDate),
				slog.Int64("quantity", record.Quantity),
			)
		}
		total += len(records)
	}

	j.Logger.Info("expiry scan done",
		slog.Int("orgs", len(orgs)),
		slog.Int("expiring", total),
		slog.Int("window_days", payload.Days),
		slog.Duration("took", j.clock().Sub(start)),
	)
	return nil
}
