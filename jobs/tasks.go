package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan sweeps stock records that fell to or below their
	// minimum level.
	TaskLowStockScan = "inventory:low_stock_scan"
	// TaskExpiryScan sweeps stock records whose expiry date is close.
	TaskExpiryScan = "inventory:expiry_scan"
	// DefaultExpiryDays is the look-ahead window when a sweep does not
	// name one.
	DefaultExpiryDays = 30
)

// LowStockScanPayload narrows the sweep to one warehouse when set.
type LowStockScanPayload struct {
	WarehouseID int64 `json:"warehouse_id"`
}

// ExpiryScanPayload carries the look-ahead window in days.
type ExpiryScanPayload struct {
	Days int `json:"days"`
}

// NewLowStockScanTask constructs an Asynq task.
func NewLowStockScanTask(payload LowStockScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, data), nil
}

// NewExpiryScanTask constructs an Asynq task.
func NewExpiryScanTask(days int) (*asynq.Task, error) {
	data, err := json.Marshal(ExpiryScanPayload{Days: days})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpiryScan, data), nil
}
