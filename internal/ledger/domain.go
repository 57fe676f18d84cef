package ledger

import (
	"fmt"
	"time"
)

// Default stock levels applied when a tuple is first created.
const (
	DefaultMinStockLevel = 0
	DefaultMaxStockLevel = 1000
)

// TupleKey identifies one stock record: (product, warehouse, zone, batch).
// ZoneID 0 and Batch "" mean the dimension is absent; they still take part
// in the uniqueness key.
type TupleKey struct {
	ProductID   int64
	WarehouseID int64
	ZoneID      int64
	Batch       string
}

// String renders the tuple for lock keys and audit entity ids.
func (k TupleKey) String() string {
	return fmt.Sprintf("%d:%d:%d:%s", k.ProductID, k.WarehouseID, k.ZoneID, k.Batch)
}

// StockRecord holds the quantity for one tuple. Quantity never goes
// negative; records are never deleted, quantity may reach zero.
type StockRecord struct {
	ID            int64     `json:"id"`
	OrgID         int64     `json:"org_id"`
	ProductID     int64     `json:"product_id"`
	WarehouseID   int64     `json:"warehouse_id"`
	ZoneID        int64     `json:"zone_id,omitempty"`
	Batch         string    `json:"batch_number,omitempty"`
	Quantity      int64     `json:"quantity"`
	MinStockLevel int64     `json:"min_stock_level"`
	MaxStockLevel int64     `json:"max_stock_level"`
	ExpiryDate    time.Time `json:"expiry_date,omitempty"`
	LastUpdated   time.Time `json:"last_updated"`
}

// Tuple returns the record's identity key.
func (r StockRecord) Tuple() TupleKey {
	return TupleKey{ProductID: r.ProductID, WarehouseID: r.WarehouseID, ZoneID: r.ZoneID, Batch: r.Batch}
}

// IsLowStock reports whether the record sits at or below its minimum level.
func (r StockRecord) IsLowStock() bool {
	return r.Quantity <= r.MinStockLevel
}

// StockInInput describes an inbound movement.
type StockInInput struct {
	OrgID       int64
	ActorID     int64
	ProductID   int64
	WarehouseID int64
	ZoneID      int64
	Batch       string
	Quantity    int64
	ExpiryDate  time.Time
}

// StockOutInput describes an outbound movement.
type StockOutInput struct {
	OrgID       int64
	ActorID     int64
	ProductID   int64
	WarehouseID int64
	ZoneID      int64
	Batch       string
	Quantity    int64
}

// LevelsInput updates min/max thresholds on one record.
type LevelsInput struct {
	OrgID    int64
	ActorID  int64
	RecordID int64
	Min      int64
	Max      int64
}
