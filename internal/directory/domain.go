package directory

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog item. The core only reads sku, name, unit price and
// the owning org.
type Product struct {
	ID        int64           `json:"id"`
	OrgID     int64           `json:"org_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Zone is a storage zone inside a warehouse.
type Zone struct {
	ID          int64  `json:"id"`
	WarehouseID int64  `json:"warehouse_id"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
}

// Warehouse groups zones under one org.
type Warehouse struct {
	ID    int64  `json:"id"`
	OrgID int64  `json:"org_id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Zones []Zone `json:"zones,omitempty"`
}

// Vendor supplies purchase orders.
type Vendor struct {
	ID    int64  `json:"id"`
	OrgID int64  `json:"org_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// User is the directory view of an account: display name and owning org.
type User struct {
	ID          int64  `json:"id"`
	OrgID       int64  `json:"org_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}
