package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase order lifecycle statuses. SHIPPED and RECEIVED are reachable
// through the fulfilment flow; CANCELLED from any non-terminal status.
type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusShipped         Status = "SHIPPED"
	StatusReceived        Status = "RECEIVED"
	StatusCancelled       Status = "CANCELLED"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusReceived || s == StatusCancelled
}

// PurchaseOrder is the order aggregate: header plus lines.
type PurchaseOrder struct {
	ID               int64           `json:"id"`
	OrgID            int64           `json:"org_id"`
	OrderNumber      string          `json:"order_number"`
	VendorID         int64           `json:"vendor_id"`
	CreatedBy        int64           `json:"created_by"`
	ApprovedBy       int64           `json:"approved_by,omitempty"`
	Status           Status          `json:"status"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	ExpectedDelivery *time.Time      `json:"expected_delivery,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	ApprovedAt       *time.Time      `json:"approved_at,omitempty"`
	Lines            []Line          `json:"lines"`
}

// Line is one product entry on an order. UnitPrice is snapshotted from the
// catalog when the order is created and never re-read afterwards.
type Line struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// CalculateTotal sums quantity times unit price across lines, rounded to
// two decimal places. Pure; recomputing on unchanged lines yields the
// identical value.
func CalculateTotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity)))
	}
	return total.Round(2)
}

// CreateInput describes order creation.
type CreateInput struct {
	OrgID            int64
	CreatedBy        int64
	VendorID         int64
	ExpectedDelivery *time.Time
	Lines            []LineInput
}

// LineInput is a requested product and quantity; the price comes from the
// catalog at creation time.
type LineInput struct {
	ProductID int64
	Quantity  int64
}
