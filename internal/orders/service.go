package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-wms/meridian-wms/internal/audit"
	"github.com/meridian-wms/meridian-wms/internal/directory"
	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// ErrOrderNotFound indicates a missing order row.
var ErrOrderNotFound = errors.New("orders: purchase order not found")

// TxRepository exposes transactional operations used by the service. A
// GetForUpdate call holds the order row lock until commit, so status
// transitions on the same order serialize.
type TxRepository interface {
	NextOrderNumber(ctx context.Context, orgID int64) (int64, error)
	CreateOrder(ctx context.Context, order PurchaseOrder) (int64, error)
	InsertLine(ctx context.Context, line Line) error
	GetForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	SetApproval(ctx context.Context, id int64, approverID int64, at time.Time) error
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	ListByOrg(ctx context.Context, orgID int64) ([]PurchaseOrder, error)
}

// DirectoryPort resolves vendor and product references.
type DirectoryPort interface {
	GetProduct(ctx context.Context, id int64) (directory.Product, error)
	GetVendor(ctx context.Context, id int64) (directory.Vendor, error)
}

// AuditPort records workflow mutations, best effort.
type AuditPort interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Service orchestrates the purchase order workflow.
type Service struct {
	repo   RepositoryPort
	dir    DirectoryPort
	audit  AuditPort
	logger *slog.Logger
	clock  shared.Clock
}

// NewService builds the order service.
func NewService(repo RepositoryPort, dir DirectoryPort, auditor AuditPort, logger *slog.Logger, clock shared.Clock) *Service {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &Service{repo: repo, dir: dir, audit: auditor, logger: logger, clock: clock}
}

// Create validates references, snapshots current catalog prices into the
// lines and persists the order in DRAFT with an org-scoped order number.
func (s *Service) Create(ctx context.Context, input CreateInput) (PurchaseOrder, error) {
	if len(input.Lines) == 0 {
		return PurchaseOrder{}, fmt.Errorf("orders: at least one line required: %w", shared.ErrValidation)
	}
	vendor, err := s.dir.GetVendor(ctx, input.VendorID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if vendor.OrgID != input.OrgID {
		return PurchaseOrder{}, fmt.Errorf("orders: vendor %d belongs to another org: %w", input.VendorID, shared.ErrValidation)
	}
	lines := make([]Line, 0, len(input.Lines))
	for _, li := range input.Lines {
		if li.ProductID == 0 || li.Quantity <= 0 {
			return PurchaseOrder{}, fmt.Errorf("orders: line requires product and quantity > 0: %w", shared.ErrValidation)
		}
		product, err := s.dir.GetProduct(ctx, li.ProductID)
		if err != nil {
			return PurchaseOrder{}, err
		}
		if product.OrgID != input.OrgID {
			return PurchaseOrder{}, fmt.Errorf("orders: product %d belongs to another org: %w", li.ProductID, shared.ErrValidation)
		}
		qty := decimal.NewFromInt(li.Quantity)
		lines = append(lines, Line{
			ProductID: li.ProductID,
			Quantity:  li.Quantity,
			UnitPrice: product.UnitPrice,
			LineTotal: product.UnitPrice.Mul(qty).Round(2),
		})
	}
	now := s.clock()
	order := PurchaseOrder{
		OrgID:            input.OrgID,
		VendorID:         input.VendorID,
		CreatedBy:        input.CreatedBy,
		Status:           StatusDraft,
		TotalAmount:      CalculateTotal(lines),
		ExpectedDelivery: input.ExpectedDelivery,
		CreatedAt:        now,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		seq, err := tx.NextOrderNumber(ctx, input.OrgID)
		if err != nil {
			return err
		}
		order.OrderNumber = fmt.Sprintf("PO-%d-%06d", input.OrgID, seq)
		id, err := tx.CreateOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		for i := range lines {
			lines[i].OrderID = id
			if err := tx.InsertLine(ctx, lines[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	order.Lines = lines
	s.recordAudit(ctx, input.OrgID, input.CreatedBy, "CREATE", order.ID, map[string]any{
		"order_number": order.OrderNumber,
		"vendor_id":    order.VendorID,
		"total_amount": order.TotalAmount.String(),
	})
	return order, nil
}

// Submit moves a DRAFT order to PENDING_APPROVAL.
func (s *Service) Submit(ctx context.Context, orgID, actorID, orderID int64) (PurchaseOrder, error) {
	return s.transition(ctx, orgID, actorID, orderID, "SUBMIT", func(_ context.Context, _ TxRepository, order *PurchaseOrder) error {
		if order.Status != StatusDraft {
			return fmt.Errorf("orders: submit from %s: %w", order.Status, shared.ErrInvalidTransition)
		}
		order.Status = StatusPendingApproval
		return nil
	})
}

// Approve marks the order APPROVED. Valid from DRAFT or PENDING_APPROVAL;
// a second call fails because the status has already advanced.
func (s *Service) Approve(ctx context.Context, orgID, approverID, orderID int64) (PurchaseOrder, error) {
	now := s.clock()
	return s.transition(ctx, orgID, approverID, orderID, "APPROVE", func(ctx context.Context, tx TxRepository, order *PurchaseOrder) error {
		if order.Status != StatusDraft && order.Status != StatusPendingApproval {
			return fmt.Errorf("orders: approve from %s: %w", order.Status, shared.ErrInvalidTransition)
		}
		if err := tx.SetApproval(ctx, order.ID, approverID, now); err != nil {
			return err
		}
		order.Status = StatusApproved
		order.ApprovedBy = approverID
		order.ApprovedAt = &now
		return nil
	})
}

// Cancel stops the order from any non-terminal status.
func (s *Service) Cancel(ctx context.Context, orgID, actorID, orderID int64) (PurchaseOrder, error) {
	return s.transition(ctx, orgID, actorID, orderID, "CANCEL", func(_ context.Context, _ TxRepository, order *PurchaseOrder) error {
		if order.Status.Terminal() {
			return fmt.Errorf("orders: cancel from %s: %w", order.Status, shared.ErrInvalidTransition)
		}
		order.Status = StatusCancelled
		return nil
	})
}

// Get returns one order with its lines, scoped to the org.
func (s *Service) Get(ctx context.Context, orgID, orderID int64) (PurchaseOrder, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if errors.Is(err, ErrOrderNotFound) {
		return PurchaseOrder{}, fmt.Errorf("orders: order %d: %w", orderID, shared.ErrNotFound)
	}
	if err != nil {
		return PurchaseOrder{}, err
	}
	if order.OrgID != orgID {
		// Hide other tenants' orders entirely.
		return PurchaseOrder{}, fmt.Errorf("orders: order %d: %w", orderID, shared.ErrNotFound)
	}
	return order, nil
}

// ListByOrg returns the org's orders, newest first.
func (s *Service) ListByOrg(ctx context.Context, orgID int64) ([]PurchaseOrder, error) {
	return s.repo.ListByOrg(ctx, orgID)
}

// transition runs a status mutation under the order's row lock.
func (s *Service) transition(ctx context.Context, orgID, actorID, orderID int64, action string, fn func(context.Context, TxRepository, *PurchaseOrder) error) (PurchaseOrder, error) {
	var result PurchaseOrder
	var from Status
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetForUpdate(ctx, orderID)
		if errors.Is(err, ErrOrderNotFound) {
			return fmt.Errorf("orders: order %d: %w", orderID, shared.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if order.OrgID != orgID {
			return fmt.Errorf("orders: order %d: %w", orderID, shared.ErrNotFound)
		}
		from = order.Status
		if err := fn(ctx, tx, &order); err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, order.ID, order.Status); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, orgID, actorID, action, result.ID, map[string]any{
		"order_number": result.OrderNumber,
		"from":         string(from),
		"to":           string(result.Status),
	})
	return result, nil
}

func (s *Service) recordAudit(ctx context.Context, orgID, actorID int64, action string, orderID int64, changes map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, audit.Entry{
		OrgID:    orgID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "PurchaseOrder",
		EntityID: fmt.Sprintf("%d", orderID),
		Changes:  changes,
	})
}
