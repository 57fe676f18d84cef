package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-wms/meridian-wms/internal/audit"
	"github.com/meridian-wms/meridian-wms/internal/directory"
	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// ErrRecordNotFound indicates a missing stock record row.
var ErrRecordNotFound = errors.New("ledger: stock record not found")

// TxRepository exposes transactional operations used by the service. A
// GetForUpdate call holds the row lock for the remainder of the
// transaction, so concurrent movements on the same tuple serialize while
// distinct tuples proceed independently.
type TxRepository interface {
	GetForUpdate(ctx context.Context, key TupleKey) (StockRecord, error)
	GetByIDForUpdate(ctx context.Context, id int64) (StockRecord, error)
	InsertOrAdd(ctx context.Context, record StockRecord) (StockRecord, error)
	SetQuantity(ctx context.Context, id int64, quantity int64, at time.Time) error
	SetLevels(ctx context.Context, id int64, min, max int64, at time.Time) error
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListByWarehouse(ctx context.Context, orgID, warehouseID int64) ([]StockRecord, error)
	ListLowStock(ctx context.Context, orgID, warehouseID int64) ([]StockRecord, error)
	ListExpiring(ctx context.Context, orgID int64, cutoff time.Time) ([]StockRecord, error)
}

// DirectoryPort resolves product and warehouse references.
type DirectoryPort interface {
	GetProduct(ctx context.Context, id int64) (directory.Product, error)
	GetWarehouse(ctx context.Context, id int64) (directory.Warehouse, error)
}

// AuditPort records mutations, best effort.
type AuditPort interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Service owns stock-quantity records and applies movements as atomic
// per-tuple deltas.
type Service struct {
	repo   RepositoryPort
	dir    DirectoryPort
	audit  AuditPort
	cache  *Cache
	logger *slog.Logger
	clock  shared.Clock
}

// NewService builds the ledger service.
func NewService(repo RepositoryPort, dir DirectoryPort, auditor AuditPort, cache *Cache, logger *slog.Logger, clock shared.Clock) *Service {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &Service{repo: repo, dir: dir, audit: auditor, cache: cache, logger: logger, clock: clock}
}

// StockIn increments the tuple's quantity, creating the record on first
// movement with default min/max levels.
func (s *Service) StockIn(ctx context.Context, input StockInInput) (StockRecord, error) {
	if input.Quantity <= 0 {
		return StockRecord{}, fmt.Errorf("ledger: quantity must be > 0: %w", shared.ErrValidation)
	}
	if err := s.checkReferences(ctx, input.OrgID, input.ProductID, input.WarehouseID, input.ZoneID); err != nil {
		return StockRecord{}, err
	}
	key := TupleKey{ProductID: input.ProductID, WarehouseID: input.WarehouseID, ZoneID: input.ZoneID, Batch: input.Batch}
	now := s.clock()
	var result StockRecord
	var before int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		record, err := tx.GetForUpdate(ctx, key)
		switch {
		case errors.Is(err, ErrRecordNotFound):
			// First movement for this tuple. The upsert closes the race
			// where two first stock-ins pass the not-found check together.
			created, err := tx.InsertOrAdd(ctx, StockRecord{
				OrgID:         input.OrgID,
				ProductID:     input.ProductID,
				WarehouseID:   input.WarehouseID,
				ZoneID:        input.ZoneID,
				Batch:         input.Batch,
				Quantity:      input.Quantity,
				MinStockLevel: DefaultMinStockLevel,
				MaxStockLevel: DefaultMaxStockLevel,
				ExpiryDate:    input.ExpiryDate,
				LastUpdated:   now,
			})
			if err != nil {
				return err
			}
			result = created
			return nil
		case err != nil:
			return err
		}
		before = record.Quantity
		record.Quantity += input.Quantity
		record.LastUpdated = now
		if err := tx.SetQuantity(ctx, record.ID, record.Quantity, now); err != nil {
			return err
		}
		result = record
		return nil
	})
	if err != nil {
		return StockRecord{}, err
	}
	s.afterMovement(ctx, input.OrgID, input.ActorID, "STOCK_IN", result, before, input.Quantity)
	return result, nil
}

// StockOut decrements the tuple's quantity. No partial fulfillment: a
// request beyond the available quantity fails and leaves the record as is.
func (s *Service) StockOut(ctx context.Context, input StockOutInput) (StockRecord, error) {
	if input.Quantity <= 0 {
		return StockRecord{}, fmt.Errorf("ledger: quantity must be > 0: %w", shared.ErrValidation)
	}
	key := TupleKey{ProductID: input.ProductID, WarehouseID: input.WarehouseID, ZoneID: input.ZoneID, Batch: input.Batch}
	now := s.clock()
	var result StockRecord
	var before int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		record, err := tx.GetForUpdate(ctx, key)
		if errors.Is(err, ErrRecordNotFound) {
			return fmt.Errorf("ledger: no stock for tuple %s: %w", key, shared.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if record.OrgID != input.OrgID {
			return fmt.Errorf("ledger: tuple %s not owned by org %d: %w", key, input.OrgID, shared.ErrValidation)
		}
		if record.Quantity < input.Quantity {
			return fmt.Errorf("ledger: requested %d, available %d: %w", input.Quantity, record.Quantity, shared.ErrInsufficientStock)
		}
		before = record.Quantity
		record.Quantity -= input.Quantity
		record.LastUpdated = now
		if err := tx.SetQuantity(ctx, record.ID, record.Quantity, now); err != nil {
			return err
		}
		result = record
		return nil
	})
	if err != nil {
		return StockRecord{}, err
	}
	s.afterMovement(ctx, input.OrgID, input.ActorID, "STOCK_OUT", result, before, -input.Quantity)
	return result, nil
}

// SetStockLevels updates the min/max thresholds of one record.
func (s *Service) SetStockLevels(ctx context.Context, input LevelsInput) (StockRecord, error) {
	if input.Min < 0 || input.Max < input.Min {
		return StockRecord{}, fmt.Errorf("ledger: levels require 0 <= min <= max: %w", shared.ErrValidation)
	}
	now := s.clock()
	var result StockRecord
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		record, err := tx.GetByIDForUpdate(ctx, input.RecordID)
		if errors.Is(err, ErrRecordNotFound) {
			return fmt.Errorf("ledger: record %d: %w", input.RecordID, shared.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if record.OrgID != input.OrgID {
			return fmt.Errorf("ledger: record %d not owned by org %d: %w", input.RecordID, input.OrgID, shared.ErrValidation)
		}
		record.MinStockLevel = input.Min
		record.MaxStockLevel = input.Max
		record.LastUpdated = now
		if err := tx.SetLevels(ctx, record.ID, input.Min, input.Max, now); err != nil {
			return err
		}
		result = record
		return nil
	})
	if err != nil {
		return StockRecord{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, audit.Entry{
			OrgID:    input.OrgID,
			ActorID:  input.ActorID,
			Action:   "SET_LEVELS",
			Entity:   "StockRecord",
			EntityID: result.Tuple().String(),
			Changes:  map[string]any{"min": input.Min, "max": input.Max},
		})
	}
	s.bumpAlerts(ctx)
	return result, nil
}

// ListByWarehouse returns the org's records in one warehouse.
func (s *Service) ListByWarehouse(ctx context.Context, orgID, warehouseID int64) ([]StockRecord, error) {
	if warehouseID == 0 {
		return nil, fmt.Errorf("ledger: warehouse required: %w", shared.ErrValidation)
	}
	return s.repo.ListByWarehouse(ctx, orgID, warehouseID)
}

// LowStockAlerts returns records at or below their minimum level.
// warehouseID 0 spans all of the org's warehouses.
func (s *Service) LowStockAlerts(ctx context.Context, orgID, warehouseID int64) ([]StockRecord, error) {
	loader := func(ctx context.Context) (any, error) {
		return s.repo.ListLowStock(ctx, orgID, warehouseID)
	}
	var records []StockRecord
	key, err := s.cacheKey(ctx, "lowstock", orgID, warehouseID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.FetchJSON(ctx, key, &records, loader); err != nil {
		return nil, err
	}
	return records, nil
}

// ExpiringWithin returns records whose expiry date falls inside the window.
func (s *Service) ExpiringWithin(ctx context.Context, orgID int64, days int) ([]StockRecord, error) {
	if days < 0 {
		return nil, fmt.Errorf("ledger: days must be >= 0: %w", shared.ErrValidation)
	}
	cutoff := s.clock().AddDate(0, 0, days)
	loader := func(ctx context.Context) (any, error) {
		return s.repo.ListExpiring(ctx, orgID, cutoff)
	}
	var records []StockRecord
	key, err := s.cacheKey(ctx, "expiring", orgID, int64(days))
	if err != nil {
		return nil, err
	}
	if err := s.cache.FetchJSON(ctx, key, &records, loader); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Service) checkReferences(ctx context.Context, orgID, productID, warehouseID, zoneID int64) error {
	if productID == 0 || warehouseID == 0 {
		return fmt.Errorf("ledger: product and warehouse required: %w", shared.ErrValidation)
	}
	product, err := s.dir.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	warehouse, err := s.dir.GetWarehouse(ctx, warehouseID)
	if err != nil {
		return err
	}
	if product.OrgID != orgID || warehouse.OrgID != orgID {
		return fmt.Errorf("ledger: product/warehouse belong to another org: %w", shared.ErrValidation)
	}
	if zoneID != 0 {
		found := false
		for _, zone := range warehouse.Zones {
			if zone.ID == zoneID {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("ledger: zone %d not in warehouse %d: %w", zoneID, warehouseID, shared.ErrValidation)
		}
	}
	return nil
}

func (s *Service) afterMovement(ctx context.Context, orgID, actorID int64, action string, record StockRecord, before, delta int64) {
	if s.audit != nil {
		_ = s.audit.Record(ctx, audit.Entry{
			OrgID:    orgID,
			ActorID:  actorID,
			Action:   action,
			Entity:   "StockRecord",
			EntityID: record.Tuple().String(),
			Changes: map[string]any{
				"quantity_before": before,
				"quantity_after":  record.Quantity,
				"delta":           delta,
			},
		})
	}
	s.bumpAlerts(ctx)
}

func (s *Service) bumpAlerts(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil && s.logger != nil {
		s.logger.Warn("alert cache bump", slog.Any("error", err))
	}
}

func (s *Service) cacheKey(ctx context.Context, kind string, parts ...int64) (string, error) {
	keyParts := []string{"ledger", "alerts", kind}
	for _, p := range parts {
		keyParts = append(keyParts, fmt.Sprintf("%d", p))
	}
	return s.cache.BuildKey(ctx, keyParts...)
}
