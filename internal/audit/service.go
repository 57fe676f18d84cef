package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// RepositoryPort abstracts persistence for the recorder.
type RepositoryPort interface {
	Insert(ctx context.Context, entry Entry) error
	ListWindow(ctx context.Context, filter TimelineFilter, offset, limit int) ([]Entry, error)
}

// Service records and retrieves audit entries. Recording is best effort:
// a persistence failure is logged through the side channel and must never
// roll back the mutation that triggered it.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	clock  shared.Clock
}

// NewService builds the audit service.
func NewService(repo RepositoryPort, logger *slog.Logger, clock shared.Clock) *Service {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &Service{repo: repo, logger: logger, clock: clock}
}

// Record appends an entry. Duplicate calls produce duplicate entries.
func (s *Service) Record(ctx context.Context, entry Entry) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: recorder not configured")
	}
	if entry.Action == "" || entry.Entity == "" || entry.EntityID == "" {
		return errors.New("audit: entry requires action/entity/entity_id")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.At.IsZero() {
		entry.At = s.clock()
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		if s.logger != nil {
			s.logger.Error("audit record failed",
				slog.String("action", entry.Action),
				slog.String("entity", entry.Entity),
				slog.String("entity_id", entry.EntityID),
				slog.Any("error", err))
		}
		return err
	}
	return nil
}

// Timeline retrieves entries with paging, newest first.
func (s *Service) Timeline(ctx context.Context, filter TimelineFilter) (Result, error) {
	if s == nil || s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize
	rows, err := s.repo.ListWindow(ctx, filter, offset, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// ListByOrg returns one page of the org's entries, newest first.
func (s *Service) ListByOrg(ctx context.Context, orgID int64, page, pageSize int) (Result, error) {
	return s.Timeline(ctx, TimelineFilter{OrgID: orgID, Page: page, PageSize: pageSize})
}

// ListByEntity returns the full history of one entity, newest first.
func (s *Service) ListByEntity(ctx context.Context, orgID int64, entity, entityID string) ([]Entry, error) {
	if entity == "" || entityID == "" {
		return nil, fmt.Errorf("audit: entity and entity id required: %w", shared.ErrValidation)
	}
	return s.repo.ListWindow(ctx, TimelineFilter{OrgID: orgID, Entity: entity, EntityID: entityID}, 0, 200)
}
