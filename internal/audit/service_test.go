package audit

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-wms/meridian-wms/internal/shared"
)

type memoryAuditRepo struct {
	entries   []Entry
	insertErr error
}

func (r *memoryAuditRepo) Insert(ctx context.Context, entry Entry) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memoryAuditRepo) ListWindow(ctx context.Context, filter TimelineFilter, offset, limit int) ([]Entry, error) {
	var matched []Entry
	for _, entry := range r.entries {
		if filter.OrgID != 0 && entry.OrgID != filter.OrgID {
			continue
		}
		if filter.Entity != "" && entry.Entity != filter.Entity {
			continue
		}
		if filter.EntityID != "" && entry.EntityID != filter.EntityID {
			continue
		}
		matched = append(matched, entry)
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func TestRecordFillsIDAndTimestamp(t *testing.T) {
	repo := &memoryAuditRepo{}
	at := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(repo, slog.Default(), shared.FixedClock(at))

	err := svc.Record(context.Background(), Entry{
		OrgID:    7,
		ActorID:  42,
		Action:   "CREATE",
		Entity:   "PurchaseOrder",
		EntityID: "13",
		Changes:  map[string]any{"status": "DRAFT"},
	})
	require.NoError(t, err)
	require.Len(t, repo.entries, 1)
	require.NotEmpty(t, repo.entries[0].ID)
	require.Equal(t, at, repo.entries[0].At)
}

func TestRecordRejectsIncompleteEntry(t *testing.T) {
	svc := NewService(&memoryAuditRepo{}, slog.Default(), nil)
	err := svc.Record(context.Background(), Entry{Action: "CREATE"})
	require.Error(t, err)
}

func TestRecordDuplicatesAppend(t *testing.T) {
	repo := &memoryAuditRepo{}
	svc := NewService(repo, slog.Default(), nil)
	entry := Entry{OrgID: 1, Action: "STOCK_IN", Entity: "StockRecord", EntityID: "p1:w1"}
	require.NoError(t, svc.Record(context.Background(), entry))
	require.NoError(t, svc.Record(context.Background(), entry))
	require.Len(t, repo.entries, 2)
}

func TestRecordFailureDoesNotPanic(t *testing.T) {
	repo := &memoryAuditRepo{insertErr: errors.New("disk full")}
	svc := NewService(repo, slog.Default(), nil)
	err := svc.Record(context.Background(), Entry{OrgID: 1, Action: "X", Entity: "Y", EntityID: "1"})
	require.Error(t, err)
}

func TestTimelinePaging(t *testing.T) {
	repo := &memoryAuditRepo{}
	svc := NewService(repo, slog.Default(), nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Record(context.Background(), Entry{
			OrgID: 1, Action: "APPROVE", Entity: "PurchaseOrder", EntityID: "9",
		}))
	}

	result, err := svc.Timeline(context.Background(), TimelineFilter{OrgID: 1, Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)

	result, err = svc.Timeline(context.Background(), TimelineFilter{OrgID: 1, Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	require.False(t, result.Paging.HasNext)
	require.Equal(t, 1, result.Paging.PrevPage)
}

func TestTimelineScopedByOrg(t *testing.T) {
	repo := &memoryAuditRepo{}
	svc := NewService(repo, slog.Default(), nil)
	require.NoError(t, svc.Record(context.Background(), Entry{OrgID: 1, Action: "A", Entity: "E", EntityID: "1"}))
	require.NoError(t, svc.Record(context.Background(), Entry{OrgID: 2, Action: "A", Entity: "E", EntityID: "2"}))

	result, err := svc.Timeline(context.Background(), TimelineFilter{OrgID: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	require.Equal(t, "2", result.Rows[0].EntityID)
}
