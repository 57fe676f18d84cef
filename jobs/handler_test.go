package jobs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type stubEnqueuer struct {
	lowStock []LowStockScanPayload
	expiry   []int
	err      error
}

func (s *stubEnqueuer) EnqueueLowStockScan(_ context.Context, payload LowStockScanPayload) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.lowStock = append(s.lowStock, payload)
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault}, nil
}

func (s *stubEnqueuer) EnqueueExpiryScan(_ context.Context, days int) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.expiry = append(s.expiry, days)
	return &asynq.TaskInfo{ID: "task-2", Queue: QueueDefault}, nil
}

func newTestJobsRouter(client Enqueuer) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, client, logger).MountRoutes)
	return r
}

func TestEnqueueLowStockScan(t *testing.T) {
	stub := &stubEnqueuer{}
	router := newTestJobsRouter(stub)

	req := httptest.NewRequest(http.MethodPost, "/jobs/low-stock-scan", bytes.NewBufferString(`{"warehouse_id":5}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), "task-1")
	require.Len(t, stub.lowStock, 1)
	require.Equal(t, int64(5), stub.lowStock[0].WarehouseID)
}

func TestEnqueueLowStockScanEmptyBody(t *testing.T) {
	stub := &stubEnqueuer{}
	router := newTestJobsRouter(stub)

	req := httptest.NewRequest(http.MethodPost, "/jobs/low-stock-scan", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, stub.lowStock, 1)
	require.Zero(t, stub.lowStock[0].WarehouseID)
}

func TestEnqueueExpiryScanDefaultsWindow(t *testing.T) {
	stub := &stubEnqueuer{}
	router := newTestJobsRouter(stub)

	req := httptest.NewRequest(http.MethodPost, "/jobs/expiry-scan", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, stub.expiry, 1)
	require.Equal(t, DefaultExpiryDays, stub.expiry[0])

	req = httptest.NewRequest(http.MethodPost, "/jobs/expiry-scan", bytes.NewBufferString(`{"days":7}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 7, stub.expiry[1])
}

func TestEnqueueRejectsMalformedBody(t *testing.T) {
	stub := &stubEnqueuer{}
	router := newTestJobsRouter(stub)

	req := httptest.NewRequest(http.MethodPost, "/jobs/expiry-scan", bytes.NewBufferString(`{`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, stub.expiry)
}

func TestEnqueueUnavailableQueue(t *testing.T) {
	router := newTestJobsRouter(&stubEnqueuer{err: errors.New("redis down")})

	req := httptest.NewRequest(http.MethodPost, "/jobs/low-stock-scan", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
