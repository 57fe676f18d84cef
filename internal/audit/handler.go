package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-wms/meridian-wms/internal/platform/httpx"
	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// Handler exposes read-only timeline endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the audit handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/timeline", h.handleTimeline)
	r.Get("/entity/{entity}/{entityID}", h.handleEntityHistory)
}

type entryResponse struct {
	ID       string         `json:"id"`
	OrgID    int64          `json:"org_id"`
	ActorID  int64          `json:"actor_id"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Changes  map[string]any `json:"changes,omitempty"`
	At       time.Time      `json:"at"`
}

type timelineResponse struct {
	Rows   []entryResponse `json:"rows"`
	Paging PagingInfo      `json:"paging"`
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "caller identity required")
		return
	}
	filter := TimelineFilter{OrgID: id.OrgID}
	q := r.URL.Query()
	filter.Entity = q.Get("entity")
	filter.EntityID = q.Get("entity_id")
	if raw := q.Get("from"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.From = ts
		}
	}
	if raw := q.Get("to"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.To = ts
		}
	}
	filter.Page = atoiDefault(q.Get("page"), 1)
	filter.PageSize = atoiDefault(q.Get("page_size"), 20)

	result, err := h.service.Timeline(r.Context(), filter)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, timelineResponse{Rows: toResponses(result.Rows), Paging: result.Paging})
}

func (h *Handler) handleEntityHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "caller identity required")
		return
	}
	entries, err := h.service.ListByEntity(r.Context(), id.OrgID, chi.URLParam(r, "entity"), chi.URLParam(r, "entityID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponses(entries))
}

func toResponses(entries []Entry) []entryResponse {
	out := make([]entryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entryResponse{
			ID:       entry.ID.String(),
			OrgID:    entry.OrgID,
			ActorID:  entry.ActorID,
			Action:   entry.Action,
			Entity:   entry.Entity,
			EntityID: entry.EntityID,
			Changes:  entry.Changes,
			At:       entry.At,
		})
	}
	return out
}

func atoiDefault(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
