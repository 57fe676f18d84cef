package orders

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-wms/meridian-wms/internal/platform/httpx"
	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// Handler wires HTTP endpoints for the purchase order workflow.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the order handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/submit", h.transitionHandler("submit", h.service.Submit))
	r.Post("/{id}/approve", h.transitionHandler("approve", h.service.Approve))
	r.Post("/{id}/cancel", h.transitionHandler("cancel", h.service.Cancel))
}

type createRequest struct {
	VendorID         int64               `json:"vendor_id" validate:"required"`
	ExpectedDelivery string              `json:"expected_delivery"`
	Lines            []createLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type createLineRequest struct {
	ProductID int64 `json:"product_id" validate:"required"`
	Quantity  int64 `json:"quantity" validate:"required,gt=0"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "caller identity required")
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var expected *time.Time
	if req.ExpectedDelivery != "" {
		parsed, err := time.Parse("2006-01-02", req.ExpectedDelivery)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "expected_delivery must be YYYY-MM-DD")
			return
		}
		expected = &parsed
	}
	lines := make([]LineInput, 0, len(req.Lines))
	for _, li := range req.Lines {
		lines = append(lines, LineInput{ProductID: li.ProductID, Quantity: li.Quantity})
	}
	order, err := h.service.Create(r.Context(), CreateInput{
		OrgID:            id.OrgID,
		CreatedBy:        id.ActorID,
		VendorID:         req.VendorID,
		ExpectedDelivery: expected,
		Lines:            lines,
	})
	if err != nil {
		h.logger.Error("create order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "caller identity required")
		return
	}
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid order id")
		return
	}
	order, err := h.service.Get(r.Context(), id.OrgID, orderID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "caller identity required")
		return
	}
	orders, err := h.service.ListByOrg(r.Context(), id.OrgID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}

func (h *Handler) transitionHandler(name string, fn func(ctx context.Context, orgID, actorID, orderID int64) (PurchaseOrder, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := shared.IdentityFromContext(r.Context())
		if !ok {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "caller identity required")
			return
		}
		orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid order id")
			return
		}
		order, err := fn(r.Context(), id.OrgID, id.ActorID, orderID)
		if err != nil {
			h.logger.Error(name+" order", slog.Any("error", err), slog.Int64("order_id", orderID))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, order)
	}
}
