package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-wms/meridian-wms/internal/platform/httpx"
	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// Handler wires HTTP endpoints for the inventory ledger.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/stock-in", h.handleStockIn)
	r.Post("/stock-out", h.handleStockOut)
	r.Put("/records/{id}/levels", h.handleSetLevels)
	r.Get("/warehouse/{warehouseID}", h.handleListByWarehouse)
	r.Get("/alerts/low-stock", h.handleLowStock)
	r.Get("/alerts/expiring", h.handleExpiring)
}

type movementRequest struct {
	ProductID   int64  `json:"product_id" validate:"required"`
	WarehouseID int64  `json:"warehouse_id" validate:"required"`
	ZoneID      int64  `json:"zone_id"`
	Batch       string `json:"batch_number"`
	Quantity    int64  `json:"quantity" validate:"required,gt=0"`
	ExpiryDate  string `json:"expiry_date"`
}

type levelsRequest struct {
	Min int64 `json:"min_stock_level" validate:"gte=0"`
	Max int64 `json:"max_stock_level" validate:"gtefield=Min"`
}

func (h *Handler) handleStockIn(w http.ResponseWriter, r *http.Request) {
	id, req, ok := h.decodeMovement(w, r)
	if !ok {
		return
	}
	var expiry time.Time
	if req.ExpiryDate != "" {
		parsed, err := time.Parse("2006-01-02", req.ExpiryDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "expiry_date must be YYYY-MM-DD")
			return
		}
		expiry = parsed
	}
	record, err := h.service.StockIn(r.Context(), StockInInput{
		OrgID:       id.OrgID,
		ActorID:     id.ActorID,
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		ZoneID:      req.ZoneID,
		Batch:       req.Batch,
		Quantity:    req.Quantity,
		ExpiryDate:  expiry,
	})
	if err != nil {
		h.logger.Error("stock in", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

func (h *Handler) handleStockOut(w http.ResponseWriter, r *http.Request) {
	id, req, ok := h.decodeMovement(w, r)
	if !ok {
		return
	}
	record, err := h.service.StockOut(r.Context(), StockOutInput{
		OrgID:       id.OrgID,
		ActorID:     id.ActorID,
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		ZoneID:      req.ZoneID,
		Batch:       req.Batch,
		Quantity:    req.Quantity,
	})
	if err != nil {
		h.logger.Error("stock out", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

func (h *Handler) handleSetLevels(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "caller identity required")
		return
	}
	recordID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid record id")
		return
	}
	var req levelsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	record, err := h.service.SetStockLevels(r.Context(), LevelsInput{
		OrgID:    id.OrgID,
		ActorID:  id.ActorID,
		RecordID: recordID,
		Min:      req.Min,
		Max:      req.Max,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

func (h *Handler) handleListByWarehouse(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "caller identity required")
		return
	}
	warehouseID, err := strconv.ParseInt(chi.URLParam(r, "warehouseID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid warehouse id")
		return
	}
	records, err := h.service.ListByWarehouse(r.Context(), id.OrgID, warehouseID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, records)
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "caller identity required")
		return
	}
	var warehouseID int64
	if raw := r.URL.Query().Get("warehouse_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid warehouse id")
			return
		}
		warehouseID = parsed
	}
	records, err := h.service.LowStockAlerts(r.Context(), id.OrgID, warehouseID)
	if err != nil {
		h.logger.Error("low stock alerts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, records)
}

func (h *Handler) handleExpiring(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "caller identity required")
		return
	}
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "days must be a non-negative integer")
			return
		}
		days = parsed
	}
	records, err := h.service.ExpiringWithin(r.Context(), id.OrgID, days)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, records)
}

func (h *Handler) decodeMovement(w http.ResponseWriter, r *http.Request) (shared.Identity, movementRequest, bool) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "caller identity required")
		return shared.Identity{}, movementRequest{}, false
	}
	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return shared.Identity{}, movementRequest{}, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return shared.Identity{}, movementRequest{}, false
	}
	return id, req, true
}
