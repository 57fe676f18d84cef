package directory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-wms/meridian-wms/internal/platform/httpx"
	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// Handler exposes the directory to the surrounding service layer.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the directory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers directory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.handleListProducts)
	r.Post("/products", h.handleCreateProduct)
	r.Get("/products/{id}", h.handleGetProduct)
	r.Post("/vendors", h.handleCreateVendor)
	r.Get("/vendors/{id}", h.handleGetVendor)
	r.Post("/warehouses", h.handleCreateWarehouse)
	r.Get("/warehouses/{id}", h.handleGetWarehouse)
}

type createProductRequest struct {
	SKU       string `json:"sku" validate:"required"`
	Name      string `json:"name" validate:"required"`
	UnitPrice string `json:"unit_price" validate:"required"`
	IsActive  *bool  `json:"is_active"`
}

type createVendorRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
}

type createWarehouseRequest struct {
	Code  string `json:"code" validate:"required"`
	Name  string `json:"name" validate:"required"`
	Zones []struct {
		Name string `json:"name" validate:"required"`
		Kind string `json:"kind"`
	} `json:"zones" validate:"dive"`
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "caller identity required")
		return
	}
	var req createProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	price, err := decimal.NewFromString(req.UnitPrice)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unit_price must be a decimal string")
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	product, err := h.service.CreateProduct(r.Context(), Product{
		OrgID:     id.OrgID,
		SKU:       req.SKU,
		Name:      req.Name,
		UnitPrice: price,
		IsActive:  active,
	})
	if err != nil {
		h.logger.Error("create product", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "caller identity required")
		return
	}
	products, err := h.service.ListProducts(r.Context(), id.OrgID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	h.respondScoped(w, r, func(orgID, entityID int64) (any, int64, error) {
		p, err := h.service.GetProduct(r.Context(), entityID)
		return p, p.OrgID, err
	})
}

func (h *Handler) handleCreateVendor(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "caller identity required")
		return
	}
	var req createVendorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	vendor, err := h.service.CreateVendor(r.Context(), Vendor{OrgID: id.OrgID, Name: req.Name, Email: req.Email})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, vendor)
}

func (h *Handler) handleGetVendor(w http.ResponseWriter, r *http.Request) {
	h.respondScoped(w, r, func(orgID, entityID int64) (any, int64, error) {
		v, err := h.service.GetVendor(r.Context(), entityID)
		return v, v.OrgID, err
	})
}

func (h *Handler) handleCreateWarehouse(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "caller identity required")
		return
	}
	var req createWarehouseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	warehouse := Warehouse{OrgID: id.OrgID, Code: req.Code, Name: req.Name}
	for _, z := range req.Zones {
		warehouse.Zones = append(warehouse.Zones, Zone{Name: z.Name, Kind: z.Kind})
	}
	created, err := h.service.CreateWarehouse(r.Context(), warehouse)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGetWarehouse(w http.ResponseWriter, r *http.Request) {
	h.respondScoped(w, r, func(orgID, entityID int64) (any, int64, error) {
		wh, err := h.service.GetWarehouse(r.Context(), entityID)
		return wh, wh.OrgID, err
	})
}

// respondScoped fetches an entity and hides other orgs' rows behind 404.
func (h *Handler) respondScoped(w http.ResponseWriter, r *http.Request, fetch func(orgID, entityID int64) (any, int64, error)) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "caller identity required")
		return
	}
	entityID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	entity, ownerOrg, err := fetch(id.OrgID, entityID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if ownerOrg != id.OrgID {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
		return
	}
	httpx.JSON(w, http.StatusOK, entity)
}
