package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/jvaguiar05/smart-park-system/pkg/apperrors"
	"github.com/jvaguiar05/smart-park-system/pkg/auth"
	"github.com/jvaguiar05/smart-park-system/pkg/repositories"
	"github.com/jvaguiar05/smart-park-system/pkg/services"
)

// EstablishmentRequest is the body of POST/PUT /api/establishments.
// ClientID is only read on create.
type EstablishmentRequest struct {
	ClientID    int64    `json:"client_id,omitempty" validate:"omitempty,gt=0"`
	Name        string   `json:"name" validate:"required,max=255"`
	StoreTypeID *int64   `json:"store_type_id,omitempty" validate:"omitempty,gt=0"`
	Address     *string  `json:"address,omitempty" validate:"omitempty,max=500"`
	City        *string  `json:"city,omitempty" validate:"omitempty,max=100"`
	State       *string  `json:"state,omitempty" validate:"omitempty,max=100"`
	Lat         *float64 `json:"lat,omitempty" validate:"omitempty,latitude"`
	Lng         *float64 `json:"lng,omitempty" validate:"omitempty,longitude"`
}

func (req EstablishmentRequest) input() services.EstablishmentInput {
	return services.EstablishmentInput{
		Name:        req.Name,
		StoreTypeID: req.StoreTypeID,
		Address:     req.Address,
		City:        req.City,
		State:       req.State,
		Lat:         req.Lat,
		Lng:         req.Lng,
	}
}

// LotRequest is the body of POST/PUT /api/lots.
// EstablishmentID is only read on create.
type LotRequest struct {
	EstablishmentID int64   `json:"establishment_id,omitempty" validate:"omitempty,gt=0"`
	LotCode         string  `json:"lot_code" validate:"required,max=50"`
	Name            *string `json:"name,omitempty" validate:"omitempty,max=255"`
}

// SlotRequest is the body of POST /api/lots/{id}/slots and PUT /api/slots/{id}.
// On PUT an omitted polygon or active keeps the stored value.
type SlotRequest struct {
	SlotCode   string          `json:"slot_code" validate:"required,max=50"`
	SlotTypeID int64           `json:"slot_type_id" validate:"required,gt=0"`
	Polygon    json.RawMessage `json:"polygon,omitempty"`
	Active     *bool           `json:"active,omitempty"`
}

func (req SlotRequest) input() services.SlotInput {
	return services.SlotInput{
		SlotCode:   req.SlotCode,
		SlotTypeID: req.SlotTypeID,
		Polygon:    req.Polygon,
		Active:     req.Active,
	}
}

// CatalogHandler serves the establishment, lot and slot hierarchy and the lookup tables.
type CatalogHandler struct {
	catalog services.CatalogService
	callers services.CallerLoader
	logger  *zap.Logger
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(catalog services.CatalogService, callers services.CallerLoader, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		callers: callers,
		logger:  logger,
	}
}

// RegisterRoutes registers the catalog handler's routes on the given mux.
func (h *CatalogHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	route := func(pattern string, fn http.HandlerFunc) {
		mux.HandleFunc(pattern, authMiddleware.RequireAuth(scope(fn)))
	}

	route("GET /api/establishments", h.ListEstablishments)
	route("POST /api/establishments", h.CreateEstablishment)
	route("GET /api/establishments/{id}", h.GetEstablishment)
	route("PUT /api/establishments/{id}", h.UpdateEstablishment)
	route("DELETE /api/establishments/{id}", h.DeleteEstablishment)

	route("GET /api/lots", h.ListLots)
	route("POST /api/lots", h.CreateLot)
	route("GET /api/lots/{id}", h.GetLot)
	route("PUT /api/lots/{id}", h.UpdateLot)
	route("DELETE /api/lots/{id}", h.DeleteLot)

	route("GET /api/lots/{id}/slots", h.ListSlots)
	route("POST /api/lots/{id}/slots", h.CreateSlot)
	route("GET /api/slots/{id}", h.GetSlot)
	route("PUT /api/slots/{id}", h.UpdateSlot)
	route("DELETE /api/slots/{id}", h.DeleteSlot)

	route("GET /api/store-types", h.listLookups(repositories.StoreTypes))
	route("GET /api/slot-types", h.listLookups(repositories.SlotTypes))
	route("GET /api/vehicle-types", h.listLookups(repositories.VehicleTypes))
}

// ListEstablishments handles GET /api/establishments
func (h *CatalogHandler) ListEstablishments(w http.ResponseWriter, r *http.Request) {
	opts, ok := ParseListOptions(w, r, h.logger)
	if !ok {
		return
	}
	caller, ok := loadCaller(w, r, h.callers, h.logger)
	if !ok {
		return
	}

	page, err := h.catalog.ListEstablishments(r.Context(), caller, opts)
	if err != nil {
		writeServiceError(w, h.logger, "list_establishments", err)
		return
	}
	h.write(w, http.StatusOK, page)
}

// GetEstablishment handles GET /api/establishments/{id}
func (h *CatalogHandler) GetEstablishment(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseResourceID(w, r, h.logger)
	if !ok {
		return
	}
	caller, ok := loadCaller(w, r, h.callers, h.logger)
	if !ok {
		return
	}

	est, err := h.catalog.GetEstablishment(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, h.logger, "get_establishment", err)
		return
	}
	h.write(w, http.StatusOK, est)
}

// CreateEstablishment handles POST /api/establishments
func (h *CatalogHandler) CreateEstablishment(w http.ResponseWriter, r *http.Request) {
	var req EstablishmentRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	if req.ClientID == 0 {
		if err := ValidationErrorResponse(w, apperrors.NewValidationError("client_id", "is required")); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	caller, ok := loadCaller(w, r, h.callers, h.logger)
	if !ok {
		return
	}

	est, err := h.catalog.CreateEstablishment(r.Context(), caller, req.ClientID, req.input())
	if err != nil {
		writeServiceError(w, h.logger, "create_establishment", err)
		return
	}
	h.write(w, http.StatusCreated, est)
}

// UpdateEstablishment handles PUT /api/establishments/{id}
func (h *CatalogHandler) UpdateEstablishment(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseResourceID(w, r, h.logger)
	if !ok {
		return
	}
	var req EstablishmentRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	caller, ok := loadCaller(w, r, h.callers, h.logger)
	if !ok {
		return
	}

	est, err := h.catalog.UpdateEstablishment(r.Context(), caller, id, req.input())
	if err != nil {
		writeServiceError(w, h.logger, "update_establishment", err)
		return
	}
	h.write(w, http.StatusOK, est)
}

// DeleteEstablishment handles DELETE /api/establishments/{id}
func (h *CatalogHandler) DeleteEstablishment(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseResourceID(w, r, h.logger)
	if !ok {
		return
	}
	caller, ok := loadCaller(w, r, h.callers, h.logger)
	if !ok {
		return
	}

	if err := h.catalog.DeleteEstablishment(r.Context(), caller, id); err != nil {
		writeServiceError(w, h.logger, "delete_establishment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListLots handles GET /api/lots, optionally filtered by ?establishment_id=
func (h *CatalogHandler) ListLots(w http.ResponseWriter, r *http.Request) {
	opts, ok := ParseListOptions(w, r, h.logger)
	if !ok {
		return
	}
	estID, ok := parseOptionalQueryID(w, r, "establishment_id", h.logger)
	if !ok {
		return
	}
	caller, ok := loadCaller(w, r, h.callers, h.logger)
	if !ok {
		return
	}

	page, err := h.catalog.ListLots(r.Context(), caller, estID, opts)
	if err != nil {
		writeServiceError(w, h.logger, "list_lots", err)
		return
	}
	h.write(w, http.StatusOK, page)
}

// GetLot handles GET /api/lots/{id}
func (h *CatalogHandler) GetLot(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseResourceID(w, r, h.logger)
	if !ok {
		return
	}
	caller, ok := loadCaller(w, r, h.callers, h.logger)
	if !ok {
		return
	}

	lot, err := h.catalog.GetLot(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, h.logger, "get_lot", err)
		return
	}
	h.write(w, http.StatusOK, lot)
}

// CreateLot handles POST /api/lots
func (h *CatalogHandler) CreateLot(w http.ResponseWriter, r *http.Request) {
	var req LotRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	if req.EstablishmentID == 0 {
		if err := ValidationErrorResponse(w, apperrors.NewValidationError("establishment_id", "is required")); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	caller, ok := loadCaller(w, r, h.callers, h.logger)
	if !ok {
		return
	}

	lot, err := h.catalog.CreateLot(r.Context(), caller, req.EstablishmentID, services.LotInput{LotCode: req.LotCode, Name: req.Name})
	if err != nil {
		writeServiceError(w, h.logger, "create_lot", err)
		return
	}
	h.write(w, http.StatusCreated, lot)
}

// UpdateLot handles PUT /api/lots/{id}
func (h *CatalogHandler) UpdateLot(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseResourceID(w, r, h.logger)
	if !ok {
		return
	}
	var req LotRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	caller, ok := loadCaller(w, r, h.callers, h.logger)
	if !ok {
		return
	}

	lot, err := h.catalog.UpdateLot(r.Context(), caller, id, services.LotInput{LotCode: req.LotCode, Name: req.Name})
	if err != nil {
		writeServiceError(w, h.logger, "update_lot", err)
		return
	}
	h.write(w, http.StatusOK, lot)
}

// DeleteLot handles DELETE /api/lots/{id}
func (h *CatalogHandler) DeleteLot(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseResourceID(w, r, h.logger)
	if !ok {
		return
	}
	caller, ok := loadCaller(w, r, h.callers, h.logger)
	if !ok {
		return
	}

	if err := h.catalog.DeleteLot(r.Context(), caller, id); err != nil {
		writeServiceError(w, h.logger, "delete_lot", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSlots handles GET /api/lots/{id}/slots
func (h *CatalogHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	lotID, ok := ParseResourceID(w, r, h.logger)
	if !ok {
		return
	}
	opts, ok := ParseListOptions(w, r, h.logger)
	if !ok {
		return
	}
	caller, ok := loadCaller(w, r, h.callers, h.logger)
	if !ok {
		return
	}

	page, err := h.catalog.ListSlots(r.Context(), caller, lotID, opts)
	if err != nil {
		writeServiceError(w, h.logger, "list_slots", err)
		return
	}
	h.write(w, http.StatusOK, page)
}

// GetSlot handles GET /api/slots/{id}
func (h *CatalogHandler) GetSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseResourceID(w, r, h.logger)
	if !ok {
		return
	}
	caller, ok := loadCaller(w, r, h.callers, h.logger)
	if !ok {
		return
	}

	slot, err := h.catalog.GetSlot(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, h.logger, "get_slot", err)
		return
	}
	h.write(w, http.StatusOK, slot)
}

// CreateSlot handles POST /api/lots/{id}/slots
func (h *CatalogHandler) CreateSlot(w http.ResponseWriter, r *http.Request) {
	lotID, ok := ParseResourceID(w, r, h.logger)
	if !ok {
		return
	}
	var req SlotRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	caller, ok := loadCaller(w, r, h.callers, h.logger)
	if !ok {
		return
	}

	slot, err := h.catalog.CreateSlot(r.Context(), caller, lotID, req.input())
	if err != nil {
		writeServiceError(w, h.logger, "create_slot", err)
		return
	}
	h.write(w, http.StatusCreated, slot)
}

// UpdateSlot handles PUT /api/slots/{id}
func (h *CatalogHandler) UpdateSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseResourceID(w, r, h.logger)
	if !ok {
		return
	}
	var req SlotRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	caller, ok := loadCaller(w, r, h.callers, h.logger)
	if !ok {
		return
	}

	slot, err := h.catalog.UpdateSlot(r.Context(), caller, id, req.input())
	if err != nil {
		writeServiceError(w, h.logger, "update_slot", err)
		return
	}
	h.write(w, http.StatusOK, slot)
}

// DeleteSlot handles DELETE /api/slots/{id}
func (h *CatalogHandler) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseResourceID(w, r, h.logger)
	if !ok {
		return
	}
	caller, ok := loadCaller(w, r, h.callers, h.logger)
	if !ok {
		return
	}

	if err := h.catalog.DeleteSlot(r.Context(), caller, id); err != nil {
		writeServiceError(w, h.logger, "delete_slot", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listLookups serves one reference table. Any authenticated caller may read them.
func (h *CatalogHandler) listLookups(table repositories.LookupTable) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.catalog.ListLookups(r.Context(), table)
		if err != nil {
			writeServiceError(w, h.logger, "list_"+string(table), err)
			return
		}
		h.write(w, http.StatusOK, items)
	}
}

func (h *CatalogHandler) write(w http.ResponseWriter, status int, data any) {
	if err := WriteJSON(w, status, data); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
