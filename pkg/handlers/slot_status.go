package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jvaguiar05/smart-park-system/pkg/auth"
	"github.com/jvaguiar05/smart-park-system/pkg/models"
	"github.com/jvaguiar05/smart-park-system/pkg/services"
)

// UpdateStatusRequest is the body of PUT /api/slots/{id}/status.
// An absent vehicle_type_id or confidence keeps the stored value; null clears it.
type UpdateStatusRequest struct {
	Status        models.SlotStatusValue        `json:"status" validate:"required"`
	VehicleTypeID models.Patch[int64]           `json:"vehicle_type_id"`
	Confidence    models.Patch[decimal.Decimal] `json:"confidence"`
}

// StatusResponse is returned after a status write.
type StatusResponse struct {
	Status     models.SlotStatus       `json:"status"`
	PrevStatus *models.SlotStatusValue `json:"prev_status"`
	Created    bool                    `json:"created"`
	Event      *models.SlotStatusEvent `json:"event,omitempty"`
}

func newStatusResponse(t *models.StatusTransition) StatusResponse {
	return StatusResponse{
		Status:     t.Current,
		PrevStatus: t.PrevStatus,
		Created:    t.Created(),
		Event:      t.Event,
	}
}

// SlotStatusHandler serves current status, history and the event log of a slot.
type SlotStatusHandler struct {
	statuses services.SlotStatusService
	callers  services.CallerLoader
	logger   *zap.Logger
}

// NewSlotStatusHandler creates a new slot status handler.
func NewSlotStatusHandler(statuses services.SlotStatusService, callers services.CallerLoader, logger *zap.Logger) *SlotStatusHandler {
	return &SlotStatusHandler{
		statuses: statuses,
		callers:  callers,
		logger:   logger,
	}
}

// RegisterRoutes registers the slot status handler's routes on the given mux.
func (h *SlotStatusHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	mux.HandleFunc("GET /api/slots/{id}/status", authMiddleware.RequireAuth(scope(h.GetStatus)))
	mux.HandleFunc("PUT /api/slots/{id}/status", authMiddleware.RequireAuth(scope(h.UpdateStatus)))
	mux.HandleFunc("GET /api/slots/{id}/history", authMiddleware.RequireAuth(scope(h.ListHistory)))
	mux.HandleFunc("GET /api/slots/{id}/events", authMiddleware.RequireAuth(scope(h.ListEvents)))
}

// GetStatus handles GET /api/slots/{id}/status
func (h *SlotStatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	slotID, ok := ParseResourceID(w, r, h.logger)
	if !ok {
		return
	}
	caller, ok := loadCaller(w, r, h.callers, h.logger)
	if !ok {
		return
	}

	status, err := h.statuses.GetStatus(r.Context(), caller, slotID)
	if err != nil {
		writeServiceError(w, h.logger, "get_slot_status", err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, status); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// UpdateStatus handles PUT /api/slots/{id}/status
// Returns 201 when the write created the slot's status row, 200 otherwise.
func (h *SlotStatusHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	slotID, ok := ParseResourceID(w, r, h.logger)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	caller, ok := loadCaller(w, r, h.callers, h.logger)
	if !ok {
		return
	}

	transition, err := h.statuses.UpdateStatus(r.Context(), caller, slotID, services.StatusUpdate{
		Status:        req.Status,
		VehicleTypeID: req.VehicleTypeID,
		Confidence:    req.Confidence,
	})
	if err != nil {
		writeServiceError(w, h.logger, "update_slot_status", err)
		return
	}

	status := http.StatusOK
	if transition.Created() {
		status = http.StatusCreated
	}
	if err := WriteJSON(w, status, newStatusResponse(transition)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListHistory handles GET /api/slots/{id}/history
func (h *SlotStatusHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	slotID, ok := ParseResourceID(w, r, h.logger)
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

	page, err := h.statuses.ListHistory(r.Context(), caller, slotID, opts)
	if err != nil {
		writeServiceError(w, h.logger, "list_slot_history", err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, page); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListEvents handles GET /api/slots/{id}/events
func (h *SlotStatusHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	slotID, ok := ParseResourceID(w, r, h.logger)
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

	page, err := h.statuses.ListEvents(r.Context(), caller, slotID, opts)
	if err != nil {
		writeServiceError(w, h.logger, "list_slot_events", err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, page); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
