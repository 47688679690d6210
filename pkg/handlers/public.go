package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/jvaguiar05/smart-park-system/pkg/services"
)

// PublicHandler serves the unauthenticated directory of ACTIVE clients.
type PublicHandler struct {
	public services.PublicService
	logger *zap.Logger
}

// NewPublicHandler creates a new public directory handler.
func NewPublicHandler(public services.PublicService, logger *zap.Logger) *PublicHandler {
	return &PublicHandler{
		public: public,
		logger: logger,
	}
}

// RegisterRoutes registers the public routes. No authentication is applied.
func (h *PublicHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	mux.HandleFunc("GET /api/public/establishments", scope(h.ListEstablishments))
	mux.HandleFunc("GET /api/public/establishments/{id}/slots", scope(h.ListSlotStatuses))
}

// ListEstablishments handles GET /api/public/establishments
func (h *PublicHandler) ListEstablishments(w http.ResponseWriter, r *http.Request) {
	opts, ok := ParseListOptions(w, r, h.logger)
	if !ok {
		return
	}
	opts.IncludeDeleted = false

	page, err := h.public.ListEstablishments(r.Context(), opts)
	if err != nil {
		writeServiceError(w, h.logger, "public_list_establishments", err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, page); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListSlotStatuses handles GET /api/public/establishments/{id}/slots
// Returns 404 unless the establishment belongs to an ACTIVE client.
func (h *PublicHandler) ListSlotStatuses(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseResourceID(w, r, h.logger)
	if !ok {
		return
	}

	slots, err := h.public.ListSlotStatuses(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "public_list_slots", err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, slots); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
