package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/jvaguiar05/smart-park-system/pkg/auth"
	"github.com/jvaguiar05/smart-park-system/pkg/services"
)

// CameraHandler serves the heartbeat log of cameras to tenant members.
type CameraHandler struct {
	cameras services.CameraService
	callers services.CallerLoader
	logger  *zap.Logger
}

// NewCameraHandler creates a new camera handler.
func NewCameraHandler(cameras services.CameraService, callers services.CallerLoader, logger *zap.Logger) *CameraHandler {
	return &CameraHandler{
		cameras: cameras,
		callers: callers,
		logger:  logger,
	}
}

// RegisterRoutes registers the camera handler's routes on the given mux.
func (h *CameraHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	mux.HandleFunc("GET /api/cameras/{id}/heartbeats", authMiddleware.RequireAuth(scope(h.ListHeartbeats)))
}

// ListHeartbeats handles GET /api/cameras/{id}/heartbeats
func (h *CameraHandler) ListHeartbeats(w http.ResponseWriter, r *http.Request) {
	cameraID, ok := ParseResourceID(w, r, h.logger)
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

	page, err := h.cameras.ListHeartbeats(r.Context(), caller, cameraID, opts)
	if err != nil {
		writeServiceError(w, h.logger, "list_camera_heartbeats", err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, page); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
