package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jvaguiar05/smart-park-system/pkg/auth"
	"github.com/jvaguiar05/smart-park-system/pkg/models"
	"github.com/jvaguiar05/smart-park-system/pkg/services"
)

// SlotStatusReport is the body of POST /api/hardware/slot-status.
// Every observation overwrites the slot's state; omitted optional fields are stored as null.
type SlotStatusReport struct {
	SlotID        int64                  `json:"slot_id" validate:"required,gt=0"`
	Status        models.SlotStatusValue `json:"status" validate:"required"`
	VehicleTypeID *int64                 `json:"vehicle_type_id,omitempty" validate:"omitempty,gt=0"`
	Confidence    *decimal.Decimal       `json:"confidence,omitempty"`
	EventID       *uuid.UUID             `json:"event_id,omitempty"`
	EventType     models.EventType       `json:"event_type,omitempty"`
	OccurredAt    *time.Time             `json:"occurred_at,omitempty"`
	CameraCode    string                 `json:"camera_code,omitempty" validate:"omitempty,max=100"`
	Sequence      *int64                 `json:"sequence,omitempty" validate:"omitempty,min=0"`
	SourceModel   *string                `json:"source_model,omitempty" validate:"omitempty,max=100"`
	SourceVersion *string                `json:"source_version,omitempty" validate:"omitempty,max=50"`
}

func (req SlotStatusReport) report() services.StatusReport {
	report := services.StatusReport{
		SlotID:        req.SlotID,
		Status:        req.Status,
		VehicleTypeID: req.VehicleTypeID,
		Confidence:    req.Confidence,
		EventType:     req.EventType,
		CameraCode:    req.CameraCode,
		Sequence:      req.Sequence,
		SourceModel:   req.SourceModel,
		SourceVersion: req.SourceVersion,
	}
	if req.EventID != nil {
		report.EventID = *req.EventID
	}
	if req.OccurredAt != nil {
		report.OccurredAt = *req.OccurredAt
	}
	return report
}

// HeartbeatRequest is the body of POST /api/hardware/heartbeats.
type HeartbeatRequest struct {
	CameraCode  string          `json:"camera_code" validate:"required,max=100"`
	PayloadJSON json.RawMessage `json:"payload_json,omitempty"`
}

// IngestHandler accepts signed slot observations and camera heartbeats from parking hardware.
type IngestHandler struct {
	statuses services.SlotStatusService
	cameras  services.CameraService
	logger   *zap.Logger
}

// NewIngestHandler creates a new hardware ingestion handler.
func NewIngestHandler(statuses services.SlotStatusService, cameras services.CameraService, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{
		statuses: statuses,
		cameras:  cameras,
		logger:   logger,
	}
}

// RegisterRoutes registers the ingestion routes. The scope middleware runs first
// because key lookup needs a database connection.
func (h *IngestHandler) RegisterRoutes(mux *http.ServeMux, verifier *auth.IngestVerifier, scope ScopeMiddleware) {
	mux.HandleFunc("POST /api/hardware/slot-status", scope(verifier.RequireSignedReport(h.ReportStatus)))
	mux.HandleFunc("POST /api/hardware/heartbeats", scope(verifier.RequireSignedReport(h.RecordHeartbeat)))
}

func (h *IngestHandler) verifiedKey(w http.ResponseWriter, r *http.Request) (*models.APIKey, bool) {
	key, ok := auth.GetAPIKey(r.Context())
	if !ok {
		if err := ErrorResponse(w, http.StatusUnauthorized, "invalid_signature", "Report signature verification failed"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return nil, false
	}
	return key, true
}

// ReportStatus handles POST /api/hardware/slot-status
func (h *IngestHandler) ReportStatus(w http.ResponseWriter, r *http.Request) {
	key, ok := h.verifiedKey(w, r)
	if !ok {
		return
	}

	var req SlotStatusReport
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	transition, err := h.statuses.ReportStatus(r.Context(), key.ClientID, req.report())
	if err != nil {
		writeServiceError(w, h.logger, "report_slot_status", err)
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

// RecordHeartbeat handles POST /api/hardware/heartbeats
// The camera is resolved by code within the client of the verified key.
func (h *IngestHandler) RecordHeartbeat(w http.ResponseWriter, r *http.Request) {
	key, ok := h.verifiedKey(w, r)
	if !ok {
		return
	}

	var req HeartbeatRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	hb, err := h.cameras.RecordHeartbeat(r.Context(), key.ClientID, services.HeartbeatReport{
		CameraCode: req.CameraCode,
		Payload:    req.PayloadJSON,
	})
	if err != nil {
		writeServiceError(w, h.logger, "record_camera_heartbeat", err)
		return
	}
	if err := WriteJSON(w, http.StatusCreated, hb); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
