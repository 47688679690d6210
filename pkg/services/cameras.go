package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/jvaguiar05/smart-park-system/pkg/access"
	"github.com/jvaguiar05/smart-park-system/pkg/apperrors"
	"github.com/jvaguiar05/smart-park-system/pkg/models"
	"github.com/jvaguiar05/smart-park-system/pkg/repositories"
)

// maxHeartbeatPayload bounds the stored payload_json of one heartbeat.
const maxHeartbeatPayload = 16 << 10

// HeartbeatReport is a liveness report sent by a camera.
type HeartbeatReport struct {
	CameraCode string
	// Payload is stored verbatim. It must be a JSON object or absent.
	Payload json.RawMessage
}

// CameraService records camera heartbeats and exposes them to tenant members.
type CameraService interface {
	RecordHeartbeat(ctx context.Context, clientID int64, report HeartbeatReport) (*models.CameraHeartbeat, error)
	ListHeartbeats(ctx context.Context, caller *access.Caller, cameraID int64, opts models.ListOptions) (models.Page[models.CameraHeartbeat], error)
}

type cameraService struct {
	guard
	cameraRepo repositories.CameraRepository
}

// NewCameraService creates a camera service with dependencies.
func NewCameraService(cameraRepo repositories.CameraRepository, auditor SecurityAuditor, logger *zap.Logger) CameraService {
	return &cameraService{
		guard:      guard{auditor: auditor, logger: logger.Named("cameras")},
		cameraRepo: cameraRepo,
	}
}

func cameraTarget(c *models.Camera) access.Target {
	if c.EstablishmentID != nil {
		return access.EstablishmentTarget(c.ClientID, *c.EstablishmentID)
	}
	return access.ClientTarget(c.ClientID)
}

func validateHeartbeatPayload(payload json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, apperrors.NewValidationError("payload_json", "must be a JSON object")
	}
	if len(trimmed) > maxHeartbeatPayload {
		return nil, apperrors.NewValidationError("payload_json", "is too large")
	}
	return trimmed, nil
}

func (s *cameraService) RecordHeartbeat(ctx context.Context, clientID int64, report HeartbeatReport) (*models.CameraHeartbeat, error) {
	if report.CameraCode == "" {
		return nil, apperrors.NewValidationError("camera_code", "is required")
	}
	payload, err := validateHeartbeatPayload(report.Payload)
	if err != nil {
		return nil, err
	}

	camera, err := s.cameraRepo.GetByCode(ctx, clientID, report.CameraCode)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewValidationError("camera_code", "does not reference a camera of this client")
		}
		return nil, err
	}

	hb := &models.CameraHeartbeat{CameraID: camera.ID, Payload: payload}
	if err := s.cameraRepo.RecordHeartbeat(ctx, hb); err != nil {
		return nil, err
	}
	s.logger.Debug("Camera heartbeat recorded",
		zap.Int64("client_id", clientID),
		zap.Int64("camera_id", camera.ID))
	return hb, nil
}

func (s *cameraService) ListHeartbeats(ctx context.Context, caller *access.Caller, cameraID int64, opts models.ListOptions) (models.Page[models.CameraHeartbeat], error) {
	var page models.Page[models.CameraHeartbeat]
	if err := requireTenantScope(caller); err != nil {
		return page, err
	}
	camera, err := s.cameraRepo.GetByID(ctx, cameraID)
	if err != nil {
		return page, err
	}
	if err := s.authorize(ctx, caller, "camera.heartbeats", cameraTarget(camera), access.Member); err != nil {
		return page, err
	}
	opts, err = s.listOptions(ctx, caller, "camera_heartbeats", opts)
	if err != nil {
		return page, err
	}

	items, total, err := s.cameraRepo.ListHeartbeats(ctx, cameraID, opts)
	if err != nil {
		return page, err
	}
	return models.NewPage(items, total, opts), nil
}

var _ CameraService = (*cameraService)(nil)
