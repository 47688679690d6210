package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jvaguiar05/smart-park-system/pkg/access"
	"github.com/jvaguiar05/smart-park-system/pkg/apperrors"
	"github.com/jvaguiar05/smart-park-system/pkg/metrics"
	"github.com/jvaguiar05/smart-park-system/pkg/models"
	"github.com/jvaguiar05/smart-park-system/pkg/repositories"
	"github.com/jvaguiar05/smart-park-system/pkg/retry"
)

// StatusUpdate is a status override made through the admin API.
// VehicleTypeID and Confidence follow patch semantics: absent keeps, null clears.
type StatusUpdate struct {
	Status        models.SlotStatusValue
	VehicleTypeID models.Patch[int64]
	Confidence    models.Patch[decimal.Decimal]
}

// StatusReport is an observation sent by hardware. Every field overwrites the
// prior value; an omitted vehicle type or confidence is stored as null.
type StatusReport struct {
	SlotID        int64
	Status        models.SlotStatusValue
	VehicleTypeID *int64
	Confidence    *decimal.Decimal
	// EventID deduplicates retransmissions. A zero id is replaced by a fresh one.
	EventID    uuid.UUID
	EventType  models.EventType
	OccurredAt time.Time
	CameraCode string
	Sequence   *int64
	// SourceModel and SourceVersion identify the detector that produced the observation.
	SourceModel   *string
	SourceVersion *string
}

// SlotStatusService applies and reads slot status.
type SlotStatusService interface {
	UpdateStatus(ctx context.Context, caller *access.Caller, slotID int64, update StatusUpdate) (*models.StatusTransition, error)
	ReportStatus(ctx context.Context, clientID int64, report StatusReport) (*models.StatusTransition, error)
	GetStatus(ctx context.Context, caller *access.Caller, slotID int64) (*models.SlotStatus, error)
	ListHistory(ctx context.Context, caller *access.Caller, slotID int64, opts models.ListOptions) (models.Page[models.SlotStatusHistory], error)
	ListEvents(ctx context.Context, caller *access.Caller, slotID int64, opts models.ListOptions) (models.Page[models.SlotStatusEvent], error)
}

type slotStatusService struct {
	guard
	slotRepo   repositories.SlotRepository
	statusRepo repositories.SlotStatusRepository
	eventRepo  repositories.EventRepository
	cameraRepo repositories.CameraRepository
	publisher  StatusPublisher
	metrics    *metrics.Metrics
	// maxLead bounds how far occurred_at may lie ahead of received_at.
	maxLead time.Duration
	now     func() time.Time
}

// NewSlotStatusService creates a slot status service with dependencies.
// maxClockSkew is the accepted device clock drift; reports dated further ahead are rejected.
func NewSlotStatusService(
	slotRepo repositories.SlotRepository,
	statusRepo repositories.SlotStatusRepository,
	eventRepo repositories.EventRepository,
	cameraRepo repositories.CameraRepository,
	publisher StatusPublisher,
	auditor SecurityAuditor,
	m *metrics.Metrics,
	maxClockSkew time.Duration,
	logger *zap.Logger,
) SlotStatusService {
	if publisher == nil {
		publisher = noopStatusPublisher{}
	}
	return &slotStatusService{
		guard:      guard{auditor: auditor, logger: logger.Named("slot-status")},
		slotRepo:   slotRepo,
		statusRepo: statusRepo,
		eventRepo:  eventRepo,
		cameraRepo: cameraRepo,
		publisher:  publisher,
		metrics:    m,
		maxLead:    maxClockSkew,
		now:        time.Now,
	}
}

func validateStatus(status models.SlotStatusValue, confidence *decimal.Decimal) error {
	verr := &apperrors.ValidationError{}
	if !status.IsValid() {
		verr.Add("status", "must be one of: FREE, OCCUPIED, RESERVED, MAINTENANCE, DISABLED")
	}
	if confidence != nil {
		var cerr *apperrors.ValidationError
		if err := models.ValidateConfidence(*confidence); errors.As(err, &cerr) {
			for k, v := range cerr.Fields {
				verr.Add(k, v)
			}
		}
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// slotTarget resolves the owner of a live slot as an access target.
func (s *slotStatusService) slotTarget(ctx context.Context, slotID int64) (*models.SlotOwner, access.Target, error) {
	owner, err := s.slotRepo.GetOwner(ctx, slotID)
	if err != nil {
		return nil, access.Target{}, err
	}
	return owner, access.EstablishmentTarget(owner.ClientID, owner.EstablishmentID), nil
}

func (s *slotStatusService) UpdateStatus(ctx context.Context, caller *access.Caller, slotID int64, update StatusUpdate) (*models.StatusTransition, error) {
	if err := requireTenantScope(caller); err != nil {
		return nil, err
	}
	owner, target, err := s.slotTarget(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, "slot_status.update", target, access.Establishment); err != nil {
		return nil, err
	}
	if err := validateStatus(update.Status, update.Confidence.Value); err != nil {
		return nil, err
	}

	change := &models.StatusChange{
		Status:        update.Status,
		VehicleTypeID: update.VehicleTypeID,
		Confidence:    update.Confidence,
	}
	transition, err := s.apply(ctx, slotID, change)
	if err != nil {
		return nil, err
	}

	s.auditor.LogStatusOverride(ctx, owner.ClientID, slotID, string(update.Status))
	s.committed(ctx, owner, transition, metrics.SourceAdmin)
	return transition, nil
}

func (s *slotStatusService) ReportStatus(ctx context.Context, clientID int64, report StatusReport) (*models.StatusTransition, error) {
	if err := validateStatus(report.Status, report.Confidence); err != nil {
		return nil, err
	}
	if report.EventType != "" && !report.EventType.IsValid() {
		return nil, apperrors.NewValidationError("event_type", "is not a recognized event type")
	}

	owner, err := s.slotRepo.GetOwner(ctx, report.SlotID)
	if err != nil {
		return nil, err
	}
	if owner.ClientID != clientID {
		// A key never learns whether another tenant's slot exists.
		return nil, apperrors.ErrNotFound
	}

	receivedAt := s.now().UTC()
	src := &models.EventSource{
		EventID:       report.EventID,
		EventType:     report.EventType,
		OccurredAt:    report.OccurredAt,
		ReceivedAt:    receivedAt,
		Sequence:      report.Sequence,
		SourceModel:   report.SourceModel,
		SourceVersion: report.SourceVersion,
	}
	if src.EventID == uuid.Nil {
		src.EventID = uuid.New()
	}
	if src.OccurredAt.IsZero() {
		src.OccurredAt = receivedAt
	}
	if s.maxLead > 0 && src.OccurredAt.After(receivedAt.Add(s.maxLead)) {
		return nil, apperrors.NewValidationError("occurred_at", "is too far in the future")
	}

	var cameraID int64
	if report.CameraCode != "" {
		camera, err := s.cameraRepo.GetByCode(ctx, clientID, report.CameraCode)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.NewValidationError("camera_code", "does not reference a camera of this client")
			}
			return nil, err
		}
		cameraID = camera.ID
		src.CameraID = &cameraID
	}

	change := &models.StatusChange{
		Status:        report.Status,
		VehicleTypeID: models.PatchFromPtr(report.VehicleTypeID),
		Confidence:    models.PatchFromPtr(report.Confidence),
		Event:         src,
	}
	transition, err := s.apply(ctx, report.SlotID, change)
	if err != nil {
		if errors.Is(err, apperrors.ErrDuplicateEvent) {
			s.metrics.DuplicateEvent()
		}
		return nil, err
	}

	if cameraID != 0 {
		if err := s.cameraRepo.TouchLastSeen(ctx, cameraID); err != nil {
			s.logger.Warn("Failed to record camera heartbeat",
				zap.Int64("camera_id", cameraID),
				zap.Error(err))
		}
	}
	s.metrics.ObserveIngestDelay(receivedAt.Sub(src.OccurredAt).Seconds())
	s.committed(ctx, owner, transition, metrics.SourceHardware)
	return transition, nil
}

// apply writes the change, retrying once when the database reports a write conflict.
func (s *slotStatusService) apply(ctx context.Context, slotID int64, change *models.StatusChange) (*models.StatusTransition, error) {
	attempts := 0
	transition, err := retry.DoWithResultWhen(ctx, retry.Once(),
		func(err error) bool { return errors.Is(err, apperrors.ErrConflict) },
		func() (*models.StatusTransition, error) {
			attempts++
			if attempts > 1 {
				s.metrics.StatusRetried()
			}
			return s.statusRepo.Apply(ctx, slotID, change)
		})
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			// Still conflicting after the retry; surface as an internal failure.
			return nil, fmt.Errorf("slot %d status write kept conflicting: %v", slotID, err)
		}
		return nil, err
	}
	return transition, nil
}

// committed runs the post-commit side effects of a status write.
func (s *slotStatusService) committed(ctx context.Context, owner *models.SlotOwner, t *models.StatusTransition, source string) {
	s.metrics.StatusUpdated(source, string(t.Current.Status))

	n := StatusNotification{
		ClientID:        owner.ClientID,
		EstablishmentID: owner.EstablishmentID,
		LotID:           owner.LotID,
		SlotID:          owner.SlotID,
		Status:          t.Current.Status,
		PrevStatus:      t.PrevStatus,
		VehicleTypeID:   t.Current.VehicleTypeID,
		Source:          source,
		EventID:         t.History.EventID,
		ChangedAt:       t.Current.ChangedAt,
	}
	if err := s.publisher.Publish(ctx, n); err != nil {
		s.metrics.PublishFailed()
		s.logger.Warn("Failed to publish status change",
			zap.Int64("slot_id", owner.SlotID),
			zap.Error(err))
	}
}

func (s *slotStatusService) GetStatus(ctx context.Context, caller *access.Caller, slotID int64) (*models.SlotStatus, error) {
	if err := requireTenantScope(caller); err != nil {
		return nil, err
	}
	_, target, err := s.slotTarget(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, "slot_status.get", target, access.Member); err != nil {
		return nil, err
	}
	return s.statusRepo.Get(ctx, slotID)
}

func (s *slotStatusService) ListHistory(ctx context.Context, caller *access.Caller, slotID int64, opts models.ListOptions) (models.Page[models.SlotStatusHistory], error) {
	var page models.Page[models.SlotStatusHistory]
	if err := requireTenantScope(caller); err != nil {
		return page, err
	}
	_, target, err := s.slotTarget(ctx, slotID)
	if err != nil {
		return page, err
	}
	if err := s.authorize(ctx, caller, "slot_status.history", target, access.Member); err != nil {
		return page, err
	}
	opts, err = s.listOptions(ctx, caller, "slot_status_history", opts)
	if err != nil {
		return page, err
	}

	items, total, err := s.statusRepo.ListHistory(ctx, slotID, opts)
	if err != nil {
		return page, err
	}
	return models.NewPage(items, total, opts), nil
}

func (s *slotStatusService) ListEvents(ctx context.Context, caller *access.Caller, slotID int64, opts models.ListOptions) (models.Page[models.SlotStatusEvent], error) {
	var page models.Page[models.SlotStatusEvent]
	if err := requireTenantScope(caller); err != nil {
		return page, err
	}
	_, target, err := s.slotTarget(ctx, slotID)
	if err != nil {
		return page, err
	}
	if err := s.authorize(ctx, caller, "slot_status.events", target, access.Member); err != nil {
		return page, err
	}
	opts, err = s.listOptions(ctx, caller, "slot_status_events", opts)
	if err != nil {
		return page, err
	}

	items, total, err := s.eventRepo.ListBySlot(ctx, slotID, opts)
	if err != nil {
		return page, err
	}
	return models.NewPage(items, total, opts), nil
}

var _ SlotStatusService = (*slotStatusService)(nil)
