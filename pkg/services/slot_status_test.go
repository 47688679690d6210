package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jvaguiar05/smart-park-system/pkg/apperrors"
	"github.com/jvaguiar05/smart-park-system/pkg/metrics"
	"github.com/jvaguiar05/smart-park-system/pkg/models"
)

func TestSlotStatusService_ObservationSequence(t *testing.T) {
	f := newFixture()
	svc := f.slotStatusService()
	ctx := context.Background()
	caller := f.member(models.RoleClientAdmin, nil)

	// First observation creates the status row.
	first, err := svc.UpdateStatus(ctx, caller, f.slot1, StatusUpdate{
		Status:        models.SlotOccupied,
		VehicleTypeID: models.Set(f.car),
		Confidence:    models.Set(decimal.RequireFromString("0.95")),
	})
	require.NoError(t, err)
	assert.True(t, first.Created())

	current, err := svc.GetStatus(ctx, caller, f.slot1)
	require.NoError(t, err)
	assert.Equal(t, models.SlotOccupied, current.Status)
	assert.Equal(t, f.car, *current.VehicleTypeID)
	assert.Equal(t, "0.95", current.Confidence.Decimal.String())

	// Second observation overwrites and clears the vehicle type.
	_, err = svc.UpdateStatus(ctx, caller, f.slot1, StatusUpdate{
		Status:        models.SlotFree,
		VehicleTypeID: models.Null[int64](),
	})
	require.NoError(t, err)

	current, err = svc.GetStatus(ctx, caller, f.slot1)
	require.NoError(t, err)
	assert.Equal(t, models.SlotFree, current.Status)
	assert.Nil(t, current.VehicleTypeID)

	// An unknown vehicle type is rejected without touching state.
	_, err = svc.UpdateStatus(ctx, caller, f.slot1, StatusUpdate{
		Status:        models.SlotOccupied,
		VehicleTypeID: models.Set(int64(999999)),
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	history, err := svc.ListHistory(ctx, caller, f.slot1, models.ListOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, history.Total)
	assert.Equal(t, models.SlotFree, history.Items[0].Status)
	require.NotNil(t, history.Items[0].PrevStatus)
	assert.Equal(t, models.SlotOccupied, *history.Items[0].PrevStatus)
	assert.Nil(t, history.Items[1].PrevStatus)

	current, err = svc.GetStatus(ctx, caller, f.slot1)
	require.NoError(t, err)
	assert.Equal(t, models.SlotFree, current.Status)

	assert.Len(t, f.auditor.overrides, 2)
	require.Len(t, f.publisher.sent, 2)
	assert.Equal(t, metrics.SourceAdmin, f.publisher.sent[1].Source)
	assert.Equal(t, f.est1, f.publisher.sent[1].EstablishmentID)
}

func TestSlotStatusService_UpdateStatusAccess(t *testing.T) {
	f := newFixture()
	svc := f.slotStatusService()
	ctx := context.Background()
	update := StatusUpdate{Status: models.SlotMaintenance}

	t.Run("establishment admin does not cover sibling establishments", func(t *testing.T) {
		caller := f.member(models.RoleClientEstablishmentAdmin, &f.est1)
		_, err := svc.UpdateStatus(ctx, caller, f.slot2, update)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)

		_, err = svc.UpdateStatus(ctx, caller, f.slot1, update)
		assert.NoError(t, err)
	})

	t.Run("plain member may read but not write", func(t *testing.T) {
		caller := f.member(models.RoleClientMember, nil)
		_, err := svc.UpdateStatus(ctx, caller, f.slot1, update)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)

		_, err = svc.GetStatus(ctx, caller, f.slot1)
		assert.NoError(t, err)
	})

	t.Run("caller without memberships is rejected before lookup", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, f.stranger(), 424242, update)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("other tenant's slot reads as not found", func(t *testing.T) {
		otherClient := f.w.addClient("other", models.OnboardingActive)
		otherEst := f.w.addEstablishment(otherClient, "Elsewhere")
		otherSlot := f.w.addSlot(f.w.addLot(otherEst, "X"), "X1")

		caller := f.member(models.RoleClientAdmin, nil)
		_, err := svc.UpdateStatus(ctx, caller, otherSlot, update)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		_, err = svc.GetStatus(ctx, caller, otherSlot)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("system admin writes anywhere", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, f.admin(), f.slot2, update)
		assert.NoError(t, err)
	})

	assert.NotEmpty(t, f.auditor.denied)
}

func TestSlotStatusService_UpdateStatusValidation(t *testing.T) {
	f := newFixture()
	svc := f.slotStatusService()
	caller := f.admin()

	tests := []struct {
		name   string
		update StatusUpdate
		field  string
	}{
		{"unknown status", StatusUpdate{Status: "PARKED"}, "status"},
		{"confidence too precise", StatusUpdate{Status: models.SlotFree, Confidence: models.Set(decimal.RequireFromString("0.1234"))}, "confidence"},
		{"confidence too large", StatusUpdate{Status: models.SlotFree, Confidence: models.Set(decimal.RequireFromString("10"))}, "confidence"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateStatus(context.Background(), caller, f.slot1, tt.update)
			var verr *apperrors.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
	assert.Zero(t, f.status.calls, "invalid input never reaches storage")
}

func TestSlotStatusService_RetriesConflictOnce(t *testing.T) {
	f := newFixture()
	m := metrics.New(prometheus.NewRegistry())
	svc := NewSlotStatusService(&fakeSlotRepo{w: f.w}, f.status, &fakeEventRepo{w: f.w}, f.cameras,
		f.publisher, f.auditor, m, 5*time.Minute, zap.NewNop())
	ctx := context.Background()

	f.status.conflicts = 1
	_, err := svc.UpdateStatus(ctx, f.admin(), f.slot1, StatusUpdate{Status: models.SlotFree})
	require.NoError(t, err)
	assert.Equal(t, 2, f.status.calls)

	f.status.calls = 0
	f.status.conflicts = 2
	_, err = svc.UpdateStatus(ctx, f.admin(), f.slot1, StatusUpdate{Status: models.SlotOccupied})
	require.Error(t, err)
	assert.Equal(t, 2, f.status.calls, "only one retry")
	assert.False(t, errors.Is(err, apperrors.ErrConflict), "exhausted conflicts surface as internal errors")
}

func TestSlotStatusService_ReportStatus(t *testing.T) {
	f := newFixture()
	svc := f.slotStatusService().(*slotStatusService)
	received := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	svc.now = func() time.Time { return received }
	ctx := context.Background()

	camera := &models.Camera{ClientID: f.clientID, CameraCode: "CAM-1", LotID: &f.lot1}
	require.NoError(t, f.cameras.Create(ctx, camera))

	eventID := uuid.New()
	confidence := decimal.RequireFromString("0.871")
	report := StatusReport{
		SlotID:        f.slot1,
		Status:        models.SlotOccupied,
		VehicleTypeID: &f.car,
		Confidence:    &confidence,
		EventID:       eventID,
		OccurredAt:    received.Add(-5 * time.Second),
		CameraCode:    "CAM-1",
	}

	transition, err := svc.ReportStatus(ctx, f.clientID, report)
	require.NoError(t, err)
	require.NotNil(t, transition.Event)
	assert.Equal(t, models.EventVehicleDetected, transition.Event.EventType)
	assert.Equal(t, received, transition.Event.ReceivedAt)
	assert.Equal(t, camera.ID, *transition.Event.CameraID)
	assert.Equal(t, []int64{camera.ID}, f.cameras.touched)
	require.Len(t, f.publisher.sent, 1)
	assert.Equal(t, metrics.SourceHardware, f.publisher.sent[0].Source)
	assert.Equal(t, eventID, *f.publisher.sent[0].EventID)

	t.Run("replayed event id is rejected without mutation", func(t *testing.T) {
		replay := report
		replay.Status = models.SlotFree
		_, err := svc.ReportStatus(ctx, f.clientID, replay)
		assert.ErrorIs(t, err, apperrors.ErrDuplicateEvent)

		current, err := f.status.Get(ctx, f.slot1)
		require.NoError(t, err)
		assert.Equal(t, models.SlotOccupied, current.Status)
	})

	t.Run("omitted fields overwrite with null", func(t *testing.T) {
		_, err := svc.ReportStatus(ctx, f.clientID, StatusReport{SlotID: f.slot1, Status: models.SlotFree})
		require.NoError(t, err)

		current, err := f.status.Get(ctx, f.slot1)
		require.NoError(t, err)
		assert.Nil(t, current.VehicleTypeID)
		assert.False(t, current.Confidence.Valid)
	})

	t.Run("slot of another client is not found", func(t *testing.T) {
		other := f.w.addClient("other", models.OnboardingActive)
		_, err := svc.ReportStatus(ctx, other, StatusReport{SlotID: f.slot1, Status: models.SlotFree})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("unknown camera code", func(t *testing.T) {
		_, err := svc.ReportStatus(ctx, f.clientID, StatusReport{SlotID: f.slot1, Status: models.SlotFree, CameraCode: "CAM-9"})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("invalid event type", func(t *testing.T) {
		_, err := svc.ReportStatus(ctx, f.clientID, StatusReport{SlotID: f.slot1, Status: models.SlotFree, EventType: "BOOM"})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("occurred_at beyond the clock skew is rejected", func(t *testing.T) {
		before := f.status.calls
		_, err := svc.ReportStatus(ctx, f.clientID, StatusReport{
			SlotID:     f.slot1,
			Status:     models.SlotFree,
			OccurredAt: received.Add(24 * time.Hour),
		})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
		assert.Equal(t, before, f.status.calls, "rejected before storage")
	})

	t.Run("occurred_at slightly ahead is accepted", func(t *testing.T) {
		transition, err := svc.ReportStatus(ctx, f.clientID, StatusReport{
			SlotID:     f.slot1,
			Status:     models.SlotOccupied,
			OccurredAt: received.Add(30 * time.Second),
		})
		require.NoError(t, err)
		assert.Equal(t, received.Add(30*time.Second), transition.Event.OccurredAt)
	})
}

func TestSlotStatusService_PublishFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture()
	f.publisher.err = errors.New("redis down")
	svc := f.slotStatusService()

	_, err := svc.UpdateStatus(context.Background(), f.admin(), f.slot1, StatusUpdate{Status: models.SlotFree})
	require.NoError(t, err)

	current, err := f.status.Get(context.Background(), f.slot1)
	require.NoError(t, err)
	assert.Equal(t, models.SlotFree, current.Status)
}

func TestSlotStatusService_ListEventsRejectsInjection(t *testing.T) {
	f := newFixture()
	svc := f.slotStatusService()

	_, err := svc.ListEvents(context.Background(), f.admin(), f.slot1, models.ListOptions{Search: "1' OR '1'='1"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	require.Len(t, f.auditor.injections, 1)
	assert.Equal(t, "slot_status_events", f.auditor.injections[0].Resource)
}
