package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jvaguiar05/smart-park-system/pkg/access"
	"github.com/jvaguiar05/smart-park-system/pkg/auth"
	"github.com/jvaguiar05/smart-park-system/pkg/models"
	"github.com/jvaguiar05/smart-park-system/pkg/repositories"
	"github.com/jvaguiar05/smart-park-system/pkg/services"
	"github.com/jvaguiar05/smart-park-system/pkg/testhelpers"
)

// mockCallerLoader returns a fixed caller snapshot.
type mockCallerLoader struct {
	caller *access.Caller
	err    error
	calls  int
}

func (m *mockCallerLoader) Load(ctx context.Context) (*access.Caller, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.caller, nil
}

func testCaller() *access.Caller {
	return &access.Caller{UserID: uuid.MustParse("11111111-1111-1111-1111-111111111111")}
}

// mockCatalogService records the arguments of the last call and returns err when set.
type mockCatalogService struct {
	err error

	lastOpts      models.ListOptions
	lastEstFilter *int64
	lastClientID  int64
	lastParentID  int64
	lastEst       services.EstablishmentInput
	lastLot       services.LotInput
	lastSlot      services.SlotInput
	lastTable     repositories.LookupTable
	deleted       []int64
}

func (m *mockCatalogService) ListEstablishments(ctx context.Context, caller *access.Caller, opts models.ListOptions) (models.Page[models.Establishment], error) {
	m.lastOpts = opts
	if m.err != nil {
		return models.Page[models.Establishment]{}, m.err
	}
	return models.NewPage([]models.Establishment{{ID: 1, ClientID: 1, Name: "North Mall"}}, 1, opts), nil
}

func (m *mockCatalogService) GetEstablishment(ctx context.Context, caller *access.Caller, id int64) (*models.Establishment, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Establishment{ID: id, ClientID: 1, Name: "North Mall"}, nil
}

func (m *mockCatalogService) CreateEstablishment(ctx context.Context, caller *access.Caller, clientID int64, in services.EstablishmentInput) (*models.Establishment, error) {
	m.lastClientID, m.lastEst = clientID, in
	if m.err != nil {
		return nil, m.err
	}
	return &models.Establishment{ID: 10, ClientID: clientID, Name: in.Name}, nil
}

func (m *mockCatalogService) UpdateEstablishment(ctx context.Context, caller *access.Caller, id int64, in services.EstablishmentInput) (*models.Establishment, error) {
	m.lastEst = in
	if m.err != nil {
		return nil, m.err
	}
	return &models.Establishment{ID: id, ClientID: 1, Name: in.Name}, nil
}

func (m *mockCatalogService) DeleteEstablishment(ctx context.Context, caller *access.Caller, id int64) error {
	m.deleted = append(m.deleted, id)
	return m.err
}

func (m *mockCatalogService) ListLots(ctx context.Context, caller *access.Caller, establishmentID *int64, opts models.ListOptions) (models.Page[models.Lot], error) {
	m.lastEstFilter, m.lastOpts = establishmentID, opts
	if m.err != nil {
		return models.Page[models.Lot]{}, m.err
	}
	return models.NewPage[models.Lot](nil, 0, opts), nil
}

func (m *mockCatalogService) GetLot(ctx context.Context, caller *access.Caller, id int64) (*models.Lot, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Lot{ID: id, ClientID: 1, EstablishmentID: 1, LotCode: "L1"}, nil
}

func (m *mockCatalogService) CreateLot(ctx context.Context, caller *access.Caller, establishmentID int64, in services.LotInput) (*models.Lot, error) {
	m.lastParentID, m.lastLot = establishmentID, in
	if m.err != nil {
		return nil, m.err
	}
	return &models.Lot{ID: 20, ClientID: 1, EstablishmentID: establishmentID, LotCode: in.LotCode}, nil
}

func (m *mockCatalogService) UpdateLot(ctx context.Context, caller *access.Caller, id int64, in services.LotInput) (*models.Lot, error) {
	m.lastLot = in
	if m.err != nil {
		return nil, m.err
	}
	return &models.Lot{ID: id, ClientID: 1, EstablishmentID: 1, LotCode: in.LotCode}, nil
}

func (m *mockCatalogService) DeleteLot(ctx context.Context, caller *access.Caller, id int64) error {
	m.deleted = append(m.deleted, id)
	return m.err
}

func (m *mockCatalogService) ListSlots(ctx context.Context, caller *access.Caller, lotID int64, opts models.ListOptions) (models.Page[models.Slot], error) {
	m.lastParentID, m.lastOpts = lotID, opts
	if m.err != nil {
		return models.Page[models.Slot]{}, m.err
	}
	return models.NewPage[models.Slot](nil, 0, opts), nil
}

func (m *mockCatalogService) GetSlot(ctx context.Context, caller *access.Caller, id int64) (*models.Slot, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Slot{ID: id, LotID: 1, SlotCode: "A01", Polygon: []byte("[]"), Active: true}, nil
}

func (m *mockCatalogService) CreateSlot(ctx context.Context, caller *access.Caller, lotID int64, in services.SlotInput) (*models.Slot, error) {
	m.lastParentID, m.lastSlot = lotID, in
	if m.err != nil {
		return nil, m.err
	}
	return &models.Slot{ID: 30, LotID: lotID, SlotCode: in.SlotCode, SlotTypeID: in.SlotTypeID, Polygon: []byte("[]"), Active: in.Active == nil || *in.Active}, nil
}

func (m *mockCatalogService) UpdateSlot(ctx context.Context, caller *access.Caller, id int64, in services.SlotInput) (*models.Slot, error) {
	m.lastSlot = in
	if m.err != nil {
		return nil, m.err
	}
	return &models.Slot{ID: id, LotID: 1, SlotCode: in.SlotCode, SlotTypeID: in.SlotTypeID, Polygon: []byte("[]"), Active: in.Active == nil || *in.Active}, nil
}

func (m *mockCatalogService) DeleteSlot(ctx context.Context, caller *access.Caller, id int64) error {
	m.deleted = append(m.deleted, id)
	return m.err
}

func (m *mockCatalogService) ListLookups(ctx context.Context, table repositories.LookupTable) ([]models.LookupType, error) {
	m.lastTable = table
	if m.err != nil {
		return nil, m.err
	}
	return []models.LookupType{{ID: 1, Name: "car"}}, nil
}

// mockTenantService records the arguments of the last call and returns err when set.
type mockTenantService struct {
	err error

	lastClientID int64
	lastStatus   models.OnboardingStatus
	lastMember   services.MemberInput
	removed      []int64
}

func (m *mockTenantService) MyClients(ctx context.Context, caller *access.Caller) ([]models.MyClient, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []models.MyClient{}, nil
}

func (m *mockTenantService) ListClients(ctx context.Context, caller *access.Caller, opts models.ListOptions) (models.Page[models.Client], error) {
	if m.err != nil {
		return models.Page[models.Client]{}, m.err
	}
	return models.NewPage([]models.Client{{ID: 1, Name: "acme", OnboardingStatus: models.OnboardingActive}}, 1, opts), nil
}

func (m *mockTenantService) CreateClient(ctx context.Context, caller *access.Caller, name string) (*models.Client, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Client{ID: 2, Name: name, OnboardingStatus: models.OnboardingPending}, nil
}

func (m *mockTenantService) UpdateOnboardingStatus(ctx context.Context, caller *access.Caller, clientID int64, status models.OnboardingStatus) (*models.Client, error) {
	m.lastClientID, m.lastStatus = clientID, status
	if m.err != nil {
		return nil, m.err
	}
	return &models.Client{ID: clientID, Name: "acme", OnboardingStatus: status}, nil
}

func (m *mockTenantService) ListMembers(ctx context.Context, caller *access.Caller, clientID int64, opts models.ListOptions) (models.Page[models.ClientMember], error) {
	m.lastClientID = clientID
	if m.err != nil {
		return models.Page[models.ClientMember]{}, m.err
	}
	return models.NewPage[models.ClientMember](nil, 0, opts), nil
}

func (m *mockTenantService) AddMember(ctx context.Context, caller *access.Caller, clientID int64, in services.MemberInput) (*models.ClientMember, error) {
	m.lastClientID, m.lastMember = clientID, in
	if m.err != nil {
		return nil, m.err
	}
	return &models.ClientMember{ID: 5, ClientID: clientID, UserID: in.UserID, Role: in.Role, EstablishmentID: in.EstablishmentID}, nil
}

func (m *mockTenantService) RemoveMember(ctx context.Context, caller *access.Caller, clientID, memberID int64) error {
	m.removed = append(m.removed, memberID)
	return m.err
}

// mockSlotStatusService returns a transition built from the request and records the inputs.
type mockSlotStatusService struct {
	err     error
	created bool

	lastUpdate   services.StatusUpdate
	lastReport   services.StatusReport
	lastClientID int64
	lastOpts     models.ListOptions
}

func (m *mockSlotStatusService) transition(slotID int64, status models.SlotStatusValue) *models.StatusTransition {
	t := &models.StatusTransition{
		Current: models.SlotStatus{ID: 1, SlotID: slotID, Status: status, ChangedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	if !m.created {
		prev := models.SlotFree
		t.PrevStatus = &prev
	}
	return t
}

func (m *mockSlotStatusService) UpdateStatus(ctx context.Context, caller *access.Caller, slotID int64, update services.StatusUpdate) (*models.StatusTransition, error) {
	m.lastUpdate = update
	if m.err != nil {
		return nil, m.err
	}
	return m.transition(slotID, update.Status), nil
}

func (m *mockSlotStatusService) ReportStatus(ctx context.Context, clientID int64, report services.StatusReport) (*models.StatusTransition, error) {
	m.lastClientID, m.lastReport = clientID, report
	if m.err != nil {
		return nil, m.err
	}
	return m.transition(report.SlotID, report.Status), nil
}

func (m *mockSlotStatusService) GetStatus(ctx context.Context, caller *access.Caller, slotID int64) (*models.SlotStatus, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &m.transition(slotID, models.SlotOccupied).Current, nil
}

func (m *mockSlotStatusService) ListHistory(ctx context.Context, caller *access.Caller, slotID int64, opts models.ListOptions) (models.Page[models.SlotStatusHistory], error) {
	m.lastOpts = opts
	if m.err != nil {
		return models.Page[models.SlotStatusHistory]{}, m.err
	}
	return models.NewPage([]models.SlotStatusHistory{{ID: 2, SlotID: slotID, Status: models.SlotFree}}, 1, opts), nil
}

func (m *mockSlotStatusService) ListEvents(ctx context.Context, caller *access.Caller, slotID int64, opts models.ListOptions) (models.Page[models.SlotStatusEvent], error) {
	m.lastOpts = opts
	if m.err != nil {
		return models.Page[models.SlotStatusEvent]{}, m.err
	}
	return models.NewPage[models.SlotStatusEvent](nil, 0, opts), nil
}

// mockPublicService serves a fixed directory.
type mockPublicService struct {
	err      error
	lastOpts models.ListOptions
}

func (m *mockPublicService) ListEstablishments(ctx context.Context, opts models.ListOptions) (models.Page[models.PublicEstablishment], error) {
	m.lastOpts = opts
	if m.err != nil {
		return models.Page[models.PublicEstablishment]{}, m.err
	}
	return models.NewPage([]models.PublicEstablishment{{ID: 1, Name: "North Mall"}}, 1, opts), nil
}

func (m *mockPublicService) ListSlotStatuses(ctx context.Context, establishmentID int64) ([]models.PublicSlotStatus, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []models.PublicSlotStatus{{SlotID: 1, SlotCode: "A01"}}, nil
}

// mockCameraService records the last heartbeat and list inputs.
type mockCameraService struct {
	err error

	lastClientID int64
	lastReport   services.HeartbeatReport
	lastCameraID int64
	lastOpts     models.ListOptions
}

func (m *mockCameraService) RecordHeartbeat(ctx context.Context, clientID int64, report services.HeartbeatReport) (*models.CameraHeartbeat, error) {
	m.lastClientID, m.lastReport = clientID, report
	if m.err != nil {
		return nil, m.err
	}
	return &models.CameraHeartbeat{
		ID:         1,
		CameraID:   3,
		ReceivedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Payload:    report.Payload,
	}, nil
}

func (m *mockCameraService) ListHeartbeats(ctx context.Context, caller *access.Caller, cameraID int64, opts models.ListOptions) (models.Page[models.CameraHeartbeat], error) {
	m.lastCameraID, m.lastOpts = cameraID, opts
	if m.err != nil {
		return models.Page[models.CameraHeartbeat]{}, m.err
	}
	return models.NewPage([]models.CameraHeartbeat{{ID: 1, CameraID: cameraID}}, 1, opts), nil
}

// passthroughScope stands in for the database scope middleware.
func passthroughScope(next http.HandlerFunc) http.HandlerFunc {
	return next
}

// newTestAuthMiddleware builds the real auth middleware with signature verification disabled.
func newTestAuthMiddleware(t *testing.T) *auth.Middleware {
	t.Helper()
	jwks, err := auth.NewJWKSClient(context.Background(), &auth.JWKSConfig{EnableVerification: false})
	require.NoError(t, err)
	return auth.NewMiddleware(auth.NewAuthService(jwks, zap.NewNop()), zap.NewNop())
}

func testToken(t *testing.T) string {
	t.Helper()
	return testhelpers.GenerateTestJWT(testCaller().UserID.String())
}
