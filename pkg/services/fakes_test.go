package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jvaguiar05/smart-park-system/pkg/access"
	"github.com/jvaguiar05/smart-park-system/pkg/apperrors"
	"github.com/jvaguiar05/smart-park-system/pkg/audit"
	"github.com/jvaguiar05/smart-park-system/pkg/models"
	"github.com/jvaguiar05/smart-park-system/pkg/repositories"
)

// world is an in-memory tenant hierarchy shared by the fake repositories.
type world struct {
	mu             sync.Mutex
	nextID         int64
	clients        map[int64]*models.Client
	establishments map[int64]*models.Establishment
	lots           map[int64]*models.Lot
	slots          map[int64]*models.Slot
	vehicleTypes   map[int64]string
	members        map[int64]*models.ClientMember
	cameras        map[int64]*models.Camera
	status         map[int64]*models.SlotStatus
	history        []models.SlotStatusHistory
	events         []models.SlotStatusEvent
	heartbeats     []models.CameraHeartbeat
}

func newWorld() *world {
	return &world{
		nextID:         100,
		clients:        map[int64]*models.Client{},
		establishments: map[int64]*models.Establishment{},
		lots:           map[int64]*models.Lot{},
		slots:          map[int64]*models.Slot{},
		vehicleTypes:   map[int64]string{},
		members:        map[int64]*models.ClientMember{},
		cameras:        map[int64]*models.Camera{},
		status:         map[int64]*models.SlotStatus{},
	}
}

func (w *world) id() int64 {
	w.nextID++
	return w.nextID
}

func (w *world) addClient(name string, status models.OnboardingStatus) int64 {
	id := w.id()
	w.clients[id] = &models.Client{ID: id, Name: name, OnboardingStatus: status}
	return id
}

func (w *world) addEstablishment(clientID int64, name string) int64 {
	id := w.id()
	w.establishments[id] = &models.Establishment{ID: id, ClientID: clientID, Name: name}
	return id
}

func (w *world) addLot(estID int64, code string) int64 {
	id := w.id()
	est := w.establishments[estID]
	w.lots[id] = &models.Lot{ID: id, ClientID: est.ClientID, EstablishmentID: estID, LotCode: code}
	return id
}

func (w *world) addSlot(lotID int64, code string) int64 {
	id := w.id()
	lot := w.lots[lotID]
	w.slots[id] = &models.Slot{
		ID: id, ClientID: lot.ClientID, EstablishmentID: lot.EstablishmentID, LotID: lotID,
		SlotCode: code, SlotTypeID: 1, Active: true,
	}
	return id
}

func (w *world) addVehicleType(name string) int64 {
	id := w.id()
	w.vehicleTypes[id] = name
	return id
}

func (w *world) historyFor(slotID int64) []models.SlotStatusHistory {
	var out []models.SlotStatusHistory
	for i := len(w.history) - 1; i >= 0; i-- {
		if w.history[i].SlotID == slotID {
			out = append(out, w.history[i])
		}
	}
	return out
}

func contains(haystack, term string) bool {
	return term == "" || strings.Contains(strings.ToLower(haystack), strings.ToLower(term))
}

func paginate[T any](items []T, opts models.ListOptions) ([]T, int) {
	total := len(items)
	start := opts.Offset()
	if start > total {
		start = total
	}
	end := start + opts.Normalize().PageSize
	if end > total {
		end = total
	}
	return items[start:end], total
}

func visible(filter repositories.ClientFilter, clientID int64) bool {
	if filter.All {
		return true
	}
	for _, id := range filter.IDs {
		if id == clientID {
			return true
		}
	}
	return false
}

// --- slots ---

type fakeSlotRepo struct{ w *world }

func (r *fakeSlotRepo) Create(_ context.Context, slot *models.Slot) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	for _, s := range r.w.slots {
		if s.LotID == slot.LotID && s.SlotCode == slot.SlotCode && s.DeletedAt == nil {
			return apperrors.NewValidationError("slot_code", "a slot with this code already exists in the lot")
		}
	}
	slot.ID = r.w.id()
	if slot.Polygon == nil {
		slot.Polygon = []byte("[]")
	}
	cp := *slot
	r.w.slots[slot.ID] = &cp
	return nil
}

func (r *fakeSlotRepo) Get(_ context.Context, id int64) (*models.Slot, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	s, ok := r.w.slots[id]
	if !ok || s.DeletedAt != nil {
		return nil, apperrors.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSlotRepo) GetOwner(ctx context.Context, id int64) (*models.SlotOwner, error) {
	s, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.SlotOwner{SlotID: s.ID, ClientID: s.ClientID, EstablishmentID: s.EstablishmentID, LotID: s.LotID}, nil
}

func (r *fakeSlotRepo) ListByLot(_ context.Context, lotID int64, opts models.ListOptions) ([]models.Slot, int, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	var out []models.Slot
	for _, s := range r.w.slots {
		if s.LotID == lotID && (s.DeletedAt == nil || opts.IncludeDeleted) && contains(s.SlotCode, opts.Search) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotCode < out[j].SlotCode })
	items, total := paginate(out, opts)
	return items, total, nil
}

func (r *fakeSlotRepo) Update(_ context.Context, slot *models.Slot) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	s, ok := r.w.slots[slot.ID]
	if !ok || s.DeletedAt != nil {
		return apperrors.ErrNotFound
	}
	cp := *slot
	r.w.slots[slot.ID] = &cp
	return nil
}

func (r *fakeSlotRepo) SoftDelete(_ context.Context, id int64) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	s, ok := r.w.slots[id]
	if !ok || s.DeletedAt != nil {
		return apperrors.ErrNotFound
	}
	now := time.Now()
	s.DeletedAt = &now
	return nil
}

// --- slot status ---

type fakeStatusRepo struct {
	w *world
	// conflicts makes the next N Apply calls fail with ErrConflict.
	conflicts int
	calls     int
}

func (r *fakeStatusRepo) Apply(_ context.Context, slotID int64, change *models.StatusChange) (*models.StatusTransition, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	r.calls++
	if r.conflicts > 0 {
		r.conflicts--
		return nil, errors.Join(apperrors.ErrConflict, errors.New("duplicate key value violates unique constraint"))
	}

	slot, ok := r.w.slots[slotID]
	if !ok || slot.DeletedAt != nil {
		return nil, apperrors.ErrNotFound
	}
	if v := change.VehicleTypeID; v.Present && v.Value != nil {
		if _, ok := r.w.vehicleTypes[*v.Value]; !ok {
			return nil, apperrors.NewValidationError("vehicle_type_id", "does not reference a known vehicle type")
		}
	}
	if change.Event != nil {
		for _, e := range r.w.events {
			if e.EventID == change.Event.EventID {
				return nil, apperrors.ErrDuplicateEvent
			}
		}
	}

	var (
		prevStatus     *models.SlotStatusValue
		prevVehicle    *int64
		prevConfidence *decimal.Decimal
	)
	if cur, ok := r.w.status[slotID]; ok {
		s := cur.Status
		prevStatus = &s
		prevVehicle = cur.VehicleTypeID
		if cur.Confidence.Valid {
			d := cur.Confidence.Decimal
			prevConfidence = &d
		}
	}

	now := time.Now()
	vehicle := change.VehicleTypeID.Apply(prevVehicle)
	confidence := change.Confidence.Apply(prevConfidence)
	current := models.SlotStatus{ID: slotID, SlotID: slotID, Status: change.Status, VehicleTypeID: vehicle, ChangedAt: now}
	if confidence != nil {
		current.Confidence = decimal.NewNullDecimal(*confidence)
	}
	r.w.status[slotID] = &current

	history := models.SlotStatusHistory{
		ID: r.w.id(), SlotID: slotID, PrevStatus: prevStatus, Status: change.Status,
		VehicleTypeID: vehicle, Confidence: current.Confidence, RecordedAt: now,
	}
	t := &models.StatusTransition{Current: current, PrevStatus: prevStatus}
	if src := change.Event; src != nil {
		id := src.EventID
		history.EventID = &id
		event := models.SlotStatusEvent{
			ID: r.w.id(), ClientID: slot.ClientID, EventID: src.EventID, EventType: src.EventType,
			OccurredAt: src.OccurredAt, ReceivedAt: src.ReceivedAt, LotID: slot.LotID, CameraID: src.CameraID,
			Sequence: src.Sequence, SlotID: slotID, PrevStatus: prevStatus, PrevVehicleID: prevVehicle,
			CurrStatus: change.Status, CurrVehicleID: vehicle, Confidence: current.Confidence,
			SourceModel: src.SourceModel, SourceVersion: src.SourceVersion,
		}
		if event.EventType == "" {
			event.EventType = models.DeriveEventType(prevStatus, change.Status)
		}
		r.w.events = append(r.w.events, event)
		t.Event = &event
	}
	r.w.history = append(r.w.history, history)
	t.History = history
	return t, nil
}

func (r *fakeStatusRepo) Get(_ context.Context, slotID int64) (*models.SlotStatus, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	cur, ok := r.w.status[slotID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *cur
	return &cp, nil
}

func (r *fakeStatusRepo) ListHistory(_ context.Context, slotID int64, opts models.ListOptions) ([]models.SlotStatusHistory, int, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	var out []models.SlotStatusHistory
	for _, h := range r.w.historyFor(slotID) {
		if contains(string(h.Status), opts.Search) {
			out = append(out, h)
		}
	}
	items, total := paginate(out, opts)
	return items, total, nil
}

type fakeEventRepo struct{ w *world }

func (r *fakeEventRepo) ListBySlot(_ context.Context, slotID int64, opts models.ListOptions) ([]models.SlotStatusEvent, int, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	var out []models.SlotStatusEvent
	for i := len(r.w.events) - 1; i >= 0; i-- {
		if e := r.w.events[i]; e.SlotID == slotID && contains(string(e.EventType), opts.Search) {
			out = append(out, e)
		}
	}
	items, total := paginate(out, opts)
	return items, total, nil
}

type fakeCameraRepo struct {
	w       *world
	touched []int64
}

func (r *fakeCameraRepo) GetByID(_ context.Context, id int64) (*models.Camera, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	c, ok := r.w.cameras[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCameraRepo) GetByCode(_ context.Context, clientID int64, code string) (*models.Camera, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	for _, c := range r.w.cameras {
		if c.ClientID == clientID && c.CameraCode == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeCameraRepo) Create(_ context.Context, camera *models.Camera) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	camera.ID = r.w.id()
	cp := *camera
	r.w.cameras[camera.ID] = &cp
	return nil
}

func (r *fakeCameraRepo) TouchLastSeen(_ context.Context, id int64) error {
	r.touched = append(r.touched, id)
	return nil
}

func (r *fakeCameraRepo) RecordHeartbeat(_ context.Context, hb *models.CameraHeartbeat) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	c, ok := r.w.cameras[hb.CameraID]
	if !ok {
		return apperrors.ErrNotFound
	}
	hb.ID = r.w.id()
	hb.ReceivedAt = time.Now().UTC()
	seen := hb.ReceivedAt
	c.LastSeenAt = &seen
	r.w.heartbeats = append(r.w.heartbeats, *hb)
	return nil
}

func (r *fakeCameraRepo) ListHeartbeats(_ context.Context, cameraID int64, opts models.ListOptions) ([]models.CameraHeartbeat, int, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	var out []models.CameraHeartbeat
	for i := len(r.w.heartbeats) - 1; i >= 0; i-- {
		if hb := r.w.heartbeats[i]; hb.CameraID == cameraID && contains(string(hb.Payload), opts.Search) {
			out = append(out, hb)
		}
	}
	items, total := paginate(out, opts)
	return items, total, nil
}

// --- catalog ---

type fakeClientRepo struct{ w *world }

func (r *fakeClientRepo) Create(_ context.Context, client *models.Client) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	client.ID = r.w.id()
	cp := *client
	r.w.clients[client.ID] = &cp
	return nil
}

func (r *fakeClientRepo) Get(_ context.Context, id int64) (*models.Client, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	c, ok := r.w.clients[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeClientRepo) List(_ context.Context, opts models.ListOptions) ([]models.Client, int, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	var out []models.Client
	for _, c := range r.w.clients {
		if contains(c.Name, opts.Search) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	items, total := paginate(out, opts)
	return items, total, nil
}

func (r *fakeClientRepo) UpdateOnboardingStatus(_ context.Context, id int64, status models.OnboardingStatus) (*models.Client, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	c, ok := r.w.clients[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c.OnboardingStatus = status
	cp := *c
	return &cp, nil
}

func (r *fakeClientRepo) ListForUser(_ context.Context, userID uuid.UUID) ([]models.MyClient, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	var out []models.MyClient
	for _, m := range r.w.members {
		if m.UserID == userID && m.DeletedAt == nil {
			c := r.w.clients[m.ClientID]
			out = append(out, models.MyClient{ClientID: c.ID, Name: c.Name, OnboardingStatus: c.OnboardingStatus, Role: m.Role, EstablishmentID: m.EstablishmentID})
		}
	}
	return out, nil
}

type fakeMemberRepo struct{ w *world }

func (r *fakeMemberRepo) ListActiveForUser(_ context.Context, userID uuid.UUID) ([]models.ClientMember, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	var out []models.ClientMember
	for _, m := range r.w.members {
		if m.UserID == userID && m.DeletedAt == nil {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeMemberRepo) List(_ context.Context, clientID int64, opts models.ListOptions) ([]models.ClientMember, int, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	var out []models.ClientMember
	for _, m := range r.w.members {
		if m.ClientID == clientID && m.DeletedAt == nil && contains(string(m.Role), opts.Search) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	items, total := paginate(out, opts)
	return items, total, nil
}

func (r *fakeMemberRepo) Get(_ context.Context, clientID, memberID int64) (*models.ClientMember, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	m, ok := r.w.members[memberID]
	if !ok || m.ClientID != clientID || m.DeletedAt != nil {
		return nil, apperrors.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *fakeMemberRepo) Add(_ context.Context, member *models.ClientMember) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	if member.EstablishmentID != nil {
		est, ok := r.w.establishments[*member.EstablishmentID]
		if !ok || est.ClientID != member.ClientID {
			return apperrors.NewValidationError("establishment_id", "must be an establishment of this client")
		}
	}
	for _, m := range r.w.members {
		if m.DeletedAt == nil && m.ClientID == member.ClientID && m.UserID == member.UserID &&
			m.Role == member.Role && equalIDs(m.EstablishmentID, member.EstablishmentID) {
			return apperrors.ErrConflict
		}
	}
	member.ID = r.w.id()
	member.JoinedAt = time.Now()
	cp := *member
	r.w.members[member.ID] = &cp
	return nil
}

func (r *fakeMemberRepo) Remove(_ context.Context, clientID, memberID int64) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	m, ok := r.w.members[memberID]
	if !ok || m.ClientID != clientID || m.DeletedAt != nil {
		return apperrors.ErrNotFound
	}
	now := time.Now()
	m.DeletedAt = &now
	return nil
}

func equalIDs(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

type fakeEstablishmentRepo struct{ w *world }

func (r *fakeEstablishmentRepo) Create(_ context.Context, est *models.Establishment) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	for _, e := range r.w.establishments {
		if e.ClientID == est.ClientID && e.Name == est.Name && e.DeletedAt == nil {
			return apperrors.NewValidationError("name", "an establishment with this name already exists for the client")
		}
	}
	est.ID = r.w.id()
	cp := *est
	r.w.establishments[est.ID] = &cp
	return nil
}

func (r *fakeEstablishmentRepo) Get(_ context.Context, id int64) (*models.Establishment, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	e, ok := r.w.establishments[id]
	if !ok || e.DeletedAt != nil {
		return nil, apperrors.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *fakeEstablishmentRepo) List(_ context.Context, filter repositories.ClientFilter, opts models.ListOptions) ([]models.Establishment, int, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	var out []models.Establishment
	for _, e := range r.w.establishments {
		if visible(filter, e.ClientID) && e.DeletedAt == nil && contains(e.Name, opts.Search) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	items, total := paginate(out, opts)
	return items, total, nil
}

func (r *fakeEstablishmentRepo) Update(_ context.Context, est *models.Establishment) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	if _, ok := r.w.establishments[est.ID]; !ok {
		return apperrors.ErrNotFound
	}
	cp := *est
	r.w.establishments[est.ID] = &cp
	return nil
}

func (r *fakeEstablishmentRepo) SoftDelete(_ context.Context, id int64) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	e, ok := r.w.establishments[id]
	if !ok || e.DeletedAt != nil {
		return apperrors.ErrNotFound
	}
	for _, l := range r.w.lots {
		if l.EstablishmentID == id && l.DeletedAt == nil {
			return apperrors.ErrHasChildren
		}
	}
	now := time.Now()
	e.DeletedAt = &now
	return nil
}

type fakeLotRepo struct{ w *world }

func (r *fakeLotRepo) Create(_ context.Context, lot *models.Lot) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	lot.ID = r.w.id()
	cp := *lot
	r.w.lots[lot.ID] = &cp
	return nil
}

func (r *fakeLotRepo) Get(_ context.Context, id int64) (*models.Lot, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	l, ok := r.w.lots[id]
	if !ok || l.DeletedAt != nil {
		return nil, apperrors.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *fakeLotRepo) List(_ context.Context, filter repositories.ClientFilter, establishmentID *int64, opts models.ListOptions) ([]models.Lot, int, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	var out []models.Lot
	for _, l := range r.w.lots {
		if !visible(filter, l.ClientID) || l.DeletedAt != nil || !contains(l.LotCode, opts.Search) {
			continue
		}
		if establishmentID != nil && l.EstablishmentID != *establishmentID {
			continue
		}
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	items, total := paginate(out, opts)
	return items, total, nil
}

func (r *fakeLotRepo) Update(_ context.Context, lot *models.Lot) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	cp := *lot
	r.w.lots[lot.ID] = &cp
	return nil
}

func (r *fakeLotRepo) SoftDelete(_ context.Context, id int64) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	for _, s := range r.w.slots {
		if s.LotID == id && s.DeletedAt == nil {
			return apperrors.ErrHasChildren
		}
	}
	now := time.Now()
	r.w.lots[id].DeletedAt = &now
	return nil
}

type fakeLookupRepo struct{ w *world }

func (r *fakeLookupRepo) List(_ context.Context, table repositories.LookupTable) ([]models.LookupType, error) {
	if table != repositories.VehicleTypes {
		return nil, nil
	}
	var out []models.LookupType
	for id, name := range r.w.vehicleTypes {
		out = append(out, models.LookupType{ID: id, Name: name})
	}
	return out, nil
}

func (r *fakeLookupRepo) Exists(_ context.Context, table repositories.LookupTable, id int64) (bool, error) {
	_, ok := r.w.vehicleTypes[id]
	return ok && table == repositories.VehicleTypes, nil
}

type fakePublicRepo struct{ w *world }

func (r *fakePublicRepo) ListEstablishments(_ context.Context, opts models.ListOptions) ([]models.PublicEstablishment, int, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	var out []models.PublicEstablishment
	for _, e := range r.w.establishments {
		if r.w.clients[e.ClientID].OnboardingStatus == models.OnboardingActive && contains(e.Name, opts.Search) {
			out = append(out, models.PublicEstablishment{ID: e.ID, Name: e.Name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	items, total := paginate(out, opts)
	return items, total, nil
}

func (r *fakePublicRepo) ListSlotStatuses(_ context.Context, establishmentID int64) ([]models.PublicSlotStatus, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	e, ok := r.w.establishments[establishmentID]
	if !ok || r.w.clients[e.ClientID].OnboardingStatus != models.OnboardingActive {
		return nil, apperrors.ErrNotFound
	}
	out := []models.PublicSlotStatus{}
	for _, s := range r.w.slots {
		if s.EstablishmentID == establishmentID && s.Active && s.DeletedAt == nil {
			out = append(out, models.PublicSlotStatus{SlotID: s.ID, SlotCode: s.SlotCode, LotCode: r.w.lots[s.LotID].LotCode})
		}
	}
	return out, nil
}

// --- side effects ---

type recordingPublisher struct {
	mu   sync.Mutex
	sent []StatusNotification
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, n StatusNotification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, n)
	return nil
}

type recordingAuditor struct {
	mu         sync.Mutex
	denied     []audit.AccessDeniedDetails
	injections []audit.InjectionDetails
	overrides  []int64
}

func (a *recordingAuditor) LogInjectionAttempt(_ context.Context, d audit.InjectionDetails, _ string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.injections = append(a.injections, d)
}

func (a *recordingAuditor) LogAccessDenied(_ context.Context, d audit.AccessDeniedDetails, _ string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.denied = append(a.denied, d)
}

func (a *recordingAuditor) LogStatusOverride(_ context.Context, _, slotID int64, _ string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.overrides = append(a.overrides, slotID)
}

// fixture is one ACTIVE client with two establishments, each with a lot and a slot.
type fixture struct {
	w         *world
	clientID  int64
	est1      int64
	est2      int64
	lot1      int64
	lot2      int64
	slot1     int64
	slot2     int64
	car       int64
	auditor   *recordingAuditor
	publisher *recordingPublisher
	status    *fakeStatusRepo
	cameras   *fakeCameraRepo
	logger    *zap.Logger
}

func newFixture() *fixture {
	w := newWorld()
	f := &fixture{w: w, auditor: &recordingAuditor{}, publisher: &recordingPublisher{}, logger: zap.NewNop()}
	f.clientID = w.addClient("acme", models.OnboardingActive)
	f.est1 = w.addEstablishment(f.clientID, "North Mall")
	f.est2 = w.addEstablishment(f.clientID, "South Mall")
	f.lot1 = w.addLot(f.est1, "L1")
	f.lot2 = w.addLot(f.est2, "L1")
	f.slot1 = w.addSlot(f.lot1, "S001")
	f.slot2 = w.addSlot(f.lot2, "S001")
	f.car = w.addVehicleType("car")
	f.status = &fakeStatusRepo{w: w}
	f.cameras = &fakeCameraRepo{w: w}
	return f
}

// member grants a membership and returns the caller snapshot of that user.
func (f *fixture) member(role models.Role, estID *int64) *access.Caller {
	user := uuid.New()
	m := &models.ClientMember{ID: f.w.id(), ClientID: f.clientID, UserID: user, Role: role, EstablishmentID: estID}
	f.w.members[m.ID] = m
	return &access.Caller{UserID: user, Memberships: []models.ClientMember{*m}}
}

func (f *fixture) admin() *access.Caller {
	return &access.Caller{UserID: uuid.New(), SystemRoles: []models.Role{models.RoleAdmin}}
}

func (f *fixture) stranger() *access.Caller {
	return &access.Caller{UserID: uuid.New()}
}

func (f *fixture) slotStatusService() SlotStatusService {
	return NewSlotStatusService(&fakeSlotRepo{w: f.w}, f.status, &fakeEventRepo{w: f.w}, f.cameras,
		f.publisher, f.auditor, nil, 5*time.Minute, f.logger)
}

func (f *fixture) cameraService() CameraService {
	return NewCameraService(f.cameras, f.auditor, f.logger)
}

func (f *fixture) catalogService() CatalogService {
	return NewCatalogService(&fakeClientRepo{w: f.w}, &fakeEstablishmentRepo{w: f.w}, &fakeLotRepo{w: f.w},
		&fakeSlotRepo{w: f.w}, &fakeLookupRepo{w: f.w}, f.auditor, f.logger)
}

func (f *fixture) tenantService() TenantService {
	return NewTenantService(&fakeClientRepo{w: f.w}, &fakeMemberRepo{w: f.w}, f.auditor, f.logger)
}
