package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jvaguiar05/smart-park-system/pkg/access"
	"github.com/jvaguiar05/smart-park-system/pkg/apperrors"
	"github.com/jvaguiar05/smart-park-system/pkg/models"
	"github.com/jvaguiar05/smart-park-system/pkg/repositories"
)

// EstablishmentInput holds the writable fields of an establishment.
type EstablishmentInput struct {
	Name        string
	StoreTypeID *int64
	Address     *string
	City        *string
	State       *string
	Lat         *float64
	Lng         *float64
}

// LotInput holds the writable fields of a lot.
type LotInput struct {
	LotCode string
	Name    *string
}

// SlotInput holds the writable fields of a slot. On update a nil Polygon or
// Active keeps the stored value; on create a nil Active means active.
type SlotInput struct {
	SlotCode   string
	SlotTypeID int64
	Polygon    json.RawMessage
	Active     *bool
}

// CatalogService manages the establishment, lot and slot hierarchy of each client.
type CatalogService interface {
	ListEstablishments(ctx context.Context, caller *access.Caller, opts models.ListOptions) (models.Page[models.Establishment], error)
	GetEstablishment(ctx context.Context, caller *access.Caller, id int64) (*models.Establishment, error)
	CreateEstablishment(ctx context.Context, caller *access.Caller, clientID int64, in EstablishmentInput) (*models.Establishment, error)
	UpdateEstablishment(ctx context.Context, caller *access.Caller, id int64, in EstablishmentInput) (*models.Establishment, error)
	DeleteEstablishment(ctx context.Context, caller *access.Caller, id int64) error

	ListLots(ctx context.Context, caller *access.Caller, establishmentID *int64, opts models.ListOptions) (models.Page[models.Lot], error)
	GetLot(ctx context.Context, caller *access.Caller, id int64) (*models.Lot, error)
	CreateLot(ctx context.Context, caller *access.Caller, establishmentID int64, in LotInput) (*models.Lot, error)
	UpdateLot(ctx context.Context, caller *access.Caller, id int64, in LotInput) (*models.Lot, error)
	DeleteLot(ctx context.Context, caller *access.Caller, id int64) error

	ListSlots(ctx context.Context, caller *access.Caller, lotID int64, opts models.ListOptions) (models.Page[models.Slot], error)
	GetSlot(ctx context.Context, caller *access.Caller, id int64) (*models.Slot, error)
	CreateSlot(ctx context.Context, caller *access.Caller, lotID int64, in SlotInput) (*models.Slot, error)
	UpdateSlot(ctx context.Context, caller *access.Caller, id int64, in SlotInput) (*models.Slot, error)
	DeleteSlot(ctx context.Context, caller *access.Caller, id int64) error

	ListLookups(ctx context.Context, table repositories.LookupTable) ([]models.LookupType, error)
}

type catalogService struct {
	guard
	clientRepo        repositories.ClientRepository
	establishmentRepo repositories.EstablishmentRepository
	lotRepo           repositories.LotRepository
	slotRepo          repositories.SlotRepository
	lookupRepo        repositories.LookupRepository
}

// NewCatalogService creates a catalog service with dependencies.
func NewCatalogService(
	clientRepo repositories.ClientRepository,
	establishmentRepo repositories.EstablishmentRepository,
	lotRepo repositories.LotRepository,
	slotRepo repositories.SlotRepository,
	lookupRepo repositories.LookupRepository,
	auditor SecurityAuditor,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		guard:             guard{auditor: auditor, logger: logger.Named("catalog")},
		clientRepo:        clientRepo,
		establishmentRepo: establishmentRepo,
		lotRepo:           lotRepo,
		slotRepo:          slotRepo,
		lookupRepo:        lookupRepo,
	}
}

func (in EstablishmentInput) validate() error {
	verr := &apperrors.ValidationError{}
	if in.Name == "" {
		verr.Add("name", "is required")
	}
	if in.Lat != nil && (*in.Lat < -90 || *in.Lat > 90) {
		verr.Add("lat", "must be between -90 and 90")
	}
	if in.Lng != nil && (*in.Lng < -180 || *in.Lng > 180) {
		verr.Add("lng", "must be between -180 and 180")
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

func (in LotInput) validate() error {
	if in.LotCode == "" {
		return apperrors.NewValidationError("lot_code", "is required")
	}
	return nil
}

func (in SlotInput) validate() error {
	verr := &apperrors.ValidationError{}
	if in.SlotCode == "" {
		verr.Add("slot_code", "is required")
	}
	if in.SlotTypeID <= 0 {
		verr.Add("slot_type_id", "is required")
	}
	if len(in.Polygon) > 0 {
		var points [][]float64
		if err := json.Unmarshal(in.Polygon, &points); err != nil {
			verr.Add("polygon", "must be an array of [x, y] points")
		} else {
			for _, p := range points {
				if len(p) != 2 {
					verr.Add("polygon", "must be an array of [x, y] points")
					break
				}
			}
		}
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// --- establishments ---

func (s *catalogService) ListEstablishments(ctx context.Context, caller *access.Caller, opts models.ListOptions) (models.Page[models.Establishment], error) {
	var page models.Page[models.Establishment]
	if err := requireTenantScope(caller); err != nil {
		return page, err
	}
	opts, err := s.listOptions(ctx, caller, "establishments", opts)
	if err != nil {
		return page, err
	}

	items, total, err := s.establishmentRepo.List(ctx, visibleClients(caller), opts)
	if err != nil {
		return page, err
	}
	return models.NewPage(items, total, opts), nil
}

// loadEstablishment fetches an establishment and checks the caller's level on it.
func (s *catalogService) loadEstablishment(ctx context.Context, caller *access.Caller, id int64, op string, required access.Level) (*models.Establishment, error) {
	if err := requireTenantScope(caller); err != nil {
		return nil, err
	}
	est, err := s.establishmentRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, op, access.EstablishmentTarget(est.ClientID, est.ID), required); err != nil {
		return nil, err
	}
	return est, nil
}

func (s *catalogService) GetEstablishment(ctx context.Context, caller *access.Caller, id int64) (*models.Establishment, error) {
	return s.loadEstablishment(ctx, caller, id, "establishment.get", access.Member)
}

func (s *catalogService) CreateEstablishment(ctx context.Context, caller *access.Caller, clientID int64, in EstablishmentInput) (*models.Establishment, error) {
	if err := requireTenantScope(caller); err != nil {
		return nil, err
	}
	if _, err := s.clientRepo.Get(ctx, clientID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewValidationError("client_id", "does not reference a known client")
		}
		return nil, err
	}
	if err := s.authorize(ctx, caller, "establishment.create", access.ClientTarget(clientID), access.Client); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewValidationError("client_id", "does not reference a known client")
		}
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	est := &models.Establishment{
		ClientID:    clientID,
		Name:        in.Name,
		StoreTypeID: in.StoreTypeID,
		Address:     in.Address,
		City:        in.City,
		State:       in.State,
		Lat:         in.Lat,
		Lng:         in.Lng,
	}
	if err := s.establishmentRepo.Create(ctx, est); err != nil {
		return nil, err
	}
	s.logger.Info("Created establishment",
		zap.Int64("client_id", clientID),
		zap.Int64("establishment_id", est.ID))
	return est, nil
}

func (s *catalogService) UpdateEstablishment(ctx context.Context, caller *access.Caller, id int64, in EstablishmentInput) (*models.Establishment, error) {
	est, err := s.loadEstablishment(ctx, caller, id, "establishment.update", access.Establishment)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	est.Name = in.Name
	est.StoreTypeID = in.StoreTypeID
	est.Address = in.Address
	est.City = in.City
	est.State = in.State
	est.Lat = in.Lat
	est.Lng = in.Lng
	if err := s.establishmentRepo.Update(ctx, est); err != nil {
		return nil, err
	}
	return est, nil
}

func (s *catalogService) DeleteEstablishment(ctx context.Context, caller *access.Caller, id int64) error {
	if _, err := s.loadEstablishment(ctx, caller, id, "establishment.delete", access.Client); err != nil {
		return err
	}
	if err := s.establishmentRepo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Deleted establishment", zap.Int64("establishment_id", id))
	return nil
}

// --- lots ---

func (s *catalogService) ListLots(ctx context.Context, caller *access.Caller, establishmentID *int64, opts models.ListOptions) (models.Page[models.Lot], error) {
	var page models.Page[models.Lot]
	if err := requireTenantScope(caller); err != nil {
		return page, err
	}
	if establishmentID != nil {
		if _, err := s.loadEstablishment(ctx, caller, *establishmentID, "lot.list", access.Member); err != nil {
			return page, err
		}
	}
	opts, err := s.listOptions(ctx, caller, "lots", opts)
	if err != nil {
		return page, err
	}

	items, total, err := s.lotRepo.List(ctx, visibleClients(caller), establishmentID, opts)
	if err != nil {
		return page, err
	}
	return models.NewPage(items, total, opts), nil
}

func (s *catalogService) loadLot(ctx context.Context, caller *access.Caller, id int64, op string, required access.Level) (*models.Lot, error) {
	if err := requireTenantScope(caller); err != nil {
		return nil, err
	}
	lot, err := s.lotRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, op, access.EstablishmentTarget(lot.ClientID, lot.EstablishmentID), required); err != nil {
		return nil, err
	}
	return lot, nil
}

func (s *catalogService) GetLot(ctx context.Context, caller *access.Caller, id int64) (*models.Lot, error) {
	return s.loadLot(ctx, caller, id, "lot.get", access.Member)
}

func (s *catalogService) CreateLot(ctx context.Context, caller *access.Caller, establishmentID int64, in LotInput) (*models.Lot, error) {
	est, err := s.loadEstablishment(ctx, caller, establishmentID, "lot.create", access.Establishment)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewValidationError("establishment_id", "does not reference a known establishment")
		}
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	lot := &models.Lot{
		ClientID:        est.ClientID,
		EstablishmentID: est.ID,
		LotCode:         in.LotCode,
		Name:            in.Name,
	}
	if err := s.lotRepo.Create(ctx, lot); err != nil {
		return nil, err
	}
	return lot, nil
}

func (s *catalogService) UpdateLot(ctx context.Context, caller *access.Caller, id int64, in LotInput) (*models.Lot, error) {
	lot, err := s.loadLot(ctx, caller, id, "lot.update", access.Establishment)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	lot.LotCode = in.LotCode
	lot.Name = in.Name
	if err := s.lotRepo.Update(ctx, lot); err != nil {
		return nil, err
	}
	return lot, nil
}

func (s *catalogService) DeleteLot(ctx context.Context, caller *access.Caller, id int64) error {
	if _, err := s.loadLot(ctx, caller, id, "lot.delete", access.Establishment); err != nil {
		return err
	}
	return s.lotRepo.SoftDelete(ctx, id)
}

// --- slots ---

func (s *catalogService) ListSlots(ctx context.Context, caller *access.Caller, lotID int64, opts models.ListOptions) (models.Page[models.Slot], error) {
	var page models.Page[models.Slot]
	if _, err := s.loadLot(ctx, caller, lotID, "slot.list", access.Member); err != nil {
		return page, err
	}
	opts, err := s.listOptions(ctx, caller, "slots", opts)
	if err != nil {
		return page, err
	}

	items, total, err := s.slotRepo.ListByLot(ctx, lotID, opts)
	if err != nil {
		return page, err
	}
	return models.NewPage(items, total, opts), nil
}

func (s *catalogService) loadSlot(ctx context.Context, caller *access.Caller, id int64, op string, required access.Level) (*models.Slot, error) {
	if err := requireTenantScope(caller); err != nil {
		return nil, err
	}
	slot, err := s.slotRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, op, access.EstablishmentTarget(slot.ClientID, slot.EstablishmentID), required); err != nil {
		return nil, err
	}
	return slot, nil
}

func (s *catalogService) GetSlot(ctx context.Context, caller *access.Caller, id int64) (*models.Slot, error) {
	return s.loadSlot(ctx, caller, id, "slot.get", access.Member)
}

func (s *catalogService) CreateSlot(ctx context.Context, caller *access.Caller, lotID int64, in SlotInput) (*models.Slot, error) {
	lot, err := s.loadLot(ctx, caller, lotID, "slot.create", access.Establishment)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	slot := &models.Slot{
		ClientID:        lot.ClientID,
		EstablishmentID: lot.EstablishmentID,
		LotID:           lot.ID,
		SlotCode:        in.SlotCode,
		SlotTypeID:      in.SlotTypeID,
		Polygon:         in.Polygon,
		Active:          in.Active == nil || *in.Active,
	}
	if err := s.slotRepo.Create(ctx, slot); err != nil {
		return nil, err
	}
	return slot, nil
}

func (s *catalogService) UpdateSlot(ctx context.Context, caller *access.Caller, id int64, in SlotInput) (*models.Slot, error) {
	slot, err := s.loadSlot(ctx, caller, id, "slot.update", access.Establishment)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	slot.SlotCode = in.SlotCode
	slot.SlotTypeID = in.SlotTypeID
	if in.Polygon != nil {
		slot.Polygon = in.Polygon
	}
	if in.Active != nil {
		slot.Active = *in.Active
	}
	if err := s.slotRepo.Update(ctx, slot); err != nil {
		return nil, err
	}
	return slot, nil
}

func (s *catalogService) DeleteSlot(ctx context.Context, caller *access.Caller, id int64) error {
	if _, err := s.loadSlot(ctx, caller, id, "slot.delete", access.Establishment); err != nil {
		return err
	}
	return s.slotRepo.SoftDelete(ctx, id)
}

func (s *catalogService) ListLookups(ctx context.Context, table repositories.LookupTable) ([]models.LookupType, error) {
	items, err := s.lookupRepo.List(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	if items == nil {
		items = []models.LookupType{}
	}
	return items, nil
}

var _ CatalogService = (*catalogService)(nil)
