package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jvaguiar05/smart-park-system/pkg/access"
	"github.com/jvaguiar05/smart-park-system/pkg/apperrors"
	"github.com/jvaguiar05/smart-park-system/pkg/models"
	"github.com/jvaguiar05/smart-park-system/pkg/repositories"
)

// MemberInput describes a membership grant.
type MemberInput struct {
	UserID          uuid.UUID
	Role            models.Role
	EstablishmentID *int64
}

// TenantService manages clients and their memberships.
type TenantService interface {
	// MyClients lists the caller's own memberships. It needs no tenant scope.
	MyClients(ctx context.Context, caller *access.Caller) ([]models.MyClient, error)

	ListClients(ctx context.Context, caller *access.Caller, opts models.ListOptions) (models.Page[models.Client], error)
	CreateClient(ctx context.Context, caller *access.Caller, name string) (*models.Client, error)
	UpdateOnboardingStatus(ctx context.Context, caller *access.Caller, clientID int64, status models.OnboardingStatus) (*models.Client, error)

	ListMembers(ctx context.Context, caller *access.Caller, clientID int64, opts models.ListOptions) (models.Page[models.ClientMember], error)
	AddMember(ctx context.Context, caller *access.Caller, clientID int64, in MemberInput) (*models.ClientMember, error)
	RemoveMember(ctx context.Context, caller *access.Caller, clientID, memberID int64) error
}

type tenantService struct {
	guard
	clientRepo repositories.ClientRepository
	memberRepo repositories.MemberRepository
}

// NewTenantService creates a tenant service with dependencies.
func NewTenantService(
	clientRepo repositories.ClientRepository,
	memberRepo repositories.MemberRepository,
	auditor SecurityAuditor,
	logger *zap.Logger,
) TenantService {
	return &tenantService{
		guard:      guard{auditor: auditor, logger: logger.Named("tenants")},
		clientRepo: clientRepo,
		memberRepo: memberRepo,
	}
}

func (s *tenantService) MyClients(ctx context.Context, caller *access.Caller) ([]models.MyClient, error) {
	items, err := s.clientRepo.ListForUser(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.MyClient{}
	}
	return items, nil
}

func (s *tenantService) ListClients(ctx context.Context, caller *access.Caller, opts models.ListOptions) (models.Page[models.Client], error) {
	var page models.Page[models.Client]
	if err := s.requireSystem(ctx, caller, "client.list"); err != nil {
		return page, err
	}
	opts, err := s.listOptions(ctx, caller, "clients", opts)
	if err != nil {
		return page, err
	}

	items, total, err := s.clientRepo.List(ctx, opts)
	if err != nil {
		return page, err
	}
	return models.NewPage(items, total, opts), nil
}

// CreateClient registers a tenant. New clients start PENDING and stay off the public directory.
func (s *tenantService) CreateClient(ctx context.Context, caller *access.Caller, name string) (*models.Client, error) {
	if err := s.requireSystem(ctx, caller, "client.create"); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("name", "is required")
	}

	client := &models.Client{Name: name, OnboardingStatus: models.OnboardingPending}
	if err := s.clientRepo.Create(ctx, client); err != nil {
		return nil, err
	}
	s.logger.Info("Created client", zap.Int64("client_id", client.ID))
	return client, nil
}

func (s *tenantService) UpdateOnboardingStatus(ctx context.Context, caller *access.Caller, clientID int64, status models.OnboardingStatus) (*models.Client, error) {
	if err := s.requireSystem(ctx, caller, "client.onboarding"); err != nil {
		return nil, err
	}
	if !status.IsValid() {
		return nil, apperrors.NewValidationError("onboarding_status", "must be one of: PENDING, ACTIVE, SUSPENDED, CANCELLED")
	}

	client, err := s.clientRepo.UpdateOnboardingStatus(ctx, clientID, status)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Updated client onboarding status",
		zap.Int64("client_id", clientID),
		zap.String("status", string(status)))
	return client, nil
}

// authorizeClientAdmin requires client-wide administration of an existing client.
func (s *tenantService) authorizeClientAdmin(ctx context.Context, caller *access.Caller, clientID int64, op string) error {
	if err := requireTenantScope(caller); err != nil {
		return err
	}
	if _, err := s.clientRepo.Get(ctx, clientID); err != nil {
		return err
	}
	return s.authorize(ctx, caller, op, access.ClientTarget(clientID), access.Client)
}

func (s *tenantService) ListMembers(ctx context.Context, caller *access.Caller, clientID int64, opts models.ListOptions) (models.Page[models.ClientMember], error) {
	var page models.Page[models.ClientMember]
	if err := s.authorizeClientAdmin(ctx, caller, clientID, "member.list"); err != nil {
		return page, err
	}
	opts, err := s.listOptions(ctx, caller, "client_members", opts)
	if err != nil {
		return page, err
	}

	items, total, err := s.memberRepo.List(ctx, clientID, opts)
	if err != nil {
		return page, err
	}
	return models.NewPage(items, total, opts), nil
}

func (s *tenantService) AddMember(ctx context.Context, caller *access.Caller, clientID int64, in MemberInput) (*models.ClientMember, error) {
	if err := s.authorizeClientAdmin(ctx, caller, clientID, "member.add"); err != nil {
		return nil, err
	}

	member := &models.ClientMember{
		ClientID:        clientID,
		UserID:          in.UserID,
		Role:            in.Role,
		EstablishmentID: in.EstablishmentID,
	}
	if err := member.Validate(); err != nil {
		return nil, err
	}
	if err := s.memberRepo.Add(ctx, member); err != nil {
		return nil, err
	}
	s.logger.Info("Added client member",
		zap.Int64("client_id", clientID),
		zap.String("user_id", in.UserID.String()),
		zap.String("role", string(in.Role)))
	return member, nil
}

func (s *tenantService) RemoveMember(ctx context.Context, caller *access.Caller, clientID, memberID int64) error {
	if err := s.authorizeClientAdmin(ctx, caller, clientID, "member.remove"); err != nil {
		return err
	}
	if err := s.memberRepo.Remove(ctx, clientID, memberID); err != nil {
		return err
	}
	s.logger.Info("Removed client member",
		zap.Int64("client_id", clientID),
		zap.Int64("member_id", memberID))
	return nil
}

var _ TenantService = (*tenantService)(nil)
