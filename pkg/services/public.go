package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/jvaguiar05/smart-park-system/pkg/models"
	"github.com/jvaguiar05/smart-park-system/pkg/repositories"
)

// PublicService serves the unauthenticated directory of ACTIVE clients.
type PublicService interface {
	ListEstablishments(ctx context.Context, opts models.ListOptions) (models.Page[models.PublicEstablishment], error)
	ListSlotStatuses(ctx context.Context, establishmentID int64) ([]models.PublicSlotStatus, error)
}

type publicService struct {
	guard
	publicRepo repositories.PublicRepository
}

// NewPublicService creates a public directory service.
func NewPublicService(publicRepo repositories.PublicRepository, auditor SecurityAuditor, logger *zap.Logger) PublicService {
	return &publicService{
		guard:      guard{auditor: auditor, logger: logger.Named("public")},
		publicRepo: publicRepo,
	}
}

func (s *publicService) ListEstablishments(ctx context.Context, opts models.ListOptions) (models.Page[models.PublicEstablishment], error) {
	var page models.Page[models.PublicEstablishment]
	opts, err := s.listOptions(ctx, nil, "public_establishments", opts)
	if err != nil {
		return page, err
	}

	items, total, err := s.publicRepo.ListEstablishments(ctx, opts)
	if err != nil {
		return page, err
	}
	return models.NewPage(items, total, opts), nil
}

func (s *publicService) ListSlotStatuses(ctx context.Context, establishmentID int64) ([]models.PublicSlotStatus, error) {
	return s.publicRepo.ListSlotStatuses(ctx, establishmentID)
}

var _ PublicService = (*publicService)(nil)
