package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jvaguiar05/smart-park-system/pkg/apperrors"
	"github.com/jvaguiar05/smart-park-system/pkg/database"
	"github.com/jvaguiar05/smart-park-system/pkg/models"
	sqlsafe "github.com/jvaguiar05/smart-park-system/pkg/sql"
)

// PublicRepository serves the unauthenticated directory. Only ACTIVE clients are visible.
type PublicRepository interface {
	ListEstablishments(ctx context.Context, opts models.ListOptions) ([]models.PublicEstablishment, int, error)
	// ListSlotStatuses returns the active slots of an establishment with their current status.
	// Returns ErrNotFound when the establishment is missing or its client is not ACTIVE.
	ListSlotStatuses(ctx context.Context, establishmentID int64) ([]models.PublicSlotStatus, error)
}

type publicRepository struct{}

// NewPublicRepository creates a new public directory repository.
func NewPublicRepository() PublicRepository {
	return &publicRepository{}
}

func (r *publicRepository) ListEstablishments(ctx context.Context, opts models.ListOptions) ([]models.PublicEstablishment, int, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, 0, fmt.Errorf("no database scope in context")
	}
	opts = opts.Normalize()

	w := &sqlsafe.Where{}
	w.Add("e.deleted_at IS NULL")
	w.Add("c.deleted_at IS NULL")
	w.Add("c.onboarding_status = " + w.Arg(models.OnboardingActive))
	w.Search(opts.Search, "e.name", "e.city", "e.state")

	from := `
		FROM establishments e
		JOIN clients c ON c.id = e.client_id
		LEFT JOIN store_types st ON st.id = e.store_type_id AND st.deleted_at IS NULL `

	var total int
	if err := scope.Conn.QueryRow(ctx, `SELECT COUNT(*) `+from+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count public establishments: %w", err)
	}

	query := `SELECT e.id, e.name, st.name, e.address, e.city, e.state, e.lat, e.lng ` +
		from + w.SQL() + ` ORDER BY e.name, e.id ` + w.Page(opts.PageSize, opts.Offset())

	rows, err := scope.Conn.Query(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list public establishments: %w", err)
	}
	defer rows.Close()

	var result []models.PublicEstablishment
	for rows.Next() {
		var pe models.PublicEstablishment
		if err := rows.Scan(&pe.ID, &pe.Name, &pe.StoreType, &pe.Address, &pe.City, &pe.State, &pe.Lat, &pe.Lng); err != nil {
			return nil, 0, fmt.Errorf("failed to scan public establishment: %w", err)
		}
		result = append(result, pe)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating public establishments: %w", err)
	}
	return result, total, nil
}

func (r *publicRepository) ListSlotStatuses(ctx context.Context, establishmentID int64) ([]models.PublicSlotStatus, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	var found int64
	err := scope.Conn.QueryRow(ctx, `
		SELECT e.id
		FROM establishments e
		JOIN clients c ON c.id = e.client_id
		WHERE e.id = $1 AND e.deleted_at IS NULL AND c.deleted_at IS NULL AND c.onboarding_status = $2`,
		establishmentID, models.OnboardingActive).Scan(&found)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get public establishment: %w", err)
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT s.id, s.slot_code, l.lot_code, ss.status, vt.name, ss.changed_at
		FROM slots s
		JOIN lots l ON l.id = s.lot_id AND l.deleted_at IS NULL
		LEFT JOIN slot_status ss ON ss.slot_id = s.id
		LEFT JOIN vehicle_types vt ON vt.id = ss.vehicle_type_id
		WHERE l.establishment_id = $1 AND s.active AND s.deleted_at IS NULL
		ORDER BY l.lot_code, s.slot_code, s.id`, establishmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list public slots: %w", err)
	}
	defer rows.Close()

	result := []models.PublicSlotStatus{}
	for rows.Next() {
		var (
			ps          models.PublicSlotStatus
			status      *models.SlotStatusValue
			vehicleType *string
			changedAt   *time.Time
		)
		if err := rows.Scan(&ps.SlotID, &ps.SlotCode, &ps.LotCode, &status, &vehicleType, &changedAt); err != nil {
			return nil, fmt.Errorf("failed to scan public slot: %w", err)
		}
		if status != nil {
			ps.Status = &models.PublicStatusDetail{
				Status:      *status,
				VehicleType: vehicleType,
				ChangedAt:   *changedAt,
			}
		}
		result = append(result, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating public slots: %w", err)
	}
	return result, nil
}

var _ PublicRepository = (*publicRepository)(nil)
