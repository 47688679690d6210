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

// SlotSearchFields are matched by the free-text search of slot lists.
var SlotSearchFields = []string{"s.slot_code"}

// SlotRepository defines the interface for slot data access.
type SlotRepository interface {
	Create(ctx context.Context, slot *models.Slot) error
	Get(ctx context.Context, id int64) (*models.Slot, error)
	// GetOwner resolves the tenant placement of a live slot.
	GetOwner(ctx context.Context, id int64) (*models.SlotOwner, error)
	ListByLot(ctx context.Context, lotID int64, opts models.ListOptions) ([]models.Slot, int, error)
	Update(ctx context.Context, slot *models.Slot) error
	SoftDelete(ctx context.Context, id int64) error
}

type slotRepository struct{}

// NewSlotRepository creates a new slot repository.
func NewSlotRepository() SlotRepository {
	return &slotRepository{}
}

const slotSelect = `
	SELECT s.id, s.client_id, l.establishment_id, s.lot_id, s.slot_code, s.slot_type_id, s.polygon_json,
	       s.active, s.created_at, s.updated_at, s.deleted_at
	FROM slots s
	JOIN lots l ON l.id = s.lot_id`

func scanSlot(row pgx.Row) (*models.Slot, error) {
	var s models.Slot
	err := row.Scan(&s.ID, &s.ClientID, &s.EstablishmentID, &s.LotID, &s.SlotCode, &s.SlotTypeID, &s.Polygon,
		&s.Active, &s.CreatedAt, &s.UpdatedAt, &s.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func slotWriteError(op string, err error) error {
	switch {
	case isUniqueViolation(err):
		return apperrors.NewValidationError("slot_code", "a slot with this code already exists in the lot")
	case isForeignKeyViolation(err):
		return apperrors.NewValidationError("slot_type_id", "does not reference a known slot type")
	}
	return fmt.Errorf("failed to %s slot: %w", op, err)
}

// Create inserts a slot. ClientID must already match the lot's client.
func (r *slotRepository) Create(ctx context.Context, slot *models.Slot) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	now := time.Now()
	slot.CreatedAt = now
	slot.UpdatedAt = now

	query := `
		INSERT INTO slots (client_id, lot_id, slot_code, slot_type_id, polygon_json, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, COALESCE($5::jsonb, '[]'::jsonb), $6, $7, $8)
		RETURNING id, polygon_json`

	err := scope.Conn.QueryRow(ctx, query,
		slot.ClientID, slot.LotID, slot.SlotCode, slot.SlotTypeID, slot.Polygon, slot.Active,
		slot.CreatedAt, slot.UpdatedAt,
	).Scan(&slot.ID, &slot.Polygon)
	if err != nil {
		return slotWriteError("create", err)
	}
	return nil
}

func (r *slotRepository) Get(ctx context.Context, id int64) (*models.Slot, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	slot, err := scanSlot(scope.Conn.QueryRow(ctx, slotSelect+` WHERE s.id = $1 AND s.deleted_at IS NULL`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return slot, nil
}

func (r *slotRepository) GetOwner(ctx context.Context, id int64) (*models.SlotOwner, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT s.id, s.client_id, l.establishment_id, s.lot_id
		FROM slots s
		JOIN lots l ON l.id = s.lot_id
		WHERE s.id = $1 AND s.deleted_at IS NULL`

	var owner models.SlotOwner
	err := scope.Conn.QueryRow(ctx, query, id).Scan(&owner.SlotID, &owner.ClientID, &owner.EstablishmentID, &owner.LotID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get slot owner: %w", err)
	}
	return &owner, nil
}

func (r *slotRepository) ListByLot(ctx context.Context, lotID int64, opts models.ListOptions) ([]models.Slot, int, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, 0, fmt.Errorf("no database scope in context")
	}
	opts = opts.Normalize()

	w := &sqlsafe.Where{}
	w.Add("s.lot_id = " + w.Arg(lotID))
	applyDeleted(w, "s.deleted_at", opts.IncludeDeleted)
	w.Search(opts.Search, SlotSearchFields...)

	var total int
	if err := scope.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM slots s `+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count slots: %w", err)
	}

	query := slotSelect + ` ` + w.SQL() + ` ORDER BY s.slot_code, s.id ` + w.Page(opts.PageSize, opts.Offset())

	rows, err := scope.Conn.Query(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list slots: %w", err)
	}
	defer rows.Close()

	var slots []models.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, *slot)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating slots: %w", err)
	}
	return slots, total, nil
}

// Update changes the code, type, polygon and active flag of a slot.
func (r *slotRepository) Update(ctx context.Context, slot *models.Slot) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		UPDATE slots
		SET slot_code = $2, slot_type_id = $3, polygon_json = COALESCE($4::jsonb, polygon_json), active = $5, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := scope.Conn.Exec(ctx, query, slot.ID, slot.SlotCode, slot.SlotTypeID, slot.Polygon, slot.Active)
	if err != nil {
		return slotWriteError("update", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	updated, err := r.Get(ctx, slot.ID)
	if err != nil {
		return err
	}
	*slot = *updated
	return nil
}

// SoftDelete marks the slot deleted. Its status and history rows are kept.
func (r *slotRepository) SoftDelete(ctx context.Context, id int64) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	result, err := scope.Conn.Exec(ctx,
		`UPDATE slots SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

var _ SlotRepository = (*slotRepository)(nil)
