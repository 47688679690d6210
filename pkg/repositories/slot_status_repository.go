package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jvaguiar05/smart-park-system/pkg/apperrors"
	"github.com/jvaguiar05/smart-park-system/pkg/database"
	"github.com/jvaguiar05/smart-park-system/pkg/models"
	sqlsafe "github.com/jvaguiar05/smart-park-system/pkg/sql"
)

// HistorySearchFields are matched by the free-text search of status history.
var HistorySearchFields = []string{"status", "event_id::text"}

// SlotStatusRepository owns the one-row-per-slot current status and its history trail.
type SlotStatusRepository interface {
	// Apply writes the new current status, its history row and, for hardware
	// reports, the event row in one transaction under the slot's row lock.
	Apply(ctx context.Context, slotID int64, change *models.StatusChange) (*models.StatusTransition, error)
	Get(ctx context.Context, slotID int64) (*models.SlotStatus, error)
	// ListHistory returns history newest first, in the order the writes were applied.
	ListHistory(ctx context.Context, slotID int64, opts models.ListOptions) ([]models.SlotStatusHistory, int, error)
}

type slotStatusRepository struct{}

// NewSlotStatusRepository creates a new slot status repository.
func NewSlotStatusRepository() SlotStatusRepository {
	return &slotStatusRepository{}
}

// confidenceArg renders a confidence for a "$n::text::numeric" placeholder, keeping exact digits.
func confidenceArg(c *decimal.Decimal) *string {
	if c == nil {
		return nil
	}
	s := c.String()
	return &s
}

func nullDecimal(c *decimal.Decimal) decimal.NullDecimal {
	if c == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *c, Valid: true}
}

func decimalPtr(n decimal.NullDecimal) *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	d := n.Decimal
	return &d
}

func (r *slotStatusRepository) Apply(ctx context.Context, slotID int64, change *models.StatusChange) (*models.StatusTransition, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	// The slot row lock serializes every writer of this slot until commit.
	var clientID, lotID int64
	err = tx.QueryRow(ctx,
		`SELECT client_id, lot_id FROM slots WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`,
		slotID).Scan(&clientID, &lotID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock slot: %w", err)
	}

	if change.VehicleTypeID.Present && change.VehicleTypeID.Value != nil {
		var found int64
		err = tx.QueryRow(ctx,
			`SELECT id FROM vehicle_types WHERE id = $1 AND deleted_at IS NULL`,
			*change.VehicleTypeID.Value).Scan(&found)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewValidationError("vehicle_type_id", "does not reference a known vehicle type")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to check vehicle type: %w", err)
		}
	}

	var (
		prevStatus     *models.SlotStatusValue
		prevVehicle    *int64
		prevConfidence decimal.NullDecimal
		prior          models.SlotStatusValue
	)
	err = tx.QueryRow(ctx,
		`SELECT status, vehicle_type_id, confidence::text FROM slot_status WHERE slot_id = $1`,
		slotID).Scan(&prior, &prevVehicle, &prevConfidence)
	switch {
	case err == nil:
		prevStatus = &prior
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return nil, fmt.Errorf("failed to read current status: %w", err)
	}

	vehicle := change.VehicleTypeID.Apply(prevVehicle)
	confidence := change.Confidence.Apply(decimalPtr(prevConfidence))

	current := models.SlotStatus{
		SlotID:        slotID,
		Status:        change.Status,
		VehicleTypeID: vehicle,
		Confidence:    nullDecimal(confidence),
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO slot_status (slot_id, status, vehicle_type_id, confidence, changed_at)
		VALUES ($1, $2, $3, $4::text::numeric, clock_timestamp())
		ON CONFLICT ON CONSTRAINT uq_slot_status_slot DO UPDATE
		SET status = EXCLUDED.status,
		    vehicle_type_id = EXCLUDED.vehicle_type_id,
		    confidence = EXCLUDED.confidence,
		    changed_at = EXCLUDED.changed_at
		RETURNING id, changed_at`,
		slotID, change.Status, vehicle, confidenceArg(confidence),
	).Scan(&current.ID, &current.ChangedAt)
	if err != nil {
		return nil, statusWriteError(err)
	}

	history := models.SlotStatusHistory{
		SlotID:        slotID,
		PrevStatus:    prevStatus,
		Status:        change.Status,
		VehicleTypeID: vehicle,
		Confidence:    current.Confidence,
	}
	if change.Event != nil {
		eventID := change.Event.EventID
		history.EventID = &eventID
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO slot_status_history (slot_id, prev_status, status, vehicle_type_id, confidence, event_id, recorded_at)
		VALUES ($1, $2, $3, $4, $5::text::numeric, $6, clock_timestamp())
		RETURNING id, recorded_at`,
		slotID, prevStatus, change.Status, vehicle, confidenceArg(confidence), history.EventID,
	).Scan(&history.ID, &history.RecordedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append status history: %w", err)
	}

	transition := &models.StatusTransition{
		Current:    current,
		PrevStatus: prevStatus,
		History:    history,
	}

	if src := change.Event; src != nil {
		event := models.SlotStatusEvent{
			ClientID:      clientID,
			EventID:       src.EventID,
			EventType:     src.EventType,
			OccurredAt:    src.OccurredAt,
			ReceivedAt:    src.ReceivedAt,
			LotID:         lotID,
			CameraID:      src.CameraID,
			Sequence:      src.Sequence,
			SlotID:        slotID,
			PrevStatus:    prevStatus,
			PrevVehicleID: prevVehicle,
			CurrStatus:    change.Status,
			CurrVehicleID: vehicle,
			Confidence:    current.Confidence,
			SourceModel:   src.SourceModel,
			SourceVersion: src.SourceVersion,
		}
		if event.EventType == "" {
			event.EventType = models.DeriveEventType(prevStatus, change.Status)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO slot_status_events (
				client_id, event_id, event_type, occurred_at, received_at, lot_id, camera_id, sequence,
				slot_id, prev_status, prev_vehicle_id, curr_status, curr_vehicle_id, confidence,
				source_model, source_version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14::text::numeric, $15, $16)
			RETURNING id`,
			event.ClientID, event.EventID, event.EventType, event.OccurredAt, event.ReceivedAt,
			event.LotID, event.CameraID, event.Sequence, event.SlotID, event.PrevStatus,
			event.PrevVehicleID, event.CurrStatus, event.CurrVehicleID, confidenceArg(confidence),
			event.SourceModel, event.SourceVersion,
		).Scan(&event.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, apperrors.ErrDuplicateEvent
			}
			return nil, fmt.Errorf("failed to append status event: %w", err)
		}
		transition.Event = &event
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, statusWriteError(err)
	}
	return transition, nil
}

// statusWriteError reports races the database detected as ErrConflict so the caller may retry.
func statusWriteError(err error) error {
	code, constraint := pgErrorCode(err)
	switch {
	case code == pgUniqueViolation && constraint == "uq_slot_status_slot":
		return fmt.Errorf("%w: %v", apperrors.ErrConflict, err)
	case code == "40001" || code == "40P01":
		return fmt.Errorf("%w: %v", apperrors.ErrConflict, err)
	}
	return fmt.Errorf("failed to write slot status: %w", err)
}

func (r *slotStatusRepository) Get(ctx context.Context, slotID int64) (*models.SlotStatus, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	var st models.SlotStatus
	err := scope.Conn.QueryRow(ctx, `
		SELECT id, slot_id, status, vehicle_type_id, confidence::text, changed_at
		FROM slot_status WHERE slot_id = $1`, slotID).
		Scan(&st.ID, &st.SlotID, &st.Status, &st.VehicleTypeID, &st.Confidence, &st.ChangedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get slot status: %w", err)
	}
	return &st, nil
}

func (r *slotStatusRepository) ListHistory(ctx context.Context, slotID int64, opts models.ListOptions) ([]models.SlotStatusHistory, int, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, 0, fmt.Errorf("no database scope in context")
	}
	opts = opts.Normalize()

	w := &sqlsafe.Where{}
	w.Add("slot_id = " + w.Arg(slotID))
	applyDeleted(w, "deleted_at", opts.IncludeDeleted)
	w.Search(opts.Search, HistorySearchFields...)

	var total int
	if err := scope.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM slot_status_history `+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count status history: %w", err)
	}

	query := `
		SELECT id, slot_id, prev_status, status, vehicle_type_id, confidence::text, event_id, recorded_at
		FROM slot_status_history ` + w.SQL() + `
		ORDER BY recorded_at DESC, id DESC ` + w.Page(opts.PageSize, opts.Offset())

	rows, err := scope.Conn.Query(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list status history: %w", err)
	}
	defer rows.Close()

	var history []models.SlotStatusHistory
	for rows.Next() {
		var h models.SlotStatusHistory
		if err := rows.Scan(&h.ID, &h.SlotID, &h.PrevStatus, &h.Status, &h.VehicleTypeID, &h.Confidence, &h.EventID, &h.RecordedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan status history: %w", err)
		}
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating status history: %w", err)
	}
	return history, total, nil
}

var _ SlotStatusRepository = (*slotStatusRepository)(nil)
