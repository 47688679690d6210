package repositories

import (
	"context"
	"fmt"

	"github.com/jvaguiar05/smart-park-system/pkg/database"
	"github.com/jvaguiar05/smart-park-system/pkg/models"
	sqlsafe "github.com/jvaguiar05/smart-park-system/pkg/sql"
)

// EventSearchFields are matched by the free-text search of the event log.
var EventSearchFields = []string{"e.event_type", "s.slot_code", "l.lot_code"}

// EventRepository reads the hardware event log. Rows are written by SlotStatusRepository.Apply.
type EventRepository interface {
	ListBySlot(ctx context.Context, slotID int64, opts models.ListOptions) ([]models.SlotStatusEvent, int, error)
}

type eventRepository struct{}

// NewEventRepository creates a new event log repository.
func NewEventRepository() EventRepository {
	return &eventRepository{}
}

func (r *eventRepository) ListBySlot(ctx context.Context, slotID int64, opts models.ListOptions) ([]models.SlotStatusEvent, int, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, 0, fmt.Errorf("no database scope in context")
	}
	opts = opts.Normalize()

	w := &sqlsafe.Where{}
	w.Add("e.slot_id = " + w.Arg(slotID))
	w.Search(opts.Search, EventSearchFields...)

	from := `
		FROM slot_status_events e
		JOIN slots s ON s.id = e.slot_id
		JOIN lots l ON l.id = e.lot_id `

	var total int
	if err := scope.Conn.QueryRow(ctx, `SELECT COUNT(*) `+from+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	query := `
		SELECT e.id, e.client_id, e.event_id, e.event_type, e.occurred_at, e.received_at, e.lot_id,
		       e.camera_id, e.sequence, e.slot_id, e.prev_status, e.prev_vehicle_id, e.curr_status,
		       e.curr_vehicle_id, e.confidence::text, e.source_model, e.source_version ` +
		from + w.SQL() + `
		ORDER BY e.occurred_at DESC, e.id DESC ` + w.Page(opts.PageSize, opts.Offset())

	rows, err := scope.Conn.Query(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []models.SlotStatusEvent
	for rows.Next() {
		var e models.SlotStatusEvent
		err := rows.Scan(&e.ID, &e.ClientID, &e.EventID, &e.EventType, &e.OccurredAt, &e.ReceivedAt, &e.LotID,
			&e.CameraID, &e.Sequence, &e.SlotID, &e.PrevStatus, &e.PrevVehicleID, &e.CurrStatus,
			&e.CurrVehicleID, &e.Confidence, &e.SourceModel, &e.SourceVersion)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating events: %w", err)
	}
	return events, total, nil
}

var _ EventRepository = (*eventRepository)(nil)
