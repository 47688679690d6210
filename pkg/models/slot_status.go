package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jvaguiar05/smart-park-system/pkg/apperrors"
)

// SlotStatusValue is the occupancy state of a slot.
// Any value may follow any other; there is no enforced transition graph.
type SlotStatusValue string

const (
	SlotFree        SlotStatusValue = "FREE"
	SlotOccupied    SlotStatusValue = "OCCUPIED"
	SlotReserved    SlotStatusValue = "RESERVED"
	SlotMaintenance SlotStatusValue = "MAINTENANCE"
	SlotDisabled    SlotStatusValue = "DISABLED"
)

// ValidSlotStatuses contains all valid slot status values.
var ValidSlotStatuses = []SlotStatusValue{SlotFree, SlotOccupied, SlotReserved, SlotMaintenance, SlotDisabled}

// IsValid reports whether s is one of the five recognized statuses.
func (s SlotStatusValue) IsValid() bool {
	for _, v := range ValidSlotStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// maxConfidence is the largest value representable as NUMERIC(4,3).
var maxConfidence = decimal.RequireFromString("9.999")

// ValidateConfidence checks that c fits NUMERIC(4,3) and is not negative.
func ValidateConfidence(c decimal.Decimal) error {
	if c.IsNegative() {
		return apperrors.NewValidationError("confidence", "must not be negative")
	}
	if c.GreaterThan(maxConfidence) {
		return apperrors.NewValidationError("confidence", "must be at most 9.999")
	}
	if !c.Equal(c.Round(3)) {
		return apperrors.NewValidationError("confidence", "must have at most 3 decimal places")
	}
	return nil
}

// SlotStatus is the single current status row of a slot.
type SlotStatus struct {
	ID            int64               `json:"id"`
	SlotID        int64               `json:"slot_id"`
	Status        SlotStatusValue     `json:"status"`
	VehicleTypeID *int64              `json:"vehicle_type_id"`
	Confidence    decimal.NullDecimal `json:"confidence"`
	ChangedAt     time.Time           `json:"changed_at"`
}

// SlotStatusHistory is one append-only record of an applied observation.
type SlotStatusHistory struct {
	ID            int64               `json:"id"`
	SlotID        int64               `json:"slot_id"`
	PrevStatus    *SlotStatusValue    `json:"prev_status"`
	Status        SlotStatusValue     `json:"status"`
	VehicleTypeID *int64              `json:"vehicle_type_id"`
	Confidence    decimal.NullDecimal `json:"confidence"`
	EventID       *uuid.UUID          `json:"event_id"`
	RecordedAt    time.Time           `json:"recorded_at"`
}

// EventType classifies a hardware-originated status observation.
type EventType string

const (
	EventStatusChange     EventType = "STATUS_CHANGE"
	EventVehicleDetected  EventType = "VEHICLE_DETECTED"
	EventVehicleLeft      EventType = "VEHICLE_LEFT"
	EventMaintenanceStart EventType = "MAINTENANCE_START"
	EventMaintenanceEnd   EventType = "MAINTENANCE_END"
	EventReservationStart EventType = "RESERVATION_START"
	EventReservationEnd   EventType = "RESERVATION_END"
)

// ValidEventTypes contains all valid event type values.
var ValidEventTypes = []EventType{
	EventStatusChange, EventVehicleDetected, EventVehicleLeft,
	EventMaintenanceStart, EventMaintenanceEnd, EventReservationStart, EventReservationEnd,
}

// IsValid reports whether t is a recognized event type.
func (t EventType) IsValid() bool {
	for _, v := range ValidEventTypes {
		if v == t {
			return true
		}
	}
	return false
}

// DeriveEventType classifies a transition when the reporter did not name one.
// prev is nil for the first observation of a slot.
func DeriveEventType(prev *SlotStatusValue, curr SlotStatusValue) EventType {
	var p SlotStatusValue
	if prev != nil {
		p = *prev
	}
	if p == curr {
		return EventStatusChange
	}
	switch {
	case curr == SlotOccupied:
		return EventVehicleDetected
	case curr == SlotMaintenance:
		return EventMaintenanceStart
	case curr == SlotReserved:
		return EventReservationStart
	case p == SlotOccupied && curr == SlotFree:
		return EventVehicleLeft
	case p == SlotMaintenance:
		return EventMaintenanceEnd
	case p == SlotReserved:
		return EventReservationEnd
	}
	return EventStatusChange
}

// SlotStatusEvent is the audit record of a hardware observation.
type SlotStatusEvent struct {
	ID            int64               `json:"id"`
	ClientID      int64               `json:"client_id"`
	EventID       uuid.UUID           `json:"event_id"`
	EventType     EventType           `json:"event_type"`
	OccurredAt    time.Time           `json:"occurred_at"`
	ReceivedAt    time.Time           `json:"received_at"`
	LotID         int64               `json:"lot_id"`
	CameraID      *int64              `json:"camera_id"`
	Sequence      *int64              `json:"sequence"`
	SlotID        int64               `json:"slot_id"`
	PrevStatus    *SlotStatusValue    `json:"prev_status"`
	PrevVehicleID *int64              `json:"prev_vehicle_id"`
	CurrStatus    SlotStatusValue     `json:"curr_status"`
	CurrVehicleID *int64              `json:"curr_vehicle_id"`
	Confidence    decimal.NullDecimal `json:"confidence"`
	SourceModel   *string             `json:"source_model"`
	SourceVersion *string             `json:"source_version"`
}

// IngestDelay is the gap between the observation and its arrival.
func (e *SlotStatusEvent) IngestDelay() time.Duration {
	return e.ReceivedAt.Sub(e.OccurredAt)
}

// EventSource describes the hardware origin of an observation.
// EventType may be empty, in which case it is derived from the transition.
type EventSource struct {
	EventID       uuid.UUID
	EventType     EventType
	OccurredAt    time.Time
	ReceivedAt    time.Time
	CameraID      *int64
	Sequence      *int64
	SourceModel   *string
	SourceVersion *string
}

// StatusChange is the input to a single atomic status write.
type StatusChange struct {
	Status        SlotStatusValue
	VehicleTypeID Patch[int64]
	Confidence    Patch[decimal.Decimal]
	// Event is set on the hardware path only.
	Event *EventSource
}

// StatusTransition is the outcome of an applied StatusChange.
type StatusTransition struct {
	Current    SlotStatus
	PrevStatus *SlotStatusValue
	History    SlotStatusHistory
	Event      *SlotStatusEvent
}

// Created reports whether this transition created the slot's status row.
func (t *StatusTransition) Created() bool {
	return t.PrevStatus == nil
}
