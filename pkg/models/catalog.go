package models

import (
	"encoding/json"
	"time"
)

// LookupType is a named reference row (store type, slot type, vehicle type).
type LookupType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Establishment is a physical site owned by a client.
type Establishment struct {
	ID          int64      `json:"id"`
	ClientID    int64      `json:"client_id"`
	Name        string     `json:"name"`
	StoreTypeID *int64     `json:"store_type_id,omitempty"`
	Address     *string    `json:"address,omitempty"`
	City        *string    `json:"city,omitempty"`
	State       *string    `json:"state,omitempty"`
	Lat         *float64   `json:"lat,omitempty"`
	Lng         *float64   `json:"lng,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Lot is a parking area within an establishment. ClientID mirrors the establishment's client.
type Lot struct {
	ID              int64      `json:"id"`
	ClientID        int64      `json:"client_id"`
	EstablishmentID int64      `json:"establishment_id"`
	LotCode         string     `json:"lot_code"`
	Name            *string    `json:"name,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

// Slot is an individual parking space. Polygon is the geometry consumed by the vision system.
type Slot struct {
	ID              int64           `json:"id"`
	ClientID        int64           `json:"client_id"`
	EstablishmentID int64           `json:"establishment_id"`
	LotID           int64           `json:"lot_id"`
	SlotCode        string          `json:"slot_code"`
	SlotTypeID      int64           `json:"slot_type_id"`
	Polygon         json.RawMessage `json:"polygon"`
	Active          bool            `json:"active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       *time.Time      `json:"deleted_at,omitempty"`
}

// SlotOwner is the tenant placement of a slot, used for access decisions.
type SlotOwner struct {
	SlotID          int64
	ClientID        int64
	EstablishmentID int64
	LotID           int64
}

// PublicEstablishment is the unauthenticated directory projection.
type PublicEstablishment struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	StoreType *string  `json:"store_type"`
	Address   *string  `json:"address"`
	City      *string  `json:"city"`
	State     *string  `json:"state"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
}

// PublicSlotStatus is the unauthenticated projection of one active slot.
type PublicSlotStatus struct {
	SlotID   int64               `json:"id"`
	SlotCode string              `json:"slot_code"`
	LotCode  string              `json:"lot_code"`
	Status   *PublicStatusDetail `json:"status"`
}

// PublicStatusDetail omits confidence and internal ids.
type PublicStatusDetail struct {
	Status      SlotStatusValue `json:"status"`
	VehicleType *string         `json:"vehicle_type"`
	ChangedAt   time.Time       `json:"changed_at"`
}
