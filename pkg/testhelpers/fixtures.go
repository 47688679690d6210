package testhelpers

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

// Tenant is a minimal client hierarchy inserted directly with SQL.
type Tenant struct {
	ClientID        int64
	EstablishmentID int64
	LotID           int64
	SlotID          int64
	SlotTypeID      int64
	VehicleTypeID   int64
}

// SeedTenant inserts one ACTIVE client with an establishment, a lot and a slot.
// name keeps lookup rows and codes unique when a test needs several tenants.
func (e *EngineDB) SeedTenant(t *testing.T, name string) *Tenant {
	t.Helper()
	ctx := context.Background()
	tn := &Tenant{}

	steps := []struct {
		query string
		args  []any
		dest  *int64
	}{
		{`INSERT INTO clients (name, onboarding_status) VALUES ($1, 'ACTIVE') RETURNING id`,
			[]any{name}, &tn.ClientID},
		{`INSERT INTO slot_types (name) VALUES ($1) RETURNING id`,
			[]any{name + "-standard"}, &tn.SlotTypeID},
		{`INSERT INTO vehicle_types (name) VALUES ($1) RETURNING id`,
			[]any{name + "-car"}, &tn.VehicleTypeID},
	}
	for _, s := range steps {
		if err := e.DB.QueryRow(ctx, s.query, s.args...).Scan(s.dest); err != nil {
			t.Fatalf("failed to seed tenant %s: %v", name, err)
		}
	}

	if err := e.DB.QueryRow(ctx,
		`INSERT INTO establishments (client_id, name, city) VALUES ($1, $2, 'Recife') RETURNING id`,
		tn.ClientID, name+" Mall").Scan(&tn.EstablishmentID); err != nil {
		t.Fatalf("failed to seed establishment: %v", err)
	}
	if err := e.DB.QueryRow(ctx,
		`INSERT INTO lots (client_id, establishment_id, lot_code, name) VALUES ($1, $2, 'L1', 'Level 1') RETURNING id`,
		tn.ClientID, tn.EstablishmentID).Scan(&tn.LotID); err != nil {
		t.Fatalf("failed to seed lot: %v", err)
	}
	tn.SlotID = e.AddSlot(t, tn, "S001")
	return tn
}

// AddSlot inserts another active slot in the tenant's lot.
func (e *EngineDB) AddSlot(t *testing.T, tn *Tenant, code string) int64 {
	t.Helper()
	var id int64
	err := e.DB.QueryRow(context.Background(),
		`INSERT INTO slots (client_id, lot_id, slot_code, slot_type_id) VALUES ($1, $2, $3, $4) RETURNING id`,
		tn.ClientID, tn.LotID, code, tn.SlotTypeID).Scan(&id)
	if err != nil {
		t.Fatalf("failed to seed slot %s: %v", code, err)
	}
	return id
}

// AddMember grants userID a membership on the tenant's client.
func (e *EngineDB) AddMember(t *testing.T, tn *Tenant, userID uuid.UUID, role string, establishmentID *int64) int64 {
	t.Helper()
	var id int64
	err := e.DB.QueryRow(context.Background(),
		`INSERT INTO client_members (client_id, user_id, role, establishment_id) VALUES ($1, $2, $3, $4) RETURNING id`,
		tn.ClientID, userID, role, establishmentID).Scan(&id)
	if err != nil {
		t.Fatalf("failed to seed member: %v", err)
	}
	return id
}
