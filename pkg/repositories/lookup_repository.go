package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jvaguiar05/smart-park-system/pkg/database"
	"github.com/jvaguiar05/smart-park-system/pkg/models"
)

// LookupTable names one of the read-only reference tables.
type LookupTable string

const (
	StoreTypes   LookupTable = "store_types"
	SlotTypes    LookupTable = "slot_types"
	VehicleTypes LookupTable = "vehicle_types"
)

// LookupRepository reads the store, slot and vehicle type reference lists.
type LookupRepository interface {
	List(ctx context.Context, table LookupTable) ([]models.LookupType, error)
	Exists(ctx context.Context, table LookupTable, id int64) (bool, error)
}

type lookupRepository struct{}

// NewLookupRepository creates a new lookup repository.
func NewLookupRepository() LookupRepository {
	return &lookupRepository{}
}

func (t LookupTable) valid() bool {
	switch t {
	case StoreTypes, SlotTypes, VehicleTypes:
		return true
	}
	return false
}

func (r *lookupRepository) List(ctx context.Context, table LookupTable) ([]models.LookupType, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}
	if !table.valid() {
		return nil, fmt.Errorf("unknown lookup table %q", table)
	}

	rows, err := scope.Conn.Query(ctx,
		`SELECT id, name FROM `+string(table)+` WHERE deleted_at IS NULL ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	defer rows.Close()

	result := []models.LookupType{}
	for rows.Next() {
		var lt models.LookupType
		if err := rows.Scan(&lt.ID, &lt.Name); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		result = append(result, lt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", table, err)
	}
	return result, nil
}

func (r *lookupRepository) Exists(ctx context.Context, table LookupTable, id int64) (bool, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return false, fmt.Errorf("no database scope in context")
	}
	if !table.valid() {
		return false, fmt.Errorf("unknown lookup table %q", table)
	}

	var found int64
	err := scope.Conn.QueryRow(ctx,
		`SELECT id FROM `+string(table)+` WHERE id = $1 AND deleted_at IS NULL`, id).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", table, err)
	}
	return true, nil
}

var _ LookupRepository = (*lookupRepository)(nil)
