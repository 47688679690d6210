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

// LotSearchFields are matched by the free-text search of lot lists.
var LotSearchFields = []string{"lot_code", "name"}

// LotRepository defines the interface for lot data access.
type LotRepository interface {
	Create(ctx context.Context, lot *models.Lot) error
	Get(ctx context.Context, id int64) (*models.Lot, error)
	// List returns lots visible through filter, optionally within one establishment.
	List(ctx context.Context, filter ClientFilter, establishmentID *int64, opts models.ListOptions) ([]models.Lot, int, error)
	Update(ctx context.Context, lot *models.Lot) error
	SoftDelete(ctx context.Context, id int64) error
}

type lotRepository struct{}

// NewLotRepository creates a new lot repository.
func NewLotRepository() LotRepository {
	return &lotRepository{}
}

const lotColumns = `id, client_id, establishment_id, lot_code, name, created_at, updated_at, deleted_at`

func scanLot(row pgx.Row) (*models.Lot, error) {
	var l models.Lot
	err := row.Scan(&l.ID, &l.ClientID, &l.EstablishmentID, &l.LotCode, &l.Name, &l.CreatedAt, &l.UpdatedAt, &l.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func lotWriteError(op string, err error) error {
	if isUniqueViolation(err) {
		return apperrors.NewValidationError("lot_code", "a lot with this code already exists for the client")
	}
	return fmt.Errorf("failed to %s lot: %w", op, err)
}

// Create inserts a lot. ClientID must already match the establishment's client.
func (r *lotRepository) Create(ctx context.Context, lot *models.Lot) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	now := time.Now()
	lot.CreatedAt = now
	lot.UpdatedAt = now

	query := `
		INSERT INTO lots (client_id, establishment_id, lot_code, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := scope.Conn.QueryRow(ctx, query,
		lot.ClientID, lot.EstablishmentID, lot.LotCode, lot.Name, lot.CreatedAt, lot.UpdatedAt,
	).Scan(&lot.ID)
	if err != nil {
		return lotWriteError("create", err)
	}
	return nil
}

func (r *lotRepository) Get(ctx context.Context, id int64) (*models.Lot, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + lotColumns + ` FROM lots WHERE id = $1 AND deleted_at IS NULL`

	lot, err := scanLot(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get lot: %w", err)
	}
	return lot, nil
}

func (r *lotRepository) List(ctx context.Context, filter ClientFilter, establishmentID *int64, opts models.ListOptions) ([]models.Lot, int, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, 0, fmt.Errorf("no database scope in context")
	}
	opts = opts.Normalize()

	w := &sqlsafe.Where{}
	filter.apply(w, "client_id")
	if establishmentID != nil {
		w.Add("establishment_id = " + w.Arg(*establishmentID))
	}
	applyDeleted(w, "deleted_at", opts.IncludeDeleted)
	w.Search(opts.Search, LotSearchFields...)

	var total int
	if err := scope.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM lots `+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count lots: %w", err)
	}

	query := `SELECT ` + lotColumns + ` FROM lots ` + w.SQL() +
		` ORDER BY lot_code, id ` + w.Page(opts.PageSize, opts.Offset())

	rows, err := scope.Conn.Query(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list lots: %w", err)
	}
	defer rows.Close()

	var lots []models.Lot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan lot: %w", err)
		}
		lots = append(lots, *lot)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating lots: %w", err)
	}
	return lots, total, nil
}

// Update changes the code and name of a lot. A lot never moves between establishments.
func (r *lotRepository) Update(ctx context.Context, lot *models.Lot) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		UPDATE lots SET lot_code = $2, name = $3, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + lotColumns

	updated, err := scanLot(scope.Conn.QueryRow(ctx, query, lot.ID, lot.LotCode, lot.Name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return lotWriteError("update", err)
	}
	*lot = *updated
	return nil
}

// SoftDelete marks the lot deleted. Returns ErrHasChildren while live slots or cameras reference it.
func (r *lotRepository) SoftDelete(ctx context.Context, id int64) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	var locked int64
	err = tx.QueryRow(ctx, `SELECT id FROM lots WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to lock lot: %w", err)
	}

	var hasChildren bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM slots WHERE lot_id = $1 AND deleted_at IS NULL)
		    OR EXISTS (SELECT 1 FROM cameras WHERE lot_id = $1 AND deleted_at IS NULL)`,
		id).Scan(&hasChildren)
	if err != nil {
		return fmt.Errorf("failed to check lot children: %w", err)
	}
	if hasChildren {
		return apperrors.ErrHasChildren
	}

	if _, err := tx.Exec(ctx, `UPDATE lots SET deleted_at = now(), updated_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete lot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

var _ LotRepository = (*lotRepository)(nil)
