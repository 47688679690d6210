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

// EstablishmentSearchFields are matched by the free-text search of establishment lists.
var EstablishmentSearchFields = []string{"name", "address", "city", "state"}

// EstablishmentRepository defines the interface for establishment data access.
type EstablishmentRepository interface {
	Create(ctx context.Context, est *models.Establishment) error
	Get(ctx context.Context, id int64) (*models.Establishment, error)
	List(ctx context.Context, filter ClientFilter, opts models.ListOptions) ([]models.Establishment, int, error)
	Update(ctx context.Context, est *models.Establishment) error
	// SoftDelete marks the establishment deleted. Returns ErrHasChildren while
	// live lots or memberships still reference it.
	SoftDelete(ctx context.Context, id int64) error
}

type establishmentRepository struct{}

// NewEstablishmentRepository creates a new establishment repository.
func NewEstablishmentRepository() EstablishmentRepository {
	return &establishmentRepository{}
}

const establishmentColumns = `id, client_id, name, store_type_id, address, city, state, lat, lng,
	created_at, updated_at, deleted_at`

func scanEstablishment(row pgx.Row) (*models.Establishment, error) {
	var e models.Establishment
	err := row.Scan(&e.ID, &e.ClientID, &e.Name, &e.StoreTypeID, &e.Address, &e.City, &e.State,
		&e.Lat, &e.Lng, &e.CreatedAt, &e.UpdatedAt, &e.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// establishmentWriteError maps constraint failures on insert/update.
func establishmentWriteError(op string, err error) error {
	switch {
	case isUniqueViolation(err):
		return apperrors.NewValidationError("name", "an establishment with this name already exists for the client")
	case isForeignKeyViolation(err):
		return apperrors.NewValidationError("store_type_id", "does not reference a known store type")
	}
	return fmt.Errorf("failed to %s establishment: %w", op, err)
}

func (r *establishmentRepository) Create(ctx context.Context, est *models.Establishment) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	now := time.Now()
	est.CreatedAt = now
	est.UpdatedAt = now

	query := `
		INSERT INTO establishments (client_id, name, store_type_id, address, city, state, lat, lng, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	err := scope.Conn.QueryRow(ctx, query,
		est.ClientID, est.Name, est.StoreTypeID, est.Address, est.City, est.State,
		est.Lat, est.Lng, est.CreatedAt, est.UpdatedAt,
	).Scan(&est.ID)
	if err != nil {
		return establishmentWriteError("create", err)
	}
	return nil
}

func (r *establishmentRepository) Get(ctx context.Context, id int64) (*models.Establishment, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + establishmentColumns + ` FROM establishments WHERE id = $1 AND deleted_at IS NULL`

	est, err := scanEstablishment(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get establishment: %w", err)
	}
	return est, nil
}

func (r *establishmentRepository) List(ctx context.Context, filter ClientFilter, opts models.ListOptions) ([]models.Establishment, int, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, 0, fmt.Errorf("no database scope in context")
	}
	opts = opts.Normalize()

	w := &sqlsafe.Where{}
	filter.apply(w, "client_id")
	applyDeleted(w, "deleted_at", opts.IncludeDeleted)
	w.Search(opts.Search, EstablishmentSearchFields...)

	var total int
	if err := scope.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM establishments `+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count establishments: %w", err)
	}

	query := `SELECT ` + establishmentColumns + ` FROM establishments ` + w.SQL() +
		` ORDER BY name, id ` + w.Page(opts.PageSize, opts.Offset())

	rows, err := scope.Conn.Query(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list establishments: %w", err)
	}
	defer rows.Close()

	var result []models.Establishment
	for rows.Next() {
		est, err := scanEstablishment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan establishment: %w", err)
		}
		result = append(result, *est)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating establishments: %w", err)
	}
	return result, total, nil
}

func (r *establishmentRepository) Update(ctx context.Context, est *models.Establishment) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		UPDATE establishments
		SET name = $2, store_type_id = $3, address = $4, city = $5, state = $6, lat = $7, lng = $8, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + establishmentColumns

	updated, err := scanEstablishment(scope.Conn.QueryRow(ctx, query,
		est.ID, est.Name, est.StoreTypeID, est.Address, est.City, est.State, est.Lat, est.Lng))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return establishmentWriteError("update", err)
	}
	*est = *updated
	return nil
}

func (r *establishmentRepository) SoftDelete(ctx context.Context, id int64) error {
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
	err = tx.QueryRow(ctx, `SELECT id FROM establishments WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to lock establishment: %w", err)
	}

	var hasChildren bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM lots WHERE establishment_id = $1 AND deleted_at IS NULL)
		    OR EXISTS (SELECT 1 FROM client_members WHERE establishment_id = $1 AND deleted_at IS NULL)`,
		id).Scan(&hasChildren)
	if err != nil {
		return fmt.Errorf("failed to check establishment children: %w", err)
	}
	if hasChildren {
		return apperrors.ErrHasChildren
	}

	if _, err := tx.Exec(ctx, `UPDATE establishments SET deleted_at = now(), updated_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete establishment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

var _ EstablishmentRepository = (*establishmentRepository)(nil)
