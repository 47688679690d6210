package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jvaguiar05/smart-park-system/pkg/apperrors"
	"github.com/jvaguiar05/smart-park-system/pkg/database"
	"github.com/jvaguiar05/smart-park-system/pkg/models"
	sqlsafe "github.com/jvaguiar05/smart-park-system/pkg/sql"
)

// MemberRepository defines the interface for client membership data access.
type MemberRepository interface {
	// ListActiveForUser loads every live membership of a user across all clients.
	// This is the membership half of a caller snapshot.
	ListActiveForUser(ctx context.Context, userID uuid.UUID) ([]models.ClientMember, error)
	List(ctx context.Context, clientID int64, opts models.ListOptions) ([]models.ClientMember, int, error)
	Get(ctx context.Context, clientID, memberID int64) (*models.ClientMember, error)
	// Add inserts a membership. Returns ErrConflict when the same grant already exists
	// and a ValidationError when the establishment is not one of the client's.
	Add(ctx context.Context, member *models.ClientMember) error
	Remove(ctx context.Context, clientID, memberID int64) error
}

type memberRepository struct{}

// NewMemberRepository creates a new membership repository.
func NewMemberRepository() MemberRepository {
	return &memberRepository{}
}

const memberColumns = `id, client_id, user_id, role, establishment_id, joined_at, deleted_at`

func scanMember(row pgx.Row) (*models.ClientMember, error) {
	var m models.ClientMember
	if err := row.Scan(&m.ID, &m.ClientID, &m.UserID, &m.Role, &m.EstablishmentID, &m.JoinedAt, &m.DeletedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func collectMembers(rows pgx.Rows) ([]models.ClientMember, error) {
	defer rows.Close()
	var members []models.ClientMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	return members, nil
}

func (r *memberRepository) ListActiveForUser(ctx context.Context, userID uuid.UUID) ([]models.ClientMember, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT m.id, m.client_id, m.user_id, m.role, m.establishment_id, m.joined_at, m.deleted_at
		FROM client_members m
		JOIN clients c ON c.id = m.client_id
		WHERE m.user_id = $1 AND m.deleted_at IS NULL AND c.deleted_at IS NULL
		ORDER BY m.id`

	rows, err := scope.Conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load memberships: %w", err)
	}
	return collectMembers(rows)
}

func (r *memberRepository) List(ctx context.Context, clientID int64, opts models.ListOptions) ([]models.ClientMember, int, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, 0, fmt.Errorf("no database scope in context")
	}
	opts = opts.Normalize()

	w := &sqlsafe.Where{}
	w.Add("client_id = " + w.Arg(clientID))
	applyDeleted(w, "deleted_at", opts.IncludeDeleted)
	w.Search(opts.Search, "role")

	var total int
	if err := scope.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM client_members `+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count members: %w", err)
	}

	query := `SELECT ` + memberColumns + ` FROM client_members ` + w.SQL() +
		` ORDER BY joined_at, id ` + w.Page(opts.PageSize, opts.Offset())

	rows, err := scope.Conn.Query(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list members: %w", err)
	}
	members, err := collectMembers(rows)
	if err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

func (r *memberRepository) Get(ctx context.Context, clientID, memberID int64) (*models.ClientMember, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + memberColumns + ` FROM client_members
		WHERE client_id = $1 AND id = $2 AND deleted_at IS NULL`

	m, err := scanMember(scope.Conn.QueryRow(ctx, query, clientID, memberID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

func (r *memberRepository) Add(ctx context.Context, member *models.ClientMember) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if member.EstablishmentID != nil {
		var owner int64
		err := scope.Conn.QueryRow(ctx,
			`SELECT client_id FROM establishments WHERE id = $1 AND deleted_at IS NULL`,
			*member.EstablishmentID).Scan(&owner)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && owner != member.ClientID) {
			return apperrors.NewValidationError("establishment_id", "must be an establishment of this client")
		}
		if err != nil {
			return fmt.Errorf("failed to check establishment: %w", err)
		}
	}

	member.JoinedAt = time.Now()

	query := `
		INSERT INTO client_members (client_id, user_id, role, establishment_id, joined_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := scope.Conn.QueryRow(ctx, query,
		member.ClientID,
		member.UserID,
		member.Role,
		member.EstablishmentID,
		member.JoinedAt,
	).Scan(&member.ID)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return apperrors.ErrConflict
		case isCheckViolation(err):
			return apperrors.NewValidationError("establishment_id", "does not match role "+string(member.Role))
		case isForeignKeyViolation(err):
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

func (r *memberRepository) Remove(ctx context.Context, clientID, memberID int64) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	result, err := scope.Conn.Exec(ctx,
		`UPDATE client_members SET deleted_at = now() WHERE client_id = $1 AND id = $2 AND deleted_at IS NULL`,
		clientID, memberID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

var _ MemberRepository = (*memberRepository)(nil)
