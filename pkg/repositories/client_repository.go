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

// ClientRepository defines the interface for tenant data access.
type ClientRepository interface {
	Create(ctx context.Context, client *models.Client) error
	Get(ctx context.Context, id int64) (*models.Client, error)
	List(ctx context.Context, opts models.ListOptions) ([]models.Client, int, error)
	UpdateOnboardingStatus(ctx context.Context, id int64, status models.OnboardingStatus) (*models.Client, error)
	// ListForUser returns the caller's live memberships joined with their client.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.MyClient, error)
}

type clientRepository struct{}

// NewClientRepository creates a new client repository.
func NewClientRepository() ClientRepository {
	return &clientRepository{}
}

const clientColumns = `id, name, onboarding_status, created_at, updated_at, deleted_at`

func scanClient(row pgx.Row) (*models.Client, error) {
	var c models.Client
	err := row.Scan(&c.ID, &c.Name, &c.OnboardingStatus, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *clientRepository) Create(ctx context.Context, client *models.Client) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	now := time.Now()
	client.CreatedAt = now
	client.UpdatedAt = now
	if client.OnboardingStatus == "" {
		client.OnboardingStatus = models.OnboardingPending
	}

	query := `
		INSERT INTO clients (name, onboarding_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := scope.Conn.QueryRow(ctx, query, client.Name, client.OnboardingStatus, client.CreatedAt, client.UpdatedAt).
		Scan(&client.ID)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

func (r *clientRepository) Get(ctx context.Context, id int64) (*models.Client, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1 AND deleted_at IS NULL`

	client, err := scanClient(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return client, nil
}

func (r *clientRepository) List(ctx context.Context, opts models.ListOptions) ([]models.Client, int, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, 0, fmt.Errorf("no database scope in context")
	}
	opts = opts.Normalize()

	w := &sqlsafe.Where{}
	applyDeleted(w, "deleted_at", opts.IncludeDeleted)
	w.Search(opts.Search, "name", "onboarding_status")

	var total int
	if err := scope.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM clients `+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count clients: %w", err)
	}

	query := `SELECT ` + clientColumns + ` FROM clients ` + w.SQL() +
		` ORDER BY name, id ` + w.Page(opts.PageSize, opts.Offset())

	rows, err := scope.Conn.Query(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []models.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating clients: %w", err)
	}
	return clients, total, nil
}

func (r *clientRepository) UpdateOnboardingStatus(ctx context.Context, id int64, status models.OnboardingStatus) (*models.Client, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		UPDATE clients SET onboarding_status = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + clientColumns

	client, err := scanClient(scope.Conn.QueryRow(ctx, query, id, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update client: %w", err)
	}
	return client, nil
}

func (r *clientRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.MyClient, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT c.id, c.name, c.onboarding_status, m.role, m.establishment_id, m.joined_at
		FROM client_members m
		JOIN clients c ON c.id = m.client_id
		WHERE m.user_id = $1 AND m.deleted_at IS NULL AND c.deleted_at IS NULL
		ORDER BY c.name, m.joined_at, m.id`

	rows, err := scope.Conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user clients: %w", err)
	}
	defer rows.Close()

	result := []models.MyClient{}
	for rows.Next() {
		var mc models.MyClient
		if err := rows.Scan(&mc.ClientID, &mc.Name, &mc.OnboardingStatus, &mc.Role, &mc.EstablishmentID, &mc.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user client: %w", err)
		}
		result = append(result, mc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user clients: %w", err)
	}
	return result, nil
}

var _ ClientRepository = (*clientRepository)(nil)
