package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jvaguiar05/smart-park-system/pkg/apperrors"
	"github.com/jvaguiar05/smart-park-system/pkg/database"
	"github.com/jvaguiar05/smart-park-system/pkg/models"
	sqlsafe "github.com/jvaguiar05/smart-park-system/pkg/sql"
)

// APIKeyRepository reads ingestion credentials. Keys are provisioned by the seed command.
type APIKeyRepository interface {
	GetByKeyID(ctx context.Context, keyID string) (*models.APIKey, error)
	Create(ctx context.Context, key *models.APIKey) error
}

// HeartbeatSearchFields are matched by the search parameter of heartbeat lists.
var HeartbeatSearchFields = []string{"h.payload_json::text"}

// CameraRepository resolves reporting cameras and tracks when they were last heard from.
type CameraRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Camera, error)
	GetByCode(ctx context.Context, clientID int64, code string) (*models.Camera, error)
	Create(ctx context.Context, camera *models.Camera) error
	TouchLastSeen(ctx context.Context, id int64) error
	RecordHeartbeat(ctx context.Context, hb *models.CameraHeartbeat) error
	ListHeartbeats(ctx context.Context, cameraID int64, opts models.ListOptions) ([]models.CameraHeartbeat, int, error)
}

type apiKeyRepository struct{}

// NewAPIKeyRepository creates a new API key repository.
func NewAPIKeyRepository() APIKeyRepository {
	return &apiKeyRepository{}
}

func (r *apiKeyRepository) GetByKeyID(ctx context.Context, keyID string) (*models.APIKey, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	var k models.APIKey
	err := scope.Conn.QueryRow(ctx, `
		SELECT k.id, k.client_id, k.name, k.key_id, k.hmac_secret_encrypted, k.enabled, k.created_at
		FROM api_keys k
		JOIN clients c ON c.id = k.client_id
		WHERE k.key_id = $1 AND k.deleted_at IS NULL AND c.deleted_at IS NULL`, keyID).
		Scan(&k.ID, &k.ClientID, &k.Name, &k.KeyID, &k.HMACSecretEncrypted, &k.Enabled, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	return &k, nil
}

// Create inserts a key whose secret is already sealed. A duplicate key_id returns ErrConflict.
func (r *apiKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	err := scope.Conn.QueryRow(ctx, `
		INSERT INTO api_keys (client_id, name, key_id, hmac_secret_encrypted, enabled)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		key.ClientID, key.Name, key.KeyID, key.HMACSecretEncrypted, key.Enabled,
	).Scan(&key.ID, &key.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

var _ APIKeyRepository = (*apiKeyRepository)(nil)

type cameraRepository struct{}

// NewCameraRepository creates a new camera repository.
func NewCameraRepository() CameraRepository {
	return &cameraRepository{}
}

func (r *cameraRepository) GetByID(ctx context.Context, id int64) (*models.Camera, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	var c models.Camera
	err := scope.Conn.QueryRow(ctx, `
		SELECT id, client_id, establishment_id, lot_id, camera_code, api_key_id, state, last_seen_at
		FROM cameras
		WHERE id = $1 AND deleted_at IS NULL`, id).
		Scan(&c.ID, &c.ClientID, &c.EstablishmentID, &c.LotID, &c.CameraCode, &c.APIKeyID, &c.State, &c.LastSeenAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get camera: %w", err)
	}
	return &c, nil
}

func (r *cameraRepository) GetByCode(ctx context.Context, clientID int64, code string) (*models.Camera, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	var c models.Camera
	err := scope.Conn.QueryRow(ctx, `
		SELECT id, client_id, establishment_id, lot_id, camera_code, api_key_id, state, last_seen_at
		FROM cameras
		WHERE client_id = $1 AND camera_code = $2 AND deleted_at IS NULL`, clientID, code).
		Scan(&c.ID, &c.ClientID, &c.EstablishmentID, &c.LotID, &c.CameraCode, &c.APIKeyID, &c.State, &c.LastSeenAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get camera: %w", err)
	}
	return &c, nil
}

// Create inserts a camera. A duplicate camera_code within the client returns ErrConflict.
func (r *cameraRepository) Create(ctx context.Context, camera *models.Camera) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}
	if camera.State == "" {
		camera.State = models.CameraUnassigned
	}

	err := scope.Conn.QueryRow(ctx, `
		INSERT INTO cameras (client_id, establishment_id, lot_id, camera_code, api_key_id, state)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		camera.ClientID, camera.EstablishmentID, camera.LotID, camera.CameraCode, camera.APIKeyID, camera.State,
	).Scan(&camera.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create camera: %w", err)
	}
	return nil
}

func (r *cameraRepository) TouchLastSeen(ctx context.Context, id int64) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if _, err := scope.Conn.Exec(ctx,
		`UPDATE cameras SET last_seen_at = now(), updated_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to update camera last seen: %w", err)
	}
	return nil
}

// RecordHeartbeat stores the heartbeat and moves the camera's last_seen_at to
// its received_at in one transaction.
func (r *cameraRepository) RecordHeartbeat(ctx context.Context, hb *models.CameraHeartbeat) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	var payload any
	if len(hb.Payload) > 0 {
		payload = string(hb.Payload)
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO camera_heartbeats (camera_id, payload_json)
		VALUES ($1, $2::jsonb)
		RETURNING id, received_at`,
		hb.CameraID, payload,
	).Scan(&hb.ID, &hb.ReceivedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to insert camera heartbeat: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE cameras SET last_seen_at = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, hb.CameraID, hb.ReceivedAt)
	if err != nil {
		return fmt.Errorf("failed to update camera last seen: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit camera heartbeat: %w", err)
	}
	return nil
}

// ListHeartbeats returns a camera's heartbeats, newest first.
func (r *cameraRepository) ListHeartbeats(ctx context.Context, cameraID int64, opts models.ListOptions) ([]models.CameraHeartbeat, int, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, 0, fmt.Errorf("no database scope in context")
	}
	opts = opts.Normalize()

	w := &sqlsafe.Where{}
	w.Add("h.camera_id = " + w.Arg(cameraID))
	w.Search(opts.Search, HeartbeatSearchFields...)

	var total int
	if err := scope.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM camera_heartbeats h `+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count camera heartbeats: %w", err)
	}

	query := `
		SELECT h.id, h.camera_id, h.received_at, h.payload_json::text
		FROM camera_heartbeats h ` + w.SQL() + `
		ORDER BY h.received_at DESC, h.id DESC ` + w.Page(opts.PageSize, opts.Offset())

	rows, err := scope.Conn.Query(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list camera heartbeats: %w", err)
	}
	defer rows.Close()

	var heartbeats []models.CameraHeartbeat
	for rows.Next() {
		var hb models.CameraHeartbeat
		var payload *string
		if err := rows.Scan(&hb.ID, &hb.CameraID, &hb.ReceivedAt, &payload); err != nil {
			return nil, 0, fmt.Errorf("failed to scan camera heartbeat: %w", err)
		}
		if payload != nil {
			hb.Payload = json.RawMessage(*payload)
		}
		heartbeats = append(heartbeats, hb)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate camera heartbeats: %w", err)
	}
	return heartbeats, total, nil
}

var _ CameraRepository = (*cameraRepository)(nil)
