package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/jvaguiar05/smart-park-system/pkg/crypto"
	"github.com/jvaguiar05/smart-park-system/pkg/database"
	"github.com/jvaguiar05/smart-park-system/pkg/models"
)

// Sealer encrypts an API key secret for storage.
type Sealer interface {
	Seal(keyID, secret string) (string, error)
}

// Result summarizes one Apply run.
type Result struct {
	Created  int
	Existing int
	// GeneratedSecrets holds plaintext secrets for keys created without one, by key_id.
	// They are not recoverable after this run.
	GeneratedSecrets map[string]string
}

// Seeder writes fixtures idempotently. Rows are matched by their natural key
// among live rows and only inserted when missing.
type Seeder struct {
	sealer Sealer
	logger *zap.Logger
}

func NewSeeder(sealer Sealer, logger *zap.Logger) *Seeder {
	return &Seeder{sealer: sealer, logger: logger.Named("seed")}
}

// Apply writes fx in a single transaction on the scope connection from ctx.
func (s *Seeder) Apply(ctx context.Context, fx *Fixtures) (*Result, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Error("Failed to rollback seed transaction", zap.Error(err))
		}
	}()

	run := &run{tx: tx, sealer: s.sealer, result: &Result{GeneratedSecrets: map[string]string{}}}
	if err := run.apply(ctx, fx); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit seed: %w", err)
	}

	s.logger.Info("Fixtures applied",
		zap.Int("created", run.result.Created),
		zap.Int("existing", run.result.Existing),
		zap.Int("generated_secrets", len(run.result.GeneratedSecrets)))
	return run.result, nil
}

type run struct {
	tx     pgx.Tx
	sealer Sealer
	result *Result

	storeTypes map[string]int64
	slotTypes  map[string]int64
}

func (r *run) apply(ctx context.Context, fx *Fixtures) error {
	var err error
	if r.storeTypes, err = r.lookups(ctx, "store_types", fx.StoreTypes); err != nil {
		return err
	}
	if r.slotTypes, err = r.lookups(ctx, "slot_types", fx.SlotTypes); err != nil {
		return err
	}
	if _, err = r.lookups(ctx, "vehicle_types", fx.VehicleTypes); err != nil {
		return err
	}

	for _, c := range fx.Clients {
		if err := r.client(ctx, c); err != nil {
			return fmt.Errorf("client %q: %w", c.Name, err)
		}
	}
	return nil
}

// ensure returns the id found by selectSQL, or the id returned by insertSQL when nothing matched.
func (r *run) ensure(ctx context.Context, selectSQL string, selectArgs []any, insertSQL string, insertArgs []any) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, selectSQL, selectArgs...).Scan(&id)
	if err == nil {
		r.result.Existing++
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	if err := r.tx.QueryRow(ctx, insertSQL, insertArgs...).Scan(&id); err != nil {
		return 0, err
	}
	r.result.Created++
	return id, nil
}

// table is one of the fixed lookup table names, never user input.
func (r *run) lookups(ctx context.Context, table string, names []string) (map[string]int64, error) {
	ids := make(map[string]int64, len(names))
	for _, name := range names {
		id, err := r.ensure(ctx,
			`SELECT id FROM `+table+` WHERE name = $1 AND deleted_at IS NULL`, []any{name},
			`INSERT INTO `+table+` (name) VALUES ($1) RETURNING id`, []any{name})
		if err != nil {
			return nil, fmt.Errorf("failed to seed %s %q: %w", table, name, err)
		}
		ids[name] = id
	}
	return ids, nil
}

func (r *run) client(ctx context.Context, c ClientFixture) error {
	status := c.OnboardingStatus
	if status == "" {
		status = models.OnboardingActive
	}
	clientID, err := r.ensure(ctx,
		`SELECT id FROM clients WHERE name = $1 AND deleted_at IS NULL ORDER BY id LIMIT 1`, []any{c.Name},
		`INSERT INTO clients (name, onboarding_status) VALUES ($1, $2) RETURNING id`, []any{c.Name, status})
	if err != nil {
		return fmt.Errorf("failed to seed client: %w", err)
	}

	keys := make(map[string]int64, len(c.APIKeys))
	for _, k := range c.APIKeys {
		id, err := r.apiKey(ctx, clientID, k)
		if err != nil {
			return err
		}
		keys[k.KeyID] = id
	}

	establishments := make(map[string]int64, len(c.Establishments))
	for _, e := range c.Establishments {
		id, err := r.establishment(ctx, clientID, e, keys)
		if err != nil {
			return fmt.Errorf("establishment %q: %w", e.Name, err)
		}
		establishments[e.Name] = id
	}

	for _, m := range c.Members {
		var estID *int64
		if m.Establishment != "" {
			id := establishments[m.Establishment]
			estID = &id
		}
		_, err := r.ensure(ctx,
			`SELECT id FROM client_members
			 WHERE client_id = $1 AND user_id = $2 AND role = $3
			   AND establishment_id IS NOT DISTINCT FROM $4 AND deleted_at IS NULL`,
			[]any{clientID, m.UserID, m.Role, estID},
			`INSERT INTO client_members (client_id, user_id, role, establishment_id)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			[]any{clientID, m.UserID, m.Role, estID})
		if err != nil {
			return fmt.Errorf("failed to seed member %s: %w", m.UserID, err)
		}
	}
	return nil
}

func (r *run) apiKey(ctx context.Context, clientID int64, k APIKeyFixture) (int64, error) {
	var id, owner int64
	err := r.tx.QueryRow(ctx, `SELECT id, client_id FROM api_keys WHERE key_id = $1`, k.KeyID).Scan(&id, &owner)
	if err == nil {
		if owner != clientID {
			return 0, fmt.Errorf("api key %q belongs to another client", k.KeyID)
		}
		r.result.Existing++
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to look up api key %q: %w", k.KeyID, err)
	}

	secret := k.Secret
	if secret == "" {
		if secret, err = crypto.GenerateSecret(); err != nil {
			return 0, err
		}
		r.result.GeneratedSecrets[k.KeyID] = secret
	}
	sealed, err := r.sealer.Seal(k.KeyID, secret)
	if err != nil {
		return 0, fmt.Errorf("failed to seal secret for %q: %w", k.KeyID, err)
	}

	name := k.Name
	if name == "" {
		name = k.KeyID
	}
	err = r.tx.QueryRow(ctx,
		`INSERT INTO api_keys (client_id, name, key_id, hmac_secret_encrypted) VALUES ($1, $2, $3, $4) RETURNING id`,
		clientID, name, k.KeyID, sealed).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to seed api key %q: %w", k.KeyID, err)
	}
	r.result.Created++
	return id, nil
}

func (r *run) establishment(ctx context.Context, clientID int64, e EstablishmentFixture, keys map[string]int64) (int64, error) {
	var storeTypeID *int64
	if e.StoreType != "" {
		id := r.storeTypes[e.StoreType]
		storeTypeID = &id
	}
	estID, err := r.ensure(ctx,
		`SELECT id FROM establishments WHERE client_id = $1 AND name = $2 AND deleted_at IS NULL`,
		[]any{clientID, e.Name},
		`INSERT INTO establishments (client_id, name, store_type_id, address, city, state, lat, lng)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8) RETURNING id`,
		[]any{clientID, e.Name, storeTypeID, e.Address, e.City, e.State, e.Lat, e.Lng})
	if err != nil {
		return 0, fmt.Errorf("failed to seed establishment: %w", err)
	}

	for _, l := range e.Lots {
		lotID, err := r.ensure(ctx,
			`SELECT id FROM lots WHERE client_id = $1 AND lot_code = $2 AND deleted_at IS NULL`,
			[]any{clientID, l.LotCode},
			`INSERT INTO lots (client_id, establishment_id, lot_code, name) VALUES ($1, $2, $3, NULLIF($4, '')) RETURNING id`,
			[]any{clientID, estID, l.LotCode, l.Name})
		if err != nil {
			return 0, fmt.Errorf("failed to seed lot %q: %w", l.LotCode, err)
		}

		for _, sl := range l.Slots {
			polygon := sl.Polygon
			if polygon == nil {
				polygon = [][2]float64{}
			}
			polygonJSON, err := json.Marshal(polygon)
			if err != nil {
				return 0, err
			}
			_, err = r.ensure(ctx,
				`SELECT id FROM slots WHERE lot_id = $1 AND slot_code = $2 AND deleted_at IS NULL`,
				[]any{lotID, sl.SlotCode},
				`INSERT INTO slots (client_id, lot_id, slot_code, slot_type_id, polygon_json, active)
				 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
				[]any{clientID, lotID, sl.SlotCode, r.slotTypes[sl.SlotType], polygonJSON, !sl.Inactive})
			if err != nil {
				return 0, fmt.Errorf("failed to seed slot %q: %w", sl.SlotCode, err)
			}
		}

		for _, cam := range l.Cameras {
			_, err := r.ensure(ctx,
				`SELECT id FROM cameras WHERE client_id = $1 AND camera_code = $2 AND deleted_at IS NULL`,
				[]any{clientID, cam.CameraCode},
				`INSERT INTO cameras (client_id, establishment_id, lot_id, camera_code, api_key_id, state)
				 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
				[]any{clientID, estID, lotID, cam.CameraCode, keys[cam.APIKey], models.CameraAssigned})
			if err != nil {
				return 0, fmt.Errorf("failed to seed camera %q: %w", cam.CameraCode, err)
			}
		}
	}
	return estID, nil
}
