package models

import (
	"encoding/json"
	"time"
)

// APIKey is an ingestion credential bound to a client.
// The HMAC secret is stored encrypted and never serialized.
type APIKey struct {
	ID                  int64     `json:"id"`
	ClientID            int64     `json:"client_id"`
	Name                string    `json:"name"`
	KeyID               string    `json:"key_id"`
	HMACSecretEncrypted string    `json:"-"`
	Enabled             bool      `json:"enabled"`
	CreatedAt           time.Time `json:"created_at"`
}

// CameraState is the operational state of a camera.
type CameraState string

const (
	CameraUnassigned  CameraState = "UNASSIGNED"
	CameraAssigned    CameraState = "ASSIGNED"
	CameraActive      CameraState = "ACTIVE"
	CameraInactive    CameraState = "INACTIVE"
	CameraMaintenance CameraState = "MAINTENANCE"
	CameraError       CameraState = "ERROR"
)

// Camera is a status-reporting device of a client.
type Camera struct {
	ID              int64       `json:"id"`
	ClientID        int64       `json:"client_id"`
	EstablishmentID *int64      `json:"establishment_id,omitempty"`
	LotID           *int64      `json:"lot_id,omitempty"`
	CameraCode      string      `json:"camera_code"`
	APIKeyID        int64       `json:"api_key_id"`
	State           CameraState `json:"state"`
	LastSeenAt      *time.Time  `json:"last_seen_at,omitempty"`
}

// CameraHeartbeat is one liveness report of a camera. Payload is the raw JSON
// the device sent, or null.
type CameraHeartbeat struct {
	ID         int64           `json:"id"`
	CameraID   int64           `json:"camera_id"`
	ReceivedAt time.Time       `json:"received_at"`
	Payload    json.RawMessage `json:"payload_json"`
}
