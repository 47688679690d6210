package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/jvaguiar05/smart-park-system/pkg/apperrors"
)

// Role is a named capability tier.
type Role string

// Role constants recognized by the access resolver.
const (
	// RoleAdmin is a system-wide role carried in the token, never in a membership row.
	RoleAdmin                    Role = "admin"
	RoleClientAdmin              Role = "client_admin"
	RoleClientEstablishmentAdmin Role = "client_establishment_admin"
	RoleClientMember             Role = "client_member"
	RoleAppUser                  Role = "app_user"
)

// MembershipRoles contains the roles that may appear on a ClientMember row.
var MembershipRoles = []Role{RoleClientAdmin, RoleClientEstablishmentAdmin, RoleClientMember}

// IsMembershipRole checks if the given role may be granted through a membership.
func IsMembershipRole(role Role) bool {
	for _, r := range MembershipRoles {
		if r == role {
			return true
		}
	}
	return false
}

// ClientMember binds a user to a client with a role, optionally scoped to one establishment.
type ClientMember struct {
	ID              int64      `json:"id"`
	ClientID        int64      `json:"client_id"`
	UserID          uuid.UUID  `json:"user_id"`
	Role            Role       `json:"role"`
	EstablishmentID *int64     `json:"establishment_id,omitempty"`
	JoinedAt        time.Time  `json:"joined_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

// Validate enforces the role/establishment pairing:
// client_admin is client-wide, client_establishment_admin names exactly one establishment.
func (m *ClientMember) Validate() error {
	verr := &apperrors.ValidationError{}
	if m.ClientID <= 0 {
		verr.Add("client_id", "is required")
	}
	if m.UserID == uuid.Nil {
		verr.Add("user_id", "is required")
	}
	if !IsMembershipRole(m.Role) {
		verr.Add("role", "must be one of: client_admin, client_establishment_admin, client_member")
	}
	switch m.Role {
	case RoleClientAdmin:
		if m.EstablishmentID != nil {
			verr.Add("establishment_id", "must be empty for client_admin")
		}
	case RoleClientEstablishmentAdmin:
		if m.EstablishmentID == nil {
			verr.Add("establishment_id", "is required for client_establishment_admin")
		}
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}
