// Package access decides what a caller may do to a tenant-owned resource.
//
// Resolve is a pure function over a Caller snapshot: system roles taken from
// the token plus the membership rows loaded once for the request. It never
// touches storage, so the same snapshot always yields the same decision.
package access

import (
	"github.com/google/uuid"

	"github.com/jvaguiar05/smart-park-system/pkg/models"
)

// Level is the resolved access scope of a caller on a target.
// Levels are ordered; a higher level satisfies any requirement for a lower one.
type Level int

const (
	Deny Level = iota
	Member
	Establishment
	Client
	System
)

func (l Level) String() string {
	switch l {
	case Member:
		return "ALLOW_MEMBER"
	case Establishment:
		return "ALLOW_ESTABLISHMENT"
	case Client:
		return "ALLOW_CLIENT"
	case System:
		return "ALLOW_SYSTEM"
	default:
		return "DENY"
	}
}

// Allows reports whether l meets the required level.
func (l Level) Allows(required Level) bool {
	return l != Deny && l >= required
}

// Caller is the per-request identity snapshot used for every decision in that request.
type Caller struct {
	UserID      uuid.UUID
	SystemRoles []models.Role
	Memberships []models.ClientMember
}

// IsSystemAdmin reports whether the caller holds the system-wide admin role.
func (c *Caller) IsSystemAdmin() bool {
	for _, r := range c.SystemRoles {
		if r == models.RoleAdmin {
			return true
		}
	}
	return false
}

// HasTenantScope reports whether the caller can see any tenant data at all.
func (c *Caller) HasTenantScope() bool {
	return c.IsSystemAdmin() || len(c.Memberships) > 0
}

// ClientIDs returns the distinct clients the caller is a member of, in membership order.
// System admins are not restricted and callers should check IsSystemAdmin first.
func (c *Caller) ClientIDs() []int64 {
	seen := make(map[int64]struct{}, len(c.Memberships))
	ids := make([]int64, 0, len(c.Memberships))
	for _, m := range c.Memberships {
		if _, ok := seen[m.ClientID]; ok {
			continue
		}
		seen[m.ClientID] = struct{}{}
		ids = append(ids, m.ClientID)
	}
	return ids
}

// IsMemberOf reports whether the caller has any membership in the client.
func (c *Caller) IsMemberOf(clientID int64) bool {
	for _, m := range c.Memberships {
		if m.ClientID == clientID {
			return true
		}
	}
	return false
}

// Target is the resource a decision is made about.
// EstablishmentID is nil for client-wide resources.
type Target struct {
	ClientID        int64
	EstablishmentID *int64
}

// ClientTarget targets a client-wide resource.
func ClientTarget(clientID int64) Target {
	return Target{ClientID: clientID}
}

// EstablishmentTarget targets a resource that belongs to one establishment.
func EstablishmentTarget(clientID, establishmentID int64) Target {
	return Target{ClientID: clientID, EstablishmentID: &establishmentID}
}

// Resolve returns the caller's access level on target. Rules are evaluated in
// precedence order and the first match wins; membership order never matters.
func Resolve(caller *Caller, target Target) Level {
	if caller == nil {
		return Deny
	}
	if caller.IsSystemAdmin() {
		return System
	}

	for _, m := range caller.Memberships {
		if m.ClientID == target.ClientID && m.Role == models.RoleClientAdmin && m.EstablishmentID == nil {
			return Client
		}
	}

	if target.EstablishmentID != nil {
		for _, m := range caller.Memberships {
			if m.ClientID == target.ClientID &&
				m.Role == models.RoleClientEstablishmentAdmin &&
				m.EstablishmentID != nil &&
				*m.EstablishmentID == *target.EstablishmentID {
				return Establishment
			}
		}
	}

	if caller.IsMemberOf(target.ClientID) {
		return Member
	}
	return Deny
}
