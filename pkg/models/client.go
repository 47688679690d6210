// Package models contains domain types for the SmartPark engine.
package models

import (
	"time"
)

// OnboardingStatus is the lifecycle state of a tenant organization.
type OnboardingStatus string

const (
	OnboardingPending   OnboardingStatus = "PENDING"
	OnboardingActive    OnboardingStatus = "ACTIVE"
	OnboardingSuspended OnboardingStatus = "SUSPENDED"
	OnboardingCancelled OnboardingStatus = "CANCELLED"
)

// ValidOnboardingStatuses contains all valid onboarding status values.
var ValidOnboardingStatuses = []OnboardingStatus{
	OnboardingPending, OnboardingActive, OnboardingSuspended, OnboardingCancelled,
}

// IsValid reports whether s is a recognized onboarding status.
func (s OnboardingStatus) IsValid() bool {
	for _, v := range ValidOnboardingStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Client is a tenant organization. Establishments, lots and slots are scoped beneath it.
type Client struct {
	ID               int64            `json:"id"`
	Name             string           `json:"name"`
	OnboardingStatus OnboardingStatus `json:"onboarding_status"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	DeletedAt        *time.Time       `json:"deleted_at,omitempty"`
}

// MyClient is one of the caller's memberships joined with its client.
type MyClient struct {
	ClientID         int64            `json:"id"`
	Name             string           `json:"name"`
	OnboardingStatus OnboardingStatus `json:"onboarding_status"`
	Role             Role             `json:"role"`
	EstablishmentID  *int64           `json:"establishment_id,omitempty"`
	JoinedAt         time.Time        `json:"joined_at"`
}
