package services

import (
	"context"
	"fmt"

	"github.com/jvaguiar05/smart-park-system/pkg/access"
	"github.com/jvaguiar05/smart-park-system/pkg/auth"
	"github.com/jvaguiar05/smart-park-system/pkg/repositories"
)

// CallerLoader builds the per-request identity snapshot used by access decisions.
type CallerLoader interface {
	// Load reads the token claims from ctx and the caller's live memberships.
	// It is called once per request; the snapshot is then passed to every service call.
	Load(ctx context.Context) (*access.Caller, error)
}

type callerLoader struct {
	members repositories.MemberRepository
}

// NewCallerLoader creates a caller loader backed by the membership repository.
func NewCallerLoader(members repositories.MemberRepository) CallerLoader {
	return &callerLoader{members: members}
}

func (l *callerLoader) Load(ctx context.Context) (*access.Caller, error) {
	claims, ok := auth.GetClaims(ctx)
	if !ok || claims == nil {
		return nil, fmt.Errorf("%w: no claims in context", auth.ErrUnauthenticated)
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	memberships, err := l.members.ListActiveForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load memberships: %w", err)
	}

	return &access.Caller{
		UserID:      userID,
		SystemRoles: claims.SystemRoles(),
		Memberships: memberships,
	}, nil
}
