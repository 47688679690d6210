package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/jvaguiar05/smart-park-system/pkg/access"
	"github.com/jvaguiar05/smart-park-system/pkg/apperrors"
	"github.com/jvaguiar05/smart-park-system/pkg/audit"
	"github.com/jvaguiar05/smart-park-system/pkg/models"
	"github.com/jvaguiar05/smart-park-system/pkg/repositories"
	sqlsafe "github.com/jvaguiar05/smart-park-system/pkg/sql"
)

// SecurityAuditor records security-relevant decisions made by the services.
type SecurityAuditor interface {
	LogInjectionAttempt(ctx context.Context, details audit.InjectionDetails, clientIP string)
	LogAccessDenied(ctx context.Context, details audit.AccessDeniedDetails, clientIP string)
	LogStatusOverride(ctx context.Context, clientID, slotID int64, status string)
}

var _ SecurityAuditor = (*audit.SecurityAuditor)(nil)

// guard applies the access rules shared by every authenticated service.
type guard struct {
	auditor SecurityAuditor
	logger  *zap.Logger
}

// requireTenantScope rejects callers that can see no tenant data before any lookup happens.
func requireTenantScope(caller *access.Caller) error {
	if caller == nil || !caller.HasTenantScope() {
		return apperrors.ErrForbidden
	}
	return nil
}

// requireSystem allows only system administrators.
func (g *guard) requireSystem(ctx context.Context, caller *access.Caller, operation string) error {
	if caller != nil && caller.IsSystemAdmin() {
		return nil
	}
	g.auditor.LogAccessDenied(ctx, audit.AccessDeniedDetails{
		Operation: operation,
		Level:     access.Deny.String(),
		Required:  access.System.String(),
	}, audit.ClientIP(ctx))
	return apperrors.ErrForbidden
}

// authorize resolves the caller's level on an existing resource. A caller with
// no standing on the resource's client gets ErrNotFound so ids of other tenants
// are never confirmed; an insufficient level gets ErrForbidden.
func (g *guard) authorize(ctx context.Context, caller *access.Caller, operation string, target access.Target, required access.Level) error {
	level := access.Resolve(caller, target)
	if level.Allows(required) {
		return nil
	}

	g.auditor.LogAccessDenied(ctx, audit.AccessDeniedDetails{
		Operation:       operation,
		ClientID:        target.ClientID,
		EstablishmentID: target.EstablishmentID,
		Level:           level.String(),
		Required:        required.String(),
	}, audit.ClientIP(ctx))

	if level == access.Deny {
		return apperrors.ErrNotFound
	}
	return apperrors.ErrForbidden
}

// visibleClients is the list scope of the caller: everything for system admins,
// otherwise only the clients they hold a membership in.
func visibleClients(caller *access.Caller) repositories.ClientFilter {
	if caller.IsSystemAdmin() {
		return repositories.AllClients()
	}
	return repositories.OnlyClients(caller.ClientIDs()...)
}

// listOptions normalizes the search term and pagination of a list request.
// Terms flagged by libinjection are audited and rejected.
func (g *guard) listOptions(ctx context.Context, caller *access.Caller, resource string, opts models.ListOptions) (models.ListOptions, error) {
	opts = opts.Normalize()
	opts.Search = sqlsafe.NormalizeSearchTerm(opts.Search)

	if result := sqlsafe.CheckForInjection("search", opts.Search); result != nil {
		g.auditor.LogInjectionAttempt(ctx, audit.InjectionDetails{
			Field:       result.Field,
			Value:       result.Value,
			Fingerprint: result.Fingerprint,
			Resource:    resource,
		}, audit.ClientIP(ctx))
		return opts, apperrors.NewValidationError("search", "contains disallowed content")
	}

	if caller == nil || !caller.IsSystemAdmin() {
		opts.IncludeDeleted = false
	}
	return opts, nil
}
