package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jvaguiar05/smart-park-system/pkg/auth"
	"github.com/jvaguiar05/smart-park-system/pkg/models"
	"github.com/jvaguiar05/smart-park-system/pkg/services"
)

// CreateClientRequest is the body of POST /api/clients.
type CreateClientRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// UpdateClientRequest is the body of PATCH /api/clients/{cid}.
type UpdateClientRequest struct {
	OnboardingStatus models.OnboardingStatus `json:"onboarding_status" validate:"required,oneof=PENDING ACTIVE SUSPENDED CANCELLED"`
}

// AddMemberRequest is the body of POST /api/clients/{cid}/members.
type AddMemberRequest struct {
	UserID          string      `json:"user_id" validate:"required,uuid"`
	Role            models.Role `json:"role" validate:"required,oneof=client_admin client_establishment_admin client_member"`
	EstablishmentID *int64      `json:"establishment_id,omitempty" validate:"omitempty,gt=0"`
}

// TenantsHandler serves client administration and memberships.
type TenantsHandler struct {
	tenants services.TenantService
	callers services.CallerLoader
	logger  *zap.Logger
}

// NewTenantsHandler creates a new tenants handler.
func NewTenantsHandler(tenants services.TenantService, callers services.CallerLoader, logger *zap.Logger) *TenantsHandler {
	return &TenantsHandler{
		tenants: tenants,
		callers: callers,
		logger:  logger,
	}
}

// RegisterRoutes registers the tenants handler's routes on the given mux.
func (h *TenantsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	mux.HandleFunc("GET /api/me/clients", authMiddleware.RequireAuth(scope(h.MyClients)))

	mux.HandleFunc("GET /api/clients", authMiddleware.RequireAuth(scope(h.ListClients)))
	mux.HandleFunc("POST /api/clients", authMiddleware.RequireAuth(scope(h.CreateClient)))
	mux.HandleFunc("PATCH /api/clients/{cid}", authMiddleware.RequireAuth(scope(h.UpdateClient)))

	mux.HandleFunc("GET /api/clients/{cid}/members", authMiddleware.RequireAuth(scope(h.ListMembers)))
	mux.HandleFunc("POST /api/clients/{cid}/members", authMiddleware.RequireAuth(scope(h.AddMember)))
	mux.HandleFunc("DELETE /api/clients/{cid}/members/{mid}", authMiddleware.RequireAuth(scope(h.RemoveMember)))
}

// MyClients handles GET /api/me/clients
// Returns the caller's memberships. A caller with none gets an empty list.
func (h *TenantsHandler) MyClients(w http.ResponseWriter, r *http.Request) {
	caller, ok := loadCaller(w, r, h.callers, h.logger)
	if !ok {
		return
	}

	clients, err := h.tenants.MyClients(r.Context(), caller)
	if err != nil {
		writeServiceError(w, h.logger, "my_clients", err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, clients); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListClients handles GET /api/clients
func (h *TenantsHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	opts, ok := ParseListOptions(w, r, h.logger)
	if !ok {
		return
	}
	caller, ok := loadCaller(w, r, h.callers, h.logger)
	if !ok {
		return
	}

	page, err := h.tenants.ListClients(r.Context(), caller, opts)
	if err != nil {
		writeServiceError(w, h.logger, "list_clients", err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, page); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// CreateClient handles POST /api/clients
func (h *TenantsHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	caller, ok := loadCaller(w, r, h.callers, h.logger)
	if !ok {
		return
	}

	client, err := h.tenants.CreateClient(r.Context(), caller, req.Name)
	if err != nil {
		writeServiceError(w, h.logger, "create_client", err)
		return
	}

	h.logger.Info("Client created",
		zap.Int64("client_id", client.ID),
		zap.String("user_id", caller.UserID.String()))

	if err := WriteJSON(w, http.StatusCreated, client); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// UpdateClient handles PATCH /api/clients/{cid}
func (h *TenantsHandler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	clientID, ok := ParseClientID(w, r, h.logger)
	if !ok {
		return
	}
	var req UpdateClientRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	caller, ok := loadCaller(w, r, h.callers, h.logger)
	if !ok {
		return
	}

	client, err := h.tenants.UpdateOnboardingStatus(r.Context(), caller, clientID, req.OnboardingStatus)
	if err != nil {
		writeServiceError(w, h.logger, "update_client", err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, client); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListMembers handles GET /api/clients/{cid}/members
func (h *TenantsHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	clientID, ok := ParseClientID(w, r, h.logger)
	if !ok {
		return
	}
	opts, ok := ParseListOptions(w, r, h.logger)
	if !ok {
		return
	}
	caller, ok := loadCaller(w, r, h.callers, h.logger)
	if !ok {
		return
	}

	page, err := h.tenants.ListMembers(r.Context(), caller, clientID, opts)
	if err != nil {
		writeServiceError(w, h.logger, "list_members", err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, page); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// AddMember handles POST /api/clients/{cid}/members
func (h *TenantsHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	clientID, ok := ParseClientID(w, r, h.logger)
	if !ok {
		return
	}
	var req AddMemberRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	caller, ok := loadCaller(w, r, h.callers, h.logger)
	if !ok {
		return
	}

	member, err := h.tenants.AddMember(r.Context(), caller, clientID, services.MemberInput{
		UserID:          uuid.MustParse(req.UserID),
		Role:            req.Role,
		EstablishmentID: req.EstablishmentID,
	})
	if err != nil {
		writeServiceError(w, h.logger, "add_member", err)
		return
	}
	if err := WriteJSON(w, http.StatusCreated, member); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// RemoveMember handles DELETE /api/clients/{cid}/members/{mid}
func (h *TenantsHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	clientID, ok := ParseClientID(w, r, h.logger)
	if !ok {
		return
	}
	memberID, ok := ParseMemberID(w, r, h.logger)
	if !ok {
		return
	}
	caller, ok := loadCaller(w, r, h.callers, h.logger)
	if !ok {
		return
	}

	if err := h.tenants.RemoveMember(r.Context(), caller, clientID, memberID); err != nil {
		writeServiceError(w, h.logger, "remove_member", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
