package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/jvaguiar05/smart-park-system/pkg/access"
	"github.com/jvaguiar05/smart-park-system/pkg/services"
)

// ScopeMiddleware wraps a handler with a per-request database scope.
type ScopeMiddleware func(http.HandlerFunc) http.HandlerFunc

// loadCaller builds the caller snapshot once per request.
// On failure it writes the error response and returns false.
func loadCaller(w http.ResponseWriter, r *http.Request, callers services.CallerLoader, logger *zap.Logger) (*access.Caller, bool) {
	caller, err := callers.Load(r.Context())
	if err != nil {
		writeServiceError(w, logger, "load_caller", err)
		return nil, false
	}
	return caller, true
}
