package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/jvaguiar05/smart-park-system/pkg/apperrors"
	"github.com/jvaguiar05/smart-park-system/pkg/auth"
	"github.com/jvaguiar05/smart-park-system/pkg/logging"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// ValidationErrorBody is the 400 body for rejected input.
type ValidationErrorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ValidationErrorResponse writes a 400 with the per-field failures.
func ValidationErrorResponse(w http.ResponseWriter, verr *apperrors.ValidationError) error {
	return WriteJSON(w, http.StatusBadRequest, ValidationErrorBody{
		Error:   "validation_error",
		Message: "Request validation failed",
		Fields:  verr.Fields,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeServiceError maps a service error onto the HTTP error contract.
// Unrecognized errors are logged and answered with a generic 500.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	var (
		status  int
		code    string
		message string
		verr    *apperrors.ValidationError
	)

	switch {
	case errors.As(err, &verr):
		if err := ValidationErrorResponse(w, verr); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	case errors.Is(err, apperrors.ErrValidation):
		status, code, message = http.StatusBadRequest, "validation_error", "Request validation failed"
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidSubject):
		status, code, message = http.StatusUnauthorized, "unauthorized", "Authentication required"
	case errors.Is(err, apperrors.ErrForbidden):
		status, code, message = http.StatusForbidden, "forbidden", "Insufficient permissions"
	case errors.Is(err, apperrors.ErrNotFound):
		status, code, message = http.StatusNotFound, "not_found", "Resource not found"
	case errors.Is(err, apperrors.ErrDuplicateEvent):
		status, code, message = http.StatusConflict, "duplicate_event", "Event already processed"
	case errors.Is(err, apperrors.ErrHasChildren):
		status, code, message = http.StatusConflict, "has_children", "Resource still has dependent children"
	case errors.Is(err, apperrors.ErrConflict):
		status, code, message = http.StatusConflict, "conflict", "Resource already exists"
	default:
		logger.Error("Request failed",
			zap.String("operation", op),
			zap.String("error", logging.SanitizeError(err)))
		status, code, message = http.StatusInternalServerError, "internal_error", "Internal server error"
	}

	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
