package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/jvaguiar05/smart-park-system/pkg/models"
)

// ParseResourceID extracts and validates the numeric resource ID from the request path.
// Returns the parsed ID and true on success, or 0 and false on error
// (after writing an error response).
// Expects path parameter: id
func ParseResourceID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (int64, bool) {
	return parseInt64(w, r, "id", "invalid_id", "Invalid resource ID format", logger)
}

// ParseClientID extracts and validates the client ID from the request path.
// Expects path parameter: cid
func ParseClientID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (int64, bool) {
	return parseInt64(w, r, "cid", "invalid_client_id", "Invalid client ID format", logger)
}

// ParseMemberID extracts and validates the membership ID from the request path.
// Expects path parameter: mid
func ParseMemberID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (int64, bool) {
	return parseInt64(w, r, "mid", "invalid_member_id", "Invalid member ID format", logger)
}

// ParseListOptions reads search and pagination from the query string:
// search, page, page_size, include_deleted. Missing values fall back to defaults.
func ParseListOptions(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (models.ListOptions, bool) {
	q := r.URL.Query()
	opts := models.ListOptions{Search: q.Get("search")}

	var ok bool
	if opts.Page, ok = parseQueryInt(w, q.Get("page"), "invalid_page", "page must be a positive integer", logger); !ok {
		return opts, false
	}
	if opts.Page > models.MaxPage {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_page", fmt.Sprintf("page must not exceed %d", models.MaxPage)); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return opts, false
	}
	if opts.PageSize, ok = parseQueryInt(w, q.Get("page_size"), "invalid_page_size", "page_size must be a positive integer", logger); !ok {
		return opts, false
	}

	if v := q.Get("include_deleted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_include_deleted", "include_deleted must be a boolean"); err != nil {
				logger.Error("Failed to write error response", zap.Error(err))
			}
			return opts, false
		}
		opts.IncludeDeleted = b
	}

	return opts.Normalize(), true
}

// parseOptionalQueryID parses an optional numeric filter such as ?establishment_id=.
func parseOptionalQueryID(w http.ResponseWriter, r *http.Request, name string, logger *zap.Logger) (*int64, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_"+name, name+" must be a positive integer"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return nil, false
	}
	return &id, true
}

func parseQueryInt(w http.ResponseWriter, v, errorCode, errorMessage string, logger *zap.Logger) (int, bool) {
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return 0, false
	}
	return n, true
}

// parseInt64 is the internal helper that does the actual parsing work.
func parseInt64(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (int64, bool) {
	idStr := r.PathValue(pathParam)
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return 0, false
	}
	return id, true
}
