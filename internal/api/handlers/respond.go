package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/fiscalassistant/internal/auth"
	"github.com/nikhilbhutani/fiscalassistant/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps error kinds to status codes. Unknown errors are logged and
// reported as 500 without details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeMessage(w, status, msg)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict, err.Error()
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, models.ErrStorageUnavailable), errors.Is(err, models.ErrBlobUnavailable):
		return http.StatusServiceUnavailable, "document storage is currently unavailable"
	case errors.Is(err, models.ErrCompletionService):
		return http.StatusServiceUnavailable, "completion service unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// ownerID reads the authenticated owner; it writes 401 and returns false when
// the request carries none.
func ownerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := auth.OwnerIDFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthenticated")
		return uuid.Nil, false
	}
	return id, true
}
