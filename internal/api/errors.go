package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/p-arndt/werkbank/internal/session"
)

// Error codes returned in API responses
const (
	ErrCodeSessionConflict = "SESSION_CONFLICT"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeInternalError   = "INTERNAL_ERROR"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
)

// APIError is the structured error body for requests rejected before the
// websocket upgrade.
type APIError struct {
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// writeAPIError maps known session errors to HTTP statuses.
func writeAPIError(w http.ResponseWriter, err error) {
	var apiErr APIError
	statusCode := http.StatusInternalServerError

	switch {
	case errors.Is(err, session.ErrConflict):
		apiErr = APIError{
			Code:    ErrCodeSessionConflict,
			Message: err.Error(),
		}
		statusCode = http.StatusConflict

	default:
		apiErr = APIError{
			Code:    ErrCodeInternalError,
			Message: err.Error(),
		}
	}

	writeJSON(w, statusCode, apiErr)
}

func writeValidationError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, APIError{
		Code:    ErrCodeInvalidRequest,
		Message: message,
	})
}

func writeUnauthorizedError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnauthorized, APIError{
		Code:    ErrCodeUnauthorized,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
