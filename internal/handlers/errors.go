package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"mathquest/internal/service"
)

// Error codes returned to clients in the "error" field
const (
	CodeNoUser           = "NO_USER"
	CodeUsernameTaken    = "USERNAME_TAKEN"
	CodeInvalidAge       = "INVALID_AGE"
	CodeInvalidTopic     = "INVALID_TOPIC"
	CodeMissingOutcome   = "MISSING_OUTCOME"
	CodeMissingData      = "MISSING_DATA"
	CodeNotEnoughPoints  = "NOT_ENOUGH_POINTS"
	CodeForbidden        = "FORBIDDEN"
	CodeWrongPassword    = "WRONG_PASSWORD"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeRateLimited      = "RATE_LIMITED"
	CodeServerError      = "SERVER_ERROR"
)

// retryAfterSeconds is sent with STORE_UNAVAILABLE so clients back off
const retryAfterSeconds = "5"

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, status int, code, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = code
		}
		log.Printf("%s: %v", logMsg, err)
	}

	writeJSON(w, status, errorResponse{OK: false, Error: code})
}

// statusForError maps a service error to its HTTP status and error code
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrNoSuchAccount):
		return http.StatusNotFound, CodeNoUser
	case errors.Is(err, service.ErrUsernameTaken):
		return http.StatusConflict, CodeUsernameTaken
	case errors.Is(err, service.ErrInvalidAge):
		return http.StatusBadRequest, CodeInvalidAge
	case errors.Is(err, service.ErrInvalidTopic):
		return http.StatusBadRequest, CodeInvalidTopic
	case errors.Is(err, service.ErrMissingOutcome):
		return http.StatusBadRequest, CodeMissingOutcome
	case errors.Is(err, service.ErrMissingData):
		return http.StatusBadRequest, CodeMissingData
	case errors.Is(err, service.ErrInsufficientFunds):
		return http.StatusBadRequest, CodeNotEnoughPoints
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, service.ErrBadSecret):
		return http.StatusUnauthorized, CodeWrongPassword
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, CodeStoreUnavailable
	default:
		return http.StatusInternalServerError, CodeServerError
	}
}

// respondWithServiceError writes the response for an error returned by a service.
// Only server-side failures are logged.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusForError(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	if status >= http.StatusInternalServerError {
		respondWithError(w, status, code, r.Method+" "+r.URL.Path, err)
		return
	}
	respondWithError(w, status, code, "", nil)
}
