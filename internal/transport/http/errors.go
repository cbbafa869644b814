package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"iq-test-service/internal/domain"
	"iq-test-service/internal/logger"
)

type errorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// classify maps an error kind onto a status code and a terse client message.
// Store and driver errors never reach the client verbatim.
func classify(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, errorPayload{Error: err.Error(), Code: "validation_error"}
	case errors.Is(err, domain.ErrAlreadyCompleted):
		return http.StatusBadRequest, errorPayload{Error: domain.ErrAlreadyCompleted.Error(), Code: "already_completed"}
	case errors.Is(err, domain.ErrExpired):
		return http.StatusBadRequest, errorPayload{Error: domain.ErrExpired.Error(), Code: "expired"}
	case errors.Is(err, domain.ErrNoQuestions):
		return http.StatusBadRequest, errorPayload{Error: domain.ErrNoQuestions.Error(), Code: "no_questions"}
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{Error: "missing or invalid token", Code: "unauthorized"}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, errorPayload{Error: domain.ErrForbidden.Error(), Code: "forbidden"}
	case errors.Is(err, domain.ErrAttemptNotFound):
		return http.StatusNotFound, errorPayload{Error: domain.ErrAttemptNotFound.Error(), Code: "attempt_not_found"}
	case errors.Is(err, domain.ErrTestNotFound):
		return http.StatusNotFound, errorPayload{Error: domain.ErrTestNotFound.Error(), Code: "test_not_found"}
	}
	return http.StatusInternalServerError, errorPayload{Error: "unexpected server error", Code: "storage_unavailable"}
}

func writeError(w http.ResponseWriter, log *logger.Logger, err error) {
	status, payload := classify(err)
	if status == http.StatusInternalServerError && !errors.Is(err, domain.ErrStorageUnavailable) {
		// the attempt service logs its own faults; everything else is logged here
		log.Error("request failed", "error", err)
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
