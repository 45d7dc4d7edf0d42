package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"sgd-certification-service/internal/auth"
	"sgd-certification-service/internal/domain"
	"sgd-certification-service/internal/logger"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "unauthenticated"},
	{auth.ErrExpiredToken, http.StatusUnauthorized, "unauthenticated"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{domain.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{domain.ErrAttemptsExhausted, http.StatusConflict, "attempts_exhausted"},
	{domain.ErrInvalidQuestionSet, http.StatusUnprocessableEntity, "invalid_question_set"},
	{domain.ErrNotEligible, http.StatusUnprocessableEntity, "not_eligible"},
	{domain.ErrPersistence, http.StatusServiceUnavailable, "persistence_failure"},
	{domain.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrSessionClosed, http.StatusConflict, "session_closed"},
	{domain.ErrInvalidStatusTransition, http.StatusConflict, "invalid_status_transition"},
	{domain.ErrDuplicateCertificate, http.StatusConflict, "conflict"},
	{domain.ErrConflict, http.StatusConflict, "conflict"},
	{domain.ErrAnswerOutOfRange, http.StatusBadRequest, "validation"},
	{domain.ErrValidation, http.StatusBadRequest, "validation"},
}

// statusFor maps a domain error onto an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		message = "internal error"
	}
	writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

func badRequest(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, fmt.Errorf("%w: %s", domain.ErrValidation, message))
}
