package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sidu-provider/portal-api/internal/domain"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
	Cause string `json:"cause,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeAuthError(w http.ResponseWriter, status int, authErr *domain.ErrAuth) {
	writeJSON(w, status, errorResponse{Error: authErr.Error(), Cause: string(authErr.Cause)})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var credential *domain.ErrCredential
	var auth *domain.ErrAuth
	var validation *domain.ErrValidation
	var notFound *domain.ErrNotFound
	var records *domain.ErrRecordService
	var configuration *domain.ErrConfiguration

	switch {
	case errors.As(err, &credential):
		logger.Debug("credential error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &auth):
		switch auth.Cause {
		case domain.AuthTooManyAttempts:
			logger.Warn("auth rate limited", zap.Error(err))
			writeAuthError(w, http.StatusTooManyRequests, auth)
		case domain.AuthNetworkFailure, domain.AuthProviderUnavailable:
			logger.Error("identity provider unreachable", zap.Error(err))
			writeAuthError(w, http.StatusBadGateway, auth)
		default:
			logger.Debug("auth rejected", zap.String("cause", string(auth.Cause)))
			writeAuthError(w, http.StatusUnauthorized, auth)
		}
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &configuration):
		logger.Error("missing configuration", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &records):
		// A configuration error inside a record failure means the
		// backend was never configured, not that it broke.
		if errors.As(records.Err, &configuration) {
			logger.Warn("record store not configured", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		logger.Error("record store failure", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logger.Error("unexpected error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
