package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"homeservices/internal/domain"

	"github.com/rs/zerolog"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// errorStatuses maps domain sentinels to HTTP codes; order matters for wrapped chains.
var errorStatuses = []struct {
	err  error
	code int
}{
	{domain.ErrValidationFailed, http.StatusUnprocessableEntity},
	{domain.ErrSlotUnavailable, http.StatusConflict},
	{domain.ErrInvalidTransition, http.StatusConflict},
	{domain.ErrProviderUnassigned, http.StatusConflict},
	{domain.ErrHasDependents, http.StatusConflict},
	{domain.ErrConcurrentModification, http.StatusConflict},
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrForbidden, http.StatusForbidden},
	{domain.ErrStoreUnavailable, http.StatusServiceUnavailable},
}

// writeServiceError translates a service error into a response.
// Unknown errors are logged and reported as 500 without details.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: domain.ErrValidationFailed.Error(), Fields: verr.Fields})
		return
	}

	for _, m := range errorStatuses {
		if errors.Is(err, m.err) {
			if m.code == http.StatusServiceUnavailable {
				requestLogger(r, logger).Error().Err(err).Msg("store unavailable")
			}
			writeError(w, m.code, m.err.Error())
			return
		}
	}

	requestLogger(r, logger).Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message})
}
