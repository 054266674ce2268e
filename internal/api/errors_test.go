package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"homeservices/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"slot", fmt.Errorf("svc-1 2026-07-02 10:00: %w", domain.ErrSlotUnavailable), http.StatusConflict, "time slot is already booked"},
		{"transition", domain.ErrInvalidTransition, http.StatusConflict, "status transition is not allowed"},
		{"no provider", domain.ErrProviderUnassigned, http.StatusConflict, "booking has no assigned provider"},
		{"dependents", domain.ErrHasDependents, http.StatusConflict, "record has dependent records"},
		{"concurrent", domain.ErrConcurrentModification, http.StatusConflict, "record was modified concurrently"},
		{"not found", fmt.Errorf("booking b-1: %w", domain.ErrNotFound), http.StatusNotFound, "not found"},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"store", fmt.Errorf("query: %w", domain.ErrStoreUnavailable), http.StatusServiceUnavailable, "store unavailable"},
		{"unknown", errors.New("sql: connection is already closed"), http.StatusInternalServerError, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil, tt.err)

			assert.Equal(t, tt.code, rec.Code)
			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.msg, body.Error)
			assert.Empty(t, body.Fields)
		})
	}
}

func TestWriteServiceErrorValidation(t *testing.T) {
	verr := domain.NewValidationError()
	verr.Add("service_time", "must be between 09:00 and 17:00")
	verr.Add("customer_phone", "must be a valid 10-digit mobile number starting with 6-9")

	rec := httptest.NewRecorder()
	writeServiceError(rec, httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil), nil, fmt.Errorf("create: %w", verr))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation failed", body.Error)
	assert.Len(t, body.Fields, 2)
}
