package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"homeservices/internal/config"
	"homeservices/internal/database"
	"homeservices/internal/models"
	"homeservices/internal/repository"
	"homeservices/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const testSecret = "0123456789abcdef-test"

type testAPI struct {
	t      *testing.T
	ts     *httptest.Server
	db     *database.DB
	tokens map[string]string
}

func testConfig() config.APIConfig {
	return config.APIConfig{
		Auth:        config.APIAuthConfig{JWTSecret: testSecret, Issuer: "homeservices-test"},
		Idempotency: config.APIIdempotencyConfig{Enabled: true, Header: "X-Idempotency-Key", TTL: time.Hour},
	}
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc := Services{
		Bookings:  service.NewBookingService(db, nil, nil, nil, 3, &logger),
		Catalog:   service.NewCatalogService(db, &logger),
		Users:     service.NewUserService(db, []string{"blocked-1"}, &logger),
		Reviews:   service.NewReviewService(db, nil, &logger),
		Analytics: service.NewAnalyticsService(db, &logger),
		HealthChecks: map[string]func(context.Context) error{
			"database": db.PingContext,
		},
	}
	srv := NewHTTPServer(testConfig(), svc, repository.NewMemoryIdempotencyStore(), &logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	api := &testAPI{t: t, ts: ts, db: db, tokens: make(map[string]string)}
	ctx := context.Background()
	for id, role := range map[string]models.Role{
		"admin-1":    models.RoleAdmin,
		"provider-1": models.RoleProvider,
		"customer-1": models.RoleCustomer,
		"customer-2": models.RoleCustomer,
		"blocked-1":  models.RoleCustomer,
	} {
		require.NoError(t, db.CreateUser(ctx, &models.User{ID: id, Role: role, FullName: id, VerificationStatus: models.ModerationApproved}))
		token, err := IssueToken(testSecret, "homeservices-test", id, role, time.Hour)
		require.NoError(t, err)
		api.tokens[id] = token
	}
	return api
}

func (a *testAPI) do(user, method, path string, body any, headers ...string) (*http.Response, []byte) {
	a.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, a.ts.URL+path, reader)
	require.NoError(a.t, err)
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+a.tokens[user])
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	return resp, data
}

// approvedService walks a listing through creation and approval.
func (a *testAPI) approvedService() models.Service {
	a.t.Helper()

	resp, _ := a.do("admin-1", http.MethodPut, "/api/v1/categories", map[string]any{"id": "cleaning", "name": "Cleaning"})
	require.Equal(a.t, http.StatusOK, resp.StatusCode)

	resp, body := a.do("provider-1", http.MethodPost, "/api/v1/services", map[string]any{
		"category_id": "cleaning", "title": "Deep Cleaning", "price": 1499, "duration_minutes": 120,
	})
	require.Equal(a.t, http.StatusCreated, resp.StatusCode, string(body))
	var svc models.Service
	require.NoError(a.t, json.Unmarshal(body, &svc))

	resp, body = a.do("admin-1", http.MethodPatch, "/api/v1/services/"+svc.ID+"/moderation", map[string]string{"decision": "approved"})
	require.Equal(a.t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(a.t, json.Unmarshal(body, &svc))
	return svc
}

func futureDate(days int) string {
	return time.Now().AddDate(0, 0, days).Format(models.DateLayout)
}

func bookingBody(serviceID, date, slot string) map[string]any {
	return map[string]any{
		"service_id":       serviceID,
		"service_date":     date,
		"service_time":     slot,
		"customer_address": "221B Baker Street, Pune",
		"customer_phone":   "+91 98765 43210",
	}
}

func TestHealthIsPublic(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.do("", http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
	assert.JSONEq(t, `{"status":"ok","checks":{"database":"ok"}}`, string(body))
}

func TestHealthDegraded(t *testing.T) {
	logger := zerolog.Nop()
	srv := NewHTTPServer(testConfig(), Services{HealthChecks: map[string]func(context.Context) error{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}}, nil, &logger)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestAuthentication(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.do("", http.MethodGet, "/api/v1/bookings", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body), errMissingToken.Error())

	api.tokens["forged"] = "not-a-jwt"
	resp, body = api.do("forged", http.MethodGet, "/api/v1/bookings", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body), errInvalidToken.Error())

	resp, _ = api.do("blocked-1", http.MethodGet, "/api/v1/bookings", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = api.do("customer-1", http.MethodGet, "/api/v1/me", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"id":"customer-1"`)
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	svc := api.approvedService()
	date := futureDate(3)

	resp, body := api.do("customer-1", http.MethodPost, "/api/v1/bookings", bookingBody(svc.ID, date, "10:00"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var booking models.Booking
	require.NoError(t, json.Unmarshal(body, &booking))
	assert.Equal(t, models.StatusPending, booking.Status)
	assert.Equal(t, "9876543210", booking.CustomerPhone)
	assert.Equal(t, 1499.0, booking.TotalAmount)

	t.Run("slot is taken", func(t *testing.T) {
		resp, body := api.do("customer-2", http.MethodPost, "/api/v1/bookings", bookingBody(svc.ID, date, "10:00"))
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Contains(t, string(body), "time slot is already booked")

		resp, body = api.do("customer-2", http.MethodGet, "/api/v1/services/"+svc.ID+"/availability?date="+date, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out struct {
			Slots []service.SlotAvailability `json:"slots"`
		}
		require.NoError(t, json.Unmarshal(body, &out))
		require.NotEmpty(t, out.Slots)
		for _, s := range out.Slots {
			assert.Equal(t, s.Time != "10:00", s.Available, s.Time)
		}
	})

	t.Run("customer cannot confirm", func(t *testing.T) {
		resp, _ := api.do("customer-1", http.MethodPost, "/api/v1/bookings/"+booking.ID+"/transitions", map[string]string{"status": "confirmed"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("other customer cannot read", func(t *testing.T) {
		resp, _ := api.do("customer-2", http.MethodGet, "/api/v1/bookings/"+booking.ID, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("provider drives the job", func(t *testing.T) {
		for _, status := range []string{"confirmed", "in-progress", "completed"} {
			resp, body := api.do("provider-1", http.MethodPost, "/api/v1/bookings/"+booking.ID+"/transitions", map[string]string{"status": status})
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		}

		resp, body := api.do("customer-1", http.MethodGet, "/api/v1/bookings/"+booking.ID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var done models.Booking
		require.NoError(t, json.Unmarshal(body, &done))
		assert.Equal(t, models.StatusCompleted, done.Status)
		assert.Equal(t, models.PaymentPaid, done.PaymentStatus)
		assert.NotNil(t, done.ActualEndTime)
	})

	t.Run("terminal booking rejects transition", func(t *testing.T) {
		resp, body := api.do("admin-1", http.MethodPost, "/api/v1/bookings/"+booking.ID+"/transitions", map[string]string{"status": "cancelled"})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Contains(t, string(body), "status transition is not allowed")
	})

	t.Run("review after completion", func(t *testing.T) {
		resp, body := api.do("customer-1", http.MethodPost, "/api/v1/bookings/"+booking.ID+"/review", map[string]any{"rating": 5, "comment": "spotless"})
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

		resp, body = api.do("customer-1", http.MethodGet, "/api/v1/services/"+svc.ID+"/reviews", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "spotless")
	})

	t.Run("listings are scoped", func(t *testing.T) {
		resp, body := api.do("customer-2", http.MethodGet, "/api/v1/bookings", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out struct {
			Bookings []models.Booking `json:"bookings"`
		}
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Empty(t, out.Bookings)

		resp, body = api.do("provider-1", http.MethodGet, "/api/v1/bookings?status=completed", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), booking.ID)
	})

	t.Run("earnings and dashboard", func(t *testing.T) {
		resp, body := api.do("provider-1", http.MethodGet, "/api/v1/provider/earnings", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		assert.Contains(t, string(body), "1499")

		resp, _ = api.do("customer-1", http.MethodGet, "/api/v1/admin/dashboard", nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp, body = api.do("admin-1", http.MethodGet, "/api/v1/admin/dashboard", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var dashboard map[string]any
		require.NoError(t, json.Unmarshal(body, &dashboard))
		assert.Equal(t, 1499.0, dashboard["total_revenue"])
	})
}

func TestValidationErrorsAreReportedTogether(t *testing.T) {
	api := newTestAPI(t)
	svc := api.approvedService()

	form := bookingBody(svc.ID, "2020-01-01", "22:00")
	form["customer_phone"] = "12345"
	resp, body := api.do("customer-1", http.MethodPost, "/api/v1/bookings", form)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var out errorResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "validation failed", out.Error)
	assert.Contains(t, out.Fields, "service_date")
	assert.Contains(t, out.Fields, "service_time")
	assert.Contains(t, out.Fields, "customer_phone")
}

func TestBadRequests(t *testing.T) {
	api := newTestAPI(t)

	req, err := http.NewRequest(http.MethodPost, api.ts.URL+"/api/v1/bookings", bytes.NewBufferString("{broken"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+api.tokens["customer-1"])
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := api.do("customer-1", http.MethodPost, "/api/v1/bookings", map[string]any{"unexpected": true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))

	resp, body = api.do("admin-1", http.MethodGet, "/api/v1/bookings?status=lost&date_from=01-07-2026", nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), "date_from")
	assert.Contains(t, string(body), "status")

	resp, _ = api.do("admin-1", http.MethodGet, "/api/v1/bookings/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminRegistersOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token, err := IssueToken(testSecret, "homeservices-test", "admin-2", models.RoleAdmin, time.Hour)
	require.NoError(t, err)
	api.tokens["admin-2"] = token

	resp, body := api.do("admin-2", http.MethodGet, "/api/v1/me", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, string(body))

	resp, body = api.do("admin-2", http.MethodPost, "/api/v1/users", map[string]any{"role": "admin", "full_name": "Meera"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = api.do("admin-2", http.MethodGet, "/api/v1/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var me models.User
	require.NoError(t, json.Unmarshal(body, &me))
	assert.Equal(t, models.RoleAdmin, me.Role)

	resp, _ = api.do("customer-1", http.MethodPost, "/api/v1/users", map[string]any{"role": "admin", "full_name": "Mallory"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAdminFiltersBookingsByParty(t *testing.T) {
	api := newTestAPI(t)
	svc := api.approvedService()
	date := futureDate(5)

	resp, body := api.do("customer-1", http.MethodPost, "/api/v1/bookings", bookingBody(svc.ID, date, "09:00"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var own models.Booking
	require.NoError(t, json.Unmarshal(body, &own))
	resp, body = api.do("customer-2", http.MethodPost, "/api/v1/bookings", bookingBody(svc.ID, date, "12:00"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	list := func(user, query string) []models.Booking {
		t.Helper()
		resp, body := api.do(user, http.MethodGet, "/api/v1/bookings"+query, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		var out struct {
			Bookings []models.Booking `json:"bookings"`
		}
		require.NoError(t, json.Unmarshal(body, &out))
		return out.Bookings
	}

	assert.Len(t, list("admin-1", ""), 2)

	byCustomer := list("admin-1", "?customer_id=customer-1")
	require.Len(t, byCustomer, 1)
	assert.Equal(t, own.ID, byCustomer[0].ID)

	assert.Empty(t, list("admin-1", "?provider_id=nobody"))
	assert.Len(t, list("admin-1", "?provider_id=provider-1"), 2)

	// A customer cannot widen the listing to someone else's bookings.
	mine := list("customer-1", "?customer_id=customer-2")
	require.Len(t, mine, 1)
	assert.Equal(t, own.ID, mine[0].ID)
}

func TestIdempotentBookingCreation(t *testing.T) {
	api := newTestAPI(t)
	svc := api.approvedService()
	form := bookingBody(svc.ID, futureDate(4), "11:00")

	first, firstBody := api.do("customer-1", http.MethodPost, "/api/v1/bookings", form, "X-Idempotency-Key", "key-1")
	require.Equal(t, http.StatusCreated, first.StatusCode, string(firstBody))
	assert.Empty(t, first.Header.Get(replayHeader))

	second, secondBody := api.do("customer-1", http.MethodPost, "/api/v1/bookings", form, "X-Idempotency-Key", "key-1")
	assert.Equal(t, http.StatusCreated, second.StatusCode)
	assert.Equal(t, "true", second.Header.Get(replayHeader))
	assert.JSONEq(t, string(firstBody), string(secondBody))

	bookings, err := api.db.ListBookings(context.Background(), models.BookingFilter{})
	require.NoError(t, err)
	assert.Len(t, bookings, 1)

	// Same key from another caller is a different request.
	third, _ := api.do("customer-2", http.MethodPost, "/api/v1/bookings", form, "X-Idempotency-Key", "key-1")
	assert.Equal(t, http.StatusConflict, third.StatusCode)
	assert.Empty(t, third.Header.Get(replayHeader))
}

func TestIdempotencyInFlight(t *testing.T) {
	store := repository.NewMemoryIdempotencyStore()
	m := newIdempotency(config.APIIdempotencyConfig{}, store, nil)

	calls := 0
	handler := m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusCreated, map[string]string{"ok": "yes"})
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil)
	req.Header.Set("X-Idempotency-Key", "abc")

	reserved, err := store.Reserve(context.Background(), "POST:/api/v1/bookings:abc", time.Minute)
	require.NoError(t, err)
	require.True(t, reserved)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Zero(t, calls)
}

func TestIdempotencyReleasesOnServerError(t *testing.T) {
	store := repository.NewMemoryIdempotencyStore()
	m := newIdempotency(config.APIIdempotencyConfig{}, store, nil)

	calls := 0
	handler := m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"ok": "yes"})
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/bookings/b-1/payment", nil)
		req.Header.Set("X-Idempotency-Key", "retry-me")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 2, calls)

	// GET is never guarded.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	req.Header.Set("X-Idempotency-Key", "retry-me")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, 3, calls)
}

func TestIdempotencyReleasesOnPanic(t *testing.T) {
	store := repository.NewMemoryIdempotencyStore()
	m := newIdempotency(config.APIIdempotencyConfig{}, store, nil)

	calls := 0
	handler := recoverMiddleware(nil, m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			panic("assignment to entry in nil map")
		}
		writeJSON(w, http.StatusCreated, map[string]string{"ok": "yes"})
	})))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil)
		req.Header.Set("X-Idempotency-Key", "after-panic")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusInternalServerError, send().Code)

	retry := send()
	assert.Equal(t, http.StatusCreated, retry.Code)
	assert.Empty(t, retry.Header().Get(replayHeader))
	assert.Equal(t, 2, calls)

	replayed := send()
	assert.Equal(t, http.StatusCreated, replayed.Code)
	assert.Equal(t, "true", replayed.Header().Get(replayHeader))
	assert.Equal(t, 2, calls)
}

// contextCheckingStore remembers the context state Complete was called with.
type contextCheckingStore struct {
	*repository.MemoryIdempotencyStore
	completeErr error
	completed   bool
}

func (s *contextCheckingStore) Complete(ctx context.Context, key string, record *models.IdempotencyRecord, ttl time.Duration) error {
	s.completed = true
	s.completeErr = ctx.Err()
	return s.MemoryIdempotencyStore.Complete(ctx, key, record, ttl)
}

func TestIdempotencyOutcomeSurvivesClientCancel(t *testing.T) {
	store := &contextCheckingStore{MemoryIdempotencyStore: repository.NewMemoryIdempotencyStore()}
	m := newIdempotency(config.APIIdempotencyConfig{}, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// the client hangs up after the booking was written
		cancel()
		writeJSON(w, http.StatusCreated, map[string]string{"id": "b-1"})
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil).WithContext(ctx)
	req.Header.Set("X-Idempotency-Key", "hang-up")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, store.completed)
	assert.NoError(t, store.completeErr)

	record, err := store.Get(context.Background(), "POST:/api/v1/bookings:hang-up")
	require.NoError(t, err)
	assert.True(t, record.Done())
	assert.Equal(t, http.StatusCreated, record.StatusCode)
}

func TestCategoryDeleteGuardOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	svc := api.approvedService()

	resp, body := api.do("admin-1", http.MethodDelete, "/api/v1/categories/cleaning", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "record has dependent records")

	resp, _ = api.do("provider-1", http.MethodDelete, "/api/v1/services/"+svc.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = api.do("admin-1", http.MethodDelete, "/api/v1/categories/cleaning", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = api.do("customer-1", http.MethodGet, "/api/v1/categories", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(body), `"cleaning"`)
}

func TestBookingsReport(t *testing.T) {
	api := newTestAPI(t)
	svc := api.approvedService()
	resp, body := api.do("customer-1", http.MethodPost, "/api/v1/bookings", bookingBody(svc.ID, futureDate(2), "09:00"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, _ = api.do("provider-1", http.MethodGet, "/api/v1/admin/reports/bookings.xlsx", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = api.do("admin-1", http.MethodGet, "/api/v1/admin/reports/bookings.xlsx", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "bookings_")

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Bookings")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

type fakeRequeuer struct{ n int64 }

func (f fakeRequeuer) RequeueFailed(context.Context) (int64, error) { return f.n, nil }

func TestRequeueSync(t *testing.T) {
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	srv := NewHTTPServer(testConfig(), Services{
		Users: service.NewUserService(db, nil, &logger),
		Sync:  fakeRequeuer{n: 3},
	}, nil, &logger)

	call := func(role models.Role) *httptest.ResponseRecorder {
		token, err := IssueToken(testSecret, "homeservices-test", "u-1", role, time.Minute)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/sync/requeue", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusForbidden, call(models.RoleProvider).Code)
	rec := call(models.RoleAdmin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"requeued":3}`, rec.Body.String())
}
