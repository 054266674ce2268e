package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"homeservices/internal/domain"
	"homeservices/internal/export"
	"homeservices/internal/models"
	"homeservices/internal/service"
	"homeservices/internal/validator"
)

const maxBodyBytes = 1 << 20

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	code := http.StatusOK
	checks := make(map[string]string, len(s.svc.HealthChecks))
	for name, check := range s.svc.HealthChecks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	status := "ok"
	if code != http.StatusOK {
		status = "degraded"
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}

// Bookings

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)
	var form validator.BookingForm
	if !s.decode(w, r, &form) {
		return
	}
	booking, err := s.svc.Bookings.CreateBooking(r.Context(), actor, form)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	filter, err := bookingFilterFromQuery(r)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	bookings, err := s.svc.Bookings.ListBookings(r.Context(), mustActor(r), filter)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := s.svc.Bookings.GetBooking(r.Context(), mustActor(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleTransition(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	booking, err := s.svc.Bookings.Transition(r.Context(), mustActor(r), r.PathValue("id"), body.Status)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleAssignProvider(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProviderID string `json:"provider_id"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	booking, err := s.svc.Bookings.AssignProvider(r.Context(), mustActor(r), r.PathValue("id"), body.ProviderID)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handlePayment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PaymentStatus string `json:"payment_status"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	booking, err := s.svc.Bookings.UpdatePaymentStatus(r.Context(), mustActor(r), r.PathValue("id"), body.PaymentStatus)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	var in service.ReviewInput
	if !s.decode(w, r, &in) {
		return
	}
	review, err := s.svc.Reviews.CreateReview(r.Context(), mustActor(r), r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

// Services and packages

func (s *HTTPServer) handleListServices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ServiceFilter{
		CategoryID: strings.TrimSpace(q.Get("category_id")),
		ProviderID: strings.TrimSpace(q.Get("provider_id")),
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, ok := models.ParseModerationStatus(raw)
		if !ok {
			writeServiceError(w, r, s.logger, domain.FieldError("status", "unknown moderation status"))
			return
		}
		filter.Status = status
	}

	services, err := s.svc.Catalog.ListServices(r.Context(), mustActor(r), filter)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (s *HTTPServer) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var in service.ServiceInput
	if !s.decode(w, r, &in) {
		return
	}
	svc, err := s.svc.Catalog.CreateService(r.Context(), mustActor(r), in)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, svc)
}

func (s *HTTPServer) handleGetService(w http.ResponseWriter, r *http.Request) {
	svc, err := s.svc.Catalog.GetService(r.Context(), mustActor(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (s *HTTPServer) handleResubmitService(w http.ResponseWriter, r *http.Request) {
	var in service.ServiceInput
	if !s.decode(w, r, &in) {
		return
	}
	svc, err := s.svc.Catalog.ResubmitService(r.Context(), mustActor(r), r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (s *HTTPServer) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Catalog.DeleteService(r.Context(), mustActor(r), r.PathValue("id")); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleServiceModeration(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Decision string `json:"decision"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	svc, err := s.svc.Catalog.SetServiceModeration(r.Context(), mustActor(r), r.PathValue("id"), body.Decision)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (s *HTTPServer) handleListPackages(w http.ResponseWriter, r *http.Request) {
	packages, err := s.svc.Catalog.ListPackages(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"packages": packages})
}

func (s *HTTPServer) handleAddPackage(w http.ResponseWriter, r *http.Request) {
	var in service.PackageInput
	if !s.decode(w, r, &in) {
		return
	}
	pkg, err := s.svc.Catalog.AddPackage(r.Context(), mustActor(r), r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, pkg)
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	slots, err := s.svc.Bookings.GetAvailability(r.Context(), r.PathValue("id"), date)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "slots": slots})
}

func (s *HTTPServer) handleListReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := s.svc.Reviews.ListServiceReviews(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviews": reviews})
}

// Categories

func (s *HTTPServer) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.svc.Catalog.GetActiveCategories(r.Context())
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (s *HTTPServer) handleUpsertCategory(w http.ResponseWriter, r *http.Request) {
	var in service.CategoryInput
	if !s.decode(w, r, &in) {
		return
	}
	category, err := s.svc.Catalog.UpsertCategory(r.Context(), mustActor(r), in)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (s *HTTPServer) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Catalog.DeleteCategory(r.Context(), mustActor(r), r.PathValue("id")); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Users

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if !s.decode(w, r, &in) {
		return
	}
	user, err := s.svc.Users.Register(r.Context(), mustActor(r), in)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.svc.Users.GetUser(r.Context(), mustActor(r).UserID)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Users.ListUsers(r.Context(), mustActor(r), r.URL.Query().Get("role"))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *HTTPServer) handleUserModeration(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Decision string `json:"decision"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	user, err := s.svc.Users.SetUserModeration(r.Context(), mustActor(r), r.PathValue("id"), body.Decision)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Admin and provider views

func (s *HTTPServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := s.svc.Analytics.Dashboard(r.Context(), mustActor(r))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (s *HTTPServer) handleBookingsReport(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)
	if !actor.IsAdmin() {
		writeServiceError(w, r, s.logger, domain.ErrForbidden)
		return
	}

	filter, err := bookingFilterFromQuery(r)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	bookings, err := s.svc.Bookings.ListBookings(r.Context(), actor, filter)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	dashboard, err := s.svc.Analytics.Dashboard(r.Context(), actor)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	report := export.Report{Bookings: bookings, Dashboard: &dashboard, From: filter.DateFrom, To: filter.DateTo}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(s.now())+`"`)
	if err := export.Write(w, report); err != nil {
		// Заголовки уже отправлены, остается только залогировать
		requestLogger(r, s.logger).Error().Err(err).Msg("write bookings report")
	}
}

func (s *HTTPServer) handleEarnings(w http.ResponseWriter, r *http.Request) {
	earnings, err := s.svc.Analytics.ProviderEarnings(r.Context(), mustActor(r), strings.TrimSpace(r.URL.Query().Get("provider_id")))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, earnings)
}

func (s *HTTPServer) handleRequeueSync(w http.ResponseWriter, r *http.Request) {
	if !mustActor(r).IsAdmin() {
		writeServiceError(w, r, s.logger, domain.ErrForbidden)
		return
	}
	n, err := s.svc.Sync.RequeueFailed(r.Context())
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requeued": n})
}

// helpers

func (s *HTTPServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		msg := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		writeError(w, http.StatusBadRequest, msg)
		return false
	}
	return true
}

func bookingFilterFromQuery(r *http.Request) (models.BookingFilter, error) {
	q := r.URL.Query()
	// customer_id and provider_id only narrow the result: the service
	// pins the caller's own id for non-admins.
	filter := models.BookingFilter{
		CustomerID: strings.TrimSpace(q.Get("customer_id")),
		ProviderID: strings.TrimSpace(q.Get("provider_id")),
		ServiceID:  strings.TrimSpace(q.Get("service_id")),
		DateFrom:  strings.TrimSpace(q.Get("date_from")),
		DateTo:    strings.TrimSpace(q.Get("date_to")),
	}

	verr := domain.NewValidationError()
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, ok := models.ParseBookingStatus(raw)
		if !ok {
			verr.Add("status", "unknown booking status")
		}
		filter.Status = status
	}
	for field, value := range map[string]string{"date_from": filter.DateFrom, "date_to": filter.DateTo} {
		if value == "" {
			continue
		}
		if _, err := time.Parse(models.DateLayout, value); err != nil {
			verr.Add(field, "must be in YYYY-MM-DD format")
		}
	}
	if verr.HasErrors() {
		return filter, verr
	}
	return filter, nil
}

// mustActor returns the caller set by the auth middleware. Routes behind it
// always carry one; the zero actor has no role and is refused by the services.
func mustActor(r *http.Request) domain.Actor {
	actor, _ := ActorFromContext(r.Context())
	return actor
}
