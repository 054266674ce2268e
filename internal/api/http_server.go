package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"homeservices/internal/config"
	"homeservices/internal/domain"
	"homeservices/internal/logging"
	"homeservices/internal/metrics"
	"homeservices/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-ID"

// Requeuer puts failed back-office sync tasks back on the queue.
type Requeuer interface {
	RequeueFailed(ctx context.Context) (int64, error)
}

// Services bundles what the handlers call into.
type Services struct {
	Bookings  *service.BookingService
	Catalog   *service.CatalogService
	Users     *service.UserService
	Reviews   *service.ReviewService
	Analytics *service.AnalyticsService
	// Sync is optional; without it the requeue endpoint is not mounted.
	Sync Requeuer
	// HealthChecks are run by /healthz, keyed by dependency name.
	HealthChecks map[string]func(context.Context) error
}

// HTTPServer exposes the REST API.
type HTTPServer struct {
	cfg    config.APIConfig
	svc    Services
	mux    *http.ServeMux
	server *http.Server
	auth   *Authenticator
	logger *zerolog.Logger
	now    func() time.Time
}

func NewHTTPServer(cfg config.APIConfig, svc Services, store domain.IdempotencyStore, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	httpLogger := logging.Component(logger, "http")

	var blocked func(string) bool
	if svc.Users != nil {
		blocked = svc.Users.IsBlocked
	}

	srv := &HTTPServer{
		cfg:    cfg,
		svc:    svc,
		mux:    http.NewServeMux(),
		auth:   NewAuthenticator(cfg, blocked),
		logger: &httpLogger,
		now:    time.Now,
	}
	srv.routes()

	var handler http.Handler = srv.mux
	if cfg.Idempotency.Enabled {
		handler = newIdempotency(cfg.Idempotency, store, srv.logger).Wrap(handler)
	}
	handler = srv.auth.Wrap(handler)
	handler = srv.loggingMiddleware(recoverMiddleware(srv.logger, handler))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /api/v1/bookings", s.handleCreateBooking)
	s.mux.HandleFunc("GET /api/v1/bookings", s.handleListBookings)
	s.mux.HandleFunc("GET /api/v1/bookings/{id}", s.handleGetBooking)
	s.mux.HandleFunc("POST /api/v1/bookings/{id}/transitions", s.handleTransition)
	s.mux.HandleFunc("PUT /api/v1/bookings/{id}/provider", s.handleAssignProvider)
	s.mux.HandleFunc("PATCH /api/v1/bookings/{id}/payment", s.handlePayment)
	s.mux.HandleFunc("POST /api/v1/bookings/{id}/review", s.handleCreateReview)

	s.mux.HandleFunc("GET /api/v1/services", s.handleListServices)
	s.mux.HandleFunc("POST /api/v1/services", s.handleCreateService)
	s.mux.HandleFunc("GET /api/v1/services/{id}", s.handleGetService)
	s.mux.HandleFunc("PUT /api/v1/services/{id}", s.handleResubmitService)
	s.mux.HandleFunc("DELETE /api/v1/services/{id}", s.handleDeleteService)
	s.mux.HandleFunc("PATCH /api/v1/services/{id}/moderation", s.handleServiceModeration)
	s.mux.HandleFunc("GET /api/v1/services/{id}/packages", s.handleListPackages)
	s.mux.HandleFunc("POST /api/v1/services/{id}/packages", s.handleAddPackage)
	s.mux.HandleFunc("GET /api/v1/services/{id}/availability", s.handleAvailability)
	s.mux.HandleFunc("GET /api/v1/services/{id}/reviews", s.handleListReviews)

	s.mux.HandleFunc("GET /api/v1/categories", s.handleListCategories)
	s.mux.HandleFunc("PUT /api/v1/categories", s.handleUpsertCategory)
	s.mux.HandleFunc("DELETE /api/v1/categories/{id}", s.handleDeleteCategory)

	s.mux.HandleFunc("POST /api/v1/users", s.handleRegister)
	s.mux.HandleFunc("GET /api/v1/me", s.handleMe)
	s.mux.HandleFunc("GET /api/v1/users", s.handleListUsers)
	s.mux.HandleFunc("PATCH /api/v1/users/{id}/moderation", s.handleUserModeration)

	s.mux.HandleFunc("GET /api/v1/admin/dashboard", s.handleDashboard)
	s.mux.HandleFunc("GET /api/v1/admin/reports/bookings.xlsx", s.handleBookingsReport)
	s.mux.HandleFunc("GET /api/v1/provider/earnings", s.handleEarnings)
	if s.svc.Sync != nil {
		s.mux.HandleFunc("POST /api/v1/admin/sync/requeue", s.handleRequeueSync)
	}
}

// Handler returns the full middleware chain.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		r = r.WithContext(logging.WithRequestID(r.Context(), s.logger, requestID))

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		route := "unmatched"
		if _, pattern := s.mux.Handler(r); pattern != "" {
			route = pattern
		}
		metrics.ObserveHTTP(route, recorder.status, dur)

		logging.FromContext(r.Context(), s.logger).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

func recoverMiddleware(logger *zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				requestLogger(r, logger).Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panic")
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func requestLogger(r *http.Request, fallback *zerolog.Logger) *zerolog.Logger {
	return logging.FromContext(r.Context(), fallback)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
