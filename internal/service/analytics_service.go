package service

import (
	"context"
	"time"

	"homeservices/internal/analytics"
	"homeservices/internal/domain"
	"homeservices/internal/models"

	"github.com/rs/zerolog"
)

// AnalyticsService loads store snapshots for the pure aggregation functions.
// Read failures are logged and the affected figures come out as zeros.
type AnalyticsService struct {
	repo   domain.Repository
	logger *zerolog.Logger
	now    func() time.Time
}

func NewAnalyticsService(repo domain.Repository, logger *zerolog.Logger) *AnalyticsService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &AnalyticsService{repo: repo, logger: logger, now: time.Now}
}

func (s *AnalyticsService) Dashboard(ctx context.Context, actor domain.Actor) (analytics.Dashboard, error) {
	if !actor.IsAdmin() {
		return analytics.Dashboard{}, domain.ErrForbidden
	}
	return analytics.BuildDashboard(s.Snapshot(ctx), s.now()), nil
}

// Snapshot reads everything the dashboard needs.
func (s *AnalyticsService) Snapshot(ctx context.Context) analytics.DashboardInput {
	var in analytics.DashboardInput
	var err error

	if in.Bookings, err = s.repo.ListBookings(ctx, models.BookingFilter{}); err != nil {
		s.logger.Error().Err(err).Msg("dashboard: load bookings")
		in.Bookings = nil
	}
	if in.Services, err = s.repo.ListServices(ctx, models.ServiceFilter{}); err != nil {
		s.logger.Error().Err(err).Msg("dashboard: load services")
		in.Services = nil
	}
	if in.Users, err = s.repo.ListUsers(ctx, ""); err != nil {
		s.logger.Error().Err(err).Msg("dashboard: load users")
		in.Users = nil
	}
	if in.Reviews, err = s.repo.ListReviews(ctx); err != nil {
		s.logger.Error().Err(err).Msg("dashboard: load reviews")
		in.Reviews = nil
	}
	return in
}

// ProviderEarnings reports the calling provider's figures. Admins may ask for any provider.
func (s *AnalyticsService) ProviderEarnings(ctx context.Context, actor domain.Actor, providerID string) (analytics.Earnings, error) {
	switch {
	case actor.IsAdmin():
		if providerID == "" {
			return analytics.Earnings{}, domain.FieldError("provider_id", "is required")
		}
	case actor.IsProvider():
		providerID = actor.UserID
	default:
		return analytics.Earnings{}, domain.ErrForbidden
	}

	bookings, err := s.repo.ListBookings(ctx, models.BookingFilter{ProviderID: providerID})
	if err != nil {
		s.logger.Error().Err(err).Str("provider_id", providerID).Msg("earnings: load bookings")
		bookings = nil
	}
	return analytics.ProviderEarnings(bookings, providerID, s.now()), nil
}
