package service

import (
	"context"
	"fmt"
	"strings"

	"homeservices/internal/analytics"
	"homeservices/internal/domain"
	"homeservices/internal/events"
	"homeservices/internal/models"
	"homeservices/internal/validator"

	"github.com/rs/zerolog"
)

type ReviewInput struct {
	Rating  int    `json:"rating" validate:"gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

type ReviewService struct {
	repo     domain.Repository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewReviewService(repo domain.Repository, eventBus domain.EventPublisher, logger *zerolog.Logger) *ReviewService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ReviewService{repo: repo, eventBus: eventBus, logger: logger}
}

// CreateReview rates a completed booking of the calling customer and refreshes
// the service rating.
func (s *ReviewService) CreateReview(ctx context.Context, actor domain.Actor, bookingID string, in ReviewInput) (*models.Review, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.IsCustomer() || booking.CustomerID != actor.UserID {
		return nil, domain.ErrForbidden
	}
	if booking.Status != models.StatusCompleted {
		return nil, fmt.Errorf("review of %s booking: %w", booking.Status, domain.ErrInvalidTransition)
	}
	if verr := validator.Struct(in); verr != nil {
		return nil, verr
	}

	review := &models.Review{
		BookingID:  booking.ID,
		ServiceID:  booking.ServiceID,
		CustomerID: actor.UserID,
		Rating:     in.Rating,
		Comment:    strings.TrimSpace(in.Comment),
	}
	if err := s.repo.CreateReview(ctx, review); err != nil {
		return nil, err
	}

	reviews, err := s.repo.GetReviewsByService(ctx, booking.ServiceID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateServiceRating(ctx, booking.ServiceID, analytics.AverageRating(reviews), len(reviews)); err != nil {
		return nil, err
	}

	if s.eventBus != nil {
		if err := s.eventBus.PublishJSON(events.EventReviewCreated, review); err != nil {
			s.logger.Error().Err(err).Str("booking_id", bookingID).Msg("publish event error")
		}
	}
	return review, nil
}

func (s *ReviewService) ListServiceReviews(ctx context.Context, serviceID string) ([]*models.Review, error) {
	return s.repo.GetReviewsByService(ctx, serviceID)
}
