package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"homeservices/internal/domain"
	"homeservices/internal/events"
	"homeservices/internal/metrics"
	"homeservices/internal/models"
	"homeservices/internal/validator"

	"github.com/rs/zerolog"
)

// SlotAvailability is one bookable hour of a service day.
type SlotAvailability struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

type BookingService struct {
	repo       domain.Repository
	eventBus   domain.EventPublisher
	syncWorker domain.SyncWorker
	validator  *validator.BookingValidator
	retries    int
	logger     *zerolog.Logger
	now        func() time.Time
}

func NewBookingService(repo domain.Repository, eventBus domain.EventPublisher, syncWorker domain.SyncWorker,
	v *validator.BookingValidator, retries int, logger *zerolog.Logger,
) *BookingService {
	if v == nil {
		v = validator.New(validator.DefaultRules())
	}
	if retries <= 0 {
		retries = 3
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BookingService{
		repo:       repo,
		eventBus:   eventBus,
		syncWorker: syncWorker,
		validator:  v,
		retries:    retries,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateBooking validates the form against the service catalog, checks the slot
// and stores a pending booking for the calling customer.
func (s *BookingService) CreateBooking(ctx context.Context, actor domain.Actor, form validator.BookingForm) (*models.Booking, error) {
	if !actor.IsCustomer() {
		return nil, fmt.Errorf("only customers can book: %w", domain.ErrForbidden)
	}

	var (
		svc      *models.Service
		packages []*models.Package
		svcErr   string
	)
	if form.ServiceID != "" {
		var err error
		svc, err = s.repo.GetService(ctx, form.ServiceID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			svcErr = "unknown service"
		case err != nil:
			return nil, err
		case !svc.IsBookable():
			svcErr = "service is not available for booking"
		default:
			packages, err = s.repo.GetPackagesByService(ctx, svc.ID)
			if err != nil {
				return nil, err
			}
		}
	}

	intent, verr := s.validator.Validate(form, packages, s.now())
	if svcErr != "" {
		if verr == nil {
			verr = domain.NewValidationError()
		}
		verr.Add("service_id", svcErr)
	}
	if verr.HasErrors() {
		return nil, verr
	}

	// Сумма всегда считается по каталогу
	amount := svc.Price
	packageID := ""
	if intent.Package != nil {
		amount = intent.Package.Price
		packageID = intent.Package.ID
	}
	if intent.TotalAmount != nil && math.Abs(*intent.TotalAmount-amount) >= 0.005 {
		return nil, domain.FieldError("total_amount", fmt.Sprintf("does not match the price %.2f", amount))
	}

	if err := s.CheckAvailability(ctx, svc.ID, intent.ServiceDate, intent.ServiceTime); err != nil {
		return nil, err
	}

	booking := &models.Booking{
		CustomerID:          actor.UserID,
		ProviderID:          svc.ProviderID,
		ServiceID:           svc.ID,
		ServiceTitle:        svc.Title,
		PackageID:           packageID,
		ServiceDate:         intent.ServiceDate,
		ServiceTime:         intent.ServiceTime,
		EstimatedDuration:   svc.DurationMinutes,
		TotalAmount:         amount,
		CustomerAddress:     intent.CustomerAddress,
		CustomerPhone:       intent.CustomerPhone,
		SpecialInstructions: intent.SpecialInstructions,
	}

	if err := s.repo.CreateBookingWithLock(ctx, booking); err != nil {
		if errors.Is(err, domain.ErrSlotUnavailable) {
			metrics.IncSlotConflict()
		}
		return nil, err
	}

	metrics.IncBookingCreated()
	s.logger.Info().
		Str("booking_id", booking.ID).
		Str("service_id", booking.ServiceID).
		Str("date", booking.ServiceDate).
		Str("time", booking.ServiceTime).
		Msg("booking created")

	s.publishEvent(events.EventBookingCreated, booking, "", actor.UserID)
	s.enqueueSync(ctx, booking, "upsert")

	return booking, nil
}

// CheckAvailability returns ErrSlotUnavailable when a non-cancelled booking
// already holds the slot.
func (s *BookingService) CheckAvailability(ctx context.Context, serviceID, date, slot string) error {
	count, err := s.repo.CountActiveBookings(ctx, serviceID, date, slot)
	if err != nil {
		return err
	}
	if count > 0 {
		metrics.IncSlotConflict()
		return fmt.Errorf("%s %s %s: %w", serviceID, date, slot, domain.ErrSlotUnavailable)
	}
	return nil
}

// GetAvailability lists the hourly slots of a day for a service.
func (s *BookingService) GetAvailability(ctx context.Context, serviceID, date string) ([]SlotAvailability, error) {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return nil, domain.FieldError("date", "must be in YYYY-MM-DD format")
	}
	if _, err := s.repo.GetService(ctx, serviceID); err != nil {
		return nil, err
	}

	bookings, err := s.repo.ListBookings(ctx, models.BookingFilter{ServiceID: serviceID, DateFrom: date, DateTo: date})
	if err != nil {
		return nil, err
	}
	taken := make(map[string]bool, len(bookings))
	for _, b := range bookings {
		if b.Status != models.StatusCancelled {
			taken[b.ServiceTime] = true
		}
	}

	rules := s.validator.Rules()
	slots := make([]SlotAvailability, 0, rules.CloseHour-rules.OpenHour)
	for h := rules.OpenHour; h < rules.CloseHour; h++ {
		slot := fmt.Sprintf("%02d:00", h)
		slots = append(slots, SlotAvailability{Time: slot, Available: !taken[slot]})
	}
	return slots, nil
}

// Transition moves a booking to the requested status. The current record is
// re-read before every attempt, so a lost race on the version column is
// retried against fresh state and a repeated request ends in ErrInvalidTransition.
func (s *BookingService) Transition(ctx context.Context, actor domain.Actor, bookingID, rawStatus string) (*models.Booking, error) {
	target, ok := models.ParseBookingStatus(rawStatus)
	if !ok {
		return nil, domain.FieldError("status", "unknown booking status")
	}

	for attempt := 0; attempt < s.retries; attempt++ {
		booking, err := s.repo.GetBooking(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		if !canDriveTransition(actor, booking, target) {
			return nil, fmt.Errorf("booking %s -> %s: %w", bookingID, target, domain.ErrForbidden)
		}
		if !booking.Status.CanTransitionTo(target) {
			return nil, fmt.Errorf("booking %s %s -> %s: %w", bookingID, booking.Status, target, domain.ErrInvalidTransition)
		}
		if target == models.StatusConfirmed && booking.ProviderID == "" {
			return nil, fmt.Errorf("booking %s: %w", bookingID, domain.ErrProviderUnassigned)
		}

		from, version := booking.Status, booking.Version
		booking.Apply(target, s.now())

		err = s.repo.SaveBookingTransition(ctx, booking, from, version)
		if errors.Is(err, domain.ErrConcurrentModification) {
			s.logger.Warn().Str("booking_id", bookingID).Int("attempt", attempt+1).Msg("booking changed concurrently, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}

		metrics.IncTransition(string(from), string(target))
		s.logger.Info().
			Str("booking_id", bookingID).
			Str("from", string(from)).
			Str("to", string(target)).
			Str("actor", actor.UserID).
			Msg("booking status changed")

		s.publishEvent(events.TransitionEvent(target), booking, from, actor.UserID)
		s.enqueueSync(ctx, booking, "update_status")
		return booking, nil
	}

	return nil, fmt.Errorf("booking %s: %w", bookingID, domain.ErrConcurrentModification)
}

// AssignProvider sets the provider of a pending or confirmed booking.
func (s *BookingService) AssignProvider(ctx context.Context, actor domain.Actor, bookingID, providerID string) (*models.Booking, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	provider, err := s.repo.GetUser(ctx, providerID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.FieldError("provider_id", "unknown provider")
	}
	if err != nil {
		return nil, err
	}
	if provider.Role != models.RoleProvider {
		return nil, domain.FieldError("provider_id", "user is not a provider")
	}
	if !provider.IsVerified() {
		return nil, domain.FieldError("provider_id", "provider is not verified")
	}

	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.StatusPending && booking.Status != models.StatusConfirmed {
		return nil, fmt.Errorf("assign provider on %s booking: %w", booking.Status, domain.ErrInvalidTransition)
	}

	if err := s.repo.AssignBookingProvider(ctx, bookingID, booking.Version, providerID); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	s.publishEvent(events.EventProviderAssigned, updated, updated.Status, actor.UserID)
	s.enqueueSync(ctx, updated, "upsert")
	return updated, nil
}

// UpdatePaymentStatus is an admin correction of the payment state of an open booking.
func (s *BookingService) UpdatePaymentStatus(ctx context.Context, actor domain.Actor, bookingID, rawStatus string) (*models.Booking, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	status, ok := models.ParsePaymentStatus(rawStatus)
	if !ok {
		return nil, domain.FieldError("payment_status", "unknown payment status")
	}

	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status.IsTerminal() {
		return nil, fmt.Errorf("payment update on %s booking: %w", booking.Status, domain.ErrInvalidTransition)
	}

	if err := s.repo.UpdateBookingPayment(ctx, bookingID, booking.Version, status); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	s.enqueueSync(ctx, updated, "upsert")
	return updated, nil
}

func (s *BookingService) GetBooking(ctx context.Context, actor domain.Actor, id string) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, booking) {
		return nil, domain.ErrForbidden
	}
	return booking, nil
}

// ListBookings narrows the filter to what the actor may see.
func (s *BookingService) ListBookings(ctx context.Context, actor domain.Actor, filter models.BookingFilter) ([]*models.Booking, error) {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleProvider:
		filter.ProviderID = actor.UserID
	case models.RoleCustomer:
		filter.CustomerID = actor.UserID
	default:
		return nil, domain.ErrForbidden
	}
	return s.repo.ListBookings(ctx, filter)
}

func canView(actor domain.Actor, b *models.Booking) bool {
	switch {
	case actor.IsAdmin():
		return true
	case actor.IsProvider():
		return b.ProviderID != "" && b.ProviderID == actor.UserID
	case actor.IsCustomer():
		return b.CustomerID == actor.UserID
	}
	return false
}

// canDriveTransition: the assigned provider and admins drive the job,
// the customer may only cancel their own booking.
func canDriveTransition(actor domain.Actor, b *models.Booking, target models.BookingStatus) bool {
	switch {
	case actor.IsAdmin():
		return true
	case actor.IsProvider():
		return b.ProviderID != "" && b.ProviderID == actor.UserID
	case actor.IsCustomer():
		return b.CustomerID == actor.UserID && target == models.StatusCancelled
	}
	return false
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, prev models.BookingStatus, actorID string) {
	if s.eventBus == nil || eventType == "" {
		return
	}

	payload := events.NewBookingPayload(booking, prev, actorID, s.now())
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, booking *models.Booking, taskType string) {
	if s.syncWorker == nil {
		return
	}

	if err := s.syncWorker.EnqueueTask(ctx, taskType, booking); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}
