package notify

import (
	"context"
	"fmt"
	"time"

	"homeservices/internal/domain"
	"homeservices/internal/models"

	"github.com/rs/zerolog"
)

type BookingLister interface {
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
}

// Reminder sends customers a daily reminder about confirmed bookings for the next day.
type Reminder struct {
	bookings BookingLister
	notifier domain.Notifier
	hour     int
	minute   int
	now      func() time.Time
	logger   *zerolog.Logger
}

// NewReminder parses at as HH:MM local time.
func NewReminder(bookings BookingLister, notifier domain.Notifier, at string, logger *zerolog.Logger) (*Reminder, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(at, "%d:%d", &hour, &minute); err != nil {
		return nil, fmt.Errorf("invalid reminder time %q: %w", at, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("invalid reminder time %q", at)
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Reminder{
		bookings: bookings,
		notifier: notifier,
		hour:     hour,
		minute:   minute,
		now:      time.Now,
		logger:   logger,
	}, nil
}

// Start waits for the next reminder time and then fires every 24h until ctx is done.
func (r *Reminder) Start(ctx context.Context) {
	timer := time.NewTimer(r.untilNext())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			sent := r.SendDue(ctx)
			r.logger.Info().Int("sent", sent).Msg("booking reminders sent")
			timer.Reset(r.untilNext())
		}
	}
}

// SendDue notifies customers of tomorrow's confirmed bookings and returns how many were delivered.
func (r *Reminder) SendDue(ctx context.Context) int {
	tomorrow := r.now().AddDate(0, 0, 1).Format(models.DateLayout)
	bookings, err := r.bookings.ListBookings(ctx, models.BookingFilter{
		Status:   models.StatusConfirmed,
		DateFrom: tomorrow,
		DateTo:   tomorrow,
	})
	if err != nil {
		r.logger.Error().Err(err).Str("date", tomorrow).Msg("reminder: list bookings")
		return 0
	}

	sent := 0
	for _, b := range bookings {
		data := map[string]string{
			"booking_id": b.ID,
			"service":    b.ServiceTitle,
			"date":       b.ServiceDate,
			"time":       b.ServiceTime,
		}
		if err := r.notifier.Notify(ctx, b.CustomerID, TemplateBookingReminder, data); err != nil {
			r.logger.Debug().Err(err).Str("booking_id", b.ID).Msg("reminder not delivered")
			continue
		}
		sent++
	}
	return sent
}

func (r *Reminder) untilNext() time.Duration {
	now := r.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), r.hour, r.minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
