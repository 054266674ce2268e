package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"homeservices/internal/domain"
	"homeservices/internal/events"
	"homeservices/internal/metrics"
	"homeservices/internal/models"

	"github.com/rs/zerolog"
)

const notifyTimeout = 10 * time.Second

type delivery struct {
	userID   string
	template string
	data     map[string]string
}

// Subscriber turns booking events into user notifications. Handle only queues
// them; Start delivers in the background so a slow channel never holds up the
// request that published the event. Delivery failures are logged and counted.
type Subscriber struct {
	notifier domain.Notifier
	queue    chan delivery
	logger   *zerolog.Logger
}

func NewSubscriber(notifier domain.Notifier, logger *zerolog.Logger) *Subscriber {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Subscriber{
		notifier: notifier,
		queue:    make(chan delivery, models.WorkerQueueSize),
		logger:   logger,
	}
}

// Start delivers queued notifications until ctx is done.
func (s *Subscriber) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if n := len(s.queue); n > 0 {
				s.logger.Warn().Int("pending", n).Msg("notifications dropped on shutdown")
			}
			return
		case d := <-s.queue:
			s.send(ctx, d)
		}
	}
}

// Register hooks the subscriber into every booking event.
func (s *Subscriber) Register(bus *events.EventBus) {
	for _, eventType := range events.BookingEventTypes {
		bus.Subscribe(eventType, s.Handle)
	}
}

func (s *Subscriber) Handle(event *events.Event) error {
	var p events.BookingEventPayload
	if err := event.Decode(&p); err != nil {
		s.logger.Error().Err(err).Str("event_type", event.Type).Msg("decode booking event")
		return nil
	}

	data := map[string]string{
		"booking_id": p.BookingID,
		"service":    p.ServiceTitle,
		"date":       p.ServiceDate,
		"time":       p.ServiceTime,
		"status":     p.Status,
		"amount":     fmt.Sprintf("%.2f", p.TotalAmount),
	}

	switch event.Type {
	case events.EventProviderAssigned:
		s.enqueue(p.ProviderID, TemplateProviderNewJob, data)
	case events.EventBookingCreated:
		s.enqueue(p.CustomerID, TemplateBookingCreated, data)
		s.enqueue(p.ProviderID, TemplateProviderNewJob, data)
	default:
		s.enqueue(p.CustomerID, event.Type, data)
	}
	return nil
}

func (s *Subscriber) enqueue(userID, templateKey string, data map[string]string) {
	if userID == "" {
		return
	}
	select {
	case s.queue <- delivery{userID: userID, template: templateKey, data: data}:
	default:
		metrics.IncNotification(templateKey, false)
		s.logger.Warn().Str("user_id", userID).Str("template", templateKey).Msg("notification queue full, dropped")
	}
}

func (s *Subscriber) send(ctx context.Context, d delivery) {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	err := s.notifier.Notify(ctx, d.userID, d.template, d.data)
	switch {
	case err == nil:
		metrics.IncNotification(d.template, true)
	case errors.Is(err, ErrNoChannel):
		s.logger.Debug().Str("user_id", d.userID).Str("template", d.template).Msg("recipient has no channel")
	default:
		metrics.IncNotification(d.template, false)
		s.logger.Warn().Err(err).Str("user_id", d.userID).Str("template", d.template).Msg("notification failed")
	}
}
