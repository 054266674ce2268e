package events

import (
	"encoding/json"
	"sync"
	"time"

	"homeservices/internal/models"
)

const (
	EventBookingCreated    = "booking_created"
	EventBookingConfirmed  = "booking_confirmed"
	EventBookingInProgress = "booking_in_progress"
	EventBookingCompleted  = "booking_completed"
	EventBookingCancelled  = "booking_cancelled"
	EventProviderAssigned  = "booking_provider_assigned"
	EventReviewCreated     = "review_created"
)

// BookingEventTypes lists every event emitted for a booking lifecycle change.
var BookingEventTypes = []string{
	EventBookingCreated,
	EventBookingConfirmed,
	EventBookingInProgress,
	EventBookingCompleted,
	EventBookingCancelled,
	EventProviderAssigned,
}

// TransitionEvent maps a target status to its event type.
func TransitionEvent(status models.BookingStatus) string {
	switch status {
	case models.StatusPending:
		return EventBookingCreated
	case models.StatusConfirmed:
		return EventBookingConfirmed
	case models.StatusInProgress:
		return EventBookingInProgress
	case models.StatusCompleted:
		return EventBookingCompleted
	case models.StatusCancelled:
		return EventBookingCancelled
	}
	return ""
}

// BookingEventPayload is the booking snapshot handed to subscribers.
type BookingEventPayload struct {
	BookingID    string    `json:"booking_id"`
	CustomerID   string    `json:"customer_id"`
	ProviderID   string    `json:"provider_id,omitempty"`
	ServiceID    string    `json:"service_id"`
	ServiceTitle string    `json:"service_title,omitempty"`
	ServiceDate  string    `json:"service_date"`
	ServiceTime  string    `json:"service_time"`
	Status       string    `json:"status"`
	PrevStatus   string    `json:"prev_status,omitempty"`
	TotalAmount  float64   `json:"total_amount"`
	ChangedBy    string    `json:"changed_by,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewBookingPayload snapshots b after a change made by actorID.
func NewBookingPayload(b *models.Booking, prev models.BookingStatus, actorID string, at time.Time) BookingEventPayload {
	return BookingEventPayload{
		BookingID:    b.ID,
		CustomerID:   b.CustomerID,
		ProviderID:   b.ProviderID,
		ServiceID:    b.ServiceID,
		ServiceTitle: b.ServiceTitle,
		ServiceDate:  b.ServiceDate,
		ServiceTime:  b.ServiceTime,
		Status:       b.Status.String(),
		PrevStatus:   string(prev),
		TotalAmount:  b.TotalAmount,
		ChangedBy:    actorID,
		OccurredAt:   at,
	}
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// ErrorHandler receives handler failures. Publishing never fails because of them.
type ErrorHandler func(event *Event, err error)

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	onError     ErrorHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError sets the callback for handler failures.
func (b *EventBus) OnError(h ErrorHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = h
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	onError := b.onError
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	// Handlers run synchronously; caller decides concurrency model.
	for _, handler := range handlers {
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}

	b.Publish(&event)
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
