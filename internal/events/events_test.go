package events

import (
	"errors"
	"testing"
	"time"

	"homeservices/internal/models"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	bus.Subscribe("test_event", func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	if err := bus.PublishJSON("test_event", map[string]string{"foo": "bar"}); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
	if received.Type != "test_event" {
		t.Errorf("expected type test_event, got %s", received.Type)
	}

	var decoded map[string]string
	if err := received.Decode(&decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if decoded["foo"] != "bar" {
		t.Errorf("expected foo=bar, got %s", decoded["foo"])
	}
}

func TestEventBusHandlerErrors(t *testing.T) {
	bus := NewEventBus()
	var second int
	var reported error

	bus.OnError(func(_ *Event, err error) { reported = err })
	bus.Subscribe("event", func(_ *Event) error { return errors.New("telegram down") })
	bus.Subscribe("event", func(_ *Event) error { second++; return nil })

	bus.Publish(&Event{Type: "event"})

	if second != 1 {
		t.Errorf("second handler should still run, got %d calls", second)
	}
	if reported == nil || reported.Error() != "telegram down" {
		t.Errorf("expected handler error to be reported, got %v", reported)
	}
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	bus.Publish(&Event{Type: "unknown"})
	if err := bus.PublishJSON("unknown", nil); err != nil {
		t.Errorf("PublishJSON failed: %v", err)
	}

	var nilBus *EventBus
	if err := nilBus.PublishJSON("unknown", nil); err != nil {
		t.Errorf("nil bus should be a no-op, got %v", err)
	}
}

func TestBookingPayload(t *testing.T) {
	at := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	b := &models.Booking{
		ID:          "b-1",
		CustomerID:  "c-1",
		ServiceID:   "s-1",
		ServiceDate: "2026-07-02",
		ServiceTime: "10:00",
		Status:      models.StatusConfirmed,
		TotalAmount: 999,
	}

	event, err := NewJSONEvent(EventBookingConfirmed, NewBookingPayload(b, models.StatusPending, "p-1", at))
	if err != nil {
		t.Fatalf("NewJSONEvent failed: %v", err)
	}
	if event.CreatedAt.IsZero() {
		t.Errorf("expected CreatedAt to be set")
	}

	var decoded BookingEventPayload
	if err := event.Decode(&decoded); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if decoded.BookingID != "b-1" || decoded.Status != "confirmed" || decoded.PrevStatus != "pending" {
		t.Errorf("unexpected payload: %+v", decoded)
	}
	if !decoded.OccurredAt.Equal(at) {
		t.Errorf("expected occurred_at %v, got %v", at, decoded.OccurredAt)
	}
}

func TestTransitionEvent(t *testing.T) {
	cases := map[models.BookingStatus]string{
		models.StatusConfirmed:  EventBookingConfirmed,
		models.StatusInProgress: EventBookingInProgress,
		models.StatusCompleted:  EventBookingCompleted,
		models.StatusCancelled:  EventBookingCancelled,
		"bogus":                 "",
	}
	for status, want := range cases {
		if got := TransitionEvent(status); got != want {
			t.Errorf("TransitionEvent(%q) = %q, want %q", status, got, want)
		}
	}
}
