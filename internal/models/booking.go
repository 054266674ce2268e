package models

import (
	"strings"
	"time"
)

type BookingStatus string

const (
	StatusPending    BookingStatus = "pending"
	StatusConfirmed  BookingStatus = "confirmed"
	StatusInProgress BookingStatus = "in_progress"
	StatusCompleted  BookingStatus = "completed"
	StatusCancelled  BookingStatus = "cancelled"
)

// AllBookingStatuses lists statuses in lifecycle order.
var AllBookingStatuses = []BookingStatus{
	StatusPending,
	StatusConfirmed,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
}

var bookingTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// ParseBookingStatus accepts the canonical labels plus the hyphenated "in-progress".
func ParseBookingStatus(raw string) (BookingStatus, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "in-progress" {
		return StatusInProgress, true
	}
	s := BookingStatus(v)
	return s, s.IsValid()
}

func (s BookingStatus) IsValid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

func (s BookingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, next := range bookingTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable in one step.
func (s BookingStatus) NextStatuses() []BookingStatus {
	return append([]BookingStatus(nil), bookingTransitions[s]...)
}

func (s BookingStatus) String() string {
	return string(s)
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

func ParsePaymentStatus(raw string) (PaymentStatus, bool) {
	s := PaymentStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return s, true
	}
	return s, false
}

type Booking struct {
	ID                  string        `json:"id"`
	CustomerID          string        `json:"customer_id"`
	ProviderID          string        `json:"provider_id,omitempty"`
	ServiceID           string        `json:"service_id"`
	ServiceTitle        string        `json:"service_title,omitempty"`
	PackageID           string        `json:"package_id,omitempty"`
	ServiceDate         string        `json:"service_date"` // YYYY-MM-DD
	ServiceTime         string        `json:"service_time"` // HH:MM
	EstimatedDuration   int           `json:"estimated_duration"`
	TotalAmount         float64       `json:"total_amount"`
	PaymentStatus       PaymentStatus `json:"payment_status"`
	Status              BookingStatus `json:"status"`
	CustomerAddress     string        `json:"customer_address"`
	CustomerPhone       string        `json:"customer_phone"`
	SpecialInstructions string        `json:"special_instructions,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	ConfirmedAt         *time.Time    `json:"confirmed_at,omitempty"`
	ActualStartTime     *time.Time    `json:"actual_start_time,omitempty"`
	ActualEndTime       *time.Time    `json:"actual_end_time,omitempty"`
	CancelledAt         *time.Time    `json:"cancelled_at,omitempty"`
	UpdatedAt           time.Time     `json:"updated_at"`
	Version             int64         `json:"version"`
}

// Apply moves the booking to target and records the side effects of that
// transition. It reports false and leaves the booking untouched when the
// transition is not allowed from the current status.
func (b *Booking) Apply(target BookingStatus, at time.Time) bool {
	if !b.Status.CanTransitionTo(target) {
		return false
	}

	stamp := func(dst **time.Time) {
		if *dst == nil {
			t := at
			*dst = &t
		}
	}

	switch target {
	case StatusConfirmed:
		stamp(&b.ConfirmedAt)
	case StatusInProgress:
		stamp(&b.ActualStartTime)
	case StatusCompleted:
		stamp(&b.ActualEndTime)
		b.PaymentStatus = PaymentPaid
	case StatusCancelled:
		stamp(&b.CancelledAt)
		b.PaymentStatus = PaymentRefunded
	}

	b.Status = target
	b.UpdatedAt = at
	return true
}

// BookingFilter narrows booking listings. Empty fields match everything.
type BookingFilter struct {
	CustomerID string
	ProviderID string
	ServiceID  string
	Status     BookingStatus
	DateFrom   string
	DateTo     string
}
