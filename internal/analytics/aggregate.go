// Package analytics derives dashboard figures from booking snapshots.
// Every function is pure and returns zero values for empty input.
package analytics

import (
	"math"
	"sort"
	"time"

	"homeservices/internal/models"
)

// Window is a half-open [From, To) range on created_at. Zero bounds are open.
type Window struct {
	From time.Time
	To   time.Time
}

func (w *Window) contains(t time.Time) bool {
	if w == nil {
		return true
	}
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && !t.Before(w.To) {
		return false
	}
	return true
}

// TotalRevenue sums total_amount of paid bookings inside the window.
func TotalRevenue(bookings []*models.Booking, w *Window) float64 {
	var sum float64
	for _, b := range bookings {
		if b.PaymentStatus == models.PaymentPaid && w.contains(b.CreatedAt) {
			sum += b.TotalAmount
		}
	}
	return round2(sum)
}

// CountBookings counts bookings created inside the window.
func CountBookings(bookings []*models.Booking, w *Window) int {
	n := 0
	for _, b := range bookings {
		if w.contains(b.CreatedAt) {
			n++
		}
	}
	return n
}

// GrowthPercent is (current - previous) / previous * 100, or 0 without a baseline.
func GrowthPercent(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return round2((current - previous) / previous * 100)
}

func CompletionRate(bookings []*models.Booking) float64 {
	if len(bookings) == 0 {
		return 0
	}
	completed := 0
	for _, b := range bookings {
		if b.Status == models.StatusCompleted {
			completed++
		}
	}
	return round2(float64(completed) / float64(len(bookings)) * 100)
}

type StatusShare struct {
	Status  models.BookingStatus `json:"status"`
	Count   int                  `json:"count"`
	Percent float64              `json:"percent"`
}

// StatusDistribution lists every status in lifecycle order.
func StatusDistribution(bookings []*models.Booking) []StatusShare {
	counts := make(map[models.BookingStatus]int, len(models.AllBookingStatuses))
	for _, b := range bookings {
		counts[b.Status]++
	}

	out := make([]StatusShare, 0, len(models.AllBookingStatuses))
	for _, s := range models.AllBookingStatuses {
		share := StatusShare{Status: s, Count: counts[s]}
		if len(bookings) > 0 {
			share.Percent = round2(float64(share.Count) / float64(len(bookings)) * 100)
		}
		out = append(out, share)
	}
	return out
}

type ServiceRevenue struct {
	Name     string  `json:"name"`
	Revenue  float64 `json:"revenue"`
	Bookings int     `json:"bookings"`
}

// TopServicesByRevenue groups paid revenue by service name and returns the
// n best. names maps service id to title; unknown ids fall back to the id.
func TopServicesByRevenue(bookings []*models.Booking, names map[string]string, n int) []ServiceRevenue {
	byName := make(map[string]*ServiceRevenue)
	for _, b := range bookings {
		if b.PaymentStatus != models.PaymentPaid {
			continue
		}
		name := names[b.ServiceID]
		if name == "" {
			name = b.ServiceTitle
		}
		if name == "" {
			name = b.ServiceID
		}
		entry, ok := byName[name]
		if !ok {
			entry = &ServiceRevenue{Name: name}
			byName[name] = entry
		}
		entry.Revenue += b.TotalAmount
		entry.Bookings++
	}

	out := make([]ServiceRevenue, 0, len(byName))
	for _, e := range byName {
		e.Revenue = round2(e.Revenue)
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Revenue == out[j].Revenue {
			return out[i].Name < out[j].Name
		}
		return out[i].Revenue > out[j].Revenue
	})

	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func AverageRating(reviews []*models.Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	var sum int
	for _, r := range reviews {
		sum += r.Rating
	}
	return round2(float64(sum) / float64(len(reviews)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
