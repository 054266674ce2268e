package analytics

import (
	"time"

	"homeservices/internal/models"

	"github.com/jinzhu/now"
)

type DashboardInput struct {
	Bookings []*models.Booking
	Services []*models.Service
	Users    []*models.User
	Reviews  []*models.Review
}

type Dashboard struct {
	TotalRevenue       float64          `json:"total_revenue"`
	MonthRevenue       float64          `json:"month_revenue"`
	PrevMonthRevenue   float64          `json:"prev_month_revenue"`
	RevenueGrowth      float64          `json:"revenue_growth"`
	TotalBookings      int              `json:"total_bookings"`
	MonthBookings      int              `json:"month_bookings"`
	BookingGrowth      float64          `json:"booking_growth"`
	TotalCustomers     int              `json:"total_customers"`
	NewCustomers       int              `json:"new_customers"`
	CustomerGrowth     float64          `json:"customer_growth"`
	TotalProviders     int              `json:"total_providers"`
	PendingProviders   int              `json:"pending_providers"`
	ActiveServices     int              `json:"active_services"`
	PendingServices    int              `json:"pending_services"`
	CompletionRate     float64          `json:"completion_rate"`
	AverageRating      float64          `json:"average_rating"`
	StatusDistribution []StatusShare    `json:"status_distribution"`
	TopServices        []ServiceRevenue `json:"top_services"`
	GeneratedAt        time.Time        `json:"generated_at"`
}

// MonthWindows returns the calendar month containing at and the one before it.
func MonthWindows(at time.Time) (current, previous Window) {
	start := now.With(at).BeginningOfMonth()
	current = Window{From: start, To: start.AddDate(0, 1, 0)}
	previous = Window{From: start.AddDate(0, -1, 0), To: start}
	return current, previous
}

func BuildDashboard(in DashboardInput, at time.Time) Dashboard {
	cur, prev := MonthWindows(at)

	d := Dashboard{
		TotalRevenue:       TotalRevenue(in.Bookings, nil),
		MonthRevenue:       TotalRevenue(in.Bookings, &cur),
		PrevMonthRevenue:   TotalRevenue(in.Bookings, &prev),
		TotalBookings:      len(in.Bookings),
		MonthBookings:      CountBookings(in.Bookings, &cur),
		CompletionRate:     CompletionRate(in.Bookings),
		AverageRating:      AverageRating(in.Reviews),
		StatusDistribution: StatusDistribution(in.Bookings),
		GeneratedAt:        at,
	}
	d.RevenueGrowth = GrowthPercent(d.MonthRevenue, d.PrevMonthRevenue)
	d.BookingGrowth = GrowthPercent(float64(d.MonthBookings), float64(CountBookings(in.Bookings, &prev)))

	prevCustomers := 0
	for _, u := range in.Users {
		switch u.Role {
		case models.RoleCustomer:
			d.TotalCustomers++
			if cur.contains(u.CreatedAt) {
				d.NewCustomers++
			}
			if prev.contains(u.CreatedAt) {
				prevCustomers++
			}
		case models.RoleProvider:
			d.TotalProviders++
			if u.VerificationStatus == models.ModerationPending {
				d.PendingProviders++
			}
		}
	}
	d.CustomerGrowth = GrowthPercent(float64(d.NewCustomers), float64(prevCustomers))

	names := make(map[string]string, len(in.Services))
	for _, s := range in.Services {
		names[s.ID] = s.Title
		if s.IsBookable() {
			d.ActiveServices++
		}
		if s.IsActive && s.ModerationStatus == models.ModerationPending {
			d.PendingServices++
		}
	}
	d.TopServices = TopServicesByRevenue(in.Bookings, names, models.TopServicesLimit)

	return d
}

type Earnings struct {
	ProviderID        string  `json:"provider_id"`
	TotalEarnings     float64 `json:"total_earnings"`
	MonthEarnings     float64 `json:"month_earnings"`
	PrevMonthEarnings float64 `json:"prev_month_earnings"`
	EarningsGrowth    float64 `json:"earnings_growth"`
	CompletedJobs     int     `json:"completed_jobs"`
	UpcomingJobs      int     `json:"upcoming_jobs"`
	CompletionRate    float64 `json:"completion_rate"`
}

// ProviderEarnings summarizes paid work assigned to one provider.
func ProviderEarnings(bookings []*models.Booking, providerID string, at time.Time) Earnings {
	own := make([]*models.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.ProviderID == providerID {
			own = append(own, b)
		}
	}

	cur, prev := MonthWindows(at)
	e := Earnings{
		ProviderID:        providerID,
		TotalEarnings:     TotalRevenue(own, nil),
		MonthEarnings:     TotalRevenue(own, &cur),
		PrevMonthEarnings: TotalRevenue(own, &prev),
		CompletionRate:    CompletionRate(own),
	}
	e.EarningsGrowth = GrowthPercent(e.MonthEarnings, e.PrevMonthEarnings)

	for _, b := range own {
		switch b.Status {
		case models.StatusCompleted:
			e.CompletedJobs++
		case models.StatusPending, models.StatusConfirmed, models.StatusInProgress:
			e.UpcomingJobs++
		}
	}
	return e
}
