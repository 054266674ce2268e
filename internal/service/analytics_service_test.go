package service

import (
	"context"
	"testing"

	"homeservices/internal/domain"
	"homeservices/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.analytics.Dashboard(ctx, provider)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	empty, err := env.analytics.Dashboard(ctx, admin)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalRevenue)
	assert.Zero(t, empty.CompletionRate)
	assert.Empty(t, empty.TopServices)

	svc := env.approvedService(t, 1000)
	done, err := env.bookings.CreateBooking(ctx, customer, bookingForm(svc.ID, "2026-07-02", "10:00"))
	require.NoError(t, err)
	for _, status := range []string{"confirmed", "in_progress", "completed"} {
		_, err := env.bookings.Transition(ctx, provider, done.ID, status)
		require.NoError(t, err)
	}
	_, err = env.bookings.CreateBooking(ctx, customer2, bookingForm(svc.ID, "2026-07-02", "11:00"))
	require.NoError(t, err)

	d, err := env.analytics.Dashboard(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, d.TotalRevenue)
	assert.Equal(t, 2, d.TotalBookings)
	assert.Equal(t, 50.0, d.CompletionRate)
	assert.Equal(t, 2, d.TotalCustomers)
	assert.Equal(t, 1, d.ActiveServices)
	require.Len(t, d.TopServices, 1)
	assert.Equal(t, "Deep Cleaning", d.TopServices[0].Name)
}

func TestProviderEarnings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.approvedService(t, 800)

	b, err := env.bookings.CreateBooking(ctx, customer, bookingForm(svc.ID, "2026-07-02", "10:00"))
	require.NoError(t, err)
	for _, status := range []string{"confirmed", "in_progress", "completed"} {
		_, err := env.bookings.Transition(ctx, provider, b.ID, status)
		require.NoError(t, err)
	}
	_, err = env.bookings.CreateBooking(ctx, customer, bookingForm(svc.ID, "2026-07-03", "10:00"))
	require.NoError(t, err)

	e, err := env.analytics.ProviderEarnings(ctx, provider, "someone-else")
	require.NoError(t, err)
	assert.Equal(t, provider.UserID, e.ProviderID)
	assert.Equal(t, 800.0, e.TotalEarnings)
	assert.Equal(t, 1, e.CompletedJobs)
	assert.Equal(t, 1, e.UpcomingJobs)

	other, err := env.analytics.ProviderEarnings(ctx, admin, provider2.UserID)
	require.NoError(t, err)
	assert.Zero(t, other.TotalEarnings)

	_, err = env.analytics.ProviderEarnings(ctx, admin, "")
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	_, err = env.analytics.ProviderEarnings(ctx, customer, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestDashboardDegradesOnStoreErrors(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.db.Close())

	d, err := env.analytics.Dashboard(context.Background(), admin)
	require.NoError(t, err)
	assert.Zero(t, d.TotalBookings)
	assert.Len(t, d.StatusDistribution, len(models.AllBookingStatuses))
}
