package service

import (
	"context"
	"testing"

	"homeservices/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateReview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.approvedService(t, 1499)

	first, err := env.bookings.CreateBooking(ctx, customer, bookingForm(svc.ID, "2026-07-02", "10:00"))
	require.NoError(t, err)
	second, err := env.bookings.CreateBooking(ctx, customer2, bookingForm(svc.ID, "2026-07-02", "11:00"))
	require.NoError(t, err)

	_, err = env.reviews.CreateReview(ctx, customer, first.ID, ReviewInput{Rating: 5})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "only completed bookings can be reviewed")

	for _, id := range []string{first.ID, second.ID} {
		for _, status := range []string{"confirmed", "in_progress", "completed"} {
			_, err := env.bookings.Transition(ctx, provider, id, status)
			require.NoError(t, err)
		}
	}

	_, err = env.reviews.CreateReview(ctx, customer2, first.ID, ReviewInput{Rating: 5})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = env.reviews.CreateReview(ctx, customer, first.ID, ReviewInput{Rating: 6})
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	_, err = env.reviews.CreateReview(ctx, customer, first.ID, ReviewInput{Rating: 5, Comment: "  spotless  "})
	require.NoError(t, err)

	_, err = env.reviews.CreateReview(ctx, customer, first.ID, ReviewInput{Rating: 1})
	assert.ErrorIs(t, err, domain.ErrValidationFailed, "one review per booking")

	review, err := env.reviews.CreateReview(ctx, customer2, second.ID, ReviewInput{Rating: 4})
	require.NoError(t, err)
	assert.Equal(t, svc.ID, review.ServiceID)

	updated, err := env.db.GetService(ctx, svc.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.5, updated.Rating)
	assert.Equal(t, 2, updated.ReviewCount)

	reviews, err := env.reviews.ListServiceReviews(ctx, svc.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
}
