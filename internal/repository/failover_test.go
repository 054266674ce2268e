package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"homeservices/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) Complete(ctx context.Context, key string, record *models.IdempotencyRecord, ttl time.Duration) error {
	args := m.Called(ctx, key, record, ttl)
	return args.Error(0)
}

func (m *mockStore) Get(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IdempotencyRecord), args.Error(1)
}

func (m *mockStore) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func TestFailoverIdempotencyStore(t *testing.T) {
	primary := new(mockStore)
	fallback := NewMemoryIdempotencyStore()
	logger := zerolog.New(io.Discard)
	store := NewFailoverIdempotencyStore(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("Reserve", ctx, "k1", time.Minute).Return(true, nil).Once()

		ok, err := store.Reserve(ctx, "k1", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.False(t, store.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		primary.On("Reserve", ctx, "k2", time.Minute).Return(false, errors.New("connection refused")).Once()

		ok, err := store.Reserve(ctx, "k2", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, store.isDown.Load())

		// while down the primary is not consulted
		ok, err = store.Reserve(ctx, "k2", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
		primary.AssertExpectations(t)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		store.mu.Lock()
		store.lastCheck = time.Now().Add(-2 * time.Minute)
		store.mu.Unlock()

		primary.On("Get", ctx, "k2").Return(nil, nil).Once()

		rec, err := store.Get(ctx, "k2")
		require.NoError(t, err)
		require.NotNil(t, rec, "reservation made during the outage is still visible")
		assert.False(t, rec.Done())
		assert.False(t, store.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("ReleaseClearsBoth", func(t *testing.T) {
		primary.On("Release", ctx, "k2").Return(nil).Once()
		require.NoError(t, store.Release(ctx, "k2"))

		rec, err := fallback.Get(ctx, "k2")
		require.NoError(t, err)
		assert.Nil(t, rec)
		primary.AssertExpectations(t)
	})
}

func TestFailoverIgnoresCallerCancellation(t *testing.T) {
	primary := new(mockStore)
	fallback := NewMemoryIdempotencyStore()
	store := NewFailoverIdempotencyStore(primary, fallback, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	record := &models.IdempotencyRecord{StatusCode: 201, Body: []byte(`{"id":"b-1"}`)}
	primary.On("Complete", ctx, "k1", record, time.Minute).Return(context.Canceled).Once()

	require.NoError(t, store.Complete(ctx, "k1", record, time.Minute))
	assert.False(t, store.isDown.Load(), "a cancelled caller is not a primary outage")

	// the outcome still landed somewhere
	saved, err := fallback.Get(context.Background(), "k1")
	require.NoError(t, err)
	assert.True(t, saved.Done())
	primary.AssertExpectations(t)
}

func TestFailoverGetPrefersCompletedRecord(t *testing.T) {
	primary := new(mockStore)
	fallback := NewMemoryIdempotencyStore()
	store := NewFailoverIdempotencyStore(primary, fallback, nil)
	ctx := context.Background()

	// reserved on the primary, completed on the fallback during a blip
	ok, err := fallback.Reserve(ctx, "k1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, fallback.Complete(ctx, "k1", &models.IdempotencyRecord{StatusCode: 201}, time.Minute))
	primary.On("Get", ctx, "k1").Return(&models.IdempotencyRecord{}, nil).Once()

	rec, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, rec.Done())
	assert.Equal(t, 201, rec.StatusCode)

	// in flight everywhere stays in flight
	primary.On("Get", ctx, "k2").Return(&models.IdempotencyRecord{}, nil).Once()
	rec, err = store.Get(ctx, "k2")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.False(t, rec.Done())
	primary.AssertExpectations(t)
}
