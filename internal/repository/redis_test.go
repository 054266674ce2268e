package repository

import (
	"context"
	"testing"
	"time"

	"homeservices/internal/config"
	"homeservices/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisIdempotencyStore(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer Close(client)

	ctx := context.Background()
	require.NoError(t, Ping(ctx, client))

	store := NewRedisIdempotencyStore(client)

	t.Run("ReserveOnce", func(t *testing.T) {
		ok, err := store.Reserve(ctx, "k1", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Reserve(ctx, "k1", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		rec, err := store.Get(ctx, "k1")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.False(t, rec.Done())
	})

	t.Run("CompleteStoresResponse", func(t *testing.T) {
		record := &models.IdempotencyRecord{StatusCode: 201, ContentType: "application/json", Body: []byte(`{"id":"b-1"}`)}
		require.NoError(t, store.Complete(ctx, "k1", record, time.Minute))

		rec, err := store.Get(ctx, "k1")
		require.NoError(t, err)
		require.True(t, rec.Done())
		assert.Equal(t, 201, rec.StatusCode)
		assert.JSONEq(t, `{"id":"b-1"}`, string(rec.Body))
	})

	t.Run("UnknownKey", func(t *testing.T) {
		rec, err := store.Get(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("ReleaseFreesKey", func(t *testing.T) {
		_, err := store.Reserve(ctx, "k2", time.Minute)
		require.NoError(t, err)
		require.NoError(t, store.Release(ctx, "k2"))

		ok, err := store.Reserve(ctx, "k2", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Expiry", func(t *testing.T) {
		_, err := store.Reserve(ctx, "k3", time.Second)
		require.NoError(t, err)
		s.FastForward(2 * time.Second)

		ok, err := store.Reserve(ctx, "k3", time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("ServerDown", func(t *testing.T) {
		s.Close()
		_, err := store.Reserve(ctx, "k4", time.Minute)
		assert.Error(t, err)
	})
}
