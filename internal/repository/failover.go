package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"homeservices/internal/domain"
	"homeservices/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverIdempotencyStore uses primary while it answers and switches to fallback
// on the first error. The primary is retried once per recoveryInterval.
type FailoverIdempotencyStore struct {
	primary  domain.IdempotencyStore
	fallback domain.IdempotencyStore
	logger   *zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverIdempotencyStore(primary, fallback domain.IdempotencyStore, logger *zerolog.Logger) *FailoverIdempotencyStore {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverIdempotencyStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// usePrimary reports whether the next call should go to the primary store.
func (r *FailoverIdempotencyStore) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) > recoveryInterval {
		r.lastCheck = time.Now()
		return true
	}
	return false
}

// observe records the outcome of a primary call. An error caused by the caller
// giving up on ctx says nothing about the primary and leaves its state alone.
func (r *FailoverIdempotencyStore) observe(ctx context.Context, err error) {
	if err != nil && ctx.Err() != nil {
		r.logger.Debug().Err(err).Msg("Primary idempotency call abandoned by caller")
		return
	}
	if err == nil {
		if r.isDown.CompareAndSwap(true, false) {
			r.logger.Info().Msg("Primary idempotency store recovered")
		}
		return
	}
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary idempotency store failed, falling back to memory")
	}
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

func (r *FailoverIdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if r.usePrimary() {
		ok, err := r.primary.Reserve(ctx, key, ttl)
		r.observe(ctx, err)
		if err == nil {
			return ok, nil
		}
	}
	return r.fallback.Reserve(ctx, key, ttl)
}

func (r *FailoverIdempotencyStore) Complete(ctx context.Context, key string, record *models.IdempotencyRecord, ttl time.Duration) error {
	if r.usePrimary() {
		err := r.primary.Complete(ctx, key, record, ttl)
		r.observe(ctx, err)
		if err == nil {
			return nil
		}
	}
	return r.fallback.Complete(ctx, key, record, ttl)
}

func (r *FailoverIdempotencyStore) Get(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	if r.usePrimary() {
		rec, err := r.primary.Get(ctx, key)
		r.observe(ctx, err)
		if err == nil {
			if rec.Done() {
				return rec, nil
			}
			// the key may have been reserved or completed while the primary was down
			other, ferr := r.fallback.Get(ctx, key)
			if ferr == nil && (other.Done() || rec == nil) {
				return other, nil
			}
			if rec != nil {
				return rec, nil
			}
			return other, ferr
		}
	}
	return r.fallback.Get(ctx, key)
}

func (r *FailoverIdempotencyStore) Release(ctx context.Context, key string) error {
	if r.usePrimary() {
		r.observe(ctx, r.primary.Release(ctx, key))
	}
	return r.fallback.Release(ctx, key)
}
