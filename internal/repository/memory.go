package repository

import (
	"context"
	"sync"
	"time"

	"homeservices/internal/models"
)

type memoryEntry struct {
	record    *models.IdempotencyRecord
	expiresAt time.Time
}

// MemoryIdempotencyStore keeps keys in process memory. Used as the Redis fallback
// and in single-instance setups.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (r *MemoryIdempotencyStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if e, ok := r.entries[key]; ok && now.Before(e.expiresAt) {
		return false, nil
	}
	r.entries[key] = memoryEntry{record: &models.IdempotencyRecord{}, expiresAt: now.Add(ttl)}
	return true, nil
}

func (r *MemoryIdempotencyStore) Complete(_ context.Context, key string, record *models.IdempotencyRecord, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *record
	cp.Body = append([]byte(nil), record.Body...)
	r.entries[key] = memoryEntry{record: &cp, expiresAt: r.now().Add(ttl)}
	return nil
}

func (r *MemoryIdempotencyStore) Get(_ context.Context, key string) (*models.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		return nil, nil
	}
	if !r.now().Before(e.expiresAt) {
		delete(r.entries, key)
		return nil, nil
	}
	cp := *e.record
	return &cp, nil
}

func (r *MemoryIdempotencyStore) Release(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
	return nil
}

// Sweep drops expired keys and returns how many were removed.
func (r *MemoryIdempotencyStore) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for k, e := range r.entries {
		if !now.Before(e.expiresAt) {
			delete(r.entries, k)
			removed++
		}
	}
	return removed
}
