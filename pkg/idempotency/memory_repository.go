package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryKeyRepository is a process-local KeyRepository used with the
// embedded storage backends and in tests
type MemoryKeyRepository struct {
	mu   sync.Mutex
	keys map[string]*IdempotencyKey
}

// NewMemoryKeyRepository creates an empty in-memory key store
func NewMemoryKeyRepository() *MemoryKeyRepository {
	return &MemoryKeyRepository{keys: make(map[string]*IdempotencyKey)}
}

// AcquireLock inserts the key locked, or returns a copy of the stored record
func (r *MemoryKeyRepository) AcquireLock(_ context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := r.keys[key.ID]; ok && existing.ExpiresAt.After(now) {
		cp := *existing
		if !existing.IsCompleted() && !existing.IsLocked() {
			existing.LockedAt = &now
		}
		return &cp, false, nil
	}

	stored := *key
	stored.LockedAt = &now
	r.keys[key.ID] = &stored
	cp := stored
	return &cp, true, nil
}

// ReleaseLock clears the lock on a key
func (r *MemoryKeyRepository) ReleaseLock(_ context.Context, keyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.keys[keyID]
	if !ok {
		return ErrNotFound
	}
	k.LockedAt = nil
	return nil
}

// StoreResponse caches the response and marks the key completed
func (r *MemoryKeyRepository) StoreResponse(_ context.Context, keyID string, responseCode int, responseBody []byte, headers map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.keys[keyID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	k.ResponseCode = responseCode
	k.ResponseBody = append([]byte(nil), responseBody...)
	k.ResponseHeaders = headers
	k.CompletedAt = &now
	k.LockedAt = nil
	return nil
}

// Clean removes keys that expired before the given time
func (r *MemoryKeyRepository) Clean(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, k := range r.keys {
		if k.ExpiresAt.Before(before) {
			delete(r.keys, id)
			n++
		}
	}
	return n, nil
}

// EnsureIndexes is a no-op for the in-memory store
func (r *MemoryKeyRepository) EnsureIndexes(context.Context) error {
	return nil
}
