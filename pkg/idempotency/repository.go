package idempotency

import (
	"context"
	"time"
)

// KeyRepository stores Idempotency-Key records. AcquireLock must be atomic.
type KeyRepository interface {
	// AcquireLock inserts key locked, or returns the stored record. The bool
	// reports whether the record was created by this call.
	AcquireLock(ctx context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error)

	// ReleaseLock clears the lock so the key can be retried
	ReleaseLock(ctx context.Context, keyID string) error

	// StoreResponse caches the response and marks the key completed
	StoreResponse(ctx context.Context, keyID string, responseCode int, responseBody []byte, headers map[string]string) error

	// Clean removes keys that expired before the given time
	Clean(ctx context.Context, before time.Time) (int64, error)

	// EnsureIndexes creates the indexes the store relies on
	EnsureIndexes(ctx context.Context) error
}
