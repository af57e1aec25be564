package outbox

import (
	"context"
	"time"
)

// Repository is the relay side of an outbox. Events are written by the ledger
// store inside the same transaction as the bucket change; this interface only
// drains them.
type Repository interface {
	// FindUnpublished returns retryable, unpublished events oldest first
	FindUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error)

	// MarkPublished marks an event as published
	MarkPublished(ctx context.Context, eventID string) error

	// IncrementRetry increments the retry count and records the last error
	IncrementRetry(ctx context.Context, eventID string, errorMsg string) error

	// DeletePublished removes events published before the cutoff
	DeletePublished(ctx context.Context, before time.Time) (int64, error)
}
