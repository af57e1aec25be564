package domain

import "context"

// AssignmentRepository persists assignments. Implementations write the
// aggregate's pending DomainEvents to their outbox in the same transaction.
type AssignmentRepository interface {
	// Create stores a new assignment with its buckets atomically.
	// ErrAssignmentExists is returned for a duplicate ID.
	Create(ctx context.Context, assignment *Assignment, buckets []*SizeBucket) error

	// Save updates the assignment status
	Save(ctx context.Context, assignment *Assignment) error

	// FindByID returns nil, nil when the assignment does not exist
	FindByID(ctx context.Context, assignmentID string) (*Assignment, error)
}

// SizeBucketRepository persists size buckets
type SizeBucketRepository interface {
	// FindByKey returns nil, nil when the bucket does not exist
	FindByKey(ctx context.Context, assignmentID, size string) (*SizeBucket, error)

	// FindByAssignment returns all buckets of an assignment ordered by size
	FindByAssignment(ctx context.Context, assignmentID string) ([]*SizeBucket, error)

	// Save replaces the bucket if the stored version equals expectedVersion,
	// appending the bucket's DomainEvents to the audit log and outbox in the
	// same transaction. ErrConcurrentModification is returned otherwise.
	Save(ctx context.Context, bucket *SizeBucket, expectedVersion int64) error
}

// AuditRepository reads the append-only audit log, oldest first
type AuditRepository interface {
	ListPickEvents(ctx context.Context, assignmentID, size string) ([]*PickEvent, error)
	ListQCReviews(ctx context.Context, assignmentID, size string) ([]*QCReviewEvent, error)
}

// Store bundles the repositories one storage backend provides
type Store interface {
	Assignments() AssignmentRepository
	Buckets() SizeBucketRepository
	Audit() AuditRepository
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
