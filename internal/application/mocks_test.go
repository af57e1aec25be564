package application

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/wms-platform/reconciliation-service/internal/domain"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
)

type mockAlertPublisher struct {
	mock.Mock
}

func (m *mockAlertPublisher) PublishInvariantViolation(ctx context.Context, mutation string, v *domain.InvariantViolationError) error {
	args := m.Called(ctx, mutation, v)
	return args.Error(0)
}

func (m *mockAlertPublisher) PublishAssignmentStalled(ctx context.Context, data cloudevents.AssignmentStalledData, workflowID string) error {
	args := m.Called(ctx, data, workflowID)
	return args.Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyBucketUpdated(ctx context.Context, assignmentID string) error {
	args := m.Called(ctx, assignmentID)
	return args.Error(0)
}

// conflictingStore fails the first n bucket saves with a version conflict
type conflictingStore struct {
	domain.Store
	remaining atomic.Int32
}

func (s *conflictingStore) Buckets() domain.SizeBucketRepository {
	return &conflictingBuckets{SizeBucketRepository: s.Store.Buckets(), s: s}
}

type conflictingBuckets struct {
	domain.SizeBucketRepository
	s *conflictingStore
}

func (b *conflictingBuckets) Save(ctx context.Context, bucket *domain.SizeBucket, expectedVersion int64) error {
	if b.s.remaining.Add(-1) >= 0 {
		return domain.ErrConcurrentModification
	}
	return b.SizeBucketRepository.Save(ctx, bucket, expectedVersion)
}

// corruptMutation produces a state the invariant checker must reject
type corruptMutation struct{}

func (corruptMutation) Kind() domain.MutationKind { return domain.MutationPick }

func (corruptMutation) Apply(before domain.SizeBucket, at time.Time) (domain.SizeBucket, domain.DomainEvent, error) {
	after := before
	after.Picked = before.Assigned + 1
	after.Version++
	after.UpdatedAt = at
	return after, &domain.PickEvent{AssignmentID: before.AssignmentID, Size: before.Size, PickedAt: at}, nil
}
