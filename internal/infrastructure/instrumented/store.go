// Package instrumented decorates any domain.Store with spans, storage
// metrics and debug query logs.
package instrumented

import (
	"context"
	"errors"
	"time"

	"github.com/wms-platform/reconciliation-service/internal/domain"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/metrics"
	"github.com/wms-platform/reconciliation-service/pkg/tracing"
)

// Store wraps a backend
type Store struct {
	next    domain.Store
	backend string
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewStore wraps next. backend labels metrics and spans.
func NewStore(next domain.Store, backend string, m *metrics.Metrics, logger *logging.Logger) *Store {
	return &Store{next: next, backend: backend, metrics: m, logger: logger}
}

// expected errors are answers, not storage failures
func failed(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, domain.ErrConcurrentModification) &&
		!errors.Is(err, domain.ErrAssignmentExists) &&
		!errors.Is(err, domain.ErrAssignmentNotFound) &&
		!errors.Is(err, domain.ErrBucketNotFound)
}

func (s *Store) observe(ctx context.Context, collection, operation string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartStorageSpan(ctx, s.backend, operation)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	ok := !failed(err)
	if !ok {
		tracing.RecordError(span, err)
	}
	s.metrics.RecordStorageOperation(s.backend, operation, ok, duration)
	s.logger.DatabaseQuery(ctx, collection, operation, duration, ok, 0)
	return err
}

// Assignments returns the instrumented assignment repository
func (s *Store) Assignments() domain.AssignmentRepository {
	return &assignments{s: s, next: s.next.Assignments()}
}

// Buckets returns the instrumented bucket repository
func (s *Store) Buckets() domain.SizeBucketRepository {
	return &buckets{s: s, next: s.next.Buckets()}
}

// Audit returns the instrumented audit reader
func (s *Store) Audit() domain.AuditRepository {
	return &audit{s: s, next: s.next.Audit()}
}

// Ping checks the backend
func (s *Store) Ping(ctx context.Context) error {
	return s.observe(ctx, "", "ping", s.next.Ping)
}

// Close closes the backend
func (s *Store) Close(ctx context.Context) error {
	return s.next.Close(ctx)
}

type assignments struct {
	s    *Store
	next domain.AssignmentRepository
}

func (r *assignments) Create(ctx context.Context, a *domain.Assignment, b []*domain.SizeBucket) error {
	return r.s.observe(ctx, "assignments", "create_assignment", func(ctx context.Context) error {
		return r.next.Create(ctx, a, b)
	})
}

func (r *assignments) Save(ctx context.Context, a *domain.Assignment) error {
	return r.s.observe(ctx, "assignments", "save_assignment", func(ctx context.Context) error {
		return r.next.Save(ctx, a)
	})
}

func (r *assignments) FindByID(ctx context.Context, assignmentID string) (*domain.Assignment, error) {
	var out *domain.Assignment
	err := r.s.observe(ctx, "assignments", "find_assignment", func(ctx context.Context) error {
		var err error
		out, err = r.next.FindByID(ctx, assignmentID)
		return err
	})
	return out, err
}

type buckets struct {
	s    *Store
	next domain.SizeBucketRepository
}

func (r *buckets) FindByKey(ctx context.Context, assignmentID, size string) (*domain.SizeBucket, error) {
	var out *domain.SizeBucket
	err := r.s.observe(ctx, "size_buckets", "find_bucket", func(ctx context.Context) error {
		var err error
		out, err = r.next.FindByKey(ctx, assignmentID, size)
		return err
	})
	return out, err
}

func (r *buckets) FindByAssignment(ctx context.Context, assignmentID string) ([]*domain.SizeBucket, error) {
	var out []*domain.SizeBucket
	err := r.s.observe(ctx, "size_buckets", "list_buckets", func(ctx context.Context) error {
		var err error
		out, err = r.next.FindByAssignment(ctx, assignmentID)
		return err
	})
	return out, err
}

func (r *buckets) Save(ctx context.Context, b *domain.SizeBucket, expectedVersion int64) error {
	return r.s.observe(ctx, "size_buckets", "save_bucket", func(ctx context.Context) error {
		return r.next.Save(ctx, b, expectedVersion)
	})
}

type audit struct {
	s    *Store
	next domain.AuditRepository
}

func (r *audit) ListPickEvents(ctx context.Context, assignmentID, size string) ([]*domain.PickEvent, error) {
	var out []*domain.PickEvent
	err := r.s.observe(ctx, "pick_events", "list_picks", func(ctx context.Context) error {
		var err error
		out, err = r.next.ListPickEvents(ctx, assignmentID, size)
		return err
	})
	return out, err
}

func (r *audit) ListQCReviews(ctx context.Context, assignmentID, size string) ([]*domain.QCReviewEvent, error) {
	var out []*domain.QCReviewEvent
	err := r.s.observe(ctx, "qc_reviews", "list_qc_reviews", func(ctx context.Context) error {
		var err error
		out, err = r.next.ListQCReviews(ctx, assignmentID, size)
		return err
	})
	return out, err
}
