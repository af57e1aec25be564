package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wms-platform/reconciliation-service/internal/domain"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/metrics"
	"github.com/wms-platform/reconciliation-service/pkg/tracing"
)

// DefaultMaxAttempts bounds the load-validate-save cycle on version conflicts
const DefaultMaxAttempts = 3

// Mutation outcomes recorded in metrics
const (
	outcomeCommitted = "committed"
	outcomeRejected  = "rejected"
	outcomeConflict  = "conflict"
	outcomeViolation = "invariant_violation"
	outcomeError     = "error"
)

// Ledger is the only write path for size buckets. Mutations on one bucket are
// serialized in-process; the store's version check covers other replicas.
type Ledger struct {
	assignments domain.AssignmentRepository
	buckets     domain.SizeBucketRepository
	alerts      AlertPublisher
	metrics     *metrics.Metrics
	logger      *logging.Logger
	locks       *keyedMutex
	maxAttempts int
	now         func() time.Time
}

// NewLedger creates a Ledger over store
func NewLedger(store domain.Store, alerts AlertPublisher, m *metrics.Metrics, logger *logging.Logger, maxAttempts int) *Ledger {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Ledger{
		assignments: store.Assignments(),
		buckets:     store.Buckets(),
		alerts:      alerts,
		metrics:     m,
		logger:      logger.WithComponent("ledger"),
		locks:       newKeyedMutex(),
		maxAttempts: maxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the current bucket
func (l *Ledger) Get(ctx context.Context, assignmentID, size string) (*domain.SizeBucket, error) {
	b, err := l.buckets.FindByKey(ctx, assignmentID, domain.NormalizeSize(size))
	if err != nil {
		return nil, fmt.Errorf("failed to load bucket: %w", err)
	}
	if b == nil {
		return nil, domain.ErrBucketNotFound
	}
	return b, nil
}

// Apply runs m against the bucket and persists the result with its audit
// record. Nothing is written when validation or an invariant check fails.
func (l *Ledger) Apply(ctx context.Context, assignmentID, size string, m domain.Mutation) (*domain.SizeBucket, domain.DomainEvent, error) {
	size = domain.NormalizeSize(size)
	kind := string(m.Kind())

	ctx, span := tracing.StartLedgerSpan(ctx, kind, assignmentID, size)
	defer span.End()

	start := time.Now()
	unlock, err := l.locks.Lock(ctx, bucketKey(assignmentID, size))
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		after, event, err := l.applyOnce(ctx, assignmentID, size, m)

		if errors.Is(err, domain.ErrConcurrentModification) {
			l.metrics.RecordVersionConflict(kind)
			if attempt < l.maxAttempts {
				l.logger.WithContext(ctx).Warn("Version conflict, reloading bucket",
					"assignmentId", assignmentID, "size", size, "attempt", attempt)
				continue
			}
		}

		l.metrics.RecordLedgerMutation(kind, outcomeOf(err), time.Since(start))
		if err != nil {
			tracing.RecordError(span, err)
			return nil, nil, err
		}
		return after, event, nil
	}
}

// LockBuckets holds every bucket of an assignment until the returned func is
// called. While held, no pick or verdict can commit for the assignment.
func (l *Ledger) LockBuckets(ctx context.Context, assignmentID string, sizes []string) (func(), error) {
	keys := make([]string, len(sizes))
	for i, size := range sizes {
		keys[i] = bucketKey(assignmentID, domain.NormalizeSize(size))
	}
	return l.locks.LockAll(ctx, keys)
}

func bucketKey(assignmentID, size string) string {
	return assignmentID + "/" + size
}

func (l *Ledger) applyOnce(ctx context.Context, assignmentID, size string, m domain.Mutation) (*domain.SizeBucket, domain.DomainEvent, error) {
	a, err := l.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load assignment: %w", err)
	}
	if a == nil {
		return nil, nil, domain.ErrAssignmentNotFound
	}
	if !a.AcceptsMutations() {
		return nil, nil, domain.ErrAssignmentClosed
	}

	before, err := l.buckets.FindByKey(ctx, assignmentID, size)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load bucket: %w", err)
	}
	if before == nil {
		return nil, nil, domain.ErrBucketNotFound
	}

	after, event, err := m.Apply(*before, l.now())
	if err != nil {
		return nil, nil, err
	}

	if err := domain.CheckInvariants(*before, after); err != nil {
		l.reportViolation(ctx, m.Kind(), err)
		return nil, nil, err
	}

	after.AddDomainEvent(event)
	if err := l.buckets.Save(ctx, &after, before.Version); err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("failed to save bucket: %w", err)
	}

	return &after, event, nil
}

func (l *Ledger) reportViolation(ctx context.Context, kind domain.MutationKind, err error) {
	var v *domain.InvariantViolationError
	if !errors.As(err, &v) {
		return
	}

	l.logger.LogInvariantViolation(ctx, v.After.AssignmentID, v.After.Size, v.Invariant, v.Before.Counters(), v.After.Counters())
	l.metrics.RecordInvariantViolation(v.Invariant)

	if pubErr := l.alerts.PublishInvariantViolation(ctx, string(kind), v); pubErr != nil {
		l.logger.WithContext(ctx).WithError(pubErr).Error("Failed to publish invariant alert",
			"assignmentId", v.After.AssignmentID, "size", v.After.Size)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeCommitted
	case errors.Is(err, domain.ErrInvariantViolation):
		return outcomeViolation
	case errors.Is(err, domain.ErrConcurrentModification):
		return outcomeConflict
	case isInputError(err):
		return outcomeRejected
	default:
		return outcomeError
	}
}
