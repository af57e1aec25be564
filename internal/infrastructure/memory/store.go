// Package memory is a process-local storage backend. It serializes every
// write under one mutex and is used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wms-platform/reconciliation-service/internal/domain"
	"github.com/wms-platform/reconciliation-service/internal/infrastructure/outboxmapper"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	"github.com/wms-platform/reconciliation-service/pkg/outbox"
)

// Store holds all state in maps guarded by a single mutex
type Store struct {
	mu           sync.RWMutex
	eventFactory *cloudevents.EventFactory

	assignments map[string]*domain.Assignment
	buckets     map[string]*domain.SizeBucket
	picks       []*domain.PickEvent
	reviews     []*domain.QCReviewEvent
	outbox      []*outbox.OutboxEvent
}

// NewStore creates an empty store
func NewStore(eventFactory *cloudevents.EventFactory) *Store {
	return &Store{
		eventFactory: eventFactory,
		assignments:  make(map[string]*domain.Assignment),
		buckets:      make(map[string]*domain.SizeBucket),
	}
}

func bucketKey(assignmentID, size string) string {
	return assignmentID + "/" + size
}

// Assignments returns the assignment repository
func (s *Store) Assignments() domain.AssignmentRepository { return &assignmentRepository{s} }

// Buckets returns the size bucket repository
func (s *Store) Buckets() domain.SizeBucketRepository { return &bucketRepository{s} }

// Audit returns the audit log reader
func (s *Store) Audit() domain.AuditRepository { return &auditRepository{s} }

// Outbox returns the relay side of the outbox
func (s *Store) Outbox() outbox.Repository { return &outboxRepository{s} }

// Ping always succeeds
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op
func (s *Store) Close(context.Context) error { return nil }

// appendOutbox must be called with s.mu held
func (s *Store) appendOutbox(ctx context.Context, events []domain.DomainEvent) error {
	rows, err := outboxmapper.Build(ctx, s.eventFactory, events)
	if err != nil {
		return err
	}
	s.outbox = append(s.outbox, rows...)
	return nil
}

func cloneAssignment(a *domain.Assignment) *domain.Assignment {
	cp := *a
	cp.Sizes = append([]string(nil), a.Sizes...)
	cp.DomainEvents = nil
	return &cp
}

func cloneBucket(b *domain.SizeBucket) *domain.SizeBucket {
	cp := *b
	cp.DomainEvents = nil
	return &cp
}

type assignmentRepository struct{ s *Store }

func (r *assignmentRepository) Create(ctx context.Context, a *domain.Assignment, buckets []*domain.SizeBucket) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.assignments[a.AssignmentID]; exists {
		return domain.ErrAssignmentExists
	}
	if err := s.appendOutbox(ctx, a.DomainEvents); err != nil {
		return err
	}

	s.assignments[a.AssignmentID] = cloneAssignment(a)
	for _, b := range buckets {
		s.buckets[bucketKey(b.AssignmentID, b.Size)] = cloneBucket(b)
	}
	a.ClearDomainEvents()
	return nil
}

func (r *assignmentRepository) Save(ctx context.Context, a *domain.Assignment) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.assignments[a.AssignmentID]; !exists {
		return domain.ErrAssignmentNotFound
	}
	if err := s.appendOutbox(ctx, a.DomainEvents); err != nil {
		return err
	}

	s.assignments[a.AssignmentID] = cloneAssignment(a)
	a.ClearDomainEvents()
	return nil
}

func (r *assignmentRepository) FindByID(_ context.Context, assignmentID string) (*domain.Assignment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.assignments[assignmentID]
	if !ok {
		return nil, nil
	}
	return cloneAssignment(a), nil
}

type bucketRepository struct{ s *Store }

func (r *bucketRepository) FindByKey(_ context.Context, assignmentID, size string) (*domain.SizeBucket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.buckets[bucketKey(assignmentID, size)]
	if !ok {
		return nil, nil
	}
	return cloneBucket(b), nil
}

func (r *bucketRepository) FindByAssignment(_ context.Context, assignmentID string) ([]*domain.SizeBucket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.SizeBucket
	for _, b := range r.s.buckets {
		if b.AssignmentID == assignmentID {
			out = append(out, cloneBucket(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Size < out[j].Size })
	return out, nil
}

func (r *bucketRepository) Save(ctx context.Context, b *domain.SizeBucket, expectedVersion int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	key := bucketKey(b.AssignmentID, b.Size)
	current, ok := s.buckets[key]
	if !ok {
		return domain.ErrBucketNotFound
	}
	if current.Version != expectedVersion {
		return domain.ErrConcurrentModification
	}

	if err := s.appendOutbox(ctx, b.DomainEvents); err != nil {
		return err
	}
	for _, event := range b.DomainEvents {
		switch e := event.(type) {
		case *domain.PickEvent:
			cp := *e
			s.picks = append(s.picks, &cp)
		case *domain.QCReviewEvent:
			cp := *e
			s.reviews = append(s.reviews, &cp)
		}
	}

	s.buckets[key] = cloneBucket(b)
	b.ClearDomainEvents()
	return nil
}

type auditRepository struct{ s *Store }

func (r *auditRepository) ListPickEvents(_ context.Context, assignmentID, size string) ([]*domain.PickEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*domain.PickEvent, 0)
	for _, e := range r.s.picks {
		if e.AssignmentID == assignmentID && e.Size == size {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *auditRepository) ListQCReviews(_ context.Context, assignmentID, size string) ([]*domain.QCReviewEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*domain.QCReviewEvent, 0)
	for _, e := range r.s.reviews {
		if e.AssignmentID == assignmentID && e.Size == size {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

type outboxRepository struct{ s *Store }

func (r *outboxRepository) FindUnpublished(_ context.Context, limit int) ([]*outbox.OutboxEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*outbox.OutboxEvent, 0, limit)
	for _, e := range r.s.outbox {
		if len(out) == limit {
			break
		}
		if e.ShouldRetry() {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *outboxRepository) MarkPublished(_ context.Context, eventID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, e := range r.s.outbox {
		if e.ID == eventID {
			now := time.Now().UTC()
			e.PublishedAt = &now
			return nil
		}
	}
	return fmt.Errorf("event not found: %s", eventID)
}

func (r *outboxRepository) IncrementRetry(_ context.Context, eventID string, errorMsg string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, e := range r.s.outbox {
		if e.ID == eventID {
			e.RetryCount++
			e.LastError = errorMsg
			return nil
		}
	}
	return fmt.Errorf("event not found: %s", eventID)
}

func (r *outboxRepository) DeletePublished(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	kept := r.s.outbox[:0]
	var deleted int64
	for _, e := range r.s.outbox {
		if e.IsPublished() && e.PublishedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.s.outbox = kept
	return deleted, nil
}
