// Package badgerdb is an embedded storage backend on Badger. Buckets are
// guarded by Badger's optimistic transactions plus the stored version.
package badgerdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/wms-platform/reconciliation-service/internal/config"
	"github.com/wms-platform/reconciliation-service/internal/domain"
	"github.com/wms-platform/reconciliation-service/internal/infrastructure/outboxmapper"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/outbox"
)

// Key prefixes. Parts after the prefix are separated by a NUL byte.
const (
	prefixAssignment = "assignment/"
	prefixBucket     = "bucket/"
	prefixPick       = "pick/"
	prefixReview     = "qc/"
	prefixOutbox     = "outbox/"
)

// Store implements domain.Store on an embedded Badger database
type Store struct {
	db           *badger.DB
	eventFactory *cloudevents.EventFactory
}

// Open opens (or creates) the database described by cfg
func Open(cfg config.BadgerConfig, eventFactory *cloudevents.EventFactory, logger *logging.Logger) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(&badgerLogger{logger.WithComponent("badger")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &Store{db: db, eventFactory: eventFactory}, nil
}

// Assignments returns the assignment repository
func (s *Store) Assignments() domain.AssignmentRepository { return &assignmentRepository{s} }

// Buckets returns the size bucket repository
func (s *Store) Buckets() domain.SizeBucketRepository { return &bucketRepository{s} }

// Audit returns the audit log reader
func (s *Store) Audit() domain.AuditRepository { return &auditRepository{s} }

// Outbox returns the relay side of the outbox
func (s *Store) Outbox() outbox.Repository { return &outboxRepository{s} }

// Ping fails once the database is closed
func (s *Store) Ping(context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return nil
}

// Close flushes and closes the database
func (s *Store) Close(context.Context) error { return s.db.Close() }

func assignmentKey(id string) []byte { return []byte(prefixAssignment + id) }

func bucketPrefix(assignmentID string) []byte {
	return []byte(prefixBucket + assignmentID + "\x00")
}

func bucketKey(assignmentID, size string) []byte {
	return append(bucketPrefix(assignmentID), size...)
}

func auditPrefix(prefix, assignmentID, size string) []byte {
	return []byte(prefix + assignmentID + "\x00" + size + "\x00")
}

// auditKey sorts lexically by version
func auditKey(prefix, assignmentID, size string, version int64) []byte {
	return append(auditPrefix(prefix, assignmentID, size), fmt.Sprintf("%020d", version)...)
}

func outboxKey(id string) []byte { return []byte(prefixOutbox + id) }

func putJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// getJSON returns false when the key does not exist
func getJSON(txn *badger.Txn, key []byte, v any) (bool, error) {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func scanJSON[T any](txn *badger.Txn, prefix []byte) ([]*T, error) {
	it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 50, Prefix: prefix})
	defer it.Close()

	out := make([]*T, 0)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		v := new(T)
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		}); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Store) putOutbox(ctx context.Context, txn *badger.Txn, events []domain.DomainEvent) error {
	rows, err := outboxmapper.Build(ctx, s.eventFactory, events)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := putJSON(txn, outboxKey(row.ID), row); err != nil {
			return fmt.Errorf("failed to save outbox event: %w", err)
		}
	}
	return nil
}

func mapConflict(err error) error {
	if errors.Is(err, badger.ErrConflict) {
		return domain.ErrConcurrentModification
	}
	return err
}

type assignmentRepository struct{ s *Store }

func (r *assignmentRepository) Create(ctx context.Context, a *domain.Assignment, buckets []*domain.SizeBucket) error {
	err := r.s.db.Update(func(txn *badger.Txn) error {
		var existing domain.Assignment
		found, err := getJSON(txn, assignmentKey(a.AssignmentID), &existing)
		if err != nil {
			return err
		}
		if found {
			return domain.ErrAssignmentExists
		}

		if err := putJSON(txn, assignmentKey(a.AssignmentID), a); err != nil {
			return err
		}
		for _, b := range buckets {
			if err := putJSON(txn, bucketKey(b.AssignmentID, b.Size), b); err != nil {
				return err
			}
		}
		return r.s.putOutbox(ctx, txn, a.DomainEvents)
	})
	if errors.Is(err, badger.ErrConflict) {
		// Another writer created the same ID first
		return domain.ErrAssignmentExists
	}
	if err != nil {
		return err
	}

	a.ClearDomainEvents()
	return nil
}

func (r *assignmentRepository) Save(ctx context.Context, a *domain.Assignment) error {
	err := r.s.db.Update(func(txn *badger.Txn) error {
		var existing domain.Assignment
		found, err := getJSON(txn, assignmentKey(a.AssignmentID), &existing)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrAssignmentNotFound
		}

		if err := putJSON(txn, assignmentKey(a.AssignmentID), a); err != nil {
			return err
		}
		return r.s.putOutbox(ctx, txn, a.DomainEvents)
	})
	if err != nil {
		return mapConflict(err)
	}

	a.ClearDomainEvents()
	return nil
}

func (r *assignmentRepository) FindByID(_ context.Context, assignmentID string) (*domain.Assignment, error) {
	var a domain.Assignment
	var found bool
	err := r.s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, assignmentKey(assignmentID), &a)
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &a, nil
}

type bucketRepository struct{ s *Store }

func (r *bucketRepository) FindByKey(_ context.Context, assignmentID, size string) (*domain.SizeBucket, error) {
	var b domain.SizeBucket
	var found bool
	err := r.s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, bucketKey(assignmentID, size), &b)
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &b, nil
}

func (r *bucketRepository) FindByAssignment(_ context.Context, assignmentID string) ([]*domain.SizeBucket, error) {
	var buckets []*domain.SizeBucket
	err := r.s.db.View(func(txn *badger.Txn) error {
		var err error
		buckets, err = scanJSON[domain.SizeBucket](txn, bucketPrefix(assignmentID))
		return err
	})
	return buckets, err
}

func (r *bucketRepository) Save(ctx context.Context, b *domain.SizeBucket, expectedVersion int64) error {
	err := r.s.db.Update(func(txn *badger.Txn) error {
		var current domain.SizeBucket
		found, err := getJSON(txn, bucketKey(b.AssignmentID, b.Size), &current)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrBucketNotFound
		}
		if current.Version != expectedVersion {
			return domain.ErrConcurrentModification
		}

		if err := putJSON(txn, bucketKey(b.AssignmentID, b.Size), b); err != nil {
			return err
		}
		for _, event := range b.DomainEvents {
			switch e := event.(type) {
			case *domain.PickEvent:
				err = putJSON(txn, auditKey(prefixPick, e.AssignmentID, e.Size, e.Version), e)
			case *domain.QCReviewEvent:
				err = putJSON(txn, auditKey(prefixReview, e.AssignmentID, e.Size, e.Version), e)
			}
			if err != nil {
				return fmt.Errorf("failed to append audit record: %w", err)
			}
		}
		return r.s.putOutbox(ctx, txn, b.DomainEvents)
	})
	if err != nil {
		return mapConflict(err)
	}

	b.ClearDomainEvents()
	return nil
}

type auditRepository struct{ s *Store }

func (r *auditRepository) ListPickEvents(_ context.Context, assignmentID, size string) ([]*domain.PickEvent, error) {
	var events []*domain.PickEvent
	err := r.s.db.View(func(txn *badger.Txn) error {
		var err error
		events, err = scanJSON[domain.PickEvent](txn, auditPrefix(prefixPick, assignmentID, size))
		return err
	})
	return events, err
}

func (r *auditRepository) ListQCReviews(_ context.Context, assignmentID, size string) ([]*domain.QCReviewEvent, error) {
	var events []*domain.QCReviewEvent
	err := r.s.db.View(func(txn *badger.Txn) error {
		var err error
		events, err = scanJSON[domain.QCReviewEvent](txn, auditPrefix(prefixReview, assignmentID, size))
		return err
	})
	return events, err
}

type outboxRepository struct{ s *Store }

func (r *outboxRepository) all() ([]*outbox.OutboxEvent, error) {
	var events []*outbox.OutboxEvent
	err := r.s.db.View(func(txn *badger.Txn) error {
		var err error
		events, err = scanJSON[outbox.OutboxEvent](txn, []byte(prefixOutbox))
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].CreatedAt.Before(events[j].CreatedAt) })
	return events, nil
}

func (r *outboxRepository) FindUnpublished(_ context.Context, limit int) ([]*outbox.OutboxEvent, error) {
	events, err := r.all()
	if err != nil {
		return nil, fmt.Errorf("failed to find unpublished events: %w", err)
	}

	out := make([]*outbox.OutboxEvent, 0, limit)
	for _, e := range events {
		if len(out) == limit {
			break
		}
		if e.ShouldRetry() {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *outboxRepository) update(eventID string, fn func(e *outbox.OutboxEvent)) error {
	return r.s.db.Update(func(txn *badger.Txn) error {
		var e outbox.OutboxEvent
		found, err := getJSON(txn, outboxKey(eventID), &e)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("event not found: %s", eventID)
		}
		fn(&e)
		return putJSON(txn, outboxKey(eventID), &e)
	})
}

func (r *outboxRepository) MarkPublished(_ context.Context, eventID string) error {
	return r.update(eventID, func(e *outbox.OutboxEvent) {
		now := time.Now().UTC()
		e.PublishedAt = &now
	})
}

func (r *outboxRepository) IncrementRetry(_ context.Context, eventID string, errorMsg string) error {
	return r.update(eventID, func(e *outbox.OutboxEvent) {
		e.RetryCount++
		e.LastError = errorMsg
	})
}

func (r *outboxRepository) DeletePublished(_ context.Context, before time.Time) (int64, error) {
	events, err := r.all()
	if err != nil {
		return 0, err
	}

	var deleted int64
	err = r.s.db.Update(func(txn *badger.Txn) error {
		for _, e := range events {
			if e.IsPublished() && e.PublishedAt.Before(before) {
				if err := txn.Delete(outboxKey(e.ID)); err != nil {
					return err
				}
				deleted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete published events: %w", err)
	}
	return deleted, nil
}

// badgerLogger routes Badger's printf-style logs into slog
type badgerLogger struct {
	l *logging.Logger
}

func (b *badgerLogger) Errorf(format string, args ...interface{}) {
	b.l.Error(fmt.Sprintf(format, args...))
}

func (b *badgerLogger) Warningf(format string, args ...interface{}) {
	b.l.Warn(fmt.Sprintf(format, args...))
}

func (b *badgerLogger) Infof(format string, args ...interface{}) {
	b.l.Debug(fmt.Sprintf(format, args...))
}

func (b *badgerLogger) Debugf(format string, args ...interface{}) {
	b.l.Debug(fmt.Sprintf(format, args...))
}
