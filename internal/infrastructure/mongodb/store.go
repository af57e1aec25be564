package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/reconciliation-service/internal/domain"
	"github.com/wms-platform/reconciliation-service/internal/infrastructure/outboxmapper"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	pkgmongo "github.com/wms-platform/reconciliation-service/pkg/mongodb"
	"github.com/wms-platform/reconciliation-service/pkg/outbox"
	outboxMongo "github.com/wms-platform/reconciliation-service/pkg/outbox/mongodb"
)

// Collection names
const (
	AssignmentsCollection = "assignments"
	BucketsCollection     = "size_buckets"
	PickEventsCollection  = "pick_events"
	QCReviewsCollection   = "qc_reviews"
)

// Store implements domain.Store on MongoDB. Every write runs in a
// multi-document transaction, so the server must be a replica set.
type Store struct {
	client       *pkgmongo.Client
	assignments  *mongo.Collection
	buckets      *mongo.Collection
	picks        *mongo.Collection
	reviews      *mongo.Collection
	outboxRepo   *outboxMongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
}

// NewStore creates the store and its indexes
func NewStore(ctx context.Context, client *pkgmongo.Client, eventFactory *cloudevents.EventFactory) (*Store, error) {
	db := client.Database()
	s := &Store{
		client:       client,
		assignments:  db.Collection(AssignmentsCollection),
		buckets:      db.Collection(BucketsCollection),
		picks:        db.Collection(PickEventsCollection),
		reviews:      db.Collection(QCReviewsCollection),
		outboxRepo:   outboxMongo.NewOutboxRepository(db),
		eventFactory: eventFactory,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := s.assignments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "assignmentId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "openedAt", Value: 1}},
		},
	}); err != nil {
		return fmt.Errorf("failed to create assignment indexes: %w", err)
	}

	if _, err := s.buckets.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "assignmentId", Value: 1}, {Key: "size", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("failed to create bucket indexes: %w", err)
	}

	auditKeys := bson.D{{Key: "assignmentId", Value: 1}, {Key: "size", Value: 1}, {Key: "version", Value: 1}}
	for _, c := range []*mongo.Collection{s.picks, s.reviews} {
		if _, err := c.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: auditKeys}); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", c.Name(), err)
		}
	}

	return s.outboxRepo.EnsureIndexes(ctx)
}

// Assignments returns the assignment repository
func (s *Store) Assignments() domain.AssignmentRepository { return &assignmentRepository{s} }

// Buckets returns the size bucket repository
func (s *Store) Buckets() domain.SizeBucketRepository { return &bucketRepository{s} }

// Audit returns the audit log reader
func (s *Store) Audit() domain.AuditRepository { return &auditRepository{s} }

// Outbox returns the relay side of the outbox
func (s *Store) Outbox() outbox.Repository { return s.outboxRepo }

// Ping checks the primary is reachable
func (s *Store) Ping(ctx context.Context) error { return s.client.HealthCheck(ctx) }

// Close disconnects the client
func (s *Store) Close(ctx context.Context) error { return s.client.Close(ctx) }

func (s *Store) saveOutbox(sessCtx mongo.SessionContext, events []domain.DomainEvent) error {
	rows, err := outboxmapper.Build(sessCtx, s.eventFactory, events)
	if err != nil {
		return err
	}
	return s.outboxRepo.SaveAll(sessCtx, rows)
}

type assignmentRepository struct{ s *Store }

func (r *assignmentRepository) Create(ctx context.Context, a *domain.Assignment, buckets []*domain.SizeBucket) error {
	err := r.s.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if _, err := r.s.assignments.InsertOne(sessCtx, a); err != nil {
			return err
		}

		docs := make([]interface{}, len(buckets))
		for i, b := range buckets {
			docs[i] = b
		}
		if _, err := r.s.buckets.InsertMany(sessCtx, docs); err != nil {
			return fmt.Errorf("failed to insert buckets: %w", err)
		}

		return r.s.saveOutbox(sessCtx, a.DomainEvents)
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrAssignmentExists
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	a.ClearDomainEvents()
	return nil
}

func (r *assignmentRepository) Save(ctx context.Context, a *domain.Assignment) error {
	err := r.s.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		result, err := r.s.assignments.UpdateOne(sessCtx,
			bson.M{"assignmentId": a.AssignmentID},
			bson.M{"$set": a},
		)
		if err != nil {
			return fmt.Errorf("failed to save assignment: %w", err)
		}
		if result.MatchedCount == 0 {
			return domain.ErrAssignmentNotFound
		}

		return r.s.saveOutbox(sessCtx, a.DomainEvents)
	})
	if err != nil {
		if errors.Is(err, domain.ErrAssignmentNotFound) {
			return err
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	a.ClearDomainEvents()
	return nil
}

func (r *assignmentRepository) FindByID(ctx context.Context, assignmentID string) (*domain.Assignment, error) {
	var a domain.Assignment
	err := r.s.assignments.FindOne(ctx, bson.M{"assignmentId": assignmentID}).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

type bucketRepository struct{ s *Store }

func (r *bucketRepository) FindByKey(ctx context.Context, assignmentID, size string) (*domain.SizeBucket, error) {
	var b domain.SizeBucket
	err := r.s.buckets.FindOne(ctx, bson.M{"assignmentId": assignmentID, "size": size}).Decode(&b)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (r *bucketRepository) FindByAssignment(ctx context.Context, assignmentID string) ([]*domain.SizeBucket, error) {
	opts := options.Find().SetSort(bson.D{{Key: "size", Value: 1}})
	cursor, err := r.s.buckets.Find(ctx, bson.M{"assignmentId": assignmentID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	buckets := make([]*domain.SizeBucket, 0)
	if err := cursor.All(ctx, &buckets); err != nil {
		return nil, err
	}
	return buckets, nil
}

// Save replaces the bucket only while its stored version is still
// expectedVersion. A write conflict with another transaction is retried by
// the driver and then fails the version filter.
func (r *bucketRepository) Save(ctx context.Context, b *domain.SizeBucket, expectedVersion int64) error {
	err := r.s.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		key := bson.M{"assignmentId": b.AssignmentID, "size": b.Size}
		filter := bson.M{"assignmentId": b.AssignmentID, "size": b.Size, "version": expectedVersion}

		result, err := r.s.buckets.UpdateOne(sessCtx, filter, bson.M{"$set": b})
		if err != nil {
			return fmt.Errorf("failed to save bucket: %w", err)
		}
		if result.MatchedCount == 0 {
			count, err := r.s.buckets.CountDocuments(sessCtx, key)
			if err != nil {
				return err
			}
			if count == 0 {
				return domain.ErrBucketNotFound
			}
			return domain.ErrConcurrentModification
		}

		for _, event := range b.DomainEvents {
			var err error
			switch e := event.(type) {
			case *domain.PickEvent:
				_, err = r.s.picks.InsertOne(sessCtx, e)
			case *domain.QCReviewEvent:
				_, err = r.s.reviews.InsertOne(sessCtx, e)
			}
			if err != nil {
				return fmt.Errorf("failed to append audit record: %w", err)
			}
		}

		return r.s.saveOutbox(sessCtx, b.DomainEvents)
	})
	if err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) || errors.Is(err, domain.ErrBucketNotFound) {
			return err
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	b.ClearDomainEvents()
	return nil
}

type auditRepository struct{ s *Store }

func (r *auditRepository) ListPickEvents(ctx context.Context, assignmentID, size string) ([]*domain.PickEvent, error) {
	events := make([]*domain.PickEvent, 0)
	if err := r.find(ctx, r.s.picks, assignmentID, size, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *auditRepository) ListQCReviews(ctx context.Context, assignmentID, size string) ([]*domain.QCReviewEvent, error) {
	events := make([]*domain.QCReviewEvent, 0)
	if err := r.find(ctx, r.s.reviews, assignmentID, size, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *auditRepository) find(ctx context.Context, c *mongo.Collection, assignmentID, size string, out interface{}) error {
	opts := options.Find().SetSort(bson.D{{Key: "version", Value: 1}})
	cursor, err := c.Find(ctx, bson.M{"assignmentId": assignmentID, "size": size}, opts)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, out)
}
