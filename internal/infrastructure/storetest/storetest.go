// Package storetest holds the behaviour every storage backend must share.
// Backend packages run it from their own tests against a fresh store.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/wms-platform/reconciliation-service/internal/domain"
	"github.com/wms-platform/reconciliation-service/pkg/outbox"
)

// Backend is a store under test with its outbox
type Backend struct {
	Store  domain.Store
	Outbox outbox.Repository
}

// StoreSuite exercises domain.Store and outbox.Repository. NewBackend is
// called before every test and must return an empty backend; it registers
// its own cleanup on t.
type StoreSuite struct {
	suite.Suite

	NewBackend func(t *testing.T) Backend

	ctx     context.Context
	backend Backend
	now     time.Time
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.backend = s.NewBackend(s.T())
	s.now = time.Now().UTC().Truncate(time.Millisecond)
}

func (s *StoreSuite) openAssignment(id string, sizes map[string]int) *domain.Assignment {
	a, buckets, err := domain.NewAssignment(id, "ORD-1", "BATCH-1", "PROD-1", sizes, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.backend.Store.Assignments().Create(s.ctx, a, buckets))
	return a
}

func (s *StoreSuite) applyPick(assignmentID, size string, qty int) *domain.SizeBucket {
	before, err := s.backend.Store.Buckets().FindByKey(s.ctx, assignmentID, size)
	s.Require().NoError(err)
	s.Require().NotNil(before)

	after, event, err := domain.Pick{Quantity: qty, Picker: "op-1"}.Apply(*before, s.now)
	s.Require().NoError(err)
	after.AddDomainEvent(event)
	s.Require().NoError(s.backend.Store.Buckets().Save(s.ctx, &after, before.Version))
	return &after
}

func (s *StoreSuite) TestCreateAndFind() {
	s.openAssignment("A-1", map[string]int{"m": 10, "L": 5})

	a, err := s.backend.Store.Assignments().FindByID(s.ctx, "A-1")
	s.Require().NoError(err)
	s.Require().NotNil(a)
	s.Equal(domain.AssignmentStatusOpen, a.Status)
	s.Equal([]string{"L", "M"}, a.Sizes)
	s.Empty(a.DomainEvents)

	buckets, err := s.backend.Store.Buckets().FindByAssignment(s.ctx, "A-1")
	s.Require().NoError(err)
	s.Require().Len(buckets, 2)
	s.Equal("L", buckets[0].Size)
	s.Equal(5, buckets[0].Assigned)
	s.Equal("M", buckets[1].Size)
	s.Equal(int64(1), buckets[1].Version)
}

func (s *StoreSuite) TestCreateDuplicate() {
	s.openAssignment("A-1", map[string]int{"M": 10})

	a, buckets, err := domain.NewAssignment("A-1", "ORD-2", "BATCH-2", "PROD-2", map[string]int{"S": 1}, s.now)
	s.Require().NoError(err)
	err = s.backend.Store.Assignments().Create(s.ctx, a, buckets)
	s.ErrorIs(err, domain.ErrAssignmentExists)
}

func (s *StoreSuite) TestFindMissing() {
	a, err := s.backend.Store.Assignments().FindByID(s.ctx, "nope")
	s.NoError(err)
	s.Nil(a)

	b, err := s.backend.Store.Buckets().FindByKey(s.ctx, "nope", "M")
	s.NoError(err)
	s.Nil(b)

	buckets, err := s.backend.Store.Buckets().FindByAssignment(s.ctx, "nope")
	s.NoError(err)
	s.Empty(buckets)
}

func (s *StoreSuite) TestSaveBucketAppendsAudit() {
	s.openAssignment("A-1", map[string]int{"M": 10})
	s.applyPick("A-1", "M", 4)
	s.applyPick("A-1", "M", 3)

	stored, err := s.backend.Store.Buckets().FindByKey(s.ctx, "A-1", "M")
	s.Require().NoError(err)
	s.Equal(7, stored.Picked)
	s.Equal(int64(3), stored.Version)

	picks, err := s.backend.Store.Audit().ListPickEvents(s.ctx, "A-1", "M")
	s.Require().NoError(err)
	s.Require().Len(picks, 2)
	s.Equal(4, picks[0].Quantity)
	s.Equal(int64(2), picks[0].Version)
	s.Equal(3, picks[1].Quantity)
	s.Equal(7, picks[1].PickedAfter)

	before := *stored
	after, event, err := domain.QCVerdict{Approved: 5, Rejected: 2, Remarks: "torn seam", Inspector: "qc-1"}.Apply(before, s.now)
	s.Require().NoError(err)
	after.AddDomainEvent(event)
	s.Require().NoError(s.backend.Store.Buckets().Save(s.ctx, &after, before.Version))

	reviews, err := s.backend.Store.Audit().ListQCReviews(s.ctx, "A-1", "M")
	s.Require().NoError(err)
	s.Require().Len(reviews, 1)
	s.Equal("torn seam", reviews[0].Remarks)
	s.Equal(2, reviews[0].Rejected)
}

func (s *StoreSuite) TestSaveBucketVersionConflict() {
	s.openAssignment("A-1", map[string]int{"M": 10})

	before, err := s.backend.Store.Buckets().FindByKey(s.ctx, "A-1", "M")
	s.Require().NoError(err)

	s.applyPick("A-1", "M", 2)

	stale, event, err := domain.Pick{Quantity: 5}.Apply(*before, s.now)
	s.Require().NoError(err)
	stale.AddDomainEvent(event)
	err = s.backend.Store.Buckets().Save(s.ctx, &stale, before.Version)
	s.ErrorIs(err, domain.ErrConcurrentModification)

	stored, err := s.backend.Store.Buckets().FindByKey(s.ctx, "A-1", "M")
	s.Require().NoError(err)
	s.Equal(2, stored.Picked)

	picks, err := s.backend.Store.Audit().ListPickEvents(s.ctx, "A-1", "M")
	s.Require().NoError(err)
	s.Len(picks, 1)
}

func (s *StoreSuite) TestSaveUnknownBucket() {
	b, err := domain.NewSizeBucket("ghost", "M", 3, s.now)
	s.Require().NoError(err)
	err = s.backend.Store.Buckets().Save(s.ctx, b, 1)
	s.Error(err)
}

func (s *StoreSuite) TestSaveAssignment() {
	a := s.openAssignment("A-1", map[string]int{"M": 10})
	s.True(a.Close("order cancelled", s.now))
	s.Require().NoError(s.backend.Store.Assignments().Save(s.ctx, a))
	s.Empty(a.DomainEvents)

	stored, err := s.backend.Store.Assignments().FindByID(s.ctx, "A-1")
	s.Require().NoError(err)
	s.Equal(domain.AssignmentStatusClosed, stored.Status)
	s.Require().NotNil(stored.ClosedAt)
}

func (s *StoreSuite) TestOutboxLifecycle() {
	s.openAssignment("A-1", map[string]int{"M": 10})
	s.applyPick("A-1", "M", 4)

	repo := s.backend.Outbox
	events, err := repo.FindUnpublished(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(events, 2)

	byType := make(map[string]string, len(events))
	for _, e := range events {
		byType[e.EventType] = e.ID
	}
	openedID := byType["wms.reconciliation.assignment-opened"]
	pickedID := byType["wms.reconciliation.pick-recorded"]
	s.Require().NotEmpty(openedID)
	s.Require().NotEmpty(pickedID)

	s.Require().NoError(repo.IncrementRetry(s.ctx, openedID, "broker down"))
	s.Require().NoError(repo.MarkPublished(s.ctx, pickedID))

	remaining, err := repo.FindUnpublished(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(remaining, 1)
	s.Equal(openedID, remaining[0].ID)
	s.Equal(1, remaining[0].RetryCount)
	s.Equal("broker down", remaining[0].LastError)

	deleted, err := repo.DeletePublished(s.ctx, time.Now().UTC().Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(int64(1), deleted)
}

func (s *StoreSuite) TestFindUnpublishedLimit() {
	s.openAssignment("A-1", map[string]int{"M": 10})
	s.openAssignment("A-2", map[string]int{"M": 10})
	s.openAssignment("A-3", map[string]int{"M": 10})

	events, err := s.backend.Outbox.FindUnpublished(s.ctx, 2)
	s.Require().NoError(err)
	s.Len(events, 2)
}

func (s *StoreSuite) TestPing() {
	s.NoError(s.backend.Store.Ping(s.ctx))
}
