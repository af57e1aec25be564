package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wms-platform/reconciliation-service/internal/domain"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/metrics"
)

// ReconciliationService handles assignment and bucket use cases. Every error
// it returns is an *errors.AppError.
type ReconciliationService struct {
	store    domain.Store
	ledger   *Ledger
	notifier CompletionNotifier
	metrics  *metrics.Metrics
	logger   *logging.Logger
	locks    *keyedMutex
	now      func() time.Time
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(
	store domain.Store,
	ledger *Ledger,
	notifier CompletionNotifier,
	m *metrics.Metrics,
	logger *logging.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		store:    store,
		ledger:   ledger,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		locks:    newKeyedMutex(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// OpenAssignment creates an assignment and its empty buckets
func (s *ReconciliationService) OpenAssignment(ctx context.Context, cmd OpenAssignmentCommand) (*AssignmentDTO, error) {
	a, buckets, err := domain.NewAssignment(cmd.AssignmentID, cmd.OrderID, cmd.BatchID, cmd.ProductID, cmd.Sizes, s.now())
	if err != nil {
		return nil, toAppError(err, cmd.AssignmentID, "")
	}

	if err := s.store.Assignments().Create(ctx, a, buckets); err != nil {
		return nil, s.fail(ctx, "Failed to open assignment", err, a.AssignmentID, "")
	}

	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "assignment.opened",
		EntityType: "assignment",
		EntityID:   a.AssignmentID,
		Action:     "opened",
		RelatedIDs: map[string]string{
			"orderId": a.OrderID,
			"batchId": a.BatchID,
		},
		Data: map[string]any{"sizes": a.Sizes},
	})

	s.notify(ctx, a.AssignmentID)
	return ToAssignmentDTO(a, buckets), nil
}

// CloseAssignment stops further mutation. Closing twice returns the closed assignment.
func (s *ReconciliationService) CloseAssignment(ctx context.Context, cmd CloseAssignmentCommand) (*AssignmentDTO, error) {
	unlock, err := s.locks.Lock(ctx, cmd.AssignmentID)
	if err != nil {
		return nil, toAppError(err, cmd.AssignmentID, "")
	}
	defer unlock()

	a, err := s.findAssignment(ctx, cmd.AssignmentID)
	if err != nil {
		return nil, err
	}

	// Waits for in-flight picks and verdicts
	unlockBuckets, err := s.ledger.LockBuckets(ctx, a.AssignmentID, a.Sizes)
	if err != nil {
		return nil, toAppError(err, cmd.AssignmentID, "")
	}
	defer unlockBuckets()

	if a.Close(cmd.Reason, s.now()) {
		if err := s.store.Assignments().Save(ctx, a); err != nil {
			return nil, s.fail(ctx, "Failed to close assignment", err, a.AssignmentID, "")
		}

		s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
			EventType:  "assignment.closed",
			EntityType: "assignment",
			EntityID:   a.AssignmentID,
			Action:     "closed",
			Data:       map[string]any{"reason": cmd.Reason},
		})
	}

	return ToAssignmentDTO(a, nil), nil
}

// GetAssignment returns an assignment with its buckets and summary
func (s *ReconciliationService) GetAssignment(ctx context.Context, query GetAssignmentQuery) (*AssignmentDTO, error) {
	a, err := s.findAssignment(ctx, query.AssignmentID)
	if err != nil {
		return nil, err
	}

	buckets, err := s.store.Buckets().FindByAssignment(ctx, a.AssignmentID)
	if err != nil {
		return nil, s.fail(ctx, "Failed to list buckets", err, a.AssignmentID, "")
	}

	return ToAssignmentDTO(a, buckets), nil
}

// GetBucket returns one size bucket
func (s *ReconciliationService) GetBucket(ctx context.Context, query GetBucketQuery) (*SizeBucketDTO, error) {
	size := domain.NormalizeSize(query.Size)
	b, err := s.ledger.Get(ctx, query.AssignmentID, size)
	if err != nil {
		return nil, s.fail(ctx, "Failed to get bucket", s.refineNotFound(ctx, query.AssignmentID, err), query.AssignmentID, size)
	}
	return ToSizeBucketDTO(b), nil
}

// ListSizeBuckets returns every bucket of an assignment with totals
func (s *ReconciliationService) ListSizeBuckets(ctx context.Context, query ListSizeBucketsQuery) (*SizeBucketListDTO, error) {
	a, err := s.findAssignment(ctx, query.AssignmentID)
	if err != nil {
		return nil, err
	}

	buckets, err := s.store.Buckets().FindByAssignment(ctx, a.AssignmentID)
	if err != nil {
		return nil, s.fail(ctx, "Failed to list buckets", err, a.AssignmentID, "")
	}
	return ToSizeBucketListDTO(a.AssignmentID, buckets), nil
}

// SubmitPick records picked units through the ledger
func (s *ReconciliationService) SubmitPick(ctx context.Context, cmd SubmitPickCommand) (*SizeBucketDTO, error) {
	size := domain.NormalizeSize(cmd.Size)
	after, event, err := s.ledger.Apply(ctx, cmd.AssignmentID, size, domain.Pick{
		Quantity: cmd.Quantity,
		Picker:   cmd.Picker,
	})
	if err != nil {
		return nil, s.fail(ctx, "Pick rejected", err, cmd.AssignmentID, size)
	}

	freed := 0
	if pe, ok := event.(*domain.PickEvent); ok {
		freed = pe.Freed
	}
	replacement := min(freed, cmd.Quantity)
	s.metrics.RecordPick(cmd.Quantity-replacement, replacement)

	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "bucket.picked",
		EntityType: "sizeBucket",
		EntityID:   after.Key(),
		Action:     "picked",
		RelatedIDs: map[string]string{
			"assignmentId": after.AssignmentID,
			"size":         after.Size,
			"picker":       cmd.Picker,
		},
		Data: map[string]any{
			"quantity": cmd.Quantity,
			"freed":    freed,
			"picked":   after.Picked,
			"version":  after.Version,
		},
	})

	s.notify(ctx, after.AssignmentID)
	return ToSizeBucketDTO(after), nil
}

// SubmitQCVerdict records a QC verdict through the ledger
func (s *ReconciliationService) SubmitQCVerdict(ctx context.Context, cmd SubmitQCVerdictCommand) (*SizeBucketDTO, error) {
	size := domain.NormalizeSize(cmd.Size)
	after, _, err := s.ledger.Apply(ctx, cmd.AssignmentID, size, domain.QCVerdict{
		Approved:  cmd.Approved,
		Rejected:  cmd.Rejected,
		Remarks:   cmd.Remarks,
		Inspector: cmd.Inspector,
	})
	if err != nil {
		return nil, s.fail(ctx, "QC verdict rejected", err, cmd.AssignmentID, size)
	}

	s.metrics.RecordQCVerdict(cmd.Approved, cmd.Rejected)

	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "bucket.reviewed",
		EntityType: "sizeBucket",
		EntityID:   after.Key(),
		Action:     "reviewed",
		RelatedIDs: map[string]string{
			"assignmentId": after.AssignmentID,
			"size":         after.Size,
			"inspector":    cmd.Inspector,
		},
		Data: map[string]any{
			"approved": cmd.Approved,
			"rejected": cmd.Rejected,
			"version":  after.Version,
		},
	})

	s.notify(ctx, after.AssignmentID)
	return ToSizeBucketDTO(after), nil
}

// ListPickEvents returns a bucket's pick history, oldest first
func (s *ReconciliationService) ListPickEvents(ctx context.Context, query AuditQuery) ([]PickEventDTO, error) {
	size := domain.NormalizeSize(query.Size)
	if _, err := s.ledger.Get(ctx, query.AssignmentID, size); err != nil {
		return nil, s.fail(ctx, "Failed to get bucket", s.refineNotFound(ctx, query.AssignmentID, err), query.AssignmentID, size)
	}

	events, err := s.store.Audit().ListPickEvents(ctx, query.AssignmentID, size)
	if err != nil {
		return nil, s.fail(ctx, "Failed to list pick events", err, query.AssignmentID, size)
	}
	return ToPickEventDTOs(events), nil
}

// ListQCReviews returns a bucket's QC history, oldest first
func (s *ReconciliationService) ListQCReviews(ctx context.Context, query AuditQuery) ([]QCReviewDTO, error) {
	size := domain.NormalizeSize(query.Size)
	if _, err := s.ledger.Get(ctx, query.AssignmentID, size); err != nil {
		return nil, s.fail(ctx, "Failed to get bucket", s.refineNotFound(ctx, query.AssignmentID, err), query.AssignmentID, size)
	}

	events, err := s.store.Audit().ListQCReviews(ctx, query.AssignmentID, size)
	if err != nil {
		return nil, s.fail(ctx, "Failed to list QC reviews", err, query.AssignmentID, size)
	}
	return ToQCReviewDTOs(events), nil
}

// CheckProgress reports whether every bucket of an assignment is reconciled
func (s *ReconciliationService) CheckProgress(ctx context.Context, assignmentID string) (*ProgressDTO, error) {
	a, err := s.findAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	buckets, err := s.store.Buckets().FindByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, s.fail(ctx, "Failed to list buckets", err, assignmentID, "")
	}

	progress := &ProgressDTO{
		AssignmentID:  a.AssignmentID,
		Status:        string(a.Status),
		OpenedAt:      a.OpenedAt,
		AllReconciled: len(buckets) == len(a.Sizes),
	}
	for _, b := range buckets {
		rem := domain.CalculateRemaining(*b)
		progress.RemainingToPick += rem.RemainingToPick
		progress.Unverified += rem.Unverified
		if !b.IsReconciled() {
			progress.AllReconciled = false
		}
	}
	return progress, nil
}

// MarkReconciled moves a fully approved assignment to reconciled. It
// returns false when the assignment was already reconciled.
func (s *ReconciliationService) MarkReconciled(ctx context.Context, assignmentID string) (*AssignmentDTO, bool, error) {
	unlock, err := s.locks.Lock(ctx, assignmentID)
	if err != nil {
		return nil, false, toAppError(err, assignmentID, "")
	}
	defer unlock()

	a, err := s.findAssignment(ctx, assignmentID)
	if err != nil {
		return nil, false, err
	}

	unlockBuckets, err := s.ledger.LockBuckets(ctx, a.AssignmentID, a.Sizes)
	if err != nil {
		return nil, false, toAppError(err, assignmentID, "")
	}
	defer unlockBuckets()

	buckets, err := s.store.Buckets().FindByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, false, s.fail(ctx, "Failed to list buckets", err, assignmentID, "")
	}

	changed, err := a.MarkReconciled(buckets, s.now())
	if err != nil {
		return nil, false, s.fail(ctx, "Assignment cannot be reconciled", err, assignmentID, "")
	}
	if !changed {
		return ToAssignmentDTO(a, buckets), false, nil
	}

	if err := s.store.Assignments().Save(ctx, a); err != nil {
		return nil, false, s.fail(ctx, "Failed to save assignment", err, assignmentID, "")
	}

	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "assignment.reconciled",
		EntityType: "assignment",
		EntityID:   a.AssignmentID,
		Action:     "reconciled",
		RelatedIDs: map[string]string{
			"orderId": a.OrderID,
			"batchId": a.BatchID,
		},
		Data: map[string]any{"sizes": len(a.Sizes)},
	})

	return ToAssignmentDTO(a, buckets), true, nil
}

func (s *ReconciliationService) findAssignment(ctx context.Context, assignmentID string) (*domain.Assignment, error) {
	a, err := s.store.Assignments().FindByID(ctx, assignmentID)
	if err != nil {
		return nil, s.fail(ctx, "Failed to get assignment", fmt.Errorf("failed to load assignment: %w", err), assignmentID, "")
	}
	if a == nil {
		return nil, toAppError(domain.ErrAssignmentNotFound, assignmentID, "")
	}
	return a, nil
}

// refineNotFound tells a missing assignment apart from a missing size
func (s *ReconciliationService) refineNotFound(ctx context.Context, assignmentID string, err error) error {
	if !errors.Is(err, domain.ErrBucketNotFound) {
		return err
	}
	a, findErr := s.store.Assignments().FindByID(ctx, assignmentID)
	if findErr == nil && a == nil {
		return domain.ErrAssignmentNotFound
	}
	return err
}

// fail logs err at the level its cause deserves and maps it for the API
func (s *ReconciliationService) fail(ctx context.Context, msg string, err error, assignmentID, size string) error {
	logger := s.logger.WithContext(ctx).WithError(err)
	switch outcomeOf(err) {
	case outcomeRejected, outcomeConflict:
		logger.Info(msg, "assignmentId", assignmentID, "size", size)
	case outcomeViolation:
		// already logged on the operator channel by the ledger
	default:
		logger.Error(msg, "assignmentId", assignmentID, "size", size)
	}
	return toAppError(err, assignmentID, size)
}

// notify signals the completion workflow. Failures only delay reconciliation.
func (s *ReconciliationService) notify(ctx context.Context, assignmentID string) {
	if err := s.notifier.NotifyBucketUpdated(ctx, assignmentID); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to notify completion workflow", "assignmentId", assignmentID)
	}
}
