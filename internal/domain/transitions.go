package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MutationKind names a ledger mutation in logs, metrics and alerts
type MutationKind string

const (
	MutationPick     MutationKind = "pick"
	MutationQCReview MutationKind = "qc_review"
)

// Mutation is a pure bucket transition. Apply validates its input against the
// bucket before the call and returns the state after it together with the
// audit record, with the version advanced by one. It does not check invariants.
type Mutation interface {
	Kind() MutationKind
	Apply(before SizeBucket, at time.Time) (SizeBucket, DomainEvent, error)
}

// Pick adds freshly picked units to a bucket. Units awaiting replacement are
// first removed from the picked count, then the new units are added.
type Pick struct {
	Quantity int
	Picker   string
}

// Kind returns MutationPick
func (p Pick) Kind() MutationKind { return MutationPick }

// Apply computes
//
//	freed   = min(awaiting_replacement, picked)
//	picked' = min(assigned, picked - freed + quantity)
//	replaced' = replaced + freed
func (p Pick) Apply(before SizeBucket, at time.Time) (SizeBucket, DomainEvent, error) {
	if p.Quantity < 0 {
		return before, nil, fmt.Errorf("%w: pick quantity %d", ErrInvalidQuantity, p.Quantity)
	}

	rw := CalculateRemaining(before)
	if p.Quantity > rw.RemainingToPick {
		return before, nil, &LimitError{Err: ErrExceedsRemaining, Requested: p.Quantity, Limit: rw.RemainingToPick}
	}

	freed := min(rw.AwaitingReplacement, before.Picked)

	after := before
	after.DomainEvents = nil
	after.Picked = min(before.Assigned, before.Picked-freed+p.Quantity)
	after.ReplacedCumulative = before.ReplacedCumulative + freed
	after.Version = before.Version + 1
	after.UpdatedAt = at

	return after, &PickEvent{
		EventID:      uuid.New().String(),
		AssignmentID: before.AssignmentID,
		Size:         before.Size,
		Quantity:     p.Quantity,
		Freed:        freed,
		PickedAfter:  after.Picked,
		Picker:       p.Picker,
		Version:      after.Version,
		PickedAt:     at,
	}, nil
}

// QCVerdict records an inspection pass over currently unverified units
type QCVerdict struct {
	Approved  int
	Rejected  int
	Remarks   string
	Inspector string
}

// Kind returns MutationQCReview
func (q QCVerdict) Kind() MutationKind { return MutationQCReview }

// Apply computes
//
//	approved' = min(picked, approved + approved_now)
//	rejected' = rejected + rejected_now
func (q QCVerdict) Apply(before SizeBucket, at time.Time) (SizeBucket, DomainEvent, error) {
	if q.Approved < 0 || q.Rejected < 0 {
		return before, nil, fmt.Errorf("%w: approved %d, rejected %d", ErrInvalidQuantity, q.Approved, q.Rejected)
	}

	rw := CalculateRemaining(before)
	// Compared without summing so oversized inputs cannot wrap past the limit
	if q.Approved > rw.Unverified || q.Rejected > rw.Unverified-q.Approved {
		return before, nil, &LimitError{Err: ErrQuantityExceedsUnverified, Requested: saturatingAdd(q.Approved, q.Rejected), Limit: max(0, rw.Unverified)}
	}

	remarks := strings.TrimSpace(q.Remarks)
	if q.Rejected > 0 && remarks == "" {
		return before, nil, ErrRemarksRequired
	}

	after := before
	after.DomainEvents = nil
	after.ApprovedCumulative = min(before.Picked, before.ApprovedCumulative+q.Approved)
	after.RejectedCumulative = before.RejectedCumulative + q.Rejected
	after.Version = before.Version + 1
	after.UpdatedAt = at

	return after, &QCReviewEvent{
		EventID:      uuid.New().String(),
		AssignmentID: before.AssignmentID,
		Size:         before.Size,
		Approved:     q.Approved,
		Rejected:     q.Rejected,
		Remarks:      remarks,
		Inspector:    q.Inspector,
		Version:      after.Version,
		ReviewedAt:   at,
	}, nil
}

// saturatingAdd adds two non-negative ints, clamping at math.MaxInt
func saturatingAdd(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}
