package domain

import "fmt"

// Invariant names reported in violations
const (
	InvariantBucketIdentity         = "bucket_identity"
	InvariantAssignedImmutable      = "assigned_immutable"
	InvariantPickedWithinAssigned   = "picked_within_assigned"
	InvariantApprovedWithinPicked   = "approved_within_picked"
	InvariantApprovedMonotonic      = "approved_monotonic"
	InvariantRejectedMonotonic      = "rejected_monotonic"
	InvariantReplacedWithinRejected = "replaced_within_rejected"
	InvariantReplacedMonotonic      = "replaced_monotonic"
	InvariantUnverifiedNonNegative  = "unverified_non_negative"
)

// InvariantViolationError identifies the failed invariant and the bucket
// state on both sides of the rejected mutation.
type InvariantViolationError struct {
	Invariant string
	Before    SizeBucket
	After     SizeBucket
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("%v: %s on %s (before=%v after=%v)",
		ErrInvariantViolation, e.Invariant, e.After.Key(), e.Before.Counters(), e.After.Counters())
}

func (e *InvariantViolationError) Unwrap() error { return ErrInvariantViolation }

// CheckState validates the invariants that hold for any single bucket state
func CheckState(b SizeBucket) string {
	switch {
	case b.Picked < 0 || b.Picked > b.Assigned:
		return InvariantPickedWithinAssigned
	case b.ApprovedCumulative < 0 || b.ApprovedCumulative > b.Picked:
		return InvariantApprovedWithinPicked
	case b.ReplacedCumulative < 0 || b.ReplacedCumulative > b.RejectedCumulative:
		return InvariantReplacedWithinRejected
	case CalculateRemaining(b).Unverified < 0:
		return InvariantUnverifiedNonNegative
	}
	return ""
}

// CheckInvariants validates a transition. It never adjusts either state.
func CheckInvariants(before, after SizeBucket) error {
	violation := func(name string) error {
		return &InvariantViolationError{Invariant: name, Before: before, After: after}
	}

	switch {
	case before.AssignmentID != after.AssignmentID || before.Size != after.Size:
		return violation(InvariantBucketIdentity)
	case before.Assigned != after.Assigned:
		return violation(InvariantAssignedImmutable)
	case after.ApprovedCumulative < before.ApprovedCumulative:
		return violation(InvariantApprovedMonotonic)
	case after.RejectedCumulative < before.RejectedCumulative:
		return violation(InvariantRejectedMonotonic)
	case after.ReplacedCumulative < before.ReplacedCumulative:
		return violation(InvariantReplacedMonotonic)
	}

	if name := CheckState(after); name != "" {
		return violation(name)
	}
	return nil
}
