package domain

import (
	"errors"
	"fmt"
)

// Ledger domain errors
var (
	// ErrInvalidQuantity is returned when a submitted quantity is negative
	ErrInvalidQuantity = errors.New("invalid quantity: must be zero or greater")

	// ErrExceedsRemaining is returned when a pick is larger than the units still to pick
	ErrExceedsRemaining = errors.New("pick quantity exceeds remaining to pick")

	// ErrQuantityExceedsUnverified is returned when a QC verdict covers more units than await verification
	ErrQuantityExceedsUnverified = errors.New("verdict quantity exceeds unverified units")

	// ErrRemarksRequired is returned when units are rejected without remarks
	ErrRemarksRequired = errors.New("remarks are required when rejecting units")

	// ErrInvariantViolation is matched by every *InvariantViolationError
	ErrInvariantViolation = errors.New("ledger invariant violated")

	// ErrConcurrentModification is returned when a bucket changed between load and save
	ErrConcurrentModification = errors.New("size bucket was modified concurrently")
)

// Assignment errors
var (
	// ErrInvalidAssignment is returned when an assignment cannot be opened as given
	ErrInvalidAssignment = errors.New("invalid assignment")

	// ErrAssignmentNotFound is returned when an assignment does not exist
	ErrAssignmentNotFound = errors.New("assignment not found")

	// ErrAssignmentExists is returned when opening an assignment ID twice
	ErrAssignmentExists = errors.New("assignment already exists")

	// ErrAssignmentClosed is returned when mutating a bucket of a closed assignment
	ErrAssignmentClosed = errors.New("assignment is closed")

	// ErrBucketNotFound is returned when an assignment has no bucket for a size
	ErrBucketNotFound = errors.New("size bucket not found")
)

// LimitError is an input error that exceeded a ledger-derived limit. It
// unwraps to ErrExceedsRemaining or ErrQuantityExceedsUnverified.
type LimitError struct {
	Err       error
	Requested int
	Limit     int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%v: requested %d, limit %d", e.Err, e.Requested, e.Limit)
}

func (e *LimitError) Unwrap() error { return e.Err }
