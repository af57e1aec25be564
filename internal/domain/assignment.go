package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// AssignmentStatus represents the lifecycle of an assignment
type AssignmentStatus string

const (
	AssignmentStatusOpen       AssignmentStatus = "open"
	AssignmentStatusReconciled AssignmentStatus = "reconciled"
	AssignmentStatusClosed     AssignmentStatus = "closed"
)

// Assignment is one batch's responsibility for one order item. Its identity
// never changes; its buckets carry the quantities.
type Assignment struct {
	AssignmentID string           `bson:"assignmentId" json:"assignmentId"`
	OrderID      string           `bson:"orderId" json:"orderId"`
	BatchID      string           `bson:"batchId" json:"batchId"`
	ProductID    string           `bson:"productId" json:"productId"`
	Status       AssignmentStatus `bson:"status" json:"status"`
	Sizes        []string         `bson:"sizes" json:"sizes"`

	OpenedAt     time.Time  `bson:"openedAt" json:"openedAt"`
	UpdatedAt    time.Time  `bson:"updatedAt" json:"updatedAt"`
	ReconciledAt *time.Time `bson:"reconciledAt,omitempty" json:"reconciledAt,omitempty"`
	ClosedAt     *time.Time `bson:"closedAt,omitempty" json:"closedAt,omitempty"`

	DomainEvents []DomainEvent `bson:"-" json:"-"`
}

// NewAssignment opens an assignment and creates one empty bucket per size.
// Size codes are compared case-insensitively.
func NewAssignment(assignmentID, orderID, batchID, productID string, sizes map[string]int, at time.Time) (*Assignment, []*SizeBucket, error) {
	assignmentID = strings.TrimSpace(assignmentID)
	if assignmentID == "" {
		return nil, nil, fmt.Errorf("%w: assignment ID is required", ErrInvalidAssignment)
	}
	if len(sizes) == 0 {
		return nil, nil, fmt.Errorf("%w: at least one size is required", ErrInvalidAssignment)
	}

	normalized := make(map[string]int, len(sizes))
	for size, qty := range sizes {
		key := NormalizeSize(size)
		if _, dup := normalized[key]; dup {
			return nil, nil, fmt.Errorf("%w: size %s listed more than once", ErrInvalidAssignment, key)
		}
		normalized[key] = qty
	}

	codes := make([]string, 0, len(normalized))
	for size := range normalized {
		codes = append(codes, size)
	}
	sort.Strings(codes)

	buckets := make([]*SizeBucket, 0, len(codes))
	for _, size := range codes {
		b, err := NewSizeBucket(assignmentID, size, normalized[size], at)
		if err != nil {
			return nil, nil, err
		}
		buckets = append(buckets, b)
	}

	a := &Assignment{
		AssignmentID: assignmentID,
		OrderID:      orderID,
		BatchID:      batchID,
		ProductID:    productID,
		Status:       AssignmentStatusOpen,
		Sizes:        codes,
		OpenedAt:     at,
		UpdatedAt:    at,
	}
	a.AddDomainEvent(&AssignmentOpenedEvent{
		AssignmentID: assignmentID,
		OrderID:      orderID,
		BatchID:      batchID,
		ProductID:    productID,
		Sizes:        normalized,
		OpenedAt:     at,
	})

	return a, buckets, nil
}

// AcceptsMutations reports whether picks and QC verdicts may still be applied
func (a *Assignment) AcceptsMutations() bool {
	return a.Status != AssignmentStatusClosed
}

// Close stops further mutation. It returns false when already closed.
func (a *Assignment) Close(reason string, at time.Time) bool {
	if a.Status == AssignmentStatusClosed {
		return false
	}
	a.Status = AssignmentStatusClosed
	a.ClosedAt = &at
	a.UpdatedAt = at
	a.AddDomainEvent(&AssignmentClosedEvent{AssignmentID: a.AssignmentID, Reason: reason, ClosedAt: at})
	return true
}

// MarkReconciled records that every bucket is fully approved. buckets must be
// the complete current set; it returns false when nothing changed.
func (a *Assignment) MarkReconciled(buckets []*SizeBucket, at time.Time) (bool, error) {
	switch a.Status {
	case AssignmentStatusReconciled:
		return false, nil
	case AssignmentStatusClosed:
		return false, ErrAssignmentClosed
	}

	if len(buckets) != len(a.Sizes) {
		return false, fmt.Errorf("assignment %s has %d sizes, got %d buckets", a.AssignmentID, len(a.Sizes), len(buckets))
	}

	var assigned, rejected int
	for _, b := range buckets {
		if !b.IsReconciled() {
			return false, fmt.Errorf("assignment %s size %s is not reconciled", a.AssignmentID, b.Size)
		}
		assigned += b.Assigned
		rejected += b.RejectedCumulative
	}

	a.Status = AssignmentStatusReconciled
	a.ReconciledAt = &at
	a.UpdatedAt = at
	a.AddDomainEvent(&AssignmentReconciledEvent{
		AssignmentID:  a.AssignmentID,
		TotalAssigned: assigned,
		TotalRejected: rejected,
		ReconciledAt:  at,
	})
	return true, nil
}

// HasSize reports whether the assignment owns a bucket for size
func (a *Assignment) HasSize(size string) bool {
	size = NormalizeSize(size)
	for _, s := range a.Sizes {
		if s == size {
			return true
		}
	}
	return false
}

// AddDomainEvent adds a domain event
func (a *Assignment) AddDomainEvent(event DomainEvent) {
	a.DomainEvents = append(a.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (a *Assignment) ClearDomainEvents() {
	a.DomainEvents = nil
}
