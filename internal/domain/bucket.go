package domain

import (
	"fmt"
	"strings"
	"time"
)

// SizeBucket is the per-size quantity ledger entry of one assignment.
// Counters are only changed through a Mutation applied by the ledger.
type SizeBucket struct {
	AssignmentID string `bson:"assignmentId" json:"assignmentId"`
	Size         string `bson:"size" json:"size"`

	Assigned           int `bson:"assigned" json:"assigned"`
	Picked             int `bson:"picked" json:"picked"`
	ApprovedCumulative int `bson:"approvedCumulative" json:"approvedCumulative"`
	RejectedCumulative int `bson:"rejectedCumulative" json:"rejectedCumulative"`

	// ReplacedCumulative counts rejected units whose slot has been freed by a
	// later pick. rejected - replaced is what still awaits replacement.
	ReplacedCumulative int `bson:"replacedCumulative" json:"replacedCumulative"`

	Version   int64     `bson:"version" json:"version"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`

	DomainEvents []DomainEvent `bson:"-" json:"-"`
}

// NewSizeBucket creates an empty bucket for a size
func NewSizeBucket(assignmentID, size string, assigned int, at time.Time) (*SizeBucket, error) {
	size = NormalizeSize(size)
	if size == "" {
		return nil, fmt.Errorf("%w: size is required", ErrInvalidAssignment)
	}
	if assigned <= 0 {
		return nil, fmt.Errorf("%w: size %s must be assigned at least one unit, got %d", ErrInvalidAssignment, size, assigned)
	}

	return &SizeBucket{
		AssignmentID: assignmentID,
		Size:         size,
		Assigned:     assigned,
		Version:      1,
		CreatedAt:    at,
		UpdatedAt:    at,
	}, nil
}

// NormalizeSize returns the canonical form of a size code
func NormalizeSize(size string) string {
	return strings.ToUpper(strings.TrimSpace(size))
}

// Key identifies the bucket
func (b SizeBucket) Key() string {
	return b.AssignmentID + "/" + b.Size
}

// Counters returns the stored counters by name, used for alert payloads and logs
func (b SizeBucket) Counters() map[string]int {
	return map[string]int{
		"assigned":           b.Assigned,
		"picked":             b.Picked,
		"approvedCumulative": b.ApprovedCumulative,
		"rejectedCumulative": b.RejectedCumulative,
		"replacedCumulative": b.ReplacedCumulative,
	}
}

// IsReconciled reports whether every assigned unit is approved and nothing is left to pick
func (b SizeBucket) IsReconciled() bool {
	return b.ApprovedCumulative == b.Assigned && CalculateRemaining(b).RemainingToPick == 0
}

// AddDomainEvent records an event to be persisted with the bucket
func (b *SizeBucket) AddDomainEvent(event DomainEvent) {
	b.DomainEvents = append(b.DomainEvents, event)
}

// ClearDomainEvents drops recorded events after they were persisted
func (b *SizeBucket) ClearDomainEvents() {
	b.DomainEvents = nil
}
