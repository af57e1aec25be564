package domain

import "time"

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// PickEvent is the audit record of one accepted pick submission
type PickEvent struct {
	EventID      string    `bson:"_id" json:"eventId"`
	AssignmentID string    `bson:"assignmentId" json:"assignmentId"`
	Size         string    `bson:"size" json:"size"`
	Quantity     int       `bson:"quantity" json:"quantity"`
	Freed        int       `bson:"freed" json:"freed"`
	PickedAfter  int       `bson:"pickedAfter" json:"pickedAfter"`
	Picker       string    `bson:"picker,omitempty" json:"picker,omitempty"`
	Version      int64     `bson:"version" json:"version"`
	PickedAt     time.Time `bson:"pickedAt" json:"pickedAt"`
}

func (e *PickEvent) EventType() string     { return "wms.reconciliation.pick-recorded" }
func (e *PickEvent) OccurredAt() time.Time { return e.PickedAt }

// QCReviewEvent is the audit record of one accepted QC verdict
type QCReviewEvent struct {
	EventID      string    `bson:"_id" json:"eventId"`
	AssignmentID string    `bson:"assignmentId" json:"assignmentId"`
	Size         string    `bson:"size" json:"size"`
	Approved     int       `bson:"approved" json:"approved"`
	Rejected     int       `bson:"rejected" json:"rejected"`
	Remarks      string    `bson:"remarks,omitempty" json:"remarks,omitempty"`
	Inspector    string    `bson:"inspector,omitempty" json:"inspector,omitempty"`
	Version      int64     `bson:"version" json:"version"`
	ReviewedAt   time.Time `bson:"reviewedAt" json:"reviewedAt"`
}

func (e *QCReviewEvent) EventType() string     { return "wms.reconciliation.qc-review-recorded" }
func (e *QCReviewEvent) OccurredAt() time.Time { return e.ReviewedAt }

// AssignmentOpenedEvent is published when an assignment and its buckets are created
type AssignmentOpenedEvent struct {
	AssignmentID string         `json:"assignmentId"`
	OrderID      string         `json:"orderId"`
	BatchID      string         `json:"batchId"`
	ProductID    string         `json:"productId"`
	Sizes        map[string]int `json:"sizes"`
	OpenedAt     time.Time      `json:"openedAt"`
}

func (e *AssignmentOpenedEvent) EventType() string     { return "wms.reconciliation.assignment-opened" }
func (e *AssignmentOpenedEvent) OccurredAt() time.Time { return e.OpenedAt }

// AssignmentClosedEvent is published when an assignment stops accepting mutations
type AssignmentClosedEvent struct {
	AssignmentID string    `json:"assignmentId"`
	Reason       string    `json:"reason,omitempty"`
	ClosedAt     time.Time `json:"closedAt"`
}

func (e *AssignmentClosedEvent) EventType() string     { return "wms.reconciliation.assignment-closed" }
func (e *AssignmentClosedEvent) OccurredAt() time.Time { return e.ClosedAt }

// AssignmentReconciledEvent is published when every bucket is fully approved
type AssignmentReconciledEvent struct {
	AssignmentID  string    `json:"assignmentId"`
	TotalAssigned int       `json:"totalAssigned"`
	TotalRejected int       `json:"totalRejected"`
	ReconciledAt  time.Time `json:"reconciledAt"`
}

func (e *AssignmentReconciledEvent) EventType() string     { return "wms.reconciliation.assignment-reconciled" }
func (e *AssignmentReconciledEvent) OccurredAt() time.Time { return e.ReconciledAt }
