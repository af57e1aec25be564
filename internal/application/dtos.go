package application

import "time"

// SizeBucketDTO is a bucket with its derived remaining work
type SizeBucketDTO struct {
	AssignmentID        string    `json:"assignmentId"`
	Size                string    `json:"size"`
	Assigned            int       `json:"assigned"`
	Picked              int       `json:"picked"`
	ApprovedCumulative  int       `json:"approvedCumulative"`
	RejectedCumulative  int       `json:"rejectedCumulative"`
	ReplacedCumulative  int       `json:"replacedCumulative"`
	Pending             int       `json:"pending"`
	AwaitingReplacement int       `json:"awaitingReplacement"`
	RemainingToPick     int       `json:"remainingToPick"`
	Unverified          int       `json:"unverified"`
	Reconciled          bool      `json:"reconciled"`
	Version             int64     `json:"version"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// BucketTotalsDTO sums buckets across sizes
type BucketTotalsDTO struct {
	Assigned            int `json:"assigned"`
	Picked              int `json:"picked"`
	Approved            int `json:"approved"`
	Rejected            int `json:"rejected"`
	AwaitingReplacement int `json:"awaitingReplacement"`
	RemainingToPick     int `json:"remainingToPick"`
	Unverified          int `json:"unverified"`
}

// SizeBucketListDTO lists the buckets of one assignment
type SizeBucketListDTO struct {
	AssignmentID string          `json:"assignmentId"`
	Buckets      []SizeBucketDTO `json:"buckets"`
	Totals       BucketTotalsDTO `json:"totals"`
}

// AssignmentSummaryDTO holds assignment-level progress. Percentages are
// decimal strings with two places.
type AssignmentSummaryDTO struct {
	Totals            BucketTotalsDTO `json:"totals"`
	CompletionPercent string          `json:"completionPercent"`
	YieldPercent      string          `json:"yieldPercent"`
}

// AssignmentDTO represents an assignment in responses
type AssignmentDTO struct {
	AssignmentID string                `json:"assignmentId"`
	OrderID      string                `json:"orderId"`
	BatchID      string                `json:"batchId"`
	ProductID    string                `json:"productId"`
	Status       string                `json:"status"`
	Sizes        []string              `json:"sizes"`
	OpenedAt     time.Time             `json:"openedAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
	ReconciledAt *time.Time            `json:"reconciledAt,omitempty"`
	ClosedAt     *time.Time            `json:"closedAt,omitempty"`
	Buckets      []SizeBucketDTO       `json:"buckets,omitempty"`
	Summary      *AssignmentSummaryDTO `json:"summary,omitempty"`
}

// PickEventDTO is one entry of a bucket's pick history
type PickEventDTO struct {
	EventID     string    `json:"eventId"`
	Quantity    int       `json:"quantity"`
	Freed       int       `json:"freed"`
	PickedAfter int       `json:"pickedAfter"`
	Picker      string    `json:"picker,omitempty"`
	Version     int64     `json:"version"`
	PickedAt    time.Time `json:"pickedAt"`
}

// QCReviewDTO is one entry of a bucket's QC history
type QCReviewDTO struct {
	EventID    string    `json:"eventId"`
	Approved   int       `json:"approved"`
	Rejected   int       `json:"rejected"`
	Remarks    string    `json:"remarks,omitempty"`
	Inspector  string    `json:"inspector,omitempty"`
	Version    int64     `json:"version"`
	ReviewedAt time.Time `json:"reviewedAt"`
}

// ProgressDTO is what the completion workflow needs to decide its next step
type ProgressDTO struct {
	AssignmentID    string    `json:"assignmentId"`
	Status          string    `json:"status"`
	OpenedAt        time.Time `json:"openedAt"`
	AllReconciled   bool      `json:"allReconciled"`
	RemainingToPick int       `json:"remainingToPick"`
	Unverified      int       `json:"unverified"`
}
