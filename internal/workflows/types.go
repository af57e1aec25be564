package workflows

import "time"

// AssignmentReconciliationInput starts or continues the completion workflow
type AssignmentReconciliationInput struct {
	AssignmentID  string        `json:"assignmentId"`
	CheckInterval time.Duration `json:"checkInterval,omitempty"`
	StallAfter    time.Duration `json:"stallAfter,omitempty"`

	// Carried across continue-as-new
	StallAlerted      bool `json:"stallAlerted,omitempty"`
	ContinuationCount int  `json:"continuationCount,omitempty"`
}

// AssignmentReconciliationResult is returned when the workflow stops
type AssignmentReconciliationResult struct {
	AssignmentID string    `json:"assignmentId"`
	Status       string    `json:"status"`
	Checks       int       `json:"checks"`
	StallAlerted bool      `json:"stallAlerted"`
	CompletedAt  time.Time `json:"completedAt"`
}

// BucketUpdatedSignal is the payload of SignalBucketUpdated
type BucketUpdatedSignal struct {
	AssignmentID string `json:"assignmentId"`
}

// AssignmentProgress is the result of CheckAssignmentProgress
type AssignmentProgress struct {
	AssignmentID    string    `json:"assignmentId"`
	Status          string    `json:"status"`
	OpenedAt        time.Time `json:"openedAt"`
	AllReconciled   bool      `json:"allReconciled"`
	RemainingToPick int       `json:"remainingToPick"`
	Unverified      int       `json:"unverified"`
}

// MarkReconciledResult is the result of MarkAssignmentReconciled
type MarkReconciledResult struct {
	AssignmentID string `json:"assignmentId"`
	Status       string `json:"status"`
	Changed      bool   `json:"changed"`
}

// StallAlertInput is the input of RaiseStallAlert
type StallAlertInput struct {
	AssignmentID    string    `json:"assignmentId"`
	OpenSince       time.Time `json:"openSince"`
	RemainingToPick int       `json:"remainingToPick"`
	Unverified      int       `json:"unverified"`
	WorkflowID      string    `json:"workflowId"`
}

// Assignment statuses reported by CheckAssignmentProgress
const (
	StatusOpen       = "open"
	StatusReconciled = "reconciled"
	StatusClosed     = "closed"
)
