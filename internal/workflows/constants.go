package workflows

import "time"

// SignalBucketUpdated is sent after every committed pick or QC verdict
const SignalBucketUpdated = "bucket-updated"

// Activity names registered by the worker
const (
	CheckAssignmentProgressActivity  = "CheckAssignmentProgress"
	MarkAssignmentReconciledActivity = "MarkAssignmentReconciled"
	RaiseStallAlertActivity          = "RaiseStallAlert"
)

// Completion workflow defaults
const (
	DefaultCheckInterval time.Duration = 15 * time.Minute
	DefaultStallAfter    time.Duration = 24 * time.Hour

	// MaxChecksPerRun bounds the history of one run before continuing as new
	MaxChecksPerRun = 100

	DefaultActivityTimeout time.Duration = 30 * time.Second
)

// Activity retry defaults
const (
	DefaultRetryInitialInterval    time.Duration = time.Second
	DefaultRetryMaxInterval        time.Duration = time.Minute
	DefaultRetryBackoffCoefficient float64       = 2.0
	DefaultMaxRetryAttempts        int32         = 5
)

// AssignmentReconciliationWorkflowVersion tracks the completion workflow logic
const AssignmentReconciliationWorkflowVersion = 1

const workflowIDPrefix = "assignment-reconciliation-"

// WorkflowID returns the completion workflow ID of an assignment. There is at
// most one running per assignment.
func WorkflowID(assignmentID string) string {
	return workflowIDPrefix + assignmentID
}
