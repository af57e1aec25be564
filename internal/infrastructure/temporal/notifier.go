package temporal

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"

	"github.com/wms-platform/reconciliation-service/internal/workflows"
	pkgtemporal "github.com/wms-platform/reconciliation-service/pkg/temporal"
)

// WorkflowSignaler is the Temporal client surface the notifier needs
type WorkflowSignaler interface {
	SignalWithStart(
		ctx context.Context,
		workflowID string,
		signalName string,
		signalArg interface{},
		taskQueue string,
		workflowName string,
		args ...interface{},
	) (client.WorkflowRun, error)
}

// CompletionNotifier signals the assignment completion workflow, starting it
// if it is not running
type CompletionNotifier struct {
	signaler      WorkflowSignaler
	checkInterval time.Duration
	stallAfter    time.Duration
}

// NewCompletionNotifier creates a new CompletionNotifier
func NewCompletionNotifier(signaler WorkflowSignaler, checkInterval, stallAfter time.Duration) *CompletionNotifier {
	return &CompletionNotifier{
		signaler:      signaler,
		checkInterval: checkInterval,
		stallAfter:    stallAfter,
	}
}

// NotifyBucketUpdated sends bucket-updated to the assignment's workflow
func (n *CompletionNotifier) NotifyBucketUpdated(ctx context.Context, assignmentID string) error {
	_, err := n.signaler.SignalWithStart(ctx,
		workflows.WorkflowID(assignmentID),
		workflows.SignalBucketUpdated,
		workflows.BucketUpdatedSignal{AssignmentID: assignmentID},
		pkgtemporal.TaskQueues.Reconciliation,
		pkgtemporal.WorkflowNames.AssignmentReconciliation,
		workflows.AssignmentReconciliationInput{
			AssignmentID:  assignmentID,
			CheckInterval: n.checkInterval,
			StallAfter:    n.stallAfter,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to signal completion workflow for %s: %w", assignmentID, err)
	}
	return nil
}
