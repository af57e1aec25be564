package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// AssignmentReconciliationWorkflow watches one assignment until every bucket
// is fully approved, then marks it reconciled. It wakes on bucket-updated
// signals or after CheckInterval, raises a single stall alert once the
// assignment has been open for StallAfter, and stops if the assignment is
// closed.
func AssignmentReconciliationWorkflow(ctx workflow.Context, input AssignmentReconciliationInput) (*AssignmentReconciliationResult, error) {
	logger := workflow.GetLogger(ctx)

	version := workflow.GetVersion(ctx, "AssignmentReconciliationWorkflow", workflow.DefaultVersion, AssignmentReconciliationWorkflowVersion)
	logger.Info("Starting assignment reconciliation workflow",
		"assignmentId", input.AssignmentID,
		"version", version,
		"continuationCount", input.ContinuationCount,
	)

	if input.CheckInterval <= 0 {
		input.CheckInterval = DefaultCheckInterval
	}
	if input.StallAfter <= 0 {
		input.StallAfter = DefaultStallAfter
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: DefaultActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        DefaultRetryInitialInterval,
			BackoffCoefficient:     DefaultRetryBackoffCoefficient,
			MaximumInterval:        DefaultRetryMaxInterval,
			MaximumAttempts:        DefaultMaxRetryAttempts,
			NonRetryableErrorTypes: []string{"NotFoundError", "ValidationError"},
		},
	})

	result := &AssignmentReconciliationResult{
		AssignmentID: input.AssignmentID,
		StallAlerted: input.StallAlerted,
	}
	updates := workflow.GetSignalChannel(ctx, SignalBucketUpdated)

	for {
		var progress AssignmentProgress
		if err := workflow.ExecuteActivity(ctx, CheckAssignmentProgressActivity, input.AssignmentID).Get(ctx, &progress); err != nil {
			return nil, fmt.Errorf("failed to check assignment progress: %w", err)
		}
		result.Checks++

		switch {
		case progress.Status == StatusClosed, progress.Status == StatusReconciled:
			logger.Info("Assignment no longer open", "assignmentId", input.AssignmentID, "status", progress.Status)
			return finish(ctx, result, progress.Status), nil

		case progress.AllReconciled:
			var marked MarkReconciledResult
			if err := workflow.ExecuteActivity(ctx, MarkAssignmentReconciledActivity, input.AssignmentID).Get(ctx, &marked); err != nil {
				return nil, fmt.Errorf("failed to mark assignment reconciled: %w", err)
			}
			logger.Info("Assignment reconciled", "assignmentId", input.AssignmentID, "checks", result.Checks)
			return finish(ctx, result, StatusReconciled), nil
		}

		if !result.StallAlerted && workflow.Now(ctx).Sub(progress.OpenedAt) >= input.StallAfter {
			err := workflow.ExecuteActivity(ctx, RaiseStallAlertActivity, StallAlertInput{
				AssignmentID:    input.AssignmentID,
				OpenSince:       progress.OpenedAt,
				RemainingToPick: progress.RemainingToPick,
				Unverified:      progress.Unverified,
				WorkflowID:      workflow.GetInfo(ctx).WorkflowExecution.ID,
			}).Get(ctx, nil)
			if err != nil {
				logger.Warn("Failed to raise stall alert", "assignmentId", input.AssignmentID, "error", err)
			} else {
				result.StallAlerted = true
			}
		}

		if result.Checks >= MaxChecksPerRun {
			drain(updates)
			logger.Info("Check limit reached, continuing as new", "assignmentId", input.AssignmentID)
			next := input
			next.StallAlerted = result.StallAlerted
			next.ContinuationCount++
			return nil, workflow.NewContinueAsNewError(ctx, AssignmentReconciliationWorkflow, next)
		}

		waitForUpdate(ctx, updates, input.CheckInterval)
	}
}

// waitForUpdate blocks until a bucket-updated signal arrives or interval
// elapses. Signals already queued are folded into the same wake-up.
func waitForUpdate(ctx workflow.Context, updates workflow.ReceiveChannel, interval time.Duration) {
	timerCtx, cancelTimer := workflow.WithCancel(ctx)
	defer cancelTimer()

	selector := workflow.NewSelector(ctx)
	selector.AddReceive(updates, func(c workflow.ReceiveChannel, more bool) {
		var signal BucketUpdatedSignal
		c.Receive(ctx, &signal)
		drain(c)
	})
	selector.AddFuture(workflow.NewTimer(timerCtx, interval), func(workflow.Future) {})
	selector.Select(ctx)
}

func drain(c workflow.ReceiveChannel) {
	var signal BucketUpdatedSignal
	for c.ReceiveAsync(&signal) {
	}
}

func finish(ctx workflow.Context, result *AssignmentReconciliationResult, status string) *AssignmentReconciliationResult {
	result.Status = status
	result.CompletedAt = workflow.Now(ctx)
	return result
}
