package activities

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/wms-platform/reconciliation-service/internal/workflows"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
)

// CheckAssignmentProgress reports whether every bucket of an assignment is
// fully approved
func (a *ReconciliationActivities) CheckAssignmentProgress(ctx context.Context, assignmentID string) (result *workflows.AssignmentProgress, err error) {
	start := time.Now()
	defer func() { a.record(workflows.CheckAssignmentProgressActivity, start, err) }()

	logger := activity.GetLogger(ctx)
	logger.Info("Checking assignment progress", "assignmentId", assignmentID)

	progress, err := a.service.CheckProgress(ctx, assignmentID)
	if err != nil {
		logger.Error("Failed to check assignment progress", "assignmentId", assignmentID, "error", err)
		return nil, toActivityError(err)
	}

	return &workflows.AssignmentProgress{
		AssignmentID:    progress.AssignmentID,
		Status:          progress.Status,
		OpenedAt:        progress.OpenedAt,
		AllReconciled:   progress.AllReconciled,
		RemainingToPick: progress.RemainingToPick,
		Unverified:      progress.Unverified,
	}, nil
}

// MarkAssignmentReconciled moves a fully approved assignment to reconciled.
// Running it again after success is a no-op.
func (a *ReconciliationActivities) MarkAssignmentReconciled(ctx context.Context, assignmentID string) (result *workflows.MarkReconciledResult, err error) {
	start := time.Now()
	defer func() { a.record(workflows.MarkAssignmentReconciledActivity, start, err) }()

	logger := activity.GetLogger(ctx)
	logger.Info("Marking assignment reconciled", "assignmentId", assignmentID)

	dto, changed, err := a.service.MarkReconciled(ctx, assignmentID)
	if err != nil {
		logger.Error("Failed to mark assignment reconciled", "assignmentId", assignmentID, "error", err)
		return nil, toActivityError(err)
	}

	logger.Info("Assignment reconciled", "assignmentId", assignmentID, "changed", changed)
	return &workflows.MarkReconciledResult{
		AssignmentID: dto.AssignmentID,
		Status:       dto.Status,
		Changed:      changed,
	}, nil
}

// RaiseStallAlert publishes an operator alert for an assignment that has not
// reconciled in time
func (a *ReconciliationActivities) RaiseStallAlert(ctx context.Context, input workflows.StallAlertInput) (err error) {
	start := time.Now()
	defer func() { a.record(workflows.RaiseStallAlertActivity, start, err) }()

	logger := activity.GetLogger(ctx)
	logger.Warn("Assignment stalled",
		"assignmentId", input.AssignmentID,
		"openSince", input.OpenSince,
		"remainingToPick", input.RemainingToPick,
		"unverified", input.Unverified,
	)

	err = a.alerts.PublishAssignmentStalled(ctx, cloudevents.AssignmentStalledData{
		AssignmentID:    input.AssignmentID,
		OpenSince:       input.OpenSince,
		RemainingToPick: input.RemainingToPick,
		Unverified:      input.Unverified,
	}, input.WorkflowID)
	if err != nil {
		return fmt.Errorf("failed to raise stall alert: %w", err)
	}
	return nil
}
