package application

import (
	"context"

	"github.com/wms-platform/reconciliation-service/internal/domain"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
)

// AlertPublisher sends operator alerts. Failures are logged by callers and
// never change the outcome of the operation that raised the alert.
type AlertPublisher interface {
	PublishInvariantViolation(ctx context.Context, mutation string, violation *domain.InvariantViolationError) error
	PublishAssignmentStalled(ctx context.Context, data cloudevents.AssignmentStalledData, workflowID string) error
}

// CompletionNotifier tells the completion workflow that a bucket changed
type CompletionNotifier interface {
	NotifyBucketUpdated(ctx context.Context, assignmentID string) error
}

// NopAlertPublisher discards alerts
type NopAlertPublisher struct{}

func (NopAlertPublisher) PublishInvariantViolation(context.Context, string, *domain.InvariantViolationError) error {
	return nil
}

func (NopAlertPublisher) PublishAssignmentStalled(context.Context, cloudevents.AssignmentStalledData, string) error {
	return nil
}

// NopCompletionNotifier is used when Temporal is disabled
type NopCompletionNotifier struct{}

func (NopCompletionNotifier) NotifyBucketUpdated(context.Context, string) error { return nil }
