package activities

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/wms-platform/reconciliation-service/internal/application"
	"github.com/wms-platform/reconciliation-service/internal/workflows"
	apperrors "github.com/wms-platform/reconciliation-service/pkg/errors"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/metrics"
)

// ProgressService is the part of the reconciliation service the completion
// workflow drives
type ProgressService interface {
	CheckProgress(ctx context.Context, assignmentID string) (*application.ProgressDTO, error)
	MarkReconciled(ctx context.Context, assignmentID string) (*application.AssignmentDTO, bool, error)
}

// ReconciliationActivities contains the completion workflow activities
type ReconciliationActivities struct {
	service ProgressService
	alerts  application.AlertPublisher
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewReconciliationActivities creates a new ReconciliationActivities instance
func NewReconciliationActivities(
	service ProgressService,
	alerts application.AlertPublisher,
	m *metrics.Metrics,
	logger *logging.Logger,
) *ReconciliationActivities {
	return &ReconciliationActivities{
		service: service,
		alerts:  alerts,
		metrics: m,
		logger:  logger,
	}
}

// Registry is satisfied by a Temporal worker
type Registry interface {
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// Register registers every activity under the name the workflow schedules
func (a *ReconciliationActivities) Register(r Registry) {
	r.RegisterActivityWithOptions(a.CheckAssignmentProgress, activity.RegisterOptions{Name: workflows.CheckAssignmentProgressActivity})
	r.RegisterActivityWithOptions(a.MarkAssignmentReconciled, activity.RegisterOptions{Name: workflows.MarkAssignmentReconciledActivity})
	r.RegisterActivityWithOptions(a.RaiseStallAlert, activity.RegisterOptions{Name: workflows.RaiseStallAlertActivity})
}

func (a *ReconciliationActivities) record(activityType string, start time.Time, err error) {
	if a.metrics != nil {
		a.metrics.RecordActivityCompleted(activityType, err == nil, time.Since(start))
	}
}

// toActivityError marks request errors non-retryable. Anything else is left
// to the workflow retry policy.
func toActivityError(err error) error {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.HTTPStatus >= 500 {
		return err
	}

	errType := "ValidationError"
	if appErr.Code == apperrors.CodeNotFound {
		errType = "NotFoundError"
	}
	return temporal.NewNonRetryableApplicationError(appErr.Message, errType, err)
}
