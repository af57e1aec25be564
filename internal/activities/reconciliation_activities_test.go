package activities

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/wms-platform/reconciliation-service/internal/application"
	"github.com/wms-platform/reconciliation-service/internal/domain"
	"github.com/wms-platform/reconciliation-service/internal/infrastructure/memory"
	"github.com/wms-platform/reconciliation-service/internal/workflows"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/metrics"
)

type mockAlertPublisher struct {
	mock.Mock
}

func (m *mockAlertPublisher) PublishInvariantViolation(ctx context.Context, mutation string, v *domain.InvariantViolationError) error {
	return m.Called(ctx, mutation, v).Error(0)
}

func (m *mockAlertPublisher) PublishAssignmentStalled(ctx context.Context, data cloudevents.AssignmentStalledData, workflowID string) error {
	return m.Called(ctx, data, workflowID).Error(0)
}

type fixture struct {
	service    *application.ReconciliationService
	alerts     *mockAlertPublisher
	metrics    *metrics.Metrics
	activities *ReconciliationActivities
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore(cloudevents.NewEventFactory(cloudevents.SourceReconciliation))
	m := metrics.New(metrics.DefaultConfig("svc"))
	logger := logging.NewNop()
	ledger := application.NewLedger(store, application.NopAlertPublisher{}, m, logger, 3)
	service := application.NewReconciliationService(store, ledger, application.NopCompletionNotifier{}, m, logger)

	_, err := service.OpenAssignment(context.Background(), application.OpenAssignmentCommand{
		AssignmentID: "A-1",
		OrderID:      "ORD-1",
		BatchID:      "BATCH-1",
		ProductID:    "PROD-1",
		Sizes:        map[string]int{"M": 2},
	})
	require.NoError(t, err)

	alerts := new(mockAlertPublisher)
	return &fixture{
		service:    service,
		alerts:     alerts,
		metrics:    m,
		activities: NewReconciliationActivities(service, alerts, m, logger),
	}
}

func (f *fixture) approveAll(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := f.service.SubmitPick(ctx, application.SubmitPickCommand{AssignmentID: "A-1", Size: "M", Quantity: 2})
	require.NoError(t, err)
	_, err = f.service.SubmitQCVerdict(ctx, application.SubmitQCVerdictCommand{AssignmentID: "A-1", Size: "M", Approved: 2})
	require.NoError(t, err)
}

func TestCheckAssignmentProgress(t *testing.T) {
	f := newFixture(t)
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	env.RegisterActivity(f.activities.CheckAssignmentProgress)

	val, err := env.ExecuteActivity(f.activities.CheckAssignmentProgress, "A-1")
	require.NoError(t, err)

	var progress workflows.AssignmentProgress
	require.NoError(t, val.Get(&progress))
	assert.Equal(t, workflows.StatusOpen, progress.Status)
	assert.False(t, progress.AllReconciled)
	assert.Equal(t, 2, progress.RemainingToPick)

	f.approveAll(t)

	val, err = env.ExecuteActivity(f.activities.CheckAssignmentProgress, "A-1")
	require.NoError(t, err)
	require.NoError(t, val.Get(&progress))
	assert.True(t, progress.AllReconciled)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.ActivitiesCompleted.WithLabelValues("svc", workflows.CheckAssignmentProgressActivity, "success")))
}

func TestCheckAssignmentProgress_UnknownAssignmentIsNotRetryable(t *testing.T) {
	f := newFixture(t)
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	env.RegisterActivity(f.activities.CheckAssignmentProgress)

	_, err := env.ExecuteActivity(f.activities.CheckAssignmentProgress, "A-404")
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.True(t, appErr.NonRetryable())
	assert.Equal(t, "NotFoundError", appErr.Type())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ActivitiesCompleted.WithLabelValues("svc", workflows.CheckAssignmentProgressActivity, "error")))
}

func TestMarkAssignmentReconciled(t *testing.T) {
	f := newFixture(t)
	f.approveAll(t)

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	env.RegisterActivity(f.activities.MarkAssignmentReconciled)

	val, err := env.ExecuteActivity(f.activities.MarkAssignmentReconciled, "A-1")
	require.NoError(t, err)

	var result workflows.MarkReconciledResult
	require.NoError(t, val.Get(&result))
	assert.True(t, result.Changed)
	assert.Equal(t, workflows.StatusReconciled, result.Status)

	val, err = env.ExecuteActivity(f.activities.MarkAssignmentReconciled, "A-1")
	require.NoError(t, err)
	require.NoError(t, val.Get(&result))
	assert.False(t, result.Changed)
}

func TestRaiseStallAlert(t *testing.T) {
	f := newFixture(t)
	openedAt := time.Now().Add(-30 * time.Hour).UTC()
	f.alerts.On("PublishAssignmentStalled", mock.Anything, mock.MatchedBy(func(d cloudevents.AssignmentStalledData) bool {
		return d.AssignmentID == "A-1" && d.RemainingToPick == 2
	}), "assignment-reconciliation-A-1").Return(nil).Once()

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	env.RegisterActivity(f.activities.RaiseStallAlert)

	_, err := env.ExecuteActivity(f.activities.RaiseStallAlert, workflows.StallAlertInput{
		AssignmentID:    "A-1",
		OpenSince:       openedAt,
		RemainingToPick: 2,
		WorkflowID:      workflows.WorkflowID("A-1"),
	})
	require.NoError(t, err)
	f.alerts.AssertExpectations(t)
}

func TestRaiseStallAlert_PublisherFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.alerts.On("PublishAssignmentStalled", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	env.RegisterActivity(f.activities.RaiseStallAlert)

	_, err := env.ExecuteActivity(f.activities.RaiseStallAlert, workflows.StallAlertInput{AssignmentID: "A-1"})
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		assert.False(t, appErr.NonRetryable())
	}
}

type recordingRegistry struct {
	names []string
}

func (r *recordingRegistry) RegisterActivityWithOptions(_ interface{}, options activity.RegisterOptions) {
	r.names = append(r.names, options.Name)
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	r := &recordingRegistry{}

	f.activities.Register(r)

	assert.ElementsMatch(t, []string{
		workflows.CheckAssignmentProgressActivity,
		workflows.MarkAssignmentReconciledActivity,
		workflows.RaiseStallAlertActivity,
	}, r.names)
}
