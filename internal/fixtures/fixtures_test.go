package fixtures

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/reconciliation-service/internal/application"
	"github.com/wms-platform/reconciliation-service/internal/infrastructure/memory"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/metrics"
)

func newService() *application.ReconciliationService {
	store := memory.NewStore(cloudevents.NewEventFactory(cloudevents.SourceReconciliation))
	m := metrics.New(metrics.DefaultConfig("seed"))
	logger := logging.NewNop()
	ledger := application.NewLedger(store, application.NopAlertPublisher{}, m, logger, 3)
	return application.NewReconciliationService(store, ledger, application.NopCompletionNotifier{}, m, logger)
}

func TestLoad(t *testing.T) {
	f, err := Load("testdata/assignments.yaml")
	require.NoError(t, err)
	require.Len(t, f.Assignments, 2)

	a := f.Assignments[0]
	assert.Equal(t, "A-100", a.AssignmentID)
	assert.Equal(t, map[string]int{"S": 10, "M": 20}, a.Sizes)
	require.Len(t, a.Steps, 3)
	require.NotNil(t, a.Steps[1].QC)
	assert.Equal(t, "loose stitching", a.Steps[1].QC.Remarks)
	assert.True(t, f.Assignments[1].Close)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing id", "assignments:\n  - sizes: {M: 1}\n"},
		{"duplicate id", "assignments:\n  - assignmentId: A\n  - assignmentId: A\n"},
		{"empty step", "assignments:\n  - assignmentId: A\n    steps:\n      - {}\n"},
		{"both kinds", "assignments:\n  - assignmentId: A\n    steps:\n      - pick: {size: M, quantity: 1}\n        qc: {size: M, approved: 1}\n"},
		{"unknown key", "assignments:\n  - assignmentId: A\n    colour: red\n"},
		{"not yaml", "assignments: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	f, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, f.Assignments)
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	service := newService()
	f, err := Load("testdata/assignments.yaml")
	require.NoError(t, err)

	report, err := Apply(ctx, service, f)
	require.NoError(t, err)
	assert.Equal(t, Report{Opened: 2, Steps: 3}, report)

	b, err := service.GetBucket(ctx, application.GetBucketQuery{AssignmentID: "A-100", Size: "M"})
	require.NoError(t, err)
	assert.Equal(t, 20, b.Picked)
	assert.Equal(t, 18, b.ApprovedCumulative)
	assert.Equal(t, 2, b.ReplacedCumulative)
	assert.Equal(t, 2, b.Unverified)

	closed, err := service.GetAssignment(ctx, application.GetAssignmentQuery{AssignmentID: "A-101"})
	require.NoError(t, err)
	assert.Equal(t, "closed", closed.Status)

	again, err := Apply(ctx, service, f)
	require.NoError(t, err)
	assert.Equal(t, Report{Skipped: 2}, again)
}

func TestApply_StopsOnRejectedStep(t *testing.T) {
	f, err := Parse([]byte("assignments:\n  - assignmentId: A\n    sizes: {M: 1}\n    steps:\n      - pick: {size: M, quantity: 2}\n"))
	require.NoError(t, err)

	report, err := Apply(context.Background(), newService(), f)
	require.Error(t, err)
	assert.Equal(t, 1, report.Opened)
	assert.Equal(t, 0, report.Steps)
}
