package workflows

import (
	"go.temporal.io/sdk/workflow"

	"github.com/wms-platform/reconciliation-service/pkg/temporal"
)

// Registry is satisfied by a Temporal worker
type Registry interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
}

// Register registers the completion workflow under the name the notifier starts
func Register(r Registry) {
	r.RegisterWorkflowWithOptions(AssignmentReconciliationWorkflow, workflow.RegisterOptions{
		Name: temporal.WorkflowNames.AssignmentReconciliation,
	})
}
