package cloudevents

import (
	"time"
)

// Event types emitted by the reconciliation ledger
const (
	AssignmentOpened     = "wms.reconciliation.assignment-opened"
	AssignmentClosed     = "wms.reconciliation.assignment-closed"
	AssignmentReconciled = "wms.reconciliation.assignment-reconciled"
	PickRecorded         = "wms.reconciliation.pick-recorded"
	QCReviewRecorded     = "wms.reconciliation.qc-review-recorded"

	// Operator alerts
	InvariantViolated = "wms.reconciliation.invariant-violated"
	AssignmentStalled = "wms.reconciliation.assignment-stalled"
)

// Event types consumed from production planning
const (
	BatchAssigned       = "wms.production.batch-assigned"
	OrderItemDispatched = "wms.production.order-item-dispatched"
)

// Source constants for event sources
const (
	SourceReconciliation = "/wms/reconciliation-service"
	SourceProduction     = "/wms/production-service"
)

// WMSCloudEvent represents a CloudEvents v1.0 compliant event for WMS
type WMSCloudEvent struct {
	SpecVersion     string                 `json:"specversion"`
	Type            string                 `json:"type"`
	Source          string                 `json:"source"`
	Subject         string                 `json:"subject,omitempty"`
	ID              string                 `json:"id"`
	Time            time.Time              `json:"time"`
	DataContentType string                 `json:"datacontenttype"`
	Data            interface{}            `json:"data"`
	Extensions      map[string]interface{} `json:"-"`

	// WMS-specific extensions
	CorrelationID string `json:"wmscorrelationid,omitempty"`
	WorkflowID    string `json:"wmsworkflowid,omitempty"`
}

// BatchAssignedData is the payload of wms.production.batch-assigned
type BatchAssignedData struct {
	AssignmentID string         `json:"assignmentId"`
	OrderID      string         `json:"orderId"`
	BatchID      string         `json:"batchId"`
	ProductID    string         `json:"productId"`
	Sizes        map[string]int `json:"sizes"`
}

// OrderItemDispatchedData is the payload of wms.production.order-item-dispatched
type OrderItemDispatchedData struct {
	AssignmentID string `json:"assignmentId"`
	OrderID      string `json:"orderId,omitempty"`
}

// InvariantViolatedData is the operator alert for a rolled-back mutation
type InvariantViolatedData struct {
	AssignmentID string         `json:"assignmentId"`
	Size         string         `json:"size"`
	Mutation     string         `json:"mutation"`
	Invariant    string         `json:"invariant"`
	Before       map[string]int `json:"before"`
	After        map[string]int `json:"after"`
}

// AssignmentStalledData is the operator alert for an assignment that has not
// reconciled within its deadline
type AssignmentStalledData struct {
	AssignmentID    string    `json:"assignmentId"`
	OpenSince       time.Time `json:"openSince"`
	RemainingToPick int       `json:"remainingToPick"`
	Unverified      int       `json:"unverified"`
}
