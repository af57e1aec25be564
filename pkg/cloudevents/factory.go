package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wms-platform/reconciliation-service/pkg/logging"
)

// EventFactory creates CloudEvents for a single source
type EventFactory struct {
	source string
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source}
}

// CreateEvent creates a new WMSCloudEvent. The correlation ID carried by ctx,
// if any, is copied onto the event.
func (f *EventFactory) CreateEvent(
	ctx context.Context,
	eventType string,
	subject string,
	data interface{},
) *WMSCloudEvent {
	return &WMSCloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
		Extensions:      make(map[string]interface{}),
		CorrelationID:   logging.CorrelationIDFromContext(ctx),
	}
}

// CreateInvariantViolatedEvent creates the operator alert for a rolled-back mutation
func (f *EventFactory) CreateInvariantViolatedEvent(ctx context.Context, data InvariantViolatedData) *WMSCloudEvent {
	return f.CreateEvent(ctx, InvariantViolated, BucketSubject(data.AssignmentID, data.Size), data)
}

// CreateAssignmentStalledEvent creates the operator alert for a stalled assignment
func (f *EventFactory) CreateAssignmentStalledEvent(ctx context.Context, data AssignmentStalledData, workflowID string) *WMSCloudEvent {
	event := f.CreateEvent(ctx, AssignmentStalled, AssignmentSubject(data.AssignmentID), data)
	event.WorkflowID = workflowID
	return event
}

// AssignmentSubject builds the CloudEvents subject for an assignment
func AssignmentSubject(assignmentID string) string {
	return "assignment/" + assignmentID
}

// BucketSubject builds the CloudEvents subject for one size bucket
func BucketSubject(assignmentID, size string) string {
	return "assignment/" + assignmentID + "/size/" + size
}
