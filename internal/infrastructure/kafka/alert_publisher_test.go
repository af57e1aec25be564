package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/reconciliation-service/internal/domain"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	"github.com/wms-platform/reconciliation-service/pkg/kafka"
)

type recordingProducer struct {
	topic  string
	events []*cloudevents.WMSCloudEvent
	err    error
}

func (p *recordingProducer) PublishEvent(_ context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
	if p.err != nil {
		return p.err
	}
	p.topic = topic
	p.events = append(p.events, event)
	return nil
}

func TestAlertPublisher_InvariantViolation(t *testing.T) {
	producer := &recordingProducer{}
	publisher := NewAlertPublisher(producer, cloudevents.NewEventFactory(cloudevents.SourceReconciliation), kafka.Topics.ReconciliationAlerts)

	before := domain.SizeBucket{AssignmentID: "A-1", Size: "M", Assigned: 10, Picked: 10}
	after := before
	after.ApprovedCumulative = 11

	err := publisher.PublishInvariantViolation(context.Background(), "qc_review", &domain.InvariantViolationError{
		Invariant: domain.InvariantApprovedWithinPicked,
		Before:    before,
		After:     after,
	})
	require.NoError(t, err)
	require.Len(t, producer.events, 1)
	assert.Equal(t, kafka.Topics.ReconciliationAlerts, producer.topic)

	event := producer.events[0]
	assert.Equal(t, cloudevents.InvariantViolated, event.Type)
	assert.Equal(t, "assignment/A-1/size/M", event.Subject)

	data, ok := event.Data.(cloudevents.InvariantViolatedData)
	require.True(t, ok)
	assert.Equal(t, "qc_review", data.Mutation)
	assert.Equal(t, domain.InvariantApprovedWithinPicked, data.Invariant)
	assert.Equal(t, 0, data.Before["approvedCumulative"])
	assert.Equal(t, 11, data.After["approvedCumulative"])
}

func TestAlertPublisher_AssignmentStalled(t *testing.T) {
	producer := &recordingProducer{}
	publisher := NewAlertPublisher(producer, cloudevents.NewEventFactory(cloudevents.SourceReconciliation), kafka.Topics.ReconciliationAlerts)

	err := publisher.PublishAssignmentStalled(context.Background(), cloudevents.AssignmentStalledData{
		AssignmentID:    "A-1",
		OpenSince:       time.Now().Add(-48 * time.Hour),
		RemainingToPick: 4,
	}, "assignment-reconciliation-A-1")
	require.NoError(t, err)
	require.Len(t, producer.events, 1)
	assert.Equal(t, cloudevents.AssignmentStalled, producer.events[0].Type)
	assert.Equal(t, "assignment-reconciliation-A-1", producer.events[0].WorkflowID)
}

func TestAlertPublisher_WrapsProducerError(t *testing.T) {
	cause := errors.New("broker down")
	publisher := NewAlertPublisher(&recordingProducer{err: cause}, cloudevents.NewEventFactory(cloudevents.SourceReconciliation), "alerts")

	err := publisher.PublishAssignmentStalled(context.Background(), cloudevents.AssignmentStalledData{AssignmentID: "A-1"}, "wf")
	assert.ErrorIs(t, err, cause)
}
