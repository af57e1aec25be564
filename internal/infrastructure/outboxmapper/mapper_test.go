package outboxmapper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/reconciliation-service/internal/domain"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	"github.com/wms-platform/reconciliation-service/pkg/kafka"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
)

func TestBuild(t *testing.T) {
	ctx := logging.ContextWithCorrelationID(context.Background(), "corr-9")
	factory := cloudevents.NewEventFactory(cloudevents.SourceReconciliation)
	now := time.Now().UTC()

	rows, err := Build(ctx, factory, []domain.DomainEvent{
		&domain.PickEvent{AssignmentID: "A-1", Size: "M", Quantity: 4, PickedAt: now},
		&domain.AssignmentClosedEvent{AssignmentID: "A-1", ClosedAt: now},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "A-1/M", rows[0].AggregateID)
	assert.Equal(t, AggregateSizeBucket, rows[0].AggregateType)
	assert.Equal(t, kafka.Topics.ReconciliationEvents, rows[0].Topic)
	assert.Equal(t, cloudevents.PickRecorded, rows[0].EventType)

	ce, err := rows[0].ToCloudEvent()
	require.NoError(t, err)
	assert.Equal(t, "assignment/A-1/size/M", ce.Subject)
	assert.Equal(t, "corr-9", ce.CorrelationID)

	assert.Equal(t, AggregateAssignment, rows[1].AggregateType)
	assert.Equal(t, cloudevents.AssignmentClosed, rows[1].EventType)
}
