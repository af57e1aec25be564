package cloudevents

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/reconciliation-service/pkg/logging"
)

func TestCreateEvent_CarriesCorrelationID(t *testing.T) {
	f := NewEventFactory(SourceReconciliation)
	ctx := logging.ContextWithCorrelationID(context.Background(), "corr-42")

	event := f.CreateEvent(ctx, PickRecorded, BucketSubject("A-1", "M"), map[string]int{"quantity": 3})

	assert.Equal(t, "1.0", event.SpecVersion)
	assert.Equal(t, SourceReconciliation, event.Source)
	assert.Equal(t, "assignment/A-1/size/M", event.Subject)
	assert.Equal(t, "corr-42", event.CorrelationID)
	assert.NotEmpty(t, event.ID)
}

func TestCreateInvariantViolatedEvent(t *testing.T) {
	f := NewEventFactory(SourceReconciliation)

	event := f.CreateInvariantViolatedEvent(context.Background(), InvariantViolatedData{
		AssignmentID: "A-1",
		Size:         "XL",
		Mutation:     "pick",
		Invariant:    "picked_within_assigned",
		Before:       map[string]int{"picked": 20},
		After:        map[string]int{"picked": 21},
	})

	require.Equal(t, InvariantViolated, event.Type)
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"invariant":"picked_within_assigned"`)
	assert.NotContains(t, string(raw), "wmscorrelationid")
}
