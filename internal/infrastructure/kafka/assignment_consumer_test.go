package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/reconciliation-service/internal/application"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	apperrors "github.com/wms-platform/reconciliation-service/pkg/errors"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
)

type mockAssignmentService struct {
	mock.Mock
}

func (m *mockAssignmentService) OpenAssignment(ctx context.Context, cmd application.OpenAssignmentCommand) (*application.AssignmentDTO, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.AssignmentDTO), args.Error(1)
}

func (m *mockAssignmentService) CloseAssignment(ctx context.Context, cmd application.CloseAssignmentCommand) (*application.AssignmentDTO, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.AssignmentDTO), args.Error(1)
}

func productionEvent(t *testing.T, eventType string, data any) (*cloudevents.WMSCloudEvent, json.RawMessage) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	event := cloudevents.NewEventFactory(cloudevents.SourceProduction).CreateEvent(context.Background(), eventType, "assignment/A-1", data)
	return event, raw
}

func TestHandleBatchAssigned_OpensAssignment(t *testing.T) {
	service := new(mockAssignmentService)
	service.On("OpenAssignment", mock.Anything, application.OpenAssignmentCommand{
		AssignmentID: "A-1",
		OrderID:      "ORD-1",
		BatchID:      "B-1",
		ProductID:    "P-1",
		Sizes:        map[string]int{"M": 20},
	}).Return(&application.AssignmentDTO{AssignmentID: "A-1"}, nil).Once()

	handlers := NewAssignmentHandlers(service, logging.NewNop())
	event, data := productionEvent(t, cloudevents.BatchAssigned, cloudevents.BatchAssignedData{
		AssignmentID: "A-1", OrderID: "ORD-1", BatchID: "B-1", ProductID: "P-1", Sizes: map[string]int{"M": 20},
	})

	require.NoError(t, handlers.HandleBatchAssigned(context.Background(), event, data))
	service.AssertExpectations(t)
}

func TestHandleOrderItemDispatched_ClosesAssignment(t *testing.T) {
	service := new(mockAssignmentService)
	service.On("CloseAssignment", mock.Anything, mock.MatchedBy(func(cmd application.CloseAssignmentCommand) bool {
		return cmd.AssignmentID == "A-1"
	})).Return(&application.AssignmentDTO{AssignmentID: "A-1", Status: "closed"}, nil).Once()

	handlers := NewAssignmentHandlers(service, logging.NewNop())
	event, data := productionEvent(t, cloudevents.OrderItemDispatched, cloudevents.OrderItemDispatchedData{AssignmentID: "A-1"})

	require.NoError(t, handlers.HandleOrderItemDispatched(context.Background(), event, data))
	service.AssertExpectations(t)
}

func TestHandlers_Settle(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"redelivered open", apperrors.ErrConflict("assignment already exists"), false},
		{"unknown assignment", apperrors.ErrNotFound("assignment"), false},
		{"invalid payload", apperrors.ErrValidation("invalid assignment"), false},
		{"storage down", apperrors.ErrInternal("").Wrap(errors.New("connection refused")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(mockAssignmentService)
			service.On("OpenAssignment", mock.Anything, mock.Anything).Return(nil, tt.err)

			handlers := NewAssignmentHandlers(service, logging.NewNop())
			event, data := productionEvent(t, cloudevents.BatchAssigned, cloudevents.BatchAssignedData{AssignmentID: "A-1"})

			err := handlers.HandleBatchAssigned(context.Background(), event, data)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHandleBatchAssigned_MalformedPayloadIsAcknowledged(t *testing.T) {
	service := new(mockAssignmentService)
	handlers := NewAssignmentHandlers(service, logging.NewNop())
	event, _ := productionEvent(t, cloudevents.BatchAssigned, nil)

	require.NoError(t, handlers.HandleBatchAssigned(context.Background(), event, json.RawMessage(`{"sizes":"M"}`)))
	service.AssertNotCalled(t, "OpenAssignment", mock.Anything, mock.Anything)
}
