package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wms-platform/reconciliation-service/internal/application"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	apperrors "github.com/wms-platform/reconciliation-service/pkg/errors"
	"github.com/wms-platform/reconciliation-service/pkg/kafka"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
)

// AssignmentService is the part of the reconciliation service driven by
// production planning events
type AssignmentService interface {
	OpenAssignment(ctx context.Context, cmd application.OpenAssignmentCommand) (*application.AssignmentDTO, error)
	CloseAssignment(ctx context.Context, cmd application.CloseAssignmentCommand) (*application.AssignmentDTO, error)
}

// AssignmentHandlers opens and closes assignments from production events
type AssignmentHandlers struct {
	service AssignmentService
	logger  *logging.Logger
}

// NewAssignmentHandlers creates the production event handlers
func NewAssignmentHandlers(service AssignmentService, logger *logging.Logger) *AssignmentHandlers {
	return &AssignmentHandlers{service: service, logger: logger}
}

// Register subscribes the handlers on the production assignments topic
func (h *AssignmentHandlers) Register(consumer *kafka.Consumer) {
	consumer.Subscribe(kafka.Topics.ProductionAssignments, cloudevents.BatchAssigned, h.HandleBatchAssigned)
	consumer.Subscribe(kafka.Topics.ProductionAssignments, cloudevents.OrderItemDispatched, h.HandleOrderItemDispatched)
}

// HandleBatchAssigned opens an assignment. Redelivery of an event whose
// assignment already exists is acknowledged.
func (h *AssignmentHandlers) HandleBatchAssigned(ctx context.Context, event *cloudevents.WMSCloudEvent, data json.RawMessage) error {
	var payload cloudevents.BatchAssignedData
	if err := json.Unmarshal(data, &payload); err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Dropping malformed batch-assigned event", "eventId", event.ID)
		return nil
	}

	_, err := h.service.OpenAssignment(ctx, application.OpenAssignmentCommand{
		AssignmentID: payload.AssignmentID,
		OrderID:      payload.OrderID,
		BatchID:      payload.BatchID,
		ProductID:    payload.ProductID,
		Sizes:        payload.Sizes,
	})
	return h.settle(ctx, event, payload.AssignmentID, err)
}

// HandleOrderItemDispatched closes an assignment
func (h *AssignmentHandlers) HandleOrderItemDispatched(ctx context.Context, event *cloudevents.WMSCloudEvent, data json.RawMessage) error {
	var payload cloudevents.OrderItemDispatchedData
	if err := json.Unmarshal(data, &payload); err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Dropping malformed order-item-dispatched event", "eventId", event.ID)
		return nil
	}

	_, err := h.service.CloseAssignment(ctx, application.CloseAssignmentCommand{
		AssignmentID: payload.AssignmentID,
		Reason:       "order item dispatched",
	})
	return h.settle(ctx, event, payload.AssignmentID, err)
}

// settle acknowledges events that can never succeed and returns the rest
// for the consumer to retry.
func (h *AssignmentHandlers) settle(ctx context.Context, event *cloudevents.WMSCloudEvent, assignmentID string, err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus < 500 {
		h.logger.WithContext(ctx).Info("Skipping production event",
			"eventType", event.Type,
			"eventId", event.ID,
			"assignmentId", assignmentID,
			"code", appErr.Code,
		)
		return nil
	}
	return fmt.Errorf("handle %s for assignment %s: %w", event.Type, assignmentID, err)
}
