// Package outboxmapper converts domain events into outbox rows. Every storage
// backend calls it inside the transaction that persists the aggregate.
package outboxmapper

import (
	"context"
	"fmt"

	"github.com/wms-platform/reconciliation-service/internal/domain"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	"github.com/wms-platform/reconciliation-service/pkg/kafka"
	"github.com/wms-platform/reconciliation-service/pkg/outbox"
)

// Aggregate types recorded on outbox rows
const (
	AggregateAssignment = "Assignment"
	AggregateSizeBucket = "SizeBucket"
)

// Build converts events to outbox rows for the reconciliation events topic.
// Unknown event types are skipped.
func Build(ctx context.Context, factory *cloudevents.EventFactory, events []domain.DomainEvent) ([]*outbox.OutboxEvent, error) {
	rows := make([]*outbox.OutboxEvent, 0, len(events))

	for _, event := range events {
		var (
			subject       string
			aggregateID   string
			aggregateType string
		)

		switch e := event.(type) {
		case *domain.PickEvent:
			subject = cloudevents.BucketSubject(e.AssignmentID, e.Size)
			aggregateID, aggregateType = e.AssignmentID+"/"+e.Size, AggregateSizeBucket
		case *domain.QCReviewEvent:
			subject = cloudevents.BucketSubject(e.AssignmentID, e.Size)
			aggregateID, aggregateType = e.AssignmentID+"/"+e.Size, AggregateSizeBucket
		case *domain.AssignmentOpenedEvent:
			subject = cloudevents.AssignmentSubject(e.AssignmentID)
			aggregateID, aggregateType = e.AssignmentID, AggregateAssignment
		case *domain.AssignmentClosedEvent:
			subject = cloudevents.AssignmentSubject(e.AssignmentID)
			aggregateID, aggregateType = e.AssignmentID, AggregateAssignment
		case *domain.AssignmentReconciledEvent:
			subject = cloudevents.AssignmentSubject(e.AssignmentID)
			aggregateID, aggregateType = e.AssignmentID, AggregateAssignment
		default:
			continue
		}

		ce := factory.CreateEvent(ctx, event.EventType(), subject, event)
		row, err := outbox.NewOutboxEventFromCloudEvent(aggregateID, aggregateType, kafka.Topics.ReconciliationEvents, ce)
		if err != nil {
			return nil, fmt.Errorf("failed to create outbox event: %w", err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}
