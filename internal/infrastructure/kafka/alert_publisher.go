package kafka

import (
	"context"
	"fmt"

	"github.com/wms-platform/reconciliation-service/internal/domain"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	"github.com/wms-platform/reconciliation-service/pkg/kafka"
)

// AlertPublisher sends operator alerts to the alerts topic
type AlertPublisher struct {
	producer     kafka.EventPublisher
	eventFactory *cloudevents.EventFactory
	topic        string
}

// NewAlertPublisher creates a new Kafka-based alert publisher
func NewAlertPublisher(
	producer kafka.EventPublisher,
	eventFactory *cloudevents.EventFactory,
	topic string,
) *AlertPublisher {
	return &AlertPublisher{
		producer:     producer,
		eventFactory: eventFactory,
		topic:        topic,
	}
}

// PublishInvariantViolation publishes the counters on both sides of a
// rolled-back mutation
func (p *AlertPublisher) PublishInvariantViolation(ctx context.Context, mutation string, v *domain.InvariantViolationError) error {
	ce := p.eventFactory.CreateInvariantViolatedEvent(ctx, cloudevents.InvariantViolatedData{
		AssignmentID: v.After.AssignmentID,
		Size:         v.After.Size,
		Mutation:     mutation,
		Invariant:    v.Invariant,
		Before:       v.Before.Counters(),
		After:        v.After.Counters(),
	})

	if err := p.producer.PublishEvent(ctx, p.topic, ce); err != nil {
		return fmt.Errorf("failed to publish invariant alert: %w", err)
	}
	return nil
}

// PublishAssignmentStalled publishes a stall alert raised by the completion workflow
func (p *AlertPublisher) PublishAssignmentStalled(ctx context.Context, data cloudevents.AssignmentStalledData, workflowID string) error {
	ce := p.eventFactory.CreateAssignmentStalledEvent(ctx, data, workflowID)

	if err := p.producer.PublishEvent(ctx, p.topic, ce); err != nil {
		return fmt.Errorf("failed to publish stall alert: %w", err)
	}
	return nil
}

// GetTopic returns the topic this publisher publishes to
func (p *AlertPublisher) GetTopic() string {
	return p.topic
}
