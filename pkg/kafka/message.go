package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
)

// CloudEvents binary-mode headers
const (
	headerSpecVersion   = "ce-specversion"
	headerType          = "ce-type"
	headerSource        = "ce-source"
	headerID            = "ce-id"
	headerTime          = "ce-time"
	headerCorrelationID = "ce-wmscorrelationid"
	headerWorkflowID    = "ce-wmsworkflowid"
	headerContentType   = "content-type"
)

// toMessage encodes an event as a Kafka message keyed by subject so every
// event for one bucket lands on the same partition.
func toMessage(event *cloudevents.WMSCloudEvent) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event %s: %w", event.ID, err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Subject),
		Value: data,
		Headers: []kafka.Header{
			{Key: headerSpecVersion, Value: []byte(event.SpecVersion)},
			{Key: headerType, Value: []byte(event.Type)},
			{Key: headerSource, Value: []byte(event.Source)},
			{Key: headerID, Value: []byte(event.ID)},
			{Key: headerTime, Value: []byte(event.Time.Format(time.RFC3339))},
			{Key: headerContentType, Value: []byte(event.DataContentType)},
		},
		Time: event.Time,
	}

	if event.CorrelationID != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: headerCorrelationID, Value: []byte(event.CorrelationID)})
	}
	if event.WorkflowID != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: headerWorkflowID, Value: []byte(event.WorkflowID)})
	}

	return msg, nil
}

// parseMessage decodes a structured-mode CloudEvent, letting extension
// headers fill fields the body omitted. Data is left as raw JSON.
func parseMessage(msg kafka.Message) (*cloudevents.WMSCloudEvent, json.RawMessage, error) {
	var envelope struct {
		cloudevents.WMSCloudEvent
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	event := envelope.WMSCloudEvent
	for _, header := range msg.Headers {
		switch header.Key {
		case headerCorrelationID:
			if event.CorrelationID == "" {
				event.CorrelationID = string(header.Value)
			}
		case headerWorkflowID:
			if event.WorkflowID == "" {
				event.WorkflowID = string(header.Value)
			}
		case headerType:
			if event.Type == "" {
				event.Type = string(header.Value)
			}
		}
	}

	if event.Type == "" {
		return nil, nil, fmt.Errorf("event %q has no type", event.ID)
	}

	event.Data = envelope.Data
	return &event, envelope.Data, nil
}
