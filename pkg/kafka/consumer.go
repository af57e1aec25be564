package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/metrics"
)

// EventHandler handles one CloudEvent. data is the raw JSON payload.
type EventHandler func(ctx context.Context, event *cloudevents.WMSCloudEvent, data json.RawMessage) error

// Consumer reads CloudEvents from Kafka topics and dispatches them by type
type Consumer struct {
	config   *Config
	readers  map[string]*kafka.Reader
	handlers map[string]map[string]EventHandler // topic -> eventType -> handler
	metrics  *metrics.Metrics
	logger   *logging.Logger
}

// NewConsumer creates a new Kafka consumer. m may be nil.
func NewConsumer(config *Config, m *metrics.Metrics, logger *logging.Logger) *Consumer {
	return &Consumer{
		config:   config,
		readers:  make(map[string]*kafka.Reader),
		handlers: make(map[string]map[string]EventHandler),
		metrics:  m,
		logger:   logger,
	}
}

// Subscribe subscribes to a topic with a handler for a specific event type
func (c *Consumer) Subscribe(topic string, eventType string, handler EventHandler) {
	if _, exists := c.handlers[topic]; !exists {
		c.handlers[topic] = make(map[string]EventHandler)
	}
	c.handlers[topic][eventType] = handler
}

func (c *Consumer) getReader(topic string) *kafka.Reader {
	if reader, exists := c.readers[topic]; exists {
		return reader
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.config.Brokers,
		GroupID:        c.config.ConsumerGroup,
		Topic:          topic,
		MinBytes:       c.config.MinBytes,
		MaxBytes:       c.config.MaxBytes,
		MaxWait:        c.config.MaxWait,
		CommitInterval: c.config.CommitInterval,
	})

	c.readers[topic] = reader
	return reader
}

// Start consumes all subscribed topics until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	for topic := range c.handlers {
		reader := c.getReader(topic)
		go c.consumeTopic(ctx, topic, reader)
	}

	<-ctx.Done()
	return ctx.Err()
}

func (c *Consumer) consumeTopic(ctx context.Context, topic string, reader *kafka.Reader) {
	c.logger.Info("Starting consumer for topic", "topic", topic, "group", c.config.ConsumerGroup)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Stopping consumer for topic", "topic", topic)
				return
			}
			c.logger.WithError(err).Error("Error fetching message", "topic", topic)
			continue
		}

		c.process(ctx, topic, msg)

		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.WithError(err).Error("Error committing message", "topic", topic, "offset", msg.Offset)
		}
	}
}

// process handles a message with bounded retries. A message that still fails
// is logged and skipped so one poison event cannot block the partition.
func (c *Consumer) process(ctx context.Context, topic string, msg kafka.Message) {
	event, data, err := parseMessage(msg)
	if err != nil {
		c.logger.WithError(err).Error("Dropping unparseable message", "topic", topic, "offset", msg.Offset)
		return
	}

	c.logger.KafkaConsume(ctx, topic, event.Type, msg.Partition, msg.Offset)

	attempts := c.config.HandlerRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		err = c.dispatch(ctx, topic, event, data)
		if err == nil {
			break
		}
		c.logger.WithError(err).Warn("Event handler failed",
			"topic", topic,
			"eventType", event.Type,
			"eventId", event.ID,
			"attempt", attempt,
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
		}
	}

	if c.metrics != nil {
		c.metrics.RecordKafkaConsume(topic, event.Type, err == nil)
	}
	if err != nil {
		c.logger.WithError(err).Error("Giving up on event", "topic", topic, "eventType", event.Type, "eventId", event.ID)
	}
}

func (c *Consumer) dispatch(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent, data json.RawMessage) error {
	handlers, exists := c.handlers[topic]
	if !exists {
		return fmt.Errorf("no handlers registered for topic %s", topic)
	}

	if event.CorrelationID != "" {
		ctx = logging.ContextWithCorrelationID(ctx, event.CorrelationID)
	}

	if handler, exists := handlers[event.Type]; exists {
		return handler(ctx, event, data)
	}

	c.logger.Debug("No handler for event type", "topic", topic, "eventType", event.Type)
	return nil
}

// Close closes all readers
func (c *Consumer) Close() error {
	var lastErr error
	for topic, reader := range c.readers {
		if err := reader.Close(); err != nil {
			lastErr = fmt.Errorf("failed to close reader for topic %s: %w", topic, err)
		}
	}
	return lastErr
}
