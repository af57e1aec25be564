package kafka

import (
	"time"
)

// Config holds Kafka configuration
type Config struct {
	Brokers       []string
	ConsumerGroup string
	ClientID      string

	// Producer settings
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int // 0: no ack, 1: leader ack, -1: all replicas ack

	// Consumer settings
	MinBytes       int
	MaxBytes       int
	MaxWait        time.Duration
	CommitInterval time.Duration
	HandlerRetries int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Brokers:       []string{"localhost:9092"},
		ConsumerGroup: "reconciliation-service",
		ClientID:      "reconciliation-service",

		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: -1,

		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0, // synchronous commits
		HandlerRetries: 3,
	}
}

// Topics contains the Kafka topic names this service reads and writes
var Topics = struct {
	// Inbound
	ProductionAssignments string

	// Outbound
	ReconciliationEvents string
	ReconciliationAlerts string
}{
	ProductionAssignments: "wms.production.assignments",
	ReconciliationEvents:  "wms.reconciliation.events",
	ReconciliationAlerts:  "wms.reconciliation.alerts",
}
