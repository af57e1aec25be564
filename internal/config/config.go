// Package config loads reconciliation-service settings from the environment,
// an optional .env file and an optional YAML file named by CONFIG_FILE.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/wms-platform/reconciliation-service/pkg/kafka"
	"github.com/wms-platform/reconciliation-service/pkg/mongodb"
	"github.com/wms-platform/reconciliation-service/pkg/temporal"
	"github.com/wms-platform/reconciliation-service/pkg/tracing"
)

// ServiceName is the name the service reports in logs, metrics and events
const ServiceName = "reconciliation-service"

// Storage backends
const (
	BackendMongoDB  = "mongodb"
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
	BackendMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	Environment    string
	LogLevel       string
	ServerAddr     string
	StorageBackend string

	MongoDB  *mongodb.Config
	Postgres PostgresConfig
	Badger   BadgerConfig

	KafkaEnabled bool
	Kafka        *kafka.Config

	TemporalEnabled bool
	Temporal        *temporal.Config

	Tracing *tracing.Config

	Ledger      LedgerConfig
	Workflow    WorkflowConfig
	Idempotency IdempotencyConfig
	Outbox      OutboxConfig
}

// PostgresConfig configures the gorm-backed store
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// BadgerConfig configures the embedded store
type BadgerConfig struct {
	Dir      string
	InMemory bool
}

// LedgerConfig tunes the apply loop
type LedgerConfig struct {
	// MaxAttempts bounds load-validate-save cycles on version conflicts
	MaxAttempts int
}

// WorkflowConfig tunes the assignment completion workflow
type WorkflowConfig struct {
	CheckInterval time.Duration
	StallAfter    time.Duration
}

// IdempotencyConfig configures Idempotency-Key handling
type IdempotencyConfig struct {
	RequireKey bool
	Retention  time.Duration
}

// OutboxConfig configures the outbox relay
type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Retention    time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVER_ADDR", ":8020")
	v.SetDefault("STORAGE_BACKEND", BackendMongoDB)

	v.SetDefault("MONGODB_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGODB_DATABASE", "reconciliation_db")
	v.SetDefault("MONGODB_REPLICA_SET", "")
	v.SetDefault("MONGODB_CONNECT_TIMEOUT", 10*time.Second)
	v.SetDefault("MONGODB_MAX_COMMIT_TIME", 5*time.Second)

	v.SetDefault("POSTGRES_DSN", "")
	v.SetDefault("POSTGRES_MAX_OPEN_CONNS", 20)
	v.SetDefault("POSTGRES_MAX_IDLE_CONNS", 5)

	v.SetDefault("BADGER_DIR", "./data/badger")
	v.SetDefault("BADGER_IN_MEMORY", false)

	v.SetDefault("KAFKA_ENABLED", true)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_CONSUMER_GROUP", ServiceName)
	v.SetDefault("KAFKA_HANDLER_RETRIES", 3)

	v.SetDefault("TEMPORAL_ENABLED", true)
	v.SetDefault("TEMPORAL_HOST", "localhost:7233")
	v.SetDefault("TEMPORAL_NAMESPACE", "default")

	v.SetDefault("TRACING_ENABLED", true)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	v.SetDefault("OTEL_SAMPLE_RATE", 1.0)

	v.SetDefault("LEDGER_MAX_ATTEMPTS", 3)
	v.SetDefault("CHECK_INTERVAL", 5*time.Minute)
	v.SetDefault("STALL_AFTER", 8*time.Hour)

	v.SetDefault("IDEMPOTENCY_REQUIRE_KEY", false)
	v.SetDefault("IDEMPOTENCY_RETENTION", 24*time.Hour)

	v.SetDefault("OUTBOX_POLL_INTERVAL", time.Second)
	v.SetDefault("OUTBOX_BATCH_SIZE", 100)
	v.SetDefault("OUTBOX_RETENTION", 72*time.Hour)
}

// Load reads configuration. Values from a .env file never override
// variables already present in the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	mongoCfg := mongodb.DefaultConfig()
	mongoCfg.URI = v.GetString("MONGODB_URI")
	mongoCfg.Database = v.GetString("MONGODB_DATABASE")
	mongoCfg.ReplicaSet = v.GetString("MONGODB_REPLICA_SET")
	mongoCfg.ConnectTimeout = v.GetDuration("MONGODB_CONNECT_TIMEOUT")
	mongoCfg.MaxCommitTime = v.GetDuration("MONGODB_MAX_COMMIT_TIME")

	kafkaCfg := kafka.DefaultConfig()
	kafkaCfg.Brokers = splitList(v.GetString("KAFKA_BROKERS"))
	kafkaCfg.ConsumerGroup = v.GetString("KAFKA_CONSUMER_GROUP")
	kafkaCfg.HandlerRetries = v.GetInt("KAFKA_HANDLER_RETRIES")

	temporalCfg := temporal.DefaultConfig()
	temporalCfg.HostPort = v.GetString("TEMPORAL_HOST")
	temporalCfg.Namespace = v.GetString("TEMPORAL_NAMESPACE")

	tracingCfg := tracing.DefaultConfig(ServiceName)
	tracingCfg.Enabled = v.GetBool("TRACING_ENABLED")
	tracingCfg.OTLPEndpoint = v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")
	tracingCfg.SampleRate = v.GetFloat64("OTEL_SAMPLE_RATE")
	tracingCfg.Environment = v.GetString("ENVIRONMENT")

	return &Config{
		Environment:    v.GetString("ENVIRONMENT"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		ServerAddr:     v.GetString("SERVER_ADDR"),
		StorageBackend: strings.ToLower(v.GetString("STORAGE_BACKEND")),
		MongoDB:        mongoCfg,
		Postgres: PostgresConfig{
			DSN:          v.GetString("POSTGRES_DSN"),
			MaxOpenConns: v.GetInt("POSTGRES_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("POSTGRES_MAX_IDLE_CONNS"),
		},
		Badger: BadgerConfig{
			Dir:      v.GetString("BADGER_DIR"),
			InMemory: v.GetBool("BADGER_IN_MEMORY"),
		},
		KafkaEnabled:    v.GetBool("KAFKA_ENABLED"),
		Kafka:           kafkaCfg,
		TemporalEnabled: v.GetBool("TEMPORAL_ENABLED"),
		Temporal:        temporalCfg,
		Tracing:         tracingCfg,
		Ledger: LedgerConfig{
			MaxAttempts: v.GetInt("LEDGER_MAX_ATTEMPTS"),
		},
		Workflow: WorkflowConfig{
			CheckInterval: v.GetDuration("CHECK_INTERVAL"),
			StallAfter:    v.GetDuration("STALL_AFTER"),
		},
		Idempotency: IdempotencyConfig{
			RequireKey: v.GetBool("IDEMPOTENCY_REQUIRE_KEY"),
			Retention:  v.GetDuration("IDEMPOTENCY_RETENTION"),
		},
		Outbox: OutboxConfig{
			PollInterval: v.GetDuration("OUTBOX_POLL_INTERVAL"),
			BatchSize:    v.GetInt("OUTBOX_BATCH_SIZE"),
			Retention:    v.GetDuration("OUTBOX_RETENTION"),
		},
	}
}

// Validate rejects configurations the service cannot start with
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendMongoDB:
		if c.MongoDB.URI == "" {
			return fmt.Errorf("MONGODB_URI is required for the %s backend", c.StorageBackend)
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the %s backend", c.StorageBackend)
		}
	case BackendBadger:
		if !c.Badger.InMemory && c.Badger.Dir == "" {
			return fmt.Errorf("BADGER_DIR is required unless BADGER_IN_MEMORY is set")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	if c.Ledger.MaxAttempts < 1 {
		return fmt.Errorf("LEDGER_MAX_ATTEMPTS must be at least 1, got %d", c.Ledger.MaxAttempts)
	}
	if c.KafkaEnabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when Kafka is enabled")
	}
	if c.Workflow.CheckInterval <= 0 {
		return fmt.Errorf("CHECK_INTERVAL must be positive")
	}
	return nil
}

// Embedded reports a backend that lives inside one process. The completion
// worker then runs in the API process instead of cmd/worker.
func (c *Config) Embedded() bool {
	return c.StorageBackend == BackendMemory || c.StorageBackend == BackendBadger
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
