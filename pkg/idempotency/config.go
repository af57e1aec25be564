package idempotency

import (
	"time"

	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/metrics"
)

const (
	// DefaultMaxKeyLength is the maximum length for an idempotency key
	DefaultMaxKeyLength = 255

	// DefaultLockTimeout is how long an in-flight key blocks retries
	DefaultLockTimeout = 2 * time.Minute

	// DefaultRetentionPeriod is how long completed keys are kept
	DefaultRetentionPeriod = 24 * time.Hour

	// DefaultMaxResponseSize is the largest response body that is cached
	DefaultMaxResponseSize = 1 << 20
)

// Config holds configuration for the idempotency middleware
type Config struct {
	ServiceName string
	Repository  KeyRepository

	// RequireKey rejects mutating requests that carry no key
	RequireKey bool

	MaxKeyLength    int
	LockTimeout     time.Duration
	RetentionPeriod time.Duration
	MaxResponseSize int

	Logger  *logging.Logger
	Metrics *metrics.Metrics
}

// DefaultConfig returns a default configuration for the given service
func DefaultConfig(serviceName string, repository KeyRepository, logger *logging.Logger, m *metrics.Metrics) *Config {
	return &Config{
		ServiceName:     serviceName,
		Repository:      repository,
		MaxKeyLength:    DefaultMaxKeyLength,
		LockTimeout:     DefaultLockTimeout,
		RetentionPeriod: DefaultRetentionPeriod,
		MaxResponseSize: DefaultMaxResponseSize,
		Logger:          logger,
		Metrics:         m,
	}
}
