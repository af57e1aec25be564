package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/reconciliation-service/internal/config"
	"github.com/wms-platform/reconciliation-service/internal/domain"
	"github.com/wms-platform/reconciliation-service/internal/infrastructure/instrumented"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	"github.com/wms-platform/reconciliation-service/pkg/idempotency"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/metrics"
)

func open(t *testing.T, cfg *config.Config) *Backend {
	t.Helper()
	b, err := Open(context.Background(), cfg,
		cloudevents.NewEventFactory(cloudevents.SourceReconciliation),
		metrics.New(metrics.DefaultConfig(config.ServiceName)),
		logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close(context.Background()) })
	return b
}

func TestOpen_EmbeddedBackends(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.Config
	}{
		{"memory", &config.Config{StorageBackend: config.BackendMemory}},
		{"badger", &config.Config{StorageBackend: config.BackendBadger, Badger: config.BadgerConfig{InMemory: true}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			b := open(t, tt.cfg)

			assert.Equal(t, tt.cfg.StorageBackend, b.Name)
			assert.IsType(t, &instrumented.Store{}, b.Store)
			assert.IsType(t, &idempotency.MemoryKeyRepository{}, b.IdempotencyKeys)
			require.NoError(t, b.Store.Ping(ctx))

			a, buckets, err := domain.NewAssignment("A-1", "ORD-1", "BATCH-1", "PROD-1", map[string]int{"M": 5}, time.Now().UTC())
			require.NoError(t, err)
			require.NoError(t, b.Store.Assignments().Create(ctx, a, buckets))

			pending, err := b.Outbox.FindUnpublished(ctx, 10)
			require.NoError(t, err)
			assert.Len(t, pending, 1)
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{StorageBackend: "sqlite"},
		cloudevents.NewEventFactory(cloudevents.SourceReconciliation),
		metrics.New(metrics.DefaultConfig(config.ServiceName)),
		logging.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite")
}
