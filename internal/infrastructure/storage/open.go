// Package storage opens the ledger backend selected by STORAGE_BACKEND and
// the stores that travel with it.
package storage

import (
	"context"
	"fmt"

	"github.com/wms-platform/reconciliation-service/internal/config"
	"github.com/wms-platform/reconciliation-service/internal/domain"
	"github.com/wms-platform/reconciliation-service/internal/infrastructure/badgerdb"
	"github.com/wms-platform/reconciliation-service/internal/infrastructure/instrumented"
	"github.com/wms-platform/reconciliation-service/internal/infrastructure/memory"
	mongoStore "github.com/wms-platform/reconciliation-service/internal/infrastructure/mongodb"
	"github.com/wms-platform/reconciliation-service/internal/infrastructure/postgres"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	"github.com/wms-platform/reconciliation-service/pkg/idempotency"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/metrics"
	"github.com/wms-platform/reconciliation-service/pkg/mongodb"
	"github.com/wms-platform/reconciliation-service/pkg/outbox"
)

// rawStore is what every backend package returns
type rawStore interface {
	domain.Store
	Outbox() outbox.Repository
}

// Backend is an opened storage backend
type Backend struct {
	Name string

	// Store is instrumented with metrics, spans and query logs
	Store domain.Store

	// Outbox is the relay side of the transactional outbox
	Outbox outbox.Repository

	// IdempotencyKeys lives in MongoDB when that is the backend and in
	// process memory otherwise
	IdempotencyKeys idempotency.KeyRepository
}

// Open connects to the configured backend
func Open(ctx context.Context, cfg *config.Config, eventFactory *cloudevents.EventFactory, m *metrics.Metrics, logger *logging.Logger) (*Backend, error) {
	var (
		raw  rawStore
		keys idempotency.KeyRepository = idempotency.NewMemoryKeyRepository()
	)

	switch cfg.StorageBackend {
	case config.BackendMongoDB:
		client, err := mongodb.NewClient(ctx, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		store, err := mongoStore.NewStore(ctx, client, eventFactory)
		if err != nil {
			_ = client.Close(ctx)
			return nil, err
		}
		mongoKeys := idempotency.NewMongoKeyRepository(client.Database())
		if err := mongoKeys.EnsureIndexes(ctx); err != nil {
			logger.WithError(err).Warn("Failed to create idempotency indexes")
		}
		raw, keys = store, mongoKeys

	case config.BackendPostgres:
		store, err := postgres.Open(cfg.Postgres, eventFactory)
		if err != nil {
			return nil, err
		}
		raw = store

	case config.BackendBadger:
		store, err := badgerdb.Open(cfg.Badger, eventFactory, logger)
		if err != nil {
			return nil, err
		}
		raw = store

	case config.BackendMemory:
		raw = memory.NewStore(eventFactory)

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	return &Backend{
		Name:            cfg.StorageBackend,
		Store:           instrumented.NewStore(raw, cfg.StorageBackend, m, logger),
		Outbox:          raw.Outbox(),
		IdempotencyKeys: keys,
	}, nil
}

// Close releases the backend's connections
func (b *Backend) Close(ctx context.Context) error {
	return b.Store.Close(ctx)
}
