package mongodb

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	"github.com/wms-platform/reconciliation-service/internal/infrastructure/storetest"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	pkgmongo "github.com/wms-platform/reconciliation-service/pkg/mongodb"
)

func TestMongoStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()

	// Transactions need a replica set
	container, err := mongodb.Run(ctx, "mongo:6", mongodb.WithReplicaSet("rs"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	if !strings.Contains(uri, "directConnection") {
		if strings.Contains(uri, "?") {
			uri += "&directConnection=true"
		} else {
			uri = strings.TrimSuffix(uri, "/") + "/?directConnection=true"
		}
	}

	suite.Run(t, &storetest.StoreSuite{
		NewBackend: func(t *testing.T) storetest.Backend {
			cfg := pkgmongo.DefaultConfig()
			cfg.URI = uri
			cfg.Database = "reconciliation_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")

			client, err := pkgmongo.NewClient(ctx, cfg)
			require.NoError(t, err)
			t.Cleanup(func() {
				_ = client.Database().Drop(ctx)
				_ = client.Close(ctx)
			})

			store, err := NewStore(ctx, client, cloudevents.NewEventFactory(cloudevents.SourceReconciliation))
			require.NoError(t, err)
			return storetest.Backend{Store: store, Outbox: store.Outbox()}
		},
	})
}
