package badgerdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/wms-platform/reconciliation-service/internal/config"
	"github.com/wms-platform/reconciliation-service/internal/infrastructure/storetest"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(config.BadgerConfig{InMemory: true}, cloudevents.NewEventFactory(cloudevents.SourceReconciliation), logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestBadgerStore(t *testing.T) {
	suite.Run(t, &storetest.StoreSuite{
		NewBackend: func(t *testing.T) storetest.Backend {
			s := openInMemory(t)
			return storetest.Backend{Store: s, Outbox: s.Outbox()}
		},
	})
}

func TestAuditKeyOrdersByVersion(t *testing.T) {
	k9 := auditKey(prefixPick, "A-1", "M", 9)
	k10 := auditKey(prefixPick, "A-1", "M", 10)
	assert.Less(t, string(k9), string(k10))
}

func TestBucketPrefixDoesNotMatchLongerIDs(t *testing.T) {
	key := bucketKey("A-10", "M")
	assert.NotContains(t, string(key), string(bucketPrefix("A-1")))
}

func TestPingAfterClose(t *testing.T) {
	s, err := Open(config.BadgerConfig{InMemory: true}, cloudevents.NewEventFactory(cloudevents.SourceReconciliation), logging.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close(context.Background()))
	assert.Error(t, s.Ping(context.Background()))
}
