package mongodb

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "reconciliation_db", cfg.Database)
	assert.Equal(t, 5*time.Second, cfg.MaxCommitTime)
	assert.Equal(t, uint64(100), cfg.MaxPoolSize)
}

func directURI(t *testing.T, container *mongodb.MongoDBContainer) string {
	t.Helper()
	uri, err := container.ConnectionString(context.Background())
	require.NoError(t, err)
	if strings.Contains(uri, "directConnection") {
		return uri
	}
	if strings.Contains(uri, "?") {
		return uri + "&directConnection=true"
	}
	return strings.TrimSuffix(uri, "/") + "/?directConnection=true"
}

func TestNewClient_ReplicaSet(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:6", mongodb.WithReplicaSet("rs"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	cfg := DefaultConfig()
	cfg.URI = directURI(t, container)
	cfg.Database = "client_test"

	client, err := NewClient(ctx, cfg)
	require.NoError(t, err)
	defer client.Close(ctx)

	require.NoError(t, client.HealthCheck(ctx))

	coll := client.Database().Collection("txn")
	err = client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		_, err := coll.InsertOne(sessCtx, bson.M{"_id": "A-1/M", "picked": 40})
		return err
	})
	require.NoError(t, err)

	count, err := coll.CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestNewClient_RejectsStandalone(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:6")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	cfg := DefaultConfig()
	cfg.URI = directURI(t, container)

	_, err = NewClient(ctx, cfg)
	assert.ErrorIs(t, err, ErrNoTransactions)
}
