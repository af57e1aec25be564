package idempotency

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const idempotencyKeysCollection = "idempotency_keys"

// MongoKeyRepository implements KeyRepository using MongoDB
type MongoKeyRepository struct {
	collection *mongo.Collection
}

// NewMongoKeyRepository creates a new MongoDB-backed key repository
func NewMongoKeyRepository(db *mongo.Database) *MongoKeyRepository {
	return &MongoKeyRepository{
		collection: db.Collection(idempotencyKeysCollection),
	}
}

// AcquireLock upserts the key. A document that already existed is returned
// as stored, without taking the lock over.
func (r *MongoKeyRepository) AcquireLock(ctx context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error) {
	now := time.Now().UTC()

	update := bson.M{
		"$setOnInsert": bson.M{
			"key":                key.Key,
			"serviceId":          key.ServiceID,
			"requestPath":        key.RequestPath,
			"requestMethod":      key.RequestMethod,
			"requestFingerprint": key.RequestFingerprint,
			"lockedAt":           now,
			"createdAt":          key.CreatedAt,
			"expiresAt":          key.ExpiresAt,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.Before)

	var before IdempotencyKey
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": key.ID}, update, opts).Decode(&before)
	if err == mongo.ErrNoDocuments {
		inserted := *key
		inserted.LockedAt = &now
		return &inserted, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	if !before.IsCompleted() && before.LockedAt == nil {
		// Released after a server failure; take the lock for this retry.
		if _, err := r.collection.UpdateOne(ctx,
			bson.M{"_id": key.ID, "lockedAt": bson.M{"$exists": false}, "completedAt": bson.M{"$exists": false}},
			bson.M{"$set": bson.M{"lockedAt": now}},
		); err != nil {
			return nil, false, err
		}
	}

	return &before, false, nil
}

// ReleaseLock releases the lock on an idempotency key
func (r *MongoKeyRepository) ReleaseLock(ctx context.Context, keyID string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": keyID},
		bson.M{"$unset": bson.M{"lockedAt": ""}},
	)
	return err
}

// StoreResponse stores the final response for a completed request
func (r *MongoKeyRepository) StoreResponse(ctx context.Context, keyID string, responseCode int, responseBody []byte, headers map[string]string) error {
	update := bson.M{
		"$set": bson.M{
			"responseCode":    responseCode,
			"responseBody":    responseBody,
			"responseHeaders": headers,
			"completedAt":     time.Now().UTC(),
		},
		"$unset": bson.M{"lockedAt": ""},
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": keyID}, update)
	return err
}

// Clean removes expired idempotency keys
func (r *MongoKeyRepository) Clean(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lt": before}})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// EnsureIndexes creates the TTL index on expiresAt
func (r *MongoKeyRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_ttl"),
		},
		{
			Keys:    bson.D{{Key: "serviceId", Value: 1}, {Key: "key", Value: 1}},
			Options: options.Index().SetName("idx_service_key"),
		},
	})
	return err
}
