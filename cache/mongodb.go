package cache

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/bitmark-inc/picture-gallery/log"
)

const cacheCollectionName = "listing_caches"

type cacheEntry struct {
	Key      string    `bson:"key"`
	Data     []byte    `bson:"data"`
	ExpireAt time.Time `bson:"expireAt"`
}

// MongoDBStore keeps shared cache entries in a collection. Expired documents
// are removed by a TTL index and ignored by Get until then.
type MongoDBStore struct {
	mongoClient *mongo.Client
	collection  *mongo.Collection
}

func NewMongoDBStore(ctx context.Context, mongodbURI, dbName string) (*MongoDBStore, error) {
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(mongodbURI))
	if err != nil {
		return nil, err
	}

	collection := mongoClient.Database(dbName).Collection(cacheCollectionName)
	if _, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expireAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}); err != nil {
		return nil, err
	}

	return &MongoDBStore{
		mongoClient: mongoClient,
		collection:  collection,
	}, nil
}

func (s *MongoDBStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry cacheEntry

	err := s.collection.FindOne(ctx, bson.M{
		"key":      key,
		"expireAt": bson.M{"$gt": time.Now()},
	}).Decode(&entry)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, false, nil
		}
		return nil, false, err
	}

	return entry.Data, true, nil
}

// Set inserts or updates the value for key
func (s *MongoDBStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	r, err := s.collection.UpdateOne(ctx,
		bson.M{"key": key},
		bson.M{"$set": bson.M{
			"key":      key,
			"data":     value,
			"expireAt": time.Now().Add(ttl),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return err
	}

	if r.MatchedCount == 0 && r.UpsertedCount == 0 {
		log.Warn("cache is not added or updated", log.SourceCache, zap.String("key", key))
	}

	return nil
}

func (s *MongoDBStore) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	r, err := s.collection.DeleteMany(ctx, bson.M{
		"key": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)},
	})
	if err != nil {
		return 0, err
	}
	return int(r.DeletedCount), nil
}

func (s *MongoDBStore) Close(ctx context.Context) error {
	return s.mongoClient.Disconnect(ctx)
}
