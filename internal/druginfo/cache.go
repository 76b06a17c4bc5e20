package druginfo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CacheCollection = "drug_details"

type cachedDetails struct {
	Key       string    `bson:"key"`
	Details   Details   `bson:"details"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// MongoCache keeps resolved details in a MongoDB collection.
type MongoCache struct {
	coll *mongo.Collection
}

func NewMongoCache(coll *mongo.Collection) *MongoCache {
	return &MongoCache{coll: coll}
}

// ConnectMongo opens a client and verifies it with a ping.
func ConnectMongo(ctx context.Context, uri, database string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return client, client.Database(database), nil
}

func (c *MongoCache) EnsureIndexes(ctx context.Context) error {
	_, err := c.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (c *MongoCache) Get(ctx context.Context, keys []string) (map[string]*Details, error) {
	cur, err := c.coll.Find(ctx, bson.M{"key": bson.M{"$in": keys}})
	if err != nil {
		return nil, fmt.Errorf("find cached details: %w", err)
	}
	var docs []cachedDetails
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode cached details: %w", err)
	}

	out := make(map[string]*Details, len(docs))
	for i := range docs {
		out[docs[i].Key] = &docs[i].Details
	}
	return out, nil
}

func (c *MongoCache) Put(ctx context.Context, entries map[string]*Details) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now().UTC()
	models := make([]mongo.WriteModel, 0, len(entries))
	for key, d := range entries {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"key": key}).
			SetUpdate(bson.M{"$set": cachedDetails{Key: key, Details: *d, UpdatedAt: now}}).
			SetUpsert(true))
	}
	if _, err := c.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("store cached details: %w", err)
	}
	return nil
}
