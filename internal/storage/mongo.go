package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements nodes.MongoWriter against a real mongo-driver
// client, grounded on the teacher's MongoDBConnector (the same pool
// sizing and connect timeouts, narrowed to the one write path the
// MongoWrite node needs).
type MongoStore struct {
	client *mongo.Client
}

// NewMongoStore dials uri with the teacher's pool and timeout settings
// and pings once to fail fast on a bad connection string.
func NewMongoStore(ctx context.Context, uri string) (*MongoStore, error) {
	if uri == "" {
		return nil, &ValidationError{Field: "uri", Message: "mongo uri is required"}
	}

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(25).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongo store: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo store: ping: %w", err)
	}
	return &MongoStore{client: client}, nil
}

// InsertOne writes document into database.collection, satisfying
// nodes.MongoWriter.
func (m *MongoStore) InsertOne(ctx context.Context, database, collection string, document map[string]interface{}) error {
	doc := bson.M{}
	for k, v := range document {
		doc[k] = v
	}
	coll := m.client.Database(database).Collection(collection)
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongo store: insert into %s.%s: %w", database, collection, err)
	}
	return nil
}

// Close disconnects the underlying client.
func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
