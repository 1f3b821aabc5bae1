package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Client is the single process-wide MongoDB connection. It is safe for
// concurrent use; the driver pools connections internally.
type Client struct {
	*mongo.Client
	databaseName string
}

// Connect makes exactly one connection attempt bounded by timeout and
// verifies it with a ping. There is no retry.
func Connect(ctx context.Context, uri, database string, timeout time.Duration) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	return Wrap(client, database), nil
}

// Wrap binds an existing driver client to database.
func Wrap(client *mongo.Client, database string) *Client {
	return &Client{Client: client, databaseName: database}
}

// Database returns the shared handle for the configured database.
func (c *Client) Database() *mongo.Database {
	return c.Client.Database(c.databaseName)
}

// EnsureIndex creates an index on collection unless an identical one exists.
func EnsureIndex(ctx context.Context, collection *mongo.Collection, keys interface{}, opts *options.IndexOptions) error {
	model := mongo.IndexModel{Keys: keys, Options: opts}
	if _, err := collection.Indexes().CreateOne(ctx, model); err != nil {
		return fmt.Errorf("failed to create index on %s: %w", collection.Name(), err)
	}
	return nil
}
