package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/valerit/react-kanban/internal/db"
)

const Collection = "sessions"

type record struct {
	ID      string    `bson:"_id"`
	Session string    `bson:"session"`
	Expires time.Time `bson:"expires"`
}

// MongoStore persists sessions in the shared database. Payloads are stored
// as JSON strings; a TTL index on expires lets the server drop stale rows.
type MongoStore struct {
	collection *mongo.Collection
	Now        func() time.Time
}

func NewMongoStore(ctx context.Context, database *mongo.Database) (*MongoStore, error) {
	collection := database.Collection(Collection)
	if err := db.EnsureIndex(ctx, collection, bson.D{{Key: "expires", Value: 1}}, options.Index().SetExpireAfterSeconds(0)); err != nil {
		return nil, err
	}
	return &MongoStore{collection: collection, Now: time.Now}, nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (Data, error) {
	filter := bson.M{"_id": id, "expires": bson.M{"$gt": s.Now()}}

	var rec record
	if err := s.collection.FindOne(ctx, filter).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	data := Data{}
	if err := json.Unmarshal([]byte(rec.Session), &data); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return data, nil
}

func (s *MongoStore) Set(ctx context.Context, id string, data Data, expires time.Time) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	update := bson.M{"$set": bson.M{"session": string(raw), "expires": expires}}
	if _, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *MongoStore) Touch(ctx context.Context, id string, expires time.Time) error {
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"expires": expires}})
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Destroy(ctx context.Context, id string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}
