package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/valerit/react-kanban/internal/db"
	"github.com/valerit/react-kanban/internal/domain"
)

const usersCollection = "users"

type User struct {
	ID           string    `json:"id" bson:"_id"`
	Username     string    `json:"username" bson:"username"`
	DisplayName  string    `json:"displayName" bson:"displayName"`
	PasswordHash string    `json:"-" bson:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}

type UserStore interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}

type MongoUserStore struct {
	collection *mongo.Collection
}

func NewMongoUserStore(ctx context.Context, database *mongo.Database) (*MongoUserStore, error) {
	collection := database.Collection(usersCollection)
	if err := db.EnsureIndex(ctx, collection, bson.D{{Key: "username", Value: 1}}, options.Index().SetUnique(true)); err != nil {
		return nil, err
	}
	return &MongoUserStore{collection: collection}, nil
}

func (s *MongoUserStore) Create(ctx context.Context, user *User) error {
	if _, err := s.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.NewConflictError(fmt.Errorf("username %s is already taken", user.Username))
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *MongoUserStore) GetByID(ctx context.Context, id string) (*User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoUserStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *MongoUserStore) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var user User
	if err := s.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NewNotFoundError(fmt.Errorf("user not found: %w", err))
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}
