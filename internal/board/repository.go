package board

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/valerit/react-kanban/internal/db"
	"github.com/valerit/react-kanban/internal/domain"
)

const Collection = "boards"

type Repository interface {
	ListByUser(ctx context.Context, userID string) ([]Board, error)
	Save(ctx context.Context, userID string, board *Board) error
	Delete(ctx context.Context, userID, boardID string) error
}

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(ctx context.Context, database *mongo.Database) (*MongoRepository, error) {
	collection := database.Collection(Collection)
	if err := db.EnsureIndex(ctx, collection, bson.D{{Key: "users", Value: 1}}, nil); err != nil {
		return nil, err
	}
	return &MongoRepository{collection: collection}, nil
}

func (r *MongoRepository) ListByUser(ctx context.Context, userID string) ([]Board, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"users": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to find boards: %w", err)
	}

	boards := []Board{}
	if err := cursor.All(ctx, &boards); err != nil {
		return nil, fmt.Errorf("failed to decode boards: %w", err)
	}
	return boards, nil
}

// Save upserts a board the user belongs to. An id already used by a board
// of other users fails the upsert with a duplicate key and is a conflict.
func (r *MongoRepository) Save(ctx context.Context, userID string, board *Board) error {
	filter := bson.M{"_id": board.ID, "users": userID}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, filter, board, opts); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.NewConflictError(fmt.Errorf("board %s belongs to another user", board.ID))
		}
		return fmt.Errorf("failed to save board: %w", err)
	}
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, userID, boardID string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": boardID, "users": userID})
	if err != nil {
		return fmt.Errorf("failed to delete board: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.NewNotFoundError(fmt.Errorf("board %s not found", boardID))
	}
	return nil
}
