package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avvvet/bingo-rooms/internal/models"
)

const gameResultsCollection = "game_results"

type MongoGameStore struct {
	coll *mongo.Collection
}

func NewMongoGameStore(db *mongo.Database) *MongoGameStore {
	return &MongoGameStore{coll: db.Collection(gameResultsCollection)}
}

// EnsureIndexes indexes results by room, newest first.
func (s *MongoGameStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "room_id", Value: 1}, {Key: "finished_at", Value: -1}},
		Options: options.Index().SetName("room_finished"),
	})
	if err != nil {
		return fmt.Errorf("failed to create game_results index: %w", err)
	}
	return nil
}

func (s *MongoGameStore) SaveGame(ctx context.Context, res models.GameResult) error {
	if _, err := s.coll.InsertOne(ctx, res); err != nil {
		return fmt.Errorf("failed to insert game result: %w", err)
	}
	return nil
}
