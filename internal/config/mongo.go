package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names shared with the main application.
const (
	CollectionContents    = "contents"
	CollectionFiles       = "files"
	CollectionExtractions = "content_extractions"
	CollectionChunks      = "content_chunks"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	err = CreateIndexes(ctx, client.Database(cfg.DBName))
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

// CreateIndexes is idempotent; the worker runs it on every start.
func CreateIndexes(ctx context.Context, db *mongo.Database) error {
	// One extraction row per content
	extractionIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "content_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "running_since", Value: 1}},
		},
	}
	_, err := db.Collection(CollectionExtractions).Indexes().CreateMany(ctx, extractionIndexes)
	if err != nil {
		return err
	}

	// Chunk indexes are unique per generation so a staged set never collides with the current one
	chunkIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "content_id", Value: 1},
				{Key: "generation", Value: 1},
				{Key: "chunk_index", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err = db.Collection(CollectionChunks).Indexes().CreateMany(ctx, chunkIndexes)
	if err != nil {
		return err
	}

	return nil
}
