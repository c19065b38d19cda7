package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"aprendeai-extraction-worker/internal/config"
	"aprendeai-extraction-worker/internal/logger"
	"aprendeai-extraction-worker/models"
)

const DefaultChunkBatchSize = 100

// MongoStore implements Store on the application's MongoDB database.
//
// Chunk replacement uses a generation marker instead of a multi-document
// transaction: the new set is staged under a fresh generation id, the
// extraction row is flipped to it in a single update, and older generations
// are deleted afterwards. Readers only ever see the generation named by the
// extraction row.
type MongoStore struct {
	client      *mongo.Client
	contents    *mongo.Collection
	files       *mongo.Collection
	extractions *mongo.Collection
	chunks      *mongo.Collection
	batchSize   int
	now         func() time.Time
}

var _ Store = (*MongoStore)(nil)

func NewMongoStore(client *mongo.Client, dbName string, batchSize int) *MongoStore {
	if batchSize <= 0 {
		batchSize = DefaultChunkBatchSize
	}
	db := client.Database(dbName)
	return &MongoStore{
		client:      client,
		contents:    db.Collection(config.CollectionContents),
		files:       db.Collection(config.CollectionFiles),
		extractions: db.Collection(config.CollectionExtractions),
		chunks:      db.Collection(config.CollectionChunks),
		batchSize:   batchSize,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *MongoStore) ClaimExtraction(ctx context.Context, contentID string, staleAfter time.Duration) (bool, error) {
	now := s.now()

	claimable := bson.A{
		bson.M{"status": bson.M{"$in": bson.A{models.StatusPending, models.StatusFailed, models.StatusDone}}},
	}
	if staleAfter > 0 {
		claimable = append(claimable, bson.M{
			"status":        models.StatusRunning,
			"running_since": bson.M{"$lt": now.Add(-staleAfter)},
		})
	}

	filter := bson.M{"content_id": contentID, "$or": claimable}
	update := bson.M{
		"$set": bson.M{
			"status":        models.StatusRunning,
			"running_since": now,
			"updated_at":    now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}

	// Upsert covers contents whose PENDING row was never written. If a row
	// exists but did not match, the upsert collides with the unique index.
	res, err := s.extractions.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to claim extraction %s: %w", contentID, err)
	}
	return res.MatchedCount > 0 || res.UpsertedCount > 0, nil
}

func (s *MongoStore) SetExtractionStatus(ctx context.Context, contentID string, status models.ExtractionStatus, metadata map[string]any) error {
	now := s.now()

	set := bson.M{
		"status":     status,
		"updated_at": now,
	}
	if metadata != nil {
		set["metadata"] = metadata
	}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"created_at": now},
	}
	if status != models.StatusRunning {
		update["$unset"] = bson.M{"running_since": ""}
	}

	_, err := s.extractions.UpdateOne(ctx,
		bson.M{"content_id": contentID},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to set extraction status %s for %s: %w", status, contentID, err)
	}
	return nil
}

func (s *MongoStore) LoadContentWithFile(ctx context.Context, contentID string) (*models.Content, error) {
	var content models.Content
	err := s.contents.FindOne(ctx, bson.M{"_id": contentID}).Decode(&content)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load content %s: %w", contentID, err)
	}

	if content.FileID == "" {
		return &content, nil
	}

	var file models.File
	err = s.files.FindOne(ctx, bson.M{"_id": content.FileID}).Decode(&file)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &content, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load file %s for content %s: %w", content.FileID, contentID, err)
	}
	content.File = &file

	return &content, nil
}

func (s *MongoStore) ReplaceChunks(ctx context.Context, contentID string, chunks []models.Chunk) error {
	generation, err := s.StageChunks(ctx, contentID, chunks)
	if err != nil {
		return err
	}
	return s.activateGeneration(ctx, contentID, generation, nil)
}

func (s *MongoStore) CompleteExtraction(ctx context.Context, contentID, generation string, metadata map[string]any) error {
	return s.activateGeneration(ctx, contentID, generation, bson.M{
		"status":   models.StatusDone,
		"metadata": metadata,
	})
}

// StageChunks inserts chunks in batches under a fresh generation id. A failed
// batch removes everything staged so far.
func (s *MongoStore) StageChunks(ctx context.Context, contentID string, chunks []models.Chunk) (string, error) {
	generation := uuid.NewString()
	now := s.now()

	for start := 0; start < len(chunks); start += s.batchSize {
		end := start + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		docs := make([]interface{}, 0, end-start)
		for _, chunk := range chunks[start:end] {
			chunk.ContentID = contentID
			chunk.Generation = generation
			chunk.CreatedAt = now
			docs = append(docs, chunk)
		}

		if _, err := s.chunks.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
			s.discardGeneration(contentID, generation)
			return "", fmt.Errorf("failed to insert chunk batch %d-%d for %s: %w", start, end-1, contentID, err)
		}
	}

	return generation, nil
}

// activateGeneration points the extraction row at generation, together with
// any extra fields (status, metadata) in the same update, then deletes the
// other generations. On failure the staged generation is discarded and the
// previous one stays current.
func (s *MongoStore) activateGeneration(ctx context.Context, contentID, generation string, extra bson.M) error {
	now := s.now()

	set := bson.M{
		"chunk_generation":   generation,
		"extracted_text_ref": fmt.Sprintf("%s/%s/%s", config.CollectionChunks, contentID, generation),
		"updated_at":         now,
	}
	for k, v := range extra {
		set[k] = v
	}
	update := bson.M{"$set": set}

	onInsert := bson.M{"created_at": now}
	status, hasStatus := extra["status"].(models.ExtractionStatus)
	if !hasStatus {
		onInsert["status"] = models.StatusRunning
	}
	update["$setOnInsert"] = onInsert
	if hasStatus && status != models.StatusRunning {
		update["$unset"] = bson.M{"running_since": ""}
	}

	_, err := s.extractions.UpdateOne(ctx,
		bson.M{"content_id": contentID},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		s.discardGeneration(contentID, generation)
		return fmt.Errorf("failed to activate chunk generation for %s: %w", contentID, err)
	}

	// The new generation is live; leftovers are invisible to readers and
	// removed again on the next run if this delete fails.
	res, err := s.chunks.DeleteMany(ctx, bson.M{
		"content_id": contentID,
		"generation": bson.M{"$ne": generation},
	})
	if err != nil {
		logger.Warn("Failed to delete previous chunk generations", "content_id", contentID, "error", err)
		return nil
	}
	logger.Debug("Chunk generation activated",
		"content_id", contentID,
		"generation", generation,
		"deleted", res.DeletedCount)

	return nil
}

// discardGeneration removes a partially staged generation. It runs on its own
// context because the job context may already be cancelled.
func (s *MongoStore) discardGeneration(contentID, generation string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.chunks.DeleteMany(ctx, bson.M{"content_id": contentID, "generation": generation}); err != nil {
		logger.Error("Failed to discard partial chunk generation",
			"content_id", contentID,
			"generation", generation,
			"error", err)
	}
}

func (s *MongoStore) ListChunks(ctx context.Context, contentID string) ([]models.Chunk, error) {
	extraction, err := s.GetExtraction(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if extraction == nil || extraction.ChunkGeneration == "" {
		return []models.Chunk{}, nil
	}

	cursor, err := s.chunks.Find(ctx,
		bson.M{"content_id": contentID, "generation": extraction.ChunkGeneration},
		options.Find().SetSort(bson.D{{Key: "chunk_index", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks for %s: %w", contentID, err)
	}
	defer cursor.Close(ctx)

	chunks := []models.Chunk{}
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("failed to decode chunks for %s: %w", contentID, err)
	}
	return chunks, nil
}

func (s *MongoStore) GetExtraction(ctx context.Context, contentID string) (*models.ContentExtraction, error) {
	var extraction models.ContentExtraction
	err := s.extractions.FindOne(ctx, bson.M{"content_id": contentID}).Decode(&extraction)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load extraction %s: %w", contentID, err)
	}
	return &extraction, nil
}

func (s *MongoStore) FailStaleRunning(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	now := s.now()
	res, err := s.extractions.UpdateMany(ctx,
		bson.M{
			"status":        models.StatusRunning,
			"running_since": bson.M{"$lt": now.Add(-olderThan)},
		},
		bson.M{
			"$set": bson.M{
				"status": models.StatusFailed,
				"metadata": bson.M{
					"error":     fmt.Sprintf("extraction still RUNNING after %s, worker presumed dead", olderThan),
					"reason":    models.ReasonStale,
					"timestamp": now.Format(time.RFC3339),
				},
				"updated_at": now,
			},
			"$unset": bson.M{"running_since": ""},
		},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stale extractions: %w", err)
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
