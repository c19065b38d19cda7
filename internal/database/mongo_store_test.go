package database

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"aprendeai-extraction-worker/internal/config"
	"aprendeai-extraction-worker/models"
)

// newTestStore connects to MONGO_TEST_URI and returns a store on a throwaway database.
func newTestStore(t *testing.T, batchSize int) (*MongoStore, *mongo.Database) {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, nil))

	dbName := fmt.Sprintf("extraction_test_%d", time.Now().UnixNano())
	db := client.Database(dbName)
	require.NoError(t, config.CreateIndexes(ctx, db))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	return NewMongoStore(client, dbName, batchSize), db
}

func makeChunks(n int, prefix string) []models.Chunk {
	chunks := make([]models.Chunk, n)
	for i := range chunks {
		chunks[i] = models.Chunk{ChunkIndex: i, Text: fmt.Sprintf("%s-%d", prefix, i), TokenEstimate: 1}
	}
	return chunks
}

func TestMongoStore_ClaimLifecycle(t *testing.T) {
	store, _ := newTestStore(t, 100)
	ctx := context.Background()

	claimed, err := store.ClaimExtraction(ctx, "c1", time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed, "missing row is claimable")

	claimed, err = store.ClaimExtraction(ctx, "c1", time.Hour)
	require.NoError(t, err)
	assert.False(t, claimed, "fresh RUNNING row is held")

	require.NoError(t, store.SetExtractionStatus(ctx, "c1", models.StatusDone, map[string]any{"outcome": "extracted"}))
	row, err := store.GetExtraction(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, row.Status)
	assert.Nil(t, row.RunningSince)
	assert.Equal(t, "extracted", row.Metadata["outcome"])

	claimed, err = store.ClaimExtraction(ctx, "c1", time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed, "DONE is claimable for re-extraction")
}

func TestMongoStore_StaleRunning(t *testing.T) {
	store, _ := newTestStore(t, 100)
	ctx := context.Background()

	past := time.Now().UTC().Add(-2 * time.Hour)
	store.now = func() time.Time { return past }
	claimed, err := store.ClaimExtraction(ctx, "c1", time.Hour)
	require.NoError(t, err)
	require.True(t, claimed)
	store.now = func() time.Time { return time.Now().UTC() }

	claimed, err = store.ClaimExtraction(ctx, "c1", time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed, "abandoned RUNNING row is reclaimed")

	store.now = func() time.Time { return past }
	_, err = store.ClaimExtraction(ctx, "c2", time.Hour)
	require.NoError(t, err)
	store.now = func() time.Time { return time.Now().UTC() }

	swept, err := store.FailStaleRunning(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)

	row, err := store.GetExtraction(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, row.Status)
	assert.Equal(t, models.ReasonStale, row.Metadata["reason"])
}

func TestMongoStore_LoadContentWithFile(t *testing.T) {
	store, db := newTestStore(t, 100)
	ctx := context.Background()

	_, err := db.Collection(config.CollectionFiles).InsertOne(ctx, bson.M{"_id": "f1", "storage_key": "c1/lesson.pdf", "mime_type": "application/pdf"})
	require.NoError(t, err)
	_, err = db.Collection(config.CollectionContents).InsertMany(ctx, []interface{}{
		bson.M{"_id": "c1", "type": "PDF", "file_id": "f1"},
		bson.M{"_id": "c2", "type": "DOCX"},
		bson.M{"_id": "c3", "type": "DOCX", "file_id": "gone"},
	})
	require.NoError(t, err)

	content, err := store.LoadContentWithFile(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, content.File)
	assert.Equal(t, models.ContentTypePDF, content.Type)
	assert.Equal(t, "c1/lesson.pdf", content.File.StorageKey)

	content, err = store.LoadContentWithFile(ctx, "c2")
	require.NoError(t, err)
	assert.Nil(t, content.File)

	content, err = store.LoadContentWithFile(ctx, "c3")
	require.NoError(t, err)
	assert.Nil(t, content.File)

	content, err = store.LoadContentWithFile(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, content)
}

func TestMongoStore_ReplaceChunks(t *testing.T) {
	store, db := newTestStore(t, 100)
	ctx := context.Background()

	_, err := store.ClaimExtraction(ctx, "c1", time.Hour)
	require.NoError(t, err)

	require.NoError(t, store.ReplaceChunks(ctx, "c1", makeChunks(250, "first")))
	chunks, err := store.ListChunks(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, chunks, 250)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
	}

	require.NoError(t, store.ReplaceChunks(ctx, "c1", makeChunks(2, "second")))
	chunks, err = store.ListChunks(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "second-0", chunks[0].Text)

	stored, err := db.Collection(config.CollectionChunks).CountDocuments(ctx, bson.M{"content_id": "c1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored, "previous generations are deleted")

	require.NoError(t, store.ReplaceChunks(ctx, "c1", nil))
	chunks, err = store.ListChunks(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestMongoStore_ReplaceChunksFailureKeepsPreviousSet(t *testing.T) {
	store, db := newTestStore(t, 2)
	ctx := context.Background()

	require.NoError(t, store.ReplaceChunks(ctx, "c1", makeChunks(3, "old")))

	// A duplicate index inside the second batch violates the unique index.
	broken := makeChunks(4, "new")
	broken[3].ChunkIndex = 2
	err := store.ReplaceChunks(ctx, "c1", broken)
	require.Error(t, err)

	chunks, err := store.ListChunks(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "old-0", chunks[0].Text)

	stored, err := db.Collection(config.CollectionChunks).CountDocuments(ctx, bson.M{"content_id": "c1"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored, "partial generation is discarded")
}

func TestMongoStore_StagedChunksHiddenUntilComplete(t *testing.T) {
	store, db := newTestStore(t, 100)
	ctx := context.Background()

	claimed, err := store.ClaimExtraction(ctx, "c1", time.Hour)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, store.ReplaceChunks(ctx, "c1", makeChunks(2, "old")))

	generation, err := store.StageChunks(ctx, "c1", makeChunks(3, "new"))
	require.NoError(t, err)
	require.NotEmpty(t, generation)

	chunks, err := store.ListChunks(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "old-0", chunks[0].Text)

	row, err := store.GetExtraction(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, row.Status)

	require.NoError(t, store.CompleteExtraction(ctx, "c1", generation, map[string]any{"outcome": models.OutcomeExtracted}))

	row, err = store.GetExtraction(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, row.Status)
	assert.Equal(t, generation, row.ChunkGeneration)
	assert.Nil(t, row.RunningSince)
	assert.Equal(t, models.OutcomeExtracted, row.Metadata["outcome"])

	chunks, err = store.ListChunks(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "new-0", chunks[0].Text)

	stored, err := db.Collection(config.CollectionChunks).CountDocuments(ctx, bson.M{"content_id": "c1"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored)
}

func TestMongoStore_FailStaleRunningIgnoresNonPositiveAge(t *testing.T) {
	store, _ := newTestStore(t, 100)
	ctx := context.Background()

	claimed, err := store.ClaimExtraction(ctx, "c1", time.Hour)
	require.NoError(t, err)
	require.True(t, claimed)

	for _, age := range []time.Duration{0, -time.Minute} {
		swept, err := store.FailStaleRunning(ctx, age)
		require.NoError(t, err)
		assert.Equal(t, int64(0), swept)
	}

	row, err := store.GetExtraction(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, row.Status)
}
