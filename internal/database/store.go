package database

import (
	"context"
	"time"

	"aprendeai-extraction-worker/models"
)

// Store is the persistence port of the extraction worker. The worker is the
// only writer of extraction rows and chunks; the rest of the application reads them.
type Store interface {
	// ClaimExtraction atomically moves the extraction row to RUNNING when no
	// other live run holds it. A RUNNING row older than staleAfter counts as
	// abandoned and can be claimed. Returns false when the claim was lost.
	ClaimExtraction(ctx context.Context, contentID string, staleAfter time.Duration) (bool, error)

	// SetExtractionStatus upserts the status; nil metadata leaves the stored metadata untouched.
	SetExtractionStatus(ctx context.Context, contentID string, status models.ExtractionStatus, metadata map[string]any) error

	// LoadContentWithFile returns nil, nil when the content does not exist.
	// Content.File is nil when the content has no (resolvable) file.
	LoadContentWithFile(ctx context.Context, contentID string) (*models.Content, error)

	// ReplaceChunks makes chunks the complete chunk set of the content.
	ReplaceChunks(ctx context.Context, contentID string, chunks []models.Chunk) error

	// StageChunks stores chunks under a new generation that readers do not
	// see yet and returns the generation id.
	StageChunks(ctx context.Context, contentID string, chunks []models.Chunk) (string, error)

	// CompleteExtraction sets DONE with metadata and makes generation the
	// current chunk set in a single update. On failure the staged generation
	// is discarded and the previous chunk set stays current.
	CompleteExtraction(ctx context.Context, contentID, generation string, metadata map[string]any) error

	ListChunks(ctx context.Context, contentID string) ([]models.Chunk, error)
	GetExtraction(ctx context.Context, contentID string) (*models.ContentExtraction, error)

	// FailStaleRunning marks RUNNING rows older than olderThan as FAILED.
	// A non-positive olderThan is a no-op.
	FailStaleRunning(ctx context.Context, olderThan time.Duration) (int64, error)

	Close(ctx context.Context) error
}
