package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"aprendeai-extraction-worker/internal/storage"
	"aprendeai-extraction-worker/models"
)

type memSource struct {
	files map[string][]byte
	err   error
}

func (m *memSource) Fetch(_ context.Context, key string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	data, ok := m.files[key]
	if !ok {
		return nil, storage.ErrSourceNotFound
	}
	return data, nil
}

func (m *memSource) Name() string { return "memory" }

type statusWrite struct {
	status   models.ExtractionStatus
	metadata map[string]any
}

// fakeStore keeps extraction rows and chunk sets in memory.
type fakeStore struct {
	mu sync.Mutex

	contents    map[string]*models.Content
	extractions map[string]*models.ContentExtraction
	chunks      map[string][]models.Chunk
	writes      []statusWrite

	claimErr    error
	loadErr     error
	stageErr    error
	completeErr error

	staged     map[string][]models.Chunk
	stageCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		contents:    make(map[string]*models.Content),
		extractions: make(map[string]*models.ContentExtraction),
		chunks:      make(map[string][]models.Chunk),
		staged:      make(map[string][]models.Chunk),
	}
}

func (f *fakeStore) addContent(id string, contentType models.ContentType, file *models.File) {
	f.contents[id] = &models.Content{ID: id, Type: contentType, File: file}
}

func (f *fakeStore) ClaimExtraction(_ context.Context, contentID string, staleAfter time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return false, f.claimErr
	}

	row, ok := f.extractions[contentID]
	if ok && row.Status == models.StatusRunning {
		if row.RunningSince == nil || time.Since(*row.RunningSince) < staleAfter {
			return false, nil
		}
	}
	now := time.Now()
	if !ok {
		row = &models.ContentExtraction{ContentID: contentID, CreatedAt: now}
		f.extractions[contentID] = row
	}
	row.Status = models.StatusRunning
	row.RunningSince = &now
	row.UpdatedAt = now
	return true, nil
}

func (f *fakeStore) SetExtractionStatus(_ context.Context, contentID string, status models.ExtractionStatus, metadata map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	row, ok := f.extractions[contentID]
	if !ok {
		row = &models.ContentExtraction{ContentID: contentID, CreatedAt: time.Now()}
		f.extractions[contentID] = row
	}
	row.Status = status
	if metadata != nil {
		row.Metadata = metadata
	}
	if status != models.StatusRunning {
		row.RunningSince = nil
	}
	f.writes = append(f.writes, statusWrite{status: status, metadata: metadata})
	return nil
}

func (f *fakeStore) LoadContentWithFile(_ context.Context, contentID string) (*models.Content, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.contents[contentID], nil
}

func (f *fakeStore) ReplaceChunks(_ context.Context, contentID string, chunks []models.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks[contentID] = append([]models.Chunk(nil), chunks...)
	return nil
}

func (f *fakeStore) StageChunks(_ context.Context, contentID string, chunks []models.Chunk) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stageCalls++
	if f.stageErr != nil {
		return "", f.stageErr
	}
	generation := fmt.Sprintf("%s-gen-%d", contentID, f.stageCalls)
	f.staged[generation] = append([]models.Chunk(nil), chunks...)
	return generation, nil
}

func (f *fakeStore) CompleteExtraction(_ context.Context, contentID, generation string, metadata map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	staged := f.staged[generation]
	delete(f.staged, generation)
	if f.completeErr != nil {
		return f.completeErr
	}

	row, ok := f.extractions[contentID]
	if !ok {
		row = &models.ContentExtraction{ContentID: contentID, CreatedAt: time.Now()}
		f.extractions[contentID] = row
	}
	row.Status = models.StatusDone
	row.Metadata = metadata
	row.ChunkGeneration = generation
	row.RunningSince = nil
	f.chunks[contentID] = staged
	f.writes = append(f.writes, statusWrite{status: models.StatusDone, metadata: metadata})
	return nil
}

func (f *fakeStore) ListChunks(_ context.Context, contentID string) ([]models.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chunks[contentID], nil
}

func (f *fakeStore) GetExtraction(_ context.Context, contentID string) (*models.ContentExtraction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.extractions[contentID], nil
}

func (f *fakeStore) FailStaleRunning(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}

func (f *fakeStore) Close(_ context.Context) error { return nil }

type extractorFunc func(ctx context.Context, file *models.File) (*ExtractionResult, error)

func (fn extractorFunc) Extract(ctx context.Context, file *models.File) (*ExtractionResult, error) {
	return fn(ctx, file)
}
