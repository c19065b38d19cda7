package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"aprendeai-extraction-worker/internal/database"
	"aprendeai-extraction-worker/internal/logger"
	"aprendeai-extraction-worker/internal/telemetry"
	"aprendeai-extraction-worker/models"
)

var (
	ErrContentNotFound   = errors.New("content not found")
	ErrFileMissing       = errors.New("content has no associated file")
	ErrUnsupportedType   = errors.New("unsupported content type")
	ErrExtractionTimeout = errors.New("extraction timed out")
	ErrPersistence       = errors.New("persistence failure")
	ErrExtractorPanic    = errors.New("extraction panicked")
)

// failureWriteTimeout bounds the FAILED write issued after the job context may already be gone.
const failureWriteTimeout = 10 * time.Second

// IsPermanent reports whether a job failure will fail the same way when redelivered.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrContentNotFound) ||
		errors.Is(err, ErrFileMissing) ||
		errors.Is(err, ErrUnsupportedType)
}

// FailureReason maps a job error to the metadata["reason"] value of a FAILED row.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrContentNotFound):
		return models.ReasonContentNotFound
	case errors.Is(err, ErrFileMissing):
		return models.ReasonFileMissing
	case errors.Is(err, ErrUnsupportedType):
		return models.ReasonUnsupportedType
	case errors.Is(err, ErrExtractionTimeout):
		return models.ReasonTimeout
	case errors.Is(err, ErrExtractorPanic):
		return models.ReasonPanic
	case errors.Is(err, context.Canceled):
		return models.ReasonCancelled
	case errors.Is(err, ErrPersistence):
		return models.ReasonPersistence
	default:
		return "extractor_error"
	}
}

// JobResult describes how one extraction job ended.
type JobResult struct {
	ContentID  string
	Skipped    bool
	Status     models.ExtractionStatus
	Outcome    string
	Reason     string
	ChunkCount int
	Metadata   map[string]any
}

// ExtractionOptions configures the router.
type ExtractionOptions struct {
	// Timeout bounds a single extractor call. Zero disables the deadline.
	Timeout time.Duration
	// StaleAfter is the age after which a RUNNING row may be claimed again.
	StaleAfter time.Duration
	Metrics    *telemetry.Metrics
}

// ExtractionService drives one content through PENDING -> RUNNING -> DONE/FAILED.
type ExtractionService struct {
	store      database.Store
	chunker    *ChunkingEngine
	extractors map[models.ContentType]Extractor
	timeout    time.Duration
	staleAfter time.Duration
	metrics    *telemetry.Metrics
	tracer     trace.Tracer
	now        func() time.Time
}

// NewExtractionService creates the extraction router. Extractors are added with RegisterExtractor.
func NewExtractionService(store database.Store, chunker *ChunkingEngine, opts ExtractionOptions) *ExtractionService {
	if chunker == nil {
		chunker = NewChunkingEngine(DefaultPDFChunkSize)
	}
	return &ExtractionService{
		store:      store,
		chunker:    chunker,
		extractors: make(map[models.ContentType]Extractor),
		timeout:    opts.Timeout,
		staleAfter: opts.StaleAfter,
		metrics:    opts.Metrics,
		tracer:     otel.Tracer("extraction-router"),
		now:        time.Now,
	}
}

// RegisterExtractor binds an extractor to a content type, replacing any previous one.
func (s *ExtractionService) RegisterExtractor(contentType models.ContentType, extractor Extractor) {
	s.extractors[contentType] = extractor
}

// Extract runs a single extraction job for contentID.
//
// A lost claim returns a skipped result and nil error. A failed job returns
// the FAILED result together with the cause; the FAILED row has already been
// written at that point. Errors from the claim itself are returned with a nil result.
func (s *ExtractionService) Extract(ctx context.Context, contentID string) (*JobResult, error) {
	ctx, span := s.tracer.Start(ctx, "extraction.job",
		trace.WithAttributes(attribute.String("content.id", contentID)))
	defer span.End()

	started := s.now()

	claimed, err := s.store.ClaimExtraction(ctx, contentID, s.staleAfter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "claim failed")
		return nil, fmt.Errorf("%w: claim extraction: %w", ErrPersistence, err)
	}
	if !claimed {
		logger.Info("Extraction already in progress, skipping", "content_id", contentID)
		span.SetAttributes(attribute.Bool("extraction.skipped", true))
		return &JobResult{ContentID: contentID, Skipped: true}, nil
	}

	contentType := "unknown"
	result, err := s.process(ctx, contentID, &contentType, started)
	span.SetAttributes(attribute.String("content.type", contentType))

	if err != nil {
		reason := FailureReason(err)
		metadata := map[string]any{
			"error":     err.Error(),
			"reason":    reason,
			"timestamp": s.now().UTC().Format(time.RFC3339),
		}

		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
		defer cancel()
		if setErr := s.store.SetExtractionStatus(writeCtx, contentID, models.StatusFailed, metadata); setErr != nil {
			logger.Error("Failed to record FAILED status", "content_id", contentID, "error", setErr)
		}

		logger.Error("Extraction failed", "content_id", contentID, "content_type", contentType, "reason", reason, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		s.metrics.RecordJob(ctx, contentType, string(models.StatusFailed), reason, s.now().Sub(started).Seconds())

		return &JobResult{
			ContentID: contentID,
			Status:    models.StatusFailed,
			Reason:    reason,
			Metadata:  metadata,
		}, err
	}

	span.SetAttributes(
		attribute.String("extraction.outcome", result.Outcome),
		attribute.Int("extraction.chunks", result.ChunkCount),
	)
	s.metrics.RecordJob(ctx, contentType, string(models.StatusDone), result.Outcome, s.now().Sub(started).Seconds())
	s.metrics.RecordChunks(ctx, contentType, result.ChunkCount)

	logger.Info("Extraction completed",
		"content_id", contentID,
		"content_type", contentType,
		"outcome", result.Outcome,
		"chunks", result.ChunkCount,
	)

	return result, nil
}

func (s *ExtractionService) process(ctx context.Context, contentID string, contentType *string, started time.Time) (result *JobResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: %v", ErrExtractorPanic, r)
		}
	}()

	content, err := s.store.LoadContentWithFile(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("%w: load content: %w", ErrPersistence, err)
	}
	if content == nil {
		return nil, fmt.Errorf("%w: %s", ErrContentNotFound, contentID)
	}
	*contentType = string(content.Type)
	if content.File == nil {
		return nil, fmt.Errorf("%w: %s", ErrFileMissing, contentID)
	}

	extractor, ok := s.extractors[content.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, content.Type)
	}

	extracted, err := s.runExtractor(ctx, extractor, content.File)
	if err != nil {
		return nil, err
	}

	metadata := make(map[string]any, len(extracted.Metadata)+4)
	for k, v := range extracted.Metadata {
		metadata[k] = v
	}

	outcome, _ := metadata["outcome"].(string)
	if outcome == "" {
		outcome = models.OutcomeExtracted
		if extracted.Text == "" {
			outcome = models.OutcomeEmptyText
		}
	}

	chunks := s.chunker.Chunk(content.Type, extracted.Text, metadata)
	generation, err := s.store.StageChunks(ctx, contentID, chunks)
	if err != nil {
		return nil, fmt.Errorf("%w: stage chunks: %w", ErrPersistence, err)
	}

	metadata["outcome"] = outcome
	metadata["chunkCount"] = len(chunks)
	metadata["durationMs"] = s.now().Sub(started).Milliseconds()

	// Readers switch to the new chunks only together with DONE.
	if err := s.store.CompleteExtraction(ctx, contentID, generation, metadata); err != nil {
		return nil, fmt.Errorf("%w: set DONE: %w", ErrPersistence, err)
	}

	return &JobResult{
		ContentID:  contentID,
		Status:     models.StatusDone,
		Outcome:    outcome,
		ChunkCount: len(chunks),
		Metadata:   metadata,
	}, nil
}

type extractorOutput struct {
	result *ExtractionResult
	err    error
}

// runExtractor calls the extractor under the configured deadline. Parsers do
// not observe the context, so the call runs on its own goroutine and is
// abandoned when the deadline fires.
func (s *ExtractionService) runExtractor(ctx context.Context, extractor Extractor, file *models.File) (*ExtractionResult, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	done := make(chan extractorOutput, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- extractorOutput{err: fmt.Errorf("%w: %v", ErrExtractorPanic, r)}
			}
		}()
		result, err := extractor.Extract(ctx, file)
		done <- extractorOutput{result: result, err: err}
	}()

	var out extractorOutput
	select {
	case out = <-done:
	case <-ctx.Done():
		out.err = ctx.Err()
	}

	if out.err != nil {
		if errors.Is(out.err, context.DeadlineExceeded) && s.timeout > 0 {
			return nil, fmt.Errorf("%w after %s", ErrExtractionTimeout, s.timeout)
		}
		return nil, out.err
	}
	if out.result == nil {
		return &ExtractionResult{}, nil
	}
	return out.result, nil
}
