package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/sony/gobreaker"

	"aprendeai-extraction-worker/internal/logger"
)

// GCSSource downloads uploads from a Cloud Storage bucket. Downloads go
// through a circuit breaker so an unavailable bucket fails jobs fast.
type GCSSource struct {
	client  *gcs.Client
	bucket  string
	maxSize int64
	breaker *gobreaker.CircuitBreaker
}

func NewGCSSource(ctx context.Context, bucket string, maxSize int64) (*GCSSource, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GCSDownload",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		// Missing or oversized objects are answers, not outages.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrSourceNotFound) || errors.Is(err, ErrTooLarge)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &GCSSource{client: client, bucket: bucket, maxSize: maxSize, breaker: breaker}, nil
}

func (s *GCSSource) Name() string {
	return "gcs"
}

func (s *GCSSource) Fetch(ctx context.Context, storageKey string) ([]byte, error) {
	if storageKey == "" {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidKey)
	}

	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.download(ctx, storageKey)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("storage temporarily unavailable: %w", err)
		}
		return nil, err
	}
	return result.([]byte), nil
}

func (s *GCSSource) download(ctx context.Context, storageKey string) ([]byte, error) {
	reader, err := s.client.Bucket(s.bucket).Object(storageKey).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, ErrSourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", s.bucket, storageKey, err)
	}
	defer reader.Close()

	if s.maxSize > 0 && reader.Attrs.Size > s.maxSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, reader.Attrs.Size, s.maxSize)
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to download gs://%s/%s: %w", s.bucket, storageKey, err)
	}
	return content, nil
}

func (s *GCSSource) Close() error {
	return s.client.Close()
}
