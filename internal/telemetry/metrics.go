package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the worker's instruments. Without a configured MeterProvider
// the global no-op meter is used, so recording is always safe.
type Metrics struct {
	JobsProcessed   metric.Int64Counter
	JobDuration     metric.Float64Histogram
	ChunksWritten   metric.Int64Counter
	MessagesDropped metric.Int64Counter
	BrokerRetries   metric.Int64Counter
	StaleSwept      metric.Int64Counter
}

// InitMetrics initializes all worker metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("aprendeai-extraction-worker")

	jobsProcessed, err := meter.Int64Counter(
		"extraction.jobs.total",
		metric.WithDescription("Extraction jobs by final status"),
	)
	if err != nil {
		return nil, err
	}

	jobDuration, err := meter.Float64Histogram(
		"extraction.job.duration",
		metric.WithDescription("Extraction job duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	chunksWritten, err := meter.Int64Counter(
		"extraction.chunks.written",
		metric.WithDescription("Chunks persisted by successful extractions"),
	)
	if err != nil {
		return nil, err
	}

	messagesDropped, err := meter.Int64Counter(
		"extraction.messages.dropped",
		metric.WithDescription("Queue messages acknowledged without processing"),
	)
	if err != nil {
		return nil, err
	}

	brokerRetries, err := meter.Int64Counter(
		"extraction.broker.connect_retries",
		metric.WithDescription("Failed broker connection attempts"),
	)
	if err != nil {
		return nil, err
	}

	staleSwept, err := meter.Int64Counter(
		"extraction.stale.swept",
		metric.WithDescription("RUNNING extractions marked FAILED by the stale sweep"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		JobsProcessed:   jobsProcessed,
		JobDuration:     jobDuration,
		ChunksWritten:   chunksWritten,
		MessagesDropped: messagesDropped,
		BrokerRetries:   brokerRetries,
		StaleSwept:      staleSwept,
	}, nil
}

// RecordJob records one finished extraction job
func (m *Metrics) RecordJob(ctx context.Context, contentType, status, outcome string, seconds float64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("content.type", contentType),
		attribute.String("extraction.status", status),
		attribute.String("extraction.outcome", outcome),
	}

	m.JobsProcessed.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.JobDuration.Record(ctx, seconds, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordChunks(ctx context.Context, contentType string, count int) {
	if m == nil {
		return
	}
	m.ChunksWritten.Add(ctx, int64(count), metric.WithAttributes(attribute.String("content.type", contentType)))
}

func (m *Metrics) RecordDropped(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.MessagesDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) RecordBrokerRetry(ctx context.Context) {
	if m == nil {
		return
	}
	m.BrokerRetries.Add(ctx, 1)
}

func (m *Metrics) RecordStaleSwept(ctx context.Context, count int64) {
	if m == nil || count == 0 {
		return
	}
	m.StaleSwept.Add(ctx, count)
}
