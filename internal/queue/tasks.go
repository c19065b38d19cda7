package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"aprendeai-extraction-worker/internal/logger"
	"aprendeai-extraction-worker/internal/telemetry"
	"aprendeai-extraction-worker/services"
)

const (
	TaskExtractText   = "content:extract_text"
	ActionExtractText = "EXTRACT_TEXT"
)

// ExtractionJob is the message body published by the content service.
type ExtractionJob struct {
	Action    string `json:"action"`
	ContentID string `json:"contentId"`
	Timestamp string `json:"timestamp"`
}

// Task creators
func NewExtractTextTask(contentID, queueName string, maxRetry int, timeout time.Duration) (*asynq.Task, error) {
	if contentID == "" {
		return nil, errors.New("content id is required")
	}

	payload, err := json.Marshal(ExtractionJob{
		Action:    ActionExtractText,
		ContentID: contentID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}

	opts := []asynq.Option{
		asynq.Queue(queueName),
		asynq.MaxRetry(maxRetry),
	}
	if timeout > 0 {
		opts = append(opts, asynq.Timeout(timeout))
	}

	return asynq.NewTask(TaskExtractText, payload, opts...), nil
}

// JobRunner executes one extraction job.
type JobRunner interface {
	Extract(ctx context.Context, contentID string) (*services.JobResult, error)
}

// ExtractionConsumer handles every task of the extraction queue. The returned
// error decides the broker outcome: nil acknowledges, asynq.SkipRetry archives
// without retry, any other error schedules a redelivery.
type ExtractionConsumer struct {
	runner          JobRunner
	retryFailed     bool
	maxRedeliveries int
	metrics         *telemetry.Metrics
}

func NewExtractionConsumer(runner JobRunner, retryFailed bool, maxRedeliveries int, metrics *telemetry.Metrics) *ExtractionConsumer {
	return &ExtractionConsumer{
		runner:          runner,
		retryFailed:     retryFailed,
		maxRedeliveries: maxRedeliveries,
		metrics:         metrics,
	}
}

func (c *ExtractionConsumer) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var job ExtractionJob
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		logger.Error("Dropping malformed extraction message", "task_type", t.Type(), "error", err)
		c.metrics.RecordDropped(ctx, "malformed")
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	if job.Action != ActionExtractText {
		logger.Warn("Ignoring message with unknown action", "action", job.Action, "content_id", job.ContentID)
		c.metrics.RecordDropped(ctx, "unknown_action")
		return nil
	}

	if job.ContentID == "" {
		logger.Error("Dropping extraction message without contentId", "task_type", t.Type())
		c.metrics.RecordDropped(ctx, "missing_content_id")
		return fmt.Errorf("missing contentId: %w", asynq.SkipRetry)
	}

	logger.Info("Processing extraction job", "content_id", job.ContentID, "queued_at", job.Timestamp)

	_, err := c.runner.Extract(ctx, job.ContentID)
	if err == nil {
		return nil
	}

	return c.resolveFailure(ctx, job.ContentID, err)
}

// resolveFailure turns a failed job into the broker outcome. Permanent causes
// are never redelivered; transient ones are redelivered until maxRedeliveries.
func (c *ExtractionConsumer) resolveFailure(ctx context.Context, contentID string, err error) error {
	if services.IsPermanent(err) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if !c.retryFailed {
		logger.Warn("Retry disabled, acknowledging failed job", "content_id", contentID, "error", err)
		return nil
	}

	retried, _ := asynq.GetRetryCount(ctx)
	if retried >= c.maxRedeliveries {
		logger.Warn("Redelivery limit reached, acknowledging failed job",
			"content_id", contentID,
			"redeliveries", retried,
			"error", err,
		)
		return nil
	}

	logger.Info("Requeueing failed job", "content_id", contentID, "redelivery", retried+1, "error", err)
	return err
}
