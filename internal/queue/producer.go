package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"aprendeai-extraction-worker/internal/config"
)

// Producer publishes extraction jobs onto the configured queue.
type Producer struct {
	client   *asynq.Client
	queue    string
	maxRetry int
	timeout  time.Duration
}

func NewProducer(redisOpt asynq.RedisConnOpt, cfg *config.Config) *Producer {
	return &Producer{
		client:   asynq.NewClient(redisOpt),
		queue:    cfg.QueueName,
		maxRetry: cfg.MaxRedeliveries,
		timeout:  TaskTimeout(cfg),
	}
}

// EnqueueExtraction publishes one EXTRACT_TEXT job for contentID.
func (p *Producer) EnqueueExtraction(ctx context.Context, contentID string) (*asynq.TaskInfo, error) {
	task, err := NewExtractTextTask(contentID, p.queue, p.maxRetry, p.timeout)
	if err != nil {
		return nil, err
	}

	info, err := p.client.EnqueueContext(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue extraction for %s: %w", contentID, err)
	}
	return info, nil
}

func (p *Producer) Close() error {
	return p.client.Close()
}

// TaskTimeout leaves the broker deadline one minute above the extractor
// deadline so the router can record the timeout itself.
func TaskTimeout(cfg *config.Config) time.Duration {
	if cfg.ExtractionTimeout <= 0 {
		return 0
	}
	return cfg.ExtractionTimeout + time.Minute
}
