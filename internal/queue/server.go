package queue

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"aprendeai-extraction-worker/internal/config"
	"aprendeai-extraction-worker/internal/logger"
	"aprendeai-extraction-worker/internal/telemetry"
)

// RedisConnOpt converts REDIS_URL into asynq connection options. Full
// redis:// URLs are parsed, anything else is treated as host:port.
func RedisConnOpt(cfg *config.Config) (asynq.RedisConnOpt, error) {
	if cfg.IsRedisURL() {
		opt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		return opt, nil
	}

	return asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}

// workerConcurrency is fixed: each process handles one job at a time and
// throughput scales with the number of worker processes.
const workerConcurrency = 1

// Server consumes the extraction queue.
type Server struct {
	cfg     *config.Config
	srv     *asynq.Server
	rdb     *redis.Client
	metrics *telemetry.Metrics
}

// NewServer configures the consumer. rdb is only used to wait for the broker
// before the asynq server starts.
func NewServer(cfg *config.Config, redisOpt asynq.RedisConnOpt, rdb *redis.Client, metrics *telemetry.Metrics) *Server {
	srv := asynq.NewServer(redisOpt, serverConfig(cfg))
	return &Server{cfg: cfg, srv: srv, rdb: rdb, metrics: metrics}
}

func serverConfig(cfg *config.Config) asynq.Config {
	return asynq.Config{
		Concurrency: workerConcurrency,
		Queues: map[string]int{
			cfg.QueueName: 1,
		},
		Logger:          logger.NewAsynqLogger(),
		LogLevel:        asynq.InfoLevel,
		ShutdownTimeout: cfg.ShutdownTimeout,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Error("Task failed",
				"task_type", task.Type(),
				"retried", retried,
				"max_retry", maxRetry,
				"error", err,
			)
		}),
	}
}

// Start blocks until the broker answers, then starts consuming in the
// background. It returns early only when ctx is cancelled.
func (s *Server) Start(ctx context.Context, handler asynq.Handler) error {
	interval := s.cfg.BrokerRetryInterval
	err := config.WaitForRedis(ctx, s.rdb, interval, func(attempt int, err error) {
		logger.Warn("Broker unavailable, retrying",
			"attempt", attempt,
			"retry_in", interval.String(),
			"error", err,
		)
		s.metrics.RecordBrokerRetry(ctx)
	})
	if err != nil {
		return err
	}

	logger.Info("Starting extraction consumer",
		"queue", s.cfg.QueueName,
		"concurrency", workerConcurrency,
	)
	return s.srv.Start(handler)
}

// Shutdown stops fetching new tasks and waits up to ShutdownTimeout for the
// in-flight task before returning it to the queue.
func (s *Server) Shutdown() {
	s.srv.Shutdown()
}
