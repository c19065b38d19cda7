package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aprendeai-extraction-worker/internal/config"
	"aprendeai-extraction-worker/internal/database"
	"aprendeai-extraction-worker/internal/logger"
	"aprendeai-extraction-worker/internal/queue"
	"aprendeai-extraction-worker/internal/scheduler"
	"aprendeai-extraction-worker/internal/storage"
	"aprendeai-extraction-worker/internal/telemetry"
	"aprendeai-extraction-worker/models"
	"aprendeai-extraction-worker/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTELEnabled {
		shutdownTracer, err := telemetry.InitTracer(ctx, "aprendeai-extraction-worker", cfg.OTELEndpoint, cfg.AppEnv)
		if err != nil {
			logger.Warn("Tracing disabled", "error", err)
		} else {
			defer shutdownTracer()
		}

		shutdownMeter, err := telemetry.InitMeterProvider(ctx, "aprendeai-extraction-worker", cfg.OTELEndpoint, cfg.AppEnv)
		if err != nil {
			logger.Warn("Metric export disabled", "error", err)
		} else {
			defer shutdownMeter()
		}
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		logger.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	store := database.NewMongoStore(mongoClient, cfg.DBName, cfg.ChunkBatchSize)

	source, closeSource, err := openSource(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open file storage", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}

	extractionService := services.NewExtractionService(store, services.NewChunkingEngine(cfg.PDFChunkSize), services.ExtractionOptions{
		Timeout:    cfg.ExtractionTimeout,
		StaleAfter: cfg.StaleRunningAfter,
		Metrics:    metrics,
	})
	extractionService.RegisterExtractor(models.ContentTypePDF, services.NewPDFExtractor(source))
	extractionService.RegisterExtractor(models.ContentTypeDOCX, services.NewDOCXExtractor(source))
	extractionService.RegisterExtractor(models.ContentTypeImage, services.NewImageExtractor(cfg.OCREnabled, cfg.OCRProvider))

	sched := scheduler.NewScheduler()
	if err := scheduler.ScheduleStaleSweep(sched, store, cfg.StaleSweepInterval, cfg.StaleRunningAfter, metrics); err != nil {
		logger.Error("Failed to schedule stale sweep", "error", err)
		os.Exit(1)
	}
	sched.Start()

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		logger.Error("Invalid Redis configuration", "error", err)
		os.Exit(1)
	}
	redisOpt, err := queue.RedisConnOpt(cfg)
	if err != nil {
		logger.Error("Invalid Redis configuration", "error", err)
		os.Exit(1)
	}

	server := queue.NewServer(cfg, redisOpt, rdb, metrics)
	consumer := queue.NewExtractionConsumer(extractionService, cfg.RetryFailedJobs, cfg.MaxRedeliveries, metrics)

	started := true
	if err := server.Start(ctx, consumer); err != nil {
		if ctx.Err() == nil {
			logger.Error("Failed to start extraction consumer", "error", err)
		}
		started = false
	} else {
		logger.Info("Extraction worker running",
			"queue", cfg.QueueName,
			"storage", source.Name(),
			"ocr_enabled", cfg.OCREnabled,
		)
		<-ctx.Done()
	}

	logger.Info("Shutting down extraction worker...")

	if started {
		server.Shutdown()
	}
	sched.Stop()

	if err := rdb.Close(); err != nil {
		logger.Warn("Failed to close Redis client", "error", err)
	}
	if err := closeSource(); err != nil {
		logger.Warn("Failed to close file storage", "error", err)
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Close(closeCtx); err != nil {
		logger.Warn("Failed to disconnect from MongoDB", "error", err)
	}

	logger.Info("Extraction worker exited")
}

func openSource(ctx context.Context, cfg *config.Config) (storage.Source, func() error, error) {
	if cfg.StorageDriver == "gcs" {
		src, err := storage.NewGCSSource(ctx, cfg.GCSBucket, cfg.MaxFileSize)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	}

	return storage.NewLocalSource(cfg.FileStorageDir, cfg.MaxFileSize), func() error { return nil }, nil
}
