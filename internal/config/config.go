package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI string
	DBName   string
	AppEnv   string

	// Broker (Redis) Configuration
	RedisURL            string
	RedisPassword       string
	RedisDB             int
	QueueName           string
	BrokerRetryInterval time.Duration
	ShutdownTimeout     time.Duration

	// Failure handling
	RetryFailedJobs bool
	MaxRedeliveries int

	// Source file storage
	StorageDriver  string // "local" (default) or "gcs"
	FileStorageDir string
	GCSBucket      string
	MaxFileSize    int64

	// OCR feature flags (image extractor is a stub either way)
	OCREnabled  bool
	OCRProvider string

	// Extraction and chunking
	ExtractionTimeout time.Duration
	PDFChunkSize      int
	ChunkBatchSize    int

	// Stale RUNNING sweep
	StaleRunningAfter  time.Duration
	StaleSweepInterval time.Duration

	// OpenTelemetry
	OTELEnabled  bool
	OTELEndpoint string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/aprendeai"),
		DBName:   getEnv("DB_NAME", "aprendeai"),
		AppEnv:   getEnv("APP_ENV", "development"),

		RedisURL:            getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		QueueName:           getEnv("QUEUE_NAME", "content_extraction"),
		BrokerRetryInterval: getEnvDuration("BROKER_RETRY_INTERVAL", 5*time.Second),
		ShutdownTimeout:     getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		RetryFailedJobs: getEnvBool("RETRY_FAILED_JOBS", true),
		MaxRedeliveries: getEnvInt("MAX_REDELIVERIES", 3),

		StorageDriver:  strings.ToLower(getEnv("STORAGE_DRIVER", "local")),
		FileStorageDir: getEnv("FILE_STORAGE_DIR", "./uploads"),
		GCSBucket:      getEnv("GCS_BUCKET", ""),
		MaxFileSize:    getEnvInt64("MAX_FILE_SIZE", 104857600), // 100MB

		OCREnabled:  getEnvBool("OCR_ENABLED", false),
		OCRProvider: getEnv("OCR_PROVIDER", "tesseract"),

		ExtractionTimeout: getEnvDuration("EXTRACTION_TIMEOUT", 2*time.Minute),
		PDFChunkSize:      getEnvInt("PDF_CHUNK_SIZE", 800),
		ChunkBatchSize:    getEnvInt("CHUNK_BATCH_SIZE", 100),

		StaleRunningAfter:  getEnvDuration("STALE_RUNNING_AFTER", 30*time.Minute),
		StaleSweepInterval: getEnvDuration("STALE_SWEEP_INTERVAL", 5*time.Minute),

		OTELEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the fields the worker cannot start without.
func (c *Config) Validate() error {
	if c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required - set it in .env file")
	}
	if c.QueueName == "" {
		return fmt.Errorf("QUEUE_NAME must not be empty")
	}
	if c.StaleRunningAfter <= 0 {
		return fmt.Errorf("STALE_RUNNING_AFTER must be positive, got %s", c.StaleRunningAfter)
	}
	// A live job must never look abandoned to the claim or the stale sweep.
	if c.ExtractionTimeout > 0 && c.StaleRunningAfter <= c.ExtractionTimeout+time.Minute {
		return fmt.Errorf("STALE_RUNNING_AFTER (%s) must exceed EXTRACTION_TIMEOUT (%s) plus one minute",
			c.StaleRunningAfter, c.ExtractionTimeout)
	}
	if c.PDFChunkSize < 1 {
		return fmt.Errorf("PDF_CHUNK_SIZE must be positive, got %d", c.PDFChunkSize)
	}
	if c.ChunkBatchSize < 1 {
		return fmt.Errorf("CHUNK_BATCH_SIZE must be positive, got %d", c.ChunkBatchSize)
	}
	switch c.StorageDriver {
	case "local":
	case "gcs":
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required when STORAGE_DRIVER=gcs")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q (want local or gcs)", c.StorageDriver)
	}
	return nil
}

// IsDevelopment reports whether debug logging should be enabled.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "dev"
}
