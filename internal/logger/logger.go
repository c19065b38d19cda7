package logger

import (
	"fmt"
	"log/slog"
	"os"

	"aprendeai-extraction-worker/internal/config"
)

var Logger *slog.Logger

// InitLogger initializes structured logging based on configuration
func InitLogger(cfg *config.Config) {
	level := slog.LevelInfo
	if cfg.IsDevelopment() {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.IsDevelopment(), // Only add source in development
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	Logger = slog.New(handler).With("service", "extraction-worker")

	Logger.Info("Structured logging initialized", "level", level.String(), "env", cfg.AppEnv)
}

// Helper functions for common log operations
func Info(msg string, args ...any) {
	if Logger != nil {
		Logger.Info(msg, args...)
	}
}

func Error(msg string, args ...any) {
	if Logger != nil {
		Logger.Error(msg, args...)
	}
}

func Debug(msg string, args ...any) {
	if Logger != nil {
		Logger.Debug(msg, args...)
	}
}

func Warn(msg string, args ...any) {
	if Logger != nil {
		Logger.Warn(msg, args...)
	}
}

// AsynqLogger routes the queue library's internal logs through slog.
type AsynqLogger struct{}

func NewAsynqLogger() *AsynqLogger {
	return &AsynqLogger{}
}

func (AsynqLogger) Debug(args ...interface{}) { Debug(fmt.Sprint(args...), "component", "asynq") }
func (AsynqLogger) Info(args ...interface{})  { Info(fmt.Sprint(args...), "component", "asynq") }
func (AsynqLogger) Warn(args ...interface{})  { Warn(fmt.Sprint(args...), "component", "asynq") }
func (AsynqLogger) Error(args ...interface{}) { Error(fmt.Sprint(args...), "component", "asynq") }

func (AsynqLogger) Fatal(args ...interface{}) {
	Error(fmt.Sprint(args...), "component", "asynq", "fatal", true)
	os.Exit(1)
}
