package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"aprendeai-extraction-worker/internal/config"
	"aprendeai-extraction-worker/internal/queue"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/enqueue <contentId> [contentId...]")
		fmt.Println("Publishes one EXTRACT_TEXT job per content id.")
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	redisOpt, err := queue.RedisConnOpt(cfg)
	if err != nil {
		log.Fatalf("Invalid Redis configuration: %v", err)
	}

	producer := queue.NewProducer(redisOpt, cfg)

	failed := 0
	for _, contentID := range os.Args[1:] {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		info, err := producer.EnqueueExtraction(ctx, contentID)
		cancel()
		if err != nil {
			fmt.Printf("❌ %s: %v\n", contentID, err)
			failed++
			continue
		}
		fmt.Printf("✅ %s queued on %s (task %s)\n", contentID, info.Queue, info.ID)
	}

	if err := producer.Close(); err != nil {
		log.Printf("Failed to close queue client: %v", err)
	}

	if failed > 0 {
		os.Exit(1)
	}
}
