package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"aprendeai-extraction-worker/internal/config"
	"aprendeai-extraction-worker/internal/database"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/migrate <command>")
		fmt.Println("Commands:")
		fmt.Println("  ensure-indexes       - Create the extraction and chunk indexes")
		fmt.Println("  status <contentId>   - Show extraction status and current chunks of a content")
		os.Exit(1)
	}

	command := os.Args[1]

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to MongoDB (indexes are ensured on connect)
	client, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	store := database.NewMongoStore(client, cfg.DBName, cfg.ChunkBatchSize)
	defer store.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch command {
	case "ensure-indexes":
		if err := config.CreateIndexes(ctx, client.Database(cfg.DBName)); err != nil {
			log.Fatalf("Index creation failed: %v", err)
		}
		fmt.Println("✅ Indexes are in place")

	case "status":
		if len(os.Args) < 3 {
			log.Fatal("status requires a content id")
		}
		if err := printStatus(ctx, store, os.Args[2]); err != nil {
			log.Fatalf("Status lookup failed: %v", err)
		}

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func printStatus(ctx context.Context, store database.Store, contentID string) error {
	extraction, err := store.GetExtraction(ctx, contentID)
	if err != nil {
		return err
	}
	if extraction == nil {
		fmt.Printf("No extraction recorded for %s\n", contentID)
		return nil
	}

	fmt.Printf("Content:    %s\n", extraction.ContentID)
	fmt.Printf("Status:     %s\n", extraction.Status)
	fmt.Printf("Updated:    %s\n", extraction.UpdatedAt.Format(time.RFC3339))
	if extraction.ChunkGeneration != "" {
		fmt.Printf("Generation: %s\n", extraction.ChunkGeneration)
	}

	if len(extraction.Metadata) > 0 {
		metadata, err := json.MarshalIndent(extraction.Metadata, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %v", err)
		}
		fmt.Printf("Metadata:\n%s\n", metadata)
	}

	chunks, err := store.ListChunks(ctx, contentID)
	if err != nil {
		return err
	}
	fmt.Printf("Chunks:     %d\n", len(chunks))
	for _, chunk := range chunks {
		preview := []rune(chunk.Text)
		if len(preview) > 60 {
			preview = preview[:60]
		}
		fmt.Printf("  #%d (%d tokens) %q\n", chunk.ChunkIndex, chunk.TokenEstimate, string(preview))
	}

	return nil
}
