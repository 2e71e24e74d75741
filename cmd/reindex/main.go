package main

// Re-extract text for every stored document and rebuild the search index:
//   go run ./cmd/reindex

import (
	"context"
	"log"
	"os"

	"filefolio-backend/internal/bootstrap"
	"filefolio-backend/internal/shared/config"
)

func main() {
	cfg := config.Load()

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Printf("bootstrap error: %v", err)
		os.Exit(1)
	}
	if app.DB != nil {
		defer app.DB.Close()
	}

	count, err := app.DocumentsService.ReindexAll(context.Background())
	if err != nil {
		log.Printf("reindex failed: %v", err)
		os.Exit(1)
	}
	log.Printf("reindexed %d documents", count)
}
