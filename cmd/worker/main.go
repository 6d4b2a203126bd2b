package main

import (
	"context"
	"log"
	"time"

	"docrag/internal/activities"
	"docrag/internal/config"
	"docrag/internal/storage"
	"docrag/internal/workflows"

	"github.com/joho/godotenv"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()
	if err := db.InitSchema(ctx, cfg.EmbedDim); err != nil {
		log.Fatalf("schema: %v", err)
	}

	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatalf("temporal: %v", err)
	}
	defer tc.Close()

	acts, err := activities.New(cfg, db, logger)
	if err != nil {
		log.Fatalf("activities: %v", err)
	}

	w := worker.New(tc, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, acts)

	logger.Info("worker starting", "task_queue", cfg.TemporalTaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
