package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"docrag/internal/api"
	"docrag/internal/config"
	"docrag/internal/providers"
	"docrag/internal/search"
	"docrag/internal/storage"

	"github.com/joho/godotenv"
	tclient "go.temporal.io/sdk/client"
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

	embedder, err := providers.EmbeddingFromConfig(cfg)
	if err != nil {
		log.Fatalf("embedding provider: %v", err)
	}
	llm, err := providers.LLMFromConfig(cfg)
	if err != nil {
		log.Fatalf("llm provider: %v", err)
	}

	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatalf("temporal: %v", err)
	}
	defer tc.Close()

	engine := search.NewEngine(
		storage.NewSearchRepo(db),
		storage.NewSearchLogRepo(db),
		embedder,
		cfg.LexicalWeight, cfg.VectorWeight,
		logger,
	)

	srv := api.NewServer(cfg, db, engine, llm, tc, logger)
	logger.Info("api listening", "addr", cfg.APIAddr)
	if err := http.ListenAndServe(cfg.APIAddr, srv.Routes()); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
