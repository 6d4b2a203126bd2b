package activities

import (
	"context"
	"log/slog"

	"docrag/internal/config"
	"docrag/internal/ingest"
	"docrag/internal/providers"
	"docrag/internal/storage"
	"docrag/internal/util"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
)

// errTypeTerminal marks outcomes the queue must not re-dispatch: the pipeline
// has already written a terminal status for them.
const errTypeTerminal = "terminal"

type Activities struct {
	pipeline *ingest.Pipeline
}

func New(cfg config.Config, db *storage.DB, log *slog.Logger) (*Activities, error) {
	embedder, err := providers.EmbeddingFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	p := ingest.NewPipeline(
		storage.NewDocumentRepo(db),
		storage.NewChunkRepo(db),
		storage.NewFileStore(cfg.DataRoot),
		embedder,
		ingest.Options{
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
			EmbedBatch:   cfg.EmbedBatch,
			RatePerSec:   cfg.EmbedRatePerSec,
			Retry: ingest.RetryPolicy{
				MaxAttempts: cfg.RetryMaxAttempts,
				BaseDelay:   secondsToDuration(cfg.RetryBaseDelaySec),
				MaxDelay:    secondsToDuration(cfg.RetryMaxDelaySec),
			},
		},
		log,
	)
	p.SetHeartbeat(func(ctx context.Context, note string) {
		if activity.IsActivity(ctx) {
			activity.RecordHeartbeat(ctx, note)
		}
	})
	return &Activities{pipeline: p}, nil
}

// ProcessDocumentActivity runs the full pipeline for one document. Heartbeats
// between embedding batches keep the claim alive; a worker crash surfaces as
// a heartbeat timeout and the server re-dispatches the activity.
func (a *Activities) ProcessDocumentActivity(ctx context.Context, in ProcessDocumentInput) (ingest.Result, error) {
	res, err := a.pipeline.Process(ctx, in.DocumentID)
	if err != nil {
		if util.IsNotFound(err) || util.IsValidation(err) {
			return ingest.Result{}, temporal.NewNonRetryableApplicationError(err.Error(), errTypeTerminal, err)
		}
		return ingest.Result{}, err
	}
	return res, nil
}
