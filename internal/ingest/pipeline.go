// Package ingest runs the per-document ingestion pipeline: extract, chunk,
// embed, persist, with explicit status transitions along the way.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"docrag/internal/chunker"
	"docrag/internal/extract"
	"docrag/internal/models"
	"docrag/internal/providers"
	"docrag/internal/storage"
	"docrag/internal/util"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type DocumentStore interface {
	Get(ctx context.Context, documentID string) (models.Document, error)
	MarkProcessing(ctx context.Context, documentID string) error
	MarkCompleted(ctx context.Context, documentID string, chunkCount int) error
	MarkFailed(ctx context.Context, documentID, reason string) error
}

type ChunkStore interface {
	ReplaceChunks(ctx context.Context, documentID string, chunks []storage.ChunkRecord) error
}

type RawStore interface {
	Read(ctx context.Context, collectionID, filename string) ([]byte, error)
}

type Options struct {
	ChunkSize    int
	ChunkOverlap int
	EmbedBatch   int
	Retry        RetryPolicy
	// RatePerSec throttles embedding batch calls across the whole worker.
	RatePerSec float64
}

// Result is the terminal outcome of one pipeline run. Terminal failures
// (extraction errors, exhausted provider retries) are reported here with a
// nil error; a non-nil error means the run should be redelivered.
type Result struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
	FailReason string `json:"fail_reason,omitempty"`
}

type Pipeline struct {
	docs     DocumentStore
	chunks   ChunkStore
	raw      RawStore
	embedder providers.EmbeddingProvider
	limiter  *rate.Limiter
	opts     Options
	log      *slog.Logger

	// heartbeat extends the worker's claim on the document; nil outside a
	// durable-queue context.
	heartbeat func(ctx context.Context, note string)
}

func NewPipeline(docs DocumentStore, chunks ChunkStore, raw RawStore, embedder providers.EmbeddingProvider, opts Options, log *slog.Logger) *Pipeline {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = chunker.DefaultChunkSize
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = chunker.DefaultOverlap
	}
	if opts.EmbedBatch <= 0 {
		opts.EmbedBatch = 16
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	var limiter *rate.Limiter
	if opts.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), 1)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		docs:     docs,
		chunks:   chunks,
		raw:      raw,
		embedder: embedder,
		limiter:  limiter,
		opts:     opts,
		log:      log,
	}
}

// SetHeartbeat installs the claim-extension hook called between embedding
// batches.
func (p *Pipeline) SetHeartbeat(fn func(ctx context.Context, note string)) {
	p.heartbeat = fn
}

func (p *Pipeline) Process(ctx context.Context, documentID string) (Result, error) {
	doc, err := p.docs.Get(ctx, documentID)
	if err != nil {
		return Result{}, err
	}
	if err := p.docs.MarkProcessing(ctx, documentID); err != nil {
		return Result{}, err
	}
	p.log.Info("ingestion started", "document_id", documentID, "filename", doc.Filename)

	data, err := p.raw.Read(ctx, doc.CollectionID, doc.Filename)
	if err != nil {
		return p.fail(ctx, documentID, fmt.Sprintf("read raw document: %v", err))
	}
	// The raw store is shared and files can be replaced out of band; refuse
	// to ingest bytes that no longer match what was uploaded.
	if doc.ContentHash != "" {
		if got := util.SHA256Hex(data); got != doc.ContentHash {
			return p.fail(ctx, documentID, fmt.Sprintf("content hash mismatch: stored %s, raw file %s", doc.ContentHash, got))
		}
	}

	text, err := extract.Extract(doc.Filename, doc.ContentType, data)
	if err != nil {
		if util.IsExtraction(err) {
			return p.fail(ctx, documentID, err.Error())
		}
		return Result{}, err
	}

	parts, err := chunker.Chunk(text, p.opts.ChunkSize, p.opts.ChunkOverlap)
	if err != nil {
		return p.fail(ctx, documentID, err.Error())
	}
	if len(parts) == 0 {
		return p.fail(ctx, documentID, util.ErrNoExtractableText.Error())
	}

	vectors, err := p.embedAll(ctx, documentID, parts)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled mid-embed: leave the document claimed for redelivery.
			return Result{}, ctx.Err()
		}
		return p.fail(ctx, documentID, fmt.Sprintf("embedding failed: %v", err))
	}

	records := make([]storage.ChunkRecord, 0, len(parts))
	for i, content := range parts {
		lit := storage.ToLiteral(vectors[i])
		records = append(records, storage.ChunkRecord{
			ChunkID:         uuid.NewString(),
			DocumentID:      documentID,
			CollectionID:    doc.CollectionID,
			ChunkIndex:      i,
			Content:         content,
			CharCount:       len([]rune(content)),
			EmbeddingVector: &lit,
		})
	}
	if err := p.chunks.ReplaceChunks(ctx, documentID, records); err != nil {
		_ = p.docs.MarkFailed(ctx, documentID, fmt.Sprintf("persist chunks: %v", err))
		return Result{}, err
	}
	if err := p.docs.MarkCompleted(ctx, documentID, len(records)); err != nil {
		return Result{}, err
	}
	p.log.Info("ingestion completed", "document_id", documentID, "chunks", len(records))
	return Result{DocumentID: documentID, Status: models.StatusCompleted, ChunkCount: len(records)}, nil
}

// embedAll embeds parts in batches, throttled and retried per policy.
func (p *Pipeline) embedAll(ctx context.Context, documentID string, parts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(parts))
	total := (len(parts) + p.opts.EmbedBatch - 1) / p.opts.EmbedBatch
	for b := 0; b*p.opts.EmbedBatch < len(parts); b++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lo := b * p.opts.EmbedBatch
		hi := lo + p.opts.EmbedBatch
		if hi > len(parts) {
			hi = len(parts)
		}
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		vecs, err := p.embedWithRetry(ctx, parts[lo:hi])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
		if p.heartbeat != nil {
			p.heartbeat(ctx, fmt.Sprintf("%s batch %d/%d", documentID, b+1, total))
		}
	}
	return out, nil
}

func (p *Pipeline) embedWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < p.opts.Retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, p.opts.Retry.Delay(attempt-1)); err != nil {
				return nil, err
			}
		}
		vecs, err := p.embedder.EmbedBatch(ctx, batch)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		if !retryable(err) {
			return nil, err
		}
		p.log.Warn("embedding attempt failed", "attempt", attempt+1, "max", p.opts.Retry.MaxAttempts, "error", err)
	}
	return nil, fmt.Errorf("exhausted %d embedding attempts: %w", p.opts.Retry.MaxAttempts, lastErr)
}

func retryable(err error) bool {
	if util.IsRetryableProvider(err) {
		return true
	}
	if util.IsValidation(err) {
		return false
	}
	return providers.ClassifyError(err).Retryable()
}

func (p *Pipeline) fail(ctx context.Context, documentID, reason string) (Result, error) {
	p.log.Warn("ingestion failed", "document_id", documentID, "reason", reason)
	if err := p.docs.MarkFailed(ctx, documentID, reason); err != nil {
		return Result{}, err
	}
	return Result{DocumentID: documentID, Status: models.StatusFailed, FailReason: reason}, nil
}
