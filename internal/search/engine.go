// Package search implements lexical, vector and fused retrieval over
// ingested chunks, plus context assembly for RAG prompts.
package search

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"docrag/internal/models"
	"docrag/internal/providers"
	"docrag/internal/util"
)

type Mode string

const (
	ModeLexical Mode = "lexical"
	ModeVector  Mode = "vector"
	ModeHybrid  Mode = "hybrid"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100

	DefaultLexicalWeight = 0.3
	DefaultVectorWeight  = 0.7

	// weightTolerance is how far the two weights may drift from summing to 1.
	weightTolerance = 0.01
)

type Request struct {
	Query         string  `json:"query"`
	CollectionID  string  `json:"collection_id,omitempty"`
	Mode          Mode    `json:"mode,omitempty"`
	Limit         int     `json:"limit,omitempty"`
	LexicalWeight float64 `json:"lexical_weight,omitempty"`
	VectorWeight  float64 `json:"vector_weight,omitempty"`
}

// ChunkSearcher runs the two branch queries. The collection filter is pushed
// into the store so it applies before fusion, never after.
type ChunkSearcher interface {
	Lexical(ctx context.Context, query, collectionID string, limit int) ([]models.SearchResult, error)
	Vector(ctx context.Context, queryVec []float32, collectionID string, limit int) ([]models.SearchResult, error)
}

type LogStore interface {
	Insert(ctx context.Context, log models.SearchLog) error
	Suggestions(ctx context.Context, prefix string, limit int) ([]string, error)
	Analytics(ctx context.Context, since time.Time) (models.SearchAnalytics, error)
}

type Engine struct {
	store    ChunkSearcher
	logs     LogStore
	embedder providers.EmbeddingProvider
	lexW     float64
	vecW     float64
	log      *slog.Logger
}

func NewEngine(store ChunkSearcher, logs LogStore, embedder providers.EmbeddingProvider, lexW, vecW float64, logger *slog.Logger) *Engine {
	if lexW == 0 && vecW == 0 {
		lexW, vecW = DefaultLexicalWeight, DefaultVectorWeight
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, logs: logs, embedder: embedder, lexW: lexW, vecW: vecW, log: logger}
}

// Search validates the request, runs the selected mode and records an audit
// row. Audit failures are logged and swallowed: search never fails because of
// its own trail.
func (e *Engine) Search(ctx context.Context, req Request) (results []models.SearchResult, err error) {
	start := time.Now()
	defer func() {
		e.audit(ctx, req, len(results), time.Since(start), err)
	}()

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return nil, util.Invalidf("query", "must not be empty")
	}
	if req.Mode == "" {
		req.Mode = ModeHybrid
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	lexW, vecW, err := e.resolveWeights(req)
	if err != nil {
		return nil, err
	}

	switch req.Mode {
	case ModeLexical:
		return e.store.Lexical(ctx, req.Query, req.CollectionID, req.Limit)
	case ModeVector:
		vec, err := e.embedder.Embed(ctx, req.Query)
		if err != nil {
			return nil, err
		}
		return e.store.Vector(ctx, vec, req.CollectionID, req.Limit)
	case ModeHybrid:
		lex, err := e.store.Lexical(ctx, req.Query, req.CollectionID, req.Limit)
		if err != nil {
			return nil, err
		}
		vec, err := e.embedder.Embed(ctx, req.Query)
		if err != nil {
			return nil, err
		}
		sem, err := e.store.Vector(ctx, vec, req.CollectionID, req.Limit)
		if err != nil {
			return nil, err
		}
		return fuse(lex, sem, lexW, vecW, req.Limit), nil
	default:
		return nil, util.Invalidf("mode", "unknown search mode %q", req.Mode)
	}
}

func (e *Engine) resolveWeights(req Request) (float64, float64, error) {
	lexW, vecW := req.LexicalWeight, req.VectorWeight
	if lexW == 0 && vecW == 0 {
		return e.lexW, e.vecW, nil
	}
	if lexW < 0 || vecW < 0 {
		return 0, 0, util.Invalidf("weights", "must not be negative")
	}
	if math.Abs(lexW+vecW-1.0) > weightTolerance {
		return 0, 0, util.Invalidf("weights", "lexical + vector must sum to 1.0, got %.3f", lexW+vecW)
	}
	return lexW, vecW, nil
}

// fuse merges the two branch result sets by chunk id. A chunk missing from a
// branch contributes zero from it. Ties break on chunk id so ordering is
// stable across runs.
func fuse(lex, vec []models.SearchResult, lexW, vecW float64, limit int) []models.SearchResult {
	type scored struct {
		res      models.SearchResult
		lexScore float64
		vecScore float64
	}
	byChunk := make(map[string]*scored, len(lex)+len(vec))
	for _, r := range lex {
		byChunk[r.ChunkID] = &scored{res: r, lexScore: r.Score}
	}
	for _, r := range vec {
		if s, ok := byChunk[r.ChunkID]; ok {
			s.vecScore = r.Score
		} else {
			byChunk[r.ChunkID] = &scored{res: r, vecScore: r.Score}
		}
	}

	out := make([]models.SearchResult, 0, len(byChunk))
	for _, s := range byChunk {
		r := s.res
		r.Score = s.lexScore*lexW + s.vecScore*vecW
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (e *Engine) audit(ctx context.Context, req Request, count int, elapsed time.Duration, searchErr error) {
	entry := models.SearchLog{
		Query:        strings.TrimSpace(req.Query),
		Mode:         string(req.Mode),
		CollectionID: req.CollectionID,
		ResultCount:  count,
		ElapsedMS:    elapsed.Milliseconds(),
	}
	if searchErr != nil {
		entry.ErrorText = searchErr.Error()
	}
	if err := e.logs.Insert(ctx, entry); err != nil {
		e.log.Warn("search audit log failed", "error", err)
	}
}

func (e *Engine) Suggestions(ctx context.Context, prefix string, limit int) ([]string, error) {
	return e.logs.Suggestions(ctx, strings.TrimSpace(prefix), limit)
}

func (e *Engine) Analytics(ctx context.Context, since time.Time) (models.SearchAnalytics, error) {
	return e.logs.Analytics(ctx, since)
}
