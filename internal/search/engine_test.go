package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"docrag/internal/models"
	"docrag/internal/providers"
	"docrag/internal/util"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	lex            []models.SearchResult
	vec            []models.SearchResult
	lastCollection string
	lastLimit      int
}

func (f *fakeStore) Lexical(_ context.Context, _, collectionID string, limit int) ([]models.SearchResult, error) {
	f.lastCollection = collectionID
	f.lastLimit = limit
	return f.lex, nil
}

func (f *fakeStore) Vector(_ context.Context, _ []float32, collectionID string, limit int) ([]models.SearchResult, error) {
	f.lastCollection = collectionID
	f.lastLimit = limit
	return f.vec, nil
}

type fakeLogs struct {
	entries []models.SearchLog
	fail    bool
}

func (f *fakeLogs) Insert(_ context.Context, log models.SearchLog) error {
	if f.fail {
		return errors.New("audit table missing")
	}
	f.entries = append(f.entries, log)
	return nil
}

func (f *fakeLogs) Suggestions(context.Context, string, int) ([]string, error) {
	return []string{"suggestion"}, nil
}

func (f *fakeLogs) Analytics(context.Context, time.Time) (models.SearchAnalytics, error) {
	return models.SearchAnalytics{TotalSearches: 1}, nil
}

func result(chunkID string, score float64) models.SearchResult {
	return models.SearchResult{ChunkID: chunkID, DocumentID: "doc", Content: "content " + chunkID, Score: score}
}

func newTestEngine(store *fakeStore, logs *fakeLogs) *Engine {
	return NewEngine(store, logs, providers.NewMockProvider(8), 0, 0, nil)
}

func TestSearchLexicalMode(t *testing.T) {
	store := &fakeStore{lex: []models.SearchResult{result("a", 0.8), result("b", 0.8)}}
	logs := &fakeLogs{}
	e := newTestEngine(store, logs)

	out, err := e.Search(context.Background(), Request{Query: "fox", Mode: ModeLexical})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Len(t, logs.entries, 1)
	require.Equal(t, 2, logs.entries[0].ResultCount)
	require.Equal(t, string(ModeLexical), logs.entries[0].Mode)
}

func TestSearchVectorMode(t *testing.T) {
	store := &fakeStore{vec: []models.SearchResult{result("a", 0.91)}}
	e := newTestEngine(store, &fakeLogs{})

	out, err := e.Search(context.Background(), Request{Query: "fox", Mode: ModeVector})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.InDelta(t, 0.91, out[0].Score, 1e-9)
}

func TestSearchHybridFusion(t *testing.T) {
	// "both" appears in both branches; "lexonly"/"veconly" in one each.
	store := &fakeStore{
		lex: []models.SearchResult{result("both", 0.8), result("lexonly", 0.8)},
		vec: []models.SearchResult{result("both", 0.9), result("veconly", 0.6)},
	}
	e := newTestEngine(store, &fakeLogs{})

	out, err := e.Search(context.Background(), Request{Query: "fox", Mode: ModeHybrid})
	require.NoError(t, err)
	require.Len(t, out, 3)

	scores := map[string]float64{}
	for _, r := range out {
		scores[r.ChunkID] = r.Score
	}
	require.InDelta(t, 0.8*0.3+0.9*0.7, scores["both"], 1e-9)
	require.InDelta(t, 0.8*0.3, scores["lexonly"], 1e-9)
	require.InDelta(t, 0.6*0.7, scores["veconly"], 1e-9)
	require.Equal(t, "both", out[0].ChunkID, "fused scores must sort descending")
}

func TestSearchHybridTieBreaksOnChunkID(t *testing.T) {
	store := &fakeStore{
		lex: []models.SearchResult{result("zeta", 0.5), result("alpha", 0.5)},
	}
	e := newTestEngine(store, &fakeLogs{})

	out, err := e.Search(context.Background(), Request{Query: "fox"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "alpha", out[0].ChunkID)
	require.Equal(t, "zeta", out[1].ChunkID)
}

func TestSearchHybridRespectsLimit(t *testing.T) {
	store := &fakeStore{
		lex: []models.SearchResult{result("a", 0.8), result("b", 0.7), result("c", 0.6)},
		vec: []models.SearchResult{result("d", 0.9)},
	}
	e := newTestEngine(store, &fakeLogs{})

	out, err := e.Search(context.Background(), Request{Query: "fox", Limit: 2})
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestSearchExplicitWeights(t *testing.T) {
	store := &fakeStore{
		lex: []models.SearchResult{result("a", 1.0)},
	}
	e := newTestEngine(store, &fakeLogs{})

	out, err := e.Search(context.Background(), Request{Query: "fox", LexicalWeight: 0.5, VectorWeight: 0.5})
	require.NoError(t, err)
	require.InDelta(t, 0.5, out[0].Score, 1e-9)
}

func TestSearchRejectsBadWeights(t *testing.T) {
	e := newTestEngine(&fakeStore{}, &fakeLogs{})

	_, err := e.Search(context.Background(), Request{Query: "fox", LexicalWeight: 0.5, VectorWeight: 0.6})
	require.True(t, util.IsValidation(err))

	_, err = e.Search(context.Background(), Request{Query: "fox", LexicalWeight: -0.2, VectorWeight: 1.2})
	require.True(t, util.IsValidation(err))

	// Within tolerance passes.
	_, err = e.Search(context.Background(), Request{Query: "fox", LexicalWeight: 0.3, VectorWeight: 0.705})
	require.NoError(t, err)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	logs := &fakeLogs{}
	e := newTestEngine(&fakeStore{}, logs)

	_, err := e.Search(context.Background(), Request{Query: "   "})
	require.True(t, util.IsValidation(err))
	require.Len(t, logs.entries, 1, "failed searches are audited too")
	require.NotEmpty(t, logs.entries[0].ErrorText)
}

func TestSearchRejectsUnknownMode(t *testing.T) {
	e := newTestEngine(&fakeStore{}, &fakeLogs{})
	_, err := e.Search(context.Background(), Request{Query: "fox", Mode: "fuzzy"})
	require.True(t, util.IsValidation(err))
}

func TestSearchCollectionFilterReachesStore(t *testing.T) {
	store := &fakeStore{}
	e := newTestEngine(store, &fakeLogs{})

	_, err := e.Search(context.Background(), Request{Query: "fox", CollectionID: "col-9", Mode: ModeLexical})
	require.NoError(t, err)
	require.Equal(t, "col-9", store.lastCollection)
}

func TestSearchAuditFailureSwallowed(t *testing.T) {
	store := &fakeStore{lex: []models.SearchResult{result("a", 0.8)}}
	e := newTestEngine(store, &fakeLogs{fail: true})

	out, err := e.Search(context.Background(), Request{Query: "fox", Mode: ModeLexical})
	require.NoError(t, err, "audit failures must not fail the search")
	require.Len(t, out, 1)
}

func TestSearchDefaultLimit(t *testing.T) {
	store := &fakeStore{}
	e := newTestEngine(store, &fakeLogs{})

	_, err := e.Search(context.Background(), Request{Query: "fox", Mode: ModeLexical})
	require.NoError(t, err)
	require.Equal(t, DefaultLimit, store.lastLimit)

	_, err = e.Search(context.Background(), Request{Query: "fox", Mode: ModeLexical, Limit: 500})
	require.NoError(t, err)
	require.Equal(t, MaxLimit, store.lastLimit)
}
