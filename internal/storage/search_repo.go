package storage

import (
	"context"
	"fmt"
	"strings"

	"docrag/internal/models"
	"docrag/internal/util"
)

// lexicalMatchScore is the flat score assigned to every substring match.
// Ranking within lexical results falls to document order (chunk index).
const lexicalMatchScore = 0.8

const snippetRunes = 240

type SearchRepo struct {
	db *DB
}

func NewSearchRepo(db *DB) *SearchRepo {
	return &SearchRepo{db: db}
}

// Lexical returns chunks whose content contains the query, case-insensitive.
// collectionID narrows the scope when non-empty.
func (r *SearchRepo) Lexical(ctx context.Context, query, collectionID string, limit int) ([]models.SearchResult, error) {
	args := []any{query, limit}
	filterSQL := ""
	if collectionID != "" {
		filterSQL = " AND c.collection_id = $3"
		args = append(args, collectionID)
	}
	sql := `
SELECT c.chunk_id::text, c.document_id::text, d.filename, c.chunk_index, c.content
FROM document_chunks c
JOIN documents d ON d.document_id = c.document_id
WHERE c.content ILIKE '%' || $1 || '%'` + filterSQL + `
ORDER BY c.chunk_index ASC, c.chunk_id ASC
LIMIT $2`

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query lexical search: %w", err)
	}
	defer rows.Close()

	out := make([]models.SearchResult, 0, limit)
	for rows.Next() {
		var res models.SearchResult
		if err := rows.Scan(&res.ChunkID, &res.DocumentID, &res.Filename, &res.ChunkIndex, &res.Content); err != nil {
			return nil, fmt.Errorf("scan lexical result: %w", err)
		}
		res.Score = lexicalMatchScore
		res.Snippet = util.Snippet(res.Content, snippetRunes)
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lexical results: %w", err)
	}
	return out, nil
}

// Vector returns the nearest chunks by cosine distance to queryVec, scored as
// 1 - distance and clamped to [0,1].
func (r *SearchRepo) Vector(ctx context.Context, queryVec []float32, collectionID string, limit int) ([]models.SearchResult, error) {
	args := []any{ToLiteral(queryVec), limit}
	filterSQL := ""
	if collectionID != "" {
		filterSQL = " AND c.collection_id = $3"
		args = append(args, collectionID)
	}
	sql := `
SELECT c.chunk_id::text, c.document_id::text, d.filename, c.chunk_index, c.content,
       1 - (c.embedding <=> $1::vector) AS score
FROM document_chunks c
JOIN documents d ON d.document_id = c.document_id
WHERE c.embedding IS NOT NULL` + filterSQL + `
ORDER BY c.embedding <=> $1::vector
LIMIT $2`

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query vector search: %w", err)
	}
	defer rows.Close()

	out := make([]models.SearchResult, 0, limit)
	for rows.Next() {
		var res models.SearchResult
		if err := rows.Scan(&res.ChunkID, &res.DocumentID, &res.Filename, &res.ChunkIndex, &res.Content, &res.Score); err != nil {
			return nil, fmt.Errorf("scan vector result: %w", err)
		}
		// Cosine distance runs to 2.0 for opposed vectors; keep scores sane.
		if res.Score < 0 {
			res.Score = 0
		} else if res.Score > 1 {
			res.Score = 1
		}
		res.Snippet = util.Snippet(res.Content, snippetRunes)
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vector results: %w", err)
	}
	return out, nil
}

// ToLiteral renders a vector as a pgvector text literal.
func ToLiteral(v []float32) string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, fmt.Sprintf("%f", x))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
