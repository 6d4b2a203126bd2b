package storage

import (
	"context"
	"fmt"

	"docrag/internal/models"
)

// ChunkRecord is the write-side shape of a chunk. EmbeddingVector is a
// pgvector literal ("[0.1,0.2,...]") or nil for an unembedded chunk.
type ChunkRecord struct {
	ChunkID         string
	DocumentID      string
	CollectionID    string
	ChunkIndex      int
	Content         string
	CharCount       int
	EmbeddingVector *string
}

type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// ReplaceChunks deletes any prior chunks for the document and inserts the new
// set in a single transaction, so a re-ingested document never exposes a mix
// of old and new chunks to readers.
func (r *ChunkRepo) ReplaceChunks(ctx context.Context, documentID string, chunks []ChunkRecord) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx replace chunks: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM document_chunks WHERE document_id=$1`, documentID); err != nil {
		return fmt.Errorf("delete prior chunks: %w", err)
	}
	for _, c := range chunks {
		_, err := tx.Exec(ctx, `
INSERT INTO document_chunks (chunk_id, document_id, collection_id, chunk_index, content, char_count, embedding)
VALUES ($1, $2, $3, $4, $5, $6, CASE WHEN $7::text IS NULL THEN NULL ELSE $7::vector END)`,
			c.ChunkID, c.DocumentID, c.CollectionID, c.ChunkIndex, c.Content, c.CharCount, c.EmbeddingVector)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ChunkID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chunks tx: %w", err)
	}
	return nil
}

func (r *ChunkRepo) ListByDocument(ctx context.Context, documentID string) ([]models.Chunk, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT chunk_id::text, document_id::text, collection_id::text, chunk_index, content, char_count, created_at
FROM document_chunks
WHERE document_id=$1
ORDER BY chunk_index ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list chunks by document: %w", err)
	}
	defer rows.Close()

	out := make([]models.Chunk, 0, 64)
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.CollectionID, &c.ChunkIndex, &c.Content, &c.CharCount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

func (r *ChunkRepo) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM document_chunks WHERE document_id=$1`, documentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}
