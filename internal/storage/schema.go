package storage

import (
	"context"
	"fmt"
)

// InitSchema creates the pgvector extension and all tables. Statements are
// idempotent so both binaries can run it at startup.
func (d *DB) InitSchema(ctx context.Context, embedDim int) error {
	if embedDim <= 0 {
		embedDim = 1536
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS collections (
			collection_id UUID PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			document_id UUID PRIMARY KEY,
			collection_id UUID NOT NULL REFERENCES collections(collection_id) ON DELETE CASCADE,
			filename TEXT NOT NULL,
			content_type TEXT NOT NULL DEFAULT '',
			size_bytes BIGINT NOT NULL DEFAULT 0,
			content_hash TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			fail_reason TEXT,
			chunk_count INT NOT NULL DEFAULT 0,
			claimed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
			chunk_id UUID PRIMARY KEY,
			document_id UUID NOT NULL REFERENCES documents(document_id) ON DELETE CASCADE,
			collection_id UUID NOT NULL,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			char_count INT NOT NULL DEFAULT 0,
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (document_id, chunk_index)
		)`, embedDim),
		`CREATE INDEX IF NOT EXISTS idx_document_chunks_collection ON document_chunks (collection_id)`,
		`CREATE TABLE IF NOT EXISTS search_logs (
			log_id UUID PRIMARY KEY,
			query TEXT NOT NULL,
			mode TEXT NOT NULL,
			collection_id UUID,
			result_count INT NOT NULL DEFAULT 0,
			elapsed_ms BIGINT NOT NULL DEFAULT 0,
			error_text TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_search_logs_created_at ON search_logs (created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := d.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
