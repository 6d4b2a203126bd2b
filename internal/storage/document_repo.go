package storage

import (
	"context"
	"errors"
	"fmt"

	"docrag/internal/models"
	"docrag/internal/util"

	"github.com/jackc/pgx/v5"
)

type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

const documentColumns = `
document_id::text, collection_id::text, filename, content_type, size_bytes,
content_hash, status, COALESCE(fail_reason,''), chunk_count, claimed_at,
created_at, updated_at`

func (r *DocumentRepo) Insert(ctx context.Context, d models.Document) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO documents (document_id, collection_id, filename, content_type, size_bytes, content_hash, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.DocumentID, d.CollectionID, d.Filename, d.ContentType, d.SizeBytes, d.ContentHash, d.Status)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepo) Get(ctx context.Context, documentID string) (models.Document, error) {
	var d models.Document
	err := r.db.Pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE document_id=$1`, documentID).
		Scan(&d.DocumentID, &d.CollectionID, &d.Filename, &d.ContentType, &d.SizeBytes,
			&d.ContentHash, &d.Status, &d.FailReason, &d.ChunkCount, &d.ClaimedAt,
			&d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Document{}, &util.NotFoundError{Kind: "document", ID: documentID}
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (r *DocumentRepo) ListByCollection(ctx context.Context, collectionID string) ([]models.Document, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE collection_id=$1 ORDER BY created_at DESC`,
		collectionID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]models.Document, 0)
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.DocumentID, &d.CollectionID, &d.Filename, &d.ContentType, &d.SizeBytes,
			&d.ContentHash, &d.Status, &d.FailReason, &d.ChunkCount, &d.ClaimedAt,
			&d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// MarkProcessing moves a document into processing and stamps the claim time.
func (r *DocumentRepo) MarkProcessing(ctx context.Context, documentID string) error {
	tag, err := r.db.Pool.Exec(ctx, `
UPDATE documents SET status=$2, fail_reason=NULL, claimed_at=NOW(), updated_at=NOW()
WHERE document_id=$1`, documentID, models.StatusProcessing)
	if err != nil {
		return fmt.Errorf("mark document processing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &util.NotFoundError{Kind: "document", ID: documentID}
	}
	return nil
}

// MarkCompleted records a successful run and releases the claim.
func (r *DocumentRepo) MarkCompleted(ctx context.Context, documentID string, chunkCount int) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE documents SET status=$2, fail_reason=NULL, chunk_count=$3, claimed_at=NULL, updated_at=NOW()
WHERE document_id=$1`, documentID, models.StatusCompleted, chunkCount)
	if err != nil {
		return fmt.Errorf("mark document completed: %w", err)
	}
	return nil
}

// MarkFailed records a terminal failure and releases the claim.
func (r *DocumentRepo) MarkFailed(ctx context.Context, documentID, reason string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE documents SET status=$2, fail_reason=NULLIF($3,''), claimed_at=NULL, updated_at=NOW()
WHERE document_id=$1`, documentID, models.StatusFailed, reason)
	if err != nil {
		return fmt.Errorf("mark document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepo) Delete(ctx context.Context, documentID string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM documents WHERE document_id=$1`, documentID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &util.NotFoundError{Kind: "document", ID: documentID}
	}
	return nil
}
