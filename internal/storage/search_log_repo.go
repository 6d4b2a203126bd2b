package storage

import (
	"context"
	"fmt"
	"time"

	"docrag/internal/models"

	"github.com/google/uuid"
)

type SearchLogRepo struct {
	db *DB
}

func NewSearchLogRepo(db *DB) *SearchLogRepo {
	return &SearchLogRepo{db: db}
}

func (r *SearchLogRepo) Insert(ctx context.Context, log models.SearchLog) error {
	if log.LogID == "" {
		log.LogID = uuid.NewString()
	}
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO search_logs (log_id, query, mode, collection_id, result_count, elapsed_ms, error_text)
VALUES ($1, $2, $3, NULLIF($4,'')::uuid, $5, $6, NULLIF($7,''))`,
		log.LogID, log.Query, log.Mode, log.CollectionID, log.ResultCount, log.ElapsedMS, log.ErrorText)
	if err != nil {
		return fmt.Errorf("insert search log: %w", err)
	}
	return nil
}

// Suggestions returns recent distinct successful queries with the prefix.
func (r *SearchLogRepo) Suggestions(ctx context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT query
FROM search_logs
WHERE error_text IS NULL AND result_count > 0 AND query ILIKE $1 || '%'
GROUP BY query
ORDER BY MAX(created_at) DESC
LIMIT $2`, prefix, limit)
	if err != nil {
		return nil, fmt.Errorf("query suggestions: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0, limit)
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suggestions: %w", err)
	}
	return out, nil
}

func (r *SearchLogRepo) Analytics(ctx context.Context, since time.Time) (models.SearchAnalytics, error) {
	var a models.SearchAnalytics
	err := r.db.Pool.QueryRow(ctx, `
SELECT COUNT(*),
       COALESCE(AVG(elapsed_ms), 0),
       COALESCE(AVG(CASE WHEN result_count = 0 THEN 1.0 ELSE 0.0 END), 0)
FROM search_logs
WHERE error_text IS NULL AND created_at >= $1`, since).
		Scan(&a.TotalSearches, &a.AvgElapsedMS, &a.ZeroResultRate)
	if err != nil {
		return models.SearchAnalytics{}, fmt.Errorf("query search analytics: %w", err)
	}
	return a, nil
}
