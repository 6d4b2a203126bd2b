package models

import "time"

// Document lifecycle statuses. A document moves pending -> processing and
// terminates in completed or failed; re-ingestion restarts from processing.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type Collection struct {
	CollectionID string    `json:"collection_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Document struct {
	DocumentID   string     `json:"document_id"`
	CollectionID string     `json:"collection_id"`
	Filename     string     `json:"filename"`
	ContentType  string     `json:"content_type"`
	SizeBytes    int64      `json:"size_bytes"`
	ContentHash  string     `json:"content_hash"`
	Status       string     `json:"status"`
	FailReason   string     `json:"fail_reason,omitempty"`
	ChunkCount   int        `json:"chunk_count"`
	ClaimedAt    *time.Time `json:"claimed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type Chunk struct {
	ChunkID      string    `json:"chunk_id"`
	DocumentID   string    `json:"document_id"`
	CollectionID string    `json:"collection_id"`
	ChunkIndex   int       `json:"chunk_index"`
	Content      string    `json:"content"`
	CharCount    int       `json:"char_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// SearchResult is one scored chunk from a lexical, vector or fused search.
type SearchResult struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score"`
}

type SearchLog struct {
	LogID        string    `json:"log_id"`
	Query        string    `json:"query"`
	Mode         string    `json:"mode"`
	CollectionID string    `json:"collection_id,omitempty"`
	ResultCount  int       `json:"result_count"`
	ElapsedMS    int64     `json:"elapsed_ms"`
	ErrorText    string    `json:"error_text,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type SearchAnalytics struct {
	TotalSearches  int     `json:"total_searches"`
	AvgElapsedMS   float64 `json:"avg_elapsed_ms"`
	ZeroResultRate float64 `json:"zero_result_rate"`
}
