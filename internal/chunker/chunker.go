// Package chunker splits extracted document text into overlapping windows
// sized for embedding.
package chunker

import (
	"strings"

	"docrag/internal/util"
)

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// Chunk splits text into windows of at most maxSize runes with the given
// overlap between consecutive windows. Window boundaries prefer the last
// space or newline inside the window so words are not cut mid-way; a window
// with no whitespace is cut hard at maxSize.
func Chunk(text string, maxSize, overlap int) ([]string, error) {
	if maxSize <= 0 {
		return nil, util.Invalidf("chunk_size", "must be positive, got %d", maxSize)
	}
	if overlap < 0 {
		return nil, util.Invalidf("chunk_overlap", "must not be negative, got %d", overlap)
	}
	if overlap >= maxSize {
		return nil, util.Invalidf("chunk_overlap", "must be smaller than chunk size (%d >= %d)", overlap, maxSize)
	}
	if strings.TrimSpace(text) == "" {
		return []string{}, nil
	}

	runes := []rune(text)
	out := make([]string, 0, len(runes)/maxSize+1)
	start := 0
	for start < len(runes) {
		end := start + maxSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			if b := lastBreak(runes, start, end); b > start {
				end = b
			}
		}

		part := strings.TrimSpace(string(runes[start:end]))
		if part != "" {
			out = append(out, part)
		}
		if end >= len(runes) {
			break
		}

		next := end - overlap
		if next <= start {
			// Overlap would stall the window; jump past it.
			next = end
		}
		start = next
	}
	return out, nil
}

// lastBreak returns the index of the last space or newline in runes[start:end],
// or -1 when the window contains none.
func lastBreak(runes []rune, start, end int) int {
	for i := end - 1; i > start; i-- {
		if runes[i] == ' ' || runes[i] == '\n' {
			return i
		}
	}
	return -1
}
