package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ChunkIDSeparator joins article URL and chunk index in a chunk ID.
// Downstream systems parse this wire format; do not change it.
const ChunkIDSeparator = "::chunk::"

// Chunk is a contiguous, sentence-bounded slice of an article body paired
// with an extractive summary. Chunk texts partition the body in order with
// no overlap.
type Chunk struct {
	ChunkID    string
	ArticleURL string
	ChunkIndex int
	Sentences  []string
	FullText   string
	Summary    string
	CharStart  int
	CharEnd    int
}

// BuildChunkID constructs the canonical chunk identifier.
func BuildChunkID(articleURL string, index int) string {
	return fmt.Sprintf("%s%s%d", articleURL, ChunkIDSeparator, index)
}

// ParseChunkID splits a chunk ID back into article URL and index.
// Round-trips with BuildChunkID.
func ParseChunkID(chunkID string) (string, int, error) {
	idx := strings.LastIndex(chunkID, ChunkIDSeparator)
	if idx < 0 {
		return "", 0, fmt.Errorf("chunk ID %q missing separator", chunkID)
	}
	url := chunkID[:idx]
	index, err := strconv.Atoi(chunkID[idx+len(ChunkIDSeparator):])
	if err != nil {
		return "", 0, fmt.Errorf("chunk ID %q has non-numeric index: %w", chunkID, err)
	}
	return url, index, nil
}

// MapPayload is the unit shipped to the external vector index: the chunk
// summary plus a schema blob locating the chunk within its article.
type MapPayload struct {
	URL    string           `json:"url"`  // chunk ID
	Name   string           `json:"name"` // extractive summary
	Site   string           `json:"site"`
	Schema MapPayloadSchema `json:"schema"`
}

// MapPayloadSchema records where the chunk sits in its article.
type MapPayloadSchema struct {
	ArticleURL string `json:"article_url"`
	ChunkIndex int    `json:"chunk_index"`
	CharStart  int    `json:"char_start"`
	CharEnd    int    `json:"char_end"`
	Version    int    `json:"version"`
	IndexedAt  string `json:"indexed_at"`
}
