// Package vector ships chunk summaries to the external vector index and
// coordinates site reindexing under the rollback journal. Full chunk
// texts never leave the vault; only summaries are embedded.
package vector

import (
	"time"

	"github.com/ternarybob/gazette/internal/models"
)

// payloadVersion tags the Map payload schema shipped by this build.
const payloadVersion = 2

// BuildPayload assembles the Map payload for one chunk. url carries the
// chunk ID; name carries the extractive summary the embedding is made
// from.
func BuildPayload(chunk *models.Chunk, site string, indexedAt time.Time) models.MapPayload {
	return models.MapPayload{
		URL:  chunk.ChunkID,
		Name: chunk.Summary,
		Site: site,
		Schema: models.MapPayloadSchema{
			ArticleURL: chunk.ArticleURL,
			ChunkIndex: chunk.ChunkIndex,
			CharStart:  chunk.CharStart,
			CharEnd:    chunk.CharEnd,
			Version:    payloadVersion,
			IndexedAt:  indexedAt.UTC().Format(time.RFC3339),
		},
	}
}
