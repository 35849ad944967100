package interfaces

import (
	"context"

	"github.com/ternarybob/gazette/internal/models"
)

// Embedder produces a vector embedding for a piece of text. The embedding
// model lives outside this repo; callers inject an implementation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorPoint is one (id, vector, payload) triple bound for the index.
type VectorPoint struct {
	ID      string
	Vector  []float32
	Payload models.MapPayload
}

// VectorIndex is the external index holding chunk summaries + embeddings.
type VectorIndex interface {
	Upsert(ctx context.Context, collection string, points []VectorPoint) error
	DeleteBySite(ctx context.Context, collection, site string) (int, error)
	// PointsBySite returns the IDs and raw payload JSON of every point for
	// a site, used to back up a site's Map contents before migration.
	PointsBySite(ctx context.Context, collection, site string) (map[string]string, error)
	Close() error
}
