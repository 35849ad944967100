package vector

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/gazette/internal/interfaces"
	"github.com/ternarybob/gazette/internal/models"
)

// NewUpsertHandler returns the pipeline payload handler for live indexing:
// each chunk summary is embedded and its point upserted as articles flow
// through the pipeline.
func NewUpsertHandler(index interfaces.VectorIndex, embedder interfaces.Embedder, collection string, logger arbor.ILogger) func(ctx context.Context, article *models.CanonicalArticle, payloads []models.MapPayload) error {
	return func(ctx context.Context, article *models.CanonicalArticle, payloads []models.MapPayload) error {
		points := make([]interfaces.VectorPoint, 0, len(payloads))
		for _, payload := range payloads {
			vec, err := embedder.Embed(ctx, payload.Name)
			if err != nil {
				return fmt.Errorf("failed to embed %s: %w", payload.URL, err)
			}
			points = append(points, interfaces.VectorPoint{
				ID:      payload.URL,
				Vector:  vec,
				Payload: payload,
			})
		}

		if err := index.Upsert(ctx, collection, points); err != nil {
			return err
		}
		logger.Debug().
			Str("url", article.URL).
			Int("points", len(points)).
			Msg("Article chunks indexed")
		return nil
	}
}
