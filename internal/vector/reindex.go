package vector

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/gazette/internal/interfaces"
	"github.com/ternarybob/gazette/internal/models"
	"github.com/ternarybob/gazette/internal/storage/rollback"
)

// Reindexer rewrites a site's Map contents under the rollback journal:
// back up the existing points, delete them, upsert the replacements.
// Any failure after the delete marks the migration rolled back so the
// backup can be replayed.
type Reindexer struct {
	index      interfaces.VectorIndex
	embedder   interfaces.Embedder
	journal    *rollback.Manager
	collection string
	logger     arbor.ILogger
}

// NewReindexer wires the coordinator.
func NewReindexer(index interfaces.VectorIndex, embedder interfaces.Embedder, journal *rollback.Manager, collection string, logger arbor.ILogger) *Reindexer {
	return &Reindexer{
		index:      index,
		embedder:   embedder,
		journal:    journal,
		collection: collection,
		logger:     logger,
	}
}

// ReindexSite replaces every point of a site with points built from
// chunks. Returns the migration ID for audit.
func (r *Reindexer) ReindexSite(ctx context.Context, site string, chunks []*models.Chunk) (string, error) {
	migrationID, err := r.journal.Start(ctx, site)
	if err != nil {
		return "", err
	}

	existing, err := r.index.PointsBySite(ctx, r.collection, site)
	if err != nil {
		return migrationID, fmt.Errorf("failed to read existing points: %w", err)
	}

	pointIDs := make([]string, 0, len(existing))
	for id := range existing {
		pointIDs = append(pointIDs, id)
	}
	if err := r.journal.RecordOldPoints(ctx, migrationID, pointIDs); err != nil {
		return migrationID, err
	}
	if err := r.journal.BackupPayloads(ctx, migrationID, existing); err != nil {
		return migrationID, err
	}

	points, err := r.buildPoints(ctx, site, chunks)
	if err != nil {
		return migrationID, err
	}

	// Point of no return: from here a failure leaves the site empty or
	// partial, so the journal gets marked for rollback.
	if _, err := r.index.DeleteBySite(ctx, r.collection, site); err != nil {
		return migrationID, fmt.Errorf("failed to delete site points: %w", err)
	}

	if err := r.index.Upsert(ctx, r.collection, points); err != nil {
		if rbErr := r.journal.MarkRolledBack(ctx, migrationID); rbErr != nil {
			r.logger.Error().Err(rbErr).Str("migration_id", migrationID).Msg("Failed to mark migration rolled back")
		}
		return migrationID, fmt.Errorf("failed to upsert new points: %w", err)
	}

	chunkIDs := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		chunkIDs = append(chunkIDs, chunk.ChunkID)
	}
	if err := r.journal.Complete(ctx, migrationID, chunkIDs); err != nil {
		return migrationID, err
	}

	r.logger.Info().
		Str("site", site).
		Str("migration_id", migrationID).
		Int("old_points", len(existing)).
		Int("new_points", len(points)).
		Msg("Site reindexed")
	return migrationID, nil
}

// buildPoints embeds each chunk summary and pairs it with its payload.
func (r *Reindexer) buildPoints(ctx context.Context, site string, chunks []*models.Chunk) ([]interfaces.VectorPoint, error) {
	now := time.Now()
	points := make([]interfaces.VectorPoint, 0, len(chunks))
	for _, chunk := range chunks {
		vec, err := r.embedder.Embed(ctx, chunk.Summary)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunk %s: %w", chunk.ChunkID, err)
		}
		points = append(points, interfaces.VectorPoint{
			ID:      chunk.ChunkID,
			Vector:  vec,
			Payload: BuildPayload(chunk, site, now),
		})
	}
	return points, nil
}
