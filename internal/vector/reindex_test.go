package vector

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/gazette/internal/common"
	"github.com/ternarybob/gazette/internal/interfaces"
	"github.com/ternarybob/gazette/internal/models"
	"github.com/ternarybob/gazette/internal/storage/rollback"
)

// memIndex is an in-memory VectorIndex for coordinator tests.
type memIndex struct {
	points     map[string]interfaces.VectorPoint // keyed by point ID
	failUpsert bool
}

func newMemIndex() *memIndex {
	return &memIndex{points: make(map[string]interfaces.VectorPoint)}
}

func (m *memIndex) Upsert(_ context.Context, _ string, points []interfaces.VectorPoint) error {
	if m.failUpsert {
		return errors.New("upsert refused")
	}
	for _, p := range points {
		m.points[p.ID] = p
	}
	return nil
}

func (m *memIndex) DeleteBySite(_ context.Context, _, site string) (int, error) {
	var removed int
	for id, p := range m.points {
		if p.Payload.Site == site {
			delete(m.points, id)
			removed++
		}
	}
	return removed, nil
}

func (m *memIndex) PointsBySite(_ context.Context, _, site string) (map[string]string, error) {
	out := make(map[string]string)
	for id, p := range m.points {
		if p.Payload.Site == site {
			out[id] = `{"url":"` + p.Payload.URL + `"}`
		}
	}
	return out, nil
}

func (m *memIndex) Close() error { return nil }

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func testChunk(url string, index int) *models.Chunk {
	return &models.Chunk{
		ChunkID:    models.BuildChunkID(url, index),
		ArticleURL: url,
		ChunkIndex: index,
		FullText:   "chunk text",
		Summary:    "summary",
		CharStart:  index * 10,
		CharEnd:    (index + 1) * 10,
	}
}

func newTestReindexer(t *testing.T, index interfaces.VectorIndex) (*Reindexer, *rollback.Manager) {
	t.Helper()
	journal, err := rollback.Open(common.RollbackConfig{
		Path: filepath.Join(t.TempDir(), "rollback.db"),
	}, common.GetLogger())
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	return NewReindexer(index, fixedEmbedder{}, journal, "chunks", common.GetLogger()), journal
}

func TestBuildPayload(t *testing.T) {
	chunk := testChunk("https://example.com/a", 2)
	indexedAt := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	payload := BuildPayload(chunk, "example.com", indexedAt)
	assert.Equal(t, chunk.ChunkID, payload.URL)
	assert.Equal(t, "summary", payload.Name)
	assert.Equal(t, "example.com", payload.Site)
	assert.Equal(t, "https://example.com/a", payload.Schema.ArticleURL)
	assert.Equal(t, 2, payload.Schema.ChunkIndex)
	assert.Equal(t, 20, payload.Schema.CharStart)
	assert.Equal(t, 30, payload.Schema.CharEnd)
	assert.Equal(t, "2026-01-15T12:00:00Z", payload.Schema.IndexedAt)
}

func TestReindexSiteReplacesPoints(t *testing.T) {
	index := newMemIndex()
	r, journal := newTestReindexer(t, index)
	ctx := context.Background()

	// Seed old points for the site.
	require.NoError(t, index.Upsert(ctx, "chunks", []interfaces.VectorPoint{
		{ID: "old-1", Payload: models.MapPayload{URL: "old-1", Site: "example.com"}},
		{ID: "old-2", Payload: models.MapPayload{URL: "old-2", Site: "example.com"}},
		{ID: "other", Payload: models.MapPayload{URL: "other", Site: "other.com"}},
	}))

	chunks := []*models.Chunk{
		testChunk("https://example.com/a", 0),
		testChunk("https://example.com/a", 1),
	}

	migrationID, err := r.ReindexSite(ctx, "example.com", chunks)
	require.NoError(t, err)

	rec, err := journal.GetRecord(ctx, migrationID)
	require.NoError(t, err)
	assert.Equal(t, models.MigrationCompleted, rec.Status)
	assert.ElementsMatch(t, []string{"old-1", "old-2"}, rec.OldPointIDs)
	assert.Len(t, rec.NewChunkIDs, 2)

	// Old payloads were backed up before deletion.
	backups, err := journal.GetBackupPayloads(ctx, migrationID)
	require.NoError(t, err)
	assert.Len(t, backups, 2)

	// Other sites untouched; new points present.
	assert.Contains(t, index.points, "other")
	assert.NotContains(t, index.points, "old-1")
	assert.Len(t, index.points, 3)
}

func TestReindexSiteUpsertFailureMarksRolledBack(t *testing.T) {
	index := newMemIndex()
	r, journal := newTestReindexer(t, index)
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, "chunks", []interfaces.VectorPoint{
		{ID: "old-1", Payload: models.MapPayload{URL: "old-1", Site: "example.com"}},
	}))
	index.failUpsert = true

	migrationID, err := r.ReindexSite(ctx, "example.com", []*models.Chunk{
		testChunk("https://example.com/a", 0),
	})
	require.Error(t, err)

	rec, jerr := journal.GetRecord(ctx, migrationID)
	require.NoError(t, jerr)
	assert.Equal(t, models.MigrationRolledBack, rec.Status)

	// The backup still holds the deleted payload for replay.
	backups, err := journal.GetBackupPayloads(ctx, migrationID)
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestPointIDForDeterministic(t *testing.T) {
	a := PointIDFor("https://example.com/a::chunk::0")
	b := PointIDFor("https://example.com/a::chunk::0")
	c := PointIDFor("https://example.com/a::chunk::1")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
