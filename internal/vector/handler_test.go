package vector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/gazette/internal/common"
	"github.com/ternarybob/gazette/internal/models"
)

func TestUpsertHandlerIndexesPayloads(t *testing.T) {
	index := newMemIndex()
	handler := NewUpsertHandler(index, fixedEmbedder{}, "chunks", common.GetLogger())

	article := &models.CanonicalArticle{URL: "https://example.com/a"}
	indexedAt := time.Now()
	payloads := []models.MapPayload{
		BuildPayload(testChunk("https://example.com/a", 0), "example.com", indexedAt),
		BuildPayload(testChunk("https://example.com/a", 1), "example.com", indexedAt),
	}

	require.NoError(t, handler(context.Background(), article, payloads))
	assert.Len(t, index.points, 2)

	point, ok := index.points[models.BuildChunkID("https://example.com/a", 0)]
	require.True(t, ok)
	assert.Equal(t, "example.com", point.Payload.Site)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, point.Vector)
}

func TestUpsertHandlerPropagatesIndexFailure(t *testing.T) {
	index := newMemIndex()
	index.failUpsert = true
	handler := NewUpsertHandler(index, fixedEmbedder{}, "chunks", common.GetLogger())

	article := &models.CanonicalArticle{URL: "https://example.com/a"}
	payloads := []models.MapPayload{
		BuildPayload(testChunk("https://example.com/a", 0), "example.com", time.Now()),
	}
	assert.Error(t, handler(context.Background(), article, payloads))
}
