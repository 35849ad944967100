package vault

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/gazette/internal/chunker"
	"github.com/ternarybob/gazette/internal/common"
	"github.com/ternarybob/gazette/internal/models"
)

func testVaultConfig(t *testing.T) common.VaultConfig {
	return common.VaultConfig{
		Path:             filepath.Join(t.TempDir(), "vault.db"),
		WALMode:          true,
		CacheSizeMB:      8,
		BusyTimeoutMS:    1000,
		CompressionLevel: 6,
		ShortCompression: 1,
		LongCompression:  9,
		ShortThreshold:   500,
		LongThreshold:    5000,
	}
}

func openTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := Open(testVaultConfig(t), common.GetLogger())
	require.NoError(t, err)
	t.Cleanup(func() { v.Close() })
	return v
}

func makeChunks(t *testing.T, url string, texts ...string) []*models.Chunk {
	t.Helper()
	chunks := make([]*models.Chunk, 0, len(texts))
	start := 0
	for i, text := range texts {
		end := start + len([]rune(text))
		chunks = append(chunks, &models.Chunk{
			ChunkID:    models.BuildChunkID(url, i),
			ArticleURL: url,
			ChunkIndex: i,
			Sentences:  chunker.SplitSentences(text),
			FullText:   text,
			Summary:    text,
			CharStart:  start,
			CharEnd:    end,
		})
		start = end
	}
	return chunks
}

func TestCompressRoundTrip(t *testing.T) {
	cfg := testVaultConfig(t)

	tests := []struct {
		name string
		text string
	}{
		{"short", "短文本。"},
		{"medium", strings.Repeat("中等长度的文本内容。", 100)},
		{"long", strings.Repeat("很长的文本内容，用于触发最高压缩级别。", 500)},
		{"empty", ""},
		{"ascii starting with x", "xylophone text that happens to start with 0x78"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := compress(cfg, tt.text)
			require.NoError(t, err)

			text, err := decompress(blob)
			require.NoError(t, err)
			assert.Equal(t, tt.text, text)
		})
	}
}

func TestDecompressRawFallback(t *testing.T) {
	// Legacy rows stored raw text; reads must pass it through.
	text, err := decompress([]byte("plain stored text"))
	require.NoError(t, err)
	assert.Equal(t, "plain stored text", text)
}

func TestLevelForThresholds(t *testing.T) {
	cfg := testVaultConfig(t)
	assert.Equal(t, cfg.ShortCompression, levelFor(cfg, 100))
	assert.Equal(t, cfg.CompressionLevel, levelFor(cfg, 1000))
	assert.Equal(t, cfg.LongCompression, levelFor(cfg, 10000))
}

func TestSaveAndGetChunks(t *testing.T) {
	v := openTestVault(t)
	ctx := context.Background()

	url := "https://example.com/article/1"
	chunks := makeChunks(t, url, "第一块内容。", "第二块内容。", "第三块内容。")
	require.NoError(t, v.SaveChunks(ctx, chunks))

	text, err := v.GetChunk(ctx, chunks[1].ChunkID)
	require.NoError(t, err)
	assert.Equal(t, "第二块内容。", text)

	texts, err := v.GetArticleChunks(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, []string{"第一块内容。", "第二块内容。", "第三块内容。"}, texts)
}

func TestSaveChunksUpsert(t *testing.T) {
	v := openTestVault(t)
	ctx := context.Background()

	url := "https://example.com/article/1"
	require.NoError(t, v.SaveChunks(ctx, makeChunks(t, url, "旧内容。")))
	require.NoError(t, v.SaveChunks(ctx, makeChunks(t, url, "新内容。")))

	text, err := v.GetChunk(ctx, models.BuildChunkID(url, 0))
	require.NoError(t, err)
	assert.Equal(t, "新内容。", text)

	stats, err := v.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ChunkCount)
}

func TestSoftDelete(t *testing.T) {
	v := openTestVault(t)
	ctx := context.Background()

	url := "https://example.com/article/1"
	require.NoError(t, v.SaveChunks(ctx, makeChunks(t, url, "内容一。", "内容二。")))

	marked, err := v.DeleteArticle(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)

	_, err = v.GetChunk(ctx, models.BuildChunkID(url, 0))
	assert.Error(t, err, "soft-deleted chunks are not found")

	texts, err := v.GetArticleChunks(ctx, url)
	require.NoError(t, err)
	assert.Empty(t, texts)

	stats, err := v.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.ChunkCount)
	assert.Equal(t, int64(2), stats.DeletedCount)

	// Re-saving resurrects the chunk.
	require.NoError(t, v.SaveChunks(ctx, makeChunks(t, url, "新内容。")))
	text, err := v.GetChunk(ctx, models.BuildChunkID(url, 0))
	require.NoError(t, err)
	assert.Equal(t, "新内容。", text)
}

func TestChunksForSite(t *testing.T) {
	v := openTestVault(t)
	ctx := context.Background()

	require.NoError(t, v.SaveChunks(ctx, makeChunks(t, "https://example.com/a", "甲一。", "甲二内容。")))
	require.NoError(t, v.SaveChunks(ctx, makeChunks(t, "https://www.example.com/b", "乙一。")))
	require.NoError(t, v.SaveChunks(ctx, makeChunks(t, "https://other.com/c", "丙一。")))
	_, err := v.DeleteArticle(ctx, "https://other.com/c")
	require.NoError(t, err)

	chunks, err := v.ChunksForSite(ctx, "example.com")
	require.NoError(t, err)
	require.Len(t, chunks, 3, "bare and www URLs both belong to the site")

	// Offsets are rebuilt per article in index order.
	assert.Equal(t, "https://example.com/a", chunks[0].ArticleURL)
	assert.Equal(t, 0, chunks[0].CharStart)
	assert.Equal(t, 3, chunks[0].CharEnd)
	assert.Equal(t, 3, chunks[1].CharStart)
	assert.Equal(t, 8, chunks[1].CharEnd)
	assert.Equal(t, "https://www.example.com/b", chunks[2].ArticleURL)
	assert.Equal(t, 0, chunks[2].CharStart)

	other, err := v.ChunksForSite(ctx, "other.com")
	require.NoError(t, err)
	assert.Empty(t, other, "soft-deleted chunks stay out of reindexing")
}

func TestStatsCompressionRatio(t *testing.T) {
	v := openTestVault(t)
	ctx := context.Background()

	long := strings.Repeat("高度可压缩的重复文本。", 500)
	require.NoError(t, v.SaveChunks(ctx, makeChunks(t, "https://example.com/a", long)))

	stats, err := v.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ChunkCount)
	assert.Equal(t, int64(1), stats.ArticleCount)
	assert.Greater(t, stats.OriginalBytes, stats.CompressedBytes)
	assert.Greater(t, stats.CompressionRatio, 0.0)
	assert.Less(t, stats.CompressionRatio, 1.0)
}

func TestSaveChunksEmptyIsNoop(t *testing.T) {
	v := openTestVault(t)
	assert.NoError(t, v.SaveChunks(context.Background(), nil))
}
