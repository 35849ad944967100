package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/gazette/internal/common"
	"github.com/ternarybob/gazette/internal/models"
	"github.com/ternarybob/gazette/internal/quality"
	"github.com/ternarybob/gazette/internal/storage/vault"
)

func testPipelineConfig(t *testing.T) *common.Config {
	cfg := common.NewDefaultConfig()
	cfg.Vault.Path = filepath.Join(t.TempDir(), "vault.db")
	cfg.Quality.BufferPath = filepath.Join(t.TempDir(), "buffered.jsonl")
	cfg.Quality.MinBodyLength = 10
	cfg.Quality.CJKCheck = true
	cfg.Chunker.ShortArticleThreshold = 10000 // single chunk per article
	cfg.Pipeline.CheckpointInterval = 2
	return cfg
}

func tsvLine(url, headline, body string) string {
	return fmt.Sprintf("%s\t{\"headline\":%q,\"articleBody\":%q,\"datePublished\":\"2026-01-15\"}", url, headline, body)
}

func writeTSV(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crawl.tsv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

func goodBody() string {
	return strings.Repeat("这是一段足够长的中文正文内容。", 3)
}

func newTestPipeline(t *testing.T, cfg *common.Config, handler PayloadHandler) (*Pipeline, *vault.Vault) {
	t.Helper()
	v, err := vault.Open(cfg.Vault, common.GetLogger())
	require.NoError(t, err)
	t.Cleanup(func() { v.Close() })

	buffer, err := quality.OpenBuffer(cfg.Quality.BufferPath)
	require.NoError(t, err)
	t.Cleanup(func() { buffer.Close() })

	return New(cfg, v, buffer, handler, common.GetLogger()), v
}

func TestRunCleanCompletion(t *testing.T) {
	cfg := testPipelineConfig(t)

	var handled []string
	handler := func(_ context.Context, article *models.CanonicalArticle, payloads []models.MapPayload) error {
		handled = append(handled, article.URL)
		for _, payload := range payloads {
			if payload.Site == "" {
				t.Errorf("payload for %s has empty site", article.URL)
			}
		}
		return nil
	}

	p, v := newTestPipeline(t, cfg, handler)
	tsv := writeTSV(t,
		tsvLine("https://example.com/1", "标题一", goodBody()),
		tsvLine("https://example.com/2", "标题二", goodBody()),
		tsvLine("https://example.com/3", "标题三", goodBody()),
	)

	stats, err := p.Run(context.Background(), tsv, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Success)
	assert.Equal(t, 3, stats.TotalChunks)
	assert.Zero(t, stats.Failed)
	assert.Len(t, handled, 3)

	// Clean completion removes the checkpoint.
	_, err = os.Stat(CheckpointPath(tsv))
	assert.True(t, os.IsNotExist(err))

	texts, err := v.GetArticleChunks(context.Background(), "https://example.com/1")
	require.NoError(t, err)
	assert.Len(t, texts, 1)
}

func TestRunBuffersRejectedArticles(t *testing.T) {
	cfg := testPipelineConfig(t)
	p, _ := newTestPipeline(t, cfg, nil)

	tsv := writeTSV(t,
		tsvLine("https://example.com/1", "标题", "短。"), // body too short
		tsvLine("https://example.com/2", "标题", goodBody()),
	)

	stats, err := p.Run(context.Background(), tsv, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Buffered)
	assert.Equal(t, 1, stats.Success)

	data, err := os.ReadFile(cfg.Quality.BufferPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "https://example.com/1")
	assert.Contains(t, string(data), "body too short")
}

func TestRunCountsDuplicatesSkipped(t *testing.T) {
	cfg := testPipelineConfig(t)
	p, _ := newTestPipeline(t, cfg, nil)

	tsv := writeTSV(t,
		tsvLine("https://example.com/1", "标题", goodBody()),
		tsvLine("https://example.com/1", "标题", goodBody()),
	)

	stats, err := p.Run(context.Background(), tsv, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Success)
	assert.Equal(t, 1, stats.Skipped)
}

func TestRunMalformedLineFails(t *testing.T) {
	cfg := testPipelineConfig(t)
	p, _ := newTestPipeline(t, cfg, nil)

	tsv := writeTSV(t,
		"https://example.com/1 no-tab-here",
		tsvLine("https://example.com/2", "标题", goodBody()),
	)

	stats, err := p.Run(context.Background(), tsv, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Success)
}

func TestRunResumeSkipsProcessedLines(t *testing.T) {
	cfg := testPipelineConfig(t)
	p, _ := newTestPipeline(t, cfg, nil)

	tsv := writeTSV(t,
		tsvLine("https://example.com/1", "标题一", goodBody()),
		tsvLine("https://example.com/2", "标题二", goodBody()),
		tsvLine("https://example.com/3", "标题三", goodBody()),
	)

	// Simulate an interrupted run that got through line 2.
	cp := NewCheckpoint(tsv)
	cp.LastProcessedLine = 2
	cp.ProcessedURLs["https://example.com/1"] = true
	cp.ProcessedURLs["https://example.com/2"] = true
	require.NoError(t, cp.Save(CheckpointPath(tsv)))

	stats, err := p.Run(context.Background(), tsv, Options{Resume: true})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Success, "only line 3 is new work")
	assert.Equal(t, 2, stats.Skipped)
}

func TestRunWithoutResumeIgnoresCheckpoint(t *testing.T) {
	cfg := testPipelineConfig(t)
	p, _ := newTestPipeline(t, cfg, nil)

	tsv := writeTSV(t, tsvLine("https://example.com/1", "标题", goodBody()))

	cp := NewCheckpoint(tsv)
	cp.LastProcessedLine = 1
	require.NoError(t, cp.Save(CheckpointPath(tsv)))

	stats, err := p.Run(context.Background(), tsv, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Success)
}

func TestRunDryRunPersistsNothing(t *testing.T) {
	cfg := testPipelineConfig(t)
	p, v := newTestPipeline(t, cfg, nil)

	tsv := writeTSV(t, tsvLine("https://example.com/1", "标题", goodBody()))

	stats, err := p.Run(context.Background(), tsv, Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Success)

	texts, err := v.GetArticleChunks(context.Background(), "https://example.com/1")
	require.NoError(t, err)
	assert.Empty(t, texts)
}

func TestRunHandlerFailureMarksFailed(t *testing.T) {
	cfg := testPipelineConfig(t)
	handler := func(context.Context, *models.CanonicalArticle, []models.MapPayload) error {
		return fmt.Errorf("index unavailable")
	}
	p, _ := newTestPipeline(t, cfg, handler)

	tsv := writeTSV(t, tsvLine("https://example.com/1", "标题", goodBody()))

	stats, err := p.Run(context.Background(), tsv, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
}

func TestCheckpointRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.checkpoint.json")

	cp := NewCheckpoint("/data/x.tsv")
	cp.ProcessedURLs["https://example.com/1"] = true
	cp.FailedURLs["https://example.com/2"] = "parse error"
	cp.LastProcessedLine = 7
	require.NoError(t, cp.Save(path))

	loaded, err := LoadCheckpoint(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "/data/x.tsv", loaded.TSVPath)
	assert.Equal(t, 7, loaded.LastProcessedLine)
	assert.True(t, loaded.ProcessedURLs["https://example.com/1"])
	assert.Equal(t, "parse error", loaded.FailedURLs["https://example.com/2"])
}

func TestLoadCheckpointMissingReturnsNil(t *testing.T) {
	loaded, err := LoadCheckpoint(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
