// Package pipeline orchestrates TSV indexing: parse each line, gate it,
// chunk it, persist chunks to the vault and hand payloads to the caller.
// Runs are resumable through a checkpoint written alongside the TSV.
package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/gazette/internal/chunker"
	"github.com/ternarybob/gazette/internal/common"
	"github.com/ternarybob/gazette/internal/ingest"
	"github.com/ternarybob/gazette/internal/models"
	"github.com/ternarybob/gazette/internal/quality"
	"github.com/ternarybob/gazette/internal/storage/vault"
	"github.com/ternarybob/gazette/internal/vector"
)

// maxLineBytes bounds one TSV line; article bodies run long.
const maxLineBytes = 16 * 1024 * 1024

// PayloadHandler receives the Map payloads of one successfully indexed
// article. A non-nil error fails the article and lands it in the
// checkpoint's failed set.
type PayloadHandler func(ctx context.Context, article *models.CanonicalArticle, payloads []models.MapPayload) error

// Options adjust one pipeline run.
type Options struct {
	// Site overrides the per-article source ID as the payload site tag.
	Site string
	// Resume loads the TSV's checkpoint and skips already-processed lines.
	Resume bool
	// CheckpointPath overrides the default <tsv>.checkpoint.json.
	CheckpointPath string
	// DryRun runs the gate and chunker but persists nothing.
	DryRun bool
}

// Pipeline drives one TSV through the indexing flow.
type Pipeline struct {
	cfg     *common.Config
	gate    *quality.Gate
	chunker *chunker.Chunker
	vault   *vault.Vault
	buffer  *quality.Buffer
	handler PayloadHandler
	logger  arbor.ILogger
}

// New wires a pipeline. vault may be nil for dry runs; handler may be nil
// when no vector handoff is wanted.
func New(cfg *common.Config, v *vault.Vault, buffer *quality.Buffer, handler PayloadHandler, logger arbor.ILogger) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		gate:    quality.NewGate(cfg.Quality),
		chunker: chunker.New(cfg.Chunker),
		vault:   v,
		buffer:  buffer,
		handler: handler,
		logger:  logger,
	}
}

// Run processes a TSV file. The checkpoint is saved every
// checkpoint_interval successes and on every error path, and removed
// when the file completes cleanly.
func (p *Pipeline) Run(ctx context.Context, tsvPath string, opts Options) (models.PipelineStats, error) {
	var stats models.PipelineStats

	cpPath := opts.CheckpointPath
	if cpPath == "" {
		cpPath = CheckpointPath(tsvPath)
	}

	cp := NewCheckpoint(tsvPath)
	if opts.Resume {
		loaded, err := LoadCheckpoint(cpPath)
		if err != nil {
			return stats, err
		}
		if loaded != nil {
			cp = loaded
			p.logger.Info().
				Int("last_line", cp.LastProcessedLine).
				Int("processed", len(cp.ProcessedURLs)).
				Msg("Resuming from checkpoint")
		}
	}

	file, err := os.Open(tsvPath)
	if err != nil {
		return stats, fmt.Errorf("failed to open TSV %s: %w", tsvPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	seen := make(map[string]bool, len(cp.ProcessedURLs))
	for url := range cp.ProcessedURLs {
		seen[url] = true
	}

	lineNo := 0
	sinceCheckpoint := 0

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			if saveErr := cp.Save(cpPath); saveErr != nil {
				p.logger.Error().Err(saveErr).Msg("Failed to save checkpoint on cancellation")
			}
			return stats, err
		}

		lineNo++
		if opts.Resume && lineNo <= cp.LastProcessedLine {
			stats.Skipped++
			continue
		}

		line := scanner.Text()
		if line == "" {
			cp.LastProcessedLine = lineNo
			continue
		}

		article := ingest.ParseLine(line)
		outcome, reason := p.processArticle(ctx, article, opts, seen, &stats)

		cp.LastProcessedLine = lineNo
		switch outcome {
		case articleIndexed:
			cp.ProcessedURLs[article.URL] = true
			seen[article.URL] = true
			sinceCheckpoint++
			if sinceCheckpoint >= p.cfg.Pipeline.CheckpointInterval {
				if err := cp.Save(cpPath); err != nil {
					p.logger.Error().Err(err).Msg("Failed to save checkpoint")
				}
				sinceCheckpoint = 0
			}
		case articleFailed:
			cp.FailedURLs[article.URL] = reason
			if err := cp.Save(cpPath); err != nil {
				p.logger.Error().Err(err).Msg("Failed to save checkpoint after failure")
			}
		}
	}

	if err := scanner.Err(); err != nil {
		if saveErr := cp.Save(cpPath); saveErr != nil {
			p.logger.Error().Err(saveErr).Msg("Failed to save checkpoint on read error")
		}
		return stats, fmt.Errorf("failed to read TSV %s: %w", tsvPath, err)
	}

	if err := RemoveCheckpoint(cpPath); err != nil {
		return stats, err
	}

	p.logger.Info().
		Int("success", stats.Success).
		Int("failed", stats.Failed).
		Int("buffered", stats.Buffered).
		Int("skipped", stats.Skipped).
		Int("total_chunks", stats.TotalChunks).
		Msg("TSV indexing complete")
	return stats, nil
}

type articleOutcome int

const (
	articleIndexed articleOutcome = iota
	articleFailed
	articleBuffered
	articleSkipped
)

// processArticle runs one article through gate, chunker, vault and the
// payload handler. The returned reason is non-empty only on failure.
func (p *Pipeline) processArticle(ctx context.Context, article *models.CanonicalArticle, opts Options, seen map[string]bool, stats *models.PipelineStats) (articleOutcome, string) {
	fail := func(reason string) (articleOutcome, string) {
		stats.Failed++
		p.logger.Warn().Str("url", article.URL).Str("reason", reason).Msg("Article failed")
		return articleFailed, reason
	}

	if !article.Valid {
		return fail(fmt.Sprintf("invalid record: %v", article.Errors))
	}

	switch result := p.gate.Check(article, seen); result.Verdict {
	case quality.VerdictSkipped:
		stats.Skipped++
		return articleSkipped, ""
	case quality.VerdictBuffered:
		stats.Buffered++
		if p.buffer != nil {
			if err := p.buffer.Add(article, result.Reasons); err != nil {
				p.logger.Error().Err(err).Str("url", article.URL).Msg("Failed to buffer rejected article")
			}
		}
		return articleBuffered, ""
	}

	chunks := p.chunker.Split(article.URL, article.Headline, article.Body)
	if len(chunks) == 0 {
		return fail("no chunks produced")
	}

	if !opts.DryRun && p.vault != nil {
		if err := p.vault.SaveChunks(ctx, chunks); err != nil {
			return fail(err.Error())
		}
	}

	if p.handler != nil {
		site := opts.Site
		if site == "" {
			site = article.SourceID
		}
		now := time.Now()
		payloads := make([]models.MapPayload, 0, len(chunks))
		for _, chunk := range chunks {
			payloads = append(payloads, vector.BuildPayload(chunk, site, now))
		}
		if err := p.handler(ctx, article, payloads); err != nil {
			return fail(err.Error())
		}
	}

	stats.Success++
	stats.TotalChunks += len(chunks)
	return articleIndexed, ""
}
