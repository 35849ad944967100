package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/gazette/internal/chunker"
	"github.com/ternarybob/gazette/internal/common"
	"github.com/ternarybob/gazette/internal/pipeline"
	"github.com/ternarybob/gazette/internal/quality"
	"github.com/ternarybob/gazette/internal/storage/rollback"
	"github.com/ternarybob/gazette/internal/storage/vault"
	"github.com/ternarybob/gazette/internal/vector"
)

const (
	exitOK          = 0
	exitError       = 1
	exitInterrupted = 130
)

var (
	configPath     = flag.String("config", "", "Configuration file path (default: gazette.toml if present)")
	tsvPath        = flag.String("tsv", "", "Crawl TSV file to index")
	site           = flag.String("site", "", "Site tag for Map payloads (default: per-article source ID)")
	resume         = flag.Bool("resume", false, "Resume from the TSV's checkpoint")
	checkpointPath = flag.String("checkpoint", "", "Checkpoint file path (default: <tsv>.checkpoint.json)")
	reindexSite    = flag.String("reindex-site", "", "Rebuild a site's Map contents from the vault under the rollback journal, then exit")
	dryRun         = flag.Bool("dry-run", false, "Run the gate and chunker but persist nothing")
	verbose        = flag.Bool("verbose", false, "Debug logging")
	showVersion    = flag.Bool("version", false, "Print version information")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if *showVersion {
		fmt.Printf("gazette-indexer version %s\n", common.GetVersion())
		return exitOK
	}

	path := *configPath
	if path == "" {
		if _, err := os.Stat("gazette.toml"); err == nil {
			path = "gazette.toml"
		}
	}
	config, err := common.LoadFromFile(path)
	if err != nil {
		arbor.NewLogger().Fatal().Err(err).Msg("Failed to load configuration")
		return exitError
	}
	if *verbose {
		config.Logging.Level = "debug"
	}
	logger := common.InitLogger(config)
	common.PrintBanner("Gazette Indexer")

	if *reindexSite != "" {
		return runReindex(config, *reindexSite, logger)
	}

	if *tsvPath == "" {
		logger.Error().Msg("--tsv is required")
		return exitError
	}

	var store *vault.Vault
	if !*dryRun {
		store, err = vault.Open(config.Vault, logger)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to open vault")
			return exitError
		}
		defer store.Close()
	}

	buffer, err := quality.OpenBuffer(config.Quality.BufferPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open quality buffer")
		return exitError
	}
	defer buffer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// With the Map handoff enabled, indexed chunks go straight to Qdrant.
	var handler pipeline.PayloadHandler
	if config.Vector.Enabled && !*dryRun {
		index, err := vector.NewQdrantIndex(config.Vector, logger)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to connect to vector index")
			return exitError
		}
		defer index.Close()
		embedder := vector.NewHTTPEmbedder(config.Vector.EmbedderURL, 0)
		handler = vector.NewUpsertHandler(index, embedder, config.Vector.Collection, logger)
	}

	p := pipeline.New(config, store, buffer, handler, logger)
	stats, err := p.Run(ctx, *tsvPath, pipeline.Options{
		Site:           *site,
		Resume:         *resume,
		CheckpointPath: *checkpointPath,
		DryRun:         *dryRun,
	})

	fmt.Printf("\nIndexing summary:\n")
	fmt.Printf("  success:      %d\n", stats.Success)
	fmt.Printf("  failed:       %d\n", stats.Failed)
	fmt.Printf("  buffered:     %d\n", stats.Buffered)
	fmt.Printf("  skipped:      %d\n", stats.Skipped)
	fmt.Printf("  total chunks: %d\n", stats.TotalChunks)

	if ctx.Err() != nil {
		logger.Warn().Msg("Indexing interrupted; checkpoint saved for --resume")
		return exitInterrupted
	}
	if err != nil {
		logger.Error().Err(err).Msg("Indexing failed")
		return exitError
	}
	return exitOK
}

// runReindex rebuilds one site's Map contents from the vault: existing
// points are backed up and replaced under a rollback journal entry.
func runReindex(config *common.Config, site string, logger arbor.ILogger) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := vault.Open(config.Vault, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open vault")
		return exitError
	}
	defer store.Close()

	journal, err := rollback.Open(config.Rollback, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open rollback journal")
		return exitError
	}
	defer journal.Close()

	index, err := vector.NewQdrantIndex(config.Vector, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to connect to vector index")
		return exitError
	}
	defer index.Close()

	chunks, err := store.ChunksForSite(ctx, site)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load chunks from vault")
		return exitError
	}
	if len(chunks) == 0 {
		logger.Error().Str("site", site).Msg("No vault chunks for site")
		return exitError
	}

	// The vault stores texts only; summaries are rebuilt for embedding.
	c := chunker.New(config.Chunker)
	for _, chunk := range chunks {
		chunk.Summary = c.Summarize("", chunker.SplitSentences(chunk.FullText))
	}

	embedder := vector.NewHTTPEmbedder(config.Vector.EmbedderURL, 0)
	r := vector.NewReindexer(index, embedder, journal, config.Vector.Collection, logger)
	migrationID, err := r.ReindexSite(ctx, site, chunks)

	if ctx.Err() != nil {
		logger.Warn().Str("migration_id", migrationID).Msg("Reindex interrupted")
		return exitInterrupted
	}
	if err != nil {
		logger.Error().Err(err).Str("migration_id", migrationID).Msg("Reindex failed")
		return exitError
	}

	fmt.Printf("\nReindex summary:\n")
	fmt.Printf("  site:         %s\n", site)
	fmt.Printf("  chunks:       %d\n", len(chunks))
	fmt.Printf("  migration id: %s\n", migrationID)
	return exitOK
}
