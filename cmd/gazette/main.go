package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/gazette/internal/common"
	"github.com/ternarybob/gazette/internal/crawler"
	"github.com/ternarybob/gazette/internal/datenav"
	"github.com/ternarybob/gazette/internal/models"
	"github.com/ternarybob/gazette/internal/parsers"
	"github.com/ternarybob/gazette/internal/scheduler"
)

const (
	exitOK          = 0
	exitError       = 1
	exitInterrupted = 130
)

var (
	configPath  = flag.String("config", "", "Configuration file path (default: gazette.toml if present)")
	sourceName  = flag.String("source", "", "Source to crawl (see --list-sources)")
	autoLatest  = flag.Bool("auto-latest", false, "Crawl the newest articles back from the latest ID")
	count       = flag.Int("count", 50, "Article count for --auto-latest")
	idStart     = flag.Int64("id-start", 0, "First article ID of an explicit range")
	idEnd       = flag.Int64("id-end", 0, "Last article ID of an explicit range")
	reverse     = flag.Bool("reverse", false, "Sweep an explicit range newest to oldest")
	fromDate    = flag.String("from", "", "Start date (YYYY-MM-DD) of a date window")
	toDate      = flag.String("to", "", "End date (YYYY-MM-DD) of a date window")
	maxPages    = flag.Int("max-pages", 10, "List discovery page limit for list-based sources")
	schedule    = flag.Bool("schedule", false, "Run as a daemon, auto-crawling all sources on the configured cron schedule")
	noAutoSave  = flag.Bool("no-auto-save", false, "Do not record crawled URLs (future runs re-fetch)")
	dryRun      = flag.Bool("dry-run", false, "Fetch and parse but write nothing")
	verbose     = flag.Bool("verbose", false, "Debug logging")
	listSources = flag.Bool("list-sources", false, "Print known sources and exit")
	showVersion = flag.Bool("version", false, "Print version information")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if *showVersion {
		fmt.Printf("gazette version %s\n", common.GetVersion())
		return exitOK
	}
	if *listSources {
		for _, name := range parsers.Names() {
			fmt.Println(name)
		}
		return exitOK
	}

	// Startup sequence: config, logger, banner.
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
	common.PrintBanner("Gazette")

	if *schedule {
		return runScheduled(config, logger)
	}

	if *sourceName == "" {
		logger.Error().Msg("--source is required (see --list-sources)")
		return exitError
	}

	parser, err := parsers.Get(*sourceName)
	if err != nil {
		logger.Error().Err(err).Msg("Unknown source")
		return exitError
	}

	var def *common.SourceDefinition
	if sf, err := common.LoadSourcesFile(config.Sources.Path); err == nil {
		def = sf.Definition(*sourceName)
	} else {
		logger.Warn().Err(err).Msg("Source definitions file not loaded; using crawler defaults")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := crawler.NewEngine(parser, def, config.Crawler, crawler.Options{
		OutputDir:  config.Output.Dir,
		DryRun:     *dryRun,
		NoAutoSave: *noAutoSave,
		MaxPages:   *maxPages,
	}, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create fetch engine")
		return exitError
	}
	defer engine.Close()

	stats, err := dispatch(ctx, engine, parser, config, logger)

	printStats(stats)

	if ctx.Err() != nil {
		logger.Warn().Msg("Crawl interrupted")
		return exitInterrupted
	}
	if err != nil {
		logger.Error().Err(err).Msg("Crawl failed")
		return exitError
	}
	return exitOK
}

// runScheduled blocks crawling every configured source on the cron
// schedule until interrupted.
func runScheduled(config *common.Config, logger arbor.ILogger) int {
	if config.Crawler.Schedule == "" {
		logger.Error().Msg("--schedule requires crawler.schedule in the configuration")
		return exitError
	}

	sf, err := common.LoadSourcesFile(config.Sources.Path)
	if err != nil {
		logger.Error().Err(err).Msg("Schedule mode needs the source definitions file")
		return exitError
	}
	defs := make([]*common.SourceDefinition, 0, len(sf.Sources))
	for i := range sf.Sources {
		defs = append(defs, &sf.Sources[i])
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(config, defs, logger)
	if err := sched.Start(); err != nil {
		logger.Error().Err(err).Msg("Failed to start scheduler")
		return exitError
	}
	defer sched.Stop()

	<-ctx.Done()
	logger.Warn().Msg("Scheduler interrupted")
	return exitInterrupted
}

// dispatch picks the crawl mode from the flag combination.
func dispatch(ctx context.Context, engine *crawler.Engine, parser parsers.Parser, config *common.Config, logger arbor.ILogger) (models.CrawlStatsSnapshot, error) {
	switch {
	case *fromDate != "" || *toDate != "":
		return runWindow(ctx, engine, parser, config, logger)
	case *idStart > 0 && *idEnd > 0:
		return engine.RunRange(ctx, *idStart, *idEnd, *reverse)
	case *autoLatest:
		return engine.RunAuto(ctx, *count)
	default:
		return engine.Stats(), errors.New("no crawl mode: use --auto-latest, --id-start/--id-end or --from/--to")
	}
}

// runWindow resolves a date window to an ID range and sweeps it.
func runWindow(ctx context.Context, engine *crawler.Engine, parser parsers.Parser, config *common.Config, logger arbor.ILogger) (models.CrawlStatsSnapshot, error) {
	if *fromDate == "" || *toDate == "" {
		return engine.Stats(), errors.New("--from and --to must be given together")
	}
	start, err := time.Parse("2006-01-02", *fromDate)
	if err != nil {
		return engine.Stats(), fmt.Errorf("invalid --from date: %w", err)
	}
	end, err := time.Parse("2006-01-02", *toDate)
	if err != nil {
		return engine.Stats(), fmt.Errorf("invalid --to date: %w", err)
	}

	transport := crawler.NewTransport(parser.SessionType(), config.Crawler.RequestTimeout, config.Crawler.UserAgentRotation, logger)
	defer transport.Close()

	nav := datenav.New(parser, common.NewDefaultDateNavConfig(), logger)
	startID, endID, err := nav.Resolve(ctx, transport, start, end)
	if err != nil {
		return engine.Stats(), err
	}
	return engine.CrawlWindow(ctx, startID, endID)
}

func printStats(stats models.CrawlStatsSnapshot) {
	fmt.Printf("\nCrawl summary:\n")
	fmt.Printf("  total:     %d\n", stats.Total)
	fmt.Printf("  success:   %d\n", stats.Success)
	fmt.Printf("  not found: %d\n", stats.NotFound)
	fmt.Printf("  blocked:   %d\n", stats.Blocked)
	fmt.Printf("  skipped:   %d\n", stats.Skipped)
	fmt.Printf("  failed:    %d\n", stats.Failed)
	fmt.Printf("  success rate: %.1f%%\n", stats.SuccessRate*100)
}
