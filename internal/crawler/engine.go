// Package crawler is the concurrent fetch engine: per-source concurrency
// limits, retry with backoff, global rate-limit cooldown, user-agent
// rotation, persistent URL de-dup and smart jumps over exhausted ID
// ranges.
package crawler

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/semaphore"

	"github.com/ternarybob/gazette/internal/common"
	"github.com/ternarybob/gazette/internal/interfaces"
	"github.com/ternarybob/gazette/internal/models"
	"github.com/ternarybob/gazette/internal/parsers"
	"github.com/ternarybob/gazette/internal/sink"
)

// Options adjust one engine instance.
type Options struct {
	// Transport overrides the parser's session preference when set. The
	// caller keeps ownership of an injected transport.
	Transport interfaces.Transport
	// OutputDir receives the TSV and the crawled-URL log.
	OutputDir string
	// DryRun fetches and parses but writes nothing.
	DryRun bool
	// NoAutoSave skips the crawled-URL log so a future run re-fetches.
	NoAutoSave bool
	// MaxPages bounds list discovery for list-based sources.
	MaxPages int
}

// Engine crawls one source. It owns its transport (unless injected), its
// de-dup registry, its output files and its statistics counters.
type Engine struct {
	parser        parsers.Parser
	def           *common.SourceDefinition
	cfg           common.CrawlerConfig
	opts          Options
	transport     interfaces.Transport
	ownsTransport bool
	writer        *sink.Writer
	registry      *sink.URLRegistry
	retry         *RetryPolicy
	pacer         *Pacer
	cooldown      *CooldownGate
	sem           *semaphore.Weighted
	limit         int64
	stats         *models.CrawlStats
	logger        arbor.ILogger
}

// NewEngine builds an engine for one source. def may be nil for sources
// without a definitions entry; engine-wide defaults apply.
func NewEngine(parser parsers.Parser, def *common.SourceDefinition, cfg common.CrawlerConfig, opts Options, logger arbor.ILogger) (*Engine, error) {
	limit := cfg.ConcurrentLimit
	minDelay, maxDelay := cfg.MinDelay, cfg.MaxDelay
	if def != nil {
		if def.ConcurrentLimit > 0 {
			limit = def.ConcurrentLimit
		}
		if def.MinDelay > 0 {
			minDelay = def.MinDelay
		}
		if def.MaxDelay > 0 {
			maxDelay = def.MaxDelay
		}
	}
	if limit < 1 {
		limit = 1
	}

	e := &Engine{
		parser:   parser,
		def:      def,
		cfg:      cfg,
		opts:     opts,
		retry:    NewRetryPolicy(cfg.MaxRetries, cfg.MaxRetryDelay, cfg.TimeoutAsNotFound),
		pacer:    NewPacer(minDelay, maxDelay),
		cooldown: NewCooldownGate(cfg.RateLimitCooldown),
		sem:      semaphore.NewWeighted(int64(limit)),
		limit:    int64(limit),
		stats:    &models.CrawlStats{},
		logger:   logger,
	}

	if opts.Transport != nil {
		e.transport = opts.Transport
	} else {
		e.transport = NewTransport(parser.SessionType(), cfg.RequestTimeout, cfg.UserAgentRotation, logger)
		e.ownsTransport = true
	}

	if !opts.DryRun {
		writer, err := sink.NewWriter(opts.OutputDir, parser.SourceName(), logger)
		if err != nil {
			return nil, err
		}
		e.writer = writer
	}

	registry, err := sink.OpenURLRegistry(opts.OutputDir, parser.SourceName())
	if err != nil {
		if e.writer != nil {
			e.writer.Close()
		}
		return nil, err
	}
	e.registry = registry

	logger.Info().
		Str("source", parser.SourceName()).
		Str("session", string(parser.SessionType())).
		Int("concurrent_limit", limit).
		Int("known_urls", registry.Len()).
		Msg("Fetch engine ready")

	return e, nil
}

// Stats returns a snapshot of the engine-lifetime counters. The entry
// points return per-run deltas instead.
func (e *Engine) Stats() models.CrawlStatsSnapshot {
	return e.stats.Snapshot()
}

// runStats is the delta recorded since a run started.
func (e *Engine) runStats(before models.CrawlStatsSnapshot) models.CrawlStatsSnapshot {
	return e.stats.Snapshot().Since(before)
}

// Close releases output files and, when owned, the transport session.
func (e *Engine) Close() error {
	var firstErr error
	if e.writer != nil {
		if err := e.writer.Close(); err != nil {
			firstErr = err
		}
	}
	if e.registry != nil {
		if err := e.registry.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.ownsTransport {
		if err := e.transport.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RunAuto crawls the newest count articles. Range-based sources sweep back
// from the latest ID; list-based sources crawl their discovered lists.
func (e *Engine) RunAuto(ctx context.Context, count int) (models.CrawlStatsSnapshot, error) {
	before := e.stats.Snapshot()
	if count <= 0 {
		return e.runStats(before), fmt.Errorf("count must be positive, got %d", count)
	}

	if lp, ok := e.parser.(parsers.ListParser); ok {
		if err := lp.DiscoverIDs(ctx, e.transport, e.opts.MaxPages); err != nil {
			return e.runStats(before), fmt.Errorf("list discovery failed: %w", err)
		}
		ids := lp.DiscoveredIDs()
		if len(ids) > count {
			ids = ids[:count]
		}
		e.runIDs(ctx, ids, nil, 0)
		return e.runStats(before), nil
	}

	latest, err := e.parser.LatestID(ctx, e.transport)
	if err != nil {
		return e.runStats(before), fmt.Errorf("failed to resolve latest ID: %w", err)
	}

	start := latest - int64(count) + 1
	if start < 1 {
		start = 1
	}
	return e.RunRange(ctx, start, latest, true)
}

// RunRange sweeps [startID, endID]. With reverse the sweep runs newest to
// oldest and the smart-jump heuristic stays disabled (jumps only advance
// to the next calendar day).
func (e *Engine) RunRange(ctx context.Context, startID, endID int64, reverse bool) (models.CrawlStatsSnapshot, error) {
	before := e.stats.Snapshot()
	if startID > endID {
		return e.runStats(before), fmt.Errorf("invalid range [%d, %d]", startID, endID)
	}

	var jumper *SmartJumper
	if !reverse && e.def != nil && e.def.SmartJump {
		jumper = NewSmartJumper(e.parser.Layout(), e.cfg.SmartJumpThreshold, e.logger)
	}

	batchSize := e.cfg.BatchSize
	if batchSize < 1 {
		batchSize = 10
	}

	if reverse {
		for id := endID; id >= startID; id -= int64(batchSize) {
			if ctx.Err() != nil {
				break
			}
			low := id - int64(batchSize) + 1
			if low < startID {
				low = startID
			}
			ids := make([]int64, 0, batchSize)
			for v := id; v >= low; v-- {
				ids = append(ids, v)
			}
			e.runIDs(ctx, ids, nil, 0)
		}
		return e.runStats(before), ctx.Err()
	}

	current := startID
	for current <= endID {
		if ctx.Err() != nil {
			break
		}

		ids := make([]int64, 0, batchSize)
		for v := current; v <= endID && len(ids) < batchSize; v++ {
			ids = append(ids, v)
		}

		e.runIDs(ctx, ids, jumper, endID)
		current = ids[len(ids)-1] + 1

		if jumper != nil {
			if target, ok := jumper.Target(current-1, endID); ok {
				current = target
			}
		}
	}
	return e.runStats(before), ctx.Err()
}

// RunList crawls explicit URLs.
func (e *Engine) RunList(ctx context.Context, urls []string) (models.CrawlStatsSnapshot, error) {
	before := e.stats.Snapshot()
	for _, url := range urls {
		if ctx.Err() != nil {
			break
		}
		if err := e.sem.Acquire(ctx, 1); err != nil {
			break
		}
		go func(url string) {
			defer e.sem.Release(1)
			e.stats.Record(e.processURL(ctx, url))
		}(url)
	}
	e.drain()
	return e.runStats(before), ctx.Err()
}

// runIDs processes one batch concurrently. Outcomes are fed to the smart
// jumper in ID order once the batch completes, so the consecutive-failure
// counter stays deterministic despite concurrency.
func (e *Engine) runIDs(ctx context.Context, ids []int64, jumper *SmartJumper, endID int64) {
	results := make([]models.FetchStatus, len(ids))

	for i, id := range ids {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			results[i] = models.FetchBlocked
			e.stats.Record(models.FetchBlocked)
			continue
		}
		go func(i int, id int64) {
			defer e.sem.Release(1)
			status := e.processID(ctx, id)
			results[i] = status
			e.stats.Record(status)
		}(i, id)
	}

	e.drain()

	if jumper != nil {
		for _, status := range results {
			jumper.Observe(status)
		}
	}
}

// drain waits for all in-flight workers by acquiring the full semaphore
// weight, then hands it straight back. Uses a background context so a
// cancelled crawl still waits for its in-flight tasks (best-effort drain).
func (e *Engine) drain() {
	if err := e.sem.Acquire(context.Background(), e.limit); err == nil {
		e.sem.Release(e.limit)
	}
}

// processID resolves an ID to a URL and runs the per-article flow.
func (e *Engine) processID(ctx context.Context, id int64) (status models.FetchStatus) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Int64("id", id).Str("panic", fmt.Sprint(r)).Msg("Fetch task panicked")
			status = models.FetchFailed
		}
	}()

	url, ok := e.parser.URLFor(id)
	if !ok {
		return models.FetchNotFound
	}
	return e.processURL(ctx, url)
}

// processURL is the per-article flow: de-dup check, paced fetch, parse,
// persist. Exactly one status comes back per attempted article.
func (e *Engine) processURL(ctx context.Context, url string) (status models.FetchStatus) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Str("url", url).Str("panic", fmt.Sprint(r)).Msg("Fetch task panicked")
			status = models.FetchFailed
		}
	}()

	if e.registry.Contains(url) {
		return models.FetchSkipped
	}

	if err := e.pacer.Wait(ctx); err != nil {
		return models.FetchBlocked
	}

	out := e.retry.Fetch(ctx, e.transport, e.cooldown, url, e.logger)
	switch out.kind {
	case outcomeNotFound:
		return models.FetchNotFound
	case outcomeBlocked, outcomeRateLimited, outcomeRetryable:
		return models.FetchBlocked
	}

	record, err := e.parser.Parse(out.body, url)
	if err != nil {
		if errors.Is(err, parsers.ErrUnusableContent) {
			return models.FetchNotFound
		}
		e.logger.Debug().Err(err).Str("url", url).Msg("Parse failed")
		return models.FetchFailed
	}

	if e.opts.DryRun {
		return models.FetchSuccess
	}

	// URL log first: a crash between the two writes must not leave a
	// TSV record the registry does not know about.
	if !e.opts.NoAutoSave {
		if _, err := e.registry.Add(url); err != nil {
			e.logger.Warn().Err(err).Str("url", url).Msg("Failed to record crawled URL")
			return models.FetchFailed
		}
	}

	if err := e.writer.WriteRecord(record); err != nil {
		e.logger.Warn().Err(err).Str("url", url).Msg("Failed to write record")
		return models.FetchFailed
	}

	e.logger.Debug().
		Str("url", url).
		Str("headline", record.Headline).
		Msg("Article crawled")
	return models.FetchSuccess
}

// CrawlWindow sweeps an ID range resolved by the date navigator.
func (e *Engine) CrawlWindow(ctx context.Context, startID, endID int64) (models.CrawlStatsSnapshot, error) {
	return e.RunRange(ctx, startID, endID, false)
}
