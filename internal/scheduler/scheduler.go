// Package scheduler runs periodic auto-crawls on a cron schedule.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/gazette/internal/common"
	"github.com/ternarybob/gazette/internal/crawler"
	"github.com/ternarybob/gazette/internal/parsers"
)

// crawlTimeout bounds one scheduled sweep across all sources.
const crawlTimeout = 2 * time.Hour

// Scheduler triggers RunAuto for each configured source on a cron
// schedule. Disabled when no schedule is set.
type Scheduler struct {
	cfg     *common.Config
	sources []*common.SourceDefinition
	cron    *cron.Cron
	logger  arbor.ILogger
}

// New creates a scheduler over the given source definitions.
func New(cfg *common.Config, sources []*common.SourceDefinition, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		sources: sources,
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger,
	}
}

// Start registers the crawl job. Returns without starting when the
// schedule is empty.
func (s *Scheduler) Start() error {
	schedule := s.cfg.Crawler.Schedule
	if schedule == "" {
		s.logger.Info().Msg("Auto-crawl scheduler disabled (no schedule configured)")
		return nil
	}

	if _, err := s.cron.AddFunc(schedule, s.runCrawl); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", schedule).
		Int("sources", len(s.sources)).
		Msg("Auto-crawl scheduler started")
	return nil
}

// Stop halts the scheduler. Running jobs finish on their own.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info().Msg("Auto-crawl scheduler stopped")
}

// RunNow triggers an immediate sweep in the background.
func (s *Scheduler) RunNow() {
	s.logger.Info().Msg("Triggering immediate auto-crawl")
	go s.runCrawl()
}

func (s *Scheduler) runCrawl() {
	ctx, cancel := context.WithTimeout(context.Background(), crawlTimeout)
	defer cancel()

	count := s.cfg.Crawler.ScheduleCount
	s.logger.Info().Int("count", count).Msg("Starting scheduled auto-crawl")

	for _, def := range s.sources {
		if ctx.Err() != nil {
			return
		}
		s.crawlSource(ctx, def, count)
	}
}

func (s *Scheduler) crawlSource(ctx context.Context, def *common.SourceDefinition, count int) {
	parser, err := parsers.Get(def.Name)
	if err != nil {
		s.logger.Warn().Err(err).Str("source", def.Name).Msg("Skipping source without parser")
		return
	}

	engine, err := crawler.NewEngine(parser, def, s.cfg.Crawler, crawler.Options{
		OutputDir: s.cfg.Output.Dir,
	}, s.logger)
	if err != nil {
		s.logger.Error().Err(err).Str("source", def.Name).Msg("Failed to create fetch engine")
		return
	}
	defer engine.Close()

	stats, err := engine.RunAuto(ctx, count)
	if err != nil {
		s.logger.Error().Err(err).Str("source", def.Name).Msg("Scheduled crawl failed")
		return
	}

	s.logger.Info().
		Str("source", def.Name).
		Int64("total", stats.Total).
		Int64("success", stats.Success).
		Int64("not_found", stats.NotFound).
		Msg("Scheduled crawl finished")
}
