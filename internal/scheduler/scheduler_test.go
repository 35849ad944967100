package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/gazette/internal/common"
)

func testSchedulerConfig(schedule string) *common.Config {
	cfg := common.NewDefaultConfig()
	cfg.Crawler.Schedule = schedule
	return cfg
}

func TestStartWithoutScheduleIsDisabled(t *testing.T) {
	s := New(testSchedulerConfig(""), nil, common.GetLogger())
	require.NoError(t, s.Start())
	assert.Empty(t, s.cron.Entries())
}

func TestStartRegistersCrawlJob(t *testing.T) {
	s := New(testSchedulerConfig("0 0 3 * * *"), nil, common.GetLogger())
	require.NoError(t, s.Start())
	defer s.Stop()
	assert.Len(t, s.cron.Entries(), 1)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := New(testSchedulerConfig("not-a-cron-spec"), nil, common.GetLogger())
	assert.Error(t, s.Start())
}

func TestRunCrawlSkipsUnknownSources(t *testing.T) {
	cfg := testSchedulerConfig("0 0 3 * * *")
	cfg.Crawler.ScheduleCount = 5

	s := New(cfg, []*common.SourceDefinition{{Name: "no-such-source"}}, common.GetLogger())
	// A source without a registered adapter is skipped, not fatal.
	s.runCrawl()
}
