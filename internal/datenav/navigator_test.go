package datenav

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/gazette/internal/common"
	"github.com/ternarybob/gazette/internal/interfaces"
	"github.com/ternarybob/gazette/internal/models"
	"github.com/ternarybob/gazette/internal/parsers"
)

// sparseParser simulates a sequential-ID source with gaps: dates exist
// only for IDs present in the dates map.
type sparseParser struct {
	layout parsers.IDLayout
	latest int64
	dates  map[int64]time.Time
	probes int
}

func (s *sparseParser) SourceName() string                  { return "sparse" }
func (s *sparseParser) SessionType() interfaces.SessionType { return interfaces.SessionStandard }
func (s *sparseParser) Layout() parsers.IDLayout            { return s.layout }
func (s *sparseParser) URLFor(int64) (string, bool)         { return "", false }

func (s *sparseParser) LatestID(context.Context, interfaces.Transport) (int64, error) {
	return s.latest, nil
}

func (s *sparseParser) DateFor(_ context.Context, _ interfaces.Transport, id int64) (time.Time, error) {
	s.probes++
	if date, ok := s.dates[id]; ok {
		return date, nil
	}
	return time.Time{}, parsers.ErrNoDate
}

func (s *sparseParser) Parse(string, string) (*models.ArticleRecord, error) {
	return nil, parsers.ErrUnusableContent
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolveArithmetic(t *testing.T) {
	p := &sparseParser{layout: parsers.IDLayout{DateEncoded: true, Digits: 12}}
	nav := New(p, common.NewDefaultDateNavConfig(), common.GetLogger())

	startID, endID, err := nav.Resolve(context.Background(), nil, day(2026, 1, 10), day(2026, 1, 12))
	require.NoError(t, err)

	assert.Equal(t, int64(202601100000), startID)
	assert.Equal(t, int64(202601129999), endID)
	assert.Zero(t, p.probes, "arithmetic path must not probe the network")
}

func TestResolveArithmeticSwapsReversedWindow(t *testing.T) {
	p := &sparseParser{layout: parsers.IDLayout{DateEncoded: true, Digits: 12}}
	nav := New(p, common.NewDefaultDateNavConfig(), common.GetLogger())

	startID, endID, err := nav.Resolve(context.Background(), nil, day(2026, 1, 12), day(2026, 1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(202601100000), startID)
	assert.Equal(t, int64(202601129999), endID)
}

// denseDates populates sequential IDs with dates: ids 1..n mapped so that
// each day covers `perDay` consecutive IDs starting at startDay.
func denseDates(n int64, perDay int64, startDay time.Time) map[int64]time.Time {
	dates := make(map[int64]time.Time, n)
	for id := int64(1); id <= n; id++ {
		dates[id] = startDay.AddDate(0, 0, int((id-1)/perDay))
	}
	return dates
}

// withinTolerance asserts an ID's publish date sits in [from, to].
func withinTolerance(t *testing.T, p *sparseParser, id int64, from, to time.Time) {
	t.Helper()
	date, ok := p.dates[id]
	require.True(t, ok, "ID %d has no date", id)
	assert.False(t, date.Before(from), "ID %d date %s before %s", id, date, from)
	assert.False(t, date.After(to), "ID %d date %s after %s", id, date, to)
}

func TestResolveBinarySearch(t *testing.T) {
	// 100 IDs, 10 per day, starting 2026-01-01: day 2026-01-03 spans
	// IDs 21..30. The search is tolerance-bounded, so boundaries land
	// within search_tolerance_days of the window edges.
	p := &sparseParser{
		layout: parsers.IDLayout{},
		latest: 100,
		dates:  denseDates(100, 10, day(2026, 1, 1)),
	}
	nav := New(p, common.NewDefaultDateNavConfig(), common.GetLogger())

	startID, endID, err := nav.Resolve(context.Background(), nil, day(2026, 1, 3), day(2026, 1, 3))
	require.NoError(t, err)

	require.LessOrEqual(t, startID, endID)
	withinTolerance(t, p, startID, day(2026, 1, 3), day(2026, 1, 4))
	withinTolerance(t, p, endID, day(2026, 1, 3), day(2026, 1, 5))
}

func TestResolveBinarySearchWithGaps(t *testing.T) {
	dates := denseDates(100, 10, day(2026, 1, 1))
	// Punch gaps around the IDs the search will probe.
	delete(dates, 20)
	delete(dates, 21)
	delete(dates, 50)

	p := &sparseParser{latest: 100, dates: dates}
	nav := New(p, common.NewDefaultDateNavConfig(), common.GetLogger())

	startID, endID, err := nav.Resolve(context.Background(), nil, day(2026, 1, 3), day(2026, 1, 4))
	require.NoError(t, err)

	require.LessOrEqual(t, startID, endID)
	withinTolerance(t, p, startID, day(2026, 1, 3), day(2026, 1, 4))
	withinTolerance(t, p, endID, day(2026, 1, 3), day(2026, 1, 6))
}

func TestResolveWindowPastLatestCapsAtLatest(t *testing.T) {
	p := &sparseParser{latest: 30, dates: denseDates(30, 10, day(2026, 1, 1))}
	nav := New(p, common.NewDefaultDateNavConfig(), common.GetLogger())

	// End date beyond the newest article: endID caps at latest.
	startID, endID, err := nav.Resolve(context.Background(), nil, day(2026, 1, 3), day(2026, 2, 1))
	require.NoError(t, err)
	withinTolerance(t, p, startID, day(2026, 1, 3), day(2026, 1, 4))
	assert.Equal(t, int64(30), endID)
}

func TestResolveNoInterval(t *testing.T) {
	// Every probe misses: nothing resolvable.
	p := &sparseParser{latest: 100, dates: map[int64]time.Time{}}
	nav := New(p, common.NewDefaultDateNavConfig(), common.GetLogger())

	_, _, err := nav.Resolve(context.Background(), nil, day(2026, 1, 3), day(2026, 1, 4))
	assert.ErrorIs(t, err, ErrNoInterval)
}
