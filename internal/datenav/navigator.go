// Package datenav locates the article-ID range covering a date window.
// Date-encoded sources resolve by arithmetic on the ID digits; everything
// else falls back to a bounded binary search over a sparse keyspace where
// most probes miss.
package datenav

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/gazette/internal/common"
	"github.com/ternarybob/gazette/internal/interfaces"
	"github.com/ternarybob/gazette/internal/parsers"
)

// ErrNoInterval is returned when no valid ID interval can be found for
// the requested window. The engine refuses the date-range request rather
// than guessing.
var ErrNoInterval = errors.New("no ID interval for date window")

// Navigator resolves date windows to ID ranges for one parser.
type Navigator struct {
	parser parsers.Parser
	cfg    common.DateNavConfig
	logger arbor.ILogger
}

// New creates a navigator.
func New(parser parsers.Parser, cfg common.DateNavConfig, logger arbor.ILogger) *Navigator {
	return &Navigator{parser: parser, cfg: cfg, logger: logger}
}

// Resolve maps [startDate, endDate] to [startID, endID].
func (n *Navigator) Resolve(ctx context.Context, t interfaces.Transport, startDate, endDate time.Time) (int64, int64, error) {
	if endDate.Before(startDate) {
		startDate, endDate = endDate, startDate
	}

	layout := n.parser.Layout()
	if layout.DateEncoded {
		return n.resolveArithmetic(startDate, endDate, layout)
	}
	return n.resolveSearch(ctx, t, startDate, endDate)
}

// resolveArithmetic computes the window bounds directly from the ID
// layout: first ID of the start day, last ID of the end day.
func (n *Navigator) resolveArithmetic(startDate, endDate time.Time, layout parsers.IDLayout) (int64, int64, error) {
	startID, ok := parsers.EncodeDateID(startDate, layout, false)
	if !ok {
		return 0, 0, ErrNoInterval
	}
	endID, ok := parsers.EncodeDateID(endDate, layout, true)
	if !ok {
		return 0, 0, ErrNoInterval
	}

	n.logger.Debug().
		Str("source", n.parser.SourceName()).
		Int64("start_id", startID).
		Int64("end_id", endID).
		Msg("Date window resolved arithmetically")
	return startID, endID, nil
}

// resolveSearch binary-searches the keyspace using DateFor probes.
func (n *Navigator) resolveSearch(ctx context.Context, t interfaces.Transport, startDate, endDate time.Time) (int64, int64, error) {
	latest, err := n.parser.LatestID(ctx, t)
	if err != nil {
		return 0, 0, ErrNoInterval
	}

	startID, err := n.searchBoundary(ctx, t, startDate, 1, latest)
	if err != nil {
		return 0, 0, err
	}
	endID, err := n.searchBoundary(ctx, t, endDate.AddDate(0, 0, 1), startID, latest)
	if err != nil {
		// The window opens inside the valid range but its end could not be
		// located; cap at the newest known article.
		endID = latest
	} else if endID > startID {
		endID--
	}

	if endID < startID {
		return 0, 0, ErrNoInterval
	}

	n.logger.Debug().
		Str("source", n.parser.SourceName()).
		Int64("start_id", startID).
		Int64("end_id", endID).
		Msg("Date window resolved by binary search")
	return startID, endID, nil
}

// searchBoundary finds the lowest ID published on or after target.
func (n *Navigator) searchBoundary(ctx context.Context, t interfaces.Transport, target time.Time, low, high int64) (int64, error) {
	tolerance := time.Duration(n.cfg.SearchToleranceDays) * 24 * time.Hour
	best := int64(-1)

	for iter := 0; iter < n.cfg.MaxSearchIterations && low <= high; iter++ {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}

		mid := low + (high-low)/2
		date, probeID, ok := n.probe(ctx, t, mid)
		if !ok {
			// Neighborhood exhausted: the keyspace around mid is a gap.
			// Shrink toward the newer half, where sources are denser.
			low = mid + int64(n.cfg.MaxSkipAttempts) + 1
			continue
		}

		if date.Before(target) {
			low = probeID + 1
		} else {
			best = probeID
			high = probeID - 1
			if diff := date.Sub(target); diff >= 0 && diff <= tolerance {
				break // close enough
			}
		}
	}

	if best < 0 {
		return 0, ErrNoInterval
	}
	return best, nil
}

// probe resolves the date of an ID, tolerating gaps by trying neighbor
// offsets ±1, ±2, ... up to MaxSkipAttempts.
func (n *Navigator) probe(ctx context.Context, t interfaces.Transport, id int64) (time.Time, int64, bool) {
	if date, err := n.parser.DateFor(ctx, t, id); err == nil {
		return date, id, true
	}

	for offset := int64(1); offset <= int64(n.cfg.MaxSkipAttempts); offset++ {
		for _, candidate := range []int64{id + offset, id - offset} {
			if candidate < 1 {
				continue
			}
			if date, err := n.parser.DateFor(ctx, t, candidate); err == nil {
				return date, candidate, true
			}
		}
	}
	return time.Time{}, 0, false
}
