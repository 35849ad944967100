// Package parsers contains the per-site adapters that turn raw HTML into
// normalized article records. Adapters are stateless apart from list-based
// discovery caches and are safe for concurrent use by the fetch engine.
package parsers

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/gazette/internal/interfaces"
	"github.com/ternarybob/gazette/internal/models"
)

// ErrUnusableContent is returned by Parse when the page cannot yield a
// valid article (body too short, parse failure, blocked interstitial).
var ErrUnusableContent = errors.New("content unusable")

// ErrNoDate is returned by DateFor when no publish date can be resolved
// for an ID.
var ErrNoDate = errors.New("no date for id")

// IDLayout describes how a source's numeric article IDs are shaped.
type IDLayout struct {
	// DateEncoded is true when the leading eight digits are YYYYMMDD.
	DateEncoded bool
	// Digits is the total ID width: 8, 12 or 14 for date-encoded sources.
	Digits int
}

// SuffixDigits is the number of sequence digits after the date prefix.
func (l IDLayout) SuffixDigits() int {
	if !l.DateEncoded || l.Digits < 8 {
		return 0
	}
	return l.Digits - 8
}

// Parser is a site adapter. The fetch engine owns the transport; parsers
// only borrow it for lightweight lookups.
type Parser interface {
	// SourceName is the stable identifier for the source.
	SourceName() string

	// SessionType is the transport the site needs. Honored when no
	// transport is injected into the engine.
	SessionType() interfaces.SessionType

	// Layout reports the source's ID shape for smart-jump and the date
	// navigator's direct-arithmetic path.
	Layout() IDLayout

	// URLFor builds the article URL for a numeric ID. ok is false when the
	// site is list-based and the ID has not been discovered.
	URLFor(id int64) (url string, ok bool)

	// LatestID is the best-effort newest available article ID.
	LatestID(ctx context.Context, t interfaces.Transport) (int64, error)

	// DateFor resolves the publish date of an ID without parsing the full
	// article. Returns ErrNoDate when the ID does not resolve.
	DateFor(ctx context.Context, t interfaces.Transport, id int64) (time.Time, error)

	// Parse converts fetched HTML into an article record. Returns
	// ErrUnusableContent when the page cannot yield a valid article.
	Parse(html, url string) (*models.ArticleRecord, error)
}

// ListParser is the capability interface for list-based sources: article
// IDs come from discovered lists instead of a numeric range.
type ListParser interface {
	Parser

	// DiscoverIDs scans the site's section pages and records the article
	// IDs found there, in declared order.
	DiscoverIDs(ctx context.Context, t interfaces.Transport, maxPages int) error

	// DiscoveredIDs returns the IDs recorded by DiscoverIDs, in order.
	DiscoveredIDs() []int64
}
