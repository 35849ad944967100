// Package quality filters articles before they reach the chunker. An
// article either passes, gets buffered with reasons for later review, or
// is skipped as an exact duplicate. Nothing is silently discarded.
package quality

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ternarybob/gazette/internal/common"
	"github.com/ternarybob/gazette/internal/models"
)

// Verdict is the gate's decision for one article.
type Verdict int

const (
	VerdictPass Verdict = iota
	VerdictBuffered
	VerdictSkipped
)

// String returns the verdict name for logging.
func (v Verdict) String() string {
	switch v {
	case VerdictPass:
		return "pass"
	case VerdictBuffered:
		return "buffered"
	case VerdictSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Result pairs a verdict with its reasons. Reasons is empty on PASS and
// SKIPPED.
type Result struct {
	Verdict Verdict
	Reasons []string
}

var (
	htmlTagPattern = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	// scriptPatterns flag bodies where the extractor swallowed page
	// JavaScript instead of prose.
	scriptPatterns = []*regexp.Regexp{
		regexp.MustCompile(`function\s*\(`),
		regexp.MustCompile(`function\s+\w+\s*\(`),
		regexp.MustCompile(`document\.(getElementById|querySelector|createElement)`),
		regexp.MustCompile(`window\.(location|onload|addEventListener)`),
		regexp.MustCompile(`var\s+\w+\s*=\s*`),
	}
)

// Gate applies the configured quality checks. seenURLs is the caller's
// duplicate set for this run; Gate does not mutate it.
type Gate struct {
	cfg common.QualityConfig
}

// NewGate builds a gate from configuration.
func NewGate(cfg common.QualityConfig) *Gate {
	return &Gate{cfg: cfg}
}

// Check evaluates one article. Duplicate detection is exact URL match
// against seen.
func (g *Gate) Check(article *models.CanonicalArticle, seen map[string]bool) Result {
	if seen[article.URL] {
		return Result{Verdict: VerdictSkipped}
	}

	var reasons []string

	if strings.TrimSpace(article.Headline) == "" {
		reasons = append(reasons, "missing headline")
	}

	body := article.Body
	bodyLen := len([]rune(body))
	if bodyLen < g.cfg.MinBodyLength {
		reasons = append(reasons, "body too short")
	}

	if bodyLen > 0 {
		if ratio := htmlRatio(body); ratio > g.cfg.MaxHTMLRatio {
			reasons = append(reasons, "html remnants in body")
		}
		if hasScriptContent(body) {
			reasons = append(reasons, "script content in body")
		}
		if g.cfg.CJKCheck && cjkRatio(body) < g.cfg.MinCJKRatio {
			reasons = append(reasons, "cjk ratio below threshold")
		}
	}

	if len(reasons) > 0 {
		return Result{Verdict: VerdictBuffered, Reasons: reasons}
	}
	return Result{Verdict: VerdictPass}
}

// htmlRatio is the share of body characters inside HTML tags.
func htmlRatio(body string) float64 {
	matches := htmlTagPattern.FindAllString(body, -1)
	if len(matches) == 0 {
		return 0
	}
	tagChars := 0
	for _, m := range matches {
		tagChars += len([]rune(m))
	}
	return float64(tagChars) / float64(len([]rune(body)))
}

func hasScriptContent(body string) bool {
	for _, p := range scriptPatterns {
		if p.MatchString(body) {
			return true
		}
	}
	return false
}

// cjkRatio is the share of non-space characters in CJK ranges.
func cjkRatio(body string) float64 {
	var cjk, total int
	for _, r := range body {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
			unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r) {
			cjk++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(cjk) / float64(total)
}
