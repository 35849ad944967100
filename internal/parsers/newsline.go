package parsers

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/gazette/internal/interfaces"
	"github.com/ternarybob/gazette/internal/models"
)

var newslineLinkPattern = regexp.MustCompile(`/story/(\d+)`)

// Newsline is a list-based source: article IDs are not dense, so they are
// discovered from paginated section listings rather than swept as a range.
type Newsline struct {
	domain string

	mu         sync.RWMutex
	discovered []int64
	urls       map[int64]string
}

// NewNewsline creates the newsline adapter.
func NewNewsline() *Newsline {
	return &Newsline{
		domain: "www.newsline-media.com",
		urls:   make(map[int64]string),
	}
}

func (p *Newsline) SourceName() string { return "newsline" }

func (p *Newsline) SessionType() interfaces.SessionType { return interfaces.SessionStandard }

func (p *Newsline) Layout() IDLayout { return IDLayout{} }

// URLFor only resolves IDs recorded by a previous DiscoverIDs pass.
func (p *Newsline) URLFor(id int64) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	url, ok := p.urls[id]
	return url, ok
}

// DiscoverIDs walks section pages newest-first and records story links in
// page order.
func (p *Newsline) DiscoverIDs(ctx context.Context, t interfaces.Transport, maxPages int) error {
	if maxPages <= 0 {
		maxPages = 5
	}

	for page := 1; page <= maxPages; page++ {
		listURL := fmt.Sprintf("https://%s/news?page=%d", p.domain, page)
		resp, err := t.Get(ctx, listURL)
		if err != nil {
			return fmt.Errorf("newsline discover page %d: %w", page, err)
		}
		if resp.StatusCode == 404 {
			break // past the last page
		}
		if resp.StatusCode != 200 {
			return fmt.Errorf("newsline discover page %d: status %d", page, resp.StatusCode)
		}

		found := p.recordLinks(resp.Body)
		if found == 0 {
			break // empty page ends the scan
		}
	}
	return nil
}

func (p *Newsline) recordLinks(html string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	found := 0
	for _, match := range newslineLinkPattern.FindAllStringSubmatch(html, -1) {
		id, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			continue
		}
		if _, seen := p.urls[id]; seen {
			continue
		}
		p.urls[id] = fmt.Sprintf("https://%s/story/%d", p.domain, id)
		p.discovered = append(p.discovered, id)
		found++
	}
	return found
}

// DiscoveredIDs returns recorded IDs in discovery order.
func (p *Newsline) DiscoveredIDs() []int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]int64, len(p.discovered))
	copy(out, p.discovered)
	return out
}

// LatestID is the highest discovered ID, discovering the first listing
// page if nothing has been scanned yet.
func (p *Newsline) LatestID(ctx context.Context, t interfaces.Transport) (int64, error) {
	if len(p.DiscoveredIDs()) == 0 {
		if err := p.DiscoverIDs(ctx, t, 1); err != nil {
			return 0, err
		}
	}

	var latest int64
	for _, id := range p.DiscoveredIDs() {
		if id > latest {
			latest = id
		}
	}
	if latest == 0 {
		return 0, fmt.Errorf("newsline latest id: nothing discovered")
	}
	return latest, nil
}

// DateFor fetches the story page and reads the published-time meta tag.
func (p *Newsline) DateFor(ctx context.Context, t interfaces.Transport, id int64) (time.Time, error) {
	url, ok := p.URLFor(id)
	if !ok {
		url = fmt.Sprintf("https://%s/story/%d", p.domain, id)
	}

	resp, err := t.Get(ctx, url)
	if err != nil {
		return time.Time{}, fmt.Errorf("newsline date for %d: %w", id, err)
	}
	if resp.StatusCode != 200 {
		return time.Time{}, ErrNoDate
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.Body))
	if err != nil {
		return time.Time{}, fmt.Errorf("newsline date for %d: %w", id, err)
	}

	raw, _ := doc.Find(`meta[property="article:published_time"]`).Attr("content")
	if raw == "" {
		return time.Time{}, ErrNoDate
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if date, err := time.Parse(layout, raw); err == nil {
			return date, nil
		}
	}
	return time.Time{}, ErrNoDate
}

func (p *Newsline) Parse(html, url string) (*models.ArticleRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("newsline parse: %w", err)
	}

	record := models.NewArticleRecord()
	record.URL = url
	record.InLanguage = "zh-CN"
	record.Publisher = "Newsline Media"

	if ld, ok := extractNewsArticle(doc); ok {
		record.Headline = ld.stringField("headline")
		record.ArticleBody = ld.stringField("articleBody")
		record.DatePublished = ld.stringField("datePublished")
		record.Author = ld.nameField("author")
		if pub := ld.nameField("publisher"); pub != "" {
			record.Publisher = pub
		}
		record.Keywords = ld.keywordsField()
		if record.Keywords == nil {
			record.Keywords = []string{}
		}
	}

	if record.Headline == "" {
		record.Headline = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if record.ArticleBody == "" {
		record.ArticleBody = extractParagraphs(doc, "article p, div.story-body p")
	}
	if record.DatePublished == "" {
		record.DatePublished, _ = doc.Find(`meta[property="article:published_time"]`).Attr("content")
	}

	if record.Headline == "" || len([]rune(record.ArticleBody)) < minParseableBody {
		return nil, ErrUnusableContent
	}
	return record, nil
}
