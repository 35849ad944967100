package parsers

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/gazette/internal/interfaces"
	"github.com/ternarybob/gazette/internal/models"
)

// minParseableBody is the shortest body a parser will accept. The quality
// gate applies the configured threshold later; this only rejects pages
// that are plainly not articles.
const minParseableBody = 20

var cnexpressIDPattern = regexp.MustCompile(`/article/(\d{12})\.html`)

// CNExpress is a range-based source with 12-digit date-encoded article IDs
// (YYYYMMDD plus a 4-digit sequence). The site fingerprints TLS, so it
// needs the impersonating session.
type CNExpress struct {
	domain string
}

// NewCNExpress creates the cnexpress adapter.
func NewCNExpress() *CNExpress {
	return &CNExpress{domain: "news.cnexpress.cn"}
}

func (p *CNExpress) SourceName() string { return "cnexpress" }

func (p *CNExpress) SessionType() interfaces.SessionType { return interfaces.SessionImpersonating }

func (p *CNExpress) Layout() IDLayout {
	return IDLayout{DateEncoded: true, Digits: 12}
}

func (p *CNExpress) URLFor(id int64) (string, bool) {
	if id <= 0 {
		return "", false
	}
	return fmt.Sprintf("https://%s/article/%012d.html", p.domain, id), true
}

// LatestID scans the homepage for article links and returns the highest ID.
func (p *CNExpress) LatestID(ctx context.Context, t interfaces.Transport) (int64, error) {
	resp, err := t.Get(ctx, "https://"+p.domain+"/")
	if err != nil {
		return 0, fmt.Errorf("cnexpress latest id: %w", err)
	}
	if resp.StatusCode != 200 {
		return 0, fmt.Errorf("cnexpress latest id: status %d", resp.StatusCode)
	}

	var latest int64
	for _, match := range cnexpressIDPattern.FindAllStringSubmatch(resp.Body, -1) {
		if id, err := strconv.ParseInt(match[1], 10, 64); err == nil && id > latest {
			latest = id
		}
	}
	if latest == 0 {
		return 0, fmt.Errorf("cnexpress latest id: no article links on homepage")
	}
	return latest, nil
}

// DateFor derives the date from the ID digits. No network round trip.
func (p *CNExpress) DateFor(_ context.Context, _ interfaces.Transport, id int64) (time.Time, error) {
	date, ok := DateFromEncodedID(id, p.Layout())
	if !ok {
		return time.Time{}, ErrNoDate
	}
	return date, nil
}

func (p *CNExpress) Parse(html, url string) (*models.ArticleRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("cnexpress parse: %w", err)
	}

	record := models.NewArticleRecord()
	record.URL = url
	record.InLanguage = "zh-CN"
	record.Publisher = "CN Express"

	if ld, ok := extractNewsArticle(doc); ok {
		record.Headline = ld.stringField("headline")
		record.ArticleBody = ld.stringField("articleBody")
		record.DatePublished = ld.stringField("datePublished")
		record.Author = ld.nameField("author")
		if pub := ld.nameField("publisher"); pub != "" {
			record.Publisher = pub
		}
		if lang := ld.stringField("inLanguage"); lang != "" {
			record.InLanguage = lang
		}
		record.Keywords = ld.keywordsField()
		if record.Keywords == nil {
			record.Keywords = []string{}
		}
	}

	// Fall back to the DOM when JSON-LD is absent or partial.
	if record.Headline == "" {
		record.Headline = strings.TrimSpace(doc.Find("h1.article-title").First().Text())
	}
	if record.Headline == "" {
		record.Headline, _ = doc.Find(`meta[property="og:title"]`).Attr("content")
	}
	if record.ArticleBody == "" {
		record.ArticleBody = extractParagraphs(doc, "div.article-content p")
	}
	if record.DatePublished == "" {
		record.DatePublished, _ = doc.Find(`meta[property="article:published_time"]`).Attr("content")
	}
	if record.Author == "" {
		record.Author = cleanseName(doc.Find("span.article-author").First().Text())
	}

	if record.Headline == "" || len([]rune(record.ArticleBody)) < minParseableBody {
		return nil, ErrUnusableContent
	}
	return record, nil
}

// extractParagraphs joins the text of matched paragraphs, skipping empties.
func extractParagraphs(doc *goquery.Document, selector string) string {
	var parts []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "")
}

// DateFromEncodedID extracts the calendar date from a date-encoded ID.
// ok is false for non-date-encoded layouts or IDs too short to carry a
// full YYYYMMDD prefix.
func DateFromEncodedID(id int64, layout IDLayout) (time.Time, bool) {
	if !layout.DateEncoded || id <= 0 {
		return time.Time{}, false
	}
	digits := strconv.FormatInt(id, 10)
	if len(digits) < 8 {
		return time.Time{}, false
	}
	// The date prefix sits at the declared width; shorter IDs are padded
	// with leading zeros, which can never form a valid date.
	if len(digits) < layout.Digits {
		return time.Time{}, false
	}
	prefix := digits[:8]
	date, err := time.Parse("20060102", prefix)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

// EncodeDateID builds the first (all-zero suffix) or last (all-nine suffix)
// ID for a calendar day at the layout's width.
func EncodeDateID(date time.Time, layout IDLayout, last bool) (int64, bool) {
	if !layout.DateEncoded {
		return 0, false
	}
	prefix, err := strconv.ParseInt(date.Format("20060102"), 10, 64)
	if err != nil {
		return 0, false
	}
	for i := 0; i < layout.SuffixDigits(); i++ {
		prefix *= 10
		if last {
			prefix += 9
		}
	}
	return prefix, true
}
