// Package ingest turns crawler TSV lines back into canonical articles.
// The crawl side writes best-effort JSON-LD from hostile HTML, so every
// field here is parsed defensively: malformed input produces an invalid
// article carrying its reasons, never a silent drop.
package ingest

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/gazette/internal/models"
)

// rawRecord mirrors the JSON half of a TSV line with the field fallbacks
// seen in the wild: headline|name, articleBody|text, author/publisher as
// string, object or array, keywords as array or comma string.
type rawRecord struct {
	Headline      string          `json:"headline"`
	Name          string          `json:"name"`
	ArticleBody   string          `json:"articleBody"`
	Text          string          `json:"text"`
	DatePublished string          `json:"datePublished"`
	Author        json.RawMessage `json:"author"`
	Publisher     json.RawMessage `json:"publisher"`
	Keywords      json.RawMessage `json:"keywords"`
	InLanguage    string          `json:"inLanguage"`
}

// ParseLine converts one TSV line into a canonical article. The verdict
// travels on the article: Valid=false plus Errors for anything malformed.
func ParseLine(line string) *models.CanonicalArticle {
	article := &models.CanonicalArticle{Valid: true}

	line = strings.TrimRight(line, "\r\n")
	parts := strings.SplitN(line, "\t", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		article.AddError("line is not URL<TAB>JSON")
		return article
	}

	article.URL = parts[0]
	article.RawJSON = parts[1]
	article.SourceID = sourceID(parts[0])

	var raw rawRecord
	if err := json.Unmarshal([]byte(parts[1]), &raw); err != nil {
		article.AddError(fmt.Sprintf("invalid JSON: %v", err))
		return article
	}

	article.Headline = firstNonEmpty(raw.Headline, raw.Name)
	article.Body = firstNonEmpty(raw.ArticleBody, raw.Text)
	article.Author = nameOf(raw.Author)
	article.Publisher = nameOf(raw.Publisher)
	article.Keywords = keywordsOf(raw.Keywords)
	article.Language = raw.InLanguage

	if raw.DatePublished == "" {
		article.AddError("missing datePublished")
	} else if date, err := ParseDate(raw.DatePublished); err != nil {
		article.AddError(fmt.Sprintf("unparseable datePublished %q", raw.DatePublished))
	} else {
		article.DatePublished = date
	}

	if article.Headline == "" {
		article.AddError("missing headline")
	}
	if article.Body == "" {
		article.AddError("missing article body")
	}
	return article
}

// dateLayouts lists the publication-date shapes sources actually emit, in
// rough frequency order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate accepts the ISO-8601 variants found in crawled JSON-LD,
// including timestamps whose ±HH:MM offset was stripped upstream.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format %q", s)
}

// sourceID extracts the normalized host from an article URL. A URL that
// does not parse falls back to the raw string so the article still groups
// under something stable.
func sourceID(articleURL string) string {
	u, err := url.Parse(articleURL)
	if err != nil || u.Host == "" {
		return models.SourceIDFromURL(articleURL)
	}
	return models.SourceIDFromURL(u.Host)
}

// nameOf normalizes string | {"name": ...} | array-of-either to a single
// comma-joined name string.
func nameOf(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Name != "" {
		return strings.TrimSpace(obj.Name)
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		names := make([]string, 0, len(list))
		for _, item := range list {
			if name := nameOf(item); name != "" {
				names = append(names, name)
			}
		}
		return strings.Join(names, ", ")
	}
	return ""
}

// keywordsOf normalizes array-of-strings | comma-separated string, with
// both full-width and ASCII commas as separators.
func keywordsOf(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return cleanKeywords(list)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return cleanKeywords(strings.FieldsFunc(s, func(r rune) bool {
			return r == ',' || r == '，' || r == ';' || r == '；'
		}))
	}
	return nil
}

func cleanKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, kw := range in {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
