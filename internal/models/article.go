package models

import (
	"strings"
	"time"
)

// ArticleRecord is one news article normalized to the Schema.org
// NewsArticle shape. RawJSON preserves the JSON-LD exactly as emitted by
// the site parser so downstream tooling can re-read the original.
type ArticleRecord struct {
	Type          string   `json:"@type"`
	Headline      string   `json:"headline"`
	ArticleBody   string   `json:"articleBody"`
	DatePublished string   `json:"datePublished"`
	Author        string   `json:"author"`
	Publisher     string   `json:"publisher"`
	URL           string   `json:"url"`
	Keywords      []string `json:"keywords"`
	InLanguage    string   `json:"inLanguage"`
}

// NewArticleRecord creates a record with the NewsArticle type set.
func NewArticleRecord() *ArticleRecord {
	return &ArticleRecord{Type: "NewsArticle", Keywords: []string{}}
}

// CanonicalArticle is the ingestion-side view of one TSV record. It carries
// the validity verdict so malformed lines are surfaced, not silently dropped.
type CanonicalArticle struct {
	URL           string
	SourceID      string
	Headline      string
	Body          string
	DatePublished time.Time
	Author        string
	Publisher     string
	Keywords      []string
	Language      string
	RawJSON       string

	Valid  bool
	Errors []string
}

// AddError marks the article invalid with a human-readable reason.
func (a *CanonicalArticle) AddError(reason string) {
	a.Valid = false
	a.Errors = append(a.Errors, reason)
}

// SourceIDFromURL derives the source identifier from an article URL:
// lower-cased host with any leading "www." stripped.
func SourceIDFromURL(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	return strings.TrimPrefix(host, "www.")
}
