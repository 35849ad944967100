package parsers

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// jsonldDocument is the loosely-typed shape of one JSON-LD block. Sites
// emit authors and keywords in several shapes; normalization happens after
// decode.
type jsonldDocument map[string]interface{}

// extractNewsArticle scans <script type="application/ld+json"> blocks for a
// NewsArticle object. Tolerates top-level arrays and @graph wrappers.
func extractNewsArticle(doc *goquery.Document) (jsonldDocument, bool) {
	var found jsonldDocument

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}

		var decoded interface{}
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return true // malformed block, keep scanning
		}

		if article, ok := findNewsArticle(decoded); ok {
			found = article
			return false
		}
		return true
	})

	return found, found != nil
}

// findNewsArticle walks a decoded JSON-LD value looking for an object with
// @type NewsArticle (or Article as a fallback).
func findNewsArticle(v interface{}) (jsonldDocument, bool) {
	switch val := v.(type) {
	case map[string]interface{}:
		if isNewsArticleType(val["@type"]) {
			return val, true
		}
		if graph, ok := val["@graph"].([]interface{}); ok {
			for _, item := range graph {
				if article, ok := findNewsArticle(item); ok {
					return article, true
				}
			}
		}
	case []interface{}:
		for _, item := range val {
			if article, ok := findNewsArticle(item); ok {
				return article, true
			}
		}
	}
	return nil, false
}

func isNewsArticleType(t interface{}) bool {
	switch typ := t.(type) {
	case string:
		return typ == "NewsArticle" || typ == "Article"
	case []interface{}:
		for _, item := range typ {
			if s, ok := item.(string); ok && (s == "NewsArticle" || s == "Article") {
				return true
			}
		}
	}
	return false
}

// stringField reads a string value from a JSON-LD document.
func (d jsonldDocument) stringField(key string) string {
	if s, ok := d[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// nameField normalizes author/publisher values: plain string, an object
// with a "name" field, or an array of either. Multiple names join with ", ".
func (d jsonldDocument) nameField(key string) string {
	return normalizeName(d[key])
}

func normalizeName(v interface{}) string {
	switch val := v.(type) {
	case string:
		return cleanseName(val)
	case map[string]interface{}:
		if name, ok := val["name"].(string); ok {
			return cleanseName(name)
		}
	case []interface{}:
		var names []string
		for _, item := range val {
			if name := normalizeName(item); name != "" {
				names = append(names, name)
			}
		}
		return strings.Join(names, ", ")
	}
	return ""
}

// cleanseName strips decoration sites attach to bylines.
func cleanseName(name string) string {
	name = strings.TrimSpace(name)
	for _, prefix := range []string{"记者", "作者：", "作者:", "文/", "By ", "by "} {
		name = strings.TrimPrefix(name, prefix)
	}
	return strings.TrimSpace(strings.Trim(name, "|/"))
}

// keywordsField normalizes keywords: comma-separated string or array.
func (d jsonldDocument) keywordsField() []string {
	switch val := d["keywords"].(type) {
	case string:
		return splitKeywords(val)
	case []interface{}:
		var out []string
		for _, item := range val {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
		return out
	}
	return nil
}

func splitKeywords(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '，' || r == ';' || r == '；'
	}) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
