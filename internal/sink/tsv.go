// Package sink owns the crawler's output files: the per-crawl TSV of
// (URL, JSON-LD) records and the per-source crawled-URL log. Both are
// append-only and mutex-guarded so parallel workers never interleave
// partial lines.
package sink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/gazette/internal/models"
)

// Writer appends article records to one TSV file. Line format is
// URL<TAB>JSON<NEWLINE> with compact, ASCII-escaped JSON.
type Writer struct {
	path   string
	file   *os.File
	mu     sync.Mutex
	logger arbor.ILogger
}

// BatchReport summarizes one batch write.
type BatchReport struct {
	Total      int
	Success    int
	Failed     int
	FailedURLs []string
}

// NewWriter opens the crawl output file <source>_<timestamp>.tsv under dir.
func NewWriter(dir, source string, logger arbor.ILogger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.tsv", source, time.Now().Format("20060102_150405")))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file %s: %w", path, err)
	}

	logger.Info().Str("path", path).Msg("Crawl output file opened")
	return &Writer{path: path, file: file, logger: logger}, nil
}

// Path returns the output file path.
func (w *Writer) Path() string { return w.path }

// WriteRecord appends one record as a TSV line.
func (w *Writer) WriteRecord(record *models.ArticleRecord) error {
	line, err := EncodeLine(record)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.WriteString(line); err != nil {
		return fmt.Errorf("failed to write record for %s: %w", record.URL, err)
	}
	return nil
}

// WriteBatch appends records, reporting per-URL failures without aborting
// the batch.
func (w *Writer) WriteBatch(records []*models.ArticleRecord) BatchReport {
	report := BatchReport{Total: len(records)}
	for _, record := range records {
		if err := w.WriteRecord(record); err != nil {
			report.Failed++
			report.FailedURLs = append(report.FailedURLs, record.URL)
			w.logger.Warn().Err(err).Str("url", record.URL).Msg("Failed to write record")
			continue
		}
		report.Success++
	}
	return report
}

// Close flushes and closes the output file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// EncodeLine renders one TSV line for a record. JSON is compact with
// non-ASCII escaped as \uXXXX for downstream tooling compatibility.
func EncodeLine(record *models.ArticleRecord) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(record); err != nil {
		return "", fmt.Errorf("failed to encode record for %s: %w", record.URL, err)
	}

	// Encoder appends a newline; drop it before escaping.
	compact := strings.TrimRight(buf.String(), "\n")
	return record.URL + "\t" + escapeNonASCII(compact) + "\n", nil
}

// escapeNonASCII rewrites runes above 0x7F as \uXXXX escapes. Runes outside
// the BMP become surrogate pairs, matching encoding/json's own escaping.
func escapeNonASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r < 0x80:
			b.WriteRune(r)
		case r > 0xFFFF:
			r -= 0x10000
			b.WriteString(fmt.Sprintf(`\u%04x\u%04x`, 0xD800+(r>>10), 0xDC00+(r&0x3FF)))
		default:
			b.WriteString(fmt.Sprintf(`\u%04x`, r))
		}
	}
	return b.String()
}
