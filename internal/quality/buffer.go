package quality

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ternarybob/gazette/internal/models"
)

// BufferEntry is one rejected article in the review buffer.
type BufferEntry struct {
	URL       string    `json:"url"`
	Headline  string    `json:"headline"`
	SourceID  string    `json:"source_id"`
	Reasons   []string  `json:"reasons"`
	Timestamp time.Time `json:"timestamp"`
}

// Buffer appends rejected articles to a JSON-lines file so a human can
// review and re-ingest them.
type Buffer struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// OpenBuffer opens (or creates) the review buffer at path.
func OpenBuffer(path string) (*Buffer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create buffer directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open quality buffer %s: %w", path, err)
	}
	return &Buffer{path: path, file: file}, nil
}

// Add records one rejection.
func (b *Buffer) Add(article *models.CanonicalArticle, reasons []string) error {
	entry := BufferEntry{
		URL:       article.URL,
		Headline:  article.Headline,
		SourceID:  article.SourceID,
		Reasons:   reasons,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode buffer entry: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append buffer entry: %w", err)
	}
	return nil
}

// Path returns the buffer file path.
func (b *Buffer) Path() string { return b.path }

// Close closes the underlying file.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.file == nil {
		return nil
	}
	err := b.file.Close()
	b.file = nil
	return err
}
