package sink

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// URLRegistry is the persistent per-source de-dup set backed by
// <source>.txt, one URL per line. The URL is appended to disk before the
// record reaches the TSV so a crash never produces an unlogged success.
type URLRegistry struct {
	path string
	mu   sync.Mutex
	seen map[string]bool
	file *os.File
}

// OpenURLRegistry loads <source>.txt from dir, creating it if missing.
func OpenURLRegistry(dir, source string) (*URLRegistry, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}

	path := filepath.Join(dir, source+".txt")
	r := &URLRegistry{path: path, seen: make(map[string]bool)}

	if data, err := os.ReadFile(path); err == nil {
		scanner := bufio.NewScanner(strings.NewReader(string(data)))
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if url := strings.TrimSpace(scanner.Text()); url != "" {
				r.seen[url] = true
			}
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read registry %s: %w", path, err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry %s: %w", path, err)
	}
	r.file = file

	return r, nil
}

// Contains reports whether a URL was already crawled.
func (r *URLRegistry) Contains(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[url]
}

// Add records a URL, appending it to disk before updating the in-memory
// set. Returns false when the URL was already present.
func (r *URLRegistry) Add(url string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seen[url] {
		return false, nil
	}
	if _, err := r.file.WriteString(url + "\n"); err != nil {
		return false, fmt.Errorf("failed to append URL to registry: %w", err)
	}
	r.seen[url] = true
	return true, nil
}

// Len returns the number of known URLs.
func (r *URLRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

// Close closes the append handle.
func (r *URLRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
