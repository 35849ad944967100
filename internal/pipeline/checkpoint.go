package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Checkpoint is the resumable state of one TSV indexing run. It lives
// next to the TSV as <tsv>.checkpoint.json and is removed on clean
// completion.
type Checkpoint struct {
	TSVPath           string            `json:"tsv_path"`
	ProcessedURLs     map[string]bool   `json:"processed_urls"`
	FailedURLs        map[string]string `json:"failed_urls"`
	LastProcessedLine int               `json:"last_processed_line"`
	StartedAt         time.Time         `json:"started_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// CheckpointPath returns the checkpoint location for a TSV.
func CheckpointPath(tsvPath string) string {
	return tsvPath + ".checkpoint.json"
}

// NewCheckpoint starts fresh state for a TSV.
func NewCheckpoint(tsvPath string) *Checkpoint {
	return &Checkpoint{
		TSVPath:       tsvPath,
		ProcessedURLs: make(map[string]bool),
		FailedURLs:    make(map[string]string),
		StartedAt:     time.Now().UTC(),
	}
}

// LoadCheckpoint reads a checkpoint file. Missing file returns (nil, nil)
// so callers can distinguish "no previous run" from a read error.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", path, err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint %s: %w", path, err)
	}
	if cp.ProcessedURLs == nil {
		cp.ProcessedURLs = make(map[string]bool)
	}
	if cp.FailedURLs == nil {
		cp.FailedURLs = make(map[string]string)
	}
	return &cp, nil
}

// Save writes the checkpoint atomically (temp file + rename).
func (c *Checkpoint) Save(path string) error {
	c.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}
	return nil
}

// Remove deletes the checkpoint file; missing is fine.
func RemoveCheckpoint(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove checkpoint %s: %w", path, err)
	}
	return nil
}
