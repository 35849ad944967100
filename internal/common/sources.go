package common

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SourceDefinition describes one news source: how to reach it, how its
// article IDs are laid out, and how politely to crawl it. Loaded from the
// source definitions file (YAML).
type SourceDefinition struct {
	Name   string `yaml:"name"`
	Domain string `yaml:"domain"`
	Tier   string `yaml:"tier"`

	// Session selects the transport: "standard" or "impersonating".
	Session string `yaml:"session"`

	// DateEncoded marks sources whose article IDs embed a calendar date.
	// IDDigits is the total ID width (8, 12 or 14 digits).
	DateEncoded bool `yaml:"date_encoded"`
	IDDigits    int  `yaml:"id_digits"`

	// SmartJump enables the next-calendar-day jump heuristic. Only honored
	// for date-encoded sources.
	SmartJump bool `yaml:"smart_jump"`

	// Per-source crawl overrides. Zero values fall back to [crawler] config.
	ConcurrentLimit int           `yaml:"concurrent_limit"`
	MinDelay        time.Duration `yaml:"min_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`

	Language string `yaml:"language"`
}

// SourcesFile is the on-disk shape of the source definitions file.
type SourcesFile struct {
	Sources []SourceDefinition `yaml:"sources"`
	// Tiers maps additional domains to tier names for domains crawled
	// indirectly (aggregated feeds, syndication partners).
	Tiers map[string]string `yaml:"tiers"`
}

// LoadSourcesFile reads and parses the source definitions file.
func LoadSourcesFile(path string) (*SourcesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file %s: %w", path, err)
	}

	var f SourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse sources file %s: %w", path, err)
	}

	seen := make(map[string]bool, len(f.Sources))
	for _, s := range f.Sources {
		if s.Name == "" {
			return nil, fmt.Errorf("sources file %s: source with empty name", path)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("sources file %s: duplicate source %q", path, s.Name)
		}
		seen[s.Name] = true
		if s.DateEncoded && s.IDDigits != 8 && s.IDDigits != 12 && s.IDDigits != 14 {
			return nil, fmt.Errorf("sources file %s: source %q has unsupported id_digits %d", path, s.Name, s.IDDigits)
		}
	}

	return &f, nil
}

// Definition returns the definition for a source name, or nil.
func (f *SourcesFile) Definition(name string) *SourceDefinition {
	for i := range f.Sources {
		if f.Sources[i].Name == name {
			return &f.Sources[i]
		}
	}
	return nil
}
