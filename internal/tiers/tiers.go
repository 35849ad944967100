// Package tiers maps source domains to credibility tiers for downstream
// ranking. The table is static after load; lookups are pure.
package tiers

import (
	"strings"

	"github.com/ternarybob/gazette/internal/common"
	"github.com/ternarybob/gazette/internal/models"
)

// Table holds the domain -> tier mapping.
type Table struct {
	byDomain map[string]models.SourceTier
}

// NewTable builds a table from explicit domain -> tier name pairs.
// Unparseable tier names resolve to STANDARD.
func NewTable(mapping map[string]string) *Table {
	t := &Table{byDomain: make(map[string]models.SourceTier, len(mapping))}
	for domain, name := range mapping {
		tier, err := models.ParseSourceTier(name)
		if err != nil {
			tier = models.TierStandard
		}
		t.byDomain[normalize(domain)] = tier
	}
	return t
}

// FromSourcesFile builds the table from the source definitions file:
// per-source tiers plus the supplementary tiers map.
func FromSourcesFile(f *common.SourcesFile) *Table {
	mapping := make(map[string]string, len(f.Sources)+len(f.Tiers))
	for _, s := range f.Sources {
		if s.Domain != "" {
			mapping[s.Domain] = s.Tier
		}
	}
	for domain, name := range f.Tiers {
		mapping[domain] = name
	}
	return NewTable(mapping)
}

// Get returns the tier for a domain. Unmapped domains are STANDARD.
func (t *Table) Get(domain string) models.SourceTier {
	if tier, ok := t.byDomain[normalize(domain)]; ok {
		return tier
	}
	return models.TierStandard
}

func normalize(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	return strings.TrimPrefix(domain, "www.")
}
