package tiers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/gazette/internal/common"
	"github.com/ternarybob/gazette/internal/models"
)

func TestTableLookup(t *testing.T) {
	table := NewTable(map[string]string{
		"news.cnexpress.cn": "authoritative",
		"newsline.example":  "aggregator",
		"typo.example":      "not-a-tier",
	})

	tests := []struct {
		name   string
		domain string
		want   models.SourceTier
	}{
		{"mapped", "news.cnexpress.cn", models.TierAuthoritative},
		{"case insensitive", "News.CNExpress.CN", models.TierAuthoritative},
		{"www stripped", "www.newsline.example", models.TierAggregator},
		{"whitespace trimmed", "  news.cnexpress.cn ", models.TierAuthoritative},
		{"unmapped defaults to standard", "unknown.example", models.TierStandard},
		{"bad tier name defaults to standard", "typo.example", models.TierStandard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Get(tt.domain))
		})
	}
}

func TestFromSourcesFile(t *testing.T) {
	f := &common.SourcesFile{
		Sources: []common.SourceDefinition{
			{Name: "cnexpress", Domain: "news.cnexpress.cn", Tier: "authoritative"},
			{Name: "nodomian", Tier: "verified"}, // no domain, not mapped
		},
		Tiers: map[string]string{
			"feeds.partner.example": "aggregator",
		},
	}

	table := FromSourcesFile(f)
	assert.Equal(t, models.TierAuthoritative, table.Get("news.cnexpress.cn"))
	assert.Equal(t, models.TierAggregator, table.Get("feeds.partner.example"))
	assert.Equal(t, models.TierStandard, table.Get("anything.else"))
}
