package models

import (
	"fmt"
	"strings"
)

// SourceTier is the credibility bucket of a domain, used by downstream
// ranking. STANDARD is the default for unmapped sources.
type SourceTier int

const (
	TierAuthoritative SourceTier = 1
	TierVerified      SourceTier = 2
	TierStandard      SourceTier = 3
	TierAggregator    SourceTier = 4
)

// String returns the tier name.
func (t SourceTier) String() string {
	switch t {
	case TierAuthoritative:
		return "authoritative"
	case TierVerified:
		return "verified"
	case TierStandard:
		return "standard"
	case TierAggregator:
		return "aggregator"
	default:
		return "standard"
	}
}

// ParseSourceTier maps a tier name to its enum value.
func ParseSourceTier(name string) (SourceTier, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "authoritative":
		return TierAuthoritative, nil
	case "verified":
		return TierVerified, nil
	case "standard", "":
		return TierStandard, nil
	case "aggregator":
		return TierAggregator, nil
	default:
		return TierStandard, fmt.Errorf("unknown source tier %q", name)
	}
}
