package scoring

import (
	"strconv"
	"strings"
)

// keyword heuristics, checked in order after explicit lookups miss
var tierKeywords = []struct {
	words []string
	tier  SectionTier
}{
	{[]string{"floor", "pit", "vip", "club", "courtside", "field", "diamond"}, TierPremium},
	{[]string{"lower", "terrace", "box"}, TierUpperPremium},
	{[]string{"upper", "balcony", "gallery", "mezzanine"}, TierUpperLevel},
	{[]string{"obstructed", "limited", "partial", "behind"}, TierObstructed},
}

// ResolveSectionTier maps a free-form section name to its tier.
// Resolution order: exact override, normalized override, numeric-only
// override, keyword heuristic, numeric-range heuristic, default mid-tier.
// The overrides map is the venue-specific table; supplying it is optional
// and the monitor currently passes none.
func ResolveSectionTier(section string, overrides map[string]SectionTier) SectionTier {
	if section == "" {
		return TierMidTier
	}

	if tier, ok := overrides[section]; ok {
		return tier
	}

	normalized := normalizeSectionKey(section)
	if tier, ok := overrides[normalized]; ok {
		return tier
	}

	digits := digitsOnly(section)
	if digits != "" {
		if tier, ok := overrides[digits]; ok {
			return tier
		}
	}

	lower := strings.ToLower(section)
	for _, group := range tierKeywords {
		for _, w := range group.words {
			if strings.Contains(lower, w) {
				return group.tier
			}
		}
	}

	if digits != "" {
		if n, err := strconv.Atoi(digits); err == nil {
			switch {
			case n >= 100 && n <= 199:
				return TierUpperPremium
			case n >= 200 && n <= 299:
				return TierMidTier
			case n >= 300:
				return TierUpperLevel
			}
		}
	}

	return TierMidTier
}

func normalizeSectionKey(section string) string {
	s := strings.ToUpper(section)
	s = strings.ReplaceAll(s, "SECTION", "")
	s = strings.ReplaceAll(s, "SEC", "")
	return strings.TrimSpace(s)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
