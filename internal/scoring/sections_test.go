package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveSectionTier_Overrides(t *testing.T) {
	overrides := map[string]SectionTier{
		"GOLD CIRCLE": TierPremium,
		"204":         TierObstructed,
	}
	assert.Equal(t, TierPremium, ResolveSectionTier("GOLD CIRCLE", overrides))
	assert.Equal(t, TierPremium, ResolveSectionTier("SECTION GOLD CIRCLE", overrides), "normalized lookup strips SECTION")
	assert.Equal(t, TierObstructed, ResolveSectionTier("Sec 204", overrides), "numeric-only lookup")
}

func TestResolveSectionTier_Keywords(t *testing.T) {
	cases := map[string]SectionTier{
		"Floor A":             TierPremium,
		"PIT":                 TierPremium,
		"VIP Club":            TierPremium,
		"Courtside 2":         TierPremium,
		"Lower Bowl 112":      TierUpperPremium,
		"Terrace Box":         TierUpperPremium,
		"Upper Deck":          TierUpperLevel,
		"Balcony Left":        TierUpperLevel,
		"Mezzanine C":         TierUpperLevel,
		"Obstructed View 310": TierObstructed,
		"Limited View":        TierObstructed,
		"Behind Stage":        TierObstructed,
	}
	for section, want := range cases {
		assert.Equal(t, want, ResolveSectionTier(section, nil), "section %q", section)
	}
}

func TestResolveSectionTier_NumericHeuristic(t *testing.T) {
	assert.Equal(t, TierUpperPremium, ResolveSectionTier("112", nil))
	assert.Equal(t, TierMidTier, ResolveSectionTier("Section 215", nil))
	assert.Equal(t, TierUpperLevel, ResolveSectionTier("324", nil))
	assert.Equal(t, TierUpperLevel, ResolveSectionTier("418", nil))
}

func TestResolveSectionTier_Default(t *testing.T) {
	assert.Equal(t, TierMidTier, ResolveSectionTier("", nil))
	assert.Equal(t, TierMidTier, ResolveSectionTier("Mystery Zone", nil))
	assert.Equal(t, TierMidTier, ResolveSectionTier("7", nil), "small numbers have no range mapping")
}

func TestParseRow(t *testing.T) {
	cases := []struct {
		row  string
		want int
	}{
		{"1", 1},
		{"12", 12},
		{"A", 1},
		{"a", 1},
		{"Z", 26},
		{"AA", 28},
		{"AB", 29},
		{"GA", 1},
		{"general admission", 1},
		{"PIT", 1},
		{"", -1},
		{"0", -1},
		{"-3", -1},
		{"A1", -1},
		{"ROW", -1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseRow(tc.row), "row %q", tc.row)
	}
}

func TestMiddleRow(t *testing.T) {
	assert.Equal(t, 10, MiddleRow(20))
	assert.Equal(t, 11, MiddleRow(21))
	assert.Equal(t, 1, MiddleRow(1))
	assert.Equal(t, -1, MiddleRow(0))
}
