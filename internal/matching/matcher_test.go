package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seatsniper/seatsniper/internal/models"
)

func event(platform models.Platform, id, name, venue string, at time.Time) models.Event {
	return models.Event{
		Platform:   platform,
		PlatformID: id,
		Name:       name,
		Venue:      models.Venue{Name: venue, City: "portland", State: "OR"},
		DateTime:   at,
		Category:   models.CategorySports,
	}
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"Blazers vs. Lakers Tickets": "blazers vs lakers",
		"Blazers v. Lakers":          "blazers vs lakers",
		"Taylor Swift LIVE  Concert": "taylor swift",
		"  The   Weeknd ":            "the weeknd",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeName(in), "input %q", in)
	}
}

func TestNormalizeName_Idempotent(t *testing.T) {
	inputs := []string{"Blazers vs. Lakers Tickets", "Hamilton", "Phish Live"}
	for _, in := range inputs {
		once := NormalizeName(in)
		assert.Equal(t, once, NormalizeName(once))
	}
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("abc", "abc"))
	assert.Equal(t, 3, levenshtein("", "abc"))
	assert.Equal(t, 1, levenshtein("kitten", "mitten"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
}

func TestCanonicalVenue(t *testing.T) {
	assert.Equal(t, "Moda Center", CanonicalVenue("Moda Center"))
	assert.Equal(t, "Moda Center", CanonicalVenue("Rose Garden Arena"))
	assert.Equal(t, "Crypto.com Arena", CanonicalVenue("STAPLES CENTER"))
	assert.Equal(t, "Some Local Hall", CanonicalVenue("some local hall"))
}

func TestMatches_CrossPlatformSameGame(t *testing.T) {
	at := time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)
	a := event(models.PlatformTicketmaster, "tm1", "Blazers vs Lakers", "Moda Center", at)
	b := event(models.PlatformStubHub, "sh1", "Portland Trail Blazers v. LA Lakers tickets", "Rose Garden Arena", at.Add(10*time.Minute))

	m := NewMatcher()
	ok, confidence := m.Matches(a, b)
	require.True(t, ok)
	assert.GreaterOrEqual(t, confidence, 85)
}

func TestMatches_Rejections(t *testing.T) {
	at := time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)
	m := NewMatcher()

	base := event(models.PlatformTicketmaster, "tm1", "Blazers vs Lakers", "Moda Center", at)

	farApart := event(models.PlatformStubHub, "sh1", "Blazers vs Lakers", "Moda Center", at.Add(31*time.Minute))
	ok, _ := m.Matches(base, farApart)
	assert.False(t, ok, "31 minutes apart is outside the window")

	wrongVenue := event(models.PlatformStubHub, "sh2", "Blazers vs Lakers", "Chase Center", at)
	ok, _ = m.Matches(base, wrongVenue)
	assert.False(t, ok)

	differentGame := event(models.PlatformStubHub, "sh3", "Blazers vs Warriors", "Moda Center", at)
	ok, _ = m.Matches(base, differentGame)
	assert.False(t, ok)
}

func TestGroup_EmitsOnlyMultiPlatform(t *testing.T) {
	at := time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)
	events := []models.Event{
		event(models.PlatformTicketmaster, "tm1", "Blazers vs Lakers", "Moda Center", at),
		event(models.PlatformStubHub, "sh1", "Portland Trail Blazers v. LA Lakers tickets", "Rose Garden Arena", at.Add(10*time.Minute)),
		event(models.PlatformSeatGeek, "sg9", "Hamilton", "Keller Auditorium", at),
	}

	groups := NewMatcher().Group(events)
	require.Len(t, groups, 1, "the lone Hamilton listing must not form a group")

	g := groups[0]
	assert.Len(t, g.Events, 2)
	assert.Contains(t, g.Events, models.PlatformTicketmaster)
	assert.Contains(t, g.Events, models.PlatformStubHub)
	assert.GreaterOrEqual(t, g.Confidence, 85)
	assert.Equal(t, "Moda Center", g.VenueName)
	assert.Contains(t, g.GroupID, "_moda-center_2026-03-14")
}

func TestGroup_NeverMergesSamePlatform(t *testing.T) {
	at := time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)
	events := []models.Event{
		event(models.PlatformTicketmaster, "tm1", "Blazers vs Lakers", "Moda Center", at),
		event(models.PlatformTicketmaster, "tm2", "Blazers vs Lakers", "Moda Center", at),
	}
	groups := NewMatcher().Group(events)
	assert.Empty(t, groups)
}

func TestGroup_Deterministic(t *testing.T) {
	at := time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)
	events := []models.Event{
		event(models.PlatformStubHub, "sh1", "Blazers vs Lakers tickets", "Rose Garden", at.Add(5*time.Minute)),
		event(models.PlatformTicketmaster, "tm1", "Blazers vs Lakers", "Moda Center", at),
	}
	a := NewMatcher().Group(events)
	reversed := []models.Event{events[1], events[0]}
	b := NewMatcher().Group(reversed)
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].GroupID, b[0].GroupID)
}
