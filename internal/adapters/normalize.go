package adapters

import (
	"strings"
	"time"

	"github.com/seatsniper/seatsniper/internal/models"
)

// defaultShowTime is assumed when a platform reports only a local date.
const defaultShowTime = "19:00:00"

// ResolveDateTime applies the resolution order every adapter follows:
// platform UTC field, then local date plus local time (19:00 default),
// then a best-effort parse of a human string. ok=false means the item is
// dropped.
func ResolveDateTime(utcField, localDate, localTime, human string) (time.Time, bool) {
	if utcField != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, utcField); err == nil {
				return t.UTC(), true
			}
		}
	}
	if localDate != "" {
		lt := localTime
		if lt == "" {
			lt = defaultShowTime
		}
		if t, err := time.Parse("2006-01-02 15:04:05", localDate+" "+lt); err == nil {
			return t.UTC(), true
		}
	}
	if human != "" {
		for _, layout := range []string{
			"Jan 2, 2006 3:04 PM",
			"Jan 2, 2006",
			"January 2, 2006",
			"2006-01-02",
			"Mon, Jan 2, 3:04 PM",
		} {
			if t, err := time.Parse(layout, human); err == nil {
				// layouts without a year parse into year 0
				if t.Year() == 0 {
					now := time.Now()
					t = t.AddDate(now.Year(), 0, 0)
					if t.Before(now) {
						t = t.AddDate(1, 0, 0)
					}
				}
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// categoryKeywords maps classification text to canonical categories.
// First hit wins; concerts is the default.
var categoryKeywords = []struct {
	words    []string
	category models.Category
}{
	{[]string{"sport", "nba", "nfl", "nhl", "mlb", "mls", "soccer", "football", "basketball", "baseball", "hockey", "golf", "tennis", "boxing", "mma", "racing"}, models.CategorySports},
	{[]string{"theatre", "theater", "broadway", "musical", "play", "opera", "ballet", "dance"}, models.CategoryTheater},
	{[]string{"comedy", "comedian", "stand-up", "standup", "improv"}, models.CategoryComedy},
	{[]string{"festival", "fest"}, models.CategoryFestivals},
	{[]string{"music", "concert", "rock", "pop", "hip-hop", "rap", "country", "jazz", "electronic", "r&b", "tour"}, models.CategoryConcerts},
}

// InferCategory classifies from the platform's primary segment and genre
// strings.
func InferCategory(segment, genre string) models.Category {
	text := strings.ToLower(segment + " " + genre)
	for _, group := range categoryKeywords {
		for _, w := range group.words {
			if strings.Contains(text, w) {
				return group.category
			}
		}
	}
	return models.CategoryConcerts
}

// deliveryMappings are checked in order; first matching substring wins.
var deliveryMappings = []struct {
	substrings []string
	delivery   models.DeliveryType
}{
	{[]string{"instant", "mobile"}, models.DeliveryInstant},
	{[]string{"electronic", "digital"}, models.DeliveryElectronic},
	{[]string{"willcall", "will call"}, models.DeliveryWillCall},
	{[]string{"ups", "fedex", "mail", "ship"}, models.DeliveryPhysical},
}

// MapDeliveryType normalizes a platform delivery label. Electronic is the
// default.
func MapDeliveryType(raw string) models.DeliveryType {
	text := strings.ToLower(raw)
	for _, m := range deliveryMappings {
		for _, s := range m.substrings {
			if strings.Contains(text, s) {
				return m.delivery
			}
		}
	}
	return models.DeliveryElectronic
}

// splitSeats breaks a comma-separated seat string into trimmed numbers.
func splitSeats(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	seats := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			seats = append(seats, p)
		}
	}
	return seats
}

// NormalizePriceRange keeps a range only when both bounds are positive.
func NormalizePriceRange(lowest, highest float64, currency string) *models.PriceRange {
	if lowest <= 0 || highest <= 0 {
		return nil
	}
	if currency == "" {
		currency = "USD"
	}
	return &models.PriceRange{Min: lowest, Max: highest, Currency: currency}
}
