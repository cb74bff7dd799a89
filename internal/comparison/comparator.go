// Package comparison derives per-section cheapest-per-platform prices and
// the overall best deal for a cross-platform event group.
package comparison

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/seatsniper/seatsniper/internal/models"
)

// sectionOrderSentinel sorts sections without a number last.
const sectionOrderSentinel = 999

// EventListings is one platform's view of a matched event.
type EventListings struct {
	Event    models.Event
	Listings []models.Listing
}

// Offer is the cheapest listing one platform has for a section.
type Offer struct {
	Platform models.Platform `json:"platform"`
	Price    float64         `json:"price"`
	Listing  models.Listing  `json:"listing"`
}

// BestDeal is the winning offer of a section plus savings against the next
// cheapest platform.
type BestDeal struct {
	Platform       models.Platform `json:"platform"`
	Price          float64         `json:"price"`
	Savings        float64         `json:"savings"`
	SavingsPercent int             `json:"savings_percent"`
	Listing        models.Listing  `json:"listing"`
}

// SectionComparison lines up one normalized section across platforms.
// Offers are sorted ascending by price.
type SectionComparison struct {
	Section string   `json:"section"`
	Offers  []Offer  `json:"offers"`
	Best    BestDeal `json:"best"`
}

// Result is the full comparison for a matched event.
type Result struct {
	Sections []SectionComparison `json:"sections"`
	Best     *BestDeal           `json:"best,omitempty"`
}

// Compare builds the comparison. Fewer than two platforms yields an empty
// result: there is nothing to compare against.
func Compare(byPlatform map[models.Platform]EventListings) Result {
	if len(byPlatform) < 2 {
		return Result{}
	}

	// normalized section -> platform -> cheapest listing
	cheapest := make(map[string]map[models.Platform]models.Listing)
	for platform, el := range byPlatform {
		for _, l := range el.Listings {
			if l.PricePerTicket <= 0 {
				continue
			}
			section := NormalizeSection(l.Section)
			if cheapest[section] == nil {
				cheapest[section] = make(map[models.Platform]models.Listing)
			}
			if best, ok := cheapest[section][platform]; !ok || l.PricePerTicket < best.PricePerTicket {
				cheapest[section][platform] = l
			}
		}
	}

	sections := make([]SectionComparison, 0, len(cheapest))
	for section, perPlatform := range cheapest {
		offers := make([]Offer, 0, len(perPlatform))
		for platform, l := range perPlatform {
			offers = append(offers, Offer{Platform: platform, Price: l.PricePerTicket, Listing: l})
		}
		sort.Slice(offers, func(i, j int) bool {
			if offers[i].Price != offers[j].Price {
				return offers[i].Price < offers[j].Price
			}
			return offers[i].Platform < offers[j].Platform
		})

		best := BestDeal{Platform: offers[0].Platform, Price: offers[0].Price, Listing: offers[0].Listing}
		if len(offers) > 1 {
			next := offers[1].Price
			best.Savings = next - best.Price
			if next > 0 {
				best.SavingsPercent = int(math.Round(best.Savings / next * 100))
			}
		}
		sections = append(sections, SectionComparison{Section: section, Offers: offers, Best: best})
	}

	sort.Slice(sections, func(i, j int) bool {
		ni, nj := sectionNumber(sections[i].Section), sectionNumber(sections[j].Section)
		if ni != nj {
			return ni < nj
		}
		return sections[i].Section < sections[j].Section
	})

	var overall *BestDeal
	for i := range sections {
		b := sections[i].Best
		if overall == nil || b.Price < overall.Price {
			overall = &sections[i].Best
		}
	}
	return Result{Sections: sections, Best: overall}
}

// NormalizeSection canonicalizes a section label for cross-platform
// comparison. Row suffixes and bare "sec"/"section" qualifiers are
// dropped, so "Sec. 101", "SECTION 101", and "101" land in one bucket.
// Idempotent: normalizing twice equals normalizing once.
func NormalizeSection(s string) string {
	s = strings.ToLower(s)

	// punctuation to spaces
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	tokens := strings.Fields(b.String())
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		switch tokens[i] {
		case "row":
			i++ // drop the row label that follows
		case "sec", "section":
			// qualifier only, the number that follows identifies the section
		case "ga":
			out = append(out, "general", "admission")
		default:
			out = append(out, tokens[i])
		}
	}
	return strings.Join(out, " ")
}

func sectionNumber(section string) int {
	start := -1
	for i, r := range section {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			n, _ := strconv.Atoi(section[start:i])
			return n
		}
	}
	if start >= 0 {
		n, _ := strconv.Atoi(section[start:])
		return n
	}
	return sectionOrderSentinel
}
