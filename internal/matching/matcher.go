// Package matching groups the same real-world event across marketplaces so
// the comparator can line up prices platform against platform. Two events
// match when they start within 30 minutes of each other, resolve to the
// same canonical venue, and their normalized names are at least 85%
// similar.
package matching

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/seatsniper/seatsniper/internal/models"
)

const (
	// MatchWindow is the maximum start-time gap between two listings of
	// the same event.
	MatchWindow = 30 * time.Minute
	// NameThreshold is the minimum name similarity for a match.
	NameThreshold = 85.0
)

// Matcher groups events across platforms.
type Matcher struct{}

// NewMatcher returns a Matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// nameNoise are tokens stripped during name normalization.
var nameNoise = map[string]bool{
	"tickets": true,
	"live":    true,
	"concert": true,
}

// NormalizeName lowercases, collapses "vs."/"v." to "vs", strips noise
// tokens, and collapses whitespace. Idempotent.
func NormalizeName(name string) string {
	words := strings.Fields(strings.ToLower(name))
	out := words[:0]
	for _, w := range words {
		switch w {
		case "vs.", "v.", "vs":
			out = append(out, "vs")
		default:
			if !nameNoise[w] {
				out = append(out, w)
			}
		}
	}
	return strings.Join(out, " ")
}

// NameSimilarity scores two event names on [0,100]. Full-string Levenshtein
// is taken first; when one platform pads the name with city or sponsor
// tokens ("Blazers vs Lakers" vs "Portland Trail Blazers vs LA Lakers") the
// token-containment score of the shorter name against the longer one wins.
func NameSimilarity(a, b string) float64 {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == nb {
		return 100
	}
	full := similarityRatio(na, nb)

	shorter, longer := strings.Fields(na), strings.Fields(nb)
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) == 0 {
		return full
	}
	contained := 0
	for _, tok := range shorter {
		for _, cand := range longer {
			if tok == cand || similarityRatio(tok, cand) >= 80 {
				contained++
				break
			}
		}
	}
	tokenScore := float64(contained) / float64(len(shorter)) * 100

	if tokenScore > full {
		return tokenScore
	}
	return full
}

// Matches reports whether a and b are the same real-world event and, when
// they are, the pairwise confidence on [0,100].
func (m *Matcher) Matches(a, b models.Event) (bool, int) {
	gap := a.DateTime.Sub(b.DateTime)
	if gap < 0 {
		gap = -gap
	}
	if gap > MatchWindow {
		return false, 0
	}
	if CanonicalVenue(a.Venue.Name) != CanonicalVenue(b.Venue.Name) {
		return false, 0
	}
	nameSim := NameSimilarity(a.Name, b.Name)
	if nameSim < NameThreshold {
		return false, 0
	}

	timeProximity := math.Round((1 - gap.Minutes()/MatchWindow.Minutes()) * 100)
	confidence := int(math.Round(nameSim*0.5 + 100*0.3 + timeProximity*0.2))
	return true, confidence
}

// Group assembles cross-platform groups from a discovered event set.
// Same-platform events never merge; only groups with at least two
// platforms are emitted. Group confidence is the minimum pairwise
// confidence against the seed event.
func (m *Matcher) Group(events []models.Event) []models.EventGroup {
	// Deterministic iteration regardless of discovery order.
	sorted := make([]models.Event, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Key() < sorted[j].Key()
	})

	processed := make(map[string]bool, len(sorted))
	var groups []models.EventGroup

	for i, seed := range sorted {
		if processed[seed.Key()] {
			continue
		}
		members := map[models.Platform]models.Event{seed.Platform: seed}
		confidence := 100

		for _, cand := range sorted[i+1:] {
			if processed[cand.Key()] || cand.Platform == seed.Platform {
				continue
			}
			if _, taken := members[cand.Platform]; taken {
				continue
			}
			ok, pairConfidence := m.Matches(seed, cand)
			if !ok {
				continue
			}
			members[cand.Platform] = cand
			processed[cand.Key()] = true
			if pairConfidence < confidence {
				confidence = pairConfidence
			}
		}
		processed[seed.Key()] = true

		if len(members) < 2 {
			continue
		}
		group := models.EventGroup{
			GroupID:       groupID(seed),
			CanonicalName: NormalizeName(seed.Name),
			VenueName:     CanonicalVenue(seed.Venue.Name),
			EventDate:     seed.DateTime,
			Events:        members,
			Confidence:    confidence,
		}
		groups = append(groups, group)
		log.Debug().
			Str("group_id", group.GroupID).
			Int("platforms", len(members)).
			Int("confidence", confidence).
			Msg("cross-platform event group")
	}
	return groups
}

// groupID is a deterministic identity: 30 chars of the name hash, the
// venue slug, and the event date.
func groupID(seed models.Event) string {
	sum := sha256.Sum256([]byte(NormalizeName(seed.Name)))
	nameHash := hex.EncodeToString(sum[:])[:30]
	return fmt.Sprintf("%s_%s_%s", nameHash, slug(CanonicalVenue(seed.Venue.Name)), seed.DateTime.UTC().Format("2006-01-02"))
}

func slug(s string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
