package monitor

import (
	"sort"
	"sync"
	"time"

	"github.com/seatsniper/seatsniper/internal/adapters"
	"github.com/seatsniper/seatsniper/internal/models"
	"github.com/seatsniper/seatsniper/internal/telemetry"
)

// Tier buckets tracked events by urgency.
type Tier string

const (
	TierHigh   Tier = "high"   // event within 7 days
	TierMedium Tier = "medium" // within 30 days
	TierLow    Tier = "low"    // beyond 30 days
)

// tierOf classifies by days until the event. Past events get no tier;
// the pruner removes them.
func tierOf(event models.Event, now time.Time) (Tier, bool) {
	d := event.DaysUntil(now)
	switch {
	case d < 0:
		return "", false
	case d <= 7:
		return TierHigh, true
	case d <= 30:
		return TierMedium, true
	default:
		return TierLow, true
	}
}

// trackedEvent is one entry of the polling worklist: the shared
// bookkeeping record plus the adapter that discovered the event.
type trackedEvent struct {
	models.TrackedEvent
	adapter adapters.Adapter
}

// trackedSet is the concurrent tracked-events map. Discovery writes,
// listings cycles read; per-entry poll bookkeeping is single-writer per
// key because each event belongs to exactly one tier at a time.
type trackedSet struct {
	mu      sync.RWMutex
	entries map[string]*trackedEvent // keyed by Event.Key()
}

func newTrackedSet() *trackedSet {
	return &trackedSet{entries: make(map[string]*trackedEvent)}
}

// add inserts a new event; existing keys keep their bookkeeping but take
// the fresher event data. Reports whether the key was new.
func (s *trackedSet) add(event models.Event, adapter adapters.Adapter) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := event.Key()
	if existing, ok := s.entries[key]; ok {
		existing.Event = event
		return false
	}
	s.entries[key] = &trackedEvent{TrackedEvent: models.TrackedEvent{Event: event}, adapter: adapter}
	telemetry.TrackedEvents.Set(float64(len(s.entries)))
	return true
}

// prunePast removes events older than the cutoff and returns how many
// were dropped.
func (s *trackedSet) prunePast(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for key, entry := range s.entries {
		if entry.Event.DateTime.Before(cutoff) {
			delete(s.entries, key)
			dropped++
		}
	}
	telemetry.TrackedEvents.Set(float64(len(s.entries)))
	return dropped
}

// inTier returns up to limit events of the tier, soonest first.
func (s *trackedSet) inTier(tier Tier, now time.Time, limit int) []*trackedEvent {
	s.mu.RLock()
	var selected []*trackedEvent
	for _, entry := range s.entries {
		if t, ok := tierOf(entry.Event, now); ok && t == tier {
			selected = append(selected, entry)
		}
	}
	s.mu.RUnlock()

	sort.Slice(selected, func(i, j int) bool {
		return selected[i].Event.DateTime.Before(selected[j].Event.DateTime)
	})
	if limit > 0 && len(selected) > limit {
		selected = selected[:limit]
	}
	return selected
}

// events snapshots every tracked event, used by the matcher after
// discovery.
func (s *trackedSet) events() []models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Event, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry.Event)
	}
	return out
}

// markPolled records poll bookkeeping for one entry.
func (s *trackedSet) markPolled(key string, listingCount int) {
	s.mu.Lock()
	if entry, ok := s.entries[key]; ok {
		entry.LastPolled = time.Now()
		entry.LastListingCount = listingCount
	}
	s.mu.Unlock()
}

func (s *trackedSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
