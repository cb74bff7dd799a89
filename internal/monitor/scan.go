package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/seatsniper/seatsniper/internal/adapters"
	"github.com/seatsniper/seatsniper/internal/models"
	"github.com/seatsniper/seatsniper/internal/scoring"
)

// ScanDeadline bounds a one-shot city scan regardless of adapter count.
const ScanDeadline = 45 * time.Second

// DefaultScanSampleSize is how many soonest events get listings sampled.
const DefaultScanSampleSize = 3

// ScanResult is the one-shot scan output for a city.
type ScanResult struct {
	City    string            `json:"city"`
	Events  []models.Event    `json:"events"`
	Sampled []SampledEvent    `json:"sampled"`
	Errors  map[string]string `json:"errors,omitempty"` // adapter -> message
}

// SampledEvent carries scored listings for one of the soonest events.
type SampledEvent struct {
	Event models.Event            `json:"event"`
	Picks []scoring.ScoredListing `json:"picks"`
}

// Scan searches every adapter for the city and samples listings from the
// first few events. Adapter failures are collected, never propagated:
// one dead marketplace still leaves the others' results usable.
func (s *Scheduler) Scan(ctx context.Context, city string, sampleSize int) ScanResult {
	ctx, cancel := context.WithTimeout(ctx, ScanDeadline)
	defer cancel()

	if sampleSize <= 0 {
		sampleSize = DefaultScanSampleSize
	}

	now := time.Now()
	params := adapters.SearchParams{
		City:      city,
		StartDate: now,
		EndDate:   now.Add(s.cfg.DiscoveryHorizon),
		Limit:     100,
	}

	result := ScanResult{City: city, Errors: make(map[string]string)}
	byAdapter := make(map[string]adapters.Adapter)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, adapter := range s.adapters {
		adapter := adapter
		g.Go(func() error {
			events, err := adapter.SearchEvents(gctx, params)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors[adapter.Name()] = err.Error()
				return nil
			}
			result.Events = append(result.Events, events...)
			for _, event := range events {
				byAdapter[event.Key()] = adapter
			}
			return nil
		})
	}
	g.Wait()

	sort.Slice(result.Events, func(i, j int) bool {
		return result.Events[i].DateTime.Before(result.Events[j].DateTime)
	})

	for _, event := range result.Events {
		if len(result.Sampled) >= sampleSize {
			break
		}
		if ctx.Err() != nil {
			break
		}
		adapter := byAdapter[event.Key()]
		listings, err := adapter.GetEventListings(ctx, event.PlatformID)
		if err != nil {
			log.Debug().Err(err).Str("event", event.Key()).Msg("scan listings sample failed")
			continue
		}
		if len(listings) == 0 {
			continue
		}
		scored := s.scoreListings(event, listings, averagePrice(listings), s.fetchHistory(ctx, event.Key()))
		result.Sampled = append(result.Sampled, SampledEvent{
			Event: event,
			Picks: topPicks(scored, s.cfg.TopPicks, 0),
		})
	}

	if len(result.Errors) == 0 {
		result.Errors = nil
	}
	return result
}
