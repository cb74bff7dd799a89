// Package monitor runs the polling scheduler: a discovery cycle that
// keeps the tracked-events worklist warm, per-tier listings cycles that
// score and dispatch, and housekeeping prunes. Cycles run concurrently;
// the activeCycles guard keeps each cycle single-flight.
package monitor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/seatsniper/seatsniper/internal/adapters"
	"github.com/seatsniper/seatsniper/internal/alerts"
	"github.com/seatsniper/seatsniper/internal/comparison"
	"github.com/seatsniper/seatsniper/internal/matching"
	"github.com/seatsniper/seatsniper/internal/models"
	"github.com/seatsniper/seatsniper/internal/scoring"
	"github.com/seatsniper/seatsniper/internal/store"
	"github.com/seatsniper/seatsniper/internal/subscriptions"
	"github.com/seatsniper/seatsniper/internal/telemetry"
)

// Config tunes the scheduler. Zero values take defaults.
type Config struct {
	Cities            []string
	DiscoveryInterval time.Duration // default 15m
	HighInterval      time.Duration // default 2m
	MediumInterval    time.Duration // default 10m
	LowInterval       time.Duration // default 30m
	DiscoveryHorizon  time.Duration // default 90 days
	MaxEventsPerCycle int           // default 50
	BatchSize         int           // default 5
	TopPicks          int           // default 5
	ScoreThreshold    int           // default 70
	SectionTiers      map[string]scoring.SectionTier
}

func (c Config) withDefaults() Config {
	if c.DiscoveryInterval <= 0 {
		c.DiscoveryInterval = 15 * time.Minute
	}
	if c.HighInterval <= 0 {
		c.HighInterval = 2 * time.Minute
	}
	if c.MediumInterval <= 0 {
		c.MediumInterval = 10 * time.Minute
	}
	if c.LowInterval <= 0 {
		c.LowInterval = 30 * time.Minute
	}
	if c.DiscoveryHorizon <= 0 {
		c.DiscoveryHorizon = 90 * 24 * time.Hour
	}
	if c.MaxEventsPerCycle <= 0 {
		c.MaxEventsPerCycle = 50
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
	if c.TopPicks <= 0 {
		c.TopPicks = 5
	}
	if c.ScoreThreshold <= 0 {
		c.ScoreThreshold = 70
	}
	return c
}

// recentListings keeps the latest listings snapshot per event for
// cross-platform comparison enrichment.
const listingsFreshness = 30 * time.Minute

type listingsSnapshot struct {
	event      models.Event
	listings   []models.Listing
	recordedAt time.Time
}

// Scheduler drives the polling loops.
type Scheduler struct {
	cfg        Config
	adapters   []adapters.Adapter
	store      store.Store
	engine     *scoring.Engine
	matcher    *matching.Matcher
	dispatcher *alerts.Dispatcher
	registry   *subscriptions.Registry

	tracked *trackedSet

	groupMu  sync.RWMutex
	memberOf map[string]string            // event key -> group id
	groups   map[string]models.EventGroup // group id -> group

	snapMu    sync.RWMutex
	snapshots map[string]listingsSnapshot // event key -> latest listings

	cycleMu      sync.Mutex
	activeCycles map[string]struct{}
}

// New builds a scheduler. store may be nil (memory-only degraded mode).
func New(cfg Config, adp []adapters.Adapter, st store.Store, engine *scoring.Engine, dispatcher *alerts.Dispatcher, registry *subscriptions.Registry) *Scheduler {
	return &Scheduler{
		cfg:          cfg.withDefaults(),
		adapters:     adp,
		store:        st,
		engine:       engine,
		matcher:      matching.NewMatcher(),
		dispatcher:   dispatcher,
		registry:     registry,
		tracked:      newTrackedSet(),
		memberOf:     make(map[string]string),
		groups:       make(map[string]models.EventGroup),
		snapshots:    make(map[string]listingsSnapshot),
		activeCycles: make(map[string]struct{}),
	}
}

// Run blocks until ctx is cancelled. Discovery fires immediately, then
// every cycle runs on its own ticker.
func (s *Scheduler) Run(ctx context.Context) {
	log.Info().
		Strs("cities", s.cfg.Cities).
		Int("adapters", len(s.adapters)).
		Msg("scheduler starting")

	s.runCycle(ctx, "discovery", s.discover)

	discovery := time.NewTicker(s.cfg.DiscoveryInterval)
	high := time.NewTicker(s.cfg.HighInterval)
	medium := time.NewTicker(s.cfg.MediumInterval)
	low := time.NewTicker(s.cfg.LowInterval)
	prune := time.NewTicker(time.Hour)
	defer discovery.Stop()
	defer high.Stop()
	defer medium.Stop()
	defer low.Stop()
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler stopping")
			return
		case <-discovery.C:
			go s.runCycle(ctx, "discovery", s.discover)
		case <-high.C:
			go s.runCycle(ctx, string(TierHigh), func(ctx context.Context) { s.listingsCycle(ctx, TierHigh) })
		case <-medium.C:
			go s.runCycle(ctx, string(TierMedium), func(ctx context.Context) { s.listingsCycle(ctx, TierMedium) })
		case <-low.C:
			go s.runCycle(ctx, string(TierLow), func(ctx context.Context) { s.listingsCycle(ctx, TierLow) })
		case <-prune.C:
			s.dispatcher.PruneRing()
		}
	}
}

// runCycle enforces the single-flight-per-cycle-name guard and records
// cycle duration.
func (s *Scheduler) runCycle(ctx context.Context, name string, fn func(context.Context)) {
	if !s.enterCycle(name) {
		log.Debug().Str("cycle", name).Msg("cycle still running, skipping")
		return
	}
	defer s.exitCycle(name)

	start := time.Now()
	fn(ctx)
	telemetry.CycleDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

func (s *Scheduler) enterCycle(name string) bool {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	if _, running := s.activeCycles[name]; running {
		return false
	}
	s.activeCycles[name] = struct{}{}
	return true
}

func (s *Scheduler) exitCycle(name string) {
	s.cycleMu.Lock()
	delete(s.activeCycles, name)
	s.cycleMu.Unlock()
}

// discover prunes past events, fans out per city and adapter, inserts
// new events into the worklist, and re-runs the matcher. Adapter errors
// are isolated: one failing adapter never blocks the rest.
func (s *Scheduler) discover(ctx context.Context) {
	cutoff := time.Now().Add(-24 * time.Hour)
	if dropped := s.tracked.prunePast(cutoff); dropped > 0 {
		log.Info().Int("dropped", dropped).Msg("past events pruned")
	}

	now := time.Now()
	params := adapters.SearchParams{
		StartDate: now,
		EndDate:   now.Add(s.cfg.DiscoveryHorizon),
		Limit:     100,
	}

	var mu sync.Mutex
	added := 0
	for _, city := range s.cfg.Cities {
		cityParams := params
		cityParams.City = city

		g, gctx := errgroup.WithContext(ctx)
		for _, adapter := range s.adapters {
			adapter := adapter
			g.Go(func() error {
				events, err := adapter.SearchEvents(gctx, cityParams)
				if err != nil {
					telemetry.AdapterRequests.WithLabelValues(adapter.Name(), telemetry.OutcomeError).Inc()
					if errors.Is(err, adapters.ErrAdapterDisabled) {
						log.Debug().Str("adapter", adapter.Name()).Msg("adapter disabled, skipping")
					} else {
						log.Warn().Err(err).Str("adapter", adapter.Name()).Str("city", city).Msg("discovery search failed")
					}
					return nil // isolate failures from sibling adapters
				}
				telemetry.AdapterRequests.WithLabelValues(adapter.Name(), telemetry.OutcomeOK).Inc()
				mu.Lock()
				for _, event := range events {
					if s.tracked.add(event, adapter) {
						added++
					}
				}
				mu.Unlock()
				return nil
			})
		}
		g.Wait()
	}

	log.Info().
		Int("new", added).
		Int("tracked", s.tracked.len()).
		Msg("discovery cycle complete")

	s.rebuildGroups(ctx)
}

// rebuildGroups runs the matcher over the tracked set and persists any
// groups.
func (s *Scheduler) rebuildGroups(ctx context.Context) {
	groups := s.matcher.Group(s.tracked.events())

	s.groupMu.Lock()
	s.memberOf = make(map[string]string, len(s.memberOf))
	s.groups = make(map[string]models.EventGroup, len(groups))
	for _, group := range groups {
		s.groups[group.GroupID] = group
		for _, event := range group.Events {
			s.memberOf[event.Key()] = group.GroupID
		}
	}
	s.groupMu.Unlock()

	if s.store == nil {
		return
	}
	for _, group := range groups {
		if err := s.store.UpsertEventGroup(ctx, group); err != nil {
			log.Warn().Err(err).Str("group", group.GroupID).Msg("persisting event group failed")
		}
	}
	if len(groups) > 0 {
		log.Info().Int("groups", len(groups)).Msg("cross-platform groups matched")
	}
}

// listingsCycle polls one tier's events in batches, scoring and
// dispatching as it goes. Skips entirely when nobody is subscribed.
func (s *Scheduler) listingsCycle(ctx context.Context, tier Tier) {
	if s.registry.Active() == 0 {
		log.Debug().Str("tier", string(tier)).Msg("no active subscriptions, skipping listings cycle")
		return
	}

	entries := s.tracked.inTier(tier, time.Now(), s.cfg.MaxEventsPerCycle)
	if len(entries) == 0 {
		return
	}
	log.Debug().Str("tier", string(tier)).Int("events", len(entries)).Msg("listings cycle starting")

	for start := 0; start < len(entries); start += s.cfg.BatchSize {
		// the stop signal is observed between batches
		if ctx.Err() != nil {
			return
		}
		end := start + s.cfg.BatchSize
		if end > len(entries) {
			end = len(entries)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, entry := range entries[start:end] {
			entry := entry
			g.Go(func() error {
				s.processEvent(gctx, entry)
				return nil
			})
		}
		g.Wait()
	}
}

// processEvent is the per-event pipeline: listings, score, snapshot,
// dispatch. Store failures degrade context but never abort the event.
func (s *Scheduler) processEvent(ctx context.Context, entry *trackedEvent) {
	event := entry.Event
	listings, err := entry.adapter.GetEventListings(ctx, event.PlatformID)
	if err != nil {
		telemetry.AdapterRequests.WithLabelValues(entry.adapter.Name(), telemetry.OutcomeError).Inc()
		log.Warn().Err(err).Str("event", event.Key()).Msg("fetching listings failed")
		return
	}
	telemetry.AdapterRequests.WithLabelValues(entry.adapter.Name(), telemetry.OutcomeOK).Inc()
	s.tracked.markPolled(event.Key(), len(listings))
	if len(listings) == 0 {
		return
	}

	s.rememberListings(event, listings)

	avgPrice := averagePrice(listings)
	history := s.fetchHistory(ctx, event.Key())
	scored := s.scoreListings(event, listings, avgPrice, history)
	s.recordSnapshot(ctx, event.Key(), listings)

	picks := topPicks(scored, s.cfg.TopPicks, s.cfg.ScoreThreshold)
	if len(picks) == 0 {
		return
	}

	cmp := s.buildComparison(event)
	if sent := s.dispatcher.Dispatch(ctx, event, picks, avgPrice, cmp); sent > 0 {
		log.Info().
			Str("event", event.Name).
			Int("alerts", sent).
			Int("top_score", picks[0].Score.TotalScore).
			Msg("alerts dispatched")
	}
}

// fetchHistory is best-effort: a store failure yields empty context.
func (s *Scheduler) fetchHistory(ctx context.Context, eventKey string) map[string][]models.HistoricalPrice {
	if s.store == nil {
		return nil
	}
	history, err := s.store.PriceHistory(ctx, eventKey, 30)
	if err != nil {
		log.Debug().Err(err).Str("event", eventKey).Msg("price history unavailable")
		return nil
	}
	return history
}

func (s *Scheduler) scoreListings(event models.Event, listings []models.Listing, avgPrice float64, history map[string][]models.HistoricalPrice) []scoring.ScoredListing {
	now := time.Now()
	rows := rowsPerSection(listings)

	scored := make([]scoring.ScoredListing, 0, len(listings))
	for _, listing := range listings {
		rowRank := scoring.ParseRow(listing.Row)
		if rowRank < 0 {
			// unparseable labels count as the middle of the section
			rowRank = scoring.MiddleRow(rows[listing.Section])
		}
		result := s.engine.Score(scoring.Input{
			Listing:            listing,
			AveragePrice:       avgPrice,
			SectionTier:        scoring.ResolveSectionTier(listing.Section, s.cfg.SectionTiers),
			RowRank:            rowRank,
			TotalRowsInSection: rows[listing.Section],
			History:            history[listing.Section],
			EventPopularity:    scoring.DefaultPopularity,
			DaysUntilEvent:     event.DaysUntil(now),
		})
		scored = append(scored, scoring.ScoredListing{Listing: listing, Score: result})
	}
	return scored
}

// recordSnapshot appends a per-section price point. Best-effort.
func (s *Scheduler) recordSnapshot(ctx context.Context, eventKey string, listings []models.Listing) {
	if s.store == nil {
		return
	}
	points := snapshotPoints(eventKey, listings, time.Now().UTC())
	if err := s.store.AppendPriceHistory(ctx, points); err != nil {
		log.Debug().Err(err).Str("event", eventKey).Msg("price snapshot append failed")
	}
}

// rememberListings caches the latest listings for comparison enrichment.
func (s *Scheduler) rememberListings(event models.Event, listings []models.Listing) {
	s.snapMu.Lock()
	s.snapshots[event.Key()] = listingsSnapshot{event: event, listings: listings, recordedAt: time.Now()}
	s.snapMu.Unlock()
}

// buildComparison assembles a cross-platform comparison when the event
// belongs to a group and at least one sibling has fresh listings.
func (s *Scheduler) buildComparison(event models.Event) *comparison.Result {
	s.groupMu.RLock()
	groupID, ok := s.memberOf[event.Key()]
	var group models.EventGroup
	if ok {
		group = s.groups[groupID]
	}
	s.groupMu.RUnlock()
	if !ok {
		return nil
	}

	byPlatform := make(map[models.Platform]comparison.EventListings)
	s.snapMu.RLock()
	for platform, member := range group.Events {
		snap, have := s.snapshots[member.Key()]
		if !have || time.Since(snap.recordedAt) > listingsFreshness {
			continue
		}
		byPlatform[platform] = comparison.EventListings{Event: snap.event, Listings: snap.listings}
	}
	s.snapMu.RUnlock()

	if len(byPlatform) < 2 {
		return nil
	}
	result := comparison.Compare(byPlatform)
	if result.Best == nil {
		return nil
	}
	return &result
}

// TrackedCount reports the worklist size for health output.
func (s *Scheduler) TrackedCount() int {
	return s.tracked.len()
}

// averagePrice is the mean per-ticket price over positive-priced listings.
func averagePrice(listings []models.Listing) float64 {
	sum, n := 0.0, 0
	for _, l := range listings {
		if l.PricePerTicket > 0 {
			sum += l.PricePerTicket
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// rowsPerSection counts distinct rows per section, a proxy for section
// depth when the platform does not report it.
func rowsPerSection(listings []models.Listing) map[string]int {
	seen := make(map[string]map[string]struct{})
	for _, l := range listings {
		if l.Row == "" {
			continue
		}
		if seen[l.Section] == nil {
			seen[l.Section] = make(map[string]struct{})
		}
		seen[l.Section][l.Row] = struct{}{}
	}
	out := make(map[string]int, len(seen))
	for section, rows := range seen {
		out[section] = len(rows)
	}
	return out
}

// snapshotPoints aggregates listings into per-section history points.
func snapshotPoints(eventKey string, listings []models.Listing, at time.Time) []models.HistoricalPrice {
	type agg struct {
		sum, low, high float64
		count          int
	}
	bySection := make(map[string]*agg)
	for _, l := range listings {
		if l.PricePerTicket <= 0 {
			continue
		}
		a := bySection[l.Section]
		if a == nil {
			a = &agg{low: l.PricePerTicket, high: l.PricePerTicket}
			bySection[l.Section] = a
		}
		a.sum += l.PricePerTicket
		a.count++
		if l.PricePerTicket < a.low {
			a.low = l.PricePerTicket
		}
		if l.PricePerTicket > a.high {
			a.high = l.PricePerTicket
		}
	}

	points := make([]models.HistoricalPrice, 0, len(bySection))
	for section, a := range bySection {
		points = append(points, models.HistoricalPrice{
			EventID:      eventKey,
			Section:      section,
			AveragePrice: a.sum / float64(a.count),
			LowestPrice:  a.low,
			HighestPrice: a.high,
			ListingCount: a.count,
			RecordedAt:   at,
		})
	}
	return points
}

// topPicks sorts scored listings descending and keeps the first n at or
// above the threshold.
func topPicks(scored []scoring.ScoredListing, n, threshold int) []scoring.ScoredListing {
	qualified := make([]scoring.ScoredListing, 0, len(scored))
	for _, sl := range scored {
		if sl.Score.TotalScore >= threshold {
			qualified = append(qualified, sl)
		}
	}
	sort.SliceStable(qualified, func(i, j int) bool {
		if qualified[i].Score.TotalScore != qualified[j].Score.TotalScore {
			return qualified[i].Score.TotalScore > qualified[j].Score.TotalScore
		}
		return qualified[i].Listing.PricePerTicket < qualified[j].Listing.PricePerTicket
	})
	if len(qualified) > n {
		qualified = qualified[:n]
	}
	return qualified
}
