// Package alerts routes scored listings to subscribers. The dispatcher
// owns candidate filtering, cooldown, payload enrichment, and hard-failure
// deactivation; transports live in notify.
package alerts

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/seatsniper/seatsniper/internal/comparison"
	"github.com/seatsniper/seatsniper/internal/models"
	"github.com/seatsniper/seatsniper/internal/notify"
	"github.com/seatsniper/seatsniper/internal/scoring"
	"github.com/seatsniper/seatsniper/internal/store"
	"github.com/seatsniper/seatsniper/internal/subscriptions"
	"github.com/seatsniper/seatsniper/internal/telemetry"
)

// DefaultCooldown spaces repeat alerts for the same (event, user) pair.
const DefaultCooldown = 30 * time.Minute

// SeatMapResolver is satisfied by seatmaps.Resolver.
type SeatMapResolver interface {
	Resolve(ctx context.Context, url, venue string) ([]byte, bool)
}

// Dispatcher fans one scored event out to every qualifying subscriber.
type Dispatcher struct {
	registry  *subscriptions.Registry
	notifiers map[models.Channel]notify.Notifier
	store     store.Store          // nil degrades to memory-only cooldown
	cache     *store.CooldownCache // optional redis fast path
	seatMaps  SeatMapResolver      // optional
	cooldown  time.Duration
	ring      *ring

	mutedMu sync.RWMutex
	muted   map[string]map[string]struct{} // eventID -> userIDs
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithStore sets the durable alert ledger.
func WithStore(st store.Store) Option {
	return func(d *Dispatcher) { d.store = st }
}

// WithCooldownCache sets the redis fast path.
func WithCooldownCache(c *store.CooldownCache) Option {
	return func(d *Dispatcher) { d.cache = c }
}

// WithSeatMaps sets the seat-map resolver.
func WithSeatMaps(r SeatMapResolver) Option {
	return func(d *Dispatcher) { d.seatMaps = r }
}

// WithCooldown overrides the repeat-alert spacing.
func WithCooldown(cooldown time.Duration) Option {
	return func(d *Dispatcher) {
		if cooldown > 0 {
			d.cooldown = cooldown
		}
	}
}

// New builds a dispatcher over the given transports.
func New(registry *subscriptions.Registry, notifiers []notify.Notifier, opts ...Option) *Dispatcher {
	byChannel := make(map[models.Channel]notify.Notifier, len(notifiers))
	for _, n := range notifiers {
		byChannel[n.Channel()] = n
	}
	d := &Dispatcher{
		registry:  registry,
		notifiers: byChannel,
		cooldown:  DefaultCooldown,
		ring:      newRing(),
		muted:     make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Mute suppresses alerts for one user on one event. Advisory and
// ephemeral: not persisted, cleared by Unmute or restart.
func (d *Dispatcher) Mute(eventID, userID string) {
	d.mutedMu.Lock()
	if d.muted[eventID] == nil {
		d.muted[eventID] = make(map[string]struct{})
	}
	d.muted[eventID][userID] = struct{}{}
	d.mutedMu.Unlock()
}

// Unmute lifts a mute.
func (d *Dispatcher) Unmute(eventID, userID string) {
	d.mutedMu.Lock()
	delete(d.muted[eventID], userID)
	d.mutedMu.Unlock()
}

func (d *Dispatcher) isMuted(eventID, userID string) bool {
	d.mutedMu.RLock()
	defer d.mutedMu.RUnlock()
	_, muted := d.muted[eventID][userID]
	return muted
}

// Dispatch sends the event's top picks to every subscriber that passes
// the candidate, cooldown, and per-subscriber filters. Returns how many
// alerts were delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, event models.Event, picks []scoring.ScoredListing, avgPrice float64, cmp *comparison.Result) int {
	if len(picks) == 0 {
		return 0
	}

	sent := 0
	for _, sub := range d.registry.All() {
		if !d.qualifies(sub, event) {
			continue
		}
		if d.isMuted(event.Key(), sub.UserID) {
			continue
		}
		if d.coolingDown(ctx, event.Key(), sub.UserID) {
			continue
		}
		subPicks := filterPicks(picks, sub)
		if len(subPicks) == 0 {
			continue
		}
		if d.send(ctx, sub, event, subPicks, avgPrice, cmp) {
			sent++
		}
	}
	return sent
}

func (d *Dispatcher) qualifies(sub models.Subscription, event models.Event) bool {
	return sub.Active && !sub.Paused &&
		sub.WantsCity(event.Venue.City) &&
		sub.WantsCategory(event.Category) &&
		sub.MatchesKeywords(event.Name)
}

// coolingDown consults the memory ring first, then redis when wired,
// then the durable ledger. Store failure degrades to memory-only.
func (d *Dispatcher) coolingDown(ctx context.Context, eventID, userID string) bool {
	if sentAt, ok := d.ring.lastSent(eventID, userID); ok && time.Since(sentAt) < d.cooldown {
		return true
	}
	// The redis tier is a fast positive only; a miss still consults the
	// durable ledger.
	if d.cache != nil {
		if cooling, answered := d.cache.CoolingDown(ctx, eventID, userID); answered && cooling {
			return true
		}
	}
	if d.store != nil {
		sentAt, err := d.store.LastSuccessfulAlert(ctx, eventID, userID)
		switch {
		case err == nil:
			return time.Since(sentAt) < d.cooldown
		case !errors.Is(err, store.ErrNotFound):
			log.Warn().Err(err).Str("event", eventID).Msg("cooldown ledger lookup failed, using memory only")
		}
	}
	return false
}

// filterPicks applies the subscriber's quantity and budget constraints.
func filterPicks(picks []scoring.ScoredListing, sub models.Subscription) []scoring.ScoredListing {
	out := make([]scoring.ScoredListing, 0, len(picks))
	for _, pick := range picks {
		if sub.MinQuantity > 0 && pick.Listing.Quantity < sub.MinQuantity {
			continue
		}
		if sub.MaxPricePerTicket > 0 && pick.Listing.PricePerTicket > sub.MaxPricePerTicket {
			continue
		}
		if sub.MinScore > 0 && pick.Score.TotalScore < sub.MinScore {
			continue
		}
		out = append(out, pick)
	}
	return out
}

func (d *Dispatcher) send(ctx context.Context, sub models.Subscription, event models.Event, picks []scoring.ScoredListing, avgPrice float64, cmp *comparison.Result) bool {
	notifier, ok := d.notifiers[sub.Channel]
	if !ok {
		log.Warn().Str("channel", string(sub.Channel)).Str("user", sub.UserID).Msg("no notifier for channel")
		return false
	}

	payload := notify.Payload{
		Recipient:    sub.UserID,
		Event:        event,
		Picks:        picks,
		AveragePrice: avgPrice,
		SeatMapURL:   event.SeatMapURL,
		Comparison:   cmp,
	}
	if d.seatMaps != nil {
		if image, found := d.seatMaps.Resolve(ctx, event.SeatMapURL, event.Venue.Name); found {
			payload.SeatMap = image
		}
	}

	delivery := notifier.SendAlert(ctx, payload)
	if !delivery.Success {
		telemetry.AlertsSent.WithLabelValues(string(sub.Channel), telemetry.OutcomeError).Inc()
		if notify.IsHardFailure(delivery.Err) {
			log.Warn().Err(delivery.Err).Str("user", sub.UserID).Msg("hard delivery failure, deactivating subscription")
			d.registry.Deactivate(ctx, sub.UserID)
		} else {
			log.Debug().Err(delivery.Err).Str("user", sub.UserID).Msg("transient delivery failure")
		}
		return false
	}

	telemetry.AlertsSent.WithLabelValues(string(sub.Channel), telemetry.OutcomeOK).Inc()
	now := time.Now()
	d.ring.record(event.Key(), sub.UserID, now)
	if d.cache != nil {
		d.cache.MarkSent(ctx, event.Key(), sub.UserID)
	}
	if d.store != nil {
		rec := models.AlertRecord{
			ID:       uuid.NewString(),
			EventID:  event.Key(),
			UserID:   sub.UserID,
			SentAt:   now,
			TopScore: picks[0].Score.TotalScore,
			Channel:  sub.Channel,
			Success:  true,
		}
		if err := d.store.AppendAlert(ctx, rec); err != nil {
			log.Warn().Err(err).Str("event", event.Key()).Msg("appending alert record failed")
		}
	}
	return true
}

// PruneRing drops alert records older than the retention window. Run
// hourly by the scheduler.
func (d *Dispatcher) PruneRing() {
	if dropped := d.ring.prune(); dropped > 0 {
		log.Debug().Int("dropped", dropped).Msg("alert ring pruned")
	}
}
