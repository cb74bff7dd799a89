// Package watchlist tracks the events a user follows for price moves.
// The durable store is primary; any database failure falls back to an
// in-process map so the operation still makes progress, at the cost of
// durability.
package watchlist

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/seatsniper/seatsniper/internal/models"
	"github.com/seatsniper/seatsniper/internal/store"
)

// MaxPerUser caps watchlist size.
const MaxPerUser = 50

// ErrFull is returned when the user already watches MaxPerUser events.
var ErrFull = errors.New("watchlist full")

type watchKey struct {
	userID          string
	platform        models.Platform
	platformEventID string
}

// Watchlist is the per-user watched-events set.
type Watchlist struct {
	store store.Store // nil means memory-only

	mu       sync.RWMutex
	fallback map[watchKey]models.WatchlistEntry
}

// New builds a watchlist over the given store.
func New(st store.Store) *Watchlist {
	return &Watchlist{
		store:    st,
		fallback: make(map[watchKey]models.WatchlistEntry),
	}
}

// Add watches an event for the user. Enforces the per-user cap against
// whichever tier answers.
func (w *Watchlist) Add(ctx context.Context, entry models.WatchlistEntry) error {
	current, _ := w.List(ctx, entry.UserID)
	if len(current) >= MaxPerUser {
		return ErrFull
	}

	if w.store != nil {
		if err := w.store.AddWatch(ctx, entry); err == nil {
			return nil
		} else {
			log.Warn().Err(err).Str("user", entry.UserID).Msg("durable watchlist add failed, using memory fallback")
		}
	}

	w.mu.Lock()
	w.fallback[keyOf(entry)] = entry
	w.mu.Unlock()
	return nil
}

// Remove stops watching an event.
func (w *Watchlist) Remove(ctx context.Context, userID string, platform models.Platform, platformEventID string) error {
	if w.store != nil {
		if err := w.store.RemoveWatch(ctx, userID, platform, platformEventID); err != nil {
			log.Warn().Err(err).Str("user", userID).Msg("durable watchlist remove failed, using memory fallback")
		}
	}

	w.mu.Lock()
	delete(w.fallback, watchKey{userID: userID, platform: platform, platformEventID: platformEventID})
	w.mu.Unlock()
	return nil
}

// List returns the user's watched events, merged across tiers, sorted by
// event key for determinism.
func (w *Watchlist) List(ctx context.Context, userID string) ([]models.WatchlistEntry, error) {
	merged := make(map[watchKey]models.WatchlistEntry)

	if w.store != nil {
		entries, err := w.store.ListWatchlist(ctx, userID)
		if err != nil {
			log.Warn().Err(err).Str("user", userID).Msg("durable watchlist read failed, serving memory fallback")
		} else {
			for _, entry := range entries {
				merged[keyOf(entry)] = entry
			}
		}
	}

	w.mu.RLock()
	for key, entry := range w.fallback {
		if key.userID == userID {
			merged[key] = entry
		}
	}
	w.mu.RUnlock()

	out := make([]models.WatchlistEntry, 0, len(merged))
	for _, entry := range merged {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Platform != out[j].Platform {
			return out[i].Platform < out[j].Platform
		}
		return out[i].PlatformEventID < out[j].PlatformEventID
	})
	return out, nil
}

// UpdatePrice records the last seen price for a watched event.
func (w *Watchlist) UpdatePrice(ctx context.Context, userID string, platform models.Platform, platformEventID string, price float64) {
	if w.store != nil {
		if err := w.store.UpdateWatchPrice(ctx, userID, platform, platformEventID, price); err == nil {
			return
		} else {
			log.Warn().Err(err).Str("user", userID).Msg("durable watch price update failed, using memory fallback")
		}
	}

	key := watchKey{userID: userID, platform: platform, platformEventID: platformEventID}
	w.mu.Lock()
	if entry, ok := w.fallback[key]; ok {
		entry.LastSeenPrice = price
		w.fallback[key] = entry
	}
	w.mu.Unlock()
}

func keyOf(entry models.WatchlistEntry) watchKey {
	return watchKey{
		userID:          entry.UserID,
		platform:        entry.Platform,
		platformEventID: entry.PlatformEventID,
	}
}
