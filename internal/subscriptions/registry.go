// Package subscriptions keeps the in-process subscription registry. The
// map is authoritative for the running process; the durable store is a
// best-effort mirror so subscriptions survive restarts.
package subscriptions

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/seatsniper/seatsniper/internal/models"
	"github.com/seatsniper/seatsniper/internal/store"
)

// Registry is safe for concurrent use. Reads dominate (every dispatch
// scans all subscriptions), so an RWMutex over a plain map is enough.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]models.Subscription

	store store.Store // nil means memory-only
}

// New builds a registry, loading any persisted subscriptions. A load
// failure degrades to memory-only.
func New(ctx context.Context, st store.Store) *Registry {
	r := &Registry{
		byUser: make(map[string]models.Subscription),
		store:  st,
	}
	if st == nil {
		return r
	}
	subs, err := st.ListSubscriptions(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("loading subscriptions from store failed, starting empty")
		return r
	}
	for _, sub := range subs {
		r.byUser[sub.UserID] = sub
	}
	log.Info().Int("count", len(subs)).Msg("subscriptions loaded")
	return r
}

// Upsert replaces the user's subscription and mirrors it to the store.
func (r *Registry) Upsert(ctx context.Context, sub models.Subscription) {
	r.mu.Lock()
	r.byUser[sub.UserID] = sub
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.UpsertSubscription(ctx, sub); err != nil {
			log.Warn().Err(err).Str("user", sub.UserID).Msg("persisting subscription failed")
		}
	}
}

// Get returns the user's subscription.
func (r *Registry) Get(userID string) (models.Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.byUser[userID]
	return sub, ok
}

// All returns a snapshot sorted by user id for deterministic iteration.
func (r *Registry) All() []models.Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := make([]models.Subscription, 0, len(r.byUser))
	for _, sub := range r.byUser {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].UserID < subs[j].UserID })
	return subs
}

// Active reports how many subscriptions would currently receive alerts.
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, sub := range r.byUser {
		if sub.Active && !sub.Paused {
			n++
		}
	}
	return n
}

// Pause suspends alerting without losing the subscription.
func (r *Registry) Pause(ctx context.Context, userID string) bool {
	return r.update(ctx, userID, func(sub *models.Subscription) { sub.Paused = true })
}

// Resume re-enables a paused subscription.
func (r *Registry) Resume(ctx context.Context, userID string) bool {
	return r.update(ctx, userID, func(sub *models.Subscription) { sub.Paused = false })
}

// Deactivate marks the subscription inactive. In-process deactivation is
// monotonic: nothing in this package sets Active back to true except a
// fresh Upsert from the user.
func (r *Registry) Deactivate(ctx context.Context, userID string) bool {
	ok := r.update(ctx, userID, func(sub *models.Subscription) { sub.Active = false })
	if ok && r.store != nil {
		if err := r.store.DeactivateSubscription(ctx, userID); err != nil {
			log.Warn().Err(err).Str("user", userID).Msg("persisting deactivation failed")
		}
	}
	return ok
}

// Remove drops the subscription from the registry entirely.
func (r *Registry) Remove(ctx context.Context, userID string) {
	r.mu.Lock()
	delete(r.byUser, userID)
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.DeactivateSubscription(ctx, userID); err != nil {
			log.Warn().Err(err).Str("user", userID).Msg("persisting removal failed")
		}
	}
}

func (r *Registry) update(ctx context.Context, userID string, mutate func(*models.Subscription)) bool {
	r.mu.Lock()
	sub, ok := r.byUser[userID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	mutate(&sub)
	r.byUser[userID] = sub
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.UpsertSubscription(ctx, sub); err != nil {
			log.Warn().Err(err).Str("user", userID).Msg("persisting subscription update failed")
		}
	}
	return true
}
