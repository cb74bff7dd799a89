package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/seatsniper/seatsniper/internal/models"
)

// Memory is an in-process Store. It backs tests and the degraded mode when
// no database URL is configured; nothing survives a restart.
type Memory struct {
	mu            sync.RWMutex
	subscriptions map[string]models.Subscription // keyed user_id:channel
	priceHistory  map[string][]models.HistoricalPrice
	alerts        []models.AlertRecord
	groups        map[string]models.EventGroup
	watchlist     map[string][]models.WatchlistEntry
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		subscriptions: make(map[string]models.Subscription),
		priceHistory:  make(map[string][]models.HistoricalPrice),
		groups:        make(map[string]models.EventGroup),
		watchlist:     make(map[string][]models.WatchlistEntry),
	}
}

func subKey(userID string, channel models.Channel) string {
	return userID + ":" + string(channel)
}

func (m *Memory) UpsertSubscription(_ context.Context, sub models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[subKey(sub.UserID, sub.Channel)] = sub
	return nil
}

func (m *Memory) ListSubscriptions(_ context.Context) ([]models.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	subs := make([]models.Subscription, 0, len(m.subscriptions))
	for _, s := range m.subscriptions {
		subs = append(subs, s)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].UserID < subs[j].UserID })
	return subs, nil
}

func (m *Memory) DeactivateSubscription(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, s := range m.subscriptions {
		if s.UserID == userID {
			s.Active = false
			m.subscriptions[k] = s
		}
	}
	return nil
}

func (m *Memory) AppendPriceHistory(_ context.Context, points []models.HistoricalPrice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		m.priceHistory[p.EventID] = append(m.priceHistory[p.EventID], p)
	}
	return nil
}

func (m *Memory) PriceHistory(_ context.Context, eventID string, limit int) (map[string][]models.HistoricalPrice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 20
	}
	bySection := make(map[string][]models.HistoricalPrice)
	for _, p := range m.priceHistory[eventID] {
		bySection[p.Section] = append(bySection[p.Section], p)
	}
	for section, points := range bySection {
		sort.Slice(points, func(i, j int) bool { return points[i].RecordedAt.After(points[j].RecordedAt) })
		if len(points) > limit {
			points = points[:limit]
		}
		bySection[section] = points
	}
	return bySection, nil
}

func (m *Memory) AppendAlert(_ context.Context, rec models.AlertRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, rec)
	return nil
}

func (m *Memory) LastSuccessfulAlert(_ context.Context, eventID, userID string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var newest time.Time
	found := false
	for _, rec := range m.alerts {
		if rec.EventID == eventID && rec.UserID == userID && rec.Success && rec.SentAt.After(newest) {
			newest = rec.SentAt
			found = true
		}
	}
	if !found {
		return time.Time{}, ErrNotFound
	}
	return newest, nil
}

func (m *Memory) UpsertEventGroup(_ context.Context, group models.EventGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[group.GroupID] = group
	return nil
}

func (m *Memory) ListWatchlist(_ context.Context, userID string) ([]models.WatchlistEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]models.WatchlistEntry, len(m.watchlist[userID]))
	copy(entries, m.watchlist[userID])
	sort.Slice(entries, func(i, j int) bool { return entries[i].EventDate.Before(entries[j].EventDate) })
	return entries, nil
}

func (m *Memory) AddWatch(_ context.Context, entry models.WatchlistEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.watchlist[entry.UserID] {
		if e.Platform == entry.Platform && e.PlatformEventID == entry.PlatformEventID {
			return nil
		}
	}
	m.watchlist[entry.UserID] = append(m.watchlist[entry.UserID], entry)
	return nil
}

func (m *Memory) RemoveWatch(_ context.Context, userID string, platform models.Platform, platformEventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.watchlist[userID]
	for i, e := range entries {
		if e.Platform == platform && e.PlatformEventID == platformEventID {
			m.watchlist[userID] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *Memory) UpdateWatchPrice(_ context.Context, userID string, platform models.Platform, platformEventID string, price float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.watchlist[userID] {
		if e.Platform == platform && e.PlatformEventID == platformEventID {
			m.watchlist[userID][i].LastSeenPrice = price
		}
	}
	return nil
}

func (m *Memory) Close() error { return nil }
