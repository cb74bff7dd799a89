package watchlist

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seatsniper/seatsniper/internal/models"
	"github.com/seatsniper/seatsniper/internal/store"
)

// brokenStore fails every watchlist operation, simulating a database
// outage.
type brokenStore struct {
	store.Store
}

var errDown = errors.New("database down")

func (b brokenStore) ListWatchlist(ctx context.Context, userID string) ([]models.WatchlistEntry, error) {
	return nil, errDown
}
func (b brokenStore) AddWatch(ctx context.Context, entry models.WatchlistEntry) error { return errDown }
func (b brokenStore) RemoveWatch(ctx context.Context, userID string, platform models.Platform, platformEventID string) error {
	return errDown
}
func (b brokenStore) UpdateWatchPrice(ctx context.Context, userID string, platform models.Platform, platformEventID string, price float64) error {
	return errDown
}

func entry(userID, eventID string) models.WatchlistEntry {
	return models.WatchlistEntry{
		UserID:          userID,
		Platform:        models.PlatformTicketmaster,
		PlatformEventID: eventID,
		EventName:       "Show " + eventID,
		EventDate:       time.Now().Add(10 * 24 * time.Hour),
		AddedAt:         time.Now(),
	}
}

func TestWatchlistDurablePath(t *testing.T) {
	ctx := context.Background()
	w := New(store.NewMemory())

	require.NoError(t, w.Add(ctx, entry("u1", "e1")))
	require.NoError(t, w.Add(ctx, entry("u1", "e2")))

	entries, err := w.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	require.NoError(t, w.Remove(ctx, "u1", models.PlatformTicketmaster, "e1"))
	entries, _ = w.List(ctx, "u1")
	require.Len(t, entries, 1)
	assert.Equal(t, "e2", entries[0].PlatformEventID)
}

func TestWatchlistFallsBackOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	w := New(brokenStore{store.NewMemory()})

	require.NoError(t, w.Add(ctx, entry("u1", "e1")), "a dead store must not block progress")

	entries, err := w.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	w.UpdatePrice(ctx, "u1", models.PlatformTicketmaster, "e1", 75)
	entries, _ = w.List(ctx, "u1")
	assert.Equal(t, 75.0, entries[0].LastSeenPrice)

	require.NoError(t, w.Remove(ctx, "u1", models.PlatformTicketmaster, "e1"))
	entries, _ = w.List(ctx, "u1")
	assert.Empty(t, entries)
}

func TestWatchlistCap(t *testing.T) {
	ctx := context.Background()
	w := New(nil)

	for i := 0; i < MaxPerUser; i++ {
		require.NoError(t, w.Add(ctx, entry("u1", fmt.Sprintf("e%d", i))))
	}
	err := w.Add(ctx, entry("u1", "overflow"))
	assert.ErrorIs(t, err, ErrFull)

	// other users are unaffected by u1's cap
	assert.NoError(t, w.Add(ctx, entry("u2", "e1")))
}

func TestWatchlistUpdatePriceDurable(t *testing.T) {
	ctx := context.Background()
	w := New(store.NewMemory())
	require.NoError(t, w.Add(ctx, entry("u1", "e1")))

	w.UpdatePrice(ctx, "u1", models.PlatformTicketmaster, "e1", 120)
	entries, err := w.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 120.0, entries[0].LastSeenPrice)
}
