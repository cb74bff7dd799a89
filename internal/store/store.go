// Package store is the durable persistence boundary. Every call is
// best-effort from the scheduler's point of view: callers log failures and
// continue with degraded context.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/seatsniper/seatsniper/internal/models"
)

// ErrNotFound is returned by point lookups with no matching row.
var ErrNotFound = errors.New("store: not found")

// Store is the durable collection surface.
type Store interface {
	// Subscriptions. Upsert keys on (user_id, channel); deactivation is a
	// soft delete.
	UpsertSubscription(ctx context.Context, sub models.Subscription) error
	ListSubscriptions(ctx context.Context) ([]models.Subscription, error)
	DeactivateSubscription(ctx context.Context, userID string) error

	// Price history, append-only.
	AppendPriceHistory(ctx context.Context, points []models.HistoricalPrice) error
	// PriceHistory returns per-section points for an event, newest first,
	// at most limit points per section.
	PriceHistory(ctx context.Context, eventID string, limit int) (map[string][]models.HistoricalPrice, error)

	// Alert ledger, append-only. LastSuccessfulAlert returns ErrNotFound
	// when the pair has never been alerted successfully.
	AppendAlert(ctx context.Context, rec models.AlertRecord) error
	LastSuccessfulAlert(ctx context.Context, eventID, userID string) (time.Time, error)

	// Event groups.
	UpsertEventGroup(ctx context.Context, group models.EventGroup) error

	// Watchlist.
	ListWatchlist(ctx context.Context, userID string) ([]models.WatchlistEntry, error)
	AddWatch(ctx context.Context, entry models.WatchlistEntry) error
	RemoveWatch(ctx context.Context, userID string, platform models.Platform, platformEventID string) error
	UpdateWatchPrice(ctx context.Context, userID string, platform models.Platform, platformEventID string, price float64) error

	Close() error
}
