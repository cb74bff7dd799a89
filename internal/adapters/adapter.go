// Package adapters holds the marketplace clients. Every adapter owns its
// HTTP client, rate limiter, and resilience envelope; the rest of the
// system only sees normalized events and listings through the Adapter
// interface.
package adapters

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/seatsniper/seatsniper/internal/models"
	"github.com/seatsniper/seatsniper/internal/net/ratelimit"
	"github.com/seatsniper/seatsniper/internal/net/resilience"
)

var (
	// ErrBadCredentials means configuration is wrong; the adapter is
	// skipped permanently at startup.
	ErrBadCredentials = errors.New("adapter credentials invalid")
	// ErrAuthFailed means a previously working token was rejected; the
	// next call refreshes it.
	ErrAuthFailed = errors.New("adapter auth failed")
	// ErrAdapterDisabled means the adapter turned itself off for the
	// process lifetime (exhausted credits, revoked token).
	ErrAdapterDisabled = errors.New("adapter disabled")
)

// SearchParams narrows an event discovery query.
type SearchParams struct {
	City       string
	StartDate  time.Time
	EndDate    time.Time
	Categories []models.Category
	Keyword    string
	Limit      int
}

// HealthStatus is the adapter's self-reported condition.
type HealthStatus struct {
	Adapter      string    `json:"adapter"`
	Healthy      bool      `json:"healthy"`
	LatencyMs    int64     `json:"latency_ms"`
	LastChecked  time.Time `json:"last_checked"`
	CircuitState string    `json:"circuit_state"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Adapter is the uniform marketplace surface.
type Adapter interface {
	Name() string
	// Initialize validates credentials. ErrBadCredentials is permanent.
	Initialize(ctx context.Context) error
	SearchEvents(ctx context.Context, params SearchParams) ([]models.Event, error)
	GetEventListings(ctx context.Context, platformEventID string) ([]models.Listing, error)
	Health() HealthStatus
}

// SeatMapProvider is implemented by adapters that can look up a static
// seat-map image URL for a venue.
type SeatMapProvider interface {
	VenueSeatMap(ctx context.Context, venueName string) (string, error)
}

// base carries the shared call plumbing: rate limit, envelope, and the
// health snapshot updated on every call.
type base struct {
	name     string
	limiter  *ratelimit.Limiter
	envelope *resilience.Envelope

	mu          sync.RWMutex
	lastChecked time.Time
	lastLatency time.Duration
	lastErr     error
}

func newBase(name string, limiter *ratelimit.Limiter, cfg resilience.Config) *base {
	return &base{
		name:     name,
		limiter:  limiter,
		envelope: resilience.New(name, cfg),
	}
}

// call gates fn behind the limiter and envelope and records the outcome
// for health reporting.
func (b *base) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.limiter.Acquire(ctx); err != nil {
		return err
	}
	start := time.Now()
	err := b.envelope.Execute(ctx, fn)

	b.mu.Lock()
	b.lastChecked = time.Now()
	b.lastLatency = time.Since(start)
	b.lastErr = err
	b.mu.Unlock()
	return err
}

func (b *base) Health() HealthStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()

	status := HealthStatus{
		Adapter:      b.name,
		Healthy:      b.lastErr == nil,
		LatencyMs:    b.lastLatency.Milliseconds(),
		LastChecked:  b.lastChecked,
		CircuitState: b.envelope.State().String(),
	}
	if b.lastErr != nil {
		status.ErrorMessage = b.lastErr.Error()
	}
	return status
}
