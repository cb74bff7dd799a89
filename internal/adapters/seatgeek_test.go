package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seatsniper/seatsniper/internal/models"
	"github.com/seatsniper/seatsniper/internal/net/ratelimit"
	"github.com/seatsniper/seatsniper/internal/net/resilience"
)

func newTestSeatGeek(t *testing.T, handler http.Handler, res resilience.Config) *SeatGeek {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := NewSeatGeek(SeatGeekConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		BaseURL:      srv.URL,
		RateLimit:    ratelimit.Config{TokensPerInterval: 1000, Interval: ratelimit.PerSecond, MaxTokens: 1000},
		Resilience:   res,
	})
	require.NoError(t, err)
	return s
}

func TestSeatGeekSearchNormalizes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "id", q.Get("client_id"))
		assert.Equal(t, "secret", q.Get("client_secret"))
		assert.Equal(t, "Portland", q.Get("venue.city"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"events":[
			{
				"id": 55, "title": "Pearl Jam", "url": "https://sg/55",
				"datetime_utc": "2026-10-04T02:00:00", "type": "concert",
				"venue": {"id": 7, "name": "Moda Center", "city": "Portland", "state": "OR"},
				"performers": [{"image": "https://img/pj.jpg"}],
				"stats": {"lowest_price": 80, "highest_price": 450}
			},
			{"id": 56, "title": "TBD Show", "datetime_tbd": true}
		]}`))
	})

	s := newTestSeatGeek(t, mux, fastResilience())
	events, err := s.SearchEvents(context.Background(), SearchParams{
		City:      "Portland",
		StartDate: time.Now(),
		EndDate:   time.Now().Add(30 * 24 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, events, 1, "date-TBD events dropped")

	e := events[0]
	assert.Equal(t, "55", e.PlatformID)
	assert.Equal(t, "Moda Center", e.Venue.Name)
	assert.Equal(t, models.CategoryConcerts, e.Category)
	assert.Equal(t, "https://img/pj.jpg", e.ImageURL)
	require.NotNil(t, e.PriceRange)
	assert.Equal(t, 80.0, e.PriceRange.Min)
	assert.Equal(t, 450.0, e.PriceRange.Max)
}

func TestSeatGeekBadCredentialsNotRetried(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})

	res := fastResilience()
	res.MaxAttempts = 3
	s := newTestSeatGeek(t, mux, res)

	err := s.Initialize(context.Background())
	assert.ErrorIs(t, err, ErrBadCredentials)
	assert.Equal(t, int32(1), calls.Load(), "credential rejection aborts instead of retrying")
}

func TestSeatGeekSectionFloorListings(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/events/55", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": 55, "url": "https://sg/55",
			"stats": {
				"lowest_price": 60,
				"sections_with_listings": {"101": 120, "balcony": 60}
			}
		}`))
	})

	s := newTestSeatGeek(t, mux, fastResilience())
	listings, err := s.GetEventListings(context.Background(), "55")
	require.NoError(t, err)
	require.Len(t, listings, 2, "one synthetic listing per section floor")

	prices := make(map[string]float64, len(listings))
	for _, l := range listings {
		prices[l.Section] = l.PricePerTicket
		assert.Equal(t, 1, l.Quantity)
		assert.Equal(t, models.DeliveryElectronic, l.DeliveryType)
		assert.Equal(t, "https://sg/55", l.DeepLink)
	}
	assert.Equal(t, 120.0, prices["101"])
	assert.Equal(t, 60.0, prices["balcony"])
}

func TestSeatGeekListingsFallBackToOverallFloor(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/events/55", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 55, "url": "https://sg/55", "stats": {"lowest_price": 45}}`))
	})

	s := newTestSeatGeek(t, mux, fastResilience())
	listings, err := s.GetEventListings(context.Background(), "55")
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "General", listings[0].Section)
	assert.Equal(t, 45.0, listings[0].PricePerTicket)
}
