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
	"github.com/seatsniper/seatsniper/internal/net/resilience"
)

func newTestTicketmaster(t *testing.T, handler http.Handler, res resilience.Config) *Ticketmaster {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tm, err := NewTicketmaster(TicketmasterConfig{
		APIKey:       "key",
		BaseURL:      srv.URL,
		DailyQuota:   1_000_000,
		CityStateMap: map[string]string{"Portland": "OR"},
		Resilience:   res,
	})
	require.NoError(t, err)
	return tm
}

func TestTicketmasterSearchNormalizes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/discovery/v2/events.json", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "key", q.Get("apikey"))
		assert.Equal(t, "Portland", q.Get("city"))
		assert.Equal(t, "OR", q.Get("stateCode"), "city-state map disambiguates the search")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"_embedded":{"events":[{
			"id": "evt1", "name": "Pearl Jam", "url": "https://tm/evt1",
			"images": [{"url": "https://img/pj.jpg"}],
			"dates": {"start": {"dateTime": "2026-10-04T02:00:00Z"}},
			"classifications": [{"segment": {"name": "Music"}, "genre": {"name": "Rock"}}],
			"priceRanges": [{"min": 80, "max": 450, "currency": "USD"}],
			"seatmap": {"staticUrl": "https://maps/evt1.png"},
			"_embedded": {"venues": [{
				"id": "v7", "name": "Moda Center",
				"city": {"name": "Portland"}, "state": {"stateCode": "OR"}
			}]}
		}]}}`))
	})

	tm := newTestTicketmaster(t, mux, fastResilience())
	events, err := tm.SearchEvents(context.Background(), SearchParams{
		City:      "Portland",
		StartDate: time.Now(),
		EndDate:   time.Now().Add(30 * 24 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, "evt1", e.PlatformID)
	assert.Equal(t, "Moda Center", e.Venue.Name)
	assert.Equal(t, "OR", e.Venue.State)
	assert.Equal(t, models.CategoryConcerts, e.Category)
	assert.Equal(t, "https://maps/evt1.png", e.SeatMapURL)
	require.NotNil(t, e.PriceRange)
	assert.Equal(t, 450.0, e.PriceRange.Max)
}

func TestTicketmasterTopPicksListings(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/top-picks/v1/events/evt1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.URL.Query().Get("apikey"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"picks":[{
			"type": "resale", "section": "102", "row": "C",
			"offers": [
				{"offerId": "o1", "listPrice": 90, "totalPrice": 200,
				 "sellableQuantity": 2, "deliveryType": "TicketFast"},
				{"offerId": "o2", "listPrice": 0, "sellableQuantity": 1}
			]
		}]}`))
	})

	tm := newTestTicketmaster(t, mux, fastResilience())
	listings, err := tm.GetEventListings(context.Background(), "evt1")
	require.NoError(t, err)
	require.Len(t, listings, 1, "zero-price offer dropped")

	l := listings[0]
	assert.Equal(t, "102", l.Section)
	assert.Equal(t, "C", l.Row)
	assert.Equal(t, 2, l.Quantity)
	assert.Equal(t, 90.0, l.PricePerTicket)
	assert.Equal(t, 200.0, l.TotalPrice)
	assert.Equal(t, 20.0, l.Fees)
	assert.Equal(t, models.DeliveryElectronic, l.DeliveryType)
}

func TestTicketmasterTopPicksNotFoundMeansNoListings(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/top-picks/v1/events/evt1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	tm := newTestTicketmaster(t, mux, fastResilience())
	listings, err := tm.GetEventListings(context.Background(), "evt1")
	require.NoError(t, err, "an event without picks is not a failure")
	assert.Nil(t, listings)
}

func TestTicketmasterRejectedKeyNotRetried(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/discovery/v2/events.json", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	res := fastResilience()
	res.MaxAttempts = 3
	tm := newTestTicketmaster(t, mux, res)

	err := tm.Initialize(context.Background())
	assert.ErrorIs(t, err, ErrBadCredentials)
	assert.Equal(t, int32(1), calls.Load(), "key rejection aborts instead of retrying")
}
