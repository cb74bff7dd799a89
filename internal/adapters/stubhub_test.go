package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seatsniper/seatsniper/internal/net/ratelimit"
	"github.com/seatsniper/seatsniper/internal/net/resilience"
)

func fastResilience() resilience.Config {
	return resilience.Config{
		FailureThreshold: 10,
		MaxAttempts:      1,
		InitialDelay:     time.Millisecond,
		MaxDelay:         time.Millisecond,
		Timeout:          2 * time.Second,
	}
}

func newTestStubHub(t *testing.T, handler http.Handler) *StubHub {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := NewStubHub(StubHubConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		BaseURL:      srv.URL,
		AccountURL:   srv.URL,
		RateLimit:    ratelimit.Config{TokensPerInterval: 1000, Interval: ratelimit.PerSecond, MaxTokens: 1000},
		Resilience:   fastResilience(),
	})
	require.NoError(t, err)
	return s
}

func TestStubHubSearchReusesToken(t *testing.T) {
	var grants atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		grants.Add(1)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "id", user)
		assert.Equal(t, "secret", pass)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.FormValue("grant_type"))
		assert.Equal(t, "read:events", r.FormValue("scope"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stubhubTokenResponse{AccessToken: "tok", ExpiresIn: 3600})
	})
	mux.HandleFunc("/sellers/search/events/v3", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"events":[{
			"id": 100, "name": "Pearl Jam",
			"eventDateUTC": "2026-10-04T02:00:00Z",
			"venue": {"id": 7, "name": "Moda Center", "city": "Portland", "state": "OR"},
			"categories": [{"name": "Concerts"}],
			"ticketInfo": {"minPrice": 80, "maxPrice": 450, "currencyCode": "USD"}
		}]}`))
	})

	s := newTestStubHub(t, mux)
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))

	events, err := s.SearchEvents(ctx, SearchParams{
		City:      "Portland",
		StartDate: time.Now(),
		EndDate:   time.Now().Add(30 * 24 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Pearl Jam", events[0].Name)
	assert.Equal(t, "100", events[0].PlatformID)
	assert.Equal(t, "Moda Center", events[0].Venue.Name)
	require.NotNil(t, events[0].PriceRange)
	assert.Equal(t, 80.0, events[0].PriceRange.Min)

	_, err = s.SearchEvents(ctx, SearchParams{City: "Portland", StartDate: time.Now(), EndDate: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, int32(1), grants.Load(), "token grant should happen once across calls")
}

func TestStubHubRejectedTokenInvalidates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stubhubTokenResponse{AccessToken: "tok", ExpiresIn: 3600})
	})
	mux.HandleFunc("/sellers/find/listings/v3", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	s := newTestStubHub(t, mux)
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))

	_, err := s.GetEventListings(ctx, "100")
	assert.ErrorIs(t, err, ErrAuthFailed)

	s.tokens.mu.Lock()
	cleared := s.tokens.token == ""
	s.tokens.mu.Unlock()
	assert.True(t, cleared, "401 should clear the cached token")
}

func TestStubHubBadGrantIsPermanent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	s := newTestStubHub(t, mux)
	err := s.Initialize(context.Background())
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestStubHubAuthFailureNotRetried(t *testing.T) {
	var listingCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stubhubTokenResponse{AccessToken: "tok", ExpiresIn: 3600})
	})
	mux.HandleFunc("/sellers/find/listings/v3", func(w http.ResponseWriter, r *http.Request) {
		listingCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := fastResilience()
	cfg.MaxAttempts = 3
	s, err := NewStubHub(StubHubConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		BaseURL:      srv.URL,
		AccountURL:   srv.URL,
		RateLimit:    ratelimit.Config{TokensPerInterval: 1000, Interval: ratelimit.PerSecond, MaxTokens: 1000},
		Resilience:   cfg,
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))

	_, err = s.GetEventListings(ctx, "100")
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.Equal(t, int32(1), listingCalls.Load(), "rejected token aborts the call instead of retrying")
}

func TestStubHubListingsNormalize(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stubhubTokenResponse{AccessToken: "tok", ExpiresIn: 3600})
	})
	mux.HandleFunc("/sellers/find/listings/v3", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("eventId"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"listings":[
			{"listingId": 1, "sectionName": "Floor A", "row": "3", "seatNumbers": "11,12",
			 "quantity": 2, "currentPrice": {"amount": 120}, "listingPrice": {"amount": 100},
			 "deliveryTypeList": ["Instant Download"], "sellerRating": 4.8},
			{"listingId": 2, "sectionName": "Balcony", "quantity": 0, "currentPrice": {"amount": 50}}
		]}`))
	})

	s := newTestStubHub(t, mux)
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))

	listings, err := s.GetEventListings(ctx, "100")
	require.NoError(t, err)
	require.Len(t, listings, 1, "zero-quantity listing dropped")

	l := listings[0]
	assert.Equal(t, "Floor A", l.Section)
	assert.Equal(t, []string{"11", "12"}, l.SeatNumbers)
	assert.Equal(t, 240.0, l.TotalPrice)
	assert.Equal(t, 40.0, l.Fees)
	require.NotNil(t, l.SellerRating)
	assert.Equal(t, 4.8, *l.SellerRating)
}
