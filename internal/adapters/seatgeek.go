package adapters

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-resty/resty/v2"

	"github.com/seatsniper/seatsniper/internal/models"
	"github.com/seatsniper/seatsniper/internal/net/ratelimit"
	"github.com/seatsniper/seatsniper/internal/net/resilience"
)

// SeatGeekConfig configures the Platform API adapter. Credentials ride
// as query parameters on every request.
type SeatGeekConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string // default https://api.seatgeek.com/2
	RateLimit    ratelimit.Config
	Resilience   resilience.Config
}

// SeatGeek talks to the Platform API. No token dance: client_id and
// client_secret are attached to each call.
type SeatGeek struct {
	*base
	http *resty.Client
	cfg  SeatGeekConfig
}

type sgEventsResponse struct {
	Events []struct {
		ID            int64  `json:"id"`
		Title         string `json:"title"`
		URL           string `json:"url"`
		DatetimeUTC   string `json:"datetime_utc"`
		DatetimeLocal string `json:"datetime_local"`
		DatetimeTBD   bool   `json:"datetime_tbd"`
		Type          string `json:"type"`
		Venue         struct {
			ID    int64  `json:"id"`
			Name  string `json:"name"`
			City  string `json:"city"`
			State string `json:"state"`
		} `json:"venue"`
		Performers []struct {
			Image string `json:"image"`
		} `json:"performers"`
		Stats struct {
			LowestPrice  *float64 `json:"lowest_price"`
			HighestPrice *float64 `json:"highest_price"`
			ListingCount *int     `json:"listing_count"`
		} `json:"stats"`
	} `json:"events"`
}

type sgEventDetailResponse struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Stats struct {
		LowestPrice          *float64           `json:"lowest_price"`
		MedianPrice          *float64           `json:"median_price"`
		LowestPriceGoodDeals *float64           `json:"lowest_price_good_deals"`
		SectionsWithListings map[string]float64 `json:"sections_with_listings,omitempty"`
	} `json:"stats"`
}

// NewSeatGeek builds the adapter.
func NewSeatGeek(cfg SeatGeekConfig) (*SeatGeek, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.seatgeek.com/2"
	}
	if cfg.RateLimit.TokensPerInterval <= 0 {
		cfg.RateLimit = ratelimit.Config{TokensPerInterval: 30, Interval: ratelimit.PerMinute, MaxTokens: 30}
	}
	limiter, err := ratelimit.New(cfg.RateLimit)
	if err != nil {
		return nil, err
	}
	return &SeatGeek{
		base: newBase(string(models.PlatformSeatGeek), limiter, cfg.Resilience),
		http: resty.New().SetBaseURL(cfg.BaseURL).SetHeader("Accept", "application/json"),
		cfg:  cfg,
	}, nil
}

func (s *SeatGeek) Name() string { return string(models.PlatformSeatGeek) }

func (s *SeatGeek) get(ctx context.Context, path string, query map[string]string, result any) error {
	req := s.http.R().
		SetContext(ctx).
		SetQueryParam("client_id", s.cfg.ClientID).
		SetQueryParams(query).
		SetResult(result)
	if s.cfg.ClientSecret != "" {
		req.SetQueryParam("client_secret", s.cfg.ClientSecret)
	}
	resp, err := req.Get(path)
	if err != nil {
		return err
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return backoff.Permanent(fmt.Errorf("%w: seatgeek rejected client credentials", ErrBadCredentials))
	default:
		return &resilience.StatusError{Code: resp.StatusCode(), Body: resp.String()}
	}
}

// Initialize probes with a one-result query to validate the client id.
func (s *SeatGeek) Initialize(ctx context.Context) error {
	if s.cfg.ClientID == "" {
		return fmt.Errorf("%w: missing seatgeek client id", ErrBadCredentials)
	}
	var out sgEventsResponse
	return s.call(ctx, func(ctx context.Context) error {
		return s.get(ctx, "/events", map[string]string{"per_page": "1"}, &out)
	})
}

func (s *SeatGeek) SearchEvents(ctx context.Context, params SearchParams) ([]models.Event, error) {
	var out sgEventsResponse
	err := s.call(ctx, func(ctx context.Context) error {
		query := map[string]string{
			"venue.city":       params.City,
			"datetime_utc.gte": params.StartDate.UTC().Format("2006-01-02T15:04:05"),
			"datetime_utc.lte": params.EndDate.UTC().Format("2006-01-02T15:04:05"),
			"per_page":         strconv.Itoa(limitOrDefault(params.Limit)),
			"sort":             "datetime_utc.asc",
		}
		if params.Keyword != "" {
			query["q"] = params.Keyword
		}
		return s.get(ctx, "/events", query, &out)
	})
	if err != nil {
		return nil, err
	}

	events := make([]models.Event, 0, len(out.Events))
	for _, raw := range out.Events {
		if raw.DatetimeTBD {
			continue
		}
		at, ok := ResolveDateTime(raw.DatetimeUTC, "", "", raw.DatetimeLocal)
		if !ok {
			continue
		}
		event := models.Event{
			Platform:   models.PlatformSeatGeek,
			PlatformID: strconv.FormatInt(raw.ID, 10),
			Name:       raw.Title,
			Venue: models.Venue{
				ID:    strconv.FormatInt(raw.Venue.ID, 10),
				Name:  raw.Venue.Name,
				City:  raw.Venue.City,
				State: raw.Venue.State,
			},
			DateTime: at,
			Category: InferCategory(raw.Type, ""),
			URL:      raw.URL,
		}
		if len(raw.Performers) > 0 {
			event.ImageURL = raw.Performers[0].Image
		}
		if raw.Stats.LowestPrice != nil && raw.Stats.HighestPrice != nil {
			event.PriceRange = NormalizePriceRange(*raw.Stats.LowestPrice, *raw.Stats.HighestPrice, "USD")
		}
		events = append(events, event)
	}
	return events, nil
}

// GetEventListings derives listings from per-section floor prices in the
// event stats. SeatGeek exposes aggregates, not individual resale rows,
// so each section contributes one synthetic listing at its floor.
func (s *SeatGeek) GetEventListings(ctx context.Context, platformEventID string) ([]models.Listing, error) {
	var out sgEventDetailResponse
	err := s.call(ctx, func(ctx context.Context) error {
		return s.get(ctx, "/events/"+platformEventID, nil, &out)
	})
	if err != nil {
		return nil, err
	}

	capturedAt := time.Now().UTC()
	var listings []models.Listing
	for section, price := range out.Stats.SectionsWithListings {
		if price <= 0 {
			continue
		}
		listings = append(listings, models.Listing{
			Platform:          models.PlatformSeatGeek,
			PlatformListingID: fmt.Sprintf("%s-%s", platformEventID, section),
			EventID:           platformEventID,
			Section:           section,
			Quantity:          1,
			PricePerTicket:    price,
			TotalPrice:        price,
			DeliveryType:      models.DeliveryElectronic,
			DeepLink:          out.URL,
			CapturedAt:        capturedAt,
		})
	}
	if len(listings) == 0 && out.Stats.LowestPrice != nil && *out.Stats.LowestPrice > 0 {
		listings = append(listings, models.Listing{
			Platform:          models.PlatformSeatGeek,
			PlatformListingID: platformEventID + "-floor",
			EventID:           platformEventID,
			Section:           "General",
			Quantity:          1,
			PricePerTicket:    *out.Stats.LowestPrice,
			TotalPrice:        *out.Stats.LowestPrice,
			DeliveryType:      models.DeliveryElectronic,
			DeepLink:          out.URL,
			CapturedAt:        capturedAt,
		})
	}
	return listings, nil
}
