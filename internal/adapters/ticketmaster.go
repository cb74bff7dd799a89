package adapters

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/seatsniper/seatsniper/internal/models"
	"github.com/seatsniper/seatsniper/internal/net/ratelimit"
	"github.com/seatsniper/seatsniper/internal/net/resilience"
)

// TicketmasterConfig configures the Discovery v2 + Top Picks adapter.
type TicketmasterConfig struct {
	APIKey       string
	BaseURL      string // default https://app.ticketmaster.com
	DailyQuota   int    // default 5000 (free tier)
	Resilience   resilience.Config
	CityStateMap map[string]string // disambiguates city searches
}

// Ticketmaster talks to the Discovery API v2 (HAL+JSON) with an API key
// attached to every call, and to the Top Picks endpoint for resale offers.
type Ticketmaster struct {
	*base
	http         *resty.Client
	apiKey       string
	cityStateMap map[string]string
}

type tmEventsResponse struct {
	Embedded struct {
		Events []tmEvent `json:"events"`
	} `json:"_embedded"`
}

type tmEvent struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
	Dates struct {
		Start struct {
			DateTime  string `json:"dateTime"`
			LocalDate string `json:"localDate"`
			LocalTime string `json:"localTime"`
		} `json:"start"`
	} `json:"dates"`
	Classifications []struct {
		Segment struct {
			Name string `json:"name"`
		} `json:"segment"`
		Genre struct {
			Name string `json:"name"`
		} `json:"genre"`
	} `json:"classifications"`
	PriceRanges []struct {
		Min      float64 `json:"min"`
		Max      float64 `json:"max"`
		Currency string  `json:"currency"`
	} `json:"priceRanges"`
	Seatmap struct {
		StaticURL string `json:"staticUrl"`
	} `json:"seatmap"`
	Embedded struct {
		Venues []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			City struct {
				Name string `json:"name"`
			} `json:"city"`
			State struct {
				StateCode string `json:"stateCode"`
			} `json:"state"`
		} `json:"venues"`
	} `json:"_embedded"`
}

type tmTopPicksResponse struct {
	Picks []struct {
		Type    string  `json:"type"`
		Section string  `json:"section"`
		Row     string  `json:"row"`
		Quality float64 `json:"quality"`
		Area    struct {
			Name string `json:"name"`
		} `json:"area"`
		Offers []struct {
			OfferID      string  `json:"offerId"`
			ListPrice    float64 `json:"listPrice"`
			TotalPrice   float64 `json:"totalPrice"`
			FaceValue    float64 `json:"faceValue"`
			SellableQty  int     `json:"sellableQuantity"`
			DeliveryType string  `json:"deliveryType"`
		} `json:"offers"`
	} `json:"picks"`
}

// NewTicketmaster builds the adapter; the daily quota is smoothed into
// per-minute buckets.
func NewTicketmaster(cfg TicketmasterConfig) (*Ticketmaster, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://app.ticketmaster.com"
	}
	if cfg.DailyQuota <= 0 {
		cfg.DailyQuota = 5000
	}
	limiter, err := ratelimit.NewDaily(cfg.DailyQuota)
	if err != nil {
		return nil, err
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json")
	return &Ticketmaster{
		base:         newBase(string(models.PlatformTicketmaster), limiter, cfg.Resilience),
		http:         client,
		apiKey:       cfg.APIKey,
		cityStateMap: cfg.CityStateMap,
	}, nil
}

func (t *Ticketmaster) Name() string { return string(models.PlatformTicketmaster) }

// Initialize probes the API with a minimal query to validate the key.
func (t *Ticketmaster) Initialize(ctx context.Context) error {
	if t.apiKey == "" {
		return fmt.Errorf("%w: missing ticketmaster api key", ErrBadCredentials)
	}
	err := t.call(ctx, func(ctx context.Context) error {
		resp, err := t.http.R().
			SetContext(ctx).
			SetQueryParam("apikey", t.apiKey).
			SetQueryParam("size", "1").
			Get("/discovery/v2/events.json")
		if err != nil {
			return err
		}
		if resp.StatusCode() == http.StatusUnauthorized {
			return backoff.Permanent(fmt.Errorf("%w: ticketmaster rejected api key", ErrBadCredentials))
		}
		if resp.StatusCode() != http.StatusOK {
			return &resilience.StatusError{Code: resp.StatusCode(), Body: resp.String()}
		}
		return nil
	})
	return err
}

func (t *Ticketmaster) SearchEvents(ctx context.Context, params SearchParams) ([]models.Event, error) {
	var out tmEventsResponse
	err := t.call(ctx, func(ctx context.Context) error {
		req := t.http.R().
			SetContext(ctx).
			SetResult(&out).
			SetQueryParam("apikey", t.apiKey).
			SetQueryParam("city", params.City).
			SetQueryParam("startDateTime", params.StartDate.UTC().Format("2006-01-02T15:04:05Z")).
			SetQueryParam("endDateTime", params.EndDate.UTC().Format("2006-01-02T15:04:05Z")).
			SetQueryParam("size", strconv.Itoa(limitOrDefault(params.Limit)))
		if state, ok := t.cityStateMap[params.City]; ok {
			req.SetQueryParam("stateCode", state)
		}
		if params.Keyword != "" {
			req.SetQueryParam("keyword", params.Keyword)
		}
		resp, err := req.Get("/discovery/v2/events.json")
		if err != nil {
			return err
		}
		if resp.StatusCode() != http.StatusOK {
			return &resilience.StatusError{Code: resp.StatusCode(), Body: resp.String()}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	events := make([]models.Event, 0, len(out.Embedded.Events))
	for _, raw := range out.Embedded.Events {
		event, ok := t.normalizeEvent(raw)
		if !ok {
			log.Debug().Str("adapter", t.Name()).Str("event", raw.ID).Msg("dropping event without resolvable date")
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func (t *Ticketmaster) normalizeEvent(raw tmEvent) (models.Event, bool) {
	start := raw.Dates.Start
	at, ok := ResolveDateTime(start.DateTime, start.LocalDate, start.LocalTime, "")
	if !ok {
		return models.Event{}, false
	}

	event := models.Event{
		Platform:   models.PlatformTicketmaster,
		PlatformID: raw.ID,
		Name:       raw.Name,
		DateTime:   at,
		URL:        raw.URL,
		SeatMapURL: raw.Seatmap.StaticURL,
	}
	if len(raw.Embedded.Venues) > 0 {
		v := raw.Embedded.Venues[0]
		event.Venue = models.Venue{ID: v.ID, Name: v.Name, City: v.City.Name, State: v.State.StateCode}
	}
	if len(raw.Images) > 0 {
		event.ImageURL = raw.Images[0].URL
	}
	if len(raw.Classifications) > 0 {
		event.Category = InferCategory(raw.Classifications[0].Segment.Name, raw.Classifications[0].Genre.Name)
	} else {
		event.Category = models.CategoryConcerts
	}
	if len(raw.PriceRanges) > 0 {
		pr := raw.PriceRanges[0]
		event.PriceRange = NormalizePriceRange(pr.Min, pr.Max, pr.Currency)
	}
	return event, true
}

// GetEventListings pulls resale offers from Top Picks. A 404 means the
// event has no picks, not an error.
func (t *Ticketmaster) GetEventListings(ctx context.Context, platformEventID string) ([]models.Listing, error) {
	var out tmTopPicksResponse
	notFound := false
	err := t.call(ctx, func(ctx context.Context) error {
		resp, err := t.http.R().
			SetContext(ctx).
			SetResult(&out).
			SetQueryParam("apikey", t.apiKey).
			Get("/top-picks/v1/events/" + platformEventID)
		if err != nil {
			return err
		}
		switch resp.StatusCode() {
		case http.StatusOK:
			return nil
		case http.StatusNotFound:
			notFound = true
			return nil
		default:
			return &resilience.StatusError{Code: resp.StatusCode(), Body: resp.String()}
		}
	})
	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, nil
	}

	capturedAt := time.Now().UTC()
	var listings []models.Listing
	for i, pick := range out.Picks {
		for _, offer := range pick.Offers {
			if offer.ListPrice <= 0 || offer.SellableQty < 1 {
				continue
			}
			qty := offer.SellableQty
			listings = append(listings, models.Listing{
				Platform:          models.PlatformTicketmaster,
				PlatformListingID: offerID(offer.OfferID, platformEventID, i),
				EventID:           platformEventID,
				Section:           pick.Section,
				Row:               pick.Row,
				Quantity:          qty,
				PricePerTicket:    offer.ListPrice,
				TotalPrice:        offer.TotalPrice,
				Fees:              maxFloat(0, offer.TotalPrice-offer.ListPrice*float64(qty)),
				DeliveryType:      MapDeliveryType(offer.DeliveryType),
				DeepLink:          fmt.Sprintf("https://www.ticketmaster.com/event/%s", platformEventID),
				CapturedAt:        capturedAt,
			})
		}
	}
	return listings, nil
}

func offerID(id, eventID string, idx int) string {
	if id != "" {
		return id
	}
	return fmt.Sprintf("%s-pick-%d", eventID, idx)
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
