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

// StubHubConfig configures the Catalog API adapter.
type StubHubConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string // default https://api.stubhub.com
	AccountURL   string // default https://account.stubhub.com
	RateLimit    ratelimit.Config
	Resilience   resilience.Config
}

// StubHub talks to the Catalog API with OAuth2 client-credentials.
// Concurrent token refreshes coalesce onto a single in-flight fetch.
type StubHub struct {
	*base
	http     *resty.Client
	authHTTP *resty.Client
	cfg      StubHubConfig
	tokens   *tokenSource
}

type stubhubTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type stubhubSearchResponse struct {
	Events []struct {
		ID             int64  `json:"id"`
		Name           string `json:"name"`
		WebURI         string `json:"webURI"`
		EventDateUTC   string `json:"eventDateUTC"`
		EventDateLocal string `json:"eventDateLocal"`
		ImageURL       string `json:"imageUrl"`
		Venue          struct {
			ID    int64  `json:"id"`
			Name  string `json:"name"`
			City  string `json:"city"`
			State string `json:"state"`
		} `json:"venue"`
		Categories []struct {
			Name string `json:"name"`
		} `json:"categories"`
		TicketInfo struct {
			MinPrice     float64 `json:"minPrice"`
			MaxPrice     float64 `json:"maxPrice"`
			CurrencyCode string  `json:"currencyCode"`
		} `json:"ticketInfo"`
	} `json:"events"`
}

type stubhubListingsResponse struct {
	Listings []struct {
		ListingID    int64  `json:"listingId"`
		SectionName  string `json:"sectionName"`
		Row          string `json:"row"`
		SeatNumbers  string `json:"seatNumbers"`
		Quantity     int    `json:"quantity"`
		CurrentPrice struct {
			Amount float64 `json:"amount"`
		} `json:"currentPrice"`
		ListingPrice struct {
			Amount float64 `json:"amount"`
		} `json:"listingPrice"`
		DeliveryTypeList []string `json:"deliveryTypeList"`
		SellerRating     *float64 `json:"sellerRating"`
	} `json:"listings"`
}

// NewStubHub builds the adapter.
func NewStubHub(cfg StubHubConfig) (*StubHub, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.stubhub.com"
	}
	if cfg.AccountURL == "" {
		cfg.AccountURL = "https://account.stubhub.com"
	}
	if cfg.RateLimit.TokensPerInterval <= 0 {
		cfg.RateLimit = ratelimit.Config{TokensPerInterval: 10, Interval: ratelimit.PerMinute, MaxTokens: 10}
	}
	limiter, err := ratelimit.New(cfg.RateLimit)
	if err != nil {
		return nil, err
	}
	s := &StubHub{
		base:     newBase(string(models.PlatformStubHub), limiter, cfg.Resilience),
		http:     resty.New().SetBaseURL(cfg.BaseURL).SetHeader("Accept", "application/json"),
		authHTTP: resty.New().SetBaseURL(cfg.AccountURL),
		cfg:      cfg,
	}
	s.tokens = newTokenSource(s.fetchToken)
	return s, nil
}

func (s *StubHub) Name() string { return string(models.PlatformStubHub) }

// fetchToken performs the client-credentials grant. Called only through
// the single-flight token source.
func (s *StubHub) fetchToken(ctx context.Context) (string, time.Duration, error) {
	var out stubhubTokenResponse
	resp, err := s.authHTTP.R().
		SetContext(ctx).
		SetBasicAuth(s.cfg.ClientID, s.cfg.ClientSecret).
		SetFormData(map[string]string{
			"grant_type": "client_credentials",
			"scope":      "read:events",
		}).
		SetResult(&out).
		Post("/oauth2/token")
	if err != nil {
		return "", 0, err
	}
	switch {
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return "", 0, backoff.Permanent(fmt.Errorf("%w: stubhub token grant rejected", ErrBadCredentials))
	case resp.StatusCode() != http.StatusOK:
		return "", 0, &resilience.StatusError{Code: resp.StatusCode(), Body: resp.String()}
	case out.AccessToken == "":
		return "", 0, backoff.Permanent(fmt.Errorf("%w: stubhub token grant returned empty token", ErrAuthFailed))
	}
	log.Debug().Str("adapter", s.Name()).Int("expires_in", out.ExpiresIn).Msg("oauth token refreshed")
	return out.AccessToken, time.Duration(out.ExpiresIn) * time.Second, nil
}

// Initialize validates credentials by obtaining the first token.
func (s *StubHub) Initialize(ctx context.Context) error {
	if s.cfg.ClientID == "" || s.cfg.ClientSecret == "" {
		return fmt.Errorf("%w: missing stubhub client credentials", ErrBadCredentials)
	}
	_, err := s.tokens.Token(ctx)
	return err
}

// authedGet issues a bearer-token GET. A 401 clears the token and surfaces
// ErrAuthFailed so the next call refreshes.
func (s *StubHub) authedGet(ctx context.Context, path string, query map[string]string, result any) error {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return err
	}
	resp, err := s.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(query).
		SetResult(result).
		Get(path)
	if err != nil {
		return err
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		s.tokens.Invalidate()
		return backoff.Permanent(fmt.Errorf("%w: stubhub rejected bearer token", ErrAuthFailed))
	default:
		return &resilience.StatusError{Code: resp.StatusCode(), Body: resp.String()}
	}
}

func (s *StubHub) SearchEvents(ctx context.Context, params SearchParams) ([]models.Event, error) {
	var out stubhubSearchResponse
	err := s.call(ctx, func(ctx context.Context) error {
		query := map[string]string{
			"city":         params.City,
			"minEventDate": params.StartDate.UTC().Format(time.RFC3339),
			"maxEventDate": params.EndDate.UTC().Format(time.RFC3339),
			"rows":         strconv.Itoa(limitOrDefault(params.Limit)),
			"sort":         "eventDateLocal asc",
		}
		if params.Keyword != "" {
			query["q"] = params.Keyword
		}
		return s.authedGet(ctx, "/sellers/search/events/v3", query, &out)
	})
	if err != nil {
		return nil, err
	}

	events := make([]models.Event, 0, len(out.Events))
	for _, raw := range out.Events {
		at, ok := ResolveDateTime(raw.EventDateUTC, "", "", raw.EventDateLocal)
		if !ok {
			continue
		}
		category := models.CategoryConcerts
		if len(raw.Categories) > 0 {
			category = InferCategory(raw.Categories[0].Name, "")
		}
		events = append(events, models.Event{
			Platform:   models.PlatformStubHub,
			PlatformID: strconv.FormatInt(raw.ID, 10),
			Name:       raw.Name,
			Venue: models.Venue{
				ID:    strconv.FormatInt(raw.Venue.ID, 10),
				Name:  raw.Venue.Name,
				City:  raw.Venue.City,
				State: raw.Venue.State,
			},
			DateTime:   at,
			Category:   category,
			URL:        raw.WebURI,
			ImageURL:   raw.ImageURL,
			PriceRange: NormalizePriceRange(raw.TicketInfo.MinPrice, raw.TicketInfo.MaxPrice, raw.TicketInfo.CurrencyCode),
		})
	}
	return events, nil
}

func (s *StubHub) GetEventListings(ctx context.Context, platformEventID string) ([]models.Listing, error) {
	var out stubhubListingsResponse
	err := s.call(ctx, func(ctx context.Context) error {
		return s.authedGet(ctx, "/sellers/find/listings/v3", map[string]string{
			"eventId": platformEventID,
		}, &out)
	})
	if err != nil {
		return nil, err
	}

	capturedAt := time.Now().UTC()
	listings := make([]models.Listing, 0, len(out.Listings))
	for _, raw := range out.Listings {
		if raw.CurrentPrice.Amount <= 0 || raw.Quantity < 1 {
			continue
		}
		delivery := ""
		if len(raw.DeliveryTypeList) > 0 {
			delivery = raw.DeliveryTypeList[0]
		}
		listings = append(listings, models.Listing{
			Platform:          models.PlatformStubHub,
			PlatformListingID: strconv.FormatInt(raw.ListingID, 10),
			EventID:           platformEventID,
			Section:           raw.SectionName,
			Row:               raw.Row,
			SeatNumbers:       splitSeats(raw.SeatNumbers),
			Quantity:          raw.Quantity,
			PricePerTicket:    raw.CurrentPrice.Amount,
			TotalPrice:        raw.CurrentPrice.Amount * float64(raw.Quantity),
			Fees:              maxFloat(0, (raw.CurrentPrice.Amount-raw.ListingPrice.Amount)*float64(raw.Quantity)),
			DeliveryType:      MapDeliveryType(delivery),
			SellerRating:      raw.SellerRating,
			DeepLink:          fmt.Sprintf("https://www.stubhub.com/event/%s", platformEventID),
			CapturedAt:        capturedAt,
		})
	}
	return listings, nil
}
