package adapters

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/seatsniper/seatsniper/internal/models"
	"github.com/seatsniper/seatsniper/internal/net/ratelimit"
	"github.com/seatsniper/seatsniper/internal/net/resilience"
)

// GigFinderConfig configures the actor-run scraping adapter. Each search
// starts a hosted actor run, polls it to completion, then reads the
// result dataset.
type GigFinderConfig struct {
	APIToken        string
	ActorID         string        // default gigfinder~event-scraper
	BaseURL         string        // default https://api.gigfinder.dev/v2
	PollInterval    time.Duration // default 5s
	MaxPollAttempts int           // default 24 (~2 minutes)
	RateLimit       ratelimit.Config
	Resilience      resilience.Config
}

// GigFinder wraps a hosted scraper behind the Adapter surface. A 401 or
// 402 (revoked token, exhausted credits) disables it for the process
// lifetime; callers see ErrAdapterDisabled and move on.
type GigFinder struct {
	*base
	http     *resty.Client
	cfg      GigFinderConfig
	disabled atomic.Bool
}

type gfRunResponse struct {
	Data struct {
		ID               string `json:"id"`
		Status           string `json:"status"`
		DefaultDatasetID string `json:"defaultDatasetId"`
	} `json:"data"`
}

type gfDatasetItem struct {
	EventID   string  `json:"eventId"`
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	ImageURL  string  `json:"imageUrl"`
	DateText  string  `json:"dateText"`
	DateUTC   string  `json:"dateUtc"`
	VenueName string  `json:"venueName"`
	City      string  `json:"city"`
	State     string  `json:"state"`
	Genre     string  `json:"genre"`
	MinPrice  float64 `json:"minPrice"`
	MaxPrice  float64 `json:"maxPrice"`
}

// NewGigFinder builds the adapter.
func NewGigFinder(cfg GigFinderConfig) (*GigFinder, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.gigfinder.dev/v2"
	}
	if cfg.ActorID == "" {
		cfg.ActorID = "gigfinder~event-scraper"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = 24
	}
	if cfg.RateLimit.TokensPerInterval <= 0 {
		cfg.RateLimit = ratelimit.Config{TokensPerInterval: 30, Interval: ratelimit.PerHour, MaxTokens: 5}
	}
	limiter, err := ratelimit.New(cfg.RateLimit)
	if err != nil {
		return nil, err
	}
	return &GigFinder{
		base: newBase(string(models.PlatformGigFinder), limiter, cfg.Resilience),
		http: resty.New().SetBaseURL(cfg.BaseURL).SetHeader("Accept", "application/json"),
		cfg:  cfg,
	}, nil
}

func (g *GigFinder) Name() string { return string(models.PlatformGigFinder) }

// disable flips the adapter off for the rest of the process.
func (g *GigFinder) disable(reason string) error {
	if g.disabled.CompareAndSwap(false, true) {
		log.Warn().Str("adapter", g.Name()).Str("reason", reason).Msg("adapter disabled for process lifetime")
	}
	return backoff.Permanent(fmt.Errorf("%w: %s", ErrAdapterDisabled, reason))
}

func (g *GigFinder) checkStatus(resp *resty.Response) error {
	switch resp.StatusCode() {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusUnauthorized:
		return g.disable("api token rejected")
	case http.StatusPaymentRequired:
		return g.disable("account credits exhausted")
	default:
		return &resilience.StatusError{Code: resp.StatusCode(), Body: resp.String()}
	}
}

// Initialize verifies the token against the account endpoint.
func (g *GigFinder) Initialize(ctx context.Context) error {
	if g.cfg.APIToken == "" {
		return fmt.Errorf("%w: missing gigfinder api token", ErrBadCredentials)
	}
	return g.call(ctx, func(ctx context.Context) error {
		resp, err := g.http.R().
			SetContext(ctx).
			SetAuthToken(g.cfg.APIToken).
			Get("/users/me")
		if err != nil {
			return err
		}
		if resp.StatusCode() == http.StatusUnauthorized {
			return backoff.Permanent(fmt.Errorf("%w: gigfinder rejected api token", ErrBadCredentials))
		}
		if resp.StatusCode() != http.StatusOK {
			return &resilience.StatusError{Code: resp.StatusCode(), Body: resp.String()}
		}
		return nil
	})
}

// SearchEvents starts an actor run scoped to the city and window, polls
// until it finishes, then drains the dataset. Each HTTP round trip runs
// under its own envelope pass so the per-call timeout never eats the
// poll budget; only the run start consumes a rate-limit token.
func (g *GigFinder) SearchEvents(ctx context.Context, params SearchParams) ([]models.Event, error) {
	if g.disabled.Load() {
		return nil, fmt.Errorf("%w: gigfinder", ErrAdapterDisabled)
	}

	var runID string
	err := g.call(ctx, func(ctx context.Context) error {
		id, err := g.startRun(ctx, params)
		runID = id
		return err
	})
	if err != nil {
		return nil, err
	}

	datasetID, err := g.awaitRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	var items []gfDatasetItem
	err = g.envelope.Execute(ctx, func(ctx context.Context) error {
		return g.fetchDataset(ctx, datasetID, &items)
	})
	if err != nil {
		return nil, err
	}

	events := make([]models.Event, 0, len(items))
	for _, raw := range items {
		at, ok := ResolveDateTime(raw.DateUTC, "", "", raw.DateText)
		if !ok {
			continue
		}
		events = append(events, models.Event{
			Platform:   models.PlatformGigFinder,
			PlatformID: raw.EventID,
			Name:       raw.Title,
			Venue: models.Venue{
				Name:  raw.VenueName,
				City:  raw.City,
				State: raw.State,
			},
			DateTime:   at,
			Category:   InferCategory(raw.Genre, ""),
			URL:        raw.URL,
			ImageURL:   raw.ImageURL,
			PriceRange: NormalizePriceRange(raw.MinPrice, raw.MaxPrice, "USD"),
		})
	}
	return events, nil
}

// GetEventListings is not supported; the scraper surfaces discovery data
// only. Returning empty keeps the poller from treating this as failure.
func (g *GigFinder) GetEventListings(ctx context.Context, platformEventID string) ([]models.Listing, error) {
	if g.disabled.Load() {
		return nil, fmt.Errorf("%w: gigfinder", ErrAdapterDisabled)
	}
	return nil, nil
}

// startRun kicks off the actor run and returns its id.
func (g *GigFinder) startRun(ctx context.Context, params SearchParams) (string, error) {
	var run gfRunResponse
	resp, err := g.http.R().
		SetContext(ctx).
		SetAuthToken(g.cfg.APIToken).
		SetBody(map[string]any{
			"city":      params.City,
			"startDate": params.StartDate.UTC().Format("2006-01-02"),
			"endDate":   params.EndDate.UTC().Format("2006-01-02"),
			"keyword":   params.Keyword,
			"maxItems":  limitOrDefault(params.Limit),
		}).
		SetResult(&run).
		Post(fmt.Sprintf("/acts/%s/runs", g.cfg.ActorID))
	if err != nil {
		return "", err
	}
	if err := g.checkStatus(resp); err != nil {
		return "", err
	}
	return run.Data.ID, nil
}

// awaitRun polls the run until SUCCEEDED, returning the dataset id to
// drain. The wait between polls sits outside the envelope; wall time is
// bounded by the caller's context and the poll budget.
func (g *GigFinder) awaitRun(ctx context.Context, runID string) (string, error) {
	for attempt := 0; attempt < g.cfg.MaxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(g.cfg.PollInterval):
		}

		var status gfRunResponse
		err := g.envelope.Execute(ctx, func(ctx context.Context) error {
			resp, err := g.http.R().
				SetContext(ctx).
				SetAuthToken(g.cfg.APIToken).
				SetResult(&status).
				Get("/actor-runs/" + runID)
			if err != nil {
				return err
			}
			return g.checkStatus(resp)
		})
		if err != nil {
			return "", err
		}

		switch status.Data.Status {
		case "SUCCEEDED":
			return status.Data.DefaultDatasetID, nil
		case "FAILED", "ABORTED", "TIMED-OUT":
			return "", fmt.Errorf("gigfinder run %s ended %s", runID, status.Data.Status)
		}
	}
	return "", fmt.Errorf("gigfinder run %s still not finished after %d polls", runID, g.cfg.MaxPollAttempts)
}

func (g *GigFinder) fetchDataset(ctx context.Context, datasetID string, items *[]gfDatasetItem) error {
	resp, err := g.http.R().
		SetContext(ctx).
		SetAuthToken(g.cfg.APIToken).
		SetQueryParam("limit", strconv.Itoa(1000)).
		SetResult(items).
		Get(fmt.Sprintf("/datasets/%s/items", datasetID))
	if err != nil {
		return err
	}
	return g.checkStatus(resp)
}
