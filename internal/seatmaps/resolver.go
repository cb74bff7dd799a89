// Package seatmaps fetches and caches static seat-map images for alert
// payloads. Resolution is always best-effort: a miss means the alert goes
// out without a picture.
package seatmaps

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/seatsniper/seatsniper/internal/adapters"
)

const (
	hitTTL  = 6 * time.Hour
	missTTL = 15 * time.Minute

	// maxImageBytes guards against an adapter handing us a URL to
	// something that is not a seat-map thumbnail.
	maxImageBytes = 5 << 20
)

// Resolver looks up seat-map images by URL or venue name.
type Resolver struct {
	http      *resty.Client
	cache     *imageCache
	providers []adapters.SeatMapProvider
}

// NewResolver builds a resolver over the adapters that can do venue
// lookups.
func NewResolver(providers []adapters.SeatMapProvider) *Resolver {
	return &Resolver{
		http:      resty.New().SetTimeout(10 * time.Second),
		cache:     newImageCache(256),
		providers: providers,
	}
}

// Resolve returns image bytes for the event's seat map. url is tried
// first when present; otherwise each provider gets a venue lookup. ok is
// false when nothing resolves.
func (r *Resolver) Resolve(ctx context.Context, url, venue string) ([]byte, bool) {
	key := cacheKey(url, venue)
	if image, found, cached := r.cache.get(key); cached {
		return image, found
	}

	if url != "" {
		if image := r.fetch(ctx, url); image != nil {
			r.cache.set(key, image, true, hitTTL)
			return image, true
		}
	}

	for _, provider := range r.providers {
		mapURL, err := provider.VenueSeatMap(ctx, venue)
		if err != nil || mapURL == "" {
			continue
		}
		if image := r.fetch(ctx, mapURL); image != nil {
			r.cache.set(key, image, true, hitTTL)
			return image, true
		}
	}

	r.cache.set(key, nil, false, missTTL)
	return nil, false
}

func (r *Resolver) fetch(ctx context.Context, url string) []byte {
	resp, err := r.http.R().SetContext(ctx).Get(url)
	if err != nil {
		log.Debug().Err(err).Str("url", url).Msg("seat map fetch failed")
		return nil
	}
	if resp.StatusCode() != 200 {
		log.Debug().Int("status", resp.StatusCode()).Str("url", url).Msg("seat map fetch rejected")
		return nil
	}
	body := resp.Body()
	if len(body) == 0 || len(body) > maxImageBytes {
		return nil
	}
	return body
}

func cacheKey(url, venue string) string {
	if url != "" {
		return "url:" + url
	}
	return "venue:" + strings.ToLower(strings.TrimSpace(venue))
}
