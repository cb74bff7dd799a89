// Package models holds the normalized domain types shared across adapters,
// scoring, matching, and dispatch. Events and listings are immutable once
// emitted by an adapter.
package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Platform identifies a marketplace source.
type Platform string

const (
	PlatformTicketmaster Platform = "ticketmaster"
	PlatformStubHub      Platform = "stubhub"
	PlatformSeatGeek     Platform = "seatgeek"
	PlatformGigFinder    Platform = "gigfinder"
)

// Category is the canonical event classification.
type Category string

const (
	CategoryConcerts  Category = "concerts"
	CategorySports    Category = "sports"
	CategoryTheater   Category = "theater"
	CategoryComedy    Category = "comedy"
	CategoryFestivals Category = "festivals"
)

// DeliveryType describes how tickets reach the buyer.
type DeliveryType string

const (
	DeliveryElectronic DeliveryType = "electronic"
	DeliveryInstant    DeliveryType = "instant"
	DeliveryPhysical   DeliveryType = "physical"
	DeliveryWillCall   DeliveryType = "willcall"
)

// Channel is a notification transport.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// UserTier gates subscription features.
type UserTier string

const (
	TierFree    UserTier = "free"
	TierPro     UserTier = "pro"
	TierPremium UserTier = "premium"
)

// Venue is the place an event happens.
type Venue struct {
	ID    string `json:"id" db:"venue_id"`
	Name  string `json:"name" db:"venue_name"`
	City  string `json:"city" db:"venue_city"`
	State string `json:"state" db:"venue_state"`
}

// PriceRange is the platform-advertised min/max for an event.
type PriceRange struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Currency string  `json:"currency"`
}

// Event is a normalized event as reported by one platform.
// Identity is (Platform, PlatformID).
type Event struct {
	Platform   Platform    `json:"platform"`
	PlatformID string      `json:"platform_id"`
	Name       string      `json:"name"`
	Venue      Venue       `json:"venue"`
	DateTime   time.Time   `json:"date_time"` // UTC
	Category   Category    `json:"category"`
	URL        string      `json:"url"`
	ImageURL   string      `json:"image_url,omitempty"`
	SeatMapURL string      `json:"seat_map_url,omitempty"`
	PriceRange *PriceRange `json:"price_range,omitempty"`
}

// Key returns the cross-process identity for the event.
func (e Event) Key() string {
	return fmt.Sprintf("%s:%s", e.Platform, e.PlatformID)
}

// DaysUntil returns whole days between now and the event start, negative
// for past events. Floored, so an event one hour gone is already day -1.
func (e Event) DaysUntil(now time.Time) int {
	return int(math.Floor(e.DateTime.Sub(now).Hours() / 24))
}

// Listing is a single for-sale offer. Identity is
// (Platform, PlatformListingID). Prices are USD.
type Listing struct {
	Platform          Platform     `json:"platform"`
	PlatformListingID string       `json:"platform_listing_id"`
	EventID           string       `json:"event_id"`
	Section           string       `json:"section"`
	Row               string       `json:"row"`
	SeatNumbers       []string     `json:"seat_numbers,omitempty"`
	Quantity          int          `json:"quantity"`
	PricePerTicket    float64      `json:"price_per_ticket"`
	TotalPrice        float64      `json:"total_price"`
	Fees              float64      `json:"fees"`
	DeliveryType      DeliveryType `json:"delivery_type"`
	SellerRating      *float64     `json:"seller_rating,omitempty"`
	DeepLink          string       `json:"deep_link"`
	CapturedAt        time.Time    `json:"captured_at"`
}

// Subscription is a user's standing alert request. Identity is UserID.
type Subscription struct {
	UserID            string     `json:"user_id" db:"user_id"`
	Channel           Channel    `json:"channel" db:"channel"`
	Cities            []string   `json:"cities"` // lowercase, set semantics
	MinScore          int        `json:"min_score" db:"min_score"`
	MinQuantity       int        `json:"min_quantity" db:"min_quantity"`                 // seats together
	MaxPricePerTicket float64    `json:"max_price_per_ticket" db:"max_price_per_ticket"` // 0 = no cap
	Keywords          []string   `json:"keywords,omitempty"`
	Categories        []Category `json:"categories,omitempty"`
	Active            bool       `json:"active" db:"active"`
	Paused            bool       `json:"paused" db:"paused"`
	UserTier          UserTier   `json:"user_tier" db:"user_tier"`
}

// WantsCity reports whether the subscription covers city,
// case-insensitively.
func (s Subscription) WantsCity(city string) bool {
	city = strings.ToLower(strings.TrimSpace(city))
	for _, c := range s.Cities {
		if strings.ToLower(c) == city {
			return true
		}
	}
	return false
}

// WantsCategory reports whether cat passes the optional category filter.
func (s Subscription) WantsCategory(cat Category) bool {
	if len(s.Categories) == 0 {
		return true
	}
	for _, c := range s.Categories {
		if c == cat {
			return true
		}
	}
	return false
}

// MatchesKeywords reports whether the optional keyword filter passes for
// the event name. At least one keyword must substring-match.
func (s Subscription) MatchesKeywords(eventName string) bool {
	if len(s.Keywords) == 0 {
		return true
	}
	name := strings.ToLower(eventName)
	for _, kw := range s.Keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(name, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// TrackedEvent wraps an Event with polling bookkeeping. Owned exclusively
// by the scheduler.
type TrackedEvent struct {
	Event            Event     `json:"event"`
	LastPolled       time.Time `json:"last_polled"`
	LastListingCount int       `json:"last_listing_count"`
}

// EventGroup is the same real-world event as listed on two or more
// platforms. Confidence is the minimum pairwise match confidence.
type EventGroup struct {
	GroupID       string             `json:"group_id"`
	CanonicalName string             `json:"canonical_name"`
	VenueName     string             `json:"venue_name"`
	EventDate     time.Time          `json:"event_date"`
	Events        map[Platform]Event `json:"events"`
	Confidence    int                `json:"confidence"`
}

// HistoricalPrice is one append-only point of the per-event-per-section
// price time series.
type HistoricalPrice struct {
	EventID      string    `json:"event_id" db:"event_id"`
	Section      string    `json:"section" db:"section"`
	AveragePrice float64   `json:"average_price" db:"average_price"`
	LowestPrice  float64   `json:"lowest_price" db:"lowest_price"`
	HighestPrice float64   `json:"highest_price" db:"highest_price"`
	ListingCount int       `json:"listing_count" db:"listing_count"`
	RecordedAt   time.Time `json:"recorded_at" db:"recorded_at"`
}

// AlertRecord is one row of the append-only alert ledger, used for
// cooldown lookups.
type AlertRecord struct {
	ID       string    `json:"id" db:"id"`
	EventID  string    `json:"event_id" db:"event_id"`
	UserID   string    `json:"user_id" db:"user_id"`
	SentAt   time.Time `json:"sent_at" db:"sent_at"`
	TopScore int       `json:"top_score" db:"top_score"`
	Channel  Channel   `json:"channel" db:"channel"`
	Success  bool      `json:"success" db:"success"`
}

// WatchlistEntry is one user-watched event with the last price seen.
type WatchlistEntry struct {
	UserID          string    `json:"user_id" db:"user_id"`
	Platform        Platform  `json:"platform" db:"platform"`
	PlatformEventID string    `json:"platform_event_id" db:"platform_event_id"`
	EventName       string    `json:"event_name" db:"event_name"`
	EventDate       time.Time `json:"event_date" db:"event_date"`
	LastSeenPrice   float64   `json:"last_seen_price" db:"last_seen_price"`
	AddedAt         time.Time `json:"added_at" db:"added_at"`
}
