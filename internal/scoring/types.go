package scoring

import (
	"fmt"
	"math"

	"github.com/seatsniper/seatsniper/internal/models"
)

// SectionTier is the canonical quality bucket for a seating section.
// Lower ordinal is better.
type SectionTier int

const (
	TierPremium      SectionTier = 1
	TierUpperPremium SectionTier = 2
	TierMidTier      SectionTier = 3
	TierUpperLevel   SectionTier = 4
	TierObstructed   SectionTier = 5
)

func (t SectionTier) String() string {
	switch t {
	case TierPremium:
		return "premium"
	case TierUpperPremium:
		return "upper_premium"
	case TierMidTier:
		return "mid_tier"
	case TierUpperLevel:
		return "upper_level"
	case TierObstructed:
		return "obstructed"
	default:
		return "unknown"
	}
}

// Weights is the sub-score weight vector. Must sum to 1.0 +/- 1e-3.
type Weights struct {
	Price      float64 `yaml:"price"`
	Section    float64 `yaml:"section"`
	Row        float64 `yaml:"row"`
	Historical float64 `yaml:"historical"`
	Resale     float64 `yaml:"resale"`
}

// DefaultWeights is the production weight vector.
func DefaultWeights() Weights {
	return Weights{Price: 0.35, Section: 0.25, Row: 0.15, Historical: 0.15, Resale: 0.10}
}

// Validate rejects weight vectors that do not sum to 1.0 within 1e-3.
func (w Weights) Validate() error {
	sum := w.Price + w.Section + w.Row + w.Historical + w.Resale
	if math.Abs(sum-1.0) > 1e-3 {
		return fmt.Errorf("score weights must sum to 1.0, got %.4f", sum)
	}
	return nil
}

// Input is everything the engine needs to score one listing. The engine is
// pure: no clock, no I/O.
type Input struct {
	Listing            models.Listing
	AveragePrice       float64 // average per-ticket price across the event's current listings
	SectionTier        SectionTier
	RowRank            int // 1 = front; <=0 means unknown
	TotalRowsInSection int
	History            []models.HistoricalPrice // sorted newest first
	EventPopularity    int                      // 0-100; no live source yet, callers pass DefaultPopularity
	DaysUntilEvent     int
}

// DefaultPopularity is passed by every call site until a real popularity
// feed exists.
const DefaultPopularity = 50

// Recommendation is the coarse verdict band.
type Recommendation string

const (
	RecommendExcellent    Recommendation = "excellent"
	RecommendGood         Recommendation = "good"
	RecommendFair         Recommendation = "fair"
	RecommendBelowAverage Recommendation = "below_average"
	RecommendPoor         Recommendation = "poor"
)

// Breakdown holds the five sub-scores, each in [0,100].
type Breakdown struct {
	Price      int `json:"price"`
	Section    int `json:"section"`
	Row        int `json:"row"`
	Historical int `json:"historical"`
	Resale     int `json:"resale"`
}

// Flags are the notable-deal markers attached to a result.
type Flags struct {
	IsHistoricalLow  bool `json:"is_historical_low"`
	IsPremiumSection bool `json:"is_premium_section"`
	IsFrontRow       bool `json:"is_front_row"`
	IsPriceOutlier   bool `json:"is_price_outlier"`
}

// Result is the scored verdict for one listing.
type Result struct {
	TotalScore     int            `json:"total_score"` // clamped to [1,100]
	Breakdown      Breakdown      `json:"breakdown"`
	Recommendation Recommendation `json:"recommendation"`
	Reasoning      string         `json:"reasoning"`
	Flags          Flags          `json:"flags"`
}

// ScoredListing pairs a listing with its score for dispatch.
type ScoredListing struct {
	Listing models.Listing `json:"listing"`
	Score   Result         `json:"score"`
}
