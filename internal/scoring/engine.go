// Package scoring turns a raw listing plus market context into a
// deterministic value score, recommendation, and deal flags. Five weighted
// sub-scores: price vs average, section quality, row position, historical
// pricing, and resale potential.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/seatsniper/seatsniper/internal/models"
)

// Engine is the stateless value scorer.
type Engine struct {
	weights Weights
}

// NewEngine validates the weight vector and returns an engine.
func NewEngine(w Weights) (*Engine, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Engine{weights: w}, nil
}

// Score computes the full value-score result for one listing.
func (e *Engine) Score(in Input) Result {
	price := in.Listing.PricePerTicket

	bd := Breakdown{
		Price:      priceScore(price, in.AveragePrice),
		Section:    sectionScore(in.SectionTier),
		Row:        rowScore(in.RowRank, in.TotalRowsInSection),
		Historical: historicalScore(price, in.History),
		Resale:     resaleScore(in.EventPopularity, in.DaysUntilEvent, in.SectionTier),
	}

	total := float64(bd.Price)*e.weights.Price +
		float64(bd.Section)*e.weights.Section +
		float64(bd.Row)*e.weights.Row +
		float64(bd.Historical)*e.weights.Historical +
		float64(bd.Resale)*e.weights.Resale
	totalScore := clamp(1, 100, int(math.Round(total)))

	flags := Flags{
		IsHistoricalLow:  nearHistoricalLow(price, in.History),
		IsPremiumSection: in.SectionTier == TierPremium || in.SectionTier == TierUpperPremium,
		IsFrontRow:       in.RowRank >= 1 && in.RowRank <= 3,
		IsPriceOutlier:   in.AveragePrice > 0 && price <= in.AveragePrice*0.75,
	}

	return Result{
		TotalScore:     totalScore,
		Breakdown:      bd,
		Recommendation: recommend(totalScore),
		Reasoning:      reasoning(in, bd, flags, totalScore),
		Flags:          flags,
	}
}

// priceScore maps the gap to the market average onto [0,100]: 50% below
// average scores 100, at average 50, 50%+ above 0.
func priceScore(price, avg float64) int {
	if avg <= 0 {
		return 50
	}
	diffPct := (avg - price) / avg * 100
	return clamp(0, 100, int(math.Round(50+diffPct)))
}

var tierScores = map[SectionTier]int{
	TierPremium:      100,
	TierUpperPremium: 80,
	TierMidTier:      60,
	TierUpperLevel:   40,
	TierObstructed:   20,
}

func sectionScore(tier SectionTier) int {
	if s, ok := tierScores[tier]; ok {
		return s
	}
	return tierScores[TierMidTier]
}

// rowScore rewards proximity to the front with a sqrt falloff and a floor
// of 20. Unknown position scores neutral.
func rowScore(rank, totalRows int) int {
	if totalRows <= 0 || rank <= 0 {
		return 50
	}
	if rank > totalRows {
		rank = totalRows
	}
	if rank == 1 {
		return 100
	}
	pos := float64(rank-1) / float64(totalRows-1)
	score := int(math.Round(100 - math.Sqrt(pos)*80))
	if score < 20 {
		return 20
	}
	return score
}

// historicalScore positions the price between the historical low (100) and
// the decayed historical average (50), dropping below 50 above the average.
func historicalScore(price float64, history []models.HistoricalPrice) int {
	if len(history) == 0 {
		return 50
	}
	avg := weightedAverage(history)
	lowest := history[0].LowestPrice
	for _, h := range history[1:] {
		if h.LowestPrice < lowest {
			lowest = h.LowestPrice
		}
	}
	switch {
	case price <= lowest:
		return 100
	case price >= avg:
		s := int(math.Round(50 - (price-avg)/avg*100))
		if s < 0 {
			return 0
		}
		return s
	default:
		return int(math.Round(50 + (avg-price)/(avg-lowest)*50))
	}
}

// weightedAverage applies a 0.9^n decay to points sorted newest-first.
func weightedAverage(history []models.HistoricalPrice) float64 {
	var sum, weightSum float64
	weight := 1.0
	for _, h := range history {
		sum += h.AveragePrice * weight
		weightSum += weight
		weight *= 0.9
	}
	if weightSum == 0 {
		return 0
	}
	return sum / weightSum
}

func nearHistoricalLow(price float64, history []models.HistoricalPrice) bool {
	if len(history) == 0 {
		return false
	}
	lowest := history[0].LowestPrice
	for _, h := range history[1:] {
		if h.LowestPrice < lowest {
			lowest = h.LowestPrice
		}
	}
	return lowest > 0 && price <= lowest*1.05
}

// resaleScore estimates flip potential from popularity, event timing, and
// section quality.
func resaleScore(popularity, days int, tier SectionTier) int {
	var popScore int
	switch {
	case popularity >= 90:
		popScore = 100
	case popularity >= 80:
		popScore = 90
	case popularity >= 60:
		popScore = 70
	case popularity >= 40:
		popScore = 50
	case popularity >= 20:
		popScore = 30
	default:
		popScore = 20
	}

	var timingScore int
	switch {
	case days < 1:
		timingScore = 20
	case days < 3:
		timingScore = 40
	case days < 7:
		timingScore = 60
	case days <= 30:
		timingScore = 100
	case days <= 60:
		timingScore = 80
	case days <= 90:
		timingScore = 60
	case days <= 180:
		timingScore = 40
	default:
		timingScore = 30
	}

	var sectionScore int
	switch tier {
	case TierPremium:
		sectionScore = 100
	case TierUpperPremium:
		sectionScore = 85
	case TierMidTier:
		sectionScore = 70
	case TierUpperLevel:
		sectionScore = 50
	default:
		sectionScore = 30
	}

	return int(math.Round(float64(popScore)*0.5 + float64(timingScore)*0.3 + float64(sectionScore)*0.2))
}

func recommend(total int) Recommendation {
	switch {
	case total >= 85:
		return RecommendExcellent
	case total >= 70:
		return RecommendGood
	case total >= 55:
		return RecommendFair
	case total >= 40:
		return RecommendBelowAverage
	default:
		return RecommendPoor
	}
}

func reasoning(in Input, bd Breakdown, flags Flags, total int) string {
	var clauses []string

	if in.AveragePrice > 0 && in.Listing.PricePerTicket < in.AveragePrice {
		pct := int(math.Round((in.AveragePrice - in.Listing.PricePerTicket) / in.AveragePrice * 100))
		clauses = append(clauses, fmt.Sprintf("%d%% below average price", pct))
	}
	if flags.IsPremiumSection {
		clauses = append(clauses, "Premium seating location")
	}
	if flags.IsFrontRow {
		clauses = append(clauses, "Front row position")
	}
	if flags.IsHistoricalLow {
		clauses = append(clauses, "Near historical low price")
	}
	if bd.Resale >= 80 {
		clauses = append(clauses, "High resale potential")
	}

	if len(clauses) == 0 {
		switch {
		case total >= 70:
			return "Solid overall value for this event"
		case total >= 55:
			return "Fair value relative to the current market"
		default:
			return "Limited value at the current asking price"
		}
	}
	return strings.Join(clauses, ". ")
}

func clamp(lo, hi, v int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
