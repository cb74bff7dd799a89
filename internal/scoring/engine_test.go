package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seatsniper/seatsniper/internal/models"
)

func listing(price float64) models.Listing {
	return models.Listing{
		Platform:          models.PlatformStubHub,
		PlatformListingID: "l1",
		EventID:           "e1",
		Section:           "101",
		Row:               "A",
		Quantity:          2,
		PricePerTicket:    price,
		TotalPrice:        price * 2,
		DeliveryType:      models.DeliveryElectronic,
		CapturedAt:        time.Now().UTC(),
	}
}

func history(points ...[2]float64) []models.HistoricalPrice {
	out := make([]models.HistoricalPrice, 0, len(points))
	for _, p := range points {
		out = append(out, models.HistoricalPrice{
			EventID:      "e1",
			Section:      "101",
			AveragePrice: p[0],
			LowestPrice:  p[1],
			HighestPrice: p[0] * 1.2,
			ListingCount: 10,
		})
	}
	return out
}

func TestNewEngine_WeightValidation(t *testing.T) {
	_, err := NewEngine(DefaultWeights())
	require.NoError(t, err)

	_, err = NewEngine(Weights{Price: 0.5, Section: 0.5, Row: 0.5})
	assert.Error(t, err, "weights summing to 1.5 must be rejected")

	// within tolerance
	_, err = NewEngine(Weights{Price: 0.3505, Section: 0.25, Row: 0.15, Historical: 0.15, Resale: 0.0999})
	assert.NoError(t, err)
}

func TestPriceScore_SymmetryAroundAverage(t *testing.T) {
	// priceScore(p) + priceScore(2*avg - p) = 100 when unclamped.
	avg := 100.0
	for _, p := range []float64{60, 75, 90, 100, 110, 125, 140} {
		a := priceScore(p, avg)
		b := priceScore(2*avg-p, avg)
		assert.Equal(t, 100, a+b, "price %v", p)
	}
}

func TestPriceScore_Boundaries(t *testing.T) {
	assert.Equal(t, 50, priceScore(80, 0), "zero average scores neutral")
	assert.Equal(t, 100, priceScore(50, 100), "50%% below average caps at 100")
	assert.Equal(t, 100, priceScore(10, 100), "clamped at 100")
	assert.Equal(t, 0, priceScore(200, 100), "50%%+ above average floors at 0")
	assert.Equal(t, 50, priceScore(100, 100))
}

func TestRowScore(t *testing.T) {
	assert.Equal(t, 100, rowScore(1, 20), "front row scores 100")
	assert.Equal(t, 100, rowScore(1, 2), "front row scores 100 regardless of depth")
	assert.Equal(t, 50, rowScore(0, 20), "unknown rank is neutral")
	assert.Equal(t, 50, rowScore(5, 0), "unknown section depth is neutral")
	assert.Equal(t, 20, rowScore(20, 20), "back row hits the floor")
	assert.Equal(t, rowScore(20, 20), rowScore(25, 20), "rank clamps to totalRows")

	// monotone non-increasing toward the back
	prev := 101
	for rank := 1; rank <= 20; rank++ {
		s := rowScore(rank, 20)
		assert.LessOrEqual(t, s, prev, "rank %d", rank)
		prev = s
	}
}

func TestHistoricalScore(t *testing.T) {
	assert.Equal(t, 50, historicalScore(80, nil), "no history is neutral")

	h := history([2]float64{100, 80})
	assert.Equal(t, 100, historicalScore(80, h), "at the historical low")
	assert.Equal(t, 100, historicalScore(60, h), "below the historical low")
	assert.Equal(t, 50, historicalScore(100, h), "at the decayed average")
	assert.Equal(t, 75, historicalScore(90, h), "midway between low and average")
	assert.Equal(t, 30, historicalScore(120, h), "20%% above average")
	assert.Equal(t, 0, historicalScore(200, h), "floors at 0")
}

func TestWeightedAverage_DecaysByRecency(t *testing.T) {
	// newest 100, older 200: (100 + 0.9*200) / 1.9
	h := history([2]float64{100, 90}, [2]float64{200, 90})
	got := weightedAverage(h)
	assert.InDelta(t, (100+0.9*200)/1.9, got, 1e-9)
}

func TestResaleScore_Steps(t *testing.T) {
	// popularity 90, 14 days out, premium: 100*0.5 + 100*0.3 + 100*0.2
	assert.Equal(t, 100, resaleScore(90, 14, TierPremium))
	// day-of events score poorly on timing: 100*0.5 + 20*0.3 + 70*0.2
	assert.Equal(t, 70, resaleScore(90, 0, TierMidTier))
	// unpopular, far out, obstructed: 20*0.5 + 30*0.3 + 30*0.2
	assert.Equal(t, 25, resaleScore(10, 365, TierObstructed))
}

func TestScore_TotalAlwaysInRange(t *testing.T) {
	eng, err := NewEngine(DefaultWeights())
	require.NoError(t, err)

	inputs := []Input{
		{Listing: listing(1), AveragePrice: 1000, SectionTier: TierPremium, RowRank: 1, TotalRowsInSection: 10, EventPopularity: 100, DaysUntilEvent: 14},
		{Listing: listing(5000), AveragePrice: 10, SectionTier: TierObstructed, RowRank: 40, TotalRowsInSection: 40, EventPopularity: 0, DaysUntilEvent: 0},
		{Listing: listing(100)},
	}
	for i, in := range inputs {
		r := eng.Score(in)
		assert.GreaterOrEqual(t, r.TotalScore, 1, "input %d", i)
		assert.LessOrEqual(t, r.TotalScore, 100, "input %d", i)
	}
}

func TestScore_BargainFrontRowPremium(t *testing.T) {
	// $40 ticket against a $100 average, front row premium, history low $80.
	eng, err := NewEngine(DefaultWeights())
	require.NoError(t, err)

	r := eng.Score(Input{
		Listing:            listing(40),
		AveragePrice:       100,
		SectionTier:        TierPremium,
		RowRank:            1,
		TotalRowsInSection: 20,
		History:            history([2]float64{100, 80}),
		EventPopularity:    90,
		DaysUntilEvent:     14,
	})

	assert.GreaterOrEqual(t, r.TotalScore, 85)
	assert.Equal(t, RecommendExcellent, r.Recommendation)
	assert.True(t, r.Flags.IsFrontRow)
	assert.True(t, r.Flags.IsPremiumSection)
	assert.True(t, r.Flags.IsPriceOutlier)
	assert.True(t, r.Flags.IsHistoricalLow)
	assert.Contains(t, r.Reasoning, "60% below average price")
	assert.Contains(t, r.Reasoning, "Premium seating location")
	assert.Contains(t, r.Reasoning, "Front row position")
}

func TestScore_NoContextIsNeutral(t *testing.T) {
	eng, err := NewEngine(DefaultWeights())
	require.NoError(t, err)

	r := eng.Score(Input{Listing: listing(100), SectionTier: TierMidTier, EventPopularity: DefaultPopularity, DaysUntilEvent: 14})
	assert.Equal(t, 50, r.Breakdown.Price)
	assert.Equal(t, 50, r.Breakdown.Historical)
	assert.Equal(t, 50, r.Breakdown.Row)
	assert.False(t, r.Flags.IsPriceOutlier, "no average means no outlier flag")
	assert.NotEmpty(t, r.Reasoning)
}

func TestRecommendationBands(t *testing.T) {
	assert.Equal(t, RecommendExcellent, recommend(85))
	assert.Equal(t, RecommendGood, recommend(70))
	assert.Equal(t, RecommendFair, recommend(55))
	assert.Equal(t, RecommendBelowAverage, recommend(40))
	assert.Equal(t, RecommendPoor, recommend(39))
}
