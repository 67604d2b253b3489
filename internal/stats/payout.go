package stats

import (
	"math"

	"github.com/yourusername/prop-edge/internal/models"
)

// defaultFlatMultiplier is the total-return multiplier assumed for the "flat"
// payout schema when no explicit odds are encoded.
const defaultFlatMultiplier = 2.0

// ProfitRatio returns the per-unit profit paid on a winning bet under the
// given payout schema. Unparseable schemas fall back to even money.
func ProfitRatio(schema models.PayoutSchema) float64 {
	switch {
	case schema == models.PayoutSchemaFlat:
		return defaultFlatMultiplier - 1
	case schema == models.PayoutSchemaStandard:
		return 1.0
	default:
		if odds, ok := schema.AmericanOdds(); ok {
			return AmericanToDecimal(odds) - 1
		}
		if odds, ok := schema.DecimalOdds(); ok && odds > 1 {
			return odds - 1
		}
		log.WithField("payout_schema", schema).Warn("unrecognised payout schema, assuming even money")
		return 1.0
	}
}

// AmericanToDecimal converts American odds to decimal odds. -110 becomes
// 1.909..., +150 becomes 2.5.
func AmericanToDecimal(odds float64) float64 {
	if odds == 0 {
		return 2.0
	}
	if odds > 0 {
		return 1 + odds/100
	}
	return 1 + 100/math.Abs(odds)
}

// ExpectedValue returns the per-unit expected value of the better side of a
// two-way market: both over and under are evaluated at the schema's profit
// ratio and the maximum is taken.
func ExpectedValue(probOver float64, schema models.PayoutSchema) float64 {
	over, _ := SidedExpectedValue(probOver, schema)
	return over
}

// SidedExpectedValue returns (bestEV, overIsBest) for the given over
// probability and payout schema.
func SidedExpectedValue(probOver float64, schema models.PayoutSchema) (float64, bool) {
	p := clampProbability(probOver)
	b := ProfitRatio(schema)

	evOver := p*b - (1 - p)
	evUnder := (1-p)*b - p
	if evOver >= evUnder {
		return evOver, true
	}
	return evUnder, false
}

// VolatilityScore converts a prediction's spread into a bounded instability
// measure: sqrt(variance) / (mean + 1), capped at 5.
func VolatilityScore(mean, variance float64) float64 {
	if variance < 0 || math.IsNaN(variance) || math.IsNaN(mean) {
		log.WithField("variance", variance).Warn("volatility score called with invalid variance")
		return 0
	}
	score := math.Sqrt(variance) / (mean + 1)
	if score < 0 || math.IsNaN(score) {
		return 0
	}
	return math.Min(score, 5.0)
}

// EdgeScore discounts expected value by volatility so unstable predictions
// rank below stable ones at the same EV.
func EdgeScore(ev, volatilityScore float64) float64 {
	return ev / (1 + volatilityScore)
}
